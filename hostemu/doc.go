// Package hostemu is an in-process emulation of a Proxy-Wasm host. It
// implements every host import of proxy_abi_version_0_2_0 against plain Go
// state and drives the SDK's exported entry points directly, so plugin
// logic runs under ordinary go test with no wasm runtime involved.
//
// A test builds an emulator, walks a stream through its phases, and
// inspects the side effects:
//
//	emu := hostemu.New(hostemu.WithPluginConfiguration([]byte(`{"header":"x-tag"}`)))
//	emu.StartVM()
//	emu.ConfigurePlugin()
//
//	id := emu.NewHttpStream([][2]string{{":path", "/"}})
//	action := emu.CallOnRequestHeaders(id, true)
//	headers := emu.HeaderMap(id, types.MapTypeHttpRequestHeaders)
//	emu.CompleteStream(id)
//
// Host write-backs go through the real boundary allocator, so tests also
// catch leaks in the pin/consume handshake. The emulator mirrors captured
// plugin logs into a zap logger when one is supplied with WithLogger.
package hostemu
