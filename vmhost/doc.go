// Package vmhost runs Proxy-Wasm plugin binaries over wazero. It supplies
// the env import module of proxy_abi_version_0_2_0, verifies a plugin's ABI
// marker and required exports at load time, and exposes the exported entry
// points as typed methods on Plugin.
//
//	rt, err := vmhost.New(ctx, vmhost.Config{MemoryLimitPages: 1024, Logger: logger})
//	if err != nil {
//		return err
//	}
//	defer rt.Close(ctx)
//
//	rt.SetPluginConfiguration(config)
//	plugin, err := rt.Load(ctx, wasmBytes)
//	if err != nil {
//		return err
//	}
//
//	plugin.OnContextCreate(ctx, 1, 0)
//	plugin.OnVMStart(ctx, 1)
//	plugin.OnConfigure(ctx, 1)
//
// The host keeps the ABI's shared state (header maps, buffers, shared data,
// queues, metrics) in process and records plugin side effects (logs, local
// responses, outbound calls) for the embedder to act on. One Runtime hosts
// one plugin instance; the ABI is single-threaded, and so is everything
// here.
package vmhost
