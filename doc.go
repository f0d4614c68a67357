// Package proxywasmsdk provides a Go SDK for writing Proxy-Wasm plugins and
// for running them from a Go host.
//
// Proxy-Wasm is a binary contract between a sandboxed WebAssembly module and
// a network proxy. The host drives the module through a fixed set of exported
// entry points (connection, stream, and HTTP lifecycle callbacks), and the
// module reaches back into the host through a fixed set of imported functions
// operating on raw memory offsets and lengths. This SDK pins ABI version
// proxy_abi_version_0_2_0 on both sides of that boundary.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	proxywasm-sdk/       Root package with Memory and Allocator interfaces
//	├── proxywasm/       Guest-side public API: host-call wrappers and log helpers
//	│   ├── types/       ABI enumerations, header lists, context interfaces
//	│   └── internal/    Context registry, ABI dispatcher, map/buffer marshaling
//	├── hostemu/         In-process host emulator for native plugin tests
//	├── vmhost/          wazero-backed host runner for compiled plugin binaries
//	├── errors/          Structured error types for host-call outcomes
//	└── cmd/hostrun/     CLI for inspecting and exercising plugin binaries
//
// # Writing a Plugin
//
// A plugin registers context factories at startup and implements callbacks:
//
//	func main() {}
//
//	func init() {
//	    proxywasm.SetNewRootContext(func(contextID uint32) types.RootContext {
//	        return &myRoot{}
//	    })
//	}
//
//	type myRoot struct{ types.DefaultRootContext }
//
//	func (r *myRoot) NewHttpContext(contextID uint32) types.HttpContext {
//	    return &myFilter{}
//	}
//
//	type myFilter struct{ types.DefaultHttpContext }
//
//	func (f *myFilter) OnHttpRequestHeaders(numHeaders int, endOfStream bool) types.Action {
//	    proxywasm.AddHeaderMapValue(types.MapTypeHttpRequestHeaders, "x-my-filter", "hello")
//	    return types.ActionContinue
//	}
//
// Build with TinyGo targeting wasm to produce a binary the proxy can load.
// In the default (non-TinyGo) build, the raw host-import surface is routed
// through a registered host implementation, so the same plugin code can be
// unit tested natively against the hostemu package.
//
// # Running a Plugin
//
// The vmhost package loads a compiled plugin with wazero, registers every
// proxy_* import, and drives the exported entry points:
//
//	rt, err := vmhost.New(ctx, vmhost.Config{MemoryLimitPages: 1024})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	plugin, err := rt.Load(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	plugin.OnContextCreate(ctx, 1, 0)
//	action, err := plugin.OnRequestHeaders(ctx, 2, false)
//
// # Concurrency Model
//
// The boundary is single-threaded and host-driven: every entry point runs to
// completion before the host issues the next one for the same VM instance.
// The dispatcher therefore keeps its registry as plain maps, but it still
// detects illegal reentrant dispatch and treats it as a contract violation.
//
// # Memory Model
//
// Variable-length data never crosses the boundary by value. The host writes
// into memory the module allocates through proxy_on_memory_allocate and
// reports it back through pointer-out parameters. Wrappers copy that memory
// into module-owned byte slices before returning to user code; raw host
// pointers are never retained across calls.
package proxywasmsdk
