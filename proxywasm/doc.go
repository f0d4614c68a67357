// Package proxywasm is the plugin-facing surface of the SDK: typed wrappers
// over every host import of proxy_abi_version_0_2_0 plus the factory
// registration that bootstraps a plugin.
//
// A plugin registers a root context factory in init, implements the context
// interfaces from the types package, and compiles with TinyGo to a wasm
// binary the host loads:
//
//	func init() {
//		proxywasm.SetNewRootContext(func(contextID uint32) types.RootContext {
//			return &pluginRoot{}
//		})
//	}
//
// Host calls return structured errors from the errors package. Outcome
// classes that are part of normal control flow, a missing shared-data key or
// a drained queue, are distinguishable with errors.Is:
//
//	value, cas, err := proxywasm.GetSharedData("quota")
//	if errors.Is(err, sdkerrors.ErrNotFound) {
//		// first writer wins
//		err = proxywasm.SetSharedData("quota", seed, 0)
//	}
//
// All functions in this package must be called from inside a host-delivered
// callback. The ABI is single-threaded; nothing here is safe to call from a
// goroutine the callback spawned.
package proxywasm
