// Package types defines the data model shared across the Proxy-Wasm
// boundary: ABI enumerations with their pinned wire encodings, and the
// context capability interfaces plugin authors implement.
//
// Every enumeration value here is fixed by proxy_abi_version_0_2_0 and must
// not be renumbered without an ABI version bump; both the guest dispatcher
// and the vmhost runner rely on these exact encodings.
//
// Plugins implement RootContext and, per stream kind, HttpContext or
// TcpContext. Embed the Default* variants to implement only the callbacks
// you care about:
//
//	type filter struct {
//	    types.DefaultHttpContext
//	}
//
//	func (f *filter) OnHttpRequestHeaders(numHeaders int, endOfStream bool) types.Action {
//	    return types.ActionContinue
//	}
package types
