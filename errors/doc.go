// Package errors provides structured error types for the proxywasm-sdk.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Host-call outcomes carry the originating ABI function name and
// the raw status code, so a failed import call reads like:
//
//	[hostcall] not_found in env.proxy_get_header_map_value (status 1)
//
// All errors implement the standard error interface and support errors.Is/As.
// Matching is by phase and kind, so callers distinguish outcome classes
// without caring which import produced them:
//
//	v, err := proxywasm.GetHeaderMapValue(types.MapTypeHttpRequestHeaders, "authorization")
//	if errors.Is(err, sdkerrors.ErrNotFound) {
//	    // header absent; not a failure
//	}
//
// The distinction between KindEmpty and KindNotFound is deliberate: a host
// can report that a buffer exists but currently holds no bytes (Empty), which
// is not the same as the buffer not existing at all (NotFound). Callers that
// care must branch on both sentinels.
package errors
