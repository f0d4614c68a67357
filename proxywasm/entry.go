package proxywasm

import (
	"github.com/wippyai/proxywasm-sdk/internal"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// SetNewRootContext registers the factory invoked when the host creates a
// root context. Call it from the plugin's init function, before the host
// delivers any entry point.
func SetNewRootContext(f func(contextID uint32) types.RootContext) {
	internal.SetNewRootContext(f)
}

// SetNewHttpContext registers a stream factory that bypasses the root's
// NewHttpContext. Most plugins let the root vend contexts instead.
func SetNewHttpContext(f func(contextID, rootContextID uint32) types.HttpContext) {
	internal.SetNewHttpContext(f)
}

// SetNewTcpContext registers a stream factory that bypasses the root's
// NewTcpContext.
func SetNewTcpContext(f func(contextID, rootContextID uint32) types.TcpContext) {
	internal.SetNewTcpContext(f)
}

// ActiveContextID reports the context the current callback is running on
// behalf of.
func ActiveContextID() uint32 {
	return internal.ActiveContextID()
}
