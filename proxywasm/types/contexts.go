package types

// Context is the capability set shared by every context kind. The host
// finishes a context with OnLog (access-log phase), then OnDone, then a
// final deletion callback, in that fixed order.
type Context interface {
	// OnDone is called when the host is done with this context. Returning
	// false keeps the context alive until the plugin calls proxywasm.Done.
	OnDone() bool

	// OnLog is called once per context during the access-log phase.
	OnLog()

	// OnHttpCallResponse delivers the result of a call previously dispatched
	// with proxywasm.DispatchHttpCall, correlated by token.
	OnHttpCallResponse(token uint32, numHeaders, bodySize, numTrailers int)
}

// RootContext represents a plugin configuration. It is created once per
// configured plugin and outlives every stream context spawned from it.
type RootContext interface {
	Context

	// OnVMStart is called when the VM starts, before any configuration.
	// Returning false aborts startup.
	OnVMStart(vmConfigurationSize int) bool

	// OnConfigure delivers the plugin configuration. Returning false rejects
	// the configuration.
	OnConfigure(pluginConfigurationSize int) bool

	// OnTick fires at the period set with proxywasm.SetTickPeriod.
	OnTick()

	// OnQueueReady signals that a shared queue this context registered has
	// data available.
	OnQueueReady(queueID uint32)

	// NewHttpContext creates a per-stream HTTP context, or nil if this root
	// does not handle HTTP streams.
	NewHttpContext(contextID uint32) HttpContext

	// NewTcpContext creates a per-connection TCP context, or nil if this
	// root does not handle TCP streams.
	NewTcpContext(contextID uint32) TcpContext
}

// HttpContext represents a single HTTP stream. Phase callbacks arrive in
// protocol order for a given stream; a stream may be cut short at any phase.
type HttpContext interface {
	Context

	OnHttpRequestHeaders(numHeaders int, endOfStream bool) Action
	OnHttpRequestBody(bodySize int, endOfStream bool) Action
	OnHttpRequestTrailers(numTrailers int) Action
	OnHttpResponseHeaders(numHeaders int, endOfStream bool) Action
	OnHttpResponseBody(bodySize int, endOfStream bool) Action
	OnHttpResponseTrailers(numTrailers int) Action
}

// TcpContext represents a single TCP connection.
type TcpContext interface {
	Context

	OnNewConnection() Action
	OnDownstreamData(dataSize int, endOfStream bool) Action
	OnDownstreamClose(peer PeerType)
	OnUpstreamData(dataSize int, endOfStream bool) Action
	OnUpstreamClose(peer PeerType)
}

// DefaultContext is a no-op Context for embedding.
type DefaultContext struct{}

func (*DefaultContext) OnDone() bool                                { return true }
func (*DefaultContext) OnLog()                                      {}
func (*DefaultContext) OnHttpCallResponse(uint32, int, int, int)    {}

// DefaultRootContext is a no-op RootContext for embedding.
type DefaultRootContext struct{ DefaultContext }

func (*DefaultRootContext) OnVMStart(int) bool                { return true }
func (*DefaultRootContext) OnConfigure(int) bool              { return true }
func (*DefaultRootContext) OnTick()                           {}
func (*DefaultRootContext) OnQueueReady(uint32)               {}
func (*DefaultRootContext) NewHttpContext(uint32) HttpContext { return nil }
func (*DefaultRootContext) NewTcpContext(uint32) TcpContext   { return nil }

// DefaultHttpContext is a pass-through HttpContext for embedding.
type DefaultHttpContext struct{ DefaultContext }

func (*DefaultHttpContext) OnHttpRequestHeaders(int, bool) Action  { return ActionContinue }
func (*DefaultHttpContext) OnHttpRequestBody(int, bool) Action     { return ActionContinue }
func (*DefaultHttpContext) OnHttpRequestTrailers(int) Action       { return ActionContinue }
func (*DefaultHttpContext) OnHttpResponseHeaders(int, bool) Action { return ActionContinue }
func (*DefaultHttpContext) OnHttpResponseBody(int, bool) Action    { return ActionContinue }
func (*DefaultHttpContext) OnHttpResponseTrailers(int) Action      { return ActionContinue }

// DefaultTcpContext is a pass-through TcpContext for embedding.
type DefaultTcpContext struct{ DefaultContext }

func (*DefaultTcpContext) OnNewConnection() Action          { return ActionContinue }
func (*DefaultTcpContext) OnDownstreamData(int, bool) Action { return ActionContinue }
func (*DefaultTcpContext) OnDownstreamClose(PeerType)        {}
func (*DefaultTcpContext) OnUpstreamData(int, bool) Action   { return ActionContinue }
func (*DefaultTcpContext) OnUpstreamClose(PeerType)          {}

// Interface conformance checks for the default embeddables.
var (
	_ Context     = (*DefaultContext)(nil)
	_ RootContext = (*DefaultRootContext)(nil)
	_ HttpContext = (*DefaultHttpContext)(nil)
	_ TcpContext  = (*DefaultTcpContext)(nil)
)
