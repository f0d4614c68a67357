package vmhost

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	sdkerrors "github.com/wippyai/proxywasm-sdk/errors"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// Plugin is a loaded, verified plugin instance. Methods deliver the ABI's
// exported entry points with typed arguments and results; the embedder is
// responsible for calling them in protocol order, one at a time.
type Plugin struct {
	module api.Module
	state  *hostState
	logger *zap.Logger
}

func (p *Plugin) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := p.module.ExportedFunction(name)
	if fn == nil {
		return nil, sdkerrors.MissingExport(name)
	}
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, sdkerrors.Wrap(sdkerrors.PhaseVMHost, sdkerrors.KindInternalFailure, err, name+" trapped")
	}
	return results, nil
}

// callOptional delivers an entry point the ABI does not require. A missing
// export is not an error; the plugin simply has no handler.
func (p *Plugin) callOptional(ctx context.Context, name string, params ...uint64) ([]uint64, bool, error) {
	if p.module.ExportedFunction(name) == nil {
		return nil, false, nil
	}
	results, err := p.call(ctx, name, params...)
	return results, true, err
}

func (p *Plugin) callAction(ctx context.Context, name string, params ...uint64) (types.Action, error) {
	results, handled, err := p.callOptional(ctx, name, params...)
	if err != nil {
		return types.ActionPause, err
	}
	if !handled {
		return types.ActionContinue, nil
	}
	return types.Action(uint32(results[0])), nil
}

func b2u(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// OnContextCreate announces a context id to the plugin. Root contexts pass
// rootContextID zero.
func (p *Plugin) OnContextCreate(ctx context.Context, contextID, rootContextID uint32) error {
	p.state.effectiveID = contextID
	_, err := p.call(ctx, "proxy_on_context_create", uint64(contextID), uint64(rootContextID))
	return err
}

// OnVMStart delivers VM startup to a root context and reports acceptance.
func (p *Plugin) OnVMStart(ctx context.Context, rootContextID uint32) (bool, error) {
	p.state.effectiveID = rootContextID
	results, handled, err := p.callOptional(ctx, "proxy_on_vm_start",
		uint64(rootContextID), uint64(len(p.state.vmConfig)))
	if err != nil || !handled {
		return err == nil, err
	}
	return results[0] != 0, nil
}

// OnConfigure delivers the plugin configuration and reports acceptance.
func (p *Plugin) OnConfigure(ctx context.Context, rootContextID uint32) (bool, error) {
	p.state.effectiveID = rootContextID
	results, handled, err := p.callOptional(ctx, "proxy_on_configure",
		uint64(rootContextID), uint64(len(p.state.pluginConfig)))
	if err != nil || !handled {
		return err == nil, err
	}
	return results[0] != 0, nil
}

// OnTick fires the plugin's timer callback.
func (p *Plugin) OnTick(ctx context.Context, rootContextID uint32) error {
	p.state.effectiveID = rootContextID
	_, _, err := p.callOptional(ctx, "proxy_on_tick", uint64(rootContextID))
	return err
}

// OnQueueReady signals a shared queue has data.
func (p *Plugin) OnQueueReady(ctx context.Context, rootContextID, queueID uint32) error {
	p.state.effectiveID = rootContextID
	_, _, err := p.callOptional(ctx, "proxy_on_queue_ready", uint64(rootContextID), uint64(queueID))
	return err
}

// OnRequestHeaders delivers the request-headers phase.
func (p *Plugin) OnRequestHeaders(ctx context.Context, contextID uint32, endOfStream bool) (types.Action, error) {
	p.state.effectiveID = contextID
	n := len(p.state.context(contextID).maps[types.MapTypeHttpRequestHeaders])
	return p.callAction(ctx, "proxy_on_request_headers", uint64(contextID), uint64(n), b2u(endOfStream))
}

// OnRequestBody delivers the request-body phase for the currently buffered
// body.
func (p *Plugin) OnRequestBody(ctx context.Context, contextID uint32, endOfStream bool) (types.Action, error) {
	p.state.effectiveID = contextID
	n := len(p.state.context(contextID).buffers[types.BufferTypeHttpRequestBody])
	return p.callAction(ctx, "proxy_on_request_body", uint64(contextID), uint64(n), b2u(endOfStream))
}

// OnRequestTrailers delivers the request-trailers phase.
func (p *Plugin) OnRequestTrailers(ctx context.Context, contextID uint32) (types.Action, error) {
	p.state.effectiveID = contextID
	n := len(p.state.context(contextID).maps[types.MapTypeHttpRequestTrailers])
	return p.callAction(ctx, "proxy_on_request_trailers", uint64(contextID), uint64(n))
}

// OnResponseHeaders delivers the response-headers phase.
func (p *Plugin) OnResponseHeaders(ctx context.Context, contextID uint32, endOfStream bool) (types.Action, error) {
	p.state.effectiveID = contextID
	n := len(p.state.context(contextID).maps[types.MapTypeHttpResponseHeaders])
	return p.callAction(ctx, "proxy_on_response_headers", uint64(contextID), uint64(n), b2u(endOfStream))
}

// OnResponseBody delivers the response-body phase.
func (p *Plugin) OnResponseBody(ctx context.Context, contextID uint32, endOfStream bool) (types.Action, error) {
	p.state.effectiveID = contextID
	n := len(p.state.context(contextID).buffers[types.BufferTypeHttpResponseBody])
	return p.callAction(ctx, "proxy_on_response_body", uint64(contextID), uint64(n), b2u(endOfStream))
}

// OnResponseTrailers delivers the response-trailers phase.
func (p *Plugin) OnResponseTrailers(ctx context.Context, contextID uint32) (types.Action, error) {
	p.state.effectiveID = contextID
	n := len(p.state.context(contextID).maps[types.MapTypeHttpResponseTrailers])
	return p.callAction(ctx, "proxy_on_response_trailers", uint64(contextID), uint64(n))
}

// OnNewConnection delivers the connection-open phase of a TCP stream.
func (p *Plugin) OnNewConnection(ctx context.Context, contextID uint32) (types.Action, error) {
	p.state.effectiveID = contextID
	return p.callAction(ctx, "proxy_on_new_connection", uint64(contextID))
}

// OnDownstreamData delivers the downstream data phase.
func (p *Plugin) OnDownstreamData(ctx context.Context, contextID uint32, endOfStream bool) (types.Action, error) {
	p.state.effectiveID = contextID
	n := len(p.state.context(contextID).buffers[types.BufferTypeDownstreamData])
	return p.callAction(ctx, "proxy_on_downstream_data", uint64(contextID), uint64(n), b2u(endOfStream))
}

// OnUpstreamData delivers the upstream data phase.
func (p *Plugin) OnUpstreamData(ctx context.Context, contextID uint32, endOfStream bool) (types.Action, error) {
	p.state.effectiveID = contextID
	n := len(p.state.context(contextID).buffers[types.BufferTypeUpstreamData])
	return p.callAction(ctx, "proxy_on_upstream_data", uint64(contextID), uint64(n), b2u(endOfStream))
}

// OnDownstreamConnectionClose reports the downstream side closing.
func (p *Plugin) OnDownstreamConnectionClose(ctx context.Context, contextID uint32, peer types.PeerType) error {
	p.state.effectiveID = contextID
	_, _, err := p.callOptional(ctx, "proxy_on_downstream_connection_close", uint64(contextID), uint64(peer))
	return err
}

// OnUpstreamConnectionClose reports the upstream side closing.
func (p *Plugin) OnUpstreamConnectionClose(ctx context.Context, contextID uint32, peer types.PeerType) error {
	p.state.effectiveID = contextID
	_, _, err := p.callOptional(ctx, "proxy_on_upstream_connection_close", uint64(contextID), uint64(peer))
	return err
}

// OnHttpCallResponse answers an outbound call the plugin dispatched. The
// token must correspond to a pending call recorded by this host; the
// callback is delivered to the context that issued the call.
func (p *Plugin) OnHttpCallResponse(ctx context.Context, token uint32, headers [][2]string, body []byte, trailers [][2]string) error {
	call, ok := p.state.takePendingCall(token)
	if !ok {
		return sdkerrors.Wrap(sdkerrors.PhaseVMHost, sdkerrors.KindBadArgument, nil,
			"no pending call for token")
	}
	p.state.effectiveID = call.ContextID
	p.state.callResponse.active = true
	p.state.callResponse.headers = headers
	p.state.callResponse.body = body
	p.state.callResponse.trailers = trailers
	defer func() {
		p.state.callResponse.active = false
		p.state.callResponse.headers = nil
		p.state.callResponse.body = nil
		p.state.callResponse.trailers = nil
	}()

	_, _, err := p.callOptional(ctx, "proxy_on_http_call_response",
		uint64(call.ContextID), uint64(token),
		uint64(len(headers)), uint64(len(body)), uint64(len(trailers)))
	return err
}

// OnLog runs a context's access-log callback.
func (p *Plugin) OnLog(ctx context.Context, contextID uint32) error {
	p.state.effectiveID = contextID
	_, _, err := p.callOptional(ctx, "proxy_on_log", uint64(contextID))
	return err
}

// OnDone asks a context whether it has finished. False means the plugin
// will signal completion later through proxy_done.
func (p *Plugin) OnDone(ctx context.Context, contextID uint32) (bool, error) {
	p.state.effectiveID = contextID
	results, err := p.call(ctx, "proxy_on_done", uint64(contextID))
	if err != nil {
		return false, err
	}
	return results[0] != 0, nil
}

// OnDelete destroys a context.
func (p *Plugin) OnDelete(ctx context.Context, contextID uint32) error {
	p.state.effectiveID = contextID
	_, err := p.call(ctx, "proxy_on_delete", uint64(contextID))
	return err
}

// Close releases the plugin instance.
func (p *Plugin) Close(ctx context.Context) error {
	return p.module.Close(ctx)
}

// --- host-side state the embedder seeds and inspects ---

// SetHeaderMap seeds a context's header map before delivering a phase.
func (p *Plugin) SetHeaderMap(contextID uint32, mapType types.MapType, pairs [][2]string) {
	p.state.context(contextID).maps[mapType] = pairs
}

// HeaderMap returns the host's current view of a context's header map,
// including any mutations the plugin made.
func (p *Plugin) HeaderMap(contextID uint32, mapType types.MapType) [][2]string {
	return p.state.context(contextID).maps[mapType]
}

// AppendBuffer appends a chunk to a context's buffer before a data phase.
func (p *Plugin) AppendBuffer(contextID uint32, bufferType types.BufferType, chunk []byte) {
	c := p.state.context(contextID)
	c.buffers[bufferType] = append(c.buffers[bufferType], chunk...)
}

// Buffer returns the host's current view of a context's buffer.
func (p *Plugin) Buffer(contextID uint32, bufferType types.BufferType) []byte {
	return p.state.context(contextID).buffers[bufferType]
}

// DropContextState releases the host-side state of a deleted context.
func (p *Plugin) DropContextState(contextID uint32) {
	delete(p.state.contexts, contextID)
}

// Logs returns every log line the plugin emitted, in order.
func (p *Plugin) Logs() []LogEntry { return p.state.logs }

// LocalResponses returns the locally generated responses the plugin
// requested.
func (p *Plugin) LocalResponses() []LocalResponse { return p.state.localResponses }

// PendingCalls returns outbound calls awaiting an answer.
func (p *Plugin) PendingCalls() []PendingCall { return p.state.pendingCalls }

// TickPeriod returns the period the plugin last requested; zero means off.
func (p *Plugin) TickPeriod() time.Duration { return p.state.tickPeriod }

// DoneContexts returns contexts that signaled deferred completion through
// proxy_done.
func (p *Plugin) DoneContexts() []uint32 { return p.state.doneContexts }
