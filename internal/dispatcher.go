package internal

import (
	"fmt"

	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// The dispatcher owns the live set of contexts and routes every exported
// entry point to the right implementation. The host contract guarantees
// single-threaded, non-reentrant delivery, so all state below is plain maps
// guarded only by the reentrancy check in enter().
//
// Failure policy: a context id the host never announced, a phase delivered
// to the wrong context kind, or a nested dispatch are boundary-contract
// violations and panic (trap). A panic escaping a plugin callback is a
// user-logic fault: it is caught here, the stream is terminated, and the
// context is marked failed so the rest of the VM keeps working.

type streamRecord struct {
	kind         types.ContextKind
	parentRootID uint32
	http         types.HttpContext
	tcp          types.TcpContext
	failed       bool
}

type dispatcher struct {
	newRoot func(contextID uint32) types.RootContext
	newHttp func(contextID, rootContextID uint32) types.HttpContext
	newTcp  func(contextID, rootContextID uint32) types.TcpContext

	roots   map[uint32]types.RootContext
	streams map[uint32]*streamRecord

	// activeID is the context the current callback runs on behalf of; it is
	// the parent recorded for outbound call tokens.
	activeID uint32

	// callouts maps pending HTTP call tokens to the context that issued them.
	callouts map[uint32]uint32

	dispatching bool
}

var state = newDispatcher()

func newDispatcher() *dispatcher {
	return &dispatcher{
		roots:    make(map[uint32]types.RootContext),
		streams:  make(map[uint32]*streamRecord),
		callouts: make(map[uint32]uint32),
	}
}

// Reset drops every live context and pending callout. Factories survive so a
// plugin's init() registration carries across emulator restarts.
func Reset() {
	d := newDispatcher()
	d.newRoot, d.newHttp, d.newTcp = state.newRoot, state.newHttp, state.newTcp
	state = d
}

// SetNewRootContext registers the factory for root contexts.
func SetNewRootContext(f func(contextID uint32) types.RootContext) {
	state.newRoot = f
}

// SetNewHttpContext registers an explicit factory for HTTP stream contexts.
// When unset, the parent root's NewHttpContext is consulted instead.
func SetNewHttpContext(f func(contextID, rootContextID uint32) types.HttpContext) {
	state.newHttp = f
}

// SetNewTcpContext registers an explicit factory for TCP stream contexts.
// When unset, the parent root's NewTcpContext is consulted instead.
func SetNewTcpContext(f func(contextID, rootContextID uint32) types.TcpContext) {
	state.newTcp = f
}

// ActiveContextID returns the context the current callback runs on behalf of.
func ActiveContextID() uint32 {
	return state.activeID
}

// RegisterCallout records a pending HTTP call token against the active
// context so the response callback can be routed back to it.
func RegisterCallout(token uint32) {
	if _, exists := state.callouts[token]; exists {
		panic(fmt.Sprintf("proxywasm: duplicate callout token %d", token))
	}
	state.callouts[token] = state.activeID
}

// LookupKind reports whether a context id is live and, if so, its kind.
func LookupKind(contextID uint32) (types.ContextKind, bool) {
	if _, ok := state.roots[contextID]; ok {
		return types.ContextKindRoot, true
	}
	if rec, ok := state.streams[contextID]; ok {
		return rec.kind, true
	}
	return 0, false
}

// enter marks a dispatch in progress. The host never nests deliveries, so a
// dispatch arriving while another is running means the boundary is broken.
func (d *dispatcher) enter() {
	if d.dispatching {
		panic("proxywasm: reentrant dispatch; host contract forbids nested deliveries")
	}
	d.dispatching = true
}

func (d *dispatcher) exit() {
	d.dispatching = false
}

type noopRoot struct{ types.DefaultRootContext }

func (d *dispatcher) requireRoot(contextID uint32, phase string) types.RootContext {
	root, ok := d.roots[contextID]
	if !ok {
		if rec, live := d.streams[contextID]; live {
			panic(fmt.Sprintf("proxywasm: %s delivered to %s context %d", phase, rec.kind, contextID))
		}
		panic(fmt.Sprintf("proxywasm: %s delivered to unknown context %d", phase, contextID))
	}
	return root
}

func (d *dispatcher) requireStream(contextID uint32, kind types.ContextKind, phase string) *streamRecord {
	rec, ok := d.streams[contextID]
	if !ok {
		if _, isRoot := d.roots[contextID]; isRoot {
			panic(fmt.Sprintf("proxywasm: %s delivered to root context %d", phase, contextID))
		}
		panic(fmt.Sprintf("proxywasm: %s delivered to unknown context %d", phase, contextID))
	}
	if rec.kind != kind {
		panic(fmt.Sprintf("proxywasm: %s delivered to %s context %d", phase, rec.kind, contextID))
	}
	return rec
}

// failStream terminates a stream whose callback panicked: log the fault,
// signal the host to close the stream, and short-circuit every later phase
// until the host deletes the context.
func (d *dispatcher) failStream(contextID uint32, rec *streamRecord, phase string, cause any) {
	rec.failed = true
	logRaw(types.LogLevelCritical,
		fmt.Sprintf("context %d closed: panic in %s: %v", contextID, phase, cause))
	switch rec.kind {
	case types.ContextKindHttpStream:
		details := "plugin_failure"
		ProxySendLocalResponse(500, StringPtr(details), int32(len(details)), nil, 0, nil, 0, -1)
	case types.ContextKindTcpStream:
		ProxyCloseStream(uint32(types.StreamTypeDownstream))
		ProxyCloseStream(uint32(types.StreamTypeUpstream))
	}
}

func (d *dispatcher) invokeAction(contextID uint32, rec *streamRecord, phase string, fn func() types.Action) (action types.Action) {
	if rec.failed {
		return types.ActionPause
	}
	d.activeID = contextID
	defer func() {
		if r := recover(); r != nil {
			d.failStream(contextID, rec, phase, r)
			action = types.ActionPause
		}
	}()
	return fn()
}

func (d *dispatcher) invokeVoid(contextID uint32, rec *streamRecord, phase string, fn func()) {
	if rec.failed {
		return
	}
	d.activeID = contextID
	defer func() {
		if r := recover(); r != nil {
			d.failStream(contextID, rec, phase, r)
		}
	}()
	fn()
}

// invokeRootBool runs a root callback that accepts or rejects (vm start,
// configure). A panic rejects.
func (d *dispatcher) invokeRootBool(contextID uint32, phase string, fn func() bool) (ok bool) {
	d.activeID = contextID
	defer func() {
		if r := recover(); r != nil {
			logRaw(types.LogLevelCritical,
				fmt.Sprintf("root context %d: panic in %s: %v", contextID, phase, r))
			ok = false
		}
	}()
	return fn()
}

func (d *dispatcher) invokeRootVoid(contextID uint32, phase string, fn func()) {
	d.activeID = contextID
	defer func() {
		if r := recover(); r != nil {
			logRaw(types.LogLevelCritical,
				fmt.Sprintf("root context %d: panic in %s: %v", contextID, phase, r))
		}
	}()
	fn()
}

func logRaw(level types.LogLevel, msg string) {
	ProxyLog(uint32(level), StringPtr(msg), int32(len(msg)))
}

// --- context creation and teardown ---

func (d *dispatcher) createRootContext(contextID uint32) {
	if _, exists := d.roots[contextID]; exists {
		panic(fmt.Sprintf("proxywasm: duplicate root context id %d", contextID))
	}
	var root types.RootContext
	created := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				logRaw(types.LogLevelCritical,
					fmt.Sprintf("root context factory for %d panicked: %v", contextID, r))
				ok = false
			}
		}()
		if d.newRoot != nil {
			root = d.newRoot(contextID)
		}
		return root != nil
	}()
	if !created {
		root = &noopRoot{}
	}
	d.roots[contextID] = root
}

func (d *dispatcher) createStreamContext(contextID, rootContextID uint32) {
	root, ok := d.roots[rootContextID]
	if !ok {
		panic(fmt.Sprintf("proxywasm: stream context %d references unknown root %d", contextID, rootContextID))
	}
	if _, exists := d.streams[contextID]; exists {
		panic(fmt.Sprintf("proxywasm: duplicate stream context id %d", contextID))
	}
	if _, exists := d.roots[contextID]; exists {
		panic(fmt.Sprintf("proxywasm: duplicate context id %d", contextID))
	}

	rec := &streamRecord{parentRootID: rootContextID}
	defer func() {
		if r := recover(); r != nil {
			// A panicking factory must not desynchronize the registry: the
			// host already announced this id and will deliver phases and a
			// deletion for it. Register a failed record to absorb them.
			logRaw(types.LogLevelCritical,
				fmt.Sprintf("stream context factory for %d panicked: %v", contextID, r))
			rec.failed = true
			if rec.kind == types.ContextKindRoot {
				rec.kind = types.ContextKindHttpStream
			}
			d.streams[contextID] = rec
		}
	}()

	switch {
	case d.newHttp != nil:
		rec.kind = types.ContextKindHttpStream
		rec.http = d.newHttp(contextID, rootContextID)
	case d.newTcp != nil:
		rec.kind = types.ContextKindTcpStream
		rec.tcp = d.newTcp(contextID, rootContextID)
	default:
		if http := root.NewHttpContext(contextID); http != nil {
			rec.kind = types.ContextKindHttpStream
			rec.http = http
		} else if tcp := root.NewTcpContext(contextID); tcp != nil {
			rec.kind = types.ContextKindTcpStream
			rec.tcp = tcp
		} else {
			panic(fmt.Sprintf("proxywasm: root %d produced no context for stream %d", rootContextID, contextID))
		}
	}
	if rec.kind == types.ContextKindHttpStream && rec.http == nil ||
		rec.kind == types.ContextKindTcpStream && rec.tcp == nil {
		panic(fmt.Sprintf("proxywasm: nil context constructed for stream %d", contextID))
	}
	d.streams[contextID] = rec
}

// --- exported entry points ---

// ProxyOnContextCreate announces a new context id. A zero root id creates a
// root context; anything else creates a stream context under that root.
func ProxyOnContextCreate(contextID, rootContextID uint32) {
	state.enter()
	defer state.exit()
	if rootContextID == 0 {
		state.createRootContext(contextID)
	} else {
		state.createStreamContext(contextID, rootContextID)
	}
}

func ProxyOnVMStart(contextID uint32, vmConfigurationSize int) bool {
	state.enter()
	defer state.exit()
	root := state.requireRoot(contextID, "proxy_on_vm_start")
	return state.invokeRootBool(contextID, "proxy_on_vm_start", func() bool {
		return root.OnVMStart(vmConfigurationSize)
	})
}

func ProxyOnConfigure(contextID uint32, pluginConfigurationSize int) bool {
	state.enter()
	defer state.exit()
	root := state.requireRoot(contextID, "proxy_on_configure")
	return state.invokeRootBool(contextID, "proxy_on_configure", func() bool {
		return root.OnConfigure(pluginConfigurationSize)
	})
}

func ProxyOnTick(contextID uint32) {
	state.enter()
	defer state.exit()
	root := state.requireRoot(contextID, "proxy_on_tick")
	state.invokeRootVoid(contextID, "proxy_on_tick", root.OnTick)
}

func ProxyOnQueueReady(contextID, queueID uint32) {
	state.enter()
	defer state.exit()
	root := state.requireRoot(contextID, "proxy_on_queue_ready")
	state.invokeRootVoid(contextID, "proxy_on_queue_ready", func() {
		root.OnQueueReady(queueID)
	})
}

func ProxyOnNewConnection(contextID uint32) types.Action {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindTcpStream, "proxy_on_new_connection")
	return state.invokeAction(contextID, rec, "proxy_on_new_connection", rec.tcp.OnNewConnection)
}

func ProxyOnDownstreamData(contextID uint32, dataSize int, endOfStream bool) types.Action {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindTcpStream, "proxy_on_downstream_data")
	return state.invokeAction(contextID, rec, "proxy_on_downstream_data", func() types.Action {
		return rec.tcp.OnDownstreamData(dataSize, endOfStream)
	})
}

func ProxyOnDownstreamConnectionClose(contextID uint32, peer types.PeerType) {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindTcpStream, "proxy_on_downstream_connection_close")
	state.invokeVoid(contextID, rec, "proxy_on_downstream_connection_close", func() {
		rec.tcp.OnDownstreamClose(peer)
	})
}

func ProxyOnUpstreamData(contextID uint32, dataSize int, endOfStream bool) types.Action {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindTcpStream, "proxy_on_upstream_data")
	return state.invokeAction(contextID, rec, "proxy_on_upstream_data", func() types.Action {
		return rec.tcp.OnUpstreamData(dataSize, endOfStream)
	})
}

func ProxyOnUpstreamConnectionClose(contextID uint32, peer types.PeerType) {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindTcpStream, "proxy_on_upstream_connection_close")
	state.invokeVoid(contextID, rec, "proxy_on_upstream_connection_close", func() {
		rec.tcp.OnUpstreamClose(peer)
	})
}

func ProxyOnRequestHeaders(contextID uint32, numHeaders int, endOfStream bool) types.Action {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindHttpStream, "proxy_on_request_headers")
	return state.invokeAction(contextID, rec, "proxy_on_request_headers", func() types.Action {
		return rec.http.OnHttpRequestHeaders(numHeaders, endOfStream)
	})
}

func ProxyOnRequestBody(contextID uint32, bodySize int, endOfStream bool) types.Action {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindHttpStream, "proxy_on_request_body")
	return state.invokeAction(contextID, rec, "proxy_on_request_body", func() types.Action {
		return rec.http.OnHttpRequestBody(bodySize, endOfStream)
	})
}

func ProxyOnRequestTrailers(contextID uint32, numTrailers int) types.Action {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindHttpStream, "proxy_on_request_trailers")
	return state.invokeAction(contextID, rec, "proxy_on_request_trailers", func() types.Action {
		return rec.http.OnHttpRequestTrailers(numTrailers)
	})
}

func ProxyOnResponseHeaders(contextID uint32, numHeaders int, endOfStream bool) types.Action {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindHttpStream, "proxy_on_response_headers")
	return state.invokeAction(contextID, rec, "proxy_on_response_headers", func() types.Action {
		return rec.http.OnHttpResponseHeaders(numHeaders, endOfStream)
	})
}

func ProxyOnResponseBody(contextID uint32, bodySize int, endOfStream bool) types.Action {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindHttpStream, "proxy_on_response_body")
	return state.invokeAction(contextID, rec, "proxy_on_response_body", func() types.Action {
		return rec.http.OnHttpResponseBody(bodySize, endOfStream)
	})
}

func ProxyOnResponseTrailers(contextID uint32, numTrailers int) types.Action {
	state.enter()
	defer state.exit()
	rec := state.requireStream(contextID, types.ContextKindHttpStream, "proxy_on_response_trailers")
	return state.invokeAction(contextID, rec, "proxy_on_response_trailers", func() types.Action {
		return rec.http.OnHttpResponseTrailers(numTrailers)
	})
}

// ProxyOnHttpCallResponse delivers the result of an outbound HTTP call. The
// token is consumed here; an unknown token means the host and module
// disagree about pending calls, which is unrecoverable. A consumed token
// whose owning context has since been deleted is dropped silently.
func ProxyOnHttpCallResponse(_ uint32, token uint32, numHeaders, bodySize, numTrailers int) {
	state.enter()
	defer state.exit()

	contextID, ok := state.callouts[token]
	if !ok {
		panic(fmt.Sprintf("proxywasm: http call response for unknown token %d", token))
	}
	delete(state.callouts, token)

	deliver := func(rec *streamRecord, ctx types.Context) {
		state.invokeVoid(contextID, rec, "proxy_on_http_call_response", func() {
			ProxySetEffectiveContext(contextID)
			ctx.OnHttpCallResponse(token, numHeaders, bodySize, numTrailers)
		})
	}

	if rec, live := state.streams[contextID]; live {
		if rec.kind == types.ContextKindHttpStream {
			deliver(rec, rec.http)
		} else {
			deliver(rec, rec.tcp)
		}
		return
	}
	if root, live := state.roots[contextID]; live {
		state.invokeRootVoid(contextID, "proxy_on_http_call_response", func() {
			ProxySetEffectiveContext(contextID)
			root.OnHttpCallResponse(token, numHeaders, bodySize, numTrailers)
		})
	}
}

func ProxyOnLog(contextID uint32) {
	state.enter()
	defer state.exit()
	if rec, ok := state.streams[contextID]; ok {
		if rec.kind == types.ContextKindHttpStream {
			state.invokeVoid(contextID, rec, "proxy_on_log", rec.http.OnLog)
		} else {
			state.invokeVoid(contextID, rec, "proxy_on_log", rec.tcp.OnLog)
		}
		return
	}
	root := state.requireRoot(contextID, "proxy_on_log")
	state.invokeRootVoid(contextID, "proxy_on_log", root.OnLog)
}

func ProxyOnDone(contextID uint32) bool {
	state.enter()
	defer state.exit()
	if rec, ok := state.streams[contextID]; ok {
		if rec.failed {
			return true
		}
		state.activeID = contextID
		done := true
		state.invokeVoid(contextID, rec, "proxy_on_done", func() {
			if rec.kind == types.ContextKindHttpStream {
				done = rec.http.OnDone()
			} else {
				done = rec.tcp.OnDone()
			}
		})
		return done
	}
	root := state.requireRoot(contextID, "proxy_on_done")
	return state.invokeRootBool(contextID, "proxy_on_done", root.OnDone)
}

// ProxyOnDelete destroys a context. Deleting an id that was never announced,
// or a root that still parents live streams, is a registry-integrity
// violation and traps.
func ProxyOnDelete(contextID uint32) {
	state.enter()
	defer state.exit()
	if _, ok := state.streams[contextID]; ok {
		delete(state.streams, contextID)
		return
	}
	if _, ok := state.roots[contextID]; ok {
		for id, rec := range state.streams {
			if rec.parentRootID == contextID {
				panic(fmt.Sprintf("proxywasm: delete of root %d while stream %d still references it", contextID, id))
			}
		}
		delete(state.roots, contextID)
		return
	}
	panic(fmt.Sprintf("proxywasm: delete of unknown context %d", contextID))
}
