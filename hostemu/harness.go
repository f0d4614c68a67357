package hostemu

import (
	"fmt"
	"strings"
	"time"

	"github.com/wippyai/proxywasm-sdk/internal"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// RootContextID is the id the harness assigns to the single root context it
// manages. Real hosts may run several roots; one is enough for plugin tests.
const RootContextID uint32 = 1

// StartVM creates the root context and runs the VM start callback the way a
// host does at boot. It reports whether the plugin accepted startup.
func (e *Emulator) StartVM() bool {
	e.nextContextID = RootContextID + 1
	e.effectiveID = RootContextID
	internal.ProxyOnContextCreate(RootContextID, 0)
	return internal.ProxyOnVMStart(RootContextID, len(e.vmConfig))
}

// ConfigurePlugin delivers the plugin configuration to the root context and
// reports whether the plugin accepted it.
func (e *Emulator) ConfigurePlugin() bool {
	e.effectiveID = RootContextID
	return internal.ProxyOnConfigure(RootContextID, len(e.pluginConfig))
}

// Tick fires the root's timer callback once.
func (e *Emulator) Tick() {
	e.effectiveID = RootContextID
	internal.ProxyOnTick(RootContextID)
}

// RaiseQueueReady signals the root that a shared queue has data.
func (e *Emulator) RaiseQueueReady(queueID uint32) {
	e.effectiveID = RootContextID
	internal.ProxyOnQueueReady(RootContextID, queueID)
}

// NewHttpStream announces a new HTTP stream context carrying the given
// request headers and returns its id.
func (e *Emulator) NewHttpStream(requestHeaders [][2]string) uint32 {
	id := e.nextContextID
	e.nextContextID++
	s := e.stream(id)
	s.maps[types.MapTypeHttpRequestHeaders] = requestHeaders
	e.effectiveID = id
	internal.ProxyOnContextCreate(id, RootContextID)
	return id
}

// NewTcpStream announces a new TCP connection context and returns its id.
func (e *Emulator) NewTcpStream() uint32 {
	id := e.nextContextID
	e.nextContextID++
	e.stream(id)
	e.effectiveID = id
	internal.ProxyOnContextCreate(id, RootContextID)
	return id
}

// CallOnRequestHeaders delivers the request-headers phase for a stream
// created with NewHttpStream.
func (e *Emulator) CallOnRequestHeaders(contextID uint32, endOfStream bool) types.Action {
	e.effectiveID = contextID
	n := len(e.stream(contextID).maps[types.MapTypeHttpRequestHeaders])
	return internal.ProxyOnRequestHeaders(contextID, n, endOfStream)
}

// CallOnRequestBody appends a chunk to the buffered request body and
// delivers the body phase.
func (e *Emulator) CallOnRequestBody(contextID uint32, chunk []byte, endOfStream bool) types.Action {
	s := e.stream(contextID)
	s.buffers[types.BufferTypeHttpRequestBody] = append(s.buffers[types.BufferTypeHttpRequestBody], chunk...)
	e.effectiveID = contextID
	return internal.ProxyOnRequestBody(contextID, len(s.buffers[types.BufferTypeHttpRequestBody]), endOfStream)
}

// CallOnRequestTrailers sets the request trailers and delivers the phase.
func (e *Emulator) CallOnRequestTrailers(contextID uint32, trailers [][2]string) types.Action {
	s := e.stream(contextID)
	s.maps[types.MapTypeHttpRequestTrailers] = trailers
	e.effectiveID = contextID
	return internal.ProxyOnRequestTrailers(contextID, len(trailers))
}

// CallOnResponseHeaders sets the response headers and delivers the phase.
func (e *Emulator) CallOnResponseHeaders(contextID uint32, responseHeaders [][2]string, endOfStream bool) types.Action {
	s := e.stream(contextID)
	s.maps[types.MapTypeHttpResponseHeaders] = responseHeaders
	e.effectiveID = contextID
	return internal.ProxyOnResponseHeaders(contextID, len(responseHeaders), endOfStream)
}

// CallOnResponseBody appends a chunk to the buffered response body and
// delivers the body phase.
func (e *Emulator) CallOnResponseBody(contextID uint32, chunk []byte, endOfStream bool) types.Action {
	s := e.stream(contextID)
	s.buffers[types.BufferTypeHttpResponseBody] = append(s.buffers[types.BufferTypeHttpResponseBody], chunk...)
	e.effectiveID = contextID
	return internal.ProxyOnResponseBody(contextID, len(s.buffers[types.BufferTypeHttpResponseBody]), endOfStream)
}

// CallOnNewConnection delivers the connection-open phase for a TCP stream.
func (e *Emulator) CallOnNewConnection(contextID uint32) types.Action {
	e.effectiveID = contextID
	return internal.ProxyOnNewConnection(contextID)
}

// CallOnDownstreamData appends a chunk to the downstream buffer and
// delivers the data phase.
func (e *Emulator) CallOnDownstreamData(contextID uint32, chunk []byte, endOfStream bool) types.Action {
	s := e.stream(contextID)
	s.buffers[types.BufferTypeDownstreamData] = append(s.buffers[types.BufferTypeDownstreamData], chunk...)
	e.effectiveID = contextID
	return internal.ProxyOnDownstreamData(contextID, len(s.buffers[types.BufferTypeDownstreamData]), endOfStream)
}

// CallOnUpstreamData appends a chunk to the upstream buffer and delivers
// the data phase.
func (e *Emulator) CallOnUpstreamData(contextID uint32, chunk []byte, endOfStream bool) types.Action {
	s := e.stream(contextID)
	s.buffers[types.BufferTypeUpstreamData] = append(s.buffers[types.BufferTypeUpstreamData], chunk...)
	e.effectiveID = contextID
	return internal.ProxyOnUpstreamData(contextID, len(s.buffers[types.BufferTypeUpstreamData]), endOfStream)
}

// CloseTcpStream delivers both connection-close callbacks.
func (e *Emulator) CloseTcpStream(contextID uint32, peer types.PeerType) {
	e.effectiveID = contextID
	internal.ProxyOnDownstreamConnectionClose(contextID, peer)
	internal.ProxyOnUpstreamConnectionClose(contextID, peer)
}

// CompleteStream runs a stream's teardown sequence: access log, done, and
// deletion, in the order the host guarantees.
func (e *Emulator) CompleteStream(contextID uint32) {
	e.effectiveID = contextID
	internal.ProxyOnLog(contextID)
	internal.ProxyOnDone(contextID)
	internal.ProxyOnDelete(contextID)
	delete(e.streams, contextID)
}

// ShutdownVM tears down the root context.
func (e *Emulator) ShutdownVM() {
	e.effectiveID = RootContextID
	internal.ProxyOnLog(RootContextID)
	internal.ProxyOnDone(RootContextID)
	internal.ProxyOnDelete(RootContextID)
}

// DeliverHttpCallResponse answers a pending outbound call by token. It
// panics if the token does not correspond to a pending call; the dispatcher
// routes the callback to whichever context issued the call.
func (e *Emulator) DeliverHttpCallResponse(token uint32, headers [][2]string, body []byte, trailers [][2]string) {
	idx := -1
	for i, c := range e.pendingCalls {
		if c.Token == token {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Sprintf("hostemu: no pending call with token %d", token))
	}
	e.pendingCalls = append(e.pendingCalls[:idx], e.pendingCalls[idx+1:]...)

	e.callResponse.active = true
	e.callResponse.headers = headers
	e.callResponse.body = body
	e.callResponse.trailers = trailers
	defer func() {
		e.callResponse.active = false
		e.callResponse.headers = nil
		e.callResponse.body = nil
		e.callResponse.trailers = nil
	}()

	internal.ProxyOnHttpCallResponse(RootContextID, token, len(headers), len(body), len(trailers))
}

// --- inspection helpers for tests ---

// Logs returns every captured proxy_log call in order.
func (e *Emulator) Logs() []LogEntry {
	return e.logs
}

// LogsContaining returns the captured messages that contain substr.
func (e *Emulator) LogsContaining(substr string) []string {
	var out []string
	for _, entry := range e.logs {
		if strings.Contains(entry.Message, substr) {
			out = append(out, entry.Message)
		}
	}
	return out
}

// LocalResponses returns every locally generated response in order.
func (e *Emulator) LocalResponses() []LocalResponse {
	return e.localResponses
}

// PendingCalls returns the outbound calls not yet answered.
func (e *Emulator) PendingCalls() []PendingCall {
	return e.pendingCalls
}

// TickPeriod returns the period the plugin last requested; zero means the
// timer is off.
func (e *Emulator) TickPeriod() time.Duration {
	return e.tickPeriod
}

// HeaderMap returns the emulator's current view of a stream's header map.
func (e *Emulator) HeaderMap(contextID uint32, mapType types.MapType) [][2]string {
	return e.stream(contextID).maps[mapType]
}

// Buffer returns the emulator's current view of a stream buffer.
func (e *Emulator) Buffer(contextID uint32, bufferType types.BufferType) []byte {
	return e.stream(contextID).buffers[bufferType]
}

// ClosedStreams returns the directions the plugin closed on a stream.
func (e *Emulator) ClosedStreams(contextID uint32) []types.StreamType {
	return e.stream(contextID).closed
}

// SharedData returns the stored value and version for a key.
func (e *Emulator) SharedData(key string) (value []byte, cas uint32, ok bool) {
	entry, ok := e.shared[key]
	return entry.value, entry.cas, ok
}

// MetricValue returns the current value of a metric by name.
func (e *Emulator) MetricValue(name string) (uint64, bool) {
	id, ok := e.metricIDs[name]
	if !ok {
		return 0, false
	}
	return e.metrics[id].value, true
}

// QueueLen returns the number of values sitting in a queue.
func (e *Emulator) QueueLen(queueID uint32) int {
	return len(e.queues[queueID])
}

// DoneSignals returns the contexts that called proxy_done.
func (e *Emulator) DoneSignals() []uint32 {
	return e.doneSignals
}
