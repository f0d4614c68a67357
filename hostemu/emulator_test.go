package hostemu_test

import (
	"errors"
	"testing"
	"time"

	sdkerrors "github.com/wippyai/proxywasm-sdk/errors"
	"github.com/wippyai/proxywasm-sdk/hostemu"
	"github.com/wippyai/proxywasm-sdk/proxywasm"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// taggingPlugin stamps requests with a configured header, counts them in a
// metric, and fronts an auth service through an outbound call.
type taggingPlugin struct {
	types.DefaultRootContext
	headerName string
	requests   uint32
}

func (p *taggingPlugin) OnConfigure(size int) bool {
	if size == 0 {
		return true
	}
	config, err := proxywasm.GetPluginConfiguration()
	if err != nil {
		proxywasm.LogErrorf("read configuration: %v", err)
		return false
	}
	p.headerName = string(config)
	var defErr error
	p.requests, defErr = proxywasm.DefineMetric(types.MetricTypeCounter, "plugin.requests_total")
	return defErr == nil
}

func (p *taggingPlugin) NewHttpContext(contextID uint32) types.HttpContext {
	return &taggingStream{plugin: p}
}

type taggingStream struct {
	types.DefaultHttpContext
	plugin      *taggingPlugin
	callPending bool
}

func (s *taggingStream) OnHttpRequestHeaders(int, bool) types.Action {
	_ = proxywasm.IncrementMetric(s.plugin.requests, 1)
	if err := proxywasm.AddHeaderMapValue(types.MapTypeHttpRequestHeaders, s.plugin.headerName, "1"); err != nil {
		proxywasm.LogErrorf("tag request: %v", err)
	}

	if _, err := proxywasm.GetHeaderMapValue(types.MapTypeHttpRequestHeaders, "authorization"); err == nil {
		return types.ActionContinue
	}
	_, err := proxywasm.DispatchHttpCall("auth-cluster",
		[][2]string{{":path", "/check"}, {":method", "GET"}, {":authority", "auth"}},
		nil, nil, 5*time.Second)
	if err != nil {
		proxywasm.LogErrorf("auth call: %v", err)
		return types.ActionContinue
	}
	s.callPending = true
	return types.ActionPause
}

func (s *taggingStream) OnHttpCallResponse(token uint32, _, bodySize, _ int) {
	s.callPending = false
	status, err := proxywasm.GetHeaderMapValue(types.MapTypeHttpCallResponseHeaders, ":status")
	if err != nil || status != "200" {
		_ = proxywasm.SendHttpResponse(403, [][2]string{{"content-type", "text/plain"}}, []byte("denied"), -1)
		return
	}
	if bodySize > 0 {
		if body, err := proxywasm.GetHttpCallResponseBody(0, bodySize); err == nil {
			proxywasm.LogDebugf("auth verdict: %s", body)
		}
	}
	_ = proxywasm.ContinueStream(types.StreamTypeHttpRequest)
}

func newEmulator(t *testing.T, opts ...hostemu.Option) *hostemu.Emulator {
	t.Helper()
	plugin := &taggingPlugin{}
	proxywasm.SetNewRootContext(func(uint32) types.RootContext { return plugin })
	t.Cleanup(func() { proxywasm.SetNewRootContext(nil) })

	emu := hostemu.New(opts...)
	if !emu.StartVM() {
		t.Fatal("vm start rejected")
	}
	if !emu.ConfigurePlugin() {
		t.Fatal("configuration rejected")
	}
	return emu
}

func TestRequestTaggingAndMetric(t *testing.T) {
	emu := newEmulator(t, hostemu.WithPluginConfiguration([]byte("x-tagged")))

	id := emu.NewHttpStream([][2]string{
		{":path", "/orders"},
		{"authorization", "Bearer token"},
	})
	if action := emu.CallOnRequestHeaders(id, true); action != types.ActionContinue {
		t.Fatalf("action = %v, want Continue", action)
	}

	headers := emu.HeaderMap(id, types.MapTypeHttpRequestHeaders)
	var tagged bool
	for _, h := range headers {
		if h[0] == "x-tagged" && h[1] == "1" {
			tagged = true
		}
	}
	if !tagged {
		t.Fatalf("request not tagged: %v", headers)
	}

	if v, ok := emu.MetricValue("plugin.requests_total"); !ok || v != 1 {
		t.Fatalf("requests_total = %d, %v", v, ok)
	}
	emu.CompleteStream(id)
}

func TestAuthCalloutPausesAndResumes(t *testing.T) {
	emu := newEmulator(t, hostemu.WithPluginConfiguration([]byte("x-tagged")))

	id := emu.NewHttpStream([][2]string{{":path", "/admin"}})
	if action := emu.CallOnRequestHeaders(id, true); action != types.ActionPause {
		t.Fatalf("action = %v, want Pause while call is in flight", action)
	}

	calls := emu.PendingCalls()
	if len(calls) != 1 {
		t.Fatalf("pending calls = %d, want 1", len(calls))
	}
	if calls[0].Upstream != "auth-cluster" || calls[0].Timeout != 5*time.Second {
		t.Fatalf("unexpected call: %+v", calls[0])
	}

	emu.DeliverHttpCallResponse(calls[0].Token,
		[][2]string{{":status", "200"}}, []byte(`{"ok":true}`), nil)

	if len(emu.PendingCalls()) != 0 {
		t.Fatal("call not consumed")
	}
	if got := emu.LogsContaining("auth verdict"); len(got) != 1 {
		t.Fatalf("verdict logs = %v", got)
	}
	if len(emu.LocalResponses()) != 0 {
		t.Fatalf("unexpected local response: %v", emu.LocalResponses())
	}
	emu.CompleteStream(id)
}

func TestAuthRejectionSendsLocalResponse(t *testing.T) {
	emu := newEmulator(t, hostemu.WithPluginConfiguration([]byte("x-tagged")))

	id := emu.NewHttpStream([][2]string{{":path", "/admin"}})
	emu.CallOnRequestHeaders(id, true)
	calls := emu.PendingCalls()
	emu.DeliverHttpCallResponse(calls[0].Token, [][2]string{{":status", "401"}}, nil, nil)

	responses := emu.LocalResponses()
	if len(responses) != 1 {
		t.Fatalf("local responses = %v", responses)
	}
	if responses[0].StatusCode != 403 || string(responses[0].Body) != "denied" {
		t.Fatalf("unexpected response: %+v", responses[0])
	}
	if responses[0].ContextID != id {
		t.Fatalf("response attributed to context %d, want %d", responses[0].ContextID, id)
	}
	emu.CompleteStream(id)
}

// quotaRoot exercises shared data, queues, and the tick timer.
type quotaRoot struct {
	types.DefaultRootContext
	queueID uint32
	drained [][]byte
}

func (r *quotaRoot) OnVMStart(int) bool {
	var err error
	r.queueID, err = proxywasm.RegisterSharedQueue("quota-events")
	if err != nil {
		return false
	}
	return proxywasm.SetTickPeriod(30*time.Second) == nil
}

func (r *quotaRoot) OnTick() {
	value, cas, err := proxywasm.GetSharedData("quota")
	if errors.Is(err, sdkerrors.ErrNotFound) {
		_ = proxywasm.SetSharedData("quota", []byte{1}, 0)
		return
	}
	if err != nil {
		return
	}
	next := append([]byte{}, value...)
	next[0]++
	if err := proxywasm.SetSharedData("quota", next, cas); errors.Is(err, sdkerrors.ErrCasMismatch) {
		proxywasm.LogWarn("quota raced, retrying next tick")
	}
}

func (r *quotaRoot) OnQueueReady(queueID uint32) {
	for {
		value, err := proxywasm.DequeueSharedQueue(queueID)
		if errors.Is(err, sdkerrors.ErrEmpty) {
			return
		}
		if err != nil {
			proxywasm.LogErrorf("dequeue: %v", err)
			return
		}
		r.drained = append(r.drained, value)
	}
}

func TestSharedDataTickAndQueues(t *testing.T) {
	root := &quotaRoot{}
	proxywasm.SetNewRootContext(func(uint32) types.RootContext { return root })
	t.Cleanup(func() { proxywasm.SetNewRootContext(nil) })

	emu := hostemu.New()
	if !emu.StartVM() {
		t.Fatal("vm start rejected")
	}
	if emu.TickPeriod() != 30*time.Second {
		t.Fatalf("tick period = %v", emu.TickPeriod())
	}

	emu.Tick()
	emu.Tick()
	emu.Tick()
	value, cas, ok := emu.SharedData("quota")
	if !ok || value[0] != 3 {
		t.Fatalf("quota = %v (ok=%v)", value, ok)
	}
	if cas == 0 {
		t.Fatal("cas version never advanced")
	}

	// Another VM pushes onto the queue; the root drains on the ready signal.
	if err := proxywasm.EnqueueSharedQueue(root.queueID, []byte("evt-1")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := proxywasm.EnqueueSharedQueue(root.queueID, []byte("evt-2")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	emu.RaiseQueueReady(root.queueID)

	if len(root.drained) != 2 || string(root.drained[1]) != "evt-2" {
		t.Fatalf("drained = %q", root.drained)
	}
	if emu.QueueLen(root.queueID) != 0 {
		t.Fatal("queue not drained")
	}
}

// bodyRewriter exercises buffer reads and writes.
type bodyRewriter struct {
	types.DefaultRootContext
}

func (r *bodyRewriter) NewHttpContext(uint32) types.HttpContext {
	return &rewriteStream{}
}

type rewriteStream struct {
	types.DefaultHttpContext
}

func (s *rewriteStream) OnHttpRequestBody(bodySize int, endOfStream bool) types.Action {
	if !endOfStream {
		return types.ActionPause
	}
	body, err := proxywasm.GetHttpRequestBody(0, bodySize)
	if err != nil {
		proxywasm.LogErrorf("read body: %v", err)
		return types.ActionContinue
	}
	rewritten := append([]byte("v2:"), body...)
	if err := proxywasm.SetBuffer(types.BufferTypeHttpRequestBody, 0, bodySize, rewritten); err != nil {
		proxywasm.LogErrorf("write body: %v", err)
	}
	return types.ActionContinue
}

func TestBodyBufferingAndRewrite(t *testing.T) {
	proxywasm.SetNewRootContext(func(uint32) types.RootContext { return &bodyRewriter{} })
	t.Cleanup(func() { proxywasm.SetNewRootContext(nil) })

	emu := hostemu.New()
	emu.StartVM()
	emu.ConfigurePlugin()

	id := emu.NewHttpStream([][2]string{{":path", "/ingest"}})
	emu.CallOnRequestHeaders(id, false)

	if action := emu.CallOnRequestBody(id, []byte("part1,"), false); action != types.ActionPause {
		t.Fatalf("mid-stream action = %v, want Pause", action)
	}
	if action := emu.CallOnRequestBody(id, []byte("part2"), true); action != types.ActionContinue {
		t.Fatalf("final action = %v, want Continue", action)
	}
	if got := string(emu.Buffer(id, types.BufferTypeHttpRequestBody)); got != "v2:part1,part2" {
		t.Fatalf("body = %q", got)
	}
	emu.CompleteStream(id)
}

// echoFilter exercises the TCP path.
type echoRoot struct {
	types.DefaultRootContext
}

func (r *echoRoot) NewTcpContext(uint32) types.TcpContext {
	return &echoConn{}
}

type echoConn struct {
	types.DefaultTcpContext
	closedBy types.PeerType
}

func (c *echoConn) OnNewConnection() types.Action {
	proxywasm.LogInfo("connection open")
	return types.ActionContinue
}

func (c *echoConn) OnDownstreamData(dataSize int, _ bool) types.Action {
	data, err := proxywasm.GetBuffer(types.BufferTypeDownstreamData, 0, dataSize)
	if err != nil {
		return types.ActionContinue
	}
	proxywasm.LogDebugf("downstream %d bytes: %q", dataSize, data)
	return types.ActionContinue
}

func (c *echoConn) OnDownstreamClose(peer types.PeerType) {
	c.closedBy = peer
}

func TestTcpConnectionLifecycle(t *testing.T) {
	proxywasm.SetNewRootContext(func(uint32) types.RootContext { return &echoRoot{} })
	t.Cleanup(func() { proxywasm.SetNewRootContext(nil) })

	emu := hostemu.New()
	emu.StartVM()
	emu.ConfigurePlugin()

	id := emu.NewTcpStream()
	if action := emu.CallOnNewConnection(id); action != types.ActionContinue {
		t.Fatalf("action = %v", action)
	}
	emu.CallOnDownstreamData(id, []byte("hello"), false)
	emu.CloseTcpStream(id, types.PeerTypeRemote)
	emu.CompleteStream(id)

	if got := emu.LogsContaining("downstream 5 bytes"); len(got) != 1 {
		t.Fatalf("logs = %v", got)
	}
}

func TestPropertiesAndClock(t *testing.T) {
	fixed := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	proxywasm.SetNewRootContext(nil)

	emu := hostemu.New(
		hostemu.WithClock(func() time.Time { return fixed }),
		hostemu.WithProperty([]string{"plugin_root_id"}, []byte("tagger")),
	)
	emu.StartVM()

	now, err := proxywasm.GetCurrentTime()
	if err != nil {
		t.Fatalf("GetCurrentTime: %v", err)
	}
	if !now.Equal(fixed) {
		t.Fatalf("now = %v, want %v", now, fixed)
	}

	value, err := proxywasm.GetProperty([]string{"plugin_root_id"})
	if err != nil || string(value) != "tagger" {
		t.Fatalf("property = %q, %v", value, err)
	}
	if _, err := proxywasm.GetProperty([]string{"missing"}); !errors.Is(err, sdkerrors.ErrNotFound) {
		t.Fatalf("missing property error = %v", err)
	}
	if err := proxywasm.SetProperty([]string{"request", "id"}, []byte("abc")); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
}
