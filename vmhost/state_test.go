package vmhost

import (
	"bytes"
	"testing"

	"go.uber.org/zap"

	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

func TestBufferScopingByEffectiveContext(t *testing.T) {
	s := newHostState(zap.NewNop())
	s.vmConfig = []byte("vm-config")

	s.effectiveID = 2
	s.context(2).buffers[types.BufferTypeHttpRequestBody] = []byte("stream two")
	s.effectiveID = 3
	s.context(3).buffers[types.BufferTypeHttpRequestBody] = []byte("stream three")

	buf, st := s.getBuffer(types.BufferTypeHttpRequestBody, 0, -1)
	if st != types.StatusOK || string(buf) != "stream three" {
		t.Fatalf("got %q, %v", buf, st)
	}

	s.effectiveID = 2
	buf, st = s.getBuffer(types.BufferTypeHttpRequestBody, 7, -1)
	if st != types.StatusOK || string(buf) != "two" {
		t.Fatalf("ranged read = %q, %v", buf, st)
	}

	// Configuration buffers resolve regardless of effective context.
	buf, st = s.getBuffer(types.BufferTypeVMConfiguration, 0, -1)
	if st != types.StatusOK || string(buf) != "vm-config" {
		t.Fatalf("vm config = %q, %v", buf, st)
	}

	if _, st = s.getBuffer(types.BufferTypeHttpResponseBody, 0, -1); st != types.StatusNotFound {
		t.Fatalf("absent buffer status = %v", st)
	}
	if _, st = s.getBuffer(types.BufferTypePluginConfiguration, 0, -1); st != types.StatusEmpty {
		t.Fatalf("empty config status = %v", st)
	}
}

func TestSetBufferSplice(t *testing.T) {
	s := newHostState(zap.NewNop())
	s.effectiveID = 2
	s.context(2).buffers[types.BufferTypeHttpRequestBody] = []byte("hello world")

	if st := s.setBuffer(types.BufferTypeHttpRequestBody, 6, 5, []byte("wazero")); st != types.StatusOK {
		t.Fatalf("status = %v", st)
	}
	if got := s.context(2).buffers[types.BufferTypeHttpRequestBody]; !bytes.Equal(got, []byte("hello wazero")) {
		t.Fatalf("buffer = %q", got)
	}

	if st := s.setBuffer(types.BufferTypeVMConfiguration, 0, 0, []byte("x")); st != types.StatusBadArgument {
		t.Fatalf("config write status = %v", st)
	}
	if st := s.setBuffer(types.BufferTypeHttpRequestBody, 100, 0, []byte("x")); st != types.StatusBadArgument {
		t.Fatalf("out-of-range start status = %v", st)
	}
}

func TestMapMutations(t *testing.T) {
	s := newHostState(zap.NewNop())
	s.effectiveID = 2
	mt := types.MapTypeHttpRequestHeaders
	s.context(2).maps[mt] = [][2]string{
		{"set-cookie", "a=1"},
		{"host", "example.com"},
		{"set-cookie", "b=2"},
	}

	if v, st := s.getMapValue(mt, "host"); st != types.StatusOK || v != "example.com" {
		t.Fatalf("host = %q, %v", v, st)
	}
	if _, st := s.getMapValue(mt, "absent"); st != types.StatusNotFound {
		t.Fatalf("absent status = %v", st)
	}

	s.addMapValue(mt, "x-extra", "1")
	s.replaceMapValue(mt, "set-cookie", "only")
	s.removeMapValue(mt, "host")

	got := s.context(2).maps[mt]
	want := [][2]string{{"x-extra", "1"}, {"set-cookie", "only"}}
	if len(got) != len(want) {
		t.Fatalf("map = %v, want %v", got, want)
	}
	for _, p := range want {
		if v, st := s.getMapValue(mt, p[0]); st != types.StatusOK || v != p[1] {
			t.Fatalf("%s = %q, %v", p[0], v, st)
		}
	}
}

func TestSharedDataVersioning(t *testing.T) {
	s := newHostState(zap.NewNop())

	if _, _, st := s.getSharedData("k"); st != types.StatusNotFound {
		t.Fatalf("missing key status = %v", st)
	}
	if st := s.setSharedData("k", []byte("v1"), 0); st != types.StatusOK {
		t.Fatalf("unconditional write status = %v", st)
	}
	_, cas, st := s.getSharedData("k")
	if st != types.StatusOK || cas == 0 {
		t.Fatalf("cas = %d, %v", cas, st)
	}
	if st := s.setSharedData("k", []byte("v2"), cas); st != types.StatusOK {
		t.Fatalf("matching cas status = %v", st)
	}
	if st := s.setSharedData("k", []byte("v3"), cas); st != types.StatusCasMismatch {
		t.Fatalf("stale cas status = %v", st)
	}
	if st := s.setSharedData("fresh", nil, 99); st != types.StatusCasMismatch {
		t.Fatalf("cas on missing key status = %v", st)
	}
}

func TestQueuesAndCallTokens(t *testing.T) {
	s := newHostState(zap.NewNop())

	id, _ := s.registerQueue("events")
	if again, _ := s.registerQueue("events"); again != id {
		t.Fatalf("re-register returned %d, want %d", again, id)
	}
	if _, st := s.resolveQueue("nope"); st != types.StatusNotFound {
		t.Fatalf("unknown queue status = %v", st)
	}
	if _, st := s.dequeue(id); st != types.StatusEmpty {
		t.Fatalf("empty dequeue status = %v", st)
	}
	s.enqueue(id, []byte("one"))
	s.enqueue(id, []byte("two"))
	head, st := s.dequeue(id)
	if st != types.StatusOK || string(head) != "one" {
		t.Fatalf("head = %q, %v", head, st)
	}

	t1, _ := s.httpCall(PendingCall{Upstream: "a"})
	t2, _ := s.httpCall(PendingCall{Upstream: "b"})
	if t1 == t2 {
		t.Fatal("tokens must be unique")
	}
	call, ok := s.takePendingCall(t1)
	if !ok || call.Upstream != "a" {
		t.Fatalf("take = %+v, %v", call, ok)
	}
	if _, ok := s.takePendingCall(t1); ok {
		t.Fatal("token consumed twice")
	}
	if len(s.pendingCalls) != 1 || s.pendingCalls[0].Token != t2 {
		t.Fatalf("pending = %+v", s.pendingCalls)
	}
}

func TestHttpCallRecordsIssuingContext(t *testing.T) {
	s := newHostState(zap.NewNop())

	s.effectiveID = 2
	token, st := s.httpCall(PendingCall{Upstream: "auth"})
	if st != types.StatusOK {
		t.Fatalf("status = %v", st)
	}

	// Another delivery re-targets before the answer arrives.
	s.effectiveID = 5

	call, ok := s.takePendingCall(token)
	if !ok || call.ContextID != 2 {
		t.Fatalf("call = %+v, %v; want context 2", call, ok)
	}
}

func TestCallResponseWindowing(t *testing.T) {
	s := newHostState(zap.NewNop())
	s.effectiveID = 2

	if _, st := s.getBuffer(types.BufferTypeHttpCallResponseBody, 0, -1); st != types.StatusNotFound {
		t.Fatalf("outside window status = %v", st)
	}

	s.callResponse.active = true
	s.callResponse.body = []byte("verdict")
	s.callResponse.headers = [][2]string{{":status", "200"}}

	buf, st := s.getBuffer(types.BufferTypeHttpCallResponseBody, 0, -1)
	if st != types.StatusOK || string(buf) != "verdict" {
		t.Fatalf("body = %q, %v", buf, st)
	}
	if v, st := s.getMapValue(types.MapTypeHttpCallResponseHeaders, ":status"); st != types.StatusOK || v != "200" {
		t.Fatalf(":status = %q, %v", v, st)
	}
}

func TestMetricKinds(t *testing.T) {
	s := newHostState(zap.NewNop())

	counter, st := s.defineMetric(types.MetricTypeCounter, "requests")
	if st != types.StatusOK {
		t.Fatalf("define status = %v", st)
	}
	if again, st := s.defineMetric(types.MetricTypeCounter, "requests"); st != types.StatusOK || again != counter {
		t.Fatalf("redefine = %d, %v", again, st)
	}
	if _, st := s.defineMetric(types.MetricTypeGauge, "requests"); st != types.StatusBadArgument {
		t.Fatalf("type conflict status = %v", st)
	}

	s.incrementMetric(counter, 5)
	if st := s.incrementMetric(counter, -10); st != types.StatusBadArgument {
		t.Fatalf("counter underflow status = %v", st)
	}

	gauge, _ := s.defineMetric(types.MetricTypeGauge, "inflight")
	s.recordMetric(gauge, 7)
	s.incrementMetric(gauge, -10)
	if v, _ := s.getMetric(gauge); v != 0 {
		t.Fatalf("gauge clamped to %d, want 0", v)
	}

	if st := s.recordMetric(999, 1); st != types.StatusNotFound {
		t.Fatalf("unknown metric status = %v", st)
	}
}
