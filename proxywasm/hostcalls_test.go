package proxywasm_test

import (
	"errors"
	"testing"

	sdkerrors "github.com/wippyai/proxywasm-sdk/errors"
	"github.com/wippyai/proxywasm-sdk/hostemu"
	"github.com/wippyai/proxywasm-sdk/proxywasm"
	"github.com/wippyai/proxywasm-sdk/proxywasm/types"
)

// Wrappers must keep host outcome classes distinguishable: an empty buffer,
// a missing key, and a lost compare-and-swap race are different conditions
// and plugins branch on them.

func startEmulator(t *testing.T, opts ...hostemu.Option) *hostemu.Emulator {
	t.Helper()
	proxywasm.SetNewRootContext(nil)
	emu := hostemu.New(opts...)
	if !emu.StartVM() {
		t.Fatal("vm start rejected")
	}
	return emu
}

func TestEmptyAndMissingBuffersAreDistinct(t *testing.T) {
	startEmulator(t) // no VM configuration set

	_, err := proxywasm.GetVMConfiguration()
	if !errors.Is(err, sdkerrors.ErrEmpty) {
		t.Fatalf("empty configuration error = %v, want ErrEmpty", err)
	}
	if errors.Is(err, sdkerrors.ErrNotFound) {
		t.Fatal("ErrEmpty must not match ErrNotFound")
	}

	_, err = proxywasm.GetHttpRequestBody(0, 100)
	if !errors.Is(err, sdkerrors.ErrNotFound) {
		t.Fatalf("absent buffer error = %v, want ErrNotFound", err)
	}
}

func TestConfigurationBuffersAreReadOnly(t *testing.T) {
	startEmulator(t, hostemu.WithVMConfiguration([]byte("vm")))

	err := proxywasm.SetBuffer(types.BufferTypeVMConfiguration, 0, 2, []byte("xx"))
	if !errors.Is(err, sdkerrors.ErrBadArgument) {
		t.Fatalf("error = %v, want ErrBadArgument", err)
	}
}

func TestSharedDataCompareAndSwap(t *testing.T) {
	startEmulator(t)

	if err := proxywasm.SetSharedData("key", []byte("v1"), 0); err != nil {
		t.Fatalf("unconditional write: %v", err)
	}
	_, cas, err := proxywasm.GetSharedData("key")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}

	if err := proxywasm.SetSharedData("key", []byte("v2"), cas); err != nil {
		t.Fatalf("matching cas write: %v", err)
	}
	err = proxywasm.SetSharedData("key", []byte("v3"), cas)
	if !errors.Is(err, sdkerrors.ErrCasMismatch) {
		t.Fatalf("stale cas error = %v, want ErrCasMismatch", err)
	}

	_, _, err = proxywasm.GetSharedData("absent")
	if !errors.Is(err, sdkerrors.ErrNotFound) {
		t.Fatalf("missing key error = %v, want ErrNotFound", err)
	}
}

func TestQueueOutcomes(t *testing.T) {
	startEmulator(t)

	id, err := proxywasm.RegisterSharedQueue("events")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	again, err := proxywasm.RegisterSharedQueue("events")
	if err != nil || again != id {
		t.Fatalf("re-register: id=%d err=%v, want %d", again, err, id)
	}

	_, err = proxywasm.DequeueSharedQueue(id)
	if !errors.Is(err, sdkerrors.ErrEmpty) {
		t.Fatalf("drained queue error = %v, want ErrEmpty", err)
	}
	_, err = proxywasm.ResolveSharedQueue("other-vm", "nope")
	if !errors.Is(err, sdkerrors.ErrNotFound) {
		t.Fatalf("unknown queue error = %v, want ErrNotFound", err)
	}
}

func TestMetricLifecycle(t *testing.T) {
	startEmulator(t)

	id, err := proxywasm.DefineMetric(types.MetricTypeCounter, "requests")
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := proxywasm.IncrementMetric(id, 3); err != nil {
		t.Fatalf("increment: %v", err)
	}
	v, err := proxywasm.GetMetric(id)
	if err != nil || v != 3 {
		t.Fatalf("value = %d, %v", v, err)
	}

	// Redefining with a different type is rejected.
	_, err = proxywasm.DefineMetric(types.MetricTypeGauge, "requests")
	if !errors.Is(err, sdkerrors.ErrBadArgument) {
		t.Fatalf("type conflict error = %v, want ErrBadArgument", err)
	}

	// Counters cannot go negative.
	err = proxywasm.IncrementMetric(id, -10)
	if !errors.Is(err, sdkerrors.ErrBadArgument) {
		t.Fatalf("underflow error = %v, want ErrBadArgument", err)
	}
}

func TestSendHttpResponseCarriesHeadersAndBody(t *testing.T) {
	emu := startEmulator(t)

	err := proxywasm.SendHttpResponse(429,
		[][2]string{{"retry-after", "10"}}, []byte("slow down"), -1)
	if err != nil {
		t.Fatalf("SendHttpResponse: %v", err)
	}

	responses := emu.LocalResponses()
	if len(responses) != 1 {
		t.Fatalf("responses = %v", responses)
	}
	r := responses[0]
	if r.StatusCode != 429 || string(r.Body) != "slow down" {
		t.Fatalf("response = %+v", r)
	}
	if len(r.Headers) != 1 || r.Headers[0] != [2]string{"retry-after", "10"} {
		t.Fatalf("headers = %v", r.Headers)
	}
}
