package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "host call error",
			err:      HostCall("proxy_get_buffer_bytes", 2),
			contains: []string{"[hostcall]", "bad_argument", "env.proxy_get_buffer_bytes", "status 2"},
		},
		{
			name:     "unknown status",
			err:      HostCall("proxy_log", 99),
			contains: []string{"[hostcall]", "unknown_status", "status 99"},
		},
		{
			name:     "malformed map",
			err:      MalformedMap("proxy_get_header_map_pairs", "pair 3 reads past end"),
			contains: []string{"[decode]", "malformed_map", "pair 3 reads past end"},
		},
		{
			name:     "error with cause",
			err:      Instantiation(errors.New("underlying error")),
			contains: []string{"[vmhost]", "instantiation", "caused by", "underlying error"},
		},
		{
			name:     "memory range",
			err:      InvalidMemoryAccess("proxy_http_call", 1024, 64),
			contains: []string{"invalid_memory_access", "1024", "64", "out of bounds"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestHostCall_StatusMapping(t *testing.T) {
	tests := []struct {
		status uint32
		kind   Kind
	}{
		{1, KindNotFound},
		{2, KindBadArgument},
		{7, KindEmpty},
		{8, KindCasMismatch},
		{10, KindInternalFailure},
		{12, KindUnimplemented},
		{42, KindUnknownStatus},
	}

	for _, tt := range tests {
		err := HostCall("proxy_test", tt.status)
		if err.Kind != tt.kind {
			t.Errorf("status %d: got kind %q, want %q", tt.status, err.Kind, tt.kind)
		}
		if err.Status != tt.status {
			t.Errorf("status %d not preserved, got %d", tt.status, err.Status)
		}
	}
}

func TestError_Is(t *testing.T) {
	err := HostCall("proxy_get_header_map_value", 1)

	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFound host call should match ErrNotFound")
	}
	if errors.Is(err, ErrEmpty) {
		t.Error("NotFound host call should not match ErrEmpty")
	}

	// Empty and NotFound must be distinguishable.
	empty := HostCall("proxy_get_buffer_bytes", 7)
	if !errors.Is(empty, ErrEmpty) {
		t.Error("Empty host call should match ErrEmpty")
	}
	if errors.Is(empty, ErrNotFound) {
		t.Error("Empty host call should not match ErrNotFound")
	}

	// Decode errors do not match host-call sentinels of any kind.
	if errors.Is(MalformedMap("f", "x"), ErrNotFound) {
		t.Error("decode error should not match host-call sentinel")
	}
	if !errors.Is(MalformedMap("f", "x"), ErrMalformedMap) {
		t.Error("malformed map error should match ErrMalformedMap")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseVMHost, KindInstantiation, cause, "wrapping")

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find wrapped cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}
