package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseHostCall Phase = "hostcall" // module to host import call
	PhaseDecode   Phase = "decode"   // host to module marshaling
	PhaseEncode   Phase = "encode"   // module to host marshaling
	PhaseDispatch Phase = "dispatch" // entry-point routing
	PhaseMemory   Phase = "memory"   // boundary allocation
	PhaseVMHost   Phase = "vmhost"   // host-side runner operations
)

// Kind categorizes the error
type Kind string

const (
	// Host status outcomes. These mirror the ABI status codes a host import
	// returns; all of them are recoverable from the calling context.
	KindNotFound        Kind = "not_found"
	KindEmpty           Kind = "empty"
	KindBadArgument     Kind = "bad_argument"
	KindCasMismatch     Kind = "cas_mismatch"
	KindInternalFailure Kind = "internal_failure"
	KindUnimplemented   Kind = "unimplemented"
	KindUnknownStatus   Kind = "unknown_status"

	// Marshaling and runner failures.
	KindMalformedMap        Kind = "malformed_map"
	KindInvalidMemoryAccess Kind = "invalid_memory_access"
	KindMissingExport       Kind = "missing_export"
	KindABIMismatch         Kind = "abi_mismatch"
	KindInstantiation       Kind = "instantiation"
	KindAllocation          Kind = "allocation"
)

// Error is the structured error type used throughout the SDK
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Function string // ABI function name, e.g. "proxy_get_buffer_bytes"
	Status   uint32 // raw host status code, meaningful for PhaseHostCall
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Function != "" {
		b.WriteString(" in env.")
		b.WriteString(e.Function)
	}

	if e.Phase == PhaseHostCall {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two errors match when their
// phase and kind agree, so callers can branch on outcome classes with
// errors.Is without caring which import produced them.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Sentinel targets for errors.Is. Each matches every error of its class
// regardless of the originating ABI function.
var (
	ErrNotFound        = &Error{Phase: PhaseHostCall, Kind: KindNotFound}
	ErrEmpty           = &Error{Phase: PhaseHostCall, Kind: KindEmpty}
	ErrBadArgument     = &Error{Phase: PhaseHostCall, Kind: KindBadArgument}
	ErrCasMismatch     = &Error{Phase: PhaseHostCall, Kind: KindCasMismatch}
	ErrInternalFailure = &Error{Phase: PhaseHostCall, Kind: KindInternalFailure}
	ErrUnimplemented   = &Error{Phase: PhaseHostCall, Kind: KindUnimplemented}
	ErrMalformedMap    = &Error{Phase: PhaseDecode, Kind: KindMalformedMap}
)

// statusKinds maps raw ABI status codes to error kinds. Status 0 (Ok) never
// reaches this table.
var statusKinds = map[uint32]Kind{
	1:  KindNotFound,
	2:  KindBadArgument,
	7:  KindEmpty,
	8:  KindCasMismatch,
	10: KindInternalFailure,
	12: KindUnimplemented,
}

// HostCall creates an error for a host import that returned a non-Ok status
func HostCall(function string, status uint32) *Error {
	kind, ok := statusKinds[status]
	if !ok {
		kind = KindUnknownStatus
	}
	return &Error{
		Phase:    PhaseHostCall,
		Kind:     kind,
		Function: function,
		Status:   status,
	}
}

// MalformedMap creates an error for a serialized header map that declares
// lengths reaching past the buffer the host handed over
func MalformedMap(function, detail string) *Error {
	return &Error{
		Phase:    PhaseDecode,
		Kind:     KindMalformedMap,
		Function: function,
		Detail:   detail,
	}
}

// InvalidMemoryAccess creates an error for a guest pointer/length pair that
// does not fit in linear memory
func InvalidMemoryAccess(function string, offset, length uint32) *Error {
	return &Error{
		Phase:    PhaseVMHost,
		Kind:     KindInvalidMemoryAccess,
		Function: function,
		Detail:   fmt.Sprintf("range [%d, %d+%d) out of bounds", offset, offset, length),
	}
}

// MissingExport creates an error for a plugin binary lacking a required export
func MissingExport(name string) *Error {
	return &Error{
		Phase:  PhaseVMHost,
		Kind:   KindMissingExport,
		Detail: fmt.Sprintf("plugin does not export %q", name),
	}
}

// ABIMismatch creates an error for a plugin pinned to a different ABI version
func ABIMismatch(detail string) *Error {
	return &Error{
		Phase:  PhaseVMHost,
		Kind:   KindABIMismatch,
		Detail: detail,
	}
}

// Instantiation wraps a wazero instantiation failure
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseVMHost,
		Kind:   KindInstantiation,
		Detail: "instantiate plugin module",
		Cause:  cause,
	}
}

// AllocationFailed creates an error for a guest allocator that returned no
// memory for a host write-back
func AllocationFailed(size uint32) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("guest allocator returned null for %d bytes", size),
	}
}

// Wrap wraps an existing error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
