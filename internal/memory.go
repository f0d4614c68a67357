package internal

import "unsafe"

// pinned keeps buffers handed out through proxy_on_memory_allocate reachable
// until the module consumes them back. The host only holds a raw pointer,
// which the garbage collector cannot see.
var pinned = make(map[*byte][]byte)

// ProxyOnMemoryAllocate services the host's scratch-memory requests. The
// host writes call results into the returned buffer and reports the pointer
// back through an out parameter of the originating call.
func ProxyOnMemoryAllocate(size uint32) *byte {
	if size == 0 {
		return nil
	}
	buf := make([]byte, size)
	ptr := &buf[0]
	pinned[ptr] = buf
	return ptr
}

// ConsumeHostBuffer copies a host write-back into a module-owned slice and
// releases the pin. The raw pointer must not be used after this returns;
// buffers never outlive the host-call round trip that produced them.
func ConsumeHostBuffer(ptr *byte, size int32) []byte {
	if ptr == nil {
		return nil
	}
	delete(pinned, ptr)
	if size <= 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice(ptr, size))
	return out
}

// PinnedBuffers reports how many allocations are currently outstanding.
func PinnedBuffers() int {
	return len(pinned)
}

// BytePtr returns the data pointer of a slice for an outgoing call, or nil
// for empty input. Valid only for the duration of the call.
func BytePtr(b []byte) *byte {
	if len(b) == 0 {
		return nil
	}
	return &b[0]
}

// StringPtr returns the data pointer of a string for an outgoing call, or
// nil for the empty string. Valid only for the duration of the call.
func StringPtr(s string) *byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.StringData(s)
}
