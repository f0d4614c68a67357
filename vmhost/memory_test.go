package vmhost

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	sdkerrors "github.com/wippyai/proxywasm-sdk/errors"
)

// fakeGuest is a flat linear memory with a bump allocator, standing in for
// a wasm instance.
type fakeGuest struct {
	mem  []byte
	next uint32
	fail bool
}

func newFakeGuest(size int) *fakeGuest {
	return &fakeGuest{mem: make([]byte, size), next: 8}
}

func (f *fakeGuest) Read(offset, length uint32) ([]byte, error) {
	if int(offset)+int(length) > len(f.mem) {
		return nil, sdkerrors.InvalidMemoryAccess("read", offset, length)
	}
	out := make([]byte, length)
	copy(out, f.mem[offset:])
	return out, nil
}

func (f *fakeGuest) Write(offset uint32, data []byte) error {
	if int(offset)+len(data) > len(f.mem) {
		return sdkerrors.InvalidMemoryAccess("write", offset, uint32(len(data)))
	}
	copy(f.mem[offset:], data)
	return nil
}

func (f *fakeGuest) ReadU32(offset uint32) (uint32, error) {
	b, err := f.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (f *fakeGuest) WriteU32(offset, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return f.Write(offset, b[:])
}

func (f *fakeGuest) WriteU64(offset uint32, value uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	return f.Write(offset, b[:])
}

func (f *fakeGuest) Allocate(size uint32) (uint32, error) {
	if f.fail {
		return 0, sdkerrors.AllocationFailed(size)
	}
	offset := f.next
	f.next += size
	if int(f.next) > len(f.mem) {
		return 0, sdkerrors.AllocationFailed(size)
	}
	return offset, nil
}

func TestWriteResultAllocatesAndReportsPointer(t *testing.T) {
	g := newFakeGuest(256)
	const retData, retSize = 0, 4

	if err := writeResult(g, g, []byte("payload"), retData, retSize); err != nil {
		t.Fatalf("writeResult: %v", err)
	}

	ptr, _ := g.ReadU32(retData)
	size, _ := g.ReadU32(retSize)
	if size != 7 {
		t.Fatalf("size = %d, want 7", size)
	}
	got, _ := g.Read(ptr, size)
	if !bytes.Equal(got, []byte("payload")) {
		t.Fatalf("payload = %q", got)
	}
}

func TestWriteResultEmptyValueWritesNullPointer(t *testing.T) {
	g := newFakeGuest(64)
	const retData, retSize = 16, 20
	g.WriteU32(retData, 0xdead)
	g.WriteU32(retSize, 0xbeef)

	if err := writeResult(g, g, nil, retData, retSize); err != nil {
		t.Fatalf("writeResult: %v", err)
	}
	if ptr, _ := g.ReadU32(retData); ptr != 0 {
		t.Fatalf("ptr = %d, want 0", ptr)
	}
	if size, _ := g.ReadU32(retSize); size != 0 {
		t.Fatalf("size = %d, want 0", size)
	}
}

func TestWriteResultSurfacesAllocationFailure(t *testing.T) {
	g := newFakeGuest(64)
	g.fail = true

	err := writeResult(g, g, []byte("x"), 0, 4)
	if err == nil {
		t.Fatal("expected error")
	}
	var sdkErr *sdkerrors.Error
	if !errors.As(err, &sdkErr) || sdkErr.Kind != sdkerrors.KindAllocation {
		t.Fatalf("error = %v, want allocation kind", err)
	}
}
