package vmhost

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	proxywasmsdk "github.com/wippyai/proxywasm-sdk"
	sdkerrors "github.com/wippyai/proxywasm-sdk/errors"
)

// guestMemory adapts a wazero module's linear memory to the Memory
// interface. All reads copy; wazero hands out views into memory that a
// guest allocation can move.
type guestMemory struct {
	mem api.Memory
}

func (g guestMemory) Read(offset, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	view, ok := g.mem.Read(offset, length)
	if !ok {
		return nil, sdkerrors.InvalidMemoryAccess("read", offset, length)
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

func (g guestMemory) Write(offset uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !g.mem.Write(offset, data) {
		return sdkerrors.InvalidMemoryAccess("write", offset, uint32(len(data)))
	}
	return nil
}

func (g guestMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := g.mem.ReadUint32Le(offset)
	if !ok {
		return 0, sdkerrors.InvalidMemoryAccess("read_u32", offset, 4)
	}
	return v, nil
}

func (g guestMemory) WriteU32(offset, value uint32) error {
	if !g.mem.WriteUint32Le(offset, value) {
		return sdkerrors.InvalidMemoryAccess("write_u32", offset, 4)
	}
	return nil
}

func (g guestMemory) WriteU64(offset uint32, value uint64) error {
	if !g.mem.WriteUint64Le(offset, value) {
		return sdkerrors.InvalidMemoryAccess("write_u64", offset, 8)
	}
	return nil
}

var _ proxywasmsdk.Memory = guestMemory{}

// guestAllocator asks the plugin for scratch memory through its
// proxy_on_memory_allocate export.
type guestAllocator struct {
	ctx      context.Context
	allocate api.Function
}

func (g guestAllocator) Allocate(size uint32) (uint32, error) {
	results, err := g.allocate.Call(g.ctx, uint64(size))
	if err != nil {
		return 0, sdkerrors.Wrap(sdkerrors.PhaseMemory, sdkerrors.KindAllocation, err, "proxy_on_memory_allocate trapped")
	}
	offset := uint32(results[0])
	if offset == 0 && size > 0 {
		return 0, sdkerrors.AllocationFailed(size)
	}
	return offset, nil
}

var _ proxywasmsdk.Allocator = guestAllocator{}

// writeResult places a variable-length result where the guest can reach it:
// allocate in the guest, copy the value in, then store the (pointer, size)
// pair through the out parameters of the originating import.
func writeResult(mem proxywasmsdk.Memory, alloc proxywasmsdk.Allocator, value []byte, returnData, returnSize uint32) error {
	if len(value) == 0 {
		if err := mem.WriteU32(returnData, 0); err != nil {
			return err
		}
		return mem.WriteU32(returnSize, 0)
	}
	offset, err := alloc.Allocate(uint32(len(value)))
	if err != nil {
		return err
	}
	if err := mem.Write(offset, value); err != nil {
		return err
	}
	if err := mem.WriteU32(returnData, offset); err != nil {
		return err
	}
	return mem.WriteU32(returnSize, uint32(len(value)))
}
