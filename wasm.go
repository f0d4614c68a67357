package proxywasmsdk

// Memory represents guest linear memory as seen from the host side of the
// boundary. Reads return copies; the backing storage belongs to the guest.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// Allocator requests scratch memory inside the guest. Hosts use it to place
// variable-length call results where the guest can reach them.
type Allocator interface {
	// Allocate returns the guest offset of a fresh buffer of the given size.
	// A zero return means the guest allocator is exhausted.
	Allocate(size uint32) (uint32, error)
}
