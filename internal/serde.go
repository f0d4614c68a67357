package internal

import (
	"encoding/binary"
	"fmt"

	sdkerrors "github.com/wippyai/proxywasm-sdk/errors"
)

// Serialized header-map layout, fixed by proxy_abi_version_0_2_0:
//
//	u32 pair count
//	pair count times { u32 name length, u32 value length }
//	pair count times { name bytes, NUL, value bytes, NUL }
//
// All integers little-endian. Order and duplicate names are preserved.

const mapHeaderSize = 4
const mapPairEntrySize = 8

// SerializeMap flattens an ordered header list into the ABI wire form.
func SerializeMap(pairs [][2]string) []byte {
	size := mapHeaderSize
	for _, p := range pairs {
		size += mapPairEntrySize + len(p[0]) + len(p[1]) + 2
	}

	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(pairs)))
	for _, p := range pairs {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p[0])))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p[1])))
	}
	for _, p := range pairs {
		buf = append(buf, p[0]...)
		buf = append(buf, 0)
		buf = append(buf, p[1]...)
		buf = append(buf, 0)
	}
	return buf
}

// DeserializeMap reconstructs the ordered header list from the ABI wire
// form. Any declared count or length that would read past the buffer is a
// recoverable decode error, never a crash.
func DeserializeMap(raw []byte) ([][2]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	if len(raw) < mapHeaderSize {
		return nil, sdkerrors.MalformedMap("proxy_get_header_map_pairs",
			fmt.Sprintf("buffer of %d bytes is shorter than the count prefix", len(raw)))
	}

	// Bound the count before multiplying; the offset arithmetic must not
	// overflow int on 32-bit wasm builds.
	count := int(binary.LittleEndian.Uint32(raw[0:4]))
	if count < 0 || count > (len(raw)-mapHeaderSize)/mapPairEntrySize {
		return nil, sdkerrors.MalformedMap("proxy_get_header_map_pairs",
			fmt.Sprintf("declared %d pairs but buffer holds %d bytes", count, len(raw)))
	}
	dataOff := mapHeaderSize + count*mapPairEntrySize

	pairs := make([][2]string, 0, count)
	p := dataOff
	for i := 0; i < count; i++ {
		entry := mapHeaderSize + i*mapPairEntrySize
		nameLen := int(binary.LittleEndian.Uint32(raw[entry : entry+4]))
		valueLen := int(binary.LittleEndian.Uint32(raw[entry+4 : entry+8]))

		// Each field is followed by a NUL separator. Compare against the
		// remaining bytes instead of summing the declared lengths, which
		// could overflow.
		rest := len(raw) - p
		if nameLen < 0 || valueLen < 0 || nameLen >= rest || valueLen >= rest-nameLen-1 {
			return nil, sdkerrors.MalformedMap("proxy_get_header_map_pairs",
				fmt.Sprintf("pair %d declares lengths (%d, %d) past end of buffer", i, nameLen, valueLen))
		}

		name := string(raw[p : p+nameLen])
		p += nameLen + 1
		value := string(raw[p : p+valueLen])
		p += valueLen + 1
		pairs = append(pairs, [2]string{name, value})
	}
	return pairs, nil
}

// SerializePropertyPath joins path segments with NUL separators, the form
// proxy_get_property and proxy_set_property expect.
func SerializePropertyPath(path []string) []byte {
	if len(path) == 0 {
		return nil
	}
	size := 0
	for _, part := range path {
		size += len(part) + 1
	}
	buf := make([]byte, 0, size-1)
	for i, part := range path {
		buf = append(buf, part...)
		if i+1 < len(path) {
			buf = append(buf, 0)
		}
	}
	return buf
}
