package internal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	sdkerrors "github.com/wippyai/proxywasm-sdk/errors"
)

func TestSerializeMapRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		pairs [][2]string
	}{
		{name: "empty", pairs: nil},
		{name: "single", pairs: [][2]string{{":path", "/healthz"}}},
		{
			name: "preserves order and duplicates",
			pairs: [][2]string{
				{"set-cookie", "a=1"},
				{"content-type", "application/json"},
				{"set-cookie", "b=2"},
			},
		},
		{name: "empty value", pairs: [][2]string{{"x-empty", ""}}},
		{name: "empty name", pairs: [][2]string{{"", "orphan"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := SerializeMap(tc.pairs)
			got, err := DeserializeMap(raw)
			if err != nil {
				t.Fatalf("DeserializeMap: %v", err)
			}
			if len(tc.pairs) == 0 {
				if len(got) != 0 {
					t.Fatalf("expected no pairs, got %v", got)
				}
				return
			}
			if !reflect.DeepEqual(got, tc.pairs) {
				t.Fatalf("round trip mismatch:\n in: %v\nout: %v", tc.pairs, got)
			}
		})
	}
}

func TestSerializeMapWireLayout(t *testing.T) {
	raw := SerializeMap([][2]string{{"key", "value"}})

	if n := binary.LittleEndian.Uint32(raw[0:4]); n != 1 {
		t.Fatalf("pair count = %d, want 1", n)
	}
	if n := binary.LittleEndian.Uint32(raw[4:8]); n != 3 {
		t.Fatalf("name length = %d, want 3", n)
	}
	if n := binary.LittleEndian.Uint32(raw[8:12]); n != 5 {
		t.Fatalf("value length = %d, want 5", n)
	}
	if !bytes.Equal(raw[12:], []byte("key\x00value\x00")) {
		t.Fatalf("data section = %q", raw[12:])
	}
}

func TestDeserializeMapRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
	}{
		{name: "truncated count prefix", raw: []byte{1, 0}},
		{
			name: "count overstates pairs",
			raw:  binary.LittleEndian.AppendUint32(nil, 1000),
		},
		{
			name: "length past end of buffer",
			raw: func() []byte {
				b := binary.LittleEndian.AppendUint32(nil, 1)
				b = binary.LittleEndian.AppendUint32(b, 200)
				b = binary.LittleEndian.AppendUint32(b, 0)
				return append(b, "short\x00\x00"...)
			}(),
		},
		{
			// A count this large would wrap the entry-table offset on a
			// 32-bit build if it were multiplied before being bounded.
			name: "count overflows offset arithmetic",
			raw: append(binary.LittleEndian.AppendUint32(nil, 0x10000000),
				make([]byte, 64)...),
		},
		{
			name: "pair lengths overflow offset arithmetic",
			raw: func() []byte {
				b := binary.LittleEndian.AppendUint32(nil, 1)
				b = binary.LittleEndian.AppendUint32(b, 0x7fffffff)
				b = binary.LittleEndian.AppendUint32(b, 0x7fffffff)
				return append(b, "data\x00\x00"...)
			}(),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DeserializeMap(tc.raw)
			if err == nil {
				t.Fatal("expected decode error")
			}
			if !errors.Is(err, sdkerrors.ErrMalformedMap) {
				t.Fatalf("error %v is not ErrMalformedMap", err)
			}
		})
	}
}

func TestDeserializeMapEmptyBuffer(t *testing.T) {
	pairs, err := DeserializeMap(nil)
	if err != nil || pairs != nil {
		t.Fatalf("empty buffer: pairs=%v err=%v", pairs, err)
	}
}

func TestSerializePropertyPath(t *testing.T) {
	cases := []struct {
		name string
		path []string
		want []byte
	}{
		{name: "empty", path: nil, want: nil},
		{name: "single segment", path: []string{"plugin_root_id"}, want: []byte("plugin_root_id")},
		{
			name: "nested path",
			path: []string{"request", "headers", "referer"},
			want: []byte("request\x00headers\x00referer"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SerializePropertyPath(tc.path); !bytes.Equal(got, tc.want) {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
