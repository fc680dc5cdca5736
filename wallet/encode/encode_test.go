package encode

import (
	"bytes"
	"testing"
)

var (
	tEmpty = []byte{}
	tA     = []byte{0xaa}
	tB     = []byte{0xbb, 0xbb}
)

func TestBuildyBytes(t *testing.T) {
	tests := []struct {
		pushes [][]byte
		exp    []byte
	}{
		{pushes: [][]byte{tA}, exp: []byte{0x01, 0xaa}},
		{pushes: [][]byte{tA, tB}, exp: []byte{1, 0xaa, 2, 0xbb, 0xbb}},
		{pushes: [][]byte{tA, nil}, exp: []byte{1, 0xaa, 0}},
		{pushes: [][]byte{tEmpty, tEmpty}, exp: []byte{0, 0}},
	}
	for i, tt := range tests {
		var b BuildyBytes
		for _, p := range tt.pushes {
			b = b.AddData(p)
		}
		if !bytes.Equal(b, tt.exp) {
			t.Fatalf("test %d: wanted %x, got %x", i, tt.exp, []byte(b))
		}
	}
}

func TestDecodeBlob(t *testing.T) {
	long := RandomBytes(300)
	huge := RandomBytes(70_000)
	tests := []struct {
		name    string
		v       byte
		b       []byte
		exp     [][]byte
		wantErr bool
	}{
		{
			name: "empties",
			v:    1,
			b:    BuildyBytes{1}.AddData(nil).AddData(tEmpty).AddData(tA),
			exp:  [][]byte{nil, nil, tA},
		},
		{
			name: "16-bit length",
			v:    255,
			b:    BuildyBytes{255}.AddData(tA).AddData(long),
			exp:  [][]byte{tA, long},
		},
		{
			name: "32-bit length",
			v:    0,
			b:    BuildyBytes{0}.AddData(huge).AddData(tB),
			exp:  [][]byte{huge, tB},
		},
		{
			name:    "truncated",
			b:       []byte{0x01, 0x02},
			wantErr: true,
		},
		{
			name:    "empty",
			b:       nil,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		ver, pushes, err := DecodeBlob(tt.b)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%s: unexpected error state: %v", tt.name, err)
		}
		if tt.wantErr {
			continue
		}
		if ver != tt.v {
			t.Fatalf("%s: wanted version %d, got %d", tt.name, tt.v, ver)
		}
		if len(pushes) != len(tt.exp) {
			t.Fatalf("%s: wanted %d pushes, got %d", tt.name, len(tt.exp), len(pushes))
		}
		for j, push := range pushes {
			if !bytes.Equal(tt.exp[j], push) {
				t.Fatalf("%s: push %d incorrect", tt.name, j)
			}
		}
	}
}
