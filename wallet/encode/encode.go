// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package encode

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
)

var (
	// IntCoder is the integer byte-encoding order. IntCoder must be BigEndian
	// so that variable length data encodings work as intended and so that
	// bbolt keys sort numerically.
	IntCoder = binary.BigEndian
	// MaxDataLen is the largest byte slice that can be stored when using
	// (BuildyBytes).AddData.
	MaxDataLen = 0x00fe_ffff // top two bytes in big endian stop at 254, signalling 32-bit len
)

// Uint32Bytes converts the uint32 to a length-4, big-endian encoded byte slice.
func Uint32Bytes(i uint32) []byte {
	b := make([]byte, 4)
	IntCoder.PutUint32(b, i)
	return b
}

// RandomBytes returns a byte slice with the specified length of random bytes.
func RandomBytes(len int) []byte {
	bytes := make([]byte, len)
	if _, err := rand.Read(bytes); err != nil {
		panic("error reading random bytes: " + err.Error())
	}
	return bytes
}

// ClearBytes zeroes the byte slice.
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ExtractPushes parses the linearly-encoded 2D byte slice into a slice of
// slices. Empty pushes are nil slices.
func ExtractPushes(b []byte) ([][]byte, error) {
	pushes := make([][]byte, 0, 2)
	for len(b) > 0 {
		l := int(b[0])
		b = b[1:]
		if l == 255 {
			if len(b) < 2 {
				return nil, fmt.Errorf("2 bytes not available for data length")
			}
			l = int(IntCoder.Uint16(b[:2]))
			if l < 255 {
				// A uint32 capped at 0x00fe_ffff. We are looking at the top
				// two bytes, so decode all four.
				if len(b) < 4 {
					return nil, fmt.Errorf("4 bytes not available for 32-bit data length")
				}
				l = int(IntCoder.Uint32(b[:4]))
				b = b[4:]
			} else {
				b = b[2:]
			}
		}
		if len(b) < l {
			return nil, fmt.Errorf("data too short for pop of %d bytes", l)
		}
		if l == 0 {
			pushes = append(pushes, nil)
			continue
		}
		pushes = append(pushes, b[:l])
		b = b[l:]
	}
	return pushes, nil
}

// DecodeBlob decodes a versioned blob into its version and the pushes extracted
// from its data. Empty pushes will be nil.
func DecodeBlob(b []byte) (byte, [][]byte, error) {
	if len(b) == 0 {
		return 0, nil, fmt.Errorf("zero length blob not allowed")
	}
	pushes, err := ExtractPushes(b[1:])
	return b[0], pushes, err
}

// BuildyBytes is a byte-slice with an AddData method for building linearly
// encoded 2D byte slices. Instantiate it with a single version byte and chain
// AddData calls to create a versioned blob:
//
//	b := BuildyBytes{0}.AddData(nonce).AddData(cipherText)
//
// The result is decoded with DecodeBlob.
type BuildyBytes []byte

// AddData adds the data to the BuildyBytes, and returns the new BuildyBytes.
// AddData panics for data longer than MaxDataLen.
func (b BuildyBytes) AddData(d []byte) BuildyBytes {
	l := len(d)
	var lBytes []byte
	switch {
	case l > MaxDataLen:
		panic("cannot use addData for pushes > 16711679 bytes")
	case l > math.MaxUint16:
		lBytes = append([]byte{0xff}, Uint32Bytes(uint32(l))...)
	case l >= 0xff:
		lBytes = []byte{0xff, 0, 0}
		IntCoder.PutUint16(lBytes[1:], uint16(l))
	default:
		lBytes = []byte{byte(l)}
	}
	return append(b, append(lBytes, d...)...)
}
