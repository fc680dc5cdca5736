package encrypt

import (
	"encoding/base64"
	"errors"
	"reflect"
	"testing"

	"github.com/tonwallet/walletcore/wallet/encode"
)

func TestSealSecret(t *testing.T) {
	words := []string{"abandon", "ability", "able", "about"}
	sealed, err := SealSecret(words, "hunter2")
	if err != nil {
		t.Fatalf("SealSecret error: %v", err)
	}
	reWords, err := OpenSecret(sealed, "hunter2")
	if err != nil {
		t.Fatalf("OpenSecret error: %v", err)
	}
	if !reflect.DeepEqual(words, reWords) {
		t.Fatalf("wrong words after round trip: %v", reWords)
	}
	if _, err := OpenSecret(sealed, "hunter3"); !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("expected ErrIncorrectPassword, got %v", err)
	}
	if _, err := SealSecret(words, ""); err == nil {
		t.Fatalf("no error for empty password")
	}

	// Each seal has its own salt and nonce.
	reSealed, _ := SealSecret(words, "hunter2")
	if reSealed == sealed {
		t.Fatalf("identical seals")
	}
}

func TestOpenSecretCorrupted(t *testing.T) {
	const pw = "4kliaOCha2"
	sealed, err := SealSecret([]string{"key"}, pw)
	if err != nil {
		t.Fatalf("SealSecret error: %v", err)
	}
	blob, _ := base64.StdEncoding.DecodeString(sealed)
	ver, pushes, err := encode.DecodeBlob(blob)
	if err != nil {
		t.Fatalf("DecodeBlob error: %v", err)
	}
	rebuild := func(ver byte, pushes [][]byte) string {
		b := encode.BuildyBytes{ver}
		for _, p := range pushes {
			b = b.AddData(p)
		}
		return base64.StdEncoding.EncodeToString(b)
	}
	with := func(i int, d []byte) [][]byte {
		ps := make([][]byte, len(pushes))
		copy(ps, pushes)
		ps[i] = d
		return ps
	}
	flipped := append([]byte{}, pushes[6]...)
	flipped[0] ^= 1

	tests := []struct {
		name   string
		sealed string
		wantPW bool
	}{
		{"not base64", "!!", false},
		{"wrong version", rebuild(ver+1, pushes), false},
		{"truncated", rebuild(ver, pushes[:6]), false},
		{"short salt", rebuild(ver, with(0, pushes[0][1:])), false},
		{"bad time", rebuild(ver, with(1, []byte{1})), false},
		{"changed params", rebuild(ver, with(1, encode.Uint32Bytes(2))), true},
		{"long nonce", rebuild(ver, with(5, append(append([]byte{}, pushes[5]...), 0))), false},
		{"corrupt ciphertext", rebuild(ver, with(6, flipped)), false},
	}
	for _, tt := range tests {
		_, err := OpenSecret(tt.sealed, pw)
		if err == nil {
			t.Fatalf("%s: no error", tt.name)
		}
		if errors.Is(err, ErrIncorrectPassword) != tt.wantPW {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
	}
	if _, err := OpenSecret(rebuild(ver, pushes), pw); err != nil {
		t.Fatalf("rebuilt seal doesn't open: %v", err)
	}
}
