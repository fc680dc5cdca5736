// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package encrypt seals account secrets with a password. A key pair is derived
// from the password with argon2id. The first key encrypts with
// xchacha20poly1305, the second authenticates the derivation parameters, so a
// wrong password is detected before decryption is attempted.
package encrypt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/tonwallet/walletcore/wallet/encode"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/poly1305"
)

// ErrIncorrectPassword is returned when a sealed secret is opened with the
// wrong password.
var ErrIncorrectPassword = errors.New("incorrect password")

const (
	// KeySize is the size of the encryption key.
	KeySize = 32
	// SaltSize is the size of the argon2id salt.
	SaltSize = 16

	sealVersion = 1
	argonTime   = 1
	argonMem    = 64 * 1024
)

// Key is 32 bytes.
type Key [KeySize]byte

// Salt is the random argon2id input stored with each sealed secret.
type Salt [SaltSize]byte

// kdf is the argon2id derivation of a sealed secret.
type kdf struct {
	salt    Salt
	time    uint32
	memory  uint32
	threads uint8
}

func newKDF() (*kdf, error) {
	p := &kdf{
		time:    argonTime,
		memory:  argonMem,
		threads: uint8(min(runtime.NumCPU(), 255)),
	}
	if _, err := rand.Read(p.salt[:]); err != nil {
		return nil, fmt.Errorf("salt generation error: %w", err)
	}
	return p, nil
}

// keys derives the encryption key and the parameter MAC key.
func (p *kdf) keys(pw string) (encKey, macKey Key) {
	b := argon2.IDKey([]byte(pw), p.salt[:], p.time, p.memory, p.threads, KeySize*2)
	defer encode.ClearBytes(b)
	copy(encKey[:], b[:KeySize])
	copy(macKey[:], b[KeySize:])
	return
}

// params is the authenticated encoding of the derivation.
func (p *kdf) params() []byte {
	return encode.BuildyBytes{sealVersion}.
		AddData(p.salt[:]).
		AddData(encode.Uint32Bytes(p.time)).
		AddData(encode.Uint32Bytes(p.memory)).
		AddData([]byte{p.threads})
}

func (p *kdf) tag(macKey *Key) (tag [poly1305.TagSize]byte) {
	poly1305.Sum(&tag, p.params(), (*[32]byte)(macKey))
	return
}

// SealSecret encrypts a list of secret words, a mnemonic or a single private
// key, with a key derived from the password. The result carries its own
// derivation parameters, so every account opens independently.
func SealSecret(words []string, pw string) (string, error) {
	if pw == "" {
		return "", errors.New("empty password")
	}
	p, err := newKDF()
	if err != nil {
		return "", err
	}
	encKey, macKey := p.keys(pw)
	defer encode.ClearBytes(encKey[:])
	defer encode.ClearBytes(macKey[:])

	aead, err := chacha20poly1305.NewX(encKey[:])
	if err != nil {
		return "", fmt.Errorf("aead error: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce generation error: %w", err)
	}
	plain := []byte(strings.Join(words, " "))
	defer encode.ClearBytes(plain)
	tag := p.tag(&macKey)

	blob := encode.BuildyBytes{sealVersion}.
		AddData(p.salt[:]).
		AddData(encode.Uint32Bytes(p.time)).
		AddData(encode.Uint32Bytes(p.memory)).
		AddData([]byte{p.threads}).
		AddData(tag[:]).
		AddData(nonce).
		AddData(aead.Seal(nil, nonce, plain, nil))
	return base64.StdEncoding.EncodeToString(blob), nil
}

// OpenSecret reverses SealSecret. ErrIncorrectPassword is returned when the
// password doesn't match.
func OpenSecret(sealed, pw string) ([]string, error) {
	blob, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("error decoding sealed secret: %w", err)
	}
	ver, pushes, err := encode.DecodeBlob(blob)
	if err != nil {
		return nil, err
	}
	if ver != sealVersion {
		return nil, fmt.Errorf("unknown sealed secret version %d", ver)
	}
	if len(pushes) != 7 {
		return nil, fmt.Errorf("expected 7 pushes, got %d", len(pushes))
	}
	saltB, timeB, memB, threadsB, tagB, nonce, cipherText := pushes[0], pushes[1],
		pushes[2], pushes[3], pushes[4], pushes[5], pushes[6]
	switch {
	case len(saltB) != SaltSize:
		return nil, fmt.Errorf("expected salt of length %d, got %d", SaltSize, len(saltB))
	case len(timeB) != 4 || len(memB) != 4 || len(threadsB) != 1:
		return nil, errors.New("bad argon parameter encoding")
	case len(tagB) != poly1305.TagSize:
		return nil, fmt.Errorf("expected tag of length %d, got %d", poly1305.TagSize, len(tagB))
	}
	p := &kdf{
		time:    encode.IntCoder.Uint32(timeB),
		memory:  encode.IntCoder.Uint32(memB),
		threads: threadsB[0],
	}
	copy(p.salt[:], saltB)

	encKey, macKey := p.keys(pw)
	defer encode.ClearBytes(encKey[:])
	defer encode.ClearBytes(macKey[:])
	if !poly1305.Verify((*[poly1305.TagSize]byte)(tagB), p.params(), (*[32]byte)(&macKey)) {
		return nil, ErrIncorrectPassword
	}

	aead, err := chacha20poly1305.NewX(encKey[:])
	if err != nil {
		return nil, fmt.Errorf("aead error: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("expected nonce of length %d, got %d", aead.NonceSize(), len(nonce))
	}
	plain, err := aead.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, fmt.Errorf("aead.Open: %w", err)
	}
	defer encode.ClearBytes(plain)
	return strings.Fields(string(plain)), nil
}
