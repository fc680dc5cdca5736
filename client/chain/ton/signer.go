// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"context"
	"errors"
	"strings"

	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/walletnet"
)

// ErrNoSigner is returned by operations that need signing when the driver
// has no signer.
var ErrNoSigner = errors.New("no signer configured")

// SignRequest asks for an external message carrying the messages, from the
// wallet with the given public key.
type SignRequest struct {
	Network     wallet.Network     `json:"network"`
	AccountType wallet.AccountType `json:"accountType"`
	Address     string             `json:"address"`
	PublicKey   string             `json:"publicKey"`
	Version     string             `json:"version"`
	Seqno       int64              `json:"seqno"`
	Messages    []*chain.Message   `json:"messages"`
	// IsGasless asks for a message that the gasless relay will send.
	IsGasless bool `json:"isGasless,omitempty"`
}

// SignedMessage is a signed external message, ready to send.
type SignedMessage struct {
	BOC               string `json:"boc"`
	MsgHash           string `json:"msgHash"`
	MsgHashNormalized string `json:"msgHashNormalized"`
}

// CommentRequest asks to encrypt or decrypt a comment between the wallet and
// a counterparty.
type CommentRequest struct {
	Network      wallet.Network     `json:"network"`
	AccountType  wallet.AccountType `json:"accountType"`
	PublicKey    string             `json:"publicKey"`
	Counterparty string             `json:"counterparty"`
	// Text is the plain comment to encrypt, or the base64 encrypted comment
	// to decrypt.
	Text string `json:"text"`
}

// Signer holds the keys. The driver checks the account password before any
// request, but never sees a key.
type Signer interface {
	SignTransfer(ctx context.Context, req *SignRequest) (*SignedMessage, error)
	// EncryptComment returns the base64 BOC of the encrypted comment payload.
	EncryptComment(ctx context.Context, req *CommentRequest) (string, error)
	DecryptComment(ctx context.Context, req *CommentRequest) (string, error)
}

// RemoteSigner is a Signer served over HTTP, e.g. by a hardware wallet
// bridge.
type RemoteSigner struct {
	url string
}

// NewRemoteSigner creates a RemoteSigner for the service at the URL.
func NewRemoteSigner(uri string) *RemoteSigner {
	return &RemoteSigner{url: strings.TrimRight(uri, "/")}
}

var _ Signer = (*RemoteSigner)(nil)

// SignTransfer posts the request to /sign.
func (s *RemoteSigner) SignTransfer(ctx context.Context, req *SignRequest) (*SignedMessage, error) {
	signed := new(SignedMessage)
	if err := walletnet.Post(ctx, s.url+"/sign", signed, req); err != nil {
		return nil, err
	}
	if signed.BOC == "" || signed.MsgHashNormalized == "" {
		return nil, errors.New("signer returned an incomplete message")
	}
	return signed, nil
}

type commentResponse struct {
	Result string `json:"result"`
}

// EncryptComment posts the request to /encryptComment.
func (s *RemoteSigner) EncryptComment(ctx context.Context, req *CommentRequest) (string, error) {
	var resp commentResponse
	if err := walletnet.Post(ctx, s.url+"/encryptComment", &resp, req); err != nil {
		return "", err
	}
	return resp.Result, nil
}

// DecryptComment posts the request to /decryptComment.
func (s *RemoteSigner) DecryptComment(ctx context.Context, req *CommentRequest) (string, error) {
	var resp commentResponse
	if err := walletnet.Post(ctx, s.url+"/decryptComment", &resp, req); err != nil {
		return "", err
	}
	return resp.Result, nil
}

type noSigner struct{}

func (noSigner) SignTransfer(context.Context, *SignRequest) (*SignedMessage, error) {
	return nil, ErrNoSigner
}

func (noSigner) EncryptComment(context.Context, *CommentRequest) (string, error) {
	return "", ErrNoSigner
}

func (noSigner) DecryptComment(context.Context, *CommentRequest) (string, error) {
	return "", ErrNoSigner
}
