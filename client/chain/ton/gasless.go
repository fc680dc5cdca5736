// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"context"
	"math/big"
	"net/url"
	"strings"

	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/walletnet"
)

// gaslessRelay is the service that pays the fees of gasless transfers in
// exchange for diesel, a payment in the transferred token.
type gaslessRelay struct {
	url string
}

type dieselResponse struct {
	Status       chain.DieselStatus `json:"status"`
	Amount       string             `json:"amount"`
	NativeAmount string             `json:"nativeAmount"`
	RemainingFee string             `json:"remainingFee"`
	RealFee      string             `json:"realFee"`
	// RelayAddress receives the diesel.
	RelayAddress string `json:"relayAddress"`
}

func optBigInt(s string) *big.Int {
	if s == "" {
		return nil
	}
	return bigInt(s)
}

func (r *dieselResponse) estimate() *chain.DieselEstimate {
	return &chain.DieselEstimate{
		Status:       r.Status,
		Amount:       optBigInt(r.Amount),
		NativeAmount: bigInt(r.NativeAmount),
		RemainingFee: bigInt(r.RemainingFee),
		RealFee:      bigInt(r.RealFee),
	}
}

func (r *gaslessRelay) estimate(ctx context.Context, net wallet.Network, w *chain.Wallet, tokenAddress string) (*dieselResponse, error) {
	q := url.Values{
		"network":   {net.String()},
		"address":   {w.Address},
		"publicKey": {w.PublicKey},
		"version":   {w.Version},
		"token":     {tokenAddress},
	}
	resp := new(dieselResponse)
	if err := walletnet.Get(ctx, strings.TrimRight(r.url, "/")+"/diesel/estimate?"+q.Encode(), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type relaySendRequest struct {
	Network   wallet.Network `json:"network"`
	BOC       string         `json:"boc"`
	PublicKey string         `json:"walletPublicKey"`
	WithStars bool           `json:"withStars,omitempty"`
}

func (r *gaslessRelay) send(ctx context.Context, net wallet.Network, boc, publicKey string, withStars bool) error {
	req := &relaySendRequest{Network: net, BOC: boc, PublicKey: publicKey, WithStars: withStars}
	return walletnet.Post(ctx, strings.TrimRight(r.url, "/")+"/diesel/send", nil, req)
}
