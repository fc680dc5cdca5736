// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package backend

import (
	"context"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
)

// HistoryQuery filters the swap history.
type HistoryQuery struct {
	FromTimestamp int64           `json:"fromTimestamp,omitempty"`
	ToTimestamp   int64           `json:"toTimestamp,omitempty"`
	Status        activity.Status `json:"status,omitempty"`
	IsCex         bool            `json:"isCex,omitempty"`
	Asset         string          `json:"asset,omitempty"`
	Hashes        []string        `json:"hashes,omitempty"`
}

// SwapHistory fetches the swaps of an address. Pending swaps are converted to
// trusted ones.
func (c *Client) SwapHistory(ctx context.Context, address string, q *HistoryQuery) ([]*activity.SwapHistoryItem, error) {
	body, err := withFields(q, map[string]any{"swapVersion": c.swapVersion(ctx)})
	if err != nil {
		return nil, err
	}
	var items []*activity.SwapHistoryItem
	if _, err := c.post(ctx, "/swap/history/"+url.PathEscape(address), body, &items, nil); err != nil {
		return nil, err
	}
	for i, item := range items {
		items[i] = activity.ConvertSwapItemToTrusted(item)
	}
	return items, nil
}

// SwapHistoryItem fetches one swap. A swap the backend doesn't know gives an
// error for which IsNotFound is true.
func (c *Client) SwapHistoryItem(ctx context.Context, address, id string) (*activity.SwapHistoryItem, error) {
	query := url.Values{"swapVersion": {strconv.Itoa(c.swapVersion(ctx))}}
	item := new(activity.SwapHistoryItem)
	if err := c.get(ctx, "/swap/history/"+url.PathEscape(address)+"/"+url.PathEscape(id), query, item); err != nil {
		return nil, err
	}
	return activity.ConvertSwapItemToTrusted(item), nil
}

// SwapPatch is the outcome of a swap's transfers. One of MsgHash and Error
// is set.
type SwapPatch struct {
	MsgHash string `json:"msgHash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PatchSwapItem records the outcome of a swap's transfers.
func (c *Client) PatchSwapItem(ctx context.Context, address, swapID, authToken string, patch *SwapPatch) error {
	body, err := withFields(patch, map[string]any{"swapVersion": c.swapVersion(ctx)})
	if err != nil {
		return err
	}
	path := "/swap/history/" + url.PathEscape(address) + "/" + url.PathEscape(swapID) + "/update"
	_, err = c.call(ctx, http.MethodPatch, path, nil, body, nil, &callOptions{authToken: authToken})
	return err
}

// EstimateRequest is an on-chain swap estimate request.
type EstimateRequest struct {
	From            string `json:"from"`
	To              string `json:"to"`
	FromAmount      string `json:"fromAmount,omitempty"`
	ToAmount        string `json:"toAmount,omitempty"`
	FromAddress     string `json:"fromAddress"`
	Slippage        string `json:"slippage"`
	ShouldTryDiesel bool   `json:"shouldTryDiesel,omitempty"`
	WalletVersion   string `json:"walletVersion,omitempty"`
	IsFromAmountMax bool   `json:"isFromAmountMax,omitempty"`
}

// DexRoute is one route a swap can take.
type DexRoute struct {
	DexLabel   string `json:"dexLabel"`
	FromAmount string `json:"fromAmount"`
	ToAmount   string `json:"toAmount"`
}

// EstimateResponse is an on-chain swap estimate.
type EstimateResponse struct {
	From           string      `json:"from"`
	To             string      `json:"to"`
	FromAmount     string      `json:"fromAmount"`
	ToAmount       string      `json:"toAmount"`
	ToMinAmount    string      `json:"toMinAmount"`
	NetworkFee     string      `json:"networkFee"`
	RealNetworkFee string      `json:"realNetworkFee"`
	SwapFee        string      `json:"swapFee"`
	SwapFeePercent float64     `json:"swapFeePercent"`
	OurFee         string      `json:"ourFee"`
	OurFeePercent  float64     `json:"ourFeePercent"`
	ImpactPercent  float64     `json:"impact"`
	DieselFee      string      `json:"dieselFee,omitempty"`
	DexLabel       string      `json:"dexLabel"`
	Routes         []*DexRoute `json:"routes,omitempty"`
}

// SwapEstimate estimates an on-chain swap. A rejected estimate is a failed
// Result carrying the backend's error.
func (c *Client) SwapEstimate(ctx context.Context, req *EstimateRequest) (wallet.Result[*EstimateResponse], error) {
	body, err := withFields(req, map[string]any{"swapVersion": c.swapVersion(ctx)})
	if err != nil {
		return wallet.Result[*EstimateResponse]{}, err
	}
	resp := new(EstimateResponse)
	rejection, err := c.post(ctx, "/swap/ton/estimate", body, resp, &callOptions{allowBadRequest: true})
	if err != nil {
		return wallet.Result[*EstimateResponse]{}, err
	}
	if rejection != "" {
		return wallet.Fail[*EstimateResponse](wallet.ErrorKind(rejection)), nil
	}
	return wallet.Ok(resp), nil
}

// BuildRequest is an on-chain swap build request.
type BuildRequest struct {
	EstimateRequest
	ToMinAmount string  `json:"toMinAmount"`
	DexLabel    string  `json:"dexLabel"`
	NetworkFee  string  `json:"networkFee"`
	SwapFee     string  `json:"swapFee"`
	OurFee      string  `json:"ourFee"`
	DieselFee   string  `json:"dieselFee,omitempty"`
	Routes      [][]any `json:"routes,omitempty"`
}

// Transfer is a transfer built by the backend. Amount is in the native
// token's base units.
type Transfer struct {
	ToAddress string `json:"toAddress"`
	Amount    string `json:"amount"`
	Payload   string `json:"payload"`
	StateInit string `json:"stateInit,omitempty"`
}

// Message converts the transfer for a chain driver.
func (t *Transfer) Message() (*chain.Message, error) {
	amt, ok := new(big.Int).SetString(t.Amount, 10)
	if !ok || amt.Sign() < 0 {
		return nil, wallet.NewError(wallet.ErrInvalidAmount, t.Amount)
	}
	return &chain.Message{
		ToAddress: t.ToAddress,
		Amount:    amt,
		Payload:   t.Payload,
		StateInit: t.StateInit,
	}, nil
}

// BuildResponse is a built swap. ID is the backend swap id.
type BuildResponse struct {
	ID        string      `json:"id"`
	Transfers []*Transfer `json:"transfers"`
}

// SwapBuild builds the transfers of an on-chain swap, registering it with
// the backend.
func (c *Client) SwapBuild(ctx context.Context, authToken string, req *BuildRequest) (*BuildResponse, error) {
	body, err := withFields(req, map[string]any{
		"swapVersion":   c.swapVersion(ctx),
		"isMsgHashMode": true,
	})
	if err != nil {
		return nil, err
	}
	resp := new(BuildResponse)
	if _, err := c.post(ctx, "/swap/ton/build", body, resp, &callOptions{authToken: authToken}); err != nil {
		return nil, err
	}
	return resp, nil
}

// Asset is a swappable asset.
type Asset struct {
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Chain        string `json:"chain"`
	Slug         string `json:"slug"`
	Decimals     int    `json:"decimals"`
	TokenAddress string `json:"tokenAddress,omitempty"`
	Image        string `json:"image,omitempty"`
	IsPopular    bool   `json:"isPopular,omitempty"`
}

// SwapAssets lists the swappable assets.
func (c *Client) SwapAssets(ctx context.Context) ([]*Asset, error) {
	var assets []*Asset
	return assets, c.get(ctx, "/swap/assets", nil, &assets)
}

// PairAsset is an asset that another asset can be swapped to.
type PairAsset struct {
	Symbol              string `json:"symbol"`
	Slug                string `json:"slug"`
	ContractInfo        any    `json:"contractInfo,omitempty"`
	IsReverseProhibited bool   `json:"isReverseProhibited,omitempty"`
}

// SwapPairs lists the assets that the asset, a symbol or token address, can
// be swapped to.
func (c *Client) SwapPairs(ctx context.Context, asset string) ([]*PairAsset, error) {
	var pairs []*PairAsset
	return pairs, c.get(ctx, "/swap/pairs", url.Values{"asset": {asset}}, &pairs)
}

// CexEstimateRequest is a cross-chain swap estimate request.
type CexEstimateRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	FromAmount string `json:"fromAmount"`
}

// CexEstimateResponse is a cross-chain swap estimate.
type CexEstimateResponse struct {
	From            string `json:"from"`
	To              string `json:"to"`
	FromAmount      string `json:"fromAmount"`
	ToAmount        string `json:"toAmount"`
	SwapFee         string `json:"swapFee"`
	FromMin         string `json:"fromMin"`
	FromMax         string `json:"fromMax"`
	IsFromAmountMax bool   `json:"isFromAmountMax,omitempty"`
}

// SwapCexEstimate estimates a cross-chain swap. A rejected estimate is a
// failed Result carrying the backend's error.
func (c *Client) SwapCexEstimate(ctx context.Context, req *CexEstimateRequest) (wallet.Result[*CexEstimateResponse], error) {
	resp := new(CexEstimateResponse)
	rejection, err := c.post(ctx, "/swap/cex/estimate", req, resp, &callOptions{allowBadRequest: true})
	if err != nil {
		return wallet.Result[*CexEstimateResponse]{}, err
	}
	if rejection != "" {
		return wallet.Fail[*CexEstimateResponse](wallet.ErrorKind(rejection)), nil
	}
	return wallet.Ok(resp), nil
}

// AddressValidation is the outcome of an address check.
type AddressValidation struct {
	Result  bool   `json:"result"`
	Message string `json:"message,omitempty"`
}

// SwapCexValidateAddress checks an address of the chain of a token.
func (c *Client) SwapCexValidateAddress(ctx context.Context, slug, address string) (*AddressValidation, error) {
	v := new(AddressValidation)
	return v, c.get(ctx, "/swap/cex/validate-address", url.Values{"slug": {slug}, "address": {address}}, v)
}

// CexCreateRequest creates a cross-chain swap.
type CexCreateRequest struct {
	From          string `json:"from"`
	FromAmount    string `json:"fromAmount"`
	FromAddress   string `json:"fromAddress"`
	To            string `json:"to"`
	ToAddress     string `json:"toAddress"`
	PayoutExtraID string `json:"payoutExtraId,omitempty"`
	SwapFee       string `json:"swapFee"`
	NetworkFee    string `json:"networkFee,omitempty"`
}

// SwapCexCreateTransaction creates a cross-chain swap. The swap is returned
// as a trusted history item.
func (c *Client) SwapCexCreateTransaction(ctx context.Context, authToken string, req *CexCreateRequest) (*activity.SwapHistoryItem, error) {
	body, err := withFields(req, map[string]any{"swapVersion": c.swapVersion(ctx)})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Swap *activity.SwapHistoryItem `json:"swap"`
	}
	if _, err := c.post(ctx, "/swap/cex/createTransaction", body, &resp, &callOptions{authToken: authToken}); err != nil {
		return nil, err
	}
	if resp.Swap == nil {
		return nil, &ServerError{StatusCode: http.StatusOK, Message: "no swap in response"}
	}
	return activity.ConvertSwapItemToTrusted(resp.Swap), nil
}
