// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package activity

import "github.com/tonwallet/walletcore/wallet"

// CexStatus is the status of the off-chain leg of a cross-chain swap.
type CexStatus string

const (
	CexNew        CexStatus = "new"
	CexWaiting    CexStatus = "waiting"
	CexConfirming CexStatus = "confirming"
	CexExchanging CexStatus = "exchanging"
	CexSending    CexStatus = "sending"
	CexFinished   CexStatus = "finished"
	CexFailed     CexStatus = "failed"
	CexRefunded   CexStatus = "refunded"
	CexHold       CexStatus = "hold"
	CexOverdue    CexStatus = "overdue"
	CexExpired    CexStatus = "expired"
)

// CexInfo is the off-chain exchange sub-record of a swap.
type CexInfo struct {
	Status        CexStatus `json:"status"`
	PayinAddress  string    `json:"payinAddress"`
	PayoutAddress string    `json:"payoutAddress"`
	PayinExtraID  string    `json:"payinExtraId,omitempty"`
	TransactionID string    `json:"transactionId"`
}

// SwapHistoryItem is a swap as recorded by the swap backend. From and To are
// backend asset ids: a native token symbol or a token address.
type SwapHistoryItem struct {
	ID          string   `json:"id"`
	Timestamp   int64    `json:"timestamp"`
	LastTxID    string   `json:"lastTxId,omitempty"`
	Status      Status   `json:"status"`
	From        string   `json:"from"`
	FromAmount  string   `json:"fromAmount"`
	FromAddress string   `json:"fromAddress,omitempty"`
	To          string   `json:"to"`
	ToAmount    string   `json:"toAmount"`
	NetworkFee  string   `json:"networkFee"`
	SwapFee     string   `json:"swapFee"`
	OurFee      string   `json:"ourFee,omitempty"`
	Hashes      []string `json:"hashes"`
	IsCanceled  bool     `json:"isCanceled,omitempty"`
	Cex         *CexInfo `json:"cex,omitempty"`
}

// ConvertSwapItemToTrusted marks a pending swap reported by the backend as
// trusted, since the backend only reports swaps it has accepted.
func ConvertSwapItemToTrusted(item *SwapHistoryItem) *SwapHistoryItem {
	c := *item
	if c.Status == StatusPending {
		c.Status = StatusPendingTrusted
	}
	return &c
}

// SwapItemSlug resolves a backend asset id to a token slug. Assets of
// cross-chain swaps are matched against the known tokens and left as they are
// otherwise. Assets of on-chain swaps are always TON jettons.
func SwapItemSlug(item *SwapHistoryItem, asset string) string {
	switch asset {
	case ToncoinSymbol:
		return ToncoinSlug
	case TrxSymbol:
		if item.Cex != nil {
			return TrxSlug
		}
	}
	if item.Cex != nil {
		if slug, ok := knownTokenSlugs[asset]; ok {
			return slug
		}
		return asset
	}
	return BuildTokenSlug(wallet.ChainTON, asset)
}

// swapActivity builds the swap Activity with the given id.
func swapActivity(item *SwapHistoryItem, id string) *Activity {
	a := &Activity{
		Kind:        KindSwap,
		ID:          id,
		Timestamp:   item.Timestamp,
		Status:      item.Status,
		From:        SwapItemSlug(item, item.From),
		To:          SwapItemSlug(item, item.To),
		FromAmount:  item.FromAmount,
		ToAmount:    item.ToAmount,
		FromAddress: item.FromAddress,
		NetworkFee:  item.NetworkFee,
		SwapFee:     item.SwapFee,
		OurFee:      item.OurFee,
		Hashes:      append([]string(nil), item.Hashes...),
	}
	if item.Cex != nil {
		cex := *item.Cex
		a.Cex = &cex
	}
	return a
}

// SwapItemToActivity converts a backend swap into an Activity. Details are only
// loadable for on-chain swaps.
func SwapItemToActivity(item *SwapHistoryItem) *Activity {
	a := swapActivity(item, BuildBackendSwapID(item.ID))
	a.ShouldLoadDetails = item.Cex == nil
	return a
}

// LocalSwapActivity builds the local activity published for a swap before its
// transfers are sent.
func LocalSwapActivity(item *SwapHistoryItem) *Activity {
	return swapActivity(item, BuildLocalSwapID(item.ID))
}
