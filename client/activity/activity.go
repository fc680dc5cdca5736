// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package activity defines the chain-agnostic activity model shared by the
// chain drivers and the core: the Activity record, activity and token
// identifiers, and the ordering and merging rules for activity pages.
package activity

import (
	"math/big"
	"slices"

	"github.com/tonwallet/walletcore/wallet"
)

// Kind distinguishes the Activity variants.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindSwap        Kind = "swap"
)

// Status is the lifecycle status of an Activity. The zero value is treated as
// completed.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPendingTrusted Status = "pendingTrusted"
	StatusConfirmed      Status = "confirmed"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusExpired        Status = "expired"
)

// IsPending is true for any status that can still change.
func (s Status) IsPending() bool {
	switch s {
	case StatusPending, StatusPendingTrusted, StatusConfirmed:
		return true
	}
	return false
}

// TxType is the special meaning of a transaction activity. The zero value is
// a plain transfer.
type TxType string

const (
	TxStake          TxType = "stake"
	TxUnstake        TxType = "unstake"
	TxUnstakeRequest TxType = "unstakeRequest"
	TxCallContract   TxType = "callContract"
	TxExcess         TxType = "excess"
	TxBounced        TxType = "bounced"
	TxBurn           TxType = "burn"
	TxMint           TxType = "mint"
)

// AggregatorInfo describes the swaps that were folded into an aggregated
// multi-hop swap activity.
type AggregatorInfo struct {
	TraceID string   `json:"traceId"`
	SwapIDs []string `json:"swapIds"`
	From    string   `json:"from"`
	To      string   `json:"to"`
}

// Extra is chain-specific data attached to an Activity.
type Extra struct {
	QueryID       string          `json:"queryId,omitempty"`
	IsOurSwapFee  bool            `json:"isOurSwapFee,omitempty"`
	WithW5Gasless bool            `json:"withW5Gasless,omitempty"`
	Aggregator    *AggregatorInfo `json:"mtwAggregator,omitempty"`
}

// Activity is a normalized transaction or swap. Transaction fields are only
// meaningful for KindTransaction, swap fields for KindSwap.
type Activity struct {
	Kind                Kind   `json:"kind"`
	ID                  string `json:"id"`
	Timestamp           int64  `json:"timestamp"` // ms
	Status              Status `json:"status,omitempty"`
	ExternalMsgHashNorm string `json:"externalMsgHashNorm,omitempty"`
	ShouldHide          bool   `json:"shouldHide,omitempty"`
	ShouldLoadDetails   bool   `json:"shouldLoadDetails,omitempty"`
	// ShouldReload marks an activity whose data was incomplete when fetched.
	ShouldReload bool   `json:"shouldReload,omitempty"`
	Extra        *Extra `json:"extra,omitempty"`

	// Transaction
	FromAddress       string   `json:"fromAddress,omitempty"`
	ToAddress         string   `json:"toAddress,omitempty"`
	NormalizedAddress string   `json:"normalizedAddress,omitempty"`
	IsIncoming        bool     `json:"isIncoming,omitempty"`
	Amount            *big.Int `json:"amount,omitempty"`
	Fee               *big.Int `json:"fee,omitempty"`
	Slug              string   `json:"slug,omitempty"`
	Comment           string   `json:"comment,omitempty"`
	EncryptedComment  string   `json:"encryptedComment,omitempty"`
	Type              TxType   `json:"type,omitempty"`

	// Swap. Amounts are decimal strings.
	From       string   `json:"from,omitempty"`
	To         string   `json:"to,omitempty"`
	FromAmount string   `json:"fromAmount,omitempty"`
	ToAmount   string   `json:"toAmount,omitempty"`
	NetworkFee string   `json:"networkFee,omitempty"`
	SwapFee    string   `json:"swapFee,omitempty"`
	OurFee     string   `json:"ourFee,omitempty"`
	Hashes     []string `json:"hashes,omitempty"`
	Cex        *CexInfo `json:"cex,omitempty"`
}

// Copy makes a copy that can be modified without affecting the original.
func (a *Activity) Copy() *Activity {
	c := *a
	if a.Amount != nil {
		c.Amount = new(big.Int).Set(a.Amount)
	}
	if a.Fee != nil {
		c.Fee = new(big.Int).Set(a.Fee)
	}
	c.Hashes = slices.Clone(a.Hashes)
	if a.Extra != nil {
		extra := *a.Extra
		if extra.Aggregator != nil {
			agg := *extra.Aggregator
			agg.SwapIDs = slices.Clone(agg.SwapIDs)
			extra.Aggregator = &agg
		}
		c.Extra = &extra
	}
	if a.Cex != nil {
		cex := *a.Cex
		c.Cex = &cex
	}
	return &c
}

// IsPending is true if the activity can still change status.
func (a *Activity) IsPending() bool {
	return a.Status.IsPending()
}

// TokenSlugs lists the tokens the activity moves.
func (a *Activity) TokenSlugs() []string {
	if a.Kind == KindSwap {
		return []string{a.From, a.To}
	}
	if a.Slug == "" {
		return nil
	}
	return []string{a.Slug}
}

// Chains lists the chains the activity touches, without repeats. A cross-chain
// swap touches two.
func (a *Activity) Chains() []wallet.Chain {
	var chains []wallet.Chain
	for _, slug := range a.TokenSlugs() {
		chain, ok := ChainBySlug(slug)
		if ok && !slices.Contains(chains, chain) {
			chains = append(chains, chain)
		}
	}
	return chains
}
