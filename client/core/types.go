// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package core

import (
	"context"
	"math/big"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/backend"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/client/db"
	"github.com/tonwallet/walletcore/wallet"
)

// Backend is the part of the backend client that the Core uses.
type Backend interface {
	SwapHistory(ctx context.Context, address string, q *backend.HistoryQuery) ([]*activity.SwapHistoryItem, error)
	SwapHistoryItem(ctx context.Context, address, id string) (*activity.SwapHistoryItem, error)
	PatchSwapItem(ctx context.Context, address, swapID, authToken string, patch *backend.SwapPatch) error
	SwapEstimate(ctx context.Context, req *backend.EstimateRequest) (wallet.Result[*backend.EstimateResponse], error)
	SwapBuild(ctx context.Context, authToken string, req *backend.BuildRequest) (*backend.BuildResponse, error)
	SwapAssets(ctx context.Context) ([]*backend.Asset, error)
	SwapPairs(ctx context.Context, asset string) ([]*backend.PairAsset, error)
	SwapCexEstimate(ctx context.Context, req *backend.CexEstimateRequest) (wallet.Result[*backend.CexEstimateResponse], error)
	SwapCexValidateAddress(ctx context.Context, slug, address string) (*backend.AddressValidation, error)
	SwapCexCreateTransaction(ctx context.Context, authToken string, req *backend.CexCreateRequest) (*activity.SwapHistoryItem, error)
	StakingProfits(ctx context.Context, address string) ([]*backend.StakingProfit, error)
	StakingCommon(ctx context.Context) (*backend.StakingCommon, error)
}

var _ Backend = (*backend.Client)(nil)

// Hooks are called on account lifecycle events. Any may be nil.
type Hooks struct {
	// OnFirstLogin is called the first time in the process that an account
	// is activated.
	OnFirstLogin func(accountID string)
	// OnFullLogout is called when all accounts are deactivated, on platforms
	// with dapp support.
	OnFullLogout func()
	// OnSwapCreated is called when a swap is registered with the backend.
	// fromTimestamp is the time to look for the swap's activities from.
	OnSwapCreated func(accountID string, fromTimestamp int64)
}

// ActivityTimestamps are the timestamps of the newest known activity per
// chain, ms.
type ActivityTimestamps map[wallet.Chain]int64

// AccountResult is the outcome of an account import.
type AccountResult struct {
	AccountID string                  `json:"accountId"`
	ByChain   map[wallet.Chain]string `json:"byChain"`
	Title     string                  `json:"title,omitempty"`
}

func accountResult(a *db.Account) *AccountResult {
	r := &AccountResult{
		AccountID: a.ID,
		ByChain:   make(map[wallet.Chain]string, len(a.ByChain)),
		Title:     a.Title,
	}
	for c, w := range a.ByChain {
		r.ByChain[c] = w.Address
	}
	return r
}

// LedgerAccountInfo is a Ledger account to import.
type LedgerAccountInfo struct {
	ByChain    map[wallet.Chain]*chain.Wallet
	Driver     string
	DeviceID   string
	DeviceName string
	Index      int
}

// NewWalletVersionResult is the outcome of ImportNewWalletVersion. IsNew is
// false when an account with the address already existed.
type NewWalletVersionResult struct {
	IsNew     bool   `json:"isNew"`
	AccountID string `json:"accountId"`
	Address   string `json:"address,omitempty"`
}

// TransferRequest is a transfer to submit.
type TransferRequest struct {
	chain.TransferOptions
	AccountID string
	// RealFee is the fee to show on the local activity. The driver's estimate
	// is used if nil.
	RealFee            *big.Int
	IsGasless          bool
	DieselAmount       *big.Int
	IsGaslessWithStars bool
}

// DraftRequest is a transfer to check.
type DraftRequest struct {
	chain.DraftOptions
	AccountID string
}

// SwapBuildResult is a built swap that passed the draft check.
type SwapBuildResult struct {
	Draft     *chain.DraftResult  `json:"draft"`
	ID        string              `json:"id"`
	Transfers []*backend.Transfer `json:"transfers"`
}

// SwapsResult is the outcome of FetchSwaps. NonExistentIDs lists the ids the
// backend doesn't know.
type SwapsResult struct {
	Swaps          []*activity.Activity `json:"swaps"`
	NonExistentIDs []string             `json:"nonExistentIds"`
}

// CexSwapResult is a created cross-chain swap.
type CexSwapResult struct {
	Swap     *activity.SwapHistoryItem `json:"swap"`
	Activity *activity.Activity        `json:"activity"`
}

// TxLookup finds a transaction of a chain.
type TxLookup struct {
	chain.TxLookup
	Chain wallet.Chain
}
