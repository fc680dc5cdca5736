// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package chain

import (
	"context"
	"math/big"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/wallet"
)

// Wallet is an account's materialization on one chain. It is owned by its
// account and never shared.
type Wallet struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey,omitempty"`
	// Version is the wallet contract version, for chains that have one.
	Version  string `json:"version,omitempty"`
	Index    int    `json:"index,omitempty"`
	LastTxID string `json:"lastTxId,omitempty"`
	// IsInitialized is true once the wallet contract is deployed.
	IsInitialized bool `json:"isInitialized,omitempty"`
}

// Account is what a Driver needs to know about the account it acts for.
type Account struct {
	ID      string
	Network wallet.Network
	Type    wallet.AccountType
	Wallet  *Wallet
	// Secret is the encrypted mnemonic or private key. Empty for ledger and
	// view accounts.
	Secret string
}

// PayloadType is the kind of data attached to a transfer.
type PayloadType string

const (
	PayloadComment PayloadType = "comment"
	PayloadBinary  PayloadType = "binary"
	PayloadBase64  PayloadType = "base64"
)

// Payload is data attached to a transfer.
type Payload struct {
	Type PayloadType `json:"type"`
	// Text is the comment for PayloadComment.
	Text          string `json:"text,omitempty"`
	ShouldEncrypt bool   `json:"shouldEncrypt,omitempty"`
	// Data is the base64 payload for PayloadBinary and PayloadBase64.
	Data string `json:"data,omitempty"`
}

// PlainComment is the comment that can be shown before decryption, if any.
func (p *Payload) PlainComment() string {
	if p == nil || p.Type != PayloadComment || p.ShouldEncrypt {
		return ""
	}
	return p.Text
}

// DraftOptions describe a transfer to check before sending.
type DraftOptions struct {
	ToAddress string
	// Amount may be nil to only estimate the fee.
	Amount       *big.Int
	Payload      *Payload
	StateInit    string
	TokenAddress string
	AllowGasless bool
}

// DieselStatus describes whether a transfer can pay fees in the transferred
// token.
type DieselStatus string

const (
	DieselNotAvailable    DieselStatus = "not-available"
	DieselNotAuthorized   DieselStatus = "not-authorized"
	DieselPendingPrevious DieselStatus = "pending-previous"
	DieselAvailable       DieselStatus = "available"
	DieselStarsFee        DieselStatus = "stars-fee"
)

// DieselEstimate is the estimate of a gasless transfer.
type DieselEstimate struct {
	Status DieselStatus `json:"status"`
	// Amount is the diesel in the transferred token. nil when gasless isn't
	// possible.
	Amount *big.Int `json:"amount,omitempty"`
	// NativeAmount is the native token amount covered by the diesel.
	NativeAmount *big.Int `json:"nativeAmount"`
	// RemainingFee is the part of the fee taken from the native balance.
	RemainingFee *big.Int `json:"remainingFee"`
	RealFee      *big.Int `json:"realFee"`
}

// DraftResult is the outcome of a successful draft check.
type DraftResult struct {
	// Fee is the full fee attached to the transfer, in the native token.
	Fee *big.Int `json:"fee,omitempty"`
	// RealFee approximates the fee actually spent. The difference with Fee
	// returns to the wallet.
	RealFee         *big.Int        `json:"realFee,omitempty"`
	AddressName     string          `json:"addressName,omitempty"`
	IsScam          bool            `json:"isScam,omitempty"`
	ResolvedAddress string          `json:"resolvedAddress,omitempty"`
	IsToAddressNew  bool            `json:"isToAddressNew,omitempty"`
	IsBounceable    bool            `json:"isBounceable,omitempty"`
	IsMemoRequired  bool            `json:"isMemoRequired,omitempty"`
	Diesel          *DieselEstimate `json:"diesel,omitempty"`
}

// TransferOptions describe a transfer to send.
type TransferOptions struct {
	// Password is required only for accounts with a secret.
	Password     string
	ToAddress    string
	Amount       *big.Int
	Payload      *Payload
	StateInit    string
	TokenAddress string
	// Fee caps the fee, for chains that support it.
	Fee        *big.Int
	NoFeeCheck bool
}

// GaslessTransferOptions describe a transfer that pays fees in the
// transferred token.
type GaslessTransferOptions struct {
	TransferOptions
	DieselAmount       *big.Int
	IsGaslessWithStars bool
}

// TransferResult is the outcome of a sent transfer.
type TransferResult struct {
	// TxID is the hash that the confirmed activity will share.
	TxID string
	// LocalActivity carries the fields of the local activity that only the
	// driver knows. Optional.
	LocalActivity *activity.LocalTransactionParams
	// MsgHashForCexSwap is the hash to report to the swap backend when the
	// transfer pays a cross-chain swap.
	MsgHashForCexSwap string
	// PaymentLink is set when the transfer must be completed off-chain.
	PaymentLink   string
	WithW5Gasless bool
}

// SliceOptions select a page of past activities.
type SliceOptions struct {
	// TokenSlug scopes the page to one token. Empty for all.
	TokenSlug     string
	FromTimestamp int64
	ToTimestamp   int64
	Limit         int
}

// TxLookup finds one transaction. Exactly one of TxID and TxHash is set.
type TxLookup struct {
	Network       wallet.Network
	WalletAddress string
	TxID          string
	TxHash        string
}

// NewActivities are activities that appeared since the last poll.
type NewActivities struct {
	// Activities are sorted newest first.
	Activities []*activity.Activity
	// Replaced maps local activity ids to the ids of the activities that
	// replace them, when the driver knows it.
	Replaced map[string]string
}

// WalletInfo is a wallet found for an address.
type WalletInfo struct {
	Wallet *Wallet
	// Title is a human name for the address, like a resolved domain.
	Title string
}

// Driver is the capability set of one chain. Expected failures are returned
// as failed wallet.Results. The error return is for unexpected failures.
type Driver interface {
	Chain() wallet.Chain
	// NormalizeAddress returns the canonical form of an address, used to
	// compare addresses. Unparseable addresses are returned as they are.
	NormalizeAddress(net wallet.Network, address string) string
	// FetchActivitySlice returns a page of activities, sorted newest first
	// and unique by id.
	FetchActivitySlice(ctx context.Context, acct *Account, opts *SliceOptions) ([]*activity.Activity, error)
	// FetchNewActivities returns the activities since fromTimestamp,
	// including pending ones.
	FetchNewActivities(ctx context.Context, acct *Account, fromTimestamp int64) (*NewActivities, error)
	// FetchActivityDetails returns the activity with details filled in, or
	// nil if this chain has nothing to add.
	FetchActivityDetails(ctx context.Context, acct *Account, a *activity.Activity) (*activity.Activity, error)
	FetchTransactionByID(ctx context.Context, lookup *TxLookup) ([]*activity.Activity, error)
	DecryptComment(ctx context.Context, acct *Account, a *activity.Activity, password string) (wallet.Result[string], error)
	CheckTransactionDraft(ctx context.Context, acct *Account, opts *DraftOptions) (wallet.Result[*DraftResult], error)
	SubmitGasfullTransfer(ctx context.Context, acct *Account, opts *TransferOptions) (wallet.Result[*TransferResult], error)
	SubmitGaslessTransfer(ctx context.Context, acct *Account, opts *GaslessTransferOptions) (wallet.Result[*TransferResult], error)
	FetchEstimateDiesel(ctx context.Context, acct *Account, tokenAddress string) (*DieselEstimate, error)
	// ValidateMnemonic checks a chain-native mnemonic.
	ValidateMnemonic(words []string) bool
	// GenerateMnemonic creates a new chain-native mnemonic.
	GenerateMnemonic() ([]string, error)
	// WalletFromMnemonic derives the wallet of a chain-native mnemonic. An
	// empty version selects the default.
	WalletFromMnemonic(ctx context.Context, net wallet.Network, words []string, version string) (*Wallet, error)
	WalletFromBip39Mnemonic(ctx context.Context, net wallet.Network, words []string) (*Wallet, error)
	WalletFromPrivateKey(ctx context.Context, net wallet.Network, privateKey string) (*Wallet, error)
	WalletFromAddress(ctx context.Context, net wallet.Network, address string) (wallet.Result[*WalletInfo], error)
}

// StakingType distinguishes staking products.
type StakingType string

const (
	StakingNominators StakingType = "nominators"
	StakingLiquid     StakingType = "liquid"
	StakingJetton     StakingType = "jetton"
	StakingEthena     StakingType = "ethena"
)

// StakingState is an account's position in one staking product.
type StakingState struct {
	ID        string      `json:"id"`
	Type      StakingType `json:"type"`
	TokenSlug string      `json:"tokenSlug"`
	Pool      string      `json:"pool"`
	// Balance is the staked amount, in the staked token.
	Balance *big.Int `json:"balance"`
	// UnstakeRequestAmount is the amount waiting to be unstaked.
	UnstakeRequestAmount *big.Int `json:"unstakeRequestAmount,omitempty"`
	// UnclaimedRewards is claimable for jetton staking.
	UnclaimedRewards *big.Int `json:"unclaimedRewards,omitempty"`
	// UnlockTime is when locked ethena stakes can be withdrawn, ms.
	UnlockTime  int64   `json:"unlockTime,omitempty"`
	AnnualYield float64 `json:"annualYield"`
	// TokenAddress is the staked jetton, when the token isn't native.
	TokenAddress string `json:"tokenAddress,omitempty"`
	// TokenWallet is the account's jetton wallet for TokenAddress.
	TokenWallet string `json:"tokenWallet,omitempty"`
	// StakedTokenAddress is the jetton received for the stake, like tsTON,
	// for liquid and ethena staking.
	StakedTokenAddress string `json:"stakedTokenAddress,omitempty"`
}

// Staker is implemented by drivers of chains with staking.
type Staker interface {
	CheckStakeDraft(ctx context.Context, acct *Account, amount *big.Int, state *StakingState) (wallet.Result[*DraftResult], error)
	CheckUnstakeDraft(ctx context.Context, acct *Account, amount *big.Int, state *StakingState) (wallet.Result[*DraftResult], error)
	SubmitStake(ctx context.Context, acct *Account, password string, amount *big.Int, state *StakingState) (wallet.Result[*TransferResult], error)
	SubmitUnstake(ctx context.Context, acct *Account, password string, amount *big.Int, state *StakingState) (wallet.Result[*TransferResult], error)
	// SubmitStakingClaimOrUnlock claims jetton staking rewards or unlocks an
	// ethena stake.
	SubmitStakingClaimOrUnlock(ctx context.Context, acct *Account, password string, state *StakingState) (wallet.Result[*TransferResult], error)
}

// Message is one transfer of a multi-message submission, as built by the
// swap backend.
type Message struct {
	ToAddress string   `json:"toAddress"`
	Amount    *big.Int `json:"amount"`
	// Payload is a base64 encoded payload cell.
	Payload   string `json:"payload,omitempty"`
	StateInit string `json:"stateInit,omitempty"`
}

// MultiTransferResult is the outcome of a multi-message submission.
type MultiTransferResult struct {
	MsgHash           string
	MsgHashNormalized string
	WithW5Gasless     bool
}

// DexSwapRequest is the part of a swap build request that transfers are
// validated against.
type DexSwapRequest struct {
	From            string
	To              string
	FromAmount      string
	FromAddress     string
	ShouldTryDiesel bool
	WalletVersion   string
}

// MultiTransferer is implemented by drivers that can send several messages
// at once, which on-chain swaps require.
type MultiTransferer interface {
	// ValidateDexSwapTransfers checks that the transfers built by the swap
	// backend match the request.
	ValidateDexSwapTransfers(ctx context.Context, acct *Account, req *DexSwapRequest, msgs []*Message) error
	CheckMultiTransactionDraft(ctx context.Context, acct *Account, msgs []*Message, tryDiesel bool) (wallet.Result[*DraftResult], error)
	SubmitMultiTransfer(ctx context.Context, acct *Account, password string, msgs []*Message, isGasless bool) (wallet.Result[*MultiTransferResult], error)
}

// VersionedWallets is implemented by drivers of chains with several wallet
// contract versions per key.
type VersionedWallets interface {
	OtherVersionWallet(net wallet.Network, w *Wallet, version string, isTestnetSubwalletID bool) (*Wallet, error)
}
