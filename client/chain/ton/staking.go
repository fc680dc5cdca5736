// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"context"
	"fmt"
	"math/big"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/xssnick/tonutils-go/address"
)

// Amounts attached to staking messages, in nanotons. Whatever the pools
// don't spend comes back.
const (
	nominatorsStakeFee  = 1_000_000_000
	liquidStakeFee      = 1_000_000_000
	liquidUnstakeAmount = 1_050_000_000
	jettonStakeAmount   = 200_000_000
	jettonForwardAmount = 100_000_000

	nominatorsDepositComment  = "d"
	nominatorsWithdrawComment = "w"
)

// stakingPlan holds the messages of a staking operation.
type stakingPlan struct {
	msgs []*chain.Message
	// fee is what the account pays on top of the staked amount.
	fee *big.Int
}

func (d *Driver) stakingTokenWallet(ctx context.Context, acct *chain.Account, state *chain.StakingState, tokenAddress string) (*address.Address, error) {
	if tokenAddress == state.TokenAddress && state.TokenWallet != "" {
		return parseAddress(state.TokenWallet)
	}
	api, err := d.api(acct.Network)
	if err != nil {
		return nil, err
	}
	jw, err := api.jettonWallet(ctx, acct.Wallet.Address, tokenAddress)
	if err != nil {
		return nil, err
	}
	if jw == nil {
		return nil, fmt.Errorf("account %s has no wallet for token %s", acct.ID, tokenAddress)
	}
	return parseAddress(jw.Address)
}

func (d *Driver) jettonStakingMessage(ctx context.Context, acct *chain.Account, state *chain.StakingState, tokenAddress string, amount *big.Int) (*chain.Message, error) {
	jw, err := d.stakingTokenWallet(ctx, acct, state, tokenAddress)
	if err != nil {
		return nil, err
	}
	pool, err := parseAddress(state.Pool)
	if err != nil {
		return nil, fmt.Errorf("bad pool address %q: %w", state.Pool, err)
	}
	owner, err := parseAddress(acct.Wallet.Address)
	if err != nil {
		return nil, err
	}
	forward := opCell(opJettonStake, newQueryID())
	return &chain.Message{
		ToAddress: formatAddress(jw, true, acct.Network),
		Amount:    big.NewInt(jettonStakeAmount),
		Payload:   toBoc(jettonTransferCell(newQueryID(), amount, pool, owner, big.NewInt(jettonForwardAmount), forward)),
	}, nil
}

func (d *Driver) stakeMessages(ctx context.Context, acct *chain.Account, amount *big.Int, state *chain.StakingState) (*stakingPlan, error) {
	switch state.Type {
	case chain.StakingNominators:
		return &stakingPlan{
			msgs: []*chain.Message{{
				ToAddress: state.Pool,
				Amount:    new(big.Int).Add(amount, big.NewInt(nominatorsStakeFee)),
				Payload:   toBoc(commentCell(nominatorsDepositComment)),
			}},
			fee: big.NewInt(nominatorsStakeFee),
		}, nil
	case chain.StakingLiquid:
		return &stakingPlan{
			msgs: []*chain.Message{{
				ToAddress: state.Pool,
				Amount:    new(big.Int).Add(amount, big.NewInt(liquidStakeFee)),
				Payload:   toBoc(opCell(opLiquidDeposit, newQueryID())),
			}},
			fee: big.NewInt(liquidStakeFee),
		}, nil
	case chain.StakingJetton, chain.StakingEthena:
		msg, err := d.jettonStakingMessage(ctx, acct, state, state.TokenAddress, amount)
		if err != nil {
			return nil, err
		}
		return &stakingPlan{msgs: []*chain.Message{msg}, fee: big.NewInt(jettonStakeAmount)}, nil
	}
	return nil, fmt.Errorf("unknown staking type %q", state.Type)
}

func (d *Driver) unstakeMessages(ctx context.Context, acct *chain.Account, amount *big.Int, state *chain.StakingState) (*stakingPlan, error) {
	switch state.Type {
	case chain.StakingNominators:
		return &stakingPlan{
			msgs: []*chain.Message{{
				ToAddress: state.Pool,
				Amount:    big.NewInt(nominatorsStakeFee),
				Payload:   toBoc(commentCell(nominatorsWithdrawComment)),
			}},
			fee: big.NewInt(nominatorsStakeFee),
		}, nil
	case chain.StakingLiquid:
		// Liquid stakes are withdrawn by burning the staked token.
		jw, err := d.stakingTokenWallet(ctx, acct, state, state.StakedTokenAddress)
		if err != nil {
			return nil, err
		}
		owner, err := parseAddress(acct.Wallet.Address)
		if err != nil {
			return nil, err
		}
		return &stakingPlan{
			msgs: []*chain.Message{{
				ToAddress: formatAddress(jw, true, acct.Network),
				Amount:    big.NewInt(liquidUnstakeAmount),
				Payload:   toBoc(jettonBurnCell(newQueryID(), amount, owner)),
			}},
			fee: big.NewInt(liquidUnstakeAmount),
		}, nil
	case chain.StakingJetton:
		return &stakingPlan{
			msgs: []*chain.Message{{
				ToAddress: state.Pool,
				Amount:    big.NewInt(jettonStakeAmount),
				Payload:   toBoc(opAmountCell(opJettonUnstake, newQueryID(), amount)),
			}},
			fee: big.NewInt(jettonStakeAmount),
		}, nil
	case chain.StakingEthena:
		// The staked token goes back to the pool, which locks the stake
		// until UnlockTime.
		msg, err := d.jettonStakingMessage(ctx, acct, state, state.StakedTokenAddress, amount)
		if err != nil {
			return nil, err
		}
		return &stakingPlan{msgs: []*chain.Message{msg}, fee: big.NewInt(jettonStakeAmount)}, nil
	}
	return nil, fmt.Errorf("unknown staking type %q", state.Type)
}

func (d *Driver) checkStakingDraft(ctx context.Context, acct *chain.Account, plan *stakingPlan) (wallet.Result[*chain.DraftResult], error) {
	res, err := d.CheckMultiTransactionDraft(ctx, acct, plan.msgs, false)
	if err != nil || res.Failed() {
		return res, err
	}
	res.Value.Fee = new(big.Int).Add(res.Value.Fee, plan.fee)
	return res, nil
}

// CheckStakeDraft checks that the account can stake the amount.
func (d *Driver) CheckStakeDraft(ctx context.Context, acct *chain.Account, amount *big.Int, state *chain.StakingState) (wallet.Result[*chain.DraftResult], error) {
	if amount == nil || amount.Sign() <= 0 {
		return wallet.Fail[*chain.DraftResult](wallet.ErrInvalidAmount), nil
	}
	plan, err := d.stakeMessages(ctx, acct, amount, state)
	if err != nil {
		return wallet.Result[*chain.DraftResult]{}, err
	}
	return d.checkStakingDraft(ctx, acct, plan)
}

// CheckUnstakeDraft checks that the account can unstake the amount.
func (d *Driver) CheckUnstakeDraft(ctx context.Context, acct *chain.Account, amount *big.Int, state *chain.StakingState) (wallet.Result[*chain.DraftResult], error) {
	if amount == nil || amount.Sign() < 0 || (state.Balance != nil && amount.Cmp(state.Balance) > 0) {
		return wallet.Fail[*chain.DraftResult](wallet.ErrInsufficientBalance), nil
	}
	plan, err := d.unstakeMessages(ctx, acct, amount, state)
	if err != nil {
		return wallet.Result[*chain.DraftResult]{}, err
	}
	return d.checkStakingDraft(ctx, acct, plan)
}

func (d *Driver) submitStaking(ctx context.Context, acct *chain.Account, password string, amount *big.Int, plan *stakingPlan, pool string) (wallet.Result[*chain.TransferResult], error) {
	res, err := d.submitMessages(ctx, acct, password, plan.msgs, false)
	if err != nil || res.Failed() {
		return wallet.FailAs[*chain.TransferResult](res), err
	}
	signed := res.Value
	return wallet.Ok(&chain.TransferResult{
		TxID:              signed.MsgHashNormalized,
		MsgHashForCexSwap: signed.MsgHash,
		LocalActivity: &activity.LocalTransactionParams{
			TxID:                signed.MsgHashNormalized,
			Amount:              amount,
			FromAddress:         acct.Wallet.Address,
			ToAddress:           pool,
			NormalizedAddress:   toBase64Address(pool, true, acct.Network),
			Fee:                 plan.fee,
			ExternalMsgHashNorm: signed.MsgHashNormalized,
		},
	}), nil
}

// SubmitStake stakes the amount.
func (d *Driver) SubmitStake(ctx context.Context, acct *chain.Account, password string, amount *big.Int, state *chain.StakingState) (wallet.Result[*chain.TransferResult], error) {
	plan, err := d.stakeMessages(ctx, acct, amount, state)
	if err != nil {
		return wallet.Result[*chain.TransferResult]{}, err
	}
	return d.submitStaking(ctx, acct, password, amount, plan, state.Pool)
}

// SubmitUnstake requests the amount back from the pool.
func (d *Driver) SubmitUnstake(ctx context.Context, acct *chain.Account, password string, amount *big.Int, state *chain.StakingState) (wallet.Result[*chain.TransferResult], error) {
	plan, err := d.unstakeMessages(ctx, acct, amount, state)
	if err != nil {
		return wallet.Result[*chain.TransferResult]{}, err
	}
	return d.submitStaking(ctx, acct, password, amount, plan, state.Pool)
}

// SubmitStakingClaimOrUnlock claims the rewards of a jetton stake, or
// withdraws an unlocked ethena stake.
func (d *Driver) SubmitStakingClaimOrUnlock(ctx context.Context, acct *chain.Account, password string, state *chain.StakingState) (wallet.Result[*chain.TransferResult], error) {
	var op uint64
	var amount *big.Int
	switch state.Type {
	case chain.StakingJetton:
		op, amount = opJettonClaim, state.UnclaimedRewards
	case chain.StakingEthena:
		if state.UnlockTime > d.now().UnixMilli() {
			return wallet.Fail[*chain.TransferResult](wallet.ErrNotSupported), nil
		}
		op, amount = opEthenaUnlock, state.UnstakeRequestAmount
	default:
		return wallet.Fail[*chain.TransferResult](wallet.ErrNotSupported), nil
	}
	if amount == nil {
		amount = new(big.Int)
	}
	plan := &stakingPlan{
		msgs: []*chain.Message{{
			ToAddress: state.Pool,
			Amount:    big.NewInt(jettonStakeAmount),
			Payload:   toBoc(opCell(op, newQueryID())),
		}},
		fee: big.NewInt(jettonStakeAmount),
	}
	return d.submitStaking(ctx, acct, password, amount, plan, state.Pool)
}
