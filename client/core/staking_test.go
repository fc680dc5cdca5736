package core

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/backend"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/wait"
)

var tStakingState = &chain.StakingState{
	ID:        "liquid",
	Type:      chain.StakingLiquid,
	TokenSlug: activity.ToncoinSlug,
	Pool:      "pool",
	Balance:   big.NewInt(1000),
}

func TestSubmitStake(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	rig.ton.stake = wallet.Ok(&chain.TransferResult{
		TxID: "st",
		LocalActivity: &activity.LocalTransactionParams{
			Amount:    big.NewInt(500),
			ToAddress: "pool",
			Fee:       big.NewInt(1),
		},
	})

	res, err := rig.core.SubmitStake(tCtx, &StakingRequest{
		AccountID: id,
		Password:  tPassword,
		Amount:    big.NewInt(500),
		State:     tStakingState,
	})
	if err != nil || res.Failed() {
		t.Fatalf("SubmitStake error: %v, %s", err, res.Err)
	}
	a := rig.updates.localActivities()[0]
	if a.ID != res.Value || a.Type != activity.TxStake || a.Amount.Int64() != 500 || a.Slug != activity.ToncoinSlug {
		t.Fatalf("wrong stake activity %+v", a)
	}
	if a.FromAddress != "ton-addr" || a.ToAddress != "pool" {
		t.Fatalf("wrong addresses %s -> %s", a.FromAddress, a.ToAddress)
	}
}

func TestSubmitUnstake(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	rig.ton.stake = wallet.Ok(&chain.TransferResult{
		TxID: "un",
		LocalActivity: &activity.LocalTransactionParams{
			Amount:    big.NewInt(500),
			ToAddress: "pool",
		},
	})

	res, err := rig.core.SubmitUnstake(tCtx, &StakingRequest{
		AccountID: id,
		Password:  tPassword,
		Amount:    big.NewInt(500),
		State:     tStakingState,
	})
	if err != nil || res.Failed() {
		t.Fatalf("SubmitUnstake error: %v, %s", err, res.Err)
	}
	a := rig.updates.localActivities()[0]
	if a.Amount.Sign() != 0 {
		t.Fatalf("unstake amount %s, expected 0", a.Amount)
	}
	if a.Type != activity.TxUnstakeRequest {
		t.Fatalf("unstake type %q", a.Type)
	}
}

func TestSubmitStakingFailure(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	rig.ton.stake = wallet.Fail[*chain.TransferResult](wallet.ErrNotSupported)
	res, err := rig.core.SubmitStakingClaimOrUnlock(tCtx, &StakingRequest{AccountID: id, State: tStakingState})
	if err != nil || res.Err != wallet.ErrNotSupported {
		t.Fatalf("expected %s, got %v, %q", wallet.ErrNotSupported, err, res.Err)
	}
	if len(rig.updates.localActivities()) != 0 {
		t.Fatalf("failed claim published")
	}

	rig.ton.stake = wallet.Result[*chain.TransferResult]{}
	rig.ton.stakeErr = tErr
	if _, err := rig.core.SubmitStake(tCtx, &StakingRequest{AccountID: id, State: tStakingState}); !errorHasCode(err, stakingErr) {
		t.Fatalf("expected a staking error, got %v", err)
	}
}

func TestCheckStakeDraft(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	rig.ton.draft = wallet.Ok(&chain.DraftResult{Fee: big.NewInt(2)})
	res, err := rig.core.CheckStakeDraft(tCtx, id, big.NewInt(1), tStakingState)
	if err != nil || res.Value.Fee.Int64() != 2 {
		t.Fatalf("unexpected draft %v, %v", res, err)
	}
	rig.ton.draft = wallet.Fail[*chain.DraftResult](wallet.ErrInsufficientBalance)
	res, err = rig.core.CheckUnstakeDraft(tCtx, id, big.NewInt(1), tStakingState)
	if err != nil || res.Err != wallet.ErrInsufficientBalance {
		t.Fatalf("expected %s, got %v, %q", wallet.ErrInsufficientBalance, err, res.Err)
	}
}

func TestRefreshStakingCommon(t *testing.T) {
	rig := newTestRig(t)
	rig.backend.commonErr = tErr
	rig.core.stakingQueue = wait.NewTickerQueue(time.Millisecond * 5)

	ctx, cancel := context.WithCancel(tCtx)
	defer cancel()
	rig.core.refreshStakingCommon(ctx)
	if rig.core.StakingCommon() != nil {
		t.Fatalf("staking data set after a failure")
	}
	if rig.core.stakingQueue.Len() != 1 {
		t.Fatalf("failed refresh not queued for a retry")
	}
	// A queued retry isn't duplicated.
	rig.core.refreshStakingCommon(ctx)
	if rig.core.stakingQueue.Len() != 1 {
		t.Fatalf("retry queued twice")
	}

	rig.backend.mtx.Lock()
	rig.backend.commonErr = nil
	rig.backend.common = &backend.StakingCommon{}
	rig.backend.mtx.Unlock()

	// The queue retries until the fetch succeeds.
	go rig.core.stakingQueue.Run(ctx)
	for range 100 {
		if rig.core.StakingCommon() != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if rig.core.StakingCommon() == nil {
		t.Fatalf("staking data not refreshed")
	}
	if n := len(rig.updates.ofType(UpdateStaking)); n != 1 {
		t.Fatalf("expected one staking update, got %d", n)
	}
}

func TestStakingHistory(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	rig.backend.profits = []*backend.StakingProfit{{}}
	profits, err := rig.core.StakingHistory(tCtx, id)
	if err != nil || len(profits) != 1 {
		t.Fatalf("unexpected history %v, %v", profits, err)
	}
}
