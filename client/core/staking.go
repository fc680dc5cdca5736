// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package core

import (
	"context"
	"math/big"
	"time"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/backend"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/wait"
)

// StakingRequest is a stake, unstake, claim or unlock to send. Amount is
// unused for claims and unlocks.
type StakingRequest struct {
	AccountID string
	Password  string
	Amount    *big.Int
	State     *chain.StakingState
}

// staker loads the account's TON view with a driver that can stake.
func (c *Core) staker(accountID string) (*chain.Account, chain.Driver, chain.Staker, error) {
	ca, d, err := c.chainAccount(accountID, wallet.ChainTON)
	if err != nil {
		return nil, nil, nil, err
	}
	s, ok := d.(chain.Staker)
	if !ok {
		return nil, nil, nil, newError(notSupportedErr, "the %s driver can't stake", d.Chain())
	}
	return ca, d, s, nil
}

// CheckStakeDraft checks that the account can stake the amount.
func (c *Core) CheckStakeDraft(ctx context.Context, accountID string, amount *big.Int, state *chain.StakingState) (wallet.Result[*chain.DraftResult], error) {
	ca, _, s, err := c.staker(accountID)
	if err != nil {
		return wallet.Result[*chain.DraftResult]{}, err
	}
	res, err := s.CheckStakeDraft(ctx, ca, amount, state)
	if err != nil {
		return res, codedError(stakingErr, err)
	}
	return res, nil
}

// CheckUnstakeDraft checks that the account can unstake the amount.
func (c *Core) CheckUnstakeDraft(ctx context.Context, accountID string, amount *big.Int, state *chain.StakingState) (wallet.Result[*chain.DraftResult], error) {
	ca, _, s, err := c.staker(accountID)
	if err != nil {
		return wallet.Result[*chain.DraftResult]{}, err
	}
	res, err := s.CheckUnstakeDraft(ctx, ca, amount, state)
	if err != nil {
		return res, codedError(stakingErr, err)
	}
	return res, nil
}

type stakingSubmitter func(context.Context, *chain.Account, chain.Staker) (wallet.Result[*chain.TransferResult], error)

// submitStaking sends a staking operation and publishes its local activity.
// adjust sets the fields that depend on the operation.
func (c *Core) submitStaking(ctx context.Context, req *StakingRequest, submit stakingSubmitter, adjust func(*activity.LocalTransactionParams)) (wallet.Result[string], error) {
	ca, d, s, err := c.staker(req.AccountID)
	if err != nil {
		return wallet.Result[string]{}, err
	}
	res, err := submit(ctx, ca, s)
	if err != nil {
		return wallet.Result[string]{}, codedError(stakingErr, err)
	}
	if res.Failed() {
		return wallet.FailAs[string](res), nil
	}
	sent := res.Value

	p := new(activity.LocalTransactionParams)
	if sent.LocalActivity != nil {
		*p = *sent.LocalActivity
	}
	if p.TxID == "" {
		p.TxID = sent.TxID
	}
	p.FromAddress = ca.Wallet.Address
	if p.Slug == "" {
		p.Slug = req.State.TokenSlug
	}
	if p.Slug == "" {
		p.Slug = activity.NativeSlug(d.Chain())
	}
	adjust(p)
	acts := c.createLocalTransactions(ca, d, []*activity.LocalTransactionParams{p})
	return wallet.Ok(acts[0].ID), nil
}

// SubmitStake stakes the amount. The Result carries the id of the local
// activity.
func (c *Core) SubmitStake(ctx context.Context, req *StakingRequest) (wallet.Result[string], error) {
	return c.submitStaking(ctx, req,
		func(ctx context.Context, ca *chain.Account, s chain.Staker) (wallet.Result[*chain.TransferResult], error) {
			return s.SubmitStake(ctx, ca, req.Password, req.Amount, req.State)
		},
		func(p *activity.LocalTransactionParams) {
			p.Type = activity.TxStake
			p.Amount = req.Amount
		})
}

// SubmitUnstake requests the amount back from the pool. The local activity
// is an unstake request of amount zero, since the transfer it stands for only
// carries the fee.
func (c *Core) SubmitUnstake(ctx context.Context, req *StakingRequest) (wallet.Result[string], error) {
	return c.submitStaking(ctx, req,
		func(ctx context.Context, ca *chain.Account, s chain.Staker) (wallet.Result[*chain.TransferResult], error) {
			return s.SubmitUnstake(ctx, ca, req.Password, req.Amount, req.State)
		},
		func(p *activity.LocalTransactionParams) {
			p.Type = activity.TxUnstakeRequest
			p.Amount = new(big.Int)
		})
}

// SubmitStakingClaimOrUnlock claims the rewards of a jetton stake or
// withdraws an unlocked ethena stake.
func (c *Core) SubmitStakingClaimOrUnlock(ctx context.Context, req *StakingRequest) (wallet.Result[string], error) {
	return c.submitStaking(ctx, req,
		func(ctx context.Context, ca *chain.Account, s chain.Staker) (wallet.Result[*chain.TransferResult], error) {
			return s.SubmitStakingClaimOrUnlock(ctx, ca, req.Password, req.State)
		},
		func(*activity.LocalTransactionParams) {})
}

// StakingHistory lists the staking profits of the account.
func (c *Core) StakingHistory(ctx context.Context, accountID string) ([]*backend.StakingProfit, error) {
	address, err := c.storedAddress(accountID, wallet.ChainTON)
	if err != nil {
		return nil, err
	}
	profits, err := c.backend.StakingProfits(ctx, address)
	if err != nil {
		return nil, codedError(backendErr, err)
	}
	return profits, nil
}

// StakingCommon is the last fetched staking data, or nil if it hasn't been
// fetched yet.
func (c *Core) StakingCommon() *backend.StakingCommon {
	c.stakingMtx.RLock()
	defer c.stakingMtx.RUnlock()
	return c.stakingCommon
}

// refreshStakingCommon fetches the staking data and publishes it. Failed
// fetches are retried until one succeeds.
func (c *Core) refreshStakingCommon(ctx context.Context) {
	if c.stakingQueue.Len() > 0 {
		// A retry is pending.
		return
	}
	c.stakingQueue.Wait(&wait.Waiter{
		TryFunc: func() wait.TryDirective {
			if ctx.Err() != nil {
				return wait.DontTryAgain
			}
			common, err := c.backend.StakingCommon(ctx)
			if err != nil {
				c.log.Warnf("Error fetching staking data: %v", err)
				return wait.TryAgain
			}
			c.stakingMtx.Lock()
			c.stakingCommon = common
			c.stakingMtx.Unlock()
			c.notify(&StakingCommonUpdate{Common: common})
			return wait.DontTryAgain
		},
	})
}

func (c *Core) refreshStakingCommonLoop(ctx context.Context) {
	c.refreshStakingCommon(ctx)
	ticker := time.NewTicker(c.cfg.StakingCommonInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshStakingCommon(ctx)
		}
	}
}
