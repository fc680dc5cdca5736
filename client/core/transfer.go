// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
)

// draftEntry is a successful draft check, reused until it expires.
type draftEntry struct {
	res     wallet.Result[*chain.DraftResult]
	expires time.Time
}

// draftKey identifies the draft checks that must give the same result.
func draftKey(ch wallet.Chain, accountID string, opts *chain.DraftOptions) (string, error) {
	var amount string
	if opts.Amount != nil {
		amount = opts.Amount.String()
	}
	b, err := json.Marshal(&struct {
		Chain        wallet.Chain   `json:"chain"`
		AccountID    string         `json:"accountId"`
		ToAddress    string         `json:"toAddress"`
		TokenAddress string         `json:"tokenAddress"`
		Amount       string         `json:"amount"`
		Payload      *chain.Payload `json:"payload"`
		StateInit    string         `json:"stateInit"`
		AllowGasless bool           `json:"allowGasless"`
	}{ch, accountID, opts.ToAddress, opts.TokenAddress, amount, opts.Payload, opts.StateInit, opts.AllowGasless})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Core) cachedDraft(key string) (wallet.Result[*chain.DraftResult], bool) {
	c.draftMtx.Lock()
	defer c.draftMtx.Unlock()
	e, found := c.drafts[key]
	if !found {
		return wallet.Result[*chain.DraftResult]{}, false
	}
	if c.now().After(e.expires) {
		delete(c.drafts, key)
		return wallet.Result[*chain.DraftResult]{}, false
	}
	return e.res, true
}

func (c *Core) cacheDraft(key string, res wallet.Result[*chain.DraftResult]) {
	c.draftMtx.Lock()
	defer c.draftMtx.Unlock()
	now := c.now()
	for k, e := range c.drafts {
		if now.After(e.expires) {
			delete(c.drafts, k)
		}
	}
	c.drafts[key] = &draftEntry{res: res, expires: now.Add(c.cfg.DraftCacheTTL)}
}

// CheckTransactionDraft checks a transfer before it's sent. Identical checks
// in flight share one driver call, and successful checks are reused for a
// short time. Expected failures, like an insufficient balance, are a failed
// Result.
func (c *Core) CheckTransactionDraft(ctx context.Context, ch wallet.Chain, req *DraftRequest) (wallet.Result[*chain.DraftResult], error) {
	ca, d, err := c.chainAccount(req.AccountID, ch)
	if err != nil {
		return wallet.Result[*chain.DraftResult]{}, err
	}
	key, err := draftKey(ch, req.AccountID, &req.DraftOptions)
	if err != nil {
		return wallet.Result[*chain.DraftResult]{}, err
	}
	if res, found := c.cachedDraft(key); found {
		return res, nil
	}
	v, err, _ := c.draftGroup.Do(key, func() (any, error) {
		res, err := d.CheckTransactionDraft(ctx, ca, &req.DraftOptions)
		if err != nil {
			return nil, err
		}
		if !res.Failed() {
			c.cacheDraft(key, res)
		}
		return res, nil
	})
	if err != nil {
		return wallet.Result[*chain.DraftResult]{}, codedError(chainErr, err)
	}
	return v.(wallet.Result[*chain.DraftResult]), nil
}

// transferSlug is the slug of the token a transfer moves.
func transferSlug(ch wallet.Chain, tokenAddress string) string {
	if tokenAddress == "" {
		return activity.NativeSlug(ch)
	}
	return activity.BuildTokenSlug(ch, tokenAddress)
}

// SubmitTransfer sends a transfer and publishes its local activity. The
// Result carries the id of the local activity. Expected failures are a failed
// Result, and nothing is published for them.
func (c *Core) SubmitTransfer(ctx context.Context, ch wallet.Chain, req *TransferRequest) (wallet.Result[string], error) {
	res, err := c.submitTransfer(ctx, ch, req)
	if err != nil || res.Failed() {
		return wallet.FailAs[string](res), err
	}
	return wallet.Ok(res.Value.activityID), nil
}

// submittedTransfer is a sent transfer with the id of its local activity.
type submittedTransfer struct {
	*chain.TransferResult
	activityID string
}

func (c *Core) submitTransfer(ctx context.Context, ch wallet.Chain, req *TransferRequest) (wallet.Result[*submittedTransfer], error) {
	ca, d, err := c.chainAccount(req.AccountID, ch)
	if err != nil {
		return wallet.Result[*submittedTransfer]{}, err
	}

	var res wallet.Result[*chain.TransferResult]
	if req.IsGasless {
		if req.TokenAddress == "" {
			return wallet.Result[*submittedTransfer]{}, newError(notSupportedErr, "gasless transfers need a token")
		}
		res, err = d.SubmitGaslessTransfer(ctx, ca, &chain.GaslessTransferOptions{
			TransferOptions:    req.TransferOptions,
			DieselAmount:       req.DieselAmount,
			IsGaslessWithStars: req.IsGaslessWithStars,
		})
	} else {
		res, err = d.SubmitGasfullTransfer(ctx, ca, &req.TransferOptions)
	}
	if err != nil {
		return wallet.Result[*submittedTransfer]{}, codedError(chainErr, err)
	}
	if res.Failed() {
		c.log.Debugf("%s transfer of %s failed: %s", ch, req.AccountID, res.Err)
		return wallet.FailAs[*submittedTransfer](res), nil
	}
	sent := res.Value

	p := new(activity.LocalTransactionParams)
	if sent.LocalActivity != nil {
		*p = *sent.LocalActivity
	}
	p.TxID = sent.TxID
	p.Amount = req.Amount
	p.FromAddress = ca.Wallet.Address
	p.ToAddress = req.ToAddress
	p.Comment = req.Payload.PlainComment()
	p.Slug = transferSlug(ch, req.TokenAddress)
	switch {
	case req.RealFee != nil:
		p.Fee = req.RealFee
	case p.Fee == nil:
		p.Fee = req.Fee
	}
	if sent.WithW5Gasless {
		if p.Extra == nil {
			p.Extra = new(activity.Extra)
		}
		p.Extra.WithW5Gasless = true
	}

	acts := c.createLocalTransactions(ca, d, []*activity.LocalTransactionParams{p})
	if sent.PaymentLink != "" {
		c.notify(&OpenURLUpdate{URL: sent.PaymentLink, IsExternal: true})
	}
	return wallet.Ok(&submittedTransfer{TransferResult: sent, activityID: acts[0].ID}), nil
}

// createLocalTransactions builds the local activities of a submission,
// tracks them until they're superseded and publishes them.
func (c *Core) createLocalTransactions(ca *chain.Account, d chain.Driver, params []*activity.LocalTransactionParams) []*activity.Activity {
	now := c.now()
	acts := make([]*activity.Activity, 0, len(params))
	for i, p := range params {
		normalized := p.NormalizedAddress
		if normalized == "" {
			normalized = d.NormalizeAddress(ca.Network, p.ToAddress)
		}
		acts = append(acts, activity.NewLocalTransaction(p, normalized, i, now))
	}
	c.publishLocalActivities(ca.ID, acts)
	return acts
}

// publishLocalActivities tracks and publishes local activities. Publishing
// an activity again with the same id updates it.
func (c *Core) publishLocalActivities(accountID string, acts []*activity.Activity) {
	c.locals.track(accountID, acts)
	c.notify(&NewLocalActivitiesUpdate{AccountID: accountID, Activities: acts})
}

// CreateLocalActivitiesFromEmulation publishes the activities predicted by
// the emulation of a sent message, like a dapp transaction.
func (c *Core) CreateLocalActivitiesFromEmulation(accountID, msgHashNorm string, emulated []*activity.Activity) ([]*activity.Activity, error) {
	if _, err := c.storedAccount(accountID); err != nil {
		return nil, err
	}
	acts := activity.LocalActivitiesFromEmulation(msgHashNorm, emulated, c.now())
	if len(acts) > 0 {
		c.publishLocalActivities(accountID, acts)
	}
	return acts, nil
}

// FetchEstimateDiesel estimates the fee of a gasless transfer of the token.
func (c *Core) FetchEstimateDiesel(ctx context.Context, accountID string, ch wallet.Chain, tokenAddress string) (*chain.DieselEstimate, error) {
	ca, d, err := c.chainAccount(accountID, ch)
	if err != nil {
		return nil, err
	}
	est, err := d.FetchEstimateDiesel(ctx, ca, tokenAddress)
	if err != nil {
		return nil, codedError(chainErr, err)
	}
	return est, nil
}
