// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package core

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/dchest/blake2b"
	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/backend"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/client/db"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/encrypt"
	"github.com/tonwallet/walletcore/wallet/utils"
)

// SwapSubmitRequest is a built on-chain swap to send.
type SwapSubmitRequest struct {
	AccountID string
	Password  string
	Transfers []*backend.Transfer
	// Swap is the swap as registered by the build.
	Swap      *activity.SwapHistoryItem
	IsGasless bool
}

// CexSubmitRequest is the transfer that pays a cross-chain swap.
type CexSubmitRequest struct {
	TransferRequest
	SwapID string
}

var authTokenPerson = []byte("swapAuthToken")

// backendAuthToken proves to the backend that the caller controls the
// account. It's derived from the secret for accounts with one, and from the
// public key otherwise. A wrong password is a failed Result.
func (c *Core) backendAuthToken(a *db.Account, password string) (wallet.Result[string], error) {
	w, found := a.ByChain[wallet.ChainTON]
	if !found {
		return wallet.Result[string]{}, newError(accountErr, "account %s has no TON wallet", a.ID)
	}
	var seed []byte
	if a.Type.HasSecret() {
		words, err := encrypt.OpenSecret(a.Secret, password)
		if err != nil {
			if errors.Is(err, encrypt.ErrIncorrectPassword) {
				return wallet.Fail[string](wallet.ErrInvalidPassword), nil
			}
			return wallet.Result[string]{}, codedError(encryptionErr, err)
		}
		seed = []byte(strings.Join(words, " "))
	} else {
		seed = []byte(w.PublicKey)
	}
	key := blake2b.Sum256(seed)
	h, err := blake2b.New(&blake2b.Config{Size: 32, Key: key[:], Person: authTokenPerson})
	if err != nil {
		return wallet.Result[string]{}, err
	}
	h.Write([]byte(w.Address))
	return wallet.Ok(hex.EncodeToString(h.Sum(nil))), nil
}

// swapAccount loads the account with its TON driver, which must be able to
// send several messages at once.
func (c *Core) swapAccount(accountID string) (*db.Account, *chain.Account, chain.MultiTransferer, error) {
	a, err := c.storedAccount(accountID)
	if err != nil {
		return nil, nil, nil, err
	}
	ca, err := a.ChainAccount(wallet.ChainTON)
	if err != nil {
		return nil, nil, nil, codedError(accountErr, err)
	}
	d, err := c.driver(wallet.ChainTON)
	if err != nil {
		return nil, nil, nil, err
	}
	mt, ok := d.(chain.MultiTransferer)
	if !ok {
		return nil, nil, nil, newError(notSupportedErr, "the TON driver can't send swaps")
	}
	return a, ca, mt, nil
}

// patchSwap records the outcome of a swap's transfers with the backend. It
// runs even if ctx was canceled, since the transfers may have been sent.
func (c *Core) patchSwap(ctx context.Context, address, swapID, authToken string, patch *backend.SwapPatch) {
	err := c.backend.PatchSwapItem(context.WithoutCancel(ctx), address, swapID, authToken, patch)
	if err != nil {
		c.log.Errorf("Error recording the outcome of swap %s: %v", swapID, err)
	}
}

// SwapEstimate estimates an on-chain swap for the account. A rejected
// estimate is a failed Result.
func (c *Core) SwapEstimate(ctx context.Context, accountID string, req *backend.EstimateRequest) (wallet.Result[*backend.EstimateResponse], error) {
	a, err := c.storedAccount(accountID)
	if err != nil {
		return wallet.Result[*backend.EstimateResponse]{}, err
	}
	w, found := a.ByChain[wallet.ChainTON]
	if !found {
		return wallet.Result[*backend.EstimateResponse]{}, newError(accountErr, "account %s has no TON wallet", accountID)
	}
	r := *req
	r.FromAddress = w.Address
	r.WalletVersion = w.Version
	res, err := c.backend.SwapEstimate(ctx, &r)
	if err != nil {
		return res, codedError(backendErr, err)
	}
	return res, nil
}

// SwapBuildTransfer builds the transfers of an on-chain swap and checks them.
// If the check fails, the failure is recorded with the backend.
func (c *Core) SwapBuildTransfer(ctx context.Context, accountID, password string, req *backend.BuildRequest) (wallet.Result[*SwapBuildResult], error) {
	a, ca, mt, err := c.swapAccount(accountID)
	if err != nil {
		return wallet.Result[*SwapBuildResult]{}, err
	}
	auth, err := c.backendAuthToken(a, password)
	if err != nil || auth.Failed() {
		return wallet.FailAs[*SwapBuildResult](auth), err
	}

	r := *req
	r.FromAddress = ca.Wallet.Address
	r.WalletVersion = ca.Wallet.Version
	built, err := c.backend.SwapBuild(ctx, auth.Value, &r)
	if err != nil {
		return wallet.Result[*SwapBuildResult]{}, codedError(backendErr, err)
	}
	fail := func(reason string) {
		c.patchSwap(ctx, ca.Wallet.Address, built.ID, auth.Value, &backend.SwapPatch{Error: reason})
	}

	msgs, err := transferMessages(built.Transfers)
	if err != nil {
		fail(err.Error())
		return wallet.Result[*SwapBuildResult]{}, codedError(swapErr, err)
	}
	err = mt.ValidateDexSwapTransfers(ctx, ca, &chain.DexSwapRequest{
		From:            r.From,
		To:              r.To,
		FromAmount:      r.FromAmount,
		FromAddress:     r.FromAddress,
		ShouldTryDiesel: r.ShouldTryDiesel,
		WalletVersion:   r.WalletVersion,
	}, msgs)
	if err != nil {
		fail(err.Error())
		return wallet.Result[*SwapBuildResult]{}, codedError(swapErr, err)
	}
	draft, err := mt.CheckMultiTransactionDraft(ctx, ca, msgs, r.ShouldTryDiesel)
	if err != nil {
		fail(err.Error())
		return wallet.Result[*SwapBuildResult]{}, codedError(chainErr, err)
	}
	if draft.Failed() {
		fail(string(draft.Err))
		return wallet.FailAs[*SwapBuildResult](draft), nil
	}
	return wallet.Ok(&SwapBuildResult{
		Draft:     draft.Value,
		ID:        built.ID,
		Transfers: built.Transfers,
	}), nil
}

func transferMessages(transfers []*backend.Transfer) ([]*chain.Message, error) {
	msgs := make([]*chain.Message, 0, len(transfers))
	for _, t := range transfers {
		m, err := t.Message()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// SwapSubmit sends the transfers of a built on-chain swap. The local swap
// activity is published first. If the transfers can't be sent, it's
// published again as failed, and the failure is recorded with the backend.
// The Result carries the id of the local activity.
func (c *Core) SwapSubmit(ctx context.Context, req *SwapSubmitRequest) (wallet.Result[string], error) {
	a, ca, mt, err := c.swapAccount(req.AccountID)
	if err != nil {
		return wallet.Result[string]{}, err
	}
	auth, err := c.backendAuthToken(a, req.Password)
	if err != nil || auth.Failed() {
		return wallet.FailAs[string](auth), err
	}

	item := *req.Swap
	item.Status = activity.StatusPending
	item.FromAddress = ca.Wallet.Address
	if item.Timestamp == 0 {
		item.Timestamp = c.now().UnixMilli()
	}
	local := activity.LocalSwapActivity(&item)
	c.publishLocalActivities(a.ID, []*activity.Activity{local})

	fail := func(reason string) {
		failed := local.Copy()
		failed.Status = activity.StatusFailed
		c.publishLocalActivities(a.ID, []*activity.Activity{failed})
		c.patchSwap(ctx, ca.Wallet.Address, item.ID, auth.Value, &backend.SwapPatch{Error: reason})
	}

	msgs, err := transferMessages(req.Transfers)
	if err != nil {
		fail(err.Error())
		return wallet.Result[string]{}, codedError(swapErr, err)
	}
	res, err := mt.SubmitMultiTransfer(ctx, ca, req.Password, msgs, req.IsGasless)
	if err != nil {
		fail(err.Error())
		return wallet.Result[string]{}, codedError(chainErr, err)
	}
	if res.Failed() {
		fail(string(res.Err))
		return wallet.FailAs[string](res), nil
	}

	sent := local.Copy()
	sent.ExternalMsgHashNorm = res.Value.MsgHashNormalized
	if res.Value.WithW5Gasless {
		sent.Extra = &activity.Extra{WithW5Gasless: true}
	}
	c.publishLocalActivities(a.ID, []*activity.Activity{sent})
	c.patchSwap(ctx, ca.Wallet.Address, item.ID, auth.Value, &backend.SwapPatch{MsgHash: res.Value.MsgHash})
	if c.hooks.OnSwapCreated != nil {
		c.hooks.OnSwapCreated(a.ID, item.Timestamp-1)
	}
	return wallet.Ok(sent.ID), nil
}

// FetchSwaps fetches swaps from the backend by activity id. Ids the backend
// doesn't know are listed in the result. Other failures only skip the swap.
func (c *Core) FetchSwaps(ctx context.Context, accountID string, ids []string) (*SwapsResult, error) {
	address, err := c.storedAddress(accountID, wallet.ChainTON)
	if err != nil {
		return nil, err
	}
	ids = utils.Unique(ids)
	res := &SwapsResult{Swaps: make([]*activity.Activity, 0, len(ids))}
	for _, id := range ids {
		item, err := c.backend.SwapHistoryItem(ctx, address, activity.ParseBackendSwapID(id))
		if err != nil {
			if backend.IsNotFound(err) {
				res.NonExistentIDs = append(res.NonExistentIDs, id)
				continue
			}
			c.log.Warnf("Error fetching swap %s: %v", id, err)
			continue
		}
		res.Swaps = append(res.Swaps, activity.SwapItemToActivity(item))
	}
	return res, nil
}

// SwapAssets lists the swappable assets.
func (c *Core) SwapAssets(ctx context.Context) ([]*backend.Asset, error) {
	assets, err := c.backend.SwapAssets(ctx)
	if err != nil {
		return nil, codedError(backendErr, err)
	}
	return assets, nil
}

// SwapPairs lists the assets that the asset can be swapped to.
func (c *Core) SwapPairs(ctx context.Context, asset string) ([]*backend.PairAsset, error) {
	pairs, err := c.backend.SwapPairs(ctx, asset)
	if err != nil {
		return nil, codedError(backendErr, err)
	}
	return pairs, nil
}

// SwapCexEstimate estimates a cross-chain swap. A rejected estimate is a
// failed Result.
func (c *Core) SwapCexEstimate(ctx context.Context, req *backend.CexEstimateRequest) (wallet.Result[*backend.CexEstimateResponse], error) {
	res, err := c.backend.SwapCexEstimate(ctx, req)
	if err != nil {
		return res, codedError(backendErr, err)
	}
	return res, nil
}

// SwapCexValidateAddress checks an address on the chain of the token.
func (c *Core) SwapCexValidateAddress(ctx context.Context, slug, address string) (*backend.AddressValidation, error) {
	v, err := c.backend.SwapCexValidateAddress(ctx, slug, address)
	if err != nil {
		return nil, codedError(backendErr, err)
	}
	return v, nil
}

// SwapCexCreateTransaction creates a cross-chain swap and publishes its
// activity.
func (c *Core) SwapCexCreateTransaction(ctx context.Context, accountID, password string, req *backend.CexCreateRequest) (wallet.Result[*CexSwapResult], error) {
	a, err := c.storedAccount(accountID)
	if err != nil {
		return wallet.Result[*CexSwapResult]{}, err
	}
	auth, err := c.backendAuthToken(a, password)
	if err != nil || auth.Failed() {
		return wallet.FailAs[*CexSwapResult](auth), err
	}
	r := *req
	if r.FromAddress == "" {
		r.FromAddress = a.ByChain[wallet.ChainTON].Address
	}
	item, err := c.backend.SwapCexCreateTransaction(ctx, auth.Value, &r)
	if err != nil {
		return wallet.Result[*CexSwapResult]{}, codedError(backendErr, err)
	}
	act := activity.SwapItemToActivity(item)
	c.notify(&NewActivitiesUpdate{
		AccountID:  accountID,
		Chain:      wallet.ChainTON,
		Activities: []*activity.Activity{act},
	})
	if c.hooks.OnSwapCreated != nil {
		c.hooks.OnSwapCreated(accountID, item.Timestamp-1)
	}
	return wallet.Ok(&CexSwapResult{Swap: item, Activity: act}), nil
}

// SwapCexSubmit sends the transfer that pays a cross-chain swap, and gives
// the backend its hash. The Result carries the id of the local activity.
func (c *Core) SwapCexSubmit(ctx context.Context, ch wallet.Chain, req *CexSubmitRequest) (wallet.Result[string], error) {
	r := req.TransferRequest
	r.IsGasless = false
	res, err := c.submitTransfer(ctx, ch, &r)
	if err != nil || res.Failed() {
		return wallet.FailAs[string](res), err
	}
	if res.Value.MsgHashForCexSwap != "" {
		a, err := c.storedAccount(req.AccountID)
		if err != nil {
			return wallet.Result[string]{}, err
		}
		auth, err := c.backendAuthToken(a, req.Password)
		switch {
		case err != nil:
			c.log.Errorf("Error authorizing the update of swap %s: %v", req.SwapID, err)
		case auth.Failed():
			c.log.Errorf("Error authorizing the update of swap %s: %s", req.SwapID, auth.Err)
		default:
			c.patchSwap(ctx, a.ByChain[wallet.ChainTON].Address, req.SwapID, auth.Value,
				&backend.SwapPatch{MsgHash: res.Value.MsgHashForCexSwap})
		}
	}
	return wallet.Ok(res.Value.activityID), nil
}
