// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package core

import (
	"context"
	"sync"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/backend"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/client/db"
	"github.com/tonwallet/walletcore/wallet"
	"golang.org/x/sync/errgroup"
)

// activityTraces holds the aggregated swap traces of every account, so that
// later pages aggregate them the same way.
type activityTraces struct {
	mtx       sync.Mutex
	byAccount map[string]*activity.TraceSet
}

func newActivityTraces() *activityTraces {
	return &activityTraces{byAccount: make(map[string]*activity.TraceSet)}
}

func (t *activityTraces) account(accountID string) *activity.TraceSet {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	s, found := t.byAccount[accountID]
	if !found {
		s = activity.NewTraceSet()
		t.byAccount[accountID] = s
	}
	return s
}

func (t *activityTraces) forget(accountIDs ...string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	for _, id := range accountIDs {
		delete(t.byAccount, id)
	}
}

func (t *activityTraces) forgetAll() {
	t.mtx.Lock()
	t.byAccount = make(map[string]*activity.TraceSet)
	t.mtx.Unlock()
}

// FetchPastActivities fetches a page of the account's activities older than
// toTimestamp, or the newest page if toTimestamp is 0. With a tokenSlug, only
// the activities of that token are fetched. Pages of several chains are
// merged, and the legs of known cross-chain swaps are replaced by the swaps.
// The page's ShouldFetchMore is set if any chain filled its page. Any failure
// fails the whole page, and the caller should try again later.
func (c *Core) FetchPastActivities(ctx context.Context, accountID string, limit int, tokenSlug string, toTimestamp int64) (*activity.Slice, error) {
	a, err := c.storedAccount(accountID)
	if err != nil {
		return nil, err
	}
	chains := a.Chains()
	if tokenSlug != "" {
		ch, ok := activity.ChainBySlug(tokenSlug)
		if !ok {
			return nil, newError(accountErr, "unknown token %q", tokenSlug)
		}
		if _, found := a.ByChain[ch]; !found {
			return nil, newError(accountErr, "account %s has no %s wallet", accountID, ch)
		}
		chains = []wallet.Chain{ch}
	}

	pages := make([]activity.Slice, len(chains))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range chains {
		g.Go(func() error {
			page, err := c.fetchSlice(gctx, a, ch, &chain.SliceOptions{
				TokenSlug:   tokenSlug,
				ToTimestamp: toTimestamp,
				Limit:       limit,
			})
			if err != nil {
				return err
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Errorf("Error fetching activities of %s: %v", accountID, err)
		return nil, err
	}

	var more bool
	for _, page := range pages {
		more = more || page.ShouldFetchMore
	}
	acts := activity.MergeSortedToMaxTime(pages...)
	acts = c.swapReplaceCex(ctx, a, acts, tokenSlug)
	return &activity.Slice{
		Activities:      activity.AggregateTonSwaps(acts, c.traces.account(accountID)),
		ShouldFetchMore: more,
	}, nil
}

// fetchSlice fetches the page of one chain. A full page is trimmed of its
// last trace, which may continue on the next page.
func (c *Core) fetchSlice(ctx context.Context, a *db.Account, ch wallet.Chain, opts *chain.SliceOptions) (activity.Slice, error) {
	d, err := c.driver(ch)
	if err != nil {
		return activity.Slice{}, err
	}
	ca, err := a.ChainAccount(ch)
	if err != nil {
		return activity.Slice{}, codedError(accountErr, err)
	}
	acts, err := d.FetchActivitySlice(ctx, ca, opts)
	if err != nil {
		return activity.Slice{}, codedError(chainErr, err)
	}
	if c.cfg.Debug && !activity.AreSortedAndUnique(acts) {
		c.log.Errorf("The %s activities of %s are not sorted and unique", ch, a.ID)
	}
	return activity.SliceFromPage(acts, opts.Limit), nil
}

// swapReplaceCex adds the cross-chain swaps of the activities' time range
// and hides their on-chain legs. Activities are returned unchanged if the
// swaps can't be fetched.
func (c *Core) swapReplaceCex(ctx context.Context, a *db.Account, acts []*activity.Activity, tokenSlug string) []*activity.Activity {
	if len(acts) == 0 || a.Network() == wallet.Testnet || !activity.CanHaveCexSwap(tokenSlug, acts) {
		return acts
	}
	w, found := a.ByChain[wallet.ChainTON]
	if !found {
		return acts
	}

	from, to := acts[len(acts)-1].Timestamp, acts[0].Timestamp
	q := &backend.HistoryQuery{
		FromTimestamp: from,
		ToTimestamp:   to,
		IsCex:         true,
	}
	if tokenSlug != "" {
		q.Asset = activity.SwapAsset(tokenSlug)
	}
	for _, act := range acts {
		if act.Kind == activity.KindTransaction {
			q.Hashes = append(q.Hashes, activity.ParseTxID(act.ID).Hash)
		}
	}
	items, err := c.backend.SwapHistory(ctx, w.Address, q)
	if err != nil {
		c.log.Warnf("Error fetching the cross-chain swaps of %s: %v", a.ID, err)
		return acts
	}

	swapHashes := make(map[string]bool)
	var swaps []*activity.Activity
	for _, item := range items {
		if item.Timestamp <= from || item.Timestamp >= to {
			continue
		}
		for _, h := range item.Hashes {
			swapHashes[h] = true
		}
		swaps = append(swaps, activity.SwapItemToActivity(item))
	}
	if len(swaps) == 0 && len(swapHashes) == 0 {
		return acts
	}

	others := make([]*activity.Activity, 0, len(acts))
	for _, act := range acts {
		if act.Kind == activity.KindTransaction && swapHashes[activity.ParseTxID(act.ID).Hash] {
			act = act.Copy()
			act.ShouldHide = true
		}
		others = append(others, act)
	}
	return activity.MergeSorted(activity.Sort(swaps), others)
}

// FetchActivityDetails asks the drivers of the activity's chains for its
// details. The first driver with details wins. The activity is returned as
// it is if no driver has details.
func (c *Core) FetchActivityDetails(ctx context.Context, accountID string, act *activity.Activity) (*activity.Activity, error) {
	a, err := c.storedAccount(accountID)
	if err != nil {
		return nil, err
	}
	for _, ch := range act.Chains() {
		if _, found := a.ByChain[ch]; !found {
			continue
		}
		d, err := c.driver(ch)
		if err != nil {
			continue
		}
		ca, _ := a.ChainAccount(ch)
		details, err := d.FetchActivityDetails(ctx, ca, act)
		if err != nil {
			c.log.Warnf("Error fetching %s details of %s: %v", ch, act.ID, err)
			continue
		}
		if details != nil {
			return details, nil
		}
	}
	return act, nil
}

// FetchTransactionByID finds the activities of one transaction, by id or by
// hash.
func (c *Core) FetchTransactionByID(ctx context.Context, lookup *TxLookup) ([]*activity.Activity, error) {
	if (lookup.TxID == "") == (lookup.TxHash == "") {
		return nil, newError(chainErr, "exactly one of a transaction id and hash is required")
	}
	d, err := c.driver(lookup.Chain)
	if err != nil {
		return nil, err
	}
	acts, err := d.FetchTransactionByID(ctx, &lookup.TxLookup)
	if err != nil {
		return nil, codedError(chainErr, err)
	}
	return acts, nil
}

// DecryptComment decrypts the comment of an activity. The result is empty if
// nothing is encrypted.
func (c *Core) DecryptComment(ctx context.Context, accountID string, act *activity.Activity, password string) (wallet.Result[string], error) {
	if act.EncryptedComment == "" {
		return wallet.Ok(""), nil
	}
	ch, ok := activity.ChainBySlug(act.Slug)
	if !ok {
		ch = wallet.ChainTON
	}
	ca, d, err := c.chainAccount(accountID, ch)
	if err != nil {
		return wallet.Result[string]{}, err
	}
	res, err := d.DecryptComment(ctx, ca, act, password)
	if err != nil {
		return wallet.Result[string]{}, codedError(chainErr, err)
	}
	return res, nil
}
