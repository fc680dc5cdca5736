// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"context"
	"fmt"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
)

// FetchActivitySlice fetches a page of past activities. A token scope is
// applied after fetching, since the indexer can't filter by token.
func (d *Driver) FetchActivitySlice(ctx context.Context, acct *chain.Account, opts *chain.SliceOptions) ([]*activity.Activity, error) {
	api, err := d.api(acct.Network)
	if err != nil {
		return nil, err
	}
	q := &actionsQuery{
		account: acct.Wallet.Address,
		limit:   opts.Limit,
	}
	if opts.FromTimestamp > 0 {
		q.startUtc = opts.FromTimestamp / 1000
	}
	if opts.ToTimestamp > 0 {
		q.endUtc = opts.ToTimestamp / 1000
	}
	resp, err := api.actions(ctx, q)
	if err != nil {
		return nil, err
	}
	parsed := newActionParser(acct.Network, acct.Wallet.Address, resp, false).parseAll(resp.Actions)
	activities := parsed[:0]
	for _, a := range parsed {
		// The indexer bounds are in seconds and inclusive.
		if opts.ToTimestamp > 0 && a.Timestamp >= opts.ToTimestamp {
			continue
		}
		if opts.TokenSlug != "" && !hasSlug(a, opts.TokenSlug) {
			continue
		}
		activities = append(activities, a)
	}
	return activities, nil
}

func hasSlug(a *activity.Activity, slug string) bool {
	for _, s := range a.TokenSlugs() {
		if s == slug {
			return true
		}
	}
	return false
}

// FetchNewActivities fetches the activities since fromTimestamp and the ones
// still pending in the mempool.
func (d *Driver) FetchNewActivities(ctx context.Context, acct *chain.Account, fromTimestamp int64) (*chain.NewActivities, error) {
	api, err := d.api(acct.Network)
	if err != nil {
		return nil, err
	}
	q := &actionsQuery{account: acct.Wallet.Address}
	if fromTimestamp > 0 {
		q.startUtc = fromTimestamp / 1000
	}
	confirmed, err := api.actions(ctx, q)
	if err != nil {
		return nil, err
	}
	pending, err := api.pendingActions(ctx, acct.Wallet.Address)
	if err != nil {
		d.log.Debugf("Error fetching pending actions of %s: %v", acct.ID, err)
		pending = &actionsResponse{}
	}
	return &chain.NewActivities{
		Activities: activity.MergeSorted(
			newActionParser(acct.Network, acct.Wallet.Address, confirmed, false).parseAll(confirmed.Actions),
			newActionParser(acct.Network, acct.Wallet.Address, pending, true).parseAll(pending.Actions),
		),
	}, nil
}

// FetchActivityDetails loads the fees of an outgoing transaction or an
// on-chain swap.
func (d *Driver) FetchActivityDetails(ctx context.Context, acct *chain.Account, a *activity.Activity) (*activity.Activity, error) {
	if !a.ShouldLoadDetails || activity.IsLocalTxID(a.ID) {
		return nil, nil
	}
	api, err := d.api(acct.Network)
	if err != nil {
		return nil, err
	}
	var traceID string
	switch a.Kind {
	case activity.KindSwap:
		if len(a.Hashes) == 0 {
			return nil, nil
		}
		traceID = a.Hashes[0]
	default:
		traceID = activity.ParseTxID(a.ID).Hash
	}
	fee, err := api.traceFees(ctx, traceID, acct.Wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("error fetching fees of trace %s: %w", traceID, err)
	}
	details := a.Copy()
	details.ShouldLoadDetails = false
	if a.Kind == activity.KindSwap {
		details.NetworkFee = toDecimalString(fee.String(), activity.ToncoinDecimals)
	} else {
		details.Fee = fee
	}
	return details, nil
}

// FetchTransactionByID looks up the activities of a trace, by an activity id
// or a transaction hash.
func (d *Driver) FetchTransactionByID(ctx context.Context, lookup *chain.TxLookup) ([]*activity.Activity, error) {
	api, err := d.api(lookup.Network)
	if err != nil {
		return nil, err
	}
	q := &actionsQuery{}
	switch {
	case lookup.TxHash != "":
		q.txHash = lookup.TxHash
	case lookup.TxID != "":
		q.traceID = activity.ParseTxID(lookup.TxID).Hash
	default:
		return nil, fmt.Errorf("no transaction id or hash")
	}
	resp, err := api.actions(ctx, q)
	if err != nil {
		return nil, err
	}
	return newActionParser(lookup.Network, lookup.WalletAddress, resp, false).parseAll(resp.Actions), nil
}

// DecryptComment decrypts the encrypted comment of a transaction. Ledger
// accounts don't need a password.
func (d *Driver) DecryptComment(ctx context.Context, acct *chain.Account, a *activity.Activity, password string) (wallet.Result[string], error) {
	if a.EncryptedComment == "" {
		return wallet.Ok(""), nil
	}
	if kind, err := checkPassword(acct, password); err != nil || kind != "" {
		return wallet.Fail[string](kind), err
	}
	counterparty := a.FromAddress
	if !a.IsIncoming {
		counterparty = a.ToAddress
	}
	text, err := d.signer.DecryptComment(ctx, &CommentRequest{
		Network:      acct.Network,
		AccountType:  acct.Type,
		PublicKey:    acct.Wallet.PublicKey,
		Counterparty: counterparty,
		Text:         a.EncryptedComment,
	})
	if err != nil {
		return wallet.Result[string]{}, err
	}
	return wallet.Ok(text), nil
}
