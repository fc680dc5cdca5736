package core

import (
	"strconv"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/wallet"
)

func activityIDs(acts []*activity.Activity) []string {
	ids := make([]string, 0, len(acts))
	for _, a := range acts {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestFetchPastActivitiesMerge(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON, wallet.ChainTRON)
	rig.ton.slice = []*activity.Activity{
		tTx("t1", 100, activity.ToncoinSlug),
		tTx("t2", 90, activity.ToncoinSlug),
		tTx("t3", 80, activity.ToncoinSlug),
		tTx("t4", 70, activity.ToncoinSlug),
		tTx("t5", 60, activity.ToncoinSlug),
	}
	rig.tron.slice = []*activity.Activity{
		tTx("r1", 95, activity.TrxSlug),
		tTx("r2", 85, activity.TrxSlug),
		tTx("r3", 55, activity.TrxSlug),
	}

	page, err := rig.core.FetchPastActivities(tCtx, id, 10, "", 0)
	if err != nil {
		t.Fatalf("FetchPastActivities error: %v", err)
	}
	exp := []string{"t1", "r1", "t2", "r2", "t3", "t4", "t5", "r3"}
	ids := activityIDs(page.Activities)
	if len(ids) != len(exp) {
		t.Fatalf("expected %d activities, got %d: %v", len(exp), len(ids), ids)
	}
	for i := range exp {
		if ids[i] != exp[i] {
			t.Fatalf("wrong order %v, expected %v", ids, exp)
		}
	}
	if page.ShouldFetchMore {
		t.Fatalf("short pages flagged for more")
	}
	if opts := rig.ton.sliceOpts; opts.Limit != 10 || opts.TokenSlug != "" {
		t.Fatalf("wrong slice options %s", spew.Sdump(opts))
	}
}

func TestFetchPastActivitiesTokenSlug(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON, wallet.ChainTRON)
	rig.tron.slice = []*activity.Activity{tTx("r1", 95, activity.TrxSlug)}

	page, err := rig.core.FetchPastActivities(tCtx, id, 10, activity.TrxSlug, 1000)
	if err != nil {
		t.Fatalf("FetchPastActivities error: %v", err)
	}
	if len(page.Activities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(page.Activities))
	}
	if rig.ton.sliceOpts != nil {
		t.Fatalf("TON fetched for a TRON token")
	}
	if opts := rig.tron.sliceOpts; opts.ToTimestamp != 1000 || opts.TokenSlug != activity.TrxSlug {
		t.Fatalf("wrong slice options %s", spew.Sdump(opts))
	}

	if _, err := rig.core.FetchPastActivities(tCtx, id, 10, "nochain-token", 0); err == nil {
		t.Fatalf("no error for an unknown token")
	}
}

func TestFetchPastActivitiesTrim(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Testnet, wallet.ChainTON)
	rig.ton.slice = []*activity.Activity{
		tTx("h1", 100, activity.ToncoinSlug),
		tTx("h2", 90, activity.ToncoinSlug),
		{ID: activity.BuildTxID("h3", "1", ""), Timestamp: 80, Kind: activity.KindTransaction},
		{ID: activity.BuildTxID("h3", "2", ""), Timestamp: 70, Kind: activity.KindTransaction},
	}
	page, err := rig.core.FetchPastActivities(tCtx, id, 4, "", 0)
	if err != nil {
		t.Fatalf("FetchPastActivities error: %v", err)
	}
	if ids := activityIDs(page.Activities); len(ids) != 2 || ids[1] != "h2" {
		t.Fatalf("trailing trace not trimmed: %v", ids)
	}
	if !page.ShouldFetchMore {
		t.Fatalf("trimmed page not flagged for more")
	}

	// The same activities are the end of history under a larger limit.
	page, err = rig.core.FetchPastActivities(tCtx, id, 5, "", 0)
	if err != nil {
		t.Fatalf("FetchPastActivities error: %v", err)
	}
	if len(page.Activities) != 4 || page.ShouldFetchMore {
		t.Fatalf("expected the whole history, got %v, more = %t",
			activityIDs(page.Activities), page.ShouldFetchMore)
	}
}

func TestFetchPastActivitiesShouldFetchMore(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON, wallet.ChainTRON)

	// A full page that ends in a long trace isn't trimmed, but there's more.
	var long []*activity.Activity
	for i := range 10 {
		long = append(long, &activity.Activity{
			ID:        activity.BuildTxID("h", strconv.Itoa(9-i), ""),
			Timestamp: int64(100 - i),
			Kind:      activity.KindTransaction,
		})
	}
	rig.ton.slice = long
	page, err := rig.core.FetchPastActivities(tCtx, id, 10, "", 0)
	if err != nil {
		t.Fatalf("FetchPastActivities error: %v", err)
	}
	if len(page.Activities) != 10 || !page.ShouldFetchMore {
		t.Fatalf("expected 10 activities and more, got %d, more = %t",
			len(page.Activities), page.ShouldFetchMore)
	}

	// One full chain flags the merged page, which is cut at that chain's
	// oldest activity.
	rig.ton.slice = []*activity.Activity{
		tTx("t1", 100, activity.ToncoinSlug),
		tTx("t2", 90, activity.ToncoinSlug),
		tTx("t3", 55, activity.ToncoinSlug),
	}
	rig.tron.slice = []*activity.Activity{
		tTx("r1", 95, activity.TrxSlug),
		tTx("r2", 85, activity.TrxSlug),
		tTx("r3", 60, activity.TrxSlug),
		tTx("r4", 50, activity.TrxSlug),
	}
	page, err = rig.core.FetchPastActivities(tCtx, id, 4, "", 0)
	if err != nil {
		t.Fatalf("FetchPastActivities error: %v", err)
	}
	if !page.ShouldFetchMore {
		t.Fatalf("page with a full chain not flagged for more")
	}
	exp := []string{"t1", "r1", "t2", "r2", "r3"}
	if ids := activityIDs(page.Activities); len(ids) != len(exp) || ids[4] != "r3" {
		t.Fatalf("expected %v, got %v", exp, ids)
	}

	rig.tron.slice = rig.tron.slice[:3]
	page, err = rig.core.FetchPastActivities(tCtx, id, 4, "", 0)
	if err != nil {
		t.Fatalf("FetchPastActivities error: %v", err)
	}
	if page.ShouldFetchMore || len(page.Activities) != 6 {
		t.Fatalf("expected the whole history, got %v, more = %t",
			activityIDs(page.Activities), page.ShouldFetchMore)
	}
}

func TestFetchPastActivitiesError(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON, wallet.ChainTRON)
	rig.ton.slice = []*activity.Activity{tTx("t1", 100, activity.ToncoinSlug)}
	rig.tron.sliceErr = tErr

	page, err := rig.core.FetchPastActivities(tCtx, id, 10, "", 0)
	if err == nil || page != nil {
		t.Fatalf("expected no page and an error, got %v, %v", page, err)
	}

	if _, err := rig.core.FetchPastActivities(tCtx, "5-mainnet", 10, "", 0); !IsMissingAccount(err) {
		t.Fatalf("expected a missing account error, got %v", err)
	}
}

func TestFetchPastActivitiesUnsorted(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Testnet, wallet.ChainTON)
	// Broken driver pages are logged, not failed.
	rig.ton.slice = []*activity.Activity{
		tTx("h1", 90, activity.ToncoinSlug),
		tTx("h2", 100, activity.ToncoinSlug),
	}
	page, err := rig.core.FetchPastActivities(tCtx, id, 10, "", 0)
	if err != nil {
		t.Fatalf("FetchPastActivities error: %v", err)
	}
	if len(page.Activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(page.Activities))
	}
}

func TestFetchPastActivitiesCexSwaps(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	rig.ton.slice = []*activity.Activity{
		tTx("a", 100, activity.ToncoinSlug),
		tTx("leg", 90, activity.ToncoinSlug),
		tTx("b", 80, activity.ToncoinSlug),
	}
	rig.backend.history = []*activity.SwapHistoryItem{{
		ID:         "s1",
		Timestamp:  95,
		Status:     activity.StatusCompleted,
		From:       activity.ToncoinSymbol,
		FromAmount: "1",
		To:         activity.TrxSymbol,
		ToAmount:   "2",
		Hashes:     []string{"leg"},
		Cex:        &activity.CexInfo{Status: activity.CexFinished},
	}}

	page, err := rig.core.FetchPastActivities(tCtx, id, 10, "", 0)
	if err != nil {
		t.Fatalf("FetchPastActivities error: %v", err)
	}
	ids := activityIDs(page.Activities)
	exp := []string{"a", activity.BuildBackendSwapID("s1"), "leg", "b"}
	if len(ids) != len(exp) {
		t.Fatalf("expected %v, got %v", exp, ids)
	}
	for i := range exp {
		if ids[i] != exp[i] {
			t.Fatalf("expected %v, got %v", exp, ids)
		}
	}
	if !page.Activities[2].ShouldHide {
		t.Fatalf("swap leg not hidden")
	}
	if rig.ton.slice[1].ShouldHide {
		t.Fatalf("driver's activity modified")
	}
	q := rig.backend.historyQuery
	if !q.IsCex || q.FromTimestamp != 80 || q.ToTimestamp != 100 || len(q.Hashes) != 3 {
		t.Fatalf("wrong history query %s", spew.Sdump(q))
	}

	// Backend failures leave the page as it is.
	rig.backend.historyErr = tErr
	page, err = rig.core.FetchPastActivities(tCtx, id, 10, "", 0)
	if err != nil {
		t.Fatalf("FetchPastActivities error: %v", err)
	}
	if len(page.Activities) != 3 {
		t.Fatalf("expected the raw page, got %d activities", len(page.Activities))
	}
}

func TestFetchActivityDetails(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON, wallet.ChainTRON)
	swap := &activity.Activity{
		Kind: activity.KindSwap,
		ID:   "swap:1",
		From: activity.ToncoinSlug,
		To:   activity.TrxSlug,
	}

	got, err := rig.core.FetchActivityDetails(tCtx, id, swap)
	if err != nil || got != swap {
		t.Fatalf("expected the activity back, got %v, %v", got, err)
	}

	rig.ton.detailsErr = tErr
	rig.tron.details = &activity.Activity{ID: "swap:1", Comment: "details"}
	got, err = rig.core.FetchActivityDetails(tCtx, id, swap)
	if err != nil || got.Comment != "details" {
		t.Fatalf("expected the TRON details, got %v, %v", got, err)
	}
}

func TestFetchTransactionByID(t *testing.T) {
	rig := newTestRig(t)
	rig.tron.txs = []*activity.Activity{tTx("r1", 1, activity.TrxSlug)}
	lookup := &TxLookup{Chain: wallet.ChainTRON}
	if _, err := rig.core.FetchTransactionByID(tCtx, lookup); err == nil {
		t.Fatalf("no error without an id or hash")
	}
	lookup.TxHash = "r1"
	acts, err := rig.core.FetchTransactionByID(tCtx, lookup)
	if err != nil || len(acts) != 1 {
		t.Fatalf("expected the transaction, got %v, %v", acts, err)
	}
}

func TestDecryptComment(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	plain := &activity.Activity{Comment: "plain", Slug: activity.ToncoinSlug}
	res, err := rig.core.DecryptComment(tCtx, id, plain, tPassword)
	if err != nil || res.Value != "" {
		t.Fatalf("expected nothing to decrypt, got %q, %v", res.Value, err)
	}

	rig.ton.decrypted = wallet.Ok("secret")
	enc := &activity.Activity{EncryptedComment: "xyz", Slug: activity.ToncoinSlug}
	res, err = rig.core.DecryptComment(tCtx, id, enc, tPassword)
	if err != nil || res.Value != "secret" {
		t.Fatalf("expected the decrypted comment, got %q, %v", res.Value, err)
	}
}
