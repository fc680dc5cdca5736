package core

import (
	"testing"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
)

func tLocal(hash string, subID int, typ activity.TxType) *activity.Activity {
	return &activity.Activity{
		Kind:   activity.KindTransaction,
		ID:     activity.BuildLocalTxID(hash, subID),
		Status: activity.StatusPending,
		Type:   typ,
	}
}

func TestReconcile(t *testing.T) {
	const acct = "0-mainnet"
	lt := newLocalTracker()

	byHash := tLocal("h1", 0, "")
	byMsgHash := tLocal("h2", 0, "")
	byMsgHash.ExternalMsgHashNorm = "msg2"
	explicit := tLocal("h3", 0, "")
	failed := tLocal("h4", 0, "")
	failed.Status = activity.StatusFailed
	swap := &activity.Activity{Kind: activity.KindSwap, ID: activity.BuildLocalSwapID("s1"), Status: activity.StatusPending}
	lt.track(acct, []*activity.Activity{byHash, byMsgHash, explicit, failed, swap})

	if n := len(lt.pending(acct)); n != 4 {
		t.Fatalf("expected 4 pending, got %d", n)
	}

	confirmedByMsg := tTx("other", 10, activity.ToncoinSlug)
	confirmedByMsg.ExternalMsgHashNorm = "msg2"
	incoming := []*activity.Activity{
		tTx("h1", 10, activity.ToncoinSlug),
		confirmedByMsg,
		{Kind: activity.KindSwap, ID: activity.BuildBackendSwapID("s1")},
		tTx("h4", 10, activity.ToncoinSlug),
		// Local activities in a fetch are ignored.
		tLocal("h9", 0, ""),
	}
	replaced := lt.reconcile(acct, incoming, map[string]string{explicit.ID: "h3-final"})

	exp := map[string]string{
		byHash.ID:    "h1",
		byMsgHash.ID: "other",
		explicit.ID:  "h3-final",
		swap.ID:      activity.BuildBackendSwapID("s1"),
	}
	if len(replaced) != len(exp) {
		t.Fatalf("expected %v, got %v", exp, replaced)
	}
	for localID, by := range exp {
		if replaced[localID] != by {
			t.Fatalf("%s replaced by %q, expected %q", localID, replaced[localID], by)
		}
	}
	states := map[string]localState{
		byHash.ID:    localConfirmed,
		byMsgHash.ID: localConfirmed,
		explicit.ID:  localReplaced,
		failed.ID:    localFailed,
		swap.ID:      localConfirmed,
	}
	for id, exp := range states {
		if s, _ := lt.state(acct, id); s != exp {
			t.Fatalf("%s is %s, expected %s", id, s, exp)
		}
	}

	// Terminal states don't go back to pending.
	lt.track(acct, []*activity.Activity{tLocal("h1", 0, "")})
	if s, _ := lt.state(acct, byHash.ID); s != localConfirmed {
		t.Fatalf("confirmed activity went back to %s", s)
	}
	if replaced := lt.reconcile(acct, incoming, nil); replaced != nil {
		t.Fatalf("activities reconciled twice: %v", replaced)
	}

	// A failed republication is terminal.
	p := tLocal("h5", 0, "")
	lt.track(acct, []*activity.Activity{p})
	f := p.Copy()
	f.Status = activity.StatusFailed
	lt.track(acct, []*activity.Activity{f})
	if s, _ := lt.state(acct, p.ID); s != localFailed {
		t.Fatalf("failed republication is %s", s)
	}
	lt.reconcile(acct, []*activity.Activity{tTx("h5", 1, "")}, nil)
	if s, _ := lt.state(acct, p.ID); s != localFailed {
		t.Fatalf("failed activity became %s", s)
	}
}

func TestReconcileUnstake(t *testing.T) {
	const acct = "0-mainnet"
	lt := newLocalTracker()
	req1 := tLocal("u1", 0, activity.TxUnstakeRequest)
	lt.track(acct, []*activity.Activity{req1})

	unstake := tTx("chainhash", 10, activity.ToncoinSlug)
	unstake.Type = activity.TxUnstake
	replaced := lt.reconcile(acct, []*activity.Activity{unstake}, nil)
	if replaced[req1.ID] != unstake.ID {
		t.Fatalf("single unstake request not replaced: %v", replaced)
	}
	if s, _ := lt.state(acct, req1.ID); s != localReplaced {
		t.Fatalf("unstake request is %s", s)
	}

	// With two pending requests the unstake can't be attributed.
	req2 := tLocal("u2", 0, activity.TxUnstakeRequest)
	req3 := tLocal("u3", 0, activity.TxUnstakeRequest)
	lt.track(acct, []*activity.Activity{req2, req3})
	unstake2 := tTx("chainhash2", 11, activity.ToncoinSlug)
	unstake2.Type = activity.TxUnstakeRequest
	if replaced := lt.reconcile(acct, []*activity.Activity{unstake2}, nil); replaced != nil {
		t.Fatalf("ambiguous unstake attributed: %v", replaced)
	}
	for _, a := range []*activity.Activity{req2, req3} {
		if s, _ := lt.state(acct, a.ID); s != localPending {
			t.Fatalf("%s is %s, expected pending", a.ID, s)
		}
	}

	// Plain transfers never use the fallback.
	lt.forget(acct)
	lt.track(acct, []*activity.Activity{req2})
	if replaced := lt.reconcile(acct, []*activity.Activity{tTx("x", 12, "")}, nil); replaced != nil {
		t.Fatalf("transfer replaced an unstake request: %v", replaced)
	}
}

func TestPollAccount(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	rig.ton.transfer = wallet.Ok(&chain.TransferResult{TxID: "abc"})
	res, err := rig.core.SubmitTransfer(tCtx, wallet.ChainTON, &TransferRequest{
		AccountID:       id,
		TransferOptions: chain.TransferOptions{ToAddress: "X"},
	})
	if err != nil || res.Failed() {
		t.Fatalf("SubmitTransfer error: %v, %s", err, res.Err)
	}

	pending := tTx("zzz", 200, activity.ToncoinSlug)
	pending.Status = activity.StatusPending
	confirmed := tTx("abc", 150, activity.ToncoinSlug)
	rig.ton.newActs = []*chain.NewActivities{{Activities: []*activity.Activity{pending, confirmed}}}

	p := rig.core.pollers[id]
	rig.core.pollAccount(tCtx, p)

	news := rig.updates.ofType(UpdateNewActivities)
	if len(news) != 1 {
		t.Fatalf("expected one new activities update, got %d", len(news))
	}
	u := news[0].(*NewActivitiesUpdate)
	if u.Chain != wallet.ChainTON || len(u.Activities) != 2 {
		t.Fatalf("wrong update %+v", u)
	}
	if u.ReplacedLocalIDs[res.Value] != "abc" {
		t.Fatalf("local activity not replaced: %v", u.ReplacedLocalIDs)
	}
	if ts := p.newestFor(wallet.ChainTON); ts != 150 {
		t.Fatalf("newest timestamp %d, expected the confirmed activity's", ts)
	}
	a, err := rig.db.Account(id)
	if err != nil {
		t.Fatalf("error loading account: %v", err)
	}
	if a.ByChain[wallet.ChainTON].LastTxID != "abc" {
		t.Fatalf("last tx id %q not saved", a.ByChain[wallet.ChainTON].LastTxID)
	}

	// Nothing new, nothing published.
	rig.core.pollAccount(tCtx, p)
	if n := len(rig.updates.ofType(UpdateNewActivities)); n != 1 {
		t.Fatalf("empty poll published an update")
	}
}

func TestPollerRegistration(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	p := rig.core.pollers[id]
	if p == nil {
		t.Fatalf("no poller for new account")
	}
	rig.core.activatePoller(id, ActivityTimestamps{wallet.ChainTON: 50})
	rig.core.activatePoller(id, ActivityTimestamps{wallet.ChainTON: 40})
	if ts := p.newestFor(wallet.ChainTON); ts != 50 {
		t.Fatalf("newest timestamp went back to %d", ts)
	}
	select {
	case <-p.wake:
	default:
		t.Fatalf("poller not woken")
	}
	rig.core.removePollers(id)
	if rig.core.pollers[id] != nil {
		t.Fatalf("poller not removed")
	}
}
