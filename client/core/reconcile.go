// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package core

import (
	"sync"

	"github.com/tonwallet/walletcore/client/activity"
)

// localState is the reconciliation state of a local activity. Pending is the
// only non-terminal state.
type localState uint8

const (
	localPending localState = iota
	// localConfirmed means an activity with the same hash arrived.
	localConfirmed
	// localReplaced means a driver, or the unstake fallback, named the
	// activity that supersedes the local one.
	localReplaced
	localFailed
)

func (s localState) String() string {
	switch s {
	case localPending:
		return "pending"
	case localConfirmed:
		return "confirmed"
	case localReplaced:
		return "replaced"
	case localFailed:
		return "failed"
	}
	return "unknown"
}

// localActivity is a published local activity and its state.
type localActivity struct {
	act   *activity.Activity
	state localState
	// by is the id of the superseding activity.
	by string
}

// localTracker follows the local activities of every account until they
// reach a terminal state.
type localTracker struct {
	mtx       sync.Mutex
	byAccount map[string]map[string]*localActivity
}

func newLocalTracker() *localTracker {
	return &localTracker{byAccount: make(map[string]map[string]*localActivity)}
}

// track records published local activities. An activity published again
// with the same id replaces the tracked one, and a failed status is terminal.
func (t *localTracker) track(accountID string, acts []*activity.Activity) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	locals := t.byAccount[accountID]
	if locals == nil {
		locals = make(map[string]*localActivity)
		t.byAccount[accountID] = locals
	}
	for _, a := range acts {
		la, found := locals[a.ID]
		if found && la.state != localPending {
			continue
		}
		la = &localActivity{act: a}
		if a.Status == activity.StatusFailed {
			la.state = localFailed
		}
		locals[a.ID] = la
	}
}

// state is the state of a tracked local activity.
func (t *localTracker) state(accountID, id string) (localState, bool) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	la, found := t.byAccount[accountID][id]
	if !found {
		return 0, false
	}
	return la.state, true
}

// pending lists the local activities of the account that are still pending.
func (t *localTracker) pending(accountID string) []*activity.Activity {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	var acts []*activity.Activity
	for _, la := range t.byAccount[accountID] {
		if la.state == localPending {
			acts = append(acts, la.act)
		}
	}
	return activity.Sort(acts)
}

// forget drops the account's local activities.
func (t *localTracker) forget(accountIDs ...string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	for _, id := range accountIDs {
		delete(t.byAccount, id)
	}
}

func (t *localTracker) forgetAll() {
	t.mtx.Lock()
	t.byAccount = make(map[string]map[string]*localActivity)
	t.mtx.Unlock()
}

// reconcile moves the pending local activities of the account superseded by
// the incoming activities out of the pending state. The returned map has the
// ids of the superseded local activities, pointing to their replacements.
//
// In order of precedence, a local activity is superseded by
//  1. the activity a driver explicitly names as its replacement,
//  2. an activity with the same normalized external message hash,
//  3. an activity whose id has the same hash. Local swaps match the backend
//     swap with the same id.
//  4. an unstake or unstake request, when it is the only pending local
//     unstake request of the account. With more than one candidate the
//     activity can't be attributed and all candidates stay pending.
func (t *localTracker) reconcile(accountID string, incoming []*activity.Activity, replaced map[string]string) map[string]string {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	locals := t.byAccount[accountID]
	if len(locals) == 0 {
		return nil
	}
	out := make(map[string]string)
	supersede := func(la *localActivity, state localState, by string) {
		la.state, la.by = state, by
		out[la.act.ID] = by
	}

	for localID, newID := range replaced {
		if la, found := locals[localID]; found && la.state == localPending {
			supersede(la, localReplaced, newID)
		}
	}

	byMsgHash := make(map[string]*localActivity)
	byHash := make(map[string]*localActivity)
	var unstakeRequests []*localActivity
	for _, la := range locals {
		if la.state != localPending {
			continue
		}
		if h := la.act.ExternalMsgHashNorm; h != "" {
			byMsgHash[h] = la
		}
		byHash[localHash(la.act)] = la
		if la.act.Type == activity.TxUnstakeRequest {
			unstakeRequests = append(unstakeRequests, la)
		}
	}

	for _, a := range incoming {
		if activity.IsLocalTxID(a.ID) {
			continue
		}
		if la := byMsgHash[a.ExternalMsgHashNorm]; la != nil && a.ExternalMsgHashNorm != "" && la.state == localPending {
			supersede(la, localConfirmed, a.ID)
			continue
		}
		if la := byHash[incomingHash(a)]; la != nil && la.state == localPending {
			supersede(la, localConfirmed, a.ID)
			continue
		}
		if a.Type != activity.TxUnstake && a.Type != activity.TxUnstakeRequest {
			continue
		}
		var candidates []*localActivity
		for _, la := range unstakeRequests {
			if la.state == localPending {
				candidates = append(candidates, la)
			}
		}
		if len(candidates) == 1 {
			supersede(candidates[0], localReplaced, a.ID)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// localHash is the hash a confirmed activity shares with the local one.
func localHash(a *activity.Activity) string {
	return activity.ParseTxID(a.ID).Hash
}

// incomingHash is the hash of a fetched activity, comparable with localHash.
func incomingHash(a *activity.Activity) string {
	if activity.IsBackendSwapID(a.ID) {
		return activity.ParseBackendSwapID(a.ID)
	}
	return activity.ParseTxID(a.ID).Hash
}
