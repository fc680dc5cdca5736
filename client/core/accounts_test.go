package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/client/db"
	"github.com/tonwallet/walletcore/wallet"
)

func TestActivateAccount(t *testing.T) {
	rig := newTestRig(t)
	id1 := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON, wallet.ChainTRON)
	id2 := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)

	var logins []string
	rig.core.hooks.OnFirstLogin = func(id string) { logins = append(logins, id) }

	for _, id := range []string{id1, id1, id2} {
		if err := rig.core.ActivateAccount(id, ActivityTimestamps{wallet.ChainTON: 5}); err != nil {
			t.Fatalf("ActivateAccount(%s) error: %v", id, err)
		}
	}
	if len(logins) != 1 || logins[0] != id1 {
		t.Fatalf("first login hook calls %v, expected one for %s", logins, id1)
	}
	tokens := rig.updates.ofType(UpdateTokens)
	if len(tokens) != 1 {
		t.Fatalf("expected one tokens update, got %d", len(tokens))
	}
	if slugs := tokens[0].(*TokensUpdate).Slugs; len(slugs) != 2 {
		t.Fatalf("expected the slugs of both chains, got %v", slugs)
	}
	if cur := rig.core.CurrentAccountID(); cur != id2 {
		t.Fatalf("current account %q, expected %q", cur, id2)
	}
	if stored, _ := rig.db.CurrentAccountID(); stored != id2 {
		t.Fatalf("stored current account %q, expected %q", stored, id2)
	}
	if ts := rig.core.pollers[id2].newestFor(wallet.ChainTON); ts != 5 {
		t.Fatalf("poller timestamp %d, expected 5", ts)
	}

	err := rig.core.ActivateAccount("9-mainnet", nil)
	if !IsMissingAccount(err) {
		t.Fatalf("expected a missing account error, got %v", err)
	}
}

func TestDeactivateAllAccounts(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	var logouts int
	rig.core.hooks.OnFullLogout = func() { logouts++ }

	if err := rig.core.ActivateAccount(id, nil); err != nil {
		t.Fatalf("ActivateAccount error: %v", err)
	}
	if err := rig.core.DeactivateAllAccounts(); err != nil {
		t.Fatalf("DeactivateAllAccounts error: %v", err)
	}
	if cur := rig.core.CurrentAccountID(); cur != "" {
		t.Fatalf("current account %q after deactivation", cur)
	}
	if logouts != 1 {
		t.Fatalf("full logout hook called %d times", logouts)
	}
}

func TestConcurrentAddAccount(t *testing.T) {
	rig := newTestRig(t)
	const n = 20
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := rig.core.ImportLedgerAccount(tCtx, wallet.Mainnet, &LedgerAccountInfo{
				ByChain: map[wallet.Chain]*chain.Wallet{
					wallet.ChainTON: {Address: fmt.Sprintf("ledger-%d", i), PublicKey: "pub"},
				},
				Driver: "hid",
				Index:  i,
			})
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = res.AccountID
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, id := range ids {
		if errs[i] != nil {
			t.Fatalf("import %d error: %v", i, errs[i])
		}
		if seen[id] {
			t.Fatalf("id %s given twice", id)
		}
		seen[id] = true
	}
	accts, err := rig.core.Accounts()
	if err != nil {
		t.Fatalf("Accounts error: %v", err)
	}
	if len(accts) != n {
		t.Fatalf("expected %d accounts, got %d", n, len(accts))
	}
}

func TestRemoveAccount(t *testing.T) {
	rig := newTestRig(t)
	id1 := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	id2 := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	id3 := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)

	if err := rig.core.ActivateAccount(id1, nil); err != nil {
		t.Fatalf("ActivateAccount error: %v", err)
	}
	if err := rig.core.ConnectDapp(id1, &db.Dapp{URL: "https://dapp.example"}); err != nil {
		t.Fatalf("ConnectDapp error: %v", err)
	}

	// With a next account, it becomes current.
	if err := rig.core.RemoveAccount(id1, id2, nil); err != nil {
		t.Fatalf("RemoveAccount error: %v", err)
	}
	if cur := rig.core.CurrentAccountID(); cur != id2 {
		t.Fatalf("current account %q, expected %q", cur, id2)
	}
	if _, err := rig.db.Account(id1); err == nil {
		t.Fatalf("account %s not removed", id1)
	}
	if dapps, _ := rig.db.Dapps(id1); len(dapps) != 0 {
		t.Fatalf("dapps of %s not removed", id1)
	}
	if rig.core.pollers[id1] != nil {
		t.Fatalf("poller of %s not removed", id1)
	}

	// Without one, no account is current.
	if err := rig.core.RemoveAccount(id2, "", nil); err != nil {
		t.Fatalf("RemoveAccount error: %v", err)
	}
	if cur := rig.core.CurrentAccountID(); cur != "" {
		t.Fatalf("current account %q, expected none", cur)
	}

	// A missing next account is reported, but the removal still happens.
	if err := rig.core.RemoveAccount(id3, "7-mainnet", nil); !IsMissingAccount(err) {
		t.Fatalf("expected a missing account error, got %v", err)
	}
	if _, err := rig.db.Account(id3); err == nil {
		t.Fatalf("account %s not removed", id3)
	}
}

func TestRemoveNetworkAccounts(t *testing.T) {
	rig := newTestRig(t)
	mainID := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	testID := rig.addAccount(t, wallet.Testnet, wallet.ChainTON)
	if err := rig.core.ActivateAccount(testID, nil); err != nil {
		t.Fatalf("ActivateAccount error: %v", err)
	}

	if err := rig.core.RemoveNetworkAccounts(wallet.Testnet); err != nil {
		t.Fatalf("RemoveNetworkAccounts error: %v", err)
	}
	if _, err := rig.db.Account(testID); err == nil {
		t.Fatalf("testnet account not removed")
	}
	if _, err := rig.db.Account(mainID); err != nil {
		t.Fatalf("mainnet account removed: %v", err)
	}
	if rig.core.pollers[testID] != nil || rig.core.pollers[mainID] == nil {
		t.Fatalf("wrong pollers removed")
	}
	if cur := rig.core.CurrentAccountID(); cur != "" {
		t.Fatalf("current account %q, expected none", cur)
	}

	if err := rig.core.ResetAccounts(); err != nil {
		t.Fatalf("ResetAccounts error: %v", err)
	}
	if accts, _ := rig.core.Accounts(); len(accts) != 0 {
		t.Fatalf("%d accounts left after reset", len(accts))
	}
	if len(rig.core.pollers) != 0 {
		t.Fatalf("%d pollers left after reset", len(rig.core.pollers))
	}
}

func TestConnectDappNotSupported(t *testing.T) {
	rig := newTestRig(t)
	id := rig.addAccount(t, wallet.Mainnet, wallet.ChainTON)
	rig.core.cfg.IsDappSupported = false
	if err := rig.core.ConnectDapp(id, &db.Dapp{URL: "https://dapp.example"}); !errorHasCode(err, notSupportedErr) {
		t.Fatalf("expected a not supported error, got %v", err)
	}
}
