package db

import (
	"testing"

	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
)

func TestAccountIDs(t *testing.T) {
	id := BuildAccountID(3, wallet.Testnet)
	if id != "3-testnet" {
		t.Fatalf("wrong id %q", id)
	}
	n, net, err := ParseAccountID(id)
	if err != nil || n != 3 || net != wallet.Testnet {
		t.Fatalf("wrong parse %d, %s, %v", n, net, err)
	}
	for _, bad := range []string{"", "3", "x-mainnet", "-1-mainnet", "3-simnet"} {
		if _, _, err := ParseAccountID(bad); err == nil {
			t.Fatalf("no error for %q", bad)
		}
	}
}

func TestAccountValidate(t *testing.T) {
	a := &Account{
		ID:      "0-mainnet",
		Type:    wallet.AccountView,
		ByChain: map[wallet.Chain]*chain.Wallet{wallet.ChainTON: {Address: "A"}},
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("valid account rejected: %v", err)
	}
	a.Type = wallet.AccountMnemonic
	if err := a.Validate(); err == nil {
		t.Fatalf("mnemonic account without secret accepted")
	}
	a.Type = wallet.AccountView
	a.ByChain = nil
	if err := a.Validate(); err == nil {
		t.Fatalf("account without wallets accepted")
	}
}

func TestChainAccount(t *testing.T) {
	a := &Account{
		ID:   "2-testnet",
		Type: wallet.AccountLedger,
		ByChain: map[wallet.Chain]*chain.Wallet{
			wallet.ChainTRON: {Address: "T"},
			wallet.ChainTON:  {Address: "A"},
		},
	}
	ca, err := a.ChainAccount(wallet.ChainTON)
	if err != nil || ca.Network != wallet.Testnet || ca.Wallet.Address != "A" || ca.Type != wallet.AccountLedger {
		t.Fatalf("wrong chain account %+v, %v", ca, err)
	}
	if chains := a.Chains(); len(chains) != 2 || chains[0] != wallet.ChainTON {
		t.Fatalf("wrong chains %v", chains)
	}
	c := a.Copy()
	c.ByChain[wallet.ChainTON].Address = "B"
	if a.ByChain[wallet.ChainTON].Address != "A" {
		t.Fatalf("copy shares wallets")
	}
}
