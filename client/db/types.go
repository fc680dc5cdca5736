// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package db

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
)

// ErrAccountNotFound is returned when an account id isn't stored. Callers
// decide whether that means resetting or retrying.
var ErrAccountNotFound = errors.New("account not found")

// BuildAccountID builds the id of the n-th account of a network.
func BuildAccountID(n int, net wallet.Network) string {
	return strconv.Itoa(n) + "-" + net.String()
}

// ParseAccountID splits an account id into its sequence number and network.
func ParseAccountID(id string) (int, wallet.Network, error) {
	nStr, netStr, found := strings.Cut(id, "-")
	if !found {
		return 0, "", fmt.Errorf("malformed account id %q", id)
	}
	n, err := strconv.Atoi(nStr)
	if err != nil || n < 0 {
		return 0, "", fmt.Errorf("malformed account id %q", id)
	}
	net, err := wallet.NetFromString(netStr)
	if err != nil {
		return 0, "", fmt.Errorf("malformed account id %q: %w", id, err)
	}
	return n, net, nil
}

// LedgerInfo identifies the device and derivation index of a Ledger account.
type LedgerInfo struct {
	Driver     string `json:"driver"`
	DeviceID   string `json:"deviceId,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
	Index      int    `json:"index"`
}

// Account is a stored account.
type Account struct {
	ID    string             `json:"id"`
	Type  wallet.AccountType `json:"type"`
	Title string             `json:"title,omitempty"`
	// ByChain holds the account's wallet on each chain it has one on.
	ByChain map[wallet.Chain]*chain.Wallet `json:"byChain"`
	// Secret is the sealed mnemonic or private key, for types with a secret.
	Secret string      `json:"secret,omitempty"`
	Ledger *LedgerInfo `json:"ledger,omitempty"`
	// IsTestnetSubwalletID is set for W5 wallets that use the testnet
	// network id.
	IsTestnetSubwalletID bool `json:"isTestnetSubwalletId,omitempty"`
}

// Validate checks the invariants of a stored account.
func (a *Account) Validate() error {
	if _, _, err := ParseAccountID(a.ID); err != nil {
		return err
	}
	if len(a.ByChain) == 0 {
		return fmt.Errorf("account %s has no wallets", a.ID)
	}
	for c, w := range a.ByChain {
		if w == nil || w.Address == "" {
			return fmt.Errorf("account %s has an empty %s wallet", a.ID, c)
		}
	}
	if a.Type.HasSecret() && a.Secret == "" {
		return fmt.Errorf("%s account %s has no secret", a.Type, a.ID)
	}
	return nil
}

// Network is the network of the account, from its id.
func (a *Account) Network() wallet.Network {
	_, net, _ := ParseAccountID(a.ID)
	return net
}

// Chains lists the chains the account has a wallet on, sorted.
func (a *Account) Chains() []wallet.Chain {
	chains := make([]wallet.Chain, 0, len(a.ByChain))
	for c := range a.ByChain {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// ChainAccount is the view of the account that a chain driver acts on.
func (a *Account) ChainAccount(c wallet.Chain) (*chain.Account, error) {
	w, ok := a.ByChain[c]
	if !ok {
		return nil, fmt.Errorf("account %s has no %s wallet", a.ID, c)
	}
	return &chain.Account{
		ID:      a.ID,
		Network: a.Network(),
		Type:    a.Type,
		Wallet:  w,
		Secret:  a.Secret,
	}, nil
}

// Copy makes a deep copy.
func (a *Account) Copy() *Account {
	c := *a
	c.ByChain = make(map[wallet.Chain]*chain.Wallet, len(a.ByChain))
	for k, w := range a.ByChain {
		wc := *w
		c.ByChain[k] = &wc
	}
	if a.Ledger != nil {
		l := *a.Ledger
		c.Ledger = &l
	}
	return &c
}

// Dapp is a dapp connected to an account.
type Dapp struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	IconURL     string `json:"iconUrl,omitempty"`
	ConnectedAt int64  `json:"connectedAt"`
}
