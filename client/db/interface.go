// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package db

import (
	"context"

	"github.com/tonwallet/walletcore/wallet"
)

// DB is the persistent store of accounts and dapp connections. Writes to one
// key are expected to come from one caller at a time.
type DB interface {
	// Run waits for context cancellation, backs up and closes the database.
	Run(ctx context.Context)
	// Store allows the storage of arbitrary data.
	Store(k string, v []byte) error
	// Get retrieves values stored with Store.
	Get(k string) ([]byte, error)
	// Accounts retrieves all accounts, ordered by id.
	Accounts() ([]*Account, error)
	// Account retrieves an account. ErrAccountNotFound is returned if it
	// isn't stored.
	Account(id string) (*Account, error)
	// NewAccountID allocates the id for a new account of the network. The
	// preferred id is used if it's free. The id is only taken once an
	// account is stored with it.
	NewAccountID(net wallet.Network, preferredID string) (string, error)
	// SetAccount stores the account, replacing any with the same id.
	SetAccount(a *Account) error
	// UpdateAccount modifies a stored account in a single transaction.
	UpdateAccount(id string, f func(*Account) error) error
	// RemoveAccount deletes an account. Its dapps are left to
	// RemoveAccountDapps.
	RemoveAccount(id string) error
	// RemoveNetworkAccounts deletes every account of the network, returning
	// their ids. Their dapps are left to RemoveAccountDapps.
	RemoveNetworkAccounts(net wallet.Network) ([]string, error)
	// RemoveAllAccounts deletes every account and dapp.
	RemoveAllAccounts() error
	// CurrentAccountID is the id of the current account, or an empty string.
	CurrentAccountID() (string, error)
	// SetCurrentAccountID sets the current account. An empty id clears it.
	SetCurrentAccountID(id string) error
	// SetDapp stores a dapp connection of the account.
	SetDapp(accountID string, d *Dapp) error
	// Dapps lists the dapps connected to an account.
	Dapps(accountID string) ([]*Dapp, error)
	// RemoveAccountDapps deletes the dapp connections of an account.
	RemoveAccountDapps(accountID string) error
	// Backup makes a copy of the database.
	Backup() error
}
