// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package wallet

// AccountType is how an account holds its keys.
type AccountType string

const (
	// AccountMnemonic accounts hold an encrypted TON mnemonic.
	AccountMnemonic AccountType = "mnemonic"
	// AccountBip39 accounts hold an encrypted BIP39 mnemonic or a single
	// private key.
	AccountBip39  AccountType = "bip39"
	AccountLedger AccountType = "ledger"
	// AccountView accounts only watch addresses.
	AccountView AccountType = "view"
)

// HasSecret is true for account types that store an encrypted secret.
func (t AccountType) HasSecret() bool {
	return t == AccountMnemonic || t == AccountBip39
}
