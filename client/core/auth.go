// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package core

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/client/db"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/encrypt"
	"github.com/tyler-smith/go-bip39"
)

// bip39EntropyBits gives 24 word mnemonics.
const bip39EntropyBits = 256

// GenerateMnemonic creates the mnemonic of a new account: a BIP39 mnemonic,
// usable on every chain, or a TON mnemonic.
func (c *Core) GenerateMnemonic(isBip39 bool) ([]string, error) {
	if isBip39 {
		entropy, err := bip39.NewEntropy(bip39EntropyBits)
		if err != nil {
			return nil, codedError(mnemonicErr, err)
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return nil, codedError(mnemonicErr, err)
		}
		return strings.Fields(mnemonic), nil
	}
	d, err := c.driver(wallet.ChainTON)
	if err != nil {
		return nil, err
	}
	words, err := d.GenerateMnemonic()
	if err != nil {
		return nil, codedError(mnemonicErr, err)
	}
	return words, nil
}

func isBip39Mnemonic(words []string) bool {
	return bip39.IsMnemonicValid(strings.Join(words, " "))
}

// ValidateMnemonic checks that the words are a BIP39 mnemonic or the native
// mnemonic of a chain.
func (c *Core) ValidateMnemonic(words []string) bool {
	if isBip39Mnemonic(words) {
		return true
	}
	for _, ch := range c.drivers.Chains() {
		if d, err := c.drivers.Driver(ch); err == nil && d.ValidateMnemonic(words) {
			return true
		}
	}
	return false
}

// sealSecret encrypts the secret words, making sure they can be decrypted.
func sealSecret(words []string, password string) (string, error) {
	sealed, err := encrypt.SealSecret(words, password)
	if err != nil {
		return "", codedError(encryptionErr, err)
	}
	opened, err := encrypt.OpenSecret(sealed, password)
	if err != nil {
		return "", codedError(encryptionErr, err)
	}
	if !slices.Equal(opened, words) {
		return "", codedError(encryptionErr, wallet.NewError(wallet.ErrDebugError, "sealed secret doesn't open to the words"))
	}
	return sealed, nil
}

// hasHistory checks whether a wallet has any activity.
func (c *Core) hasHistory(ctx context.Context, d chain.Driver, net wallet.Network, w *chain.Wallet) (bool, error) {
	acts, err := d.FetchActivitySlice(ctx, &chain.Account{Network: net, Type: wallet.AccountView, Wallet: w}, &chain.SliceOptions{Limit: 1})
	if err != nil {
		return false, err
	}
	return len(acts) > 0, nil
}

// ImportMnemonic imports the account of a mnemonic. A BIP39 mnemonic gets a
// wallet on every chain. A mnemonic that is valid both ways is taken as a
// TON mnemonic if its TON wallet has history. version selects the TON
// wallet version, empty for the default. An invalid mnemonic is a failed
// Result.
func (c *Core) ImportMnemonic(ctx context.Context, net wallet.Network, words []string, password, version string) (wallet.Result[*AccountResult], error) {
	tonDriver, err := c.driver(wallet.ChainTON)
	if err != nil {
		return wallet.Result[*AccountResult]{}, err
	}
	isBip39 := isBip39Mnemonic(words)
	isTon := tonDriver.ValidateMnemonic(words)
	if !isBip39 && !isTon {
		return wallet.Fail[*AccountResult](wallet.ErrInvalidMnemonic), nil
	}

	byChain := make(map[wallet.Chain]*chain.Wallet)
	if isTon {
		w, err := tonDriver.WalletFromMnemonic(ctx, net, words, version)
		if err != nil {
			return wallet.Result[*AccountResult]{}, codedError(mnemonicErr, err)
		}
		if isBip39 {
			used, err := c.hasHistory(ctx, tonDriver, net, w)
			if err != nil {
				return wallet.Result[*AccountResult]{}, codedError(chainErr, err)
			}
			isBip39 = !used
		}
		byChain[wallet.ChainTON] = w
	}
	typ := wallet.AccountMnemonic
	if isBip39 {
		typ = wallet.AccountBip39
		clear(byChain)
		for _, ch := range c.drivers.Chains() {
			d, _ := c.drivers.Driver(ch)
			w, err := d.WalletFromBip39Mnemonic(ctx, net, words)
			if err != nil {
				return wallet.Result[*AccountResult]{}, newError(mnemonicErr, "error deriving %s wallet: %w", ch, err)
			}
			byChain[ch] = w
		}
	}

	secret, err := sealSecret(words, password)
	if err != nil {
		return wallet.Result[*AccountResult]{}, err
	}
	a := &db.Account{Type: typ, ByChain: byChain, Secret: secret}
	if _, err := c.addAccount(ctx, net, a, ""); err != nil {
		return wallet.Result[*AccountResult]{}, err
	}
	return wallet.Ok(accountResult(a)), nil
}

// ImportPrivateKey imports the account of a private key of the chain.
func (c *Core) ImportPrivateKey(ctx context.Context, ch wallet.Chain, net wallet.Network, privateKey, password string) (*AccountResult, error) {
	d, err := c.driver(ch)
	if err != nil {
		return nil, err
	}
	w, err := d.WalletFromPrivateKey(ctx, net, privateKey)
	if err != nil {
		return nil, codedError(mnemonicErr, err)
	}
	secret, err := sealSecret([]string{privateKey}, password)
	if err != nil {
		return nil, err
	}
	a := &db.Account{
		Type:    wallet.AccountBip39,
		ByChain: map[wallet.Chain]*chain.Wallet{ch: w},
		Secret:  secret,
	}
	if _, err := c.addAccount(ctx, net, a, ""); err != nil {
		return nil, err
	}
	return accountResult(a), nil
}

// ImportLedgerAccount imports an account of a Ledger device. Several can be
// imported at once.
func (c *Core) ImportLedgerAccount(ctx context.Context, net wallet.Network, info *LedgerAccountInfo) (*AccountResult, error) {
	for ch := range info.ByChain {
		if !c.drivers.Has(ch) {
			return nil, newError(missingChainErr, "no %s driver", ch)
		}
	}
	a := &db.Account{
		Type:    wallet.AccountLedger,
		ByChain: info.ByChain,
		Ledger: &db.LedgerInfo{
			Driver:     info.Driver,
			DeviceID:   info.DeviceID,
			DeviceName: info.DeviceName,
			Index:      info.Index,
		},
	}
	if _, err := c.addAccount(ctx, net, a, ""); err != nil {
		return nil, err
	}
	return accountResult(a), nil
}

// ImportViewAccount imports an account that watches addresses, or domains,
// of one or more chains. An address that can't be used is a failed Result.
func (c *Core) ImportViewAccount(ctx context.Context, net wallet.Network, addressByChain map[wallet.Chain]string) (wallet.Result[*AccountResult], error) {
	if len(addressByChain) == 0 {
		return wallet.Fail[*AccountResult](wallet.ErrInvalidAddress), nil
	}
	a := &db.Account{
		Type:    wallet.AccountView,
		ByChain: make(map[wallet.Chain]*chain.Wallet, len(addressByChain)),
	}
	for ch, addr := range addressByChain {
		d, err := c.driver(ch)
		if err != nil {
			return wallet.Result[*AccountResult]{}, err
		}
		res, err := d.WalletFromAddress(ctx, net, addr)
		if err != nil {
			return wallet.Result[*AccountResult]{}, codedError(chainErr, err)
		}
		if res.Failed() {
			c.log.Debugf("Can't watch %s address %q: %s", ch, addr, res.Err)
			return wallet.FailAs[*AccountResult](res), nil
		}
		a.ByChain[ch] = res.Value.Wallet
		if a.Title == "" {
			a.Title = res.Value.Title
		}
	}
	if _, err := c.addAccount(ctx, net, a, ""); err != nil {
		return wallet.Result[*AccountResult]{}, err
	}
	return wallet.Ok(accountResult(a)), nil
}

// ImportNewWalletVersion adds an account for another TON wallet version of
// an account's key. If an account of that wallet exists, it's returned
// instead.
func (c *Core) ImportNewWalletVersion(ctx context.Context, accountID, version string, isTestnetSubwalletID bool) (*NewWalletVersionResult, error) {
	a, err := c.storedAccount(accountID)
	if err != nil {
		return nil, err
	}
	w, found := a.ByChain[wallet.ChainTON]
	if !found {
		return nil, newError(accountErr, "account %s has no TON wallet", accountID)
	}
	d, err := c.driver(wallet.ChainTON)
	if err != nil {
		return nil, err
	}
	vw, ok := d.(chain.VersionedWallets)
	if !ok {
		return nil, newError(notSupportedErr, "the TON driver has no wallet versions")
	}
	net := a.Network()
	newWallet, err := vw.OtherVersionWallet(net, w, version, isTestnetSubwalletID)
	if err != nil {
		return nil, codedError(chainErr, err)
	}

	accts, err := c.db.Accounts()
	if err != nil {
		return nil, codedError(dbErr, err)
	}
	for _, other := range accts {
		if other.Network() != net {
			continue
		}
		if ow, found := other.ByChain[wallet.ChainTON]; found && ow.Address == newWallet.Address {
			return &NewWalletVersionResult{AccountID: other.ID, Address: ow.Address}, nil
		}
	}

	na := a.Copy()
	na.ID = ""
	na.Title = ""
	na.ByChain = map[wallet.Chain]*chain.Wallet{wallet.ChainTON: newWallet}
	na.IsTestnetSubwalletID = isTestnetSubwalletID
	id, err := c.addAccount(ctx, net, na, "")
	if err != nil {
		return nil, err
	}
	return &NewWalletVersionResult{IsNew: true, AccountID: id, Address: newWallet.Address}, nil
}

// VerifyPassword checks the password against the first account with a
// secret. It's true if no account has a secret.
func (c *Core) VerifyPassword(password string) (bool, error) {
	accts, err := c.db.Accounts()
	if err != nil {
		return false, codedError(dbErr, err)
	}
	for _, a := range accts {
		if !a.Type.HasSecret() {
			continue
		}
		if _, err := encrypt.OpenSecret(a.Secret, password); err != nil {
			if errors.Is(err, encrypt.ErrIncorrectPassword) {
				return false, nil
			}
			return false, codedError(encryptionErr, err)
		}
		return true, nil
	}
	return true, nil
}

// ChangePassword encrypts the secrets of every account with the new
// password. Nothing is changed if the old password doesn't open every
// secret.
func (c *Core) ChangePassword(oldPassword, newPassword string) error {
	accts, err := c.db.Accounts()
	if err != nil {
		return codedError(dbErr, err)
	}
	resealed := make(map[string]string)
	for _, a := range accts {
		if !a.Type.HasSecret() {
			continue
		}
		words, err := encrypt.OpenSecret(a.Secret, oldPassword)
		if err != nil {
			if errors.Is(err, encrypt.ErrIncorrectPassword) {
				return newError(passwordErr, "wrong password for account %s", a.ID)
			}
			return codedError(encryptionErr, err)
		}
		if resealed[a.ID], err = sealSecret(words, newPassword); err != nil {
			return err
		}
	}
	for id, secret := range resealed {
		err := c.db.UpdateAccount(id, func(a *db.Account) error {
			a.Secret = secret
			return nil
		})
		if err != nil {
			return codedError(dbErr, err)
		}
	}
	return nil
}

// RenameAccount sets the title of an account.
func (c *Core) RenameAccount(accountID, title string) error {
	err := c.db.UpdateAccount(accountID, func(a *db.Account) error {
		a.Title = title
		return nil
	})
	if err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			return newError(missingAccountErr, "account %s: %w", accountID, err)
		}
		return codedError(dbErr, err)
	}
	c.notify(&AccountUpdate{AccountID: accountID, Title: title})
	return nil
}
