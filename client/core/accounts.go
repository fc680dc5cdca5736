// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package core

import (
	"context"
	"errors"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/db"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/wait"
)

// Accounts lists the stored accounts.
func (c *Core) Accounts() ([]*db.Account, error) {
	accts, err := c.db.Accounts()
	if err != nil {
		return nil, codedError(dbErr, err)
	}
	return accts, nil
}

// CurrentAccountID is the id of the current account, or an empty string.
func (c *Core) CurrentAccountID() string {
	c.currentMtx.RLock()
	defer c.currentMtx.RUnlock()
	return c.currentID
}

// ActivateAccount makes the account current and polls it actively. The first
// activation of the process calls the first login hook and sends the
// account's tokens. Activating the current account again only refreshes the
// polling timestamps. A missing account is an error for which
// IsMissingAccount is true.
func (c *Core) ActivateAccount(accountID string, newest ActivityTimestamps) error {
	a, err := c.storedAccount(accountID)
	if err != nil {
		return err
	}
	if err := c.db.SetCurrentAccountID(accountID); err != nil {
		return codedError(dbErr, err)
	}

	c.loginMtx.Lock()
	isFirstLogin := !c.loggedIn
	c.loggedIn = true
	c.loginMtx.Unlock()

	c.currentMtx.Lock()
	c.currentID = accountID
	c.currentMtx.Unlock()

	if isFirstLogin {
		if c.hooks.OnFirstLogin != nil {
			c.hooks.OnFirstLogin(accountID)
		}
		slugs := make([]string, 0, len(a.ByChain))
		for _, ch := range a.Chains() {
			slugs = append(slugs, activity.NativeSlug(ch))
		}
		c.notify(&TokensUpdate{AccountID: accountID, Slugs: slugs})
	}

	c.activatePoller(accountID, newest)
	return nil
}

// DeactivateAllAccounts clears the current account and pauses polling.
func (c *Core) DeactivateAllAccounts() error {
	c.currentMtx.Lock()
	c.currentID = ""
	c.currentMtx.Unlock()
	err := c.db.SetCurrentAccountID("")
	if c.cfg.IsDappSupported && c.hooks.OnFullLogout != nil {
		c.hooks.OnFullLogout()
	}
	if err != nil {
		return codedError(dbErr, err)
	}
	return nil
}

// addAccount allocates the account id of the network and stores the account
// under it. Concurrent imports are serialized so that they can't be given
// the same id.
func (c *Core) addAccount(ctx context.Context, net wallet.Network, a *db.Account, preferredID string) (string, error) {
	id, err := wait.RunValue(ctx, c.addAccountQueue, func() (string, error) {
		id, err := c.db.NewAccountID(net, preferredID)
		if err != nil {
			return "", err
		}
		a.ID = id
		return id, c.db.SetAccount(a)
	})
	if err != nil {
		return "", codedError(dbErr, err)
	}
	c.addPoller(id)
	c.log.Infof("Added %s account %s", a.Type, id)
	return id, nil
}

// RemoveAccount stops polling and deletes an account with its dapps. If
// nextAccountID is set, that account is activated. Otherwise no account is
// left current.
func (c *Core) RemoveAccount(accountID, nextAccountID string, newest ActivityTimestamps) error {
	c.removePollers(accountID)
	c.locals.forget(accountID)
	c.traces.forget(accountID)

	var errs []error
	if err := c.db.RemoveAccount(accountID); err != nil {
		errs = append(errs, codedError(dbErr, err))
	}
	if c.cfg.IsDappSupported {
		if err := c.db.RemoveAccountDapps(accountID); err != nil {
			errs = append(errs, codedError(dbErr, err))
		}
	}

	if nextAccountID != "" {
		if err := c.ActivateAccount(nextAccountID, newest); err != nil {
			errs = append(errs, err)
		}
	} else {
		c.currentMtx.Lock()
		c.currentID = ""
		c.currentMtx.Unlock()
		if err := c.db.SetCurrentAccountID(""); err != nil {
			errs = append(errs, codedError(dbErr, err))
		}
	}
	return errors.Join(errs...)
}

// RemoveNetworkAccounts deletes all accounts of the network. Every step is
// attempted even if an earlier one fails.
func (c *Core) RemoveNetworkAccounts(net wallet.Network) error {
	c.removeNetworkPollers(net)

	var errs []error
	if err := c.DeactivateAllAccounts(); err != nil {
		errs = append(errs, err)
	}
	ids, err := c.db.RemoveNetworkAccounts(net)
	if err != nil {
		errs = append(errs, codedError(dbErr, err))
	}
	c.locals.forget(ids...)
	c.traces.forget(ids...)
	if c.cfg.IsDappSupported {
		for _, id := range ids {
			if err := c.db.RemoveAccountDapps(id); err != nil {
				errs = append(errs, codedError(dbErr, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ResetAccounts deletes all accounts and their dapps. Every step is
// attempted even if an earlier one fails.
func (c *Core) ResetAccounts() error {
	c.removeAllPollers()
	c.locals.forgetAll()
	c.traces.forgetAll()

	var errs []error
	if err := c.DeactivateAllAccounts(); err != nil {
		errs = append(errs, err)
	}
	if err := c.db.RemoveAllAccounts(); err != nil {
		errs = append(errs, codedError(dbErr, err))
	}
	return errors.Join(errs...)
}

// ConnectDapp records a dapp connection of the account.
func (c *Core) ConnectDapp(accountID string, d *db.Dapp) error {
	if !c.cfg.IsDappSupported {
		return newError(notSupportedErr, "dapps are not supported")
	}
	if d.ConnectedAt == 0 {
		d.ConnectedAt = c.now().UnixMilli()
	}
	if err := c.db.SetDapp(accountID, d); err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			return newError(missingAccountErr, "account %s: %w", accountID, err)
		}
		return codedError(dbErr, err)
	}
	return nil
}

// Dapps lists the dapps connected to the account.
func (c *Core) Dapps(accountID string) ([]*db.Dapp, error) {
	dapps, err := c.db.Dapps(accountID)
	if err != nil {
		return nil, codedError(dbErr, err)
	}
	return dapps, nil
}
