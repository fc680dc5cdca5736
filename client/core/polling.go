// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package core

import (
	"context"
	"sync"
	"time"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/client/db"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/utils"
)

// poller polls the new activities of one account.
type poller struct {
	accountID string
	wake      chan struct{}
	cancel    context.CancelFunc

	mtx    sync.Mutex
	newest ActivityTimestamps
}

func newPoller(accountID string) *poller {
	return &poller{
		accountID: accountID,
		wake:      make(chan struct{}, 1),
		newest:    make(ActivityTimestamps),
	}
}

func (p *poller) newestFor(ch wallet.Chain) int64 {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.newest[ch]
}

// setNewest raises the newest timestamps. Older timestamps are ignored.
func (p *poller) setNewest(ts ActivityTimestamps) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	for ch, t := range ts {
		if t > p.newest[ch] {
			p.newest[ch] = t
		}
	}
}

// startPoller starts a registered poller. The pollMtx must be held, and Run
// must have been called.
func (c *Core) startPoller(p *poller) {
	ctx, cancel := context.WithCancel(c.ctx)
	p.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pollLoop(ctx, p)
	}()
}

// addPoller registers an account for polling. The poller starts with Run,
// or right away if Run was called.
func (c *Core) addPoller(accountID string) {
	c.pollMtx.Lock()
	defer c.pollMtx.Unlock()
	if _, found := c.pollers[accountID]; found {
		return
	}
	p := newPoller(accountID)
	c.pollers[accountID] = p
	if c.ctx != nil {
		c.startPoller(p)
	}
}

// activatePoller raises the account's newest timestamps and asks for a poll
// right away.
func (c *Core) activatePoller(accountID string, newest ActivityTimestamps) {
	c.pollMtx.Lock()
	p, found := c.pollers[accountID]
	c.pollMtx.Unlock()
	if !found {
		c.addPoller(accountID)
		c.pollMtx.Lock()
		p = c.pollers[accountID]
		c.pollMtx.Unlock()
	}
	p.setNewest(newest)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (c *Core) removePollers(accountIDs ...string) {
	c.pollMtx.Lock()
	defer c.pollMtx.Unlock()
	for _, id := range accountIDs {
		if p, found := c.pollers[id]; found {
			if p.cancel != nil {
				p.cancel()
			}
			delete(c.pollers, id)
		}
	}
}

func (c *Core) removeNetworkPollers(net wallet.Network) {
	c.pollMtx.Lock()
	var ids []string
	for id := range c.pollers {
		if _, pnet, err := db.ParseAccountID(id); err == nil && pnet == net {
			ids = append(ids, id)
		}
	}
	c.pollMtx.Unlock()
	c.removePollers(ids...)
}

func (c *Core) removeAllPollers() {
	c.pollMtx.Lock()
	ids := utils.MapKeys(c.pollers)
	c.pollMtx.Unlock()
	c.removePollers(ids...)
}

// pollLoop polls the account until the context is canceled. The current
// account is polled every PollInterval, the others less often. Nothing is
// polled while no account is current.
func (c *Core) pollLoop(ctx context.Context, p *poller) {
	for {
		interval := c.cfg.PollInterval
		if c.CurrentAccountID() != p.accountID {
			interval *= inactivePollFactor
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.wake:
			timer.Stop()
		case <-timer.C:
		}
		if c.CurrentAccountID() == "" {
			continue
		}
		c.pollAccount(ctx, p)
	}
}

// pollAccount fetches the new activities of every chain of the account,
// reconciles the pending local activities with them and publishes them.
func (c *Core) pollAccount(ctx context.Context, p *poller) {
	a, err := c.storedAccount(p.accountID)
	if err != nil {
		c.log.Errorf("Error loading polled account: %v", err)
		return
	}
	for _, ch := range a.Chains() {
		d, err := c.driver(ch)
		if err != nil {
			c.log.Errorf("Error polling %s: %v", a.ID, err)
			continue
		}
		ca, _ := a.ChainAccount(ch)
		na, err := d.FetchNewActivities(ctx, ca, p.newestFor(ch))
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warnf("Error fetching new %s activities of %s: %v", ch, a.ID, err)
			}
			continue
		}
		c.processNewActivities(a, ch, na, p)
	}
}

// processNewActivities publishes newly fetched activities along with the
// local activities they supersede.
func (c *Core) processNewActivities(a *db.Account, ch wallet.Chain, na *chain.NewActivities, p *poller) {
	replaced := c.locals.reconcile(a.ID, na.Activities, na.Replaced)
	if len(na.Activities) == 0 && len(replaced) == 0 {
		return
	}

	var newestConfirmed *activity.Activity
	for _, act := range na.Activities {
		if !act.IsPending() && !activity.IsLocalTxID(act.ID) {
			newestConfirmed = act
			break
		}
	}
	if newestConfirmed != nil {
		p.setNewest(ActivityTimestamps{ch: newestConfirmed.Timestamp})
		if w := a.ByChain[ch]; w.LastTxID != newestConfirmed.ID {
			err := c.db.UpdateAccount(a.ID, func(acct *db.Account) error {
				if w, found := acct.ByChain[ch]; found {
					w.LastTxID = newestConfirmed.ID
				}
				return nil
			})
			if err != nil {
				c.log.Errorf("Error saving the last %s transaction of %s: %v", ch, a.ID, err)
			}
		}
	}

	c.notify(&NewActivitiesUpdate{
		AccountID:        a.ID,
		Chain:            ch,
		Activities:       na.Activities,
		ReplacedLocalIDs: replaced,
	})
}
