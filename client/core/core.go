// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package core orchestrates the wallet's accounts, their activity history and
// the transfers, swaps and stakes they submit. Chain specifics are delegated
// to the chain drivers and swap bookkeeping to the backend.
package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tonwallet/walletcore/client/backend"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/client/db"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/wait"
	"golang.org/x/sync/singleflight"
)

const (
	defaultDraftCacheTTL         = 5 * time.Second
	defaultPollInterval          = 5 * time.Second
	defaultStakingCommonInterval = 30 * time.Second
	// inactivePollFactor slows polling of accounts other than the current one.
	inactivePollFactor = 5
)

// Config is the configuration for the Core.
type Config struct {
	// DB is the account store. Required.
	DB db.DB
	// Backend is the wallet backend. Required.
	Backend Backend
	// Drivers are the chain drivers. Required.
	Drivers *chain.Registry
	// OnUpdate receives every update of the Core. Required.
	OnUpdate Updater
	Hooks    *Hooks
	Logger   wallet.Logger
	// Debug enables integrity checks of the activity pages returned by the
	// drivers.
	Debug bool
	// IsDappSupported enables the dapp connection cleanup of account
	// removals, and the full logout hook.
	IsDappSupported bool
	// DraftCacheTTL is how long successful draft checks are reused.
	DraftCacheTTL time.Duration
	// PollInterval is the activity polling interval of the current account.
	PollInterval time.Duration
	// StakingCommonInterval is the refresh interval of the staking data.
	StakingCommonInterval time.Duration
}

// Core is the core client application.
type Core struct {
	ctx      context.Context
	wg       sync.WaitGroup
	db       db.DB
	backend  Backend
	drivers  *chain.Registry
	onUpdate Updater
	hooks    Hooks
	log      wallet.Logger
	cfg      *Config
	now      func() time.Time

	noteMtx sync.Mutex

	// addAccountQueue serializes account id allocation with the account's
	// persistence.
	addAccountQueue *wait.TaskQueue

	loginMtx   sync.Mutex
	loggedIn   bool
	currentMtx sync.RWMutex
	currentID  string

	draftMtx   sync.Mutex
	drafts     map[string]*draftEntry
	draftGroup singleflight.Group

	locals *localTracker
	traces *activityTraces

	pollMtx sync.Mutex
	pollers map[string]*poller

	stakingQueue  *wait.TickerQueue
	stakingMtx    sync.RWMutex
	stakingCommon *backend.StakingCommon
}

// New is the constructor for a new Core.
func New(cfg *Config) (*Core, error) {
	if cfg.DB == nil {
		return nil, errors.New("no database")
	}
	if cfg.Backend == nil {
		return nil, errors.New("no backend")
	}
	if cfg.Drivers == nil || len(cfg.Drivers.Chains()) == 0 {
		return nil, errors.New("no chain drivers")
	}
	if cfg.OnUpdate == nil {
		return nil, errors.New("no update sink")
	}
	cfgCopy := *cfg
	cfg = &cfgCopy
	logger := cfg.Logger
	if logger == nil {
		logger = wallet.Disabled
	}
	c := &Core{
		db:              cfg.DB,
		backend:         cfg.Backend,
		drivers:         cfg.Drivers,
		onUpdate:        cfg.OnUpdate,
		log:             logger,
		cfg:             cfg,
		now:             time.Now,
		addAccountQueue: wait.NewTaskQueue(1),
		drafts:          make(map[string]*draftEntry),
		locals:          newLocalTracker(),
		traces:          newActivityTraces(),
		pollers:         make(map[string]*poller),
	}
	if cfg.Hooks != nil {
		c.hooks = *cfg.Hooks
	}
	if cfg.DraftCacheTTL <= 0 {
		cfg.DraftCacheTTL = defaultDraftCacheTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.StakingCommonInterval <= 0 {
		cfg.StakingCommonInterval = defaultStakingCommonInterval
	}
	c.stakingQueue = wait.NewTickerQueue(cfg.StakingCommonInterval / 3)

	// Every stored account must be served by the drivers.
	accts, err := c.db.Accounts()
	if err != nil {
		return nil, codedError(dbErr, err)
	}
	for _, a := range accts {
		for _, ch := range a.Chains() {
			if !c.drivers.Has(ch) {
				return nil, newError(missingChainErr, "account %s has a %s wallet, but there is no %s driver", a.ID, ch, ch)
			}
		}
		c.pollers[a.ID] = newPoller(a.ID)
	}
	return c, nil
}

// Run runs the core until the context is canceled: the database, the account
// pollers and the staking data refresh.
func (c *Core) Run(ctx context.Context) {
	c.pollMtx.Lock()
	c.ctx = ctx
	for _, p := range c.pollers {
		c.startPoller(p)
	}
	c.pollMtx.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.db.Run(ctx)
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.stakingQueue.Run(ctx)
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.refreshStakingCommonLoop(ctx)
	}()

	c.wg.Wait()
	c.log.Infof("Core stopped")
}

// driver gets the driver of the chain.
func (c *Core) driver(ch wallet.Chain) (chain.Driver, error) {
	d, err := c.drivers.Driver(ch)
	if err != nil {
		return nil, codedError(missingChainErr, err)
	}
	return d, nil
}

// storedAccount loads an account. A missing account is an error that the
// caller is expected to handle, with errorHasCode(err, missingAccountErr).
func (c *Core) storedAccount(id string) (*db.Account, error) {
	a, err := c.db.Account(id)
	if err != nil {
		if errors.Is(err, db.ErrAccountNotFound) {
			return nil, newError(missingAccountErr, "account %s: %w", id, err)
		}
		return nil, codedError(dbErr, err)
	}
	return a, nil
}

// chainAccount loads an account's view for a chain driver, with the driver.
func (c *Core) chainAccount(id string, ch wallet.Chain) (*chain.Account, chain.Driver, error) {
	a, err := c.storedAccount(id)
	if err != nil {
		return nil, nil, err
	}
	ca, err := a.ChainAccount(ch)
	if err != nil {
		return nil, nil, codedError(accountErr, err)
	}
	d, err := c.driver(ch)
	if err != nil {
		return nil, nil, err
	}
	return ca, d, nil
}

// storedAddress is the address of an account's wallet on a chain.
func (c *Core) storedAddress(id string, ch wallet.Chain) (string, error) {
	a, err := c.storedAccount(id)
	if err != nil {
		return "", err
	}
	w, ok := a.ByChain[ch]
	if !ok {
		return "", newError(accountErr, "account %s has no %s wallet", id, ch)
	}
	return w.Address, nil
}

// IsMissingAccount checks whether an error is caused by an account that isn't
// stored.
func IsMissingAccount(err error) bool {
	return errorHasCode(err, missingAccountErr)
}
