// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/tonwallet/walletcore/client/app"
	"github.com/tonwallet/walletcore/client/backend"
	"github.com/tonwallet/walletcore/client/chain"
	_ "github.com/tonwallet/walletcore/client/chain/ton"
	"github.com/tonwallet/walletcore/client/core"
	"github.com/tonwallet/walletcore/client/db/bolt"
	"github.com/tonwallet/walletcore/client/rpcserver"
	"github.com/tonwallet/walletcore/wallet"
)

const appName = "walletd"

var log wallet.Logger

// logUpdater writes core updates to the log, where a frontend would render
// them.
type logUpdater struct {
	log wallet.Logger
}

func (u *logUpdater) Update(n core.Update) {
	switch n := n.(type) {
	case *core.OpenURLUpdate:
		u.log.Infof("Open %s", n.URL)
	case *core.NewActivitiesUpdate:
		u.log.Infof("%d new %s activities for account %s", len(n.Activities), n.Chain, n.AccountID)
	default:
		u.log.Debugf("Update %s: %s", n.Type(), spew.Sdump(n))
	}
}

func runCore(ctx context.Context, cfg *app.Config) error {
	utc := !cfg.LocalLogs
	logMaker, closeLogger, err := app.InitLogging(cfg.LogPath, cfg.DebugLevel, true, utc)
	if err != nil {
		return err
	}
	defer closeLogger()
	log = logMaker.Logger("WLTD")
	log.Infof("%s version %v (Go version %s)", appName, app.Version, runtime.Version())
	if utc {
		log.Infof("Logging with UTC time stamps. Current local time is %v",
			time.Now().Local().Format("15:04:05 MST"))
	}

	defer func() {
		if pv := recover(); pv != nil {
			log.Criticalf("Uh-oh! \n\nPanic:\n\n%v\n\nStack:\n\n%v\n\n",
				pv, string(debug.Stack()))
		}
	}()

	driverCfgs, err := cfg.DriverConfigs()
	if err != nil {
		return err
	}
	drivers, err := chain.OpenRegistry(driverCfgs, logMaker)
	if err != nil {
		return err
	}
	log.Infof("Running chains %v", drivers.Chains())

	db, err := bolt.NewDB(cfg.DBPath, logMaker.Logger("DB"))
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	bknd, err := backend.New(cfg.Backend(), logMaker.Logger("BKND"))
	if err != nil {
		return err
	}

	// The RPC server is created after the core, so updates are fanned out
	// through a variable that is set before the core runs.
	updaters := []core.Updater{&logUpdater{log: logMaker.Logger("UPDT")}}
	coreLog := logMaker.Logger("CORE")
	clientCore, err := core.New(&core.Config{
		DB:      db,
		Backend: bknd,
		Drivers: drivers,
		OnUpdate: core.UpdaterFunc(func(u core.Update) {
			for _, updater := range updaters {
				updater.Update(u)
			}
		}),
		Logger:          coreLog,
		Debug:           cfg.Debug,
		IsDappSupported: !cfg.NoDapps,
		DraftCacheTTL:   cfg.DraftCacheTTL,
		PollInterval:    cfg.PollInterval,
		Hooks: &core.Hooks{
			OnFirstLogin: func(accountID string) {
				coreLog.Infof("First login with account %s", accountID)
			},
		},
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("error creating client core: %w", err)
	}

	var rpcSrv *rpcserver.RPCServer
	if cfg.RPCOn {
		rpcSrv, err = rpcserver.New(cfg.RPC(clientCore), logMaker.Logger("RPC"))
		if err != nil {
			db.Close()
			return fmt.Errorf("error creating rpc server: %w", err)
		}
		updaters = append(updaters, rpcSrv)
	}

	// Resume with the account that was current at shutdown.
	if id, err := db.CurrentAccountID(); err != nil {
		log.Errorf("Error reading the current account: %v", err)
	} else if id != "" {
		if err := clientCore.ActivateAccount(id, nil); err != nil {
			log.Errorf("Error activating account %s: %v", id, err)
		}
	}

	var wg sync.WaitGroup
	if rpcSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rpcSrv.Run(ctx); err != nil {
				log.Errorf("RPC server error: %v", err)
			}
		}()
	}
	clientCore.Run(ctx)
	wg.Wait()
	log.Info("Exiting walletd main.")
	return nil
}

func main() {
	cfg := app.DefaultConfig
	if err := app.ParseCLIConfig(&cfg); err != nil {
		os.Exit(1)
	}
	if cfg.ShowVer {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n",
			appName, app.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return
	}
	appData, configPath := app.ResolveCLIConfigPaths(&cfg)
	if err := app.ParseFileConfig(configPath, &cfg); err != nil {
		os.Exit(1)
	}
	if err := app.ResolveConfig(appData, &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := runCore(ctx, &cfg); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
