// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package chain

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tonwallet/walletcore/wallet"
)

var (
	factoriesMtx sync.RWMutex
	factories    = make(map[wallet.Chain]Factory)
)

// Config is the configuration of a Driver.
type Config struct {
	// Settings is the key-value store of driver parameters, e.g. API URLs.
	Settings map[string]string
}

// ConfigOption is a driver configuration option.
type ConfigOption struct {
	Key          string `json:"key"`
	DisplayName  string `json:"displayname"`
	Description  string `json:"description"`
	DefaultValue string `json:"default"`
	NoEcho       bool   `json:"noecho"`
}

// Info is auxiliary information about a chain.
type Info struct {
	Name       string          `json:"name"`
	NativeSlug string          `json:"nativeSlug"`
	Decimals   int             `json:"decimals"`
	ConfigOpts []*ConfigOption `json:"configopts"`
}

// Factory creates Drivers. Each chain package registers its Factory in init.
type Factory interface {
	Open(cfg *Config, logger wallet.Logger) (Driver, error)
	Info() *Info
}

// Register should be called by the init function of a chain's package.
func Register(c wallet.Chain, f Factory) {
	factoriesMtx.Lock()
	defer factoriesMtx.Unlock()

	if f == nil {
		panic("chain: Register factory is nil")
	}
	if _, dup := factories[c]; dup {
		panic(fmt.Sprint("chain: Register called twice for chain ", c))
	}
	factories[c] = f
}

// ChainInfo gets the Info of a registered chain.
func ChainInfo(c wallet.Chain) (*Info, error) {
	factoriesMtx.RLock()
	defer factoriesMtx.RUnlock()
	f, ok := factories[c]
	if !ok {
		return nil, fmt.Errorf("chain: unknown chain %s", c)
	}
	return f.Info(), nil
}

// Registered lists the registered chains.
func Registered() []wallet.Chain {
	factoriesMtx.RLock()
	defer factoriesMtx.RUnlock()
	chains := make([]wallet.Chain, 0, len(factories))
	for c := range factories {
		chains = append(chains, c)
	}
	slices.Sort(chains)
	return chains
}

// Registry is an immutable set of open Drivers, one per chain. Create it once
// at startup.
type Registry struct {
	drivers map[wallet.Chain]Driver
	chains  []wallet.Chain
}

// NewRegistry builds a Registry from open drivers.
func NewRegistry(drivers ...Driver) (*Registry, error) {
	r := &Registry{drivers: make(map[wallet.Chain]Driver, len(drivers))}
	for _, d := range drivers {
		c := d.Chain()
		if _, dup := r.drivers[c]; dup {
			return nil, fmt.Errorf("chain: two drivers for chain %s", c)
		}
		r.drivers[c] = d
		r.chains = append(r.chains, c)
	}
	slices.Sort(r.chains)
	return r, nil
}

// OpenRegistry opens the driver of every chain that has a config.
func OpenRegistry(cfgs map[wallet.Chain]*Config, lm *wallet.LoggerMaker) (*Registry, error) {
	factoriesMtx.RLock()
	defer factoriesMtx.RUnlock()
	drivers := make([]Driver, 0, len(cfgs))
	for c, cfg := range cfgs {
		f, ok := factories[c]
		if !ok {
			return nil, fmt.Errorf("chain: no driver registered for chain %s", c)
		}
		d, err := f.Open(cfg, lm.SubLogger("CHAIN", string(c)))
		if err != nil {
			return nil, fmt.Errorf("chain: error opening %s driver: %w", c, err)
		}
		drivers = append(drivers, d)
	}
	return NewRegistry(drivers...)
}

// Driver gets the Driver of the chain.
func (r *Registry) Driver(c wallet.Chain) (Driver, error) {
	d, ok := r.drivers[c]
	if !ok {
		return nil, fmt.Errorf("chain: no driver for chain %s", c)
	}
	return d, nil
}

// Has checks whether the chain has a driver.
func (r *Registry) Has(c wallet.Chain) bool {
	_, ok := r.drivers[c]
	return ok
}

// Chains lists the chains with a driver, sorted.
func (r *Registry) Chains() []wallet.Chain {
	return slices.Clone(r.chains)
}
