// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package ton is the chain driver of TON. It reads the chain through a
// toncenter indexer, builds message payloads, and hands signing to a Signer.
package ton

import (
	"fmt"
	"time"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/config"
)

const (
	defaultMainnetURL = "https://toncenter.com"
	defaultTestnetURL = "https://testnet.toncenter.com"
)

// Config is the driver configuration, decoded from the chain.Config
// settings.
type Config struct {
	MainnetURL string `ini:"mainneturl"`
	TestnetURL string `ini:"testneturl"`
	APIKey     string `ini:"apikey"`
	SignerURL  string `ini:"signerurl"`
	GaslessURL string `ini:"gaslessurl"`
}

var configOpts = []*chain.ConfigOption{
	{
		Key:          "mainneturl",
		DisplayName:  "Mainnet indexer URL",
		Description:  "URL of the toncenter v3 API for mainnet",
		DefaultValue: defaultMainnetURL,
	},
	{
		Key:          "testneturl",
		DisplayName:  "Testnet indexer URL",
		Description:  "URL of the toncenter v3 API for testnet",
		DefaultValue: defaultTestnetURL,
	},
	{
		Key:         "apikey",
		DisplayName: "API key",
		Description: "toncenter API key. Raises the request rate limit.",
		NoEcho:      true,
	},
	{
		Key:         "signerurl",
		DisplayName: "Signer URL",
		Description: "URL of the signing service",
	},
	{
		Key:         "gaslessurl",
		DisplayName: "Gasless relay URL",
		Description: "URL of the relay for transfers that pay fees in tokens",
	},
}

func init() {
	chain.Register(wallet.ChainTON, &Factory{})
}

// Factory opens TON drivers.
type Factory struct{}

var _ chain.Factory = (*Factory)(nil)

// Open decodes the settings and creates a Driver with a RemoteSigner, if a
// signer URL is configured.
func (f *Factory) Open(cfg *chain.Config, logger wallet.Logger) (chain.Driver, error) {
	tonCfg := &Config{
		MainnetURL: defaultMainnetURL,
		TestnetURL: defaultTestnetURL,
	}
	if err := config.Unmapify(cfg.Settings, tonCfg); err != nil {
		return nil, fmt.Errorf("error parsing settings: %w", err)
	}
	var signer Signer
	if tonCfg.SignerURL != "" {
		signer = NewRemoteSigner(tonCfg.SignerURL)
	}
	return NewDriver(tonCfg, signer, logger), nil
}

// Info describes the chain.
func (f *Factory) Info() *chain.Info {
	return &chain.Info{
		Name:       "TON",
		NativeSlug: activity.ToncoinSlug,
		Decimals:   activity.ToncoinDecimals,
		ConfigOpts: configOpts,
	}
}

// Driver is the TON chain.Driver.
type Driver struct {
	log    wallet.Logger
	apis   map[wallet.Network]*toncenter
	signer Signer
	relay  *gaslessRelay
	now    func() time.Time
}

var (
	_ chain.Driver           = (*Driver)(nil)
	_ chain.Staker           = (*Driver)(nil)
	_ chain.MultiTransferer  = (*Driver)(nil)
	_ chain.VersionedWallets = (*Driver)(nil)
)

// NewDriver creates a Driver. A nil signer makes every signing operation
// fail with ErrNoSigner.
func NewDriver(cfg *Config, signer Signer, logger wallet.Logger) *Driver {
	if signer == nil {
		signer = noSigner{}
	}
	d := &Driver{
		log:    logger,
		signer: signer,
		apis: map[wallet.Network]*toncenter{
			wallet.Mainnet: newToncenter(cfg.MainnetURL, cfg.APIKey),
			wallet.Testnet: newToncenter(cfg.TestnetURL, cfg.APIKey),
		},
		now: time.Now,
	}
	if cfg.GaslessURL != "" {
		d.relay = &gaslessRelay{url: cfg.GaslessURL}
	}
	return d
}

// Chain is TON.
func (d *Driver) Chain() wallet.Chain {
	return wallet.ChainTON
}

func (d *Driver) api(net wallet.Network) (*toncenter, error) {
	api, ok := d.apis[net]
	if !ok {
		return nil, fmt.Errorf("unknown network %q", net)
	}
	return api, nil
}
