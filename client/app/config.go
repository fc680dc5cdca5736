// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/jessevdk/go-flags"
	"github.com/tonwallet/walletcore/client/backend"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/client/rpcserver"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/config"
)

const (
	defaultLogLevel   = "debug"
	defaultBackendURL = "https://api.mytonwallet.org"
	defaultRPCAddr    = "127.0.0.1:5757"
	configFilename    = "walletd.conf"
	dbFilename        = "wallet.db"
	logFilename       = "walletd.log"
)

var (
	defaultApplicationDirectory = dcrutil.AppDataDir("walletd", false)
	defaultConfigPath           = filepath.Join(defaultApplicationDirectory, configFilename)
)

// CoreConfig encapsulates the settings specific to core.Core.
type CoreConfig struct {
	DBPath        string        `long:"db" description:"Database filepath. Database will be created if it does not exist."`
	PollInterval  time.Duration `long:"pollinterval" description:"Activity polling interval of the current account, e.g. 5s"`
	DraftCacheTTL time.Duration `long:"draftcache" description:"How long transfer draft checks are reused"`
	Debug         bool          `long:"debug" description:"Check the integrity of the activity pages returned by the chains"`
	NoDapps       bool          `long:"nodapps" description:"Build without dapp connections"`
}

// BackendConfig encapsulates the wallet backend settings.
type BackendConfig struct {
	BackendURL string  `long:"backend" description:"URL of the wallet backend"`
	BackendRPS float64 `long:"backendrps" description:"Maximum backend requests per second"`
}

// RPCConfig encapsulates the settings of the JSON API server.
type RPCConfig struct {
	RPCOn   bool   `long:"rpc" description:"Turn on the JSON API and update feed"`
	RPCAddr string `long:"rpcaddr" description:"RPC server listen address"`
	RPCUser string `long:"rpcuser" description:"RPC server user name"`
	RPCPass string `long:"rpcpass" description:"RPC server password"`
}

// LogConfig encapsulates the logging-related settings.
type LogConfig struct {
	LogPath    string `long:"logpath" description:"A file to save app logs"`
	DebugLevel string `long:"log" description:"Logging level {trace, debug, info, warn, error, critical}, or subsystem=level pairs"`
	LocalLogs  bool   `long:"loglocal" description:"Use local time zone time stamps in log entries."`
}

// Config is the application configuration.
type Config struct {
	CoreConfig
	BackendConfig
	RPCConfig
	LogConfig
	// AppData and ConfigPath should be parsed from the command-line,
	// as it makes no sense to set these in the config file itself. If no values
	// are assigned, defaults will be used.
	AppData    string `long:"appdata" description:"Path to application directory."`
	ConfigPath string `long:"config" description:"Path to an INI configuration file."`
	// ChainConfigs are INI files of chain driver settings, e.g.
	// ton:~/ton.conf. A chain with no file gets the driver defaults.
	ChainConfigs map[string]string `long:"chainconfig" description:"chain:path of a file with the settings of a chain driver. May be repeated."`
	Chains       []string          `long:"chain" description:"Chain to run. May be repeated. Default is every chain with a driver."`
	ShowVer      bool              `short:"V" long:"version" description:"Display version information and exit"`
}

// DefaultConfig is the configuration before the command line and file are
// parsed.
var DefaultConfig = Config{
	AppData:       defaultApplicationDirectory,
	ConfigPath:    defaultConfigPath,
	LogConfig:     LogConfig{DebugLevel: defaultLogLevel},
	BackendConfig: BackendConfig{BackendURL: defaultBackendURL},
	RPCConfig:     RPCConfig{RPCAddr: defaultRPCAddr},
}

// ParseCLIConfig parses the command-line arguments into the provided struct
// with go-flags tags. If the --help flag has been passed, the struct is
// described back to the terminal and the program exits using os.Exit.
func ParseCLIConfig(cfg any) error {
	preParser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	_, flagerr := preParser.Parse()
	if flagerr != nil {
		var e *flags.Error
		ok := errors.As(flagerr, &e)
		if ok && e.Type == flags.ErrHelp {
			preParser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		preParser.WriteHelp(os.Stderr)
		return flagerr
	}
	return nil
}

// ResolveCLIConfigPaths resolves the app data directory path and the
// configuration file path from the CLI config.
func ResolveCLIConfigPaths(cfg *Config) (appData, configPath string) {
	if cfg.AppData != defaultApplicationDirectory {
		cfg.AppData = wallet.CleanAndExpandPath(cfg.AppData)
		// A custom app directory moves the default config file with it.
		if cfg.ConfigPath == defaultConfigPath {
			cfg.ConfigPath = filepath.Join(cfg.AppData, configFilename)
		}
	}
	cfg.ConfigPath = wallet.CleanAndExpandPath(cfg.ConfigPath)
	return cfg.AppData, cfg.ConfigPath
}

// ParseFileConfig parses the INI file into the provided struct with go-flags
// tags. The CLI args are then parsed, and take precedence over the file values.
func ParseFileConfig(path string, cfg any) error {
	parser := flags.NewParser(cfg, flags.Default)
	err := flags.NewIniParser(parser).ParseFile(path)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return err
		}
		// Missing file is not an error.
	}

	_, err = parser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return err
	}
	return nil
}

// ResolveConfig sets the unset paths under the app data directory, and
// checks the chain settings.
func ResolveConfig(appData string, cfg *Config) error {
	cfg.AppData = appData
	if err := os.MkdirAll(appData, 0700); err != nil {
		return fmt.Errorf("failed to create app directory: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(appData, dbFilename)
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(appData, "logs", logFilename)
	}
	cfg.DBPath = wallet.CleanAndExpandPath(cfg.DBPath)
	cfg.LogPath = wallet.CleanAndExpandPath(cfg.LogPath)
	for c, path := range cfg.ChainConfigs {
		if _, err := wallet.ChainFromString(c); err != nil {
			return fmt.Errorf("bad chainconfig: %w", err)
		}
		cfg.ChainConfigs[c] = wallet.CleanAndExpandPath(path)
	}
	for _, c := range cfg.Chains {
		if _, err := wallet.ChainFromString(c); err != nil {
			return fmt.Errorf("bad chain: %w", err)
		}
	}
	if cfg.RPCOn && cfg.RPCPass == "" {
		return errors.New("--rpcpass is required with --rpc")
	}
	return nil
}

// DriverConfigs reads the settings of every chain to run. Only chains with a
// registered driver are run when no chain is configured.
func (cfg *Config) DriverConfigs() (map[wallet.Chain]*chain.Config, error) {
	chains := chain.Registered()
	if len(cfg.Chains) > 0 {
		chains = chains[:0]
		for _, c := range cfg.Chains {
			ch, err := wallet.ChainFromString(c)
			if err != nil {
				return nil, err
			}
			chains = append(chains, ch)
		}
	}
	cfgs := make(map[wallet.Chain]*chain.Config, len(chains))
	for _, ch := range chains {
		settings := make(map[string]string)
		if path, found := cfg.ChainConfigs[string(ch)]; found {
			var err error
			settings, err = config.Options(path)
			if err != nil {
				return nil, fmt.Errorf("error reading %s settings from %s: %w", ch, path, err)
			}
		}
		cfgs[ch] = &chain.Config{Settings: settings}
	}
	return cfgs, nil
}

// RPC creates the RPC server configuration for the core.
func (cfg *Config) RPC(c rpcserver.Core) *rpcserver.Config {
	return &rpcserver.Config{
		Core: c,
		Addr: cfg.RPCAddr,
		User: cfg.RPCUser,
		Pass: cfg.RPCPass,
	}
}

// Backend creates the backend client configuration.
func (cfg *Config) Backend() *backend.Config {
	return &backend.Config{
		URL:               cfg.BackendURL,
		RequestsPerSecond: cfg.BackendRPS,
		ClientVersion:     Version,
	}
}
