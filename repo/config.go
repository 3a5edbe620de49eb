// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gcash/bchutil"
	"github.com/jessevdk/go-flags"
)

//go:embed sample-poold.conf
var configFS embed.FS

const (
	DefaultLogFilename    = "poold.log"
	defaultConfigFilename = "poold.conf"

	DefaultMaxNullifiers = 100000
)

var (
	DefaultHomeDir    = bchutil.AppDataDir("poold", false)
	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
)

// Config defines the configuration options for the pool daemon.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	ShowVersion   bool   `short:"v" long:"version" description:"Display version information and exit"`
	ConfigFile    string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir       string `short:"d" long:"datadir" description:"Directory to store data"`
	LogDir        string `long:"logdir" description:"Directory to log output"`
	LogLevel      string `short:"l" long:"loglevel" description:"Set the logging level [trace, debug, info, warning, error, fatal]." default:"info"`
	Testnet       bool   `short:"t" long:"testnet" description:"Use the test network"`
	Regtest       bool   `short:"r" long:"regtest" description:"Use regression testing mode"`
	InMemory      bool   `long:"inmemory" description:"Keep all state in memory. Nothing is persisted across restarts."`
	MockProofs    bool   `long:"mock" description:"Use mock proofs instead of full proofs. This option is only available for regtest."`
	MaxNullifiers uint   `long:"maxnullifiers" description:"The maximum number of nullifier set entries to cache in memory"`
	Demo          bool   `long:"demo" description:"Run a deposit, transfer and withdrawal scenario against the pool and exit"`

	Policy  Policy        `group:"Policy"`
	Bridge  BridgeOptions `group:"Bridge Options"`
	RPCOpts RPCOptions    `group:"RPC Options"`
}

// Policy overrides the pool limits of the selected network. Amounts
// are decimal token strings, such as 0.05.
type Policy struct {
	MaxDepositAmount    string `long:"maxdeposit" description:"The maximum amount a single transaction may deposit"`
	MinDepositAmount    string `long:"mindeposit" description:"The minimum amount a deposit must carry"`
	MinWithdrawalAmount string `long:"minwithdrawal" description:"The minimum amount that may be withdrawn to L1"`
	MaxFee              string `long:"maxfee" description:"The maximum relayer fee of a single transaction"`
}

// BridgeOptions configures the token and the accounts the pool settles with.
type BridgeOptions struct {
	Token         string `long:"token" description:"Address of the pool token" default:"0x00000000000000000000000000000000000000e1"`
	PoolAddress   string `long:"pooladdr" description:"Address of the pool's token custody account" default:"0x0000000000000000000000000000000000000001"`
	BridgeAddress string `long:"bridgeaddr" description:"Address of the bridge's token custody account" default:"0x0000000000000000000000000000000000000002"`
	Multisig      string `long:"multisig" description:"Address failed bridged deposits can be swept to by an operator"`
}

// RPCOptions configures the gRPC listener of the pool service.
type RPCOptions struct {
	RPCCert       string `long:"rpccert" description:"A path to the SSL certificate to use with gRPC. If unset gRPC is served without TLS."`
	RPCKey        string `long:"rpckey" description:"A path to the SSL key to use with gRPC"`
	GrpcListener  string `long:"grpclisten" description:"Add an interface/port to listen for gRPC connections in multiaddr format" default:"/ip4/127.0.0.1/tcp/5001"`
	GrpcAuthToken string `long:"grpcauthtoken" description:"Set a token here if you want to enable client authentication with gRPC."`
	DisableRPC    bool   `long:"disablerpc" description:"Do not start the gRPC server"`
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in proper functionality without any config settings
// while still allowing the user to override settings with config files and
// command line options.  Command line options always take precedence.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	// Default config.
	cfg := Config{
		DataDir:       DefaultHomeDir,
		ConfigFile:    defaultConfigFile,
		MaxNullifiers: DefaultMaxNullifiers,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, err
		}
	}
	if preCfg.ConfigFile == defaultConfigFile && preCfg.DataDir != DefaultHomeDir {
		preCfg.ConfigFile = filepath.Join(preCfg.DataDir, defaultConfigFilename)
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", VersionString())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)

	if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
		err := createDefaultConfigFile(preCfg.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a "+
				"default config file: %v\n", err)
		}
	}

	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintf(os.Stderr, "Error parsing config "+
				"file: %v\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, err
		}
		configFileError = err
	}

	// Reparse command-line arguments to override config file settings
	_, err = parser.ParseArgs(args)
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Error parsing command line arguments: %v\n", err)
		return nil, err
	}

	if cfg.Testnet && cfg.Regtest {
		return nil, errors.New("invalid combination of testnet and regtest")
	}
	if cfg.MockProofs && !cfg.Regtest {
		return nil, errors.New("mock proofs are only available in regtest mode")
	}

	if err := cfg.Bridge.validate(); err != nil {
		return nil, err
	}

	netStr := "mainnet"
	if cfg.Testnet {
		netStr = "testnet"
	} else if cfg.Regtest {
		netStr = "regtest"
	}

	if cfg.LogDir == "" {
		cfg.LogDir = CleanAndExpandPath(path.Join(cfg.DataDir, "logs", netStr))
	}
	cfg.DataDir = CleanAndExpandPath(path.Join(cfg.DataDir, netStr))

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		log.WithCaller(true).Error("Bad config file", log.Args("error", configFileError))
	}

	return &cfg, nil
}

func (b *BridgeOptions) validate() error {
	addrs := map[string]string{
		"token":      b.Token,
		"pooladdr":   b.PoolAddress,
		"bridgeaddr": b.BridgeAddress,
	}
	if b.Multisig != "" {
		addrs["multisig"] = b.Multisig
	}
	for name, addr := range addrs {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s address: %q", name, addr)
		}
	}
	if common.HexToAddress(b.PoolAddress) == common.HexToAddress(b.BridgeAddress) {
		return errors.New("pool and bridge custody addresses must differ")
	}
	return nil
}

// createDefaultConfigFile copies the sample-poold.conf content to the given
// destination path.
func createDefaultConfigFile(destinationPath string) error {
	// Create the destination directory if it does not exists
	err := os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}

	sampleBytes, err := fs.ReadFile(configFS, "sample-poold.conf")
	if err != nil {
		return err
	}

	dest, err := os.OpenFile(destinationPath,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	_, err = bytes.NewReader(sampleBytes).WriteTo(dest)
	return err
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func CleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
