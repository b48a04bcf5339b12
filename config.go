// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"

	"github.com/openassets/colorcore/internal/cfgutil"
	"github.com/openassets/colorcore/netparams"
)

const (
	defaultConfigFilename = "colorcored.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "colorcored.log"
	defaultCacheFilename  = "colorcore.db"
	defaultCacheSize      = 65536
)

var (
	colorcoreHomeDir  = btcutil.AppDataDir("colorcore", false)
	defaultConfigFile = filepath.Join(colorcoreHomeDir, defaultConfigFilename)
	defaultDataDir    = colorcoreHomeDir
	defaultLogDir     = filepath.Join(colorcoreHomeDir, defaultLogDirname)
)

type config struct {
	// General application behavior
	ConfigFile  *cfgutil.ExplicitString `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool                    `short:"V" long:"version" description:"Display version information and exit"`
	DataDir     string                  `short:"b" long:"datadir" description:"Directory to store the output cache"`
	TestNet3    bool                    `long:"testnet" description:"Use the test network (default mainnet)"`
	TestNet4    bool                    `long:"testnet4" description:"Use the test network version 4 (default mainnet)"`
	RegTest     bool                    `long:"regtest" description:"Use the regression test network (default mainnet)"`
	DebugLevel  string                  `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogDir      string                  `long:"logdir" description:"Directory to log output."`

	// Output cache options
	CachePath string `long:"cachepath" description:"Path to the SQLite output cache database (default: colorcore.db in the data directory)"`
	CacheSize int    `long:"cachesize" description:"Number of resolved outputs to additionally keep in memory"`
	NoCache   bool   `long:"nocache" description:"Keep resolved outputs in memory only, without a database"`

	// Blockchain provider options
	RPCConnect       string `short:"c" long:"rpcconnect" description:"Hostname/IP and port of bitcoind RPC server to connect to (default localhost:8332, testnet: localhost:18332, regtest: localhost:18443)"`
	BitcoindUsername string `short:"u" long:"bitcoindusername" description:"Username for bitcoind authentication"`
	BitcoindPassword string `short:"P" long:"bitcoindpassword" default-mask:"-" description:"Password for bitcoind authentication"`
	Explorer         string `long:"explorer" description:"Base URL of a REST block explorer used for lookups instead of bitcoind"`

	// Protocol policy options
	DustLimit  *cfgutil.AmountFlag `long:"dustlimit" description:"Minimum satoshi value of a pure bitcoin output (default: 600)"`
	DefaultFee *cfgutil.AmountFlag `long:"defaultfee" description:"Transaction fee in satoshis used when a request does not specify one (default: 10000)"`

	// HTTP server options
	Listen string `long:"listen" description:"Listen for HTTP API connections on this interface/port (default port: 8380, testnet: 18380, regtest: 18480)"`
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(colorcoreHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but they variables can still be expanded via POSIX-style
	// $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in colorcored functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take
// precedence.
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		DebugLevel: defaultLogLevel,
		ConfigFile: cfgutil.NewExplicitString(defaultConfigFile),
		DataDir:    defaultDataDir,
		LogDir:     defaultLogDir,
		CacheSize:  defaultCacheSize,
		DustLimit:  cfgutil.NewAmountFlag(netparams.MainNetParams.DustLimit),
		DefaultFee: cfgutil.NewAmountFlag(netparams.MainNetParams.DefaultFee),
	}

	// A config file in the current directory takes precedence.
	exists, err := cfgutil.FileExists(defaultConfigFilename)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if exists {
		cfg.ConfigFile.Value = defaultConfigFilename
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err = preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			preParser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	funcName := "loadConfig"
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	// Load additional config from file.  A missing config file is only an
	// error when the user explicitly asked for one by path.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	configFilePath := preCfg.ConfigFile.Value
	if preCfg.ConfigFile.ExplicitlySet() {
		configFilePath = cleanAndExpandPath(configFilePath)
	}
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok ||
			preCfg.ConfigFile.ExplicitlySet() {

			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil {
		log.Warnf("%v", configFileError)
	}

	// Choose the active network params based on the selected network.
	// Multiple networks can't be selected simultaneously.
	numNets := 0
	if cfg.TestNet3 {
		activeNet = &netparams.TestNet3Params
		numNets++
	}
	if cfg.TestNet4 {
		activeNet = &netparams.TestNet4Params
		numNets++
	}
	if cfg.RegTest {
		activeNet = &netparams.RegressionNetParams
		numNets++
	}
	if numNets > 1 {
		str := "%s: The testnet, testnet4 and regtest params can't be " +
			"used together -- choose one"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	// Append the network type to the log directory so it is "namespaced"
	// per network.
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, activeNet.Params.Name)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Exactly one backend must be reachable.  When both bitcoind and an
	// explorer are configured the explorer answers lookups and bitcoind
	// provides the wallet operations.
	if cfg.RPCConnect == "" && cfg.Explorer == "" {
		cfg.RPCConnect = "localhost:" + activeNet.RPCClientPort
	}
	if cfg.RPCConnect != "" {
		cfg.RPCConnect, err = cfgutil.NormalizeAddress(cfg.RPCConnect,
			activeNet.RPCClientPort)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
		if cfg.BitcoindUsername == "" || cfg.BitcoindPassword == "" {
			str := "%s: bitcoindusername and bitcoindpassword are " +
				"required to connect to bitcoind"
			err := fmt.Errorf(str, funcName)
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Expand and default the cache database path relative to the data
	// directory.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	if cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(cfg.DataDir,
			activeNet.Params.Name, defaultCacheFilename)
	} else {
		cfg.CachePath = cleanAndExpandPath(cfg.CachePath)
	}
	if cfg.CacheSize <= 0 {
		str := "%s: cachesize must be positive"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	if cfg.Listen == "" {
		cfg.Listen = "localhost:" + activeNet.RPCServerPort
	}
	cfg.Listen, err = cfgutil.NormalizeAddress(cfg.Listen,
		activeNet.RPCServerPort)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// The configured policy values override the per-network defaults.
	if cfg.DustLimit.Amount <= 0 {
		str := "%s: dustlimit must be positive"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	if cfg.DefaultFee.Amount < 0 {
		str := "%s: defaultfee may not be negative"
		err := fmt.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}
	activeNet.DustLimit = cfg.DustLimit.Amount
	activeNet.DefaultFee = cfg.DefaultFee.Amount

	return &cfg, remainingArgs, nil
}
