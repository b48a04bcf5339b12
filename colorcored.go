// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/openassets/colorcore/cache"
	"github.com/openassets/colorcore/chain"
	"github.com/openassets/colorcore/controller"
	"github.com/openassets/colorcore/protocol"
	"github.com/openassets/colorcore/rpc/rpcserver"
)

var cfg *config

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Work around defer not working after os.Exit.
	if err := colorcoreMain(); err != nil {
		os.Exit(1)
	}
}

// colorcoreMain is a work-around main function that is required since
// deferred functions (such as log flushing) are not called with calls to
// os.Exit.  Instead, main runs this function and checks for a non-nil error,
// at which point any defers have already run, and if the error is non-nil,
// the program can be exited with an error exit status.
func colorcoreMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	log.Infof("Version %s", version())
	log.Infof("Active network: %s", activeNet.Params.Name)

	// Connect the configured blockchain backends.  When both bitcoind and
	// an explorer are configured, the explorer answers lookups and
	// bitcoind performs the wallet operations.
	var provider chain.Provider
	var bitcoind *chain.BitcoindProvider
	if cfg.RPCConnect != "" {
		bitcoind, err = chain.NewBitcoindProvider(cfg.RPCConnect,
			cfg.BitcoindUsername, cfg.BitcoindPassword)
		if err != nil {
			log.Errorf("Unable to connect to bitcoind at %s: %v",
				cfg.RPCConnect, err)
			return err
		}
		defer bitcoind.Shutdown()
		provider = bitcoind
		log.Infof("Using bitcoind at %s", cfg.RPCConnect)
	}
	if cfg.Explorer != "" {
		explorer := chain.NewExplorerProvider(cfg.Explorer)
		if bitcoind != nil {
			provider = chain.NewFallbackProvider(explorer, bitcoind)
		} else {
			provider = explorer
		}
		log.Infof("Using block explorer at %s", cfg.Explorer)
	}

	// Open the output cache.
	var store protocol.OutputCache
	if cfg.NoCache {
		store = cache.NewMemoryCache()
	} else {
		err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0700)
		if err != nil {
			log.Errorf("Unable to create cache directory: %v", err)
			return err
		}
		sqliteCache, err := cache.NewSQLiteCache(cfg.CachePath)
		if err != nil {
			log.Errorf("Unable to open output cache %s: %v",
				cfg.CachePath, err)
			return err
		}
		defer sqliteCache.Close()
		store, err = cache.NewLRUCache(sqliteCache, cfg.CacheSize)
		if err != nil {
			log.Errorf("Unable to create memory cache: %v", err)
			return err
		}
		log.Infof("Output cache opened at %s", cfg.CachePath)
	}

	ctl := controller.New(activeNet, provider, store)
	server := rpcserver.New(ctl, activeNet)

	listenForShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(),
			5*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			log.Errorf("Unable to stop RPC server: %v", err)
		}
	})

	go func() {
		if err := server.Start(cfg.Listen); err != nil {
			log.Errorf("RPC server error: %v", err)
			simulateInterrupt()
		}
	}()

	<-shutdownDone
	log.Info("Shutdown complete")
	return nil
}
