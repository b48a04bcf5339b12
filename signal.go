// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// shutdownRequest receives shutdown requests raised by the process itself,
// such as the RPC server failing to listen.
var shutdownRequest = make(chan struct{}, 1)

// shutdownDone is closed once the shutdown handler has finished.
var shutdownDone = make(chan struct{})

// simulateInterrupt requests a clean shutdown without an operating system
// signal.  Duplicate requests are dropped.
func simulateInterrupt() {
	select {
	case shutdownRequest <- struct{}{}:
	default:
	}
}

// listenForShutdown runs fn once after SIGINT or SIGTERM is received or an
// internal shutdown request is raised, then closes shutdownDone.
func listenForShutdown(fn func()) {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-interrupt:
			log.Infof("Received signal (%s).  Shutting down...", sig)
		case <-shutdownRequest:
			log.Info("Shutdown requested.  Shutting down...")
		}
		fn()
		close(shutdownDone)
	}()
}
