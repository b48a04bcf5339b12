// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// colorctl is a command line client for a running colorcored instance.  It
// speaks the daemon's HTTP API and prints the JSON responses unchanged, so
// its output can be piped straight into jq or other tooling.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "colorctl"
	app.Usage = "control plane for colorcored"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: "localhost:8380",
			Usage: "host:port of the colorcored HTTP interface",
		},
		cli.StringFlag{
			Name:  "txformat",
			Value: "json",
			Usage: "transaction rendering for non-broadcast " +
				"modes (json or raw)",
		},
	}
	app.Commands = []cli.Command{
		getBalanceCommand,
		listUnspentCommand,
		sendBitcoinCommand,
		sendAssetCommand,
		issueAssetCommand,
		distributeCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "colorctl:", err)
		os.Exit(1)
	}
}
