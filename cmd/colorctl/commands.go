// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	resty "github.com/go-resty/resty/v2"
	"github.com/urfave/cli"
)

// newClient builds an HTTP client pointed at the daemon named by the global
// rpcserver flag.
func newClient(ctx *cli.Context) *resty.Client {
	return resty.New().
		SetBaseURL("http://" + ctx.GlobalString("rpcserver")).
		SetHeader("Accept", "application/json")
}

// call performs one request against the daemon and prints the indented JSON
// response.  Non-2xx responses become errors carrying the daemon's message.
func call(ctx *cli.Context, method, path string,
	params map[string]string) error {

	req := newClient(ctx).R()
	if method == "GET" {
		req.SetQueryParams(params)
	} else {
		req.SetFormData(params)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("unable to reach colorcored: %w", err)
	}
	if resp.IsError() {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body(), &failure) == nil &&
			failure.Error != "" {

			return fmt.Errorf("%s: %s", resp.Status(),
				failure.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status(), resp.Body())
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.Body(), "", "  "); err != nil {
		fmt.Println(string(resp.Body()))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

// commonParams collects the parameters shared by every build command.
func commonParams(ctx *cli.Context) map[string]string {
	params := map[string]string{
		"txformat": ctx.GlobalString("txformat"),
	}
	if mode := ctx.String("mode"); mode != "" {
		params["mode"] = mode
	}
	if ctx.IsSet("fee") {
		params["fee"] = strconv.FormatInt(ctx.Int64("fee"), 10)
	}
	return params
}

var modeFlag = cli.StringFlag{
	Name:  "mode",
	Value: "broadcast",
	Usage: "how far to take the transaction (unsigned, signed or " +
		"broadcast)",
}

var feeFlag = cli.Int64Flag{
	Name:  "fee",
	Usage: "transaction fee in satoshis (default: network default)",
}

var getBalanceCommand = cli.Command{
	Name:      "getbalance",
	Usage:     "Show the bitcoin and asset balances of an address",
	ArgsUsage: "[address]",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "minconf",
			Value: 1,
			Usage: "minimum confirmation count",
		},
	},
	Action: func(ctx *cli.Context) error {
		return call(ctx, "GET", "/v1/getbalance", map[string]string{
			"address": ctx.Args().First(),
			"minconf": strconv.Itoa(ctx.Int("minconf")),
		})
	},
}

var listUnspentCommand = cli.Command{
	Name:      "listunspent",
	Usage:     "List the unspent outputs of an address with their colors",
	ArgsUsage: "[address]",
	Flags: []cli.Flag{
		cli.IntFlag{
			Name:  "minconf",
			Value: 1,
			Usage: "minimum confirmation count",
		},
	},
	Action: func(ctx *cli.Context) error {
		return call(ctx, "GET", "/v1/listunspent", map[string]string{
			"address": ctx.Args().First(),
			"minconf": strconv.Itoa(ctx.Int("minconf")),
		})
	},
}

var sendBitcoinCommand = cli.Command{
	Name:      "sendbitcoin",
	Usage:     "Send satoshis without disturbing colored outputs",
	ArgsUsage: "<address> <amount> <to>",
	Flags:     []cli.Flag{modeFlag, feeFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 3 {
			return cli.ShowCommandHelp(ctx, "sendbitcoin")
		}
		params := commonParams(ctx)
		params["address"] = ctx.Args().Get(0)
		params["amount"] = ctx.Args().Get(1)
		params["to"] = ctx.Args().Get(2)
		return call(ctx, "POST", "/v1/sendbitcoin", params)
	},
}

var sendAssetCommand = cli.Command{
	Name:      "sendasset",
	Usage:     "Send asset units to an asset address",
	ArgsUsage: "<address> <asset> <amount> <to>",
	Flags:     []cli.Flag{modeFlag, feeFlag},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 4 {
			return cli.ShowCommandHelp(ctx, "sendasset")
		}
		params := commonParams(ctx)
		params["address"] = ctx.Args().Get(0)
		params["asset"] = ctx.Args().Get(1)
		params["amount"] = ctx.Args().Get(2)
		params["to"] = ctx.Args().Get(3)
		return call(ctx, "POST", "/v1/sendasset", params)
	},
}

var issueAssetCommand = cli.Command{
	Name:      "issueasset",
	Usage:     "Issue new asset units from an address",
	ArgsUsage: "<address> <amount>",
	Flags: []cli.Flag{
		modeFlag,
		feeFlag,
		cli.StringFlag{
			Name:  "to",
			Usage: "recipient of the issued units (default: the " +
				"issuing address)",
		},
		cli.StringFlag{
			Name:  "metadata",
			Usage: "metadata to embed in the marker output",
		},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return cli.ShowCommandHelp(ctx, "issueasset")
		}
		params := commonParams(ctx)
		params["address"] = ctx.Args().Get(0)
		params["amount"] = ctx.Args().Get(1)
		params["to"] = ctx.String("to")
		params["metadata"] = ctx.String("metadata")
		return call(ctx, "POST", "/v1/issueasset", params)
	},
}

var distributeCommand = cli.Command{
	Name: "distribute",
	Usage: "Issue assets to every address that paid the distribution " +
		"address, at a fixed satoshi price per unit",
	ArgsUsage: "<address> <forward> <price>",
	Flags: []cli.Flag{
		modeFlag,
		feeFlag,
		cli.StringFlag{
			Name:  "metadata",
			Usage: "metadata to embed in the marker outputs",
		},
		cli.BoolTFlag{
			Name: "preview",
			Usage: "calculate the distribution without building " +
				"transactions (pass --preview=false to execute)",
		},
	},
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 3 {
			return cli.ShowCommandHelp(ctx, "distribute")
		}
		params := commonParams(ctx)
		params["address"] = ctx.Args().Get(0)
		params["to"] = ctx.Args().Get(1)
		params["price"] = ctx.Args().Get(2)
		params["metadata"] = ctx.String("metadata")
		params["preview"] = strconv.FormatBool(ctx.BoolT("preview"))
		return call(ctx, "POST", "/v1/distribute", params)
	},
}
