// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import "github.com/openassets/colorcore/netparams"

// activeNet is the network parameters for the current colorcored network.
// It should not be modified after startup, when the configured network has
// been selected.
var activeNet = &netparams.MainNetParams
