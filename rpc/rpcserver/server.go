// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rpcserver exposes the controller operations over HTTP.  Every
// operation is a single endpoint taking form or query parameters and
// returning JSON, so the API can be driven from a browser or curl as easily
// as from the bundled command line client.
package rpcserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/gin-gonic/gin"

	"github.com/openassets/colorcore/chain"
	"github.com/openassets/colorcore/controller"
	"github.com/openassets/colorcore/netparams"
	"github.com/openassets/colorcore/txbuilder"
)

// Server is the HTTP front end of a running colorcored instance.
type Server struct {
	controller *controller.Controller
	params     *netparams.Params
	router     *gin.Engine
	httpServer *http.Server
}

// New creates a server routing requests to the controller.  The server does
// not listen until Start is called.
func New(ctl *controller.Controller, params *netparams.Params) *Server {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	s := &Server{
		controller: ctl,
		params:     params,
		router:     gin.New(),
	}
	s.router.Use(gin.Recovery())

	s.router.GET("/v1/getbalance", s.getBalance)
	s.router.GET("/v1/listunspent", s.listUnspent)
	s.router.POST("/v1/sendbitcoin", s.sendBitcoin)
	s.router.POST("/v1/sendasset", s.sendAsset)
	s.router.POST("/v1/issueasset", s.issueAsset)
	s.router.POST("/v1/distribute", s.distribute)
	return s
}

// Start begins listening on the given address.  It blocks until the
// listener fails or Stop is called.
func (s *Server) Start(listenAddr string) error {
	s.httpServer = &http.Server{
		Addr:              listenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("RPC server listening on %s", listenAddr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Info("RPC server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// writeError maps an operation failure onto an HTTP status: client mistakes
// map to 400, provider failures to 502 and everything else to 500.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var usageErr controller.UsageError
	var fundsErr *txbuilder.InsufficientFundsError
	var assetErr *txbuilder.InsufficientAssetQuantityError
	switch {
	case errors.As(err, &usageErr),
		errors.As(err, &fundsErr),
		errors.As(err, &assetErr),
		errors.Is(err, txbuilder.ErrDustOutput):
		status = http.StatusBadRequest
	case errors.Is(err, chain.ErrTransactionNotFound),
		errors.Is(err, chain.ErrNotSupported):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		log.Errorf("Request %s failed: %v", c.Request.URL.Path, err)
	} else {
		log.Debugf("Request %s rejected: %v", c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// param returns the named request parameter from either the query string or
// the form body.
func param(c *gin.Context, name string) string {
	if v := c.Query(name); v != "" {
		return v
	}
	return c.PostForm(name)
}

func intParam(c *gin.Context, name string, def int) (int, error) {
	v := param(c, name)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, controller.UsageError("invalid " + name + ": " + v)
	}
	return parsed, nil
}

func amountParam(c *gin.Context, name string,
	def btcutil.Amount) (btcutil.Amount, error) {

	v := param(c, name)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil || parsed < 0 {
		return 0, controller.UsageError("invalid " + name + ": " + v)
	}
	return btcutil.Amount(parsed), nil
}

func uint64Param(c *gin.Context, name string) (uint64, error) {
	v := param(c, name)
	if v == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, controller.UsageError("invalid " + name + ": " + v)
	}
	return parsed, nil
}

func modeParam(c *gin.Context) (controller.Mode, error) {
	return controller.ParseMode(param(c, "mode"))
}

func txFormat(c *gin.Context) string {
	if f := param(c, "txformat"); f != "" {
		return f
	}
	return "json"
}

func (s *Server) getBalance(c *gin.Context) {
	minConf, err := intParam(c, "minconf", 1)
	if err != nil {
		writeError(c, err)
		return
	}
	records, err := s.controller.Balance(c.Request.Context(),
		param(c, "address"), minConf)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, marshalBalances(records))
}

func (s *Server) listUnspent(c *gin.Context) {
	minConf, err := intParam(c, "minconf", 1)
	if err != nil {
		writeError(c, err)
		return
	}
	records, err := s.controller.ListUnspent(c.Request.Context(),
		param(c, "address"), minConf)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, marshalUnspents(records))
}

func (s *Server) sendBitcoin(c *gin.Context) {
	amount, err := amountParam(c, "amount", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	fee, err := amountParam(c, "fee", -1)
	if err != nil {
		writeError(c, err)
		return
	}
	mode, err := modeParam(c)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := s.controller.SendBitcoin(c.Request.Context(),
		param(c, "address"), amount, param(c, "to"), fee, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, marshalResult(result, txFormat(c)))
}

func (s *Server) sendAsset(c *gin.Context) {
	amount, err := uint64Param(c, "amount")
	if err != nil {
		writeError(c, err)
		return
	}
	fee, err := amountParam(c, "fee", -1)
	if err != nil {
		writeError(c, err)
		return
	}
	mode, err := modeParam(c)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := s.controller.SendAsset(c.Request.Context(),
		param(c, "address"), param(c, "asset"), amount, param(c, "to"),
		fee, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, marshalResult(result, txFormat(c)))
}

func (s *Server) issueAsset(c *gin.Context) {
	amount, err := uint64Param(c, "amount")
	if err != nil {
		writeError(c, err)
		return
	}
	fee, err := amountParam(c, "fee", -1)
	if err != nil {
		writeError(c, err)
		return
	}
	mode, err := modeParam(c)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := s.controller.IssueAsset(c.Request.Context(),
		param(c, "address"), amount, param(c, "to"),
		[]byte(param(c, "metadata")), fee, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, marshalResult(result, txFormat(c)))
}

func (s *Server) distribute(c *gin.Context) {
	price, err := amountParam(c, "price", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	fee, err := amountParam(c, "fee", -1)
	if err != nil {
		writeError(c, err)
		return
	}
	mode, err := modeParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	// Distributions execute only when preview is explicitly disabled.
	// Every other request is a dry run.
	preview := param(c, "preview") != "false"

	records, err := s.controller.Distribute(c.Request.Context(),
		param(c, "address"), param(c, "to"), price,
		[]byte(param(c, "metadata")), fee, mode, preview)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, marshalDistributions(records, txFormat(c)))
}
