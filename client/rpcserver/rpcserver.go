// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package rpcserver exposes the Core over a local JSON API, and streams the
// Core updates to websocket clients.
package rpcserver

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/backend"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/client/core"
	"github.com/tonwallet/walletcore/client/db"
	"github.com/tonwallet/walletcore/wallet"
)

const (
	// rpcTimeoutSeconds is the number of seconds a connection to the
	// RPC server is allowed to stay open without authenticating before it
	// is closed.
	rpcTimeoutSeconds = 10
	// maxRequestSize limits request bodies.
	maxRequestSize = 1 << 20
)

// Core is the part of core.Core served by the RPCServer.
type Core interface {
	Accounts() ([]*db.Account, error)
	CurrentAccountID() string
	ActivateAccount(accountID string, newest core.ActivityTimestamps) error
	DeactivateAllAccounts() error
	RemoveAccount(accountID, nextAccountID string, newest core.ActivityTimestamps) error
	RenameAccount(accountID, title string) error
	GenerateMnemonic(isBip39 bool) ([]string, error)
	ImportMnemonic(ctx context.Context, net wallet.Network, words []string, password, version string) (wallet.Result[*core.AccountResult], error)
	ImportViewAccount(ctx context.Context, net wallet.Network, addressByChain map[wallet.Chain]string) (wallet.Result[*core.AccountResult], error)
	FetchPastActivities(ctx context.Context, accountID string, limit int, tokenSlug string, toTimestamp int64) (*activity.Slice, error)
	CheckTransactionDraft(ctx context.Context, ch wallet.Chain, req *core.DraftRequest) (wallet.Result[*chain.DraftResult], error)
	SubmitTransfer(ctx context.Context, ch wallet.Chain, req *core.TransferRequest) (wallet.Result[string], error)
	FetchSwaps(ctx context.Context, accountID string, ids []string) (*core.SwapsResult, error)
	StakingCommon() *backend.StakingCommon
}

// Config is the configuration of the RPCServer.
type Config struct {
	Core Core
	Addr string
	User string
	Pass string
}

// RPCServer is an authenticated JSON API and update feed for the Core.
type RPCServer struct {
	core    Core
	addr    string
	mux     *chi.Mux
	srv     *http.Server
	log     wallet.Logger
	authSHA [32]byte

	wg        sync.WaitGroup
	clientMtx sync.RWMutex
	clients   map[int32]*wsClient
	nextCID   int32
}

var _ core.Updater = (*RPCServer)(nil)

// New is the constructor for an RPCServer. A password is required.
func New(cfg *Config, logger wallet.Logger) (*RPCServer, error) {
	if cfg.Pass == "" {
		return nil, errors.New("rpc password cannot be empty")
	}
	if logger == nil {
		logger = wallet.Disabled
	}
	mux := chi.NewRouter()
	s := &RPCServer{
		core: cfg.Core,
		addr: cfg.Addr,
		mux:  mux,
		log:  logger,
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  rpcTimeoutSeconds * time.Second,
			WriteTimeout: rpcTimeoutSeconds * time.Second,
		},
		clients: make(map[int32]*wsClient),
	}
	// The header a client sends is compared as a hash in constant time.
	login := cfg.User + ":" + cfg.Pass
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
	s.authSHA = sha256.Sum256([]byte(auth))

	mux.Use(middleware.Recoverer)
	mux.Use(s.authMiddleware)
	mux.Post("/", s.handleJSON)
	mux.Get("/ws", s.handleWS)
	return s, nil
}

// Run listens and serves until the context is canceled.
func (s *RPCServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("can't listen on %s: %w", s.addr, err)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		if err := s.srv.Shutdown(context.Background()); err != nil {
			s.log.Errorf("Problem shutting down rpc: %v", err)
		}
	}()

	s.log.Infof("RPC server listening on %s", listener.Addr())
	err = s.srv.Serve(listener)
	if !errors.Is(err, http.ErrServerClosed) {
		s.log.Warnf("unexpected (http.Server).Serve error: %v", err)
	}

	// Shutdown doesn't close hijacked websocket connections.
	s.clientMtx.Lock()
	for _, cl := range s.clients {
		cl.disconnect()
	}
	s.clientMtx.Unlock()
	s.wg.Wait()
	s.log.Infof("RPC server off")
	return nil
}

// authMiddleware checks the Basic authorization header.
func (s *RPCServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header["Authorization"]
		if len(auth) == 0 {
			w.Header().Add("WWW-Authenticate", `Basic realm="walletd RPC"`)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		authSHA := sha256.Sum256([]byte(auth[0]))
		if subtle.ConstantTimeCompare(s.authSHA[:], authSHA[:]) != 1 {
			s.log.Warnf("authentication failure from ip: %s", r.RemoteAddr)
			http.Error(w, "authentication failure", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleJSON handles one API request.
func (s *RPCServer) handleJSON(w http.ResponseWriter, r *http.Request) {
	req := new(Request)
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(req); err != nil {
		http.Error(w, "failed to unmarshal JSON request", http.StatusBadRequest)
		return
	}
	if req.Route == "" {
		http.Error(w, "no route", http.StatusBadRequest)
		return
	}
	s.writeJSON(w, s.respond(r.Context(), req))
}

// respond runs the handler of the request's route.
func (s *RPCServer) respond(ctx context.Context, req *Request) *Response {
	resp := &Response{ID: req.ID}
	h, found := routes[req.Route]
	if !found {
		resp.Error = &Error{Code: ErrUnknownRoute, Message: "unknown route " + req.Route}
		return resp
	}
	res, err := h(s, ctx, req.Params)
	if err != nil {
		resp.Error = rpcError(err)
		if resp.Error.Code == ErrInternal {
			s.log.Errorf("Error handling %s: %v", req.Route, err)
		}
		return resp
	}
	b, err := json.Marshal(res)
	if err != nil {
		s.log.Errorf("Error encoding %s result: %v", req.Route, err)
		resp.Error = &Error{Code: ErrInternal, Message: "error encoding result"}
		return resp
	}
	resp.Result = b
	return resp
}

// Update sends the Core update to every websocket client. Satisfies the
// core.Updater interface.
func (s *RPCServer) Update(u core.Update) {
	b, err := json.Marshal(u)
	if err != nil {
		s.log.Errorf("Error encoding %s update: %v", u.Type(), err)
		return
	}
	note, err := json.Marshal(&Notification{Route: u.Type(), Payload: b})
	if err != nil {
		s.log.Errorf("Error encoding %s notification: %v", u.Type(), err)
		return
	}
	s.clientMtx.RLock()
	defer s.clientMtx.RUnlock()
	for _, cl := range s.clients {
		cl.send(note)
	}
}

func (s *RPCServer) writeJSON(w http.ResponseWriter, thing any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(thing); err != nil {
		s.log.Infof("JSON encode error: %v", err)
	}
}
