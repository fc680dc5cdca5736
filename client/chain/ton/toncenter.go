// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tonwallet/walletcore/wallet/walletnet"
	"golang.org/x/time/rate"
)

const (
	statusActive   = "active"
	statusUninit   = "uninit"
	statusNonexist = "nonexist"

	// Requests per second without an API key.
	freeRateLimit  = 1
	keyedRateLimit = 10
)

// toncenter is a client of the indexer API of one network.
type toncenter struct {
	url     string
	apiKey  string
	limiter *rate.Limiter
}

func newToncenter(uri, apiKey string) *toncenter {
	limit := rate.Limit(freeRateLimit)
	if apiKey != "" {
		limit = keyedRateLimit
	}
	return &toncenter{
		url:     strings.TrimRight(uri, "/"),
		apiKey:  apiKey,
		limiter: rate.NewLimiter(limit, int(limit)),
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (tc *toncenter) opts(errResp *apiError) []*walletnet.RequestOption {
	opts := []*walletnet.RequestOption{walletnet.WithErrorParsing(errResp), walletnet.WithSizeLimit(1 << 23)}
	if tc.apiKey != "" {
		opts = append(opts, walletnet.WithRequestHeader("X-API-Key", tc.apiKey))
	}
	return opts
}

func (tc *toncenter) get(ctx context.Context, path string, query url.Values, thing any) error {
	if err := tc.limiter.Wait(ctx); err != nil {
		return err
	}
	uri := tc.url + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	var errResp apiError
	if err := walletnet.Get(ctx, uri, thing, tc.opts(&errResp)...); err != nil {
		if errResp.Error != "" {
			return fmt.Errorf("%s: %w: %s", path, err, errResp.Error)
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (tc *toncenter) post(ctx context.Context, path string, body, thing any) error {
	if err := tc.limiter.Wait(ctx); err != nil {
		return err
	}
	var errResp apiError
	if err := walletnet.Post(ctx, tc.url+path, thing, body, tc.opts(&errResp)...); err != nil {
		if errResp.Error != "" {
			return fmt.Errorf("%s: %w: %s", path, err, errResp.Error)
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var httpErr *walletnet.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound
}

type walletInformation struct {
	Balance             string `json:"balance"`
	Status              string `json:"status"`
	Seqno               int64  `json:"seqno"`
	WalletType          string `json:"wallet_type"`
	LastTransactionHash string `json:"last_transaction_hash"`
}

func (w *walletInformation) balance() *big.Int {
	b, ok := new(big.Int).SetString(w.Balance, 10)
	if !ok {
		return new(big.Int)
	}
	return b
}

func (w *walletInformation) version() string {
	switch w.WalletType {
	case "wallet v3 r2":
		return VersionV3R2
	case "wallet v4 r2":
		return VersionV4R2
	case "wallet v5 r1":
		return VersionW5
	}
	return ""
}

func (tc *toncenter) walletInformation(ctx context.Context, addr string) (*walletInformation, error) {
	info := new(walletInformation)
	err := tc.get(ctx, "/api/v3/walletInformation", url.Values{
		"address": {addr},
		"use_v2":  {"false"},
	}, info)
	if isNotFound(err) {
		return &walletInformation{Balance: "0", Status: statusNonexist}, nil
	}
	return info, err
}

type jettonWallet struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Jetton  string `json:"jetton"`
}

// jettonWallet finds the owner's wallet of a jetton. The wallet is nil if the
// owner never held the jetton.
func (tc *toncenter) jettonWallet(ctx context.Context, owner, jetton string) (*jettonWallet, error) {
	var resp struct {
		JettonWallets []*jettonWallet `json:"jetton_wallets"`
	}
	err := tc.get(ctx, "/api/v3/jetton/wallets", url.Values{
		"owner_address":  {owner},
		"jetton_address": {jetton},
		"limit":          {"1"},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.JettonWallets) == 0 {
		return nil, nil
	}
	return resp.JettonWallets[0], nil
}

// resolveDomain returns the wallet a domain points to, or an empty string.
func (tc *toncenter) resolveDomain(ctx context.Context, domain string) (string, error) {
	var resp struct {
		Wallet string `json:"wallet"`
	}
	err := tc.get(ctx, "/api/v3/dns/resolve", url.Values{"domain": {strings.ToLower(domain)}}, &resp)
	if isNotFound(err) {
		return "", nil
	}
	return resp.Wallet, err
}

type actionsQuery struct {
	account  string
	limit    int
	startUtc int64
	endUtc   int64
	traceID  string
	txHash   string
}

func (q *actionsQuery) values() url.Values {
	v := url.Values{"sort": {"desc"}}
	if q.account != "" {
		v.Set("account", q.account)
	}
	if q.limit > 0 {
		v.Set("limit", strconv.Itoa(q.limit))
	}
	if q.startUtc > 0 {
		v.Set("start_utc", strconv.FormatInt(q.startUtc, 10))
	}
	if q.endUtc > 0 {
		v.Set("end_utc", strconv.FormatInt(q.endUtc, 10))
	}
	if q.traceID != "" {
		v.Set("trace_id", q.traceID)
	}
	if q.txHash != "" {
		v.Set("tx_hash", q.txHash)
	}
	return v
}

func (tc *toncenter) actions(ctx context.Context, q *actionsQuery) (*actionsResponse, error) {
	resp := new(actionsResponse)
	if err := tc.get(ctx, "/api/v3/actions", q.values(), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (tc *toncenter) pendingActions(ctx context.Context, account string) (*actionsResponse, error) {
	resp := new(actionsResponse)
	if err := tc.get(ctx, "/api/v3/pendingActions", url.Values{"account": {account}}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type traceTransaction struct {
	Hash      string `json:"hash"`
	Account   string `json:"account"`
	TotalFees string `json:"total_fees"`
}

// traceFees sums the fees the account paid in a trace.
func (tc *toncenter) traceFees(ctx context.Context, traceID, account string) (*big.Int, error) {
	var resp struct {
		Transactions []*traceTransaction `json:"transactions"`
	}
	err := tc.get(ctx, "/api/v3/transactionsByTrace", url.Values{"trace_id": {traceID}}, &resp)
	if err != nil {
		return nil, err
	}
	raw := rawAddress(account)
	fee := new(big.Int)
	for _, tx := range resp.Transactions {
		if !strings.EqualFold(tx.Account, raw) {
			continue
		}
		if f, ok := new(big.Int).SetString(tx.TotalFees, 10); ok {
			fee.Add(fee, f)
		}
	}
	return fee, nil
}

// sendBoc broadcasts a signed external message.
func (tc *toncenter) sendBoc(ctx context.Context, boc string) error {
	var resp struct {
		OK bool `json:"ok"`
	}
	if err := tc.post(ctx, "/api/v2/sendBocReturnHash", map[string]string{"boc": boc}, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return errors.New("message rejected")
	}
	return nil
}
