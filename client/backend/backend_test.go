package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-chi/chi/v5"
	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/wallet"
)

type tServer struct {
	mtx        sync.Mutex
	lastBody   map[string]any
	lastAuth   string
	configHits int
	items      map[string]*activity.SwapHistoryItem
}

func (s *tServer) decode(w http.ResponseWriter, r *http.Request) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.lastAuth = r.Header.Get(authTokenHeader)
	s.lastBody = nil
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(&s.lastBody); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, thing any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(thing)
}

func newTestClient(t *testing.T) (*Client, *tServer) {
	t.Helper()
	s := &tServer{items: map[string]*activity.SwapHistoryItem{
		"1": {ID: "1", Status: activity.StatusPending, From: "TON", To: "EQjetton"},
	}}
	r := chi.NewRouter()
	r.Get("/backend/config", func(w http.ResponseWriter, r *http.Request) {
		s.mtx.Lock()
		s.configHits++
		s.mtx.Unlock()
		writeJSON(w, http.StatusOK, &Settings{SwapVersion: 5})
	})
	r.Post("/swap/history/{address}", func(w http.ResponseWriter, r *http.Request) {
		if !s.decode(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, []*activity.SwapHistoryItem{
			{ID: "2", Status: activity.StatusPending, Timestamp: 10},
			{ID: "3", Status: activity.StatusCompleted, Timestamp: 5},
		})
	})
	r.Get("/swap/history/{address}/{id}", func(w http.ResponseWriter, r *http.Request) {
		item, ok := s.items[chi.URLParam(r, "id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, &badRequest{Error: "not found"})
			return
		}
		writeJSON(w, http.StatusOK, item)
	})
	r.Patch("/swap/history/{address}/{id}/update", func(w http.ResponseWriter, r *http.Request) {
		if s.decode(w, r) {
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		}
	})
	r.Post("/swap/ton/estimate", func(w http.ResponseWriter, r *http.Request) {
		if !s.decode(w, r) {
			return
		}
		if s.lastBody["fromAmount"] == "0" {
			writeJSON(w, http.StatusBadRequest, &badRequest{Error: "Insufficient liquidity"})
			return
		}
		writeJSON(w, http.StatusOK, &EstimateResponse{ToAmount: "31.5", DexLabel: "dedust"})
	})
	r.Post("/swap/ton/build", func(w http.ResponseWriter, r *http.Request) {
		if s.decode(w, r) {
			writeJSON(w, http.StatusOK, &BuildResponse{ID: "77", Transfers: []*Transfer{{ToAddress: "EQrouter", Amount: "1000"}}})
		}
	})
	r.Post("/swap/cex/createTransaction", func(w http.ResponseWriter, r *http.Request) {
		if s.decode(w, r) {
			writeJSON(w, http.StatusOK, map[string]any{"swap": &activity.SwapHistoryItem{ID: "9", Status: activity.StatusPending}})
		}
	})
	r.Get("/swap/cex/validate-address", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &AddressValidation{Result: r.URL.Query().Get("address") == "Tgood"})
	})
	r.Get("/staking/common", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"liquid":    map[string]any{"apy": 4.1, "available": "1.5"},
			"round":     map[string]any{"start": 100, "end": 200, "unlock": 300},
			"prevRound": map[string]any{"start": 1, "end": 2, "unlock": 3},
		})
	})
	r.Get("/staking/profits/{address}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []*StakingProfit{{Timestamp: 1, Profit: "0.1"}})
	})
	r.Get("/error", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, &badRequest{Error: "bad"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(&Config{URL: srv.URL, RequestsPerSecond: 1000}, wallet.Disabled)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return c, s
}

func TestNew(t *testing.T) {
	for _, u := range []string{"", "backend", "://x"} {
		if _, err := New(&Config{URL: u}, wallet.Disabled); err == nil {
			t.Fatalf("no error for url %q", u)
		}
	}
}

func TestSwapHistory(t *testing.T) {
	c, s := newTestClient(t)
	ctx := context.Background()

	items, err := c.SwapHistory(ctx, "UQaddr", &HistoryQuery{IsCex: true, Hashes: []string{"h"}})
	if err != nil {
		t.Fatalf("SwapHistory error: %v", err)
	}
	if len(items) != 2 || items[0].Status != activity.StatusPendingTrusted || items[1].Status != activity.StatusCompleted {
		t.Fatalf("wrong items: %s", spew.Sdump(items))
	}
	if s.lastBody["isCex"] != true || s.lastBody["swapVersion"] != float64(5) {
		t.Fatalf("wrong request body: %v", s.lastBody)
	}

	item, err := c.SwapHistoryItem(ctx, "UQaddr", "1")
	if err != nil || item.Status != activity.StatusPendingTrusted {
		t.Fatalf("wrong item %+v, %v", item, err)
	}
	_, err = c.SwapHistoryItem(ctx, "UQaddr", "404")
	if !IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}

	// The config is fetched once and cached.
	if s.configHits != 1 {
		t.Fatalf("config fetched %d times", s.configHits)
	}

	if err := c.PatchSwapItem(ctx, "UQaddr", "1", "tok", &SwapPatch{Error: "boom"}); err != nil {
		t.Fatalf("PatchSwapItem error: %v", err)
	}
	if s.lastAuth != "tok" || s.lastBody["error"] != "boom" || s.lastBody["msgHash"] != nil {
		t.Fatalf("wrong patch request %q %v", s.lastAuth, s.lastBody)
	}
}

func TestSwapEstimateBuild(t *testing.T) {
	c, s := newTestClient(t)
	ctx := context.Background()

	res, err := c.SwapEstimate(ctx, &EstimateRequest{From: "TON", To: "EQj", FromAmount: "1"})
	if err != nil || res.Failed() || res.Value.ToAmount != "31.5" {
		t.Fatalf("wrong estimate %+v, %v", res, err)
	}
	res, err = c.SwapEstimate(ctx, &EstimateRequest{From: "TON", To: "EQj", FromAmount: "0"})
	if err != nil || res.Err != "Insufficient liquidity" {
		t.Fatalf("bad request not returned as a value: %+v, %v", res, err)
	}

	build, err := c.SwapBuild(ctx, "tok", &BuildRequest{EstimateRequest: EstimateRequest{From: "TON"}})
	if err != nil || build.ID != "77" {
		t.Fatalf("wrong build %+v, %v", build, err)
	}
	if s.lastBody["isMsgHashMode"] != true || s.lastBody["from"] != "TON" || s.lastAuth != "tok" {
		t.Fatalf("wrong build request %v", s.lastBody)
	}
	msg, err := build.Transfers[0].Message()
	if err != nil || msg.Amount.Int64() != 1000 || msg.ToAddress != "EQrouter" {
		t.Fatalf("wrong message %+v, %v", msg, err)
	}
	if _, err := (&Transfer{Amount: "x"}).Message(); !errors.Is(err, wallet.ErrInvalidAmount) {
		t.Fatalf("wrong error for bad amount: %v", err)
	}

	swap, err := c.SwapCexCreateTransaction(ctx, "tok", &CexCreateRequest{From: "TON", To: "TRX"})
	if err != nil || swap.ID != "9" || swap.Status != activity.StatusPendingTrusted {
		t.Fatalf("wrong cex swap %+v, %v", swap, err)
	}

	v, err := c.SwapCexValidateAddress(ctx, "trx", "Tgood")
	if err != nil || !v.Result {
		t.Fatalf("wrong validation %+v, %v", v, err)
	}
}

func TestServerError(t *testing.T) {
	c, _ := newTestClient(t)
	err := c.get(context.Background(), "/error", nil, nil)
	var se *ServerError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest || se.Message != "bad" {
		t.Fatalf("wrong error %v", err)
	}
	if IsNotFound(err) {
		t.Fatalf("400 is not a 404")
	}
}

func TestStakingCommon(t *testing.T) {
	c, _ := newTestClient(t)
	sc, err := c.StakingCommon(context.Background())
	if err != nil {
		t.Fatalf("StakingCommon error: %v", err)
	}
	if sc.Round.Start != 100_000 || sc.Round.Unlock != 300_000 || sc.PrevRound.End != 2000 {
		t.Fatalf("round times not in ms: %s", spew.Sdump(sc))
	}
	if sc.Liquid.Available.Int64() != 1_500_000_000 {
		t.Fatalf("wrong available %s", sc.Liquid.Available)
	}
	profits, err := c.StakingProfits(context.Background(), "UQaddr")
	if err != nil || len(profits) != 1 {
		t.Fatalf("wrong profits %v, %v", profits, err)
	}
}
