package ton

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-chi/chi/v5"
	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/encrypt"
)

const tPassword = "abc"

var tCtx = context.Background()

func testWallet(t *testing.T, seed byte, version string) *chain.Wallet {
	t.Helper()
	key := ed25519.NewKeyFromSeed(append(make([]byte, 31), seed))
	w, err := walletFromPublicKey(wallet.Mainnet, key.Public().(ed25519.PublicKey), version, false)
	if err != nil {
		t.Fatalf("walletFromPublicKey error: %v", err)
	}
	return w
}

type tSigner struct {
	mtx  sync.Mutex
	reqs []*SignRequest
	err  error
}

func (s *tSigner) SignTransfer(_ context.Context, req *SignRequest) (*SignedMessage, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.reqs = append(s.reqs, req)
	return &SignedMessage{BOC: "Ym9j", MsgHash: "hash", MsgHashNormalized: "hashnorm"}, nil
}

func (s *tSigner) EncryptComment(_ context.Context, req *CommentRequest) (string, error) {
	return toBoc(commentCell("enc:" + req.Text)), nil
}

func (s *tSigner) DecryptComment(_ context.Context, req *CommentRequest) (string, error) {
	return strings.TrimPrefix(req.Text, "enc:"), nil
}

// tIndexer is a fake toncenter.
type tIndexer struct {
	mtx       sync.Mutex
	wallets   map[string]*walletInformation
	jettons   map[string]*jettonWallet
	actions   *actionsResponse
	sent      []string
	lastQuery map[string]string
}

func newTIndexer() *tIndexer {
	return &tIndexer{
		wallets: make(map[string]*walletInformation),
		jettons: make(map[string]*jettonWallet),
		actions: &actionsResponse{},
	}
}

func writeJSON(w http.ResponseWriter, thing any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(thing)
}

func (ix *tIndexer) server(t *testing.T) *httptest.Server {
	r := chi.NewRouter()
	r.Get("/api/v3/walletInformation", func(w http.ResponseWriter, r *http.Request) {
		ix.mtx.Lock()
		defer ix.mtx.Unlock()
		info, ok := ix.wallets[r.URL.Query().Get("address")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, &apiError{Error: "not found"})
			return
		}
		writeJSON(w, info)
	})
	r.Get("/api/v3/jetton/wallets", func(w http.ResponseWriter, r *http.Request) {
		ix.mtx.Lock()
		defer ix.mtx.Unlock()
		resp := struct {
			JettonWallets []*jettonWallet `json:"jetton_wallets"`
		}{}
		if jw, ok := ix.jettons[r.URL.Query().Get("jetton_address")]; ok {
			resp.JettonWallets = append(resp.JettonWallets, jw)
		}
		writeJSON(w, resp)
	})
	r.Get("/api/v3/actions", func(w http.ResponseWriter, r *http.Request) {
		ix.mtx.Lock()
		defer ix.mtx.Unlock()
		ix.lastQuery = make(map[string]string)
		for k := range r.URL.Query() {
			ix.lastQuery[k] = r.URL.Query().Get(k)
		}
		writeJSON(w, ix.actions)
	})
	r.Get("/api/v3/pendingActions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &actionsResponse{})
	})
	r.Post("/api/v2/sendBocReturnHash", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ix.mtx.Lock()
		ix.sent = append(ix.sent, req["boc"])
		ix.mtx.Unlock()
		writeJSON(w, map[string]any{"ok": true})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func tDriver(t *testing.T, ix *tIndexer, signer Signer) *Driver {
	srv := ix.server(t)
	d := NewDriver(&Config{MainnetURL: srv.URL, TestnetURL: srv.URL, APIKey: "key"}, signer, wallet.Disabled)
	return d
}

func tAccount(t *testing.T, w *chain.Wallet) *chain.Account {
	t.Helper()
	secret, err := encrypt.SealSecret([]string{"word"}, tPassword)
	if err != nil {
		t.Fatalf("SealSecret error: %v", err)
	}
	return &chain.Account{
		ID:      "0-mainnet",
		Network: wallet.Mainnet,
		Type:    wallet.AccountMnemonic,
		Wallet:  w,
		Secret:  secret,
	}
}

func TestMnemonics(t *testing.T) {
	d := NewDriver(&Config{}, nil, wallet.Disabled)
	words, err := d.GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic error: %v", err)
	}
	if len(words) != mnemonicWords || !d.ValidateMnemonic(words) {
		t.Fatalf("generated mnemonic is invalid: %v", words)
	}
	w1, err := d.WalletFromMnemonic(tCtx, wallet.Mainnet, words, "")
	if err != nil {
		t.Fatalf("WalletFromMnemonic error: %v", err)
	}
	w2, _ := d.WalletFromMnemonic(tCtx, wallet.Mainnet, words, VersionW5)
	if w1.Address != w2.Address || w1.Version != VersionW5 || !isValidAddress(w1.Address) {
		t.Fatalf("wrong default wallet %+v vs %+v", w1, w2)
	}
	v4, err := d.WalletFromMnemonic(tCtx, wallet.Mainnet, words, VersionV4R2)
	if err != nil || v4.Address == w1.Address || v4.PublicKey != w1.PublicKey {
		t.Fatalf("wrong v4R2 wallet %+v: %v", v4, err)
	}
	other, err := d.OtherVersionWallet(wallet.Mainnet, w1, VersionV4R2, false)
	if err != nil || other.Address != v4.Address {
		t.Fatalf("OtherVersionWallet mismatch: %+v, %v", other, err)
	}
	if _, err := d.WalletFromMnemonic(tCtx, wallet.Mainnet, words, "v9"); err == nil {
		t.Fatalf("no error for unknown version")
	}

	bad := append([]string{"notaword"}, words[1:]...)
	if d.ValidateMnemonic(bad) || d.ValidateMnemonic(words[:12]) {
		t.Fatalf("invalid mnemonic validated")
	}

	bip39Words := strings.Fields("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	bw, err := d.WalletFromBip39Mnemonic(tCtx, wallet.Mainnet, bip39Words)
	if err != nil || !isValidAddress(bw.Address) {
		t.Fatalf("WalletFromBip39Mnemonic error: %v", err)
	}
	if _, err := d.WalletFromBip39Mnemonic(tCtx, wallet.Mainnet, bip39Words[1:]); err == nil {
		t.Fatalf("no error for bad bip39 mnemonic")
	}

	seed := strings.Repeat("01", 32)
	k1, err := d.WalletFromPrivateKey(tCtx, wallet.Mainnet, seed)
	if err != nil {
		t.Fatalf("WalletFromPrivateKey error: %v", err)
	}
	full := seed + k1.PublicKey
	k2, err := d.WalletFromPrivateKey(tCtx, wallet.Mainnet, full)
	if err != nil || k2.Address != k1.Address {
		t.Fatalf("seed and full key give different wallets: %v", err)
	}
	if _, err := d.WalletFromPrivateKey(tCtx, wallet.Mainnet, "abcd"); err == nil {
		t.Fatalf("no error for short key")
	}
}

func TestAddresses(t *testing.T) {
	d := NewDriver(&Config{}, nil, wallet.Disabled)
	w := testWallet(t, 1, VersionV4R2)
	raw := rawAddress(w.Address)
	norm := d.NormalizeAddress(wallet.Mainnet, w.Address)
	if d.NormalizeAddress(wallet.Mainnet, raw) != norm || norm == w.Address {
		t.Fatalf("raw and friendly forms normalize differently")
	}
	if d.NormalizeAddress(wallet.Testnet, w.Address) == norm {
		t.Fatalf("testnet form not different")
	}
	if d.NormalizeAddress(wallet.Mainnet, "garbage") != "garbage" {
		t.Fatalf("bad address not returned as is")
	}
	if !isDomain("foundation.ton") || isDomain(".ton") || isDomain(w.Address) {
		t.Fatalf("wrong domain detection")
	}
}

func TestPayloads(t *testing.T) {
	c, err := payloadCell(&chain.Payload{Type: chain.PayloadComment, Text: "hello"})
	if err != nil {
		t.Fatalf("payloadCell error: %v", err)
	}
	parsed, err := fromBoc(toBoc(c))
	if err != nil {
		t.Fatalf("fromBoc error: %v", err)
	}
	s := parsed.BeginParse()
	if op := s.MustLoadUInt(32); op != opComment {
		t.Fatalf("wrong op %d", op)
	}
	if text := s.MustLoadStringSnake(); text != "hello" {
		t.Fatalf("wrong comment %q", text)
	}
	if c, err := payloadCell(&chain.Payload{Type: chain.PayloadComment}); c != nil || err != nil {
		t.Fatalf("empty comment made a payload")
	}
	if _, err := payloadCell(&chain.Payload{Type: chain.PayloadBase64, Data: "%%%"}); err == nil {
		t.Fatalf("no error for bad base64 payload")
	}
}

func TestParseActions(t *testing.T) {
	ours := testWallet(t, 1, VersionW5)
	them := testWallet(t, 2, VersionW5)
	ourRaw := strings.ToUpper(rawAddress(ours.Address))
	theirRaw := strings.ToUpper(rawAddress(them.Address))
	usdtRaw := rawAddress(activity.TonUsdtAddress)

	details := func(v any) json.RawMessage {
		b, _ := json.Marshal(v)
		return b
	}
	success, failure := true, false
	resp := &actionsResponse{
		Actions: []*action{
			{
				TraceID: "t1", ActionID: "a1", StartLT: "10", StartUtc: 100, Success: &success,
				TraceExternalHashNorm: "norm1", Type: actionTonTransfer,
				Details: details(&transferDetails{Source: theirRaw, Destination: ourRaw, Value: "1000", Comment: "hi"}),
			},
			{
				TraceID: "t2", ActionID: "a2", StartLT: "20", StartUtc: 200, Success: &failure,
				Type:    actionJettonTransfer,
				Details: details(&jettonTransferDetails{Asset: usdtRaw, Sender: ourRaw, Receiver: theirRaw, Amount: "5", QueryID: "7"}),
			},
			{
				TraceID: "t3", ActionID: "a3", StartLT: "30", StartUtc: 150, Type: actionJettonSwap,
				Details: details(&jettonSwapDetails{
					Sender: ourRaw, AssetOut: usdtRaw,
					DexIncomingTransfer: &swapLeg{Amount: "1500000000"},
					DexOutgoingTransfer: &swapLeg{Amount: "7200000"},
				}),
			},
			{TraceID: "t4", ActionID: "a4", StartUtc: 50, Type: "nft_mint"},
		},
		AddressBook: map[string]addressBookEntry{
			theirRaw: {addressBookUserFriendly: them.Address},
		},
	}
	got := newActionParser(wallet.Mainnet, ours.Address, resp, false).parseAll(resp.Actions)
	if len(got) != 3 || !activity.AreSortedAndUnique(got) {
		t.Fatalf("wrong activities: %s", spew.Sdump(got))
	}
	jetton, swap, ton := got[0], got[1], got[2]
	if ton.ID != "t1:10-a1" || !ton.IsIncoming || ton.Comment != "hi" || ton.Amount.Int64() != 1000 ||
		ton.FromAddress != them.Address || ton.Timestamp != 100000 || ton.ExternalMsgHashNorm != "norm1" ||
		ton.Slug != activity.ToncoinSlug || ton.ShouldLoadDetails {
		t.Fatalf("wrong toncoin transfer: %s", spew.Sdump(ton))
	}
	if jetton.IsIncoming || jetton.Status != activity.StatusFailed || jetton.Slug != activity.TonUsdtSlug ||
		jetton.Extra == nil || jetton.Extra.QueryID != "7" || !jetton.ShouldLoadDetails {
		t.Fatalf("wrong jetton transfer: %s", spew.Sdump(jetton))
	}
	if swap.Kind != activity.KindSwap || swap.From != activity.ToncoinSlug || swap.To != activity.TonUsdtSlug ||
		swap.FromAmount != "1.5" || swap.ToAmount != "7.2" || len(swap.Hashes) != 1 || swap.Hashes[0] != "t3" {
		t.Fatalf("wrong swap: %s", spew.Sdump(swap))
	}

	pending := newActionParser(wallet.Mainnet, ours.Address, resp, true).parseAll(resp.Actions[:1])
	if pending[0].Status != activity.StatusPending {
		t.Fatalf("pending action not pending")
	}
}

func TestFetchActivitySlice(t *testing.T) {
	ix := newTIndexer()
	d := tDriver(t, ix, nil)
	ours := testWallet(t, 1, VersionW5)
	ourRaw := rawAddress(ours.Address)
	mk := func(id string, ts int64) *action {
		b, _ := json.Marshal(&transferDetails{Source: ourRaw, Destination: ourRaw, Value: "1"})
		return &action{TraceID: id, ActionID: "0", StartLT: "1", StartUtc: ts, Type: actionTonTransfer, Details: b}
	}
	ix.actions = &actionsResponse{Actions: []*action{mk("c", 30), mk("b", 20), mk("a", 10)}}
	acct := tAccount(t, ours)
	got, err := d.FetchActivitySlice(tCtx, acct, &chain.SliceOptions{ToTimestamp: 30000, Limit: 3})
	if err != nil {
		t.Fatalf("FetchActivitySlice error: %v", err)
	}
	if len(got) != 2 || got[0].Timestamp != 20000 {
		t.Fatalf("activity at the bound not excluded: %s", spew.Sdump(got))
	}
	if ix.lastQuery["end_utc"] != "30" || ix.lastQuery["limit"] != "3" || ix.lastQuery["sort"] != "desc" {
		t.Fatalf("wrong query %v", ix.lastQuery)
	}
	got, err = d.FetchActivitySlice(tCtx, acct, &chain.SliceOptions{TokenSlug: activity.TonUsdtSlug, Limit: 3})
	if err != nil || len(got) != 0 {
		t.Fatalf("token scope not applied: %v", err)
	}
}

func TestSubmitGasfullTransfer(t *testing.T) {
	ix := newTIndexer()
	signer := &tSigner{}
	d := tDriver(t, ix, signer)
	ours := testWallet(t, 1, VersionW5)
	them := testWallet(t, 2, VersionW5)
	ix.wallets[ours.Address] = &walletInformation{Balance: "1000000000", Status: statusActive, Seqno: 4}
	ix.wallets[them.Address] = &walletInformation{Balance: "0", Status: statusActive}
	acct := tAccount(t, ours)

	opts := &chain.TransferOptions{
		Password:  tPassword,
		ToAddress: them.Address,
		Amount:    big.NewInt(1000000),
		Payload:   &chain.Payload{Type: chain.PayloadComment, Text: "memo"},
	}
	res, err := d.SubmitGasfullTransfer(tCtx, acct, opts)
	if err != nil || res.Failed() {
		t.Fatalf("SubmitGasfullTransfer error: %v, %s", err, res.Err)
	}
	local := res.Value.LocalActivity
	if res.Value.TxID != "hashnorm" || local.Amount.Int64() != 1000000 || local.ToAddress != them.Address ||
		local.Comment != "memo" || local.Slug != activity.ToncoinSlug || local.ExternalMsgHashNorm != "hashnorm" {
		t.Fatalf("wrong result: %s", spew.Sdump(res.Value))
	}
	if len(ix.sent) != 1 || len(signer.reqs) != 1 || signer.reqs[0].Seqno != 4 || len(signer.reqs[0].Messages) != 1 {
		t.Fatalf("message not signed and sent once")
	}

	opts.Password = "wrong"
	if res, err := d.SubmitGasfullTransfer(tCtx, acct, opts); err != nil || res.Err != wallet.ErrInvalidPassword {
		t.Fatalf("wrong password accepted: %v, %q", err, res.Err)
	}
	opts.Password = tPassword
	opts.Amount = big.NewInt(1000000000)
	if res, err := d.SubmitGasfullTransfer(tCtx, acct, opts); err != nil || res.Err != wallet.ErrInsufficientBalance {
		t.Fatalf("insufficient balance not detected: %v, %q", err, res.Err)
	}
	opts.ToAddress = "nope"
	if res, err := d.SubmitGasfullTransfer(tCtx, acct, opts); err != nil || res.Err != wallet.ErrInvalidAddress {
		t.Fatalf("bad address accepted: %v, %q", err, res.Err)
	}
	if len(ix.sent) != 1 {
		t.Fatalf("failed transfers were sent")
	}

	view := &chain.Account{ID: "1-mainnet", Network: wallet.Mainnet, Type: wallet.AccountView, Wallet: ours}
	if res, _ := d.SubmitGasfullTransfer(tCtx, view, opts); res.Err != wallet.ErrNotSupported {
		t.Fatalf("view account could send")
	}
}

func TestCheckTransactionDraftToken(t *testing.T) {
	ix := newTIndexer()
	d := tDriver(t, ix, &tSigner{})
	ours := testWallet(t, 1, VersionW5)
	them := testWallet(t, 2, VersionW5)
	jw := testWallet(t, 3, VersionV4R2)
	ix.wallets[ours.Address] = &walletInformation{Balance: "1000", Status: statusActive}
	ix.jettons[activity.TonUsdtAddress] = &jettonWallet{Address: jw.Address, Balance: "500"}
	acct := tAccount(t, ours)

	opts := &chain.DraftOptions{
		ToAddress:    them.Address,
		Amount:       big.NewInt(100),
		TokenAddress: activity.TonUsdtAddress,
	}
	// Not enough Toncoin for the fee, and no gasless relay.
	res, err := d.CheckTransactionDraft(tCtx, acct, opts)
	if err != nil || res.Err != wallet.ErrInsufficientBalance {
		t.Fatalf("fee shortage not detected: %v, %q", err, res.Err)
	}
	ix.wallets[ours.Address].Balance = "1000000000"
	res, err = d.CheckTransactionDraft(tCtx, acct, opts)
	if err != nil || res.Failed() {
		t.Fatalf("CheckTransactionDraft error: %v, %q", err, res.Err)
	}
	if !res.Value.IsToAddressNew || res.Value.Fee.Int64() != tokenTransferAmount {
		t.Fatalf("wrong draft %s", spew.Sdump(res.Value))
	}
	opts.Amount = big.NewInt(501)
	if res, _ := d.CheckTransactionDraft(tCtx, acct, opts); res.Err != wallet.ErrInsufficientBalance {
		t.Fatalf("token shortage not detected")
	}
}

func TestValidateDexSwapTransfers(t *testing.T) {
	d := NewDriver(&Config{}, nil, wallet.Disabled)
	w := testWallet(t, 1, VersionW5)
	acct := &chain.Account{Network: wallet.Mainnet, Wallet: w}
	req := &chain.DexSwapRequest{From: activity.ToncoinSymbol, FromAmount: "2"}
	msgs := []*chain.Message{{ToAddress: w.Address, Amount: big.NewInt(2_500_000_000)}}
	if err := d.ValidateDexSwapTransfers(tCtx, acct, req, msgs); err != nil {
		t.Fatalf("valid swap rejected: %v", err)
	}
	msgs[0].Amount = big.NewInt(3_000_000_001)
	if err := d.ValidateDexSwapTransfers(tCtx, acct, req, msgs); err == nil {
		t.Fatalf("overspending swap accepted")
	}
	msgs[0].Amount = big.NewInt(1)
	msgs[0].ToAddress = "x"
	if err := d.ValidateDexSwapTransfers(tCtx, acct, req, msgs); err == nil {
		t.Fatalf("bad address accepted")
	}
	if err := d.ValidateDexSwapTransfers(tCtx, acct, req, nil); err == nil {
		t.Fatalf("empty swap accepted")
	}
}

func TestDecryptComment(t *testing.T) {
	d := NewDriver(&Config{}, &tSigner{}, wallet.Disabled)
	acct := tAccount(t, testWallet(t, 1, VersionW5))
	a := &activity.Activity{EncryptedComment: "enc:secret", IsIncoming: true}
	res, err := d.DecryptComment(tCtx, acct, a, tPassword)
	if err != nil || res.Value != "secret" {
		t.Fatalf("DecryptComment error: %v, %+v", err, res)
	}
	if res, _ := d.DecryptComment(tCtx, acct, a, "bad"); res.Err != wallet.ErrInvalidPassword {
		t.Fatalf("bad password accepted")
	}
	if res, _ := d.DecryptComment(tCtx, acct, &activity.Activity{}, ""); res.Failed() || res.Value != "" {
		t.Fatalf("nothing to decrypt but got %+v", res)
	}
}
