// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/encrypt"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Fee estimates, in nanotons. Fees of jetton transfers are the attached
// amount, most of which returns as excess.
const (
	nativeTransferFee     = 5_000_000
	nativeTransferRealFee = 3_000_000
	tokenTransferAmount   = 50_000_000
	tokenTransferRealFee  = 20_000_000
	tokenForwardAmount    = 1
	// swapGasPerMessage caps the gas attached to each message of a swap.
	swapGasPerMessage = 1_000_000_000
)

// checkPassword checks the password of accounts with a secret. A view
// account can't sign anything.
func checkPassword(acct *chain.Account, password string) (wallet.ErrorKind, error) {
	switch {
	case acct.Type == wallet.AccountView:
		return wallet.ErrNotSupported, nil
	case !acct.Type.HasSecret():
		return "", nil
	}
	if _, err := encrypt.OpenSecret(acct.Secret, password); err != nil {
		if errors.Is(err, encrypt.ErrIncorrectPassword) {
			return wallet.ErrInvalidPassword, nil
		}
		return "", fmt.Errorf("error opening secret of %s: %w", acct.ID, err)
	}
	return "", nil
}

// transferPlan is a checked transfer, ready to sign.
type transferPlan struct {
	info         *walletInformation
	to           *address.Address
	toAddress    string
	normalized   string
	title        string
	isToNew      bool
	slug         string
	amount       *big.Int
	payload      *cell.Cell
	stateInit    string
	jettonWallet *address.Address
	fee          *big.Int
	realFee      *big.Int
	// nativeShort is set when the native balance doesn't cover the fee.
	nativeShort bool
	comment     string
	encrypted   string
}

type transferRequest struct {
	toAddress    string
	amount       *big.Int
	payload      *chain.Payload
	stateInit    string
	tokenAddress string
	// encrypt has the signer encrypt a comment that should be encrypted.
	// Drafts estimate with the plain comment.
	encrypt bool
}

func (d *Driver) planTransfer(ctx context.Context, acct *chain.Account, req *transferRequest) (wallet.Result[*transferPlan], error) {
	api, err := d.api(acct.Network)
	if err != nil {
		return wallet.Result[*transferPlan]{}, err
	}
	plan := &transferPlan{
		toAddress: req.toAddress,
		amount:    new(big.Int),
		stateInit: req.stateInit,
	}
	if req.amount != nil {
		if req.amount.Sign() < 0 {
			return wallet.Fail[*transferPlan](wallet.ErrInvalidAmount), nil
		}
		plan.amount.Set(req.amount)
	}
	if isDomain(req.toAddress) {
		resolved, err := api.resolveDomain(ctx, req.toAddress)
		if err != nil {
			return wallet.Result[*transferPlan]{}, err
		}
		if resolved == "" {
			return wallet.Fail[*transferPlan](wallet.ErrDomainNotResolved), nil
		}
		plan.title, plan.toAddress = req.toAddress, resolved
	}
	if plan.to, err = parseAddress(plan.toAddress); err != nil {
		return wallet.Fail[*transferPlan](wallet.ErrInvalidAddress), nil
	}
	plan.normalized = formatAddress(plan.to, true, acct.Network)

	if plan.info, err = api.walletInformation(ctx, acct.Wallet.Address); err != nil {
		return wallet.Result[*transferPlan]{}, err
	}
	toInfo, err := api.walletInformation(ctx, plan.toAddress)
	if err != nil {
		return wallet.Result[*transferPlan]{}, err
	}
	plan.isToNew = toInfo.Status != statusActive

	if kind, err := d.planPayload(ctx, acct, req, plan); err != nil || kind != "" {
		return wallet.Fail[*transferPlan](kind), err
	}

	balance := plan.info.balance()
	if req.tokenAddress == "" {
		plan.slug = activity.ToncoinSlug
		plan.fee = big.NewInt(nativeTransferFee)
		plan.realFee = big.NewInt(nativeTransferRealFee)
		if new(big.Int).Add(plan.amount, plan.fee).Cmp(balance) > 0 {
			return wallet.Fail[*transferPlan](wallet.ErrInsufficientBalance), nil
		}
		return wallet.Ok(plan), nil
	}

	token, err := parseAddress(req.tokenAddress)
	if err != nil {
		return wallet.Fail[*transferPlan](wallet.ErrInvalidAddress), nil
	}
	plan.slug = activity.BuildTokenSlug(wallet.ChainTON, formatAddress(token, true, wallet.Mainnet))
	jw, err := api.jettonWallet(ctx, acct.Wallet.Address, req.tokenAddress)
	if err != nil {
		return wallet.Result[*transferPlan]{}, err
	}
	if jw == nil || bigInt(jw.Balance).Cmp(plan.amount) < 0 {
		return wallet.Fail[*transferPlan](wallet.ErrInsufficientBalance), nil
	}
	if plan.jettonWallet, err = parseAddress(jw.Address); err != nil {
		return wallet.Result[*transferPlan]{}, fmt.Errorf("indexer returned bad jetton wallet %q: %w", jw.Address, err)
	}
	plan.fee = big.NewInt(tokenTransferAmount)
	plan.realFee = big.NewInt(tokenTransferRealFee)
	plan.nativeShort = balance.Cmp(plan.fee) < 0
	return wallet.Ok(plan), nil
}

func (d *Driver) planPayload(ctx context.Context, acct *chain.Account, req *transferRequest, plan *transferPlan) (wallet.ErrorKind, error) {
	p := req.payload
	if p != nil && p.Type == chain.PayloadComment && p.ShouldEncrypt && req.encrypt {
		boc, err := d.signer.EncryptComment(ctx, &CommentRequest{
			Network:      acct.Network,
			AccountType:  acct.Type,
			PublicKey:    acct.Wallet.PublicKey,
			Counterparty: plan.toAddress,
			Text:         p.Text,
		})
		if err != nil {
			return "", fmt.Errorf("error encrypting comment: %w", err)
		}
		if plan.payload, err = fromBoc(boc); err != nil {
			return "", fmt.Errorf("signer returned a bad comment payload: %w", err)
		}
		plan.encrypted = boc
		return "", nil
	}
	c, err := payloadCell(p)
	if err != nil {
		return wallet.ErrInvalidPayload, nil
	}
	plan.payload = c
	plan.comment = p.PlainComment()
	return "", nil
}

// messages builds the messages of a planned transfer, plus the diesel
// payment to a gasless relay, if any.
func (plan *transferPlan) messages(acct *chain.Account, diesel *big.Int, relay *address.Address) ([]*chain.Message, error) {
	if plan.jettonWallet == nil {
		to := plan.to
		if plan.isToNew {
			// Uninitialized wallets would bounce the funds back.
			to = to.Bounce(false)
		}
		return []*chain.Message{{
			ToAddress: formatAddress(to, to.IsBounceable(), acct.Network),
			Amount:    plan.amount,
			Payload:   toBoc(plan.payload),
			StateInit: plan.stateInit,
		}}, nil
	}
	owner, err := parseAddress(acct.Wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("account %s has a bad address: %w", acct.ID, err)
	}
	jettonWallet := formatAddress(plan.jettonWallet, true, acct.Network)
	msgs := []*chain.Message{{
		ToAddress: jettonWallet,
		Amount:    big.NewInt(tokenTransferAmount),
		Payload: toBoc(jettonTransferCell(newQueryID(), plan.amount, plan.to, owner,
			big.NewInt(tokenForwardAmount), plan.payload)),
		StateInit: plan.stateInit,
	}}
	if diesel != nil && relay != nil {
		msgs = append(msgs, &chain.Message{
			ToAddress: jettonWallet,
			Amount:    big.NewInt(tokenTransferAmount),
			Payload: toBoc(jettonTransferCell(newQueryID(), diesel, relay, relay,
				big.NewInt(tokenForwardAmount), nil)),
		})
	}
	return msgs, nil
}

// CheckTransactionDraft checks a transfer and estimates its fee.
func (d *Driver) CheckTransactionDraft(ctx context.Context, acct *chain.Account, opts *chain.DraftOptions) (wallet.Result[*chain.DraftResult], error) {
	res, err := d.planTransfer(ctx, acct, &transferRequest{
		toAddress:    opts.ToAddress,
		amount:       opts.Amount,
		payload:      opts.Payload,
		stateInit:    opts.StateInit,
		tokenAddress: opts.TokenAddress,
	})
	if err != nil || res.Failed() {
		return wallet.FailAs[*chain.DraftResult](res), err
	}
	plan := res.Value
	draft := &chain.DraftResult{
		Fee:             plan.fee,
		RealFee:         plan.realFee,
		AddressName:     plan.title,
		ResolvedAddress: plan.toAddress,
		IsToAddressNew:  plan.isToNew,
		IsBounceable:    plan.to.IsBounceable(),
	}
	if !plan.nativeShort {
		return wallet.Ok(draft), nil
	}
	if !opts.AllowGasless {
		return wallet.Fail[*chain.DraftResult](wallet.ErrInsufficientBalance), nil
	}
	diesel, err := d.FetchEstimateDiesel(ctx, acct, opts.TokenAddress)
	if err != nil {
		return wallet.Result[*chain.DraftResult]{}, err
	}
	if diesel.Status != chain.DieselAvailable && diesel.Status != chain.DieselStarsFee {
		return wallet.Fail[*chain.DraftResult](wallet.ErrInsufficientBalance), nil
	}
	draft.Diesel = diesel
	return wallet.Ok(draft), nil
}

// FetchEstimateDiesel asks the gasless relay what a gasless transfer of the
// token would cost.
func (d *Driver) FetchEstimateDiesel(ctx context.Context, acct *chain.Account, tokenAddress string) (*chain.DieselEstimate, error) {
	if d.relay == nil || acct.Type == wallet.AccountLedger {
		return &chain.DieselEstimate{Status: chain.DieselNotAvailable}, nil
	}
	resp, err := d.relay.estimate(ctx, acct.Network, acct.Wallet, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("error estimating diesel: %w", err)
	}
	return resp.estimate(), nil
}

// sign has the signer sign the messages.
func (d *Driver) sign(ctx context.Context, acct *chain.Account, info *walletInformation, msgs []*chain.Message, isGasless bool) (*SignedMessage, error) {
	signed, err := d.signer.SignTransfer(ctx, &SignRequest{
		Network:     acct.Network,
		AccountType: acct.Type,
		Address:     acct.Wallet.Address,
		PublicKey:   acct.Wallet.PublicKey,
		Version:     acct.Wallet.Version,
		Seqno:       info.Seqno,
		Messages:    msgs,
		IsGasless:   isGasless,
	})
	if err != nil {
		return nil, fmt.Errorf("error signing: %w", err)
	}
	return signed, nil
}

func transferResult(acct *chain.Account, plan *transferPlan, signed *SignedMessage, withW5Gasless bool) *chain.TransferResult {
	return &chain.TransferResult{
		TxID:              signed.MsgHashNormalized,
		MsgHashForCexSwap: signed.MsgHash,
		WithW5Gasless:     withW5Gasless,
		LocalActivity: &activity.LocalTransactionParams{
			TxID:                signed.MsgHashNormalized,
			Amount:              plan.amount,
			FromAddress:         acct.Wallet.Address,
			ToAddress:           plan.toAddress,
			NormalizedAddress:   plan.normalized,
			Comment:             plan.comment,
			EncryptedComment:    plan.encrypted,
			Fee:                 plan.realFee,
			Slug:                plan.slug,
			ExternalMsgHashNorm: signed.MsgHashNormalized,
		},
	}
}

// SubmitGasfullTransfer signs and sends a transfer that pays its own fee.
func (d *Driver) SubmitGasfullTransfer(ctx context.Context, acct *chain.Account, opts *chain.TransferOptions) (wallet.Result[*chain.TransferResult], error) {
	if kind, err := checkPassword(acct, opts.Password); err != nil || kind != "" {
		return wallet.Fail[*chain.TransferResult](kind), err
	}
	res, err := d.planTransfer(ctx, acct, &transferRequest{
		toAddress:    opts.ToAddress,
		amount:       opts.Amount,
		payload:      opts.Payload,
		stateInit:    opts.StateInit,
		tokenAddress: opts.TokenAddress,
		encrypt:      true,
	})
	if err != nil || res.Failed() {
		return wallet.FailAs[*chain.TransferResult](res), err
	}
	plan := res.Value
	if plan.nativeShort && !opts.NoFeeCheck {
		return wallet.Fail[*chain.TransferResult](wallet.ErrInsufficientBalance), nil
	}
	msgs, err := plan.messages(acct, nil, nil)
	if err != nil {
		return wallet.Result[*chain.TransferResult]{}, err
	}
	signed, err := d.sign(ctx, acct, plan.info, msgs, false)
	if err != nil {
		return wallet.Result[*chain.TransferResult]{}, err
	}
	api, _ := d.api(acct.Network)
	if err := api.sendBoc(ctx, signed.BOC); err != nil {
		return wallet.Result[*chain.TransferResult]{}, fmt.Errorf("error sending transfer: %w", err)
	}
	d.log.Debugf("Sent transfer %s from %s", signed.MsgHashNormalized, acct.ID)
	return wallet.Ok(transferResult(acct, plan, signed, false)), nil
}

// SubmitGaslessTransfer signs a token transfer and hands it to the gasless
// relay, which pays the fee for the diesel.
func (d *Driver) SubmitGaslessTransfer(ctx context.Context, acct *chain.Account, opts *chain.GaslessTransferOptions) (wallet.Result[*chain.TransferResult], error) {
	if opts.TokenAddress == "" {
		return wallet.Result[*chain.TransferResult]{}, errors.New("gasless transfer without a token")
	}
	if d.relay == nil {
		return wallet.Fail[*chain.TransferResult](wallet.ErrNotSupported), nil
	}
	if kind, err := checkPassword(acct, opts.Password); err != nil || kind != "" {
		return wallet.Fail[*chain.TransferResult](kind), err
	}
	res, err := d.planTransfer(ctx, acct, &transferRequest{
		toAddress:    opts.ToAddress,
		amount:       opts.Amount,
		payload:      opts.Payload,
		stateInit:    opts.StateInit,
		tokenAddress: opts.TokenAddress,
		encrypt:      true,
	})
	if err != nil || res.Failed() {
		return wallet.FailAs[*chain.TransferResult](res), err
	}
	plan := res.Value
	estimate, err := d.relay.estimate(ctx, acct.Network, acct.Wallet, opts.TokenAddress)
	if err != nil {
		return wallet.Result[*chain.TransferResult]{}, fmt.Errorf("error estimating diesel: %w", err)
	}
	var diesel *big.Int
	var relayAddr *address.Address
	if !opts.IsGaslessWithStars {
		if relayAddr, err = parseAddress(estimate.RelayAddress); err != nil {
			return wallet.Result[*chain.TransferResult]{}, fmt.Errorf("relay returned a bad address %q: %w", estimate.RelayAddress, err)
		}
		diesel = opts.DieselAmount
		if diesel == nil {
			diesel = optBigInt(estimate.Amount)
		}
	}
	msgs, err := plan.messages(acct, diesel, relayAddr)
	if err != nil {
		return wallet.Result[*chain.TransferResult]{}, err
	}
	signed, err := d.sign(ctx, acct, plan.info, msgs, true)
	if err != nil {
		return wallet.Result[*chain.TransferResult]{}, err
	}
	if err := d.relay.send(ctx, acct.Network, signed.BOC, acct.Wallet.PublicKey, opts.IsGaslessWithStars); err != nil {
		return wallet.Result[*chain.TransferResult]{}, fmt.Errorf("error sending gasless transfer: %w", err)
	}
	d.log.Debugf("Sent gasless transfer %s from %s", signed.MsgHashNormalized, acct.ID)
	return wallet.Ok(transferResult(acct, plan, signed, acct.Wallet.Version == VersionW5)), nil
}
