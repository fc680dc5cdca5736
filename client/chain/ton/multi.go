// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
)

// maxMessages is the most messages a wallet can send at once.
const maxMessages = 4

func totalAmount(msgs []*chain.Message) *big.Int {
	total := new(big.Int)
	for _, m := range msgs {
		if m.Amount != nil {
			total.Add(total, m.Amount)
		}
	}
	return total
}

// ValidateDexSwapTransfers checks that the transfers built by the swap
// backend go to valid addresses and don't spend more Toncoin than the swap
// needs.
func (d *Driver) ValidateDexSwapTransfers(_ context.Context, acct *chain.Account, req *chain.DexSwapRequest, msgs []*chain.Message) error {
	if len(msgs) == 0 || len(msgs) > maxMessages {
		return fmt.Errorf("swap has %d transfers", len(msgs))
	}
	for _, m := range msgs {
		if !isValidAddress(m.ToAddress) {
			return fmt.Errorf("swap transfer to invalid address %q", m.ToAddress)
		}
		if m.Amount == nil || m.Amount.Sign() < 0 {
			return errors.New("swap transfer with invalid amount")
		}
		if m.Payload != "" {
			if _, err := fromBoc(m.Payload); err != nil {
				return fmt.Errorf("swap transfer with invalid payload: %w", err)
			}
		}
	}
	maxTotal := new(big.Int).Mul(big.NewInt(swapGasPerMessage), big.NewInt(int64(len(msgs))))
	if req.From == activity.ToncoinSymbol || req.From == activity.ToncoinSlug {
		amount, err := decimal.NewFromString(req.FromAmount)
		if err != nil {
			return fmt.Errorf("invalid swap amount %q: %w", req.FromAmount, err)
		}
		maxTotal.Add(maxTotal, amount.Shift(activity.ToncoinDecimals).BigInt())
	}
	if total := totalAmount(msgs); total.Cmp(maxTotal) > 0 {
		return fmt.Errorf("swap transfers of %s %s spend %s nanotons, more than %s", req.FromAmount, req.From, total, maxTotal)
	}
	return nil
}

// CheckMultiTransactionDraft checks that the balance covers the messages and
// their fees.
func (d *Driver) CheckMultiTransactionDraft(ctx context.Context, acct *chain.Account, msgs []*chain.Message, tryDiesel bool) (wallet.Result[*chain.DraftResult], error) {
	api, err := d.api(acct.Network)
	if err != nil {
		return wallet.Result[*chain.DraftResult]{}, err
	}
	for _, m := range msgs {
		if !isValidAddress(m.ToAddress) {
			return wallet.Fail[*chain.DraftResult](wallet.ErrInvalidAddress), nil
		}
	}
	info, err := api.walletInformation(ctx, acct.Wallet.Address)
	if err != nil {
		return wallet.Result[*chain.DraftResult]{}, err
	}
	n := int64(len(msgs))
	draft := &chain.DraftResult{
		Fee:     big.NewInt(nativeTransferFee * n),
		RealFee: big.NewInt(nativeTransferRealFee * n),
	}
	need := new(big.Int).Add(totalAmount(msgs), draft.Fee)
	if need.Cmp(info.balance()) <= 0 {
		return wallet.Ok(draft), nil
	}
	if tryDiesel && d.relay != nil && acct.Wallet.Version == VersionW5 {
		// The relay covers what the balance lacks.
		draft.Diesel = &chain.DieselEstimate{
			Status:       chain.DieselAvailable,
			NativeAmount: new(big.Int).Sub(need, info.balance()),
			RemainingFee: new(big.Int),
			RealFee:      draft.RealFee,
		}
		return wallet.Ok(draft), nil
	}
	return wallet.Fail[*chain.DraftResult](wallet.ErrInsufficientBalance), nil
}

// SubmitMultiTransfer signs and sends several messages at once.
func (d *Driver) SubmitMultiTransfer(ctx context.Context, acct *chain.Account, password string, msgs []*chain.Message, isGasless bool) (wallet.Result[*chain.MultiTransferResult], error) {
	res, err := d.submitMessages(ctx, acct, password, msgs, isGasless)
	if err != nil || res.Failed() {
		return wallet.FailAs[*chain.MultiTransferResult](res), err
	}
	return wallet.Ok(&chain.MultiTransferResult{
		MsgHash:           res.Value.MsgHash,
		MsgHashNormalized: res.Value.MsgHashNormalized,
		WithW5Gasless:     isGasless && acct.Wallet.Version == VersionW5,
	}), nil
}

func (d *Driver) submitMessages(ctx context.Context, acct *chain.Account, password string, msgs []*chain.Message, isGasless bool) (wallet.Result[*SignedMessage], error) {
	if len(msgs) == 0 || len(msgs) > maxMessages {
		return wallet.Result[*SignedMessage]{}, fmt.Errorf("can't send %d messages", len(msgs))
	}
	if kind, err := checkPassword(acct, password); err != nil || kind != "" {
		return wallet.Fail[*SignedMessage](kind), err
	}
	if isGasless && d.relay == nil {
		return wallet.Fail[*SignedMessage](wallet.ErrNotSupported), nil
	}
	api, err := d.api(acct.Network)
	if err != nil {
		return wallet.Result[*SignedMessage]{}, err
	}
	info, err := api.walletInformation(ctx, acct.Wallet.Address)
	if err != nil {
		return wallet.Result[*SignedMessage]{}, err
	}
	if !isGasless && totalAmount(msgs).Cmp(info.balance()) > 0 {
		return wallet.Fail[*SignedMessage](wallet.ErrInsufficientBalance), nil
	}
	signed, err := d.sign(ctx, acct, info, msgs, isGasless)
	if err != nil {
		return wallet.Result[*SignedMessage]{}, err
	}
	if isGasless {
		err = d.relay.send(ctx, acct.Network, signed.BOC, acct.Wallet.PublicKey, false)
	} else {
		err = api.sendBoc(ctx, signed.BOC)
	}
	if err != nil {
		return wallet.Result[*SignedMessage]{}, fmt.Errorf("error sending %d messages: %w", len(msgs), err)
	}
	d.log.Debugf("Sent %d messages in %s from %s", len(msgs), signed.MsgHashNormalized, acct.ID)
	return wallet.Ok(signed), nil
}
