// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/wallet"
)

const (
	actionTonTransfer       = "ton_transfer"
	actionJettonTransfer    = "jetton_transfer"
	actionCallContract      = "call_contract"
	actionContractDeploy    = "contract_deploy"
	actionStakeDeposit      = "stake_deposit"
	actionStakeWithdrawal   = "stake_withdrawal"
	actionStakeWithdrawReq  = "stake_withdrawal_request"
	actionJettonSwap        = "jetton_swap"
	actionJettonBurn        = "jetton_burn"
	actionJettonMint        = "jetton_mint"
	defaultJettonDecimals   = 9
	usdtDecimals            = 6
	swapNetworkFeeUnknown   = "0"
	swapFeeUnknown          = "0"
	actionSubIDSeparator    = "-"
	addressBookUserFriendly = "user_friendly"
)

type addressBookEntry map[string]any

type actionsResponse struct {
	Actions     []*action                   `json:"actions"`
	AddressBook map[string]addressBookEntry `json:"address_book"`
}

type action struct {
	TraceID               string          `json:"trace_id"`
	ActionID              string          `json:"action_id"`
	StartLT               string          `json:"start_lt"`
	StartUtc              int64           `json:"start_utc"`
	TraceExternalHashNorm string          `json:"trace_external_hash_norm"`
	Success               *bool           `json:"success"`
	Type                  string          `json:"type"`
	Details               json.RawMessage `json:"details"`
}

type transferDetails struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Value       string `json:"value"`
	Comment     string `json:"comment"`
	Encrypted   bool   `json:"encrypted"`
}

type jettonTransferDetails struct {
	Asset              string `json:"asset"`
	Sender             string `json:"sender"`
	Receiver           string `json:"receiver"`
	Amount             string `json:"amount"`
	Comment            string `json:"comment"`
	IsEncryptedComment bool   `json:"is_encrypted_comment"`
	QueryID            string `json:"query_id"`
}

type callContractDetails struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Value       string `json:"value"`
}

type stakeDetails struct {
	StakeHolder string `json:"stake_holder"`
	Pool        string `json:"pool"`
	Amount      string `json:"amount"`
}

type burnMintDetails struct {
	Owner  string `json:"owner"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type swapLeg struct {
	Amount string `json:"amount"`
}

type jettonSwapDetails struct {
	Dex                 string   `json:"dex"`
	Sender              string   `json:"sender"`
	AssetIn             string   `json:"asset_in"`
	AssetOut            string   `json:"asset_out"`
	DexIncomingTransfer *swapLeg `json:"dex_incoming_transfer"`
	DexOutgoingTransfer *swapLeg `json:"dex_outgoing_transfer"`
}

// actionParser turns indexer actions of one wallet into activities.
type actionParser struct {
	net         wallet.Network
	walletRaw   string
	addressBook map[string]addressBookEntry
	pending     bool
}

func newActionParser(net wallet.Network, walletAddress string, resp *actionsResponse, pending bool) *actionParser {
	return &actionParser{
		net:         net,
		walletRaw:   strings.ToUpper(rawAddress(walletAddress)),
		addressBook: resp.AddressBook,
		pending:     pending,
	}
}

func (p *actionParser) isOurs(raw string) bool {
	return strings.ToUpper(raw) == p.walletRaw
}

// friendly renders a raw address the way the indexer suggests, falling back
// to a non-bounceable rendering.
func (p *actionParser) friendly(raw string) string {
	if raw == "" {
		return ""
	}
	if entry, ok := p.addressBook[raw]; ok {
		if s, ok := entry[addressBookUserFriendly].(string); ok && s != "" {
			return s
		}
	}
	return toBase64Address(raw, false, p.net)
}

func bigInt(s string) *big.Int {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return b
}

func (p *actionParser) jettonSlug(rawAsset string) string {
	if rawAsset == "" {
		return activity.ToncoinSlug
	}
	return activity.BuildTokenSlug(wallet.ChainTON, toBase64Address(rawAsset, true, wallet.Mainnet))
}

func jettonDecimals(slug string) int32 {
	switch slug {
	case activity.ToncoinSlug:
		return activity.ToncoinDecimals
	case activity.TonUsdtSlug:
		return usdtDecimals
	}
	return defaultJettonDecimals
}

func toDecimalString(amount string, decimals int32) string {
	return decimal.NewFromBigInt(bigInt(amount), -decimals).String()
}

func (p *actionParser) base(a *action) *activity.Activity {
	status := activity.StatusCompleted
	switch {
	case p.pending:
		status = activity.StatusPending
	case a.Success != nil && !*a.Success:
		status = activity.StatusFailed
	}
	return &activity.Activity{
		ID:                  activity.BuildTxID(a.TraceID, a.StartLT+actionSubIDSeparator+a.ActionID, ""),
		Timestamp:           a.StartUtc * 1000,
		Status:              status,
		ExternalMsgHashNorm: a.TraceExternalHashNorm,
	}
}

func (p *actionParser) transaction(a *action, from, to string, amount *big.Int, slug string) *activity.Activity {
	act := p.base(a)
	act.Kind = activity.KindTransaction
	act.IsIncoming = !p.isOurs(from)
	act.FromAddress = p.friendly(from)
	act.ToAddress = p.friendly(to)
	counterparty := to
	if act.IsIncoming {
		counterparty = from
	}
	act.NormalizedAddress = toBase64Address(counterparty, true, p.net)
	act.Amount = amount
	act.Fee = new(big.Int)
	act.Slug = slug
	act.ShouldLoadDetails = !act.IsIncoming
	return act
}

// parse converts one action. Unsupported actions give nil.
func (p *actionParser) parse(a *action) *activity.Activity {
	switch a.Type {
	case actionTonTransfer:
		var d transferDetails
		if json.Unmarshal(a.Details, &d) != nil {
			return nil
		}
		act := p.transaction(a, d.Source, d.Destination, bigInt(d.Value), activity.ToncoinSlug)
		if d.Encrypted {
			act.EncryptedComment = d.Comment
		} else {
			act.Comment = d.Comment
		}
		return act
	case actionJettonTransfer:
		var d jettonTransferDetails
		if json.Unmarshal(a.Details, &d) != nil {
			return nil
		}
		act := p.transaction(a, d.Sender, d.Receiver, bigInt(d.Amount), p.jettonSlug(d.Asset))
		if d.IsEncryptedComment {
			act.EncryptedComment = d.Comment
		} else {
			act.Comment = d.Comment
		}
		if d.QueryID != "" && d.QueryID != "0" {
			act.Extra = &activity.Extra{QueryID: d.QueryID}
		}
		return act
	case actionCallContract, actionContractDeploy:
		var d callContractDetails
		if json.Unmarshal(a.Details, &d) != nil {
			return nil
		}
		act := p.transaction(a, d.Source, d.Destination, bigInt(d.Value), activity.ToncoinSlug)
		act.Type = activity.TxCallContract
		return act
	case actionStakeDeposit, actionStakeWithdrawal, actionStakeWithdrawReq:
		var d stakeDetails
		if json.Unmarshal(a.Details, &d) != nil {
			return nil
		}
		switch a.Type {
		case actionStakeDeposit:
			act := p.transaction(a, d.StakeHolder, d.Pool, bigInt(d.Amount), activity.ToncoinSlug)
			act.Type = activity.TxStake
			return act
		case actionStakeWithdrawal:
			act := p.transaction(a, d.Pool, d.StakeHolder, bigInt(d.Amount), activity.ToncoinSlug)
			act.Type = activity.TxUnstake
			return act
		default:
			act := p.transaction(a, d.StakeHolder, d.Pool, new(big.Int), activity.ToncoinSlug)
			act.Type = activity.TxUnstakeRequest
			return act
		}
	case actionJettonBurn, actionJettonMint:
		var d burnMintDetails
		if json.Unmarshal(a.Details, &d) != nil {
			return nil
		}
		slug := p.jettonSlug(d.Asset)
		if a.Type == actionJettonBurn {
			act := p.transaction(a, d.Owner, d.Asset, bigInt(d.Amount), slug)
			act.Type = activity.TxBurn
			return act
		}
		act := p.transaction(a, d.Asset, d.Owner, bigInt(d.Amount), slug)
		act.Type = activity.TxMint
		return act
	case actionJettonSwap:
		var d jettonSwapDetails
		if json.Unmarshal(a.Details, &d) != nil || d.DexIncomingTransfer == nil || d.DexOutgoingTransfer == nil {
			return nil
		}
		act := p.base(a)
		act.Kind = activity.KindSwap
		act.From = p.jettonSlug(d.AssetIn)
		act.To = p.jettonSlug(d.AssetOut)
		act.FromAmount = toDecimalString(d.DexIncomingTransfer.Amount, jettonDecimals(act.From))
		act.ToAmount = toDecimalString(d.DexOutgoingTransfer.Amount, jettonDecimals(act.To))
		act.FromAddress = p.friendly(d.Sender)
		act.NetworkFee = swapNetworkFeeUnknown
		act.SwapFee = swapFeeUnknown
		act.Hashes = []string{a.TraceID}
		act.ShouldLoadDetails = true
		return act
	}
	return nil
}

// parseAll converts the actions, sorted newest first and unique by id.
func (p *actionParser) parseAll(actions []*action) []*activity.Activity {
	activities := make([]*activity.Activity, 0, len(actions))
	for _, a := range actions {
		if act := p.parse(a); act != nil {
			activities = append(activities, act)
		}
	}
	return activity.MergeSorted(activity.Sort(activities))
}
