// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tonwallet/walletcore/wallet"
)

// routes
const (
	accountsRoute          = "accounts"
	activateAccountRoute   = "activateaccount"
	deactivateAllRoute     = "deactivateall"
	removeAccountRoute     = "removeaccount"
	renameAccountRoute     = "renameaccount"
	generateMnemonicRoute  = "generatemnemonic"
	importMnemonicRoute    = "importmnemonic"
	importViewAccountRoute = "importviewaccount"
	pastActivitiesRoute    = "pastactivities"
	checkDraftRoute        = "checkdraft"
	submitTransferRoute    = "submittransfer"
	swapsRoute             = "swaps"
	stakingCommonRoute     = "stakingcommon"
)

type routeHandler func(*RPCServer, context.Context, json.RawMessage) (any, error)

// routes maps routes to a handler function.
var routes = map[string]routeHandler{
	accountsRoute:          handleAccounts,
	activateAccountRoute:   handleActivateAccount,
	deactivateAllRoute:     handleDeactivateAll,
	removeAccountRoute:     handleRemoveAccount,
	renameAccountRoute:     handleRenameAccount,
	generateMnemonicRoute:  handleGenerateMnemonic,
	importMnemonicRoute:    handleImportMnemonic,
	importViewAccountRoute: handleImportViewAccount,
	pastActivitiesRoute:    handlePastActivities,
	checkDraftRoute:        handleCheckDraft,
	submitTransferRoute:    handleSubmitTransfer,
	swapsRoute:             handleSwaps,
	stakingCommonRoute:     handleStakingCommon,
}

// accountSummary is an account without its secret.
type accountSummary struct {
	ID      string                  `json:"id"`
	Type    wallet.AccountType      `json:"type"`
	Title   string                  `json:"title,omitempty"`
	ByChain map[wallet.Chain]string `json:"byChain"`
	Current bool                    `json:"current,omitempty"`
}

func handleAccounts(s *RPCServer, _ context.Context, _ json.RawMessage) (any, error) {
	accts, err := s.core.Accounts()
	if err != nil {
		return nil, err
	}
	current := s.core.CurrentAccountID()
	sums := make([]*accountSummary, 0, len(accts))
	for _, a := range accts {
		sum := &accountSummary{
			ID:      a.ID,
			Type:    a.Type,
			Title:   a.Title,
			ByChain: make(map[wallet.Chain]string, len(a.ByChain)),
			Current: a.ID == current,
		}
		for ch, w := range a.ByChain {
			sum.ByChain[ch] = w.Address
		}
		sums = append(sums, sum)
	}
	return sums, nil
}

func handleActivateAccount(s *RPCServer, _ context.Context, params json.RawMessage) (any, error) {
	var p accountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.core.ActivateAccount(p.AccountID, p.Newest)
}

func handleDeactivateAll(s *RPCServer, _ context.Context, _ json.RawMessage) (any, error) {
	return nil, s.core.DeactivateAllAccounts()
}

func handleRemoveAccount(s *RPCServer, _ context.Context, params json.RawMessage) (any, error) {
	var p removeAccountParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.core.RemoveAccount(p.AccountID, p.NextAccountID, p.Newest)
}

func handleRenameAccount(s *RPCServer, _ context.Context, params json.RawMessage) (any, error) {
	var p renameParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	return nil, s.core.RenameAccount(p.AccountID, p.Title)
}

func handleGenerateMnemonic(s *RPCServer, _ context.Context, params json.RawMessage) (any, error) {
	var p generateParams
	if len(params) > 0 {
		if err := parseParams(params, &p); err != nil {
			return nil, err
		}
	}
	return s.core.GenerateMnemonic(p.IsBip39)
}

func handleImportMnemonic(s *RPCServer, ctx context.Context, params json.RawMessage) (any, error) {
	var p importMnemonicParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	net, err := wallet.NetFromString(string(p.Network))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errArgs, err)
	}
	return result(s.core.ImportMnemonic(ctx, net, p.Words, p.Password, p.Version))
}

func handleImportViewAccount(s *RPCServer, ctx context.Context, params json.RawMessage) (any, error) {
	var p importViewParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	net, err := wallet.NetFromString(string(p.Network))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errArgs, err)
	}
	return result(s.core.ImportViewAccount(ctx, net, p.Addresses))
}

func handlePastActivities(s *RPCServer, ctx context.Context, params json.RawMessage) (any, error) {
	var p pastActivitiesParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", errArgs)
	}
	return s.core.FetchPastActivities(ctx, p.AccountID, p.Limit, p.TokenSlug, p.ToTimestamp)
}

func handleCheckDraft(s *RPCServer, ctx context.Context, params json.RawMessage) (any, error) {
	var p draftParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	return result(s.core.CheckTransactionDraft(ctx, p.Chain, &p.DraftRequest))
}

func handleSubmitTransfer(s *RPCServer, ctx context.Context, params json.RawMessage) (any, error) {
	var p transferParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	return result(s.core.SubmitTransfer(ctx, p.Chain, &p.TransferRequest))
}

func handleSwaps(s *RPCServer, ctx context.Context, params json.RawMessage) (any, error) {
	var p swapsParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	return s.core.FetchSwaps(ctx, p.AccountID, p.IDs)
}

func handleStakingCommon(s *RPCServer, _ context.Context, _ json.RawMessage) (any, error) {
	return s.core.StakingCommon(), nil
}
