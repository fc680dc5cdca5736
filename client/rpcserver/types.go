// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package rpcserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tonwallet/walletcore/client/core"
	"github.com/tonwallet/walletcore/wallet"
)

// Error codes of API responses.
const (
	// ErrParse is a request with params that can't be parsed.
	ErrParse = iota + 1
	// ErrUnknownRoute is a request for a route that doesn't exist.
	ErrUnknownRoute
	// ErrInternal is an unexpected failure.
	ErrInternal
	// ErrFailed is an expected failure. The message is the
	// wallet.ErrorKind, e.g. InsufficientBalance.
	ErrFailed
)

// errArgs is wrapped when the params of a route can't be parsed.
var errArgs = errors.New("unable to parse arguments")

// Request is an API request.
type Request struct {
	ID     uint64          `json:"id"`
	Route  string          `json:"route"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the response to a Request with the same ID. Only one of Result
// and Error is set.
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is the error of a Response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Notification is a Core update sent to websocket clients. The route is the
// update type.
type Notification struct {
	Route   string          `json:"route"`
	Payload json.RawMessage `json:"payload"`
}

// failure is the error of a failed wallet.Result.
type failure wallet.ErrorKind

func (f failure) Error() string {
	return string(f)
}

// result turns a failed Result into a failure error.
func result[T any](r wallet.Result[T], err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if r.Failed() {
		return nil, failure(r.Err)
	}
	return r.Value, nil
}

func rpcError(err error) *Error {
	var f failure
	if errors.As(err, &f) {
		return &Error{Code: ErrFailed, Message: string(f)}
	}
	if errors.Is(err, errArgs) {
		return &Error{Code: ErrParse, Message: err.Error()}
	}
	return &Error{Code: ErrInternal, Message: core.UnwrapErr(err).Error()}
}

func parseParams(params json.RawMessage, thing any) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: no params", errArgs)
	}
	if err := json.Unmarshal(params, thing); err != nil {
		return fmt.Errorf("%w: %v", errArgs, err)
	}
	return nil
}

// accountParams are the params of routes that act on an account.
type accountParams struct {
	AccountID string                  `json:"accountId"`
	Newest    core.ActivityTimestamps `json:"newest,omitempty"`
}

type removeAccountParams struct {
	AccountID     string                  `json:"accountId"`
	NextAccountID string                  `json:"nextAccountId,omitempty"`
	Newest        core.ActivityTimestamps `json:"newest,omitempty"`
}

type renameParams struct {
	AccountID string `json:"accountId"`
	Title     string `json:"title"`
}

type generateParams struct {
	IsBip39 bool `json:"isBip39"`
}

type importMnemonicParams struct {
	Network  wallet.Network `json:"network"`
	Words    []string       `json:"words"`
	Password string         `json:"password"`
	Version  string         `json:"version,omitempty"`
}

type importViewParams struct {
	Network   wallet.Network          `json:"network"`
	Addresses map[wallet.Chain]string `json:"addresses"`
}

type pastActivitiesParams struct {
	AccountID   string `json:"accountId"`
	Limit       int    `json:"limit"`
	TokenSlug   string `json:"tokenSlug,omitempty"`
	ToTimestamp int64  `json:"toTimestamp,omitempty"`
}

type draftParams struct {
	Chain wallet.Chain `json:"chain"`
	core.DraftRequest
}

type transferParams struct {
	Chain wallet.Chain `json:"chain"`
	core.TransferRequest
}

type swapsParams struct {
	AccountID string   `json:"accountId"`
	IDs       []string `json:"ids"`
}
