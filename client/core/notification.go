// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package core

import (
	"github.com/tonwallet/walletcore/client/activity"
	"github.com/tonwallet/walletcore/client/backend"
	"github.com/tonwallet/walletcore/wallet"
)

// Update types.
const (
	UpdateNewLocalActivities = "newLocalActivities"
	UpdateNewActivities      = "newActivities"
	UpdateOpenURL            = "openUrl"
	UpdateStaking            = "updateStaking"
	UpdateTokens             = "updateTokens"
	UpdateAccount            = "updateAccount"
)

// Update is a state change pushed to the UI.
type Update interface {
	// Type is a string ID unique to the concrete type.
	Type() string
}

// Updater receives the updates of a Core. Updates are delivered one at a
// time, in the order they were produced.
type Updater interface {
	Update(Update)
}

// UpdaterFunc adapts a function to the Updater interface.
type UpdaterFunc func(Update)

// Update calls f.
func (f UpdaterFunc) Update(u Update) {
	f(u)
}

// NewLocalActivitiesUpdate carries local activities that were just created or
// changed. A local activity is replaced as a whole by a later update with the
// same id.
type NewLocalActivitiesUpdate struct {
	AccountID  string               `json:"accountId"`
	Activities []*activity.Activity `json:"activities"`
}

// Type is UpdateNewLocalActivities.
func (*NewLocalActivitiesUpdate) Type() string { return UpdateNewLocalActivities }

// NewActivitiesUpdate carries activities fetched from the chains or the
// backend.
type NewActivitiesUpdate struct {
	AccountID string       `json:"accountId"`
	Chain     wallet.Chain `json:"chain,omitempty"`
	// Activities are sorted newest first.
	Activities []*activity.Activity `json:"activities"`
	// ReplacedLocalIDs maps the ids of local activities to the ids of the
	// activities that superseded them.
	ReplacedLocalIDs map[string]string `json:"replacedLocalIds,omitempty"`
}

// Type is UpdateNewActivities.
func (*NewActivitiesUpdate) Type() string { return UpdateNewActivities }

// OpenURLUpdate asks the UI to open a URL.
type OpenURLUpdate struct {
	URL        string `json:"url"`
	IsExternal bool   `json:"isExternal"`
}

// Type is UpdateOpenURL.
func (*OpenURLUpdate) Type() string { return UpdateOpenURL }

// StakingCommonUpdate carries refreshed staking data.
type StakingCommonUpdate struct {
	Common *backend.StakingCommon `json:"common"`
}

// Type is UpdateStaking.
func (*StakingCommonUpdate) Type() string { return UpdateStaking }

// TokensUpdate carries the tokens to show for an account, sent on the first
// login of the process.
type TokensUpdate struct {
	AccountID string   `json:"accountId"`
	Slugs     []string `json:"slugs"`
}

// Type is UpdateTokens.
func (*TokensUpdate) Type() string { return UpdateTokens }

// AccountUpdate tells that a stored account changed.
type AccountUpdate struct {
	AccountID string `json:"accountId"`
	// Chain is the chain whose wallet changed, if any.
	Chain wallet.Chain `json:"chain,omitempty"`
	Title string       `json:"title,omitempty"`
}

// Type is UpdateAccount.
func (*AccountUpdate) Type() string { return UpdateAccount }

// notify sends an update to the Updater. Deliveries are serialized so that
// updates arrive in the order they were sent.
func (c *Core) notify(u Update) {
	c.noteMtx.Lock()
	defer c.noteMtx.Unlock()
	c.log.Tracef("Update %s", u.Type())
	c.onUpdate.Update(u)
}
