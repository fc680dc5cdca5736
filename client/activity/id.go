// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package activity

import (
	"strconv"
	"strings"
)

const (
	localIDType      = "local"
	backendSwapIDPfx = "swap:"
)

// TxID is a parsed activity id. The Hash groups activities of the same trace.
type TxID struct {
	Hash  string
	SubID string
	Type  string
}

// BuildTxID builds an activity id in the form hash[:subID][:type].
func BuildTxID(hash, subID, typ string) string {
	if subID == "" && typ == "" {
		return hash
	}
	if typ == "" {
		return hash + ":" + subID
	}
	return hash + ":" + subID + ":" + typ
}

// ParseTxID splits an id built with BuildTxID.
func ParseTxID(id string) TxID {
	hash, rest, _ := strings.Cut(id, ":")
	subID, typ, _ := strings.Cut(rest, ":")
	return TxID{Hash: hash, SubID: subID, Type: typ}
}

// BuildLocalTxID builds the id of a local activity. The hash is the one that
// the confirmed activity will share.
func BuildLocalTxID(hash string, subID int) string {
	return BuildTxID(hash, strconv.Itoa(subID), localIDType)
}

// IsLocalTxID checks whether the id belongs to a local activity.
func IsLocalTxID(id string) bool {
	return ParseTxID(id).Type == localIDType
}

// BuildBackendSwapID builds the activity id of a swap known to the backend.
func BuildBackendSwapID(backendID string) string {
	return backendSwapIDPfx + backendID
}

// IsBackendSwapID checks whether the id was built with BuildBackendSwapID.
func IsBackendSwapID(id string) bool {
	return strings.HasPrefix(id, backendSwapIDPfx)
}

// ParseBackendSwapID returns the backend's swap id.
func ParseBackendSwapID(id string) string {
	return strings.TrimPrefix(id, backendSwapIDPfx)
}

// BuildLocalSwapID builds the id of the local activity of a swap that the
// backend knows by backendID.
func BuildLocalSwapID(backendID string) string {
	return BuildTxID(backendID, "", localIDType)
}
