// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package wallet

import (
	"fmt"
	"strings"
)

// Network flags passed to chain drivers to signify which network to use.
// Accounts are scoped to a single network.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// Networks lists every supported network.
var Networks = []Network{Mainnet, Testnet}

// String returns the string representation of a Network.
func (n Network) String() string {
	return string(n)
}

// NetFromString returns the Network for the given network name.
func NetFromString(net string) (Network, error) {
	switch strings.ToLower(net) {
	case "mainnet":
		return Mainnet, nil
	case "testnet":
		return Testnet, nil
	}
	return "", fmt.Errorf("unknown network %s", net)
}

// Chain identifies a supported blockchain. Every account owns at most one
// wallet per Chain.
type Chain string

const (
	ChainTON  Chain = "ton"
	ChainTRON Chain = "tron"
)

// String returns the string representation of a Chain.
func (c Chain) String() string {
	return string(c)
}

// ChainFromString returns the Chain for the given chain name.
func ChainFromString(s string) (Chain, error) {
	switch c := Chain(strings.ToLower(s)); c {
	case ChainTON, ChainTRON:
		return c, nil
	}
	return "", fmt.Errorf("unknown chain %s", s)
}
