// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"strings"

	"github.com/tonwallet/walletcore/wallet"
	"github.com/xssnick/tonutils-go/address"
)

var domainSuffixes = []string{".ton", ".t.me"}

// parseAddress parses a user-friendly or raw address.
func parseAddress(s string) (*address.Address, error) {
	if strings.Contains(s, ":") {
		return address.ParseRawAddr(s)
	}
	return address.ParseAddr(s)
}

func isValidAddress(s string) bool {
	_, err := parseAddress(s)
	return err == nil
}

func isDomain(s string) bool {
	s = strings.ToLower(s)
	for _, suffix := range domainSuffixes {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return true
		}
	}
	return false
}

// formatAddress renders an address in the user-friendly form for the network.
func formatAddress(addr *address.Address, bounceable bool, net wallet.Network) string {
	return addr.Bounce(bounceable).Testnet(net == wallet.Testnet).String()
}

// toBase64Address re-renders an address. Unparseable addresses are returned
// unchanged.
func toBase64Address(s string, bounceable bool, net wallet.Network) string {
	addr, err := parseAddress(s)
	if err != nil {
		return s
	}
	return formatAddress(addr, bounceable, net)
}

// NormalizeAddress renders the address bounceable, which is the form used to
// compare addresses.
func (d *Driver) NormalizeAddress(net wallet.Network, s string) string {
	return toBase64Address(s, true, net)
}

// rawAddress is the workchain:hex form used by the indexer in address books.
func rawAddress(s string) string {
	addr, err := parseAddress(s)
	if err != nil {
		return s
	}
	return addr.StringRaw()
}
