// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package activity

import (
	"strings"

	"github.com/tonwallet/walletcore/wallet"
)

// Native token slugs and symbols.
const (
	ToncoinSlug   = "toncoin"
	ToncoinSymbol = "TON"
	TrxSlug       = "trx"
	TrxSymbol     = "TRX"
	// ToncoinDecimals is the number of decimal places of Toncoin.
	ToncoinDecimals = 9
)

// Well-known token slugs and addresses.
const (
	TonUsdtSlug        = "ton-eqcxe6mutq"
	TonUsdtAddress     = "EQCxE6mUtQJKFnGfaROTKOt1lZbDiiX1kCixRv7Nw2Id_sDs"
	TronUsdtSlug       = "tron-tr7nhqjekq"
	TronUsdtAddress    = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	tokenSlugAddrChars = 10
)

// cexSwapSlugs are the tokens that can take part in a cross-chain swap.
var cexSwapSlugs = map[string]bool{
	ToncoinSlug:  true,
	TonUsdtSlug:  true,
	TrxSlug:      true,
	TronUsdtSlug: true,
}

var knownTokenSlugs = map[string]string{
	TonUsdtAddress:  TonUsdtSlug,
	TronUsdtAddress: TronUsdtSlug,
}

// NativeSlug is the slug of the token that pays fees on the chain.
func NativeSlug(chain wallet.Chain) string {
	switch chain {
	case wallet.ChainTRON:
		return TrxSlug
	default:
		return ToncoinSlug
	}
}

// BuildTokenSlug builds the slug of a token from its address. The slug keeps
// the first ten alphanumeric characters of the address, lowercased.
func BuildTokenSlug(chain wallet.Chain, tokenAddress string) string {
	var b strings.Builder
	b.WriteString(string(chain))
	b.WriteByte('-')
	n := 0
	for _, r := range tokenAddress {
		if n == tokenSlugAddrChars {
			break
		}
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
			n++
		}
	}
	return strings.ToLower(b.String())
}

// ChainBySlug finds the chain a token slug belongs to.
func ChainBySlug(slug string) (wallet.Chain, bool) {
	switch slug {
	case ToncoinSlug:
		return wallet.ChainTON, true
	case TrxSlug:
		return wallet.ChainTRON, true
	}
	prefix, _, found := strings.Cut(slug, "-")
	if !found {
		return "", false
	}
	chain, err := wallet.ChainFromString(prefix)
	if err != nil {
		return "", false
	}
	return chain, true
}

// SupportsCexSwap checks whether the token can be swapped cross-chain.
func SupportsCexSwap(slug string) bool {
	return cexSwapSlugs[slug]
}

// CanHaveCexSwap checks whether a page of activities, optionally scoped to a
// token, might contain legs of a cross-chain swap.
func CanHaveCexSwap(slug string, activities []*Activity) bool {
	if slug != "" {
		return SupportsCexSwap(slug)
	}
	for _, a := range activities {
		for _, s := range a.TokenSlugs() {
			if SupportsCexSwap(s) {
				return true
			}
		}
	}
	return false
}

// SwapAsset is how the swap backend refers to a token: the native symbol or
// the token address.
func SwapAsset(slug string) string {
	switch slug {
	case ToncoinSlug:
		return ToncoinSymbol
	case TrxSlug:
		return TrxSymbol
	}
	for addr, s := range knownTokenSlugs {
		if s == slug {
			return addr
		}
	}
	return slug
}
