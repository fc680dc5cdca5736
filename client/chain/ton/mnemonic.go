// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tyler-smith/go-bip39"
	tonwallet "github.com/xssnick/tonutils-go/ton/wallet"
	"golang.org/x/crypto/pbkdf2"
)

const (
	mnemonicWords = 24

	seedIterations    = 100000
	seedSalt          = "TON default seed"
	seedVersionSalt   = "TON seed version"
	passwordSeedSalt  = "TON fast seed version"
	passwordSeedIters = 1

	// Hardened SLIP-0010 path m/44'/607'/0' for keys of BIP39 mnemonics.
	bip39Purpose  = 44
	bip39CoinType = 607
	hardened      = 0x80000000

	// Wallet contract versions.
	VersionV3R2 = "v3R2"
	VersionV4R2 = "v4R2"
	VersionW5   = "W5"

	DefaultVersion = VersionW5
)

// Versions lists the supported wallet contract versions.
var Versions = []string{VersionV3R2, VersionV4R2, VersionW5}

// tonEntropy is the HMAC of the phrase that every TON seed derives from.
func tonEntropy(words []string) []byte {
	mac := hmac.New(sha512.New, []byte(strings.Join(words, " ")))
	return mac.Sum(nil)
}

func isBasicSeed(entropy []byte) bool {
	iters := max(1, seedIterations/256)
	seed := pbkdf2.Key(entropy, []byte(seedVersionSalt), iters, 64, sha512.New)
	return seed[0] == 0
}

func isPasswordSeed(entropy []byte) bool {
	seed := pbkdf2.Key(entropy, []byte(passwordSeedSalt), passwordSeedIters, 64, sha512.New)
	return seed[0] == 1
}

func normalizeWords(words []string) []string {
	norm := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			norm = append(norm, w)
		}
	}
	return norm
}

// ValidateMnemonic checks a TON mnemonic. TON mnemonics use the BIP39 word
// list, but not its checksum.
func (d *Driver) ValidateMnemonic(words []string) bool {
	return validateTonMnemonic(words)
}

func validateTonMnemonic(words []string) bool {
	words = normalizeWords(words)
	if len(words) != mnemonicWords {
		return false
	}
	for _, w := range words {
		if _, found := bip39.GetWordIndex(w); !found {
			return false
		}
	}
	entropy := tonEntropy(words)
	return isBasicSeed(entropy) && !isPasswordSeed(entropy)
}

// GenerateMnemonic picks random words until they make a basic TON seed.
func (d *Driver) GenerateMnemonic() ([]string, error) {
	wordList := bip39.GetWordList()
	n := big.NewInt(int64(len(wordList)))
	words := make([]string, mnemonicWords)
	for {
		for i := range words {
			idx, err := rand.Int(rand.Reader, n)
			if err != nil {
				return nil, fmt.Errorf("error picking word: %w", err)
			}
			words[i] = wordList[idx.Int64()]
		}
		entropy := tonEntropy(words)
		if isBasicSeed(entropy) && !isPasswordSeed(entropy) {
			return words, nil
		}
	}
}

func tonPrivateKey(words []string) ed25519.PrivateKey {
	entropy := tonEntropy(normalizeWords(words))
	seed := pbkdf2.Key(entropy, []byte(seedSalt), seedIterations, 64, sha512.New)
	return ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
}

// bip39PrivateKey derives the key of a BIP39 mnemonic at m/44'/607'/0'.
func bip39PrivateKey(words []string) (ed25519.PrivateKey, error) {
	mnemonic := strings.Join(normalizeWords(words), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid bip39 mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chainCode := sum[:32], sum[32:]
	for _, idx := range []uint32{bip39Purpose, bip39CoinType, 0} {
		data := make([]byte, 0, 37)
		data = append(data, 0)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, idx|hardened)
		mac = hmac.New(sha512.New, chainCode)
		mac.Write(data)
		sum = mac.Sum(nil)
		key, chainCode = sum[:32], sum[32:]
	}
	return ed25519.NewKeyFromSeed(key), nil
}

func versionConfig(version string, net wallet.Network, isTestnetSubwalletID bool) (tonwallet.VersionConfig, uint32, error) {
	switch version {
	case VersionV3R2:
		return tonwallet.V3R2, tonwallet.DefaultSubwallet, nil
	case VersionV4R2:
		return tonwallet.V4R2, tonwallet.DefaultSubwallet, nil
	case VersionW5:
		globalID := tonwallet.MainnetGlobalID
		if net == wallet.Testnet && isTestnetSubwalletID {
			globalID = tonwallet.TestnetGlobalID
		}
		return tonwallet.ConfigV5R1Final{NetworkGlobalID: int32(globalID)}, 0, nil
	}
	return nil, 0, fmt.Errorf("unsupported wallet version %q", version)
}

// walletFromPublicKey computes the wallet contract address of a key.
func walletFromPublicKey(net wallet.Network, pub ed25519.PublicKey, version string, isTestnetSubwalletID bool) (*chain.Wallet, error) {
	if version == "" {
		version = DefaultVersion
	}
	cfg, subwallet, err := versionConfig(version, net, isTestnetSubwalletID)
	if err != nil {
		return nil, err
	}
	addr, err := tonwallet.AddressFromPubKey(pub, cfg, subwallet)
	if err != nil {
		return nil, fmt.Errorf("error computing %s address: %w", version, err)
	}
	return &chain.Wallet{
		Address:   formatAddress(addr, false, net),
		PublicKey: hex.EncodeToString(pub),
		Version:   version,
	}, nil
}

// WalletFromMnemonic derives the wallet of a TON mnemonic.
func (d *Driver) WalletFromMnemonic(_ context.Context, net wallet.Network, words []string, version string) (*chain.Wallet, error) {
	key := tonPrivateKey(words)
	return walletFromPublicKey(net, key.Public().(ed25519.PublicKey), version, false)
}

// WalletFromBip39Mnemonic derives the default-version wallet of a BIP39
// mnemonic.
func (d *Driver) WalletFromBip39Mnemonic(_ context.Context, net wallet.Network, words []string) (*chain.Wallet, error) {
	key, err := bip39PrivateKey(words)
	if err != nil {
		return nil, err
	}
	return walletFromPublicKey(net, key.Public().(ed25519.PublicKey), DefaultVersion, false)
}

// WalletFromPrivateKey derives the default-version wallet of a hex encoded
// private key, either the 32 byte seed or the full 64 byte key.
func (d *Driver) WalletFromPrivateKey(_ context.Context, net wallet.Network, privateKey string) (*chain.Wallet, error) {
	b, err := hex.DecodeString(strings.TrimSpace(privateKey))
	if err != nil {
		return nil, fmt.Errorf("private key is not hex: %w", err)
	}
	var key ed25519.PrivateKey
	switch len(b) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(b)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(b)
	default:
		return nil, fmt.Errorf("wrong private key length %d", len(b))
	}
	return walletFromPublicKey(net, key.Public().(ed25519.PublicKey), DefaultVersion, false)
}

// OtherVersionWallet computes the wallet of another contract version for the
// same key.
func (d *Driver) OtherVersionWallet(net wallet.Network, w *chain.Wallet, version string, isTestnetSubwalletID bool) (*chain.Wallet, error) {
	pub, err := hex.DecodeString(w.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("wallet has no usable public key")
	}
	return walletFromPublicKey(net, pub, version, isTestnetSubwalletID)
}

// WalletFromAddress looks up the wallet at an address or domain, for view
// accounts.
func (d *Driver) WalletFromAddress(ctx context.Context, net wallet.Network, addressOrDomain string) (wallet.Result[*chain.WalletInfo], error) {
	api, err := d.api(net)
	if err != nil {
		return wallet.Result[*chain.WalletInfo]{}, err
	}
	var title string
	addr := addressOrDomain
	if isDomain(addressOrDomain) {
		resolved, err := api.resolveDomain(ctx, addressOrDomain)
		if err != nil {
			return wallet.Result[*chain.WalletInfo]{}, err
		}
		if resolved == "" {
			return wallet.Fail[*chain.WalletInfo](wallet.ErrDomainNotResolved), nil
		}
		addr, title = resolved, addressOrDomain
	}
	parsed, err := parseAddress(addr)
	if err != nil {
		return wallet.Fail[*chain.WalletInfo](wallet.ErrInvalidAddress), nil
	}
	info, err := api.walletInformation(ctx, addr)
	if err != nil {
		return wallet.Result[*chain.WalletInfo]{}, err
	}
	return wallet.Ok(&chain.WalletInfo{
		Wallet: &chain.Wallet{
			Address:       formatAddress(parsed, false, net),
			Version:       info.version(),
			LastTxID:      info.LastTransactionHash,
			IsInitialized: info.Status == statusActive,
		},
		Title: title,
	}), nil
}
