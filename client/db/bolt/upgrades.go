// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package bolt

import (
	"encoding/json"
	"fmt"

	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/encode"
	"go.etcd.io/bbolt"
)

const (
	initialVersion = 0

	// versionedDBVersion is the second version of the database. It versions
	// the database by persisting the version.
	versionedDBVersion = 1

	// multiChainAccountsVersion moves the TON wallet fields of single-chain
	// accounts into the byChain map.
	multiChainAccountsVersion = 2

	// DBVersion is the latest version of the database that is understood by
	// the program. Databases with recorded versions higher than this will fail
	// to open.
	DBVersion = multiChainAccountsVersion
)

// upgrades are keyed by the database version they upgrade from.
var upgrades = [...]func(tx *bbolt.Tx) error{
	initialVersion:     versionedDBUpgrade,
	versionedDBVersion: multiChainAccountsUpgrade,
}

func fetchDBVersion(tx *bbolt.Tx) (uint32, error) {
	bucket := tx.Bucket(appBucket)
	if bucket == nil {
		return 0, errAppBucketAbsent
	}
	versionB := bucket.Get(versionKey)
	if versionB == nil {
		return 0, fmt.Errorf("database version not found")
	}
	return encode.IntCoder.Uint32(versionB), nil
}

func setDBVersion(tx *bbolt.Tx, newVersion uint32) error {
	bucket := tx.Bucket(appBucket)
	if bucket == nil {
		return errAppBucketAbsent
	}
	return bucket.Put(versionKey, encode.Uint32Bytes(newVersion))
}

// upgradeDB checks whether any upgrades are necessary before the database is
// ready for application usage. If any are, they are performed in a single
// transaction. A fresh database is stamped with the latest version.
func upgradeDB(db *bbolt.DB, log wallet.Logger) error {
	var version uint32
	var fresh bool
	err := db.View(func(tx *bbolt.Tx) error {
		app := tx.Bucket(appBucket)
		if app == nil {
			return errAppBucketAbsent
		}
		if versionB := app.Get(versionKey); versionB != nil {
			version = encode.IntCoder.Uint32(versionB)
			return nil
		}
		k, _ := tx.Bucket(accountsBucket).Cursor().First()
		fresh = k == nil
		return nil
	})
	if err != nil {
		return err
	}

	if fresh {
		return db.Update(func(tx *bbolt.Tx) error {
			return setDBVersion(tx, DBVersion)
		})
	}

	if version > DBVersion {
		return fmt.Errorf("unknown database version %d, "+
			"client recognizes up to %d", version, DBVersion)
	}

	if version == DBVersion {
		return nil
	}

	log.Infof("Upgrading database from version %d to %d", version, DBVersion)

	return db.Update(func(tx *bbolt.Tx) error {
		for _, upgrade := range upgrades[version:] {
			if err := upgrade(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

func versionedDBUpgrade(tx *bbolt.Tx) error {
	if _, err := fetchDBVersion(tx); err == nil {
		return fmt.Errorf("versionedDBUpgrade inappropriately called")
	}
	return setDBVersion(tx, versionedDBVersion)
}

// legacyAccount is the account encoding of version 1 databases, which only
// knew TON wallets.
type legacyAccount struct {
	ID        string             `json:"id"`
	Type      wallet.AccountType `json:"type"`
	Title     string             `json:"title,omitempty"`
	Address   string             `json:"address"`
	PublicKey string             `json:"publicKey,omitempty"`
	Version   string             `json:"version,omitempty"`
	LedgerIdx *int               `json:"ledgerIndex,omitempty"`
	Secret    string             `json:"secret,omitempty"`
	// ByChain is set if the account was already stored in the new format.
	ByChain json.RawMessage `json:"byChain,omitempty"`
}

func multiChainAccountsUpgrade(tx *bbolt.Tx) error {
	dbVersion, err := fetchDBVersion(tx)
	if err != nil {
		return err
	}
	if dbVersion != versionedDBVersion {
		return fmt.Errorf("multiChainAccountsUpgrade inappropriately called")
	}

	bkt := tx.Bucket(accountsBucket)
	updated := make(map[string][]byte)
	err = bkt.ForEach(func(k, v []byte) error {
		var la legacyAccount
		if err := json.Unmarshal(v, &la); err != nil {
			return fmt.Errorf("error decoding legacy account %s: %w", string(k), err)
		}
		if len(la.ByChain) > 0 || la.Address == "" {
			return nil
		}
		acct := map[string]any{
			"id":    la.ID,
			"type":  la.Type,
			"title": la.Title,
			"byChain": map[wallet.Chain]*chain.Wallet{
				wallet.ChainTON: {
					Address:   la.Address,
					PublicKey: la.PublicKey,
					Version:   la.Version,
				},
			},
		}
		if la.Secret != "" {
			acct["secret"] = la.Secret
		}
		if la.LedgerIdx != nil {
			acct["ledger"] = map[string]any{"driver": "hid", "index": *la.LedgerIdx}
		}
		b, err := json.Marshal(acct)
		if err != nil {
			return err
		}
		updated[string(k)] = b
		return nil
	})
	if err != nil {
		return err
	}
	for k, b := range updated {
		if err := bkt.Put([]byte(k), b); err != nil {
			return err
		}
	}
	return setDBVersion(tx, multiChainAccountsVersion)
}
