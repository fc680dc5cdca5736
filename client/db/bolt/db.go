// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	walletdb "github.com/tonwallet/walletcore/client/db"
	"github.com/tonwallet/walletcore/wallet"
	"go.etcd.io/bbolt"
)

// Bolt works on []byte keys and values. These are the bucket names and the
// keys of the app bucket.
var (
	appBucket          = []byte("appBucket")
	accountsBucket     = []byte("accounts")
	dappsBucket        = []byte("dapps")
	versionKey         = []byte("version")
	currentAccountKey  = []byte("currentAccountId")
	backupDir          = "backup"
	errAppBucketAbsent = errors.New("app bucket not found")
)

type bucketFunc func(*bbolt.Bucket) error
type txFunc func(func(*bbolt.Tx) error) error

// BoltDB is a bbolt-based database backend for the wallet. BoltDB satisfies
// the db.DB interface defined at github.com/tonwallet/walletcore/client/db.
type BoltDB struct {
	*bbolt.DB
	log wallet.Logger
}

// Check that BoltDB satisfies the db.DB interface.
var _ walletdb.DB = (*BoltDB)(nil)

// NewDB is a constructor for a *BoltDB.
func NewDB(dbPath string, logger wallet.Logger) (*BoltDB, error) {
	bdb, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	boltDB := &BoltDB{
		DB:  bdb,
		log: logger,
	}

	if err := boltDB.makeTopLevelBuckets([][]byte{appBucket, accountsBucket, dappsBucket}); err != nil {
		bdb.Close()
		return nil, err
	}

	if err := upgradeDB(bdb, logger); err != nil {
		bdb.Close()
		return nil, err
	}

	return boltDB, nil
}

// Run waits for context cancellation and closes the database.
func (db *BoltDB) Run(ctx context.Context) {
	<-ctx.Done()
	if err := db.Backup(); err != nil {
		db.log.Errorf("unable to backup database: %v", err)
	}
	db.Close()
}

// Store stores a value at the specified key in the general-use bucket.
func (db *BoltDB) Store(k string, v []byte) error {
	if len(k) == 0 {
		return fmt.Errorf("cannot store with empty key")
	}
	return db.appUpdate(func(app *bbolt.Bucket) error {
		return app.Put([]byte(k), v)
	})
}

// Get retrieves value previously stored with Store. A nil value and no error
// is returned for keys that were never stored.
func (db *BoltDB) Get(k string) ([]byte, error) {
	var v []byte
	return v, db.appView(func(app *bbolt.Bucket) error {
		if b := app.Get([]byte(k)); b != nil {
			v = append([]byte(nil), b...)
		}
		return nil
	})
}

// Accounts retrieves all accounts, ordered by id.
func (db *BoltDB) Accounts() ([]*walletdb.Account, error) {
	var accts []*walletdb.Account
	return accts, db.acctsView(func(bkt *bbolt.Bucket) error {
		return bkt.ForEach(func(k, v []byte) error {
			a, err := decodeAccount(v)
			if err != nil {
				return fmt.Errorf("error decoding account %s: %w", string(k), err)
			}
			accts = append(accts, a)
			return nil
		})
	})
}

// Account retrieves the account with the id.
func (db *BoltDB) Account(id string) (*walletdb.Account, error) {
	var acct *walletdb.Account
	return acct, db.acctsView(func(bkt *bbolt.Bucket) error {
		v := bkt.Get([]byte(id))
		if v == nil {
			return walletdb.ErrAccountNotFound
		}
		var err error
		acct, err = decodeAccount(v)
		return err
	})
}

// NewAccountID returns the preferred id if it's a free id of the network.
// Otherwise the id after the highest one of the network is returned.
func (db *BoltDB) NewAccountID(net wallet.Network, preferredID string) (string, error) {
	var id string
	return id, db.acctsView(func(bkt *bbolt.Bucket) error {
		if preferredID != "" {
			if _, pnet, err := walletdb.ParseAccountID(preferredID); err == nil && pnet == net && bkt.Get([]byte(preferredID)) == nil {
				id = preferredID
				return nil
			}
		}
		next := 0
		err := bkt.ForEach(func(k, _ []byte) error {
			n, knet, err := walletdb.ParseAccountID(string(k))
			if err != nil || knet != net {
				return nil
			}
			if n >= next {
				next = n + 1
			}
			return nil
		})
		id = walletdb.BuildAccountID(next, net)
		return err
	})
}

// SetAccount stores the account.
func (db *BoltDB) SetAccount(a *walletdb.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return db.acctsUpdate(func(bkt *bbolt.Bucket) error {
		return bkt.Put([]byte(a.ID), b)
	})
}

// UpdateAccount loads, modifies and stores an account in one transaction. The
// account isn't stored if f errors.
func (db *BoltDB) UpdateAccount(id string, f func(*walletdb.Account) error) error {
	return db.acctsUpdate(func(bkt *bbolt.Bucket) error {
		v := bkt.Get([]byte(id))
		if v == nil {
			return walletdb.ErrAccountNotFound
		}
		a, err := decodeAccount(v)
		if err != nil {
			return err
		}
		if err := f(a); err != nil {
			return err
		}
		if a.ID != id {
			return fmt.Errorf("account id changed from %s to %s", id, a.ID)
		}
		if err := a.Validate(); err != nil {
			return err
		}
		b, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(id), b)
	})
}

// RemoveAccount deletes the account. The current account id is cleared if it
// was this account. Dapps are removed separately with RemoveAccountDapps.
func (db *BoltDB) RemoveAccount(id string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		return removeAccounts(tx, []string{id})
	})
}

// RemoveNetworkAccounts deletes all accounts of the network.
func (db *BoltDB) RemoveNetworkAccounts(net wallet.Network) ([]string, error) {
	var ids []string
	return ids, db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(accountsBucket).ForEach(func(k, _ []byte) error {
			if _, knet, err := walletdb.ParseAccountID(string(k)); err == nil && knet == net {
				ids = append(ids, string(k))
			}
			return nil
		})
		if err != nil {
			return err
		}
		return removeAccounts(tx, ids)
	})
}

// RemoveAllAccounts deletes all accounts and dapps.
func (db *BoltDB) RemoveAllAccounts() error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{accountsBucket, dappsBucket} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return tx.Bucket(appBucket).Delete(currentAccountKey)
	})
}

func removeAccounts(tx *bbolt.Tx, ids []string) error {
	accts, app := tx.Bucket(accountsBucket), tx.Bucket(appBucket)
	current := string(app.Get(currentAccountKey))
	for _, id := range ids {
		if err := accts.Delete([]byte(id)); err != nil {
			return err
		}
		if id == current {
			if err := app.Delete(currentAccountKey); err != nil {
				return err
			}
		}
	}
	return nil
}

// CurrentAccountID is the id of the current account.
func (db *BoltDB) CurrentAccountID() (string, error) {
	v, err := db.Get(string(currentAccountKey))
	return string(v), err
}

// SetCurrentAccountID sets the current account.
func (db *BoltDB) SetCurrentAccountID(id string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		app := tx.Bucket(appBucket)
		if id == "" {
			return app.Delete(currentAccountKey)
		}
		if tx.Bucket(accountsBucket).Get([]byte(id)) == nil {
			return walletdb.ErrAccountNotFound
		}
		return app.Put(currentAccountKey, []byte(id))
	})
}

// SetDapp stores a dapp connection of the account, keyed by URL.
func (db *BoltDB) SetDapp(accountID string, d *walletdb.Dapp) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(accountsBucket).Get([]byte(accountID)) == nil {
			return walletdb.ErrAccountNotFound
		}
		bkt, err := tx.Bucket(dappsBucket).CreateBucketIfNotExists([]byte(accountID))
		if err != nil {
			return err
		}
		return bkt.Put([]byte(d.URL), b)
	})
}

// Dapps lists the dapps of the account, ordered by connection time.
func (db *BoltDB) Dapps(accountID string) ([]*walletdb.Dapp, error) {
	var dapps []*walletdb.Dapp
	err := db.dappsView(func(bkt *bbolt.Bucket) error {
		acctBkt := bkt.Bucket([]byte(accountID))
		if acctBkt == nil {
			return nil
		}
		return acctBkt.ForEach(func(k, v []byte) error {
			d := new(walletdb.Dapp)
			if err := json.Unmarshal(v, d); err != nil {
				return fmt.Errorf("error decoding dapp %s: %w", string(k), err)
			}
			dapps = append(dapps, d)
			return nil
		})
	})
	sort.SliceStable(dapps, func(i, j int) bool { return dapps[i].ConnectedAt < dapps[j].ConnectedAt })
	return dapps, err
}

// RemoveAccountDapps deletes the dapps of the account.
func (db *BoltDB) RemoveAccountDapps(accountID string) error {
	return db.dappsUpdate(func(bkt *bbolt.Bucket) error {
		if bkt.Bucket([]byte(accountID)) == nil {
			return nil
		}
		return bkt.DeleteBucket([]byte(accountID))
	})
}

func decodeAccount(b []byte) (*walletdb.Account, error) {
	a := new(walletdb.Account)
	return a, json.Unmarshal(b, a)
}

// appView is a convenience function for reading from the app bucket.
func (db *BoltDB) appView(f bucketFunc) error {
	return db.withBucket(appBucket, db.View, f)
}

// appUpdate is a convenience function for updating the app bucket.
func (db *BoltDB) appUpdate(f bucketFunc) error {
	return db.withBucket(appBucket, db.Update, f)
}

// acctsView is a convenience function for reading from the account bucket.
func (db *BoltDB) acctsView(f bucketFunc) error {
	return db.withBucket(accountsBucket, db.View, f)
}

// acctsUpdate is a convenience function for updating the account bucket.
func (db *BoltDB) acctsUpdate(f bucketFunc) error {
	return db.withBucket(accountsBucket, db.Update, f)
}

func (db *BoltDB) dappsView(f bucketFunc) error {
	return db.withBucket(dappsBucket, db.View, f)
}

func (db *BoltDB) dappsUpdate(f bucketFunc) error {
	return db.withBucket(dappsBucket, db.Update, f)
}

// makeTopLevelBuckets creates a top-level bucket for each of the provided keys,
// if the bucket doesn't already exist.
func (db *BoltDB) makeTopLevelBuckets(buckets [][]byte) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

// withBucket creates a view into a top-level bucket. The viewer can be
// read-only (db.View), or read-write (db.Update).
func (db *BoltDB) withBucket(bkt []byte, viewer txFunc, f bucketFunc) error {
	return viewer(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bkt)
		if bucket == nil {
			return fmt.Errorf("failed to open %s bucket", string(bkt))
		}
		return f(bucket)
	})
}

// Backup makes a copy of the database in the backup directory next to it.
func (db *BoltDB) Backup() error {
	dir := filepath.Join(filepath.Dir(db.Path()), backupDir)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.Mkdir(dir, 0700); err != nil {
			return fmt.Errorf("unable to create backup directory: %w", err)
		}
	}

	path := filepath.Join(dir, filepath.Base(db.Path()))
	return db.View(func(tx *bbolt.Tx) error {
		return tx.CopyFile(path, 0600)
	})
}
