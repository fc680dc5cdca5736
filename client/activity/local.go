// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package activity

import (
	"math/big"
	"time"
)

// FakeTxID is the id that emulation gives to activities with no real
// counterpart.
const FakeTxID = "fake"

// LocalTransactionParams describe a transaction that was just submitted.
// They're used once, to build the local activity shown until the confirmed
// activity arrives.
type LocalTransactionParams struct {
	// TxID is the hash the confirmed activity will carry.
	TxID                string
	Amount              *big.Int
	FromAddress         string
	ToAddress           string
	NormalizedAddress   string
	Comment             string
	EncryptedComment    string
	Fee                 *big.Int
	Slug                string
	Type                TxType
	ExternalMsgHashNorm string
	Extra               *Extra
}

// NewLocalTransaction builds a pending local activity from the params. subID
// tells apart the transactions of one submission.
func NewLocalTransaction(p *LocalTransactionParams, normalizedAddress string, subID int, now time.Time) *Activity {
	hash := p.TxID
	if hash == "" {
		hash = p.ExternalMsgHashNorm
	}
	a := &Activity{
		Kind:                KindTransaction,
		ID:                  BuildLocalTxID(hash, subID),
		Timestamp:           now.UnixMilli(),
		Status:              StatusPending,
		ExternalMsgHashNorm: p.ExternalMsgHashNorm,
		FromAddress:         p.FromAddress,
		ToAddress:           p.ToAddress,
		NormalizedAddress:   normalizedAddress,
		Amount:              new(big.Int),
		Fee:                 new(big.Int),
		Slug:                p.Slug,
		Comment:             p.Comment,
		EncryptedComment:    p.EncryptedComment,
		Type:                p.Type,
	}
	// The submitted amount is kept as is. Direction is given by IsIncoming.
	if p.Amount != nil {
		a.Amount.Set(p.Amount)
	}
	if p.Fee != nil {
		a.Fee.Set(p.Fee)
	}
	if p.Extra != nil {
		extra := *p.Extra
		a.Extra = &extra
	}
	return a
}

// LocalActivitiesFromEmulation turns the activities predicted by emulating a
// message into local activities. Hidden and fake activities are skipped, and
// only the kept ones are numbered.
func LocalActivitiesFromEmulation(msgHashNorm string, emulated []*Activity, now time.Time) []*Activity {
	var locals []*Activity
	for _, e := range emulated {
		if e.ShouldHide || e.ID == FakeTxID {
			continue
		}
		a := e.Copy()
		a.ID = BuildLocalTxID(msgHashNorm, len(locals))
		a.Timestamp = now.UnixMilli()
		a.ExternalMsgHashNorm = msgHashNorm
		// Emulation results are not trusted.
		a.Status = StatusPending
		locals = append(locals, a)
	}
	return locals
}
