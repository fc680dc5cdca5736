// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package ton

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/tonwallet/walletcore/client/chain"
	"github.com/tonwallet/walletcore/wallet/encode"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Message opcodes.
const (
	opComment        = 0
	opJettonTransfer = 0x0f8a7ea5
	opJettonBurn     = 0x595f07bc
	opLiquidDeposit  = 0x47d54391
	// Opcodes of the jetton and ethena staking pools.
	opJettonStake   = 0x4bc7c2df
	opJettonUnstake = 0x51c1c8a4
	opJettonClaim   = 0x7ac8b4d1
	opEthenaUnlock  = 0x0e6d3ac4
)

func newQueryID() uint64 {
	return binary.BigEndian.Uint64(encode.RandomBytes(8))
}

func toBoc(c *cell.Cell) string {
	if c == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(c.ToBOC())
}

func fromBoc(s string) (*cell.Cell, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return cell.FromBOC(b)
}

func commentCell(text string) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(opComment, 32).
		MustStoreStringSnake(text).
		EndCell()
}

// payloadCell builds the cell of a plain payload. Encrypted comments are
// built by the Signer.
func payloadCell(p *chain.Payload) (*cell.Cell, error) {
	if p == nil {
		return nil, nil
	}
	switch p.Type {
	case chain.PayloadComment:
		if p.Text == "" {
			return nil, nil
		}
		return commentCell(p.Text), nil
	case chain.PayloadBinary:
		b, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return nil, err
		}
		return cell.BeginCell().MustStoreSlice(b, uint(len(b))*8).EndCell(), nil
	case chain.PayloadBase64:
		return fromBoc(p.Data)
	}
	return nil, fmt.Errorf("unknown payload type %q", p.Type)
}

func jettonTransferCell(queryID uint64, amount *big.Int, to, responseTo *address.Address, forwardAmount *big.Int, forwardPayload *cell.Cell) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(opJettonTransfer, 32).
		MustStoreUInt(queryID, 64).
		MustStoreBigCoins(amount).
		MustStoreAddr(to).
		MustStoreAddr(responseTo).
		MustStoreBoolBit(false).
		MustStoreBigCoins(forwardAmount).
		MustStoreMaybeRef(forwardPayload).
		EndCell()
}

func jettonBurnCell(queryID uint64, amount *big.Int, responseTo *address.Address) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(opJettonBurn, 32).
		MustStoreUInt(queryID, 64).
		MustStoreBigCoins(amount).
		MustStoreAddr(responseTo).
		MustStoreBoolBit(false).
		EndCell()
}

func opCell(op uint64, queryID uint64) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(op, 32).
		MustStoreUInt(queryID, 64).
		EndCell()
}

func opAmountCell(op uint64, queryID uint64, amount *big.Int) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(op, 32).
		MustStoreUInt(queryID, 64).
		MustStoreBigCoins(amount).
		EndCell()
}
