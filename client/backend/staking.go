// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package backend

import (
	"context"
	"fmt"
	"math/big"
	"net/url"

	"github.com/shopspring/decimal"
)

// tonDecimals is the number of decimals of the native TON token.
const tonDecimals = 9

// StakingProfit is the reward of one staking round.
type StakingProfit struct {
	Timestamp int64  `json:"timestamp"`
	Profit    string `json:"profit"`
}

// StakingProfits fetches the staking reward history of an address.
func (c *Client) StakingProfits(ctx context.Context, address string) ([]*StakingProfit, error) {
	var profits []*StakingProfit
	return profits, c.get(ctx, "/staking/profits/"+url.PathEscape(address), nil, &profits)
}

// Round is a nominator pool validation round. Times are in ms once returned
// by StakingCommon.
type Round struct {
	Start  int64 `json:"start"`
	End    int64 `json:"end"`
	Unlock int64 `json:"unlock"`
}

func (r *Round) toMillis() {
	r.Start *= 1000
	r.End *= 1000
	r.Unlock *= 1000
}

// LiquidStaking is the state of the liquid staking pool.
type LiquidStaking struct {
	CurrentRate   float64            `json:"currentRate"`
	NextRoundRate float64            `json:"nextRoundRate"`
	Collection    string             `json:"collection,omitempty"`
	APY           float64            `json:"apy"`
	LoyaltyAPY    map[string]float64 `json:"loyaltyApy,omitempty"`
	// Available is the amount that can be unstaked instantly, in nanotons.
	Available        *big.Int `json:"-"`
	AvailableDecimal string   `json:"available"`
}

// JettonPool is a jetton staking pool.
type JettonPool struct {
	Pool    string `json:"pool"`
	Token   string `json:"token"`
	Periods []struct {
		Period            int64   `json:"period"`
		UnstakeCommission float64 `json:"unstakeCommission"`
		Token             string  `json:"token"`
	} `json:"periods"`
}

// EthenaStaking is the state of the ethena staking vault.
type EthenaStaking struct {
	Rate        float64 `json:"rate"`
	APY         float64 `json:"apy"`
	APYVerified float64 `json:"apyVerified"`
}

// StakingCommon is the staking data shared by all accounts.
type StakingCommon struct {
	Liquid      LiquidStaking  `json:"liquid"`
	Round       Round          `json:"round"`
	PrevRound   Round          `json:"prevRound"`
	JettonPools []*JettonPool  `json:"jettonPools"`
	Ethena      *EthenaStaking `json:"ethena,omitempty"`
	BigInt      string         `json:"bigInt,omitempty"`
}

// StakingCommon fetches the staking data shared by all accounts. Round times
// are converted to ms and the liquid pool's available amount to nanotons.
func (c *Client) StakingCommon(ctx context.Context) (*StakingCommon, error) {
	sc := new(StakingCommon)
	if err := c.get(ctx, "/staking/common", nil, sc); err != nil {
		return nil, err
	}
	sc.Round.toMillis()
	sc.PrevRound.toMillis()
	avail, err := fromDecimal(sc.Liquid.AvailableDecimal, tonDecimals)
	if err != nil {
		return nil, fmt.Errorf("bad liquid available amount: %w", err)
	}
	sc.Liquid.Available = avail
	return sc, nil
}

// fromDecimal converts a decimal amount string to base units. An empty string
// is zero.
func fromDecimal(s string, decimals int32) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return d.Shift(decimals).BigInt(), nil
}
