// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package activity

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tonwallet/walletcore/wallet"
	"github.com/tonwallet/walletcore/wallet/utils"
)

// AggregatorQueryID is the query id that the wallet's swap aggregator puts on
// the messages of a multi-hop swap.
const AggregatorQueryID = "6727398713614369643"

// TraceSet remembers the traces known to be aggregated swaps, so that a page
// missing the marker activity (e.g. a token-scoped page without the fee
// transfer) is still aggregated. It is safe for concurrent use.
type TraceSet struct {
	mtx    sync.RWMutex
	traces map[string]bool
}

// NewTraceSet is the constructor for a TraceSet.
func NewTraceSet() *TraceSet {
	return &TraceSet{traces: make(map[string]bool)}
}

func (s *TraceSet) has(traceID string) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.traces[traceID]
}

func (s *TraceSet) add(traceID string) {
	s.mtx.Lock()
	s.traces[traceID] = true
	s.mtx.Unlock()
}

type indexedSwap struct {
	activity *Activity
	index    int
}

type traceGroup struct {
	swaps     []indexedSwap
	hasMarker bool
}

func isTonSwap(a *Activity) bool {
	if a.Kind != KindSwap || IsBackendSwapID(a.ID) {
		return false
	}
	from, _ := ChainBySlug(a.From)
	to, _ := ChainBySlug(a.To)
	return from == wallet.ChainTON && to == wallet.ChainTON
}

// AggregateTonSwaps folds the on-chain swaps of one aggregator trace into a
// single swap activity that goes from the token spent to the token received.
// A trace is aggregated when it has at least two swaps and a marker activity
// (the aggregator query id or our swap fee), or when it was aggregated before.
// Traces with any swap that hasn't completed are left alone. The input must
// be sorted; the result is sorted.
func AggregateTonSwaps(activities []*Activity, known *TraceSet) []*Activity {
	if len(activities) == 0 {
		return activities
	}

	groups := make(map[string]*traceGroup)
	var order []string
	for i, a := range activities {
		traceID := ParseTxID(a.ID).Hash
		g, found := groups[traceID]
		if !found {
			g = new(traceGroup)
			groups[traceID] = g
			order = append(order, traceID)
		}
		if isTonSwap(a) {
			g.swaps = append(g.swaps, indexedSwap{a, i})
		}
		if a.Extra != nil && (a.Extra.QueryID == AggregatorQueryID || a.Extra.IsOurSwapFee) {
			g.hasMarker = true
		}
	}

	replacements := make(map[int]*Activity)
	skip := make(map[int]bool)
	for _, traceID := range order {
		g := groups[traceID]
		aggregated, primary := aggregateTrace(traceID, g, known.has(traceID))
		if aggregated == nil {
			continue
		}
		known.add(traceID)
		replacements[primary] = aggregated
		for _, s := range g.swaps {
			if s.index != primary {
				skip[s.index] = true
			}
		}
	}
	if len(replacements) == 0 {
		return activities
	}

	result := make([]*Activity, 0, len(activities)-len(skip))
	for i, a := range activities {
		if r, found := replacements[i]; found {
			result = append(result, r)
			continue
		}
		if !skip[i] {
			result = append(result, a)
		}
	}
	return Sort(result)
}

func aggregateTrace(traceID string, g *traceGroup, isKnown bool) (*Activity, int) {
	if len(g.swaps) == 0 || !isKnown && (!g.hasMarker || len(g.swaps) < 2) {
		return nil, 0
	}
	for _, s := range g.swaps {
		if s.activity.Status != StatusCompleted {
			return nil, 0
		}
	}

	// The swaps are in page order, so the first one is the primary.
	primary := g.swaps[0]
	totals := make(map[string]decimal.Decimal)
	var slugs []string
	addTotal := func(slug string, d decimal.Decimal) {
		t, found := totals[slug]
		if !found {
			slugs = append(slugs, slug)
		}
		totals[slug] = t.Add(d)
	}
	var timestamp int64
	var networkFee, swapFee, ourFee decimal.Decimal
	var swapIDs, hashes []string
	for _, s := range g.swaps {
		a := s.activity
		timestamp = max(timestamp, a.Timestamp)
		addTotal(a.From, parseDecimal(a.FromAmount).Neg())
		addTotal(a.To, parseDecimal(a.ToAmount))
		networkFee = networkFee.Add(parseDecimal(a.NetworkFee))
		swapFee = swapFee.Add(parseDecimal(a.SwapFee))
		ourFee = ourFee.Add(parseDecimal(a.OurFee))
		swapIDs = append(swapIDs, a.ID)
		hashes = append(hashes, a.Hashes...)
	}

	// The token with the most negative total was spent and the one with the
	// most positive total was received.
	first, last := g.swaps[0].activity, g.swaps[len(g.swaps)-1].activity
	fromSlug, toSlug := first.From, last.To
	fromAmount, toAmount := parseDecimal(first.FromAmount), parseDecimal(last.ToAmount)
	var minSlug, maxSlug string
	for _, slug := range slugs {
		if minSlug == "" || totals[slug].LessThan(totals[minSlug]) {
			minSlug = slug
		}
		if maxSlug == "" || totals[slug].GreaterThan(totals[maxSlug]) {
			maxSlug = slug
		}
	}
	if totals[minSlug].IsNegative() {
		fromSlug, fromAmount = minSlug, totals[minSlug].Neg()
	}
	if totals[maxSlug].IsPositive() {
		toSlug, toAmount = maxSlug, totals[maxSlug]
	}
	if fromSlug == "" || toSlug == "" {
		return nil, 0
	}

	agg := primary.activity.Copy()
	agg.From, agg.To = fromSlug, toSlug
	agg.FromAmount, agg.ToAmount = fromAmount.String(), toAmount.String()
	agg.Timestamp = timestamp
	agg.NetworkFee = networkFee.String()
	agg.SwapFee = swapFee.String()
	agg.OurFee = ourFee.String()
	agg.Hashes = utils.Unique(hashes)
	if agg.Extra == nil {
		agg.Extra = new(Extra)
	}
	agg.Extra.Aggregator = &AggregatorInfo{
		TraceID: traceID,
		SwapIDs: swapIDs,
		From:    fromSlug,
		To:      toSlug,
	}
	return agg, primary.index
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
