package activity

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func tonSwap(id string, ts int64, from, fromAmt, to, toAmt string) *Activity {
	return &Activity{
		Kind:       KindSwap,
		ID:         id,
		Timestamp:  ts,
		Status:     StatusCompleted,
		From:       from,
		FromAmount: fromAmt,
		To:         to,
		ToAmount:   toAmt,
		NetworkFee: "0.01",
		SwapFee:    "0.1",
		Hashes:     []string{id},
	}
}

const jettonA = "ton-eqaaaaaaaa"

func TestAggregateTonSwaps(t *testing.T) {
	fee := tx("tr:3-3", 100)
	fee.Extra = &Extra{IsOurSwapFee: true}
	page := []*Activity{
		tx("other:1-1", 200),
		tonSwap("tr:1-1", 100, ToncoinSlug, "10", jettonA, "50"),
		tonSwap("tr:2-2", 100, jettonA, "50", TonUsdtSlug, "31.5"),
		fee,
	}
	known := NewTraceSet()
	got := AggregateTonSwaps(page, known)
	if len(got) != 3 {
		t.Fatalf("expected 3 activities, got %d: %s", len(got), spew.Sdump(ids(got)))
	}
	var agg *Activity
	for _, a := range got {
		if a.Kind == KindSwap {
			agg = a
		}
	}
	if agg == nil || agg.Extra == nil || agg.Extra.Aggregator == nil {
		t.Fatalf("no aggregated swap: %s", spew.Sdump(got))
	}
	if agg.From != ToncoinSlug || agg.FromAmount != "10" || agg.To != TonUsdtSlug || agg.ToAmount != "31.5" {
		t.Fatalf("wrong aggregate amounts: %s", spew.Sdump(agg))
	}
	if agg.NetworkFee != "0.02" || agg.SwapFee != "0.2" || agg.OurFee != "0" {
		t.Fatalf("wrong aggregate fees: %s", spew.Sdump(agg))
	}
	if len(agg.Extra.Aggregator.SwapIDs) != 2 || len(agg.Hashes) != 2 {
		t.Fatalf("wrong aggregator info: %s", spew.Sdump(agg.Extra.Aggregator))
	}
	if !AreSortedAndUnique(got) {
		t.Fatalf("result not sorted")
	}
	// Input untouched.
	if page[1].Extra != nil || page[1].To != jettonA {
		t.Fatalf("input modified")
	}

	// Without the marker, the trace is aggregated only once it's known.
	noMarker := page[:3]
	if got := AggregateTonSwaps(noMarker, NewTraceSet()); len(got) != 3 {
		t.Fatalf("unmarked trace aggregated")
	}
	if got := AggregateTonSwaps(noMarker, known); len(got) != 2 {
		t.Fatalf("known trace not aggregated, got %d", len(got))
	}

	// A swap that isn't completed blocks aggregation.
	pending := tonSwap("tr:2-2", 100, jettonA, "50", TonUsdtSlug, "31.5")
	pending.Status = StatusPending
	if got := AggregateTonSwaps([]*Activity{page[1], pending, fee}, NewTraceSet()); len(got) != 3 {
		t.Fatalf("pending trace aggregated")
	}

	// Backend swaps are never aggregated.
	backend := tonSwap("swap:9", 100, ToncoinSlug, "1", jettonA, "2")
	fee2 := tx("swap:9:x", 90)
	fee2.Extra = &Extra{QueryID: AggregatorQueryID}
	if got := AggregateTonSwaps([]*Activity{backend, fee2}, NewTraceSet()); len(got) != 2 || got[0].Extra != nil {
		t.Fatalf("backend swap aggregated")
	}
}
