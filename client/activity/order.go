// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package activity

import (
	"slices"
	"strings"

	"github.com/tonwallet/walletcore/wallet/utils"
)

// maxTrimmedTrace is the number of activities at which a trailing trace is
// considered too big to be trimmed from a page.
const maxTrimmedTrace = 10

// Compare orders activities newest first. Activities with equal timestamps
// are ordered by id, descending. It returns a negative number when a sorts
// before b.
func Compare(a, b *Activity) int {
	switch {
	case a.Timestamp > b.Timestamp:
		return -1
	case a.Timestamp < b.Timestamp:
		return 1
	}
	return -strings.Compare(a.ID, b.ID)
}

// Sort sorts the activities in place according to Compare and returns them.
func Sort(activities []*Activity) []*Activity {
	slices.SortStableFunc(activities, Compare)
	return activities
}

// AreSortedAndUnique checks that the activities are ordered newest first and
// that no id repeats.
func AreSortedAndUnique(activities []*Activity) bool {
	seen := make(map[string]bool, len(activities))
	for i, a := range activities {
		if seen[a.ID] {
			return false
		}
		seen[a.ID] = true
		if i > 0 && a.Timestamp > activities[i-1].Timestamp {
			return false
		}
	}
	return true
}

// MergeSorted merges lists that are each already sorted newest first. The
// merge is stable: among equal timestamps, items keep their order within their
// list, and items of an earlier list come first. When an id appears more than
// once, only the first occurrence is kept.
func MergeSorted(lists ...[]*Activity) []*Activity {
	var total int
	for _, l := range lists {
		total += len(l)
	}
	merged := make([]*Activity, 0, total)
	seen := make(map[string]bool, total)
	pos := make([]int, len(lists))
	for {
		next := -1
		for i, l := range lists {
			if pos[i] == len(l) {
				continue
			}
			// Strictly newer only, so ties go to the earlier list.
			if next < 0 || l[pos[i]].Timestamp > lists[next][pos[next]].Timestamp {
				next = i
			}
		}
		if next < 0 {
			return merged
		}
		a := lists[next][pos[next]]
		pos[next]++
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		merged = append(merged, a)
	}
}

// Slice is a page of activities from one chain, or the merged page of all of
// them.
type Slice struct {
	Activities []*Activity `json:"activities"`
	// ShouldFetchMore signals that the source may have older activities
	// beyond this page.
	ShouldFetchMore bool `json:"shouldFetchMore"`
}

// MergeSortedToMaxTime merges pages from several sources. A page that may
// have more activities only covers history back to its last timestamp, so
// the result is cut at the newest such boundary: anything older could be
// interleaved with activities that haven't been fetched yet. Pages known to be
// complete don't bound the result.
func MergeSortedToMaxTime(pages ...Slice) []*Activity {
	var bound int64
	var bounded bool
	lists := make([][]*Activity, 0, len(pages))
	for _, s := range pages {
		lists = append(lists, s.Activities)
		if !s.ShouldFetchMore || len(s.Activities) == 0 {
			continue
		}
		last := s.Activities[len(s.Activities)-1].Timestamp
		if !bounded || last > bound {
			bound, bounded = last, true
		}
	}
	merged := MergeSorted(lists...)
	if !bounded {
		return merged
	}
	for i, a := range merged {
		if a.Timestamp < bound {
			return merged[:i]
		}
	}
	return merged
}

// TrimLastIncompleteTrace drops the activities that share a trace with the
// last activity of a full page, since that trace may continue on the next
// page. Nothing is dropped if that would empty the page or remove
// maxTrimmedTrace or more activities.
func TrimLastIncompleteTrace(activities []*Activity) []*Activity {
	if len(activities) == 0 {
		return activities
	}
	lastTrace := ParseTxID(activities[len(activities)-1].ID).Hash
	trimmed := utils.Filter(activities, func(a *Activity) bool {
		return ParseTxID(a.ID).Hash != lastTrace
	})
	if len(trimmed) == 0 || len(activities)-len(trimmed) >= maxTrimmedTrace {
		return activities
	}
	return trimmed
}

// SliceFromPage builds the Slice for a page fetched with the given limit. A
// full page may end in the middle of a trace, so the trailing trace is trimmed
// and more activities are requested.
func SliceFromPage(activities []*Activity, limit int) Slice {
	if limit > 0 && len(activities) == limit {
		return Slice{
			Activities:      TrimLastIncompleteTrace(activities),
			ShouldFetchMore: true,
		}
	}
	return Slice{Activities: activities}
}
