package memmodel_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/wavesplatform/assetindex/internal/model"
	"github.com/wavesplatform/assetindex/internal/store/memmodel"
)

type dummyPayload struct{ v int }

func (dummyPayload) NaturalKey() string { return "" } // unused, Store keys by the explicit naturalKey arg

// TestLiveRowUniqueness checks spec.md §8's "at most one live row per
// natural key" property holds after an arbitrary sequence of appends.
func TestLiveRowUniqueness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := memmodel.New()
		keys := rapid.SliceOfN(rapid.StringMatching(`[a-c]`), 0, 20).Draw(t, "keys")

		blockUID := int64(1)
		for _, k := range keys {
			s.Append(blockUID, k, dummyPayload{v: int(blockUID)})
			blockUID++
		}

		seen := map[string]bool{}
		for _, k := range keys {
			if seen[k] {
				continue
			}
			seen[k] = true
			if s.LiveCount(k) > 1 {
				t.Fatalf("natural key %q has more than one live row", k)
			}
		}
		if !s.ChainIntact() {
			t.Fatal("supersession chain broken")
		}
	})
}

// TestRollbackIsLeftInverse checks that appending N versions then rolling
// back to before any of them were written restores the "nothing live"
// state, per spec.md §8's rollback-as-left-inverse property.
func TestRollbackIsLeftInverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := memmodel.New()
		n := rapid.IntRange(1, 10).Draw(t, "n")

		for i := 0; i < n; i++ {
			s.Append(int64(i+1), "k", dummyPayload{v: i})
		}
		if _, ok := s.Live("k"); !ok {
			t.Fatal("expected a live row after appends")
		}

		s.RollbackTo(1)

		if _, ok := s.Live("k"); ok {
			t.Fatal("expected no live row after rolling back before the first append")
		}
		if !s.ChainIntact() {
			t.Fatal("supersession chain broken after rollback")
		}
	})
}

// TestRollbackToMiddleReopensThePriorLiveRow checks that rolling back
// part-way through a chain of versions makes the row that was live just
// before the rollback point live again.
func TestRollbackToMiddleReopensThePriorLiveRow(t *testing.T) {
	s := memmodel.New()
	s.Append(1, "k", dummyPayload{v: 1}) // uid 1, blockUID 1
	s.Append(2, "k", dummyPayload{v: 2}) // uid 2, blockUID 2, supersedes uid 1
	s.Append(3, "k", dummyPayload{v: 3}) // uid 3, blockUID 3, supersedes uid 2

	s.RollbackTo(3) // drop everything from blockUID 3 onward

	payload, ok := s.Live("k")
	if !ok {
		t.Fatal("expected a live row after partial rollback")
	}
	if payload.(dummyPayload).v != 2 {
		t.Fatalf("expected the row from blockUID 2 to be reopened, got %+v", payload)
	}
}

// TestPointInTimeMonotonicity checks spec.md §8's point-in-time monotonicity
// property: querying at a strictly later uid never returns an earlier
// version once a later one has superseded it.
func TestPointInTimeMonotonicity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := memmodel.New()
		n := rapid.IntRange(1, 8).Draw(t, "n")
		var uids []int64
		for i := 0; i < n; i++ {
			uid := s.Append(int64(i+1), "k", dummyPayload{v: i})
			uids = append(uids, uid)
		}

		for i, uid := range uids {
			got, ok := s.PointInTime("k", uid)
			if !ok {
				t.Fatalf("expected a row at uid %d", uid)
			}
			if got.(dummyPayload).v != i {
				t.Fatalf("point_in_time(%d) returned version %d, want %d", uid, got.(dummyPayload).v, i)
			}
		}

		// Before the first version existed, there is nothing to see.
		if _, ok := s.PointInTime("k", uids[0]-1); ok {
			t.Fatal("expected no row before the first version's uid")
		}
	})
}

func TestModelEntityKindsHaveStableNaturalKeys(t *testing.T) {
	a := model.Asset{AssetID: "a1"}
	if a.NaturalKey() != "a1" {
		t.Fatalf("unexpected natural key %q", a.NaturalKey())
	}
}
