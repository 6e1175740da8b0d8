// Package memmodel is an in-memory mirror of the supersession algorithm
// (spec.md §3), on which the pgregory.net/rapid property tests check the
// supersession invariants. It deliberately implements the bare minimum
// of spec.md's rules with no SQL, no indexes, and no concurrency, so a
// property test can trust it as ground truth.
package memmodel

import "github.com/wavesplatform/assetindex/internal/model"

// row is one versioned row for one entity kind, keyed by its own uid.
type row struct {
	uid          int64
	blockUID     int64
	supersededBy int64
	naturalKey   string
	payload      model.NaturalKeyed
}

// Store is the in-memory model. One Store instance models one entity
// kind's table; a test harness keeps one Store per model.EntityKind.
type Store struct {
	rows   []*row
	nextID int64
}

func New() *Store { return &Store{nextID: 1} }

// Append mirrors append_versions: assign a fresh uid, insert with
// superseded_by = MAX, then supersede the prior live row (if any) for the
// same natural key.
func (s *Store) Append(blockUID int64, naturalKey string, payload model.NaturalKeyed) int64 {
	uid := s.nextID
	s.nextID++

	for _, r := range s.rows {
		if r.naturalKey == naturalKey && r.supersededBy == model.MaxUID {
			r.supersededBy = uid
			break
		}
	}

	s.rows = append(s.rows, &row{
		uid: uid, blockUID: blockUID, supersededBy: model.MaxUID,
		naturalKey: naturalKey, payload: payload,
	})
	return uid
}

// RollbackTo mirrors rollback_to: delete every row whose blockUID is
// >= the uid of the first deleted block (callers pass the block uid
// threshold directly, since memmodel doesn't model the Block table
// itself), then reopen every row whose superseded_by pointer now
// dangles.
func (s *Store) RollbackTo(blockUIDThreshold int64) {
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.blockUID < blockUIDThreshold {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	s.reopen()
}

func (s *Store) reopen() {
	alive := make(map[int64]struct{}, len(s.rows))
	for _, r := range s.rows {
		alive[r.uid] = struct{}{}
	}
	for _, r := range s.rows {
		if r.supersededBy == model.MaxUID {
			continue
		}
		if _, ok := alive[r.supersededBy]; !ok {
			r.supersededBy = model.MaxUID
		}
	}
}

// Live returns the current live payload for naturalKey, if any.
func (s *Store) Live(naturalKey string) (model.NaturalKeyed, bool) {
	for _, r := range s.rows {
		if r.naturalKey == naturalKey && r.supersededBy == model.MaxUID {
			return r.payload, true
		}
	}
	return nil, false
}

// PointInTime mirrors point_in_time: the row where uid <= asOf < superseded_by.
func (s *Store) PointInTime(naturalKey string, asOf int64) (model.NaturalKeyed, bool) {
	for _, r := range s.rows {
		if r.naturalKey == naturalKey && r.uid <= asOf && asOf < r.supersededBy {
			return r.payload, true
		}
	}
	return nil, false
}

// LiveCount returns how many live rows naturalKey currently has, used by
// property tests to check the uniqueness invariant directly.
func (s *Store) LiveCount(naturalKey string) int {
	n := 0
	for _, r := range s.rows {
		if r.naturalKey == naturalKey && r.supersededBy == model.MaxUID {
			n++
		}
	}
	return n
}

// ChainIntact reports whether every non-live row's superseded_by points at
// exactly one existing row sharing its natural key (spec.md §8's
// "supersession chain integrity" property).
func (s *Store) ChainIntact() bool {
	byUID := make(map[int64]*row, len(s.rows))
	for _, r := range s.rows {
		byUID[r.uid] = r
	}
	for _, r := range s.rows {
		if r.supersededBy == model.MaxUID {
			continue
		}
		successor, ok := byUID[r.supersededBy]
		if !ok || successor.naturalKey != r.naturalKey {
			return false
		}
	}
	return true
}
