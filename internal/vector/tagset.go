package vector

import "encoding/json"

// TagSet is a bounded ordered set of tag names. Insertion order is kept for
// eviction: when the bound is exceeded the oldest entry is dropped first.
// Membership checks are O(1) via the companion set; the slice only carries
// the order.
//
// Adding a tag that is already present moves it to the most-recent position
// instead of duplicating it.
type TagSet struct {
	order   []string
	members map[string]bool
	limit   int
}

// NewTagSet creates an empty tag set with the given capacity.
// The limit must be positive, otherwise the call panics.
func NewTagSet(limit int) *TagSet {
	if limit <= 0 {
		panic("tag set limit must be positive")
	}
	return &TagSet{
		members: make(map[string]bool, limit),
		limit:   limit,
	}
}

// Add inserts tag at the most-recent position. A duplicate is moved rather
// than re-added. If the set is full, the oldest tag is evicted.
// Returns the evicted tag and true when an eviction happened.
func (ts *TagSet) Add(tag string) (string, bool) {
	if ts.members[tag] {
		ts.remove(tag)
		ts.order = append(ts.order, tag)
		ts.members[tag] = true
		return "", false
	}

	var evicted string
	var didEvict bool
	if len(ts.order) >= ts.limit {
		evicted = ts.order[0]
		ts.order = ts.order[1:]
		delete(ts.members, evicted)
		didEvict = true
	}

	ts.order = append(ts.order, tag)
	ts.members[tag] = true
	return evicted, didEvict
}

// Remove deletes tag from the set. Reports whether it was present.
func (ts *TagSet) Remove(tag string) bool {
	if !ts.members[tag] {
		return false
	}
	ts.remove(tag)
	return true
}

func (ts *TagSet) remove(tag string) {
	delete(ts.members, tag)
	for i, existing := range ts.order {
		if existing == tag {
			ts.order = append(ts.order[:i], ts.order[i+1:]...)
			return
		}
	}
}

// Contains reports whether tag is in the set.
func (ts *TagSet) Contains(tag string) bool {
	return ts.members[tag]
}

// Len returns the number of tags currently held.
func (ts *TagSet) Len() int {
	return len(ts.order)
}

// Limit returns the maximum number of tags the set can hold.
func (ts *TagSet) Limit() int {
	return ts.limit
}

// Tags returns a copy of the tags in order from oldest to newest.
func (ts *TagSet) Tags() []string {
	out := make([]string, len(ts.order))
	copy(out, ts.order)
	return out
}

// Clone returns an independent copy of the set.
func (ts *TagSet) Clone() *TagSet {
	clone := NewTagSet(ts.limit)
	for _, tag := range ts.order {
		clone.Add(tag)
	}
	return clone
}

// MarshalJSON encodes the set as an ordered array of tag names.
func (ts *TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.order)
}
