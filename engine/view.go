package engine

import (
	"sort"

	"github.com/spektr-org/obsviz/schema"
)

// ============================================================================
// RECORD VIEW — Zero-Copy Data Access Interface
// ============================================================================
// The engine never owns a published snapshot. It reads through this interface.
//
// Implementations:
//   SliceView — wraps []Observation (a store snapshot, decoded file data)
//   SubView   — filtered, paged or reordered subset (indices into parent)
//
// Filtering, paging and sorting all produce SubViews, so the canonical
// record set is never copied or reordered in place.
// ============================================================================

// RecordView provides indexed, read-only access to a record set.
type RecordView interface {
	Len() int
	At(i int) *Observation
}

// ============================================================================
// SLICE VIEW
// ============================================================================

// SliceView wraps a []Observation slice as a RecordView.
type SliceView struct {
	records []Observation
}

// NewSliceView creates a RecordView over records. The slice is not copied.
func NewSliceView(records []Observation) RecordView {
	return &SliceView{records: records}
}

func (v *SliceView) Len() int { return len(v.records) }

func (v *SliceView) At(i int) *Observation {
	if i < 0 || i >= len(v.records) {
		return nil
	}
	return &v.records[i]
}

// ============================================================================
// SUB VIEW — filtered/paged/sorted subset (zero-copy)
// ============================================================================

// SubView is a subset of a parent RecordView, held as indices into it.
type SubView struct {
	parent  RecordView
	indices []int
}

func newSubView(parent RecordView, indices []int) RecordView {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) At(i int) *Observation {
	if i < 0 || i >= len(v.indices) {
		return nil
	}
	return v.parent.At(v.indices[i])
}

// emptyView is returned for degenerate inputs.
var emptyView RecordView = &SliceView{}

// sliceRange returns the records [lo, hi) of view.
func sliceRange(view RecordView, lo, hi int) RecordView {
	if lo < 0 {
		lo = 0
	}
	if hi > view.Len() {
		hi = view.Len()
	}
	if lo >= hi {
		return emptyView
	}
	indices := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		indices = append(indices, i)
	}
	return newSubView(view, indices)
}

// SortByField returns view reordered ascending by a continuous field.
// The sort is stable; records missing the field keep their relative
// order and go last.
func SortByField(view RecordView, field schema.Field) RecordView {
	n := view.Len()
	type keyed struct {
		idx     int
		val     float64
		present bool
	}
	keys := make([]keyed, n)
	for i := 0; i < n; i++ {
		val, ok := view.At(i).Scalar(field)
		keys[i] = keyed{idx: i, val: val, present: ok}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.present != b.present {
			return a.present
		}
		return a.present && a.val < b.val
	})
	indices := make([]int, n)
	for i, k := range keys {
		indices[i] = k.idx
	}
	return newSubView(view, indices)
}

// Collect copies the records of a view into a new slice.
func Collect(view RecordView) []Observation {
	out := make([]Observation, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		out = append(out, *view.At(i))
	}
	return out
}
