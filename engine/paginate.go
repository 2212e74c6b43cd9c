package engine

import "fmt"

// ============================================================================
// PAGINATOR — Bounded slices of a record view
// ============================================================================
// The absolute offset of a page is always Index × Size. Out-of-range
// indices clamp to the last page; an empty input yields page 0.
// ============================================================================

// DefaultPageSize is the page size the observation list opens with.
const DefaultPageSize = 9

// PageState selects one page of the visible records.
type PageState struct {
	Size  int `json:"size" yaml:"size"`
	Index int `json:"index" yaml:"index"`
}

// Offset is the absolute index of the page's first record.
func (p PageState) Offset() int { return p.Index * p.Size }

// Validate rejects non-positive sizes and negative indices.
func (p PageState) Validate() error {
	if p.Size <= 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidPage, p.Size)
	}
	if p.Index < 0 {
		return fmt.Errorf("%w: index %d", ErrInvalidPage, p.Index)
	}
	return nil
}

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int `json:"default" yaml:"default" env:"DEFAULT"`
	Max     int `json:"max" yaml:"max" env:"MAX"`
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(size int, cfg PageSizeConfig) int {
	if size <= 0 {
		size = cfg.Default
	}
	if cfg.Max > 0 && size > cfg.Max {
		size = cfg.Max
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	return size
}

// PageInfo summarises a page for list controls.
type PageInfo struct {
	Index int `json:"index"`
	Size  int `json:"size"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// PageCount returns the number of pages total records occupy at size.
// An empty set still has one (empty) page.
func PageCount(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// Clamp moves p.Index onto the last valid page when p.Index × p.Size falls
// outside total records.
func Clamp(p PageState, total int) PageState {
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Index < 0 {
		p.Index = 0
	}
	if last := PageCount(total, p.Size) - 1; p.Index > last {
		p.Index = last
	}
	return p
}

// Resize changes the page size and keeps the index, so the new offset is
// Index × newSize. The caller clamps against the record count.
func Resize(p PageState, size int) PageState {
	p.Size = size
	return p
}

// Paginate returns the page of view selected by p, after clamping p to
// the view's length. The clamped state is returned alongside.
func Paginate(view RecordView, p PageState) (RecordView, PageState) {
	p = Clamp(p, view.Len())
	lo := p.Offset()
	return sliceRange(view, lo, lo+p.Size), p
}

// Info describes p over total records.
func Info(p PageState, total int) PageInfo {
	p = Clamp(p, total)
	return PageInfo{Index: p.Index, Size: p.Size, Total: total, Pages: PageCount(total, p.Size)}
}
