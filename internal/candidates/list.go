// Package candidates implements the paged, two-level candidate list shown
// for the focused segment of a conversion.
//
// A List holds entries that either reference a candidate of the owning
// segment by id or nest another List (the transliteration group). Ids are
// unique across the whole tree and new ids are only accepted at or beyond
// NextAvailableID, so rebuilding a list for a grown segment never duplicates
// an existing entry.
package candidates

import (
	"henkan/internal/logging"
)

// DefaultPageSize is used when the request does not configure a page size.
const DefaultPageSize = 9

// Attributes describe how a transliteration entry renders.
type Attributes uint32

const NoAttributes Attributes = 0

const (
	Hiragana Attributes = 1 << iota
	Katakana
	ASCII
	HalfWidth
	FullWidth
	Upper
	Lower
	Capitalized
)

// Entry is either a reference to a segment candidate or a nested list.
type Entry struct {
	id         int
	attributes Attributes
	sub        *List
}

// ID returns the candidate id. It is meaningless for sub-list entries.
func (e *Entry) ID() int { return e.id }

// Attributes returns the display attributes of the entry.
func (e *Entry) Attributes() Attributes { return e.attributes }

// HasSubList reports whether the entry nests another list.
func (e *Entry) HasSubList() bool { return e.sub != nil }

// SubList returns the nested list or nil.
func (e *Entry) SubList() *List { return e.sub }

// List is a focusable, paged sequence of entries.
type List struct {
	entries         []*Entry
	focused         bool
	focusedIndex    int
	pageSize        int
	rotate          bool
	name            string
	nextAvailableID int
	ids             map[int]struct{}
}

// New returns an empty list. A rotating list wraps around when moving past
// either end.
func New(rotate bool) *List {
	return &List{
		pageSize: DefaultPageSize,
		rotate:   rotate,
		ids:      make(map[int]struct{}),
	}
}

// Clear drops every entry and resets the focus.
func (l *List) Clear() {
	l.entries = nil
	l.focused = false
	l.focusedIndex = 0
	l.nextAvailableID = 0
	l.ids = make(map[int]struct{})
}

// Size returns the number of top-level entries.
func (l *List) Size() int { return len(l.entries) }

// LastIndex returns the index of the last entry, or -1 for an empty list.
func (l *List) LastIndex() int { return len(l.entries) - 1 }

// Name returns the display label of the list.
func (l *List) Name() string { return l.name }

// SetName sets the display label of the list.
func (l *List) SetName(name string) { l.name = name }

// PageSize returns the number of entries per page.
func (l *List) PageSize() int { return l.pageSize }

// SetPageSize sets the page size. Non-positive values select the default.
func (l *List) SetPageSize(n int) {
	if n <= 0 {
		n = DefaultPageSize
	}
	l.pageSize = n
}

// Focused reports whether the list shows a focused entry.
func (l *List) Focused() bool { return l.focused }

// SetFocused toggles whether the list shows a focused entry.
func (l *List) SetFocused(focused bool) { l.focused = focused }

// FocusedIndex returns the index of the focused top-level entry.
func (l *List) FocusedIndex() int { return l.focusedIndex }

// NextAvailableID returns the smallest non-negative id not yet added.
func (l *List) NextAvailableID() int { return l.nextAvailableID }

// Entry returns the i-th entry. An out-of-range index is logged and yields nil.
func (l *List) Entry(i int) *Entry {
	if i < 0 || i >= len(l.entries) {
		logging.Component("candidates").Error("entry index out of range",
			"index", i, "size", len(l.entries))
		return nil
	}
	return l.entries[i]
}

// SetFocusedIndex focuses the i-th entry. An out-of-range index is logged
// and leaves the list untouched.
func (l *List) SetFocusedIndex(i int) bool {
	if i < 0 || i >= len(l.entries) {
		logging.Component("candidates").Error("focus index out of range",
			"index", i, "size", len(l.entries))
		return false
	}
	l.focusedIndex = i
	return true
}

// FocusedEntry returns the focused top-level entry or nil for an empty list.
func (l *List) FocusedEntry() *Entry {
	if len(l.entries) == 0 {
		return nil
	}
	return l.entries[l.focusedIndex]
}

// DeepestFocused follows sub-lists down to the focused candidate entry.
func (l *List) DeepestFocused() *Entry {
	e := l.FocusedEntry()
	for e != nil && e.sub != nil {
		e = e.sub.FocusedEntry()
	}
	return e
}

// FocusedID returns the id of the deepest focused entry, or 0 when empty.
func (l *List) FocusedID() int {
	if e := l.DeepestFocused(); e != nil {
		return e.id
	}
	return 0
}

// Contains reports whether id is present anywhere in the tree.
func (l *List) Contains(id int) bool {
	if _, ok := l.ids[id]; ok {
		return true
	}
	for _, e := range l.entries {
		if e.sub != nil && e.sub.Contains(id) {
			return true
		}
	}
	return false
}

// AddCandidate appends a reference to candidate id.
func (l *List) AddCandidate(id int) bool {
	return l.AddCandidateWithAttributes(id, NoAttributes)
}

// AddCandidateWithAttributes appends a reference to candidate id unless an
// entry with that id already exists.
func (l *List) AddCandidateWithAttributes(id int, attrs Attributes) bool {
	if l.Contains(id) {
		return false
	}
	l.entries = append(l.entries, &Entry{id: id, attributes: attrs})
	l.ids[id] = struct{}{}
	if id >= l.nextAvailableID {
		l.nextAvailableID = id + 1
	}
	return true
}

// AllocateSubList appends the nested list entry, or returns the existing
// one. A list holds at most one nested list.
func (l *List) AllocateSubList(rotate bool) *List {
	for _, e := range l.entries {
		if e.sub != nil {
			return e.sub
		}
	}
	sub := New(rotate)
	l.entries = append(l.entries, &Entry{sub: sub})
	return sub
}

// IDs returns every candidate id in the tree in display order.
func (l *List) IDs() []int {
	var out []int
	for _, e := range l.entries {
		if e.sub != nil {
			out = append(out, e.sub.IDs()...)
			continue
		}
		out = append(out, e.id)
	}
	return out
}

// PageRange returns the inclusive bounds of the page holding index.
func (l *List) PageRange(index int) (begin, end int, ok bool) {
	if index < 0 || index >= len(l.entries) {
		logging.Component("candidates").Error("page index out of range",
			"index", index, "size", len(l.entries))
		return 0, -1, false
	}
	begin = (index / l.pageSize) * l.pageSize
	end = min(begin+l.pageSize-1, len(l.entries)-1)
	return begin, end, true
}

// Clone returns a deep copy of the list.
func (l *List) Clone() *List {
	out := &List{
		focused:         l.focused,
		focusedIndex:    l.focusedIndex,
		pageSize:        l.pageSize,
		rotate:          l.rotate,
		name:            l.name,
		nextAvailableID: l.nextAvailableID,
		ids:             make(map[int]struct{}, len(l.ids)),
	}
	for id := range l.ids {
		out.ids[id] = struct{}{}
	}
	if l.entries != nil {
		out.entries = make([]*Entry, len(l.entries))
		for i, e := range l.entries {
			c := *e
			if e.sub != nil {
				c.sub = e.sub.Clone()
			}
			out.entries[i] = &c
		}
	}
	return out
}
