package candidates

// MoveFirst focuses the first entry, descending into a nested list.
func (l *List) MoveFirst() bool {
	if len(l.entries) == 0 {
		return false
	}
	l.focusTop(0, true)
	return true
}

// MoveLast focuses the last entry, descending into a nested list.
func (l *List) MoveLast() bool {
	if len(l.entries) == 0 {
		return false
	}
	l.focusTop(len(l.entries)-1, false)
	return true
}

// focusTop focuses the i-th top-level entry. When it nests a list, the
// nested focus starts at its first entry if fromStart, otherwise its last.
func (l *List) focusTop(i int, fromStart bool) {
	l.focusedIndex = i
	if sub := l.entries[i].sub; sub != nil {
		if fromStart {
			sub.MoveFirst()
		} else {
			sub.MoveLast()
		}
	}
}

// MoveNext advances the focus by one entry. Nested lists are walked
// through before the outer focus moves on. Returns false when the list
// does not rotate and the focus is already at the end.
func (l *List) MoveNext() bool {
	if len(l.entries) == 0 {
		return false
	}
	if sub := l.entries[l.focusedIndex].sub; sub != nil && sub.MoveNext() {
		return true
	}
	next := l.focusedIndex + 1
	if next >= len(l.entries) {
		if !l.rotate {
			return false
		}
		next = 0
	}
	l.focusTop(next, true)
	return true
}

// MovePrev moves the focus back by one entry.
func (l *List) MovePrev() bool {
	if len(l.entries) == 0 {
		return false
	}
	if sub := l.entries[l.focusedIndex].sub; sub != nil && sub.MovePrev() {
		return true
	}
	prev := l.focusedIndex - 1
	if prev < 0 {
		if !l.rotate {
			return false
		}
		prev = len(l.entries) - 1
	}
	l.focusTop(prev, false)
	return true
}

// MoveNextPage focuses the first entry of the following page, wrapping to
// the first page.
func (l *List) MoveNextPage() bool {
	if len(l.entries) == 0 {
		return false
	}
	begin := (l.focusedIndex / l.pageSize) * l.pageSize
	next := begin + l.pageSize
	if next >= len(l.entries) {
		next = 0
	}
	l.focusTop(next, true)
	return true
}

// MovePrevPage focuses the first entry of the preceding page, wrapping to
// the last page.
func (l *List) MovePrevPage() bool {
	if len(l.entries) == 0 {
		return false
	}
	begin := (l.focusedIndex / l.pageSize) * l.pageSize
	prev := begin - l.pageSize
	if prev < 0 {
		prev = ((len(l.entries) - 1) / l.pageSize) * l.pageSize
	}
	l.focusTop(prev, true)
	return true
}

// MoveToPageIndex focuses the index-th entry of the current page.
func (l *List) MoveToPageIndex(index int) bool {
	if len(l.entries) == 0 || index < 0 {
		return false
	}
	begin, end, ok := l.PageRange(l.focusedIndex)
	if !ok || begin+index > end {
		return false
	}
	l.focusTop(begin+index, true)
	return true
}

// MoveToID focuses the entry holding id, searching nested lists.
func (l *List) MoveToID(id int) bool {
	for i, e := range l.entries {
		if e.sub != nil {
			if e.sub.MoveToID(id) {
				l.focusedIndex = i
				return true
			}
			continue
		}
		if e.id == id {
			l.focusedIndex = i
			return true
		}
	}
	return false
}

// position addresses a candidate entry: a top-level index and, for
// entries inside the nested list, the nested index.
type position struct {
	top int
	sub int
}

func (l *List) positions() []position {
	var out []position
	for i, e := range l.entries {
		if e.sub == nil {
			out = append(out, position{top: i, sub: -1})
			continue
		}
		for j := range e.sub.entries {
			out = append(out, position{top: i, sub: j})
		}
	}
	return out
}

func (l *List) entryAt(p position) *Entry {
	e := l.entries[p.top]
	if p.sub >= 0 {
		return e.sub.entries[p.sub]
	}
	return e
}

func (l *List) focusPosition(p position) {
	l.focusedIndex = p.top
	if p.sub >= 0 {
		l.entries[p.top].sub.focusedIndex = p.sub
	}
}

// MoveToAttributes focuses the first entry whose attributes include attrs.
func (l *List) MoveToAttributes(attrs Attributes) bool {
	for _, p := range l.positions() {
		if l.entryAt(p).attributes&attrs == attrs && attrs != NoAttributes {
			l.focusPosition(p)
			return true
		}
	}
	return false
}

// MoveNextAttributes focuses the next entry after the current focus whose
// attributes include attrs, wrapping around.
func (l *List) MoveNextAttributes(attrs Attributes) bool {
	if attrs == NoAttributes {
		return false
	}
	ps := l.positions()
	if len(ps) == 0 {
		return false
	}
	current := 0
	for i, p := range ps {
		if p.top != l.focusedIndex {
			continue
		}
		if p.sub < 0 || p.sub == l.entries[p.top].sub.focusedIndex {
			current = i
			break
		}
	}
	for step := 1; step <= len(ps); step++ {
		p := ps[(current+step)%len(ps)]
		if l.entryAt(p).attributes&attrs == attrs {
			l.focusPosition(p)
			return true
		}
	}
	return false
}

// Shortcut labels.
const (
	Shortcuts123456789 = "123456789"
	ShortcutsASDFGHJKL = "asdfghjkl"
)

// PageShortcuts returns a label per slot of the focused page. Labels from
// keys are assigned in order to candidate slots. Nested list slots get an
// empty label.
func (l *List) PageShortcuts(keys string) []string {
	if len(l.entries) == 0 {
		return nil
	}
	begin, end, ok := l.PageRange(l.focusedIndex)
	if !ok {
		return nil
	}
	runes := []rune(keys)
	out := make([]string, end-begin+1)
	n := 0
	for i := begin; i <= end; i++ {
		if l.entries[i].sub != nil || n >= len(runes) {
			continue
		}
		out[i-begin] = string(runes[n])
		n++
	}
	return out
}

// PageIndexForShortcut returns the slot of the focused page labelled r.
func (l *List) PageIndexForShortcut(keys string, r rune) (int, bool) {
	for i, label := range l.PageShortcuts(keys) {
		if label != "" && []rune(label)[0] == r {
			return i, true
		}
	}
	return 0, false
}
