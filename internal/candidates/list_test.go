package candidates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlatList(n int) *List {
	l := New(true)
	for i := 0; i < n; i++ {
		l.AddCandidate(i)
	}
	return l
}

// newCascadingList builds n regular entries followed by a nested,
// non-rotating list of three transliterations.
func newCascadingList(n int) *List {
	l := newFlatList(n)
	sub := l.AllocateSubList(false)
	sub.SetName("そのほかの文字種")
	sub.AddCandidateWithAttributes(-1, Hiragana)
	sub.AddCandidateWithAttributes(-2, FullWidth|Katakana)
	sub.AddCandidateWithAttributes(-3, HalfWidth|Katakana)
	return l
}

func TestPageRange(t *testing.T) {
	l := newFlatList(27)

	begin, end, ok := l.PageRange(10)
	require.True(t, ok)
	assert.Equal(t, 9, begin)
	assert.Equal(t, 17, end)

	begin, end, ok = l.PageRange(26)
	require.True(t, ok)
	assert.Equal(t, 18, begin)
	assert.Equal(t, 26, end)

	_, _, ok = l.PageRange(27)
	assert.False(t, ok)
}

func TestAddCandidateDeduplicates(t *testing.T) {
	l := newFlatList(3)
	assert.False(t, l.AddCandidate(1))
	assert.Equal(t, 3, l.Size())
	assert.Equal(t, 3, l.NextAvailableID())

	// Rebuilding from NextAvailableID never repeats an id.
	for id := l.NextAvailableID(); id < 6; id++ {
		require.True(t, l.AddCandidate(id))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, l.IDs())
}

func TestIDsUniqueAcrossSubList(t *testing.T) {
	l := newCascadingList(2)
	assert.False(t, l.AddCandidate(-2))

	seen := make(map[int]bool)
	for _, id := range l.IDs() {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}

func TestMoveNextWrapsTopLevel(t *testing.T) {
	l := newFlatList(3)
	l.MoveLast()
	require.True(t, l.MoveNext())
	assert.Equal(t, 0, l.FocusedIndex())

	require.True(t, l.MovePrev())
	assert.Equal(t, 2, l.FocusedIndex())
}

func TestMoveThroughSubList(t *testing.T) {
	l := newCascadingList(2)
	require.True(t, l.SetFocusedIndex(1))

	require.True(t, l.MoveNext())
	assert.Equal(t, 2, l.FocusedIndex())
	assert.Equal(t, -1, l.FocusedID())

	l.MoveNext()
	l.MoveNext()
	assert.Equal(t, -3, l.FocusedID())

	// The nested list does not rotate, so the outer focus wraps.
	require.True(t, l.MoveNext())
	assert.Equal(t, 0, l.FocusedIndex())
	assert.Equal(t, 0, l.FocusedID())

	// Entering from after starts at the nested list's last entry.
	require.True(t, l.MovePrev())
	assert.Equal(t, -3, l.FocusedID())
}

func TestMoveToID(t *testing.T) {
	l := newCascadingList(4)
	require.True(t, l.MoveToID(-2))
	assert.Equal(t, 4, l.FocusedIndex())
	assert.Equal(t, -2, l.FocusedID())

	assert.False(t, l.MoveToID(42))
	assert.Equal(t, -2, l.FocusedID())
}

func TestMovePages(t *testing.T) {
	l := newFlatList(20)
	l.SetFocusedIndex(3)

	require.True(t, l.MoveNextPage())
	assert.Equal(t, 9, l.FocusedIndex())
	l.MoveNextPage()
	assert.Equal(t, 18, l.FocusedIndex())
	l.MoveNextPage()
	assert.Equal(t, 0, l.FocusedIndex())

	l.MovePrevPage()
	assert.Equal(t, 18, l.FocusedIndex())
}

func TestMoveToPageIndex(t *testing.T) {
	l := newFlatList(12)
	l.SetFocusedIndex(10)

	require.True(t, l.MoveToPageIndex(2))
	assert.Equal(t, 11, l.FocusedIndex())
	assert.False(t, l.MoveToPageIndex(5))
	assert.Equal(t, 11, l.FocusedIndex())
}

func TestMoveToAttributes(t *testing.T) {
	l := newCascadingList(2)
	require.True(t, l.MoveToAttributes(HalfWidth|Katakana))
	assert.Equal(t, -3, l.FocusedID())

	require.True(t, l.MoveNextAttributes(Katakana))
	assert.Equal(t, -2, l.FocusedID())
	require.True(t, l.MoveNextAttributes(Katakana))
	assert.Equal(t, -3, l.FocusedID())

	assert.False(t, l.MoveToAttributes(ASCII))
}

func TestAttributeBitsStartAtZero(t *testing.T) {
	assert.Equal(t, Attributes(1), Hiragana)
	all := []Attributes{Hiragana, Katakana, ASCII, HalfWidth, FullWidth, Upper, Lower, Capitalized}
	var seen Attributes
	for i, a := range all {
		assert.Equal(t, Attributes(1)<<i, a)
		seen |= a
	}
	assert.Equal(t, Attributes(0xff), seen)
}

func TestSetFocusedIndexOutOfRange(t *testing.T) {
	l := newFlatList(2)
	l.SetFocusedIndex(1)
	assert.False(t, l.SetFocusedIndex(5))
	assert.Equal(t, 1, l.FocusedIndex())
	assert.Nil(t, l.Entry(-1))
}

func TestPageShortcuts(t *testing.T) {
	l := newCascadingList(2)
	assert.Equal(t, []string{"a", "s", ""}, l.PageShortcuts(ShortcutsASDFGHJKL))

	idx, ok := l.PageIndexForShortcut(ShortcutsASDFGHJKL, 's')
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = l.PageIndexForShortcut(ShortcutsASDFGHJKL, 'd')
	assert.False(t, ok)

	assert.Equal(t, []string{"", "", ""}, l.PageShortcuts(""))
}

func TestCloneIsIndependent(t *testing.T) {
	l := newCascadingList(2)
	l.MoveToID(-2)

	clone := l.Clone()
	clone.MoveToID(0)
	clone.AddCandidate(9)

	assert.Equal(t, -2, l.FocusedID())
	assert.Equal(t, 3, l.Size())
	assert.Equal(t, 0, clone.FocusedID())
	assert.True(t, clone.Contains(-3))
}
