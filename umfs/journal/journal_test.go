package journal

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a toy state machine driven by AdjustLinks steps; it records the
// order steps arrive in.
type counter struct {
	value int32
	seen  []string
	fail  string
}

func (c *counter) apply(s Step) error {
	if c.fail != "" && s.Target() == c.fail {
		return errors.New("boom")
	}
	c.seen = append(c.seen, s.String())
	if adj, ok := s.(AdjustLinks); ok {
		c.value += adj.Delta
	}
	return nil
}

// add performs "+delta" against c and records it in j.
func add(j *Journal, c *counter, path string, delta int32) Batch {
	c.value += delta
	return j.Apply(NewBatch("add", path).
		Undo(AdjustLinks{Path: path, Delta: -delta}).
		Redo(AdjustLinks{Path: path, Delta: delta}).
		Build())
}

func newTestJournal(opts ...Option) *Journal {
	return New(zerolog.New(io.Discard), opts...)
}

func TestJournal(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"EmptyStacksReportNoOp", testJournalEmpty},
		{"StackDiscipline", testJournalStackDiscipline},
		{"ApplyClearsRedo", testJournalApplyClearsRedo},
		{"UndoRunsStepsInReverse", testJournalUndoReverseOrder},
		{"FailedReplayKeepsStacks", testJournalFailedReplay},
		{"Squash", testJournalSquash},
		{"MaxDepth", testJournalMaxDepth},
		{"MaxDepthWaitsForSquash", testJournalMaxDepthWaitsForSquash},
		{"FailedReplayKeepsEarlierSteps", testJournalFailedReplayPartial},
		{"InspectCopies", testJournalInspect},
		{"Observer", testJournalObserver},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testJournalEmpty(t *testing.T) {
	j := newTestJournal()
	c := &counter{}

	_, err := j.Undo(c.apply)
	assert.ErrorIs(t, err, ErrNothingToUndo)
	_, err = j.Redo(c.apply)
	assert.ErrorIs(t, err, ErrNothingToRedo)
	assert.Empty(t, c.seen)
}

func testJournalStackDiscipline(t *testing.T) {
	j := newTestJournal()
	c := &counter{}

	const n = 5
	for i := 0; i < n; i++ {
		add(j, c, "/x", 1)
	}
	u, rs, ra := j.Depths()
	assert.Equal(t, []int{n, n, 0}, []int{u, rs, ra})
	assert.Equal(t, int32(n), c.value)

	for k := 1; k <= 3; k++ {
		_, err := j.Undo(c.apply)
		require.NoError(t, err)
		u, rs, ra = j.Depths()
		assert.Equal(t, n-k, u)
		assert.Equal(t, u, rs, "undo and redo-source stay paired")
		assert.Equal(t, k, ra)
	}
	assert.Equal(t, int32(2), c.value)

	_, err := j.Redo(c.apply)
	require.NoError(t, err)
	assert.Equal(t, int32(3), c.value)
	u, rs, ra = j.Depths()
	assert.Equal(t, []int{3, 3, 2}, []int{u, rs, ra})
}

func testJournalApplyClearsRedo(t *testing.T) {
	j := newTestJournal()
	c := &counter{}

	add(j, c, "/x", 1)
	add(j, c, "/x", 1)
	_, err := j.Undo(c.apply)
	require.NoError(t, err)
	_, err = j.Undo(c.apply)
	require.NoError(t, err)

	add(j, c, "/y", 10)
	_, _, ra := j.Depths()
	assert.Zero(t, ra)

	_, err = j.Redo(c.apply)
	assert.ErrorIs(t, err, ErrNothingToRedo)
	assert.Equal(t, int32(10), c.value)
}

func testJournalUndoReverseOrder(t *testing.T) {
	j := newTestJournal()
	c := &counter{}

	j.Apply(NewBatch("multi", "/a").
		Undo(AdjustLinks{Path: "/1", Delta: 1}, AdjustLinks{Path: "/2", Delta: 1}, AdjustLinks{Path: "/3", Delta: 1}).
		Redo(AdjustLinks{Path: "/1", Delta: 1}, AdjustLinks{Path: "/2", Delta: 1}).
		Build())

	_, err := j.Undo(c.apply)
	require.NoError(t, err)
	assert.Equal(t, []string{"adjust-links /3 +1", "adjust-links /2 +1", "adjust-links /1 +1"}, c.seen)

	c.seen = nil
	b, err := j.Redo(c.apply)
	require.NoError(t, err)
	assert.Equal(t, []string{"adjust-links /1 +1", "adjust-links /2 +1"}, c.seen)
	assert.Equal(t, "multi", b.Op)
}

func testJournalFailedReplay(t *testing.T) {
	j := newTestJournal()
	c := &counter{}
	add(j, c, "/bad", 1)

	c.fail = "/bad"
	_, err := j.Undo(c.apply)
	require.ErrorIs(t, err, ErrReplayFailed)

	u, rs, ra := j.Depths()
	assert.Equal(t, []int{1, 1, 0}, []int{u, rs, ra})

	c.fail = ""
	_, err = j.Undo(c.apply)
	require.NoError(t, err)
	c.fail = "/bad"
	_, err = j.Redo(c.apply)
	require.ErrorIs(t, err, ErrReplayFailed)
	u, rs, ra = j.Depths()
	assert.Equal(t, []int{0, 0, 1}, []int{u, rs, ra})
}

func testJournalSquash(t *testing.T) {
	j := newTestJournal()
	c := &counter{}

	add(j, c, "/before", 100)
	mark := j.Mark()
	add(j, c, "/a", 1)
	add(j, c, "/b", 2)
	add(j, c, "/c", 4)

	composite, ok := j.Squash(mark, "touch a b c")
	require.True(t, ok)
	assert.Equal(t, "touch a b c", composite.Op)
	assert.Len(t, composite.Undo, 3)

	u, rs, _ := j.Depths()
	assert.Equal(t, 2, u)
	assert.Equal(t, 2, rs)

	c.seen = nil
	_, err := j.Undo(c.apply)
	require.NoError(t, err)
	assert.Equal(t, int32(100), c.value)
	assert.Equal(t, []string{"adjust-links /c -4", "adjust-links /b -2", "adjust-links /a -1"}, c.seen)

	_, err = j.Redo(c.apply)
	require.NoError(t, err)
	assert.Equal(t, int32(107), c.value)

	_, ok = j.Squash(j.Mark(), "nothing")
	assert.False(t, ok)
}

func testJournalMaxDepth(t *testing.T) {
	j := newTestJournal(WithMaxDepth(2))
	c := &counter{}

	add(j, c, "/1", 1)
	add(j, c, "/2", 1)
	add(j, c, "/3", 1)

	h := j.Inspect()
	require.Len(t, h.Undo, 2)
	assert.Equal(t, "/2", h.Undo[0].Path)
	assert.Equal(t, "/3", h.Undo[1].Path)
	require.Len(t, h.RedoSource, 2)
	assert.Equal(t, "/2", h.RedoSource[0].Path)
}

func testJournalMaxDepthWaitsForSquash(t *testing.T) {
	j := newTestJournal(WithMaxDepth(2))
	c := &counter{}

	add(j, c, "/before", 100)
	mark := j.Mark()
	add(j, c, "/a", 1)
	add(j, c, "/b", 2)
	add(j, c, "/c", 4)

	u, _, _ := j.Depths()
	assert.Equal(t, 4, u, "nothing is trimmed while the group is open")

	composite, ok := j.Squash(mark, "mkdir -p a/b/c")
	require.True(t, ok)
	assert.Len(t, composite.Undo, 3)

	u, rs, _ := j.Depths()
	assert.Equal(t, []int{2, 2}, []int{u, rs})

	_, err := j.Undo(c.apply)
	require.NoError(t, err)
	assert.Equal(t, int32(100), c.value, "one undo reverts the whole group")

	add(j, c, "/d", 1)
	add(j, c, "/e", 1)
	add(j, c, "/f", 1)
	u, _, _ = j.Depths()
	assert.Equal(t, 2, u, "limit applies again once the group is closed")
}

func testJournalFailedReplayPartial(t *testing.T) {
	j := newTestJournal()
	c := &counter{}
	j.Apply(NewBatch("pair", "/ok").
		Undo(AdjustLinks{Path: "/bad", Delta: -1}, AdjustLinks{Path: "/ok", Delta: -1}).
		Redo(AdjustLinks{Path: "/ok", Delta: 1}, AdjustLinks{Path: "/bad", Delta: 1}).
		Build())

	c.fail = "/bad"
	_, err := j.Undo(c.apply)
	require.ErrorIs(t, err, ErrReplayFailed)
	assert.Equal(t, []string{"adjust-links /ok -1"}, c.seen, "steps before the failure stay applied")

	u, rs, ra := j.Depths()
	assert.Equal(t, []int{1, 1, 0}, []int{u, rs, ra})
}

func testJournalInspect(t *testing.T) {
	j := newTestJournal()
	c := &counter{}
	add(j, c, "/a", 1)
	add(j, c, "/b", 1)
	_, err := j.Undo(c.apply)
	require.NoError(t, err)

	h := j.Inspect()
	require.Len(t, h.Undo, 1)
	require.Len(t, h.RedoAfterUndo, 1)
	assert.Equal(t, []string{"adjust-links /a -1"}, h.Undo[0].Steps)
	assert.Equal(t, []string{"adjust-links /a +1"}, h.RedoSource[0].Steps)
	assert.Equal(t, []string{"adjust-links /b +1"}, h.RedoAfterUndo[0].Steps)
	assert.Contains(t, h.String(), "redo-after-undo (1):")

	h.Undo[0].Steps[0] = "tampered"
	assert.Equal(t, []string{"adjust-links /a -1"}, j.Inspect().Undo[0].Steps)
}

type recordingObserver struct {
	depths [][3]int
	moves  []string
}

func (r *recordingObserver) JournalDepths(u, rs, ra int) {
	r.depths = append(r.depths, [3]int{u, rs, ra})
}

func (r *recordingObserver) HistoryMoved(direction string) {
	r.moves = append(r.moves, direction)
}

func testJournalObserver(t *testing.T) {
	obs := &recordingObserver{}
	j := newTestJournal(WithObserver(obs))
	c := &counter{}

	add(j, c, "/a", 1)
	_, err := j.Undo(c.apply)
	require.NoError(t, err)
	_, err = j.Redo(c.apply)
	require.NoError(t, err)

	assert.Equal(t, []string{"undo", "redo"}, obs.moves)
	assert.Equal(t, [][3]int{{1, 1, 0}, {0, 0, 1}, {1, 1, 0}}, obs.depths)
}

func TestBatchCloneIsDeep(t *testing.T) {
	b := NewBatch("write", "/a").
		Undo(SetContent{Path: "/a", Content: []byte("old")}).
		Redo(Write{Path: "/a", Data: []byte("new"), Offset: 0}).
		Build()

	c := b.Clone()
	c.Undo[0].(SetContent).Content[0] = 'X'
	c.Redo[0].(Write).Data[0] = 'X'

	assert.Equal(t, []byte("old"), b.Undo[0].(SetContent).Content)
	assert.Equal(t, []byte("new"), b.Redo[0].(Write).Data)
	assert.Contains(t, b.Description(), "write /a [")
}
