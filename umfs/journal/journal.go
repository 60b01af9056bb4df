// Package journal implements the undo/redo history attached to the
// filesystem: an Undo stack, a Redo-source stack paired with it by index, and
// a Redo-after-undo stack fed by undo and drained by redo or new work.
//
// A Journal does no locking. It is owned by the filesystem and only reached
// while the filesystem holds its exclusive lock.
package journal

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNothingToUndo is returned when the Undo stack is empty. It reports a no-op.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNothingToRedo is returned when the Redo-after-undo stack is empty. It reports a no-op.
	ErrNothingToRedo = errors.New("nothing to redo")
	// ErrReplayFailed wraps a step that could not be applied during undo or redo.
	ErrReplayFailed = errors.New("journal replay failed")
)

// Applier executes one step against the stores without journaling it.
type Applier func(Step) error

// Observer is notified after every change to the stacks.
type Observer interface {
	JournalDepths(undo, redoSource, redoAfterUndo int)
	HistoryMoved(direction string)
}

// Option configures a Journal.
type Option func(*Journal)

// WithMaxDepth bounds the Undo stack. Zero or less means unbounded.
func WithMaxDepth(n int) Option {
	return func(j *Journal) { j.maxDepth = n }
}

// WithObserver registers o for depth and movement notifications.
func WithObserver(o Observer) Option {
	return func(j *Journal) { j.observer = o }
}

// Journal holds the three history stacks.
type Journal struct {
	undo          []Batch
	redoSource    [][]Step
	redoAfterUndo []Batch

	seq      uint64
	maxDepth int
	// openMarks counts Marks not yet closed by Squash. No trimming happens
	// while one is open, so a group is never cut before it is folded.
	openMarks int
	observer  Observer
	logger    zerolog.Logger
}

// New creates an empty journal.
func New(logger zerolog.Logger, opts ...Option) *Journal {
	j := &Journal{logger: logger.With().Str("component", "journal").Logger()}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Apply records a freshly executed batch. Its undo steps go on the Undo
// stack, its redo steps on the Redo-source stack at the same index, and the
// Redo-after-undo stack is cleared because new work invalidates forward
// history.
func (j *Journal) Apply(b Batch) Batch {
	j.seq++
	b = b.Clone()
	b.Seq = j.seq
	j.push(b)
	if n := len(j.redoAfterUndo); n > 0 {
		j.logger.Debug().Int("discarded", n).Msg("Redo history invalidated by new work")
	}
	j.redoAfterUndo = nil
	j.trim()
	j.notify("")

	j.logger.Debug().
		Str("batch", b.ID.String()).
		Str("op", b.Op).
		Str("path", b.Path).
		Int("undo_steps", len(b.Undo)).
		Int("redo_steps", len(b.Redo)).
		Msg("Batch applied")
	return b.Clone()
}

// Undo pops the most recent batch and its paired redo steps, applies the
// undo steps last-to-first through apply, and moves the pair onto the
// Redo-after-undo stack.
//
// If a step fails the error wraps ErrReplayFailed and the stacks are left
// as they were before the call. Steps applied before the failing one are
// not rolled back.
func (j *Journal) Undo(apply Applier) (Batch, error) {
	n := len(j.undo)
	if n == 0 {
		return Batch{}, ErrNothingToUndo
	}
	b := j.undo[n-1].Clone()
	b.Redo = CloneSteps(j.redoSource[n-1])

	for i := len(b.Undo) - 1; i >= 0; i-- {
		if err := apply(b.Undo[i]); err != nil {
			j.logger.Error().Err(err).
				Str("batch", b.ID.String()).
				Str("step", b.Undo[i].String()).
				Msg("Undo step failed")
			return Batch{}, fmt.Errorf("%w: undo %s: %s: %w", ErrReplayFailed, b.Description(), b.Undo[i], err)
		}
	}

	j.undo = j.undo[:n-1]
	j.redoSource = j.redoSource[:n-1]
	j.redoAfterUndo = append(j.redoAfterUndo, b)
	j.notify("undo")

	j.logger.Info().Str("batch", b.ID.String()).Str("op", b.Op).Str("path", b.Path).Msg("Undo completed")
	return b.Clone(), nil
}

// Redo pops the most recently undone pair, applies its redo steps
// first-to-last through apply, and pushes it back onto the Undo and
// Redo-source stacks so it can be undone again. Failure is handled as in
// Undo.
func (j *Journal) Redo(apply Applier) (Batch, error) {
	n := len(j.redoAfterUndo)
	if n == 0 {
		return Batch{}, ErrNothingToRedo
	}
	b := j.redoAfterUndo[n-1].Clone()

	for _, step := range b.Redo {
		if err := apply(step); err != nil {
			j.logger.Error().Err(err).
				Str("batch", b.ID.String()).
				Str("step", step.String()).
				Msg("Redo step failed")
			return Batch{}, fmt.Errorf("%w: redo %s: %s: %w", ErrReplayFailed, b.Description(), step, err)
		}
	}

	j.redoAfterUndo = j.redoAfterUndo[:n-1]
	j.push(b)
	j.trim()
	j.notify("redo")

	j.logger.Info().Str("batch", b.ID.String()).Str("op", b.Op).Str("path", b.Path).Msg("Redo completed")
	return b.Clone(), nil
}

// Mark returns a position that Squash can later fold back to. Every Mark
// must be closed by exactly one Squash; until then the depth limit is not
// enforced.
func (j *Journal) Mark() uint64 {
	j.openMarks++
	return j.seq
}

// Squash folds every batch applied after mark into a single composite batch
// labelled op. Undo steps are concatenated in chronological order, so
// last-to-first replay undoes the newest work first; redo steps are
// concatenated in the same order for forward replay. It reports false when
// nothing was applied after mark.
func (j *Journal) Squash(mark uint64, op string) (Batch, bool) {
	if j.openMarks > 0 {
		j.openMarks--
	}

	start := len(j.undo)
	for start > 0 && j.undo[start-1].Seq > mark {
		start--
	}
	if start == len(j.undo) {
		// Work recorded while the mark was open may still be over the limit
		if j.trim() {
			j.notify("")
		}
		return Batch{}, false
	}

	group := j.undo[start:]
	composite := Batch{
		ID:        uuid.New(),
		Seq:       group[len(group)-1].Seq,
		Op:        op,
		CreatedAt: group[0].CreatedAt,
	}
	if len(group) == 1 {
		composite.Path = group[0].Path
	}
	for i, b := range group {
		composite.Undo = append(composite.Undo, CloneSteps(b.Undo)...)
		composite.Redo = append(composite.Redo, CloneSteps(j.redoSource[start+i])...)
	}

	j.undo = append(j.undo[:start], composite)
	j.redoSource = append(j.redoSource[:start], CloneSteps(composite.Redo))
	j.trim()
	j.notify("")

	j.logger.Debug().
		Str("batch", composite.ID.String()).
		Str("op", op).
		Int("folded", len(group)).
		Msg("Batches squashed")
	return composite.Clone(), true
}

// Depths returns the sizes of the Undo, Redo-source and Redo-after-undo stacks.
func (j *Journal) Depths() (undo, redoSource, redoAfterUndo int) {
	return len(j.undo), len(j.redoSource), len(j.redoAfterUndo)
}

// Inspect returns a deep copy of all three stacks for diagnostics.
func (j *Journal) Inspect() History {
	h := History{
		Undo:          make([]BatchInfo, 0, len(j.undo)),
		RedoSource:    make([]BatchInfo, 0, len(j.redoSource)),
		RedoAfterUndo: make([]BatchInfo, 0, len(j.redoAfterUndo)),
	}
	for i, b := range j.undo {
		h.Undo = append(h.Undo, newBatchInfo(b, b.Undo))
		h.RedoSource = append(h.RedoSource, newBatchInfo(b, j.redoSource[i]))
	}
	for _, b := range j.redoAfterUndo {
		h.RedoAfterUndo = append(h.RedoAfterUndo, newBatchInfo(b, b.Redo))
	}
	return h
}

func (j *Journal) push(b Batch) {
	j.undo = append(j.undo, b)
	j.redoSource = append(j.redoSource, CloneSteps(b.Redo))
}

// trim drops the oldest Undo/Redo-source pairs beyond maxDepth and reports
// whether it dropped any.
func (j *Journal) trim() bool {
	if j.openMarks > 0 || j.maxDepth <= 0 || len(j.undo) <= j.maxDepth {
		return false
	}
	drop := len(j.undo) - j.maxDepth
	j.undo = slices.Delete(j.undo, 0, drop)
	j.redoSource = slices.Delete(j.redoSource, 0, drop)
	j.logger.Debug().Int("dropped", drop).Int("max_depth", j.maxDepth).Msg("Oldest history trimmed")
	return true
}

func (j *Journal) notify(direction string) {
	if j.observer == nil {
		return
	}
	j.observer.JournalDepths(len(j.undo), len(j.redoSource), len(j.redoAfterUndo))
	if direction != "" {
		j.observer.HistoryMoved(direction)
	}
}
