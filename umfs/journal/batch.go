package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Batch is the atomic undo/redo unit produced by one mutating call, or by a
// squashed group of calls. A batch is immutable once pushed; the journal
// hands out deep copies only.
type Batch struct {
	ID        uuid.UUID
	Seq       uint64
	Op        string
	Path      string
	CreatedAt time.Time
	// Undo steps are applied last-to-first.
	Undo []Step
	// Redo steps are applied first-to-last.
	Redo []Step
}

// Clone deep-copies the batch including every step.
func (b Batch) Clone() Batch {
	c := b
	c.Undo = CloneSteps(b.Undo)
	c.Redo = CloneSteps(b.Redo)
	return c
}

// Description is a one-line summary for logs and the undo shell.
func (b Batch) Description() string {
	if b.Path == "" {
		return fmt.Sprintf("%s [%s]", b.Op, shortID(b.ID))
	}
	return fmt.Sprintf("%s %s [%s]", b.Op, b.Path, shortID(b.ID))
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

// Builder assembles a batch before the store is touched, so that the
// mutation and the push can happen as one step.
type Builder struct {
	batch Batch
}

// NewBatch starts a batch for op on path.
func NewBatch(op, path string) *Builder {
	return &Builder{batch: Batch{
		ID:        uuid.New(),
		Op:        op,
		Path:      path,
		CreatedAt: time.Now(),
	}}
}

// Undo appends inverse steps in recording order.
func (bb *Builder) Undo(steps ...Step) *Builder {
	bb.batch.Undo = append(bb.batch.Undo, steps...)
	return bb
}

// Redo appends forward steps in replay order.
func (bb *Builder) Redo(steps ...Step) *Builder {
	bb.batch.Redo = append(bb.batch.Redo, steps...)
	return bb
}

// Build returns the finished batch.
func (bb *Builder) Build() Batch {
	return bb.batch.Clone()
}
