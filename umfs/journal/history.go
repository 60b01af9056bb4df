package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BatchInfo is a read-only view of one stack entry.
type BatchInfo struct {
	ID        uuid.UUID `json:"id"`
	Seq       uint64    `json:"seq"`
	Op        string    `json:"op"`
	Path      string    `json:"path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Steps     []string  `json:"steps"`
}

// History is a snapshot of the three stacks, oldest entry first.
type History struct {
	Undo          []BatchInfo `json:"undo"`
	RedoSource    []BatchInfo `json:"redo_source"`
	RedoAfterUndo []BatchInfo `json:"redo_after_undo"`
}

func newBatchInfo(b Batch, steps []Step) BatchInfo {
	info := BatchInfo{
		ID:        b.ID,
		Seq:       b.Seq,
		Op:        b.Op,
		Path:      b.Path,
		CreatedAt: b.CreatedAt,
		Steps:     make([]string, len(steps)),
	}
	for i, s := range steps {
		info.Steps[i] = s.String()
	}
	return info
}

// String renders the history the way the undo shell prints it.
func (h History) String() string {
	var sb strings.Builder
	writeStack(&sb, "undo", h.Undo)
	writeStack(&sb, "redo-source", h.RedoSource)
	writeStack(&sb, "redo-after-undo", h.RedoAfterUndo)
	return sb.String()
}

func writeStack(sb *strings.Builder, name string, entries []BatchInfo) {
	fmt.Fprintf(sb, "%s (%d):\n", name, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(sb, "  #%d %s %s\n", e.Seq, e.Op, e.Path)
		for _, s := range e.Steps {
			fmt.Fprintf(sb, "      %s\n", s)
		}
	}
}
