package ports

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminal(t *testing.T) {
	var out, errOut bytes.Buffer
	term := NewTerminal(&out, &errOut)

	term.Output("undo: mkdir /a")
	term.Warning("nothing to undo")
	term.Error("redo failed", errors.New("boom"))
	term.Error("bare", nil)

	assert.Equal(t, "undo: mkdir /a\n", out.String())
	assert.Equal(t, "warning: nothing to undo\nerror: redo failed: boom\nerror: bare\n", errOut.String())
}
