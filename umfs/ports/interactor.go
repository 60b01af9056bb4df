package ports

import (
	"fmt"
	"io"
	"sync"
)

// Interactor is how interactive front ends talk to the user.
type Interactor interface {
	Output(message string)
	Warning(message string)
	Error(message string, err error)
}

// Terminal writes messages as plain lines. Warnings and errors go to errOut.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

var _ Interactor = (*Terminal)(nil)

func NewTerminal(out, errOut io.Writer) *Terminal {
	return &Terminal{out: out, errOut: errOut}
}

func (t *Terminal) Output(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, message)
}

func (t *Terminal) Warning(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.errOut, "warning: "+message)
}

func (t *Terminal) Error(message string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		fmt.Fprintln(t.errOut, "error: "+message)
		return
	}
	fmt.Fprintf(t.errOut, "error: %s: %v\n", message, err)
}
