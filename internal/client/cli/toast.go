package cli

import (
	"fmt"
	"io"
	"sync"
)

// Toaster prints notifications with a severity prefix.
type Toaster struct {
	mu sync.Mutex
	w  io.Writer
}

func NewToaster(w io.Writer) *Toaster {
	return &Toaster{w: w}
}

func (t *Toaster) print(prefix, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "%s %s\n", prefix, msg)
}

func (t *Toaster) Success(msg string) { t.print("[ok]", msg) }
func (t *Toaster) Error(msg string)   { t.print("[error]", msg) }
func (t *Toaster) Info(msg string)    { t.print("[info]", msg) }
func (t *Toaster) Warn(msg string)    { t.print("[warn]", msg) }
