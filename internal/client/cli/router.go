package cli

import (
	"sync"

	"apod-explorer/internal/client/session"
)

type location struct {
	path string
	from string
}

// Router keeps the page history of the terminal client.
type Router struct {
	mu      sync.Mutex
	history []location
	changed bool
}

func NewRouter(start string) *Router {
	return &Router{history: []location{{path: start}}}
}

func (r *Router) Navigate(path string, opts session.NavOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc := location{path: path, from: opts.From}
	if opts.Replace {
		r.history[len(r.history)-1] = loc
	} else {
		r.history = append(r.history, loc)
	}
	r.changed = true
}

func (r *Router) ReturnTo() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history[len(r.history)-1].from
}

// Current is the path of the page on screen.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history[len(r.history)-1].path
}

// Back pops one page. It reports false at the first page.
func (r *Router) Back() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) < 2 {
		return false
	}
	r.history = r.history[:len(r.history)-1]
	r.changed = true
	return true
}

func (r *Router) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// takeChanged reports whether a navigation happened since the last call.
func (r *Router) takeChanged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.changed
	r.changed = false
	return c
}

var _ session.Navigator = (*Router)(nil)
