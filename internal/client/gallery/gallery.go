// Package gallery drives the picture viewer: it turns date navigation into
// provider fetches and keeps the display state those fetches settle into.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"apod-explorer/internal/calendar"
	"apod-explorer/internal/client/api"
	"apod-explorer/internal/client/favorites"
	"apod-explorer/internal/domain"
)

// ErrNothingDisplayed is returned by actions that need a loaded picture.
var ErrNothingDisplayed = errors.New("no picture is displayed")

type Kind int

const (
	KindIdle Kind = iota
	KindLoading
	KindContent
	KindNotFound
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindContent:
		return "content"
	case KindNotFound:
		return "notFound"
	case KindError:
		return "error"
	default:
		return "idle"
	}
}

// Display is what the viewer shows. Picture is set only for KindContent.
type Display struct {
	Kind     Kind
	Date     calendar.Date
	Picture  *domain.Picture
	Message  string
	Favorite bool
}

// Fetcher loads the picture for a YYYY-MM-DD date.
type Fetcher interface {
	Picture(ctx context.Context, date string) (*domain.Picture, error)
}

type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
	Warn(msg string)
}

type Gallery struct {
	fetcher Fetcher
	nav     *calendar.Navigator
	favs    *favorites.Store
	notify  Notifier
	logger  logrus.FieldLogger

	mu        sync.Mutex
	display   Display
	requestID string
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(fetcher Fetcher, nav *calendar.Navigator, favs *favorites.Store, notify Notifier, logger logrus.FieldLogger) *Gallery {
	if logger == nil {
		logger = logrus.New()
	}
	done := make(chan struct{})
	close(done)
	return &Gallery{
		fetcher: fetcher,
		nav:     nav,
		favs:    favs,
		notify:  notify,
		logger:  logger,
		done:    done,
	}
}

// Display returns the current display state.
func (g *Gallery) Display() Display {
	g.mu.Lock()
	d := g.display
	g.mu.Unlock()

	if d.Picture != nil {
		pic := *d.Picture
		d.Picture = &pic
		d.Favorite = g.favs.IsFavorite(pic.Date)
	}
	return d
}

// Load fetches the picture for the navigator's cursor.
func (g *Gallery) Load(ctx context.Context) {
	g.fetch(ctx, g.nav.Cursor())
}

func (g *Gallery) Navigate(ctx context.Context, delta int) (calendar.Outcome, error) {
	out, err := g.nav.Navigate(delta)
	if err != nil {
		return out, err
	}
	g.apply(ctx, out)
	return out, nil
}

func (g *Gallery) GoToToday(ctx context.Context) calendar.Outcome {
	out := g.nav.GoToToday()
	g.apply(ctx, out)
	return out
}

func (g *Gallery) Select(ctx context.Context, d calendar.Date) calendar.Outcome {
	out := g.nav.Select(d)
	g.apply(ctx, out)
	return out
}

// SelectRecent jumps to the i-th entry of the recency list.
func (g *Gallery) SelectRecent(ctx context.Context, i int) (calendar.Outcome, bool) {
	d, ok := g.nav.RecentAt(i)
	if !ok {
		return calendar.Outcome{Cursor: g.nav.Cursor()}, false
	}
	return g.Select(ctx, d), true
}

func (g *Gallery) apply(ctx context.Context, out calendar.Outcome) {
	if out.Warning != "" {
		g.notify.Warn(out.Warning)
	}
	if out.Info != "" {
		g.notify.Success(out.Info)
	}
	if out.Changed {
		g.fetch(ctx, out.Cursor)
	}
}

// Retry refetches the cursor after a failed load. It reports whether a fetch started.
func (g *Gallery) Retry(ctx context.Context) bool {
	g.mu.Lock()
	kind := g.display.Kind
	g.mu.Unlock()
	if kind != KindError {
		return false
	}
	g.fetch(ctx, g.nav.Cursor())
	return true
}

// ToggleFavorite saves or removes the displayed picture. A non-nil error with
// saved set is a persistence warning; the toggle itself happened.
func (g *Gallery) ToggleFavorite(ctx context.Context) (saved bool, err error) {
	d := g.Display()
	if d.Kind != KindContent || d.Picture == nil {
		return false, ErrNothingDisplayed
	}
	saved, err = g.favs.Toggle(ctx, favorites.EntryFor(*d.Picture))
	if saved {
		g.notify.Success("Saved to favorites!")
	} else {
		g.notify.Success("Removed from favorites")
	}
	return saved, err
}

// Await blocks until the latest fetch settles or ctx ends.
func (g *Gallery) Await(ctx context.Context) error {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fetch supersedes any in-flight request; its result, if it still arrives, is dropped.
func (g *Gallery) fetch(ctx context.Context, date calendar.Date) {
	fctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	done := make(chan struct{})

	g.mu.Lock()
	if g.cancel != nil {
		g.cancel()
	}
	g.requestID = id
	g.cancel = cancel
	g.done = done
	g.display = Display{Kind: KindLoading, Date: date}
	g.mu.Unlock()

	logger := g.logger.WithFields(logrus.Fields{"date": date.String(), "request_id": id})
	logger.Debug("fetching picture")

	go func() {
		defer close(done)
		defer cancel()

		pic, err := g.fetcher.Picture(fctx, date.String())
		g.settle(logger, id, date, pic, err)
	}()
}

func (g *Gallery) settle(logger logrus.FieldLogger, id string, date calendar.Date, pic *domain.Picture, err error) {
	g.mu.Lock()
	if g.requestID != id {
		g.mu.Unlock()
		logger.Debug("discarding stale response")
		return
	}

	var (
		next    Display
		record  bool
		failure string
	)
	switch {
	case err == nil && pic != nil && pic.URL != "" && pic.Date != "":
		next = Display{Kind: KindContent, Date: date, Picture: pic}
		record = true
	case err == nil:
		next = Display{Kind: KindError, Date: date, Message: fmt.Sprintf("Unexpected response for %s.", date.Long())}
	case errors.Is(err, api.ErrNoEntry):
		next = Display{Kind: KindNotFound, Date: date, Message: fmt.Sprintf("No picture found for %s. It may not be available yet.", date.Long())}
	default:
		failure = fmt.Sprintf("Could not load the picture for %s. Try again.", date.Long())
		next = Display{Kind: KindError, Date: date, Message: failure}
	}
	g.display = next
	g.cancel = nil
	g.mu.Unlock()

	if record {
		recorded := date
		if d, perr := calendar.Parse(pic.Date); perr == nil {
			recorded = d
		}
		g.nav.Record(recorded)
		logger.Debugf("picture loaded: %q", pic.Title)
	}
	if failure != "" {
		logger.WithError(err).Warn("picture fetch failed")
		g.notify.Error(failure)
	}
}
