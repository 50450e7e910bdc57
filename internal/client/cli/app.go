// Package cli is the terminal front end: a small router of pages driven by a
// read-eval-print loop.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"apod-explorer/internal/calendar"
	"apod-explorer/internal/client/favorites"
	"apod-explorer/internal/client/gallery"
	"apod-explorer/internal/client/session"
	"apod-explorer/internal/domain"
	"apod-explorer/internal/storage"
)

// Archiver stores the displayed picture remotely. Nil disables the archive command.
type Archiver interface {
	Archive(ctx context.Context, pic domain.Picture, progress func(done, total int64)) (*storage.Archived, error)
}

type Config struct {
	Session   *session.Client
	Gallery   *gallery.Gallery
	Navigator *calendar.Navigator
	Favorites *favorites.Store
	Router    *Router
	Toaster   *Toaster
	Archiver  Archiver
	In        io.Reader
	Out       io.Writer
	Logger    logrus.FieldLogger
}

type App struct {
	session  *session.Client
	gallery  *gallery.Gallery
	nav      *calendar.Navigator
	favs     *favorites.Store
	router   *Router
	toasts   *Toaster
	archiver Archiver
	in       *prompter
	out      io.Writer
	logger   logrus.FieldLogger
}

func NewApp(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &App{
		session:  cfg.Session,
		gallery:  cfg.Gallery,
		nav:      cfg.Navigator,
		favs:     cfg.Favorites,
		router:   cfg.Router,
		toasts:   cfg.Toaster,
		archiver: cfg.Archiver,
		in:       newPrompter(cfg.In, cfg.Out),
		out:      cfg.Out,
		logger:   cfg.Logger,
	}
}

// Run resolves the session, shows the first page and serves commands until
// exit, end of input or ctx cancellation.
func (a *App) Run(ctx context.Context) error {
	a.session.Bootstrap(ctx)
	a.router.takeChanged()
	a.render(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := a.in.line(a.prompt())
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return err
		}
		if !a.exec(ctx, line) {
			fmt.Fprintln(a.out, "Bye!")
			return nil
		}
	}
}

func (a *App) prompt() string {
	s := a.session.State()
	if s.User != nil {
		return fmt.Sprintf("apod %s (%s)> ", a.router.Current(), s.User.Email)
	}
	return fmt.Sprintf("apod %s> ", a.router.Current())
}

// exec runs one command line. It returns false when the loop should stop.
func (a *App) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help", "?":
		a.help()
	case "open":
		if len(args) != 1 {
			a.toasts.Error("usage: open <path>")
			break
		}
		a.router.Navigate(args[0], session.NavOptions{})
	case "back":
		if !a.router.Back() {
			a.toasts.Info("Already at the first page.")
		}
	case "login":
		a.login(ctx)
	case "register":
		a.register(ctx)
	case "logout":
		a.session.Logout(ctx)
	case "profile":
		a.router.Navigate(session.PathDashboard, session.NavOptions{})
	case "edit":
		a.router.Navigate(session.PathProfile, session.NavOptions{})
	case "delete":
		a.deleteAccount(ctx)
	case "prev", "p":
		a.view(ctx, func() { a.step(ctx, -1) })
	case "next", "n":
		a.view(ctx, func() { a.step(ctx, 1) })
	case "today":
		a.view(ctx, func() { a.gallery.GoToToday(ctx) })
	case "date":
		a.selectDate(ctx, args)
	case "history":
		a.history()
	case "recent":
		a.recent(ctx, args)
	case "fav":
		a.toggleFavorite(ctx)
	case "favs":
		a.listFavorites()
	case "retry":
		a.view(ctx, func() {
			if !a.gallery.Retry(ctx) {
				a.toasts.Info("Nothing to retry.")
			}
		})
	case "archive":
		a.archive(ctx)
	case "exit", "quit":
		return false
	default:
		a.toasts.Error("Unknown command: " + cmd + " (type help)")
	}

	if a.router.takeChanged() {
		a.render(ctx)
	}
	return true
}

func (a *App) help() {
	fmt.Fprint(a.out, `Pages:    open <path> (/, /dashboard, /profile/edit, /login, /register), back
Account:  login, register, logout, profile, edit, delete
Pictures: prev, next, today, date <YYYY-MM-DD>, history, recent <n>, retry
Saved:    fav, favs, archive
Other:    help, exit
`)
}

func (a *App) step(ctx context.Context, delta int) {
	if _, err := a.gallery.Navigate(ctx, delta); err != nil {
		a.toasts.Error(err.Error())
	}
}

func (a *App) selectDate(ctx context.Context, args []string) {
	if len(args) != 1 {
		a.toasts.Error("usage: date <YYYY-MM-DD>")
		return
	}
	d, err := calendar.Parse(args[0])
	if err != nil {
		a.toasts.Error("Invalid date format, expected YYYY-MM-DD.")
		return
	}
	a.view(ctx, func() { a.gallery.Select(ctx, d) })
}

func (a *App) recent(ctx context.Context, args []string) {
	if len(args) != 1 {
		a.toasts.Error("usage: recent <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		a.toasts.Error("usage: recent <n>, n starts at 1")
		return
	}
	a.view(ctx, func() {
		if _, ok := a.gallery.SelectRecent(ctx, n-1); !ok {
			a.toasts.Error(fmt.Sprintf("No recent date #%d.", n))
		}
	})
}

// view runs a picture action on the home page and shows the settled result.
func (a *App) view(ctx context.Context, action func()) {
	if a.router.Current() != session.PathHome {
		a.router.Navigate(session.PathHome, session.NavOptions{})
	}
	action()
	a.awaitPicture(ctx)
	if !a.router.takeChanged() {
		a.printDisplay()
		return
	}
	a.render(ctx)
}

func (a *App) awaitPicture(ctx context.Context) {
	if err := a.gallery.Await(ctx); err != nil {
		a.logger.WithError(err).Debug("wait for picture")
	}
}

func (a *App) history() {
	if !a.nav.ToggleHistory() {
		fmt.Fprintln(a.out, "History hidden.")
		return
	}
	recent := a.nav.State().Recent
	if len(recent) == 0 {
		fmt.Fprintln(a.out, "No pictures viewed yet.")
		return
	}
	fmt.Fprintln(a.out, "Recently viewed:")
	for i, d := range recent {
		fmt.Fprintf(a.out, "  %d. %s\n", i+1, d.Long())
	}
}

func (a *App) toggleFavorite(ctx context.Context) {
	_, err := a.gallery.ToggleFavorite(ctx)
	switch {
	case errors.Is(err, gallery.ErrNothingDisplayed):
		a.toasts.Info("Load a picture first.")
	case err != nil:
		a.toasts.Warn(err.Error())
	}
}

func (a *App) listFavorites() {
	entries := a.favs.List()
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No favorites saved yet. Use 'fav' on a picture you like.")
		return
	}
	fmt.Fprintf(a.out, "Your saved favorites (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(a.out, "  %s  %s [%s]\n", e.Date, e.Title, e.MediaType)
	}
}

func (a *App) archive(ctx context.Context) {
	if a.archiver == nil {
		a.toasts.Info("Archiving is disabled: no bucket configured.")
		return
	}
	d := a.gallery.Display()
	if d.Kind != gallery.KindContent || d.Picture == nil {
		a.toasts.Info("Load a picture first.")
		return
	}

	res, err := a.archiver.Archive(ctx, *d.Picture, func(done, total int64) {
		if total > 0 {
			fmt.Fprintf(a.out, "\r  uploading %d/%d bytes", done, total)
		}
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotImage) {
			a.toasts.Info("Only images can be archived.")
			return
		}
		a.logger.WithError(err).Warn("archive picture")
		a.toasts.Error("Could not archive the picture.")
		return
	}
	if res.Existing {
		a.toasts.Info("Already archived at " + res.Location)
	} else {
		fmt.Fprintln(a.out)
		a.toasts.Success("Archived to " + res.Location)
	}
	fmt.Fprintf(a.out, "Share link: %s\n", res.URL)
}
