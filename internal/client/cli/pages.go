package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"apod-explorer/internal/client/gallery"
	"apod-explorer/internal/client/session"
)

// maxRedirects bounds page chains such as guard -> login.
const maxRedirects = 4

// render shows the current page, following navigations the page itself triggers.
func (a *App) render(ctx context.Context) {
	for i := 0; i < maxRedirects; i++ {
		a.renderPage(ctx, a.router.Current())
		if !a.router.takeChanged() {
			return
		}
	}
}

func (a *App) renderPage(ctx context.Context, path string) {
	switch path {
	case session.PathHome:
		a.homePage(ctx)
	case session.PathDashboard:
		if a.session.Guard(path) {
			a.dashboardPage()
		}
	case session.PathProfile:
		if a.session.Guard(path) {
			a.profileEditPage(ctx)
		}
	case session.PathLogin:
		fmt.Fprintln(a.out, "== Log in ==")
		if a.session.State().Authenticated() {
			fmt.Fprintln(a.out, "You are already logged in. Type 'profile' for your dashboard.")
			return
		}
		fmt.Fprintln(a.out, "Type 'login' to sign in or 'register' to create an account.")
	case session.PathRegister:
		fmt.Fprintln(a.out, "== Create an account ==")
		fmt.Fprintln(a.out, "Type 'register' to sign up.")
	default:
		fmt.Fprintf(a.out, "404: page %s not found. Type 'open /' to go home.\n", path)
	}
}

func (a *App) homePage(ctx context.Context) {
	fmt.Fprintln(a.out, "== Astronomy Picture of the Day ==")
	if a.gallery.Display().Kind == gallery.KindIdle {
		a.gallery.Load(ctx)
		a.awaitPicture(ctx)
	}
	a.printDisplay()
}

func (a *App) printDisplay() {
	d := a.gallery.Display()
	switch d.Kind {
	case gallery.KindLoading:
		fmt.Fprintf(a.out, "Loading %s...\n", d.Date.Long())
	case gallery.KindContent:
		pic := d.Picture
		star := ""
		if d.Favorite {
			star = " *"
		}
		fmt.Fprintf(a.out, "%s%s\n%s | %s\n", pic.Title, star, d.Date.Long(), pic.MediaType)
		fmt.Fprintln(a.out, pic.BestURL())
		if pic.Copyright != "" {
			fmt.Fprintf(a.out, "(c) %s\n", strings.TrimSpace(pic.Copyright))
		}
		if pic.Explanation != "" {
			fmt.Fprintf(a.out, "\n%s\n", pic.Explanation)
		}
	case gallery.KindNotFound:
		fmt.Fprintf(a.out, "i %s\n", d.Message)
	case gallery.KindError:
		fmt.Fprintf(a.out, "! %s Type 'retry' to try again.\n", d.Message)
	default:
		fmt.Fprintln(a.out, "Nothing loaded yet.")
	}
}

func (a *App) dashboardPage() {
	user := a.session.State().User
	fmt.Fprintln(a.out, "== Dashboard ==")
	if user == nil {
		fmt.Fprintln(a.out, "Your profile could not be loaded.")
		return
	}
	name := user.Name
	if name == "" {
		name, _, _ = strings.Cut(user.Email, "@")
	}
	fmt.Fprintf(a.out, "Welcome back, %s!\n", name)
	fmt.Fprintf(a.out, "  Email:        %s\n", user.Email)
	if joined, err := time.Parse(time.RFC3339, user.CreatedAt); err == nil {
		fmt.Fprintf(a.out, "  Member since: %s\n", joined.Format("January 2, 2006"))
	}
	if user.AvatarURL != "" {
		fmt.Fprintf(a.out, "  Avatar:       %s\n", user.AvatarURL)
	}
	fmt.Fprintf(a.out, "  Favorites:    %d\n", a.favs.Len())
	fmt.Fprintln(a.out, "Type 'edit' to change your profile or 'delete' to remove your account.")
}

func (a *App) profileEditPage(ctx context.Context) {
	fmt.Fprintln(a.out, "== Edit profile ==")
	current := ""
	if u := a.session.State().User; u != nil {
		current = u.Name
	}

	name, err := a.in.line(fmt.Sprintf("Name [%s]: ", current))
	if err != nil {
		return
	}
	if name == "" {
		name = current
	}
	fmt.Fprintln(a.out, "Leave the password blank to keep the current one.")
	password, err := a.in.password("New password: ")
	if err != nil {
		return
	}
	confirm := ""
	if password != "" {
		if confirm, err = a.in.password("Confirm new password: "); err != nil {
			return
		}
	}

	err = a.session.UpdateProfile(ctx, session.ProfileForm{Name: name, Password: password, ConfirmPassword: confirm})
	switch {
	case err == nil:
		a.router.Navigate(session.PathDashboard, session.NavOptions{})
	case errors.Is(err, session.ErrPasswordMismatch), errors.Is(err, session.ErrPasswordTooShort):
		a.toasts.Error(err.Error())
	case errors.Is(err, session.ErrBusy):
		a.toasts.Warn(err.Error())
	}
}

func (a *App) login(ctx context.Context) {
	email, err := a.in.line("Email: ")
	if err != nil {
		return
	}
	password, err := a.in.password("Password: ")
	if err != nil {
		return
	}
	if err := a.session.Login(ctx, email, password); errors.Is(err, session.ErrBusy) {
		a.toasts.Warn(err.Error())
	}
}

func (a *App) register(ctx context.Context) {
	name, err := a.in.line("Name (optional): ")
	if err != nil {
		return
	}
	email, err := a.in.line("Email: ")
	if err != nil {
		return
	}
	password, err := a.in.password("Password: ")
	if err != nil {
		return
	}
	if err := a.session.Register(ctx, email, password, name); errors.Is(err, session.ErrBusy) {
		a.toasts.Warn(err.Error())
	}
}

func (a *App) deleteAccount(ctx context.Context) {
	if !a.session.Guard(session.PathDashboard) {
		return
	}
	err := a.session.DeleteAccount(ctx, func() bool {
		return a.in.confirm("Delete your account permanently? This cannot be undone.")
	})
	switch {
	case errors.Is(err, session.ErrNotConfirmed):
		a.toasts.Info("Account deletion cancelled.")
	case errors.Is(err, session.ErrBusy):
		a.toasts.Warn(err.Error())
	}
}
