// Package session owns the client's authentication lifecycle: the token, the
// signed-in profile and the pending action, published as immutable snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"apod-explorer/internal/client/api"
	"apod-explorer/internal/client/localstore"
)

// Well-known routes.
const (
	PathHome      = "/"
	PathDashboard = "/dashboard"
	PathLogin     = "/login"
	PathRegister  = "/register"
	PathProfile   = "/profile/edit"
)

// MinPasswordLength mirrors the server's rule so bad input never leaves the client.
const MinPasswordLength = 6

var (
	// ErrBusy is returned when another session action is still pending.
	ErrBusy = errors.New("another account action is in progress")
	// ErrNothingToUpdate is returned when the profile form holds no changes.
	ErrNothingToUpdate = errors.New("no changes to save")
	// ErrNotConfirmed is returned when the user declined account deletion.
	ErrNotConfirmed = errors.New("account deletion not confirmed")

	ErrPasswordTooShort = fmt.Errorf("new password must be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch = errors.New("new passwords do not match")
)

type Pending int

const (
	PendingNone Pending = iota
	PendingAuthenticating
	PendingProfileUpdating
	PendingDeleting
)

func (p Pending) String() string {
	switch p {
	case PendingAuthenticating:
		return "authenticating"
	case PendingProfileUpdating:
		return "profileUpdating"
	case PendingDeleting:
		return "deleting"
	default:
		return "none"
	}
}

// State is one immutable snapshot. User is non-nil only while Token is set and
// has been validated by the server.
type State struct {
	Token               string
	User                *api.Profile
	InitialLoadComplete bool
	Pending             Pending
	LastError           string
}

// Authenticated reports whether a token is held.
func (s State) Authenticated() bool { return s.Token != "" }

// NavOptions control a navigation.
type NavOptions struct {
	Replace bool
	// From is the location a guard redirect came from.
	From string
}

// Navigator is the router the session drives.
type Navigator interface {
	Navigate(path string, opts NavOptions)
	// ReturnTo is the From of the current location, empty when none was recorded.
	ReturnTo() string
}

// Notifier shows toasts.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
	Warn(msg string)
}

// API is the subset of the server API the session uses.
type API interface {
	SetToken(token string)
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, email, password, name string) (string, error)
	Profile(ctx context.Context, token string) (*api.Profile, error)
	UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*api.ProfilePatch, error)
	DeleteAccount(ctx context.Context) (string, error)
}

type ProfileForm struct {
	Name            string
	Password        string
	ConfirmPassword string
}

// Client is the process-wide session. Create one and share it.
type Client struct {
	api    API
	store  localstore.Store
	nav    Navigator
	notify Notifier
	logger logrus.FieldLogger

	mu    sync.Mutex
	state atomic.Pointer[State]
	boot  sync.Once
}

func NewClient(apiClient API, store localstore.Store, nav Navigator, notify Notifier, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Client{api: apiClient, store: store, nav: nav, notify: notify, logger: logger}
	c.state.Store(&State{})
	return c
}

// State returns the current snapshot.
func (c *Client) State() State {
	return *c.state.Load()
}

func (c *Client) update(fn func(State) State) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := fn(*c.state.Load())
	c.state.Store(&next)
	return next
}

// begin marks p pending, failing with ErrBusy when another action holds the slot.
func (c *Client) begin(p Pending) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := *c.state.Load()
	if cur.Pending != PendingNone {
		return ErrBusy
	}
	cur.Pending = p
	cur.LastError = ""
	c.state.Store(&cur)
	return nil
}

func (c *Client) fail(msg string) {
	c.update(func(s State) State {
		s.Pending = PendingNone
		s.LastError = msg
		return s
	})
	c.notify.Error("Error: " + msg)
}

// expire signs the client out after the server rejected the held token.
func (c *Client) expire(ctx context.Context, err error) {
	c.logger.WithError(err).Info("token rejected, signing out")
	c.clear(ctx)
	msg := api.Message(err, "session expired")
	c.update(func(s State) State {
		s.Pending = PendingNone
		s.LastError = msg
		return s
	})
	c.notify.Error("Your session has expired. Please log in again.")
	c.nav.Navigate(PathLogin, NavOptions{Replace: true})
}

// Bootstrap resolves the persisted token, if any, before anything renders.
// Later calls are no-ops.
func (c *Client) Bootstrap(ctx context.Context) {
	c.boot.Do(func() { c.bootstrap(ctx) })
}

func (c *Client) bootstrap(ctx context.Context) {
	defer c.update(func(s State) State {
		s.InitialLoadComplete = true
		return s
	})

	raw, ok, err := c.store.Get(ctx, localstore.KeyAuthToken)
	if err != nil {
		c.logger.WithError(err).Warn("read persisted token")
		c.notify.Warn(localstore.Warn("read", localstore.KeyAuthToken, err).Error())
		return
	}
	token := strings.TrimSpace(string(raw))
	if !ok || token == "" {
		c.logger.Debug("no persisted token, starting anonymous")
		return
	}

	profile, err := c.api.Profile(ctx, token)
	switch {
	case err == nil:
		c.api.SetToken(token)
		c.update(func(s State) State {
			s.Token = token
			s.User = profile
			s.LastError = ""
			return s
		})
		c.logger.WithField("user_id", profile.ID).Info("session restored")
	case api.IsUnauthorized(err):
		c.logger.WithError(err).Info("persisted token rejected")
		c.clear(ctx)
		c.nav.Navigate(PathLogin, NavOptions{Replace: true})
	default:
		// fail closed in memory; the persisted token is kept for the next start
		c.logger.WithError(err).Warn("could not verify session")
		c.update(func(s State) State {
			s.Token = ""
			s.User = nil
			s.LastError = "could not verify session"
			return s
		})
		c.notify.Error("Could not verify your session.")
	}
}

// Login authenticates and resolves the profile. Nothing is persisted or
// published unless both steps succeed.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if err := c.begin(PendingAuthenticating); err != nil {
		return err
	}

	token, err := c.api.Login(ctx, email, password)
	if err == nil {
		var profile *api.Profile
		profile, err = c.api.Profile(ctx, token)
		if err == nil {
			c.establish(ctx, token, profile)
			return nil
		}
		if api.IsUnauthorized(err) {
			// a fresh token was refused; drop whatever session was held before
			c.clear(ctx)
		}
	}

	c.logger.WithError(err).Warn("login failed")
	c.fail(api.Message(err, "invalid credentials"))
	return err
}

func (c *Client) establish(ctx context.Context, token string, profile *api.Profile) {
	if err := c.store.Set(ctx, localstore.KeyAuthToken, []byte(token)); err != nil {
		c.logger.WithError(err).Warn("persist token")
		c.notify.Warn(localstore.Warn("write", localstore.KeyAuthToken, err).Error())
	}
	c.api.SetToken(token)
	c.update(func(s State) State {
		s.Token = token
		s.User = profile
		s.Pending = PendingNone
		s.LastError = ""
		return s
	})
	c.logger.WithField("user_id", profile.ID).Info("logged in")
	c.notify.Success("Welcome back!")

	dest := c.nav.ReturnTo()
	if dest == "" {
		dest = PathDashboard
	}
	c.nav.Navigate(dest, NavOptions{Replace: true})
}

// Register creates an account without signing in.
func (c *Client) Register(ctx context.Context, email, password, name string) error {
	if err := c.begin(PendingAuthenticating); err != nil {
		return err
	}

	if _, err := c.api.Register(ctx, email, password, name); err != nil {
		c.logger.WithError(err).Warn("registration failed")
		c.fail(api.Message(err, "registration failed"))
		return err
	}

	c.update(func(s State) State {
		s.Pending = PendingNone
		return s
	})
	c.notify.Success("Registration successful! Please log in.")
	c.nav.Navigate(PathLogin, NavOptions{})
	return nil
}

// Logout always succeeds.
func (c *Client) Logout(ctx context.Context) {
	c.clear(ctx)
	c.notify.Success("You have been logged out.")
	c.nav.Navigate(PathLogin, NavOptions{Replace: true})
}

func (c *Client) clear(ctx context.Context) {
	if err := c.store.Delete(ctx, localstore.KeyAuthToken); err != nil {
		c.logger.WithError(err).Warn("remove persisted token")
	}
	c.api.SetToken("")
	c.update(func(s State) State {
		s.Token = ""
		s.User = nil
		s.LastError = ""
		return s
	})
}

// UpdateProfile validates the form locally and sends only what changed.
func (c *Client) UpdateProfile(ctx context.Context, form ProfileForm) error {
	if form.Password != "" {
		if form.Password != form.ConfirmPassword {
			c.update(func(s State) State { s.LastError = ErrPasswordMismatch.Error(); return s })
			return ErrPasswordMismatch
		}
		if utf8.RuneCountInString(form.Password) < MinPasswordLength {
			c.update(func(s State) State { s.LastError = ErrPasswordTooShort.Error(); return s })
			return ErrPasswordTooShort
		}
	}

	current := c.State()
	var update api.ProfileUpdate
	if name := strings.TrimSpace(form.Name); name != "" && (current.User == nil || name != current.User.Name) {
		update.Name = &name
	}
	if form.Password != "" {
		password := form.Password
		update.Password = &password
	}
	if update.Name == nil && update.Password == nil {
		c.notify.Info("No changes to save.")
		return ErrNothingToUpdate
	}

	if err := c.begin(PendingProfileUpdating); err != nil {
		return err
	}

	patch, err := c.api.UpdateProfile(ctx, update)
	if api.IsUnauthorized(err) {
		c.expire(ctx, err)
		return err
	}
	if err != nil {
		c.logger.WithError(err).Warn("profile update failed")
		c.fail(api.Message(err, "could not update profile"))
		return err
	}

	c.update(func(s State) State {
		var merged api.Profile
		if s.User != nil {
			merged = *s.User
		}
		merged = merged.Apply(*patch)
		s.User = &merged
		s.Pending = PendingNone
		return s
	})
	msg := patch.Msg
	if msg == "" {
		msg = "Profile updated."
	}
	c.notify.Success(msg)
	return nil
}

// DeleteAccount removes the account after confirm returns true, then logs out.
func (c *Client) DeleteAccount(ctx context.Context, confirm func() bool) error {
	if confirm == nil || !confirm() {
		return ErrNotConfirmed
	}
	if err := c.begin(PendingDeleting); err != nil {
		return err
	}

	if _, err := c.api.DeleteAccount(ctx); err != nil {
		if api.IsUnauthorized(err) {
			c.expire(ctx, err)
			return err
		}
		c.logger.WithError(err).Warn("account deletion failed")
		c.fail(api.Message(err, "could not delete account"))
		return err
	}

	c.update(func(s State) State {
		s.Pending = PendingNone
		return s
	})
	c.logger.Info("account deleted")
	c.Logout(ctx)
	return nil
}

// Guard lets path through when a token is held, otherwise redirects to login
// remembering path.
func (c *Client) Guard(path string) bool {
	if c.State().Authenticated() {
		return true
	}
	c.nav.Navigate(PathLogin, NavOptions{Replace: true, From: path})
	return false
}
