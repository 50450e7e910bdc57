package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apod-explorer/internal/calendar"
	"apod-explorer/internal/client/api"
	"apod-explorer/internal/client/favorites"
	"apod-explorer/internal/client/localstore"
	"apod-explorer/internal/domain"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string]error
	blockOn map[string]chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{errs: map[string]error{}, blockOn: map[string]chan struct{}{}}
}

func (f *fakeFetcher) Picture(ctx context.Context, date string) (*domain.Picture, error) {
	f.mu.Lock()
	f.calls = append(f.calls, date)
	block := f.blockOn[date]
	err := f.errs[date]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &domain.Picture{
		Title:     "Picture of " + date,
		Date:      date,
		URL:       "https://apod.example/" + date + ".jpg",
		MediaType: domain.MediaTypeImage,
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	mu     sync.Mutex
	errors []string
	infos  []string
	oks    []string
	warns  []string
}

func (n *fakeNotifier) Success(msg string) { n.mu.Lock(); n.oks = append(n.oks, msg); n.mu.Unlock() }
func (n *fakeNotifier) Error(msg string)   { n.mu.Lock(); n.errors = append(n.errors, msg); n.mu.Unlock() }
func (n *fakeNotifier) Info(msg string)    { n.mu.Lock(); n.infos = append(n.infos, msg); n.mu.Unlock() }
func (n *fakeNotifier) Warn(msg string)    { n.mu.Lock(); n.warns = append(n.warns, msg); n.mu.Unlock() }

type fixture struct {
	gallery *Gallery
	fetcher *fakeFetcher
	nav     *calendar.Navigator
	favs    *favorites.Store
	toasts  *fakeNotifier
}

func newFixture(t *testing.T, today calendar.Date) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	favs, err := favorites.Load(context.Background(), localstore.NewMemoryStore(), logger)
	require.NoError(t, err)

	f := &fixture{
		fetcher: newFakeFetcher(),
		nav:     calendar.NewNavigator(calendar.FixedClock(today)),
		favs:    favs,
		toasts:  &fakeNotifier{},
	}
	f.gallery = New(f.fetcher, f.nav, f.favs, f.toasts, logger)
	return f
}

func (f *fixture) await(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.gallery.Await(ctx))
}

func TestLoadShowsContentAndRecords(t *testing.T) {
	today := calendar.New(2024, time.May, 5)
	f := newFixture(t, today)
	ctx := context.Background()

	assert.Equal(t, KindIdle, f.gallery.Display().Kind)
	f.gallery.Load(ctx)
	f.await(t)

	d := f.gallery.Display()
	assert.Equal(t, KindContent, d.Kind)
	require.NotNil(t, d.Picture)
	assert.Equal(t, "2024-05-05", d.Picture.Date)
	assert.Equal(t, []calendar.Date{today}, f.nav.State().Recent)
}

func TestScenarioPrevNextNext(t *testing.T) {
	today := calendar.New(2024, time.May, 5)
	f := newFixture(t, today)
	ctx := context.Background()
	f.gallery.Load(ctx)
	f.await(t)

	_, err := f.gallery.Navigate(ctx, -1)
	require.NoError(t, err)
	f.await(t)
	assert.Equal(t, "2024-05-04", f.gallery.Display().Date.String())

	_, err = f.gallery.Navigate(ctx, 1)
	require.NoError(t, err)
	f.await(t)
	assert.Equal(t, "2024-05-05", f.gallery.Display().Date.String())
	calls := f.fetcher.callCount()

	out, err := f.gallery.Navigate(ctx, 1)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, calls, f.fetcher.callCount(), "no fetch at today")
	assert.Equal(t, []string{calendar.WarnFutureDate}, f.toasts.warns)
	assert.Empty(t, f.toasts.errors)
	assert.Equal(t, []string{"2024-05-05", "2024-05-04", "2024-05-05"}, f.fetcher.calls)
	assert.Equal(t, []calendar.Date{today, today.AddDays(-1)}, f.nav.State().Recent)
}

func TestNoEntryIsInformational(t *testing.T) {
	f := newFixture(t, calendar.New(2024, time.May, 5))
	f.fetcher.errs["2024-05-05"] = fmt.Errorf("%w: %w", api.ErrNoEntry, &api.ResponseError{Status: 404})
	f.fetcher.errs["2024-05-04"] = errors.New("connection refused")
	ctx := context.Background()

	f.gallery.Load(ctx)
	f.await(t)
	notFound := f.gallery.Display()
	assert.Equal(t, KindNotFound, notFound.Kind)
	assert.Contains(t, notFound.Message, "No picture found for Sunday, May 5, 2024")
	assert.Empty(t, f.toasts.errors)
	assert.Empty(t, f.nav.State().Recent)
	assert.False(t, f.gallery.Retry(ctx))

	_, _ = f.gallery.Navigate(ctx, -1)
	f.await(t)
	failed := f.gallery.Display()
	assert.Equal(t, KindError, failed.Kind)
	assert.NotEqual(t, notFound.Kind, failed.Kind)
	assert.Len(t, f.toasts.errors, 1)
}

func TestRetryAfterError(t *testing.T) {
	f := newFixture(t, calendar.New(2024, time.May, 5))
	f.fetcher.errs["2024-05-05"] = errors.New("timeout")
	ctx := context.Background()

	f.gallery.Load(ctx)
	f.await(t)
	require.Equal(t, KindError, f.gallery.Display().Kind)

	f.fetcher.mu.Lock()
	delete(f.fetcher.errs, "2024-05-05")
	f.fetcher.mu.Unlock()

	require.True(t, f.gallery.Retry(ctx))
	f.await(t)
	assert.Equal(t, KindContent, f.gallery.Display().Kind)
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	f := newFixture(t, calendar.New(2024, time.May, 5))
	release := make(chan struct{})
	f.fetcher.blockOn["2024-05-05"] = release
	ctx := context.Background()

	f.gallery.Load(ctx)
	assert.Equal(t, KindLoading, f.gallery.Display().Kind)

	_, err := f.gallery.Navigate(ctx, -1)
	require.NoError(t, err)
	f.await(t)
	close(release)

	d := f.gallery.Display()
	assert.Equal(t, KindContent, d.Kind)
	assert.Equal(t, "2024-05-04", d.Picture.Date)
	assert.Equal(t, []calendar.Date{calendar.New(2024, time.May, 4)}, f.nav.State().Recent)
	assert.Empty(t, f.toasts.errors)
}

func TestSelectAndGoToToday(t *testing.T) {
	today := calendar.New(2024, time.May, 5)
	f := newFixture(t, today)
	ctx := context.Background()
	f.gallery.Load(ctx)
	f.await(t)

	out := f.gallery.Select(ctx, today.AddDays(3))
	assert.False(t, out.Changed)

	out = f.gallery.Select(ctx, calendar.New(2020, time.January, 1))
	require.True(t, out.Changed)
	f.await(t)

	out, ok := f.gallery.SelectRecent(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, today, out.Cursor)
	f.await(t)

	_, ok = f.gallery.SelectRecent(ctx, 9)
	assert.False(t, ok)

	f.gallery.Select(ctx, calendar.New(2020, time.January, 2))
	f.await(t)
	out = f.gallery.GoToToday(ctx)
	assert.True(t, out.Changed)
	f.await(t)
	assert.Contains(t, f.toasts.oks, calendar.InfoToday)
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t, calendar.New(2024, time.May, 5))
	ctx := context.Background()

	_, err := f.gallery.ToggleFavorite(ctx)
	assert.ErrorIs(t, err, ErrNothingDisplayed)

	f.gallery.Load(ctx)
	f.await(t)

	saved, err := f.gallery.ToggleFavorite(ctx)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.True(t, f.gallery.Display().Favorite)

	saved, err = f.gallery.ToggleFavorite(ctx)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.False(t, f.gallery.Display().Favorite)
}
