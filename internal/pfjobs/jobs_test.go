package pfjobs

import (
	"context"
	"errors"
	"path/filepath"
	"portfolio/internal/models/pfcontacts"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	n     int64
	err   error
	since time.Time
}

func (f *fakeCounter) CountSince(ctx context.Context, t time.Time) (int64, error) {
	f.since = t
	return f.n, f.err
}

type brokenStore struct{ pfcontacts.Store }

func (brokenStore) Stats(ctx context.Context) (pfcontacts.Stats, error) {
	return pfcontacts.Stats{}, errors.New("boom")
}

func newContactStore(t *testing.T, now time.Time, names ...string) pfcontacts.Store {
	store := pfcontacts.NewFileStore(filepath.Join(t.TempDir(), "contacts.json")).
		WithClock(func() time.Time { return now })
	for _, name := range names {
		c, err := pfcontacts.New(name, name+"@example.com", "hi", "ua", "ip")
		require.NoError(t, err)
		require.NoError(t, store.Create(context.Background(), c))
	}
	return store
}

func TestDigestRun(t *testing.T) {
	now := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	counter := &fakeCounter{n: 42}
	d := NewDigest(counter, newContactStore(t, now, "a", "b")).
		WithClock(func() time.Time { return now })

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.PageViews)
	assert.Equal(t, int64(2), res.ContactsToday)
	assert.Equal(t, int64(2), res.ContactsTotal)
	assert.Equal(t, now.Add(-24*time.Hour), counter.since)
	assert.NoError(t, res.PageViewsError)
}

func TestDigestWithoutDatabase(t *testing.T) {
	d := NewDigest(nil, newContactStore(t, time.Now().UTC(), "a"))

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.PageViews)
	assert.Equal(t, int64(1), res.ContactsTotal)
}

func TestDigestErrors(t *testing.T) {
	d := NewDigest(&fakeCounter{err: errors.New("db down")}, newContactStore(t, time.Now().UTC()))
	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.EqualError(t, res.PageViewsError, "db down")

	d = NewDigest(nil, brokenStore{})
	_, err = d.Run(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestNewScheduler(t *testing.T) {
	d := NewDigest(nil, newContactStore(t, time.Now().UTC()))

	s, err := NewScheduler("0 7 * * *", d)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Jobs())

	s, err = NewScheduler("", d)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Jobs())

	_, err = NewScheduler("not a cron", d)
	assert.Error(t, err)
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler("@every 1h", NewDigest(nil, newContactStore(t, time.Now().UTC())))
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err())
}
