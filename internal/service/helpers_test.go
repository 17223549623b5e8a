package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	_ "time/tzdata"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/infra/sqlite"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
	"github.com/aliskhannn/lingua-streak-bot/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db      *sqlx.DB
	tr      *sqlite.Transactor
	pending *storage.PendingStorage
	clock   *fakeClock
	svc     *service.StreakService
}

// day1 is a Monday morning in UTC.
var day1 = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "streak.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &testEnv{
		db:      db,
		tr:      sqlite.NewTransactor(db),
		pending: storage.NewPendingStorage(),
		clock:   &fakeClock{now: day1},
	}
	e.svc = service.NewStreakService(e.tr, e.pending, e.clock, service.DefaultOptions(), zap.NewNop())
	return e
}

func (e *testEnv) user(t *testing.T, id int64, tz string) {
	t.Helper()
	require.NoError(t, e.svc.EnsureUser(context.Background(), entities.NewUser(id, id*100, "learner"), tz))
}

// stack creates a stack with n cards and returns its id and card ids.
func (e *testEnv) stack(t *testing.T, userID int64, n int) (int64, []int64) {
	t.Helper()

	fronts := make([]string, n)
	for i := range fronts {
		fronts[i] = "card"
	}
	view, err := e.svc.CreateStack(context.Background(), userID, "Deck", fronts)
	require.NoError(t, err)

	stack, err := sqlite.NewRepos(e.db).Stacks.Get(context.Background(), userID, view.ID)
	require.NoError(t, err)

	ids := make([]int64, 0, n)
	for _, c := range stack.Cards {
		ids = append(ids, c.ID)
	}
	return view.ID, ids
}

func (e *testEnv) rate(t *testing.T, userID, stackID, cardID int64, r entities.Rating) service.RatingOutcome {
	t.Helper()
	out, err := e.svc.SubmitRating(context.Background(), userID, stackID, cardID, r)
	require.NoError(t, err)
	return out
}

// masterAll rates every card as known and returns the last outcome.
func (e *testEnv) masterAll(t *testing.T, userID, stackID int64, cards []int64) service.RatingOutcome {
	t.Helper()
	var out service.RatingOutcome
	for _, id := range cards {
		out = e.rate(t, userID, stackID, id, 5)
		require.True(t, out.Applied)
	}
	return out
}

func (e *testEnv) progress(t *testing.T, userID int64) service.ProgressView {
	t.Helper()
	view, err := e.svc.GetProgress(context.Background(), userID)
	require.NoError(t, err)
	return view
}

func (e *testEnv) audit(t *testing.T, userID int64) []*entities.StreakAuditEntry {
	t.Helper()
	entries, err := sqlite.NewRepos(e.db).Audit.ListByUser(context.Background(), userID, 100)
	require.NoError(t, err)
	return entries
}
