package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/infra/postgres"
	"github.com/aliskhannn/lingua-streak-bot/internal/infra/postgres/repository"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
	"github.com/aliskhannn/lingua-streak-bot/internal/storage"
)

// setupPool connects to DATABASE_URL and applies the schema. Tests that
// need PostgreSQL are skipped when it is not set.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

// newUser registers a user with an id no other run uses and removes it afterwards.
func newUser(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	ctx := context.Background()
	id := time.Now().UnixNano() % 1_000_000_000_000

	repos := repository.NewRepos(pool)
	require.NoError(t, repos.Users.SaveUser(ctx, entities.NewUser(id, id, "learner")))
	require.NoError(t, repos.Streaks.Ensure(ctx, entities.NewUserStreak(id, "UTC")))

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func TestStreakRepository_CompareAndSwap(t *testing.T) {
	pool := setupPool(t)
	userID := newUser(t, pool)
	ctx := context.Background()
	repos := repository.NewRepos(pool)

	u, err := repos.Streaks.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, u.FrozenStackIDs)
	assert.Nil(t, u.LastMasteryDate)
	stale := u.Clone()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	u.CardsMasteredToday = 5
	u.LastMasteryDate = &day
	u.StreakAwardedToday = true
	u.CurrentStreak = 1
	u.LongestStreak = 1
	u.FrozenStackIDs = []int64{3, 7}
	u.UpdatedAt = time.Now()
	require.NoError(t, repos.Streaks.Update(ctx, u))
	assert.Equal(t, stale.Version+1, u.Version)

	stale.CurrentStreak = 9
	stale.LongestStreak = 9
	assert.ErrorIs(t, repos.Streaks.Update(ctx, stale), entities.ErrVersionConflict)

	got, err := repos.Streaks.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, u.Version, got.Version)
	assert.Equal(t, 1, got.CurrentStreak)
	assert.Equal(t, []int64{3, 7}, got.FrozenStackIDs)
	require.NotNil(t, got.LastMasteryDate)
	assert.True(t, day.Equal(*got.LastMasteryDate))

	got.FrozenStackIDs = nil
	require.NoError(t, repos.Streaks.Update(ctx, got))
	got, err = repos.Streaks.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got.FrozenStackIDs)
}

func TestStackRepository_CompareAndSwap(t *testing.T) {
	pool := setupPool(t)
	userID := newUser(t, pool)
	ctx := context.Background()
	repos := repository.NewRepos(pool)

	s, err := entities.NewStack(userID, "Verben", []string{"gehen", "kommen"}, time.Now())
	require.NoError(t, err)
	stackID, err := repos.Stacks.Create(ctx, s)
	require.NoError(t, err)

	stack, err := repos.Stacks.Get(ctx, userID, stackID)
	require.NoError(t, err)
	require.Len(t, stack.Cards, 2)
	stale := stack.Clone()

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err = stack.ApplyRating(stack.Cards[0].ID, 5, today, time.Now(), entities.DefaultPolicy())
	require.NoError(t, err)
	stack.UpdatedAt = time.Now()
	require.NoError(t, repos.Stacks.Update(ctx, stack))

	assert.ErrorIs(t, repos.Stacks.Update(ctx, stale), entities.ErrVersionConflict)
	assert.ErrorIs(t, repos.Stacks.Delete(ctx, stale), entities.ErrVersionConflict)

	got, err := repos.Stacks.Get(ctx, userID, stackID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MasteredCount)
	assert.Equal(t, 1, got.MasteredOnDay(today))

	require.NoError(t, repos.Stacks.Delete(ctx, got))
	_, err = repos.Stacks.Get(ctx, userID, stackID)
	assert.ErrorIs(t, err, entities.ErrStackNotFound)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestUnitOfWork_ConcurrentRatingsCrossOnce(t *testing.T) {
	pool := setupPool(t)
	userID := newUser(t, pool)
	ctx := context.Background()

	svc := service.NewStreakService(
		repository.NewUnitOfWork(postgres.NewTransactor(pool)),
		storage.NewPendingStorage(),
		fixedClock{now: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)},
		service.DefaultOptions(),
		zap.NewNop(),
	)

	view, err := svc.CreateStack(ctx, userID, "Deck", []string{"a", "b", "c", "d", "e", "f", "g", "h"})
	require.NoError(t, err)
	cards, err := svc.GetCards(ctx, userID, view.ID)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		crossings int
	)
	for _, c := range cards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.SubmitRating(ctx, userID, view.ID, c.ID, 5)
			assert.NoError(t, err)
			if out.Crossed {
				mu.Lock()
				crossings++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	p, err := svc.GetProgress(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, crossings)
	assert.Equal(t, len(cards), p.CardsMasteredToday)
	assert.Equal(t, 1, p.CurrentStreak)
}
