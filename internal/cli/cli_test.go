package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	_ "time/tzdata"

	"github.com/aliskhannn/lingua-streak-bot/internal/app"
	"github.com/aliskhannn/lingua-streak-bot/internal/config"
	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/storage"
)

// run executes the CLI against a sqlite file with no config file present.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", config.DriverSQLite)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", t.TempDir(), "--sqlite", dbPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedLearner(t *testing.T, dbPath string, userID int64) {
	t.Helper()
	ctx := context.Background()

	st, err := app.OpenStorage(ctx, config.DB{Driver: config.DriverSQLite, SQLitePath: dbPath}, zap.NewNop())
	require.NoError(t, err)
	defer st.Close()

	p := entities.DefaultPolicy()
	svc := app.NewStreakService(config.Streak{
		DailyRequirement:     p.DailyRequirement,
		TestBaseWindow:       p.TestBaseWindow,
		TestPerCardAllowance: p.TestPerCardAllowance,
		TestMaxWindow:        p.TestMaxWindow,
		GraceBuffer:          p.GraceBuffer,
		PendingActionTTL:     time.Minute,
		MaxTxRetries:         3,
	}, st.Transactor, storage.NewPendingStorage(), zap.NewNop())

	require.NoError(t, svc.EnsureUser(ctx, entities.NewUser(userID, userID, "learner"), "Europe/Berlin"))
	stack, err := svc.CreateStack(ctx, userID, "Verben", []string{"gehen", "kommen"})
	require.NoError(t, err)
	cards, err := svc.GetCards(ctx, userID, stack.ID)
	require.NoError(t, err)
	_, err = svc.SubmitRating(ctx, userID, stack.ID, cards[0].ID, 5)
	require.NoError(t, err)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"migrate", "sweep", "show"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "streak.db")

	out, err := run(t, db, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date (sqlite)")

	out, err = run(t, db, "migrate", "--format", "json")
	require.NoError(t, err)
	var res migrateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "ok", res.Status)
}

func TestShow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "streak.db")
	seedLearner(t, db, 42)

	out, err := run(t, db, "show", "42", "--format", "json")
	require.NoError(t, err)

	var res showResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, int64(42), res.UserID)
	assert.Equal(t, "Europe/Berlin", res.Timezone)
	assert.Equal(t, 1, res.CardsMasteredToday)
	require.Len(t, res.Stacks, 1)
	assert.Equal(t, "Verben", res.Stacks[0].Title)
	assert.Equal(t, 1, res.Stacks[0].Mastered)

	out, err = run(t, db, "show", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "user 42 (Europe/Berlin)")
	assert.Contains(t, out, "Verben")
}

func TestShow_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "streak.db")

	_, err := run(t, db, "show", "abc")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, db, "show", "7")
	assert.ErrorIs(t, err, entities.ErrUserNotFound)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = run(t, db, "migrate", "--format", "yaml")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSweep(t *testing.T) {
	db := filepath.Join(t.TempDir(), "streak.db")
	seedLearner(t, db, 42)

	out, err := run(t, db, "sweep", "--format", "json")
	require.NoError(t, err)

	var res sweepResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 0, res.Newly)
}
