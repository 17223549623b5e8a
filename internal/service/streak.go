package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/metrics"
)

// Options tune the streak engine.
type Options struct {
	Policy       entities.Policy
	PendingTTL   time.Duration // how long a checked action can be confirmed
	MaxTxRetries uint64        // retries after a version conflict
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Policy:       entities.DefaultPolicy(),
		PendingTTL:   10 * time.Minute,
		MaxTxRetries: 5,
	}
}

// StreakService is the progression engine. Every operation runs in one
// transaction that first brings the user's state up to date (day rollover,
// then a freeze pass) and then applies the operation on top.
type StreakService struct {
	tr      Transactor
	pending PendingStore
	clock   Clock
	opts    Options
	logger  *zap.Logger
}

// NewStreakService creates a new StreakService.
func NewStreakService(
	tr Transactor,
	pending PendingStore,
	clock Clock,
	opts Options,
	logger *zap.Logger,
) *StreakService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StreakService{
		tr:      tr,
		pending: pending,
		clock:   clock,
		opts:    opts,
		logger:  logger,
	}
}

// ProgressView is the per-user state shown to the user.
type ProgressView struct {
	UserID             int64
	Timezone           string
	CardsMasteredToday int
	DailyRequirement   int
	StreakAwardedToday bool
	CurrentStreak      int
	LongestStreak      int
	StreakFrozen       bool
	FrozenStackIDs     []int64
	ResetPending       bool
	Deadlines          entities.StreakDeadlines
	InGrace            bool
	TimeRemaining      time.Duration
}

// GoalDay is the local date the current daily goal belongs to.
func (v ProgressView) GoalDay() time.Time {
	cutoff := v.Deadlines.Cutoff
	return entities.LocalDate(cutoff.Add(-time.Nanosecond), cutoff.Location())
}

// StackView is the per-stack state shown to the user.
type StackView struct {
	ID               int64
	Title            string
	Status           entities.StackStatus
	CardCount        int
	MasteredCount    int
	MasteryReachedAt *time.Time
	TestDeadline     *time.Time
	LastTestScore    *int
	CompletedAt      *time.Time
	Overdue          bool
}

// userState is the user's aggregate loaded under lock for one transaction.
type userState struct {
	user          *entities.UserStreak
	stacks        []*entities.Stack // without cards
	loadedVersion int64
	today         time.Time
	now           time.Time
	dirty         bool
	freeze        entities.FreezeResult // result of the access freeze pass
	snapshot      entities.StreakSnapshot
	audits        []*entities.StreakAuditEntry
	after         []func() // run once the transaction committed
}

// checkpoint records an audit entry when the audited state changed since the last checkpoint.
func (st *userState) checkpoint(reason entities.AuditReason) {
	cur := st.user.Snapshot()
	if cur.Equal(st.snapshot) {
		return
	}
	st.audits = append(st.audits, &entities.StreakAuditEntry{
		UserID:    st.user.UserID,
		Reason:    reason,
		Before:    st.snapshot,
		After:     cur,
		CreatedAt: st.now,
	})
	st.snapshot = cur
	st.dirty = true
}

func (st *userState) onCommit(fn func()) {
	st.after = append(st.after, fn)
}

// EnsureUser registers a user and creates an empty progression record.
// An existing record is left untouched.
func (s *StreakService) EnsureUser(ctx context.Context, user *entities.User, timezone string) error {
	if _, err := entities.ParseTimezoneLocation(timezone); err != nil {
		s.logger.Warn("unsupported timezone on registration, using UTC",
			zap.Int64("user_id", user.ID),
			zap.String("timezone", timezone),
		)
		timezone = "UTC"
	}

	return s.tr.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		if err := r.Users.SaveUser(ctx, user); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		if err := r.Streaks.Ensure(ctx, entities.NewUserStreak(user.ID, timezone)); err != nil {
			return fmt.Errorf("ensure user streak: %w", err)
		}
		return nil
	})
}

// SetTimezone changes the timezone the user's calendar days are counted in.
func (s *StreakService) SetTimezone(ctx context.Context, userID int64, timezone string) (ProgressView, error) {
	if _, err := entities.ParseTimezoneLocation(timezone); err != nil {
		return ProgressView{}, err
	}

	var view ProgressView
	err := s.withRetry(ctx, "set_timezone", func() error {
		st, err := s.run(ctx, userID, func(ctx context.Context, r Repos, st *userState) error {
			st.user.Timezone = timezone
			st.dirty = true
			return nil
		})
		if err != nil {
			return err
		}
		view = s.progressView(st.user, st.now)
		return nil
	})

	return view, err
}

// GetProgress returns the user's authoritative progress.
func (s *StreakService) GetProgress(ctx context.Context, userID int64) (ProgressView, error) {
	var view ProgressView
	err := s.withRetry(ctx, "get_progress", func() error {
		st, err := s.run(ctx, userID, nil)
		if err != nil {
			return err
		}
		view = s.progressView(st.user, st.now)
		return nil
	})

	return view, err
}

// CreateStack registers a new stack of cards for the user.
func (s *StreakService) CreateStack(ctx context.Context, userID int64, title string, fronts []string) (StackView, error) {
	stack, err := entities.NewStack(userID, title, fronts, s.clock.Now())
	if err != nil {
		return StackView{}, err
	}

	err = s.tr.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		if _, err := r.Streaks.Get(ctx, userID); err != nil {
			return fmt.Errorf("get user streak: %w", err)
		}
		id, err := r.Stacks.Create(ctx, stack)
		if err != nil {
			return fmt.Errorf("create stack: %w", err)
		}
		stack.ID = id
		return nil
	})
	if err != nil {
		return StackView{}, err
	}

	s.logger.Info("stack created",
		zap.Int64("user_id", userID),
		zap.Int64("stack_id", stack.ID),
		zap.Int("cards", stack.CardCount),
	)

	return s.stackView(stack, stack.CreatedAt), nil
}

// ListStacks returns the user's stacks with their mastery state.
func (s *StreakService) ListStacks(ctx context.Context, userID int64) ([]StackView, error) {
	var views []StackView
	err := s.withRetry(ctx, "list_stacks", func() error {
		st, err := s.run(ctx, userID, nil)
		if err != nil {
			return err
		}
		views = make([]StackView, 0, len(st.stacks))
		for _, stack := range st.stacks {
			views = append(views, s.stackView(stack, st.now))
		}
		return nil
	})

	return views, err
}

// GetStack returns one stack with its mastery state.
func (s *StreakService) GetStack(ctx context.Context, userID, stackID int64) (StackView, error) {
	var view StackView
	err := s.withRetry(ctx, "get_stack", func() error {
		st, err := s.run(ctx, userID, nil)
		if err != nil {
			return err
		}
		idx := slices.IndexFunc(st.stacks, func(x *entities.Stack) bool { return x.ID == stackID })
		if idx < 0 {
			return entities.ErrStackNotFound
		}
		view = s.stackView(st.stacks[idx], st.now)
		return nil
	})

	return view, err
}

// CardView is a card as shown to the user.
type CardView struct {
	ID       int64
	Position int
	Front    string
	Rating   entities.Rating
	Known    bool
}

// GetCards returns the stack's cards in order. It does not touch the user's progress.
func (s *StreakService) GetCards(ctx context.Context, userID, stackID int64) ([]CardView, error) {
	var cards []CardView
	err := s.tr.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		stack, err := r.Stacks.Get(ctx, userID, stackID)
		if err != nil {
			return fmt.Errorf("get stack: %w", err)
		}
		cards = make([]CardView, 0, len(stack.Cards))
		for _, c := range stack.Cards {
			cards = append(cards, CardView{
				ID:       c.ID,
				Position: c.Position,
				Front:    c.Front,
				Rating:   c.Rating,
				Known:    c.Known(),
			})
		}
		return nil
	})

	return cards, err
}

// History returns the user's most recent streak changes, newest first.
func (s *StreakService) History(ctx context.Context, userID int64, limit int) ([]*entities.StreakAuditEntry, error) {
	var entries []*entities.StreakAuditEntry
	err := s.tr.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		var err error
		entries, err = r.Audit.ListByUser(ctx, userID, limit)
		return err
	})

	return entries, err
}

// RefreshUser brings one user's state up to date. It is what the freeze sweep runs per user.
func (s *StreakService) RefreshUser(ctx context.Context, userID int64) (ProgressView, entities.FreezeResult, error) {
	var (
		view ProgressView
		fr   entities.FreezeResult
	)
	err := s.withRetry(ctx, "refresh_user", func() error {
		st, err := s.run(ctx, userID, nil)
		if err != nil {
			return err
		}
		view = s.progressView(st.user, st.now)
		fr = st.freeze
		return nil
	})

	return view, fr, err
}

// run executes one transaction for userID: it loads and refreshes the
// user's state, calls fn, persists whatever changed and, after the commit,
// emits logs and metrics. fn may be nil for read paths.
func (s *StreakService) run(
	ctx context.Context,
	userID int64,
	fn func(ctx context.Context, r Repos, st *userState) error,
) (*userState, error) {
	var st *userState
	err := s.tr.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		var err error
		st, err = s.access(ctx, r, userID, s.clock.Now())
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(ctx, r, st); err != nil {
				return err
			}
		}
		return s.persist(ctx, r, st)
	})
	if err != nil {
		return nil, err
	}

	s.committed(st)
	return st, nil
}

// simulate loads and refreshes the user's state like run and calls fn,
// but writes nothing: the rollover and freeze pass stay in memory and are
// redone by the next real access.
func (s *StreakService) simulate(
	ctx context.Context,
	userID int64,
	fn func(ctx context.Context, r Repos, st *userState) error,
) (*userState, error) {
	var st *userState
	err := s.tr.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		var err error
		st, err = s.access(ctx, r, userID, s.clock.Now())
		if err != nil {
			return err
		}
		return fn(ctx, r, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// access loads the user's state under lock and applies the lazy,
// time-driven transitions: day rollover first, then a freeze pass.
func (s *StreakService) access(ctx context.Context, r Repos, userID int64, now time.Time) (*userState, error) {
	u, err := r.Streaks.GetForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user streak: %w", err)
	}
	stacks, err := r.Stacks.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}

	st := &userState{
		user:          u,
		stacks:        stacks,
		loadedVersion: u.Version,
		now:           now,
		snapshot:      u.Snapshot(),
	}

	loc, ok := entities.LocationOrUTC(u.Timezone)
	if !ok {
		s.logger.Warn("invalid timezone, falling back to UTC",
			zap.Int64("user_id", userID),
			zap.String("timezone", u.Timezone),
		)
	}
	st.today = entities.LocalDate(now, loc)

	// 1. Day rollover, judged against the freeze state when the missed day ended.
	roll := u.ApplyDayRollover(st.today, s.opts.Policy.DailyRequirement, entities.AnyOverdue(stacks))
	if roll.Rolled {
		st.dirty = true
	}
	if roll.Reset {
		st.onCommit(func() { metrics.StreakReset("rollover") })
	}
	if roll.Deferred {
		s.logger.Info("streak reset deferred while frozen",
			zap.Int64("user_id", userID),
			zap.Int("current_streak", u.CurrentStreak),
		)
	}
	st.checkpoint(entities.AuditRollover)

	// 2. Freeze pass over the current deadlines.
	fr := u.RefreshFreeze(stacks, now)
	st.freeze = fr
	if fr.ResetApplied {
		st.onCommit(func() { metrics.StreakReset("deferred") })
	}
	st.checkpoint(entities.AuditFreeze)

	return st, nil
}

// persist writes the user row when it changed and records audit entries.
func (s *StreakService) persist(ctx context.Context, r Repos, st *userState) error {
	if st.dirty {
		st.user.UpdatedAt = st.now
		if err := r.Streaks.Update(ctx, st.user); err != nil {
			return fmt.Errorf("update user streak: %w", err)
		}
	}

	for _, e := range st.audits {
		if err := r.Audit.Record(ctx, e); err != nil {
			return fmt.Errorf("record streak audit: %w", err)
		}
	}

	return nil
}

// committed logs audited changes and runs deferred hooks.
func (s *StreakService) committed(st *userState) {
	for _, e := range st.audits {
		s.logger.Info("streak state changed",
			zap.Int64("user_id", e.UserID),
			zap.String("reason", string(e.Reason)),
			zap.Int("streak_before", e.Before.CurrentStreak),
			zap.Int("streak_after", e.After.CurrentStreak),
			zap.Int("longest_before", e.Before.LongestStreak),
			zap.Int("longest_after", e.After.LongestStreak),
			zap.Int64s("frozen_before", e.Before.FrozenStackIDs),
			zap.Int64s("frozen_after", e.After.FrozenStackIDs),
			zap.Bool("reset_pending", e.After.ResetPending),
		)
	}
	for _, fn := range st.after {
		fn()
	}
}

func (s *StreakService) progressView(u *entities.UserStreak, now time.Time) ProgressView {
	deadlines := entities.DeadlinesFor(u, now, s.opts.Policy.GraceBuffer)
	return ProgressView{
		UserID:             u.UserID,
		Timezone:           u.Timezone,
		CardsMasteredToday: u.CardsMasteredToday,
		DailyRequirement:   s.opts.Policy.DailyRequirement,
		StreakAwardedToday: u.StreakAwardedToday,
		CurrentStreak:      u.CurrentStreak,
		LongestStreak:      u.LongestStreak,
		StreakFrozen:       u.StreakFrozen(),
		FrozenStackIDs:     slices.Clone(u.FrozenStackIDs),
		ResetPending:       u.ResetPending,
		Deadlines:          deadlines,
		InGrace:            deadlines.InGrace(now) && !u.StreakAwardedToday,
		TimeRemaining:      entities.StreakTimeRemaining(u, now),
	}
}

func (s *StreakService) stackView(stack *entities.Stack, now time.Time) StackView {
	return StackView{
		ID:               stack.ID,
		Title:            stack.Title,
		Status:           stack.Status,
		CardCount:        stack.CardCount,
		MasteredCount:    stack.MasteredCount,
		MasteryReachedAt: stack.MasteryReachedAt,
		TestDeadline:     stack.TestDeadline,
		LastTestScore:    stack.LastTestScore,
		CompletedAt:      stack.CompletedAt,
		Overdue:          stack.IsOverdue(now),
	}
}

// withStack returns stacks with updated swapped in by id, or removed when updated is nil.
func withStack(stacks []*entities.Stack, id int64, updated *entities.Stack) []*entities.Stack {
	out := make([]*entities.Stack, 0, len(stacks))
	for _, s := range stacks {
		if s.ID == id {
			if updated != nil {
				out = append(out, updated)
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
