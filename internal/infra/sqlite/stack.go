package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
)

// StackRepository stores stacks, their cards and test results.
type StackRepository struct {
	db sqlx.ExtContext
}

func NewStackRepository(db sqlx.ExtContext) *StackRepository {
	return &StackRepository{db: db}
}

const stackColumns = `
	id, user_id, title, status, card_count, mastered_count, mastery_reached_at,
	test_deadline, last_test_score, completed_at, version, created_at, updated_at
`

type stackRow struct {
	ID               int64      `db:"id"`
	UserID           int64      `db:"user_id"`
	Title            string     `db:"title"`
	Status           string     `db:"status"`
	CardCount        int        `db:"card_count"`
	MasteredCount    int        `db:"mastered_count"`
	MasteryReachedAt *time.Time `db:"mastery_reached_at"`
	TestDeadline     *time.Time `db:"test_deadline"`
	LastTestScore    *int       `db:"last_test_score"`
	CompletedAt      *time.Time `db:"completed_at"`
	Version          int64      `db:"version"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (row stackRow) toEntity() *entities.Stack {
	return &entities.Stack{
		ID:               row.ID,
		UserID:           row.UserID,
		Title:            row.Title,
		Status:           entities.StackStatus(row.Status),
		CardCount:        row.CardCount,
		MasteredCount:    row.MasteredCount,
		MasteryReachedAt: row.MasteryReachedAt,
		TestDeadline:     row.TestDeadline,
		LastTestScore:    row.LastTestScore,
		CompletedAt:      row.CompletedAt,
		Version:          row.Version,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

type cardRow struct {
	ID         int64      `db:"id"`
	StackID    int64      `db:"stack_id"`
	Position   int        `db:"position"`
	Front      string     `db:"front"`
	Rating     int        `db:"rating"`
	MasteredOn *time.Time `db:"mastered_on"`
}

// Create inserts the stack with its cards and fills in the generated ids.
func (r *StackRepository) Create(ctx context.Context, s *entities.Stack) (int64, error) {
	query := `
		INSERT INTO stacks (user_id, title, status, card_count, mastered_count, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`

	res, err := r.db.ExecContext(ctx, query,
		s.UserID, s.Title, string(s.Status), s.CardCount, s.MasteredCount,
		utc(s.CreatedAt), utc(s.UpdatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert stack: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	s.ID = id
	s.Version = 1

	for _, c := range s.Cards {
		c.StackID = id
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO cards (stack_id, position, front, rating, mastered_on) VALUES (?, ?, ?, ?, ?)`,
			id, c.Position, c.Front, int(c.Rating), utcPtr(c.MasteredOn))
		if err != nil {
			return 0, fmt.Errorf("insert card: %w", err)
		}
		if c.ID, err = res.LastInsertId(); err != nil {
			return 0, fmt.Errorf("last insert id: %w", err)
		}
	}

	return id, nil
}

// Get returns one of the user's stacks with its cards.
func (r *StackRepository) Get(ctx context.Context, userID, stackID int64) (*entities.Stack, error) {
	query := `SELECT ` + stackColumns + ` FROM stacks WHERE id = ? AND user_id = ?`

	var row stackRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, stackID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrStackNotFound
		}
		return nil, fmt.Errorf("get stack: %w", err)
	}

	s := row.toEntity()
	cards, err := r.cards(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Cards = cards

	return s, nil
}

// GetForUpdate is Get: the single-connection pool already serializes transactions.
func (r *StackRepository) GetForUpdate(ctx context.Context, userID, stackID int64) (*entities.Stack, error) {
	return r.Get(ctx, userID, stackID)
}

// ListByUser returns the user's stacks without their cards.
func (r *StackRepository) ListByUser(ctx context.Context, userID int64) ([]*entities.Stack, error) {
	query := `SELECT ` + stackColumns + ` FROM stacks WHERE user_id = ? ORDER BY id`

	var rows []stackRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}

	stacks := make([]*entities.Stack, 0, len(rows))
	for _, row := range rows {
		stacks = append(stacks, row.toEntity())
	}
	return stacks, nil
}

// Update writes the stack and its cards if the version is still s.Version.
func (r *StackRepository) Update(ctx context.Context, s *entities.Stack) error {
	query := `
		UPDATE stacks SET
			status = ?,
			mastered_count = ?,
			mastery_reached_at = ?,
			test_deadline = ?,
			last_test_score = ?,
			completed_at = ?,
			updated_at = ?,
			version = version + 1
		WHERE id = ? AND user_id = ? AND version = ?
	`

	res, err := r.db.ExecContext(ctx, query,
		string(s.Status),
		s.MasteredCount,
		utcPtr(s.MasteryReachedAt),
		utcPtr(s.TestDeadline),
		s.LastTestScore,
		utcPtr(s.CompletedAt),
		utc(s.UpdatedAt),
		s.ID, s.UserID, s.Version,
	)
	if err != nil {
		return fmt.Errorf("update stack: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}

	for _, c := range s.Cards {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE cards SET rating = ?, mastered_on = ? WHERE id = ? AND stack_id = ?`,
			int(c.Rating), utcPtr(c.MasteredOn), c.ID, s.ID); err != nil {
			return fmt.Errorf("update card: %w", err)
		}
	}

	s.Version++
	return nil
}

// Delete removes the stack if its version is still s.Version. Cards, test
// results and frozen set entries go with it.
func (r *StackRepository) Delete(ctx context.Context, s *entities.Stack) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM stacks WHERE id = ? AND user_id = ? AND version = ?`,
		s.ID, s.UserID, s.Version)
	if err != nil {
		return fmt.Errorf("delete stack: %w", err)
	}
	return expectOne(res)
}

// SaveTestResult appends a test submission to the stack's history.
func (r *StackRepository) SaveTestResult(ctx context.Context, t *entities.TestResult) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO test_results (stack_id, user_id, score, submitted_at) VALUES (?, ?, ?, ?)`,
		t.StackID, t.UserID, t.Score, utc(t.SubmittedAt))
	if err != nil {
		return fmt.Errorf("insert test result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id
	return nil
}

func (r *StackRepository) cards(ctx context.Context, stackID int64) ([]*entities.Card, error) {
	query := `
		SELECT id, stack_id, position, front, rating, mastered_on
		FROM cards
		WHERE stack_id = ?
		ORDER BY position
	`

	var rows []cardRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, stackID); err != nil {
		return nil, fmt.Errorf("get cards: %w", err)
	}

	cards := make([]*entities.Card, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, &entities.Card{
			ID:         row.ID,
			StackID:    row.StackID,
			Position:   row.Position,
			Front:      row.Front,
			Rating:     entities.Rating(row.Rating),
			MasteredOn: row.MasteredOn,
		})
	}
	return cards, nil
}

// expectOne maps a compare-and-swap that matched nothing to a version conflict.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return entities.ErrVersionConflict
	}
	return nil
}
