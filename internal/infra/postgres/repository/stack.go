package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/infra/postgres"
)

// StackRepository provides access to stacks, their cards and test results.
type StackRepository struct {
	db postgres.DBTX
}

// NewStackRepository creates a new StackRepository with the provided database handle.
func NewStackRepository(db postgres.DBTX) *StackRepository {
	return &StackRepository{db: db}
}

const stackColumns = `
	id, user_id, title, status, card_count, mastered_count, mastery_reached_at,
	test_deadline, last_test_score, completed_at, version, created_at, updated_at
`

// Create inserts the stack with its cards and fills in the generated ids.
func (r *StackRepository) Create(ctx context.Context, s *entities.Stack) (int64, error) {
	query := `
		INSERT INTO stacks (user_id, title, status, card_count, mastered_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, version
	`

	err := r.db.QueryRow(ctx, query,
		s.UserID, s.Title, string(s.Status), s.CardCount, s.MasteredCount, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID, &s.Version)
	if err != nil {
		return 0, fmt.Errorf("insert stack: %w", err)
	}

	for _, c := range s.Cards {
		c.StackID = s.ID
		err := r.db.QueryRow(ctx,
			`INSERT INTO cards (stack_id, position, front, rating, mastered_on)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			s.ID, c.Position, c.Front, int(c.Rating), c.MasteredOn,
		).Scan(&c.ID)
		if err != nil {
			return 0, fmt.Errorf("insert card: %w", err)
		}
	}

	return s.ID, nil
}

// Get retrieves one of the user's stacks with its cards.
func (r *StackRepository) Get(ctx context.Context, userID, stackID int64) (*entities.Stack, error) {
	query := `SELECT ` + stackColumns + ` FROM stacks WHERE id = $1 AND user_id = $2`
	return r.getWithCards(ctx, query, stackID, userID)
}

// GetForUpdate retrieves the stack with its cards and locks the stack row.
func (r *StackRepository) GetForUpdate(ctx context.Context, userID, stackID int64) (*entities.Stack, error) {
	query := `SELECT ` + stackColumns + ` FROM stacks WHERE id = $1 AND user_id = $2 FOR UPDATE`
	return r.getWithCards(ctx, query, stackID, userID)
}

func (r *StackRepository) getWithCards(ctx context.Context, query string, args ...any) (*entities.Stack, error) {
	s, err := scanStack(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrStackNotFound
		}
		return nil, fmt.Errorf("get stack: %w", err)
	}

	cards, err := r.cards(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Cards = cards

	return s, nil
}

// ListByUser retrieves the user's stacks without their cards.
func (r *StackRepository) ListByUser(ctx context.Context, userID int64) ([]*entities.Stack, error) {
	query := `SELECT ` + stackColumns + ` FROM stacks WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	defer rows.Close()

	var stacks []*entities.Stack
	for rows.Next() {
		s, err := scanStack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stack: %w", err)
		}
		stacks = append(stacks, s)
	}

	return stacks, rows.Err()
}

// Update writes the stack and its cards if the version is still s.Version.
func (r *StackRepository) Update(ctx context.Context, s *entities.Stack) error {
	query := `
		UPDATE stacks SET
			status = $4,
			mastered_count = $5,
			mastery_reached_at = $6,
			test_deadline = $7,
			last_test_score = $8,
			completed_at = $9,
			updated_at = $10,
			version = version + 1
		WHERE id = $1 AND user_id = $2 AND version = $3
	`

	tag, err := r.db.Exec(ctx, query,
		s.ID, s.UserID, s.Version,
		string(s.Status),
		s.MasteredCount,
		s.MasteryReachedAt,
		s.TestDeadline,
		s.LastTestScore,
		s.CompletedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update stack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrVersionConflict
	}

	for _, c := range s.Cards {
		if _, err := r.db.Exec(ctx,
			`UPDATE cards SET rating = $3, mastered_on = $4 WHERE id = $1 AND stack_id = $2`,
			c.ID, s.ID, int(c.Rating), c.MasteredOn,
		); err != nil {
			return fmt.Errorf("update card: %w", err)
		}
	}

	s.Version++
	return nil
}

// Delete removes the stack if its version is still s.Version.
func (r *StackRepository) Delete(ctx context.Context, s *entities.Stack) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM stacks WHERE id = $1 AND user_id = $2 AND version = $3`,
		s.ID, s.UserID, s.Version)
	if err != nil {
		return fmt.Errorf("delete stack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrVersionConflict
	}

	return nil
}

// SaveTestResult appends a test submission to the stack's history.
func (r *StackRepository) SaveTestResult(ctx context.Context, t *entities.TestResult) error {
	query := `
		INSERT INTO test_results (stack_id, user_id, score, submitted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	if err := r.db.QueryRow(ctx, query, t.StackID, t.UserID, t.Score, t.SubmittedAt).Scan(&t.ID); err != nil {
		return fmt.Errorf("insert test result: %w", err)
	}

	return nil
}

func (r *StackRepository) cards(ctx context.Context, stackID int64) ([]*entities.Card, error) {
	query := `
		SELECT id, stack_id, position, front, rating, mastered_on
		FROM cards
		WHERE stack_id = $1
		ORDER BY position
	`

	rows, err := r.db.Query(ctx, query, stackID)
	if err != nil {
		return nil, fmt.Errorf("get cards: %w", err)
	}
	defer rows.Close()

	var cards []*entities.Card
	for rows.Next() {
		c := new(entities.Card)
		var rating int
		if err := rows.Scan(&c.ID, &c.StackID, &c.Position, &c.Front, &rating, &c.MasteredOn); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		c.Rating = entities.Rating(rating)
		cards = append(cards, c)
	}

	return cards, rows.Err()
}

func scanStack(row pgx.Row) (*entities.Stack, error) {
	var s entities.Stack
	var status string

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Title,
		&status,
		&s.CardCount,
		&s.MasteredCount,
		&s.MasteryReachedAt,
		&s.TestDeadline,
		&s.LastTestScore,
		&s.CompletedAt,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = entities.StackStatus(status)
	return &s, nil
}
