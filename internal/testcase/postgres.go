package testcase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

var _ Store = (*PGStore)(nil)

// Schema is the layout PGStore reads. The judge never writes to it.
const Schema = `
CREATE TABLE IF NOT EXISTS test_case_sets (
	id  TEXT PRIMARY KEY,
	spj BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS test_cases (
	set_id          TEXT    NOT NULL REFERENCES test_case_sets(id) ON DELETE CASCADE,
	idx             INTEGER NOT NULL,
	input           BYTEA   NOT NULL,
	expected_output BYTEA,
	PRIMARY KEY (set_id, idx)
);`

// PGStore serves test-case sets from PostgreSQL for hosts without a shared
// test-case volume.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Load(ctx context.Context, id string) (*domain.TestCaseSet, error) {
	set := &domain.TestCaseSet{ID: id}

	err := s.pool.QueryRow(ctx, `SELECT spj FROM test_case_sets WHERE id = $1`, id).Scan(&set.SPJ)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.KindTestCaseNotFound, "test case %s not found", id)
		}
		return nil, domain.WrapError(domain.KindSystemError, fmt.Errorf("postgres: get test case set: %w", err))
	}

	rows, err := s.pool.Query(ctx, `
		SELECT idx, input, COALESCE(expected_output, ''::bytea)
		FROM test_cases
		WHERE set_id = $1
		ORDER BY idx`, id)
	if err != nil {
		return nil, domain.WrapError(domain.KindSystemError, fmt.Errorf("postgres: list test cases: %w", err))
	}

	set.Cases, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TestCase, error) {
		var tc domain.TestCase
		err := row.Scan(&tc.Index, &tc.Input, &tc.Expected)
		return tc, err
	})
	if err != nil {
		return nil, domain.WrapError(domain.KindSystemError, fmt.Errorf("postgres: scan test cases: %w", err))
	}
	return set, nil
}
