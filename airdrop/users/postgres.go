package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

const recordColumns = "user_id, firstname, username, wallet, balance, referrals, step, verified, created_at, updated_at"

// PostgresStore keeps records in the users table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Record, error) {
	var r Record
	err := s.db.GetContext(ctx, &r, s.db.Rebind("SELECT "+recordColumns+" FROM users WHERE user_id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStore) Create(ctx context.Context, id int64, displayName string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO users (user_id, firstname) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING"),
		id, displayName,
	)
	if err != nil {
		return false, fmt.Errorf("create user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create user %d: %w", id, err)
	}
	return n == 1, nil
}

// Apply runs every mutation in one UPDATE so they commit together.
func (s *PostgresStore) Apply(ctx context.Context, id int64, muts ...Mutation) (Record, error) {
	query, args, err := buildUpdate(id, muts)
	if err != nil {
		return Record{}, err
	}
	var r Record
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(query), args...).StructScan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("update user %d: %w", id, err)
	}
	return r, nil
}

func buildUpdate(id int64, muts []Mutation) (string, []any, error) {
	if err := checkMutations(muts); err != nil {
		return "", nil, err
	}
	sets := make([]string, 0, len(muts)+1)
	args := make([]any, 0, len(muts)+1)
	for _, m := range muts {
		expr, arg := m.clause()
		sets = append(sets, expr)
		args = append(args, arg)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)
	q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE user_id = ? RETURNING " + recordColumns
	return q, args, nil
}

func (s *PostgresStore) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, "SELECT user_id FROM users ORDER BY user_id"); err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) Aggregate(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st,
		"SELECT COUNT(*) AS users, COALESCE(SUM(referrals), 0) AS referrals, COALESCE(SUM(balance), 0) AS balance FROM users")
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate users: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) CountByStep(ctx context.Context) (map[Step]int64, error) {
	var rows []struct {
		Step  Step  `db:"step"`
		Count int64 `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT step, COUNT(*) AS count FROM users GROUP BY step"); err != nil {
		return nil, fmt.Errorf("count users by step: %w", err)
	}
	out := make(map[Step]int64, len(Steps))
	for _, st := range Steps {
		out[st] = 0
	}
	for _, r := range rows {
		out[r.Step] = r.Count
	}
	return out, nil
}
