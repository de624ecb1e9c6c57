package storage

import (
	"context"
	"fmt"

	"finanzen/internal/core"
)

func (s queries) CreateGoal(ctx context.Context, g *core.Goal) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO goals (user_id, account_id, label, due_date, target_cents, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.UserID, g.AccountID, g.Label, fmtDate(g.DueDate), core.ToCents(g.Target), g.Version, fmtTime(g.CreatedAt), fmtTime(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("goal id: %w", err)
	}
	g.ID = id
	return nil
}

// ListGoals returns every goal; the due-soon filter runs in the selector.
func (s queries) ListGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, account_id, label, due_date, target_cents, version, created_at, updated_at
		FROM goals ORDER BY due_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g                 core.Goal
			cents             int64
			due, created, upd string
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.AccountID, &g.Label, &due, &cents, &g.Version, &created, &upd); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.DueDate = parseDate(due)
		g.Target = core.FromCents(cents)
		g.CreatedAt = parseTime(created)
		g.UpdatedAt = parseTime(upd)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s queries) DeleteGoal(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("goal %d: %w", id, core.ErrNotFound)
	}
	return nil
}
