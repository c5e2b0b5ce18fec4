package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// History returns the most recent deploys of a stack, newest first.
// A limit of zero or less returns every deploy.
func (s *Store) History(ctx context.Context, stack string, limit int) ([]Deploy, error) {
	query := `
		SELECT id, stack, started_at, decision, reason, template_hash
		FROM deploys
		WHERE stack = ?
		ORDER BY started_at DESC, id ASC COLLATE BINARY
	`
	args := []any{stack}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []Deploy
	for rows.Next() {
		var (
			d         Deploy
			id        string
			startedAt int64
		)
		if err := rows.Scan(&id, &d.Stack, &startedAt, &d.Decision, &d.Reason, &d.TemplateHash); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		if d.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("history: deploy id %q: %w", id, err)
		}
		d.StartedAt = fromMillis(startedAt)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return out, nil
}

// ReadDeploy returns one deploy by id. The bool is false when it does not
// exist.
func (s *Store) ReadDeploy(ctx context.Context, id uuid.UUID) (Deploy, bool, error) {
	var (
		d         Deploy
		startedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT stack, started_at, decision, reason, template_hash
		FROM deploys
		WHERE id = ?
	`, id.String()).Scan(&d.Stack, &startedAt, &d.Decision, &d.Reason, &d.TemplateHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Deploy{}, false, nil
	}
	if err != nil {
		return Deploy{}, false, fmt.Errorf("read deploy: %w", err)
	}
	d.ID = id
	d.StartedAt = fromMillis(startedAt)
	return d, true, nil
}

// LastFunctionVersions returns the most recently recorded version of every
// function of a stack, keyed by function.
func (s *Store) LastFunctionVersions(ctx context.Context, stack string) (map[string]FunctionVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT function, hash, logical_id, recorded_at
		FROM function_versions
		WHERE stack = ?
		ORDER BY function ASC, recorded_at DESC, hash ASC COLLATE BINARY
	`, stack)
	if err != nil {
		return nil, fmt.Errorf("last function versions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]FunctionVersion)
	for rows.Next() {
		v := FunctionVersion{Stack: stack}
		var recordedAt int64
		if err := rows.Scan(&v.Function, &v.Hash, &v.LogicalID, &recordedAt); err != nil {
			return nil, fmt.Errorf("last function versions: %w", err)
		}
		if _, seen := out[v.Function]; seen {
			continue
		}
		v.RecordedAt = fromMillis(recordedAt)
		out[v.Function] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("last function versions: %w", err)
	}
	return out, nil
}

// ReadFilterDeletions returns the deletions recorded for a deploy in log
// group and filter name order.
func (s *Store) ReadFilterDeletions(ctx context.Context, deployID uuid.UUID) ([]FilterDeletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT log_group, filter_name, error
		FROM filter_deletions
		WHERE deploy_id = ?
		ORDER BY log_group ASC, filter_name ASC COLLATE BINARY
	`, deployID.String())
	if err != nil {
		return nil, fmt.Errorf("read filter deletions: %w", err)
	}
	defer rows.Close()

	var out []FilterDeletion
	for rows.Next() {
		d := FilterDeletion{DeployID: deployID}
		if err := rows.Scan(&d.LogGroup, &d.FilterName, &d.Error); err != nil {
			return nil, fmt.Errorf("read filter deletions: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read filter deletions: %w", err)
	}
	return out, nil
}
