package store

import (
	"context"
	"fmt"
)

// WriteDeploy inserts or updates a deploy record.
// Uses ON CONFLICT(id) DO UPDATE so a deploy can be written when it starts
// and again once its decision and template hash are known.
func (s *Store) WriteDeploy(ctx context.Context, d Deploy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deploys
		(id, stack, started_at, decision, reason, template_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			decision = excluded.decision,
			reason = excluded.reason,
			template_hash = excluded.template_hash
	`,
		d.ID.String(),
		d.Stack,
		toMillis(d.StartedAt),
		d.Decision,
		d.Reason,
		d.TemplateHash,
	)
	if err != nil {
		return fmt.Errorf("write deploy: %w", err)
	}

	return nil
}

// WriteFunctionVersions records the version hash of each function in one
// transaction. Recording a hash again refreshes its recorded_at, so a
// rollback to an earlier hash makes it the last deployed one again.
func (s *Store) WriteFunctionVersions(ctx context.Context, versions []FunctionVersion) error {
	if len(versions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write function versions: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO function_versions
		(stack, function, hash, logical_id, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(stack, function, hash) DO UPDATE SET
			logical_id = excluded.logical_id,
			recorded_at = excluded.recorded_at
	`)
	if err != nil {
		return fmt.Errorf("write function versions: %w", err)
	}
	defer stmt.Close()

	for _, v := range versions {
		if _, err := stmt.ExecContext(ctx, v.Stack, v.Function, v.Hash, v.LogicalID, toMillis(v.RecordedAt)); err != nil {
			return fmt.Errorf("write function version %s/%s: %w", v.Stack, v.Function, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write function versions: %w", err)
	}
	return nil
}

// WriteFilterDeletions records reconciliation deletions of a deploy.
// The deploy must exist (foreign key constraint).
func (s *Store) WriteFilterDeletions(ctx context.Context, deletions []FilterDeletion) error {
	if len(deletions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write filter deletions: %w", err)
	}
	defer tx.Rollback()

	for _, d := range deletions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO filter_deletions
			(deploy_id, log_group, filter_name, error)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(deploy_id, log_group, filter_name) DO UPDATE SET
				error = excluded.error
		`, d.DeployID.String(), d.LogGroup, d.FilterName, d.Error)
		if err != nil {
			return fmt.Errorf("write filter deletion %s: %w", d.FilterName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write filter deletions: %w", err)
	}
	return nil
}
