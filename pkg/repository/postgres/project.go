/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
)

const TPProjectRecord = "project_records"

type projectRow struct {
	TenantID  string          `db:"tenant_id"`
	ProjectID string          `db:"project_id"`
	Revision  string          `db:"revision"`
	State     json.RawMessage `db:"state"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r *projectRow) toRecord() *repository.ProjectRecord {
	return &repository.ProjectRecord{
		Scope:     repository.ProjectScope{TenantID: r.TenantID, ProjectID: r.ProjectID},
		Revision:  r.Revision,
		State:     append(json.RawMessage(nil), r.State...),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ProjectRepository is the PostgreSQL scoped KV. The revision guard of
// SaveIfRevision is enforced server-side by a conditional statement, so
// concurrent writers on different gateway processes stay consistent.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository wraps an open connection pool.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db.Unsafe()}
}

// Find returns the record for scope, or nil when no row exists.
func (r *ProjectRepository) Find(ctx context.Context, scope repository.ProjectScope) (*repository.ProjectRecord, error) {
	query, args, err := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("*").From(TPProjectRecord).
		Where(sqrl.Eq{"tenant_id": scope.TenantID, "project_id": scope.ProjectID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select project_records query: %v", err)
	}
	var row projectRow
	err = r.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select project_records from db: %v", err)
	}
	return row.toRecord(), nil
}

// Save upserts the record unconditionally.
func (r *ProjectRepository) Save(ctx context.Context, record *repository.ProjectRecord) error {
	now := time.Now().UTC()
	query, args, err := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Insert(TPProjectRecord).
		Columns("tenant_id", "project_id", "revision", "state", "created_at", "updated_at").
		Values(record.Scope.TenantID, record.Scope.ProjectID, record.Revision, []byte(record.State), now, now).
		Suffix("ON CONFLICT (tenant_id, project_id) DO UPDATE SET revision = EXCLUDED.revision, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert project_records query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert project_records to db: %v", err)
	}
	return nil
}

// SaveIfRevision stores the record only when the stored revision still equals
// expectedRevision. An empty expectedRevision inserts and requires absence.
func (r *ProjectRepository) SaveIfRevision(ctx context.Context,
	record *repository.ProjectRecord, expectedRevision string) (bool, error) {
	now := time.Now().UTC()
	builder := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar)
	var query string
	var args []interface{}
	var err error
	if expectedRevision == "" {
		query, args, err = builder.Insert(TPProjectRecord).
			Columns("tenant_id", "project_id", "revision", "state", "created_at", "updated_at").
			Values(record.Scope.TenantID, record.Scope.ProjectID, record.Revision, []byte(record.State), now, now).
			Suffix("ON CONFLICT (tenant_id, project_id) DO NOTHING").
			ToSql()
	} else {
		query, args, err = builder.Update(TPProjectRecord).
			Set("revision", record.Revision).
			Set("state", []byte(record.State)).
			Set("updated_at", now).
			Where(sqrl.Eq{
				"tenant_id":  record.Scope.TenantID,
				"project_id": record.Scope.ProjectID,
				"revision":   expectedRevision,
			}).
			ToSql()
	}
	if err != nil {
		return false, fmt.Errorf("failed to build conditional save query: %v", err)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to save project_records conditionally: %v", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %v", err)
	}
	return affected == 1, nil
}

// Remove deletes the record for scope. Missing rows are a no-op.
func (r *ProjectRepository) Remove(ctx context.Context, scope repository.ProjectScope) error {
	query, args, err := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Delete(TPProjectRecord).
		Where(sqrl.Eq{"tenant_id": scope.TenantID, "project_id": scope.ProjectID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete project_records query: %v", err)
	}
	if _, err = r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete project_records from db: %v", err)
	}
	return nil
}

// ListByScopePrefix returns records whose projectId starts with the prefix,
// sorted by projectId ascending.
func (r *ProjectRepository) ListByScopePrefix(ctx context.Context,
	tenantID, projectIDPrefix string) ([]*repository.ProjectRecord, error) {
	query, args, err := sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar).
		Select("*").From(TPProjectRecord).
		Where(sqrl.Eq{"tenant_id": tenantID}).
		Where(sqrl.Like{"project_id": escapeLikePrefix(projectIDPrefix) + "%"}).
		OrderBy("project_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list project_records query: %v", err)
	}
	var rows []*projectRow
	if err = r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list project_records from db: %v", err)
	}
	out := make([]*repository.ProjectRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}
