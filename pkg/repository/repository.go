/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package repository defines the persistence ports the gateway core consumes.
// Concrete backends live in the memory and postgres subpackages.
package repository

import (
	"context"
	"encoding/json"
	"time"
)

// ProjectScope identifies one record in the scoped KV namespace. The same
// namespace stores pipeline state, distributed locks and per-project blobs,
// distinguished by projectId prefix.
type ProjectScope struct {
	TenantID  string `json:"tenantId"`
	ProjectID string `json:"projectId"`
}

// Equal reports scope equality as defined by the port contract.
func (s ProjectScope) Equal(other ProjectScope) bool {
	return s.TenantID == other.TenantID && s.ProjectID == other.ProjectID
}

// ProjectRecord is one persisted state value. Revision is a content hash used
// as the optimistic concurrency token.
type ProjectRecord struct {
	Scope     ProjectScope    `json:"scope"`
	Revision  string          `json:"revision"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of the record.
func (r *ProjectRecord) Clone() *ProjectRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.State = append(json.RawMessage(nil), r.State...)
	return &out
}

// ProjectRepository is the scoped KV port. Find returns nil when the scope
// has no record. ListByScopePrefix returns records whose projectId starts
// with the prefix, sorted by projectId ascending.
type ProjectRepository interface {
	Find(ctx context.Context, scope ProjectScope) (*ProjectRecord, error)
	Save(ctx context.Context, record *ProjectRecord) error
	Remove(ctx context.Context, scope ProjectScope) error
	ListByScopePrefix(ctx context.Context, tenantID, projectIDPrefix string) ([]*ProjectRecord, error)
}

// CASProjectRepository is the optional revision-guarded save. An empty
// expectedRevision means the record must not exist yet. When a repository
// does not implement it the store falls back to unconditional save, which
// narrows the multi-writer guarantee.
type CASProjectRepository interface {
	SaveIfRevision(ctx context.Context, record *ProjectRecord, expectedRevision string) (bool, error)
}
