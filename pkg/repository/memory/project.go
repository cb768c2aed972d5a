/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package memory provides in-memory implementations of the persistence ports.
// They back tests and the worker's memory pipeline mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
)

// ProjectRepository is a mutex-guarded in-memory scoped KV with CAS support.
type ProjectRepository struct {
	mu      sync.Mutex
	records map[repository.ProjectScope]*repository.ProjectRecord
}

// NewProjectRepository returns an empty repository.
func NewProjectRepository() *ProjectRepository {
	return &ProjectRepository{records: map[repository.ProjectScope]*repository.ProjectRecord{}}
}

// Find returns the record for scope, or nil.
func (r *ProjectRepository) Find(_ context.Context, scope repository.ProjectScope) (*repository.ProjectRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[scope].Clone(), nil
}

// Save stores the record unconditionally.
func (r *ProjectRepository) Save(_ context.Context, record *repository.ProjectRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store(record)
	return nil
}

// SaveIfRevision stores the record when the current revision matches
// expectedRevision. Empty expectedRevision requires absence.
func (r *ProjectRepository) SaveIfRevision(_ context.Context,
	record *repository.ProjectRecord, expectedRevision string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.records[record.Scope]
	if expectedRevision == "" {
		if ok {
			return false, nil
		}
	} else {
		if !ok || current.Revision != expectedRevision {
			return false, nil
		}
	}
	r.store(record)
	return true, nil
}

// Remove deletes the record for scope. Missing scopes are a no-op.
func (r *ProjectRepository) Remove(_ context.Context, scope repository.ProjectScope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, scope)
	return nil
}

// ListByScopePrefix returns records whose projectId starts with the prefix,
// sorted by projectId ascending.
func (r *ProjectRepository) ListByScopePrefix(_ context.Context,
	tenantID, projectIDPrefix string) ([]*repository.ProjectRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.ProjectRecord
	for scope, record := range r.records {
		if scope.TenantID != tenantID || !strings.HasPrefix(scope.ProjectID, projectIDPrefix) {
			continue
		}
		out = append(out, record.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Scope.ProjectID < out[j].Scope.ProjectID
	})
	return out, nil
}

// NoCAS wraps a repository so that SaveIfRevision support is not visible.
// Tests use it to exercise the unconditional-save fallback.
type NoCAS struct {
	inner *ProjectRepository
}

// WithoutCAS returns repo narrowed to the plain ProjectRepository port.
func WithoutCAS(repo *ProjectRepository) repository.ProjectRepository {
	return &NoCAS{inner: repo}
}

func (n *NoCAS) Find(ctx context.Context, scope repository.ProjectScope) (*repository.ProjectRecord, error) {
	return n.inner.Find(ctx, scope)
}

func (n *NoCAS) Save(ctx context.Context, record *repository.ProjectRecord) error {
	return n.inner.Save(ctx, record)
}

func (n *NoCAS) Remove(ctx context.Context, scope repository.ProjectScope) error {
	return n.inner.Remove(ctx, scope)
}

func (n *NoCAS) ListByScopePrefix(ctx context.Context,
	tenantID, projectIDPrefix string) ([]*repository.ProjectRecord, error) {
	return n.inner.ListByScopePrefix(ctx, tenantID, projectIDPrefix)
}

func (r *ProjectRepository) store(record *repository.ProjectRecord) {
	clone := record.Clone()
	if clone.CreatedAt.IsZero() {
		if existing, ok := r.records[record.Scope]; ok {
			clone.CreatedAt = existing.CreatedAt
		} else {
			clone.CreatedAt = time.Now().UTC()
		}
	}
	clone.UpdatedAt = time.Now().UTC()
	r.records[record.Scope] = clone
}
