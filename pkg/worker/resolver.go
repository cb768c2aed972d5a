/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package worker

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/clock"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
)

// DefaultResolverTTL bounds how stale the workspace enumeration may get.
const DefaultResolverTTL = 2 * time.Second

// WorkspaceResolver enumerates the workspace ids the worker polls. The
// result is the union of the static hint list and a prefix scan over the
// pipeline state records, cached with a TTL.
type WorkspaceResolver struct {
	repo     repository.ProjectRepository
	tenantID string
	hints    []string
	ttl      time.Duration
	clock    clock.Clock

	mu        sync.Mutex
	cached    []string
	expiresAt time.Time
}

// NewWorkspaceResolver builds a resolver. Non-positive ttl falls back to
// DefaultResolverTTL.
func NewWorkspaceResolver(repo repository.ProjectRepository, tenantID string, hints []string, ttl time.Duration, clk clock.Clock) *WorkspaceResolver {
	if ttl <= 0 {
		ttl = DefaultResolverTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &WorkspaceResolver{
		repo:     repo,
		tenantID: tenantID,
		hints:    hints,
		ttl:      ttl,
		clock:    clk,
	}
}

// Resolve returns the current workspace set, sorted. Scan failures fall back
// to the hint list so the loop keeps running.
func (r *WorkspaceResolver) Resolve(ctx context.Context) []string {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil && r.expiresAt.After(now) {
		return append([]string(nil), r.cached...)
	}

	set := map[string]bool{}
	for _, hint := range r.hints {
		if hint = strings.TrimSpace(hint); hint != "" {
			set[hint] = true
		}
	}
	records, err := r.repo.ListByScopePrefix(ctx, r.tenantID, pipeline.StateScopePrefix)
	if err != nil {
		klog.ErrorS(err, "workspace scan failed, using hints only")
	} else {
		for _, record := range records {
			workspaceID := strings.TrimPrefix(record.Scope.ProjectID, pipeline.StateScopePrefix)
			if workspaceID != "" {
				set[workspaceID] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for workspaceID := range set {
		out = append(out, workspaceID)
	}
	sort.Strings(out)
	r.cached = out
	r.expiresAt = now.Add(r.ttl)
	return append([]string(nil), out...)
}
