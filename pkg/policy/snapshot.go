/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package policy answers workspace authorization questions from cached
// snapshots of the workspace collections.
package policy

import (
	"context"
	"sync"
	"time"

	"github.com/sigee-min/bbmcp-sub006/pkg/clock"
	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
)

// DefaultCacheTTL bounds snapshot staleness.
const DefaultCacheTTL = 1500 * time.Millisecond

// Snapshot is one workspace's authorization-relevant state, materialized by
// parallel reads of the four workspace collections.
type Snapshot struct {
	Workspace             *repository.Workspace
	Roles                 []*repository.Role
	Members               []*repository.Member
	AclRules              []*repository.AclRule
	WorkspaceAdminRoleIDs map[string]bool
}

// RoleByID returns the snapshot role with the given id, or nil.
func (s *Snapshot) RoleByID(roleID string) *repository.Role {
	for _, role := range s.Roles {
		if role.RoleID == roleID {
			return role
		}
	}
	return nil
}

// MemberOf returns the snapshot membership of accountID, or nil.
func (s *Snapshot) MemberOf(accountID string) *repository.Member {
	for _, member := range s.Members {
		if member.AccountID == accountID {
			return member
		}
	}
	return nil
}

type cacheEntry struct {
	snapshot  *Snapshot
	expiresAt time.Time
}

// Service resolves and caches workspace snapshots. Invalidation races are
// benign: a stale miss just re-materializes.
type Service struct {
	repo     repository.WorkspaceRepository
	clock    clock.Clock
	cacheTTL time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewService builds a Service. Non-positive ttl falls back to
// DefaultCacheTTL; nil clk falls back to the real clock.
func NewService(repo repository.WorkspaceRepository, ttl time.Duration, clk clock.Clock) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{
		repo:     repo,
		clock:    clk,
		cacheTTL: ttl,
		cache:    map[string]cacheEntry{},
	}
}

// LoadSnapshot returns the cached snapshot for the workspace, materializing
// it on miss or expiry. Returns nil when the workspace does not exist.
func (s *Service) LoadSnapshot(ctx context.Context, workspaceID string) (*Snapshot, error) {
	now := s.clock.Now()
	s.mu.RLock()
	entry, ok := s.cache[workspaceID]
	s.mu.RUnlock()
	if ok && entry.expiresAt.After(now) {
		return entry.snapshot, nil
	}

	snapshot, err := s.materialize(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, nil
	}
	s.mu.Lock()
	s.cache[workspaceID] = cacheEntry{snapshot: snapshot, expiresAt: now.Add(s.cacheTTL)}
	s.mu.Unlock()
	return snapshot, nil
}

// InvalidateWorkspace drops one cached snapshot.
func (s *Service) InvalidateWorkspace(workspaceID string) {
	s.mu.Lock()
	delete(s.cache, workspaceID)
	s.mu.Unlock()
}

// InvalidateAll clears the cache.
func (s *Service) InvalidateAll() {
	s.mu.Lock()
	s.cache = map[string]cacheEntry{}
	s.mu.Unlock()
}

func (s *Service) materialize(ctx context.Context, workspaceID string) (*Snapshot, error) {
	workspace, err := s.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, gatewayerrors.NewIOError(err)
	}
	if workspace == nil {
		return nil, nil
	}

	var (
		wg       sync.WaitGroup
		roles    []*repository.Role
		members  []*repository.Member
		aclRules []*repository.AclRule
		errs     [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		roles, errs[0] = s.repo.ListRoles(ctx, workspaceID)
	}()
	go func() {
		defer wg.Done()
		members, errs[1] = s.repo.ListMembers(ctx, workspaceID)
	}()
	go func() {
		defer wg.Done()
		aclRules, errs[2] = s.repo.ListAclRules(ctx, workspaceID)
	}()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, gatewayerrors.NewIOError(err)
		}
	}

	adminRoleIDs := map[string]bool{}
	for _, role := range roles {
		if role.IsWorkspaceAdmin() {
			adminRoleIDs[role.RoleID] = true
		}
	}
	return &Snapshot{
		Workspace:             workspace,
		Roles:                 roles,
		Members:               members,
		AclRules:              aclRules,
		WorkspaceAdminRoleIDs: adminRoleIDs,
	}, nil
}
