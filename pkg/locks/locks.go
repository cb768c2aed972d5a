/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package locks arbitrates exclusive mutator access per project within one
// gateway process. Locks carry an idle TTL and expire passively: every
// acquire and release first prunes entries whose lease has passed.
package locks

import (
	"fmt"
	"sync"
	"time"

	"github.com/sigee-min/bbmcp-sub006/pkg/clock"
	"github.com/sigee-min/bbmcp-sub006/pkg/metrics"
)

// DefaultIdleTTL is the lease length applied when none is configured.
const DefaultIdleTTL = 2000 * time.Millisecond

// Lock is one active project lease.
type Lock struct {
	ProjectID      string    `json:"projectId"`
	WorkspaceID    string    `json:"workspaceId"`
	OwnerAgentID   string    `json:"ownerAgentId"`
	OwnerSessionID string    `json:"ownerSessionId"`
	AcquiredAt     time.Time `json:"acquiredAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// HeldError reports that another holder owns the lock. It is a logical
// outcome of Acquire, not a failure of the manager.
type HeldError struct {
	CurrentOwner Lock
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("project %s is locked by agent %s (session %s)",
		e.CurrentOwner.ProjectID, e.CurrentOwner.OwnerAgentID, e.CurrentOwner.OwnerSessionID)
}

// IsHeld reports whether err is a HeldError.
func IsHeld(err error) bool {
	_, ok := err.(*HeldError)
	return ok
}

type lockKey struct {
	workspaceID string
	projectID   string
}

// Manager is the in-memory lock table. At most one active lock exists per
// (workspaceId, projectId) at any instant.
type Manager struct {
	mu      sync.Mutex
	idleTTL time.Duration
	clock   clock.Clock
	locks   map[lockKey]*Lock
}

// NewManager builds a Manager. A non-positive idleTTL falls back to
// DefaultIdleTTL; a nil clk falls back to the real clock.
func NewManager(idleTTL time.Duration, clk clock.Clock) *Manager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Manager{
		idleTTL: idleTTL,
		clock:   clk,
		locks:   map[lockKey]*Lock{},
	}
}

// AcquireProjectLock takes or refreshes the lock for the project. Reentry by
// the same (agentId, sessionId) refreshes the lease; an expired lock is taken
// over. Any other active holder yields a HeldError.
func (m *Manager) AcquireProjectLock(workspaceID, projectID, ownerAgentID, ownerSessionID string) (*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.prune(now)

	key := lockKey{workspaceID: workspaceID, projectID: projectID}
	if current, ok := m.locks[key]; ok {
		if current.OwnerAgentID == ownerAgentID && current.OwnerSessionID == ownerSessionID {
			current.ExpiresAt = now.Add(m.idleTTL)
			copied := *current
			return &copied, nil
		}
		return nil, &HeldError{CurrentOwner: *current}
	}

	lock := &Lock{
		ProjectID:      projectID,
		WorkspaceID:    workspaceID,
		OwnerAgentID:   ownerAgentID,
		OwnerSessionID: ownerSessionID,
		AcquiredAt:     now,
		ExpiresAt:      now.Add(m.idleTTL),
	}
	m.locks[key] = lock
	copied := *lock
	return &copied, nil
}

// ReleaseProjectLock drops the lock when the caller is the current owner.
// Non-owner releases are counted and left as a no-op so a stale session
// cannot steal the lock out from under the active holder.
func (m *Manager) ReleaseProjectLock(workspaceID, projectID, ownerAgentID, ownerSessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(m.clock.Now())

	key := lockKey{workspaceID: workspaceID, projectID: projectID}
	current, ok := m.locks[key]
	if !ok {
		return true
	}
	if current.OwnerAgentID != ownerAgentID || current.OwnerSessionID != ownerSessionID {
		metrics.LockReleaseNotOwner.Inc()
		return false
	}
	delete(m.locks, key)
	return true
}

// GetProjectLock returns the active lock for the project, or nil.
func (m *Manager) GetProjectLock(workspaceID, projectID string) *Lock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune(m.clock.Now())

	if current, ok := m.locks[lockKey{workspaceID: workspaceID, projectID: projectID}]; ok {
		copied := *current
		return &copied
	}
	return nil
}

// prune drops every lock whose lease has passed. Caller holds m.mu.
func (m *Manager) prune(now time.Time) {
	for key, lock := range m.locks {
		if !lock.ExpiresAt.After(now) {
			delete(m.locks, key)
		}
	}
}
