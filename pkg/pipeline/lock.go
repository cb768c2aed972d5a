/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/utils/timeutil"
)

// Distributed-lock defaults. The lock record lives in the same KV as the
// state record, so a CAS-capable repository makes acquisition race-free
// across processes.
const (
	DefaultLockRetryInterval = 30 * time.Millisecond
	DefaultLockTimeout       = 10 * time.Second
	DefaultLockRecordTTL     = 30 * time.Second
)

// lockRecord is the persisted lock value.
type lockRecord struct {
	Owner     string `json:"owner"`
	ExpiresAt string `json:"expiresAt"`
}

func (l *lockRecord) activeAt(now time.Time) bool {
	expires := timeutil.ParseRFC3339(l.ExpiresAt)
	return expires.After(now)
}

// newLockOwner mints a process-unique owner identity.
func newLockOwner() string {
	return fmt.Sprintf("%d-%s", os.Getpid(), uuid.NewString())
}

// distributedLock serializes writers of one workspace state record.
type distributedLock struct {
	repo          repository.ProjectRepository
	scope         repository.ProjectScope
	owner         string
	retryInterval time.Duration
	timeout       time.Duration
	recordTTL     time.Duration
}

// acquire spins on the lock record until it is taken or the timeout elapses.
// Expired records are taken over; takeover of an active record is never
// attempted. On timeout the caller observes lock_acquire_timeout.
func (d *distributedLock) acquire(ctx context.Context) error {
	deadline, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	attempt := func() error {
		taken, err := d.tryAcquire(deadline)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !taken {
			return fmt.Errorf("lock held")
		}
		return nil
	}
	policy := backoff.WithContext(backoff.NewConstantBackOff(d.retryInterval), deadline)
	if err := backoff.Retry(attempt, policy); err != nil {
		var typed *gatewayerrors.Error
		if errors.As(err, &typed) {
			return typed
		}
		return gatewayerrors.NewInvalidState("Timed out waiting for the pipeline lock").
			WithReason(gatewayerrors.ReasonLockAcquireTimeout)
	}
	return nil
}

// tryAcquire attempts one compare-and-swap on the lock record.
func (d *distributedLock) tryAcquire(ctx context.Context) (bool, error) {
	current, err := d.repo.Find(ctx, d.scope)
	if err != nil {
		return false, gatewayerrors.NewIOError(err)
	}
	now := time.Now().UTC()
	expectedRevision := ""
	if current != nil {
		var record lockRecord
		if err := json.Unmarshal(current.State, &record); err == nil && record.activeAt(now) {
			return false, nil
		}
		expectedRevision = current.Revision
	}

	payload, err := json.Marshal(lockRecord{
		Owner:     d.owner,
		ExpiresAt: timeutil.FormatRFC3339(now.Add(d.recordTTL)),
	})
	if err != nil {
		return false, gatewayerrors.NewIOError(err)
	}
	next := &repository.ProjectRecord{
		Scope:    d.scope,
		Revision: contentHash(payload),
		State:    payload,
	}

	if cas, ok := d.repo.(repository.CASProjectRepository); ok {
		applied, err := cas.SaveIfRevision(ctx, next, expectedRevision)
		if err != nil {
			return false, gatewayerrors.NewIOError(err)
		}
		return applied, nil
	}
	// Without CAS the save is unconditional; single-writer deployments only.
	if err := d.repo.Save(ctx, next); err != nil {
		return false, gatewayerrors.NewIOError(err)
	}
	return true, nil
}

// release drops the lock record when still owned. Best-effort: a lost or
// taken-over record is left alone.
func (d *distributedLock) release(ctx context.Context) {
	current, err := d.repo.Find(ctx, d.scope)
	if err != nil || current == nil {
		return
	}
	var record lockRecord
	if err := json.Unmarshal(current.State, &record); err != nil || record.Owner != d.owner {
		return
	}
	if err := d.repo.Remove(ctx, d.scope); err != nil {
		klog.ErrorS(err, "failed to release pipeline lock", "scope", d.scope.ProjectID)
	}
}
