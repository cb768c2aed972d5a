/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/clock"
	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// Scope prefixes inside the shared KV namespace. The store owns both.
const (
	StateScopePrefix = "native-pipeline/state/"
	lockScopePrefix  = "native-pipeline/lock/"
)

// Job defaults applied when SubmitJob leaves them unset.
const (
	DefaultMaxAttempts = 3
	DefaultLeaseMs     = 60000
)

// Retry backoff bounds for failed jobs.
const (
	retryBackoffInitial = 100 * time.Millisecond
	retryBackoffCap     = 30 * time.Second
)

// Options tunes a Store. Zero values fall back to the package defaults.
type Options struct {
	TenantID          string
	Clock             clock.Clock
	LockRetryInterval time.Duration
	LockTimeout       time.Duration
	LockRecordTTL     time.Duration
}

// Store is the durable pipeline store for all workspaces of one tenant.
type Store struct {
	repo          repository.ProjectRepository
	clock         clock.Clock
	tenantID      string
	lockOwner     string
	retryInterval time.Duration
	lockTimeout   time.Duration
	recordTTL     time.Duration
}

// NewStore builds a Store over the given repository.
func NewStore(repo repository.ProjectRepository, opts Options) *Store {
	if opts.TenantID == "" {
		opts.TenantID = "default"
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.LockRetryInterval <= 0 {
		opts.LockRetryInterval = DefaultLockRetryInterval
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.LockRecordTTL <= 0 {
		opts.LockRecordTTL = DefaultLockRecordTTL
	}
	return &Store{
		repo:          repo,
		clock:         opts.Clock,
		tenantID:      opts.TenantID,
		lockOwner:     newLockOwner(),
		retryInterval: opts.LockRetryInterval,
		lockTimeout:   opts.LockTimeout,
		recordTTL:     opts.LockRecordTTL,
	}
}

func (s *Store) stateScope(workspaceID string) repository.ProjectScope {
	return repository.ProjectScope{TenantID: s.tenantID, ProjectID: StateScopePrefix + workspaceID}
}

func (s *Store) lockFor(workspaceID string) *distributedLock {
	return &distributedLock{
		repo:          s.repo,
		scope:         repository.ProjectScope{TenantID: s.tenantID, ProjectID: lockScopePrefix + workspaceID},
		owner:         s.lockOwner,
		retryInterval: s.retryInterval,
		timeout:       s.lockTimeout,
		recordTTL:     s.recordTTL,
	}
}

// mutate runs fn against the hydrated workspace state under the distributed
// lock, then saves with CAS on the previous revision. First access seeds the
// sample projects before fn runs.
func (s *Store) mutate(ctx context.Context, workspaceID string, fn func(state *pipelineState) error) error {
	lock := s.lockFor(workspaceID)
	if err := lock.acquire(ctx); err != nil {
		return err
	}
	defer lock.release(ctx)

	scope := s.stateScope(workspaceID)
	record, err := s.repo.Find(ctx, scope)
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	var state *pipelineState
	prevRevision := ""
	if record == nil {
		state = newPipelineState()
		state.seed()
	} else {
		prevRevision = record.Revision
		var hydrated bool
		state, hydrated = decodeState(record.State)
		if !hydrated {
			state.seed()
		}
	}

	if err := fn(state); err != nil {
		return err
	}

	payload, err := state.encode()
	if err != nil {
		return gatewayerrors.NewIOError(err)
	}
	next := &repository.ProjectRecord{
		Scope:    scope,
		Revision: contentHash(payload),
		State:    payload,
	}
	if cas, ok := s.repo.(repository.CASProjectRepository); ok {
		applied, err := cas.SaveIfRevision(ctx, next, prevRevision)
		if err != nil {
			return gatewayerrors.NewIOError(err)
		}
		if !applied {
			return gatewayerrors.NewInvalidState("The pipeline state changed underneath this mutation").
				WithReason(gatewayerrors.ReasonStateConflict)
		}
		return nil
	}
	if err := s.repo.Save(ctx, next); err != nil {
		return gatewayerrors.NewIOError(err)
	}
	return nil
}

// read loads the workspace state without taking the lock. A missing record is
// seeded through the mutation path so first reads observe the samples.
func (s *Store) read(ctx context.Context, workspaceID string) (*pipelineState, error) {
	record, err := s.repo.Find(ctx, s.stateScope(workspaceID))
	if err != nil {
		return nil, gatewayerrors.NewIOError(err)
	}
	if record != nil {
		if state, hydrated := decodeState(record.State); hydrated {
			return state, nil
		}
	}
	if err := s.mutate(ctx, workspaceID, func(*pipelineState) error { return nil }); err != nil {
		return nil, err
	}
	record, err = s.repo.Find(ctx, s.stateScope(workspaceID))
	if err != nil {
		return nil, gatewayerrors.NewIOError(err)
	}
	if record == nil {
		return newPipelineState(), nil
	}
	state, _ := decodeState(record.State)
	return state, nil
}

// ListProjects returns the workspace's projects, optionally filtered by a
// case-insensitive substring match on name, sorted by projectId.
func (s *Store) ListProjects(ctx context.Context, workspaceID, query string) ([]*ProjectSnapshot, error) {
	state, err := s.read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	var out []*ProjectSnapshot
	for _, project := range state.Projects {
		if needle != "" && !strings.Contains(strings.ToLower(project.Name), needle) {
			continue
		}
		out = append(out, project.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

// GetProject returns one project snapshot, or nil.
func (s *Store) GetProject(ctx context.Context, workspaceID, projectID string) (*ProjectSnapshot, error) {
	state, err := s.read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return state.Projects[projectID].Clone(), nil
}

// ListProjectJobs returns queued and historical jobs for the project,
// ordered by createdAt then id.
func (s *Store) ListProjectJobs(ctx context.Context, workspaceID, projectID string) ([]*Job, error) {
	state, err := s.read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	var out []*Job
	for _, job := range state.Jobs {
		if job.ProjectID == projectID {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetJob returns one job, or nil.
func (s *Store) GetJob(ctx context.Context, workspaceID, jobID string) (*Job, error) {
	state, err := s.read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return state.Jobs[jobID].Clone(), nil
}

// SubmitJob validates the payload, appends a queued job and journals the
// touched project. A missing project is created when the kind allows
// implicit creation.
func (s *Store) SubmitJob(ctx context.Context, workspaceID string, input SubmitJobInput) (*Job, error) {
	if !types.IsKnownJobKind(input.Kind) {
		return nil, gatewayerrors.NewInvalidPayload(fmt.Sprintf("unknown native job kind: %s", input.Kind))
	}
	if err := types.ValidateJobPayload(input.Kind, input.Payload); err != nil {
		return nil, err
	}
	if input.ProjectID == "" {
		return nil, gatewayerrors.NewInvalidPayload("projectId is required")
	}
	maxAttempts := input.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	leaseMs := input.LeaseMs
	if leaseMs <= 0 {
		leaseMs = DefaultLeaseMs
	}

	var submitted *Job
	err := s.mutate(ctx, workspaceID, func(state *pipelineState) error {
		project, ok := state.Projects[input.ProjectID]
		if !ok {
			if !types.JobKindAllowsImplicitCreate(input.Kind) {
				return gatewayerrors.NewInvalidState(fmt.Sprintf("project %s does not exist", input.ProjectID))
			}
			project = &ProjectSnapshot{
				ProjectID: input.ProjectID,
				Name:      input.ProjectID,
				Revision:  1,
			}
			project.RecountStats()
			state.Projects[input.ProjectID] = project
		}

		job := &Job{
			ID:          formatJobID(state.NextJobID),
			ProjectID:   input.ProjectID,
			Kind:        input.Kind,
			Status:      types.JobStatusQueued,
			MaxAttempts: maxAttempts,
			LeaseMs:     leaseMs,
			CreatedAt:   s.clock.Now(),
			Payload:     clonePayload(input.Payload),
		}
		state.NextJobID++
		state.Jobs[job.ID] = job
		state.QueuedJobIDs = append(state.QueuedJobIDs, job.ID)
		state.refreshActiveJob(input.ProjectID)
		state.appendEvent(input.ProjectID, project)
		submitted = job.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return submitted, nil
}

// ClaimNextJob pops the first queued job whose retry time has elapsed,
// marks it running and leases it to workerId. Returns nil when no job is
// ready.
func (s *Store) ClaimNextJob(ctx context.Context, workspaceID, workerID string) (*Job, error) {
	var claimed *Job
	err := s.mutate(ctx, workspaceID, func(state *pipelineState) error {
		now := s.clock.Now()
		for i, jobID := range state.QueuedJobIDs {
			job, ok := state.Jobs[jobID]
			if !ok {
				continue
			}
			if job.NextRetryAt != nil && job.NextRetryAt.After(now) {
				continue
			}
			state.QueuedJobIDs = append(state.QueuedJobIDs[:i], state.QueuedJobIDs[i+1:]...)
			started := now
			leaseExpires := now.Add(time.Duration(job.LeaseMs) * time.Millisecond)
			job.Status = types.JobStatusRunning
			job.WorkerID = workerID
			job.AttemptCount++
			job.StartedAt = &started
			job.LeaseExpiresAt = &leaseExpires
			job.NextRetryAt = nil
			state.refreshActiveJob(job.ProjectID)
			if project, ok := state.Projects[job.ProjectID]; ok {
				state.appendEvent(job.ProjectID, project)
			}
			claimed = job.Clone()
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// CompleteJob finishes a running job and stores its result. Completing after
// lease expiry is still permitted; the state is re-read under the lock so a
// concurrent re-queue would be observed.
func (s *Store) CompleteJob(ctx context.Context, workspaceID, jobID string, result types.Payload) (*Job, error) {
	var completed *Job
	err := s.mutate(ctx, workspaceID, func(state *pipelineState) error {
		job, ok := state.Jobs[jobID]
		if !ok {
			return nil
		}
		if job.Status != types.JobStatusRunning {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("job %s is not running (status %s)", jobID, job.Status))
		}
		now := s.clock.Now()
		job.Status = types.JobStatusCompleted
		job.CompletedAt = &now
		job.Result = clonePayload(result)
		job.Error = ""
		state.refreshActiveJob(job.ProjectID)
		if project, ok := state.Projects[job.ProjectID]; ok {
			state.appendEvent(job.ProjectID, project)
		}
		completed = job.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// FailJob records a failure. Below maxAttempts the job re-queues with an
// exponential retry delay; at the limit it dead-letters.
func (s *Store) FailJob(ctx context.Context, workspaceID, jobID, errorMessage string) (*Job, error) {
	var failed *Job
	err := s.mutate(ctx, workspaceID, func(state *pipelineState) error {
		job, ok := state.Jobs[jobID]
		if !ok {
			return nil
		}
		if job.Status != types.JobStatusRunning {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("job %s is not running (status %s)", jobID, job.Status))
		}
		now := s.clock.Now()
		job.Error = errorMessage
		job.WorkerID = ""
		job.StartedAt = nil
		job.LeaseExpiresAt = nil
		if job.AttemptCount < job.MaxAttempts {
			retryAt := now.Add(retryBackoff(job.AttemptCount, job.ID))
			job.Status = types.JobStatusQueued
			job.NextRetryAt = &retryAt
			state.QueuedJobIDs = append(state.QueuedJobIDs, job.ID)
		} else {
			job.Status = types.JobStatusFailed
			job.DeadLetter = true
			job.CompletedAt = &now
		}
		state.refreshActiveJob(job.ProjectID)
		if project, ok := state.Projects[job.ProjectID]; ok {
			state.appendEvent(job.ProjectID, project)
		}
		failed = job.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}

// GetProjectEventsSince returns the project's journal entries with
// seq > lastSeq, oldest first.
func (s *Store) GetProjectEventsSince(ctx context.Context, workspaceID, projectID string, lastSeq int64) ([]*ProjectEvent, error) {
	state, err := s.read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	var out []*ProjectEvent
	for _, event := range state.ProjectEvents[projectID] {
		if event.Seq > lastSeq {
			copied := *event
			copied.Data = event.Data.Clone()
			out = append(out, &copied)
		}
	}
	return out, nil
}

// EnsureProject returns the project, creating it when absent and create is
// set. The second return reports whether a new project was created.
func (s *Store) EnsureProject(ctx context.Context, workspaceID, projectID, name string, create bool) (*ProjectSnapshot, bool, error) {
	existing, err := s.GetProject(ctx, workspaceID, projectID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if !create {
		return nil, false, nil
	}
	var created *ProjectSnapshot
	err = s.mutate(ctx, workspaceID, func(state *pipelineState) error {
		if project, ok := state.Projects[projectID]; ok {
			created = project.Clone()
			return nil
		}
		if name == "" {
			name = projectID
		}
		project := &ProjectSnapshot{
			ProjectID: projectID,
			Name:      name,
			Revision:  1,
		}
		project.RecountStats()
		state.Projects[projectID] = project
		state.appendEvent(projectID, project)
		created = project.Clone()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return created, existing == nil, nil
}

// UpdateProject applies fn to the project under the distributed lock, bumps
// its revision and journals the new snapshot. The project must exist.
func (s *Store) UpdateProject(ctx context.Context, workspaceID, projectID string, fn func(project *ProjectSnapshot) error) (*ProjectSnapshot, error) {
	var updated *ProjectSnapshot
	err := s.mutate(ctx, workspaceID, func(state *pipelineState) error {
		project, ok := state.Projects[projectID]
		if !ok {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("project %s does not exist", projectID))
		}
		if err := fn(project); err != nil {
			return err
		}
		project.RecountStats()
		project.Revision++
		state.appendEvent(projectID, project)
		updated = project.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Reset drops the workspace state record. Test helper.
func (s *Store) Reset(ctx context.Context, workspaceID string) error {
	if err := s.repo.Remove(ctx, s.stateScope(workspaceID)); err != nil {
		return gatewayerrors.NewIOError(err)
	}
	klog.Infof("reset pipeline state for workspace %s", workspaceID)
	return nil
}

// retryBackoff is min(initial * 2^(attempt-1), cap) plus a deterministic
// jitter derived from the job id.
func retryBackoff(attempt int, jobID string) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := retryBackoffInitial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= retryBackoffCap {
			delay = retryBackoffCap
			break
		}
	}
	jitter := time.Duration(0)
	if n, ok := jobNumber(jobID); ok {
		jitter = time.Duration(n%50) * time.Millisecond
	}
	return delay + jitter
}
