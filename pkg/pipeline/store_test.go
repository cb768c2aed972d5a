/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pipeline

import (
	"context"
	"testing"
	"time"

	"gotest.tools/assert"

	"github.com/sigee-min/bbmcp-sub006/pkg/clock"
	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository/memory"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

func newTestStore() (*Store, *clock.Fake) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewStore(memory.NewProjectRepository(), Options{
		TenantID:          "default",
		Clock:             fake,
		LockRetryInterval: time.Millisecond,
		LockTimeout:       200 * time.Millisecond,
	})
	return store, fake
}

func TestFirstAccessSeedsSampleProjects(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	projects, err := store.ListProjects(ctx, "ws-1", "")
	assert.NilError(t, err)
	assert.Equal(t, len(projects), 2)
	assert.Equal(t, projects[0].ProjectID, "default-project")
	assert.Equal(t, projects[1].ProjectID, "project-a")

	// project-a ships with geometry under its root bone.
	assert.Equal(t, projects[1].HasGeometry, true)
	assert.Assert(t, len(projects[1].Hierarchy) > 0)
	assert.Assert(t, len(projects[1].Hierarchy[0].Children) >= 1)
}

func TestListProjectsFiltersByName(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	projects, err := store.ListProjects(ctx, "ws-1", "project a")
	assert.NilError(t, err)
	assert.Equal(t, len(projects), 1)
	assert.Equal(t, projects[0].ProjectID, "project-a")
}

func TestEnsureProjectCreatesOnce(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	project, created, err := store.EnsureProject(ctx, "ws-1", "p-new", "New Project", true)
	assert.NilError(t, err)
	assert.Equal(t, created, true)
	assert.Equal(t, project.Name, "New Project")
	assert.Equal(t, project.Revision, int64(1))

	again, created, err := store.EnsureProject(ctx, "ws-1", "p-new", "Other Name", true)
	assert.NilError(t, err)
	assert.Equal(t, created, false)
	assert.Equal(t, again.Name, "New Project")

	missing, created, err := store.EnsureProject(ctx, "ws-1", "absent", "", false)
	assert.NilError(t, err)
	assert.Equal(t, created, false)
	assert.Assert(t, missing == nil)
}

func TestSubmitJobValidation(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, err := store.SubmitJob(ctx, "ws-1", SubmitJobInput{ProjectID: "default-project", Kind: "bogus.kind"})
	assert.Equal(t, gatewayerrors.CodeOf(err), gatewayerrors.CodeInvalidPayload)

	_, err = store.SubmitJob(ctx, "ws-1", SubmitJobInput{
		ProjectID: "default-project",
		Kind:      types.JobKindGltfConvert,
		Payload:   types.Payload{"unexpected": true},
	})
	assert.Equal(t, gatewayerrors.CodeOf(err), gatewayerrors.CodeInvalidPayload)

	// texture.preflight does not create projects implicitly.
	_, err = store.SubmitJob(ctx, "ws-1", SubmitJobInput{
		ProjectID: "nowhere",
		Kind:      types.JobKindTexturePreflight,
		Payload:   types.Payload{"textureIds": []any{"tex-1"}},
	})
	assert.Equal(t, gatewayerrors.CodeOf(err), gatewayerrors.CodeInvalidState)
}

func TestSubmitGltfConvertCreatesProjectImplicitly(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	job, err := store.SubmitJob(ctx, "ws-1", SubmitJobInput{
		ProjectID: "fresh-project",
		Kind:      types.JobKindGltfConvert,
		Payload:   types.Payload{},
	})
	assert.NilError(t, err)
	assert.Equal(t, job.Status, types.JobStatusQueued)
	assert.Equal(t, job.MaxAttempts, DefaultMaxAttempts)
	assert.Equal(t, job.LeaseMs, int64(DefaultLeaseMs))

	project, err := store.GetProject(ctx, "ws-1", "fresh-project")
	assert.NilError(t, err)
	assert.Assert(t, project != nil)
	assert.Assert(t, project.ActiveJob != nil)
	assert.Equal(t, project.ActiveJob.ID, job.ID)
	assert.Equal(t, project.ActiveJob.Status, types.JobStatusQueued)
}

func TestClaimIsFIFO(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	first, err := store.SubmitJob(ctx, "ws-1", SubmitJobInput{
		ProjectID: "default-project", Kind: types.JobKindGltfConvert, Payload: types.Payload{}})
	assert.NilError(t, err)
	second, err := store.SubmitJob(ctx, "ws-1", SubmitJobInput{
		ProjectID: "default-project", Kind: types.JobKindGltfConvert, Payload: types.Payload{}})
	assert.NilError(t, err)

	claimed, err := store.ClaimNextJob(ctx, "ws-1", "worker-1")
	assert.NilError(t, err)
	assert.Equal(t, claimed.ID, first.ID)
	assert.Equal(t, claimed.Status, types.JobStatusRunning)
	assert.Equal(t, claimed.WorkerID, "worker-1")
	assert.Equal(t, claimed.AttemptCount, 1)
	assert.Assert(t, claimed.LeaseExpiresAt != nil)

	claimed, err = store.ClaimNextJob(ctx, "ws-1", "worker-1")
	assert.NilError(t, err)
	assert.Equal(t, claimed.ID, second.ID)

	claimed, err = store.ClaimNextJob(ctx, "ws-1", "worker-1")
	assert.NilError(t, err)
	assert.Assert(t, claimed == nil)
}

func TestCompleteJobStoresResult(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	job, err := store.SubmitJob(ctx, "ws-1", SubmitJobInput{
		ProjectID: "default-project", Kind: types.JobKindGltfConvert, Payload: types.Payload{}})
	assert.NilError(t, err)

	// Completing a queued job is rejected.
	_, err = store.CompleteJob(ctx, "ws-1", job.ID, types.Payload{"status": "converted"})
	assert.Equal(t, gatewayerrors.CodeOf(err), gatewayerrors.CodeInvalidState)

	_, err = store.ClaimNextJob(ctx, "ws-1", "worker-1")
	assert.NilError(t, err)
	done, err := store.CompleteJob(ctx, "ws-1", job.ID, types.Payload{"status": "converted"})
	assert.NilError(t, err)
	assert.Equal(t, done.Status, types.JobStatusCompleted)
	assert.Assert(t, done.CompletedAt != nil)
	assert.Equal(t, done.Result["status"], "converted")

	project, err := store.GetProject(ctx, "ws-1", "default-project")
	assert.NilError(t, err)
	assert.Assert(t, project.ActiveJob == nil)
}

func TestFailJobRequeuesWithBackoff(t *testing.T) {
	store, fake := newTestStore()
	ctx := context.Background()

	job, err := store.SubmitJob(ctx, "ws-1", SubmitJobInput{
		ProjectID: "default-project", Kind: types.JobKindGltfConvert, Payload: types.Payload{}})
	assert.NilError(t, err)
	_, err = store.ClaimNextJob(ctx, "ws-1", "worker-1")
	assert.NilError(t, err)

	failed, err := store.FailJob(ctx, "ws-1", job.ID, "export failed (io_error): boom")
	assert.NilError(t, err)
	assert.Equal(t, failed.Status, types.JobStatusQueued)
	assert.Equal(t, failed.Error, "export failed (io_error): boom")
	assert.Equal(t, failed.WorkerID, "")
	assert.Assert(t, failed.NextRetryAt != nil)

	// Not ready yet: the retry delay has not elapsed.
	claimed, err := store.ClaimNextJob(ctx, "ws-1", "worker-1")
	assert.NilError(t, err)
	assert.Assert(t, claimed == nil)

	fake.Advance(time.Second)
	claimed, err = store.ClaimNextJob(ctx, "ws-1", "worker-1")
	assert.NilError(t, err)
	assert.Equal(t, claimed.ID, job.ID)
	assert.Equal(t, claimed.AttemptCount, 2)
}

func TestFailJobDeadLettersAtMaxAttempts(t *testing.T) {
	store, fake := newTestStore()
	ctx := context.Background()

	job, err := store.SubmitJob(ctx, "ws-1", SubmitJobInput{
		ProjectID: "default-project", Kind: types.JobKindGltfConvert,
		Payload: types.Payload{}, MaxAttempts: 2})
	assert.NilError(t, err)

	for attempt := 1; attempt <= 2; attempt++ {
		claimed, err := store.ClaimNextJob(ctx, "ws-1", "worker-1")
		assert.NilError(t, err)
		assert.Equal(t, claimed.AttemptCount, attempt)
		_, err = store.FailJob(ctx, "ws-1", job.ID, "export failed (unsupported_format): unknown codec fbx")
		assert.NilError(t, err)
		fake.Advance(time.Minute)
	}

	final, err := store.GetJob(ctx, "ws-1", job.ID)
	assert.NilError(t, err)
	assert.Equal(t, final.Status, types.JobStatusFailed)
	assert.Equal(t, final.DeadLetter, true)
	assert.Assert(t, final.CompletedAt != nil)

	claimed, err := store.ClaimNextJob(ctx, "ws-1", "worker-1")
	assert.NilError(t, err)
	assert.Assert(t, claimed == nil)
}

func TestUpdateProjectBumpsRevisionAndJournals(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	before, err := store.GetProject(ctx, "ws-1", "default-project")
	assert.NilError(t, err)

	updated, err := store.UpdateProject(ctx, "ws-1", "default-project", func(project *ProjectSnapshot) error {
		project.Hierarchy = append(project.Hierarchy, &HierarchyNode{
			ID: "cube-extra", Name: "extra", Type: NodeCube, Size: []float64{1, 1, 1}})
		return nil
	})
	assert.NilError(t, err)
	assert.Equal(t, updated.Revision, before.Revision+1)
	assert.Equal(t, updated.HasGeometry, true)

	events, err := store.GetProjectEventsSince(ctx, "ws-1", "default-project", 0)
	assert.NilError(t, err)
	assert.Assert(t, len(events) >= 1)
	last := events[len(events)-1]
	assert.Equal(t, last.Event, EventProjectSnapshot)
	assert.Equal(t, last.Data.Revision, updated.Revision)

	// seq filtering returns only newer entries.
	newer, err := store.GetProjectEventsSince(ctx, "ws-1", "default-project", last.Seq)
	assert.NilError(t, err)
	assert.Equal(t, len(newer), 0)
}

func TestWorkspacesAreIsolated(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, _, err := store.EnsureProject(ctx, "ws-1", "only-in-ws1", "", true)
	assert.NilError(t, err)

	project, err := store.GetProject(ctx, "ws-2", "only-in-ws1")
	assert.NilError(t, err)
	assert.Assert(t, project == nil)
}

func TestRetryBackoffGrowsAndCaps(t *testing.T) {
	assert.Equal(t, retryBackoff(1, "job-0"), 100*time.Millisecond)
	assert.Equal(t, retryBackoff(2, "job-0"), 200*time.Millisecond)
	assert.Equal(t, retryBackoff(3, "job-0"), 400*time.Millisecond)
	assert.Equal(t, retryBackoff(20, "job-0"), 30*time.Second)
	// Jitter is deterministic per job id.
	assert.Equal(t, retryBackoff(1, "job-7"), 107*time.Millisecond)
}
