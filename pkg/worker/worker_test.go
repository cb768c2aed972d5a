/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package worker

import (
	"context"
	"testing"
	"time"

	"gotest.tools/assert"
	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/backend"
	"github.com/sigee-min/bbmcp-sub006/pkg/backend/engine"
	"github.com/sigee-min/bbmcp-sub006/pkg/blob"
	"github.com/sigee-min/bbmcp-sub006/pkg/clock"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository/memory"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

type workerFixture struct {
	worker *Worker
	store  *pipeline.Store
	fake   *clock.Fake
}

func newWorkerFixture(be backend.Backend) *workerFixture {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := memory.NewProjectRepository()
	store := pipeline.NewStore(repo, pipeline.Options{
		TenantID:          "default",
		Clock:             fake,
		LockRetryInterval: time.Millisecond,
		LockTimeout:       200 * time.Millisecond,
	})
	if be == nil {
		be = engine.New(store, blob.NewMemoryStore())
	}
	w := New(Options{
		WorkerID: "worker-1",
		Store:    store,
		Backend:  be,
		Resolver: NewWorkspaceResolver(repo, "default", []string{"ws-1"}, DefaultResolverTTL, fake),
		TenantID: "default",
	})
	return &workerFixture{worker: w, store: store, fake: fake}
}

func TestGltfConvertJobCompletes(t *testing.T) {
	fx := newWorkerFixture(nil)
	ctx := context.Background()

	job, err := fx.store.SubmitJob(ctx, "ws-1", pipeline.SubmitJobInput{
		ProjectID: "p-conv", Kind: types.JobKindGltfConvert, Payload: types.Payload{}})
	assert.NilError(t, err)

	fx.worker.tick(ctx)

	done, err := fx.store.GetJob(ctx, "ws-1", job.ID)
	assert.NilError(t, err)
	assert.Equal(t, done.Status, types.JobStatusCompleted)
	assert.Equal(t, done.Result["kind"], types.JobKindGltfConvert)
	assert.Equal(t, done.Result["status"], "converted")

	output, ok := done.Result["output"].(map[string]any)
	assert.Assert(t, ok)
	assert.Equal(t, output["selectedTarget"], "gltf")
	assert.Equal(t, output["exportPath"], "exports/default/p-conv/p-conv.gltf")

	// The implicitly created project carries no geometry yet.
	_, hasGeometry := done.Result["hasGeometry"]
	assert.Equal(t, hasGeometry, false)
}

func TestGltfConvertCarriesProjectContent(t *testing.T) {
	fx := newWorkerFixture(nil)
	ctx := context.Background()

	job, err := fx.store.SubmitJob(ctx, "ws-1", pipeline.SubmitJobInput{
		ProjectID: "project-a", Kind: types.JobKindGltfConvert, Payload: types.Payload{}})
	assert.NilError(t, err)

	fx.worker.tick(ctx)

	done, err := fx.store.GetJob(ctx, "ws-1", job.ID)
	assert.NilError(t, err)
	assert.Equal(t, done.Status, types.JobStatusCompleted)
	assert.Equal(t, done.Result["hasGeometry"], true)

	sources, ok := done.Result["textureSources"].([]any)
	assert.Assert(t, ok)
	assert.Equal(t, len(sources), 1)
	assert.Equal(t, sources[0], "builtin://base")
}

func TestGltfConvertUnknownCodecDeadLetters(t *testing.T) {
	fx := newWorkerFixture(nil)
	ctx := context.Background()

	job, err := fx.store.SubmitJob(ctx, "ws-1", pipeline.SubmitJobInput{
		ProjectID: "p-conv", Kind: types.JobKindGltfConvert,
		Payload: types.Payload{"codecId": "fbx"}})
	assert.NilError(t, err)

	for attempt := 0; attempt < pipeline.DefaultMaxAttempts; attempt++ {
		fx.worker.tick(ctx)
		fx.fake.Advance(time.Minute)
	}

	final, err := fx.store.GetJob(ctx, "ws-1", job.ID)
	assert.NilError(t, err)
	assert.Equal(t, final.Status, types.JobStatusFailed)
	assert.Equal(t, final.DeadLetter, true)
	assert.Equal(t, final.AttemptCount, pipeline.DefaultMaxAttempts)
	assert.Equal(t, final.Error, "export failed (unsupported_format): unknown codec fbx")
}

func TestTexturePreflightReportsMissingTexture(t *testing.T) {
	fx := newWorkerFixture(nil)
	ctx := context.Background()

	job, err := fx.store.SubmitJob(ctx, "ws-1", pipeline.SubmitJobInput{
		ProjectID: "default-project", Kind: types.JobKindTexturePreflight,
		Payload: types.Payload{"textureIds": []any{"base", "tex-ghost"}}})
	assert.NilError(t, err)

	fx.worker.tick(ctx)

	done, err := fx.store.GetJob(ctx, "ws-1", job.ID)
	assert.NilError(t, err)
	// A failed preflight is still a completed job; the verdict lives in the
	// result.
	assert.Equal(t, done.Status, types.JobStatusCompleted)
	assert.Equal(t, done.Result["status"], "failed")

	diagnostics, ok := done.Result["diagnostics"].([]any)
	assert.Assert(t, ok)
	assert.Equal(t, diagnostics[len(diagnostics)-1], "missing texture id(s): tex-ghost")

	summary, ok := done.Result["summary"].(map[string]any)
	assert.Assert(t, ok)
	assert.Equal(t, summary["unresolvedCount"], float64(1))
}

func TestTexturePreflightPasses(t *testing.T) {
	fx := newWorkerFixture(nil)
	ctx := context.Background()

	job, err := fx.store.SubmitJob(ctx, "ws-1", pipeline.SubmitJobInput{
		ProjectID: "default-project", Kind: types.JobKindTexturePreflight,
		Payload: types.Payload{"textureIds": []any{"base"}, "maxDimension": 64}})
	assert.NilError(t, err)

	fx.worker.tick(ctx)

	done, err := fx.store.GetJob(ctx, "ws-1", job.ID)
	assert.NilError(t, err)
	assert.Equal(t, done.Status, types.JobStatusCompleted)
	assert.Equal(t, done.Result["status"], "passed")
}

// cappedBackend reports every tool unavailable.
type cappedBackend struct{}

func (cappedBackend) Kind() string { return "capped" }

func (cappedBackend) GetHealth(_ context.Context) backend.Health {
	return backend.Health{Kind: "capped", Availability: backend.AvailabilityDegraded}
}

func (cappedBackend) HandleTool(_ context.Context, name string, _ types.Payload, _ types.SessionContext) types.ToolResponse {
	if name != types.ToolListCapabilities {
		return types.OkResponse(nil)
	}
	var tools []map[string]any
	for _, toolName := range types.ToolNames() {
		tools = append(tools, map[string]any{"name": toolName, "available": false})
	}
	return types.OkResponse(map[string]any{"backend": "capped", "tools": tools})
}

func TestMissingCapabilityRefusesJob(t *testing.T) {
	fx := newWorkerFixture(cappedBackend{})
	ctx := context.Background()

	job, err := fx.store.SubmitJob(ctx, "ws-1", pipeline.SubmitJobInput{
		ProjectID: "p-conv", Kind: types.JobKindGltfConvert, Payload: types.Payload{}})
	assert.NilError(t, err)

	fx.worker.tick(ctx)

	failed, err := fx.store.GetJob(ctx, "ws-1", job.ID)
	assert.NilError(t, err)
	assert.Equal(t, failed.Status, types.JobStatusQueued)
	assert.Equal(t, failed.Error,
		"backend is missing required tool(s): ensure_project, export, get_project_state")
}

func TestTickRunsAtMostOneJob(t *testing.T) {
	fx := newWorkerFixture(nil)
	ctx := context.Background()

	first, err := fx.store.SubmitJob(ctx, "ws-1", pipeline.SubmitJobInput{
		ProjectID: "p-a", Kind: types.JobKindGltfConvert, Payload: types.Payload{}})
	assert.NilError(t, err)
	second, err := fx.store.SubmitJob(ctx, "ws-1", pipeline.SubmitJobInput{
		ProjectID: "p-b", Kind: types.JobKindGltfConvert, Payload: types.Payload{}})
	assert.NilError(t, err)

	fx.worker.tick(ctx)

	doneFirst, err := fx.store.GetJob(ctx, "ws-1", first.ID)
	assert.NilError(t, err)
	assert.Equal(t, doneFirst.Status, types.JobStatusCompleted)
	stillQueued, err := fx.store.GetJob(ctx, "ws-1", second.ID)
	assert.NilError(t, err)
	assert.Equal(t, stillQueued.Status, types.JobStatusQueued)

	fx.worker.tick(ctx)
	doneSecond, err := fx.store.GetJob(ctx, "ws-1", second.ID)
	assert.NilError(t, err)
	assert.Equal(t, doneSecond.Status, types.JobStatusCompleted)
}

func TestWorkspaceResolverUnionAndTTL(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := memory.NewProjectRepository()

	plantState := func(workspaceID string) {
		err := repo.Save(ctx, &repository.ProjectRecord{
			Scope: repository.ProjectScope{
				TenantID:  "default",
				ProjectID: pipeline.StateScopePrefix + workspaceID,
			},
			Revision: "r1",
			State:    []byte("{}"),
		})
		assert.NilError(t, err)
	}
	plantState("ws-a")

	resolver := NewWorkspaceResolver(repo, "default", []string{"ws-b", " ", "ws-b"}, time.Second, fake)
	assert.DeepEqual(t, resolver.Resolve(ctx), []string{"ws-a", "ws-b"})

	// A workspace appearing mid-TTL stays invisible until the cache expires.
	plantState("ws-c")
	assert.DeepEqual(t, resolver.Resolve(ctx), []string{"ws-a", "ws-b"})

	fake.Advance(time.Second + time.Millisecond)
	assert.DeepEqual(t, resolver.Resolve(ctx), []string{"ws-a", "ws-b", "ws-c"})
}

func TestLogVerbosityFollowsWorkerLevel(t *testing.T) {
	applyLogVerbosity("debug")
	assert.Assert(t, klog.V(4).Enabled())
	assert.Assert(t, !klog.V(6).Enabled())

	applyLogVerbosity("trace")
	assert.Assert(t, klog.V(6).Enabled())

	applyLogVerbosity("info")
	assert.Assert(t, !klog.V(1).Enabled())
}
