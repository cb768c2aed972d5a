/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package worker drains the native pipeline queue(s). One worker runs at most
// one job per polling tick; multiple worker processes may share one store
// because queue transitions serialize through the store's distributed lock.
package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/backend"
	"github.com/sigee-min/bbmcp-sub006/pkg/metrics"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// Loop timing defaults.
const (
	DefaultPollInterval      = 1200 * time.Millisecond
	DefaultHeartbeatInterval = 5000 * time.Millisecond
)

// requiredTools lists the backend tools each job kind needs. Execution is
// refused up front when the backend reports any of them unavailable.
var requiredTools = map[string][]string{
	types.JobKindGltfConvert:      {types.ToolEnsureProject, types.ToolExport, types.ToolGetProjectState},
	types.JobKindTexturePreflight: {types.ToolEnsureProject, types.ToolPreflightTexture},
}

// Options wires a Worker.
type Options struct {
	WorkerID          string
	Store             *pipeline.Store
	Backend           backend.Backend
	Resolver          *WorkspaceResolver
	TenantID          string
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// Worker is the cooperative job loop.
type Worker struct {
	workerID          string
	store             *pipeline.Store
	backend           backend.Backend
	resolver          *WorkspaceResolver
	tenantID          string
	pollInterval      time.Duration
	heartbeatInterval time.Duration
}

// New builds a Worker.
func New(opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.TenantID == "" {
		opts.TenantID = "default"
	}
	return &Worker{
		workerID:          opts.WorkerID,
		store:             opts.Store,
		backend:           opts.Backend,
		resolver:          opts.Resolver,
		tenantID:          opts.TenantID,
		pollInterval:      opts.PollInterval,
		heartbeatInterval: opts.HeartbeatInterval,
	}
}

// Run polls until ctx is cancelled. The in-flight job always finishes before
// the loop exits.
func (w *Worker) Run(ctx context.Context) {
	klog.Infof("worker %s starting, poll interval %s", w.workerID, w.pollInterval)
	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.heartbeat(heartbeatCtx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			klog.Infof("worker %s stopping", w.workerID)
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick iterates the workspace set and runs at most one claimed job.
func (w *Worker) tick(ctx context.Context) {
	for _, workspaceID := range w.resolver.Resolve(ctx) {
		job, err := w.store.ClaimNextJob(ctx, workspaceID, w.workerID)
		if err != nil {
			klog.ErrorS(err, "claim failed", "workspace", workspaceID)
			continue
		}
		if job == nil {
			continue
		}
		w.runJob(ctx, workspaceID, job)
		return
	}
}

// heartbeat logs backend health on its own timer. Failures never halt the
// job loop.
func (w *Worker) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health := w.backend.GetHealth(ctx)
			healthy := 0.0
			if health.Availability == backend.AvailabilityReady {
				healthy = 1.0
			}
			metrics.HeartbeatHealthy.WithLabelValues(health.Kind).Set(healthy)
			klog.Infof("heartbeat: backend=%s availability=%s version=%s",
				health.Kind, health.Availability, health.Version)
		}
	}
}

func (w *Worker) runJob(ctx context.Context, workspaceID string, job *pipeline.Job) {
	klog.Infof("worker %s running job %s kind=%s project=%s attempt=%d",
		w.workerID, job.ID, job.Kind, job.ProjectID, job.AttemptCount)

	if missing := w.missingCapabilities(ctx, job.Kind); len(missing) > 0 {
		w.fail(ctx, workspaceID, job,
			fmt.Sprintf("backend is missing required tool(s): %s", strings.Join(missing, ", ")))
		return
	}

	session := types.SessionContext{
		TenantID:    w.tenantID,
		ActorID:     "worker:" + w.workerID,
		WorkspaceID: workspaceID,
		ProjectID:   job.ProjectID,
	}

	switch job.Kind {
	case types.JobKindGltfConvert:
		w.runGltfConvert(ctx, workspaceID, job, session)
	case types.JobKindTexturePreflight:
		w.runTexturePreflight(ctx, workspaceID, job, session)
	default:
		w.fail(ctx, workspaceID, job, fmt.Sprintf("Unsupported native job kind: %s", job.Kind))
	}
}

// missingCapabilities asks the backend for list_capabilities and returns the
// required tools it does not mark available, sorted.
func (w *Worker) missingCapabilities(ctx context.Context, kind string) []string {
	required := requiredTools[kind]
	if len(required) == 0 {
		return nil
	}
	response := w.backend.HandleTool(ctx, types.ToolListCapabilities, types.Payload{}, types.SessionContext{})
	available := map[string]bool{}
	if response.Ok {
		if data, ok := response.Data.(map[string]any); ok {
			if tools, ok := data["tools"].([]map[string]any); ok {
				for _, tool := range tools {
					name, _ := tool["name"].(string)
					isAvailable, _ := tool["available"].(bool)
					available[name] = isAvailable
				}
			}
		}
	}
	var missing []string
	for _, tool := range required {
		if !available[tool] {
			missing = append(missing, tool)
		}
	}
	sort.Strings(missing)
	return missing
}

func (w *Worker) fail(ctx context.Context, workspaceID string, job *pipeline.Job, message string) {
	klog.Infof("worker %s failing job %s: %s", w.workerID, job.ID, message)
	if _, err := w.store.FailJob(ctx, workspaceID, job.ID, message); err != nil {
		klog.ErrorS(err, "failed to record job failure", "jobId", job.ID)
	}
	metrics.JobsCompleted.WithLabelValues(job.Kind, types.JobStatusFailed).Inc()
}

func (w *Worker) complete(ctx context.Context, workspaceID string, job *pipeline.Job, result types.Payload) {
	if _, err := w.store.CompleteJob(ctx, workspaceID, job.ID, result); err != nil {
		klog.ErrorS(err, "failed to record job completion", "jobId", job.ID)
		return
	}
	metrics.JobsCompleted.WithLabelValues(job.Kind, types.JobStatusCompleted).Inc()
	klog.Infof("worker %s completed job %s", w.workerID, job.ID)
}
