/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package worker

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/backend/engine"
	"github.com/sigee-min/bbmcp-sub006/pkg/blob"
	blobs3 "github.com/sigee-min/bbmcp-sub006/pkg/blob/s3"
	"github.com/sigee-min/bbmcp-sub006/pkg/clock"
	"github.com/sigee-min/bbmcp-sub006/pkg/config"
	"github.com/sigee-min/bbmcp-sub006/pkg/options"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository/memory"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository/postgres"
)

// App is the worker process. It is configured through ASHFOX_* environment
// variables; the -config file is optional and only needed for the
// persistence backend settings.
type App struct {
	worker   *Worker
	ctx      context.Context
	cancel   context.CancelFunc
	isInited bool
}

// NewApp creates and initializes the worker process.
func NewApp() (*App, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a := &App{ctx: ctx, cancel: cancel}
	if err := a.init(); err != nil {
		cancel()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	opts := &options.Options{}
	if err := opts.InitOptionalFlags(); err != nil {
		klog.ErrorS(err, "failed to parse flags")
		return err
	}
	if opts.Config != "" {
		if err := config.LoadConfig(opts.Config); err != nil {
			return fmt.Errorf("config path: %s, err: %v", opts.Config, err)
		}
	}
	if err := config.BindWorkerEnv(); err != nil {
		return err
	}
	applyLogVerbosity(config.GetWorkerLogLevel())
	if !config.IsWorkerNativePipelineEnabled() {
		return fmt.Errorf("the native pipeline loop is disabled, set %s=1", config.EnvWorkerNativePipeline)
	}

	projectRepo, err := newProjectRepository()
	if err != nil {
		return err
	}
	blobStore, err := newBlobStore(a.ctx)
	if err != nil {
		return err
	}

	clk := clock.Real()
	tenantID := config.GetDefaultTenant()
	store := pipeline.NewStore(projectRepo, pipeline.Options{
		TenantID:          tenantID,
		Clock:             clk,
		LockRetryInterval: config.GetPipelineLockRetryInterval(),
		LockTimeout:       config.GetPipelineLockTimeout(),
		LockRecordTTL:     config.GetPipelineLockRecordTTL(),
	})
	resolver := NewWorkspaceResolver(projectRepo, tenantID,
		config.GetWorkerWorkspaceIDs(), DefaultResolverTTL, clk)

	a.worker = New(Options{
		WorkerID:          config.GetWorkerID(),
		Store:             store,
		Backend:           engine.New(store, blobStore),
		Resolver:          resolver,
		TenantID:          tenantID,
		PollInterval:      config.GetWorkerPollInterval(),
		HeartbeatInterval: config.GetWorkerHeartbeatInterval(),
	})
	a.isInited = true
	return nil
}

// applyLogVerbosity maps the worker log level onto klog's -v verbosity:
// info logs at 0, debug at 4, trace at 6.
func applyLogVerbosity(level string) {
	verbosity := "0"
	switch strings.ToLower(level) {
	case "debug":
		verbosity = "4"
	case "trace":
		verbosity = "6"
	}
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	if err := fs.Set("v", verbosity); err != nil {
		klog.ErrorS(err, "failed to set log verbosity", "level", level)
	}
}

// newProjectRepository selects the pipeline state backend per
// ASHFOX_NATIVE_PIPELINE_BACKEND.
func newProjectRepository() (repository.ProjectRepository, error) {
	if config.GetNativeBackendMode() == config.NativeBackendMemory {
		klog.Infof("native pipeline backend: memory")
		return memory.NewProjectRepository(), nil
	}
	db, err := postgres.Connect(postgres.ConfigFromViper())
	if err != nil {
		return nil, err
	}
	klog.Infof("native pipeline backend: persistence")
	return postgres.NewProjectRepository(db), nil
}

func newBlobStore(ctx context.Context) (blob.Store, error) {
	if !config.IsS3Enable() {
		return blob.NewMemoryStore(), nil
	}
	return blobs3.NewStore(ctx, blobs3.Option{
		ExpireDay: int32(config.GetS3ExpireDay()),
	})
}

// Run executes the job loop until a termination signal arrives.
func (a *App) Run() {
	if !a.isInited {
		klog.Errorf("please init the worker first")
		return
	}
	defer a.cancel()
	a.worker.Run(a.ctx)
	klog.Info("worker is stopped")
	klog.Flush()
}
