/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package server assembles the gateway process: repositories, blob store,
// pipeline store, policy, locks, backends and the HTTP transport.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/backend"
	"github.com/sigee-min/bbmcp-sub006/pkg/backend/blockbench"
	"github.com/sigee-min/bbmcp-sub006/pkg/backend/engine"
	"github.com/sigee-min/bbmcp-sub006/pkg/blob"
	blobs3 "github.com/sigee-min/bbmcp-sub006/pkg/blob/s3"
	"github.com/sigee-min/bbmcp-sub006/pkg/clock"
	"github.com/sigee-min/bbmcp-sub006/pkg/config"
	"github.com/sigee-min/bbmcp-sub006/pkg/dispatcher"
	"github.com/sigee-min/bbmcp-sub006/pkg/locks"
	"github.com/sigee-min/bbmcp-sub006/pkg/options"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/policy"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository/memory"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository/postgres"
)

// Server is the gateway process.
type Server struct {
	opts       *options.Options
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	isInited   bool
}

// NewServer creates and initializes the gateway server.
func NewServer() (*Server, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	s := &Server{
		opts:   &options.Options{},
		ctx:    ctx,
		cancel: cancel,
	}
	if err := s.init(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// init parses flags, loads the configuration and builds the HTTP handler
// chain.
func (s *Server) init() error {
	gin.SetMode(gin.ReleaseMode)
	if err := s.opts.InitFlags(); err != nil {
		klog.ErrorS(err, "failed to parse flags")
		return err
	}
	if err := s.initConfig(); err != nil {
		klog.ErrorS(err, "failed to init config")
		return err
	}
	handler, err := s.buildHandler()
	if err != nil {
		klog.ErrorS(err, "failed to build http handler")
		return err
	}
	if config.GetServerPort() <= 0 {
		return fmt.Errorf("the gateway port is not defined")
	}
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", config.GetServerPort()),
		Handler: handler,
	}
	s.isInited = true
	return nil
}

func (s *Server) initConfig() error {
	fullPath, err := filepath.Abs(s.opts.Config)
	if err != nil {
		return err
	}
	if err = config.LoadConfig(fullPath); err != nil {
		return fmt.Errorf("config path: %s, err: %v", fullPath, err)
	}
	return nil
}

// buildHandler wires the full dependency graph and returns the gin engine.
func (s *Server) buildHandler() (*gin.Engine, error) {
	projectRepo, workspaceRepo, err := newRepositories()
	if err != nil {
		return nil, err
	}
	blobStore, err := newBlobStore(s.ctx)
	if err != nil {
		return nil, err
	}

	clk := clock.Real()
	store := pipeline.NewStore(projectRepo, pipeline.Options{
		TenantID:          config.GetDefaultTenant(),
		Clock:             clk,
		LockRetryInterval: config.GetPipelineLockRetryInterval(),
		LockTimeout:       config.GetPipelineLockTimeout(),
		LockRecordTTL:     config.GetPipelineLockRecordTTL(),
	})
	lockManager := locks.NewManager(config.GetProjectLockIdleTTL(), clk)
	policyService := policy.NewService(workspaceRepo, config.GetPolicyCacheTTL(), clk)
	registry := backend.NewRegistry(
		engine.New(store, blobStore),
		blockbench.New(),
	)
	d := dispatcher.New(dispatcher.Options{
		Registry:         registry,
		Locks:            lockManager,
		Policy:           policyService,
		Store:            store,
		WorkspaceRepo:    workspaceRepo,
		DefaultBackend:   config.GetDefaultBackend(),
		DefaultTenant:    config.GetDefaultTenant(),
		DefaultProjectID: config.GetDefaultProjectID(),
	})

	identity, err := newIdentityChain(workspaceRepo, clk)
	if err != nil {
		return nil, err
	}

	engineRouter := gin.New()
	engineRouter.Use(Logger(), gin.Recovery())
	engineRouter.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": c.Request.RequestURI + " not found"})
	})
	InitRouters(engineRouter, NewHandler(d), identity...)
	return engineRouter, nil
}

// newRepositories selects the persistence backend. Without db.enable the
// gateway runs on in-memory repositories.
func newRepositories() (repository.ProjectRepository, repository.WorkspaceRepository, error) {
	if !config.IsDBEnable() {
		klog.Infof("db is disabled, using in-memory repositories")
		return memory.NewProjectRepository(), memory.NewWorkspaceRepository(), nil
	}
	db, err := postgres.Connect(postgres.ConfigFromViper())
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewProjectRepository(db), postgres.NewWorkspaceRepository(db), nil
}

// newBlobStore selects the blob backend. Without s3.enable exports land in
// the in-memory store.
func newBlobStore(ctx context.Context) (blob.Store, error) {
	if !config.IsS3Enable() {
		klog.Infof("s3 is disabled, using in-memory blob store")
		return blob.NewMemoryStore(), nil
	}
	return blobs3.NewStore(ctx, blobs3.Option{
		ExpireDay: int32(config.GetS3ExpireDay()),
	})
}

// newIdentityChain returns the /mcp middleware chain. With crypto enabled
// requests must present a valid API key; otherwise the identity headers are
// trusted as-is.
func newIdentityChain(repo repository.WorkspaceRepository, clk clock.Clock) ([]gin.HandlerFunc, error) {
	if !config.IsCryptoEnable() {
		klog.Infof("crypto is disabled, trusting identity headers")
		return []gin.HandlerFunc{HeaderIdentity()}, nil
	}
	secret := ""
	if path := config.GetCryptoSecretPath(); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read crypto secret from %s: %v", path, err)
		}
		secret = strings.TrimSpace(string(raw))
	}
	return []gin.HandlerFunc{Authorize(repo, secret, clk.Now)}, nil
}

// Start runs the HTTP server until a termination signal arrives.
func (s *Server) Start() {
	if !s.isInited {
		klog.Errorf("please init the gateway server first")
		return
	}
	klog.Infof("starting gateway, listen port: %d", config.GetServerPort())
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "failed to start http server")
			os.Exit(-1)
		}
	}()
	<-s.ctx.Done()
	s.Stop()
}

// Stop gracefully shuts down the HTTP server and flushes logs.
func (s *Server) Stop() {
	klog.Info("shutting down http server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		klog.ErrorS(err, "failed to shutdown http server")
	}
	s.cancel()
	klog.Info("gateway is stopped")
	klog.Flush()
}
