/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Worker environment variables. The worker process is configured entirely
// through its environment; the config file is optional for it.
const (
	EnvWorkerLogLevel       = "ASHFOX_WORKER_LOG_LEVEL"
	EnvWorkerHeartbeatMs    = "ASHFOX_WORKER_HEARTBEAT_MS"
	EnvWorkerPollMs         = "ASHFOX_WORKER_POLL_MS"
	EnvWorkerNativePipeline = "ASHFOX_WORKER_NATIVE_PIPELINE"
	EnvWorkerID             = "ASHFOX_WORKER_ID"
	EnvWorkerWorkspaceIDs   = "ASHFOX_WORKER_WORKSPACE_IDS"
	EnvNativeBackendMode    = "ASHFOX_NATIVE_PIPELINE_BACKEND"
)

// Native pipeline backend modes.
const (
	NativeBackendMemory      = "memory"
	NativeBackendPersistence = "persistence"
)

// BindWorkerEnv binds the worker keys to their ASHFOX_* variables.
func BindWorkerEnv() error {
	bindings := map[string]string{
		workerLogLevel:       EnvWorkerLogLevel,
		workerHeartbeatMs:    EnvWorkerHeartbeatMs,
		workerPollMs:         EnvWorkerPollMs,
		workerNativePipeline: EnvWorkerNativePipeline,
		workerID:             EnvWorkerID,
		workerWorkspaceIDs:   EnvWorkerWorkspaceIDs,
		nativeBackendMode:    EnvNativeBackendMode,
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// GetWorkerLogLevel returns the worker log level.
func GetWorkerLogLevel() string {
	return getString(workerLogLevel, "info")
}

// GetWorkerHeartbeatInterval returns the heartbeat interval.
func GetWorkerHeartbeatInterval() time.Duration {
	return time.Duration(getInt(workerHeartbeatMs, 5000)) * time.Millisecond
}

// GetWorkerPollInterval returns the queue poll interval.
func GetWorkerPollInterval() time.Duration {
	return time.Duration(getInt(workerPollMs, 1200)) * time.Millisecond
}

// IsWorkerNativePipelineEnabled reports whether the native pipeline loop runs.
func IsWorkerNativePipelineEnabled() bool {
	return getString(workerNativePipeline, "") == "1"
}

// GetWorkerID returns the worker identity, defaulting to worker-<pid>.
func GetWorkerID() string {
	id := getString(workerID, "")
	if id == "" {
		id = fmt.Sprintf("worker-%d", os.Getpid())
	}
	return id
}

// GetWorkerWorkspaceIDs returns the static workspace hint list.
func GetWorkerWorkspaceIDs() []string {
	return getStrings(workerWorkspaceIDs)
}

// GetNativeBackendMode returns memory or persistence, default persistence.
func GetNativeBackendMode() string {
	mode := getString(nativeBackendMode, NativeBackendPersistence)
	if mode != NativeBackendMemory && mode != NativeBackendPersistence {
		return NativeBackendPersistence
	}
	return mode
}
