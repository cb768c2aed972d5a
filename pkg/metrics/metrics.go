/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DispatchGuardFailures counts failed dispatcher guards by tool, code and reason.
	DispatchGuardFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ashfox_dispatch_guard_failures_total",
		Help: "Tool calls rejected by a dispatcher guard.",
	}, []string{"tool", "code", "reason"})

	// LockReleaseNotOwner counts releaseProjectLock calls by a non-owner.
	LockReleaseNotOwner = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ashfox_lock_release_not_owner_total",
		Help: "Project lock releases attempted by a caller that does not hold the lock.",
	})

	// JobsCompleted counts worker job outcomes by kind and status.
	JobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ashfox_worker_jobs_total",
		Help: "Native jobs finished by the worker.",
	}, []string{"kind", "status"})

	// HeartbeatHealthy reports the last observed backend availability per kind.
	HeartbeatHealthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ashfox_worker_backend_healthy",
		Help: "1 when the backend heartbeat reported ready, 0 otherwise.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(DispatchGuardFailures, LockReleaseNotOwner, JobsCompleted, HeartbeatHealthy)
}
