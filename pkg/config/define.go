/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

const (
	// server
	serverPrefix = "server."
	serverPort   = serverPrefix + "port"

	// crypto
	cryptoPrefix     = "crypto."
	cryptoEnable     = cryptoPrefix + "enable"
	cryptoSecretPath = cryptoPrefix + "secret_path"

	// db
	dbPrefix               = "db."
	dbEnable               = dbPrefix + "enable"
	dbName                 = dbPrefix + "name"
	dbUser                 = dbPrefix + "user"
	dbPassword             = dbPrefix + "password"
	dbHost                 = dbPrefix + "host"
	dbPort                 = dbPrefix + "port"
	dbSslMode              = dbPrefix + "ssl_mode"
	dbMaxOpenConns         = dbPrefix + "max_open_conns"
	dbMaxIdleConns         = dbPrefix + "max_idle_conns"
	dbMaxLifetime          = dbPrefix + "max_life_time_second"
	dbMaxIdleTimeSecond    = dbPrefix + "max_idle_time_second"
	dbConnectTimeoutSecond = dbPrefix + "connect_timeout_second"
	dbRequestTimeoutSecond = dbPrefix + "request_timeout_second"

	// s3
	s3Prefix       = "s3."
	s3Enable       = s3Prefix + "enable"
	s3Endpoint     = s3Prefix + "endpoint"
	s3Region       = s3Prefix + "region"
	s3Bucket       = s3Prefix + "bucket"
	s3AccessKey    = s3Prefix + "access_key"
	s3SecretKey    = s3Prefix + "secret_key"
	s3ExpireDay    = s3Prefix + "expire_day"
	s3UsePathStyle = s3Prefix + "use_path_style"

	// locks
	lockPrefix               = "lock."
	projectLockIdleTTLMs     = lockPrefix + "project_idle_ttl_ms"
	pipelineLockRetryMs      = lockPrefix + "pipeline_retry_ms"
	pipelineLockTimeoutMs    = lockPrefix + "pipeline_timeout_ms"
	pipelineLockRecordTTLSec = lockPrefix + "pipeline_record_ttl_second"

	// policy
	policyPrefix     = "policy."
	policyCacheTTLMs = policyPrefix + "cache_ttl_ms"

	// dispatcher
	dispatcherPrefix  = "dispatcher."
	defaultBackend    = dispatcherPrefix + "default_backend"
	defaultTenant     = dispatcherPrefix + "default_tenant"
	defaultProjectKey = dispatcherPrefix + "default_project"

	// worker env keys (bound to ASHFOX_* variables, see worker.go)
	workerLogLevel       = "worker.log_level"
	workerHeartbeatMs    = "worker.heartbeat_ms"
	workerPollMs         = "worker.poll_ms"
	workerNativePipeline = "worker.native_pipeline"
	workerID             = "worker.id"
	workerWorkspaceIDs   = "worker.workspace_ids"
	nativeBackendMode    = "worker.native_pipeline_backend"
)
