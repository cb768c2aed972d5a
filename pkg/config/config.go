/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SetValue sets a configuration value for the specified key.
func SetValue(key string, value any) {
	viper.Set(key, value)
}

// LoadConfig loads configuration from the specified file path.
func LoadConfig(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	return viper.ReadInConfig()
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getBool(key string, defaultValue bool) bool {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetBool(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

func getStrings(key string) []string {
	val := viper.GetString(key)
	return removeBlank(strings.Split(val, ","))
}

func removeBlank(slice []string) []string {
	var result []string
	for _, val := range slice {
		if trim := strings.TrimSpace(val); trim != "" {
			result = append(result, trim)
		}
	}
	return result
}

// GetServerPort returns the gateway HTTP port.
func GetServerPort() int {
	return getInt(serverPort, 8080)
}

// IsCryptoEnable returns whether API key hashing uses an HMAC secret.
func IsCryptoEnable() bool {
	return getBool(cryptoEnable, true)
}

// GetCryptoSecretPath returns the path of the API key HMAC secret file.
func GetCryptoSecretPath() string {
	return getString(cryptoSecretPath, "")
}

// IsDBEnable returns whether the Postgres repositories are enabled.
func IsDBEnable() bool {
	return getBool(dbEnable, false)
}

// GetDBName returns the database name.
func GetDBName() string { return getString(dbName, "") }

// GetDBUser returns the database user.
func GetDBUser() string { return getString(dbUser, "") }

// GetDBPassword returns the database password.
func GetDBPassword() string { return getString(dbPassword, "") }

// GetDBHost returns the database host.
func GetDBHost() string { return getString(dbHost, "") }

// GetDBPort returns the database port.
func GetDBPort() int { return getInt(dbPort, 5432) }

// GetDBSslMode returns the database SSL mode.
func GetDBSslMode() string { return getString(dbSslMode, "disable") }

// GetDBMaxOpenConns returns the maximum number of open connections.
func GetDBMaxOpenConns() int { return getInt(dbMaxOpenConns, 20) }

// GetDBMaxIdleConns returns the maximum number of idle connections.
func GetDBMaxIdleConns() int { return getInt(dbMaxIdleConns, 5) }

// GetDBMaxLifetimeSecond returns the connection lifetime in seconds.
func GetDBMaxLifetimeSecond() int { return getInt(dbMaxLifetime, 1800) }

// GetDBMaxIdleTimeSecond returns the idle timeout in seconds.
func GetDBMaxIdleTimeSecond() int { return getInt(dbMaxIdleTimeSecond, 300) }

// GetDBConnectTimeoutSecond returns the connect timeout in seconds.
func GetDBConnectTimeoutSecond() int { return getInt(dbConnectTimeoutSecond, 10) }

// GetDBRequestTimeoutSecond returns the per-request timeout in seconds.
func GetDBRequestTimeoutSecond() int { return getInt(dbRequestTimeoutSecond, 30) }

// IsS3Enable returns whether the S3 blob store is enabled.
func IsS3Enable() bool { return getBool(s3Enable, false) }

// GetS3Endpoint returns the S3 endpoint URL.
func GetS3Endpoint() string { return getString(s3Endpoint, "") }

// GetS3Region returns the S3 region.
func GetS3Region() string { return getString(s3Region, "us-east-1") }

// GetS3Bucket returns the blob bucket name.
func GetS3Bucket() string { return getString(s3Bucket, "") }

// GetS3AccessKey returns the S3 access key.
func GetS3AccessKey() string { return getString(s3AccessKey, "") }

// GetS3SecretKey returns the S3 secret key.
func GetS3SecretKey() string { return getString(s3SecretKey, "") }

// GetS3ExpireDay returns the lifecycle expiry in days, 0 for none.
func GetS3ExpireDay() int { return getInt(s3ExpireDay, 0) }

// IsS3PathStyle returns whether path-style addressing is used.
func IsS3PathStyle() bool { return getBool(s3UsePathStyle, true) }

// GetProjectLockIdleTTL returns the project lock idle TTL.
func GetProjectLockIdleTTL() time.Duration {
	return time.Duration(getInt(projectLockIdleTTLMs, 2000)) * time.Millisecond
}

// GetPipelineLockRetryInterval returns the distributed lock retry interval.
func GetPipelineLockRetryInterval() time.Duration {
	return time.Duration(getInt(pipelineLockRetryMs, 30)) * time.Millisecond
}

// GetPipelineLockTimeout returns the distributed lock acquisition timeout.
func GetPipelineLockTimeout() time.Duration {
	return time.Duration(getInt(pipelineLockTimeoutMs, 10000)) * time.Millisecond
}

// GetPipelineLockRecordTTL returns the distributed lock record TTL.
func GetPipelineLockRecordTTL() time.Duration {
	return time.Duration(getInt(pipelineLockRecordTTLSec, 30)) * time.Second
}

// GetPolicyCacheTTL returns the workspace snapshot cache TTL.
func GetPolicyCacheTTL() time.Duration {
	return time.Duration(getInt(policyCacheTTLMs, 1500)) * time.Millisecond
}

// GetDefaultBackend returns the backend kind used when the payload names none.
func GetDefaultBackend() string {
	return getString(defaultBackend, "engine")
}

// GetDefaultTenant returns the tenant used for repository scopes.
func GetDefaultTenant() string {
	return getString(defaultTenant, "default")
}

// GetDefaultProjectID returns the project id used when the payload names none.
func GetDefaultProjectID() string {
	return getString(defaultProjectKey, "default-project")
}
