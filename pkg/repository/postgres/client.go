/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package postgres implements the persistence ports on PostgreSQL with sqlx.
package postgres

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/config"
)

const pgDriver = "postgres"

// DBConfig holds the connection parameters for the gateway database.
type DBConfig struct {
	DBName       string
	Username     string
	Password     string
	Host         string
	Port         int
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	MaxIdleTime  time.Duration
}

// SourceName renders the libpq connection string.
func (c *DBConfig) SourceName() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.DBName, c.Password, c.SSLMode)
}

// ConfigFromViper builds a DBConfig from the loaded configuration.
func ConfigFromViper() *DBConfig {
	return &DBConfig{
		DBName:       config.GetDBName(),
		Username:     config.GetDBUser(),
		Password:     config.GetDBPassword(),
		Host:         config.GetDBHost(),
		Port:         config.GetDBPort(),
		SSLMode:      config.GetDBSslMode(),
		MaxOpenConns: config.GetDBMaxOpenConns(),
		MaxIdleConns: config.GetDBMaxIdleConns(),
		MaxLifetime:  time.Duration(config.GetDBMaxLifetimeSecond()) * time.Second,
		MaxIdleTime:  time.Duration(config.GetDBMaxIdleTimeSecond()) * time.Second,
	}
}

func checkParams(cfg *DBConfig) error {
	if cfg.DBName == "" {
		return fmt.Errorf("dbname not found")
	}
	if cfg.Username == "" {
		return fmt.Errorf("username not found")
	}
	if cfg.Host == "" {
		return fmt.Errorf("host not found")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port not found")
	}
	if cfg.SSLMode == "" {
		return fmt.Errorf("ssl_mode not found")
	}
	return nil
}

// Connect opens the connection pool and verifies it with a ping.
func Connect(cfg *DBConfig) (*sqlx.DB, error) {
	if err := checkParams(cfg); err != nil {
		return nil, err
	}
	db, err := sqlx.Connect(pgDriver, cfg.SourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to connect db %s, err: %v", cfg.DBName, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db %s, err: %v", cfg.DBName, err)
	}
	klog.Infof("init db connection successfully, db: %s host: %s", cfg.DBName, cfg.Host)
	return db, nil
}
