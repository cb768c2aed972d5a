/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package backend defines the tool backend port and its registry.
package backend

import (
	"context"

	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// Availability states reported by GetHealth.
const (
	AvailabilityReady       = "ready"
	AvailabilityDegraded    = "degraded"
	AvailabilityUnavailable = "unavailable"
)

// Health is one backend's self-reported status.
type Health struct {
	Kind         string         `json:"kind"`
	Availability string         `json:"availability"`
	Version      string         `json:"version"`
	Details      map[string]any `json:"details,omitempty"`
}

// Backend executes tools against one modeling engine.
type Backend interface {
	Kind() string
	GetHealth(ctx context.Context) Health
	HandleTool(ctx context.Context, name string, payload types.Payload, session types.SessionContext) types.ToolResponse
}

// Registry maps backend kinds to instances. It is immutable after startup.
type Registry struct {
	backends map[string]Backend
	kinds    []string
}

// NewRegistry builds a Registry from the given backends in registration
// order. A duplicate kind replaces the earlier entry but keeps its position.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: map[string]Backend{}}
	for _, b := range backends {
		if _, exists := r.backends[b.Kind()]; !exists {
			r.kinds = append(r.kinds, b.Kind())
		}
		r.backends[b.Kind()] = b
	}
	return r
}

// Resolve returns the backend for kind, or nil when unregistered.
func (r *Registry) Resolve(kind string) Backend {
	return r.backends[kind]
}

// ListKinds returns the registered kinds in registration order.
func (r *Registry) ListKinds() []string {
	return append([]string(nil), r.kinds...)
}
