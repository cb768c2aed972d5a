/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package engine

import (
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// Schemaless payload accessors. Absent or mistyped values yield zero values;
// required-field validation stays at the call sites.

func getString(payload types.Payload, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func getBool(payload types.Payload, key string) (bool, bool) {
	v, ok := payload[key].(bool)
	return v, ok
}

func getFloat(payload types.Payload, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func getInt(payload types.Payload, key string) (int, bool) {
	if v, ok := getFloat(payload, key); ok {
		return int(v), true
	}
	return 0, false
}

func getFloatSlice(payload types.Payload, key string) []float64 {
	raw, ok := payload[key].([]any)
	if !ok {
		if typed, isTyped := payload[key].([]float64); isTyped {
			return typed
		}
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case float64:
			out = append(out, v)
		case int:
			out = append(out, float64(v))
		default:
			return nil
		}
	}
	return out
}

func getStringSlice(payload types.Payload, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		if typed, isTyped := payload[key].([]string); isTyped {
			return typed
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if v, isStr := item.(string); isStr {
			out = append(out, v)
		} else {
			return nil
		}
	}
	return out
}

func getPayloadSlice(payload types.Payload, key string) []types.Payload {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]types.Payload, 0, len(raw))
	for _, item := range raw {
		if m, isMap := item.(map[string]any); isMap {
			out = append(out, types.Payload(m))
		} else {
			return nil
		}
	}
	return out
}
