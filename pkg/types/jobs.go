/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package types

import (
	"fmt"
	"sort"
	"strings"

	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
)

// Native job kinds drained by the worker.
const (
	JobKindGltfConvert      = "gltf.convert"
	JobKindTexturePreflight = "texture.preflight"
)

// Job statuses.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// GltfConvertPayload is the validated payload of a gltf.convert job.
type GltfConvertPayload struct {
	CodecID  string `json:"codecId,omitempty"`
	Optimize bool   `json:"optimize,omitempty"`
}

// TexturePreflightPayload is the validated payload of a texture.preflight job.
type TexturePreflightPayload struct {
	TextureIDs         []string `json:"textureIds"`
	MaxDimension       int      `json:"maxDimension,omitempty"`
	AllowNonPowerOfTwo bool     `json:"allowNonPowerOfTwo,omitempty"`
}

// NativeJobResult is the composed result persisted on job completion.
type NativeJobResult struct {
	Kind           string         `json:"kind"`
	Status         string         `json:"status"`
	Output         map[string]any `json:"output,omitempty"`
	Summary        map[string]any `json:"summary,omitempty"`
	Diagnostics    []string       `json:"diagnostics,omitempty"`
	HasGeometry    bool           `json:"hasGeometry,omitempty"`
	Hierarchy      any            `json:"hierarchy,omitempty"`
	Animations     any            `json:"animations,omitempty"`
	Textures       any            `json:"textures,omitempty"`
	TextureSources any            `json:"textureSources,omitempty"`
}

// IsKnownJobKind reports whether kind is a supported native job kind.
func IsKnownJobKind(kind string) bool {
	return kind == JobKindGltfConvert || kind == JobKindTexturePreflight
}

// JobKindAllowsImplicitCreate reports whether submitting a job of this kind
// may create the target project when it does not exist yet.
func JobKindAllowsImplicitCreate(kind string) bool {
	return kind == JobKindGltfConvert
}

// ValidateJobPayload kind-checks a schemaless job payload. Unknown top-level
// fields are rejected; the tool payloads stay duck-typed, job payloads do not.
func ValidateJobPayload(kind string, payload Payload) error {
	switch kind {
	case JobKindGltfConvert:
		return validateGltfConvertPayload(payload)
	case JobKindTexturePreflight:
		_, err := ParseTexturePreflightPayload(payload)
		return err
	default:
		return gatewayerrors.NewInvalidPayload(fmt.Sprintf("unknown native job kind: %s", kind))
	}
}

func validateGltfConvertPayload(payload Payload) error {
	var unknown []string
	for key := range payload {
		switch key {
		case "codecId", "optimize":
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return gatewayerrors.NewInvalidPayload(fmt.Sprintf(
			"payload has unsupported field(s) for %s: %s", JobKindGltfConvert, strings.Join(unknown, ", ")))
	}
	if raw, ok := payload["codecId"]; ok {
		if _, ok := raw.(string); !ok {
			return gatewayerrors.NewInvalidPayload("payload.codecId must be a string")
		}
	}
	if raw, ok := payload["optimize"]; ok {
		if _, ok := raw.(bool); !ok {
			return gatewayerrors.NewInvalidPayload("payload.optimize must be a boolean")
		}
	}
	return nil
}

// ParseGltfConvertPayload extracts the typed gltf.convert payload.
func ParseGltfConvertPayload(payload Payload) (GltfConvertPayload, error) {
	if err := validateGltfConvertPayload(payload); err != nil {
		return GltfConvertPayload{}, err
	}
	out := GltfConvertPayload{}
	if v, ok := payload["codecId"].(string); ok {
		out.CodecID = v
	}
	if v, ok := payload["optimize"].(bool); ok {
		out.Optimize = v
	}
	return out, nil
}

// ParseTexturePreflightPayload extracts and validates the typed
// texture.preflight payload.
func ParseTexturePreflightPayload(payload Payload) (TexturePreflightPayload, error) {
	out := TexturePreflightPayload{}
	var unknown []string
	for key := range payload {
		switch key {
		case "textureIds", "maxDimension", "allowNonPowerOfTwo":
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return out, gatewayerrors.NewInvalidPayload(fmt.Sprintf(
			"payload has unsupported field(s) for %s: %s", JobKindTexturePreflight, strings.Join(unknown, ", ")))
	}
	raw, ok := payload["textureIds"]
	if !ok {
		return out, gatewayerrors.NewInvalidPayload("payload.textureIds is required")
	}
	list, ok := raw.([]any)
	if !ok {
		if typed, isTyped := raw.([]string); isTyped {
			list = make([]any, len(typed))
			for i, v := range typed {
				list[i] = v
			}
		} else {
			return out, gatewayerrors.NewInvalidPayload("payload.textureIds must be an array of non-empty strings")
		}
	}
	for _, item := range list {
		id, ok := item.(string)
		if !ok || strings.TrimSpace(id) == "" {
			return out, gatewayerrors.NewInvalidPayload("payload.textureIds must be an array of non-empty strings")
		}
		out.TextureIDs = append(out.TextureIDs, id)
	}
	if v, ok := payload["maxDimension"]; ok {
		switch n := v.(type) {
		case float64:
			out.MaxDimension = int(n)
		case int:
			out.MaxDimension = n
		default:
			return out, gatewayerrors.NewInvalidPayload("payload.maxDimension must be an integer")
		}
	}
	if v, ok := payload["allowNonPowerOfTwo"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return out, gatewayerrors.NewInvalidPayload("payload.allowNonPowerOfTwo must be a boolean")
		}
		out.AllowNonPowerOfTwo = b
	}
	return out, nil
}
