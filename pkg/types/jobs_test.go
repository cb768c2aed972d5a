/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package types

import (
	"errors"
	"testing"

	"gotest.tools/assert"

	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
)

func TestValidateJobPayload(t *testing.T) {
	cases := []struct {
		name    string
		kind    string
		payload Payload
		wantErr string
	}{
		{name: "unknown kind", kind: "mesh.bake", payload: Payload{},
			wantErr: "unknown native job kind: mesh.bake"},
		{name: "gltf empty payload", kind: JobKindGltfConvert, payload: Payload{}},
		{name: "gltf with codec", kind: JobKindGltfConvert,
			payload: Payload{"codecId": "glb", "optimize": true}},
		{name: "gltf unknown fields sorted", kind: JobKindGltfConvert,
			payload: Payload{"zeta": 1, "alpha": 2},
			wantErr: "payload has unsupported field(s) for gltf.convert: alpha, zeta"},
		{name: "gltf codec type", kind: JobKindGltfConvert,
			payload: Payload{"codecId": 7}, wantErr: "payload.codecId must be a string"},
		{name: "gltf optimize type", kind: JobKindGltfConvert,
			payload: Payload{"optimize": "yes"}, wantErr: "payload.optimize must be a boolean"},
		{name: "preflight unknown fields sorted", kind: JobKindTexturePreflight,
			payload: Payload{"textureIds": []any{"a"}, "zeta": 1, "alpha": 2},
			wantErr: "payload has unsupported field(s) for texture.preflight: alpha, zeta"},
		{name: "preflight requires textureIds", kind: JobKindTexturePreflight,
			payload: Payload{}, wantErr: "payload.textureIds is required"},
		{name: "preflight empty id", kind: JobKindTexturePreflight,
			payload: Payload{"textureIds": []any{"tex-1", " "}},
			wantErr: "payload.textureIds must be an array of non-empty strings"},
		{name: "preflight ok", kind: JobKindTexturePreflight,
			payload: Payload{"textureIds": []any{"tex-1"}, "maxDimension": 64, "allowNonPowerOfTwo": true}},
		{name: "preflight maxDimension type", kind: JobKindTexturePreflight,
			payload: Payload{"textureIds": []any{"tex-1"}, "maxDimension": "64"},
			wantErr: "payload.maxDimension must be an integer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateJobPayload(tc.kind, tc.payload)
			if tc.wantErr == "" {
				assert.NilError(t, err)
				return
			}
			assert.Assert(t, err != nil)
			assert.Equal(t, gatewayerrors.CodeOf(err), gatewayerrors.CodeInvalidPayload)
			var typed *gatewayerrors.Error
			assert.Assert(t, errors.As(err, &typed))
			assert.Equal(t, typed.Message, tc.wantErr)
		})
	}
}

func TestParseGltfConvertPayload(t *testing.T) {
	parsed, err := ParseGltfConvertPayload(Payload{"codecId": "glb", "optimize": true})
	assert.NilError(t, err)
	assert.Equal(t, parsed.CodecID, "glb")
	assert.Equal(t, parsed.Optimize, true)

	parsed, err = ParseGltfConvertPayload(Payload{})
	assert.NilError(t, err)
	assert.Equal(t, parsed.CodecID, "")
	assert.Equal(t, parsed.Optimize, false)
}

func TestParseTexturePreflightPayload(t *testing.T) {
	// Both []any (decoded JSON) and []string (in-process) are accepted.
	parsed, err := ParseTexturePreflightPayload(Payload{"textureIds": []any{"a", "b"}})
	assert.NilError(t, err)
	assert.DeepEqual(t, parsed.TextureIDs, []string{"a", "b"})

	parsed, err = ParseTexturePreflightPayload(Payload{
		"textureIds": []string{"a"}, "maxDimension": float64(128)})
	assert.NilError(t, err)
	assert.Equal(t, parsed.MaxDimension, 128)
}

func TestJobKindClassification(t *testing.T) {
	assert.Assert(t, IsKnownJobKind(JobKindGltfConvert))
	assert.Assert(t, IsKnownJobKind(JobKindTexturePreflight))
	assert.Assert(t, !IsKnownJobKind("mesh.bake"))

	assert.Assert(t, JobKindAllowsImplicitCreate(JobKindGltfConvert))
	assert.Assert(t, !JobKindAllowsImplicitCreate(JobKindTexturePreflight))
}
