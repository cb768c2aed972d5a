/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// Texture presets offered by generate_texture_preset.
var texturePresets = map[string]struct {
	width  int
	height int
}{
	"flat-16":    {16, 16},
	"flat-32":    {32, 32},
	"checker-64": {64, 64},
}

func findTexture(project *pipeline.ProjectSnapshot, id string) *pipeline.Texture {
	for _, tex := range project.Textures {
		if tex.ID == id {
			return tex
		}
	}
	return nil
}

func (e *Engine) generateTexturePreset(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	presetID := getString(payload, "presetId", "preset")
	if presetID == "" {
		return nil, gatewayerrors.NewInvalidPayload("presetId is required")
	}
	preset, ok := texturePresets[presetID]
	if !ok {
		var known []string
		for name := range texturePresets {
			known = append(known, name)
		}
		sort.Strings(known)
		return nil, gatewayerrors.NewInvalidPayload(
			fmt.Sprintf("unknown texture preset %s, known presets: %s", presetID, strings.Join(known, ", ")))
	}
	textureID := getString(payload, "textureId", "id")
	if textureID == "" {
		textureID = presetID
	}

	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		if findTexture(project, textureID) != nil {
			return gatewayerrors.NewInvalidPayload(fmt.Sprintf("texture %s already exists", textureID))
		}
		project.Textures = append(project.Textures, &pipeline.Texture{
			ID:     textureID,
			Name:   textureID,
			Width:  preset.width,
			Height: preset.height,
			Source: "preset://" + presetID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"textureId": textureID,
		"presetId":  presetID,
		"width":     preset.width,
		"height":    preset.height,
		"revision":  project.Revision,
	}, nil
}

func (e *Engine) deleteTexture(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	id := getString(payload, "textureId", "id")
	if id == "" {
		return nil, gatewayerrors.NewInvalidPayload("textureId is required")
	}
	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		found := false
		for i, tex := range project.Textures {
			if tex.ID == id {
				project.Textures = append(project.Textures[:i], project.Textures[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("texture %s does not exist", id))
		}
		for i := range project.Faces {
			if project.Faces[i].TextureID == id {
				project.Faces[i].TextureID = ""
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": id, "revision": project.Revision}, nil
}

// assignTexture binds a texture to one or more cube faces.
func (e *Engine) assignTexture(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	textureID := getString(payload, "textureId")
	if textureID == "" {
		return nil, gatewayerrors.NewInvalidPayload("textureId is required")
	}
	faces := getPayloadSlice(payload, "faces")
	if len(faces) == 0 {
		return nil, gatewayerrors.NewInvalidPayload("faces must be a non-empty array")
	}

	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		if findTexture(project, textureID) == nil {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("texture %s does not exist", textureID))
		}
		_, cubes := indexNodes(project.Hierarchy)
		for _, entry := range faces {
			cubeID := getString(entry, "cubeId")
			face := getString(entry, "face")
			if cubeID == "" || face == "" {
				return gatewayerrors.NewInvalidPayload("faces[].cubeId and faces[].face are required")
			}
			if _, ok := cubes[cubeID]; !ok {
				return gatewayerrors.NewInvalidPayload(fmt.Sprintf("cube %s does not exist", cubeID))
			}
			upsertFace(project, cubeID, face, func(fa *pipeline.FaceAssignment) {
				fa.TextureID = textureID
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"textureId": textureID,
		"assigned":  len(faces),
		"revision":  project.Revision,
	}, nil
}

func (e *Engine) readTexture(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	id := getString(payload, "textureId", "id")
	if id == "" {
		return nil, gatewayerrors.NewInvalidPayload("textureId is required")
	}
	project, err := e.requireProject(ctx, session)
	if err != nil {
		return nil, err
	}
	tex := findTexture(project, id)
	if tex == nil {
		return nil, gatewayerrors.NewInvalidState(fmt.Sprintf("texture %s does not exist", id))
	}
	var usedBy []string
	for _, face := range project.Faces {
		if face.TextureID == id {
			usedBy = append(usedBy, face.CubeID+"/"+face.Face)
		}
	}
	sort.Strings(usedBy)
	return map[string]any{
		"textureId": tex.ID,
		"name":      tex.Name,
		"width":     tex.Width,
		"height":    tex.Height,
		"source":    tex.Source,
		"usedBy":    usedBy,
	}, nil
}

func (e *Engine) setFaceUV(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	cubeID := getString(payload, "cubeId")
	face := getString(payload, "face")
	if cubeID == "" || face == "" {
		return nil, gatewayerrors.NewInvalidPayload("cubeId and face are required")
	}
	uv := getFloatSlice(payload, "uv")
	if len(uv) != 4 {
		return nil, gatewayerrors.NewInvalidPayload("uv must be an array of 4 numbers")
	}
	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		_, cubes := indexNodes(project.Hierarchy)
		if _, ok := cubes[cubeID]; !ok {
			return gatewayerrors.NewInvalidPayload(fmt.Sprintf("cube %s does not exist", cubeID))
		}
		upsertFace(project, cubeID, face, func(fa *pipeline.FaceAssignment) {
			fa.UV = uv
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"cubeId": cubeID, "face": face, "uv": uv, "revision": project.Revision}, nil
}

// autoUVAtlas assigns a deterministic grid UV layout over every cube face.
func (e *Engine) autoUVAtlas(ctx context.Context, session types.SessionContext) (any, error) {
	var laidOut int
	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		_, cubes := indexNodes(project.Hierarchy)
		cubeIDs := make([]string, 0, len(cubes))
		for id := range cubes {
			cubeIDs = append(cubeIDs, id)
		}
		sort.Strings(cubeIDs)

		faces := []string{"north", "south", "east", "west", "up", "down"}
		cell := 0
		for _, cubeID := range cubeIDs {
			for _, face := range faces {
				col := float64(cell % 8)
				row := float64(cell / 8)
				upsertFace(project, cubeID, face, func(fa *pipeline.FaceAssignment) {
					fa.UV = []float64{col / 8, row / 8, (col + 1) / 8, (row + 1) / 8}
				})
				cell++
				laidOut++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"faces": laidOut, "revision": project.Revision}, nil
}

func (e *Engine) setProjectTextureResolution(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	resolution, ok := getInt(payload, "resolution")
	if !ok || resolution <= 0 {
		return nil, gatewayerrors.NewInvalidPayload("resolution must be a positive integer")
	}
	current, err := e.requireProject(ctx, session)
	if err != nil {
		return nil, err
	}
	if current.TextureResolution == resolution {
		return nil, gatewayerrors.NewNoChange(
			fmt.Sprintf("project texture resolution is already %d", resolution))
	}
	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		project.TextureResolution = resolution
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"resolution": resolution, "revision": project.Revision}, nil
}

func (e *Engine) paintFaces(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	faces := getPayloadSlice(payload, "faces")
	if len(faces) == 0 {
		return nil, gatewayerrors.NewInvalidPayload("faces must be a non-empty array")
	}
	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		_, cubes := indexNodes(project.Hierarchy)
		for _, entry := range faces {
			cubeID := getString(entry, "cubeId")
			face := getString(entry, "face")
			color := getString(entry, "color")
			if cubeID == "" || face == "" || color == "" {
				return gatewayerrors.NewInvalidPayload("faces[].cubeId, faces[].face and faces[].color are required")
			}
			if _, ok := cubes[cubeID]; !ok {
				return gatewayerrors.NewInvalidPayload(fmt.Sprintf("cube %s does not exist", cubeID))
			}
			upsertFace(project, cubeID, face, func(fa *pipeline.FaceAssignment) {
				fa.Color = color
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"painted": len(faces), "revision": project.Revision}, nil
}

func (e *Engine) paintMeshFace(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	cubeID := getString(payload, "cubeId")
	face := getString(payload, "face")
	color := getString(payload, "color")
	if cubeID == "" || face == "" || color == "" {
		return nil, gatewayerrors.NewInvalidPayload("cubeId, face and color are required")
	}
	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		_, cubes := indexNodes(project.Hierarchy)
		if _, ok := cubes[cubeID]; !ok {
			return gatewayerrors.NewInvalidPayload(fmt.Sprintf("cube %s does not exist", cubeID))
		}
		upsertFace(project, cubeID, face, func(fa *pipeline.FaceAssignment) {
			fa.Color = color
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"cubeId": cubeID, "face": face, "color": color, "revision": project.Revision}, nil
}

// preflightTexture checks the requested textures against dimension and
// power-of-two constraints. Requested ids missing from the project surface
// as unresolved diagnostics, never as a hard failure.
func (e *Engine) preflightTexture(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	input, err := types.ParseTexturePreflightPayload(payload)
	if err != nil {
		return nil, err
	}
	project, err := e.requireProject(ctx, session)
	if err != nil {
		return nil, err
	}

	var (
		checked       int
		oversized     int
		nonPowerOfTwo int
		missing       []string
		diagnostics   []string
	)
	for _, id := range input.TextureIDs {
		tex := findTexture(project, id)
		if tex == nil {
			missing = append(missing, id)
			continue
		}
		checked++
		if input.MaxDimension > 0 && (tex.Width > input.MaxDimension || tex.Height > input.MaxDimension) {
			oversized++
			diagnostics = append(diagnostics, fmt.Sprintf(
				"texture %s is %dx%d, exceeds max dimension %d", id, tex.Width, tex.Height, input.MaxDimension))
		}
		if !input.AllowNonPowerOfTwo && (!isPowerOfTwo(tex.Width) || !isPowerOfTwo(tex.Height)) {
			nonPowerOfTwo++
			diagnostics = append(diagnostics, fmt.Sprintf(
				"texture %s is %dx%d, not a power of two", id, tex.Width, tex.Height))
		}
	}
	if len(missing) > 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("missing texture id(s): %s", strings.Join(missing, ", ")))
	}

	status := "passed"
	if oversized > 0 || nonPowerOfTwo > 0 || len(missing) > 0 {
		status = "failed"
	}
	return map[string]any{
		"status": status,
		"summary": map[string]any{
			"checked":         checked,
			"oversized":       oversized,
			"nonPowerOfTwo":   nonPowerOfTwo,
			"unresolvedCount": len(missing),
		},
		"diagnostics": diagnostics,
	}, nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// upsertFace updates or appends the assignment for (cubeId, face).
func upsertFace(project *pipeline.ProjectSnapshot, cubeID, face string, apply func(*pipeline.FaceAssignment)) {
	for i := range project.Faces {
		if project.Faces[i].CubeID == cubeID && project.Faces[i].Face == face {
			apply(&project.Faces[i])
			return
		}
	}
	fa := pipeline.FaceAssignment{CubeID: cubeID, Face: face}
	apply(&fa)
	project.Faces = append(project.Faces, fa)
}
