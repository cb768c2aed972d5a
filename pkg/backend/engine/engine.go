/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package engine is the native modeling backend. It executes the full tool
// surface against the pipeline store and writes export artifacts to the blob
// store. Interactive tools that need a host editor report unavailable.
package engine

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/backend"
	"github.com/sigee-min/bbmcp-sub006/pkg/blob"
	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// BackendKind identifies this backend in the registry.
const BackendKind = "engine"

const engineVersion = "1.0.0"

// unavailableTools need an interactive host editor and are reported as such
// in list_capabilities.
var unavailableTools = map[string]bool{
	types.ToolRenderPreview: true,
	types.ToolReloadPlugins: true,
}

// Engine is the native backend over the pipeline store.
type Engine struct {
	store *pipeline.Store
	blobs blob.Store
}

// New builds an Engine.
func New(store *pipeline.Store, blobs blob.Store) *Engine {
	return &Engine{store: store, blobs: blobs}
}

// Kind implements backend.Backend.
func (e *Engine) Kind() string {
	return BackendKind
}

// GetHealth implements backend.Backend.
func (e *Engine) GetHealth(_ context.Context) backend.Health {
	return backend.Health{
		Kind:         BackendKind,
		Availability: backend.AvailabilityReady,
		Version:      engineVersion,
		Details: map[string]any{
			"pipelineStore": true,
			"blobStore":     e.blobs != nil,
		},
	}
}

// HandleTool implements backend.Backend. Every error becomes a failed
// envelope; nothing escapes as a panic or naked error.
func (e *Engine) HandleTool(ctx context.Context, name string, payload types.Payload, session types.SessionContext) types.ToolResponse {
	data, err := e.dispatch(ctx, name, payload, session)
	if err != nil {
		return types.FailResponse(err)
	}
	return types.OkResponse(data)
}

func (e *Engine) dispatch(ctx context.Context, name string, payload types.Payload, session types.SessionContext) (any, error) {
	switch name {
	case types.ToolListCapabilities:
		return e.listCapabilities(), nil
	case types.ToolEnsureProject:
		return e.ensureProject(ctx, payload, session)
	case types.ToolGetProjectState:
		return e.getProjectState(ctx, session)
	case types.ToolValidate:
		return e.validate(ctx, session)
	case types.ToolAddBone:
		return e.addNode(ctx, payload, session, pipeline.NodeBone)
	case types.ToolUpdateBone:
		return e.updateNode(ctx, payload, session, pipeline.NodeBone)
	case types.ToolDeleteBone:
		return e.deleteNode(ctx, payload, session, pipeline.NodeBone)
	case types.ToolAddCube:
		return e.addNode(ctx, payload, session, pipeline.NodeCube)
	case types.ToolUpdateCube:
		return e.updateNode(ctx, payload, session, pipeline.NodeCube)
	case types.ToolDeleteCube:
		return e.deleteNode(ctx, payload, session, pipeline.NodeCube)
	case types.ToolCreateAnimationClip:
		return e.createAnimationClip(ctx, payload, session)
	case types.ToolUpdateAnimationClip:
		return e.updateAnimationClip(ctx, payload, session)
	case types.ToolDeleteAnimationClip:
		return e.deleteAnimationClip(ctx, payload, session)
	case types.ToolSetKeyframes:
		return e.setKeyframes(ctx, payload, session)
	case types.ToolSetTriggerKeyframes:
		return e.setTriggerKeyframes(ctx, payload, session)
	case types.ToolSetFramePose:
		return e.setFramePose(ctx, payload, session)
	case types.ToolGenerateTexturePre:
		return e.generateTexturePreset(ctx, payload, session)
	case types.ToolDeleteTexture:
		return e.deleteTexture(ctx, payload, session)
	case types.ToolAssignTexture:
		return e.assignTexture(ctx, payload, session)
	case types.ToolReadTexture:
		return e.readTexture(ctx, payload, session)
	case types.ToolSetFaceUV:
		return e.setFaceUV(ctx, payload, session)
	case types.ToolAutoUVAtlas:
		return e.autoUVAtlas(ctx, session)
	case types.ToolSetProjectTexRes:
		return e.setProjectTextureResolution(ctx, payload, session)
	case types.ToolPaintFaces:
		return e.paintFaces(ctx, payload, session)
	case types.ToolPaintMeshFace:
		return e.paintMeshFace(ctx, payload, session)
	case types.ToolPreflightTexture:
		return e.preflightTexture(ctx, payload, session)
	case types.ToolExport:
		return e.export(ctx, payload, session)
	case types.ToolExportTraceLog:
		return e.exportTraceLog(ctx, payload, session)
	case types.ToolRenderPreview, types.ToolReloadPlugins:
		return nil, gatewayerrors.NewNotImplemented(
			fmt.Sprintf("%s requires an interactive host editor", name))
	default:
		return nil, gatewayerrors.NewNotImplemented(fmt.Sprintf("unknown tool: %s", name))
	}
}

// listCapabilities enumerates every registry tool with its availability.
func (e *Engine) listCapabilities() any {
	var tools []map[string]any
	for _, name := range types.ToolNames() {
		meta, _ := types.LookupTool(name)
		tools = append(tools, map[string]any{
			"name":      name,
			"available": !unavailableTools[name],
			"mutating":  meta.Mutating,
		})
	}
	return map[string]any{
		"backend": BackendKind,
		"version": engineVersion,
		"tools":   tools,
	}
}

func (e *Engine) ensureProject(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	name := getString(payload, "name")
	onMissing := getString(payload, "onMissing")
	create := onMissing == "" || onMissing == "create"

	project, created, err := e.store.EnsureProject(ctx, session.WorkspaceID, session.ProjectID, name, create)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, gatewayerrors.NewInvalidState(
			fmt.Sprintf("project %s does not exist and onMissing is %q", session.ProjectID, onMissing))
	}
	if created {
		klog.Infof("created project %s in workspace %s", session.ProjectID, session.WorkspaceID)
	}
	return map[string]any{
		"projectId": project.ProjectID,
		"name":      project.Name,
		"revision":  project.Revision,
		"created":   created,
	}, nil
}

func (e *Engine) getProjectState(ctx context.Context, session types.SessionContext) (any, error) {
	project, err := e.requireProject(ctx, session)
	if err != nil {
		return nil, err
	}
	return project, nil
}

// validate cross-checks the project's internal references.
func (e *Engine) validate(ctx context.Context, session types.SessionContext) (any, error) {
	project, err := e.requireProject(ctx, session)
	if err != nil {
		return nil, err
	}
	var issues []string
	bones, cubes := indexNodes(project.Hierarchy)
	textureIDs := map[string]bool{}
	for _, tex := range project.Textures {
		textureIDs[tex.ID] = true
	}
	for _, face := range project.Faces {
		if _, ok := cubes[face.CubeID]; !ok {
			issues = append(issues, fmt.Sprintf("face assignment references missing cube %s", face.CubeID))
		}
		if face.TextureID != "" && !textureIDs[face.TextureID] {
			issues = append(issues, fmt.Sprintf("face assignment references missing texture %s", face.TextureID))
		}
	}
	for _, anim := range project.Animations {
		for _, kf := range anim.Keyframes {
			if kf.BoneID != "" {
				if _, ok := bones[kf.BoneID]; !ok {
					issues = append(issues, fmt.Sprintf("animation %s references missing bone %s", anim.ID, kf.BoneID))
				}
			}
		}
	}
	if project.Stats.Bones != len(bones) || project.Stats.Cubes != len(cubes) {
		issues = append(issues, "stats are inconsistent with the hierarchy")
	}
	return map[string]any{
		"valid":  len(issues) == 0,
		"issues": issues,
	}, nil
}

// requireProject loads the session project or fails with invalid_state.
func (e *Engine) requireProject(ctx context.Context, session types.SessionContext) (*pipeline.ProjectSnapshot, error) {
	project, err := e.store.GetProject(ctx, session.WorkspaceID, session.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, gatewayerrors.NewInvalidState(fmt.Sprintf("project %s does not exist", session.ProjectID)).
			WithFix("Call ensure_project first")
	}
	return project, nil
}
