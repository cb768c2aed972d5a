/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"

	"github.com/sigee-min/bbmcp-sub006/pkg/blob"
	"github.com/sigee-min/bbmcp-sub006/pkg/clock"
	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository/memory"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

func newTestEngine() (*Engine, *pipeline.Store, *blob.MemoryStore) {
	store := pipeline.NewStore(memory.NewProjectRepository(), pipeline.Options{
		TenantID:          "default",
		Clock:             clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		LockRetryInterval: time.Millisecond,
		LockTimeout:       200 * time.Millisecond,
	})
	blobs := blob.NewMemoryStore()
	return New(store, blobs), store, blobs
}

func testSession() types.SessionContext {
	return types.SessionContext{
		TenantID:    "default",
		ActorID:     "acct-1",
		WorkspaceID: "ws-1",
		ProjectID:   "p-model",
	}
}

func callOK(t *testing.T, e *Engine, name string, payload types.Payload, session types.SessionContext) map[string]any {
	t.Helper()
	resp := e.HandleTool(context.Background(), name, payload, session)
	if !resp.Ok {
		t.Fatalf("%s failed: %+v", name, resp.Error)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("%s returned %T, want map", name, resp.Data)
	}
	return data
}

func callErr(t *testing.T, e *Engine, name string, payload types.Payload, session types.SessionContext) *types.ToolError {
	t.Helper()
	resp := e.HandleTool(context.Background(), name, payload, session)
	if resp.Ok {
		t.Fatalf("%s unexpectedly succeeded", name)
	}
	return resp.Error
}

func seedProject(t *testing.T, e *Engine, session types.SessionContext) {
	t.Helper()
	callOK(t, e, types.ToolEnsureProject, types.Payload{"name": "Model"}, session)
}

func TestEnsureProject(t *testing.T) {
	e, _, _ := newTestEngine()
	session := testSession()

	data := callOK(t, e, types.ToolEnsureProject, types.Payload{"name": "Model"}, session)
	assert.Equal(t, data["created"], true)
	assert.Equal(t, data["name"], "Model")
	assert.Equal(t, data["revision"], int64(1))

	data = callOK(t, e, types.ToolEnsureProject, types.Payload{"name": "Other"}, session)
	assert.Equal(t, data["created"], false)
	assert.Equal(t, data["name"], "Model")

	session.ProjectID = "absent"
	toolErr := callErr(t, e, types.ToolEnsureProject, types.Payload{"onMissing": "error"}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeInvalidState)
}

func TestGetProjectStateRequiresProject(t *testing.T) {
	e, _, _ := newTestEngine()
	session := testSession()
	session.ProjectID = "never-created"

	toolErr := callErr(t, e, types.ToolGetProjectState, types.Payload{}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeInvalidState)
	assert.Equal(t, toolErr.Fix, "Call ensure_project first")
}

func TestAddCubeMarksGeometry(t *testing.T) {
	e, _, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)

	callOK(t, e, types.ToolAddBone, types.Payload{"id": "root", "name": "Root"}, session)
	callOK(t, e, types.ToolAddCube, types.Payload{
		"id": "body", "parentId": "root", "size": []any{2.0, 1.0, 1.0}}, session)

	resp := e.HandleTool(context.Background(), types.ToolGetProjectState, types.Payload{}, session)
	assert.Assert(t, resp.Ok)
	snapshot, ok := resp.Data.(*pipeline.ProjectSnapshot)
	assert.Assert(t, ok)
	assert.Equal(t, snapshot.HasGeometry, true)
	assert.Equal(t, snapshot.Stats.Bones, 1)
	assert.Equal(t, snapshot.Stats.Cubes, 1)
	assert.Equal(t, snapshot.Hierarchy[0].Children[0].Size[0], 2.0)
}

func TestNodeStructureRules(t *testing.T) {
	e, _, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)
	callOK(t, e, types.ToolAddBone, types.Payload{"id": "root"}, session)
	callOK(t, e, types.ToolAddBone, types.Payload{"id": "arm", "parentId": "root"}, session)
	callOK(t, e, types.ToolAddCube, types.Payload{"id": "hand", "parentId": "arm"}, session)

	toolErr := callErr(t, e, types.ToolAddBone, types.Payload{"id": "root"}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeInvalidPayload)

	toolErr = callErr(t, e, types.ToolAddCube, types.Payload{"id": "loose", "parentId": "hand"}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeInvalidPayload)
	assert.Assert(t, strings.Contains(toolErr.Message, "is not a bone"))

	toolErr = callErr(t, e, types.ToolAddBone, types.Payload{"id": "self", "parentId": "self"}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeInvalidPayload)

	// A bone cannot move under its own subtree.
	toolErr = callErr(t, e, types.ToolUpdateBone, types.Payload{"id": "root", "parentId": "arm"}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeInvalidPayload)

	// Deleting a bone removes its subtree.
	data := callOK(t, e, types.ToolDeleteBone, types.Payload{"id": "arm"}, session)
	stats, ok := data["stats"].(pipeline.Stats)
	assert.Assert(t, ok)
	assert.Equal(t, stats.Bones, 1)
	assert.Equal(t, stats.Cubes, 0)
}

func TestDeleteCubeDropsFaceAssignments(t *testing.T) {
	e, store, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)
	callOK(t, e, types.ToolAddCube, types.Payload{"id": "body"}, session)
	callOK(t, e, types.ToolGenerateTexturePre, types.Payload{"presetId": "flat-16"}, session)
	callOK(t, e, types.ToolAssignTexture, types.Payload{
		"textureId": "flat-16",
		"faces":     []any{map[string]any{"cubeId": "body", "face": "north"}},
	}, session)

	callOK(t, e, types.ToolDeleteCube, types.Payload{"id": "body"}, session)

	project, err := store.GetProject(context.Background(), session.WorkspaceID, session.ProjectID)
	assert.NilError(t, err)
	assert.Equal(t, len(project.Faces), 0)
}

func TestAnimationClipLifecycle(t *testing.T) {
	e, _, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)
	callOK(t, e, types.ToolAddBone, types.Payload{"id": "root"}, session)

	data := callOK(t, e, types.ToolCreateAnimationClip, types.Payload{"id": "walk"}, session)
	assert.Equal(t, data["length"], 1.0)
	assert.Equal(t, data["loop"], false)

	toolErr := callErr(t, e, types.ToolSetKeyframes, types.Payload{
		"animationId": "walk",
		"keyframes":   []any{map[string]any{"time": 0.0, "boneId": "ghost"}},
	}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeInvalidPayload)

	data = callOK(t, e, types.ToolSetKeyframes, types.Payload{
		"animationId": "walk",
		"keyframes": []any{
			map[string]any{"time": 0.5, "boneId": "root", "values": []any{0.0, 90.0, 0.0}},
			map[string]any{"time": 0.0, "boneId": "root", "values": []any{0.0, 0.0, 0.0}},
		},
	}, session)
	assert.Equal(t, data["keyframes"], 2)

	// Trigger keyframes live alongside value keyframes.
	data = callOK(t, e, types.ToolSetTriggerKeyframes, types.Payload{
		"animationId": "walk",
		"keyframes":   []any{map[string]any{"time": 0.25, "trigger": "footstep"}},
	}, session)
	assert.Equal(t, data["keyframes"], 3)

	// Replacing value keyframes keeps the triggers.
	data = callOK(t, e, types.ToolSetKeyframes, types.Payload{
		"animationId": "walk",
		"keyframes": []any{
			map[string]any{"time": 0.0, "boneId": "root", "values": []any{0.0, 0.0, 0.0}},
		},
	}, session)
	assert.Equal(t, data["keyframes"], 2)

	callOK(t, e, types.ToolDeleteAnimationClip, types.Payload{"id": "walk"}, session)
	toolErr = callErr(t, e, types.ToolDeleteAnimationClip, types.Payload{"id": "walk"}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeInvalidState)
}

func TestSetFramePoseReplacesSlot(t *testing.T) {
	e, store, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)
	callOK(t, e, types.ToolAddBone, types.Payload{"id": "root"}, session)
	callOK(t, e, types.ToolAddBone, types.Payload{"id": "arm", "parentId": "root"}, session)
	callOK(t, e, types.ToolCreateAnimationClip, types.Payload{"id": "walk"}, session)

	callOK(t, e, types.ToolSetFramePose, types.Payload{
		"animationId": "walk", "time": 0.0,
		"pose": map[string]any{"root": []any{0.0, 0.0, 0.0}, "arm": []any{10.0, 0.0, 0.0}},
	}, session)
	data := callOK(t, e, types.ToolSetFramePose, types.Payload{
		"animationId": "walk", "time": 0.0,
		"pose": map[string]any{"arm": []any{20.0, 0.0, 0.0}},
	}, session)
	assert.Equal(t, data["keyframes"], 2)

	project, err := store.GetProject(context.Background(), session.WorkspaceID, session.ProjectID)
	assert.NilError(t, err)
	anim := project.Animations[0]
	for _, kf := range anim.Keyframes {
		if kf.BoneID == "arm" {
			assert.Equal(t, kf.Values[0], 20.0)
		}
	}
}

func TestTexturePresetAndRead(t *testing.T) {
	e, _, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)

	toolErr := callErr(t, e, types.ToolGenerateTexturePre, types.Payload{"presetId": "neon-512"}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeInvalidPayload)
	assert.Assert(t, strings.Contains(toolErr.Message, "checker-64, flat-16, flat-32"))

	data := callOK(t, e, types.ToolGenerateTexturePre, types.Payload{
		"presetId": "checker-64", "textureId": "skin"}, session)
	assert.Equal(t, data["width"], 64)
	assert.Equal(t, data["height"], 64)

	callOK(t, e, types.ToolAddCube, types.Payload{"id": "body"}, session)
	callOK(t, e, types.ToolAssignTexture, types.Payload{
		"textureId": "skin",
		"faces": []any{
			map[string]any{"cubeId": "body", "face": "north"},
			map[string]any{"cubeId": "body", "face": "south"},
		},
	}, session)

	data = callOK(t, e, types.ToolReadTexture, types.Payload{"textureId": "skin"}, session)
	assert.Equal(t, data["source"], "preset://checker-64")
	usedBy, ok := data["usedBy"].([]string)
	assert.Assert(t, ok)
	assert.DeepEqual(t, usedBy, []string{"body/north", "body/south"})
}

func TestPreflightTextureReportsMissing(t *testing.T) {
	e, _, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)
	callOK(t, e, types.ToolGenerateTexturePre, types.Payload{"presetId": "flat-16"}, session)

	data := callOK(t, e, types.ToolPreflightTexture, types.Payload{
		"textureIds": []any{"flat-16", "tex-ghost"},
	}, session)
	assert.Equal(t, data["status"], "failed")

	summary, ok := data["summary"].(map[string]any)
	assert.Assert(t, ok)
	assert.Equal(t, summary["checked"], 1)
	assert.Equal(t, summary["unresolvedCount"], 1)

	diagnostics, ok := data["diagnostics"].([]string)
	assert.Assert(t, ok)
	assert.Equal(t, len(diagnostics), 1)
	assert.Equal(t, diagnostics[0], "missing texture id(s): tex-ghost")
}

func TestPreflightTextureConstraints(t *testing.T) {
	e, _, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)
	callOK(t, e, types.ToolGenerateTexturePre, types.Payload{"presetId": "checker-64"}, session)

	data := callOK(t, e, types.ToolPreflightTexture, types.Payload{
		"textureIds": []any{"checker-64"},
	}, session)
	assert.Equal(t, data["status"], "passed")

	data = callOK(t, e, types.ToolPreflightTexture, types.Payload{
		"textureIds":   []any{"checker-64"},
		"maxDimension": 32,
	}, session)
	assert.Equal(t, data["status"], "failed")
	summary := data["summary"].(map[string]any)
	assert.Equal(t, summary["oversized"], 1)
}

func TestSetProjectTextureResolutionNoChange(t *testing.T) {
	e, _, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)

	callOK(t, e, types.ToolSetProjectTexRes, types.Payload{"resolution": 32}, session)
	toolErr := callErr(t, e, types.ToolSetProjectTexRes, types.Payload{"resolution": 32}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeNoChange)
}

func TestAutoUVAtlasCoversEveryFace(t *testing.T) {
	e, store, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)
	callOK(t, e, types.ToolAddCube, types.Payload{"id": "body"}, session)
	callOK(t, e, types.ToolAddCube, types.Payload{"id": "head"}, session)

	data := callOK(t, e, types.ToolAutoUVAtlas, types.Payload{}, session)
	assert.Equal(t, data["faces"], 12)

	project, err := store.GetProject(context.Background(), session.WorkspaceID, session.ProjectID)
	assert.NilError(t, err)
	assert.Equal(t, len(project.Faces), 12)
	for _, face := range project.Faces {
		assert.Equal(t, len(face.UV), 4)
	}
}

func TestExportWritesDeterministicArtifact(t *testing.T) {
	e, _, blobs := newTestEngine()
	session := testSession()
	seedProject(t, e, session)
	callOK(t, e, types.ToolAddCube, types.Payload{"id": "body"}, session)

	before := callOK(t, e, types.ToolEnsureProject, types.Payload{}, session)

	data := callOK(t, e, types.ToolExport, types.Payload{}, session)
	assert.Equal(t, data["exportPath"], "exports/default/p-model/p-model.gltf")
	assert.Equal(t, data["selectedTarget"], "gltf")
	assert.Equal(t, data["selectedFormat"], "gltf")

	ptr := blob.Pointer{Bucket: blob.ExportsBucket, Key: "default/p-model/p-model.gltf"}
	first, err := blobs.Get(context.Background(), ptr)
	assert.NilError(t, err)
	assert.Assert(t, len(first) > 0)

	// Re-exporting an unchanged project neither bumps the revision nor
	// changes the artifact bytes.
	callOK(t, e, types.ToolExport, types.Payload{}, session)
	second, err := blobs.Get(context.Background(), ptr)
	assert.NilError(t, err)
	assert.DeepEqual(t, first, second)

	after := callOK(t, e, types.ToolEnsureProject, types.Payload{}, session)
	assert.Equal(t, after["revision"], before["revision"])
	assert.Equal(t, len(blobs.Keys(blob.ExportsBucket)), 1)
}

func TestExportCodecSelection(t *testing.T) {
	e, _, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)

	toolErr := callErr(t, e, types.ToolExport, types.Payload{"format": FormatNativeCodec}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeInvalidPayload)

	toolErr = callErr(t, e, types.ToolExport, types.Payload{
		"format": FormatNativeCodec, "codecId": "fbx"}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeUnsupported)
	assert.Equal(t, toolErr.Message, "unknown codec fbx")

	data := callOK(t, e, types.ToolExport, types.Payload{
		"format": FormatNativeCodec, "codecId": "glb"}, session)
	assert.Equal(t, data["selectedTarget"], "glb")
	assert.Equal(t, data["requestedCodecId"], "glb")
	assert.Equal(t, data["exportPath"], "exports/default/p-model/p-model.glb")

	toolErr = callErr(t, e, types.ToolExport, types.Payload{"format": "obj"}, session)
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeUnsupported)
}

func TestExportTraceLog(t *testing.T) {
	e, _, blobs := newTestEngine()
	session := testSession()
	seedProject(t, e, session)
	callOK(t, e, types.ToolAddCube, types.Payload{"id": "body"}, session)

	data := callOK(t, e, types.ToolExportTraceLog, types.Payload{}, session)
	events, ok := data["events"].(int)
	assert.Assert(t, ok)
	assert.Assert(t, events >= 2)

	keys := blobs.Keys(blob.ExportsBucket)
	assert.Equal(t, len(keys), 1)
	assert.Assert(t, strings.HasPrefix(keys[0], "default/p-model/trace-"))
}

func TestValidateFindsDanglingReferences(t *testing.T) {
	e, store, _ := newTestEngine()
	session := testSession()
	seedProject(t, e, session)
	callOK(t, e, types.ToolAddCube, types.Payload{"id": "body"}, session)

	data := callOK(t, e, types.ToolValidate, types.Payload{}, session)
	assert.Equal(t, data["valid"], true)

	// Inject an inconsistency below the tool surface.
	_, err := store.UpdateProject(context.Background(), session.WorkspaceID, session.ProjectID,
		func(project *pipeline.ProjectSnapshot) error {
			project.Faces = append(project.Faces, pipeline.FaceAssignment{
				CubeID: "gone", Face: "north", TextureID: "never-made"})
			return nil
		})
	assert.NilError(t, err)

	data = callOK(t, e, types.ToolValidate, types.Payload{}, session)
	assert.Equal(t, data["valid"], false)
	issues, ok := data["issues"].([]string)
	assert.Assert(t, ok)
	assert.Equal(t, len(issues), 2)
}

func TestListCapabilitiesMarksInteractiveToolsUnavailable(t *testing.T) {
	e, _, _ := newTestEngine()

	data := callOK(t, e, types.ToolListCapabilities, types.Payload{}, testSession())
	assert.Equal(t, data["backend"], BackendKind)

	tools, ok := data["tools"].([]map[string]any)
	assert.Assert(t, ok)
	assert.Equal(t, len(tools), len(types.ToolNames()))
	byName := map[string]map[string]any{}
	for _, tool := range tools {
		byName[tool["name"].(string)] = tool
	}
	assert.Equal(t, byName[types.ToolRenderPreview]["available"], false)
	assert.Equal(t, byName[types.ToolExport]["available"], true)
	assert.Equal(t, byName[types.ToolExport]["mutating"], true)
	assert.Equal(t, byName[types.ToolGetProjectState]["mutating"], false)

	toolErr := callErr(t, e, types.ToolRenderPreview, types.Payload{}, testSession())
	assert.Equal(t, toolErr.Code, gatewayerrors.CodeNotImplemented)
}
