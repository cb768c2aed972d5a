/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package types

// Tool names exposed by the gateway. The registry below is the authoritative
// enumeration; backends may implement a subset and must report the rest as
// unavailable in list_capabilities.
const (
	ToolListCapabilities     = "list_capabilities"
	ToolGetProjectState      = "get_project_state"
	ToolReadTexture          = "read_texture"
	ToolExportTraceLog       = "export_trace_log"
	ToolReloadPlugins        = "reload_plugins"
	ToolGenerateTexturePre   = "generate_texture_preset"
	ToolAutoUVAtlas          = "auto_uv_atlas"
	ToolSetProjectTexRes     = "set_project_texture_resolution"
	ToolPreflightTexture     = "preflight_texture"
	ToolEnsureProject        = "ensure_project"
	ToolDeleteTexture        = "delete_texture"
	ToolAssignTexture        = "assign_texture"
	ToolSetFaceUV            = "set_face_uv"
	ToolAddBone              = "add_bone"
	ToolUpdateBone           = "update_bone"
	ToolDeleteBone           = "delete_bone"
	ToolAddCube              = "add_cube"
	ToolUpdateCube           = "update_cube"
	ToolDeleteCube           = "delete_cube"
	ToolCreateAnimationClip  = "create_animation_clip"
	ToolUpdateAnimationClip  = "update_animation_clip"
	ToolDeleteAnimationClip  = "delete_animation_clip"
	ToolSetKeyframes         = "set_keyframes"
	ToolSetTriggerKeyframes  = "set_trigger_keyframes"
	ToolSetFramePose         = "set_frame_pose"
	ToolPaintFaces           = "paint_faces"
	ToolPaintMeshFace        = "paint_mesh_face"
	ToolExport               = "export"
	ToolRenderPreview        = "render_preview"
	ToolValidate             = "validate"
)

// ToolMeta is the compile-time classification of a tool.
type ToolMeta struct {
	Name            string
	Mutating        bool
	RequiresProject bool
}

// toolRegistry holds per-tool metadata in a stable order.
var toolRegistry = []ToolMeta{
	{Name: ToolListCapabilities},
	{Name: ToolGetProjectState, RequiresProject: true},
	{Name: ToolReadTexture, RequiresProject: true},
	{Name: ToolExportTraceLog, Mutating: true},
	{Name: ToolReloadPlugins},
	{Name: ToolGenerateTexturePre, Mutating: true, RequiresProject: true},
	{Name: ToolAutoUVAtlas, Mutating: true, RequiresProject: true},
	{Name: ToolSetProjectTexRes, Mutating: true, RequiresProject: true},
	{Name: ToolPreflightTexture, RequiresProject: true},
	{Name: ToolEnsureProject, Mutating: true, RequiresProject: true},
	{Name: ToolDeleteTexture, Mutating: true, RequiresProject: true},
	{Name: ToolAssignTexture, Mutating: true, RequiresProject: true},
	{Name: ToolSetFaceUV, Mutating: true, RequiresProject: true},
	{Name: ToolAddBone, Mutating: true, RequiresProject: true},
	{Name: ToolUpdateBone, Mutating: true, RequiresProject: true},
	{Name: ToolDeleteBone, Mutating: true, RequiresProject: true},
	{Name: ToolAddCube, Mutating: true, RequiresProject: true},
	{Name: ToolUpdateCube, Mutating: true, RequiresProject: true},
	{Name: ToolDeleteCube, Mutating: true, RequiresProject: true},
	{Name: ToolCreateAnimationClip, Mutating: true, RequiresProject: true},
	{Name: ToolUpdateAnimationClip, Mutating: true, RequiresProject: true},
	{Name: ToolDeleteAnimationClip, Mutating: true, RequiresProject: true},
	{Name: ToolSetKeyframes, Mutating: true, RequiresProject: true},
	{Name: ToolSetTriggerKeyframes, Mutating: true, RequiresProject: true},
	{Name: ToolSetFramePose, Mutating: true, RequiresProject: true},
	{Name: ToolPaintFaces, Mutating: true, RequiresProject: true},
	{Name: ToolPaintMeshFace, Mutating: true, RequiresProject: true},
	{Name: ToolExport, Mutating: true, RequiresProject: true},
	{Name: ToolRenderPreview, RequiresProject: true},
	{Name: ToolValidate, RequiresProject: true},
}

var toolIndex = func() map[string]ToolMeta {
	m := make(map[string]ToolMeta, len(toolRegistry))
	for _, t := range toolRegistry {
		m[t.Name] = t
	}
	return m
}()

// LookupTool returns the metadata for name.
func LookupTool(name string) (ToolMeta, bool) {
	t, ok := toolIndex[name]
	return t, ok
}

// IsMutatingTool reports whether name is classified as mutating.
// Unknown tools are treated as mutating so that no guard is skipped.
func IsMutatingTool(name string) bool {
	if t, ok := toolIndex[name]; ok {
		return t.Mutating
	}
	return true
}

// ToolNames returns all registered tool names in registry order.
func ToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for _, t := range toolRegistry {
		names = append(names, t.Name)
	}
	return names
}
