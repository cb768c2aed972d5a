/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// runGltfConvert executes ensure_project, export and get_project_state and
// composes the conversion result.
func (w *Worker) runGltfConvert(ctx context.Context, workspaceID string, job *pipeline.Job, session types.SessionContext) {
	payload, err := types.ParseGltfConvertPayload(job.Payload)
	if err != nil {
		w.fail(ctx, workspaceID, job, fmt.Sprintf("payload validation failed: %s", err.Error()))
		return
	}

	if _, failMsg := w.invoke(ctx, types.ToolEnsureProject, types.Payload{
		"projectId": job.ProjectID,
		"onMissing": "create",
	}, session); failMsg != "" {
		w.fail(ctx, workspaceID, job, failMsg)
		return
	}

	exportPayload := types.Payload{"projectId": job.ProjectID, "format": "gltf"}
	if payload.CodecID != "" {
		exportPayload["format"] = "native_codec"
		exportPayload["codecId"] = payload.CodecID
	}
	if payload.Optimize {
		exportPayload["optimize"] = true
	}
	exportData, failMsg := w.invoke(ctx, types.ToolExport, exportPayload, session)
	if failMsg != "" {
		w.fail(ctx, workspaceID, job, failMsg)
		return
	}

	stateData, failMsg := w.invoke(ctx, types.ToolGetProjectState, types.Payload{"projectId": job.ProjectID}, session)
	if failMsg != "" {
		w.fail(ctx, workspaceID, job, failMsg)
		return
	}

	project, ok := stateData.(*pipeline.ProjectSnapshot)
	if !ok {
		w.fail(ctx, workspaceID, job, "get_project_state returned an unexpected shape")
		return
	}
	exportMap, _ := exportData.(map[string]any)

	result := types.NativeJobResult{
		Kind:   types.JobKindGltfConvert,
		Status: "converted",
		Output: map[string]any{
			"exportPath":       exportMap["exportPath"],
			"selectedTarget":   exportMap["selectedTarget"],
			"requestedCodecId": payload.CodecID,
			"selectedFormat":   exportMap["selectedFormat"],
		},
		HasGeometry: project.HasGeometry,
		Hierarchy:   project.Hierarchy,
		Animations:  project.Animations,
		Textures:    project.Textures,
		TextureSources: func() []string {
			var sources []string
			for _, tex := range project.Textures {
				sources = append(sources, tex.Source)
			}
			return sources
		}(),
	}
	w.complete(ctx, workspaceID, job, resultPayload(result))
}

// runTexturePreflight executes ensure_project and preflight_texture. A
// failed preflight is a completed job whose result carries status "failed".
func (w *Worker) runTexturePreflight(ctx context.Context, workspaceID string, job *pipeline.Job, session types.SessionContext) {
	payload, err := types.ParseTexturePreflightPayload(job.Payload)
	if err != nil {
		w.fail(ctx, workspaceID, job, fmt.Sprintf("payload validation failed: %s", err.Error()))
		return
	}

	if _, failMsg := w.invoke(ctx, types.ToolEnsureProject, types.Payload{
		"projectId": job.ProjectID,
		"onMissing": "create",
	}, session); failMsg != "" {
		w.fail(ctx, workspaceID, job, failMsg)
		return
	}

	preflightPayload := types.Payload{
		"projectId":  job.ProjectID,
		"textureIds": payload.TextureIDs,
	}
	if payload.MaxDimension > 0 {
		preflightPayload["maxDimension"] = payload.MaxDimension
	}
	preflightPayload["allowNonPowerOfTwo"] = payload.AllowNonPowerOfTwo

	data, failMsg := w.invoke(ctx, types.ToolPreflightTexture, preflightPayload, session)
	if failMsg != "" {
		w.fail(ctx, workspaceID, job, failMsg)
		return
	}
	report, _ := data.(map[string]any)
	status, _ := report["status"].(string)
	if status == "" {
		status = "failed"
	}

	result := types.NativeJobResult{
		Kind:        types.JobKindTexturePreflight,
		Status:      status,
		Summary:     toMap(report["summary"]),
		Diagnostics: toStringSlice(report["diagnostics"]),
	}
	w.complete(ctx, workspaceID, job, resultPayload(result))
}

// invoke runs one backend tool and formats failures as
// "<tool> failed (<code>): <message>".
func (w *Worker) invoke(ctx context.Context, tool string, payload types.Payload, session types.SessionContext) (any, string) {
	response := w.backend.HandleTool(ctx, tool, payload, session)
	if response.Ok {
		return response.Data, ""
	}
	code := "unknown"
	message := ""
	if response.Error != nil {
		code = response.Error.Code
		message = response.Error.Message
	}
	return nil, fmt.Sprintf("%s failed (%s): %s", tool, code, message)
}

// resultPayload flattens a NativeJobResult into the schemaless result shape
// the store persists.
func resultPayload(result types.NativeJobResult) types.Payload {
	data, err := json.Marshal(result)
	if err != nil {
		klog.ErrorS(err, "failed to encode job result")
		return types.Payload{"kind": result.Kind, "status": result.Status}
	}
	var out types.Payload
	if err := json.Unmarshal(data, &out); err != nil {
		return types.Payload{"kind": result.Kind, "status": result.Status}
	}
	return out
}

func toMap(raw any) map[string]any {
	if m, ok := raw.(map[string]any); ok {
		return m
	}
	return nil
}

func toStringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
