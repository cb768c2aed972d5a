/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sigee-min/bbmcp-sub006/pkg/blob"
	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// Export formats.
const (
	FormatGltf        = "gltf"
	FormatNativeCodec = "native_codec"
)

// nativeCodecs maps a requested codec id to its emitted format.
var nativeCodecs = map[string]string{
	"gltf": FormatGltf,
	"glb":  "glb",
}

// exportDocument is the serialized artifact. Field order is fixed and the
// content excludes volatile state, so identical projects export to
// byte-identical blobs.
type exportDocument struct {
	Format     string                    `json:"format"`
	ProjectID  string                    `json:"projectId"`
	Name       string                    `json:"name"`
	Revision   int64                     `json:"revision"`
	Hierarchy  []*pipeline.HierarchyNode `json:"hierarchy"`
	Animations []*pipeline.Animation     `json:"animations"`
	Textures   []*pipeline.Texture       `json:"textures"`
	Faces      []pipeline.FaceAssignment `json:"faces,omitempty"`
	Stats      pipeline.Stats            `json:"stats"`
}

// export serializes the project deterministically and writes it to the
// exports bucket. Re-exporting an unchanged project overwrites the blob with
// identical bytes.
func (e *Engine) export(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	format := getString(payload, "format")
	if format == "" {
		format = FormatGltf
	}
	requestedCodecID := getString(payload, "codecId")

	var selectedFormat string
	switch format {
	case FormatGltf:
		selectedFormat = FormatGltf
	case FormatNativeCodec:
		if requestedCodecID == "" {
			return nil, gatewayerrors.NewInvalidPayload("codecId is required for native_codec export")
		}
		resolved, ok := nativeCodecs[requestedCodecID]
		if !ok {
			return nil, gatewayerrors.NewUnsupportedFormat(
				fmt.Sprintf("unknown codec %s", requestedCodecID))
		}
		selectedFormat = resolved
	default:
		return nil, gatewayerrors.NewUnsupportedFormat(fmt.Sprintf("unknown export format %s", format))
	}

	project, err := e.requireProject(ctx, session)
	if err != nil {
		return nil, err
	}

	doc := exportDocument{
		Format:     selectedFormat,
		ProjectID:  project.ProjectID,
		Name:       project.Name,
		Revision:   project.Revision,
		Hierarchy:  project.Hierarchy,
		Animations: project.Animations,
		Textures:   project.Textures,
		Faces:      project.Faces,
		Stats:      project.Stats,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, gatewayerrors.NewIOError(err)
	}

	key := fmt.Sprintf("%s/%s/%s.%s", session.TenantID, project.ProjectID, project.ProjectID, selectedFormat)
	ptr, err := e.blobs.Put(ctx, blob.ExportsBucket, key, data, "application/json", nil)
	if err != nil {
		return nil, gatewayerrors.NewIOError(err)
	}

	return map[string]any{
		"exportPath":       ptr.Bucket + "/" + ptr.Key,
		"selectedTarget":   selectedFormat,
		"requestedCodecId": requestedCodecID,
		"selectedFormat":   selectedFormat,
		"bytes":            len(data),
	}, nil
}

// exportTraceLog writes the project's journal as a text artifact.
func (e *Engine) exportTraceLog(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	sinceSeq := int64(0)
	if v, ok := getInt(payload, "sinceSeq"); ok {
		sinceSeq = int64(v)
	}
	events, err := e.store.GetProjectEventsSince(ctx, session.WorkspaceID, session.ProjectID, sinceSeq)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, event := range events {
		lines = append(lines, fmt.Sprintf("%d %s project=%s revision=%d bones=%d cubes=%d",
			event.Seq, event.Event, event.Data.ProjectID, event.Data.Revision,
			event.Data.Stats.Bones, event.Data.Stats.Cubes))
	}
	content := strings.Join(lines, "\n")

	lastSeq := sinceSeq
	if len(events) > 0 {
		lastSeq = events[len(events)-1].Seq
	}
	key := fmt.Sprintf("%s/%s/trace-%d.log", session.TenantID, session.ProjectID, lastSeq)
	ptr, err := e.blobs.Put(ctx, blob.ExportsBucket, key, []byte(content), "text/plain", nil)
	if err != nil {
		return nil, gatewayerrors.NewIOError(err)
	}
	return map[string]any{
		"exportPath": ptr.Bucket + "/" + ptr.Key,
		"events":     len(events),
	}, nil
}
