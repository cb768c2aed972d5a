/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package engine

import (
	"context"
	"fmt"
	"sort"

	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

func findAnimation(project *pipeline.ProjectSnapshot, id string) *pipeline.Animation {
	for _, anim := range project.Animations {
		if anim.ID == id {
			return anim
		}
	}
	return nil
}

func (e *Engine) createAnimationClip(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	id := getString(payload, "id")
	if id == "" {
		return nil, gatewayerrors.NewInvalidPayload("id is required")
	}
	name := getString(payload, "name")
	if name == "" {
		name = id
	}
	length, _ := getFloat(payload, "length")
	if length <= 0 {
		length = 1.0
	}
	loop, _ := getBool(payload, "loop")

	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		if findAnimation(project, id) != nil {
			return gatewayerrors.NewInvalidPayload(fmt.Sprintf("animation %s already exists", id))
		}
		project.Animations = append(project.Animations, &pipeline.Animation{
			ID:     id,
			Name:   name,
			Length: length,
			Loop:   loop,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return animationResult(project, id), nil
}

func (e *Engine) updateAnimationClip(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	id := getString(payload, "id")
	if id == "" {
		return nil, gatewayerrors.NewInvalidPayload("id is required")
	}
	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		anim := findAnimation(project, id)
		if anim == nil {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("animation %s does not exist", id))
		}
		if name := getString(payload, "name"); name != "" {
			anim.Name = name
		}
		if length, ok := getFloat(payload, "length"); ok && length > 0 {
			anim.Length = length
		}
		if loop, ok := getBool(payload, "loop"); ok {
			anim.Loop = loop
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return animationResult(project, id), nil
}

func (e *Engine) deleteAnimationClip(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	id := getString(payload, "id")
	if id == "" {
		return nil, gatewayerrors.NewInvalidPayload("id is required")
	}
	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		for i, anim := range project.Animations {
			if anim.ID == id {
				project.Animations = append(project.Animations[:i], project.Animations[i+1:]...)
				return nil
			}
		}
		return gatewayerrors.NewInvalidState(fmt.Sprintf("animation %s does not exist", id))
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": id, "revision": project.Revision}, nil
}

// setKeyframes replaces the value keyframes of one clip. Every referenced
// bone must exist.
func (e *Engine) setKeyframes(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	animationID := getString(payload, "animationId")
	if animationID == "" {
		return nil, gatewayerrors.NewInvalidPayload("animationId is required")
	}
	entries := getPayloadSlice(payload, "keyframes")
	if entries == nil {
		return nil, gatewayerrors.NewInvalidPayload("keyframes must be an array of objects")
	}

	keyframes := make([]pipeline.Keyframe, 0, len(entries))
	for _, entry := range entries {
		t, ok := getFloat(entry, "time")
		if !ok || t < 0 {
			return nil, gatewayerrors.NewInvalidPayload("keyframes[].time must be a non-negative number")
		}
		boneID := getString(entry, "boneId")
		if boneID == "" {
			return nil, gatewayerrors.NewInvalidPayload("keyframes[].boneId is required")
		}
		channel := getString(entry, "channel")
		if channel == "" {
			channel = "rotation"
		}
		keyframes = append(keyframes, pipeline.Keyframe{
			Time:    t,
			Channel: channel,
			BoneID:  boneID,
			Values:  getFloatSlice(entry, "values"),
		})
	}

	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		anim := findAnimation(project, animationID)
		if anim == nil {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("animation %s does not exist", animationID))
		}
		bones, _ := indexNodes(project.Hierarchy)
		for _, kf := range keyframes {
			if _, ok := bones[kf.BoneID]; !ok {
				return gatewayerrors.NewInvalidPayload(fmt.Sprintf("bone %s does not exist", kf.BoneID))
			}
		}
		// keep trigger keyframes, replace value keyframes
		var kept []pipeline.Keyframe
		for _, kf := range anim.Keyframes {
			if kf.Trigger != "" {
				kept = append(kept, kf)
			}
		}
		anim.Keyframes = append(kept, keyframes...)
		sortKeyframes(anim)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return animationResult(project, animationID), nil
}

// setTriggerKeyframes replaces the trigger keyframes of one clip.
func (e *Engine) setTriggerKeyframes(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	animationID := getString(payload, "animationId")
	if animationID == "" {
		return nil, gatewayerrors.NewInvalidPayload("animationId is required")
	}
	entries := getPayloadSlice(payload, "keyframes")
	if entries == nil {
		return nil, gatewayerrors.NewInvalidPayload("keyframes must be an array of objects")
	}

	keyframes := make([]pipeline.Keyframe, 0, len(entries))
	for _, entry := range entries {
		t, ok := getFloat(entry, "time")
		if !ok || t < 0 {
			return nil, gatewayerrors.NewInvalidPayload("keyframes[].time must be a non-negative number")
		}
		trigger := getString(entry, "trigger")
		if trigger == "" {
			return nil, gatewayerrors.NewInvalidPayload("keyframes[].trigger is required")
		}
		keyframes = append(keyframes, pipeline.Keyframe{
			Time:    t,
			Channel: "trigger",
			Trigger: trigger,
		})
	}

	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		anim := findAnimation(project, animationID)
		if anim == nil {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("animation %s does not exist", animationID))
		}
		var kept []pipeline.Keyframe
		for _, kf := range anim.Keyframes {
			if kf.Trigger == "" {
				kept = append(kept, kf)
			}
		}
		anim.Keyframes = append(kept, keyframes...)
		sortKeyframes(anim)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return animationResult(project, animationID), nil
}

// setFramePose writes one keyframe per bone at a single time.
func (e *Engine) setFramePose(ctx context.Context, payload types.Payload, session types.SessionContext) (any, error) {
	animationID := getString(payload, "animationId")
	if animationID == "" {
		return nil, gatewayerrors.NewInvalidPayload("animationId is required")
	}
	t, ok := getFloat(payload, "time")
	if !ok || t < 0 {
		return nil, gatewayerrors.NewInvalidPayload("time must be a non-negative number")
	}
	pose, ok := payload["pose"].(map[string]any)
	if !ok || len(pose) == 0 {
		return nil, gatewayerrors.NewInvalidPayload("pose must be a non-empty object of boneId to values")
	}
	channel := getString(payload, "channel")
	if channel == "" {
		channel = "rotation"
	}

	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		anim := findAnimation(project, animationID)
		if anim == nil {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("animation %s does not exist", animationID))
		}
		bones, _ := indexNodes(project.Hierarchy)
		boneIDs := make([]string, 0, len(pose))
		for boneID := range pose {
			if _, ok := bones[boneID]; !ok {
				return gatewayerrors.NewInvalidPayload(fmt.Sprintf("bone %s does not exist", boneID))
			}
			boneIDs = append(boneIDs, boneID)
		}
		sort.Strings(boneIDs)
		// drop any existing keyframe on the same (time, channel, bone) slot
		var kept []pipeline.Keyframe
		for _, kf := range anim.Keyframes {
			if kf.Time == t && kf.Channel == channel {
				if _, replaced := pose[kf.BoneID]; replaced {
					continue
				}
			}
			kept = append(kept, kf)
		}
		for _, boneID := range boneIDs {
			values := toFloatSlice(pose[boneID])
			if values == nil {
				return gatewayerrors.NewInvalidPayload(fmt.Sprintf("pose[%s] must be an array of numbers", boneID))
			}
			kept = append(kept, pipeline.Keyframe{
				Time:    t,
				Channel: channel,
				BoneID:  boneID,
				Values:  values,
			})
		}
		anim.Keyframes = kept
		sortKeyframes(anim)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return animationResult(project, animationID), nil
}

func toFloatSlice(raw any) []float64 {
	items, ok := raw.([]any)
	if !ok {
		if typed, isTyped := raw.([]float64); isTyped {
			return typed
		}
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
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

func sortKeyframes(anim *pipeline.Animation) {
	sort.SliceStable(anim.Keyframes, func(i, j int) bool {
		a, b := anim.Keyframes[i], anim.Keyframes[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.BoneID < b.BoneID
	})
}

func animationResult(project *pipeline.ProjectSnapshot, animationID string) map[string]any {
	out := map[string]any{
		"animationId": animationID,
		"revision":    project.Revision,
	}
	if anim := findAnimation(project, animationID); anim != nil {
		out["name"] = anim.Name
		out["length"] = anim.Length
		out["loop"] = anim.Loop
		out["keyframes"] = len(anim.Keyframes)
	}
	return out
}
