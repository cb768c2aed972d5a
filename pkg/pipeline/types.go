/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package pipeline implements the durable native pipeline store: per-workspace
// project state, a FIFO job queue with retry and dead-letter handling, and a
// per-project snapshot event journal. One state record per workspace lives in
// the scoped KV; writers serialize through a distributed lock record stored in
// the same KV.
package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// NodeType distinguishes hierarchy members.
type NodeType string

const (
	NodeBone NodeType = "bone"
	NodeCube NodeType = "cube"
)

// HierarchyNode is one member of the project's bone/cube tree.
type HierarchyNode struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Type     NodeType         `json:"type"`
	Size     []float64        `json:"size,omitempty"`
	Children []*HierarchyNode `json:"children,omitempty"`
}

// Clone deep-copies the node and its subtree.
func (n *HierarchyNode) Clone() *HierarchyNode {
	if n == nil {
		return nil
	}
	out := *n
	out.Size = append([]float64(nil), n.Size...)
	out.Children = nil
	for _, child := range n.Children {
		out.Children = append(out.Children, child.Clone())
	}
	return &out
}

// Keyframe is one sampled pose on an animation channel.
type Keyframe struct {
	Time    float64   `json:"time"`
	Channel string    `json:"channel"`
	BoneID  string    `json:"boneId"`
	Values  []float64 `json:"values,omitempty"`
	Trigger string    `json:"trigger,omitempty"`
}

// Animation is one clip with its keyframes.
type Animation struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Length    float64    `json:"length"`
	Loop      bool       `json:"loop"`
	Keyframes []Keyframe `json:"keyframes,omitempty"`
}

// Texture is one texture slot with its declared dimensions.
type Texture struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Source string `json:"source,omitempty"`
}

// FaceAssignment records one painted or textured face.
type FaceAssignment struct {
	CubeID    string    `json:"cubeId"`
	Face      string    `json:"face"`
	TextureID string    `json:"textureId,omitempty"`
	Color     string    `json:"color,omitempty"`
	UV        []float64 `json:"uv,omitempty"`
}

// Stats mirrors the hierarchy node counts.
type Stats struct {
	Bones int `json:"bones"`
	Cubes int `json:"cubes"`
}

// ActiveJob marks the job currently targeting a project, present only while
// some job for the project is queued or running.
type ActiveJob struct {
	ID     string        `json:"id"`
	Status JobStatusKind `json:"status"`
}

// ProjectSnapshot is the per-project state carried in the pipeline record and
// in journal events. Stats stays consistent with the hierarchy counts.
type ProjectSnapshot struct {
	ProjectID         string           `json:"projectId"`
	Name              string           `json:"name"`
	Revision          int64            `json:"revision"`
	HasGeometry       bool             `json:"hasGeometry"`
	FocusAnchor       []float64        `json:"focusAnchor,omitempty"`
	Hierarchy         []*HierarchyNode `json:"hierarchy"`
	Animations        []*Animation     `json:"animations"`
	Textures          []*Texture       `json:"textures,omitempty"`
	Faces             []FaceAssignment `json:"faces,omitempty"`
	TextureResolution int              `json:"textureResolution,omitempty"`
	Stats             Stats            `json:"stats"`
	ActiveJob         *ActiveJob       `json:"activeJob,omitempty"`
}

// Clone deep-copies the snapshot.
func (p *ProjectSnapshot) Clone() *ProjectSnapshot {
	if p == nil {
		return nil
	}
	out := *p
	out.FocusAnchor = append([]float64(nil), p.FocusAnchor...)
	out.Hierarchy = nil
	for _, node := range p.Hierarchy {
		out.Hierarchy = append(out.Hierarchy, node.Clone())
	}
	out.Animations = nil
	for _, anim := range p.Animations {
		animCopy := *anim
		animCopy.Keyframes = append([]Keyframe(nil), anim.Keyframes...)
		out.Animations = append(out.Animations, &animCopy)
	}
	out.Textures = nil
	for _, tex := range p.Textures {
		texCopy := *tex
		out.Textures = append(out.Textures, &texCopy)
	}
	out.Faces = append([]FaceAssignment(nil), p.Faces...)
	if p.ActiveJob != nil {
		activeCopy := *p.ActiveJob
		out.ActiveJob = &activeCopy
	}
	return &out
}

// RecountStats recomputes Stats and HasGeometry from the hierarchy.
func (p *ProjectSnapshot) RecountStats() {
	var bones, cubes int
	var walk func(nodes []*HierarchyNode)
	walk = func(nodes []*HierarchyNode) {
		for _, node := range nodes {
			switch node.Type {
			case NodeBone:
				bones++
			case NodeCube:
				cubes++
			}
			walk(node.Children)
		}
	}
	walk(p.Hierarchy)
	p.Stats = Stats{Bones: bones, Cubes: cubes}
	p.HasGeometry = cubes > 0
}

// JobStatusKind is the lifecycle state of a job, one of the types.JobStatus*
// constants.
type JobStatusKind = string

// Job is one queued or historical unit of work.
type Job struct {
	ID             string        `json:"id"`
	ProjectID      string        `json:"projectId"`
	Kind           string        `json:"kind"`
	Status         JobStatusKind `json:"status"`
	AttemptCount   int           `json:"attemptCount"`
	MaxAttempts    int           `json:"maxAttempts"`
	LeaseMs        int64         `json:"leaseMs"`
	CreatedAt      time.Time     `json:"createdAt"`
	StartedAt      *time.Time    `json:"startedAt,omitempty"`
	LeaseExpiresAt *time.Time    `json:"leaseExpiresAt,omitempty"`
	NextRetryAt    *time.Time    `json:"nextRetryAt,omitempty"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
	WorkerID       string        `json:"workerId,omitempty"`
	Error          string        `json:"error,omitempty"`
	DeadLetter     bool          `json:"deadLetter,omitempty"`
	Payload        types.Payload `json:"payload,omitempty"`
	Result         types.Payload `json:"result,omitempty"`
}

// Clone deep-copies the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.StartedAt = cloneTime(j.StartedAt)
	out.LeaseExpiresAt = cloneTime(j.LeaseExpiresAt)
	out.NextRetryAt = cloneTime(j.NextRetryAt)
	out.CompletedAt = cloneTime(j.CompletedAt)
	out.Payload = clonePayload(j.Payload)
	out.Result = clonePayload(j.Result)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}

func clonePayload(p types.Payload) types.Payload {
	if p == nil {
		return nil
	}
	out := make(types.Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// jobNumber extracts n from "job-<n>"; ok is false for foreign id shapes.
func jobNumber(id string) (int64, bool) {
	rest, found := strings.CutPrefix(id, "job-")
	if !found {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func formatJobID(n int64) string {
	return fmt.Sprintf("job-%d", n)
}

// EventProjectSnapshot is the only journal event kind.
const EventProjectSnapshot = "project_snapshot"

// ProjectEvent is one journal entry; seq is strictly increasing per project.
type ProjectEvent struct {
	Seq   int64            `json:"seq"`
	Event string           `json:"event"`
	Data  *ProjectSnapshot `json:"data"`
}

// SubmitJobInput carries the parameters of SubmitJob.
type SubmitJobInput struct {
	ProjectID   string
	Kind        string
	Payload     types.Payload
	MaxAttempts int
	LeaseMs     int64
}
