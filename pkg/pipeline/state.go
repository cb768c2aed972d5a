/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// SchemaVersion is the persisted state layout version. Records carrying a
// different version are ignored and re-seeded.
const SchemaVersion = 1

// journalLimit caps the per-project event journal; older entries are dropped
// once it is exceeded.
const journalLimit = 256

type pipelineState struct {
	SchemaVersion int                         `json:"schemaVersion"`
	NextJobID     int64                       `json:"nextJobId"`
	NextSeq       int64                       `json:"nextSeq"`
	Projects      map[string]*ProjectSnapshot `json:"projects"`
	Jobs          map[string]*Job             `json:"jobs"`
	QueuedJobIDs  []string                    `json:"queuedJobIds"`
	ProjectEvents map[string][]*ProjectEvent  `json:"projectEvents"`
}

func newPipelineState() *pipelineState {
	return &pipelineState{
		SchemaVersion: SchemaVersion,
		NextJobID:     1,
		NextSeq:       1,
		Projects:      map[string]*ProjectSnapshot{},
		Jobs:          map[string]*Job{},
		QueuedJobIDs:  []string{},
		ProjectEvents: map[string][]*ProjectEvent{},
	}
}

// rawPipelineState defers entry decoding so one malformed entry cannot poison
// the whole record.
type rawPipelineState struct {
	SchemaVersion int                          `json:"schemaVersion"`
	NextJobID     int64                        `json:"nextJobId"`
	NextSeq       int64                        `json:"nextSeq"`
	Projects      map[string]json.RawMessage   `json:"projects"`
	Jobs          map[string]json.RawMessage   `json:"jobs"`
	QueuedJobIDs  []string                     `json:"queuedJobIds"`
	ProjectEvents map[string][]json.RawMessage `json:"projectEvents"`
}

// decodeState hydrates a persisted state value. Unknown or malformed entries
// are skipped per-entry; the id counters are clamped to max(existing)+1 so a
// truncated counter can never mint duplicate ids. A nil or version-mismatched
// value yields a fresh empty state and false.
func decodeState(data []byte) (*pipelineState, bool) {
	if len(data) == 0 {
		return newPipelineState(), false
	}
	var raw rawPipelineState
	if err := json.Unmarshal(data, &raw); err != nil {
		klog.ErrorS(err, "failed to decode pipeline state, reseeding")
		return newPipelineState(), false
	}
	if raw.SchemaVersion != SchemaVersion {
		klog.Infof("ignoring pipeline state with schema version %d", raw.SchemaVersion)
		return newPipelineState(), false
	}

	state := newPipelineState()
	state.NextJobID = raw.NextJobID
	state.NextSeq = raw.NextSeq

	for projectID, entry := range raw.Projects {
		var snapshot ProjectSnapshot
		if err := json.Unmarshal(entry, &snapshot); err != nil {
			klog.ErrorS(err, "skipping malformed project entry", "projectId", projectID)
			continue
		}
		state.Projects[projectID] = &snapshot
	}
	for jobID, entry := range raw.Jobs {
		var job Job
		if err := json.Unmarshal(entry, &job); err != nil {
			klog.ErrorS(err, "skipping malformed job entry", "jobId", jobID)
			continue
		}
		state.Jobs[jobID] = &job
	}
	for _, jobID := range raw.QueuedJobIDs {
		if _, ok := state.Jobs[jobID]; ok {
			state.QueuedJobIDs = append(state.QueuedJobIDs, jobID)
		}
	}
	for projectID, entries := range raw.ProjectEvents {
		var events []*ProjectEvent
		for _, entry := range entries {
			var event ProjectEvent
			if err := json.Unmarshal(entry, &event); err != nil {
				klog.ErrorS(err, "skipping malformed journal entry", "projectId", projectID)
				continue
			}
			events = append(events, &event)
		}
		if len(events) > 0 {
			state.ProjectEvents[projectID] = events
		}
	}

	state.clampCounters()
	return state, true
}

// clampCounters raises the counters above every id already in use.
func (s *pipelineState) clampCounters() {
	var maxJob int64
	for jobID := range s.Jobs {
		if n, ok := jobNumber(jobID); ok && n > maxJob {
			maxJob = n
		}
	}
	if s.NextJobID <= maxJob {
		s.NextJobID = maxJob + 1
	}
	if s.NextJobID < 1 {
		s.NextJobID = 1
	}

	var maxSeq int64
	for _, events := range s.ProjectEvents {
		for _, event := range events {
			if event.Seq > maxSeq {
				maxSeq = event.Seq
			}
		}
	}
	if s.NextSeq <= maxSeq {
		s.NextSeq = maxSeq + 1
	}
	if s.NextSeq < 1 {
		s.NextSeq = 1
	}
}

// encode serializes the state deterministically. Map keys are emitted in
// sorted order by encoding/json, which keeps the content hash stable.
func (s *pipelineState) encode() ([]byte, error) {
	return json.Marshal(s)
}

// contentHash is the optimistic-concurrency token of a serialized state.
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// appendEvent journals a snapshot for the project and bumps the sequence.
// The journal keeps at most journalLimit newest entries per project.
func (s *pipelineState) appendEvent(projectID string, snapshot *ProjectSnapshot) {
	event := &ProjectEvent{
		Seq:   s.NextSeq,
		Event: EventProjectSnapshot,
		Data:  snapshot.Clone(),
	}
	s.NextSeq++
	events := append(s.ProjectEvents[projectID], event)
	if len(events) > journalLimit {
		events = events[len(events)-journalLimit:]
	}
	s.ProjectEvents[projectID] = events
}

// refreshActiveJob recomputes the activeJob marker for the project.
func (s *pipelineState) refreshActiveJob(projectID string) {
	project, ok := s.Projects[projectID]
	if !ok {
		return
	}
	project.ActiveJob = nil
	var candidates []*Job
	for _, job := range s.Jobs {
		if job.ProjectID != projectID {
			continue
		}
		if job.Status == types.JobStatusQueued || job.Status == types.JobStatusRunning {
			candidates = append(candidates, job)
		}
	}
	if len(candidates) == 0 {
		return
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	pick := candidates[0]
	project.ActiveJob = &ActiveJob{ID: pick.ID, Status: pick.Status}
}

// sampleProjects are seeded into an empty workspace on first access so the
// conversion path has geometry to exercise.
func sampleProjects() []*ProjectSnapshot {
	build := func(projectID, name string) *ProjectSnapshot {
		snapshot := &ProjectSnapshot{
			ProjectID: projectID,
			Name:      name,
			Revision:  1,
			Hierarchy: []*HierarchyNode{
				{
					ID:   "root",
					Name: "root",
					Type: NodeBone,
					Children: []*HierarchyNode{
						{ID: "body", Name: "body", Type: NodeCube, Size: []float64{1, 1, 1}},
					},
				},
			},
			Animations: []*Animation{
				{ID: "idle", Name: "idle", Length: 1.0, Loop: true},
			},
			Textures: []*Texture{
				{ID: "base", Name: "base", Width: 16, Height: 16, Source: "builtin://base"},
			},
		}
		snapshot.RecountStats()
		return snapshot
	}
	return []*ProjectSnapshot{
		build("default-project", "Default Project"),
		build("project-a", "Project A"),
	}
}

// seed populates an empty state with the built-in sample projects and one
// snapshot event each.
func (s *pipelineState) seed() {
	for _, project := range sampleProjects() {
		s.Projects[project.ProjectID] = project
		s.appendEvent(project.ProjectID, project)
	}
}
