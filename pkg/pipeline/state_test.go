/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pipeline

import (
	"encoding/json"
	"fmt"
	"testing"

	"gotest.tools/assert"

	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

func TestDecodeStateRejectsForeignSchema(t *testing.T) {
	state := newPipelineState()
	state.seed()
	state.SchemaVersion = SchemaVersion + 1
	payload, err := state.encode()
	assert.NilError(t, err)

	decoded, hydrated := decodeState(payload)
	assert.Equal(t, hydrated, false)
	assert.Equal(t, len(decoded.Projects), 0)
}

func TestDecodeStateSkipsMalformedEntries(t *testing.T) {
	raw := []byte(fmt.Sprintf(`{
		"schemaVersion": %d,
		"nextJobId": 3,
		"nextSeq": 2,
		"projects": {
			"good": {"projectId": "good", "name": "Good", "revision": 1},
			"bad": 42
		},
		"jobs": {
			"job-1": {"id": "job-1", "projectId": "good", "kind": "gltf.convert", "status": "queued"},
			"job-2": "nonsense"
		},
		"queuedJobIds": ["job-1", "job-2", "job-99"],
		"projectEvents": {}
	}`, SchemaVersion))

	state, hydrated := decodeState(raw)
	assert.Equal(t, hydrated, true)
	assert.Equal(t, len(state.Projects), 1)
	assert.Assert(t, state.Projects["good"] != nil)
	assert.Equal(t, len(state.Jobs), 1)
	// Queued ids referencing dropped or unknown jobs are filtered.
	assert.Equal(t, len(state.QueuedJobIDs), 1)
	assert.Equal(t, state.QueuedJobIDs[0], "job-1")
}

func TestDecodeStateClampsCounters(t *testing.T) {
	state := newPipelineState()
	state.Jobs["job-9"] = &Job{ID: "job-9", ProjectID: "p", Kind: types.JobKindGltfConvert, Status: types.JobStatusCompleted}
	state.ProjectEvents["p"] = []*ProjectEvent{{Seq: 41, Event: EventProjectSnapshot, Data: &ProjectSnapshot{ProjectID: "p"}}}
	state.NextJobID = 1
	state.NextSeq = 1
	payload, err := state.encode()
	assert.NilError(t, err)

	decoded, hydrated := decodeState(payload)
	assert.Equal(t, hydrated, true)
	assert.Equal(t, decoded.NextJobID, int64(10))
	assert.Equal(t, decoded.NextSeq, int64(42))
}

func TestEncodeIsDeterministic(t *testing.T) {
	state := newPipelineState()
	state.seed()
	first, err := state.encode()
	assert.NilError(t, err)
	second, err := state.encode()
	assert.NilError(t, err)
	assert.Equal(t, contentHash(first), contentHash(second))
}

func TestJournalTrimsToLimit(t *testing.T) {
	state := newPipelineState()
	snapshot := &ProjectSnapshot{ProjectID: "p", Name: "p", Revision: 1}
	state.Projects["p"] = snapshot
	for i := 0; i < journalLimit+10; i++ {
		state.appendEvent("p", snapshot)
	}
	events := state.ProjectEvents["p"]
	assert.Equal(t, len(events), journalLimit)
	// The oldest retained entry moved forward by the overflow.
	assert.Equal(t, events[0].Seq, int64(11))
	assert.Equal(t, events[len(events)-1].Seq, int64(journalLimit+10))
}

func TestRefreshActiveJobPicksEarliest(t *testing.T) {
	state := newPipelineState()
	state.seed()
	project := state.Projects["default-project"]

	state.Jobs["job-2"] = &Job{ID: "job-2", ProjectID: "default-project",
		Kind: types.JobKindGltfConvert, Status: types.JobStatusQueued}
	state.Jobs["job-1"] = &Job{ID: "job-1", ProjectID: "default-project",
		Kind: types.JobKindGltfConvert, Status: types.JobStatusRunning}
	state.refreshActiveJob("default-project")
	assert.Assert(t, project.ActiveJob != nil)
	assert.Equal(t, project.ActiveJob.ID, "job-1")

	state.Jobs["job-1"].Status = types.JobStatusCompleted
	state.refreshActiveJob("default-project")
	assert.Equal(t, project.ActiveJob.ID, "job-2")

	state.Jobs["job-2"].Status = types.JobStatusFailed
	state.refreshActiveJob("default-project")
	assert.Assert(t, project.ActiveJob == nil)
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	original := sampleProjects()[0]
	clone := original.Clone()
	clone.Hierarchy[0].Children[0].Name = "mutated"
	clone.Textures[0].Width = 999

	assert.Equal(t, original.Hierarchy[0].Children[0].Name, "body")
	assert.Equal(t, original.Textures[0].Width, 16)

	var roundTrip ProjectSnapshot
	payload, err := json.Marshal(original)
	assert.NilError(t, err)
	assert.NilError(t, json.Unmarshal(payload, &roundTrip))
	assert.Equal(t, roundTrip.Stats.Cubes, 1)
	assert.Equal(t, roundTrip.HasGeometry, true)
}
