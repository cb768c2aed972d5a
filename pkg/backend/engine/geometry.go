/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package engine

import (
	"context"
	"fmt"

	gatewayerrors "github.com/sigee-min/bbmcp-sub006/pkg/errors"
	"github.com/sigee-min/bbmcp-sub006/pkg/pipeline"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// indexNodes flattens the hierarchy into bone and cube lookup maps.
func indexNodes(hierarchy []*pipeline.HierarchyNode) (bones, cubes map[string]*pipeline.HierarchyNode) {
	bones = map[string]*pipeline.HierarchyNode{}
	cubes = map[string]*pipeline.HierarchyNode{}
	var walk func(nodes []*pipeline.HierarchyNode)
	walk = func(nodes []*pipeline.HierarchyNode) {
		for _, node := range nodes {
			switch node.Type {
			case pipeline.NodeBone:
				bones[node.ID] = node
			case pipeline.NodeCube:
				cubes[node.ID] = node
			}
			walk(node.Children)
		}
	}
	walk(hierarchy)
	return bones, cubes
}

// findNode returns the node with id and its parent (nil parent at top level).
func findNode(hierarchy []*pipeline.HierarchyNode, id string) (node, parent *pipeline.HierarchyNode) {
	var walk func(nodes []*pipeline.HierarchyNode, from *pipeline.HierarchyNode) (*pipeline.HierarchyNode, *pipeline.HierarchyNode)
	walk = func(nodes []*pipeline.HierarchyNode, from *pipeline.HierarchyNode) (*pipeline.HierarchyNode, *pipeline.HierarchyNode) {
		for _, n := range nodes {
			if n.ID == id {
				return n, from
			}
			if found, foundParent := walk(n.Children, n); found != nil {
				return found, foundParent
			}
		}
		return nil, nil
	}
	return walk(hierarchy, nil)
}

// isDescendant reports whether candidate sits in root's subtree.
func isDescendant(root *pipeline.HierarchyNode, candidateID string) bool {
	for _, child := range root.Children {
		if child.ID == candidateID || isDescendant(child, candidateID) {
			return true
		}
	}
	return false
}

func detachNode(project *pipeline.ProjectSnapshot, node, parent *pipeline.HierarchyNode) {
	siblings := project.Hierarchy
	if parent != nil {
		siblings = parent.Children
	}
	for i, n := range siblings {
		if n.ID == node.ID {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if parent != nil {
		parent.Children = siblings
	} else {
		project.Hierarchy = siblings
	}
}

// addNode creates a bone or cube. Duplicate ids, self-parenting and
// non-bone parents are rejected.
func (e *Engine) addNode(ctx context.Context, payload types.Payload, session types.SessionContext, nodeType pipeline.NodeType) (any, error) {
	id := getString(payload, "id")
	if id == "" {
		return nil, gatewayerrors.NewInvalidPayload("id is required")
	}
	name := getString(payload, "name")
	if name == "" {
		name = id
	}
	parentID := getString(payload, "parentId")
	if parentID == id {
		return nil, gatewayerrors.NewInvalidPayload(fmt.Sprintf("node %s cannot be its own parent", id))
	}

	node := &pipeline.HierarchyNode{ID: id, Name: name, Type: nodeType}
	if nodeType == pipeline.NodeCube {
		if size := getFloatSlice(payload, "size"); len(size) == 3 {
			node.Size = size
		} else {
			node.Size = []float64{1, 1, 1}
		}
	}

	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		if existing, _ := findNode(project.Hierarchy, id); existing != nil {
			return gatewayerrors.NewInvalidPayload(fmt.Sprintf("node id %s already exists", id))
		}
		if parentID == "" {
			project.Hierarchy = append(project.Hierarchy, node)
			return nil
		}
		parent, _ := findNode(project.Hierarchy, parentID)
		if parent == nil {
			return gatewayerrors.NewInvalidPayload(fmt.Sprintf("parent %s does not exist", parentID))
		}
		if parent.Type != pipeline.NodeBone {
			return gatewayerrors.NewInvalidPayload(fmt.Sprintf("parent %s is not a bone", parentID))
		}
		parent.Children = append(parent.Children, node)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodeResult(project, id), nil
}

// updateNode renames, resizes or reparents a node. Reparenting under the
// node's own subtree is rejected.
func (e *Engine) updateNode(ctx context.Context, payload types.Payload, session types.SessionContext, nodeType pipeline.NodeType) (any, error) {
	id := getString(payload, "id")
	if id == "" {
		return nil, gatewayerrors.NewInvalidPayload("id is required")
	}

	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		node, parent := findNode(project.Hierarchy, id)
		if node == nil || node.Type != nodeType {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("%s %s does not exist", nodeType, id))
		}
		if name := getString(payload, "name"); name != "" {
			node.Name = name
		}
		if nodeType == pipeline.NodeCube {
			if size := getFloatSlice(payload, "size"); len(size) == 3 {
				node.Size = size
			}
		}
		newParentID, moves := payload["parentId"].(string)
		if !moves {
			return nil
		}
		if newParentID == id {
			return gatewayerrors.NewInvalidPayload(fmt.Sprintf("node %s cannot be its own parent", id))
		}
		if isDescendant(node, newParentID) {
			return gatewayerrors.NewInvalidPayload(fmt.Sprintf("node %s cannot move under its own subtree", id))
		}
		var newParent *pipeline.HierarchyNode
		if newParentID != "" {
			newParent, _ = findNode(project.Hierarchy, newParentID)
			if newParent == nil {
				return gatewayerrors.NewInvalidPayload(fmt.Sprintf("parent %s does not exist", newParentID))
			}
			if newParent.Type != pipeline.NodeBone {
				return gatewayerrors.NewInvalidPayload(fmt.Sprintf("parent %s is not a bone", newParentID))
			}
		}
		detachNode(project, node, parent)
		if newParent != nil {
			newParent.Children = append(newParent.Children, node)
		} else {
			project.Hierarchy = append(project.Hierarchy, node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodeResult(project, id), nil
}

// deleteNode removes a node and its subtree, plus any face assignments that
// referenced removed cubes.
func (e *Engine) deleteNode(ctx context.Context, payload types.Payload, session types.SessionContext, nodeType pipeline.NodeType) (any, error) {
	id := getString(payload, "id")
	if id == "" {
		return nil, gatewayerrors.NewInvalidPayload("id is required")
	}

	project, err := e.store.UpdateProject(ctx, session.WorkspaceID, session.ProjectID, func(project *pipeline.ProjectSnapshot) error {
		node, parent := findNode(project.Hierarchy, id)
		if node == nil || node.Type != nodeType {
			return gatewayerrors.NewInvalidState(fmt.Sprintf("%s %s does not exist", nodeType, id))
		}
		detachNode(project, node, parent)

		_, cubes := indexNodes(project.Hierarchy)
		var kept []pipeline.FaceAssignment
		for _, face := range project.Faces {
			if _, ok := cubes[face.CubeID]; ok {
				kept = append(kept, face)
			}
		}
		project.Faces = kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"deleted":  id,
		"revision": project.Revision,
		"stats":    project.Stats,
	}, nil
}

func nodeResult(project *pipeline.ProjectSnapshot, id string) map[string]any {
	node, parent := findNode(project.Hierarchy, id)
	out := map[string]any{
		"id":       id,
		"revision": project.Revision,
		"stats":    project.Stats,
	}
	if node != nil {
		out["name"] = node.Name
		out["type"] = node.Type
	}
	if parent != nil {
		out["parentId"] = parent.ID
	}
	return out
}
