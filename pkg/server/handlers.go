/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sigee-min/bbmcp-sub006/pkg/dispatcher"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type toolCallParams struct {
	Name      string        `json:"name"`
	Arguments types.Payload `json:"arguments"`
}

// Handler serves the MCP transport endpoints.
type Handler struct {
	dispatcher *dispatcher.Dispatcher
}

// NewHandler builds the transport handler.
func NewHandler(d *dispatcher.Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// InitRouters registers the transport routes on engine. The /mcp group runs
// behind the supplied identity middleware chain; /healthz and /metrics are
// public.
func InitRouters(engine *gin.Engine, h *Handler, identity ...gin.HandlerFunc) {
	group := engine.Group("/mcp", identity...)
	{
		group.POST("", h.HandleRPC)
	}
	engine.GET("/healthz", h.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleRPC executes one JSON-RPC 2.0 call. Tool failures are not transport
// failures: they ride inside the result envelope with HTTP 200.
func (h *Handler) HandleRPC(c *gin.Context) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, rpcFail(nil, rpcParseError, "request body is not valid JSON"))
		return
	}
	if req.JSONRPC != "2.0" {
		c.JSON(http.StatusOK, rpcFail(req.ID, rpcInvalidRequest, `jsonrpc must be "2.0"`))
		return
	}

	switch req.Method {
	case "tools/list":
		c.JSON(http.StatusOK, rpcOK(req.ID, h.listTools()))
	case "tools/call":
		h.handleToolCall(c, req)
	default:
		c.JSON(http.StatusOK, rpcFail(req.ID, rpcMethodNotFound, "unknown method: "+req.Method))
	}
}

func (h *Handler) handleToolCall(c *gin.Context, req rpcRequest) {
	var params toolCallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			c.JSON(http.StatusOK, rpcFail(req.ID, rpcInvalidParams, "params must carry name and arguments"))
			return
		}
	}
	if params.Name == "" {
		c.JSON(http.StatusOK, rpcFail(req.ID, rpcInvalidParams, "params.name is required"))
		return
	}

	response := h.dispatcher.Handle(c.Request.Context(), params.Name, params.Arguments, mcpContextFrom(c))
	c.JSON(http.StatusOK, rpcOK(req.ID, response))
}

// listTools reports the full tool registry with per-tool mutability so
// clients can plan read-only flows.
func (h *Handler) listTools() gin.H {
	var tools []gin.H
	for _, name := range types.ToolNames() {
		meta, _ := types.LookupTool(name)
		tools = append(tools, gin.H{
			"name":            name,
			"mutating":        meta.Mutating,
			"requiresProject": meta.RequiresProject,
		})
	}
	return gin.H{"tools": tools}
}

func rpcOK(id json.RawMessage, result any) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func rpcFail(id json.RawMessage, code int, message string) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}
