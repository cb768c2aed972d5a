/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/types"
)

// Identity headers accepted on /mcp requests.
const (
	HeaderSessionID   = "X-Ashfox-Session-Id"
	HeaderAccountID   = "X-Ashfox-Account-Id"
	HeaderWorkspaceID = "X-Ashfox-Workspace-Id"
	HeaderSystemRoles = "X-Ashfox-System-Roles"
	HeaderAPIKey      = "X-Ashfox-Api-Key"
)

// Gin context keys set by the middleware chain.
const (
	ctxKeyMCPContext = "mcpContext"
	ctxKeyAPIKeyID   = "apiKeyId"
)

// Logger logs one line per request with method, path, status and latency.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		klog.Infof("%s %s status=%d latency=%s client=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond), c.ClientIP())
	}
}

// HashAPIKey computes the stored digest of a raw API key. With a secret the
// digest is an HMAC-SHA256, without one a plain SHA-256.
func HashAPIKey(secret, rawKey string) string {
	if secret == "" {
		sum := sha256.Sum256([]byte(rawKey))
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authorize resolves the caller's API key against the workspace repository.
// The raw key arrives in X-Ashfox-Api-Key or as an Authorization bearer
// token. A valid key pins the account and workspace of the request; the
// identity headers may narrow but never widen them. System roles come from
// the stored account record, never from the request headers.
func Authorize(repo repository.WorkspaceRepository, secret string, clockNow func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := c.GetHeader(HeaderAPIKey)
		if rawKey == "" {
			if bearer := c.GetHeader("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
				rawKey = strings.TrimPrefix(bearer, "Bearer ")
			}
		}
		if rawKey == "" {
			abortUnauthorized(c, "missing API key")
			return
		}

		key, err := repo.FindAPIKeyByHash(c.Request.Context(), HashAPIKey(secret, rawKey))
		if err != nil {
			klog.ErrorS(err, "api key lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "api key lookup failed"})
			return
		}
		now := clockNow()
		if key == nil || key.Revoked {
			abortUnauthorized(c, "unknown or revoked API key")
			return
		}
		if !key.ExpiresAt.IsZero() && !key.ExpiresAt.After(now) {
			abortUnauthorized(c, "expired API key")
			return
		}

		workspaceID := key.WorkspaceID
		if requested := c.GetHeader(HeaderWorkspaceID); requested != "" {
			if workspaceID != "" && requested != workspaceID {
				abortUnauthorized(c, "API key is not valid for the requested workspace")
				return
			}
			workspaceID = requested
		}

		account, err := repo.GetAccount(c.Request.Context(), key.AccountID)
		if err != nil {
			klog.ErrorS(err, "account lookup failed", "accountId", key.AccountID)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "account lookup failed"})
			return
		}
		var systemRoles []string
		if account != nil {
			systemRoles = account.SystemRoles
		}

		if err := repo.UpdateAPIKeyLastUsed(c.Request.Context(), key.KeyID, now); err != nil {
			klog.ErrorS(err, "failed to update api key last-used", "keyId", key.KeyID)
		}

		c.Set(ctxKeyAPIKeyID, key.KeyID)
		c.Set(ctxKeyMCPContext, types.MCPContext{
			SessionID:   c.GetHeader(HeaderSessionID),
			AccountID:   key.AccountID,
			SystemRoles: systemRoles,
			WorkspaceID: workspaceID,
			APIKeyID:    key.KeyID,
		})
		c.Next()
	}
}

// HeaderIdentity builds the MCP context from the identity headers alone.
// Used when API-key auth is disabled; the dispatcher still rejects calls
// without an account id.
func HeaderIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxKeyMCPContext, types.MCPContext{
			SessionID:   c.GetHeader(HeaderSessionID),
			AccountID:   c.GetHeader(HeaderAccountID),
			SystemRoles: splitRoles(c.GetHeader(HeaderSystemRoles)),
			WorkspaceID: c.GetHeader(HeaderWorkspaceID),
		})
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

func splitRoles(raw string) []string {
	var roles []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			roles = append(roles, part)
		}
	}
	return roles
}

func mcpContextFrom(c *gin.Context) types.MCPContext {
	if v, ok := c.Get(ctxKeyMCPContext); ok {
		if mcpCtx, ok := v.(types.MCPContext); ok {
			return mcpCtx
		}
	}
	return types.MCPContext{}
}
