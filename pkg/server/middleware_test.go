/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gotest.tools/assert"

	"github.com/sigee-min/bbmcp-sub006/pkg/repository"
	"github.com/sigee-min/bbmcp-sub006/pkg/repository/memory"
)

const testSecret = "test-secret"

var authNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestHashAPIKey(t *testing.T) {
	plain := HashAPIKey("", "raw-key")
	keyed := HashAPIKey(testSecret, "raw-key")
	assert.Equal(t, len(plain), 64)
	assert.Equal(t, len(keyed), 64)
	assert.Assert(t, plain != keyed)

	// Stable for equal inputs, distinct across keys.
	assert.Equal(t, HashAPIKey(testSecret, "raw-key"), keyed)
	assert.Assert(t, HashAPIKey(testSecret, "other-key") != keyed)
}

func newAuthRouter(t *testing.T) (*gin.Engine, *memory.WorkspaceRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := memory.NewWorkspaceRepository()

	router := gin.New()
	router.POST("/probe", Authorize(repo, testSecret, func() time.Time { return authNow }), func(c *gin.Context) {
		mcpCtx := mcpContextFrom(c)
		c.JSON(http.StatusOK, gin.H{
			"accountId":   mcpCtx.AccountID,
			"workspaceId": mcpCtx.WorkspaceID,
			"apiKeyId":    mcpCtx.APIKeyID,
			"roles":       mcpCtx.SystemRoles,
		})
	})
	return router, repo
}

func createKey(t *testing.T, repo *memory.WorkspaceRepository, key repository.APIKey, rawKey string) {
	t.Helper()
	key.Hash = HashAPIKey(testSecret, rawKey)
	assert.NilError(t, repo.CreateAPIKey(context.Background(), &key))
}

func probe(t *testing.T, router *gin.Engine, headers map[string]string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/probe", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec.Code, decoded
}

func TestAuthorizeAcceptsValidKey(t *testing.T) {
	router, repo := newAuthRouter(t)
	createKey(t, repo, repository.APIKey{
		KeyID: "key-1", WorkspaceID: "ws-1", AccountID: "acct-1",
		ExpiresAt: authNow.Add(time.Hour)}, "raw-key")

	status, body := probe(t, router, map[string]string{HeaderAPIKey: "raw-key"})
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, body["accountId"], "acct-1")
	assert.Equal(t, body["workspaceId"], "ws-1")
	assert.Equal(t, body["apiKeyId"], "key-1")

	// The key also arrives as a bearer token.
	status, _ = probe(t, router, map[string]string{"Authorization": "Bearer raw-key"})
	assert.Equal(t, status, http.StatusOK)

	keys, err := repo.ListAPIKeys(context.Background(), "ws-1")
	assert.NilError(t, err)
	assert.Equal(t, keys[0].LastUsedAt, authNow)
}

func TestAuthorizeRejectsMissingOrUnknownKey(t *testing.T) {
	router, _ := newAuthRouter(t)

	status, _ := probe(t, router, nil)
	assert.Equal(t, status, http.StatusUnauthorized)

	status, _ = probe(t, router, map[string]string{HeaderAPIKey: "never-issued"})
	assert.Equal(t, status, http.StatusUnauthorized)
}

func TestAuthorizeRejectsRevokedKey(t *testing.T) {
	router, repo := newAuthRouter(t)
	createKey(t, repo, repository.APIKey{
		KeyID: "key-1", WorkspaceID: "ws-1", AccountID: "acct-1",
		ExpiresAt: authNow.Add(time.Hour)}, "raw-key")
	assert.NilError(t, repo.RevokeAPIKey(context.Background(), "key-1"))

	status, _ := probe(t, router, map[string]string{HeaderAPIKey: "raw-key"})
	assert.Equal(t, status, http.StatusUnauthorized)
}

func TestAuthorizeRejectsExpiredKey(t *testing.T) {
	router, repo := newAuthRouter(t)
	createKey(t, repo, repository.APIKey{
		KeyID: "key-1", WorkspaceID: "ws-1", AccountID: "acct-1",
		ExpiresAt: authNow.Add(-time.Minute)}, "raw-key")

	status, _ := probe(t, router, map[string]string{HeaderAPIKey: "raw-key"})
	assert.Equal(t, status, http.StatusUnauthorized)
}

func TestAuthorizeWorkspacePinning(t *testing.T) {
	router, repo := newAuthRouter(t)
	createKey(t, repo, repository.APIKey{
		KeyID: "key-pinned", WorkspaceID: "ws-1", AccountID: "acct-1",
		ExpiresAt: authNow.Add(time.Hour)}, "pinned-key")
	createKey(t, repo, repository.APIKey{
		KeyID: "key-open", AccountID: "acct-2",
		ExpiresAt: authNow.Add(time.Hour)}, "open-key")

	// A pinned key refuses a foreign workspace header.
	status, _ := probe(t, router, map[string]string{
		HeaderAPIKey: "pinned-key", HeaderWorkspaceID: "ws-2"})
	assert.Equal(t, status, http.StatusUnauthorized)

	// Restating the pinned workspace is fine.
	status, body := probe(t, router, map[string]string{
		HeaderAPIKey: "pinned-key", HeaderWorkspaceID: "ws-1"})
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, body["workspaceId"], "ws-1")

	// An unpinned key narrows to the requested workspace.
	status, body = probe(t, router, map[string]string{
		HeaderAPIKey: "open-key", HeaderWorkspaceID: "ws-9"})
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, body["workspaceId"], "ws-9")
	assert.Equal(t, body["accountId"], "acct-2")
}

func TestAuthorizeSystemRolesComeFromAccountRecord(t *testing.T) {
	router, repo := newAuthRouter(t)
	assert.NilError(t, repo.UpsertAccount(context.Background(), &repository.Account{
		AccountID: "acct-ops", SystemRoles: []string{"system_admin"}}))
	createKey(t, repo, repository.APIKey{
		KeyID: "key-ops", WorkspaceID: "ws-1", AccountID: "acct-ops",
		ExpiresAt: authNow.Add(time.Hour)}, "ops-key")
	createKey(t, repo, repository.APIKey{
		KeyID: "key-user", WorkspaceID: "ws-1", AccountID: "acct-user",
		ExpiresAt: authNow.Add(time.Hour)}, "user-key")

	// The stored account roles flow into the request context.
	status, body := probe(t, router, map[string]string{HeaderAPIKey: "ops-key"})
	assert.Equal(t, status, http.StatusOK)
	roles := body["roles"].([]any)
	assert.Equal(t, len(roles), 1)
	assert.Equal(t, roles[0], "system_admin")

	// A header-claimed role is ignored for key holders.
	status, body = probe(t, router, map[string]string{
		HeaderAPIKey: "user-key", HeaderSystemRoles: "system_admin"})
	assert.Equal(t, status, http.StatusOK)
	assert.Assert(t, body["roles"] == nil)
}

func TestHeaderIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/probe", HeaderIdentity(), func(c *gin.Context) {
		mcpCtx := mcpContextFrom(c)
		c.JSON(http.StatusOK, gin.H{
			"accountId": mcpCtx.AccountID,
			"roles":     mcpCtx.SystemRoles,
		})
	})

	status, body := probe(t, router, map[string]string{
		HeaderAccountID:   "acct-1",
		HeaderSystemRoles: " system_admin , cs_admin ,",
	})
	assert.Equal(t, status, http.StatusOK)
	assert.Equal(t, body["accountId"], "acct-1")
	roles := body["roles"].([]any)
	assert.Equal(t, len(roles), 2)
	assert.Equal(t, roles[0], "system_admin")
	assert.Equal(t, roles[1], "cs_admin")
}
