/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ptr, err := store.Put(ctx, ExportsBucket, "t/p/p.gltf", []byte(`{"format":"gltf"}`), "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, ExportsBucket, ptr.Bucket)
	assert.Equal(t, "t/p/p.gltf", ptr.Key)

	data, err := store.Get(ctx, ptr)
	require.NoError(t, err)
	assert.Equal(t, `{"format":"gltf"}`, string(data))

	// Unknown pointers yield nil data, not an error.
	missing, err := store.Get(ctx, Pointer{Bucket: ExportsBucket, Key: "nope"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	text, found, err := store.ReadUtf8(ctx, ptr)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"format":"gltf"}`, text)

	_, found, err = store.ReadUtf8(ctx, Pointer{Bucket: ExportsBucket, Key: "nope"})
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Delete(ctx, ptr))
	gone, err := store.Get(ctx, ptr)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	payload := []byte("abc")
	ptr, err := store.Put(ctx, ExportsBucket, "k", payload, "text/plain", nil)
	require.NoError(t, err)
	payload[0] = 'X'

	data, err := store.Get(ctx, ptr)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
	assert.Equal(t, []string{"k"}, store.Keys(ExportsBucket))
}
