/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package blob defines the bucketed blob store port. Export artifacts live in
// the exports bucket under "{tenantId}/{projectId}/{relativePath}" keys.
package blob

import (
	"context"
	"sort"
	"sync"
)

// ExportsBucket holds export artifacts.
const ExportsBucket = "exports"

// Pointer addresses one stored blob.
type Pointer struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// PutOptions are the optional attributes of a stored blob.
type PutOptions struct {
	CacheControl string
	Metadata     map[string]string
}

// Store is the blob port. Get returns nil data when the pointer is unknown.
type Store interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string, opts *PutOptions) (Pointer, error)
	Get(ctx context.Context, ptr Pointer) ([]byte, error)
	Delete(ctx context.Context, ptr Pointer) error
	ReadUtf8(ctx context.Context, ptr Pointer) (string, bool, error)
}

type memoryEntry struct {
	data        []byte
	contentType string
}

// MemoryStore is the in-memory Store used by tests and the memory pipeline mode.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[Pointer]memoryEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[Pointer]memoryEntry{}}
}

func (s *MemoryStore) Put(_ context.Context, bucket, key string,
	data []byte, contentType string, _ *PutOptions) (Pointer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ptr := Pointer{Bucket: bucket, Key: key}
	s.blobs[ptr] = memoryEntry{data: append([]byte(nil), data...), contentType: contentType}
	return ptr, nil
}

func (s *MemoryStore) Get(_ context.Context, ptr Pointer) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.blobs[ptr]; ok {
		return append([]byte(nil), entry.data...), nil
	}
	return nil, nil
}

func (s *MemoryStore) Delete(_ context.Context, ptr Pointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, ptr)
	return nil
}

func (s *MemoryStore) ReadUtf8(ctx context.Context, ptr Pointer) (string, bool, error) {
	data, err := s.Get(ctx, ptr)
	if err != nil || data == nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Keys lists stored keys for a bucket in ascending order. Test helper.
func (s *MemoryStore) Keys(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for ptr := range s.blobs {
		if ptr.Bucket == bucket {
			out = append(out, ptr.Key)
		}
	}
	sort.Strings(out)
	return out
}
