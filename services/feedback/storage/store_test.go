// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianPulse/services/feedback/datatypes"
)

func newTestStore(t *testing.T) *ReviewStore {
	t.Helper()
	store, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testRecord(createdAt int64) datatypes.ReviewRecord {
	return datatypes.ReviewRecord{
		Rating:      5,
		ReviewText:  "Great service, very happy!",
		AIResponse:  "Thanks!",
		AISummary:   "Happy customer",
		AIAction:    "None needed",
		AISentiment: 92,
		AITags:      []string{"Service"},
		LatencyMs:   120,
		CreatedAt:   createdAt,
	}
}

// =============================================================================
// Open Tests
// =============================================================================

func TestOpen_RequiresPathWhenPersistent(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_PersistentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(DefaultConfig(dir))
	require.NoError(t, err)

	id, err := store.Append(context.Background(), testRecord(time.Now().UnixMilli()))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopen and read the record back.
	store, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer store.Close()

	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
}

// =============================================================================
// Append Tests
// =============================================================================

func TestAppend_AssignsUniqueIDs(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UnixMilli()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id, err := store.Append(context.Background(), testRecord(now))
		require.NoError(t, err)
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "id %s assigned twice", id)
		seen[id] = true
	}
}

func TestAppend_PreservesRecordFields(t *testing.T) {
	store := newTestStore(t)
	want := testRecord(time.Now().UnixMilli())

	id, err := store.Append(context.Background(), want)
	require.NoError(t, err)

	records, err := store.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	want.ID = id
	assert.Equal(t, want, records[0])
}

func TestAppend_CancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Append(ctx, testRecord(time.Now().UnixMilli()))
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Recent Tests
// =============================================================================

func TestRecent_MostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UnixMilli()

	for i := 0; i < 5; i++ {
		rec := testRecord(base + int64(i)*1000)
		rec.ReviewText = fmt.Sprintf("review number %d", i)
		_, err := store.Append(context.Background(), rec)
		require.NoError(t, err)
	}

	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, fmt.Sprintf("review number %d", 4-i), rec.ReviewText)
	}
}

func TestRecent_HonorsLimit(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().UnixMilli()

	for i := 0; i < 8; i++ {
		_, err := store.Append(context.Background(), testRecord(base+int64(i)))
		require.NoError(t, err)
	}

	records, err := store.Recent(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRecent_EmptyStore(t *testing.T) {
	store := newTestStore(t)
	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// TestRecent_DecodesLegacyFieldNames verifies rows written before the
// field rename ("review", "timestamp") still decode into the current
// shape.
func TestRecent_DecodesLegacyFieldNames(t *testing.T) {
	store := newTestStore(t)
	createdAt := time.Now().Add(-time.Hour)

	legacy := fmt.Sprintf(`{
		"rating": 4,
		"review": "older row with legacy fields",
		"ai_response": "Thanks!",
		"ai_summary": "Fine",
		"ai_action": "None",
		"ai_sentiment": 70,
		"ai_tags": ["Quality"],
		"latency_ms": 80,
		"timestamp": %d
	}`, createdAt.UnixMilli())
	require.NoError(t, store.putRaw(createdAt, []byte(legacy)))

	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "older row with legacy fields", records[0].ReviewText)
	assert.Equal(t, createdAt.UnixMilli(), records[0].CreatedAt)
	assert.Equal(t, 4, records[0].Rating)
}

// TestRecent_CurrentFieldsWinOverLegacy verifies a row carrying both the
// old and new names keeps the new ones.
func TestRecent_CurrentFieldsWinOverLegacy(t *testing.T) {
	store := newTestStore(t)
	createdAt := time.Now()

	mixed := fmt.Sprintf(`{
		"rating": 5,
		"reviewText": "current name",
		"review": "legacy name",
		"createdAt": %d,
		"timestamp": 1
	}`, createdAt.UnixMilli())
	require.NoError(t, store.putRaw(createdAt, []byte(mixed)))

	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "current name", records[0].ReviewText)
	assert.Equal(t, createdAt.UnixMilli(), records[0].CreatedAt)
}
