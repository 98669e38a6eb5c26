package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"doseclock/internal/cache"
)

// Integration tests against a live Redis. Skipped unless TEST_REDIS_URL is
// set, e.g. TEST_REDIS_URL=redis://localhost:6379/15.
func newTestCache(t *testing.T) (cache.ScheduleCache, *goredis.Client) {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse TEST_REDIS_URL: %v", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return cache.NewScheduleCache(client), client
}

// overCapEntries builds cap+extra entries with strictly increasing instants.
func overCapEntries(base time.Time, extra int) []cache.DoseEntry {
	entries := make([]cache.DoseEntry, cache.ScheduleCacheCap+extra)
	for i := range entries {
		entries[i] = cache.DoseEntry{
			DoseID:    uuid.New(),
			Timestamp: base.Add(time.Duration(i) * time.Hour).Unix(),
		}
	}
	return entries
}

// TestRebuildCapKeepsNearestInstants verifies the cap evicts the
// furthest-future instants, never the next due doses.
func TestRebuildCapKeepsNearestInstants(t *testing.T) {
	// ARRANGE
	c, _ := newTestCache(t)
	ctx := context.Background()
	userID := int64(990001)
	base := time.Now().UTC().Truncate(time.Second)
	entries := overCapEntries(base, 5)
	t.Cleanup(func() { c.Clear(ctx, userID) })

	// ACT
	if err := c.Rebuild(ctx, userID, entries); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	// ASSERT: capped, and the soonest instant survived
	size, err := c.Size(ctx, userID)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if size != cache.ScheduleCacheCap {
		t.Errorf("size = %d, want %d", size, cache.ScheduleCacheCap)
	}

	doseIDs, scores, err := c.Upcoming(ctx, userID, base, 1)
	if err != nil {
		t.Fatalf("Upcoming returned error: %v", err)
	}
	if len(doseIDs) != 1 || doseIDs[0] != entries[0].DoseID {
		t.Errorf("nearest dose = %v, want %s", doseIDs, entries[0].DoseID)
	}
	if int64(scores[0]) != entries[0].Timestamp {
		t.Errorf("nearest score = %d, want %d", int64(scores[0]), entries[0].Timestamp)
	}

	// The evicted entries are the furthest-future ones
	all, _, err := c.Upcoming(ctx, userID, base, len(entries))
	if err != nil {
		t.Fatalf("Upcoming returned error: %v", err)
	}
	kept := make(map[uuid.UUID]bool, len(all))
	for _, id := range all {
		kept[id] = true
	}
	for _, e := range entries[cache.ScheduleCacheCap:] {
		if kept[e.DoseID] {
			t.Errorf("over-cap entry %s should have been evicted", e.DoseID)
		}
	}
}

// TestAddDoseOverCapEvictsFurthest verifies a single add past the cap drops a
// tail entry, not the next due dose.
func TestAddDoseOverCapEvictsFurthest(t *testing.T) {
	// ARRANGE: a full cache
	c, _ := newTestCache(t)
	ctx := context.Background()
	userID := int64(990002)
	base := time.Now().UTC().Truncate(time.Second)
	entries := overCapEntries(base, 0)
	t.Cleanup(func() { c.Clear(ctx, userID) })

	if err := c.Rebuild(ctx, userID, entries); err != nil {
		t.Fatalf("Rebuild returned error: %v", err)
	}

	// ACT: add one instant between the first two entries
	added := uuid.New()
	if err := c.AddDose(ctx, userID, added, base.Add(30*time.Minute).Unix()); err != nil {
		t.Fatalf("AddDose returned error: %v", err)
	}

	// ASSERT: still capped; the head is intact and the new entry is second
	size, err := c.Size(ctx, userID)
	if err != nil {
		t.Fatalf("Size returned error: %v", err)
	}
	if size != cache.ScheduleCacheCap {
		t.Errorf("size = %d, want %d", size, cache.ScheduleCacheCap)
	}

	doseIDs, _, err := c.Upcoming(ctx, userID, base, 2)
	if err != nil {
		t.Fatalf("Upcoming returned error: %v", err)
	}
	if len(doseIDs) != 2 || doseIDs[0] != entries[0].DoseID || doseIDs[1] != added {
		t.Errorf("head = %v, want [%s %s]", doseIDs, entries[0].DoseID, added)
	}
}
