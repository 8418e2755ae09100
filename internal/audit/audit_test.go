package audit

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrail_RecordAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	trail, err := Open(path)
	require.NoError(t, err)
	defer trail.Close()

	runID := NewRunID()
	require.NoError(t, trail.Record(Entry{
		RunID:      runID,
		Operation:  OpExportJob,
		EntityID:   "STU001",
		DurationMS: 42,
		Success:    true,
		Detail:     "report generated",
	}))
	require.NoError(t, trail.Record(Entry{
		RunID:     runID,
		Operation: OpExportRun,
		Success:   false,
		Detail:    "1 of 2 reports failed",
	}))

	entries, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, OpExportJob, entries[0].Operation)
	assert.Equal(t, "STU001", entries[0].EntityID)
	assert.Equal(t, runID, entries[0].RunID)
	assert.True(t, entries[0].Success)
	assert.False(t, entries[0].Time.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), entries[0].Time, time.Minute)

	assert.Equal(t, OpExportRun, entries[1].Operation)
	assert.False(t, entries[1].Success)
}

func TestTrail_AppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	for i := 0; i < 2; i++ {
		trail, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, trail.Record(Entry{Operation: OpImport, Detail: fmt.Sprintf("batch %d", i)}))
		require.NoError(t, trail.Close())
	}

	entries, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "batch 0", entries[0].Detail)
	assert.Equal(t, "batch 1", entries[1].Detail)
}

func TestTrail_ConcurrentRecordsStayWellFormed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	trail, err := Open(path)
	require.NoError(t, err)
	defer trail.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = trail.Record(Entry{
				Operation: OpExportJob,
				EntityID:  fmt.Sprintf("STU%03d", n),
				Success:   true,
			})
		}(i)
	}
	wg.Wait()

	entries, err := ReadAll(path)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestNewRunID_Unique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
