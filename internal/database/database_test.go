package database

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndFinishRun(t *testing.T) {
	db := openTestDB(t)

	id, err := db.CreateRun("2024-06-10")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", run.RunDate)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, db.FinishRun(id, RunStatusCompleted))

	run, err = db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)
	require.NotNil(t, run.FinishedAt)
}

func TestLatestRunEmptyArchive(t *testing.T) {
	db := openTestDB(t)

	run, err := db.LatestRun()
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	first, err := db.CreateRun("2024-06-09")
	require.NoError(t, err)
	second, err := db.CreateRun("2024-06-10")
	require.NoError(t, err)

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)
}

func TestSaveAndGetDocument(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.CreateRun("2024-06-10")
	require.NoError(t, err)

	payload := map[string]any{"busy_periods": []any{}, "timezone": "Europe/Berlin"}
	require.NoError(t, db.SaveDocument(runID, DocBusyPeriods, payload))

	raw, err := db.GetDocument(runID, DocBusyPeriods)
	require.NoError(t, err)
	require.NotNil(t, raw)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Europe/Berlin", decoded["timezone"])
}

func TestSaveDocumentReplacesSameKind(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.CreateRun("2024-06-10")
	require.NoError(t, err)

	require.NoError(t, db.SaveDocument(runID, DocCatalog, map[string]int{"total_movies": 1}))
	require.NoError(t, db.SaveDocument(runID, DocCatalog, map[string]int{"total_movies": 2}))

	raw, err := db.GetDocument(runID, DocCatalog)
	require.NoError(t, err)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 2, decoded["total_movies"])

	kinds, err := db.ListDocumentKinds(runID)
	require.NoError(t, err)
	assert.Equal(t, []string{DocCatalog}, kinds)
}

func TestGetDocumentMissing(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.CreateRun("2024-06-10")
	require.NoError(t, err)

	raw, err := db.GetDocument(runID, DocSynthesis)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestSaveAndGetRecommendation(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.CreateRun("2024-06-10")
	require.NoError(t, err)

	require.NoError(t, db.SaveRecommendation(runID, "**picks**", "deterministic", 3))

	rec, err := db.GetRecommendation(runID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "**picks**", rec.MessageMarkdown)
	assert.Equal(t, "deterministic", rec.Method)
	assert.Equal(t, 3, rec.PickCount)

	// Re-composing the same run overwrites.
	require.NoError(t, db.SaveRecommendation(runID, "**new picks**", "llm", 5))
	rec, err = db.GetRecommendation(runID)
	require.NoError(t, err)
	assert.Equal(t, "llm", rec.Method)
	assert.Equal(t, 5, rec.PickCount)
}

func TestGetRecommendationMissing(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.CreateRun("2024-06-10")
	require.NoError(t, err)

	rec, err := db.GetRecommendation(runID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSaveAndGetDelivery(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.CreateRun("2024-06-10")
	require.NoError(t, err)

	require.NoError(t, db.SaveDelivery(runID, "chan-1", "msg-1"))

	d, err := db.GetDelivery(runID)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "chan-1", d.ChannelID)
	assert.Equal(t, "msg-1", d.MessageID)

	missing, err := db.GetDelivery("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	r1, err := db.CreateRun("2024-06-09")
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(r1, RunStatusCompleted))
	require.NoError(t, db.SaveDelivery(r1, "chan-1", "msg-1"))

	r2, err := db.CreateRun("2024-06-10")
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(r2, RunStatusFailed))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.CompletedRuns)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Equal(t, 1, stats.DeliveredRuns)
	assert.NotEmpty(t, stats.LastRunDate)
}
