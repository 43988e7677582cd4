package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"
	"cdrlens/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string, started time.Time) pipeline.RunRecord {
	return pipeline.RunRecord{
		ID:         core.RunID(id),
		Carrier:    carrier.MTNCDR,
		Source:     "export.xlsx",
		State:      analysis.StateCompleted,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Insights:   []string{"Peak calling hour: 10:00 with 12 calls"},
		Artifacts:  map[string]string{"hourly": "/tmp/hourly_distribution.png"},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("run-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, s.Record(ctx, rec))

	got, err := s.GetRun(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Carrier, got.Carrier)
	assert.Equal(t, rec.State, got.State)
	assert.Equal(t, rec.Insights, got.Insights)
	assert.Equal(t, rec.Artifacts, got.Artifacts)
}

func TestRecordUpsertsOnRerun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("run-1", time.Now().UTC())
	require.NoError(t, s.Record(ctx, rec))

	rec.State = analysis.StateFailed
	rec.Error = "missing required columns: duration"
	require.NoError(t, s.Record(ctx, rec))

	got, err := s.GetRun(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.StateFailed, got.State)
	assert.Equal(t, rec.Error, got.Error)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.Record(ctx, sampleRecord("old", base.Add(-time.Hour))))
	require.NoError(t, s.Record(ctx, sampleRecord("new", base)))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, core.RunID("new"), runs[0].ID)
	assert.Equal(t, core.RunID("old"), runs[1].ID)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), core.RunID("missing"))
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestGeocodeRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveGeocode(ctx, 5.6, -0.18, "Accra, Ghana"))
	// overwriting the same coordinates keeps a single row
	require.NoError(t, s.SaveGeocode(ctx, 5.6, -0.18, "Osu, Accra, Ghana"))

	saved, err := s.LoadGeocodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"5.600000,-0.180000": "Osu, Accra, Ghana"}, saved)
}
