package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu   sync.Mutex
	recs []RunRecord
}

func (m *memRecorder) Record(_ context.Context, rec RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memRecorder) all() []RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RunRecord{}, m.recs...)
}

func collect(t *testing.T, run *Run) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, open := <-run.Events():
			if !open {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("run did not finish in time")
		}
	}
}

func validCashDataset() *Dataset {
	return buildDataset(
		[]string{"Paid In", "Withdrawn", "Balance", "Opposite Party"},
		[]string{"100", "0", "100", "a"},
		[]string{"0", "40", "60", "b"},
	)
}

func TestOrchestratorEmitsMonotonicProgressEndingInCompletion(t *testing.T) {
	rec := &memRecorder{}
	o := NewOrchestrator(t.TempDir(), nil, nil, nil, rec, nil)

	run, err := o.Start(context.Background(), carrier.TelecelCash, "stmt.xlsx", validCashDataset())
	require.NoError(t, err)

	events := collect(t, run)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, EventCompleted, last.Type)
	assert.Equal(t, 100, last.Percent)
	require.NotNil(t, last.Result)
	assert.NotEmpty(t, last.Insights)

	prev := -1
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Percent, prev, "percent must never decrease")
		prev = ev.Percent
		if ev.Type == EventProgress {
			assert.Nil(t, ev.Result, "partial results never ride progress events")
		}
	}

	assert.Equal(t, analysis.StateCompleted, run.State())
	recs := rec.all()
	require.Len(t, recs, 1)
	assert.Equal(t, run.ID, recs[0].ID)
}

func TestOrchestratorFailsOnSchemaError(t *testing.T) {
	o := NewOrchestrator(t.TempDir(), nil, nil, nil, nil, nil)

	bad := buildDataset([]string{"Wrong Column"}, []string{"x"})
	run, err := o.Start(context.Background(), carrier.TelecelCash, "stmt.xlsx", bad)
	require.NoError(t, err)

	events := collect(t, run)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, EventFailed, last.Type)
	assert.Contains(t, last.Err, "missing required columns")
	for _, ev := range events {
		assert.NotEqual(t, EventCompleted, ev.Type, "a failed run never also completes")
	}
	assert.Equal(t, analysis.StateFailed, run.State())
}

func TestOrchestratorRejectsUnknownCarrierAndEmptyData(t *testing.T) {
	o := NewOrchestrator(t.TempDir(), nil, nil, nil, nil, nil)

	_, err := o.Start(context.Background(), carrier.Key("nope"), "f", validCashDataset())
	assert.ErrorIs(t, err, core.ErrUnknownCarrier)

	_, err = o.Start(context.Background(), carrier.TelecelCash, "f", nil)
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestSecondRunAbandonsFirstWithoutBleed(t *testing.T) {
	o := NewOrchestrator(t.TempDir(), nil, nil, nil, nil, nil)

	first, err := o.Start(context.Background(), carrier.TelecelCash, "first.xlsx", validCashDataset())
	require.NoError(t, err)
	first.Abandon() // simulate displacement racing ahead of the worker

	second, err := o.Start(context.Background(), carrier.TelecelCash, "second.xlsx", validCashDataset())
	require.NoError(t, err)

	firstEvents := collect(t, first)
	secondEvents := collect(t, second)

	for _, ev := range firstEvents {
		assert.NotEqual(t, EventCompleted, ev.Type, "abandoned run must not deliver results")
	}
	require.NotEmpty(t, secondEvents)
	last := secondEvents[len(secondEvents)-1]
	assert.Equal(t, EventCompleted, last.Type)
	for _, ev := range secondEvents {
		assert.Equal(t, second.ID, ev.RunID, "events never bleed across runs")
	}
	assert.Same(t, second, o.Active())
}

func TestAbandonedRunSuppressesAllEvents(t *testing.T) {
	o := NewOrchestrator(t.TempDir(), nil, nil, nil, nil, nil)

	run, err := o.Start(context.Background(), carrier.TelecelCash, "stmt.xlsx", validCashDataset())
	require.NoError(t, err)
	run.Abandon()

	events := collect(t, run)
	for _, ev := range events {
		// progress emitted before the abandonment landed may slip through,
		// but no terminal event or result ever does
		assert.Equal(t, EventProgress, ev.Type)
		assert.Nil(t, ev.Result)
	}
	assert.True(t, run.Abandoned())
}
