package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/pkg/clock"
)

type mockOutboxRepo struct {
	entries   []models.ApprovalOutbox
	upsertErr map[string]error
	markErr   map[string]error
	upserted  []string
	marked    []string
	listErr   error
	listCalls int
}

func (m *mockOutboxRepo) ListUnprocessed(_ context.Context, _ int) ([]models.ApprovalOutbox, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var unprocessed []models.ApprovalOutbox
	for _, e := range m.entries {
		if e.ProcessedAt == nil {
			unprocessed = append(unprocessed, e)
		}
	}
	return unprocessed, nil
}

func (m *mockOutboxRepo) MirrorUpsert(_ context.Context, entry *models.ApprovalOutbox) error {
	if err := m.upsertErr[entry.ID]; err != nil {
		return err
	}
	m.upserted = append(m.upserted, entry.ID)
	return nil
}

func (m *mockOutboxRepo) MarkProcessed(_ context.Context, id string, processedAt time.Time) error {
	if err := m.markErr[id]; err != nil {
		return err
	}
	m.marked = append(m.marked, id)
	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries[i].ProcessedAt = &processedAt
		}
	}
	return nil
}

func outboxEntry(id string) models.ApprovalOutbox {
	return models.ApprovalOutbox{
		ID:          id,
		RequestID:   "req-" + id,
		Kind:        models.KindCourseEditException,
		RequesterID: "staff-1",
		SubjectCode: "CS101",
		Assessment:  models.AssessmentCIA1,
		Status:      models.StatusApproved,
	}
}

func TestDrainOnceProcessesBatch(t *testing.T) {
	repo := &mockOutboxRepo{entries: []models.ApprovalOutbox{outboxEntry("a"), outboxEntry("b")}}
	w := NewOutboxWorker(repo, time.Second, nil, zap.NewNop())

	processed, err := w.DrainOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Equal(t, []string{"a", "b"}, repo.upserted)
	assert.Equal(t, []string{"a", "b"}, repo.marked)
}

func TestDrainOnceStampsProcessedAtFromClock(t *testing.T) {
	repo := &mockOutboxRepo{entries: []models.ApprovalOutbox{outboxEntry("a")}}
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	w := NewOutboxWorker(repo, time.Second, clock.Fixed{Instant: now}, zap.NewNop())

	processed, err := w.DrainOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.NotNil(t, repo.entries[0].ProcessedAt)
	assert.Equal(t, now, *repo.entries[0].ProcessedAt)
}

func TestDrainOnceSkipsFailedUpsertForReplay(t *testing.T) {
	repo := &mockOutboxRepo{
		entries:   []models.ApprovalOutbox{outboxEntry("a"), outboxEntry("b")},
		upsertErr: map[string]error{"a": errors.New("deadlock")},
	}
	w := NewOutboxWorker(repo, time.Second, nil, zap.NewNop())

	processed, err := w.DrainOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, []string{"b"}, repo.marked)

	// The failed record stays unprocessed and replays on the next drain.
	repo.upsertErr = nil
	processed, err = w.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Contains(t, repo.marked, "a")
}

func TestDrainOnceMarkFailureLeavesRecordForReplay(t *testing.T) {
	repo := &mockOutboxRepo{
		entries: []models.ApprovalOutbox{outboxEntry("a")},
		markErr: map[string]error{"a": errors.New("connection reset")},
	}
	w := NewOutboxWorker(repo, time.Second, nil, zap.NewNop())

	processed, err := w.DrainOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, []string{"a"}, repo.upserted, "the upsert landed before the mark failed")

	// Replay repeats the idempotent upsert, then marks.
	repo.markErr = nil
	processed, err = w.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, []string{"a", "a"}, repo.upserted)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	repo := &mockOutboxRepo{}
	w := NewOutboxWorker(repo, time.Millisecond, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()
	w.Wait()

	assert.Greater(t, repo.listCalls, 0)
}
