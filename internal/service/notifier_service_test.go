package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/pkg/config"
)

type mockAttemptWriter struct {
	mu       sync.Mutex
	attempts []*models.NotificationAttempt
}

func (m *mockAttemptWriter) Append(_ context.Context, attempt *models.NotificationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

func (m *mockAttemptWriter) all() []*models.NotificationAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.NotificationAttempt(nil), m.attempts...)
}

type mockContactReader struct {
	user *models.User
}

func (m *mockContactReader) FindByID(_ context.Context, _ string) (*models.User, error) {
	return m.user, nil
}

func notifierFixture(cfg config.NotifierConfig) (*NotifierService, *mockAttemptWriter) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	attempts := &mockAttemptWriter{}
	users := &mockContactReader{user: &models.User{ID: "staff-1", Email: "staff@example.edu", Phone: "+911234567890"}}
	return NewNotifierService(cfg, attempts, users, nil, zap.NewNop()), attempts
}

func TestSendSuccessRecordsSingleAttempt(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, attempts := notifierFixture(config.NotifierConfig{EmailBaseURL: srv.URL, EmailAPIKey: "key-1"})

	result := svc.Send(context.Background(), "req-1", models.ChannelEmail, "staff@example.edu", "approved")

	assert.True(t, result.OK)
	assert.Equal(t, 1, calls)
	recorded := attempts.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, models.NotificationSuccess, recorded[0].Status)
}

func TestSendRetriesExactlyOnceOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc, attempts := notifierFixture(config.NotifierConfig{EmailBaseURL: srv.URL, RetryDelay: time.Millisecond})

	result := svc.Send(context.Background(), "req-1", models.ChannelEmail, "staff@example.edu", "approved")

	assert.False(t, result.OK)
	assert.Equal(t, 2, calls, "one retry, never more")
	recorded := attempts.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, models.NotificationFailed, recorded[0].Status)
	require.NotNil(t, recorded[0].ResponseCode)
	assert.Equal(t, http.StatusInternalServerError, *recorded[0].ResponseCode)
}

func TestSendRetrySucceedsAfterTransientFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, attempts := notifierFixture(config.NotifierConfig{EmailBaseURL: srv.URL, RetryDelay: time.Millisecond})

	result := svc.Send(context.Background(), "req-1", models.ChannelEmail, "staff@example.edu", "approved")

	assert.True(t, result.OK)
	assert.Equal(t, 2, calls)
	recorded := attempts.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, models.NotificationSuccess, recorded[0].Status)
}

func TestSendDoesNotRetryClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	svc, _ := notifierFixture(config.NotifierConfig{EmailBaseURL: srv.URL, RetryDelay: time.Millisecond})

	result := svc.Send(context.Background(), "req-1", models.ChannelEmail, "staff@example.edu", "approved")

	assert.False(t, result.OK)
	assert.Equal(t, 1, calls)
}

func TestSendRetriesOnTransientBodyMarker(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit exceeded"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	svc, _ := notifierFixture(config.NotifierConfig{EmailBaseURL: srv.URL, RetryDelay: time.Millisecond})

	svc.Send(context.Background(), "req-1", models.ChannelEmail, "staff@example.edu", "approved")

	assert.Equal(t, 2, calls)
}

func TestSendUnconfiguredChannelSkips(t *testing.T) {
	svc, attempts := notifierFixture(config.NotifierConfig{})

	result := svc.Send(context.Background(), "req-1", models.ChannelWhatsApp, "+911234567890", "approved")

	assert.False(t, result.OK)
	recorded := attempts.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, models.NotificationSkipped, recorded[0].Status)
	assert.Equal(t, models.ChannelWhatsApp, recorded[0].Channel)
}

func TestSendEmptyRecipientSkips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("provider must not be called without a recipient")
	}))
	defer srv.Close()

	svc, attempts := notifierFixture(config.NotifierConfig{WhatsAppBaseURL: srv.URL})

	svc.Send(context.Background(), "req-1", models.ChannelWhatsApp, "", "approved")

	recorded := attempts.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, models.NotificationSkipped, recorded[0].Status)
}

func TestDecisionMessageWording(t *testing.T) {
	until := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	approved := models.ApprovalRequest{
		Kind:          models.KindPublishException,
		SubjectCode:   "CS101",
		Assessment:    models.AssessmentCIA1,
		Status:        models.StatusApproved,
		ApprovedUntil: &until,
	}
	msg := decisionMessage(approved)
	assert.Contains(t, msg, "publish exception")
	assert.Contains(t, msg, "approved")
	assert.Contains(t, msg, "CS101")

	rejected := models.ApprovalRequest{Kind: models.KindEditException, SubjectCode: "CS101", Assessment: models.AssessmentCIA1, Status: models.StatusRejected}
	assert.Contains(t, decisionMessage(rejected), "rejected")
}
