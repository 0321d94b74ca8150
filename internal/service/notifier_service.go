package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/pkg/config"
	"github.com/obeplatform/assessment-api/pkg/jobs"
)

type attemptWriter interface {
	Append(ctx context.Context, attempt *models.NotificationAttempt) error
}

type contactReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// transientMarkers are provider error-body fragments that indicate a fault
// worth one retry.
var transientMarkers = []string{"timeout", "temporarily unavailable", "rate limit", "try again"}

// NotifierService delivers approval outcomes over email and WhatsApp. Send
// never returns an error to the workflow: delivery failure is logged,
// recorded in the attempt table and surfaced only as a SendResult.
type NotifierService struct {
	cfg      config.NotifierConfig
	client   *http.Client
	attempts attemptWriter
	users    contactReader
	metrics  *MetricsService
	logger   *zap.Logger
	queue    *jobs.Queue
}

// NewNotifierService constructs the dispatcher. The HTTP client is bounded
// by the configured timeout so a stalled provider cannot hold a data-store
// lock upstream.
func NewNotifierService(cfg config.NotifierConfig, attempts attemptWriter, users contactReader, metrics *MetricsService, logger *zap.Logger) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotifierService{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		attempts: attempts,
		users:    users,
		metrics:  metrics,
		logger:   logger,
	}
	s.queue = jobs.NewQueue("approval-notifications", s.handleJob, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start begins background delivery workers.
func (s *NotifierService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotifierService) Stop() {
	s.queue.Stop()
}

// DispatchDecision queues delivery of a review outcome to the requester over
// every channel. Fire and forget: enqueue failures are logged only.
func (s *NotifierService) DispatchDecision(req models.ApprovalRequest) {
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "decision", Payload: req}); err != nil {
		s.logger.Warn("failed to queue decision notification", zap.String("request", req.ID), zap.Error(err))
	}
}

func (s *NotifierService) handleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(models.ApprovalRequest)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job", job.ID))
		return nil
	}

	user, err := s.users.FindByID(ctx, req.RequesterID)
	if err != nil {
		s.logger.Warn("requester lookup failed for notification", zap.String("request", req.ID), zap.Error(err))
		return nil
	}

	message := decisionMessage(req)
	s.Send(ctx, req.ID, models.ChannelEmail, user.Email, message)
	s.Send(ctx, req.ID, models.ChannelWhatsApp, user.Phone, message)
	return nil
}

// Send delivers one message on one channel, retrying exactly once after a
// short delay on a transient failure. Every attempt, including skips for
// unconfigured channels, is recorded.
func (s *NotifierService) Send(ctx context.Context, requestID string, channel models.NotificationChannel, recipient, message string) models.SendResult {
	baseURL, apiKey := s.channelConfig(channel)
	if baseURL == "" || recipient == "" {
		s.record(ctx, requestID, channel, models.NotificationSkipped, recipient, nil, "", "channel not configured")
		return models.SendResult{OK: false, Error: "channel not configured"}
	}

	result := s.post(ctx, baseURL, apiKey, recipient, message)
	if !result.OK && isTransient(result) {
		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.RetryDelay):
			result = s.post(ctx, baseURL, apiKey, recipient, message)
		}
	}

	status := models.NotificationSuccess
	if !result.OK {
		status = models.NotificationFailed
	}
	var code *int
	if result.StatusCode != 0 {
		code = &result.StatusCode
	}
	s.record(ctx, requestID, channel, status, recipient, code, result.Body, result.Error)
	if s.metrics != nil {
		s.metrics.ObserveNotification(string(channel), string(status))
	}
	return result
}

func (s *NotifierService) post(ctx context.Context, baseURL, apiKey, recipient, message string) models.SendResult {
	payload, err := json.Marshal(map[string]string{"to": recipient, "message": message})
	if err != nil {
		return models.SendResult{Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(payload))
	if err != nil {
		return models.SendResult{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.SendResult{Error: err.Error()}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	result := models.SendResult{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
	}
	if !result.OK {
		result.Error = fmt.Sprintf("provider returned %d", resp.StatusCode)
	}
	return result
}

func (s *NotifierService) record(ctx context.Context, requestID string, channel models.NotificationChannel, status models.NotificationStatus, recipient string, code *int, body, errMsg string) {
	attempt := &models.NotificationAttempt{
		RequestID:    requestID,
		Channel:      channel,
		Status:       status,
		Recipient:    recipient,
		ResponseCode: code,
		ResponseBody: body,
		Error:        errMsg,
	}
	if err := s.attempts.Append(ctx, attempt); err != nil {
		s.logger.Error("failed to record notification attempt", zap.String("request", requestID), zap.Error(err))
	}
}

func (s *NotifierService) channelConfig(channel models.NotificationChannel) (string, string) {
	switch channel {
	case models.ChannelWhatsApp:
		return s.cfg.WhatsAppBaseURL, s.cfg.WhatsAppAPIKey
	default:
		return s.cfg.EmailBaseURL, s.cfg.EmailAPIKey
	}
}

func isTransient(result models.SendResult) bool {
	if result.StatusCode >= 500 {
		return true
	}
	// Network-level errors (no status code) get one retry too.
	if result.StatusCode == 0 && result.Error != "" {
		return true
	}
	body := strings.ToLower(result.Body)
	for _, marker := range transientMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

func decisionMessage(req models.ApprovalRequest) string {
	verdict := "rejected"
	if req.Status == models.StatusApproved {
		verdict = "approved"
	}
	msg := fmt.Sprintf("Your %s request for %s %s has been %s.",
		strings.ToLower(strings.ReplaceAll(string(req.Kind), "_", " ")),
		req.SubjectCode, req.Assessment, verdict)
	if req.ApprovedUntil != nil {
		msg += fmt.Sprintf(" The window stays open until %s.", req.ApprovedUntil.Format(time.RFC1123))
	}
	return msg
}
