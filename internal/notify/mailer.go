package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/smtp"
	"time"

	"marketplace/internal/logger"
	"marketplace/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxEmailTries  = 3
	popTimeout     = 2 * time.Second
)

type EmailJob struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Kind    string    `json:"kind"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Sender interface {
	Send(job EmailJob) error
}

// Mailer is a Redis-backed email queue plus the worker that drains it.
type Mailer struct {
	redis       redis.Cmdable
	sender      Sender
	retryDelay  time.Duration
	backoff     time.Duration // pause between BRPOP attempts while redis is failing
	unreachable bool
}

func NewMailer(rdb redis.Cmdable, sender Sender) *Mailer {
	return &Mailer{
		redis:      rdb,
		sender:     sender,
		retryDelay: 5 * time.Second,
		backoff:    2 * time.Second,
	}
}

func (m *Mailer) Enqueue(ctx context.Context, job EmailJob) error {
	if job.Created.IsZero() {
		job.Created = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := m.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		return fmt.Errorf("queue email to %s: %w", job.To, err)
	}
	logger.Debugf("email queued: %s to %s", job.Subject, job.To)
	return nil
}

// Start consumes the queue until ctx is cancelled.
func (m *Mailer) Start(ctx context.Context) {
	logger.Info("email worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopped")
			return
		default:
			m.processNext(ctx)
		}
	}
}

// processNext handles at most one job and reports whether one was popped.
func (m *Mailer) processNext(ctx context.Context) bool {
	result, err := m.redis.BRPop(ctx, popTimeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		m.recovered()
		return false
	}
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		if !m.unreachable {
			logger.Errorf("email queue unavailable, retrying every %s: %v", m.backoff, err)
			m.unreachable = true
		}
		metrics.RecordEmail("queue", "unavailable")
		select {
		case <-ctx.Done():
		case <-time.After(m.backoff):
		}
		return false
	}
	m.recovered()

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("bad email job: %v", err)
		return true
	}

	job.Tries++
	if err := m.sender.Send(job); err != nil {
		logger.WithField("to", job.To).Errorf("send email (attempt %d): %v", job.Tries, err)
		metrics.RecordEmail(job.Kind, "failed")
		if job.Tries < maxEmailTries {
			if m.retryDelay > 0 {
				time.Sleep(m.retryDelay)
			}
			data, _ := json.Marshal(job)
			m.redis.LPush(context.WithoutCancel(ctx), queueKey, string(data))
			return true
		}
		m.saveFailed(ctx, job, err)
		return true
	}

	metrics.RecordEmail(job.Kind, "success")
	return true
}

func (m *Mailer) recovered() {
	if m.unreachable {
		logger.Info("email queue reachable again")
		m.unreachable = false
	}
}

func (m *Mailer) saveFailed(ctx context.Context, job EmailJob, sendErr error) {
	failed := map[string]any{
		"job":   job,
		"error": sendErr.Error(),
		"time":  time.Now().UTC(),
	}
	data, _ := json.Marshal(failed)
	m.redis.LPush(context.WithoutCancel(ctx), failedQueueKey, string(data))
	logger.Errorf("email to %s moved to %s after %d attempts", job.To, failedQueueKey, job.Tries)
}

func (m *Mailer) QueueLength(ctx context.Context) int64 {
	length, err := m.redis.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0
	}
	metrics.EmailQueueLength.Set(float64(length))
	return length
}

type SMTPSender struct {
	Host     string
	Port     string
	User     string
	Pass     string
	From     string
	FromName string
}

func (s SMTPSender) Send(job EmailJob) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.FromName, s.From)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.User != "" && s.Pass != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	return smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{job.To}, []byte(message))
}
