package notify

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSender struct {
	mu    sync.Mutex
	fail  int
	sent  []Message
	tried int
}

func (s *fakeSender) Deliver(_ context.Context, _ string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tried++
	if s.fail > 0 {
		s.fail--
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "notify.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })
	return conn
}

func TestRenderer_AllTemplates(t *testing.T) {
	renderer, err := NewRenderer("NextGen Bank", "help@bank.test")
	require.NoError(t, err)

	for name := range subjects {
		msg, errRender := renderer.Render(name, Data{"otp": "123456", "activation_url": "http://x/activate/t"})
		require.NoError(t, errRender, "template %s", name)
		assert.Equal(t, subjects[name], msg.Subject)
		assert.Contains(t, msg.TextBody, "help@bank.test")
		assert.NotEmpty(t, msg.HTMLBody)
	}

	msg, err := renderer.Render(TemplateLoginOTP, Data{"otp": "654321", "expiry_time": 5})
	require.NoError(t, err)
	assert.Contains(t, msg.TextBody, "654321")
	assert.Contains(t, msg.TextBody, "5 minutes")
	assert.Contains(t, msg.HTMLBody, "NextGen Bank")
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer("Bank", "help@bank.test")
	require.NoError(t, err)
	_, err = renderer.Render(Template("nope"), nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(1))
	assert.Equal(t, 2*time.Second, Backoff(2))
	assert.Equal(t, 4*time.Second, Backoff(3))
	assert.Equal(t, 32*time.Second, Backoff(6))
	assert.Equal(t, 60*time.Second, Backoff(7))
	assert.Equal(t, 60*time.Second, Backoff(30))
}

func TestOutbox_RejectsUnknownTemplate(t *testing.T) {
	conn := openDB(t)
	outbox := NewOutbox(conn, nil)
	_, err := outbox.Send(context.Background(), Template("bogus"), "a@x.com", nil)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestWorker_DeliversEnqueuedJob(t *testing.T) {
	conn := openDB(t)
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	outbox := NewOutbox(conn, clk.Now)
	renderer, err := NewRenderer("Bank", "help@bank.test")
	require.NoError(t, err)
	sender := &fakeSender{}
	worker := NewWorker(conn, renderer, sender, WorkerConfig{}, clk.Now)

	ctx := context.Background()
	jobID, err := outbox.Send(ctx, TemplateLoginOTP, "a@x.com", Data{"otp": "111222", "expiry_time": 5})
	require.NoError(t, err)

	n, err := worker.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sender.sent, 1)
	assert.True(t, strings.Contains(sender.sent[0].TextBody, "111222"))

	var job models.NotificationJob
	require.NoError(t, conn.First(&job, "id = ?", jobID).Error)
	assert.Equal(t, models.JobStatusSent, job.Status)
	assert.Equal(t, 1, job.Attempts)

	n, err = worker.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWorker_RetriesWithBackoffThenFails(t *testing.T) {
	conn := openDB(t)
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	outbox := NewOutbox(conn, clk.Now)
	renderer, err := NewRenderer("Bank", "help@bank.test")
	require.NoError(t, err)
	sender := &fakeSender{fail: 100}
	worker := NewWorker(conn, renderer, sender, WorkerConfig{}, clk.Now)

	ctx := context.Background()
	jobID, err := outbox.Send(ctx, TemplateActivation, "a@x.com", Data{"activation_url": "http://x"})
	require.NoError(t, err)

	n, err := worker.ProcessDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var job models.NotificationJob
	require.NoError(t, conn.First(&job, "id = ?", jobID).Error)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.True(t, job.NextAttemptAt.Equal(clk.t.Add(time.Second)), "next attempt %s", job.NextAttemptAt)

	n, err = worker.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "job must wait for its backoff")

	for _, wait := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		clk.t = clk.t.Add(wait)
		n, err = worker.ProcessDue(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}

	require.NoError(t, conn.First(&job, "id = ?", jobID).Error)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, 4, job.Attempts)
	assert.Equal(t, "smtp unavailable", job.LastError)
	assert.Equal(t, 4, sender.tried)
}

func TestWorker_RecoversAfterTransientFailure(t *testing.T) {
	conn := openDB(t)
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	outbox := NewOutbox(conn, clk.Now)
	renderer, err := NewRenderer("Bank", "help@bank.test")
	require.NoError(t, err)
	sender := &fakeSender{fail: 1}
	worker := NewWorker(conn, renderer, sender, WorkerConfig{}, clk.Now)

	ctx := context.Background()
	jobID, err := outbox.Send(ctx, TemplatePasswordReset, "a@x.com", Data{"reset_url": "http://x"})
	require.NoError(t, err)

	_, err = worker.ProcessDue(ctx)
	require.NoError(t, err)
	clk.t = clk.t.Add(time.Second)
	_, err = worker.ProcessDue(ctx)
	require.NoError(t, err)

	var job models.NotificationJob
	require.NoError(t, conn.First(&job, "id = ?", jobID).Error)
	assert.Equal(t, models.JobStatusSent, job.Status)
	assert.Equal(t, 2, job.Attempts)
	require.Len(t, sender.sent, 1)
}
