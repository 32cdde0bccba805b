package reminder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
	"github.com/magabrotheeeer/access-reconciler/internal/services/sender"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListExpiringMembers(ctx context.Context, now time.Time, horizon time.Duration) ([]*models.Member, error) {
	args := m.Called(ctx, now, horizon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Member), args.Error(1)
}

func (m *MockRepository) MarkTrialReminderSent(ctx context.Context, memberID string, now time.Time) (bool, error) {
	args := m.Called(ctx, memberID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkPaidReminderSent(ctx context.Context, memberID string, now time.Time) (bool, error) {
	args := m.Called(ctx, memberID, now)
	return args.Bool(0), args.Error(1)
}

type fakeNotifier struct {
	jobs    []models.NotificationJob
	deliver bool
}

func (n *fakeNotifier) Dispatch(_ context.Context, job models.NotificationJob) sender.Result {
	n.jobs = append(n.jobs, job)
	return sender.Result{models.ChannelChat: n.deliver}
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newService(repo Repository, notifier Notifier) *Service {
	rc := config.Reconcile{ReminderDays: 3, ReminderInterval: 12 * time.Hour}
	return New(repo, notifier, func() config.Reconcile { return rc }, newNoopLogger())
}

func TestRun_SendsTrialReminderOnce(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{deliver: true}
	svc := newService(repo, notifier)

	trialEnd := time.Now().UTC().Add(2 * 24 * time.Hour)
	member := &models.Member{ID: "member#1", DisplayTag: "alice", Email: "a@example.com", TrialEnd: &trialEnd}
	repo.On("ListExpiringMembers", mock.Anything, mock.Anything, 3*24*time.Hour).Return([]*models.Member{member}, nil)
	repo.On("MarkTrialReminderSent", mock.Anything, "member#1", mock.Anything).Return(true, nil)

	svc.Run(context.Background())

	repo.AssertExpectations(t)
	assert.Len(t, notifier.jobs, 1)
	assert.Contains(t, notifier.jobs[0].Subject, "trial")
}

func TestRun_AlreadyMarkedSkipsDispatch(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{deliver: true}
	svc := newService(repo, notifier)

	trialEnd := time.Now().UTC().Add(2 * 24 * time.Hour)
	sentAt := time.Now().UTC().Add(-6 * time.Hour)
	member := &models.Member{ID: "member#1", Email: "a@example.com", TrialEnd: &trialEnd, TrialReminderSentAt: &sentAt}
	repo.On("ListExpiringMembers", mock.Anything, mock.Anything, mock.Anything).Return([]*models.Member{member}, nil)

	svc.Run(context.Background())

	repo.AssertNotCalled(t, "MarkTrialReminderSent", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, notifier.jobs)
}

func TestRun_DeliveryFailureLeavesUnmarked(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{deliver: false}
	svc := newService(repo, notifier)

	trialEnd := time.Now().UTC().Add(2 * 24 * time.Hour)
	member := &models.Member{ID: "member#1", Email: "a@example.com", TrialEnd: &trialEnd}
	repo.On("ListExpiringMembers", mock.Anything, mock.Anything, mock.Anything).Return([]*models.Member{member}, nil)

	svc.Run(context.Background())

	// Сбой на всех каналах: отметка не ставится, следующий проход повторит.
	repo.AssertNotCalled(t, "MarkTrialReminderSent", mock.Anything, mock.Anything, mock.Anything)
	assert.Len(t, notifier.jobs, 1)
}

func TestRun_PaidReminderPreferredOverTrial(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{deliver: true}
	svc := newService(repo, notifier)

	trialEnd := time.Now().UTC().Add(24 * time.Hour)
	paidUntil := time.Now().UTC().Add(2 * 24 * time.Hour)
	member := &models.Member{ID: "member#1", Email: "a@example.com", TrialEnd: &trialEnd, PaidUntil: &paidUntil}
	repo.On("ListExpiringMembers", mock.Anything, mock.Anything, mock.Anything).Return([]*models.Member{member}, nil)
	repo.On("MarkPaidReminderSent", mock.Anything, "member#1", mock.Anything).Return(true, nil)

	svc.Run(context.Background())

	repo.AssertNotCalled(t, "MarkTrialReminderSent", mock.Anything, mock.Anything, mock.Anything)
	assert.Len(t, notifier.jobs, 1)
}

func TestRun_NoContactSkipped(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{deliver: true}
	svc := newService(repo, notifier)

	trialEnd := time.Now().UTC().Add(24 * time.Hour)
	member := &models.Member{ID: "member#1", TrialEnd: &trialEnd}
	repo.On("ListExpiringMembers", mock.Anything, mock.Anything, mock.Anything).Return([]*models.Member{member}, nil)

	svc.Run(context.Background())

	repo.AssertNotCalled(t, "MarkTrialReminderSent", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, notifier.jobs)
}
