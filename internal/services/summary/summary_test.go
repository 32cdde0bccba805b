package summary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/storage/repository"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CountMemberStats(ctx context.Context, now time.Time) (*repository.MemberStats, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.MemberStats), args.Error(1)
}

func (m *MockRepository) DeleteExpiredDeferrals(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	args := m.Called(ctx, now, window)
	return args.Int(0), args.Error(1)
}

type fakeNotifier struct {
	subjects []string
	bodies   []string
}

func (n *fakeNotifier) NotifyAdmin(_ context.Context, subject, body string) error {
	n.subjects = append(n.subjects, subject)
	n.bodies = append(n.bodies, body)
	return nil
}

func newService(repo Repository, notifier Notifier) *Service {
	rc := config.Reconcile{SummaryInterval: 24 * time.Hour, DeferralWindowDays: 7}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, notifier, func() config.Reconcile { return rc }, log)
}

func TestRun_SendsSummaryAndPrunes(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{}
	svc := newService(repo, notifier)

	repo.On("DeleteExpiredDeferrals", mock.Anything, mock.Anything, 7*24*time.Hour).Return(2, nil)
	repo.On("CountMemberStats", mock.Anything, mock.Anything).Return(&repository.MemberStats{
		Total: 10, ActivePayers: 4, ActiveTrials: 2, Lifetime: 1, Expired: 3,
	}, nil)

	svc.Run(context.Background())

	repo.AssertExpectations(t)
	assert.Equal(t, []string{"Daily member summary"}, notifier.subjects)
	assert.Contains(t, notifier.bodies[0], "Active payers: 4")
}

func TestRun_PruneFailureDoesNotBlockSummary(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{}
	svc := newService(repo, notifier)

	repo.On("DeleteExpiredDeferrals", mock.Anything, mock.Anything, mock.Anything).Return(0, errors.New("db down"))
	repo.On("CountMemberStats", mock.Anything, mock.Anything).Return(&repository.MemberStats{Total: 1}, nil)

	svc.Run(context.Background())

	assert.Len(t, notifier.subjects, 1)
}
