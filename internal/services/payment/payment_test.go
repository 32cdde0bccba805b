package payment

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
	"github.com/magabrotheeeer/access-reconciler/internal/gateway"
	"github.com/magabrotheeeer/access-reconciler/internal/models"
	"github.com/magabrotheeeer/access-reconciler/internal/services/sender"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetMember(ctx context.Context, memberID string) (*models.Member, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

func (m *MockRepository) ExtendPaid(ctx context.Context, memberID string, now time.Time, days int) (time.Time, error) {
	args := m.Called(ctx, memberID, now, days)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockRepository) SetLifetime(ctx context.Context, memberID string) error {
	args := m.Called(ctx, memberID)
	return args.Error(0)
}

func (m *MockRepository) MarkPromoUsed(ctx context.Context, memberID string) error {
	args := m.Called(ctx, memberID)
	return args.Error(0)
}

type fakeDeduper struct {
	seen map[string]bool
}

func (d *fakeDeduper) Acquire(key string, _ time.Duration) (bool, error) {
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *fakeDeduper) Release(key string) error {
	delete(d.seen, key)
	return nil
}

type fakeGateway struct {
	granted []string
}

func (g *fakeGateway) QueryAccess(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (g *fakeGateway) GrantAccess(_ context.Context, email string) (gateway.GrantResult, error) {
	g.granted = append(g.granted, email)
	return gateway.GrantGranted, nil
}

func (g *fakeGateway) RevokeAccess(_ context.Context, _ string) (gateway.RevokeResult, error) {
	return gateway.RevokeNotFound, nil
}

type fakeNotifier struct {
	jobs   []models.NotificationJob
	admins []string
}

func (n *fakeNotifier) Dispatch(_ context.Context, job models.NotificationJob) sender.Result {
	n.jobs = append(n.jobs, job)
	return sender.Result{models.ChannelChat: true}
}

func (n *fakeNotifier) NotifyAdmin(_ context.Context, subject, _ string) error {
	n.admins = append(n.admins, subject)
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newService(repo Repository, gw gateway.AccessGateway, dedup Deduper, notifier Notifier) *Service {
	rc := config.Reconcile{TrialDays: 30}
	return New(repo, gw, dedup, notifier, func() config.Reconcile { return rc }, newNoopLogger())
}

func TestProcess_RenewalExtendsAndNotifies(t *testing.T) {
	repo := new(MockRepository)
	gw := &fakeGateway{}
	notifier := &fakeNotifier{}
	svc := newService(repo, gw, &fakeDeduper{}, notifier)

	paidUntil := time.Now().UTC().Add(60 * 24 * time.Hour)
	member := &models.Member{ID: "member#1", DisplayTag: "alice", Email: "a@example.com"}
	repo.On("GetMember", mock.Anything, "member#1").Return(member, nil)
	repo.On("ExtendPaid", mock.Anything, "member#1", mock.Anything, 60).Return(paidUntil, nil)

	err := svc.Process(context.Background(), models.PaymentEvent{
		TxnID:    "txn-1",
		MemberID: "member#1",
		Kind:     models.PaymentRenewal,
		Months:   2,
		Gross:    "20.00",
	})
	require.NoError(t, err)

	repo.AssertExpectations(t)
	assert.Contains(t, gw.granted, "a@example.com")
	require.Len(t, notifier.jobs, 1)
	assert.Contains(t, notifier.admins, "New paying member")
}

func TestProcess_DuplicateTxnIgnored(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{}
	svc := newService(repo, &fakeGateway{}, &fakeDeduper{}, notifier)

	paidUntil := time.Now().UTC().Add(30 * 24 * time.Hour)
	member := &models.Member{ID: "member#1", Email: "a@example.com"}
	repo.On("GetMember", mock.Anything, "member#1").Return(member, nil).Once()
	repo.On("ExtendPaid", mock.Anything, "member#1", mock.Anything, 30).Return(paidUntil, nil).Once()

	event := models.PaymentEvent{TxnID: "txn-1", MemberID: "member#1", Kind: models.PaymentRenewal, Months: 1}
	require.NoError(t, svc.Process(context.Background(), event))
	require.NoError(t, svc.Process(context.Background(), event))

	repo.AssertNumberOfCalls(t, "ExtendPaid", 1)
}

func TestProcess_RenewalAsExistingPayer(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{}
	svc := newService(repo, &fakeGateway{}, &fakeDeduper{}, notifier)

	current := time.Now().UTC().Add(10 * 24 * time.Hour)
	extended := current.Add(30 * 24 * time.Hour)
	member := &models.Member{ID: "member#1", Email: "a@example.com", PaidUntil: &current}
	repo.On("GetMember", mock.Anything, "member#1").Return(member, nil)
	repo.On("ExtendPaid", mock.Anything, "member#1", mock.Anything, 30).Return(extended, nil)

	err := svc.Process(context.Background(), models.PaymentEvent{
		TxnID: "txn-2", MemberID: "member#1", Kind: models.PaymentRenewal, Months: 1,
	})
	require.NoError(t, err)
	assert.Contains(t, notifier.admins, "Subscription renewed")
	assert.NotContains(t, notifier.admins, "New paying member")
}

func TestProcess_FirstPaymentCreditsReferrer(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{}
	svc := newService(repo, &fakeGateway{}, &fakeDeduper{}, notifier)

	referrerID := "member#ref"
	member := &models.Member{ID: "member#1", Email: "a@example.com", ReferrerID: &referrerID}
	referrer := &models.Member{ID: referrerID, DisplayTag: "carol", Email: "c@example.com"}
	paidUntil := time.Now().UTC().Add(90 * 24 * time.Hour)
	bonusUntil := time.Now().UTC().Add(14 * 24 * time.Hour)

	repo.On("GetMember", mock.Anything, "member#1").Return(member, nil)
	repo.On("GetMember", mock.Anything, referrerID).Return(referrer, nil)
	repo.On("ExtendPaid", mock.Anything, "member#1", mock.Anything, 90).Return(paidUntil, nil)
	repo.On("ExtendPaid", mock.Anything, referrerID, mock.Anything, 14).Return(bonusUntil, nil)

	err := svc.Process(context.Background(), models.PaymentEvent{
		TxnID: "txn-3", MemberID: "member#1", Kind: models.PaymentRenewal, Months: 3,
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)

	var referralJob bool
	for _, job := range notifier.jobs {
		if job.MemberID == referrerID {
			referralJob = true
		}
	}
	assert.True(t, referralJob, "referrer should be notified about the bonus")
}

func TestProcess_RepeatPaymentCreditsReferrer(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo, &fakeGateway{}, &fakeDeduper{}, &fakeNotifier{})

	referrerID := "member#ref"
	expired := time.Now().UTC().Add(-24 * time.Hour)
	member := &models.Member{ID: "member#1", Email: "a@example.com", ReferrerID: &referrerID, PaidUntil: &expired}
	referrer := &models.Member{ID: referrerID, DisplayTag: "carol", Email: "c@example.com"}
	paidUntil := time.Now().UTC().Add(30 * 24 * time.Hour)
	bonusUntil := time.Now().UTC().Add(7 * 24 * time.Hour)

	repo.On("GetMember", mock.Anything, "member#1").Return(member, nil)
	repo.On("GetMember", mock.Anything, referrerID).Return(referrer, nil)
	repo.On("ExtendPaid", mock.Anything, "member#1", mock.Anything, 30).Return(paidUntil, nil)
	repo.On("ExtendPaid", mock.Anything, referrerID, mock.Anything, 7).Return(bonusUntil, nil)

	err := svc.Process(context.Background(), models.PaymentEvent{
		TxnID: "txn-4", MemberID: "member#1", Kind: models.PaymentRenewal, Months: 1,
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestProcess_FailedRenewalRetriedOnRedelivery(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo, &fakeGateway{}, &fakeDeduper{}, &fakeNotifier{})

	member := &models.Member{ID: "member#1", Email: "a@example.com"}
	paidUntil := time.Now().UTC().Add(30 * 24 * time.Hour)
	repo.On("GetMember", mock.Anything, "member#1").Return(member, nil)
	repo.On("ExtendPaid", mock.Anything, "member#1", mock.Anything, 30).
		Return(time.Time{}, assert.AnError).Once()
	repo.On("ExtendPaid", mock.Anything, "member#1", mock.Anything, 30).
		Return(paidUntil, nil).Once()

	event := models.PaymentEvent{TxnID: "txn-retry", MemberID: "member#1", Kind: models.PaymentRenewal, Months: 1}
	require.Error(t, svc.Process(context.Background(), event))
	require.NoError(t, svc.Process(context.Background(), event))

	repo.AssertNumberOfCalls(t, "ExtendPaid", 2)
}

func TestProcess_PromoMarkedWhenEligible(t *testing.T) {
	repo := new(MockRepository)
	svc := newService(repo, &fakeGateway{}, &fakeDeduper{}, &fakeNotifier{})

	member := &models.Member{ID: "member#1", Email: "a@example.com", Origin: models.OriginInvite}
	paidUntil := time.Now().UTC().Add(30 * 24 * time.Hour)
	repo.On("GetMember", mock.Anything, "member#1").Return(member, nil)
	repo.On("MarkPromoUsed", mock.Anything, "member#1").Return(nil)
	repo.On("ExtendPaid", mock.Anything, "member#1", mock.Anything, 30).Return(paidUntil, nil)

	err := svc.Process(context.Background(), models.PaymentEvent{
		TxnID: "txn-5", MemberID: "member#1", Kind: models.PaymentRenewal, Months: 1, Promo: true,
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestProcess_PromoMisuseAlertsAdmin(t *testing.T) {
	repo := new(MockRepository)
	notifier := &fakeNotifier{}
	svc := newService(repo, &fakeGateway{}, &fakeDeduper{}, notifier)

	member := &models.Member{ID: "member#1", Email: "a@example.com", Origin: models.OriginInvite, UsedPromo: true}
	paidUntil := time.Now().UTC().Add(30 * 24 * time.Hour)
	repo.On("GetMember", mock.Anything, "member#1").Return(member, nil)
	repo.On("ExtendPaid", mock.Anything, "member#1", mock.Anything, 30).Return(paidUntil, nil)

	err := svc.Process(context.Background(), models.PaymentEvent{
		TxnID: "txn-6", MemberID: "member#1", Kind: models.PaymentRenewal, Months: 1, Promo: true,
	})
	require.NoError(t, err)
	assert.Contains(t, notifier.admins, "Promo price misuse")
	repo.AssertNotCalled(t, "MarkPromoUsed", mock.Anything, mock.Anything)
}

func TestProcess_LifetimePurchase(t *testing.T) {
	repo := new(MockRepository)
	gw := &fakeGateway{}
	notifier := &fakeNotifier{}
	svc := newService(repo, gw, &fakeDeduper{}, notifier)

	member := &models.Member{ID: "member#1", Email: "a@example.com"}
	repo.On("GetMember", mock.Anything, "member#1").Return(member, nil)
	repo.On("SetLifetime", mock.Anything, "member#1").Return(nil)

	err := svc.Process(context.Background(), models.PaymentEvent{
		TxnID: "txn-7", MemberID: "member#1", Kind: models.PaymentLifetime, Gross: "100.00",
	})
	require.NoError(t, err)
	repo.AssertExpectations(t)
	assert.Contains(t, gw.granted, "a@example.com")
	assert.Contains(t, notifier.admins, "Lifetime purchase")
}
