package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

func ts(t time.Time) *time.Time { return &t }

func TestStateOf(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		member models.Member
		want   State
	}{
		{
			name:   "no timestamps",
			member: models.Member{ID: "1"},
			want:   StateNoAccess,
		},
		{
			name:   "active trial",
			member: models.Member{ID: "1", TrialEnd: ts(now.Add(48 * time.Hour))},
			want:   StateTrial,
		},
		{
			name:   "expired trial",
			member: models.Member{ID: "1", TrialEnd: ts(now.Add(-time.Hour))},
			want:   StateNoAccess,
		},
		{
			name:   "active paid",
			member: models.Member{ID: "1", PaidUntil: ts(now.AddDate(0, 1, 0))},
			want:   StatePayer,
		},
		{
			name: "payer dominates trial",
			member: models.Member{
				ID:        "1",
				TrialEnd:  ts(now.Add(24 * time.Hour)),
				PaidUntil: ts(now.AddDate(0, 1, 0)),
			},
			want: StatePayer,
		},
		{
			name: "lifetime dominates everything",
			member: models.Member{
				ID:        "1",
				Lifetime:  true,
				TrialEnd:  ts(now.Add(-time.Hour)),
				PaidUntil: ts(now.Add(-time.Hour)),
			},
			want: StateLifetime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(&tt.member, now))
		})
	}
}

func TestDecideAudit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		member     models.Member
		hasAccess  bool
		wantAction Action
		wantReason string
	}{
		{
			name:       "no access gained external access - start trial",
			member:     models.Member{ID: "1"},
			hasAccess:  true,
			wantAction: ActionStartTrial,
		},
		{
			name:       "trial lost external access - downgrade",
			member:     models.Member{ID: "1", TrialEnd: ts(now.Add(24 * time.Hour))},
			hasAccess:  false,
			wantAction: ActionDowngrade,
			wantReason: models.ReasonAccessLost,
		},
		{
			name:       "payer lost external access - downgrade",
			member:     models.Member{ID: "1", PaidUntil: ts(now.AddDate(0, 1, 0))},
			hasAccess:  false,
			wantAction: ActionDowngrade,
			wantReason: models.ReasonAccessLost,
		},
		{
			name:       "trial still has access - noop",
			member:     models.Member{ID: "1", TrialEnd: ts(now.Add(24 * time.Hour))},
			hasAccess:  true,
			wantAction: ActionNone,
		},
		{
			name:       "no access anywhere - noop",
			member:     models.Member{ID: "1"},
			hasAccess:  false,
			wantAction: ActionNone,
		},
		{
			name:       "lifetime never evaluated",
			member:     models.Member{ID: "1", Lifetime: true},
			hasAccess:  false,
			wantAction: ActionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DecideAudit(&tt.member, tt.hasAccess, now)
			assert.Equal(t, tt.wantAction, d.Action)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}

func TestDecideEnforce(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		member     models.Member
		wantAction Action
	}{
		{
			name:       "trial expired yesterday",
			member:     models.Member{ID: "1", TrialEnd: ts(now.AddDate(0, 0, -1))},
			wantAction: ActionExpireTrial,
		},
		{
			name:       "paid expired yesterday",
			member:     models.Member{ID: "1", PaidUntil: ts(now.AddDate(0, 0, -1))},
			wantAction: ActionExpirePaid,
		},
		{
			name:       "active trial untouched",
			member:     models.Member{ID: "1", TrialEnd: ts(now.Add(time.Hour))},
			wantAction: ActionNone,
		},
		{
			name: "active payer with stale trial end untouched",
			member: models.Member{
				ID:        "1",
				TrialEnd:  ts(now.AddDate(0, 0, -3)),
				PaidUntil: ts(now.AddDate(0, 1, 0)),
			},
			wantAction: ActionNone,
		},
		{
			name: "active trial with stale paid until untouched",
			member: models.Member{
				ID:        "1",
				TrialEnd:  ts(now.Add(24 * time.Hour)),
				PaidUntil: ts(now.AddDate(0, -1, 0)),
			},
			wantAction: ActionNone,
		},
		{
			name:       "lifetime immune regardless of timestamps",
			member:     models.Member{ID: "1", Lifetime: true, TrialEnd: ts(now.AddDate(0, 0, -5))},
			wantAction: ActionNone,
		},
		{
			name:       "boundary: trial ends exactly now - expired",
			member:     models.Member{ID: "1", TrialEnd: ts(now)},
			wantAction: ActionExpireTrial,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DecideEnforce(&tt.member, now)
			assert.Equal(t, tt.wantAction, d.Action)
		})
	}
}
