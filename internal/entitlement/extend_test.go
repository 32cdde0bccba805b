package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/access-reconciler/internal/models"
)

func TestMonthsDays(t *testing.T) {
	assert.Equal(t, 30, MonthsDays(1))
	assert.Equal(t, 90, MonthsDays(3))
	assert.Equal(t, 360, MonthsDays(12))
}

func TestBonusDays(t *testing.T) {
	table := map[int]int{1: 7, 3: 14, 6: 30, 12: 60}

	assert.Equal(t, 7, BonusDays(table, 1))
	assert.Equal(t, 60, BonusDays(table, 12))
	assert.Equal(t, 0, BonusDays(table, 2))
	assert.Equal(t, 0, BonusDays(nil, 1))
}

func TestPromoEligible(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		member *models.Member
		want   bool
	}{
		{
			name:   "unknown member - eligible",
			member: nil,
			want:   true,
		},
		{
			name:   "invited member without history",
			member: &models.Member{ID: "1", Origin: models.OriginInvite},
			want:   true,
		},
		{
			name:   "synced member never eligible",
			member: &models.Member{ID: "1", Origin: models.OriginSync},
			want:   false,
		},
		{
			name:   "promo already used",
			member: &models.Member{ID: "1", Origin: models.OriginInvite, UsedPromo: true},
			want:   false,
		},
		{
			name:   "active trial blocks promo",
			member: &models.Member{ID: "1", Origin: models.OriginInvite, TrialEnd: ts(now.Add(time.Hour))},
			want:   false,
		},
		{
			name:   "active paid blocks promo",
			member: &models.Member{ID: "1", Origin: models.OriginInvite, PaidUntil: ts(now.AddDate(0, 1, 0))},
			want:   false,
		},
		{
			name:   "expired trial does not block promo",
			member: &models.Member{ID: "1", Origin: models.OriginInvite, TrialEnd: ts(now.Add(-time.Hour))},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PromoEligible(tt.member, now))
		})
	}
}
