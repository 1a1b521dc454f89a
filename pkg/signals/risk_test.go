package signals

import (
	"context"
	"testing"

	"github.com/chris/payment-decisions/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 0},
		{"a", 97},
		{"ab", 3105},
		{"c|é", 99216},
		// Characters outside the BMP count as two UTF-16 code units.
		{"x|😀", 5466983},
		// Wraps past 2^32.
		{"00000000-0000-0000-0000-000000000001|payee-2", 2472985138},
		{"11111111-1111-1111-1111-111111111111|payee-1", 452035632},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Hash(tt.in))
		})
	}
}

func TestHashRiskSource(t *testing.T) {
	src := HashRiskSource{}
	ctx := context.Background()

	tests := []struct {
		name     string
		customer string
		payee    string
		want     models.RiskSignals
	}{
		{
			name:     "Two Disputes",
			customer: "11111111-1111-1111-1111-111111111111",
			payee:    "payee-1",
			want:     models.RiskSignals{RecentDisputes: 2, DeviceChange: true, VelocityScore: 32},
		},
		{
			name:     "One Dispute",
			customer: "11111111-1111-1111-1111-111111111111",
			payee:    "payee-2",
			want:     models.RiskSignals{RecentDisputes: 1, DeviceChange: true, VelocityScore: 33},
		},
		{
			name:     "No Disputes",
			customer: "11111111-1111-1111-1111-111111111111",
			payee:    "acme",
			want:     models.RiskSignals{RecentDisputes: 0, DeviceChange: false, VelocityScore: 69},
		},
		{
			name:     "High Bit Set",
			customer: "00000000-0000-0000-0000-000000000001",
			payee:    "payee-2",
			want:     models.RiskSignals{RecentDisputes: 1, DeviceChange: false, VelocityScore: 37},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.RiskSignals(ctx, tt.customer, tt.payee)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("Deterministic", func(t *testing.T) {
		first, _ := src.RiskSignals(ctx, "c", "p")
		second, _ := src.RiskSignals(ctx, "c", "p")
		assert.Equal(t, first, second)
	})

	t.Run("Ranges", func(t *testing.T) {
		for _, payee := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
			got, _ := src.RiskSignals(ctx, "customer", payee)
			assert.Contains(t, []int{0, 1, 2}, got.RecentDisputes)
			assert.GreaterOrEqual(t, got.VelocityScore, 0)
			assert.LessOrEqual(t, got.VelocityScore, 100)
		}
	})
}
