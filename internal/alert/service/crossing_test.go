package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditcore/internal/alert/domain"
	"github.com/stretchr/testify/require"
)

func threshold(code string, value int64, recurring bool) domain.AlertThreshold {
	return domain.AlertThreshold{
		Code:      code,
		Value:     decimal.NewFromInt(value),
		Recurring: recurring,
	}
}

func values(crossed []domain.CrossedThreshold) []string {
	if len(crossed) == 0 {
		return nil
	}
	out := make([]string, 0, len(crossed))
	for _, c := range crossed {
		out = append(out, c.Value.String())
	}
	return out
}

func TestCrossed(t *testing.T) {
	tests := []struct {
		name       string
		direction  domain.Direction
		thresholds []domain.AlertThreshold
		previous   int64
		current    int64
		want       []string
	}{
		{
			name:       "no threshold in interval",
			direction:  domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{threshold("low", 50, false)},
			previous:   90,
			current:    70,
			want:       nil,
		},
		{
			name:       "single crossing",
			direction:  domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{threshold("low", 50, false)},
			previous:   70,
			current:    45,
			want:       []string{"50"},
		},
		{
			name:      "large drop crosses several at once ascending",
			direction: domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{
				threshold("high", 90, false),
				threshold("mid", 70, false),
				threshold("low", 50, false),
			},
			previous: 95,
			current:  40,
			want:     []string{"50", "70", "90"},
		},
		{
			name:       "landing exactly on a threshold fires",
			direction:  domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{threshold("low", 50, false)},
			previous:   60,
			current:    50,
			want:       []string{"50"},
		},
		{
			name:       "starting on a threshold does not refire",
			direction:  domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{threshold("low", 50, false)},
			previous:   50,
			current:    40,
			want:       nil,
		},
		{
			name:      "recurring grid hangs off nearest far-side one-time",
			direction: domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{
				threshold("top", 80, false),
				threshold("every", 10, true),
			},
			previous: 65,
			current:  45,
			want:     []string{"50", "60"},
		},
		{
			name:      "recurring grid anchors at zero without one-time thresholds",
			direction: domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{
				threshold("every", 30, true),
			},
			previous: 10,
			current:  -35,
			want:     []string{"-30"},
		},
		{
			name:      "positive threshold fires on the way down",
			direction: domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{
				threshold("zeroish", 50, false),
				threshold("overdrawn", -50, false),
			},
			previous: 100,
			current:  0,
			want:     []string{"50"},
		},
		{
			name:      "negative one-time threshold",
			direction: domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{
				threshold("zeroish", 50, false),
				threshold("overdrawn", -50, false),
			},
			previous: 0,
			current:  -55,
			want:     []string{"-50"},
		},
		{
			name:      "grid extends below zero",
			direction: domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{
				threshold("every", 25, true),
			},
			previous: 10,
			current:  -60,
			want:     []string{"-50", "-25"},
		},
		{
			name:      "grid point coinciding with one-time reports once",
			direction: domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{
				threshold("top", 100, false),
				threshold("mid", 50, false),
				threshold("every", 50, true),
			},
			previous: 110,
			current:  40,
			want:     []string{"50", "100"},
		},
		{
			name:       "increasing usage crosses upward",
			direction:  domain.DirectionIncreasing,
			thresholds: []domain.AlertThreshold{threshold("budget", 100, false)},
			previous:   90,
			current:    110,
			want:       []string{"100"},
		},
		{
			name:       "increasing does not fire on decrease",
			direction:  domain.DirectionIncreasing,
			thresholds: []domain.AlertThreshold{threshold("budget", 100, false)},
			previous:   110,
			current:    90,
			want:       nil,
		},
		{
			name:       "no movement",
			direction:  domain.DirectionDecreasing,
			thresholds: []domain.AlertThreshold{threshold("low", 50, false)},
			previous:   50,
			current:    50,
			want:       nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Crossed(
				tc.direction,
				tc.thresholds,
				decimal.NewFromInt(tc.previous),
				decimal.NewFromInt(tc.current),
			)
			require.Equal(t, tc.want, values(got))
		})
	}
}

func TestCrossedSnapshotsGridPoint(t *testing.T) {
	crossed := Crossed(
		domain.DirectionDecreasing,
		[]domain.AlertThreshold{
			threshold("top", 30, false),
			threshold("every", 10, true),
		},
		decimal.NewFromInt(25),
		decimal.NewFromInt(15),
	)
	require.Len(t, crossed, 1)
	require.True(t, crossed[0].Recurring)
	require.Equal(t, "every", crossed[0].Code)
	// The snapshot holds the crossed grid point, not the configured step.
	require.Equal(t, "20", crossed[0].Value.String())
}
