package service

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/creditcore/internal/alert/domain"
)

var one = decimal.NewFromInt(1)

// Crossed computes the thresholds crossed when the watched value moves from
// previous to current. It is a pure function of the alert's threshold set and
// the two observed values; all crossings of one evaluation belong to a single
// triggered alert. The result is ordered ascending by threshold value.
func Crossed(
	direction domain.Direction,
	thresholds []domain.AlertThreshold,
	previous, current decimal.Decimal,
) []domain.CrossedThreshold {
	if previous.Equal(current) {
		return nil
	}

	oneTime := make([]domain.AlertThreshold, 0, len(thresholds))
	recurring := make([]domain.AlertThreshold, 0, len(thresholds))
	for _, threshold := range thresholds {
		if threshold.Recurring {
			recurring = append(recurring, threshold)
		} else {
			oneTime = append(oneTime, threshold)
		}
	}

	crossed := make([]domain.CrossedThreshold, 0, 4)
	seen := make(map[string]struct{})
	appendCrossing := func(code string, value decimal.Decimal, isRecurring bool) {
		key := value.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		crossed = append(crossed, domain.CrossedThreshold{
			Code:      code,
			Value:     value,
			Recurring: isRecurring,
		})
	}

	for _, threshold := range oneTime {
		if contains(direction, previous, current, threshold.Value) {
			appendCrossing(threshold.Code, threshold.Value, false)
		}
	}

	for _, threshold := range recurring {
		step := threshold.Value.Abs()
		if step.IsZero() {
			continue
		}
		anchor := recurringAnchor(oneTime, direction, previous)
		for _, point := range gridCrossings(direction, anchor, step, previous, current) {
			appendCrossing(threshold.Code, point, true)
		}
	}

	sort.Slice(crossed, func(i, j int) bool {
		return crossed[i].Value.LessThan(crossed[j].Value)
	})
	return crossed
}

// contains reports whether the observation interval strictly contains the
// value in the direction of travel. The boundary on the current side is
// inclusive so a value landing exactly on a threshold fires.
func contains(direction domain.Direction, previous, current, value decimal.Decimal) bool {
	if direction == domain.DirectionIncreasing {
		return previous.LessThan(value) && value.LessThanOrEqual(current)
	}
	return previous.GreaterThan(value) && value.GreaterThanOrEqual(current)
}

// recurringAnchor picks the one-time threshold the repeating grid hangs off:
// the value nearest to the starting point on the far side of the travel
// direction. Without any one-time threshold the grid anchors at zero, the
// natural origin of the metric.
func recurringAnchor(oneTime []domain.AlertThreshold, direction domain.Direction, previous decimal.Decimal) decimal.Decimal {
	if len(oneTime) == 0 {
		return decimal.Zero
	}

	var best decimal.Decimal
	found := false
	for _, threshold := range oneTime {
		onFarSide := threshold.Value.GreaterThanOrEqual(previous)
		if direction == domain.DirectionIncreasing {
			onFarSide = threshold.Value.LessThanOrEqual(previous)
		}
		if !onFarSide {
			continue
		}
		closer := threshold.Value.LessThan(best)
		if direction == domain.DirectionIncreasing {
			closer = threshold.Value.GreaterThan(best)
		}
		if !found || closer {
			best = threshold.Value
			found = true
		}
	}
	if found {
		return best
	}

	// All one-time thresholds sit inside or past the interval; anchor on the
	// outermost one so the grid stays aligned with the configured set.
	best = oneTime[0].Value
	for _, threshold := range oneTime[1:] {
		outer := threshold.Value.GreaterThan(best)
		if direction == domain.DirectionIncreasing {
			outer = threshold.Value.LessThan(best)
		}
		if outer {
			best = threshold.Value
		}
	}
	return best
}

// gridCrossings returns every grid point anchor ∓ k·step, k ≥ 1, inside the
// observation interval. Negative grid points are valid and fire like any
// other.
func gridCrossings(direction domain.Direction, anchor, step, previous, current decimal.Decimal) []decimal.Decimal {
	var points []decimal.Decimal

	if direction == domain.DirectionIncreasing {
		if current.LessThanOrEqual(previous) {
			return nil
		}
		// First k with anchor + k·step > previous.
		k := previous.Sub(anchor).Div(step).Floor().Add(one)
		if k.LessThan(one) {
			k = one
		}
		for {
			point := anchor.Add(step.Mul(k))
			if point.GreaterThan(current) {
				break
			}
			if point.GreaterThan(previous) {
				points = append(points, point)
			}
			k = k.Add(one)
		}
		return points
	}

	if current.GreaterThanOrEqual(previous) {
		return nil
	}
	// First k with anchor − k·step < previous.
	k := anchor.Sub(previous).Div(step).Floor().Add(one)
	if k.LessThan(one) {
		k = one
	}
	for {
		point := anchor.Sub(step.Mul(k))
		if point.LessThan(current) {
			break
		}
		if point.LessThan(previous) {
			points = append(points, point)
		}
		k = k.Add(one)
	}
	return points
}
