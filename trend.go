package main

import (
	"fmt"
	"time"
)

// TrendSmoother maintains one exponentially smoothed score per target.
// It is the only stateful component; callers serialize updates for the
// same target (different targets need no coordination) and own loading
// and persisting the state.
type TrendSmoother struct {
	alpha float64
	state map[string]float64
}

// newTrendSmoother validates alpha and returns an empty smoother
func newTrendSmoother(alpha float64) (*TrendSmoother, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("ewma alpha must be in (0,1], got %v", alpha)
	}
	return &TrendSmoother{
		alpha: alpha,
		state: make(map[string]float64),
	}, nil
}

// Observe feeds one daily score for a target and returns the new
// smoothed value. The first observation initializes the state.
func (t *TrendSmoother) Observe(target string, score float64) float64 {
	prev, ok := t.state[target]
	if !ok {
		t.state[target] = score
		return score
	}
	smoothed := t.alpha*score + (1-t.alpha)*prev
	t.state[target] = smoothed
	return smoothed
}

// Smoothed returns the current smoothed value for a target
func (t *TrendSmoother) Smoothed(target string) (float64, bool) {
	v, ok := t.state[target]
	return v, ok
}

// LoadState replaces the smoother state, e.g. from persisted rows
func (t *TrendSmoother) LoadState(state map[string]float64) {
	t.state = make(map[string]float64, len(state))
	for k, v := range state {
		t.state[k] = v
	}
}

// Snapshot returns a copy of the state for persistence
func (t *TrendSmoother) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(t.state))
	for k, v := range t.state {
		out[k] = v
	}
	return out
}

// utcDayWindows splits [from, to) into UTC calendar-day windows, with
// the first and last clipped to the range. The daily rollup scores each
// of these windows independently before feeding the smoother.
func utcDayWindows(from, to time.Time) []Window {
	if !to.After(from) {
		return nil
	}
	from = from.UTC()
	to = to.UTC()

	var windows []Window
	cursor := from
	for cursor.Before(to) {
		dayEnd := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
		if dayEnd.After(to) {
			dayEnd = to
		}
		windows = append(windows, Window{Start: cursor, End: dayEnd})
		cursor = dayEnd
	}
	return windows
}

// dayKey formats a window start as the YYYY-MM-DD rollup key
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
