package domain

import "testing"

func TestNormalizeEventType(t *testing.T) {
	cases := map[string]EventType{
		"job_completed":  EventJobCompleted,
		"batch_complete": EventJobCompleted,
		"job_failed":     EventJobFailed,
		"batch_failed":   EventJobFailed,
		"new_job":        EventNewJob,
		"cancel_job":     EventJobCanceled,
		"job_canceled":   EventJobCanceled,
		"something_else": EventUnknown,
		"":               EventUnknown,
	}
	for raw, want := range cases {
		if got := NormalizeEventType(raw); got != want {
			t.Errorf("NormalizeEventType(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from   Status
		et     EventType
		wantTo Status
		wantOK bool
	}{
		{StatusProcessing, EventJobCompleted, StatusCompleted, true},
		{StatusProcessing, EventJobFailed, StatusFailed, true},
		{StatusProcessing, EventNewJob, StatusProcessing, false},
		{StatusProcessing, EventJobCanceled, StatusProcessing, false},
		{StatusQueued, EventJobCompleted, StatusQueued, false},
		{StatusCompleted, EventJobCompleted, StatusCompleted, false},
		{StatusFailed, EventJobFailed, StatusFailed, false},
		{StatusCanceled, EventJobCompleted, StatusCanceled, false},
	}
	for _, tt := range tests {
		to, ok := Transition(tt.from, tt.et)
		if to != tt.wantTo || ok != tt.wantOK {
			t.Errorf("Transition(%q, %q) = (%q, %v), want (%q, %v)", tt.from, tt.et, to, ok, tt.wantTo, tt.wantOK)
		}
	}
}

func TestDeadline(t *testing.T) {
	tests := []struct {
		name          string
		processSecs   int
		multiplier    float64
		durationMs    int64
		wantSeconds   int64
	}{
		{"no duration falls back to fixed", 300, 2.0, 0, 300},
		{"short audio still uses fixed floor", 5, 1.0, 1000, 5},
		{"long audio dominates", 300, 1.0, 600_000, 600},
		{"rounds up fractional seconds", 5, 1.0, 5_001, 6}, // ceil(5.001) -> 6, above fixed
		{"scenario 5 from spec", 5, 1.0, 1000, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Deadline(tt.processSecs, tt.multiplier, tt.durationMs); got != tt.wantSeconds {
				t.Errorf("Deadline(%d, %v, %d) = %d, want %d", tt.processSecs, tt.multiplier, tt.durationMs, got, tt.wantSeconds)
			}
		})
	}
}
