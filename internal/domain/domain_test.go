package domain

import (
	"errors"
	"testing"
)

func TestParseRequestEnums(t *testing.T) {
	if m, err := ParseMode(" Batch "); err != nil || m != ModeBatch {
		t.Fatalf("ParseMode() = %q, %v", m, err)
	}
	if _, err := ParseMode("album"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseMode(album) error = %v, want ErrValidation", err)
	}
	if f, err := ParseFormat("MP4"); err != nil || f != FormatMP4 {
		t.Fatalf("ParseFormat() = %q, %v", f, err)
	}
	if _, err := ParseFormat("flac"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseFormat(flac) error = %v, want ErrValidation", err)
	}
	if q, err := ParseQuality("320"); err != nil || q != Quality320 {
		t.Fatalf("ParseQuality() = %q, %v", q, err)
	}
	if _, err := ParseQuality("128"); !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseQuality(128) error = %v, want ErrValidation", err)
	}
}

func TestStatusParsing(t *testing.T) {
	tests := []struct {
		raw  string
		job  JobStatus
		item ItemStatus
	}{
		{"completed", JobStatusCompleted, ItemStatusSuccess},
		{"success", JobStatusCompleted, ItemStatusSuccess},
		{"FAILED", JobStatusFailed, ItemStatusFailed},
		{"error", JobStatusFailed, ItemStatusFailed},
		{"pending", JobStatusPending, ItemStatusPending},
		{"processing", JobStatusRunning, ItemStatusPending},
		{"", JobStatusRunning, ItemStatusPending},
	}
	for _, tc := range tests {
		if got := ParseJobStatus(tc.raw); got != tc.job {
			t.Errorf("ParseJobStatus(%q) = %q, want %q", tc.raw, got, tc.job)
		}
		if got := ParseItemStatus(tc.raw); got != tc.item {
			t.Errorf("ParseItemStatus(%q) = %q, want %q", tc.raw, got, tc.item)
		}
	}
}

func TestPhaseClassification(t *testing.T) {
	tests := []struct {
		phase    Phase
		terminal bool
		inFlight bool
	}{
		{PhaseIdle, false, false},
		{PhaseValidating, false, true},
		{PhaseSubmitting, false, true},
		{PhasePolling, false, true},
		{PhaseSucceeded, true, false},
		{PhasePartiallyFailed, true, false},
		{PhaseFailed, true, false},
	}
	for _, tc := range tests {
		if got := tc.phase.IsTerminal(); got != tc.terminal {
			t.Errorf("Phase(%s).IsTerminal() = %v, want %v", tc.phase, got, tc.terminal)
		}
		if got := tc.phase.InFlight(); got != tc.inFlight {
			t.Errorf("Phase(%s).InFlight() = %v, want %v", tc.phase, got, tc.inFlight)
		}
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := Session{
		Request: ConversionRequest{Mode: ModeBatch, URLs: []string{"https://youtu.be/a"}},
		Job:     &Job{ID: "job-1", Items: []ResultItem{{SourceURL: "https://youtu.be/a"}}},
	}
	cp := s.Clone()
	cp.Request.URLs[0] = "changed"
	cp.Job.Items[0].Status = ItemStatusFailed
	cp.Job.Progress = 50

	if s.Request.URLs[0] != "https://youtu.be/a" {
		t.Fatalf("clone shares request urls")
	}
	if s.Job.Items[0].Status != "" || s.Job.Progress != 0 {
		t.Fatalf("clone shares job state: %+v", s.Job)
	}
}

func TestSessionResults(t *testing.T) {
	single := Session{Item: &ResultItem{SourceURL: "u", Status: ItemStatusSuccess}}
	if got := single.Results(); len(got) != 1 || got[0].SourceURL != "u" {
		t.Fatalf("single Results() = %+v", got)
	}
	multi := Session{Job: &Job{Items: []ResultItem{{SourceURL: "a"}, {SourceURL: "b"}}}}
	if got := multi.Results(); len(got) != 2 {
		t.Fatalf("multi Results() = %+v", got)
	}
	if got := (Session{}).Results(); got != nil {
		t.Fatalf("empty Results() = %+v", got)
	}
}

func TestJobUpdateTerminal(t *testing.T) {
	tests := []struct {
		update JobUpdate
		want   bool
	}{
		{JobUpdate{Status: JobStatusRunning, Progress: 40}, false},
		{JobUpdate{Status: JobStatusPending}, false},
		{JobUpdate{Status: JobStatusCompleted, Progress: 80}, true},
		{JobUpdate{Status: JobStatusRunning, Progress: 100}, true},
		{JobUpdate{Status: JobStatusFailed}, true},
	}
	for _, tc := range tests {
		if got := tc.update.Terminal(); got != tc.want {
			t.Errorf("JobUpdate%+v.Terminal() = %v, want %v", tc.update, got, tc.want)
		}
	}
}
