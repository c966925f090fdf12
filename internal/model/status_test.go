package model_test

import (
	"testing"

	"jobpulse/ingest-service/internal/model"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"PENDING", "PROCESSING", "COMPLETED", "PARTIAL", "FAILED"}
	for _, s := range valid {
		got, err := model.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	_, err := model.ParseStatus("RUNNING")
	if err == nil {
		t.Error("ParseStatus(\"RUNNING\") expected error, got nil")
	}
}

func TestParseStatus_EmptyString(t *testing.T) {
	_, err := model.ParseStatus("")
	if err == nil {
		t.Error("ParseStatus(\"\") expected error, got nil")
	}
}

// ── IsTerminal ─────────────────────────────────────────────────────────────

func TestIsTerminal(t *testing.T) {
	for _, s := range []model.Status{model.StatusCompleted, model.StatusPartial, model.StatusFailed} {
		if !model.IsTerminal(s) {
			t.Errorf("IsTerminal(%s) should return true", s)
		}
	}
	for _, s := range []model.Status{model.StatusPending, model.StatusProcessing} {
		if model.IsTerminal(s) {
			t.Errorf("IsTerminal(%s) should return false", s)
		}
	}
}

// ── IsTransitionAllowed — valid (forward) transitions ─────────────────────

func TestIsTransitionAllowed_ValidForward(t *testing.T) {
	cases := []struct {
		from model.Status
		to   model.Status
	}{
		{model.StatusPending, model.StatusProcessing},
		{model.StatusProcessing, model.StatusCompleted},
		{model.StatusProcessing, model.StatusPartial},
		{model.StatusProcessing, model.StatusFailed},
		{model.StatusPending, model.StatusFailed}, // unreadable before processing starts
	}
	for _, c := range cases {
		if !model.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

// ── IsTransitionAllowed — terminal states have no outgoing transitions ─────

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	terminals := []model.Status{model.StatusCompleted, model.StatusPartial, model.StatusFailed}
	targets := []model.Status{
		model.StatusPending, model.StatusProcessing,
		model.StatusCompleted, model.StatusPartial, model.StatusFailed,
	}
	for _, from := range terminals {
		for _, to := range targets {
			if model.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

// ── IsTransitionAllowed — skipping PROCESSING is forbidden ────────────────

func TestIsTransitionAllowed_SkipProcessing(t *testing.T) {
	for _, to := range []model.Status{model.StatusCompleted, model.StatusPartial} {
		if model.IsTransitionAllowed(model.StatusPending, to) {
			t.Errorf("IsTransitionAllowed(PENDING → %s) should be false (skip-level)", to)
		}
	}
}

// ── IsTransitionAllowed — backwards and self movements are forbidden ───────

func TestIsTransitionAllowed_BackwardsAndSelf(t *testing.T) {
	if model.IsTransitionAllowed(model.StatusProcessing, model.StatusPending) {
		t.Error("IsTransitionAllowed(PROCESSING → PENDING) should be false (backwards)")
	}
	all := []model.Status{
		model.StatusPending, model.StatusProcessing,
		model.StatusCompleted, model.StatusPartial, model.StatusFailed,
	}
	for _, s := range all {
		if model.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (self)", s, s)
		}
	}
}
