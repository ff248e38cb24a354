package domain

import (
	"testing"

	"govcon_outreach_backend/internal/scoring"
)

func TestTransitionOpen(t *testing.T) {
	cases := []struct {
		from      Stage
		wantStage Stage
		wantScore int
	}{
		{StageNew, StageContacted, 45},
		{StageContacted, StageEngaged, 45},
		{StageEngaged, StageEngaged, 45},
		{StageHot, StageHot, 45},
		{StageConverted, StageConverted, 45},
		{StageChurned, StageChurned, 40},
		{StageUnsubscribed, StageUnsubscribed, 40},
	}

	for _, tc := range cases {
		got := Transition(State{Stage: tc.from, Score: 40}, SignalOpen)
		if got.Next != tc.wantStage || got.Score != tc.wantScore {
			t.Errorf("open from %s = (%s, %d), want (%s, %d)", tc.from, got.Next, got.Score, tc.wantStage, tc.wantScore)
		}
	}
}

func TestTransitionClickCapsScore(t *testing.T) {
	got := Transition(State{Stage: StageContacted, Score: 95}, SignalClick)
	if got.Next != StageHot {
		t.Fatalf("expected hot, got %s", got.Next)
	}
	if got.Score != 100 {
		t.Fatalf("expected score capped at 100, got %d", got.Score)
	}
	if got.Priority != scoring.PriorityHigh {
		t.Fatalf("expected high priority, got %s", got.Priority)
	}
}

func TestTransitionClickNeverRegresses(t *testing.T) {
	got := Transition(State{Stage: StageConverted, Score: 100}, SignalClick)
	if got.Next != StageConverted {
		t.Fatalf("click moved converted contractor to %s", got.Next)
	}
	if got.Changed {
		t.Fatal("expected no change for converted contractor at max score")
	}
}

func TestTransitionSignupForcesConversion(t *testing.T) {
	for _, from := range []Stage{StageNew, StageContacted, StageHot} {
		got := Transition(State{Stage: from, Score: 12}, SignalSignup)
		if got.Next != StageConverted || got.Score != 100 || got.Priority != scoring.PriorityHigh {
			t.Errorf("signup from %s = %+v", from, got)
		}
		if !got.StageChanged(from) {
			t.Errorf("signup from %s should move the stage", from)
		}
	}
}

func TestTerminalStagesAbsorbEverySignal(t *testing.T) {
	for _, from := range []Stage{StageChurned, StageUnsubscribed} {
		for _, signal := range []Signal{SignalOpen, SignalClick, SignalSignup, SignalUnsubscribe, SignalTrialExpired} {
			got := Transition(State{Stage: from, Score: 30}, signal)
			if got.Next != from || got.Changed || got.StageChanged(from) {
				t.Errorf("%s on %s = %+v, want no change", signal, from, got)
			}
		}
	}
}

func TestTransitionUnsubscribeIsTerminal(t *testing.T) {
	got := Transition(State{Stage: StageHot, Score: 80}, SignalUnsubscribe)
	if got.Next != StageUnsubscribed || !got.Changed {
		t.Fatalf("unexpected outcome %+v", got)
	}

	again := Transition(State{Stage: StageUnsubscribed, Score: 80}, SignalUnsubscribe)
	if again.Changed {
		t.Fatal("second unsubscribe should be a no-op")
	}
}

func TestTransitionTrialExpiry(t *testing.T) {
	got := Transition(State{Stage: StageConverted, Score: 100}, SignalTrialExpired)
	if got.Next != StageChurned {
		t.Fatalf("expected churned, got %s", got.Next)
	}

	hot := Transition(State{Stage: StageHot, Score: 70}, SignalTrialExpired)
	if hot.Changed {
		t.Fatal("trial expiry must only affect converted contractors")
	}
}

// Engagement signals in any order never push a non-terminal contractor
// below the furthest stage already reached.
func TestEngagementSignalsAreMonotonic(t *testing.T) {
	sequences := [][]Signal{
		{SignalClick, SignalOpen, SignalOpen},
		{SignalOpen, SignalClick, SignalOpen},
		{SignalOpen, SignalOpen, SignalClick, SignalOpen},
		{SignalSignup, SignalOpen, SignalClick},
	}

	for _, seq := range sequences {
		state := State{Stage: StageNew}
		for _, signal := range seq {
			out := Transition(state, signal)
			if out.Next.Before(state.Stage) {
				t.Fatalf("sequence %v regressed from %s to %s", seq, state.Stage, out.Next)
			}
			if out.Score < 0 || out.Score > 100 {
				t.Fatalf("score out of range: %d", out.Score)
			}
			state = State{Stage: out.Next, Score: out.Score}
		}
	}
}

func TestSignalEmailStatus(t *testing.T) {
	if status, ok := SignalClick.EmailStatus(); !ok || status != "clicked" {
		t.Fatalf("unexpected click status %q", status)
	}
	if _, ok := SignalSignup.EmailStatus(); ok {
		t.Fatal("signup should not forward an email status")
	}
}
