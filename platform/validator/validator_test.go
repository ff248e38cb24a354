package validator

import "testing"

type codeFilter struct {
	Codes []string `validate:"omitempty,max=3,dive,naics"`
}

func TestNAICSTag(t *testing.T) {
	val := New()
	if err := val.Struct(codeFilter{Codes: []string{"23", "236220"}}); err != nil {
		t.Fatalf("expected valid codes: %v", err)
	}
	for _, bad := range []string{"2", "2362201", "23A"} {
		if err := val.Struct(codeFilter{Codes: []string{bad}}); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
