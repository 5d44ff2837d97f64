package factory

import "testing"

func TestPriorityZeroValueIsNormal(t *testing.T) {
	var p Priority
	if p != PriorityNormal {
		t.Fatalf("zero value Priority = %v, want PriorityNormal", p)
	}
	if (CreateTask{}).Priority != PriorityNormal {
		t.Fatal("CreateTask{} must default to PriorityNormal")
	}
}

func TestPriorityOrdering(t *testing.T) {
	levels := []Priority{PriorityLowest, PriorityLow, PriorityNormal, PriorityHigh, PriorityHighest}
	for i := 1; i < len(levels); i++ {
		if levels[i] <= levels[i-1] {
			t.Fatalf("%v is not greater than %v", levels[i], levels[i-1])
		}
	}
}

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{
		"lowest":  PriorityLowest,
		"Low":     PriorityLow,
		"":        PriorityNormal,
		"normal":  PriorityNormal,
		"HIGH":    PriorityHigh,
		"highest": PriorityHighest,
		"bogus":   PriorityNormal,
	}
	for input, want := range cases {
		if got := ParsePriority(input); got != want {
			t.Errorf("ParsePriority(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestPriorityString(t *testing.T) {
	if PriorityHighest.String() != "highest" {
		t.Fatalf("got %q", PriorityHighest.String())
	}
	if Priority(42).String() != "normal" {
		t.Fatal("unrecognized priority value must stringify as normal")
	}
}
