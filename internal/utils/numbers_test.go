package utils

import "testing"

func TestThousands(t *testing.T) {
	cases := map[float64]string{
		0:         "0",
		999:       "999",
		10000:     "10,000",
		1234567.6: "1,234,568",
		-2500:     "-2,500",
	}
	for in, want := range cases {
		if got := Thousands(in); got != want {
			t.Errorf("Thousands(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(0.855); got != "85.5%" {
		t.Fatalf("Percent = %q", got)
	}
	if got := Percent(0.5); got != "50.0%" {
		t.Fatalf("Percent = %q", got)
	}
}
