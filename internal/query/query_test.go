package query

import "testing"

func TestStripTrailingSemicolons(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT 1;", "SELECT 1"},
		{"SELECT 1 ; ; ", "SELECT 1"},
		{"  SELECT 1\n;", "SELECT 1"},
		{";", ""},
	}
	for _, tc := range cases {
		if got := StripTrailingSemicolons(tc.in); got != tc.want {
			t.Fatalf("StripTrailingSemicolons(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFailure(t *testing.T) {
	result := Failure("boom", 12)
	if result.Success {
		t.Fatal("failure result must not be successful")
	}
	if result.Error != "boom" || result.ExecutionTimeMs != 12 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
