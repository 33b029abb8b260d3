package aggregate

import (
	"reflect"
	"testing"
)

func TestBuildGroupedTimeBucketQuery(t *testing.T) {
	spec := Spec{
		ConnectionID: "conn-1",
		Table:        "orders",
		Dimensions: []Dimension{
			{Column: "region"},
			{Column: "created_at", TimeBucket: "month"},
		},
		Metrics: []Metric{
			{Type: "count"},
			{Column: "total", Type: "sum"},
		},
		Filters: []Filter{
			{Column: "status", Operator: "=", Value: "complete"},
		},
	}

	sqlText, args, err := Build(spec)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	want := "SELECT region, DATE_TRUNC('month', created_at) AS created_at_bucket, COUNT(*) AS count, SUM(total) AS sum_total " +
		"FROM orders WHERE status = $1 GROUP BY region, DATE_TRUNC('month', created_at) ORDER BY count DESC LIMIT 1000"
	if sqlText != want {
		t.Fatalf("unexpected sql:\n got %s\nwant %s", sqlText, want)
	}
	if !reflect.DeepEqual(args, []any{"complete"}) {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestBuildBindsFilterValues(t *testing.T) {
	// A value like O'Brien never appears in the statement text; it is
	// carried as a bound parameter.
	spec := Spec{
		Table:   "customers",
		Metrics: []Metric{{Type: "count"}},
		Filters: []Filter{
			{Column: "last_name", Operator: "contains", Value: "O'Brien"},
			{Column: "age", Operator: ">=", Value: 21},
		},
	}

	sqlText, args, err := Build(spec)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	want := "SELECT COUNT(*) AS count FROM customers WHERE last_name ILIKE $1 AND age >= $2 ORDER BY count DESC LIMIT 1000"
	if sqlText != want {
		t.Fatalf("unexpected sql: %s", sqlText)
	}
	if !reflect.DeepEqual(args, []any{"%O'Brien%", 21}) {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestBuildUnknownOperatorFallsBackToEquality(t *testing.T) {
	spec := Spec{
		Table:   "orders",
		Metrics: []Metric{{Type: "count"}},
		Filters: []Filter{
			{Column: "status", Operator: "~~", Value: "open"},
		},
	}

	sqlText, args, err := Build(spec)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	want := "SELECT COUNT(*) AS count FROM orders WHERE status = $1 ORDER BY count DESC LIMIT 1000"
	if sqlText != want {
		t.Fatalf("unexpected sql: %s", sqlText)
	}
	if !reflect.DeepEqual(args, []any{"open"}) {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestBuildClampsLimit(t *testing.T) {
	spec := Spec{
		Table:   "orders",
		Metrics: []Metric{{Type: "count"}},
		Limit:   999999,
	}
	sqlText, _, err := Build(spec)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	want := "SELECT COUNT(*) AS count FROM orders ORDER BY count DESC LIMIT 5000"
	if sqlText != want {
		t.Fatalf("unexpected sql: %s", sqlText)
	}
}

func TestBuildCustomMetricLabel(t *testing.T) {
	spec := Spec{
		Table: "orders",
		Metrics: []Metric{
			{Column: "total", Type: "avg", Label: "avg order; DROP TABLE x"},
		},
	}
	sqlText, _, err := Build(spec)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	// The label is sanitized down to identifier characters.
	want := "SELECT AVG(total) AS avgorderDROPTABLEx FROM orders ORDER BY avgorderDROPTABLEx DESC LIMIT 1000"
	if sqlText != want {
		t.Fatalf("unexpected sql: %s", sqlText)
	}
}

func TestBuildRejectsInvalidSpecs(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
	}{
		{"missing table", Spec{Metrics: []Metric{{Type: "count"}}}},
		{"no metrics", Spec{Table: "orders"}},
		{"bad metric type", Spec{Table: "orders", Metrics: []Metric{{Column: "total", Type: "median"}}}},
		{"bad time bucket", Spec{Table: "orders", Metrics: []Metric{{Type: "count"}}, Dimensions: []Dimension{{Column: "ts", TimeBucket: "decade"}}}},
		{"metric column required", Spec{Table: "orders", Metrics: []Metric{{Type: "sum"}}}},
		{"filter column required", Spec{Table: "orders", Metrics: []Metric{{Type: "count"}}, Filters: []Filter{{Operator: "=", Value: 1}}}},
	}
	for _, tc := range cases {
		if _, _, err := Build(tc.spec); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"orders", "orders"},
		{"public.orders", "public.orders"},
		{"orders; DROP TABLE x", "ordersDROPTABLEx"},
		{"  region  ", "region"},
		{"*", "*"},
		{"col-name", "colname"},
	}
	for _, tc := range cases {
		if got := SanitizeIdentifier(tc.in); got != tc.want {
			t.Fatalf("SanitizeIdentifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
