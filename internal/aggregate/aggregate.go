package aggregate

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxLimit caps aggregation result size after clamping.
	MaxLimit     = 5000
	DefaultLimit = 1000
)

// Dimension selects a grouping column, optionally bucketed by time.
type Dimension struct {
	Column     string `json:"column"`
	TimeBucket string `json:"time_bucket,omitempty"`
}

// Metric is an aggregate over a column. Type "count" over "*" (or an
// empty column) becomes COUNT(*).
type Metric struct {
	Column string `json:"column"`
	Type   string `json:"type"`
	Label  string `json:"label,omitempty"`
}

// Filter constrains rows before grouping. Values are always bound as
// positional parameters, never interpolated.
type Filter struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Spec describes a GROUP BY query declaratively; callers on this path
// never supply SQL text.
type Spec struct {
	ConnectionID string      `json:"connection_id"`
	WorkspaceID  string      `json:"workspace_id"`
	Table        string      `json:"table"`
	Dimensions   []Dimension `json:"dimensions,omitempty"`
	Metrics      []Metric    `json:"metrics"`
	Filters      []Filter    `json:"filters,omitempty"`
	Limit        int         `json:"limit,omitempty"`
}

var (
	timeBuckets = map[string]bool{
		"day":   true,
		"week":  true,
		"month": true,
		"year":  true,
	}
	metricTypes = map[string]bool{
		"count": true,
		"sum":   true,
		"avg":   true,
		"min":   true,
		"max":   true,
	}
	comparisonOperators = map[string]string{
		"=":  "=",
		"!=": "!=",
		">":  ">",
		"<":  "<",
		">=": ">=",
		"<=": "<=",
	}
	identifierStrip = regexp.MustCompile(`[^a-zA-Z0-9_.]`)
)

// Build renders the Spec into a GROUP BY statement with positionally
// bound filter values. Identifiers cannot be bound as parameters, so
// table and column names are stripped to [a-zA-Z0-9_.] before
// interpolation.
func Build(spec Spec) (string, []any, error) {
	table := SanitizeIdentifier(spec.Table)
	if table == "" {
		return "", nil, fmt.Errorf("table is required")
	}
	if len(spec.Metrics) == 0 {
		return "", nil, fmt.Errorf("at least one metric is required")
	}

	selectParts := make([]string, 0, len(spec.Dimensions)+len(spec.Metrics))
	groupParts := make([]string, 0, len(spec.Dimensions))

	for _, dim := range spec.Dimensions {
		column := SanitizeIdentifier(dim.Column)
		if column == "" {
			return "", nil, fmt.Errorf("dimension column is required")
		}
		if dim.TimeBucket == "" {
			selectParts = append(selectParts, column)
			groupParts = append(groupParts, column)
			continue
		}
		bucket := strings.ToLower(strings.TrimSpace(dim.TimeBucket))
		if !timeBuckets[bucket] {
			return "", nil, fmt.Errorf("invalid time bucket %q", dim.TimeBucket)
		}
		expr := fmt.Sprintf("DATE_TRUNC('%s', %s)", bucket, column)
		selectParts = append(selectParts, fmt.Sprintf("%s AS %s_bucket", expr, column))
		groupParts = append(groupParts, expr)
	}

	var orderLabel string
	for i, metric := range spec.Metrics {
		metricType := strings.ToLower(strings.TrimSpace(metric.Type))
		if !metricTypes[metricType] {
			return "", nil, fmt.Errorf("invalid metric type %q", metric.Type)
		}
		column := SanitizeIdentifier(metric.Column)

		var expr, label string
		if metricType == "count" && (column == "" || column == "*") {
			expr = "COUNT(*)"
			label = "count"
		} else {
			if column == "" {
				return "", nil, fmt.Errorf("metric column is required for %s", metricType)
			}
			expr = fmt.Sprintf("%s(%s)", strings.ToUpper(metricType), column)
			label = fmt.Sprintf("%s_%s", metricType, column)
		}
		if custom := SanitizeIdentifier(metric.Label); custom != "" {
			label = custom
		}
		selectParts = append(selectParts, fmt.Sprintf("%s AS %s", expr, label))
		if i == 0 {
			orderLabel = label
		}
	}

	args := make([]any, 0, len(spec.Filters))
	whereParts := make([]string, 0, len(spec.Filters))
	for _, filter := range spec.Filters {
		column := SanitizeIdentifier(filter.Column)
		if column == "" {
			return "", nil, fmt.Errorf("filter column is required")
		}
		operator := strings.TrimSpace(filter.Operator)
		if operator == "contains" {
			args = append(args, fmt.Sprintf("%%%v%%", filter.Value))
			whereParts = append(whereParts, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
			continue
		}
		// Unknown operators fall back to equality rather than failing
		// the whole query.
		op, ok := comparisonOperators[operator]
		if !ok {
			op = "="
		}
		args = append(args, filter.Value)
		whereParts = append(whereParts, fmt.Sprintf("%s %s $%d", column, op, len(args)))
	}

	limit := spec.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selectParts, ", "))
	b.WriteString(" FROM ")
	b.WriteString(table)
	if len(whereParts) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(whereParts, " AND "))
	}
	if len(groupParts) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupParts, ", "))
	}
	b.WriteString(fmt.Sprintf(" ORDER BY %s DESC", orderLabel))
	b.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	return b.String(), args, nil
}

// SanitizeIdentifier strips every character outside [a-zA-Z0-9_.]. A
// "*" metric column is the one exception, handled by the caller.
func SanitizeIdentifier(identifier string) string {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "*" {
		return "*"
	}
	return identifierStrip.ReplaceAllString(trimmed, "")
}
