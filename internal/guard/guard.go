package guard

import (
	"fmt"
	"regexp"
	"strings"
)

// denylist covers every statement keyword that can mutate data or
// schema. Matching is word-boundary and case-insensitive over the raw
// text, not grammar-aware: a SELECT whose string literal mentions
// "update" is rejected too. That false-positive cost is accepted so a
// statement is never executed if it even looks like it writes.
var denylist = []string{
	"DROP",
	"DELETE",
	"UPDATE",
	"INSERT",
	"ALTER",
	"TRUNCATE",
	"GRANT",
	"CREATE",
	"REVOKE",
	"EXEC",
	"EXECUTE",
}

var denyPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(denylist, "|") + `)\b`)

// Violation reports a denied statement. It is always surfaced as a
// structured failure, never as a panic.
type Violation struct {
	Keyword string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("security violation: statement contains forbidden keyword %q. Only SELECT queries are allowed", v.Keyword)
}

// Check returns nil when the statement passes the denylist, or a
// *Violation naming the first forbidden keyword found.
func Check(sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return &Violation{Keyword: ""}
	}
	if match := denyPattern.FindString(sqlText); match != "" {
		return &Violation{Keyword: strings.ToUpper(match)}
	}
	return nil
}
