// Package normalize coerces extracted free-text dates to calendar dates and
// orders records newest first.
package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/jackzampolin/medsum/internal/record"
)

// NullPolicy places rows whose date could not be parsed.
type NullPolicy string

const (
	NullsLast  NullPolicy = "last"
	NullsFirst NullPolicy = "first"
)

// ParseNullPolicy validates a configured policy. Empty means NullsLast.
func ParseNullPolicy(s string) (NullPolicy, error) {
	switch NullPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", NullsLast:
		return NullsLast, nil
	case NullsFirst:
		return NullsFirst, nil
	}
	return "", fmt.Errorf("invalid null date policy %q (want %q or %q)", s, NullsLast, NullsFirst)
}

// Options controls date parsing and ordering.
type Options struct {
	Nulls NullPolicy
	// DayFirst reads ambiguous dates like 03/04/2021 as 3 April.
	DayFirst bool
}

// embedded dates inside longer text, e.g. "seen on 2021-11-30 by".
var (
	isoPattern     = regexp.MustCompile(`\b\d{4}-\d{1,2}-\d{1,2}\b`)
	numericPattern = regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}[./-]\d{4}\b`)
)

// ParseDate leniently parses a free-text date. ok is false for blanks and
// text with no recognizable date.
func ParseDate(raw string, dayFirst bool) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") || s == "-" {
		return time.Time{}, false
	}
	if t, ok := parse(s, dayFirst); ok {
		return t, true
	}
	for _, re := range []*regexp.Regexp{isoPattern, numericPattern} {
		if m := re.FindString(s); m != "" {
			if t, ok := parse(m, dayFirst); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func parse(s string, dayFirst bool) (time.Time, bool) {
	t, err := dateparse.ParseIn(s, time.UTC, dateparse.PreferMonthFirst(!dayFirst))
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

// Normalize parses each record's date and returns rows sorted by date
// descending. The sort is stable, so equal dates keep chunk order; rows
// with a null date are grouped according to opts.Nulls.
func Normalize(records []record.Record, opts Options) []record.Row {
	rows := make([]record.Row, len(records))
	for i, r := range records {
		rows[i] = record.Row{Record: r}
		if t, ok := ParseDate(r.Date, opts.DayFirst); ok {
			rows[i].ParsedDate = &t
		}
	}
	Sort(rows, opts.Nulls)
	return rows
}

// Sort orders rows by date descending in place.
func Sort(rows []record.Row, nulls NullPolicy) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].ParsedDate, rows[j].ParsedDate
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return nulls == NullsFirst
		case b == nil:
			return nulls != NullsFirst
		}
		return a.After(*b)
	})
}

// NullCount returns the number of rows without a parsed date.
func NullCount(rows []record.Row) int {
	n := 0
	for _, r := range rows {
		if r.ParsedDate == nil {
			n++
		}
	}
	return n
}
