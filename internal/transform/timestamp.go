// Package transform implements the timestamp anonymization engine:
// deterministic reduction, bounded random generation, and ordered
// redistribution of commit timestamps.
package transform

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/gitprivacy/git-privacy/pkg/errclass"
)

// GitFormat is the timestamp form git uses in author/committer dates.
const GitFormat = "2006-01-02 15:04:05 -0700"

// Mode selects the anonymization strategy for new commits.
type Mode string

const (
	ModeReduce Mode = "reduce"
	ModeRandom Mode = "random"
)

// ParseMode parses a mode name from configuration text.
func ParseMode(text string) (Mode, error) {
	switch Mode(text) {
	case ModeReduce, ModeRandom:
		return Mode(text), nil
	}
	return "", errclass.ErrConfig.WithMessagef("unknown mode %q", text)
}

// Directive names a timestamp subfield to zero out.
//
// Each directive truncates its field and every finer field, so a reduced
// timestamp never reorders relative to another reduced timestamp.
type Directive byte

const (
	DirectiveSeconds Directive = 's' // truncate to the minute
	DirectiveMinutes Directive = 'm' // truncate to the hour
	DirectiveHours   Directive = 'h' // truncate to the day
	DirectiveDay     Directive = 'd' // truncate to the month
	DirectiveMonth   Directive = 'M' // truncate to the year
)

// Pattern is an ordered set of reduction directives.
type Pattern []Directive

// ParsePattern parses a comma-separated directive string such as "s" or "s,m".
func ParsePattern(text string) (Pattern, error) {
	if text == "" {
		return nil, nil
	}
	var p Pattern
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if len(part) != 1 {
			return nil, errclass.ErrUnsupportedPattern.WithMessagef("unknown directive %q", part)
		}
		d := Directive(part[0])
		switch d {
		case DirectiveSeconds, DirectiveMinutes, DirectiveHours, DirectiveDay, DirectiveMonth:
			p = append(p, d)
		default:
			return nil, errclass.ErrUnsupportedPattern.WithMessagef("unknown directive %q", part)
		}
	}
	return p, nil
}

// String renders the pattern back to its configuration form.
func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, d := range p {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}

// Reduce applies each directive in pattern order, zeroing the named
// subfields. Applying a pattern twice equals applying it once, and reducing
// never changes the relative order of two distinct instants; values that
// differ only below the pattern's granularity collapse to the same output.
// The timestamp's UTC offset is preserved.
func Reduce(t time.Time, p Pattern) time.Time {
	for _, d := range p {
		t = zero(t, d)
	}
	return t
}

func zero(t time.Time, d Directive) time.Time {
	year, month, day := t.Date()
	hour, min, _ := t.Clock()
	loc := t.Location()
	switch d {
	case DirectiveSeconds:
		return time.Date(year, month, day, hour, min, 0, 0, loc)
	case DirectiveMinutes:
		return time.Date(year, month, day, hour, 0, 0, 0, loc)
	case DirectiveHours:
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	case DirectiveDay:
		return time.Date(year, month, 1, 0, 0, 0, 0, loc)
	case DirectiveMonth:
		return time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	}
	return t
}

// Parse reads a timestamp in git's date form or RFC 3339.
func Parse(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.Parse(GitFormat, text); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}
	return time.Time{}, errclass.ErrFormat.WithMessagef("unparseable timestamp %q", text)
}

// Format renders a timestamp in git's date form.
func Format(t time.Time) string {
	return t.Format(GitFormat)
}

// Bounds of the sub-day window used when limit is set. Keeping generated
// timestamps inside ordinary working hours avoids revealing off-hours
// activity.
const (
	limitWindowStartHour = 9
	limitWindowEndHour   = 18
)

// NextTimestamp computes the obscured timestamp a new commit will carry.
//
// In reduce mode it equals Reduce(now, pattern). In random mode it draws
// uniformly within now's day, bounded to the working-hours window when limit
// is set, preserving now's UTC offset. The result never regresses before
// floor, the latest timestamp already recorded on the current branch tip;
// pass the zero time when the branch has no commits.
func NextTimestamp(mode Mode, pattern Pattern, limit bool, now, floor time.Time) time.Time {
	var next time.Time
	switch mode {
	case ModeRandom:
		next = randomInDay(now, limit)
	default:
		next = Reduce(now, pattern)
	}
	if !floor.IsZero() && next.Before(floor) {
		return floor
	}
	return next
}

func randomInDay(now time.Time, limit bool) time.Time {
	year, month, day := now.Date()
	loc := now.Location()

	startHour, endHour := 0, 24
	if limit {
		startHour, endHour = limitWindowStartHour, limitWindowEndHour
	}
	start := time.Date(year, month, day, startHour, 0, 0, 0, loc)
	window := time.Duration(endHour-startHour) * time.Hour

	return start.Add(time.Duration(rand.Int64N(int64(window / time.Second))) * time.Second)
}

// Distribute returns exactly count timestamps evenly spaced across
// [start, end], non-decreasing, with the first equal to start and the last
// equal to end. count == 1 yields [start].
func Distribute(start, end time.Time, count int) ([]time.Time, error) {
	if count < 1 {
		return nil, errclass.ErrRange.WithMessagef("count must be positive, got %d", count)
	}
	if end.Before(start) {
		return nil, errclass.ErrRange.WithMessagef("end %s precedes start %s", Format(end), Format(start))
	}
	if count == 1 {
		return []time.Time{start}, nil
	}

	step := end.Sub(start) / time.Duration(count-1)
	out := make([]time.Time, count)
	for i := range out {
		out[i] = start.Add(step * time.Duration(i))
	}
	// The integer step may round down; the endpoints are exact by contract.
	out[count-1] = end
	return out, nil
}
