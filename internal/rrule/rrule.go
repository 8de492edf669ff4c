// Package rrule computes occurrence dates for recurring anchor events from
// RFC 5545 RRULE strings.
package rrule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Parse parses an RRULE string anchored at dtstart. A leading "RRULE:"
// prefix is accepted.
func Parse(ruleStr string, dtstart time.Time) (*rrule.RRule, error) {
	ruleStr = strings.TrimPrefix(ruleStr, "RRULE:")

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE: %w", err)
	}

	opt.Dtstart = dtstart
	return rrule.NewRRule(*opt)
}

// NextOccurrence returns the first occurrence at or after the given time,
// or nil when the rule has no further occurrences.
func NextOccurrence(ruleStr string, dtstart, after time.Time) (*time.Time, error) {
	rule, err := Parse(ruleStr, dtstart)
	if err != nil {
		return nil, err
	}

	next := rule.After(after, true)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}

// IsRecurring checks whether the string denotes an actual recurrence.
func IsRecurring(ruleStr string) bool {
	return ruleStr != "" && strings.Contains(strings.ToUpper(ruleStr), "FREQ=")
}
