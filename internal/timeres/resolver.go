// Package timeres converts structured relative-time instructions into
// absolute instants. It performs arithmetic only: translating phrases like
// "tomorrow" into a delta is the oracle's job, constrained by the parser's
// instructions. The anchor's stated UTC offset is authoritative and is
// preserved literally in the result, even across DST transitions.
package timeres

import (
	"errors"
	"fmt"
	"time"
)

// Kind selects which delta shape applies.
type Kind int

const (
	KindMinutes Kind = iota + 1
	KindHours
	KindDays
	KindAbsolute
)

// Delta is a structured relative-time instruction: a forward offset from
// the anchor, or an absolute calendar date plus time of day interpreted in
// the anchor's offset.
type Delta struct {
	Kind Kind
	N    int // offset for KindMinutes/KindHours/KindDays

	// KindAbsolute fields.
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
}

func Minutes(n int) Delta { return Delta{Kind: KindMinutes, N: n} }
func Hours(n int) Delta   { return Delta{Kind: KindHours, N: n} }
func Days(n int) Delta    { return Delta{Kind: KindDays, N: n} }

func Absolute(year int, month time.Month, day, hour, minute int) Delta {
	return Delta{Kind: KindAbsolute, Year: year, Month: month, Day: day, Hour: hour, Minute: minute}
}

var (
	ErrNegativeOffset = errors.New("timeres: delta offset must not be negative")
	ErrZeroAnchor     = errors.New("timeres: anchor instant is zero")
)

// Resolve applies the delta to the anchor and returns an instant carrying
// the anchor's exact UTC offset. It never consults a wall clock: the
// anchor's date is authoritative, and date rollover across midnight follows
// from plain arithmetic in the anchor's fixed offset.
func Resolve(anchor time.Time, d Delta) (time.Time, error) {
	if anchor.IsZero() {
		return time.Time{}, ErrZeroAnchor
	}

	// Pin the anchor to its stated offset. A zoned anchor (IANA location)
	// would otherwise shift offsets when arithmetic crosses a DST boundary;
	// the contract is to keep the stated offset literally.
	_, offset := anchor.Zone()
	fixed := anchor.In(time.FixedZone(offsetName(offset), offset))

	switch d.Kind {
	case KindMinutes:
		if d.N < 0 {
			return time.Time{}, ErrNegativeOffset
		}
		return fixed.Add(time.Duration(d.N) * time.Minute), nil
	case KindHours:
		if d.N < 0 {
			return time.Time{}, ErrNegativeOffset
		}
		return fixed.Add(time.Duration(d.N) * time.Hour), nil
	case KindDays:
		if d.N < 0 {
			return time.Time{}, ErrNegativeOffset
		}
		return fixed.AddDate(0, 0, d.N), nil
	case KindAbsolute:
		if d.Year == 0 || d.Month < time.January || d.Month > time.December || d.Day < 1 || d.Day > 31 {
			return time.Time{}, fmt.Errorf("timeres: invalid absolute date %04d-%02d-%02d", d.Year, d.Month, d.Day)
		}
		if d.Hour < 0 || d.Hour > 23 || d.Minute < 0 || d.Minute > 59 {
			return time.Time{}, fmt.Errorf("timeres: invalid time of day %02d:%02d", d.Hour, d.Minute)
		}
		return time.Date(d.Year, d.Month, d.Day, d.Hour, d.Minute, 0, 0, fixed.Location()), nil
	default:
		return time.Time{}, fmt.Errorf("timeres: unknown delta kind %d", d.Kind)
	}
}

func offsetName(offset int) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, offset/3600, offset%3600/60)
}
