// Package temporal converts natural-language time expressions into absolute
// instants, intervals or recurrence rules relative to a reference timestamp.
// Resolution is a pure function of (expression, reference time, options); no
// global clock state is read or mutated and all results carry the reference
// timestamp's location.
package temporal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/planmesh/core"
)

// Kind discriminates resolution results.
type Kind string

const (
	// KindInstant is a single point in time.
	KindInstant Kind = "instant"
	// KindInterval is a half-open [Start, End) interval.
	KindInterval Kind = "interval"
	// KindRecurring is a recurrence rule, not expanded eagerly.
	KindRecurring Kind = "recurring"
)

// Rule describes a recurring pattern without expanding occurrences.
type Rule struct {
	Frequency string       `json:"frequency"` // "daily", "weekly", "monthly"
	Weekday   time.Weekday `json:"weekday,omitempty"`
	Interval  int          `json:"interval"` // every N periods, >= 1
}

// Resolution is the outcome of resolving one temporal expression.
type Resolution struct {
	Kind  Kind      `json:"kind"`
	At    time.Time `json:"at,omitempty"`    // KindInstant
	Start time.Time `json:"start,omitempty"` // KindInterval
	End   time.Time `json:"end,omitempty"`   // KindInterval
	Rule  Rule      `json:"rule,omitempty"`  // KindRecurring
	Text  string    `json:"text"`            // original expression
}

// Deadline returns the single instant that best represents the resolution for
// urgency checks: the instant itself, or the start of an interval. Recurring
// rules have no deadline (ok == false).
func (r Resolution) Deadline() (time.Time, bool) {
	switch r.Kind {
	case KindInstant:
		return r.At, true
	case KindInterval:
		return r.Start, true
	}
	return time.Time{}, false
}

// Options tunes fuzzy parts-of-day intervals, expressed as hours [start, end).
type Options struct {
	MorningStart   int
	MorningEnd     int
	AfternoonStart int
	AfternoonEnd   int
	EveningStart   int
	EveningEnd     int
}

// Resolver resolves temporal expressions. The zero-config resolver uses
// morning 8-12, afternoon 12-17, evening 17-22.
type Resolver struct {
	opts Options
}

// NewResolver constructs a Resolver with optional overrides.
func NewResolver(optFns ...func(o *Options)) *Resolver {
	opts := Options{
		MorningStart:   8,
		MorningEnd:     12,
		AfternoonStart: 12,
		AfternoonEnd:   17,
		EveningStart:   17,
		EveningEnd:     22,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Resolver{opts: opts}
}

var (
	reInRelative  = regexp.MustCompile(`^in\s+(\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\s+(minute|hour|day|week)s?$`)
	reClock12     = regexp.MustCompile(`^(?:at\s+)?(\d{1,2}):(\d{2})\s*(am|pm)$`)
	reClock24     = regexp.MustCompile(`^(?:at\s+)?(\d{1,2}):(\d{2})$`)
	reHour12      = regexp.MustCompile(`^(?:at\s+)?(\d{1,2})\s*(am|pm)$`)
	reISODate     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	reEvery       = regexp.MustCompile(`^every\s+(day|week|month|monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
	rePartOfDay   = regexp.MustCompile(`^(?:(this|today|tomorrow)\s+)?(morning|afternoon|evening|tonight)$`)
	reWeekdayExpr = regexp.MustCompile(`^(?:(this|next|on)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)$`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12,
}

// Resolve converts a text span into a Resolution relative to ref. The ref
// timestamp's location determines the offset of all returned times. Failure
// to parse yields core.ErrUnresolvedTemporalExpression.
func (r *Resolver) Resolve(span string, ref time.Time) (Resolution, error) {
	text := strings.ToLower(strings.TrimSpace(span))
	if text == "" {
		return Resolution{}, fmt.Errorf("%w: empty expression", core.ErrUnresolvedTemporalExpression)
	}

	day := startOfDay(ref)

	switch text {
	case "now", "right now", "immediately", "asap":
		return Resolution{Kind: KindInstant, At: ref, Text: span}, nil
	case "today":
		return dayInterval(day, span), nil
	case "tomorrow":
		return dayInterval(day.AddDate(0, 0, 1), span), nil
	case "yesterday":
		return dayInterval(day.AddDate(0, 0, -1), span), nil
	case "next week":
		start := day.AddDate(0, 0, daysUntilNext(ref.Weekday(), time.Monday))
		return Resolution{Kind: KindInterval, Start: start, End: start.AddDate(0, 0, 7), Text: span}, nil
	case "last week":
		end := day.AddDate(0, 0, -((int(ref.Weekday()) + 6) % 7)) // this week's Monday
		return Resolution{Kind: KindInterval, Start: end.AddDate(0, 0, -7), End: end, Text: span}, nil
	case "daily":
		return Resolution{Kind: KindRecurring, Rule: Rule{Frequency: "daily", Interval: 1}, Text: span}, nil
	case "weekly":
		return Resolution{Kind: KindRecurring, Rule: Rule{Frequency: "weekly", Interval: 1}, Text: span}, nil
	case "monthly":
		return Resolution{Kind: KindRecurring, Rule: Rule{Frequency: "monthly", Interval: 1}, Text: span}, nil
	}

	if m := reEvery.FindStringSubmatch(text); m != nil {
		switch m[1] {
		case "day":
			return Resolution{Kind: KindRecurring, Rule: Rule{Frequency: "daily", Interval: 1}, Text: span}, nil
		case "week":
			return Resolution{Kind: KindRecurring, Rule: Rule{Frequency: "weekly", Interval: 1}, Text: span}, nil
		case "month":
			return Resolution{Kind: KindRecurring, Rule: Rule{Frequency: "monthly", Interval: 1}, Text: span}, nil
		default:
			return Resolution{Kind: KindRecurring, Rule: Rule{Frequency: "weekly", Weekday: weekdays[m[1]], Interval: 1}, Text: span}, nil
		}
	}

	if m := rePartOfDay.FindStringSubmatch(text); m != nil {
		base := day
		if m[1] == "tomorrow" {
			base = day.AddDate(0, 0, 1)
		}
		startHour, endHour := r.partOfDayHours(m[2])
		return Resolution{
			Kind:  KindInterval,
			Start: base.Add(time.Duration(startHour) * time.Hour),
			End:   base.Add(time.Duration(endHour) * time.Hour),
			Text:  span,
		}, nil
	}

	if m := reWeekdayExpr.FindStringSubmatch(text); m != nil {
		target := weekdays[m[2]]
		days := daysUntilNext(ref.Weekday(), target)
		// A bare weekday spoken on that same weekday means the next
		// occurrence, never the current one, unless qualified with "this".
		if m[1] == "this" && ref.Weekday() == target {
			days = 0
		}
		return dayInterval(day.AddDate(0, 0, days), span), nil
	}

	if m := reInRelative.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = numberWords[m[1]]
		}
		var at time.Time
		switch m[2] {
		case "minute":
			at = ref.Add(time.Duration(n) * time.Minute)
		case "hour":
			at = ref.Add(time.Duration(n) * time.Hour)
		case "day":
			at = ref.AddDate(0, 0, n)
		case "week":
			at = ref.AddDate(0, 0, 7*n)
		}
		return Resolution{Kind: KindInstant, At: at, Text: span}, nil
	}

	if m := reClock12.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 12 || minute > 59 {
			return Resolution{}, fmt.Errorf("%w: %q", core.ErrUnresolvedTemporalExpression, span)
		}
		return Resolution{Kind: KindInstant, At: day.Add(clockDuration(hour, minute, m[3])), Text: span}, nil
	}

	if m := reClock24.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return Resolution{}, fmt.Errorf("%w: %q", core.ErrUnresolvedTemporalExpression, span)
		}
		return Resolution{Kind: KindInstant, At: day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), Text: span}, nil
	}

	if m := reHour12.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour > 12 {
			return Resolution{}, fmt.Errorf("%w: %q", core.ErrUnresolvedTemporalExpression, span)
		}
		return Resolution{Kind: KindInstant, At: day.Add(clockDuration(hour, 0, m[2])), Text: span}, nil
	}

	if m := reISODate.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 || d < 1 || d > 31 {
			return Resolution{}, fmt.Errorf("%w: %q", core.ErrUnresolvedTemporalExpression, span)
		}
		start := time.Date(year, time.Month(month), d, 0, 0, 0, 0, ref.Location())
		return dayInterval(start, span), nil
	}

	return Resolution{}, fmt.Errorf("%w: %q", core.ErrUnresolvedTemporalExpression, span)
}

func (r *Resolver) partOfDayHours(part string) (int, int) {
	switch part {
	case "morning":
		return r.opts.MorningStart, r.opts.MorningEnd
	case "afternoon":
		return r.opts.AfternoonStart, r.opts.AfternoonEnd
	default: // evening, tonight
		return r.opts.EveningStart, r.opts.EveningEnd
	}
}

// daysUntilNext returns the day count from 'from' to the next occurrence of
// 'target', 7 when they coincide.
func daysUntilNext(from, target time.Weekday) int {
	days := (int(target) - int(from) + 7) % 7
	if days == 0 {
		days = 7
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayInterval(start time.Time, text string) Resolution {
	return Resolution{Kind: KindInterval, Start: start, End: start.AddDate(0, 0, 1), Text: text}
}

func clockDuration(hour, minute int, period string) time.Duration {
	if period == "pm" && hour != 12 {
		hour += 12
	} else if period == "am" && hour == 12 {
		hour = 0
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute
}
