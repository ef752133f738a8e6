// Package civicday computes calendar days, date windows and trigger instants
// in a fixed civic timezone, independent of the host's local time.
//
// The generation window and the verification window are both derived here so
// the verification window is always the leading edge of the generation window.
package civicday

import (
	"errors"
	"fmt"
	"time"
	// Embedded zone database so containers without /usr/share/zoneinfo still resolve the zone.
	_ "time/tzdata"

	"cloud.google.com/go/civil"
)

// VerificationLeadDays is the width of the verification window past today.
const VerificationLeadDays = 1

var (
	// ErrInvalidClockTime indicates a malformed HH:MM value.
	ErrInvalidClockTime = errors.New("invalid clock time")
	// ErrNegativeLead indicates a negative look-ahead.
	ErrNegativeLead = errors.New("lead days must be non-negative")
)

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM" in 24-hour notation.
func ParseClockTime(value string) (ClockTime, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w %q: %w", ErrInvalidClockTime, value, err)
	}

	return ClockTime{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// MustClockTime is ParseClockTime for constants.
func MustClockTime(value string) ClockTime {
	clockTime, err := ParseClockTime(value)
	if err != nil {
		panic(err)
	}

	return clockTime
}

// String renders the value as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Before reports whether c is earlier in the day than other.
func (c ClockTime) Before(other ClockTime) bool {
	return c.Hour*60+c.Minute < other.Hour*60+other.Minute
}

// UnmarshalText lets ClockTime be decoded straight from TOML strings.
func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}

	*c = parsed

	return nil
}

// MarshalText renders the value as HH:MM.
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Clock answers date questions in one civic timezone.
type Clock struct {
	location *time.Location
	now      func() time.Time
}

// New creates a Clock for the named IANA zone using the system time.
func New(zone string) (*Clock, error) {
	location, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load civic timezone %q: %w", zone, err)
	}

	return NewWithNow(location, time.Now), nil
}

// NewWithNow creates a Clock with an injected time source.
func NewWithNow(location *time.Location, now func() time.Time) *Clock {
	return &Clock{location: location, now: now}
}

// Location returns the civic timezone.
func (c *Clock) Location() *time.Location {
	return c.location
}

// Now returns the current instant in the civic timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.location)
}

// Today returns the current civic calendar date.
func (c *Clock) Today() civil.Date {
	return civil.DateOf(c.Now())
}

// Window returns the inclusive range [today, today+leadDays].
func (c *Clock) Window(leadDays int) (civil.Date, civil.Date, error) {
	if leadDays < 0 {
		return civil.Date{}, civil.Date{}, fmt.Errorf("%w: got %d", ErrNegativeLead, leadDays)
	}

	today := c.Today()

	return today, today.AddDays(leadDays), nil
}

// VerificationWindow returns today and tomorrow.
func (c *Clock) VerificationWindow() (civil.Date, civil.Date) {
	today := c.Today()

	return today, today.AddDays(VerificationLeadDays)
}

// NextOccurrence returns the first instant strictly after now whose civic
// wall-clock time equals at. Zone transitions are resolved by the tz database,
// so consecutive occurrences are not necessarily 24 hours apart.
func (c *Clock) NextOccurrence(now time.Time, at ClockTime) time.Time {
	local := now.In(c.location)

	candidate := time.Date(local.Year(), local.Month(), local.Day(), at.Hour, at.Minute, 0, 0, c.location)
	if !candidate.After(local) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1, at.Hour, at.Minute, 0, 0, c.location)
	}

	return candidate
}

// Until returns the delay from now to the next occurrence of at.
func (c *Clock) Until(at ClockTime) time.Duration {
	now := c.now()

	return c.NextOccurrence(now, at).Sub(now)
}
