// Package reminder holds recurring daily reminder declarations.
//
// A reminder is identified by (user, time of day, text). Registering the same
// triple twice is the same reminder; see Key.
package reminder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidTimeFormat = errors.New("reminder: invalid time format, want HH:MM")

// TimeOfDay is a wall-clock time in the process timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var reHHMM = regexp.MustCompile(`^(\d{1,2}):(\d{1,2})$`)

// ParseTimeOfDay parses a 24-hour "HH:MM" token.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	m := reHHMM.FindStringSubmatch(strings.TrimSpace(raw))
	if len(m) != 3 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	t := TimeOfDay{Hour: h, Minute: mm}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	return t, nil
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Before orders times within a day.
func (t TimeOfDay) Before(o TimeOfDay) bool {
	if t.Hour != o.Hour {
		return t.Hour < o.Hour
	}
	return t.Minute < o.Minute
}

// Key is the identity of a reminder and of its scheduler trigger.
type Key struct {
	UserID int64
	At     TimeOfDay
	Text   string
}

func (k Key) String() string {
	return strconv.FormatInt(k.UserID, 10) + "@" + k.At.String() + ":" + strconv.Quote(k.Text)
}

type Reminder struct {
	UserID int64
	At     TimeOfDay
	Text   string
}

func (r Reminder) Key() Key { return Key{UserID: r.UserID, At: r.At, Text: r.Text} }
