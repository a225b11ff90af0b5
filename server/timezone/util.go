// Package timezone resolves the relay's configured time zone and formats
// timestamps the way the assistant reads them.
package timezone

import (
	"time"

	"github.com/pkg/errors"
)

// PromptLayout is the layout of the timestamp placed in enriched prompts.
const PromptLayout = "2006-01-02 15:04:05"

// ParseTimezone parses an IANA time zone identifier such as "Europe/Berlin".
// An empty identifier or "UTC" yields UTC. An unknown zone returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, errors.Wrapf(err, "invalid timezone %q", tz)
	}
	return loc, nil
}

// FormatPromptTime renders t in loc using PromptLayout. A nil loc means UTC.
func FormatPromptTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(PromptLayout)
}
