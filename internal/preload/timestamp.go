package preload

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone aliases must resolve without host tzdata
)

// Source timestamp layouts: "Tue Feb 05 13:10:00 UTC 2019" style, with or
// without a zone token.
const (
	layoutWithZone = "Mon Jan _2 15:04:05 MST 2006" // time.UnixDate
	layoutNoZone   = "Mon Jan _2 15:04:05 2006"
)

// zoneAliases maps zone tokens that are not universal abbreviations to
// IANA zone names. The source feed uses IST for Irish time.
var zoneAliases = map[string]string{
	"IST": "Europe/Dublin",
}

// ParseTransactionTime normalizes a raw transaction time string to a UTC
// instant.
//
// Only the GMT and UTC tokens are accepted directly; Go's parser would
// happily swallow any three-letter token at zero offset, which is exactly
// the silent corruption this guard exists to prevent. Aliased tokens are
// stripped and the remaining time is interpreted in the aliased zone. Any
// other token is an error: the record is rejected and archived, never
// staged.
func ParseTransactionTime(raw string) (time.Time, error) {
	if strings.Contains(raw, "GMT") || strings.Contains(raw, "UTC") {
		t, err := time.Parse(layoutWithZone, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable transaction time %q: %w", raw, err)
		}
		return t.UTC(), nil
	}

	for token, zoneName := range zoneAliases {
		padded := " " + token + " "
		if !strings.Contains(raw, padded) {
			continue
		}

		loc, err := time.LoadLocation(zoneName)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to load zone %s: %w", zoneName, err)
		}

		stripped := strings.TrimSpace(strings.Replace(raw, padded, " ", 1))
		t, err := time.ParseInLocation(layoutNoZone, stripped, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable transaction time %q: %w", raw, err)
		}
		return t.UTC(), nil
	}

	return time.Time{}, fmt.Errorf(
		"unknown timezone in transaction time %q: not GMT/UTC or an aliased zone", raw)
}
