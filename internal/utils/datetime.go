package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ISODatetimeFormat is the wire format for timestamps: UTC ISO-8601 with
// microsecond precision and a literal Z suffix.
const ISODatetimeFormat = "2006-01-02T15:04:05.000000Z"

// isoParseFormats are accepted on input, tried in order. Offsets are honored
// and the result is normalized to UTC; a missing zone means UTC.
var isoParseFormats = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ToUTC normalizes a time to UTC. Idempotent.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// ToISODatetime formats a time as UTC ISO-8601 with microseconds and a
// trailing Z, e.g. "2014-12-31T15:45:30.000999Z".
func ToISODatetime(t time.Time) string {
	return t.UTC().Format(ISODatetimeFormat)
}

// FromISODatetime parses an ISO-8601 timestamp, with or without fractional
// seconds and with or without a numeric offset, into a UTC time.
func FromISODatetime(s string) (time.Time, error) {
	for _, format := range isoParseFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 datetime: %q", s)
}

// ToHTTPDatetime formats a time as an RFC-1123 HTTP date. The time is
// converted to UTC first, so zoned inputs come out DST-correct.
func ToHTTPDatetime(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// FromHTTPDatetime parses an HTTP date in any of the three RFC-2616 forms
// (RFC-1123, RFC-850, asctime) into a UTC time.
func FromHTTPDatetime(s string) (time.Time, error) {
	t, err := http.ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid HTTP datetime: %q", s)
	}
	return t.UTC(), nil
}

// Epoch returns the Unix epoch in UTC, the zero value for required
// timestamp fields.
func Epoch() time.Time {
	return time.Unix(0, 0).UTC()
}

// Timestamp wraps time.Time so that JSON serialization uses the ISO-8601
// microsecond wire format instead of Go's RFC3339Nano default.
type Timestamp struct {
	time.Time
}

// NewTimestamp returns a Timestamp normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToISODatetime(t.Time))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := FromISODatetime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
