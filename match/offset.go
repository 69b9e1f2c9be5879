package match

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Offsets outside this range do not exist on any civil clock.
const (
	MinOffset Offset = -12
	MaxOffset Offset = 14
)

// Offset is a timezone expressed as whole hours from UTC.
type Offset int

// ParseOffset accepts "-8", "+5", "0", "UTC", "UTC-08:00" and "UTC+5".
// Minutes other than ":00" are rejected since the scorer works in whole hours.
func ParseOffset(s string) (Offset, error) {
	raw := strings.TrimSpace(s)
	v := raw
	if len(v) >= 3 && strings.EqualFold(v[:3], "UTC") {
		v = v[3:]
		if v == "" {
			return 0, nil
		}
	}
	if v == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimezone, raw)
	}

	if h, m, ok := strings.Cut(v, ":"); ok {
		if m != "00" {
			return 0, fmt.Errorf("%w: %q: only whole-hour offsets are supported", ErrInvalidTimezone, raw)
		}
		v = h
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimezone, raw)
	}
	o := Offset(n)
	if !o.Valid() {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidTimezone, raw)
	}
	return o, nil
}

func (o Offset) Valid() bool { return o >= MinOffset && o <= MaxOffset }

// String renders the offset in the "UTC-08:00" form used by the signup form.
func (o Offset) String() string {
	sign := '+'
	n := int(o)
	if n < 0 {
		sign = '-'
		n = -n
	}
	return fmt.Sprintf("UTC%c%02d:00", sign, n)
}

func (o Offset) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Offset) UnmarshalText(b []byte) error {
	v, err := ParseOffset(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// UnmarshalJSON takes either a string or a bare number of hours.
func (o *Offset) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return o.UnmarshalText([]byte(s))
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimezone, b)
	}
	if !Offset(n).Valid() {
		return fmt.Errorf("%w: %d out of range", ErrInvalidTimezone, n)
	}
	*o = Offset(n)
	return nil
}
