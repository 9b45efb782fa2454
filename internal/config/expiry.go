package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Expiry is a token lifetime read from the environment. It accepts Go
// durations ("90m", "1h"), day/week/year suffixes ("30d", "2w", "1y") and
// bare integers, which are seconds.
type Expiry time.Duration

var longUnit = regexp.MustCompile(`^(\d+)\s*(d|w|y)$`)

const day = 24 * time.Hour

func ParseExpiry(raw string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("empty expiry")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("expiry must be positive: %q", raw)
		}
		return time.Duration(n) * time.Second, nil
	}

	if m := longUnit.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid expiry %q", raw)
		}

		unit := day
		switch m[2] {
		case "w":
			unit = 7 * day
		case "y":
			unit = 365 * day
		}
		return time.Duration(n) * unit, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid expiry %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("expiry must be positive: %q", raw)
	}
	return d, nil
}

func (e *Expiry) EnvDecode(val string) error {
	d, err := ParseExpiry(val)
	if err != nil {
		return err
	}

	*e = Expiry(d)
	return nil
}

func (e Expiry) Duration() time.Duration {
	return time.Duration(e)
}
