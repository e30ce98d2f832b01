package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var errBadTS = errors.New("timestamp is not a finite decimal number")

// FormatTS renders t as decimal seconds since the epoch with microsecond
// precision, e.g. "1717171717.123456".
func FormatTS(t time.Time) string {
	return FormatMicros(t.UnixMicro())
}

// FormatMicros renders microseconds since the epoch as a timestamp id.
func FormatMicros(us int64) string {
	return strconv.FormatInt(us/1_000_000, 10) + "." + pad6(us%1_000_000)
}

func pad6(n int64) string {
	s := strconv.FormatInt(n, 10)
	return strings.Repeat("0", 6-len(s)) + s
}

// ParseTS converts a decimal seconds timestamp to local time.
func ParseTS(ts string) (time.Time, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(ts), 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, errBadTS
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*1000), nil
}

// ValidID reports whether id can name a stored entry. It rejects anything
// that is not a plain decimal timestamp so ids never escape the store
// directory.
func ValidID(id string) bool {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return false
	}
	if _, err := ParseTS(id); err != nil {
		return false
	}
	for _, r := range id {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
