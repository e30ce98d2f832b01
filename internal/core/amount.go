package core

import (
	"strconv"
	"strings"
)

// ParseAmount parses the integer text of an entry amount. A leading sign
// is accepted; fractions and thousands separators are not.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
