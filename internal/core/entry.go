package core

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	// OverrideLayout parses user supplied override dates. Single digit
	// months and days are accepted.
	OverrideLayout = "1-2-2006"
	// DisplayLayout is the MM-DD-YYYY form used in listings and exports.
	DisplayLayout = "01-02-2006"
)

type (
	// Entry is one recorded spending event as held by the store.
	Entry struct {
		Whomst       string
		Tag          string
		Amount       string // integer as text, parsed when a view is built
		Notes        string
		DateOverride string // MM-DD-YYYY or empty
		TS           string // identity and storage key
		Valid        bool

		// Derived at load time.
		Spender   string
		Effective time.Time
	}

	// Submission carries the raw form fields of a new entry.
	Submission struct {
		Whomst       string
		Tag          string
		Amount       string
		Notes        string
		DateOverride string
	}
)

// NewEntry validates a submission and turns it into a valid entry with
// the given identifier. Fields are expected to be trimmed already.
func NewEntry(s Submission, ts string) (Entry, error) {
	if _, err := ParseAmount(s.Amount); err != nil {
		return Entry{}, &ValidationError{Field: "Amount", Message: MsgInvalidAmount}
	}
	if s.DateOverride != "" {
		if _, err := ParseOverride(s.DateOverride); err != nil {
			return Entry{}, &ValidationError{Field: "Date", Message: MsgInvalidDate}
		}
	}
	e := Entry{
		Whomst:       s.Whomst,
		Tag:          s.Tag,
		Amount:       s.Amount,
		Notes:        s.Notes,
		DateOverride: s.DateOverride,
		TS:           ts,
		Valid:        true,
	}
	if err := e.Derive(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Derive fills Spender and Effective from the stored fields.
func (e *Entry) Derive() error {
	e.Spender = NormalizeSpender(e.Whomst)
	eff, err := EffectiveDate(e.TS, e.DateOverride)
	if err != nil {
		return err
	}
	e.Effective = eff
	return nil
}

// NormalizeSpender maps spender spellings to one canonical form:
// surrounding whitespace removed, first letter upper case, rest lower case.
func NormalizeSpender(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// ParseOverride parses an override date to local midnight.
func ParseOverride(s string) (time.Time, error) {
	return time.ParseInLocation(OverrideLayout, strings.TrimSpace(s), time.Local)
}

// EffectiveDate resolves the date an entry is reported under: the override
// when present, otherwise the creation timestamp in local time.
func EffectiveDate(ts, override string) (time.Time, error) {
	if override != "" {
		d, err := ParseOverride(override)
		if err != nil {
			return time.Time{}, &LoadError{Reason: "unparseable date_override " + quote(override), Err: err}
		}
		return d, nil
	}
	t, err := ParseTS(ts)
	if err != nil {
		return time.Time{}, &LoadError{Reason: "unparseable ts " + quote(ts), Err: err}
	}
	return t, nil
}

func quote(s string) string {
	return `"` + s + `"`
}
