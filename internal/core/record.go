package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is the on-disk JSON shape of an entry. Field names are the wire
// format shared with existing data directories.
type Record struct {
	Whomst       string `json:"whomst"`
	Tag          string `json:"tag"`
	Amount       string `json:"amount"`
	Notes        string `json:"notes"`
	DateOverride string `json:"date_override"`
	TS           string `json:"ts"`
	Valid        bool   `json:"valid"`
}

// ToRecord strips derived fields.
func (e Entry) ToRecord() Record {
	return Record{
		Whomst:       e.Whomst,
		Tag:          e.Tag,
		Amount:       e.Amount,
		Notes:        e.Notes,
		DateOverride: e.DateOverride,
		TS:           e.TS,
		Valid:        e.Valid,
	}
}

// text accepts a JSON string or number and keeps its literal text.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*t = text(n)
	return nil
}

type rawRecord struct {
	Whomst       *text `json:"whomst"`
	Tag          *text `json:"tag"`
	Amount       *text `json:"amount"`
	Notes        *text `json:"notes"`
	DateOverride *text `json:"date_override"`
	TS           *text `json:"ts"`
	Valid        *bool `json:"valid"`
}

// DecodeRecord parses one stored record and derives its canonical spender
// and effective date. path is only used to label errors.
func DecodeRecord(path string, data []byte) (Entry, error) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, &LoadError{Path: path, Reason: "malformed JSON", Err: err}
	}

	fields := []struct {
		name string
		val  *text
	}{
		{"whomst", raw.Whomst},
		{"tag", raw.Tag},
		{"amount", raw.Amount},
		{"notes", raw.Notes},
		{"date_override", raw.DateOverride},
		{"ts", raw.TS},
	}
	for _, f := range fields {
		if f.val == nil {
			return Entry{}, &LoadError{Path: path, Reason: "missing field " + strconv.Quote(f.name)}
		}
	}
	if raw.Valid == nil {
		return Entry{}, &LoadError{Path: path, Reason: `missing field "valid"`}
	}

	e := Entry{
		Whomst:       string(*raw.Whomst),
		Tag:          string(*raw.Tag),
		Amount:       string(*raw.Amount),
		Notes:        string(*raw.Notes),
		DateOverride: string(*raw.DateOverride),
		TS:           string(*raw.TS),
		Valid:        *raw.Valid,
	}
	if err := e.Derive(); err != nil {
		if le, ok := err.(*LoadError); ok {
			le.Path = path
		}
		return Entry{}, err
	}
	return e, nil
}
