package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"Whomst": "Alice", "Tag": "food", "Amount": 42, "Notes": "lunch"}`
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if got := parser.Get("Whomst"); got != "Alice" {
		t.Errorf("Get(Whomst) = %q, want Alice", got)
	}
	if got := parser.Get("Amount"); got != "42" {
		t.Errorf("Get(Amount) = %q, want 42", got)
	}
	if got := parser.Get("Date"); got != "" {
		t.Errorf("Get(Date) = %q, want empty", got)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "Whomst=Bob&Tag=rent&Amount=-5&Notes=two+words&Date="
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if parser.ContentType() != "application/x-www-form-urlencoded" {
		t.Errorf("ContentType() = %q", parser.ContentType())
	}

	tests := map[string]string{
		"Whomst": "Bob",
		"Tag":    "rent",
		"Amount": "-5",
		"Notes":  "two words",
		"Date":   "",
	}
	for key, want := range tests {
		if got := parser.Get(key); got != want {
			t.Errorf("Get(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/remove", strings.NewReader(""))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("EntryID"); val != "" {
		t.Errorf("Get(EntryID) = %q, want empty string", val)
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"Whomst":`))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err == nil {
		t.Fatal("Parse() expected error for truncated JSON")
	}
	// Repeated calls return the same error.
	if err := parser.Parse(); err == nil {
		t.Fatal("second Parse() expected error")
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	body := "Whomst=Alice&Notes=" + strings.Repeat("x", maxBodyBytes) + "&Date=01-02-2024"
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err == nil {
		t.Fatal("Parse() expected error for oversized body")
	}
	if !parser.TooLarge() {
		t.Error("TooLarge() = false, want true")
	}
	if got := parser.Get("Whomst"); got != "" {
		t.Errorf("Get(Whomst) = %q, want empty after rejected body", got)
	}
}

func TestRequestBodyParser_AtLimit(t *testing.T) {
	prefix := "Whomst=Alice&Notes="
	body := prefix + strings.Repeat("x", maxBodyBytes-len(prefix))
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.TooLarge() {
		t.Error("TooLarge() = true for a body at the limit")
	}
	if got := len(parser.Get("Notes")); got != maxBodyBytes-len(prefix) {
		t.Errorf("len(Notes) = %d, want %d", got, maxBodyBytes-len(prefix))
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Alice", "Alice"},
		{"trims", "  Alice \n", "Alice"},
		{"drops control", "Al\x00ice\x07", "Alice"},
		{"drops delete", "a\x7fb", "ab"},
		{"keeps inner newline", "line one\nline two", "line one\nline two"},
		{"keeps tab", "a\tb", "a\tb"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeInput(tt.input); got != tt.want {
				t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
