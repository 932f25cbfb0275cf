package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestAnonymize(t *testing.T) {
	in := "login alice@example.com token eyJhbGciOiJIUzI1NiJ9.x.y user_id=8f14e45f-ea1"
	out := Anonymize(in)

	for _, leaked := range []string{"alice@example.com", "eyJhbGci", "8f14e45f"} {
		if strings.Contains(out, leaked) {
			t.Fatalf("expected %q to be redacted, got %q", leaked, out)
		}
	}
	if !strings.Contains(out, "user_id=[USER_ID]") {
		t.Fatalf("expected user id placeholder, got %q", out)
	}
}

func TestLogger_ErrorEntry(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Error("store", "query failed for bob@example.com", errors.New("timeout"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["level"] != "error" || entry["module"] != "store" || entry["error"] != "timeout" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if strings.Contains(entry["message"].(string), "bob@example.com") {
		t.Fatalf("email leaked into message: %v", entry["message"])
	}
}
