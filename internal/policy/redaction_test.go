package policy

import (
	"strings"
	"testing"
)

func TestRedactPIIEmail(t *testing.T) {
	out, changed := RedactPII("User's email is ava.fan@example.com and she checks it daily")
	if !changed {
		t.Fatal("expected changed=true")
	}
	if strings.Contains(out, "example.com") {
		t.Fatalf("email not redacted: %q", out)
	}
	if !strings.Contains(out, "[REDACTED_EMAIL]") {
		t.Fatalf("missing placeholder: %q", out)
	}
}

func TestRedactPIICardBeforePhone(t *testing.T) {
	out, _ := RedactPII("paid with 4111 1111 1111 1111 yesterday")
	if !strings.Contains(out, "[REDACTED_CARD]") {
		t.Fatalf("card number classified as something else: %q", out)
	}
	if strings.Contains(out, "[REDACTED_PHONE]") {
		t.Fatalf("card number partially matched as phone: %q", out)
	}
}

func TestRedactPIIPhone(t *testing.T) {
	out, changed := RedactPII("call her at +1 (415) 555-0137 after lunch")
	if !changed || !strings.Contains(out, "[REDACTED_PHONE]") {
		t.Fatalf("phone not redacted: %q", out)
	}
}

func TestRedactPIIClean(t *testing.T) {
	in := "User enjoys hiking on weekends"
	out, changed := RedactPII(in)
	if changed || out != in {
		t.Fatalf("clean text altered: %q changed=%v", out, changed)
	}
}
