package mail

import (
	"strings"
	"testing"
)

func TestVerificationEmail(t *testing.T) {
	t.Parallel()

	html, err := VerificationEmail("Ann", "483920", 10)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Hi Ann", "483920", "10 minutes"} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered mail missing %q", want)
		}
	}
}

func TestVerificationEmailEscapesName(t *testing.T) {
	t.Parallel()

	html, err := VerificationEmail(`<script>alert(1)</script>`, "111111", 10)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatal("name must be HTML-escaped")
	}
}
