package parser

import (
	"strings"
	"testing"
)

func TestParseCSVFromReader(t *testing.T) {
	input := "Email,Name,Plan\nalice@example.com, Alice ,pro\nbob@example.com,Bob,free\n"

	recipients, err := ParseCSVFromReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recipients) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(recipients))
	}

	if recipients[0].Email != "alice@example.com" {
		t.Errorf("expected alice@example.com, got %q", recipients[0].Email)
	}
	if recipients[0].Data["name"] != "Alice" {
		t.Errorf("expected trimmed name Alice, got %q", recipients[0].Data["name"])
	}
	if _, ok := recipients[0].Data["email"]; ok {
		t.Error("email column should not be duplicated into Data")
	}
}

func TestParseCSVFromReaderMissingEmailColumn(t *testing.T) {
	input := "Name,Plan\nAlice,pro\n"

	_, err := ParseCSVFromReader(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error for missing email column")
	}
}

func TestParseCSVFromReaderSkipsBlankEmailAndMalformedRows(t *testing.T) {
	input := "email,plan\n,pro\nbob@example.com,free,extra\ncarol@example.com,pro\n"

	recipients, err := ParseCSVFromReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recipients) != 1 {
		t.Fatalf("expected 1 recipient (blank email and mismatched row skipped), got %d", len(recipients))
	}
	if recipients[0].Email != "carol@example.com" {
		t.Errorf("expected carol@example.com, got %q", recipients[0].Email)
	}
}
