package inboxcli

import (
	"bytes"
	"testing"
)

func TestWriteTableAlignsWithANSI(t *testing.T) {
	var buf bytes.Buffer
	headers := []string{"ID", "CONTACT", "STATUS"}
	rows := [][]string{
		{"a1b2c3d4", "Jane Doe", "active"},
		{"\x1b[33me5f6a7b8\x1b[0m", "Bob", "resolved"},
	}

	if err := writeTable(&buf, headers, rows); err != nil {
		t.Fatalf("writeTable failed: %v", err)
	}

	got := stripANSI(buf.String())
	want := "" +
		"ID        CONTACT   STATUS\n" +
		"a1b2c3d4  Jane Doe  active\n" +
		"e5f6a7b8  Bob       resolved\n"

	if got != want {
		t.Fatalf("unexpected table output:\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestWriteTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTable(&buf, nil, nil); err != nil {
		t.Fatalf("writeTable failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestStripANSI(t *testing.T) {
	if got := stripANSI("\x1b[1;32mok\x1b[0m"); got != "ok" {
		t.Fatalf("stripANSI = %q, want %q", got, "ok")
	}
	if got := stripANSI("plain"); got != "plain" {
		t.Fatalf("stripANSI = %q, want %q", got, "plain")
	}
}
