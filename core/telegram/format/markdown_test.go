package format

import "testing"

func TestEscapeMarkdown(t *testing.T) {
	cases := []struct {
		in      string
		version int
		want    string
	}{
		{"ape_holder", MarkdownV1, `ape\_holder`},
		{"*bold* [x]", MarkdownV1, `\*bold\* \[x]`},
		{"a.b-c!", MarkdownV2, `a\.b\-c\!`},
		{"(1+1=2)", MarkdownV2, `\(1\+1\=2\)`},
		{"plain", MarkdownV2, "plain"},
	}
	for _, tc := range cases {
		got, err := EscapeMarkdown(tc.in, tc.version)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("EscapeMarkdown(%q, %d) = %q, want %q", tc.in, tc.version, got, tc.want)
		}
	}
	if _, err := EscapeMarkdown("x", 3); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestEscapeMD(t *testing.T) {
	if got := EscapeMD("John_Doe`"); got != "John\\_Doe\\`" {
		t.Fatalf("got %q", got)
	}
}
