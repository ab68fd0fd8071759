package util

import "testing"

func TestSanitizeTextRemovesNulAndControls(t *testing.T) {
	in := "ab\x00cd\x01\x02\n\txy"
	out := SanitizeText(in)
	if out != "abcd\n\txy" {
		t.Fatalf("unexpected sanitized output: %q", out)
	}
}

func TestDisplaySnippetCapsLength(t *testing.T) {
	in := "word " + "lorem ipsum dolor sit amet " + "tail"
	out := DisplaySnippet(in, 10)
	if len([]rune(out)) > 13 { // 10 plus ellipsis
		t.Fatalf("snippet too long: %q", out)
	}
	if out == "" {
		t.Fatalf("expected non-empty snippet")
	}
}
