package security

import "testing"

func TestSanitizeText_PlainTextUnchanged(t *testing.T) {
	s := NewDisplaySanitizer()
	got := s.SanitizeText("普通のタイトルです")
	if got != "普通のタイトルです" {
		t.Errorf("SanitizeText = %q, want %q", got, "普通のタイトルです")
	}
}

func TestSanitizeText_StripsScriptTag(t *testing.T) {
	s := NewDisplaySanitizer()
	got := s.SanitizeText(`title<script>alert(1)</script>`)
	if got != "title" {
		t.Errorf("scriptタグは除去されるべき: %q", got)
	}
}

func TestSanitizeText_StripsAllTags(t *testing.T) {
	s := NewDisplaySanitizer()
	got := s.SanitizeText(`<b>bold</b> and <a href="https://example.com">link</a>`)
	if got != "bold and link" {
		t.Errorf("全てのタグが除去されるべき: %q", got)
	}
}

func TestSanitizeText_Empty(t *testing.T) {
	s := NewDisplaySanitizer()
	if got := s.SanitizeText(""); got != "" {
		t.Errorf("空入力には空文字列を返すべき: %q", got)
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewDisplaySanitizer()
	input := `nickname<img src=x onerror=alert(1)>`
	once := s.SanitizeText(input)
	twice := s.SanitizeText(once)
	if once != twice {
		t.Errorf("サニタイズは冪等であるべき: %q vs %q", once, twice)
	}
}

func TestSanitizeText_TrimsWhitespace(t *testing.T) {
	s := NewDisplaySanitizer()
	got := s.SanitizeText("  spaced title  ")
	if got != "spaced title" {
		t.Errorf("前後の空白は除去されるべき: %q", got)
	}
}
