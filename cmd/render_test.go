package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/quill/pkg/models"
)

func TestRenderMessageMarksPending(t *testing.T) {
	m := models.Message{ID: "temp-1", SenderID: "me", Sender: models.Sender{Name: "Ana"}, Content: "hola", Type: models.MessageText, CreatedAt: time.Now()}

	out := renderMessage(m, "me", true)
	if !strings.Contains(out, "Ana:") || !strings.Contains(out, "hola") {
		t.Fatalf("missing sender or content: %q", out)
	}
	if !strings.Contains(out, "(sending)") {
		t.Fatalf("pending marker missing: %q", out)
	}
	if strings.Contains(renderMessage(m, "me", false), "(sending)") {
		t.Fatal("confirmed message rendered as pending")
	}
}

func TestRenderMessageFallsBackToSenderID(t *testing.T) {
	m := models.Message{SenderID: "u-9", Content: "hey", Type: models.MessageText}
	if out := renderMessage(m, "me", false); !strings.Contains(out, "u-9:") {
		t.Fatalf("expected sender id, got %q", out)
	}
}

func TestRenderMessageImage(t *testing.T) {
	m := models.Message{SenderID: "u", Content: "https://cdn.example/a.png", Type: models.MessageImage}
	out := renderMessage(m, "me", false)
	if !strings.Contains(out, "[image]") || !strings.Contains(out, "https://cdn.example/a.png") {
		t.Fatalf("image message: %q", out)
	}
}

func TestRenderPostTruncatesOnRunes(t *testing.T) {
	p := models.Post{ID: "p1", Title: "Título", Content: strings.Repeat("ñ", 300)}

	short := renderPost(p, false)
	if !strings.Contains(short, "…") {
		t.Fatal("long post was not truncated")
	}
	if strings.ContainsRune(short, '�') {
		t.Fatal("truncation split a multibyte rune")
	}
	if full := renderPost(p, true); strings.Contains(full, "…") {
		t.Fatal("full render truncated content")
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(time.Time{}); got != "" {
		t.Fatalf("zero time: %q", got)
	}
	recent := time.Now().Add(-time.Minute)
	if got := formatTime(recent); got != recent.Local().Format("15:04") {
		t.Fatalf("recent: %q", got)
	}
	old := time.Date(2020, 3, 1, 10, 30, 0, 0, time.Local)
	if got := formatTime(old); got != "2020-03-01 10:30" {
		t.Fatalf("old: %q", got)
	}
}

func TestIsURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/a.png": true,
		"http://example.com":        true,
		"ftp://example.com/file":    false,
		"./avatar.png":              false,
		"/tmp/avatar.png":           false,
		"https://":                  false,
	}
	for in, want := range cases {
		if got := isURL(in); got != want {
			t.Errorf("isURL(%q) = %v, want %v", in, got, want)
		}
	}
}
