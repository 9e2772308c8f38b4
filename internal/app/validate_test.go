package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/buketp/UrbanFeed/internal/news"
)

const validSubmission = `{
	"source": "Manisa Haber",
	"province": "Manisa",
	"title": "Akhisar'da su kesintisi",
	"url": "https://manisahaber.com/haber/su-kesintisi?utm_source=x",
	"category": "şikayet"
}`

func TestCollectJSONFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.json"), `{}`)
	mustWriteFile(t, filepath.Join(root, "b.txt"), `x`)
	mustWriteFile(t, filepath.Join(root, ".hidden.json"), `{}`)
	mustWriteFile(t, filepath.Join(root, "nested", "c.JSON"), `{}`)
	mustWriteFile(t, filepath.Join(root, ".git", "d.json"), `{}`)

	recursive, err := collectJSONFiles(root, true)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(recursive) != 2 {
		t.Fatalf("expected 2 files recursively, got %v", recursive)
	}

	flat, err := collectJSONFiles(root, false)
	if err != nil {
		t.Fatalf("collectJSONFiles failed: %v", err)
	}
	if len(flat) != 1 || filepath.Base(flat[0]) != "a.json" {
		t.Fatalf("expected only a.json, got %v", flat)
	}

	if _, err := collectJSONFiles(filepath.Join(root, "a.json"), true); err == nil {
		t.Fatalf("expected error for a file root")
	}
}

func TestValidateFilesCountsDuplicatesAndErrors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first := filepath.Join(root, "1.json")
	second := filepath.Join(root, "2.json")
	broken := filepath.Join(root, "3.json")
	badCategory := filepath.Join(root, "4.json")
	mustWriteFile(t, first, validSubmission)
	mustWriteFile(t, second, `{"title":"Akhisar'da su kesintisi","url":"HTTPS://manisahaber.com/haber/su-kesintisi/","category":"soru"}`)
	mustWriteFile(t, broken, `{"title":`)
	mustWriteFile(t, badCategory, `{"title":"Yeni park açıldı","url":"https://x.com/p","category":"haber"}`)

	summary := validateFiles([]string{first, second, broken, badCategory})
	if summary.Scanned != 4 || summary.Valid != 2 || summary.Invalid != 2 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	if summary.Duplicates != 1 || summary.Files[1].duplicateOf != first {
		t.Fatalf("expected 2.json to duplicate 1.json, got %+v", summary.Files[1])
	}
	if summary.Categories[news.CategoryComplaint] != 1 || summary.Categories[news.CategoryQuestion] != 1 {
		t.Fatalf("unexpected categories %v", summary.Categories)
	}
	if summary.Files[2].Errors["file"] != "malformed JSON" {
		t.Fatalf("expected malformed JSON, got %v", summary.Files[2].Errors)
	}
	if _, ok := summary.Files[3].Errors["category"]; !ok {
		t.Fatalf("expected category error, got %v", summary.Files[3].Errors)
	}
}

func TestJoinFieldErrorsIsSorted(t *testing.T) {
	t.Parallel()

	got := joinFieldErrors(map[string]string{"url": "required", "title": "too short"})
	if got != "title: too short; url: required" {
		t.Fatalf("unexpected join %q", got)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
