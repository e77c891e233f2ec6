package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yuanying/mobireader/internal/mobi"
	"github.com/yuanying/mobireader/internal/mobi/mobitest"
)

const sampleText = `<html><head><title>Sample</title></head><body>` +
	`<p><a filepos="0000000108">Chapter One</a></p><mbp:pagebreak/>` +
	`<h1>Chapter One</h1><p>It was a bright cold day.</p><img recindex="00001"></body></html>`

func writeSampleBook(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for x := range 20 {
		img.Set(x, 5, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}

	exth := (&mobitest.EXTH{}).
		AddString(mobi.EXTHAuthor, "Jane Doe").
		AddUint32(mobi.EXTHCoverOffset, 0)
	book := mobitest.Book{
		Name: "Sample_Book",
		Text: []byte(sampleText),
		Header: mobitest.Record0{
			Compression: mobitest.CompressionPalmDoc,
			RecordSize:  64,
			FullName:    []byte("Sample Book"),
			EXTH:        exth,
		},
		Images: [][]byte{buf.Bytes()},
	}

	path := filepath.Join(t.TempDir(), "sample.mobi")
	if err := os.WriteFile(path, book.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestInfoCommand(t *testing.T) {
	path := writeSampleBook(t)
	out, err := runCommand(t, "info", path)
	if err != nil {
		t.Fatalf("info error = %v", err)
	}

	for _, want := range []string{
		"Name:          Sample_Book",
		"Type:          BOOKMOBI",
		"Compression:   palmdoc",
		"DRM:           no",
		"Images:        1",
		"Cover:         0",
		"Title:         Sample Book",
		"Author:        Jane Doe",
		"Valid:         yes",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestTextCommand(t *testing.T) {
	path := writeSampleBook(t)

	out, err := runCommand(t, "text", path)
	if err != nil {
		t.Fatalf("text error = %v", err)
	}
	if out != sampleText {
		t.Fatalf("text output = %q, want %q", out, sampleText)
	}

	out, err = runCommand(t, "text", "--html", path)
	if err != nil {
		t.Fatalf("text --html error = %v", err)
	}
	for _, want := range []string{`href="#0000000108"`, `<a name="0000000108">`, `src="pdbrec:/00001"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("text --html output missing %q:\n%s", want, out)
		}
	}

	out, err = runCommand(t, "text", "--plain", path)
	if err != nil {
		t.Fatalf("text --plain error = %v", err)
	}
	if want := "Chapter One\nChapter One\nIt was a bright cold day."; out != want {
		t.Fatalf("text --plain output = %q, want %q", out, want)
	}

	out, err = runCommand(t, "text", "--limit", "10", path)
	if err != nil {
		t.Fatalf("text --limit error = %v", err)
	}
	if out != sampleText[:64] {
		t.Fatalf("text --limit output = %q, want first record", out)
	}

	if _, err := runCommand(t, "text", "--html", "--plain", path); err == nil {
		t.Fatal("text --html --plain error = nil")
	}
}

func TestTextCommand_OutputFile(t *testing.T) {
	path := writeSampleBook(t)
	outPath := filepath.Join(t.TempDir(), "book.html")

	out, err := runCommand(t, "text", "--html", "-o", outPath, path)
	if err != nil {
		t.Fatalf("text error = %v", err)
	}
	if out != "" {
		t.Fatalf("stdout = %q, want empty", out)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `<p style="page-break-after:always"></p>`) {
		t.Fatalf("output file missing page break:\n%s", data)
	}
}

func TestImagesCommand(t *testing.T) {
	path := writeSampleBook(t)
	dir := filepath.Join(t.TempDir(), "images")

	out, err := runCommand(t, "images", "-o", dir, "--thumbnail", "10x10", path)
	if err != nil {
		t.Fatalf("images error = %v", err)
	}

	imagePath := filepath.Join(dir, "image0001.png")
	thumbPath := filepath.Join(dir, "thumbnail.png")
	if !strings.Contains(out, imagePath) || !strings.Contains(out, thumbPath) {
		t.Fatalf("images output = %q, want both paths", out)
	}

	f, err := os.Open(thumbPath)
	if err != nil {
		t.Fatalf("Open(thumbnail) error = %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("DecodeConfig(thumbnail) error = %v", err)
	}
	if cfg.Width != 10 || cfg.Height != 5 {
		t.Fatalf("thumbnail = %dx%d, want 10x5", cfg.Width, cfg.Height)
	}

	if _, err := os.Stat(imagePath); err != nil {
		t.Fatalf("Stat(image) error = %v", err)
	}
}

func TestCommands_MissingFile(t *testing.T) {
	if _, err := runCommand(t, "info", filepath.Join(t.TempDir(), "missing.mobi")); err == nil {
		t.Fatal("info on missing file error = nil")
	}
}
