package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poelog/poelog-go/pkg/poelog"
)

const cliSample = "2024/01/01 00:00:01 123 abc [INFO Client 1] : You have entered The Forest.\n" +
	"2024/01/01 00:00:02 124 abc [INFO Client 1] : SomeExile (Witch) is now level 12\n"

func TestParseCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Client.txt")
	if err := os.WriteFile(path, []byte(cliSample), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"parse", "--format", "pretty", "--types", "level_up", path})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		parseFormat = "jsonl"
		parseTypes = nil
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	want := "] ^ SomeExile (Witch) reached level 12\n"
	if !strings.HasSuffix(out.String(), want) || strings.Count(out.String(), "\n") != 1 {
		t.Errorf("output = %q, want one line ending in %q", out.String(), want)
	}
}

func TestWriteRecords_SkipsInvalidUTF8(t *testing.T) {
	input := ": You have entered A.\n\xff\n: You have entered B.\n"
	var out bytes.Buffer
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	seq := poelog.ParseReader(context.Background(), strings.NewReader(input))
	if err := writeRecords(seq, &out, log, "-"); err != nil {
		t.Fatalf("writeRecords() error = %v", err)
	}
	if n := strings.Count(out.String(), "\n"); n != 2 {
		t.Errorf("got %d records, want 2: %q", n, out.String())
	}
}

func TestWriteRecords_StopOnError(t *testing.T) {
	stopOnError = true
	t.Cleanup(func() { stopOnError = false })

	input := ": You have entered A.\n\xff\n: You have entered B.\n"
	var out bytes.Buffer
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	seq := poelog.ParseReader(context.Background(), strings.NewReader(input))
	if err := writeRecords(seq, &out, log, "-"); err == nil {
		t.Fatal("writeRecords() should fail on invalid UTF-8")
	}
	if n := strings.Count(out.String(), "\n"); n != 1 {
		t.Errorf("got %d records before the error, want 1", n)
	}
}
