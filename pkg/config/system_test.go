package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/geoinv/aem-rjmcmc/pkg/config"
)

func TestReadSystemFileParsesRowsAndOrientations(t *testing.T) {
	text := "freq tor tmom tx ty tz ror rmom rx ry rz\n" +
		"400 z 1 0 0 0 z 1 7.86 0 0\n" +
		"1800 z 1 0 0 0 z 1 7.86 0 0\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "system.stm")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sys, err := config.ReadSystemFile(path)
	if err != nil {
		t.Fatalf("ReadSystemFile: %v", err)
	}
	if got := len(sys.Frequencies); got != 2 {
		t.Fatalf("expected 2 frequencies, got %d", got)
	}
	if sys.Frequencies[1] != 1800 {
		t.Fatalf("expected second frequency 1800, got %v", sys.Frequencies[1])
	}
}

func TestReadSystemFileRejectsMissingFreqHeader(t *testing.T) {
	text := "a tor tmom tx ty tz ror rmom rx ry rz\n400 z 1 0 0 0 z 1 7.86 0 0\n"
	dir := t.TempDir()
	path := filepath.Join(dir, "system.stm")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := config.ReadSystemFile(path); err == nil {
		t.Fatal("expected an error when the header lacks 'freq'")
	}
}
