package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func runAccountsCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(append([]string{"accounts"}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestAccountsCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	writeFile(t, path, accountsFixture)

	out, err := runAccountsCmd(t, "--accounts", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"monkey-1", "Monkey One#0001", "Bongo", "bongo.png"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in card output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "keeper") {
		t.Errorf("non-monkey account shown without --all:\n%s", out)
	}
}

func TestAccountsCmdAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	writeFile(t, path, accountsFixture)

	out, err := runAccountsCmd(t, "--accounts", path, "--all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out, "keeper (not a monkey)") {
		t.Errorf("expected non-monkey marker with --all, got:\n%s", out)
	}
	if !strings.Contains(out, "monkey-1") {
		t.Errorf("expected monkey card with --all, got:\n%s", out)
	}
}

func TestAccountsCmdNoMonkeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	writeFile(t, path, `{"accounts": [{"id": "keeper", "discord": {}, "info": {}}]}`)

	out, err := runAccountsCmd(t, "--accounts", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "No accounts to show.\n" {
		t.Errorf("output = %q, want %q", out, "No accounts to show.\n")
	}
}

func TestAccountsCmdMissingFile(t *testing.T) {
	_, err := runAccountsCmd(t, "--accounts", filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing accounts file")
	}
	if !strings.Contains(err.Error(), "accounts file not found") {
		t.Errorf("unexpected error: %v", err)
	}
}
