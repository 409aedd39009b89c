package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func runArgs(args ...string) (int, string, string) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := run(context.Background(), args, stdout, stderr)
	return code, stdout.String(), stderr.String()
}

func TestCheck(t *testing.T) {
	code, out, errOut := runArgs("-nodes", "2", "-crash", "none", "check")
	if code != 0 {
		t.Fatalf("Expected exit code 0. Got: %v\n%v", code, errOut)
	}
	if !strings.Contains(out, `Property "ACID" (always):`) || !strings.Contains(out, "Complete:") {
		t.Errorf("Expected a report. Got:\n%v", out)
	}
}

func TestCheckAndReplayCounterexample(t *testing.T) {
	trace := filepath.Join(t.TempDir(), "trace.json")
	code, out, _ := runArgs("-nodes", "2", "-crash", "amnesia", "-log-level", "error", "check", "-trace", trace)
	if code != 1 {
		t.Fatalf("Expected exit code 1. Got: %v", code)
	}
	if !strings.Contains(out, "Counterexample") {
		t.Errorf("Expected the counterexample in the report. Got:\n%v", out)
	}

	code, out, errOut := runArgs("-nodes", "2", "-crash", "amnesia", "replay", trace)
	if code != 1 {
		t.Fatalf("Expected exit code 1. Got: %v\n%v", code, errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.HasPrefix(lines[0], "init\t") || lines[len(lines)-1] != "ACID: violated" {
		t.Errorf("Expected the replayed trace to violate ACID. Got:\n%v", out)
	}
}

func TestFlagsAfterArguments(t *testing.T) {
	trace := filepath.Join(t.TempDir(), "trace.json")
	if code, _, _ := runArgs("check", "-nodes", "2", "-crash", "amnesia", "-log-level", "error", "-trace", trace); code != 1 {
		t.Fatalf("Expected exit code 1. Got: %v", code)
	}
	// The crash mode given after the file must be used for the replay.
	code, out, errOut := runArgs("replay", trace, "-nodes", "2", "-crash", "amnesia")
	if code != 1 || !strings.HasSuffix(strings.TrimSpace(out), "ACID: violated") {
		t.Errorf("Expected the replayed trace to violate ACID. Got: %v\n%v%v", code, out, errOut)
	}
	if code, _, _ := runArgs("replay", trace, "other.json"); code != 2 {
		t.Errorf("Expected a usage error for extra arguments. Got: %v", code)
	}
}

func TestReplayWithoutCrashes(t *testing.T) {
	trace := filepath.Join(t.TempDir(), "trace.json")
	if code, _, _ := runArgs("-nodes", "2", "-crash", "amnesia", "-log-level", "error", "check", "-trace", trace); code != 1 {
		t.Fatalf("Expected exit code 1. Got: %v", code)
	}
	// Crash actions are not applicable when nodes never crash.
	code, _, errOut := runArgs("-nodes", "2", "-crash", "none", "replay", trace)
	if code != 1 || !strings.Contains(errOut, "twopc failed") {
		t.Errorf("Expected the replay to fail. Got: %v\n%v", code, errOut)
	}
}

func TestUsage(t *testing.T) {
	tests := []struct {
		args []string
		code int
	}{
		{[]string{}, 2},
		{[]string{"unknown"}, 2},
		{[]string{"replay"}, 2},
		{[]string{"-log-format", "xml", "check"}, 2},
		{[]string{"-strategy", "sideways", "check"}, 1},
		{[]string{"-nodes", "0", "check"}, 1},
	}
	for _, test := range tests {
		if code, _, _ := runArgs(test.args...); code != test.code {
			t.Errorf("twopc %v: expected exit code %v. Got: %v", strings.Join(test.args, " "), test.code, code)
		}
	}
}
