package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/codecat/go-libs/log"
	"gopkg.in/yaml.v3"
)

// captureStdout runs fn with os.Stdout redirected, which is where both the
// logger and the command output end up.
func captureStdout(t *testing.T, fn func() error) ([]byte, error) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	done := make(chan []byte)
	go func() {
		data, _ := io.ReadAll(r)
		done <- data
	}()

	ferr := fn()
	w.Close()
	return <-done, ferr
}

func TestInspectCommand(t *testing.T) {
	table := "Module Table: version 3, count 2\n" +
		"Columns: id, containing_id, start, end, entry, path\n" +
		"0, 0, 0x400000, 0x401000, 0x400000, /bin/app\n" +
		"1, 0, 0x401000, 0x402000, 0x0, /bin/app\n"
	path := filepath.Join(t.TempDir(), "drcov.app.log")
	err := os.WriteFile(path, buildTrace(t, table,
		bbRecord{Start: 0x20, Size: 8, ModuleID: 1},
	), 0644)
	if err != nil {
		t.Fatal(err)
	}

	old := log.CurrentConfig.MinLevel
	defer func() { log.CurrentConfig.MinLevel = old }()
	log.CurrentConfig.MinLevel = log.CatTrace

	data, err := captureStdout(t, func() error {
		cmd := newRootCommand()
		cmd.SetArgs([]string{"inspect", path, "--address", "0x401022"})
		return cmd.Execute()
	})
	if err != nil {
		t.Fatal(err)
	}
	out := bytes.NewBuffer(data)

	var report traceReport
	if err := yaml.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("report is not YAML: %s\n%s", err, out.String())
	}

	if report.ModuleVersion != 3 || len(report.Modules) != 2 {
		t.Fatalf("unexpected report:\n%s", out.String())
	}
	child := report.Modules[1]
	if child.SegmentOffset != "0x1000" || child.Containing == nil || *child.Containing != 0 || child.ExecutedBytes != 7 {
		t.Errorf("unexpected child module: %+v", child)
	}
	if report.Address == nil || report.Address.Offset != "0x22" || !report.Address.Executed {
		t.Errorf("unexpected address report: %+v", report.Address)
	}
}

func TestParseAddress(t *testing.T) {
	for _, s := range []string{"0x7FFF1000", "7fff1000"} {
		v, err := parseAddress(s)
		if err != nil || v != 0x7fff1000 {
			t.Errorf("parseAddress(%q) = 0x%x, %v", s, v, err)
		}
	}
	if _, err := parseAddress("zz"); err == nil {
		t.Error("expected an error")
	}
}
