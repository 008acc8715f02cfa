package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/codecat/go-libs/log"
	"github.com/sirkon/deepequal"
	"github.com/spf13/pflag"
)

func TestInputFiles(t *testing.T) {
	dir := t.TempDir()
	traces := filepath.Join(dir, "traces")
	for _, name := range []string{"drcov.b.1.log", "drcov.a.2.log", "bbcov.c.log", "notes.txt"} {
		writeFile(t, filepath.Join(traces, name))
	}
	single := filepath.Join(dir, "single.log")
	writeFile(t, single)

	list := filepath.Join(dir, "list.txt")
	content := strings.Join([]string{
		filepath.Join(traces, "drcov.b.1.log"),
		"",
		single,
	}, "\n")
	if err := os.WriteFile(list, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := inputFiles(&options{Input: single, List: list, Directory: traces})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		canonicalPath(single),
		canonicalPath(filepath.Join(traces, "drcov.b.1.log")),
		canonicalPath(filepath.Join(traces, "bbcov.c.log")),
		canonicalPath(filepath.Join(traces, "drcov.a.2.log")),
	}
	if !reflect.DeepEqual(want, got) {
		deepequal.SideBySide(t, "input files", want, got)
	}
}

func TestValidateOptions(t *testing.T) {
	dir := t.TempDir()
	trace := filepath.Join(dir, "drcov.app.log")
	writeFile(t, trace)

	tests := []struct {
		name string
		opts options
		ok   bool
	}{
		{"no input", options{Output: filepath.Join(dir, "out.info")}, false},
		{"missing input", options{Input: filepath.Join(dir, "nope"), Output: filepath.Join(dir, "out.info")}, false},
		{"input is a directory", options{Input: dir, Output: filepath.Join(dir, "out.info")}, false},
		{"directory is a file", options{Directory: trace, Output: filepath.Join(dir, "out.info")}, false},
		{"bad output dir", options{Input: trace, Output: filepath.Join(dir, "nope", "out.info")}, false},
		{"bad filter", options{Input: trace, Output: filepath.Join(dir, "out.info"), ModuleFilters: []string{"("}}, false},
		{"bad log level", options{Input: trace, Output: filepath.Join(dir, "out.info"), LogLevel: "loud"}, false},
		{"bad path map", options{Input: trace, Output: filepath.Join(dir, "out.info"), PathMaps: []string{"nocolon"}}, false},
		{"valid", options{
			Input:             trace,
			Directory:         dir,
			Output:            filepath.Join(dir, "out.info"),
			ModuleFilters:     []string{`app`},
			SourceSkipFilters: []string{`/usr/`},
			PathMaps:          []string{`^/build:/src`},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.opts.validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected an error")
			}
			if tt.ok && (len(cfg.moduleFilters.include) != 1 || len(cfg.sourceFilters.skip) != 1 || len(cfg.moduleFilters.pathMap) != 1) {
				t.Errorf("filters were not compiled: %+v", cfg)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drcov2lcov.yaml")
	content := "output: /tmp/from-config.info\n" +
		"input: /tmp/from-config.log\n" +
		"log-level: warn\n" +
		"module-filter:\n  - libfoo\n  - 'lib(bar|baz)'\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	opts := &options{}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.bindFlags(flags)
	if err := flags.Parse([]string{"--config", path, "-i", "/tmp/from-flag.log"}); err != nil {
		t.Fatal(err)
	}
	if err := opts.loadConfigFile(flags); err != nil {
		t.Fatal(err)
	}

	if opts.Input != "/tmp/from-flag.log" {
		t.Errorf("command line input was overridden: %s", opts.Input)
	}
	if opts.Output != "/tmp/from-config.info" {
		t.Errorf("output = %s", opts.Output)
	}
	want := []string{"libfoo", "lib(bar|baz)"}
	if !reflect.DeepEqual(want, opts.ModuleFilters) {
		deepequal.SideBySide(t, "module filters", want, opts.ModuleFilters)
	}
	if opts.LogLevel != "warn" {
		t.Errorf("log level = %s", opts.LogLevel)
	}
	if opts.DebugRoot != defaultDebugRoot {
		t.Errorf("debug root = %s", opts.DebugRoot)
	}
}

func TestSetLogLevel(t *testing.T) {
	old := log.CurrentConfig.MinLevel
	defer func() { log.CurrentConfig.MinLevel = old }()

	if err := setLogLevel("WARN"); err != nil {
		t.Fatal(err)
	}
	if log.CurrentConfig.MinLevel != log.CatWarn {
		t.Errorf("min level = %v, want warnings", log.CurrentConfig.MinLevel)
	}
	if err := setLogLevel(""); err != nil || log.CurrentConfig.MinLevel != log.CatInfo {
		t.Errorf("empty level should default to info: %v", err)
	}
	if err := setLogLevel("verbose"); err == nil {
		t.Error("expected an error")
	}
}
