package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/codecat/go-libs/log"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultOutputFile = "coverage.info"
	defaultLogLevel   = "info"
	envPrefix         = "DRCOV2LCOV"
)

type options struct {
	Input     string
	Directory string
	List      string
	Output    string

	ModuleFilters     []string
	ModuleSkipFilters []string
	SourceFilters     []string
	SourceSkipFilters []string
	PathMaps          []string

	ReduceSetPath string
	DebugRoot     string
	ConfigFile    string
	LogLevel      string
}

// config is the validated form of options.
type config struct {
	output        string
	reduceSetPath string
	debugRoot     string

	moduleFilters moduleFilters
	sourceFilters sourceFilters
}

func (opts *options) bindFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&opts.Input, "input", "i", "", "The path to the input file")
	flags.StringVarP(&opts.Directory, "directory", "d", "", "Directory with drcov.*.log files to process")
	flags.StringVarP(&opts.List, "list", "l", "", "Text file listing log files to process")
	flags.StringVarP(&opts.Output, "output", "o", defaultOutputFile, "The path to the output file")
	flags.StringArrayVar(&opts.ModuleFilters, "module-filter", nil,
		"Only include coverage for modules that match the given regular expression")
	flags.StringArrayVar(&opts.ModuleSkipFilters, "module-skip-filter", nil,
		"Skip coverage for the modules that match the given regular expression")
	flags.StringArrayVar(&opts.SourceFilters, "source-filter", nil,
		"Only include coverage for source files that match the given regular expression")
	flags.StringArrayVar(&opts.SourceSkipFilters, "source-skip-filter", nil,
		"Skip coverage for source files that match the given regular expression")
	flags.StringArrayVarP(&opts.PathMaps, "path-map", "p", nil,
		"Replace the first match of <regex> in module lines with <replacement> before looking for debug information, given as <regex>:<replacement>")
	flags.StringVarP(&opts.ReduceSetPath, "reduce-set-path", "r", "",
		"Write a reduced list of input files with the same coverage information to the given path")
	flags.StringVar(&opts.DebugRoot, "debug-root", defaultDebugRoot, "Global directory for separate debug files")
	flags.StringVar(&opts.ConfigFile, "config", "", "YAML file with default values for these flags")
	flags.StringVar(&opts.LogLevel, "log-level", defaultLogLevel, "Minimum level of log messages: trace, debug, info or warn")
}

// loadConfigFile fills every flag that was not given on the command line
// from the config file or DRCOV2LCOV_* environment variables.
func (opts *options) loadConfigFile(flags *pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		err := v.ReadInConfig()
		if err != nil {
			return errors.Wrapf(err, "unable to read config file %s", opts.ConfigFile)
		}
	}

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || f.Name == "config" || !v.IsSet(f.Name) {
			return
		}

		values := []string{v.GetString(f.Name)}
		if f.Value.Type() == "stringArray" {
			values = v.GetStringSlice(f.Name)
		}
		for _, value := range values {
			if serr := flags.Set(f.Name, value); serr != nil {
				err = errors.Wrapf(serr, "invalid value for %s", f.Name)
				return
			}
		}
	})
	return err
}

// setLogLevel configures the global logger. All levels are printed to stdout.
func setLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "trace":
		log.CurrentConfig.MinLevel = log.CatTrace
	case "debug":
		log.CurrentConfig.MinLevel = log.CatDebug
	case "", "info":
		log.CurrentConfig.MinLevel = log.CatInfo
	case "warn", "warning":
		log.CurrentConfig.MinLevel = log.CatWarn
	default:
		return errors.Errorf("unknown log level '%s'", level)
	}
	return nil
}

func (opts *options) validate() (*config, error) {
	if err := setLogLevel(opts.LogLevel); err != nil {
		return nil, err
	}

	if opts.Input == "" && opts.Directory == "" && opts.List == "" {
		return nil, errors.New("one of --input, --directory or --list is required")
	}

	if opts.Input != "" {
		if err := expectFile(opts.Input, "input path"); err != nil {
			return nil, err
		}
	}
	if opts.List != "" {
		if err := expectFile(opts.List, "list file path"); err != nil {
			return nil, err
		}
	}
	if opts.Directory != "" {
		st, err := os.Stat(opts.Directory)
		if err != nil {
			return nil, errors.Errorf("directory '%s' does not exist", opts.Directory)
		}
		if !st.IsDir() {
			return nil, errors.Errorf("given directory '%s' is not a directory", opts.Directory)
		}
	}

	if err := expectParentDir(opts.Output, "target output path"); err != nil {
		return nil, err
	}
	if opts.ReduceSetPath != "" {
		if err := expectParentDir(opts.ReduceSetPath, "reduced set path"); err != nil {
			return nil, err
		}
	}

	ret := &config{
		output:        opts.Output,
		reduceSetPath: opts.ReduceSetPath,
		debugRoot:     opts.DebugRoot,
	}

	var err error
	if ret.moduleFilters.include, err = parseFilters(opts.ModuleFilters); err != nil {
		return nil, err
	}
	if ret.moduleFilters.skip, err = parseFilters(opts.ModuleSkipFilters); err != nil {
		return nil, err
	}
	if ret.sourceFilters.include, err = parseFilters(opts.SourceFilters); err != nil {
		return nil, err
	}
	if ret.sourceFilters.skip, err = parseFilters(opts.SourceSkipFilters); err != nil {
		return nil, err
	}
	for _, s := range opts.PathMaps {
		pm, err := parseReplacementFilter(s)
		if err != nil {
			return nil, err
		}
		ret.moduleFilters.pathMap = append(ret.moduleFilters.pathMap, pm)
	}

	return ret, nil
}

func expectFile(path, what string) error {
	st, err := os.Stat(path)
	if err != nil {
		return errors.Errorf("%s '%s' does not exist", what, path)
	}
	if !st.Mode().IsRegular() {
		return errors.Errorf("%s '%s' is not a file", what, path)
	}
	return nil
}

func expectParentDir(path, what string) error {
	st, err := os.Stat(filepath.Dir(path))
	if err != nil || !st.IsDir() {
		return errors.Errorf("%s '%s' does not point to a valid directory", what, path)
	}
	return nil
}
