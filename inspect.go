package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/codecat/go-libs/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type traceReport struct {
	Path          string         `yaml:"path"`
	Version       int            `yaml:"version"`
	Flavor        string         `yaml:"flavor"`
	ModuleVersion int            `yaml:"module_table_version"`
	Modules       []moduleReport `yaml:"modules"`
	Address       *addressReport `yaml:"address,omitempty"`
}

type moduleReport struct {
	Index         int    `yaml:"index"`
	ID            int    `yaml:"id"`
	Path          string `yaml:"path"`
	Base          string `yaml:"base"`
	Size          string `yaml:"size"`
	SegmentOffset string `yaml:"segment_offset"`
	Containing    *int   `yaml:"containing,omitempty"`
	ExecutedBytes uint64 `yaml:"executed_bytes"`
}

type addressReport struct {
	Address  string `yaml:"address"`
	Module   string `yaml:"module,omitempty"`
	Offset   string `yaml:"offset,omitempty"`
	Executed bool   `yaml:"executed"`
}

func hex64(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func newTraceReport(ti *traceInfo) *traceReport {
	ret := &traceReport{
		Path:          ti.path,
		Version:       ti.version,
		Flavor:        ti.flavor,
		ModuleVersion: ti.moduleVersion,
	}
	for _, m := range ti.loadedModules() {
		mr := moduleReport{
			Index:         m.index,
			ID:            m.id,
			Path:          m.path,
			Base:          hex64(m.segmentStart),
			Size:          hex64(m.size),
			SegmentOffset: hex64(m.segmentOffset),
			ExecutedBytes: m.executed.GetCardinality(),
		}
		if m.containing != noContainer {
			containing := m.containing
			mr.Containing = &containing
		}
		ret.Modules = append(ret.Modules, mr)
	}
	return ret
}

// locate reports the module holding a runtime address, as recorded in the trace.
func (r *traceReport) locate(ti *traceInfo, addr uint64) {
	r.Address = &addressReport{Address: hex64(addr)}

	mod := ti.getModuleAt(addr)
	if mod == nil {
		return
	}
	offset := mod.offsetOf(addr)
	r.Address.Module = mod.path
	r.Address.Offset = hex64(offset)
	r.Address.Executed = mod.wasExecuted(offset)
}

func (r *traceReport) write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "unable to encode trace report")
	}
	return enc.Close()
}

func parseAddress(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid address '%s'", s)
	}
	return v, nil
}

func newInspectCommand() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "inspect <trace>",
		Short: "Print the decoded header and module table of a drcov trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			// The report shares stdout with the logger.
			log.CurrentConfig.MinLevel = log.CatWarn + 1

			info, err := decodeTraceFile(args[0], &moduleFilters{})
			if err != nil {
				return errors.Wrapf(err, "unable to decode %s", args[0])
			}

			report := newTraceReport(info)
			if address != "" {
				addr, err := parseAddress(address)
				if err != nil {
					return err
				}
				report.locate(info, addr)
			}
			return report.write(c.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Report the module and offset of this runtime address (hex)")
	return cmd
}
