package output

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/google/pprof/profile"

	"github.com/mrzor/etw-gecko/internal/gecko"
)

// PprofWriter writes a gzipped pprof protobuf. Every library becomes a
// mapping keyed by its breakpad id and every distinct address a location.
type PprofWriter struct{}

func (w PprofWriter) Write(out io.Writer, p *gecko.Profile) error {
	prof, err := w.Convert(p)
	if err != nil {
		return err
	}
	return prof.Write(out)
}

// Convert builds the pprof representation of p.
func (PprofWriter) Convert(p *gecko.Profile) (*profile.Profile, error) {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{
			Type: "samples",
			Unit: "count",
		}},
		PeriodType: &profile.ValueType{
			Type: "cpu",
			Unit: "nanoseconds",
		},
		Period:    p.Interval().Nanoseconds(),
		TimeNanos: p.StartTime().UnixNano(),
	}

	for i, lib := range p.Libs() {
		prof.Mapping = append(prof.Mapping, &profile.Mapping{
			ID:      uint64(i + 1),
			Start:   lib.Start,
			Limit:   lib.End,
			File:    lib.Path,
			BuildID: lib.BreakpadID(),
		})
	}
	mappings := slices.Clone(prof.Mapping)
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].Start < mappings[j].Start })

	locations := make(map[uint64]*profile.Location)
	locationFor := func(addr uint64) *profile.Location {
		if loc, ok := locations[addr]; ok {
			return loc
		}
		loc := &profile.Location{
			ID:      uint64(len(prof.Location) + 1),
			Address: addr,
			Mapping: findMapping(mappings, addr),
		}
		locations[addr] = loc
		prof.Location = append(prof.Location, loc)
		return loc
	}

	first, last := math.Inf(1), math.Inf(-1)
	for _, t := range p.Threads() {
		for _, s := range t.Samples() {
			// pprof stacks are leaf first.
			locs := make([]*profile.Location, 0, len(s.Stack))
			for i := len(s.Stack) - 1; i >= 0; i-- {
				locs = append(locs, locationFor(s.Stack[i]))
			}
			prof.Sample = append(prof.Sample, &profile.Sample{
				Location: locs,
				Value:    []int64{1},
				Label:    map[string][]string{"thread": {t.DisplayName()}},
				NumLabel: map[string][]int64{
					"pid": {int64(t.PID())},
					"tid": {int64(t.TID())},
				},
			})
			first = math.Min(first, s.Time)
			last = math.Max(last, s.Time)
		}
	}
	// Sample times are raw trace clock readings, so only their span is meaningful.
	if last > first {
		prof.DurationNanos = int64((last - first) * float64(time.Millisecond))
	}

	if err := prof.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid pprof profile: %w", err)
	}
	return prof, nil
}

// findMapping returns the mapping containing addr from mappings sorted by start.
func findMapping(mappings []*profile.Mapping, addr uint64) *profile.Mapping {
	i := sort.Search(len(mappings), func(i int) bool { return mappings[i].Start > addr })
	if i == 0 {
		return nil
	}
	m := mappings[i-1]
	if addr >= m.Limit {
		return nil
	}
	return m
}
