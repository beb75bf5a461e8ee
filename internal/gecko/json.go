package gecko

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Document is the serialized form of a profile.
type Document struct {
	Meta         Meta         `json:"meta"`
	Libs         []LibJSON    `json:"libs"`
	Threads      []ThreadJSON `json:"threads"`
	Processes    []any        `json:"processes"`
	PausedRanges []any        `json:"pausedRanges"`
}

// Meta is the profile header.
type Meta struct {
	Version         int        `json:"version"`
	Interval        float64    `json:"interval"`
	StartTime       float64    `json:"startTime"`
	ShutdownTime    *float64   `json:"shutdownTime"`
	ProcessType     int        `json:"processType"`
	Product         string     `json:"product"`
	Stackwalk       int        `json:"stackwalk"`
	Debug           int        `json:"debug"`
	GCPoison        int        `json:"gcpoison"`
	AsyncStack      int        `json:"asyncstack"`
	Presymbolicated bool       `json:"presymbolicated"`
	Categories      []Category `json:"categories"`
	MarkerSchema    []any      `json:"markerSchema"`
}

// Category is a frame category shown by the profiler UI.
type Category struct {
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	Subcategories []string `json:"subcategories"`
}

// LibJSON is a serialized library.
type LibJSON struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	DebugName  string `json:"debugName"`
	DebugPath  string `json:"debugPath"`
	BreakpadID string `json:"breakpadId"`
	Arch       string `json:"arch"`
	Start      uint64 `json:"start"`
	End        uint64 `json:"end"`
	Offset     uint64 `json:"offset"`
}

// Table is a schema plus row data, the layout used by every Gecko thread table.
type Table struct {
	Schema map[string]int `json:"schema"`
	Data   [][]any        `json:"data"`
}

// ThreadJSON is a serialized thread.
type ThreadJSON struct {
	Name           string   `json:"name"`
	ProcessType    string   `json:"processType"`
	IsMainThread   bool     `json:"isMainThread"`
	RegisterTime   float64  `json:"registerTime"`
	UnregisterTime *float64 `json:"unregisterTime"`
	PID            uint32   `json:"pid"`
	TID            uint32   `json:"tid"`
	Markers        Table    `json:"markers"`
	Samples        Table    `json:"samples"`
	FrameTable     Table    `json:"frameTable"`
	StackTable     Table    `json:"stackTable"`
	StringTable    []string `json:"stringTable"`
}

var (
	markerSchema = map[string]int{"name": 0, "startTime": 1, "endTime": 2, "phase": 3, "category": 4, "data": 5}
	sampleSchema = map[string]int{"stack": 0, "time": 1, "eventDelay": 2, "threadCPUDelta": 3}
	frameSchema  = map[string]int{
		"location": 0, "relevantForJS": 1, "innerWindowID": 2, "implementation": 3,
		"line": 4, "column": 5, "category": 6, "subcategory": 7,
	}
	stackSchema = map[string]int{"prefix": 0, "frame": 1}
)

// Document builds the serializable form of the profile.
func (p *Profile) Document() Document {
	doc := Document{
		Meta: Meta{
			Version:     formatVersion,
			Interval:    float64(p.interval.Nanoseconds()) / 1e6,
			StartTime:   float64(p.startTime.UnixNano()) / 1e6,
			ProcessType: 0,
			Product:     p.product,
			Stackwalk:   1,
			Categories: []Category{
				{Name: "Other", Color: "grey", Subcategories: []string{"Other"}},
			},
			MarkerSchema: []any{},
		},
		Libs:         make([]LibJSON, 0, len(p.libs)),
		Threads:      make([]ThreadJSON, 0, len(p.threads)),
		Processes:    []any{},
		PausedRanges: []any{},
	}

	for _, lib := range p.libs {
		doc.Libs = append(doc.Libs, LibJSON{
			Name:       lib.Name,
			Path:       lib.Path,
			DebugName:  lib.DebugName,
			DebugPath:  lib.DebugPath,
			BreakpadID: lib.BreakpadID(),
			Arch:       lib.Arch,
			Start:      lib.Start,
			End:        lib.End,
		})
	}

	threads := append([]*ThreadBuilder(nil), p.threads...)
	sort.SliceStable(threads, func(i, j int) bool { return threads[i].index < threads[j].index })
	for _, t := range threads {
		doc.Threads = append(doc.Threads, t.toJSON())
	}

	return doc
}

// WriteJSON serializes the profile to w.
func (p *Profile) WriteJSON(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := json.NewEncoder(bw).Encode(p.Document()); err != nil {
		return fmt.Errorf("encoding gecko profile: %w", err)
	}
	return bw.Flush()
}

type stackKey struct {
	prefix int // -1 for a root
	frame  int
}

// toJSON interns strings, frames and stack prefixes.
func (t *ThreadBuilder) toJSON() ThreadJSON {
	var (
		stringTable []string
		frameRows   [][]any
		stackRows   [][]any
		sampleRows  = make([][]any, 0, len(t.samples))
		frameIndex  = make(map[uint64]int)
		stackIndex  = make(map[stackKey]int)
	)

	frameFor := func(addr uint64) int {
		if idx, ok := frameIndex[addr]; ok {
			return idx
		}
		stringTable = append(stringTable, fmt.Sprintf("0x%x", addr))
		idx := len(frameRows)
		frameRows = append(frameRows, []any{len(stringTable) - 1, false, 0, nil, nil, nil, nil, nil})
		frameIndex[addr] = idx
		return idx
	}

	for _, s := range t.samples {
		var stack any
		prefix := -1
		for _, addr := range s.Stack {
			key := stackKey{prefix: prefix, frame: frameFor(addr)}
			idx, ok := stackIndex[key]
			if !ok {
				var prefixCol any
				if prefix >= 0 {
					prefixCol = prefix
				}
				idx = len(stackRows)
				stackRows = append(stackRows, []any{prefixCol, key.frame})
				stackIndex[key] = idx
			}
			prefix = idx
		}
		if prefix >= 0 {
			stack = prefix
		}
		sampleRows = append(sampleRows, []any{stack, s.Time, 0, s.CPUDelta})
	}

	if stringTable == nil {
		stringTable = []string{}
	}
	return ThreadJSON{
		Name:         t.DisplayName(),
		ProcessType:  "default",
		IsMainThread: t.isMain,
		RegisterTime: t.startTime,
		PID:          t.pid,
		TID:          t.tid,
		Markers:      Table{Schema: markerSchema, Data: [][]any{}},
		Samples:      Table{Schema: sampleSchema, Data: sampleRows},
		FrameTable:   Table{Schema: frameSchema, Data: nonNil(frameRows)},
		StackTable:   Table{Schema: stackSchema, Data: nonNil(stackRows)},
		StringTable:  stringTable,
	}
}

func nonNil(rows [][]any) [][]any {
	if rows == nil {
		return [][]any{}
	}
	return rows
}
