package gecko

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLib_BreakpadID(t *testing.T) {
	lib := Lib{UUID: uuid.MustParse("3844dbb9-2017-4967-be7a-a4a2c20430fa"), Age: 0x1a}
	assert.Equal(t, "3844DBB920174967BE7AA4A2C20430FA1A", lib.BreakpadID())
}

func TestThreadJSON_InternsFramesAndStacks(t *testing.T) {
	th := NewThread(42, 0, 0, false)
	th.SetTID(7)
	th.SetName("Renderer")
	th.AddSample(0.01, []uint64{0x10, 0x20, 0x30}, 0)
	th.AddSample(0.02, []uint64{0x10, 0x20, 0x40}, 0)
	th.AddSample(0.03, nil, 0)

	got := th.toJSON()

	assert.Equal(t, "Renderer", got.Name)
	assert.Equal(t, uint32(42), got.PID)
	assert.Equal(t, uint32(7), got.TID)
	assert.Equal(t, []string{"0x10", "0x20", "0x30", "0x40"}, got.StringTable)
	require.Len(t, got.FrameTable.Data, 4)
	assert.Equal(t, 3, got.FrameTable.Data[3][0], "frame location points into the string table")

	// Stacks share their common prefix.
	assert.Equal(t, [][]any{
		{nil, 0},
		{0, 1},
		{1, 2},
		{1, 3},
	}, got.StackTable.Data)

	require.Len(t, got.Samples.Data, 3)
	assert.Equal(t, []any{2, 0.01, 0, uint64(0)}, got.Samples.Data[0])
	assert.Equal(t, []any{3, 0.02, 0, uint64(0)}, got.Samples.Data[1])
	assert.Nil(t, got.Samples.Data[2][0], "empty stacks serialize as null")
}

func TestThreadBuilder_AddSampleCopiesStack(t *testing.T) {
	th := NewThread(1, 0, 0, false)
	stack := []uint64{1, 2}
	th.AddSample(1, stack, 0)
	stack[0] = 99

	assert.Equal(t, []uint64{1, 2}, th.Samples()[0].Stack)
}

func TestThreadBuilder_DisplayName(t *testing.T) {
	assert.Equal(t, "GeckoMain", NewThread(1, 0, 0, true).DisplayName())

	th := NewThread(1, 3, 0, false)
	assert.Equal(t, "Thread 3", th.DisplayName())
	th.SetTID(1234)
	assert.Equal(t, "Thread 1234", th.DisplayName())
}

func TestProfile_WriteJSON(t *testing.T) {
	start := time.Unix(1700000000, 0)
	p := NewProfile(start, "firefox", time.Second/8192)
	p.AddLib("xul.pdb", `C:\firefox\xul.dll`, uuid.MustParse("3844dbb9-2017-4967-be7a-a4a2c20430fa"), 2, "x86_64", 0x1000, 0x3000)

	second := NewThread(42, 1, 0, false)
	first := NewThread(42, 0, 0, true)
	first.AddSample(1, []uint64{0x1100}, 0)
	p.AddThread(second)
	p.AddThread(first)

	assert.Equal(t, 1, p.SampleCount())

	var buf bytes.Buffer
	require.NoError(t, p.WriteJSON(&buf))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	meta := doc["meta"].(map[string]any)
	assert.Equal(t, "firefox", meta["product"])
	assert.InDelta(t, 1000.0/8192, meta["interval"], 1e-6)
	assert.InDelta(t, 1700000000000.0, meta["startTime"], 1)

	libs := doc["libs"].([]any)
	require.Len(t, libs, 1)
	lib := libs[0].(map[string]any)
	assert.Equal(t, "xul.pdb", lib["debugName"])
	assert.Equal(t, `C:\firefox\xul.dll`, lib["path"])
	assert.Equal(t, "3844DBB920174967BE7AA4A2C20430FA2", lib["breakpadId"])
	assert.Equal(t, float64(0x1000), lib["start"])
	assert.Equal(t, float64(0x3000), lib["end"])

	threads := doc["threads"].([]any)
	require.Len(t, threads, 2)
	assert.Equal(t, "GeckoMain", threads[0].(map[string]any)["name"], "threads are ordered by index")
}

func TestProfile_DocumentLibs(t *testing.T) {
	p := NewProfile(time.Unix(0, 0), "firefox", time.Millisecond)
	p.AddLib("xul.pdb", `C:\firefox\xul.dll`, uuid.MustParse("3844dbb9-2017-4967-be7a-a4a2c20430fa"), 2, "x86_64", 0x1000, 0x3000)
	p.AddLib("ntkrnlmp.pdb", "ntoskrnl.exe", uuid.Nil, 0x10, "x86_64", 0xfffff80000000000, 0xfffff80000100000)

	want := []LibJSON{
		{
			Name:       "xul.pdb",
			Path:       `C:\firefox\xul.dll`,
			DebugName:  "xul.pdb",
			DebugPath:  "xul.pdb",
			BreakpadID: "3844DBB920174967BE7AA4A2C20430FA2",
			Arch:       "x86_64",
			Start:      0x1000,
			End:        0x3000,
		},
		{
			Name:       "ntkrnlmp.pdb",
			Path:       "ntoskrnl.exe",
			DebugName:  "ntkrnlmp.pdb",
			DebugPath:  "ntkrnlmp.pdb",
			BreakpadID: "0000000000000000000000000000000010",
			Arch:       "x86_64",
			Start:      0xfffff80000000000,
			End:        0xfffff80000100000,
		},
	}
	if diff := cmp.Diff(want, p.Document().Libs); diff != "" {
		t.Errorf("libs mismatch (-want +got):\n%s", diff)
	}
}
