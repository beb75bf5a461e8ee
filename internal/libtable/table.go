// Package libtable accumulates module loads and turns them into library
// records once their RSDS debug identifiers arrive.
package libtable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrMissingImageRecord is returned when a debug identifier refers to an
// image base that no load event recorded.
var ErrMissingImageRecord = errors.New("missing image record")

// kernelModules are the only kernel-space modules that get finalized, so a
// symbolicator does not have to fetch symbols for every loaded driver.
var kernelModules = []string{"ntkrnlmp", "win32k"}

// Image is one recorded module load.
type Image struct {
	FileName string
	Size     uint32
}

// Library is a finalized module descriptor.
type Library struct {
	Name      string // code file name from the load event
	DebugName string // PDB file name
	UUID      uuid.UUID
	Age       uint32
	Arch      string
	Start     uint64
	End       uint64 // exclusive
}

// Table maps image base addresses to recorded loads.
type Table struct {
	images map[uint64]Image
}

// New creates an empty table.
func New() *Table {
	return &Table{images: make(map[uint64]Image)}
}

// RecordImage inserts or overwrites the load at base.
func (t *Table) RecordImage(base uint64, size uint32, fileName string) {
	t.images[base] = Image{FileName: fileName, Size: size}
}

// Len returns the number of recorded images.
func (t *Table) Len() int {
	return len(t.images)
}

// Finalize combines the load recorded at base with its debug identity.
func (t *Table) Finalize(base uint64, guid uuid.UUID, age uint32, pdbFileName string, pointerSize uint32) (Library, error) {
	img, ok := t.images[base]
	if !ok {
		return Library{}, fmt.Errorf("image base 0x%x (%s): %w", base, pdbFileName, ErrMissingImageRecord)
	}
	return Library{
		Name:      img.FileName,
		DebugName: pdbFileName,
		UUID:      guid,
		Age:       age,
		Arch:      Arch(pointerSize),
		Start:     base,
		End:       base + uint64(img.Size),
	}, nil
}

// AllowKernelModule reports whether a module loaded in the kernel
// pseudo-process should be finalized.
func AllowKernelModule(pdbFileName string) bool {
	for _, name := range kernelModules {
		if strings.Contains(pdbFileName, name) {
			return true
		}
	}
	return false
}

// Arch returns the architecture tag for a pointer width.
func Arch(pointerSize uint32) string {
	if pointerSize == 4 {
		return "x86"
	}
	return "x86_64"
}
