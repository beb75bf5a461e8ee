package output

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/multierr"

	"github.com/mrzor/etw-gecko/internal/gecko"
)

// Output formats.
const (
	FormatGecko = "gecko"
	FormatPprof = "pprof"
)

// Writer serializes a profile.
type Writer interface {
	Write(w io.Writer, p *gecko.Profile) error
}

// New returns the writer for a format name.
func New(format string) (Writer, error) {
	switch format {
	case FormatGecko:
		return GeckoWriter{}, nil
	case FormatPprof:
		return PprofWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want %s or %s)", format, FormatGecko, FormatPprof)
	}
}

// WriteFile writes p to path, replacing any existing file.
func WriteFile(path string, w Writer, p *gecko.Profile) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if err := w.Write(f, p); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// GeckoWriter writes the Firefox Profiler JSON format.
type GeckoWriter struct{}

func (GeckoWriter) Write(w io.Writer, p *gecko.Profile) error {
	return p.WriteJSON(w)
}
