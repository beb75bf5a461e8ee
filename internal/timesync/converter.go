package timesync

import "fmt"

// TicksPerMillisecond is the resolution of ETW system-time timestamps (100ns ticks).
const TicksPerMillisecond = 10000.0

// Converter handles conversion from raw trace ticks to milliseconds.
type Converter struct {
	ticksPerMillisecond float64
}

// NewConverter creates a converter for 100ns-tick timestamps.
func NewConverter() *Converter {
	return &Converter{ticksPerMillisecond: TicksPerMillisecond}
}

// NewConverterWithResolution creates a converter for traces recorded with a
// different clock, e.g. QPC-based sessions.
func NewConverterWithResolution(ticksPerMillisecond float64) (*Converter, error) {
	if ticksPerMillisecond <= 0 {
		return nil, fmt.Errorf("ticks per millisecond must be positive, got %v", ticksPerMillisecond)
	}
	return &Converter{ticksPerMillisecond: ticksPerMillisecond}, nil
}

// TicksToMilliseconds converts a raw timestamp to milliseconds.
func (c *Converter) TicksToMilliseconds(ticks uint64) float64 {
	return float64(ticks) / c.ticksPerMillisecond
}

// TicksPerMillisecond returns the configured resolution.
func (c *Converter) TicksPerMillisecond() float64 {
	return c.ticksPerMillisecond
}
