package timesync

import "testing"

func TestConverter_TicksToMilliseconds(t *testing.T) {
	converter := NewConverter()

	tests := []struct {
		name  string
		ticks uint64
		want  float64
	}{
		{
			name:  "zero ticks",
			ticks: 0,
			want:  0,
		},
		{
			name:  "one hundred ticks",
			ticks: 100,
			want:  0.01,
		},
		{
			name:  "one millisecond",
			ticks: 10_000,
			want:  1,
		},
		{
			name:  "one second",
			ticks: 10_000_000,
			want:  1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := converter.TicksToMilliseconds(tt.ticks)
			if got != tt.want {
				t.Errorf("TicksToMilliseconds(%d) = %v, want %v", tt.ticks, got, tt.want)
			}
		})
	}
}

func TestNewConverterWithResolution(t *testing.T) {
	converter, err := NewConverterWithResolution(1000)
	if err != nil {
		t.Fatalf("NewConverterWithResolution() error = %v", err)
	}

	if got := converter.TicksToMilliseconds(5000); got != 5 {
		t.Errorf("TicksToMilliseconds() = %v, want 5", got)
	}

	if _, err := NewConverterWithResolution(0); err == nil {
		t.Error("NewConverterWithResolution(0) should fail")
	}
}
