// Package timesync converts raw ETW timestamps into profile time.
//
// Kernel trace timestamps are counted in 100ns ticks. The Gecko profile
// expresses sample times in milliseconds, so every emitted sample passes
// through a Converter.
package timesync
