// Package output serializes finished profiles.
//
// Two formats are supported:
//   - gecko: the JSON profile loaded by the Firefox Profiler
//   - pprof: a gzipped protobuf for go tool pprof and compatible viewers
//
// Neither writer symbolicates. Frames stay raw addresses and each library
// carries its breakpad identifier so a symbol server can resolve them later.
package output
