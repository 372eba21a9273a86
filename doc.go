// Package chunkbench is a lossless compression benchmark for directories of
// large binary files such as raster bands.
//
// For every regular file in an input directory, chunkbench plans a split
// into element-aligned chunks, appends the chunks to a compressed container
// whose codec is picked per chunk by an adaptive tuner (or pinned with
// --codec), decompresses them back into a fresh buffer and checks the result
// byte for byte. Verified files add a row to a CSV ledger inside the input
// directory:
//
//	srcSize,compressedSize,compressionRatio,ctimeMs,dtimeMs,srcFile
//	4096,211,19.41232227488152,0.41,0.05,/data/bands/b01.bin
//
// Files that fail to load, compress or verify are logged with their error
// type and skipped; the walk itself only fails on setup errors.
//
// # Key Packages
//
//   - pkg/chunkplan: element-aligned chunk plans
//   - pkg/compression: block codecs, shuffle filters and the block-parallel compressor
//   - pkg/tuner: fixed and adaptive codec selection
//   - pkg/superchunk: the compressed container, its backend contract and frame format
//   - internal/roundtrip: sessions, verification, the ledger and the batch runner
//   - pkg/config: YAML run profiles
//   - pkg/logger, pkg/observability, pkg/metrics: zap logging, OpenTelemetry spans, Prometheus metrics
//   - pkg/report: run summaries as tables and JSON
//
// # Usage
//
//	chunkbench --chunks 50 --codec auto --summary-json summary.json /data/bands
//
// Settings resolve from built-in defaults, a --config profile, CHUNKBENCH_*
// environment variables and flags, in increasing priority.
package chunkbench
