// Package config provides the run profile for chunkbench.
//
// A profile is a YAML file with three sections:
//
//	compression:
//	  threads_compress: 4
//	  element_width: 8
//	  tradeoff: [0.9]
//	  codec: auto
//	run:
//	  chunks: 50
//	  load_mode: mmap
//	observability:
//	  log_level: info
//
// Values may reference environment variables with ${VAR_NAME}; they are
// substituted before parsing. Keys missing from the file keep the values of
// Default. The CLI layers CHUNKBENCH_ environment variables and explicit
// flags over the profile, in that order of precedence.
//
// Validate reports problems as bencherrors config errors, and
// CompressionConfig.Superchunk converts the compression section into the
// immutable container configuration each file's session is created with.
package config
