package config_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/chunkbench/pkg/config"
)

// ExampleDefault shows the values used when nothing overrides them.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Chunks: %d\n", cfg.Run.Chunks)
	fmt.Printf("Element width: %d\n", cfg.Compression.ElementWidth)
	fmt.Printf("Ledger: %s\n", cfg.Run.LedgerName)

	// Output:
	// Chunks: 50
	// Element width: 8
	// Ledger: stats.txt
}

// ExampleCompressionConfig_Superchunk converts the compression section into
// a container configuration.
func ExampleCompressionConfig_Superchunk() {
	cfg := config.Default()
	cfg.Compression.ThreadsCompress = 4
	cfg.Compression.Codec = "zstd"
	cfg.Compression.Level = "better"

	sc, err := cfg.Compression.Superchunk()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	fmt.Println(sc.Codec, sc.Level, sc.ThreadsCompress, sc.BlockSize)

	// Output:
	// zstd better 4 262144
}

// ExampleLoadProfile demonstrates loading a profile with environment
// variable substitution.
func ExampleLoadProfile() {
	dir, err := os.MkdirTemp("", "chunkbench-config")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	os.Setenv("BENCH_THREADS", "6")
	defer os.Unsetenv("BENCH_THREADS")

	path := filepath.Join(dir, "profile.yaml")
	profile := "compression:\n  threads_compress: ${BENCH_THREADS}\nrun:\n  load_mode: mmap\n"
	if err := os.WriteFile(path, []byte(profile), 0o600); err != nil {
		log.Fatal(err)
	}

	cfg, err := config.LoadProfile(path)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(cfg.Compression.ThreadsCompress, cfg.Run.LoadMode, cfg.Run.Chunks)

	// Output:
	// 6 mmap 50
}
