// Package engine replaces the teacher's process-wide singletons
// (bufmgr.go constructs one BufMgr meant to live for the process) with an
// explicit Engine value: buffer pool, divide pool, storage pool and timer
// are all constructed once by the caller and threaded through every
// IndexTree, per design notes §9's call for this restructuring.
package engine

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable the engine needs to open or create an index
// file. Grounded on SimonWaldherr/tinySQL's YAML-configured server setup,
// generalized to this engine's subsystems.
type Config struct {
	PageSize            uint32 `yaml:"page_size"`
	MaxPageFileHandles  int    `yaml:"max_page_file_handles"`
	SlabCeilingBytes    int64  `yaml:"slab_ceiling_bytes"`
	DivideMinAgeMillis  int64  `yaml:"divide_min_age_millis"`
	StorageReadWorkers  int    `yaml:"storage_read_workers"`
	StorageWriteWorkers int    `yaml:"storage_write_workers"`
	TimerLongTaskWorkers int   `yaml:"timer_long_task_workers"`
	BufferSweepIntervalMillis int64 `yaml:"buffer_sweep_interval_millis"`
}

// DefaultConfig returns sane defaults for a small embedded deployment.
func DefaultConfig() Config {
	return Config{
		PageSize:             4096,
		MaxPageFileHandles:   4,
		SlabCeilingBytes:     0,
		DivideMinAgeMillis:   50,
		StorageReadWorkers:   4,
		StorageWriteWorkers:  2,
		TimerLongTaskWorkers: 1,
		BufferSweepIntervalMillis: 5000,
	}
}

// LoadConfig reads a YAML configuration file, filling any field left zero
// with DefaultConfig's value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
