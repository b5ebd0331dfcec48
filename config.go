package jobsystem

import (
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultIdleSleep is the worker's condvar-wait timeout when local,
// shared, and every peer's shared queue came up empty (spec.md §4.2
// step 3). spec.md §9 leaves the exact value to the implementer within
// 10-1000µs; 200µs was chosen as a mid-range default.
const DefaultIdleSleep = 200 * time.Microsecond

// DefaultRecyclePoolCapacity bounds the FunctionJob recycling pool
// (spec.md §3 "bounded by a fixed capacity; overflow is freed").
const DefaultRecyclePoolCapacity = 4096

// Config holds the scheduler's construction-time configuration. Mirrors
// the teacher's Config/DefaultConfig shape, adapted to the fields
// spec.md's init()/Worker/Queue sections actually require.
type Config struct {
	// NumWorkers is the number of worker goroutines. 0 means hardware
	// concurrency (spec.md §6 init contract).
	NumWorkers int `yaml:"num_workers"`

	// StartIndex offsets ThreadIndex numbering — set to 1 when the
	// caller wants to reserve index 0 for a non-worker main thread.
	StartIndex ThreadIndex `yaml:"start_index"`

	// QueueBufferSize bounds each worker's local/shared queue; 0 means
	// unbounded, matching spec.md §5 "worker queues use an unbounded
	// configuration" as the default.
	QueueBufferSize int `yaml:"queue_buffer_size"`

	// RecyclePoolCapacity bounds the FunctionJob recycling pool.
	RecyclePoolCapacity int `yaml:"recycle_pool_capacity"`

	// IdleSleep is the condvar-wait timeout used when a worker finds no
	// work anywhere (spec.md §4.2 step 3, §9 open question).
	IdleSleep time.Duration `yaml:"idle_sleep"`

	// ShutdownTimeout is carried in the configuration and loaded from
	// YAML. Wait does not read it: Wait always blocks until every worker
	// has exited.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns sensible defaults, mirroring the teacher's
// DefaultConfig().
func DefaultConfig() Config {
	return Config{
		NumWorkers:          0,
		StartIndex:          0,
		QueueBufferSize:     unbounded,
		RecyclePoolCapacity: DefaultRecyclePoolCapacity,
		IdleSleep:           DefaultIdleSleep,
		ShutdownTimeout:     0,
	}
}

// normalize fills in zero-valued fields the way the teacher's
// NewWithConfig clamps NumWorkers/BufferSize to sane minimums.
func (c Config) normalize() Config {
	if c.NumWorkers <= 0 {
		c.NumWorkers = defaultHardwareConcurrency()
	}
	if c.RecyclePoolCapacity <= 0 {
		c.RecyclePoolCapacity = DefaultRecyclePoolCapacity
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = DefaultIdleSleep
	}
	return c
}

// defaultHardwareConcurrency implements spec.md §6's "count = 0 means
// hardware concurrency".
func defaultHardwareConcurrency() int {
	n := runtime.NumCPU()
	if n <= 0 {
		return 1
	}
	return n
}

// LoadConfig reads a YAML-encoded Config from path, grounded on
// ChuLiYu-raft-recovery/cmd/demo/main.go's loadConfig — a plain
// yaml.Unmarshal into a struct with yaml tags, no schema validation
// beyond what normalize() already performs on construction.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
