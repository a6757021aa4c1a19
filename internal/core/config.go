package core

import (
	"fmt"
	"time"
)

// TaskMode selects where native task bodies run.
type TaskMode string

const (
	// TaskModePool runs tasks on goroutines bounded by TaskWorkers.
	TaskModePool TaskMode = "pool"
	// TaskModeSpawn runs every task on its own goroutine, unbounded.
	TaskModeSpawn TaskMode = "spawn"
)

// EngineConfig holds runtime configuration for one engine instance.
type EngineConfig struct {
	MemoryLimitMB    int      // runtime heap limit; 0 means engine default
	ExecutionTimeout int      // milliseconds a single Eval may run before it is interrupted
	TaskWorkers      int      // concurrent task bodies in pool mode
	TaskMode         TaskMode // pool or spawn
	DrainTimeout     int      // milliseconds Wait keeps delivering before giving up
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		MemoryLimitMB:    128,
		ExecutionTimeout: 30000,
		TaskWorkers:      8,
		TaskMode:         TaskModePool,
		DrainTimeout:     60000,
	}
}

// Validate reports the first invalid field.
func (c EngineConfig) Validate() error {
	switch {
	case c.MemoryLimitMB < 0:
		return fmt.Errorf("memory limit must not be negative, got %d MB", c.MemoryLimitMB)
	case c.ExecutionTimeout <= 0:
		return fmt.Errorf("execution timeout must be positive, got %d ms", c.ExecutionTimeout)
	case c.DrainTimeout <= 0:
		return fmt.Errorf("drain timeout must be positive, got %d ms", c.DrainTimeout)
	}
	switch c.TaskMode {
	case TaskModePool:
		if c.TaskWorkers <= 0 {
			return fmt.Errorf("pool mode needs at least one worker, got %d", c.TaskWorkers)
		}
	case TaskModeSpawn:
	default:
		return fmt.Errorf("unknown task mode %q (want %q or %q)", c.TaskMode, TaskModePool, TaskModeSpawn)
	}
	return nil
}

// Timeout returns ExecutionTimeout as a duration.
func (c EngineConfig) Timeout() time.Duration {
	return time.Duration(c.ExecutionTimeout) * time.Millisecond
}

// Drain returns DrainTimeout as a duration.
func (c EngineConfig) Drain() time.Duration {
	return time.Duration(c.DrainTimeout) * time.Millisecond
}

// ParseTaskMode maps a flag or environment value onto a TaskMode.
func ParseTaskMode(s string) (TaskMode, error) {
	switch m := TaskMode(s); m {
	case TaskModePool, TaskModeSpawn:
		return m, nil
	}
	return "", fmt.Errorf("unknown task mode %q", s)
}
