package hostbridge

import (
	"github.com/cryguy/hostbridge/internal/core"
	"github.com/cryguy/hostbridge/internal/eventloop"
)

// Type aliases re-exporting internal types so callers can configure the
// engine without importing internal packages.

type EngineConfig = core.EngineConfig
type TaskMode = core.TaskMode
type UncaughtError = eventloop.UncaughtError

const (
	TaskModePool  = core.TaskModePool
	TaskModeSpawn = core.TaskModeSpawn
)

var DefaultConfig = core.DefaultConfig
var ParseTaskMode = core.ParseTaskMode
