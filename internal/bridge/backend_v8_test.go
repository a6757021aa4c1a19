//go:build v8

package bridge

import (
	"github.com/cryguy/hostbridge/internal/core"
	"github.com/cryguy/hostbridge/internal/v8engine"
)

func newBackend(cfg core.EngineConfig) (core.EngineBackend, error) { return v8engine.New(cfg) }
