//go:build !v8

package bridge

import (
	"github.com/cryguy/hostbridge/internal/core"
	"github.com/cryguy/hostbridge/internal/quickjs"
)

func newBackend(cfg core.EngineConfig) (core.EngineBackend, error) { return quickjs.New(cfg) }
