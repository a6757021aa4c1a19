//go:build v8

package hostbridge

import (
	"github.com/cryguy/hostbridge/internal/core"
	"github.com/cryguy/hostbridge/internal/v8engine"
)

func newBackend(cfg core.EngineConfig) (core.EngineBackend, error) {
	b, err := v8engine.New(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}
