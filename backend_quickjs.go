//go:build !v8

package hostbridge

import (
	"github.com/cryguy/hostbridge/internal/core"
	"github.com/cryguy/hostbridge/internal/quickjs"
)

func newBackend(cfg core.EngineConfig) (core.EngineBackend, error) {
	b, err := quickjs.New(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}
