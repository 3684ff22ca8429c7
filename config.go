package slackify

import (
	"sync"

	"github.com/riverfjs/slackify-go/internal/types"
)

// 导出类型别名
type Labels = types.Labels
type RenderConfig = types.RenderConfig

// DefaultChunkSize is the per-block bound for prose, in UTF-16 code units.
const DefaultChunkSize = 2900

var (
	defaultConfig     *RenderConfig
	defaultConfigOnce sync.Once
)

// DefaultConfig returns the default render configuration (singleton).
// Callers must not mutate it; use options to derive a variant.
func DefaultConfig() *RenderConfig {
	defaultConfigOnce.Do(func() {
		defaultConfig = types.DefaultRenderConfig()
	})
	return defaultConfig
}
