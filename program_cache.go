package scope

import (
	"strconv"
	"sync"
)

// ProgramCache stores compiled handler programs. Keys are prefixed with the
// engine name, and with the helper registry generation when the handler has
// helpers, so one cache can serve every engine and every helper set.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

type memoryProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewMemoryProgramCache returns an unbounded ProgramCache safe for concurrent
// use.
func NewMemoryProgramCache() ProgramCache {
	return &memoryProgramCache{programs: make(map[string]any)}
}

func (c *memoryProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	program, ok := c.programs[key]
	return program, ok
}

func (c *memoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs[key] = value
}

func cacheKey(engine string, helpers uint64, expression string) string {
	if helpers == 0 {
		return engine + ":" + expression
	}
	return engine + "#" + strconv.FormatUint(helpers, 10) + ":" + expression
}
