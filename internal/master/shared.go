package master

import (
	"sync"

	"github.com/leandrodaf/mtsesp/internal/logger"
	"github.com/leandrodaf/mtsesp/sdk/contracts"
)

var (
	sharedOnce  sync.Once
	sharedStore *Store
)

// Shared returns the process-wide authority, creating it on first use with log
// (a no-op logger when nil). Later calls return the same store and ignore log.
// Tests that need isolation call Reinitialize on it or build their own Store.
func Shared(log contracts.Logger) *Store {
	sharedOnce.Do(func() {
		if log == nil {
			log = logger.NewNopLogger()
		}
		sharedStore = NewStore(log)
	})
	return sharedStore
}
