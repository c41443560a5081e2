//go:build govips && cgo

package codec

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	runtimeMu sync.Mutex
	running   bool
)

// Startup boots libvips once per process. Exports touch each buffer exactly
// once, so the operation cache stays off and a single vips thread matches the
// one-asset-at-a-time batch.
func Startup() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if running {
		return nil
	}

	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheFiles:    0,
		MaxCacheMem:      0,
		MaxCacheSize:     0,
	})
	running = true
	return nil
}

func Shutdown() {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	if !running {
		return
	}
	vips.Shutdown()
	running = false
}

func newEncoder() (Encoder, error) {
	if err := Startup(); err != nil {
		return nil, err
	}
	return govipsEncoder{}, nil
}
