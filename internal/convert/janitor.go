package convert

import (
	"os"
	"path/filepath"
	"time"

	"github.com/meshforge/cad-engine/internal/observability"
)

// Janitor sweeps stale entries out of the conversion work directory. The
// pipeline removes its own scratch space; the janitor catches what crashed
// processes leave behind.
type Janitor struct {
	dir      string
	ttl      time.Duration
	interval time.Duration
	logger   *observability.Logger

	stop chan struct{}
	done chan struct{}
}

// NewJanitor creates a sweeper for dir removing entries older than ttl.
func NewJanitor(dir string, ttl, interval time.Duration, logger *observability.Logger) *Janitor {
	return &Janitor{
		dir:      dir,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins sweeping in the background. One immediate pass runs before
// the ticker takes over.
func (j *Janitor) Start() {
	go func() {
		defer close(j.done)

		j.Sweep()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-j.stop:
				return
			case <-ticker.C:
				j.Sweep()
			}
		}
	}()
}

// Stop ends the background sweeps and waits for the loop to exit.
func (j *Janitor) Stop() {
	close(j.stop)
	<-j.done
}

// Sweep removes work-dir entries older than the TTL and reports how many
// went away.
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn().Err(err).Str("dir", j.dir).Msg("janitor cannot read work directory")
		}
		return 0
	}

	cutoff := time.Now().Add(-j.ttl)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			j.logger.Warn().Err(err).Str("path", path).Msg("janitor failed to remove entry")
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info().Int("removed", removed).Str("dir", j.dir).Msg("stale work entries swept")
	}
	return removed
}
