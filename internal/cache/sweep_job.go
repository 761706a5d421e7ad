package cache

import (
	"github.com/rs/zerolog"
)

// SweepJob evicts expired entries so entries that are never read again do not pile up.
// Reads already evict lazily; this only bounds memory.
type SweepJob struct {
	store *Store
	log   zerolog.Logger
}

// NewSweepJob creates a new cache sweep job.
func NewSweepJob(store *Store, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		store: store,
		log:   log.With().Str("job", "cache_sweep").Logger(),
	}
}

// Run removes every expired entry from the store.
func (j *SweepJob) Run() error {
	removed := j.store.Sweep()
	if removed > 0 {
		j.log.Debug().
			Int("evicted", removed).
			Int("remaining", j.store.Len()).
			Msg("Evicted expired cache entries")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *SweepJob) Name() string {
	return "cache_sweep"
}
