package crawl

import (
	"math/rand"
	"sync"
	"time"
)

// PacingConfig bounds the anti-ban pacing behavior. A checkpoint interval is
// drawn uniformly from [CheckpointMin, CheckpointMax] on every check; a pause
// duration is drawn uniformly from [PauseMin, PauseMax] when one fires.
type PacingConfig struct {
	CheckpointMin int
	CheckpointMax int
	PauseMin      time.Duration
	PauseMax      time.Duration
}

func (c PacingConfig) withDefaults() PacingConfig {
	if c.CheckpointMin <= 0 {
		c.CheckpointMin = 700
	}
	if c.CheckpointMax < c.CheckpointMin {
		c.CheckpointMax = 1000
		if c.CheckpointMax < c.CheckpointMin {
			c.CheckpointMax = c.CheckpointMin
		}
	}
	if c.PauseMin <= 0 {
		c.PauseMin = time.Minute
	}
	if c.PauseMax < c.PauseMin {
		c.PauseMax = 3 * time.Minute
		if c.PauseMax < c.PauseMin {
			c.PauseMax = c.PauseMin
		}
	}
	return c
}

// Pacer decides when a crawl session should pause. Safe for use from
// concurrent sessions; draws are serialized on an internal mutex.
type Pacer struct {
	cfg PacingConfig
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPacer builds a Pacer. A nil rng gets a time-seeded one.
func NewPacer(cfg PacingConfig, rng *rand.Rand) *Pacer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Pacer{cfg: cfg.withDefaults(), rng: rng}
}

// Check computes the checkpoint index for the scraped count and returns the
// pause to take when a new checkpoint boundary was crossed. The returned
// index never decreases below lastIndex, and a pause fires at most once per
// index: repeat calls at the same count return a zero pause.
func (p *Pacer) Check(scraped, lastIndex int) (int, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	interval := p.cfg.CheckpointMin
	if spread := p.cfg.CheckpointMax - p.cfg.CheckpointMin; spread > 0 {
		interval += p.rng.Intn(spread + 1)
	}

	index := scraped / interval
	if index <= lastIndex {
		return lastIndex, 0
	}

	pause := p.cfg.PauseMin
	if spread := p.cfg.PauseMax - p.cfg.PauseMin; spread > 0 {
		pause += time.Duration(p.rng.Int63n(int64(spread) + 1))
	}
	return index, pause
}
