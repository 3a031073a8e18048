package deepdiscovery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Engine owns the full set of evidence sources and runs them
// concurrently, each under its own timeout, before fusing the results.
type Engine struct {
	Sources []Source
	Timeout time.Duration
}

// NewEngine builds an Engine from whichever sources the caller was able
// to construct -- callers typically skip integration-backed sources
// (Proxmox/AVM/UISP) when no credentials are configured.
func NewEngine(sources ...Source) *Engine {
	return &Engine{Sources: sources, Timeout: 90 * time.Second}
}

// Run gathers hints from every source concurrently, logs a per-source
// count, fuses them via Resolve, and returns the fused topology plus the
// raw hint count for the caller's summary log.
func (e *Engine) Run(ctx context.Context, sc SourceContext, knownMACByIP map[string]string) (Resolution, int) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	logger := log.With().Str("component", "deepdiscovery").Logger()
	started := time.Now()

	var mu sync.Mutex
	var all []Hint
	var wg sync.WaitGroup

	for _, src := range e.Sources {
		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()
			sourceCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			hints := src.Gather(sourceCtx, sc)

			mu.Lock()
			all = append(all, hints...)
			mu.Unlock()

			logger.Info().Str("source", src.Name()).Int("hints", len(hints)).Msg("evidence source finished")
		}()
	}
	wg.Wait()

	res := Resolve(all, knownMACByIP)

	logger.Info().
		Int("totalHints", len(all)).
		Int("relationships", len(res.Parents)).
		Dur("elapsed", time.Since(started)).
		Msg("deep discovery run complete")

	return res, len(all)
}
