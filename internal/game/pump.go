package game

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pump drives phase timeouts: every tick it enumerates the active-games set
// and offers each game a timeout advance. Games tick independently; a slow
// store call on one game never delays another. All errors are swallowed so a
// single sick game cannot poison the loop.
type Pump struct {
	engine   *Engine
	interval time.Duration
}

func NewPump(engine *Engine) *Pump {
	return &Pump{engine: engine, interval: time.Second}
}

// SetInterval overrides the tick rate; tests only.
func (p *Pump) SetInterval(d time.Duration) { p.interval = d }

// Run ticks until ctx is cancelled.
func (p *Pump) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("[Pump] started (every %v)", p.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Pump] stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick processes one round over the active set.
func (p *Pump) Tick(ctx context.Context) {
	ids, err := p.engine.ListActiveGameIDs(ctx)
	if err != nil {
		log.Printf("[Pump] failed to list active games: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(gameID string) {
			defer wg.Done()
			if _, err := p.engine.AdvanceGameOnTimeout(ctx, gameID); err != nil {
				log.Printf("[Pump] advance failed for %s: %v", gameID, err)
			}
		}(id)
	}
	wg.Wait()
}
