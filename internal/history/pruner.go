package history

import (
	"log"
	"time"
)

const pruneInterval = 24 * time.Hour

// Pruner trims old history records on a daily schedule so the database
// does not grow without bound on long-lived installs.
type Pruner struct {
	store     *Store
	retention time.Duration
	stopCh    chan struct{}
}

// NewPruner creates a pruner keeping records for retentionDays days. A
// non-positive retention disables pruning entirely.
func NewPruner(store *Store, retentionDays int) *Pruner {
	return &Pruner{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		stopCh:    make(chan struct{}),
	}
}

func (p *Pruner) Start() {
	if p.retention <= 0 {
		return
	}
	go p.run()
}

func (p *Pruner) Stop() {
	close(p.stopCh)
}

func (p *Pruner) run() {
	p.prune()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.prune()
		}
	}
}

func (p *Pruner) prune() {
	n, err := p.store.PruneOlderThan(p.retention)
	if err != nil {
		log.Printf("history: prune failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("history: pruned %d records older than %s", n, p.retention)
	}
}
