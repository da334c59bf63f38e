package challenge

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// VisibilityFunc toggles whether the editor's content is visible.
type VisibilityFunc func(visible bool)

// BlindConfig controls the blind-coding reveal cycle.
type BlindConfig struct {
	ShowInterval time.Duration
	ShowDuration time.Duration
}

// DefaultBlindConfig matches the original challenge tuning: one second of
// visibility every ten seconds.
func DefaultBlindConfig() BlindConfig {
	return BlindConfig{
		ShowInterval: 10 * time.Second,
		ShowDuration: 1 * time.Second,
	}
}

// Blind hides the editor and periodically reveals it for a short glimpse.
type Blind struct {
	clock        clockwork.Clock
	config       BlindConfig
	onVisibility VisibilityFunc

	stop chan struct{}
}

// NewBlind creates an inactive blind-coding challenge.
func NewBlind(clock clockwork.Clock, onVisibility VisibilityFunc, config BlindConfig) *Blind {
	return &Blind{
		clock:        clock,
		config:       config,
		onVisibility: onVisibility,
	}
}

// Activate hides the editor and starts the reveal cycle.
func (b *Blind) Activate() {
	if b.stop != nil {
		return
	}
	b.stop = make(chan struct{})
	b.onVisibility(false)

	go b.run(b.stop)
}

func (b *Blind) run(stop chan struct{}) {
	ticker := b.clock.NewTicker(b.config.ShowInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			b.onVisibility(true)
			select {
			case <-stop:
				return
			case <-b.clock.After(b.config.ShowDuration):
				b.onVisibility(false)
			}
		}
	}
}

// Deactivate stops the cycle and restores visibility.
func (b *Blind) Deactivate() {
	if b.stop == nil {
		return
	}
	close(b.stop)
	b.stop = nil
	b.onVisibility(true)
}

// Name identifies the challenge.
func (b *Blind) Name() string {
	return "Blind Coding"
}

// Description explains the challenge rules.
func (b *Blind) Description() string {
	return fmt.Sprintf("Editor visible %s every %s", b.config.ShowDuration, b.config.ShowInterval)
}
