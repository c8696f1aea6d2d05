package timer

import "time"

// Ticker ist eine abbrechbare Taktquelle
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc erzeugt eine Taktquelle mit dem gegebenen Intervall
type TickerFunc func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker ist die Taktquelle für den Produktivbetrieb
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// startTickerLocked ersetzt eine laufende Taktquelle durch eine neue
func (t *Timer) startTickerLocked() {
	t.stopTickerLocked()
	if t.newTicker == nil || t.closed {
		return
	}
	tk := t.newTicker(time.Second)
	stop := make(chan struct{})
	t.stop = stop
	go t.run(tk, stop, t.gen)
}

// stopTickerLocked beendet die Taktquelle und macht ausstehende Takte ungültig
func (t *Timer) stopTickerLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.gen++
}

func (t *Timer) run(tk Ticker, stop <-chan struct{}, gen uint64) {
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tk.C():
			ctx, cancel := contextWithTimeout(t.timeout)
			t.tick(ctx, gen)
			cancel()
		}
	}
}
