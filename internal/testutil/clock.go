package testutil

import (
	"sync"
	"time"
)

// Clock ist eine manuell weitergestellte Uhr für Tests.
//
// Thread-Sicherheit: alle Methoden sind über einen internen Mutex geschützt.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock erstellt eine Uhr, die bei start stehen bleibt
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now gibt die eingefrorene Zeit zurück. Die Signatur entspricht time.Now,
// damit die Methode überall als func() time.Time injiziert werden kann.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance stellt die Uhr um d vor und gibt die neue Zeit zurück
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set springt auf t (Wiederverwendung in Tests)
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
