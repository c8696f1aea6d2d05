// Package realtime verteilt Ereignisse an Abonnenten von Themen (Chat-Räume, Presence, Timer).
//
// Themen:
//
//	room:<id>     neue Chat-Nachrichten (message.insert)
//	presence      Online-Nutzer (presence.sync)
//	timer:<user>  Timer-Ereignisse eines Nutzers
package realtime

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"
)

// Themen und Ereignisnamen
const (
	TopicPresence = "presence"

	EventMessageInsert = "message.insert"
	EventPresenceSync  = "presence.sync"
)

// RoomTopic liefert das Thema eines Chat-Raums
func RoomTopic(roomID string) string { return "room:" + roomID }

// TimerTopic liefert das Timer-Thema eines Nutzers
func TimerTopic(userID string) string { return "timer:" + userID }

// ErrClosed wird beim Beitreten über ein geschlossenes Abo zurückgegeben
var ErrClosed = errors.New("abo geschlossen")

// Envelope ist eine zugestellte Nachricht
type Envelope struct {
	Topic   string    `json:"topic"`
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// Authorizer entscheidet, ob ein Nutzer einem Thema beitreten darf
type Authorizer func(userID, topic string) error

// Hub hält die Abonnements aller Themen
type Hub struct {
	mu        sync.RWMutex
	topics    map[string]map[*Subscription]struct{}
	presence  map[string]int
	authorize Authorizer
	now       func() time.Time
}

// NewHub erstellt einen Hub; authorize darf nil sein (alles erlaubt)
func NewHub(authorize Authorizer) *Hub {
	return &Hub{
		topics:    make(map[string]map[*Subscription]struct{}),
		presence:  make(map[string]int),
		authorize: authorize,
		now:       time.Now,
	}
}

// Subscription ist ein Empfänger für beliebig viele Themen
type Subscription struct {
	hub    *Hub
	userID string
	ch     chan Envelope
	topics map[string]struct{}
	closed bool
}

// Subscribe erstellt ein Abo mit Puffergröße buffer
func (h *Hub) Subscribe(userID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 32
	}
	return &Subscription{
		hub:    h,
		userID: userID,
		ch:     make(chan Envelope, buffer),
		topics: make(map[string]struct{}),
	}
}

// C liefert die Nachrichten des Abos; der Kanal wird bei Close geschlossen
func (s *Subscription) C() <-chan Envelope { return s.ch }

// UserID des Abonnenten
func (s *Subscription) UserID() string { return s.userID }

// Join tritt einem Thema bei
func (s *Subscription) Join(topic string) error {
	h := s.hub
	if h.authorize != nil {
		if err := h.authorize(s.userID, topic); err != nil {
			return err
		}
	}

	h.mu.Lock()
	if s.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.topics[topic]; ok {
		h.mu.Unlock()
		return nil
	}
	s.topics[topic] = struct{}{}
	subs := h.topics[topic]
	if subs == nil {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[s] = struct{}{}
	if topic == TopicPresence {
		h.presence[s.userID]++
	}
	h.mu.Unlock()

	if topic == TopicPresence {
		h.syncPresence()
	}
	return nil
}

// Leave verlässt ein Thema
func (s *Subscription) Leave(topic string) {
	h := s.hub
	h.mu.Lock()
	left := s.leaveLocked(topic)
	h.mu.Unlock()

	if left && topic == TopicPresence {
		h.syncPresence()
	}
}

func (s *Subscription) leaveLocked(topic string) bool {
	h := s.hub
	if _, ok := s.topics[topic]; !ok {
		return false
	}
	delete(s.topics, topic)
	if subs := h.topics[topic]; subs != nil {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	if topic == TopicPresence {
		if h.presence[s.userID]--; h.presence[s.userID] <= 0 {
			delete(h.presence, s.userID)
		}
	}
	return true
}

// Close verlässt alle Themen und schließt den Kanal
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	if s.closed {
		h.mu.Unlock()
		return
	}
	_, wasPresent := s.topics[TopicPresence]
	for topic := range s.topics {
		s.leaveLocked(topic)
	}
	s.closed = true
	close(s.ch)
	h.mu.Unlock()

	if wasPresent {
		h.syncPresence()
	}
}

// Publish stellt ein Ereignis allen Abonnenten des Themas zu. Volle Puffer verwerfen die Nachricht.
func (h *Hub) Publish(topic, event string, payload any) int {
	env := Envelope{Topic: topic, Event: event, Payload: payload, SentAt: h.now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.topics[topic] {
		select {
		case sub.ch <- env:
			delivered++
		default:
			log.Printf("⚠️  Realtime: Puffer voll, verwerfe %s für %s", event, sub.userID)
		}
	}
	return delivered
}

// Online liefert die sortierten IDs aller Nutzer im Presence-Thema
func (h *Hub) Online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.presence))
	for u := range h.presence {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Subscribers zählt die Abonnenten eines Themas
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) syncPresence() {
	h.Publish(TopicPresence, EventPresenceSync, map[string]any{"users": h.Online()})
}
