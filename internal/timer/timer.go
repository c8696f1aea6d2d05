// Package timer implementiert den Pomodoro-Lerntimer.
//
// Ein Timer zählt im Sekundentakt herunter, wechselt zwischen Lern- und Pausenphase
// und erzeugt beim Ablauf einer Lernphase einen StudySession-Datensatz.
// Pro Timer existiert höchstens eine Taktquelle: jeder Phasenwechsel stoppt die
// laufende Quelle, bevor eine neue gestartet wird.
package timer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"studybuddy/internal/config"
	"studybuddy/internal/models"
	"studybuddy/internal/rewards"
)

// Zyklus: nach CycleLength abgeschlossenen Sitzungen gibt es eine lange Pause
const CycleLength = 4

var (
	ErrNoSubject      = errors.New("fach-auswahl erforderlich")
	ErrOfferPending   = errors.New("pausenangebot noch offen")
	ErrNoOffer        = errors.New("kein pausenangebot offen")
	ErrRunning        = errors.New("lernphase läuft bereits")
	ErrNothingPending = errors.New("keine sitzung zum erneuten speichern")
	ErrClosed         = errors.New("timer geschlossen")
	ErrSaveInFlight   = errors.New("sitzung wird bereits gespeichert")
)

// Phase ist der Zustand der Zustandsmaschine
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRunningStudy Phase = "running_study"
	PhasePausedStudy  Phase = "paused_study"
	PhaseRunningBreak Phase = "running_break"
	PhasePausedBreak  Phase = "paused_break"
)

// BreakKind unterscheidet kurze und lange Pausen
type BreakKind string

const (
	ShortBreak BreakKind = "short"
	LongBreak  BreakKind = "long"
)

// BreakOffer ist das Pausenangebot nach einer gespeicherten Sitzung
type BreakOffer struct {
	Kind    BreakKind `json:"kind"`
	Minutes int       `json:"minutes"`
}

// State ist eine Momentaufnahme des Timers
type State struct {
	Phase      Phase                `json:"phase"`
	Remaining  int                  `json:"remaining_seconds"`
	Running    bool                 `json:"running"`
	BreakMode  bool                 `json:"break_mode"`
	CycleCount int                  `json:"cycle_count"`
	SubjectID  string               `json:"subject_id,omitempty"`
	Settings   config.TimerSettings `json:"settings"`
	Offer      *BreakOffer          `json:"offer,omitempty"`
	Pending    *models.StudySession `json:"pending_session,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
}

// Recorder persistiert abgeschlossene Sitzungen im entfernten Datenspeicher
type Recorder interface {
	SaveStudySession(ctx context.Context, s *models.StudySession) error
}

// Options konfiguriert einen neuen Timer
type Options struct {
	UserID   string
	Settings config.TimerSettings
	Recorder Recorder
	Book     *rewards.Book

	// Now liefert die Uhrzeit für das Sitzungsdatum (Standard: time.Now)
	Now func() time.Time
	// NewTicker erzeugt die Taktquelle. nil bedeutet manuelle Taktung über Tick.
	NewTicker TickerFunc
	// OnEvent wird außerhalb der Sperre aufgerufen
	OnEvent func(Event)
	// PersistTimeout begrenzt das Speichern aus der Taktquelle heraus
	PersistTimeout time.Duration
}

// Timer ist die Zustandsmaschine eines Nutzers
type Timer struct {
	userID    string
	recorder  Recorder
	book      *rewards.Book
	now       func() time.Time
	newTicker TickerFunc
	onEvent   func(Event)
	timeout   time.Duration

	mu        sync.Mutex
	settings  config.TimerSettings
	phase     Phase
	remaining int
	cycle     int
	subjectID string
	offer     *BreakOffer
	pending   *models.StudySession
	saving    string // ID der Sitzung, die gerade gespeichert wird
	lastErr   string
	closed    bool

	// gen wird bei jedem Start/Stopp der Taktquelle erhöht; veraltete Takte werden verworfen
	gen  uint64
	stop chan struct{}
}

// New erstellt einen Timer im Zustand Idle mit voller Lerndauer
func New(opts Options) (*Timer, error) {
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}
	if opts.Recorder == nil {
		return nil, fmt.Errorf("timer ohne recorder")
	}
	if opts.Book == nil {
		opts.Book = rewards.NewBook()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}

	return &Timer{
		userID:    opts.UserID,
		recorder:  opts.Recorder,
		book:      opts.Book,
		now:       opts.Now,
		newTicker: opts.NewTicker,
		onEvent:   opts.OnEvent,
		timeout:   opts.PersistTimeout,
		settings:  opts.Settings,
		phase:     PhaseIdle,
		remaining: opts.Settings.StudyMinutes * 60,
	}, nil
}

// Book gibt den Sitzungsspiegel zurück, aus dem der RewardState abgeleitet wird
func (t *Timer) Book() *rewards.Book {
	return t.book
}

// State gibt eine Momentaufnahme zurück
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// SelectSubject wählt das Fach für die nächste Lernphase
func (t *Timer) SelectSubject(subjectID string) error {
	if subjectID == "" {
		return ErrNoSubject
	}
	t.mu.Lock()
	if t.phase == PhaseRunningStudy {
		t.mu.Unlock()
		return ErrRunning
	}
	t.subjectID = subjectID
	ev := t.eventLocked(EventSubjectSelected)
	t.mu.Unlock()

	t.emit(ev)
	return nil
}

// Start startet oder setzt die aktuelle Phase fort.
// Eine Lernphase braucht ein gewähltes Fach, eine Pause nicht.
func (t *Timer) Start() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.offer != nil {
		t.mu.Unlock()
		return ErrOfferPending
	}

	switch t.phase {
	case PhaseRunningStudy, PhaseRunningBreak:
		t.mu.Unlock()
		return nil
	case PhasePausedBreak:
		t.phase = PhaseRunningBreak
	default:
		if t.subjectID == "" {
			t.mu.Unlock()
			return ErrNoSubject
		}
		if t.phase == PhaseIdle && t.remaining <= 0 {
			t.remaining = t.settings.StudyMinutes * 60
		}
		t.phase = PhaseRunningStudy
	}
	t.startTickerLocked()
	ev := t.eventLocked(EventStarted)
	t.mu.Unlock()

	t.emit(ev)
	return nil
}

// Pause hält die laufende Phase an; die Restzeit bleibt erhalten
func (t *Timer) Pause() error {
	t.mu.Lock()
	switch t.phase {
	case PhaseRunningStudy:
		t.phase = PhasePausedStudy
	case PhaseRunningBreak:
		t.phase = PhasePausedBreak
	default:
		t.mu.Unlock()
		return nil
	}
	t.stopTickerLocked()
	ev := t.eventLocked(EventPaused)
	t.mu.Unlock()

	t.emit(ev)
	return nil
}

// Toggle wechselt zwischen Start und Pause
func (t *Timer) Toggle() error {
	if t.State().Running {
		return t.Pause()
	}
	return t.Start()
}

// Reset kehrt aus jedem Zustand nach Idle zurück und lädt die Lerndauer neu.
// Der Zykluszähler und eine noch nicht gespeicherte Sitzung bleiben erhalten.
func (t *Timer) Reset() {
	t.mu.Lock()
	t.resetLocked()
	ev := t.eventLocked(EventReset)
	t.mu.Unlock()

	t.emit(ev)
}

// AcceptBreak nimmt das Pausenangebot an und startet die Pause
func (t *Timer) AcceptBreak() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.offer == nil {
		t.mu.Unlock()
		return ErrNoOffer
	}
	t.stopTickerLocked()
	t.remaining = t.offer.Minutes * 60
	t.offer = nil
	t.phase = PhaseRunningBreak
	t.startTickerLocked()
	ev := t.eventLocked(EventBreakStarted)
	t.mu.Unlock()

	t.emit(ev)
	return nil
}

// SkipBreak verwirft das Pausenangebot. Bei einer langen Pause beginnt der Zyklus neu.
func (t *Timer) SkipBreak() error {
	t.mu.Lock()
	if t.offer == nil {
		t.mu.Unlock()
		return ErrNoOffer
	}
	if t.offer.Kind == LongBreak {
		t.cycle = 0
	}
	t.resetLocked()
	ev := t.eventLocked(EventBreakSkipped)
	t.mu.Unlock()

	t.emit(ev)
	return nil
}

// UpdateSettings übernimmt neue Dauern und setzt den Timer zurück
func (t *Timer) UpdateSettings(s config.TimerSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.settings = s
	t.resetLocked()
	ev := t.eventLocked(EventSettingsChanged)
	t.mu.Unlock()

	t.emit(ev)
	return nil
}

// Tick zählt eine Sekunde herunter. Nur für manuell getaktete Timer (ohne NewTicker);
// bei eigener Taktquelle ist Tick wirkungslos, damit nie zwei Quellen zählen.
func (t *Timer) Tick(ctx context.Context) {
	t.mu.Lock()
	if t.newTicker != nil {
		t.mu.Unlock()
		return
	}
	gen := t.gen
	t.mu.Unlock()

	t.tick(ctx, gen)
}

// Retry speichert eine zuvor fehlgeschlagene Sitzung erneut
func (t *Timer) Retry(ctx context.Context) error {
	t.mu.Lock()
	if t.pending == nil {
		t.mu.Unlock()
		return ErrNothingPending
	}
	if t.saving == t.pending.ID {
		t.mu.Unlock()
		return ErrSaveInFlight
	}
	s := *t.pending
	t.mu.Unlock()

	return t.persist(ctx, s)
}

// Close stoppt die Taktquelle endgültig
func (t *Timer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTickerLocked()
	t.closed = true
	if t.phase == PhaseRunningStudy {
		t.phase = PhasePausedStudy
	} else if t.phase == PhaseRunningBreak {
		t.phase = PhasePausedBreak
	}
}

func (t *Timer) tick(ctx context.Context, gen uint64) {
	t.mu.Lock()
	if gen != t.gen || (t.phase != PhaseRunningStudy && t.phase != PhaseRunningBreak) {
		t.mu.Unlock()
		return
	}

	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining > 0 {
		ev := t.eventLocked(EventTick)
		t.mu.Unlock()
		t.emit(ev)
		return
	}

	// Null erreicht: Taktquelle stoppen, bevor irgendetwas anderes passiert
	t.stopTickerLocked()

	if t.phase == PhaseRunningBreak {
		t.phase = PhaseIdle
		t.remaining = t.settings.StudyMinutes * 60
		ev := t.eventLocked(EventBreakFinished)
		t.mu.Unlock()
		t.emit(ev)
		return
	}

	// Lernphase beendet: der lokale Zustand rückt vor, auch wenn das Speichern scheitert
	t.phase = PhaseIdle
	duration := t.settings.StudyMinutes * 60
	session := models.StudySession{
		ID:        uuid.NewString(),
		UserID:    t.userID,
		SubjectID: t.subjectID,
		Duration:  duration,
		Date:      t.now().Format(models.DateLayout),
		Completed: true,
		Points:    rewards.Points(duration),
		CreatedAt: t.now(),
	}
	if t.pending != nil {
		log.Printf("⚠️  [Timer %s] Ungespeicherte Sitzung %s wird ersetzt", t.userID, t.pending.ID)
	}
	t.pending = &session
	ev := t.eventLocked(EventStudyFinished)
	t.mu.Unlock()

	t.emit(ev)
	t.persist(ctx, session)
}

// persist speichert die Sitzung und wertet erst danach Punkte und Pausenrhythmus aus.
// Pro Sitzung läuft höchstens ein Speichervorgang; Zyklus und Angebot rücken nur für die
// noch offene Sitzung vor. Das Pausenangebot gibt es nur, solange der Timer noch im
// Zustand nach Ablauf der Lernphase steht (Idle, Restzeit 0).
func (t *Timer) persist(ctx context.Context, s models.StudySession) error {
	t.mu.Lock()
	if t.saving == s.ID {
		t.mu.Unlock()
		return ErrSaveInFlight
	}
	t.saving = s.ID
	t.mu.Unlock()

	err := t.recorder.SaveStudySession(ctx, &s)
	var reward models.RewardState
	if err == nil {
		reward = t.book.Add(s)
	}

	t.mu.Lock()
	if t.saving == s.ID {
		t.saving = ""
	}
	if err != nil {
		log.Printf("❌ [Timer %s] Sitzung konnte nicht gespeichert werden: %v", t.userID, err)
		t.lastErr = err.Error()
		ev := t.eventLocked(EventSessionFailed)
		t.mu.Unlock()
		t.emit(ev)
		return fmt.Errorf("sitzung speichern: %w", err)
	}

	// bereits verbucht oder durch eine neuere Sitzung ersetzt
	if t.pending == nil || t.pending.ID != s.ID {
		t.mu.Unlock()
		return nil
	}
	t.pending = nil
	t.lastErr = ""
	t.cycle = (t.cycle + 1) % CycleLength
	if t.phase == PhaseIdle && t.remaining == 0 {
		if t.cycle == 0 {
			t.offer = &BreakOffer{Kind: LongBreak, Minutes: t.settings.LongBreakMinutes}
		} else {
			t.offer = &BreakOffer{Kind: ShortBreak, Minutes: t.settings.ShortBreakMinutes}
		}
	}
	ev := t.eventLocked(EventSessionSaved)
	ev.Session = &s
	ev.Reward = &reward
	t.mu.Unlock()

	log.Printf("✓ [Timer %s] Sitzung gespeichert (%d Punkte, Gesamt %d)", t.userID, s.Points, reward.TotalPoints)
	t.emit(ev)
	return nil
}

func (t *Timer) resetLocked() {
	t.stopTickerLocked()
	t.phase = PhaseIdle
	t.remaining = t.settings.StudyMinutes * 60
	t.offer = nil
}

func (t *Timer) stateLocked() State {
	st := State{
		Phase:      t.phase,
		Remaining:  t.remaining,
		Running:    t.phase == PhaseRunningStudy || t.phase == PhaseRunningBreak,
		BreakMode:  t.phase == PhaseRunningBreak || t.phase == PhasePausedBreak,
		CycleCount: t.cycle,
		SubjectID:  t.subjectID,
		Settings:   t.settings,
		LastError:  t.lastErr,
	}
	if t.offer != nil {
		o := *t.offer
		st.Offer = &o
	}
	if t.pending != nil {
		p := *t.pending
		st.Pending = &p
	}
	return st
}

func (t *Timer) eventLocked(typ EventType) Event {
	ev := Event{Type: typ, UserID: t.userID, State: t.stateLocked()}
	if typ == EventSessionFailed {
		ev.Error = t.lastErr
	}
	return ev
}

func (t *Timer) emit(ev Event) {
	if t.onEvent != nil {
		t.onEvent(ev)
	}
}
