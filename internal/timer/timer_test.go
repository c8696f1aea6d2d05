package timer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy/internal/config"
	"studybuddy/internal/models"
	"studybuddy/internal/rewards"
	"studybuddy/internal/testutil"
)

type fakeRecorder struct {
	mu    sync.Mutex
	saved []models.StudySession
	err   error
	calls int
}

func (f *fakeRecorder) SaveStudySession(_ context.Context, s *models.StudySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *s)
	return nil
}

func (f *fakeRecorder) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRecorder) sessions() []models.StudySession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.StudySession(nil), f.saved...)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []EventType
	for _, ev := range l.events {
		if ev.Type != EventTick {
			out = append(out, ev.Type)
		}
	}
	return out
}

func newManualTimer(t *testing.T, settings config.TimerSettings) (*Timer, *fakeRecorder, *eventLog) {
	t.Helper()
	rec := &fakeRecorder{}
	events := &eventLog{}
	clock := testutil.NewClock(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	tm, err := New(Options{
		UserID:   "user-1",
		Settings: settings,
		Recorder: rec,
		Book:     rewards.NewBook(),
		Now:      clock.Now,
		OnEvent:  events.add,
	})
	require.NoError(t, err)
	return tm, rec, events
}

func tickN(tm *Timer, n int) {
	for i := 0; i < n; i++ {
		tm.Tick(context.Background())
	}
}

func oneMinute() config.TimerSettings {
	return config.TimerSettings{StudyMinutes: 1, ShortBreakMinutes: 1, LongBreakMinutes: 2}
}

func TestNew_InitialStateIdleWithStudyDuration(t *testing.T) {
	tm, _, _ := newManualTimer(t, config.DefaultTimerSettings())
	st := tm.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, 1500, st.Remaining)
	assert.False(t, st.Running)
	assert.False(t, st.BreakMode)
	assert.Equal(t, 0, st.CycleCount)
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	_, err := New(Options{Settings: config.TimerSettings{StudyMinutes: 0, ShortBreakMinutes: 5, LongBreakMinutes: 15}, Recorder: &fakeRecorder{}})
	assert.ErrorIs(t, err, config.ErrInvalidSettings)
}

func TestStart_RequiresSubject(t *testing.T) {
	tm, _, _ := newManualTimer(t, config.DefaultTimerSettings())
	assert.ErrorIs(t, tm.Start(), ErrNoSubject)
	assert.Equal(t, PhaseIdle, tm.State().Phase)

	assert.ErrorIs(t, tm.SelectSubject(""), ErrNoSubject)
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	assert.Equal(t, PhaseRunningStudy, tm.State().Phase)

	assert.ErrorIs(t, tm.SelectSubject("physics"), ErrRunning)
}

func TestTick_MonotonicAcrossPauseResume(t *testing.T) {
	tm, _, _ := newManualTimer(t, config.DefaultTimerSettings())
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())

	prev := tm.State().Remaining
	for i := 0; i < 10; i++ {
		tm.Tick(context.Background())
		cur := tm.State().Remaining
		assert.Equal(t, prev-1, cur)
		prev = cur
	}
	assert.Equal(t, 1490, prev)

	require.NoError(t, tm.Pause())
	assert.Equal(t, PhasePausedStudy, tm.State().Phase)
	tickN(tm, 5)
	assert.Equal(t, 1490, tm.State().Remaining, "paused timer does not count")

	require.NoError(t, tm.Start())
	tm.Tick(context.Background())
	assert.Equal(t, 1489, tm.State().Remaining, "resume continues from paused value")
}

func TestToggle_StartsAndPauses(t *testing.T) {
	tm, _, _ := newManualTimer(t, config.DefaultTimerSettings())
	require.NoError(t, tm.SelectSubject("math"))

	require.NoError(t, tm.Toggle())
	assert.True(t, tm.State().Running)
	require.NoError(t, tm.Toggle())
	assert.False(t, tm.State().Running)
	assert.Equal(t, PhasePausedStudy, tm.State().Phase)
}

func TestEndToEnd_MathSession(t *testing.T) {
	tm, rec, events := newManualTimer(t, config.TimerSettings{StudyMinutes: 25, ShortBreakMinutes: 5, LongBreakMinutes: 15})
	before := tm.Book().State().TotalPoints

	require.NoError(t, tm.SelectSubject("Math"))
	require.NoError(t, tm.Start())
	tickN(tm, 1500)

	saved := rec.sessions()
	require.Len(t, saved, 1)
	assert.Equal(t, "Math", saved[0].SubjectID)
	assert.Equal(t, 1500, saved[0].Duration)
	assert.True(t, saved[0].Completed)
	assert.Equal(t, "2026-10-14", saved[0].Date)
	assert.Equal(t, "user-1", saved[0].UserID)
	assert.Equal(t, 50, saved[0].Points)

	assert.Equal(t, before+50, tm.Book().State().TotalPoints)

	st := tm.State()
	assert.Equal(t, 1, st.CycleCount)
	require.NotNil(t, st.Offer)
	assert.Equal(t, ShortBreak, st.Offer.Kind)
	assert.Equal(t, 5, st.Offer.Minutes)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Nil(t, st.Pending)

	assert.Equal(t, []EventType{EventSubjectSelected, EventStarted, EventStudyFinished, EventSessionSaved}, events.types())
}

func TestBreakCadence_FourthSessionOffersLongBreak(t *testing.T) {
	tm, rec, _ := newManualTimer(t, oneMinute())
	require.NoError(t, tm.SelectSubject("math"))

	for i := 1; i <= 4; i++ {
		require.NoError(t, tm.Start(), "session %d", i)
		tickN(tm, 60)

		st := tm.State()
		require.NotNil(t, st.Offer, "session %d", i)
		if i < 4 {
			assert.Equal(t, ShortBreak, st.Offer.Kind, "session %d", i)
			assert.Equal(t, i, st.CycleCount)
			require.NoError(t, tm.SkipBreak())
		} else {
			assert.Equal(t, LongBreak, st.Offer.Kind)
			assert.Equal(t, 2, st.Offer.Minutes)
			assert.Equal(t, 0, st.CycleCount)
		}
	}
	assert.Len(t, rec.sessions(), 4)

	require.NoError(t, tm.SkipBreak())
	st := tm.State()
	assert.Equal(t, 0, st.CycleCount)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, 60, st.Remaining)
	assert.Nil(t, st.Offer)
}

func TestAcceptBreak_RunsBreakWithoutRecordingIt(t *testing.T) {
	tm, rec, events := newManualTimer(t, oneMinute())
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 60)

	require.NoError(t, tm.AcceptBreak())
	st := tm.State()
	assert.Equal(t, PhaseRunningBreak, st.Phase)
	assert.True(t, st.BreakMode)
	assert.Equal(t, 60, st.Remaining)
	assert.Nil(t, st.Offer)

	require.NoError(t, tm.Pause())
	assert.Equal(t, PhasePausedBreak, tm.State().Phase)
	require.NoError(t, tm.Start())

	tickN(tm, 60)
	st = tm.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.False(t, st.BreakMode)
	assert.Equal(t, 60, st.Remaining)
	assert.Len(t, rec.sessions(), 1, "break time is never recorded")
	assert.Contains(t, events.types(), EventBreakFinished)

	assert.ErrorIs(t, tm.AcceptBreak(), ErrNoOffer)
	assert.ErrorIs(t, tm.SkipBreak(), ErrNoOffer)
}

func TestStart_BlockedWhileOfferPending(t *testing.T) {
	tm, _, _ := newManualTimer(t, oneMinute())
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 60)

	assert.ErrorIs(t, tm.Start(), ErrOfferPending)
}

func TestPersistFailure_AdvancesTimerButWithholdsRewardAndOffer(t *testing.T) {
	tm, rec, events := newManualTimer(t, oneMinute())
	rec.fail(errors.New("network down"))

	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 60)

	st := tm.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, 0, st.Remaining, "timer already reached zero")
	assert.Nil(t, st.Offer)
	assert.Equal(t, 0, st.CycleCount)
	require.NotNil(t, st.Pending)
	assert.Contains(t, st.LastError, "network down")
	assert.Equal(t, 0, tm.Book().State().TotalPoints)
	assert.Empty(t, tm.Book().Sessions(), "local mirror waits for a successful save")
	assert.Contains(t, events.types(), EventSessionFailed)

	rec.fail(nil)
	require.NoError(t, tm.Retry(context.Background()))

	st = tm.State()
	assert.Nil(t, st.Pending)
	assert.Empty(t, st.LastError)
	require.NotNil(t, st.Offer)
	assert.Equal(t, ShortBreak, st.Offer.Kind)
	assert.Equal(t, 1, st.CycleCount)
	assert.Equal(t, 2, tm.Book().State().TotalPoints)

	assert.ErrorIs(t, tm.Retry(context.Background()), ErrNothingPending)
}

func TestRetry_PropagatesError(t *testing.T) {
	tm, rec, _ := newManualTimer(t, oneMinute())
	rec.fail(errors.New("boom"))
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 60)

	err := tm.Retry(context.Background())
	assert.ErrorContains(t, err, "boom")
	assert.NotNil(t, tm.State().Pending)
}

func TestStart_AfterFailedSessionReloadsDuration(t *testing.T) {
	tm, rec, _ := newManualTimer(t, oneMinute())
	rec.fail(errors.New("boom"))
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 60)

	require.NoError(t, tm.Start())
	assert.Equal(t, 60, tm.State().Remaining)
}

func TestReset_FromAnyState(t *testing.T) {
	tm, _, _ := newManualTimer(t, config.DefaultTimerSettings())
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 100)

	tm.Reset()
	st := tm.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, 1500, st.Remaining)
	assert.False(t, st.BreakMode)

	tickN(tm, 3)
	assert.Equal(t, 1500, tm.State().Remaining)
}

func TestUpdateSettings_ValidatesAndResets(t *testing.T) {
	tm, _, _ := newManualTimer(t, config.DefaultTimerSettings())
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 10)

	err := tm.UpdateSettings(config.TimerSettings{StudyMinutes: -5, ShortBreakMinutes: 5, LongBreakMinutes: 15})
	assert.ErrorIs(t, err, config.ErrInvalidSettings)
	assert.Equal(t, PhaseRunningStudy, tm.State().Phase, "rejected settings leave the timer untouched")

	require.NoError(t, tm.UpdateSettings(config.TimerSettings{StudyMinutes: 50, ShortBreakMinutes: 10, LongBreakMinutes: 30}))
	st := tm.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, 3000, st.Remaining)
	assert.Equal(t, 50, st.Settings.StudyMinutes)
}

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

type tickerSpy struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (s *tickerSpy) New(time.Duration) Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	ft := &fakeTicker{ch: make(chan time.Time)}
	s.tickers = append(s.tickers, ft)
	return ft
}

func (s *tickerSpy) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ft := range s.tickers {
		if !ft.stopped.Load() {
			n++
		}
	}
	return n
}

func (s *tickerSpy) last() *fakeTicker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickers[len(s.tickers)-1]
}

func TestTickerSource_NeverTwoActive(t *testing.T) {
	spy := &tickerSpy{}
	tm, err := New(Options{
		UserID:    "user-1",
		Settings:  config.DefaultTimerSettings(),
		Recorder:  &fakeRecorder{},
		NewTicker: spy.New,
	})
	require.NoError(t, err)
	defer tm.Close()

	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	require.NoError(t, tm.Start(), "starting a running timer is a no-op")
	assert.Equal(t, 1, spy.active())

	spy.last().ch <- time.Now()
	assert.Eventually(t, func() bool { return tm.State().Remaining == 1499 }, time.Second, 5*time.Millisecond)

	// manuelles Tick ist bei eigener Taktquelle wirkungslos
	tm.Tick(context.Background())
	assert.Equal(t, 1499, tm.State().Remaining)

	require.NoError(t, tm.Pause())
	assert.Eventually(t, func() bool { return spy.active() == 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, tm.Start())
	assert.Eventually(t, func() bool { return spy.active() == 1 }, time.Second, 5*time.Millisecond)

	spy.last().ch <- time.Now()
	assert.Eventually(t, func() bool { return tm.State().Remaining == 1498 }, time.Second, 5*time.Millisecond)

	tm.Close()
	assert.Eventually(t, func() bool { return spy.active() == 0 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, tm.Start(), ErrClosed)
}

func TestRegistry_OneTimerPerUser(t *testing.T) {
	created := 0
	reg := NewRegistry(func(_ context.Context, userID string) (*Timer, error) {
		created++
		return New(Options{UserID: userID, Settings: config.DefaultTimerSettings(), Recorder: &fakeRecorder{}})
	})

	a, err := reg.Get(context.Background(), "a")
	require.NoError(t, err)
	again, err := reg.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = reg.Get(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	_, ok := reg.Lookup("a")
	assert.True(t, ok)
	reg.Remove("a")
	_, ok = reg.Lookup("a")
	assert.False(t, ok)

	reg.Close()
	_, ok = reg.Lookup("b")
	assert.False(t, ok)
}

// gatedRecorder hält Speichervorgänge an, bis release aufgerufen wird
type gatedRecorder struct {
	fakeRecorder
	gateMu  sync.Mutex
	gate    chan struct{}
	entered chan struct{}
}

func newGatedRecorder() *gatedRecorder {
	return &gatedRecorder{entered: make(chan struct{}, 16)}
}

func (g *gatedRecorder) hold() {
	g.gateMu.Lock()
	defer g.gateMu.Unlock()
	g.gate = make(chan struct{})
}

func (g *gatedRecorder) release() {
	g.gateMu.Lock()
	defer g.gateMu.Unlock()
	close(g.gate)
	g.gate = nil
}

func (g *gatedRecorder) SaveStudySession(ctx context.Context, s *models.StudySession) error {
	g.gateMu.Lock()
	gate := g.gate
	g.gateMu.Unlock()

	g.entered <- struct{}{}
	if gate != nil {
		<-gate
	}
	return g.fakeRecorder.SaveStudySession(ctx, s)
}

func newGatedTimer(t *testing.T) (*Timer, *gatedRecorder) {
	t.Helper()
	rec := newGatedRecorder()
	tm, err := New(Options{UserID: "user-1", Settings: oneMinute(), Recorder: rec, Book: rewards.NewBook()})
	require.NoError(t, err)
	return tm, rec
}

func TestRetry_ConcurrentRetriesCountSessionOnce(t *testing.T) {
	tm, rec := newGatedTimer(t)
	rec.fail(errors.New("network down"))
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 60)
	<-rec.entered
	require.NotNil(t, tm.State().Pending)

	rec.fail(nil)
	rec.hold()
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- tm.Retry(context.Background()) }()
	}

	<-rec.entered
	assert.ErrorIs(t, <-errs, ErrSaveInFlight)
	rec.release()
	assert.NoError(t, <-errs)

	st := tm.State()
	assert.Equal(t, 1, st.CycleCount)
	require.NotNil(t, st.Offer)
	assert.Equal(t, ShortBreak, st.Offer.Kind)
	assert.Equal(t, 2, tm.Book().State().TotalPoints)
	assert.Len(t, rec.sessions(), 1)
}

func TestRetry_RejectedWhileTickerSaveRuns(t *testing.T) {
	tm, rec := newGatedTimer(t)
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 59)

	rec.hold()
	done := make(chan struct{})
	go func() {
		tm.Tick(context.Background())
		close(done)
	}()
	<-rec.entered

	assert.ErrorIs(t, tm.Retry(context.Background()), ErrSaveInFlight)
	rec.release()
	<-done

	st := tm.State()
	assert.Equal(t, 1, st.CycleCount)
	assert.Nil(t, st.Pending)
	assert.Len(t, rec.sessions(), 1)
}

func TestRetry_LateSaveDoesNotBlockNewStudyPhase(t *testing.T) {
	tm, rec, _ := newManualTimer(t, oneMinute())
	rec.fail(errors.New("network down"))
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 60)

	// neue Lernphase, bevor die alte Sitzung gespeichert ist
	rec.fail(nil)
	require.NoError(t, tm.Start())
	tickN(tm, 10)
	require.NoError(t, tm.Retry(context.Background()))

	st := tm.State()
	assert.Equal(t, PhaseRunningStudy, st.Phase)
	assert.Equal(t, 50, st.Remaining)
	assert.Nil(t, st.Offer, "no break offer in the middle of a study phase")
	assert.Nil(t, st.Pending)
	assert.Equal(t, 1, st.CycleCount)
	assert.Equal(t, 2, tm.Book().State().TotalPoints)

	require.NoError(t, tm.Pause())
	require.NoError(t, tm.Start())
	assert.Equal(t, PhaseRunningStudy, tm.State().Phase)

	// die laufende Phase endet normal und bekommt ihr eigenes Angebot
	tickN(tm, 50)
	st = tm.State()
	require.NotNil(t, st.Offer)
	assert.Equal(t, ShortBreak, st.Offer.Kind)
	assert.Equal(t, 2, st.CycleCount)
	assert.Equal(t, 4, tm.Book().State().TotalPoints)
}

func TestAcceptBreak_AfterCloseFails(t *testing.T) {
	tm, _, _ := newManualTimer(t, oneMinute())
	require.NoError(t, tm.SelectSubject("math"))
	require.NoError(t, tm.Start())
	tickN(tm, 60)
	require.NotNil(t, tm.State().Offer)

	tm.Close()
	assert.ErrorIs(t, tm.AcceptBreak(), ErrClosed)
	assert.False(t, tm.State().Running)
}
