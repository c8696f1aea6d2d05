package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studybuddy/internal/config"
	"studybuddy/internal/models"

	_ "modernc.org/sqlite"
)

// ErrNotFound wird zurückgegeben, wenn eine Zeile nicht existiert oder dem Nutzer nicht gehört
var ErrNotFound = errors.New("nicht gefunden")

// Storage definiert das Interface für Datenpersistenz
type Storage interface {
	// Fächer
	SaveSubject(ctx context.Context, subject *models.Subject) error
	GetSubject(ctx context.Context, userID, id string) (*models.Subject, error)
	GetSubjects(ctx context.Context, userID string) ([]models.Subject, error)
	DeleteSubject(ctx context.Context, userID, id string) error

	// Lernsitzungen
	SaveStudySession(ctx context.Context, session *models.StudySession) error
	GetStudySession(ctx context.Context, userID, id string) (*models.StudySession, error)
	GetStudySessions(ctx context.Context, userID string) ([]models.StudySession, error)
	CompleteStudySession(ctx context.Context, userID, id string) error

	// Lernziele
	GetGoals(ctx context.Context, userID string, defaults models.Goals) (models.Goals, error)
	SaveGoals(ctx context.Context, userID string, goals models.Goals) error

	// Timer-Einstellungen
	GetTimerSettings(ctx context.Context, userID string, defaults config.TimerSettings) (config.TimerSettings, error)
	SaveTimerSettings(ctx context.Context, userID string, settings config.TimerSettings) error

	// Profile
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, profile *models.Profile) error

	// Materialien
	SaveMaterial(ctx context.Context, m *models.Material) error
	GetMaterial(ctx context.Context, userID, id string) (*models.Material, error)
	GetMaterials(ctx context.Context, userID string) ([]models.Material, error)
	IncrementMaterialViews(ctx context.Context, userID, id string) error
	DeleteMaterial(ctx context.Context, userID, id string) error

	// Chat
	CreateChatRoom(ctx context.Context, room *models.ChatRoom) error
	CreateDirectChatRoom(ctx context.Context, userA, userB string) (*models.ChatRoom, error)
	GetChatRooms(ctx context.Context, userID string) ([]models.ChatRoom, error)
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)

	// Lernpartner
	SaveBuddy(ctx context.Context, b *models.BuddyCandidate) error
	GetBuddy(ctx context.Context, userID string) (*models.BuddyCandidate, error)
	FindNearbyBuddies(ctx context.Context, q NearbyQuery) ([]models.BuddyCandidate, error)

	Close() error
}

// SQLiteStorage implementiert Storage mit SQLite
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage erstellt eine neue SQLite-Storage-Instanz
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite verträgt nur einen Schreiber
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{db: db, now: time.Now}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema anlegen: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT,
		semester TEXT,
		description TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS study_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		subject_id TEXT,
		duration INTEGER NOT NULL,
		date TEXT NOT NULL,
		completed INTEGER DEFAULT 0,
		points INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_goals (
		user_id TEXT PRIMARY KEY,
		daily INTEGER NOT NULL,
		weekly INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_settings (
		user_id TEXT PRIMARY KEY,
		study_minutes INTEGER NOT NULL,
		short_break_minutes INTEGER NOT NULL,
		long_break_minutes INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT,
		avatar_url TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS study_materials (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		subject_id TEXT,
		name TEXT NOT NULL,
		content_type TEXT,
		size INTEGER,
		path TEXT NOT NULL,
		url TEXT,
		page_count INTEGER DEFAULT 0,
		preview TEXT,
		views INTEGER DEFAULT 0,
		downloads INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_rooms (
		id TEXT PRIMARY KEY,
		name TEXT,
		type TEXT NOT NULL DEFAULT 'group',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_room_participants (
		room_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (room_id, user_id),
		FOREIGN KEY (room_id) REFERENCES chat_rooms(id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (room_id) REFERENCES chat_rooms(id)
	);

	CREATE TABLE IF NOT EXISTS study_buddies (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		subjects TEXT,
		is_available INTEGER DEFAULT 1,
		last_active DATETIME NOT NULL,
		is_tutor INTEGER DEFAULT 0,
		hourly_rate REAL DEFAULT 0,
		expertise_level TEXT,
		verified INTEGER DEFAULT 0,
		subjects_expertise TEXT,
		average_rating REAL DEFAULT 0,
		review_count INTEGER DEFAULT 0,
		bio TEXT,
		preferred_study_time TEXT,
		learning_style TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_subjects_user ON subjects(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON study_sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_materials_user ON study_materials(user_id);
	CREATE INDEX IF NOT EXISTS idx_participants_user ON chat_room_participants(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_buddies_location ON study_buddies(latitude, longitude);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// stamp normalisiert Zeitstempel auf UTC, damit die Textsortierung in SQLite stimmt
func (s *SQLiteStorage) stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC()
}

// affected übersetzt "0 Zeilen betroffen" in ErrNotFound
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Fächer

func (s *SQLiteStorage) SaveSubject(ctx context.Context, subject *models.Subject) error {
	subject.CreatedAt = s.stamp(subject.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO subjects (id, user_id, name, category, semester, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, subject.ID, subject.UserID, subject.Name, subject.Category, subject.Semester, subject.Description, subject.CreatedAt)
	return err
}

func (s *SQLiteStorage) GetSubject(ctx context.Context, userID, id string) (*models.Subject, error) {
	var sub models.Subject
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, category, semester, description, created_at
		FROM subjects WHERE id = ? AND user_id = ?
	`, id, userID).Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Category, &sub.Semester, &sub.Description, &sub.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *SQLiteStorage) GetSubjects(ctx context.Context, userID string) ([]models.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, category, semester, description, created_at
		FROM subjects WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subjects := []models.Subject{}
	for rows.Next() {
		var sub models.Subject
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.Category, &sub.Semester, &sub.Description, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

func (s *SQLiteStorage) DeleteSubject(ctx context.Context, userID, id string) error {
	return affected(s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = ? AND user_id = ?`, id, userID))
}

// Lernsitzungen

func (s *SQLiteStorage) SaveStudySession(ctx context.Context, session *models.StudySession) error {
	session.CreatedAt = s.stamp(session.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO study_sessions (id, user_id, subject_id, duration, date, completed, points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, session.ID, session.UserID, session.SubjectID, session.Duration, session.Date, session.Completed, session.Points, session.CreatedAt)
	return err
}

const sessionColumns = `id, user_id, subject_id, duration, date, completed, points, created_at`

func scanSession(row interface{ Scan(...any) error }) (models.StudySession, error) {
	var ss models.StudySession
	err := row.Scan(&ss.ID, &ss.UserID, &ss.SubjectID, &ss.Duration, &ss.Date, &ss.Completed, &ss.Points, &ss.CreatedAt)
	return ss, err
}

func (s *SQLiteStorage) GetStudySession(ctx context.Context, userID, id string) (*models.StudySession, error) {
	ss, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM study_sessions WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &ss, nil
}

// GetStudySessions liefert die Sitzungen eines Nutzers, neueste zuerst
func (s *SQLiteStorage) GetStudySessions(ctx context.Context, userID string) ([]models.StudySession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM study_sessions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.StudySession{}
	for rows.Next() {
		ss, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

// CompleteStudySession setzt completed auf true (idempotent)
func (s *SQLiteStorage) CompleteStudySession(ctx context.Context, userID, id string) error {
	return affected(s.db.ExecContext(ctx,
		`UPDATE study_sessions SET completed = 1 WHERE id = ? AND user_id = ?`, id, userID))
}

// Lernziele

func (s *SQLiteStorage) GetGoals(ctx context.Context, userID string, defaults models.Goals) (models.Goals, error) {
	var g models.Goals
	err := s.db.QueryRowContext(ctx, `SELECT daily, weekly FROM user_goals WHERE user_id = ?`, userID).
		Scan(&g.Daily, &g.Weekly)
	if errors.Is(err, sql.ErrNoRows) {
		return defaults, nil
	}
	if err != nil {
		return models.Goals{}, err
	}
	return g, nil
}

func (s *SQLiteStorage) SaveGoals(ctx context.Context, userID string, goals models.Goals) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO user_goals (user_id, daily, weekly) VALUES (?, ?, ?)
	`, userID, goals.Daily, goals.Weekly)
	return err
}

// Timer-Einstellungen

func (s *SQLiteStorage) GetTimerSettings(ctx context.Context, userID string, defaults config.TimerSettings) (config.TimerSettings, error) {
	var ts config.TimerSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT study_minutes, short_break_minutes, long_break_minutes FROM user_settings WHERE user_id = ?
	`, userID).Scan(&ts.StudyMinutes, &ts.ShortBreakMinutes, &ts.LongBreakMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return defaults, nil
	}
	if err != nil {
		return config.TimerSettings{}, err
	}
	return ts, nil
}

func (s *SQLiteStorage) SaveTimerSettings(ctx context.Context, userID string, settings config.TimerSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO user_settings (user_id, study_minutes, short_break_minutes, long_break_minutes)
		VALUES (?, ?, ?, ?)
	`, userID, settings.StudyMinutes, settings.ShortBreakMinutes, settings.LongBreakMinutes)
	return err
}

// Profile

func (s *SQLiteStorage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(username, ''), COALESCE(avatar_url, ''), created_at FROM profiles WHERE id = ?
	`, userID).Scan(&p.ID, &p.Username, &p.AvatarURL, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *SQLiteStorage) SaveProfile(ctx context.Context, profile *models.Profile) error {
	profile.CreatedAt = s.stamp(profile.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO profiles (id, username, avatar_url, created_at) VALUES (?, ?, ?, ?)
	`, profile.ID, profile.Username, profile.AvatarURL, profile.CreatedAt)
	return err
}
