package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studybuddy/internal/models"
)

// Chat-Räume

// CreateChatRoom legt einen Raum samt Teilnehmern in einer Transaktion an
func (s *SQLiteStorage) CreateChatRoom(ctx context.Context, room *models.ChatRoom) error {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	if room.Type == "" {
		room.Type = "group"
	}
	room.CreatedAt = s.stamp(room.CreatedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_rooms (id, name, type, created_at) VALUES (?, ?, ?, ?)
	`, room.ID, room.Name, room.Type, room.CreatedAt); err != nil {
		return fmt.Errorf("raum anlegen: %w", err)
	}
	for _, userID := range room.Participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO chat_room_participants (room_id, user_id) VALUES (?, ?)
		`, room.ID, userID); err != nil {
			return fmt.Errorf("teilnehmer hinzufügen: %w", err)
		}
	}
	return tx.Commit()
}

// CreateDirectChatRoom gibt den bestehenden Direktraum der beiden Nutzer zurück oder legt ihn an
func (s *SQLiteStorage) CreateDirectChatRoom(ctx context.Context, userA, userB string) (*models.ChatRoom, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id FROM chat_rooms r
		WHERE r.type = 'direct'
		  AND EXISTS (SELECT 1 FROM chat_room_participants p WHERE p.room_id = r.id AND p.user_id = ?)
		  AND EXISTS (SELECT 1 FROM chat_room_participants p WHERE p.room_id = r.id AND p.user_id = ?)
		  AND (SELECT COUNT(*) FROM chat_room_participants p WHERE p.room_id = r.id) = 2
		LIMIT 1
	`, userA, userB).Scan(&id)

	switch {
	case err == nil:
		return s.getChatRoom(ctx, id)
	case err != sql.ErrNoRows:
		return nil, err
	}

	room := &models.ChatRoom{
		Name:         "Direct Chat",
		Type:         "direct",
		Participants: []string{userA, userB},
	}
	if err := s.CreateChatRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *SQLiteStorage) getChatRoom(ctx context.Context, id string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(name, ''), type, created_at FROM chat_rooms WHERE id = ?
	`, id).Scan(&room.ID, &room.Name, &room.Type, &room.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	room.Participants, err = s.participants(ctx, id)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *SQLiteStorage) participants(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM chat_room_participants WHERE room_id = ? ORDER BY user_id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetChatRooms liefert die Räume eines Nutzers mit letzter Nachricht, neueste Aktivität zuerst
func (s *SQLiteStorage) GetChatRooms(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, COALESCE(r.name, ''), r.type, r.created_at, m.content, m.created_at
		FROM chat_rooms r
		JOIN chat_room_participants p ON p.room_id = r.id AND p.user_id = ?
		LEFT JOIN messages m ON m.id = (
			SELECT id FROM messages WHERE room_id = r.id ORDER BY created_at DESC, id DESC LIMIT 1
		)
		ORDER BY COALESCE(m.created_at, r.created_at) DESC
	`, userID)
	if err != nil {
		return nil, err
	}

	rooms := []models.ChatRoom{}
	for rows.Next() {
		var room models.ChatRoom
		var lastContent sql.NullString
		var lastTime sql.NullTime
		if err := rows.Scan(&room.ID, &room.Name, &room.Type, &room.CreatedAt, &lastContent, &lastTime); err != nil {
			rows.Close()
			return nil, err
		}
		if lastContent.Valid {
			room.LastMessage = lastContent.String
		}
		if lastTime.Valid {
			t := lastTime.Time
			room.LastMessageTime = &t
		}
		rooms = append(rooms, room)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Teilnehmer erst nach dem Schließen laden: es gibt nur eine Verbindung
	for i := range rooms {
		if rooms[i].Participants, err = s.participants(ctx, rooms[i].ID); err != nil {
			return nil, err
		}
	}
	return rooms, nil
}

func (s *SQLiteStorage) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_room_participants WHERE room_id = ? AND user_id = ?
	`, roomID, userID).Scan(&n)
	return n > 0, err
}

// Nachrichten

func (s *SQLiteStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = s.stamp(msg.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.CreatedAt)
	return err
}

// GetMessages liefert die letzten limit Nachrichten eines Raums in aufsteigender Reihenfolge
func (s *SQLiteStorage) GetMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, sender_id, username, content, created_at FROM (
			SELECT m.id, m.room_id, m.sender_id, COALESCE(p.username, '') AS username, m.content, m.created_at
			FROM messages m LEFT JOIN profiles p ON p.id = m.sender_id
			WHERE m.room_id = ?
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		var created any
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Username, &m.Content, &created); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = asTime(created); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// asTime liest Zeitstempel aus Unterabfragen, bei denen SQLite den Spaltentyp verliert
func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return parseStoredTime(t)
	case []byte:
		return parseStoredTime(string(t))
	}
	return time.Time{}, fmt.Errorf("unbekanntes zeitformat: %T", v)
}

func parseStoredTime(s string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("zeitstempel %q nicht lesbar", s)
}
