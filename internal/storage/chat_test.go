package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy/internal/models"
)

func TestCreateDirectChatRoom_ReusesExisting(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first, err := s.CreateDirectChatRoom(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "direct", first.Type)

	second, err := s.CreateDirectChatRoom(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.ElementsMatch(t, []string{"u1", "u2"}, second.Participants)

	other, err := s.CreateDirectChatRoom(ctx, "u1", "u3")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestGetChatRooms_SortedByLastActivity(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	quiet := &models.ChatRoom{ID: "quiet", Name: "Ruhig", Participants: []string{"u1", "u2"}, CreatedAt: base.Add(time.Hour)}
	busy := &models.ChatRoom{ID: "busy", Name: "Lerngruppe", Participants: []string{"u1", "u3"}, CreatedAt: base}
	require.NoError(t, s.CreateChatRoom(ctx, quiet))
	require.NoError(t, s.CreateChatRoom(ctx, busy))
	require.NoError(t, s.CreateChatRoom(ctx, &models.ChatRoom{ID: "foreign", Participants: []string{"u9"}}))

	require.NoError(t, s.SaveMessage(ctx, &models.Message{RoomID: "busy", SenderID: "u3", Content: "hallo", CreatedAt: base.Add(2 * time.Hour)}))
	require.NoError(t, s.SaveMessage(ctx, &models.Message{RoomID: "busy", SenderID: "u1", Content: "tschüss", CreatedAt: base.Add(3 * time.Hour)}))

	rooms, err := s.GetChatRooms(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "busy", rooms[0].ID)
	assert.Equal(t, "tschüss", rooms[0].LastMessage)
	require.NotNil(t, rooms[0].LastMessageTime)
	assert.True(t, rooms[0].LastMessageTime.Equal(base.Add(3*time.Hour)))
	assert.Equal(t, "quiet", rooms[1].ID)
	assert.Nil(t, rooms[1].LastMessageTime)
	assert.Equal(t, []string{"u1", "u2"}, rooms[1].Participants)
}

func TestMessages_AscendingWithLimit(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.CreateChatRoom(ctx, &models.ChatRoom{ID: "r", Participants: []string{"u1"}}))
	require.NoError(t, s.SaveProfile(ctx, &models.Profile{ID: "u1", Username: "lena"}))
	for i, text := range []string{"eins", "zwei", "drei"} {
		require.NoError(t, s.SaveMessage(ctx, &models.Message{RoomID: "r", SenderID: "u1", Content: text, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	msgs, err := s.GetMessages(ctx, "r", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "zwei", msgs[0].Content)
	assert.Equal(t, "drei", msgs[1].Content)
	assert.Equal(t, "lena", msgs[1].Username)
	assert.True(t, msgs[1].CreatedAt.Equal(base.Add(2*time.Minute)))

	ok, err := s.IsParticipant(ctx, "r", "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.IsParticipant(ctx, "r", "u2")
	assert.False(t, ok)
}
