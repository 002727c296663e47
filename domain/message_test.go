package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessage_Preview(t *testing.T) {
	req := require.New(t)

	req.Equal("hello", Message{Type: MessageTypeText, Content: "hello"}.Preview())
	req.Equal("📷 Photo", Message{Type: MessageTypeImage, FileURL: "https://x/y.png"}.Preview())
	req.Equal("🎵 Voice message", Message{Type: MessageTypeAudio}.Preview())
	req.Equal("Media", Message{Type: MessageTypeText}.Preview())

	// Long text is cut on runes, not bytes
	long := strings.Repeat("é", 40)
	req.Equal(strings.Repeat("é", 30)+"...", Message{Type: MessageTypeText, Content: long}.Preview())
}

func TestParseMessageType(t *testing.T) {
	req := require.New(t)

	parsed, err := ParseMessageType("")
	req.NoError(err)
	req.Equal(MessageTypeText, parsed)

	parsed, err = ParseMessageType("video")
	req.NoError(err)
	req.Equal(MessageTypeVideo, parsed)
	req.True(parsed.IsMedia())

	_, err = ParseMessageType("sticker")
	req.Error(err)
}

func TestMessage_Participants(t *testing.T) {
	req := require.New(t)
	m := Message{SenderID: "alice", ReceiverID: "bob"}

	req.True(m.HasParticipant("alice"))
	req.True(m.HasParticipant("bob"))
	req.False(m.HasParticipant("carol"))
	req.Equal(UserID("bob"), m.Peer("alice"))
	req.Equal(UserID("alice"), m.Peer("bob"))
}
