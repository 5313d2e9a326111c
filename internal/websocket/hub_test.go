package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "u123", SanitizeID("u123"))
	assert.Equal(t, "bot-5f3a", SanitizeID("bot:5f3a"))
	assert.Equal(t, "a-b-c_d", SanitizeID("a b:c_d"))
	assert.Equal(t, "", SanitizeID(""))
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "room-abc", RoomChannel("abc"))
	assert.Equal(t, "user-bot-1", UserChannel("bot:1"))
}
