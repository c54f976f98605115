/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/trivia/internal/room"
)

func TestDecodeJoin(t *testing.T) {
	req, err := decodeJoin(json.RawMessage(`{"roomCode":" abc123 ","displayName":" Ana ","role":"player2"}`))
	require.NoError(t, err)
	assert.Equal(t, joinRequest{RoomCode: "ABC123", PlayerName: "Ana", Role: "player2"}, req)

	tests := []struct {
		name string
		data string
		want error
	}{
		{"malformed", `[1,2]`, room.Errorf(room.CodeInvalidPayload, "")},
		{"short code", `{"roomCode":"ABC","playerName":"Ana"}`, room.ErrInvalidCode},
		{"symbol in code", `{"roomCode":"ABC-12","playerName":"Ana"}`, room.ErrInvalidCode},
		{"missing name", `{"roomCode":"ABC123"}`, room.ErrInvalidName},
		{"long name", `{"roomCode":"ABC123","playerName":"` + strings.Repeat("a", 33) + `"}`, room.ErrInvalidName},
		{"bad role", `{"roomCode":"ABC123","playerName":"Ana","role":"waiter"}`, room.ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeJoin(json.RawMessage(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeText(t *testing.T) {
	s, err := decodeText(json.RawMessage(`"Chef"`), "playerName")
	require.NoError(t, err)
	assert.Equal(t, "Chef", s)

	s, err = decodeText(json.RawMessage(`{"displayName":"Chef"}`), "playerName", "displayName")
	require.NoError(t, err)
	assert.Equal(t, "Chef", s)

	s, err = decodeText(nil, "playerName")
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = decodeText(json.RawMessage(`{"playerName":7}`), "playerName")
	assert.ErrorIs(t, err, room.Errorf(room.CodeInvalidPayload, ""))
}

func TestDecodePatch(t *testing.T) {
	p, err := decodePatch(json.RawMessage(`{"positions":{"1":12},"currentPlayer":2}`))
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 12}, p.Positions)
	require.NotNil(t, p.CurrentPlayer)
	assert.Equal(t, 2, *p.CurrentPlayer)

	_, err = decodePatch(json.RawMessage(`{"positions":{"1":12},"winner":1}`))
	assert.ErrorIs(t, err, room.Errorf(room.CodeInvalidPayload, ""))
}

func TestErrorEnvelope(t *testing.T) {
	var payload ErrorPayload

	env := errorEnvelope(room.ErrNotHost)
	assert.Equal(t, EventError, env.Event)
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, room.CodeNotHost, payload.Code)

	env = errorEnvelope(errors.New("disk on fire"))
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, room.CodeInternal, payload.Code)
	assert.Equal(t, "internal error", payload.Message)
}
