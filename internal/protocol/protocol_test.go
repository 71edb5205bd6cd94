package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/janken/internal/rules"
)

func TestEncodeWireShape(t *testing.T) {
	data, err := Encode(HandSelected{Hand: rules.Rock, RoundID: "g1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"handSelected","hand":"rock","gameId":"g1"}`, string(data))

	data, err = Encode(NewGame{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"newGame"}`, string(data))
}

func TestEncodeRejectsIncompleteMessages(t *testing.T) {
	_, err := Encode(HandSelected{Hand: rules.Unset, RoundID: "g1"})
	assert.Error(t, err)

	_, err = Encode(HandSelected{Hand: rules.Paper})
	assert.Error(t, err)

	_, err = Encode(Unknown{Type: "chat"})
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want Message
	}{
		{"hand selected", `{"type":"handSelected","hand":"scissors","gameId":"1700000000000"}`,
			HandSelected{Hand: rules.Scissors, RoundID: "1700000000000"}},
		{"new game", `{"type":"newGame"}`, NewGame{}},
		{"new game with extra fields", `{"type":"newGame","gameId":"x"}`, NewGame{}},
		{"unknown type", `{"type":"chat","text":"hi"}`, Unknown{Type: "chat"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.data))
			require.NoError(t, err)
			assert.Equal(t, tc.want, msg)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, data := range []string{
		``,
		`not json`,
		`{}`,
		`{"type":"handSelected","hand":"lizard","gameId":"g1"}`,
		`{"type":"handSelected","hand":"rock"}`,
	} {
		_, err := Decode([]byte(data))
		assert.Error(t, err, "payload %q", data)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, msg := range []Message{
		HandSelected{Hand: rules.Paper, RoundID: "a"},
		NewGame{},
	} {
		data, err := Encode(msg)
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, msg, decoded)
	}
}
