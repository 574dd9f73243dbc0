package emotion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Label
		wantErr bool
	}{
		{name: "lower case", input: "happy", want: Happy},
		{name: "mixed case", input: "Energetic", want: Energetic},
		{name: "surrounding whitespace", input: "  romantic\n", want: Romantic},
		{name: "neutral", input: "neutral", want: Neutral},
		{name: "unknown", input: "joyful", want: Default, wantErr: true},
		{name: "empty", input: "", want: Default, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownLabel)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodeTableIsBidirectional(t *testing.T) {
	for _, l := range All() {
		back, ok := FromCode(l.Code())
		assert.True(t, ok, "code %d", l.Code())
		assert.Equal(t, l, back)

		parsed, err := Parse(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}
	assert.Len(t, All(), Count)
}

func TestFromCodeOutOfRange(t *testing.T) {
	for _, code := range []int{-1, 7, 9, 255, 1 << 20} {
		got, ok := FromCode(code)
		assert.False(t, ok, "code %d", code)
		assert.Equal(t, Neutral, got, "code %d", code)
	}
}

func TestLabelCodes(t *testing.T) {
	want := map[string]int{
		"happy": 0, "sad": 1, "angry": 2, "calm": 3,
		"energetic": 4, "romantic": 5, "neutral": 6,
	}
	for name, code := range want {
		l, err := Parse(name)
		require.NoError(t, err)
		assert.Equal(t, code, l.Code(), name)
	}
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Label{"mood": Calm})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mood":"calm"}`, string(data))

	var decoded struct {
		Mood Label `json:"mood"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"mood":"SAD"}`), &decoded))
	assert.Equal(t, Sad, decoded.Mood)

	assert.Error(t, json.Unmarshal([]byte(`{"mood":"blue"}`), &decoded))

	_, err = Label(9).MarshalText()
	assert.ErrorIs(t, err, ErrUnknownLabel)
	assert.Equal(t, "emotion(9)", Label(9).String())
}
