package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()
	require.NotNil(t, km)

	tests := []struct {
		name    string
		keys    []string
		binding []string
	}{
		{name: "quit", keys: []string{"ctrl+c", "ctrl+d"}, binding: km.Quit.Keys()},
		{name: "send", keys: []string{"enter"}, binding: km.Send.Keys()},
		{name: "cancel", keys: []string{"esc"}, binding: km.Cancel.Keys()},
		{name: "scroll up", keys: []string{"pgup"}, binding: km.ScrollUp.Keys()},
		{name: "scroll down", keys: []string{"pgdown"}, binding: km.ScrollDown.Keys()},
		{name: "clear", keys: []string{"ctrl+l"}, binding: km.Clear.Keys()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.keys, tt.binding)
		})
	}
}

func TestHelp(t *testing.T) {
	km := DefaultKeyMap()

	assert.Len(t, km.ShortHelp(), 3)
	assert.Len(t, km.StreamingHelp(), 3)
	for _, b := range append(km.ShortHelp(), km.StreamingHelp()...) {
		assert.NotEmpty(t, b.Help().Key)
		assert.NotEmpty(t, b.Help().Desc)
	}
}

func TestMatches(t *testing.T) {
	km := DefaultKeyMap()

	assert.True(t, Matches("enter", km.Send))
	assert.True(t, Matches("ctrl+d", km.Quit))
	assert.False(t, Matches("q", km.Quit))
}
