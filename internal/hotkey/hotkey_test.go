package hotkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseChord(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "default chord", in: "", want: "ctrl+shift+space"},
		{name: "explicit", in: "ctrl+shift+space", want: "ctrl+shift+space"},
		{name: "case and spacing normalized", in: " Ctrl + Alt + D ", want: "ctrl + alt + d"},
		{name: "super key", in: "super+z", want: "super+z"},
		{name: "function key", in: "ctrl+f9", want: "ctrl+f9"},
		{name: "unknown key", in: "ctrl+pause", wantErr: true},
		{name: "unknown modifier", in: "hyper+space", wantErr: true},
		{name: "bare key without modifier", in: "space", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chord, err := ParseChord(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, chord.String())
		})
	}
}

func TestListenerChannelsNeverNil(t *testing.T) {
	l := NewListener()
	require.NotNil(t, l.Keydown())
	require.NotNil(t, l.Keyup())

	// Unregister before any Register must be harmless.
	require.NotPanics(t, l.Unregister)
}
