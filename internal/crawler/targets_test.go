package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSingleTarget(t *testing.T) {
	t.Parallel()

	_, err := SingleTarget(0)
	require.ErrorIs(t, err, ErrInvalidSingle)

	_, err = SingleTarget(-4)
	require.ErrorIs(t, err, ErrInvalidSingle)

	set, err := SingleTarget(12345)
	require.NoError(t, err)
	require.Equal(t, ModeSingle, set.Mode())
	require.Equal(t, []EntryID{12345}, set.IDs())
}

func TestListTargetRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := ListTarget(nil)
	require.ErrorIs(t, err, ErrEmptyList)

	ids := []EntryID{5, 7, 9}
	set, err := ListTarget(ids)
	require.NoError(t, err)
	ids[0] = 100
	require.Equal(t, []EntryID{5, 7, 9}, set.IDs(), "target set must not alias the caller slice")
}

func TestRangeTargetBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		start, end EntryID
		wantErr    error
		want       []EntryID
	}{
		{name: "inverted", start: 11, end: 10, wantErr: ErrInvalidRange},
		{name: "degenerate", start: 10, end: 10, wantErr: ErrDegenerateRange},
		{name: "inclusive", start: 10, end: 13, want: []EntryID{10, 11, 12, 13}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			set, err := RangeTarget(tc.start, tc.end)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, len(tc.want), set.Len())
			require.Equal(t, tc.want, set.IDs())
		})
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseMode(" Range ")
	require.NoError(t, err)
	require.Equal(t, ModeRange, mode)

	_, err = ParseMode("everything")
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestBlockTextIgnoresFailedFetch(t *testing.T) {
	t.Parallel()

	require.Empty(t, Block{ID: 1, Content: []byte("stale"), FetchSucceeded: false}.Text())
	require.Equal(t, "ok", Block{ID: 1, Content: []byte("ok"), FetchSucceeded: true}.Text())
}

func TestModeTextRoundTrip(t *testing.T) {
	t.Parallel()

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("Multiple")))
	require.Equal(t, ModeRange, m)
	text, err := ModeList.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "list", string(text))
	require.ErrorIs(t, m.UnmarshalText([]byte("all")), ErrInvalidMode)
}

func TestRunStateText(t *testing.T) {
	t.Parallel()

	var s RunState
	require.NoError(t, s.UnmarshalText([]byte("aborted")))
	require.Equal(t, StateAborted, s)
	require.True(t, s.Terminal())
	require.False(t, StateRunning.Terminal())
	_, err := ParseRunState("paused")
	require.Error(t, err)
}
