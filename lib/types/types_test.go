package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in  string
		out time.Duration
	}{
		{"30", 30 * time.Second},
		{"2.5", 2500 * time.Millisecond},
		{"1m30s", 90 * time.Second},
		{"250ms", 250 * time.Millisecond},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			d, err := ParseDuration(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.out, d)
		})
	}

	for _, bad := range []string{"", "-5", "-1s", "ten seconds"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestNullDuration(t *testing.T) {
	t.Parallel()

	var d NullDuration
	require.NoError(t, d.UnmarshalText([]byte("10")))
	assert.Equal(t, NullDurationFrom(10*time.Second), d)
	assert.Equal(t, 10*time.Second, d.TimeDuration())

	require.NoError(t, d.UnmarshalText(nil))
	assert.False(t, d.Valid)

	assert.Error(t, d.UnmarshalText([]byte("soon")))
	assert.Equal(t, "1m0s", NewNullDuration(time.Minute, true).String())
}
