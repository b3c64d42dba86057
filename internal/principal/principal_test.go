// Copyright 2025 Certen Protocol

package principal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0xde, 0xad, 0xbe, 0xef},
		make([]byte, 29),
	}
	for _, b := range cases {
		p, err := New(b)
		require.NoError(t, err)

		text := p.ToText()
		p2, err := FromText(text)
		require.NoError(t, err)
		require.True(t, p.Equal(p2))
	}
}

func TestNewRejectsOverlong(t *testing.T) {
	_, err := New(make([]byte, 30))
	require.ErrorIs(t, err, ErrTooLong)
}

func TestFromTextRejectsBadChecksum(t *testing.T) {
	p, err := New([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	text := p.ToText()

	// Change the first character of the first group to corrupt the checksum.
	corrupted := []byte(text)
	if corrupted[0] == 'a' {
		corrupted[0] = 'b'
	} else {
		corrupted[0] = 'a'
	}

	_, err = FromText(string(corrupted))
	require.Error(t, err)
}

func TestFromTextRejectsBadGrouping(t *testing.T) {
	_, err := FromText("ab-cdefg")
	require.ErrorIs(t, err, ErrBadGrouping)
}
