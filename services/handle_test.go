package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"@Alice", "@alice"},
		{"alice_01", "@alice_01"},
		{"  @bob  ", "@bob"},
		{"1234567890", "1234567890"},
		{"https://x.com/Carol", "@carol"},
		{"https://twitter.com/carol/status/1", "@carol"},
		{"x.com/dave", "@dave"},
		{"http://mobile.twitter.com/@eve/", "@eve"},
		{"ａｌｉｃｅ", "@alice"},
		// all-digit screen names stay names unless given bare
		{"@1234567", "@1234567"},
		{"https://x.com/1234567", "@1234567"},
		{"x.com/@1234567", "@1234567"},
	}
	for _, tt := range tests {
		got, err := NormalizeHandle(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalizeHandle_Rejects(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"@",
		"has space",
		"way_too_long_handle_name",
		"https://example.com/alice",
		"https://x.com/",
		"bad-dash",
	} {
		_, err := NormalizeHandle(in)
		require.Error(t, err, in)
		assert.Equal(t, KindValidation, KindOf(err), in)
	}
}

func TestNormalizeHandle_DigitNamesAreNotIDs(t *testing.T) {
	for _, in := range []string{"@1234567", "https://x.com/1234567", "twitter.com/1234567"} {
		got, err := NormalizeHandle(in)
		require.NoError(t, err, in)
		assert.False(t, IsExternalID(got), in)
		assert.Equal(t, "1234567", ScreenName(got), in)
	}

	got, err := NormalizeHandle("1234567")
	require.NoError(t, err)
	assert.True(t, IsExternalID(got))
}

func TestIsExternalID(t *testing.T) {
	assert.True(t, IsExternalID("44196397"))
	assert.False(t, IsExternalID("@44196397"))
	assert.False(t, IsExternalID("elon"))
	assert.False(t, IsExternalID(""))
}
