package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		mapping CaseMapping
		in      string
		want    string
	}{
		{CaseMapASCII, "NickName", "nickname"},
		{CaseMapASCII, "[away]~", "[away]~"},
		{CaseMapRFC1459, "Nick[1]\\~", "nick{1}|^"},
		{CaseMapStrictRFC1459, "Nick[1]\\~", "nick{1}|~"},
		{CaseMapRFC1459, "#Peach", "#peach"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.mapping.Fold(tc.in), "%s fold %q", tc.mapping, tc.in)
	}
}

func TestParseCaseMapping(t *testing.T) {
	assert.Equal(t, CaseMapASCII, ParseCaseMapping("ascii"))
	assert.Equal(t, CaseMapStrictRFC1459, ParseCaseMapping("strict-rfc1459"))
	assert.Equal(t, CaseMapRFC1459, ParseCaseMapping("rfc1459"))
	assert.Equal(t, CaseMapRFC1459, ParseCaseMapping("utf8-weirdness"))
}

func TestEqualAndIsChannel(t *testing.T) {
	assert.True(t, CaseMapRFC1459.Equal("Alice[1]", "alice{1}"))
	assert.False(t, CaseMapASCII.Equal("Alice[1]", "alice{1}"))

	assert.True(t, IsChannel("#peach"))
	assert.True(t, IsChannel("&local"))
	assert.False(t, IsChannel("alice"))
	assert.False(t, IsChannel(""))
}
