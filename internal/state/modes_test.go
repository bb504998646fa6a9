package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleBadgePriority(t *testing.T) {
	assert.Equal(t, "", Role(0).Badge())
	assert.Equal(t, "+", RoleVoice.Badge())
	assert.Equal(t, "@", (RoleOp | RoleVoice).Badge())
	assert.Equal(t, "~", (RoleOwner | RoleOp | RoleVoice).Badge())
}

func TestParsePrefixToken(t *testing.T) {
	pt, ok := parsePrefixToken("(qaohv)~&@%+")
	require.True(t, ok)
	assert.Equal(t, RoleOwner, pt.byMode['q'])
	assert.Equal(t, RoleVoice, pt.bySymbol['+'])

	pt, ok = parsePrefixToken("(ov)@+")
	require.True(t, ok)
	assert.Equal(t, RoleOp, pt.byMode['o'])
	_, hasHalfop := pt.byMode['h']
	assert.False(t, hasHalfop)

	_, ok = parsePrefixToken("ov@+")
	assert.False(t, ok)
	_, ok = parsePrefixToken("(ov)@")
	assert.False(t, ok)
}

func TestParseChanModesToken(t *testing.T) {
	cc, ok := parseChanModesToken("eIbq,k,flj,CFLMPQScgimnprstuz")
	require.True(t, ok)
	assert.True(t, cc.isList('b'))
	assert.True(t, cc.takesArg('k', true))
	assert.True(t, cc.takesArg('k', false))
	assert.True(t, cc.takesArg('l', true))
	assert.False(t, cc.takesArg('l', false))
	assert.False(t, cc.takesArg('n', true))

	_, ok = parseChanModesToken("a,b,c")
	assert.False(t, ok)
}

func TestParseModeChangesPositionalArgs(t *testing.T) {
	cm := make(channelModes)
	changes, channelLevel := parseModeChanges(
		defaultPrefixTable(), defaultChanModeClasses(), cm,
		[]string{"+o-v+k", "alice", "bob", "sekrit"},
	)

	require.Len(t, changes, 2)
	assert.Equal(t, memberModeChange{add: true, role: RoleOp, nick: "alice"}, changes[0])
	assert.Equal(t, memberModeChange{add: false, role: RoleVoice, nick: "bob"}, changes[1])
	assert.True(t, channelLevel)
	assert.Equal(t, "+k sekrit", cm.String())
}

func TestParseModeChangesListModeSkipsFlagSet(t *testing.T) {
	cm := make(channelModes)
	changes, channelLevel := parseModeChanges(
		defaultPrefixTable(), defaultChanModeClasses(), cm,
		[]string{"+b-b", "bad!*@*", "good!*@*"},
	)

	assert.Empty(t, changes)
	assert.True(t, channelLevel)
	assert.Empty(t, cm)
}

func TestChannelModesString(t *testing.T) {
	cm := channelModes{'n': "", 't': "", 'k': "sekrit", 'l': "40"}
	assert.Equal(t, "+klnt sekrit 40", cm.String())
	assert.Equal(t, "", channelModes{}.String())
}
