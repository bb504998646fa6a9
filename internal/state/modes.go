package state

import (
	"sort"
	"strings"
)

// Role is a bitset of channel membership prefixes. Priority order is
// owner > admin > op > halfop > voice; the display badge is the highest
// set bit.
type Role uint8

const (
	RoleVoice Role = 1 << iota
	RoleHalfop
	RoleOp
	RoleAdmin
	RoleOwner
)

// rolePriority lists roles from highest to lowest together with their
// conventional mode letters and prefix symbols.
var rolePriority = []struct {
	role   Role
	mode   byte
	symbol byte
}{
	{RoleOwner, 'q', '~'},
	{RoleAdmin, 'a', '&'},
	{RoleOp, 'o', '@'},
	{RoleHalfop, 'h', '%'},
	{RoleVoice, 'v', '+'},
}

// Badge returns the prefix symbol of the highest-priority role, or ""
// when no role is held.
func (r Role) Badge() string {
	for _, p := range rolePriority {
		if r&p.role != 0 {
			return string(p.symbol)
		}
	}
	return ""
}

// prefixTable maps mode letters to roles and prefix symbols to roles.
// Servers may override both via the ISUPPORT PREFIX token.
type prefixTable struct {
	byMode   map[byte]Role
	bySymbol map[byte]Role
}

func defaultPrefixTable() prefixTable {
	t := prefixTable{byMode: map[byte]Role{}, bySymbol: map[byte]Role{}}
	for _, p := range rolePriority {
		t.byMode[p.mode] = p.role
		t.bySymbol[p.symbol] = p.role
	}
	return t
}

// parsePrefixToken reads an ISUPPORT PREFIX value of the form
// "(qaohv)~&@%+" and returns the resulting table. Unknown letters map
// onto the default priority order by position, so nonstandard prefixes
// still round down to a sensible badge.
func parsePrefixToken(token string) (prefixTable, bool) {
	if !strings.HasPrefix(token, "(") {
		return prefixTable{}, false
	}
	close := strings.IndexByte(token, ')')
	if close < 0 || len(token) != 2*close {
		return prefixTable{}, false
	}
	modes, symbols := token[1:close], token[close+1:]
	t := prefixTable{byMode: map[byte]Role{}, bySymbol: map[byte]Role{}}
	for i := 0; i < len(modes); i++ {
		role := RoleVoice
		if known, ok := defaultPrefixTable().byMode[modes[i]]; ok {
			role = known
		}
		t.byMode[modes[i]] = role
		t.bySymbol[symbols[i]] = role
	}
	return t, true
}

// chanModeClasses groups channel modes by their argument behavior per
// RPL_ISUPPORT CHANMODES: type A always takes an argument (lists), type
// B always takes one (keys), type C takes one only when set, type D
// never does. Membership prefix modes are handled separately.
type chanModeClasses struct {
	a, b, c, d string
}

func defaultChanModeClasses() chanModeClasses {
	return chanModeClasses{a: "beI", b: "k", c: "l", d: "psitnm"}
}

func parseChanModesToken(token string) (chanModeClasses, bool) {
	parts := strings.SplitN(token, ",", 4)
	if len(parts) != 4 {
		return chanModeClasses{}, false
	}
	return chanModeClasses{a: parts[0], b: parts[1], c: parts[2], d: parts[3]}, true
}

// isList reports whether mode is a type A list mode (bans, invites).
// List entries are not part of the channel's flag set.
func (c chanModeClasses) isList(mode byte) bool {
	return strings.IndexByte(c.a, mode) >= 0
}

func (c chanModeClasses) takesArg(mode byte, add bool) bool {
	switch {
	case strings.IndexByte(c.a, mode) >= 0:
		return true
	case strings.IndexByte(c.b, mode) >= 0:
		return true
	case strings.IndexByte(c.c, mode) >= 0:
		return add
	default:
		return false
	}
}

// channelModes tracks the flag set of a channel, with optional argument
// per flag (e.g. key, limit).
type channelModes map[byte]string

// apply toggles one channel-level flag.
func (cm channelModes) apply(add bool, mode byte, arg string) {
	if add {
		cm[mode] = arg
	} else {
		delete(cm, mode)
	}
}

// String renders the flag set as "+flags arg1 arg2" with flags sorted
// for stable output.
func (cm channelModes) String() string {
	if len(cm) == 0 {
		return ""
	}
	flags := make([]byte, 0, len(cm))
	for f := range cm {
		flags = append(flags, f)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })

	var b strings.Builder
	b.WriteByte('+')
	b.Write(flags)
	for _, f := range flags {
		if cm[f] != "" {
			b.WriteByte(' ')
			b.WriteString(cm[f])
		}
	}
	return b.String()
}

// memberModeChange is one (add, mode, nick) triple produced by the mode
// algebra for prefix-flag changes.
type memberModeChange struct {
	add  bool
	role Role
	nick string
}

// parseModeChanges walks a MODE parameter list: a run of +/- flags pairs
// positionally with trailing arguments for flags that take one. It
// returns the member role changes and applies channel-level flags to cm.
func parseModeChanges(prefixes prefixTable, classes chanModeClasses, cm channelModes, params []string) (changes []memberModeChange, channelLevel bool) {
	if len(params) == 0 {
		return nil, false
	}
	modeSeq := params[0]
	args := params[1:]
	argIdx := 0
	nextArg := func() string {
		if argIdx < len(args) {
			a := args[argIdx]
			argIdx++
			return a
		}
		return ""
	}

	add := true
	for i := 0; i < len(modeSeq); i++ {
		switch f := modeSeq[i]; f {
		case '+':
			add = true
		case '-':
			add = false
		default:
			if role, ok := prefixes.byMode[f]; ok {
				if nick := nextArg(); nick != "" {
					changes = append(changes, memberModeChange{add: add, role: role, nick: nick})
				}
				continue
			}
			var arg string
			if classes.takesArg(f, add) {
				arg = nextArg()
			}
			// List modes (bans etc.) consume their argument but do not
			// join the channel's flag set.
			if !classes.isList(f) {
				cm.apply(add, f, arg)
			}
			channelLevel = true
		}
	}
	return changes, channelLevel
}
