package irc

import "strings"

// ParseLine parses one raw IRC line (without or with its trailing CR-LF)
// into a Message. It splits optional IRCv3 tags, the optional source
// prefix, the command, and the parameters per the protocol's space/colon
// grammar; a trailing parameter introduced by ':' may contain spaces.
//
// A missing command token or an unterminated tag escape yields a
// *ParseError with kind MalformedLine.
func ParseLine(raw []byte) (*Message, error) {
	line := strings.TrimRight(string(raw), "\r\n")
	if line == "" {
		return nil, &ParseError{Kind: MalformedLine, Reason: "empty line"}
	}

	m := &Message{}
	rest := line

	if rest[0] == '@' {
		cut := strings.IndexByte(rest, ' ')
		if cut < 0 {
			return nil, &ParseError{Kind: MalformedLine, Reason: "tags without a command"}
		}
		if err := parseTags(rest[1:cut], &m.Tags); err != nil {
			return nil, err
		}
		rest = skipSpaces(rest[cut+1:])
	}

	if rest != "" && rest[0] == ':' {
		cut := strings.IndexByte(rest, ' ')
		if cut < 0 {
			return nil, &ParseError{Kind: MalformedLine, Reason: "prefix without a command"}
		}
		m.Source = parsePrefix(rest[1:cut])
		rest = skipSpaces(rest[cut+1:])
	}

	if rest == "" {
		return nil, &ParseError{Kind: MalformedLine, Reason: "missing command token"}
	}

	if cut := strings.IndexByte(rest, ' '); cut >= 0 {
		m.Command = strings.ToUpper(rest[:cut])
		rest = skipSpaces(rest[cut+1:])
	} else {
		m.Command = strings.ToUpper(rest)
		rest = ""
	}

	for rest != "" {
		if rest[0] == ':' {
			m.Params = append(m.Params, rest[1:])
			break
		}
		cut := strings.IndexByte(rest, ' ')
		if cut < 0 {
			m.Params = append(m.Params, rest)
			break
		}
		m.Params = append(m.Params, rest[:cut])
		rest = skipSpaces(rest[cut+1:])
	}

	return m, nil
}

func skipSpaces(s string) string {
	for len(s) > 0 && s[0] == ' ' {
		s = s[1:]
	}
	return s
}

// parseTags splits the tag section on ';' into key[=value] pairs and
// unescapes the values. Empty keys are skipped.
func parseTags(section string, tags *Tags) error {
	for _, pair := range strings.Split(section, ";") {
		if pair == "" {
			continue
		}
		key, val, _ := strings.Cut(pair, "=")
		if key == "" {
			continue
		}
		unescaped, err := unescapeTagValue(val)
		if err != nil {
			return err
		}
		tags.Set(key, unescaped)
	}
	return nil
}

// unescapeTagValue decodes the IRCv3 tag value escapes. A lone backslash
// at the end of the value is an unterminated escape and rejects the line.
func unescapeTagValue(v string) (string, error) {
	if !strings.ContainsRune(v, '\\') {
		return v, nil
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(v) {
			return "", &ParseError{Kind: MalformedLine, Reason: "unterminated tag escape"}
		}
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case '\\':
			b.WriteByte('\\')
		default:
			// Unknown escapes drop the backslash and keep the character.
			b.WriteByte(v[i])
		}
	}
	return b.String(), nil
}

// parsePrefix splits a message prefix into nick, user, and host. A
// prefix with no '!' or '@' that contains a '.' is a server name.
func parsePrefix(s string) Prefix {
	var p Prefix
	nick, rest, hasUser := strings.Cut(s, "!")
	if hasUser {
		p.Nick = nick
		user, host, hasHost := strings.Cut(rest, "@")
		p.User = user
		if hasHost {
			p.Host = host
		}
		return p
	}
	nick, host, hasHost := strings.Cut(s, "@")
	if hasHost {
		p.Nick = nick
		p.Host = host
		return p
	}
	if strings.ContainsRune(s, '.') {
		p.Host = s
		return p
	}
	p.Nick = s
	return p
}
