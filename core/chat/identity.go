package chat

import (
	"net/url"
	"strings"
)

const DefaultGroupPrefix = "chat_"

// RoomIdentity is what a client-supplied room identifier resolves to.
//
// DisplayName is used verbatim to look rooms up in storage and is shown to users.
// GroupKey addresses the room's broadcast group and is never exposed to clients.
type RoomIdentity struct {
	Raw         string
	DisplayName string
	GroupKey    string
}

// ResolveRoom maps a raw, possibly percent-encoded, room identifier to its RoomIdentity.
// The group key is `prefix` (DefaultGroupPrefix when omitted) followed by the slugified display name.
//
// Slugification is lossy: "Room A" and "Room!A" share the group key "chat_room-a",
// so members of both rooms receive each other's messages.
func ResolveRoom(raw string, prefix ...string) RoomIdentity {
	pfx := DefaultGroupPrefix
	if len(prefix) > 0 && prefix[0] != "" {
		pfx = prefix[0]
	}
	display := unquote(raw)
	return RoomIdentity{
		Raw:         raw,
		DisplayName: display,
		GroupKey:    pfx + Slugify(display),
	}
}

// Slugify replaces every character outside [A-Za-z0-9_.-] with "-", then lowers ASCII letters.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case 'a' <= r && r <= 'z', '0' <= r && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		case 'A' <= r && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// unquote percent-decodes s without ever failing: malformed escapes are kept as is
// and invalid UTF-8 in the decoded bytes is replaced with U+FFFD.
func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	if decoded, err := url.PathUnescape(s); err == nil {
		return strings.ToValidUTF8(decoded, "\uFFFD")
	}

	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			buf = append(buf, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
			continue
		}
		buf = append(buf, s[i])
	}
	return strings.ToValidUTF8(string(buf), "\uFFFD")
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
