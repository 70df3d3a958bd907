// Package chat connects to the Twitch IRC gateway and turns raw frames into
// domain chat messages and stream events.
package chat

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"deckpair/internal/domain"
)

const emoteCDN = "https://static-cdn.jtvnw.net/emoticons/v2/"

var loginPrefixRe = regexp.MustCompile(`:([^!\s]+)!`)

// ParseMessage extracts a channel message from one IRC frame. The second
// return is false when the frame is not a PRIVMSG.
func ParseMessage(line string) (domain.ChatMessage, bool) {
	idx := strings.Index(line, "PRIVMSG #")
	if idx < 0 {
		return domain.ChatMessage{}, false
	}
	rest := line[idx:]
	sep := strings.Index(rest, " :")
	if sep < 0 {
		return domain.ChatMessage{}, false
	}
	text := rest[sep+2:]

	tags := parseTags(line)

	msg := domain.ChatMessage{
		ID:        tags["id"],
		Username:  senderName(tags, line),
		Text:      text,
		Tokens:    tokenizeEmotes(text, tags["emotes"]),
		Color:     validColor(tags["color"]),
		Timestamp: sentAt(tags),
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return msg, true
}

// ParseEvent extracts a stream event from a USERNOTICE frame. Notices that
// do not map to a known event kind are dropped.
func ParseEvent(line string) (domain.StreamEvent, bool) {
	if !strings.Contains(line, "USERNOTICE") {
		return domain.StreamEvent{}, false
	}

	tags := parseTags(line)

	var kind domain.EventKind
	var details string
	switch tags["msg-id"] {
	case "sub", "resub":
		kind, details = domain.EventSub, "Subscribed!"
	case "subgift":
		kind, details = domain.EventSub, "Gifted a sub!"
	case "raid":
		kind, details = domain.EventRaid, "Raided the channel!"
	default:
		return domain.StreamEvent{}, false
	}

	username := tags["display-name"]
	if username == "" {
		username = tags["login"]
	}
	if username == "" {
		username = "Someone"
	}

	return domain.StreamEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Username:  username,
		Details:   details,
		Timestamp: sentAt(tags),
	}, true
}

// parseTags reads the IRCv3 tag block at the head of a frame. Frames without
// a leading '@' yield an empty map.
func parseTags(line string) map[string]string {
	tags := map[string]string{}
	if !strings.HasPrefix(line, "@") {
		return tags
	}
	end := strings.Index(line, " ")
	if end < 0 {
		end = len(line)
	}
	for _, pair := range strings.Split(line[1:end], ";") {
		key, val, _ := strings.Cut(pair, "=")
		tags[key] = unescapeTag(val)
	}
	return tags
}

func unescapeTag(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		if v[i] != '\\' || i == len(v)-1 {
			b.WriteByte(v[i])
			continue
		}
		i++
		switch v[i] {
		case 's':
			b.WriteByte(' ')
		case ':':
			b.WriteByte(';')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

// senderName prefers the display-name tag, then the login in the frame
// prefix, then a fixed fallback.
func senderName(tags map[string]string, line string) string {
	if name := tags["display-name"]; name != "" {
		return name
	}
	if m := loginPrefixRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return "Unknown"
}

func validColor(c string) string {
	if len(c) != 7 || c[0] != '#' {
		return ""
	}
	for _, r := range c[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return ""
		}
	}
	return c
}

func sentAt(tags map[string]string) int64 {
	if ts, err := strconv.ParseInt(tags["tmi-sent-ts"], 10, 64); err == nil {
		return ts
	}
	return time.Now().UnixMilli()
}

type emoteRange struct {
	id         string
	start, end int // inclusive offsets into the message text
}

// tokenizeEmotes splits a message into text and emote runs using the emotes
// tag ("id:start-end,start-end/id:start-end"). Ranges that fall outside the
// text or overlap a previous range are skipped, so the concatenated token
// contents always reproduce the original text.
func tokenizeEmotes(text, emotesTag string) []domain.MessageToken {
	ranges := parseEmoteRanges(emotesTag)
	if len(ranges) == 0 {
		return []domain.MessageToken{{Kind: domain.TokenText, Content: text}}
	}

	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	var tokens []domain.MessageToken
	cursor := 0
	for _, r := range ranges {
		if r.start < cursor || r.end < r.start || r.end >= len(text) {
			continue
		}
		if r.start > cursor {
			tokens = append(tokens, domain.MessageToken{Kind: domain.TokenText, Content: text[cursor:r.start]})
		}
		tokens = append(tokens, domain.MessageToken{
			Kind:    domain.TokenEmote,
			Content: text[r.start : r.end+1],
			URL:     emoteCDN + r.id + "/default/dark/2.0",
		})
		cursor = r.end + 1
	}
	if cursor < len(text) {
		tokens = append(tokens, domain.MessageToken{Kind: domain.TokenText, Content: text[cursor:]})
	}
	if len(tokens) == 0 {
		return []domain.MessageToken{{Kind: domain.TokenText, Content: text}}
	}
	return tokens
}

func parseEmoteRanges(tag string) []emoteRange {
	if tag == "" {
		return nil
	}
	var ranges []emoteRange
	for _, group := range strings.Split(tag, "/") {
		id, spans, ok := strings.Cut(group, ":")
		if !ok || id == "" {
			continue
		}
		for _, span := range strings.Split(spans, ",") {
			from, to, ok := strings.Cut(span, "-")
			if !ok {
				continue
			}
			start, err1 := strconv.Atoi(from)
			end, err2 := strconv.Atoi(to)
			if err1 != nil || err2 != nil || start < 0 {
				continue
			}
			ranges = append(ranges, emoteRange{id: id, start: start, end: end})
		}
	}
	return ranges
}
