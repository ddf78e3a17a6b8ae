package formats

import (
	"errors"
	"strings"
)

// ErrBadKeyValues reports text that does not follow the KeyValues grammar
// shared by the entity lump and VMT materials.
var ErrBadKeyValues = errors.New("malformed key/value text")

// kvToken is one token of KeyValues text. Quoted tokens are never treated
// as punctuation, so a quoted "{" is a plain string.
type kvToken struct {
	text   string
	quoted bool
}

func (t kvToken) is(punct string) bool {
	return !t.quoted && t.text == punct
}

// kvTokenizer splits KeyValues text into strings and the punctuation
// tokens { } [ ]. Line comments starting with // are dropped.
type kvTokenizer struct {
	src string
	pos int
}

func newKVTokenizer(src string) *kvTokenizer {
	return &kvTokenizer{src: src}
}

// next returns the next token, or false at end of input.
func (k *kvTokenizer) next() (kvToken, bool) {
	for k.pos < len(k.src) {
		c := k.src[k.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			k.pos++
		case c == '/' && k.pos+1 < len(k.src) && k.src[k.pos+1] == '/':
			if nl := strings.IndexByte(k.src[k.pos:], '\n'); nl >= 0 {
				k.pos += nl + 1
			} else {
				k.pos = len(k.src)
			}
		case c == '{' || c == '}' || c == '[' || c == ']':
			k.pos++
			return kvToken{text: string(c)}, true
		case c == '"':
			end := strings.IndexByte(k.src[k.pos+1:], '"')
			if end < 0 {
				s := k.src[k.pos+1:]
				k.pos = len(k.src)
				return kvToken{text: s, quoted: true}, true
			}
			s := k.src[k.pos+1 : k.pos+1+end]
			k.pos += end + 2
			return kvToken{text: s, quoted: true}, true
		default:
			start := k.pos
			for k.pos < len(k.src) && !strings.ContainsRune(" \t\r\n{}[]\"", rune(k.src[k.pos])) {
				k.pos++
			}
			return kvToken{text: k.src[start:k.pos]}, true
		}
	}
	return kvToken{}, false
}

// skipSection consumes tokens up to the bracket closing open.
func (k *kvTokenizer) skipSection(open string) {
	closer := "}"
	if open == "[" {
		closer = "]"
	}
	for {
		t, ok := k.next()
		if !ok || t.is(closer) {
			return
		}
		if t.is("{") || t.is("[") {
			k.skipSection(t.text)
		}
	}
}
