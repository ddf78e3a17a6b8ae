package formats

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyValue is one "key" "value" pair of an entity.
type KeyValue struct {
	Key   string
	Value string
}

// Entity is a map entity from the entity lump. Pairs keep file order;
// keys such as "output" may repeat.
type Entity struct {
	Pairs []KeyValue
}

// Get returns the first value stored under key (case-insensitive).
func (e *Entity) Get(key string) string {
	for _, kv := range e.Pairs {
		if strings.EqualFold(kv.Key, key) {
			return kv.Value
		}
	}
	return ""
}

// ClassName returns the entity's classname.
func (e *Entity) ClassName() string {
	return e.Get("classname")
}

// Vec3 parses a "x y z" value. ok is false when the key is missing or
// the value does not hold three numbers.
func (e *Entity) Vec3(key string) (v [3]float32, ok bool) {
	fields := strings.Fields(e.Get(key))
	if len(fields) != 3 {
		return v, false
	}
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return v, false
		}
		v[i] = float32(n)
	}
	return v, true
}

// ParseEntities parses the text of the entity lump.
func ParseEntities(data []byte) ([]Entity, error) {
	src := strings.TrimRight(string(data), "\x00")
	tok := newKVTokenizer(src)

	var ents []Entity
	for {
		t, ok := tok.next()
		if !ok {
			return ents, nil
		}
		if !t.is("{") {
			return nil, fmt.Errorf("%w: expected '{' before entity %d, got %q", ErrBadKeyValues, len(ents), t.text)
		}

		var e Entity
		for {
			key, ok := tok.next()
			if !ok {
				return nil, fmt.Errorf("%w: unterminated entity %d", ErrBadKeyValues, len(ents))
			}
			if key.is("}") {
				break
			}
			val, ok := tok.next()
			if !ok || (!val.quoted && (val.is("{") || val.is("}"))) {
				return nil, fmt.Errorf("%w: key %q in entity %d has no value", ErrBadKeyValues, key.text, len(ents))
			}
			e.Pairs = append(e.Pairs, KeyValue{Key: key.text, Value: val.text})
		}
		ents = append(ents, e)
	}
}
