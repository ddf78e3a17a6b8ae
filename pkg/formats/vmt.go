package formats

import (
	"fmt"
	"strings"
)

// VMT is a parsed Valve material: a shader name and its parameters.
// Parameter keys are lower-cased; nested blocks (proxies, fallbacks) and
// [platform] conditionals are skipped.
type VMT struct {
	Shader string
	Params map[string]string
}

// Param returns the value of a shader parameter such as "$basetexture".
func (m *VMT) Param(name string) string {
	return m.Params[strings.ToLower(name)]
}

// BaseTexture returns the $basetexture path, if any.
func (m *VMT) BaseTexture() string {
	return m.Param("$basetexture")
}

// Translucent reports whether the material blends ($translucent or $alphatest).
func (m *VMT) Translucent() bool {
	return m.Param("$translucent") == "1" || m.Param("$alphatest") == "1"
}

// Include returns the base material of a "patch" material.
func (m *VMT) Include() string {
	if !strings.EqualFold(m.Shader, "patch") {
		return ""
	}
	return m.Params["include"]
}

// ParseVMT parses VMT material text. Patch materials keep their "include"
// target and flatten "insert"/"replace" blocks into Params.
func ParseVMT(data []byte) (*VMT, error) {
	tok := newKVTokenizer(string(data))

	shader, ok := tok.next()
	if !ok {
		return nil, fmt.Errorf("%w: empty material", ErrBadKeyValues)
	}
	if open, ok := tok.next(); !ok || !open.is("{") {
		return nil, fmt.Errorf("%w: expected '{' after shader %q", ErrBadKeyValues, shader.text)
	}

	m := &VMT{Shader: shader.text, Params: make(map[string]string)}
	patch := strings.EqualFold(m.Shader, "patch")
	if err := parseVMTBlock(tok, m, patch); err != nil {
		return nil, err
	}
	return m, nil
}

func parseVMTBlock(tok *kvTokenizer, m *VMT, patch bool) error {
	for {
		t, ok := tok.next()
		if !ok || t.is("}") {
			return nil
		}
		if t.is("{") || t.is("[") {
			tok.skipSection(t.text)
			continue
		}

		key := strings.ToLower(t.text)
		val, ok := tok.next()
		if !ok {
			return fmt.Errorf("%w: parameter %q has no value", ErrBadKeyValues, key)
		}
		switch {
		case val.is("{"):
			if patch && (key == "insert" || key == "replace") {
				if err := parseVMTBlock(tok, m, false); err != nil {
					return err
				}
				continue
			}
			tok.skipSection("{")
		case val.is("["):
			tok.skipSection("[")
		case val.is("}"):
			return fmt.Errorf("%w: parameter %q has no value", ErrBadKeyValues, key)
		default:
			m.Params[key] = val.text
		}
	}
}
