package extract

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/harunnryd/kuroko/internal/tool"
)

// fromDirectives scans assistant text for inline call syntax of the form
// name(key='value', key2='value2'), optionally prefixed with "TOOL_CALL:".
// Only names registered as tools are treated as directives; anything else
// in the text that happens to look like a call is prose.
func (e *Extractor) fromDirectives(text string) []tool.Request {
	var reqs []tool.Request

	for i := 0; i < len(text); i++ {
		if !isIdentStart(rune(text[i])) {
			continue
		}
		if i > 0 && isIdentPart(rune(text[i-1])) {
			continue
		}

		j := i
		for j < len(text) && isIdentPart(rune(text[j])) {
			j++
		}
		if j >= len(text) || text[j] != '(' {
			i = j
			continue
		}

		name := tool.NormalizeToolName(text[i:j])
		if !e.registry.Has(name) {
			i = j
			continue
		}

		body, end, ok := balancedBody(text, j)
		if !ok {
			i = j
			continue
		}

		args, ok := parseDirectiveArgs(body)
		if !ok {
			i = end
			continue
		}

		raw, err := json.Marshal(args)
		if err != nil {
			i = end
			continue
		}

		reqs = append(reqs, tool.Request{Name: name, Arguments: raw})
		i = end
	}

	return reqs
}

// balancedBody returns the argument text between the parenthesis at
// open and its match, honoring quotes so parens inside values do not
// terminate the scan.
func balancedBody(text string, open int) (body string, end int, ok bool) {
	depth := 0
	var quote byte

	for k := open; k < len(text); k++ {
		c := text[k]

		if quote != 0 {
			if c == '\\' {
				k++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[open+1 : k], k + 1, true
			}
		}
	}
	return "", 0, false
}

// parseDirectiveArgs tokenizes "key='value', key2='value'" into a map.
// Commas split arguments only at depth zero outside quotes; a naive
// split breaks on values containing commas or nested parens.
func parseDirectiveArgs(body string) (map[string]string, bool) {
	args := map[string]string{}
	if strings.TrimSpace(body) == "" {
		return args, true
	}

	for _, token := range splitArgs(body) {
		key, value, ok := parseKeyValue(token)
		if !ok {
			return nil, false
		}
		args[key] = value
	}
	return args, true
}

func splitArgs(body string) []string {
	var tokens []string
	depth := 0
	var quote byte
	start := 0

	for k := 0; k < len(body); k++ {
		c := body[k]

		if quote != 0 {
			if c == '\\' {
				k++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				tokens = append(tokens, body[start:k])
				start = k + 1
			}
		}
	}
	tokens = append(tokens, body[start:])
	return tokens
}

func parseKeyValue(token string) (key, value string, ok bool) {
	eq := strings.IndexByte(token, '=')
	if eq < 0 {
		return "", "", false
	}

	key = strings.TrimSpace(token[:eq])
	if key == "" || !isIdentifier(key) {
		return "", "", false
	}

	raw := strings.TrimSpace(token[eq+1:])
	if len(raw) < 2 {
		return "", "", false
	}
	quote := raw[0]
	if (quote != '\'' && quote != '"') || raw[len(raw)-1] != quote {
		return "", "", false
	}

	return key, unescapeValue(raw[1 : len(raw)-1]), true
}

// unescapeValue restores \n, \t, \" and \' to their literal characters.
func unescapeValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for k := 0; k < len(s); k++ {
		if s[k] != '\\' || k+1 >= len(s) {
			b.WriteByte(s[k])
			continue
		}
		switch s[k+1] {
		case 'n':
			b.WriteByte('\n')
			k++
		case 't':
			b.WriteByte('\t')
			k++
		case '"':
			b.WriteByte('"')
			k++
		case '\'':
			b.WriteByte('\'')
			k++
		case '\\':
			b.WriteByte('\\')
			k++
		default:
			b.WriteByte(s[k])
		}
	}
	return b.String()
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if !isIdentPart(r) {
			return false
		}
	}
	return s != ""
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
