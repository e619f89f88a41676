package log

import (
	"fmt"
	"strings"
)

// token is one key=value pair of a config line. Values wrapped in square
// brackets may contain commas; inside records the opening bracket.
type token struct {
	key, value string
	inside     rune
}

// tokenize splits a config line such as `file=/tmp/a.log,level=info` into
// its key=value pairs.
func tokenize(line string) ([]token, error) {
	var tokens []token
	for rest := line; rest != ""; {
		eq := strings.IndexAny(rest, "=,")
		if eq == -1 || rest[eq] == ',' {
			end := eq
			if end == -1 {
				end = len(rest)
			}
			return nil, fmt.Errorf("key `%s` with no value", rest[:end])
		}

		t := token{key: rest[:eq]}
		rest = rest[eq+1:]
		if rest == "" {
			return nil, fmt.Errorf("key `%s=` with no value", t.key)
		}

		if strings.HasPrefix(rest, "[") {
			end := strings.IndexRune(rest, ']')
			if end == -1 {
				return nil, fmt.Errorf("key `%s` has an unterminated `[` value", t.key)
			}
			t.value, t.inside = rest[1:end], '['
			rest = rest[end+1:]
		} else {
			end := strings.IndexRune(rest, ',')
			if end == -1 {
				end = len(rest)
			}
			t.value = rest[:end]
			rest = rest[end:]
		}
		tokens = append(tokens, t)

		if rest != "" {
			if rest[0] != ',' {
				return nil, fmt.Errorf("expected `,` after the value of key `%s`", t.key)
			}
			rest = rest[1:]
		}
	}
	return tokens, nil
}
