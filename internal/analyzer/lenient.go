package analyzer

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var errNoObject = errors.New("response holds no JSON object")

// object is a decoded JSON object whose fields are read leniently: a
// missing or wrong-typed field reads as its zero value.
type object map[string]any

// parseObject decodes the first JSON object in raw. Models sometimes wrap
// the object in a markdown fence or a sentence of prose.
func parseObject(raw string) (object, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, errNoObject
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (o object) obj(key string) object {
	m, _ := o[key].(map[string]any)
	return m
}

// str reads a scalar as text. Numbers and booleans are formatted; objects
// and arrays read as "".
func (o object) str(key string) string {
	return scalar(o[key])
}

// list reads an array of scalars. A lone scalar becomes a one-element list.
func (o object) list(key string) []string {
	switch v := o[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := scalar(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case nil:
		return nil
	default:
		if s := scalar(v); s != "" {
			return []string{s}
		}
		return nil
	}
}

// dict reads an object of scalars, dropping entries that are not scalars.
func (o object) dict(key string) map[string]string {
	m, ok := o[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s := scalar(v); s != "" {
			out[k] = s
		}
	}
	return out
}

// year reads a four-digit year from a number or a numeric string.
func (o object) year(key string) *int {
	var y int
	switch v := o[key].(type) {
	case float64:
		y = int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		y = n
	default:
		return nil
	}
	if y < 1000 || y > 9999 {
		return nil
	}
	return &y
}

func scalar(v any) string {
	switch v := v.(type) {
	case string:
		s := strings.TrimSpace(v)
		if strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return ""
		}
		return s
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
