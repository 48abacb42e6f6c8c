// Package template renders definition expressions and mappings against run state.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

func funcMap() template.FuncMap {
	return template.FuncMap{
		"now": func() string {
			return time.Now().UTC().Format(time.RFC3339)
		},
		"rand": func(max int) int {
			if max <= 0 {
				return 0
			}

			num := make([]byte, 1)

			_, err := rand.Read(num)
			if err != nil {
				return 0
			}

			return int(num[0]) % max
		},
	}
}

// Parse validates a template string without executing it.
func Parse(templateStr string) (*template.Template, error) {
	return template.New("expression").Funcs(funcMap()).Parse(templateStr)
}

// Render executes a template against data and coerces the output back into a
// typed value: JSON objects and arrays are decoded, then numbers, then
// booleans, falling back to the raw string.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		// Output that merely looks like JSON but does not decode falls
		// through to the plain string path.
		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderMapping renders every string leaf of a mapping against data, walking
// nested maps and lists. Non-string leaves pass through untouched.
func RenderMapping(mapping map[string]any, data any) (map[string]any, error) {
	rendered := make(map[string]any, len(mapping))

	for key, value := range mapping {
		out, err := renderValue(value, data)
		if err != nil {
			return nil, fmt.Errorf("failed to render mapping key %q: %w", key, err)
		}

		rendered[key] = out
	}

	return rendered, nil
}

func renderValue(value any, data any) (any, error) {
	switch v := value.(type) {
	case string:
		return Render(v, data)
	case map[string]any:
		return RenderMapping(v, data)
	case []any:
		rendered := make([]any, len(v))

		for i, item := range v {
			out, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}

			rendered[i] = out
		}

		return rendered, nil
	default:
		return value, nil
	}
}
