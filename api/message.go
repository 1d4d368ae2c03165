package api

import (
	"errors"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// errorMessage extracts the human readable reason from an error body: the
// "detail" string, or the messages of a validation detail list, else the
// "error" string. It returns "" when the body explains nothing.
func errorMessage(body []byte) string {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	if detail, err := jsonpath.Get("$.detail", v); err == nil {
		switch d := detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case []any:
			if msgs, err := jsonpath.Get("$.detail[*].msg", v); err == nil {
				if s := join(msgs); s != "" {
					return s
				}
			}
		}
	}
	if e, err := jsonpath.Get("$.error", v); err == nil {
		if s, ok := e.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// messageError is errorMessage as an error, nil when there is no message.
func messageError(body []byte) error {
	if m := errorMessage(body); m != "" {
		return errors.New(m)
	}
	return nil
}

func join(v any) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(list))
	for _, m := range list {
		if s, ok := m.(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}
