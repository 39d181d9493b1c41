package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrEmptyOutput is returned when the model reply holds no JSON object.
var ErrEmptyOutput = eris.New("flow: empty output")

// cleanJSON strips markdown fences and surrounding prose from a model reply,
// leaving the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// decodeOutput parses the reply into dst. Blank and null replies, and replies
// that are not a JSON object, are errors.
func decodeOutput(text string, dst any) error {
	text = cleanJSON(text)
	if text == "" || text == "null" {
		return ErrEmptyOutput
	}
	if !strings.HasPrefix(text, "{") {
		return eris.Errorf("flow: output is not a JSON object: %.80q", text)
	}
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return eris.Wrap(err, "flow: decode output")
	}
	return nil
}

// problems collects every schema violation of one reply.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err(flow Name) error {
	if len(p) == 0 {
		return nil
	}
	return eris.Errorf("flow: invalid %s output: %s", flow, strings.Join(p, "; "))
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// mentions reports whether any collected problem names s.
func (p problems) mentions(s string) bool {
	for _, msg := range p {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
