package queue

import (
	"encoding/json"
	"strings"
)

// Task is one queued analysis request. KnownSkills travels as a JSON
// array in the stream field so skills containing commas survive.
type Task struct {
	AnalysisID  int64
	SourceRole  string
	TargetRole  string
	KnownSkills []string
	TraceID     *string
	Attempt     int
}

func encodeSkills(skills []string) string {
	if len(skills) == 0 {
		return "[]"
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeSkills(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil
	}
	var skills []string
	if err := json.Unmarshal([]byte(raw), &skills); err != nil {
		// Legacy comma-joined payloads
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				skills = append(skills, s)
			}
		}
	}
	return skills
}
