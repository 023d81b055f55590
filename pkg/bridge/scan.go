package bridge

import (
	"encoding/json"
)

// scanEnvelope pre-scans a request body before the router runs: it
// extracts the "id" token verbatim (so its lexical form — quoted string,
// bare number, or null — survives into a synthesized error without a full
// parse) and the "method"/tool-name, so the dispatcher can record an
// activity entry and build a timeout/interrupt envelope on its own.
// json.RawMessage carries the id bytes untouched, which preserves the
// lexical form exactly as a hand-rolled string scan would.
func scanEnvelope(body []byte) (id json.RawMessage, method string, toolName string, argsSummary string) {
	var probe struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, "", "", ""
	}
	// A non-pointer RawMessage receives the literal bytes "null" for a null
	// id and stays nil only when the field is absent.
	id = probe.ID
	method = probe.Method
	if method == "tools/call" && len(probe.Params) > 0 {
		var nameProbe struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if json.Unmarshal(probe.Params, &nameProbe) == nil {
			toolName = nameProbe.Name
			argsSummary = summarizeArgs(nameProbe.Arguments)
		}
	}
	return id, method, toolName, argsSummary
}

// summarizeArgs truncates the raw arguments object for the activity log.
const argsSummaryCap = 120

func summarizeArgs(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	s := string(raw)
	if len(s) > argsSummaryCap {
		return s[:argsSummaryCap] + "..."
	}
	return s
}
