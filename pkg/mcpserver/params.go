package mcpserver

import "encoding/json"

// decodeParams unmarshals raw into dst, treating an empty/absent params
// value as "leave dst at its zero value" rather than an error, since many
// MCP requests (tools/list, ping) carry no params at all.
func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
