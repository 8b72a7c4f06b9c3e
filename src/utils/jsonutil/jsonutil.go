// Package jsonutil converts loosely typed JSON-RPC payloads into
// concrete types.
package jsonutil

import "encoding/json"

// Remarshal converts v into T by round-tripping through JSON. Payloads
// arrive as map[string]interface{} after envelope decoding; this is the
// bridge to typed structs without hand-written field copying.
func Remarshal[T any](v interface{}) (T, error) {
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}
