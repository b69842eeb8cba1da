package respan

import (
	"encoding/json"
	"fmt"
)

// SafeJSONString renders v for an exported record's input or output field.
// Strings pass through unmodified; everything else is JSON-encoded, falling
// back to fmt.Sprint for values the encoder rejects (cycles, channels, and
// other unserializable types), so the result is always usable.
func SafeJSONString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(encoded)
}
