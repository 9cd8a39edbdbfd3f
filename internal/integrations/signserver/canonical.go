package signserver

import "encoding/json"

// CanonicalJSON renders a value as deterministic JSON: object keys
// sorted, no insignificant whitespace. Signing and verification must see
// byte-identical payloads, so everything is round-tripped through
// generic values to normalize struct field order.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	// encoding/json marshals map keys in sorted order.
	return json.Marshal(generic)
}
