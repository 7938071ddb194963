// Package extractjson marshals decoded value.Value trees into the opaque
// game_data JSON blob. Grounded on rpcpool-yellowstone-faithful's
// request-response.go, which marshals/unmarshals through
// jsoniter.ConfigCompatibleWithStandardLibrary rather than encoding/json.
package extractjson

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/ernie/starforge-extract/internal/value"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal renders v as the opaque game_data JSON blob.
func Marshal(v value.Value) ([]byte, error) {
	return api.Marshal(toJSON(v))
}

// toJSON collapses a value.Value into plain Go data jsoniter can encode
// without custom MarshalJSON methods on the tagged union itself.
func toJSON(v value.Value) any {
	switch v.Kind {
	case value.KindNull:
		return nil
	case value.KindScalar:
		return v.Scalar
	case value.KindString:
		return v.Str
	case value.KindGuid:
		return v.Guid.String()
	case value.KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			out[i] = toJSON(e)
		}
		return out
	case value.KindObject:
		if v.Skipped {
			return map[string]any{"__type": v.TypeName, "__skipped": true}
		}
		out := make(map[string]any, len(v.Fields)+1)
		out["__type"] = v.TypeName
		for k, f := range v.Fields {
			out[k] = toJSON(f)
		}
		return out
	case value.KindPtrSymbolic:
		return map[string]any{"__symbolic": v.Symbolic}
	case value.KindRef:
		return map[string]any{"__ref": v.RefGuid.String()}
	default:
		return nil
	}
}

// Unmarshal decodes a game_data blob back into a generic map, for tests and
// tooling that need to inspect an already-marshalled row without
// reconstructing a value.Value tree.
func Unmarshal(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := api.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
