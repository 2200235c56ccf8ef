package carimport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ipfs/go-cid"
	cbornode "github.com/ipfs/go-ipld-cbor"
)

// DecodeRecordJSON decodes a DAG-CBOR record block into the same JSON
// shape an ingestor would receive over the live firehose. Hand-written
// rather than delegated to indigo's atproto/data conventions, whose
// link/byte representation isn't guaranteed to match the bare-CID-string,
// base64-bytes form ingestors expect.
func DecodeRecordJSON(raw []byte) (json.RawMessage, error) {
	var native interface{}
	if err := cbornode.DecodeInto(raw, &native); err != nil {
		return nil, fmt.Errorf("decode record cbor: %w", err)
	}

	projected, err := ipldToJSON(native)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(projected)
	if err != nil {
		return nil, fmt.Errorf("marshal projected record: %w", err)
	}
	return out, nil
}

// ipldToJSON projects a decoded DAG-CBOR value into a plain JSON-ready
// Go value: null/bool/string pass through; integers in the int64 range
// become numbers, oversize integers become strings; finite floats
// become numbers; bytes become standard-base64 strings; links become
// their canonical CID string; lists and maps recurse.
func ipldToJSON(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return val, nil
	case string:
		return val, nil
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return fmt.Sprintf("%d", val), nil
		}
		return int64(val), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("ipld_to_json: non-finite float")
		}
		return val, nil
	case []byte:
		return base64.StdEncoding.EncodeToString(val), nil
	case cid.Cid:
		return val.String(), nil
	case *cid.Cid:
		return val.String(), nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			projected, err := ipldToJSON(item)
			if err != nil {
				return nil, err
			}
			out[i] = projected
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			projected, err := ipldToJSON(item)
			if err != nil {
				return nil, err
			}
			out[k] = projected
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("ipld_to_json: non-string map key %v", k)
			}
			projected, err := ipldToJSON(item)
			if err != nil {
				return nil, err
			}
			out[key] = projected
		}
		return out, nil
	default:
		return nil, fmt.Errorf("ipld_to_json: unsupported type %T", v)
	}
}
