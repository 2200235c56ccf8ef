package carimport

import (
	"encoding/base64"
	"math"
	"testing"

	"github.com/ipfs/go-cid"
	cbornode "github.com/ipfs/go-ipld-cbor"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIpldToJSONScalarsPassThrough(t *testing.T) {
	v, err := ipldToJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ipldToJSON(true)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = ipldToJSON("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestIpldToJSONIntegers(t *testing.T) {
	v, err := ipldToJSON(int64(-42))
	require.NoError(t, err)
	assert.Equal(t, int64(-42), v)

	v, err = ipldToJSON(uint64(math.MaxInt64) + 1)
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775808", v, "integers past int64 range become decimal strings")
}

func TestIpldToJSONFloats(t *testing.T) {
	v, err := ipldToJSON(float64(3.5))
	require.NoError(t, err)
	assert.Equal(t, float64(3.5), v)

	_, err = ipldToJSON(math.NaN())
	assert.Error(t, err, "NaN has no JSON representation")

	_, err = ipldToJSON(math.Inf(1))
	assert.Error(t, err, "+Inf has no JSON representation")
}

func TestIpldToJSONBytesBecomeBase64(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0xff}
	v, err := ipldToJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), v)
}

func TestIpldToJSONLinkBecomesCIDString(t *testing.T) {
	mh, err := multihash.Sum([]byte("link target"), multihash.SHA2_256, -1)
	require.NoError(t, err)
	c := cid.NewCidV1(cid.Raw, mh)

	v, err := ipldToJSON(c)
	require.NoError(t, err)
	assert.Equal(t, c.String(), v)
}

func TestIpldToJSONNestedListsAndMaps(t *testing.T) {
	in := map[string]interface{}{
		"tags":  []interface{}{"a", "b"},
		"count": int64(2),
	}
	v, err := ipldToJSON(in)
	require.NoError(t, err)

	out, ok := v.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, out["tags"])
	assert.Equal(t, int64(2), out["count"])
}

func TestIpldToJSONRejectsNonStringMapKeys(t *testing.T) {
	in := map[interface{}]interface{}{
		1: "bad key",
	}
	_, err := ipldToJSON(in)
	assert.Error(t, err)
}

func TestDecodeRecordJSONRoundTrips(t *testing.T) {
	original := map[string]interface{}{
		"trackName": "Hello",
		"duration":  int64(180),
	}
	node, err := cbornode.WrapObject(original, multihash.SHA2_256, -1)
	require.NoError(t, err)

	out, err := DecodeRecordJSON(node.RawData())
	require.NoError(t, err)
	assert.JSONEq(t, `{"trackName":"Hello","duration":180}`, string(out))
}
