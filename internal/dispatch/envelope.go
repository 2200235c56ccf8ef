package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the decoded shape of a single firehose message. Event
// kinds beyond "commit" are recognized but not acted on.
type Envelope struct {
	DID      string          `json:"did"`
	TimeUS   int64           `json:"time_us"`
	Kind     string          `json:"kind"`
	Commit   *CommitEvent    `json:"commit,omitempty"`
	Identity json.RawMessage `json:"identity,omitempty"`
	Account  json.RawMessage `json:"account,omitempty"`
}

// CommitEvent is the commit-kind payload: a single repo write.
type CommitEvent struct {
	Rev        string          `json:"rev"`
	Operation  string          `json:"operation"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	CID        *string         `json:"cid"`
	Record     json.RawMessage `json:"record"`
}

var jsonNull = []byte("null")

func isNullOrEmpty(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

// DecodeEnvelope parses a firehose message and enforces commit
// well-formedness: create/update commits carry both a record and a
// cid, delete commits carry neither. A counter-example is rejected
// here rather than left for an ingestor to discover.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}

	if env.Kind == "commit" && env.Commit != nil {
		c := env.Commit
		switch c.Operation {
		case "create", "update":
			if c.CID == nil || *c.CID == "" || isNullOrEmpty(c.Record) {
				return Envelope{}, fmt.Errorf("decode envelope: %s commit missing record or cid", c.Operation)
			}
		case "delete":
			if c.CID != nil || !isNullOrEmpty(c.Record) {
				return Envelope{}, fmt.Errorf("decode envelope: delete commit carries record or cid")
			}
		default:
			return Envelope{}, fmt.Errorf("decode envelope: unknown commit operation %q", c.Operation)
		}
	}

	return env, nil
}
