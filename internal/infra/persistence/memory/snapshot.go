package memory

import (
	"encoding/json"
	"fmt"
)

// Snapshot bucket names used by the SQL-backed stores.
const (
	BucketConstituents = "constituents"
	BucketLipids       = "lipids"
)

// Buckets lists every snapshot bucket in write order.
var Buckets = []string{BucketConstituents, BucketLipids}

// EncodeBucket returns the JSON payload for the named bucket.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	switch bucket {
	case BucketConstituents:
		return json.Marshal(s.Constituents)
	case BucketLipids:
		return json.Marshal(s.Lipids)
	default:
		return nil, fmt.Errorf("unknown snapshot bucket %s", bucket)
	}
}

// DecodeBucket fills the named bucket from payload. Unknown buckets are
// ignored so older databases with retired buckets still load.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketConstituents:
		target = &s.Constituents
	case BucketLipids:
		target = &s.Lipids
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
