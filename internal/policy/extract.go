package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CollectionField is the field of a list response that holds the policies.
const CollectionField = "vXPolicies"

// Extraction is the policy sequence found in a payload. Direct is set when
// the payload was a single policy fetched by id.
type Extraction struct {
	Records []Record
	Direct  bool
}

// Extract decodes the policies carried by payload. When an id was requested
// outside listing mode the payload is the policy itself; otherwise it is a
// container holding the policy list under CollectionField.
func Extract(payload []byte, c Criteria, listing bool) (Extraction, error) {
	if c.ID != "" && !listing {
		rec, err := parseRecord(payload)
		if err != nil {
			return Extraction{}, err
		}
		return Extraction{Records: []Record{rec}, Direct: true}, nil
	}

	var container map[string]json.RawMessage
	if err := json.Unmarshal(payload, &container); err != nil {
		return Extraction{}, fmt.Errorf("%w: payload is not a JSON object: %v", ErrMalformedShape, err)
	}
	rawList, ok := container[CollectionField]
	if !ok {
		return Extraction{}, fmt.Errorf("%w: field %q not found", ErrMalformedShape, CollectionField)
	}
	rawList = bytes.TrimSpace(rawList)
	if len(rawList) == 0 || rawList[0] != '[' {
		return Extraction{}, fmt.Errorf("%w: non-list returned for %s", ErrMalformedShape, CollectionField)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(rawList, &items); err != nil {
		return Extraction{}, fmt.Errorf("%w: %s: %v", ErrMalformedShape, CollectionField, err)
	}
	if len(items) == 0 {
		return Extraction{}, ErrNoPoliciesFound
	}

	records := make([]Record, 0, len(items))
	for i, raw := range items {
		rec, err := parseRecord(raw)
		if err != nil {
			return Extraction{}, fmt.Errorf("%s[%d]: %w", CollectionField, i, err)
		}
		records = append(records, rec)
	}
	return Extraction{Records: records}, nil
}
