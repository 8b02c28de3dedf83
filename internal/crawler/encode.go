package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalRecords renders records as a JSON array indented by four spaces.
// Non-ASCII text and HTML characters are written verbatim.
func MarshalRecords(jobs []JobRecord) ([]byte, error) {
	if jobs == nil {
		jobs = []JobRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(jobs); err != nil {
		return nil, fmt.Errorf("encode job records: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
