package verification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// envelope is the loosest shape the permit office endpoints answer with.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Permits json.RawMessage `json:"permits"`
}

// normalizeRecords accepts `{success, data}`, a bare array, `{permits: [...]}`, or a `data` object
// and returns the records as a list. serverMsg carries any message the server attached.
func normalizeRecords(body []byte) (records []map[string]any, serverMsg string, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, "", fmt.Errorf("empty response body")
	}

	if trimmed[0] == '[' {
		records, err = decodeArray(trimmed)
		return records, "", err
	}

	var env envelope
	if err := decode(trimmed, &env); err != nil {
		return nil, "", err
	}
	serverMsg = env.Message
	if serverMsg == "" {
		serverMsg = env.Error
	}

	switch {
	case len(env.Permits) > 0 && !isNull(env.Permits):
		records, err = decodeArray(env.Permits)
	case len(env.Data) > 0 && !isNull(env.Data):
		data := bytes.TrimSpace(env.Data)
		if data[0] == '[' {
			records, err = decodeArray(data)
		} else {
			var rec map[string]any
			err = decode(data, &rec)
			if rec != nil {
				records = []map[string]any{rec}
			}
		}
	case env.Success != nil:
		// {success:false, message:"..."} with no data: nothing matched.
		records = nil
	default:
		return nil, serverMsg, fmt.Errorf("unrecognized response shape")
	}
	return records, serverMsg, err
}

func decodeArray(data []byte) ([]map[string]any, error) {
	var out []map[string]any
	if err := decode(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// stringField stringifies a record field; numbers keep their literal form.
func stringField(rec map[string]any, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
