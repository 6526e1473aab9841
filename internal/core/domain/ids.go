package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The service emits ids as JSON numbers in some payloads and strings in
// others; both decode to the same string form.
func decodeID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", fmt.Errorf("id must be a string or number: %w", err)
	}
	return n.String(), nil
}

func (id *UserID) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return err
	}
	*id = UserID(s)
	return nil
}

func (id *ParticipantID) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return err
	}
	*id = ParticipantID(s)
	return nil
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return err
	}
	*id = RequestID(s)
	return nil
}

func (c *RoomCode) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return err
	}
	*c = RoomCode(s)
	return nil
}
