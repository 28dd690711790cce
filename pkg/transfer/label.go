package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Label is the metadata embedded in a data channel's label. The receiver
// recovers file name, size and sender from it without any separate control
// message.
type Label struct {
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	Sender   string `json:"sender"`
}

// Encode serializes the label for use as a data channel label.
func (l Label) Encode() (string, error) {
	if l.FileSize < 0 {
		return "", errors.New("fileSize must not be negative")
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("failed to encode channel label: %w", err)
	}
	return string(raw), nil
}

// ParseLabel decodes a data channel label back into transfer metadata.
func ParseLabel(s string) (Label, error) {
	var l Label
	if err := json.Unmarshal([]byte(s), &l); err != nil {
		return Label{}, fmt.Errorf("failed to parse channel label: %w", err)
	}
	if l.FileSize < 0 {
		return Label{}, errors.New("channel label has negative fileSize")
	}
	if l.FileName == "" {
		return Label{}, errors.New("channel label has no fileName")
	}
	return l, nil
}
