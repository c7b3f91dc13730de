package domain

import (
	"encoding/json"
	"errors"
)

var ErrInvalidContributions = errors.New("contributions must be a flat map of username to integer")

type ProgressSource string

const (
	SourceTaskCompleted  ProgressSource = "task_completed"
	SourceFocusCompleted ProgressSource = "focus_completed"
)

// ProgressState is the shared aggregate broadcast to every client.
type ProgressState struct {
	Progress      int            `json:"progress"`
	Contributions map[string]int `json:"contributions"`
	StageIndex    int            `json:"stage_index"`
	Threshold     int            `json:"threshold"`
}

// ProgressRecord is the persisted form of the aggregate.
type ProgressRecord struct {
	Progress          int    `json:"progress"`
	ContributionsJSON string `json:"contributions"`
	StageIndex        int    `json:"stage_index"`
}

// ParseContributions accepts only a flat object of string keys to integral numbers.
func ParseContributions(raw string) (map[string]int, error) {
	if raw == "" {
		return map[string]int{}, nil
	}
	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, errors.Join(ErrInvalidContributions, err)
	}
	out := make(map[string]int, len(generic))
	for name, v := range generic {
		f, ok := v.(float64)
		if !ok || f != float64(int(f)) {
			return nil, ErrInvalidContributions
		}
		out[name] = int(f)
	}
	return out, nil
}

func EncodeContributions(c map[string]int) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
