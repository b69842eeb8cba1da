package dify

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// ParseAnswer decodes a model answer into T. Apps prompted to return JSON
// frequently answer with near-JSON (single quotes, trailing commas,
// unquoted keys, surrounding prose); when strict decoding fails the answer
// is repaired and decoded once more.
//
// Example:
//
//	type Verdict struct {
//	    Label string  `json:"label"`
//	    Score float64 `json:"score"`
//	}
//
//	verdict, err := dify.ParseAnswer[Verdict](res.Answer)
func ParseAnswer[T any](answer string) (T, error) {
	var result T

	err := json.Unmarshal([]byte(answer), &result)
	if err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(answer)
	if repairErr != nil {
		return result, fmt.Errorf("decoding answer as %T: %w (repair failed: %v)", result, err, repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, fmt.Errorf("decoding repaired answer as %T: %w", result, err)
	}
	return result, nil
}
