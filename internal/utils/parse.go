package utils

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// LenientUnmarshal decodes a JSON payload into T, repairing the payload with
// jsonrepair and retrying when strict decoding fails. Provider streams
// occasionally deliver truncated or slightly malformed lines (for example a
// partial final line after a connection drop); repairing lets us salvage
// those instead of discarding the whole event.
//
// Returns an error only when the payload cannot be decoded even after repair.
func LenientUnmarshal[T any](payload string) (*T, error) {
	var result T
	if err := json.Unmarshal([]byte(payload), &result); err == nil {
		return &result, nil
	} else {
		repaired, repairErr := jsonrepair.JSONRepair(payload)
		if repairErr != nil {
			return nil, fmt.Errorf("failed to decode payload and failed to repair JSON: decode error: %w, repair error: %v", err, repairErr)
		}

		if retryErr := json.Unmarshal([]byte(repaired), &result); retryErr != nil {
			return nil, fmt.Errorf("failed to decode repaired JSON: %w (original payload: %s)", retryErr, TruncateStringDefault(payload))
		}
		return &result, nil
	}
}
