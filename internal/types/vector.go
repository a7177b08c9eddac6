package types

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Embedding vectors are persisted as jsonb float arrays. The catalog import
// pipeline writes them the same way, so both sides stay schema-compatible.

func VectorToJSON(v []float32) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func jsonMarshal(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func jsonUnmarshal(j datatypes.JSON, dst any) error {
	return json.Unmarshal(j, dst)
}

func VectorFromJSON(j datatypes.JSON) ([]float32, error) {
	if len(j) == 0 {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal(j, &v); err != nil {
		return nil, err
	}
	return v, nil
}
