package services

import (
	"encoding/json"

	"gorm.io/datatypes"

	"discoverly/utils"
)

func validateInput(in interface{}) error {
	if err := utils.ValidateStruct(in); err != nil {
		return InvalidInput(err.Error())
	}
	return nil
}

// jsonList encodes a string list for a JSON column; nil becomes [].
func jsonList(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return datatypes.JSON(raw)
}

// jsonValue encodes an arbitrary payload for a JSON column; nil stays NULL.
func jsonValue(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, InvalidInput("invalid JSON payload")
	}
	return datatypes.JSON(raw), nil
}
