package quota

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseLimit decodes a JSON limit value. It accepts null or a non-negative
// integer literal; fractional numbers, strings and other types are rejected.
func ParseLimit(raw json.RawMessage) (*int, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '-' && (trimmed[0] < '0' || trimmed[0] > '9') {
		return nil, validationErr("limit", "must be null or a non-negative integer")
	}
	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if errDecode := dec.Decode(&num); errDecode != nil {
		return nil, validationErr("limit", "must be null or a non-negative integer")
	}
	return parseNumber(num.String())
}

// ParseLimitString parses a command-line limit: "null", "none" or "unlimited"
// clear the limit, anything else must be a non-negative integer.
func ParseLimitString(value string) (*int, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "null", "none", "unlimited":
		return nil, nil
	}
	return parseNumber(strings.TrimSpace(value))
}

func parseNumber(text string) (*int, error) {
	n, errParse := strconv.ParseInt(text, 10, 64)
	if errParse != nil {
		return nil, validationErr("limit", "must be null or a non-negative integer")
	}
	if n < 0 {
		return nil, validationErr("limit", "must not be negative")
	}
	if n > math.MaxInt32 {
		return nil, validationErr("limit", "is too large")
	}
	v := int(n)
	return &v, nil
}

// ValidateLimit checks an already-typed limit.
func ValidateLimit(limit *int) error {
	if limit != nil && *limit < 0 {
		return validationErr("limit", "must not be negative")
	}
	return nil
}
