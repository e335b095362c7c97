package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

var (
	errFailedToConvertStringToType = func(t any, err error) error { return fmt.Errorf("failed to convert string to type %T: %w", t, err) }
)

// FromString converts the textual form of a scalar (header values, env values,
// JSON path results) into T. Empty, "null" and "<nil>" inputs yield the zero value.
func FromString[T any](str string) (T, error) {
	var empty T

	str = strings.TrimSpace(str)
	if str == "" || str == "null" || str == "<nil>" {
		return empty, nil
	}

	var (
		val any
		err error
	)

	switch any(empty).(type) {
	case string:
		val = str
	case *string:
		val = lo.ToPtr(str)
	case int:
		val, err = parseInt[int](str, 0)
	case *int:
		val, err = parsePtr(parseInt[int], str, 0)
	case int64:
		val, err = parseInt[int64](str, 64)
	case *int64:
		val, err = parsePtr(parseInt[int64], str, 64)
	case uint32:
		val, err = parseUint[uint32](str, 32)
	case *uint32:
		val, err = parsePtr(parseUint[uint32], str, 32)
	case uint64:
		val, err = parseUint[uint64](str, 64)
	case *uint64:
		val, err = parsePtr(parseUint[uint64], str, 64)
	case float64:
		val, err = strconv.ParseFloat(str, 64)
	case *float64:
		val, err = parsePtr(func(s string, _ int) (float64, error) { return strconv.ParseFloat(s, 64) }, str, 64)
	case bool:
		val, err = strconv.ParseBool(str)
	case *bool:
		val, err = parsePtr(func(s string, _ int) (bool, error) { return strconv.ParseBool(s) }, str, 0)
	default:
		var initial T

		err = json.Unmarshal([]byte(str), &initial)
		if err != nil {
			return empty, errFailedToConvertStringToType(empty, err)
		}

		return initial, nil
	}

	if err != nil {
		return empty, errFailedToConvertStringToType(empty, err)
	}

	typed, _ := val.(T)

	return typed, nil
}

func FromStringOrEmpty[T any](str string) T {
	var empty T

	val, err := FromString[T](str)
	if err != nil {
		return empty
	}

	return val
}

func parseInt[T int | int64](str string, bitSize int) (T, error) {
	val, err := strconv.ParseInt(str, 10, bitSize)
	if err != nil {
		return 0, err
	}

	return T(val), nil
}

func parseUint[T uint32 | uint64](str string, bitSize int) (T, error) {
	val, err := strconv.ParseUint(str, 10, bitSize)
	if err != nil {
		return 0, err
	}

	return T(val), nil
}

func parsePtr[T any](parse func(string, int) (T, error), str string, bitSize int) (*T, error) {
	val, err := parse(str, bitSize)
	if err != nil {
		return nil, err
	}

	return &val, nil
}
