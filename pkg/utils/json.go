package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"k8s.io/client-go/util/jsonpath"
)

// ReadAsJSONWithClose drains and closes body, returning both the raw buffer and
// the decoded object.
func ReadAsJSONWithClose(body io.ReadCloser) (*bytes.Buffer, map[string]any, error) {
	if body == nil {
		return nil, nil, errors.New("body is nil")
	}

	defer func() { _ = body.Close() }()

	buffer := new(bytes.Buffer)

	_, err := buffer.ReadFrom(body)
	if err != nil {
		return nil, nil, err
	}

	var parsed map[string]any

	err = json.Unmarshal(buffer.Bytes(), &parsed)
	if err != nil {
		return nil, nil, err
	}

	return buffer, parsed, nil
}

func findByJSONPath(input any, template string) ([]any, error) {
	j := jsonpath.New("")
	j.AllowMissingKeys(true)

	err := j.Parse(template)
	if err != nil {
		return nil, err
	}

	results, err := j.FindResults(input)
	if err != nil {
		return nil, err
	}

	values := make([]any, 0)

	for _, result := range results {
		for _, v := range result {
			if !v.IsValid() || !v.CanInterface() {
				continue
			}

			values = append(values, v.Interface())
		}
	}

	return values, nil
}

// GetByJSONPathWithoutConvert renders the matches of template as text, the way
// kubectl -o jsonpath would. Missing keys render as "", JSON null as "<nil>".
func GetByJSONPathWithoutConvert(input any, template string) (string, error) {
	j := jsonpath.New("")
	j.AllowMissingKeys(true)

	err := j.Parse(template)
	if err != nil {
		return "", err
	}

	buffer := new(bytes.Buffer)

	err = j.Execute(buffer, input)
	if err != nil {
		return "", err
	}

	return buffer.String(), nil
}

// GetByJSONPath evaluates template (k8s JSONPath syntax, e.g. "{ .detail.message }")
// against input and converts the first match into T. Missing keys and conversion
// failures yield the zero value.
func GetByJSONPath[T any](input any, template string) T {
	var empty T

	values, err := findByJSONPath(input, template)
	if err != nil || len(values) == 0 || values[0] == nil {
		return empty
	}

	if typed, ok := values[0].(T); ok {
		return typed
	}

	bs, err := json.Marshal(values[0])
	if err != nil {
		return empty
	}

	var converted T

	err = json.Unmarshal(bs, &converted)
	if err != nil {
		return FromStringOrEmpty[T](string(bs))
	}

	return converted
}

func WriteJSONForHTTP(status int, resp any, writer http.ResponseWriter) {
	bs, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response", "error", err)

		status = http.StatusInternalServerError
		bs = []byte(`{"error":{"message":"internal error"}}`)
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)

	_, _ = writer.Write(bs)
}

func SafeFlush(writer http.ResponseWriter) {
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}
