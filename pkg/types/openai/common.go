package openai

import (
	"bytes"
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/samber/lo"
)

type JSONPatchOperation string

const (
	JSONPatchOperationAdd     JSONPatchOperation = "add"
	JSONPatchOperationRemove  JSONPatchOperation = "remove"
	JSONPatchOperationReplace JSONPatchOperation = "replace"
)

// JSONPatchOperationObject is one RFC 6902 operation.
type JSONPatchOperationObject struct {
	Operation JSONPatchOperation `json:"op"`
	Path      string             `json:"path"`
	Value     any                `json:"value,omitempty"`
}

func NewAdd(path string, value any) *JSONPatchOperationObject {
	return &JSONPatchOperationObject{Operation: JSONPatchOperationAdd, Path: path, Value: value}
}

func NewReplace(path string, value any) *JSONPatchOperationObject {
	return &JSONPatchOperationObject{Operation: JSONPatchOperationReplace, Path: path, Value: value}
}

func NewRemove(path string) *JSONPatchOperationObject {
	return &JSONPatchOperationObject{Operation: JSONPatchOperationRemove, Path: path}
}

func NewPatches(patches ...*JSONPatchOperationObject) []byte {
	return lo.Must(json.Marshal(lo.Compact(patches)))
}

func modifyBufferBodyAndParsed(buffer *bytes.Buffer, applyOpt *jsonpatch.ApplyOptions, patches ...*JSONPatchOperationObject) (*bytes.Buffer, map[string]any, error) {
	patch, err := jsonpatch.DecodePatch(NewPatches(patches...))
	if err != nil {
		return nil, nil, err
	}

	if applyOpt == nil {
		applyOpt = jsonpatch.NewApplyOptions()
	}

	patched, err := patch.ApplyWithOptions(buffer.Bytes(), applyOpt)
	if err != nil {
		return nil, nil, err
	}

	var newParsed map[string]any

	err = json.Unmarshal(patched, &newParsed)
	if err != nil {
		return nil, nil, err
	}

	return bytes.NewBuffer(patched), newParsed, nil
}
