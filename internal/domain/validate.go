/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

// ErrInvalidScene reports a canvasJson value that does not parse as JSON.
var ErrInvalidScene = errors.New("canvasJson is not valid JSON")

// dataSchema describes the raw block payload as the host stores it.
const dataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "canvasJson": {"type": ["string", "null"]},
    "canvasHeight": {"type": "number", "minimum": 0},
    "canvasImages": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["id", "src", "attrs"],
        "properties": {
          "id": {"type": "string"},
          "src": {"type": "string"},
          "attrs": {
            "type": "object",
            "properties": {
              "x": {"type": "number"}, "y": {"type": "number"},
              "width": {"type": "number", "minimum": 0},
              "height": {"type": "number", "minimum": 0},
              "scaleX": {"type": "number"}, "scaleY": {"type": "number"},
              "rotation": {"type": "number"}
            }
          }
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(dataSchema)

// Validate reports whether d can be loaded: canvasJson, when present, must parse
// as JSON. Scalars pass; the loader treats them as an empty scene.
func (d Data) Validate() error {
	if d.CanvasJSON == nil || *d.CanvasJSON == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(*d.CanvasJSON), &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	return nil
}

// ValidateDocument checks a raw stored payload against the block schema and
// then applies Data.Validate. It returns the decoded payload on success.
func ValidateDocument(raw []byte) (Data, error) {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Data{}, fmt.Errorf("schema validate: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Data{}, fmt.Errorf("payload does not match schema: %s", strings.Join(msgs, "; "))
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Data{}, err
	}
	return d, nil
}
