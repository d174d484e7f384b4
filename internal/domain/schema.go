/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
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
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const panelSchema = `{
  "type": "object",
  "required": ["panelID", "x", "y", "z", "text", "icon", "r", "g", "b", "alpha", "spotlight"],
  "properties": {
    "panelID":   {"type": "string", "minLength": 1},
    "museumID":  {"type": "string"},
    "roomID":    {"type": "string"},
    "x":         {"type": "number"},
    "y":         {"type": "number"},
    "z":         {"type": "number"},
    "text":      {"type": "string"},
    "icon":      {"type": "string"},
    "r":         {"type": "integer", "minimum": 0, "maximum": 255},
    "g":         {"type": "integer", "minimum": 0, "maximum": 255},
    "b":         {"type": "integer", "minimum": 0, "maximum": 255},
    "alpha":     {"type": "number", "minimum": 0, "maximum": 1},
    "longText":  {"type": "string"},
    "spotlight": {"type": "boolean"}
  }
}`

const panelUpdateSchema = `{
  "type": "object",
  "required": ["panelID"],
  "additionalProperties": false,
  "minProperties": 2,
  "properties": {
    "panelID":   {"type": "string", "minLength": 1},
    "x":         {"type": "number"},
    "y":         {"type": "number"},
    "z":         {"type": "number"},
    "text":      {"type": "string"},
    "icon":      {"type": "string"},
    "r":         {"type": "integer", "minimum": 0, "maximum": 255},
    "g":         {"type": "integer", "minimum": 0, "maximum": 255},
    "b":         {"type": "integer", "minimum": 0, "maximum": 255},
    "alpha":     {"type": "number", "minimum": 0, "maximum": 1},
    "longText":  {"type": "string"},
    "spotlight": {"type": "boolean"}
  }
}`

const drawingSchema = `{
  "type": "object",
  "required": ["drawingID", "x", "y", "z", "radius"],
  "properties": {
    "drawingID": {"type": "string", "minLength": 1},
    "museumID":  {"type": "string"},
    "roomID":    {"type": "string"},
    "x":         {"type": "number"},
    "y":         {"type": "number"},
    "z":         {"type": "number"},
    "radius":    {"type": "number", "minimum": 0}
  }
}`

// ErrInvalidRecord wraps every schema violation.
var ErrInvalidRecord = errors.New("invalid record")

var (
	schemaOnce sync.Once
	schemas    map[string]*gojsonschema.Schema
	schemaErr  error
)

func compiled(name string) (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemas = map[string]*gojsonschema.Schema{}
		for n, src := range map[string]string{"panel": panelSchema, "panel_update": panelUpdateSchema, "drawing": drawingSchema} {
			s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
			if err != nil {
				schemaErr = fmt.Errorf("compile %s schema: %w", n, err)
				return
			}
			schemas[n] = s
		}
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	return schemas[name], nil
}

func validate(name string, raw []byte) error {
	s, err := compiled(name)
	if err != nil {
		return err
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, "; "))
}

// ValidatePanelJSON checks a full panel record.
func ValidatePanelJSON(raw []byte) error { return validate("panel", raw) }

// ValidatePanelUpdateJSON checks a partial update keyed by panelID.
func ValidatePanelUpdateJSON(raw []byte) error { return validate("panel_update", raw) }

// ValidateDrawingJSON checks a drawing record.
func ValidateDrawingJSON(raw []byte) error { return validate("drawing", raw) }

// DecodePanel validates then decodes one record.
func DecodePanel(raw []byte) (Panel, error) {
	var p Panel
	if err := ValidatePanelJSON(raw); err != nil {
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return p, nil
}

// DecodeDrawing validates then decodes one record.
func DecodeDrawing(raw []byte) (Drawing, error) {
	var d Drawing
	if err := ValidateDrawingJSON(raw); err != nil {
		return d, err
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return d, nil
}
