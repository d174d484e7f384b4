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
	"fmt"
)

// ApplyFields applies a partial update to p. Unknown keys and panelID are
// ignored; wrongly typed values fail the whole update.
func ApplyFields(p *Panel, fields map[string]any) error {
	next := *p
	for k, v := range fields {
		var err error
		switch k {
		case FieldX:
			next.X, err = asFloat(k, v)
		case FieldY:
			next.Y, err = asFloat(k, v)
		case FieldZ:
			next.Z, err = asFloat(k, v)
		case FieldAlpha:
			next.Alpha, err = asFloat(k, v)
		case FieldR:
			next.R, err = asInt(k, v)
		case FieldG:
			next.G, err = asInt(k, v)
		case FieldB:
			next.B, err = asInt(k, v)
		case FieldText:
			next.Text, err = asString(k, v)
		case FieldLongText:
			next.LongText, err = asString(k, v)
		case FieldIcon:
			next.Icon, err = asString(k, v)
		case FieldSpotlight:
			b, ok := v.(bool)
			if !ok {
				err = fmt.Errorf("%w: %s must be a boolean", ErrInvalidRecord, k)
			}
			next.Spotlight = b
		}
		if err != nil {
			return err
		}
	}
	*p = next
	return nil
}

func asFloat(k string, v any) (float32, error) {
	switch n := v.(type) {
	case float64:
		return float32(n), nil
	case float32:
		return n, nil
	case int:
		return float32(n), nil
	case json.Number:
		f, err := n.Float64()
		return float32(f), err
	}
	return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidRecord, k)
}

func asInt(k string, v any) (int, error) {
	f, err := asFloat(k, v)
	if err != nil {
		return 0, err
	}
	if f != float32(int(f)) || f < 0 || f > 255 {
		return 0, fmt.Errorf("%w: %s must be an integer in 0..255", ErrInvalidRecord, k)
	}
	return int(f), nil
}

func asString(k string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidRecord, k)
	}
	return s, nil
}
