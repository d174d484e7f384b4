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
	"testing"

	"museumar/internal/geom"
)

func TestPanelWireNames(t *testing.T) {
	p := NewPanel("p1", "m1", "r1", geom.V(1, 2, 3), Content{Text: "Mona", LongText: "long", Icon: "star", Color: Color{R: 10, G: 20, B: 30, A: 0.5}}, true)
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"panelID", "museumID", "roomID", "x", "y", "z", "text", "icon", "r", "g", "b", "alpha", "longText", "spotlight"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing wire field %q", k)
		}
	}
	if err := ValidatePanelJSON(b); err != nil {
		t.Fatalf("own record fails schema: %v", err)
	}
}

func TestDecodePanelRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"missing id":      `{"x":1,"y":2,"z":3,"text":"a","icon":"i","r":1,"g":2,"b":3,"alpha":1,"spotlight":false}`,
		"string x":        `{"panelID":"p","x":"1","y":2,"z":3,"text":"a","icon":"i","r":1,"g":2,"b":3,"alpha":1,"spotlight":false}`,
		"color overflow":  `{"panelID":"p","x":1,"y":2,"z":3,"text":"a","icon":"i","r":300,"g":2,"b":3,"alpha":1,"spotlight":false}`,
		"alpha too large": `{"panelID":"p","x":1,"y":2,"z":3,"text":"a","icon":"i","r":1,"g":2,"b":3,"alpha":2,"spotlight":false}`,
		"not an object":   `[1,2]`,
	}
	for name, raw := range cases {
		if _, err := DecodePanel([]byte(raw)); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("%s: err = %v, want ErrInvalidRecord", name, err)
		}
	}
	ok := `{"panelID":"p","x":1,"y":2,"z":3,"text":"a","icon":"i","r":1,"g":2,"b":3,"alpha":1,"spotlight":true}`
	p, err := DecodePanel([]byte(ok))
	if err != nil || p.PanelID != "p" || !p.Spotlight {
		t.Fatalf("DecodePanel(valid) = %+v, %v", p, err)
	}
}

func TestValidatePanelUpdate(t *testing.T) {
	if err := ValidatePanelUpdateJSON([]byte(`{"panelID":"p","spotlight":true}`)); err != nil {
		t.Fatalf("valid update rejected: %v", err)
	}
	for _, raw := range []string{`{"spotlight":true}`, `{"panelID":"p"}`, `{"panelID":"p","bogus":1}`} {
		if err := ValidatePanelUpdateJSON([]byte(raw)); err == nil {
			t.Errorf("update %s accepted", raw)
		}
	}
}

func TestContentComplete(t *testing.T) {
	full := Content{Text: "t", Icon: "i", Color: Color{R: 1, A: 1}}
	if !full.Complete() {
		t.Fatalf("complete content reported incomplete")
	}
	for _, c := range []Content{{Icon: "i", Color: full.Color}, {Text: "t", Color: full.Color}, {Text: "t", Icon: "i"}} {
		if c.Complete() {
			t.Errorf("%+v reported complete", c)
		}
	}
}

func TestModeRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModePrivate, ModeCommunity, ModeCurator} {
		if got := ParseMode(m.String()); got != m {
			t.Errorf("ParseMode(%q) = %v", m.String(), got)
		}
	}
}

func TestApplyFields(t *testing.T) {
	p := NewPanel("p", "m", "r", geom.V(0, 0, 0), Content{Text: "a", Icon: "i"}, false)
	err := ApplyFields(&p, map[string]any{"panelID": "ignored", "x": 1.5, "text": "b", "r": float64(200), "spotlight": true})
	if err != nil {
		t.Fatalf("ApplyFields: %v", err)
	}
	if p.PanelID != "p" || p.X != 1.5 || p.Text != "b" || p.R != 200 || !p.Spotlight {
		t.Fatalf("patched %+v", p)
	}
	before := p
	if err := ApplyFields(&p, map[string]any{"text": "c", "g": 300}); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("out of range g: %v", err)
	}
	if p != before {
		t.Fatalf("failed update partially applied")
	}
}
