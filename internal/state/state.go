// SPDX-License-Identifier: MIT
/*
Package state persists the colorizer's parameters and editor preferences.

Documents are YAML (a JSON payload loads just as well):

	version: 2.0.0
	params:
	  gain: 10
	  q: 40
	editor:
	  width: 800
	  height: 600

Missing fields take their defaults, unknown keys are ignored and values are
clamped into range. Documents from older versions are migrated; documents
from newer versions load best-effort.
*/
package state

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"colorizr/internal/log"
	"colorizr/internal/param"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is written into every serialized document.
const CurrentVersion = "2.0.0"

// legacyVersion is assumed when a document carries no version.
const legacyVersion = "1.0.0"

// ErrCorruptState is wrapped by every *CorruptStateError.
var ErrCorruptState = errors.New("corrupt plugin state")

// CorruptStateError describes why a document could not be loaded.
type CorruptStateError struct {
	Reason string
	Err    error
}

func (e *CorruptStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrCorruptState, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrCorruptState, e.Reason)
}

func (e *CorruptStateError) Is(target error) bool {
	return target == ErrCorruptState
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

var logger = log.For("state")

// EditorState holds UI-only preferences.
type EditorState struct {
	Width        int  `yaml:"width"`
	Height       int  `yaml:"height"`
	ShowDebug    bool `yaml:"show_debug"`
	ShowAbout    bool `yaml:"show_about"`
	ShowSettings bool `yaml:"show_settings"`
}

// DefaultEditor returns the editor preferences of a fresh instance.
func DefaultEditor() EditorState {
	return EditorState{Width: 800, Height: 600}
}

// PluginState is everything a host saves for one instance.
type PluginState struct {
	Params [param.Count]float64
	Editor EditorState
}

// Default returns the state of a fresh instance.
func Default() PluginState {
	return PluginState{Params: param.Defaults(), Editor: DefaultEditor()}
}

// Capture reads the current targets of set.
func Capture(set *param.Set, editor EditorState) PluginState {
	return PluginState{Params: set.Targets(), Editor: editor}
}

// Apply sets every parameter target of set from s.
func (s PluginState) Apply(set *param.Set) {
	for i := range s.Params {
		set.SetTarget(param.ID(i), s.Params[i])
	}
}

type document struct {
	Version string         `yaml:"version"`
	Params  map[string]any `yaml:"params"`
	Editor  EditorState    `yaml:"editor"`
}

// Serialize encodes s as a versioned document.
func (s PluginState) Serialize() ([]byte, error) {
	doc := document{
		Version: CurrentVersion,
		Params:  make(map[string]any, param.Count),
		Editor:  s.Editor,
	}
	for i := range param.Schema {
		spec := &param.Schema[i]
		v := spec.Clamp(s.Params[i])
		if spec.Kind != param.Continuous {
			doc.Params[spec.Key] = int(v)
		} else {
			doc.Params[spec.Key] = v
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return buf.Bytes(), nil
}

// legacyKeys maps parameter keys of pre-2.0 documents onto current ones.
var legacyKeys = map[string]string{
	"band_gain": "gain",
	"voices":    "voice_count",
}

// Deserialize decodes a document. Malformed input yields a
// *CorruptStateError; it never panics.
func Deserialize(data []byte) (PluginState, error) {
	st := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return st, &CorruptStateError{Reason: "empty document"}
	}

	doc := document{Editor: DefaultEditor()}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return st, &CorruptStateError{Reason: "malformed document", Err: err}
	}

	if doc.Version == "" {
		doc.Version = legacyVersion
	}
	version, err := semver.NewVersion(doc.Version)
	if err != nil {
		return st, &CorruptStateError{Reason: fmt.Sprintf("invalid version %q", doc.Version), Err: err}
	}
	current := semver.MustParse(CurrentVersion)
	if version.Major() > current.Major() {
		logger.Warnf("state version %s is newer than %s, loading best-effort", version, current)
	}

	params := doc.Params
	if legacy, _ := semver.NewConstraint("< 2.0.0"); legacy.Check(version) {
		params = migrate(params)
	}

	for key, raw := range params {
		id, ok := param.Lookup(key)
		if !ok {
			logger.Debugf("ignoring unknown parameter %q", key)
			continue
		}
		v, ok := decodeValue(&param.Schema[id], raw)
		if !ok {
			logger.Warnf("ignoring invalid value %v for %q", raw, key)
			continue
		}
		st.Params[id] = param.Schema[id].Clamp(v)
	}

	st.Editor = doc.Editor
	def := DefaultEditor()
	if st.Editor.Width <= 0 {
		st.Editor.Width = def.Width
	}
	if st.Editor.Height <= 0 {
		st.Editor.Height = def.Height
	}
	return st, nil
}

func migrate(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for key, v := range params {
		if renamed, ok := legacyKeys[key]; ok {
			key = renamed
		}
		if _, exists := out[key]; exists {
			continue
		}
		out[key] = v
	}
	return out
}

// decodeValue accepts numbers, booleans and display strings ("Cut", "On").
func decodeValue(spec *param.Spec, raw any) (float64, bool) {
	switch v := raw.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float64:
		if math.IsNaN(v) {
			return spec.Default, true
		}
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		f, err := spec.Parse(v)
		return f, err == nil
	}
	return 0, false
}
