// SPDX-License-Identifier: MIT
package state

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"colorizr/internal/param"
)

func TestRoundTrip(t *testing.T) {
	st := Default()
	st.Params[param.Gain] = 23.75
	st.Params[param.ModRate] = 0.123456789
	st.Params[param.FilterMode] = param.ModeCut
	st.Params[param.BandCount] = 3
	st.Params[param.Delta] = 1
	st.Editor = EditorState{Width: 1024, Height: 700, ShowDebug: true}

	data, err := st.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if !strings.Contains(string(data), "version: "+CurrentVersion) {
		t.Errorf("document has no version:\n%s", data)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if got != st {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, st)
	}
}

func TestDeserializeCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Empty", ""},
		{"Whitespace", "  \n\t "},
		{"Scalar", "just some text"},
		{"Sequence", "- 1\n- 2\n"},
		{"Broken YAML", "params: {gain: [\n"},
		{"Binary", "\x00\x01\x02\xff\xfe"},
		{"Bad version", "version: banana\nparams: {gain: 5}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Deserialize([]byte(tt.data))
			if !errors.Is(err, ErrCorruptState) {
				t.Fatalf("Deserialize() error = %v, want ErrCorruptState", err)
			}
			var ce *CorruptStateError
			if !errors.As(err, &ce) || ce.Reason == "" {
				t.Errorf("error %v carries no reason", err)
			}
			if st != Default() {
				t.Error("corrupt document did not yield defaults")
			}
		})
	}
}

func TestDeserializeFillsAndClamps(t *testing.T) {
	data := `
version: 2.0.0
params:
  gain: 1000
  q: -5
  mod_depth: .nan
  filter_mode: Cut
  safety: false
  band_count: 3.4
  unknown_param: 12
  release: [1, 2]
editor:
  width: -1
  show_about: true
`
	st, err := Deserialize([]byte(data))
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	want := param.Defaults()
	want[param.Gain] = param.Schema[param.Gain].Max
	want[param.Q] = param.Schema[param.Q].Min
	want[param.FilterMode] = param.ModeCut
	want[param.Safety] = 0
	want[param.BandCount] = 3
	if st.Params != want {
		t.Errorf("Params = %v, want %v", st.Params, want)
	}
	if st.Editor.Width != DefaultEditor().Width || st.Editor.Height != DefaultEditor().Height {
		t.Errorf("Editor size = %dx%d, want defaults", st.Editor.Width, st.Editor.Height)
	}
	if !st.Editor.ShowAbout {
		t.Error("ShowAbout lost")
	}
}

func TestDeserializeJSON(t *testing.T) {
	st, err := Deserialize([]byte(`{"version":"2.0.0","params":{"gain":12.5,"delta":1}}`))
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if st.Params[param.Gain] != 12.5 || st.Params[param.Delta] != 1 {
		t.Errorf("Params = %v", st.Params)
	}
}

func TestMigration(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantGain   float64
		wantVoices float64
	}{
		{"Unversioned", "params:\n  band_gain: 30\n  voices: 12\n", 30, 12},
		{"Version 1.x", "version: 1.3.0\nparams:\n  band_gain: 6\n  voices: 2\n", 6, 2},
		{"Current ignores legacy keys", "version: 2.0.0\nparams:\n  band_gain: 6\n  voices: 2\n", 10, 4},
		{"New key wins over legacy", "version: 1.0.0\nparams:\n  gain: 7\n", 7, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Deserialize([]byte(tt.data))
			if err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}
			if st.Params[param.Gain] != tt.wantGain {
				t.Errorf("gain = %v, want %v", st.Params[param.Gain], tt.wantGain)
			}
			if st.Params[param.Voices] != tt.wantVoices {
				t.Errorf("voice_count = %v, want %v", st.Params[param.Voices], tt.wantVoices)
			}
		})
	}
}

func TestNewerVersionLoads(t *testing.T) {
	st, err := Deserialize([]byte("version: 3.1.0\nparams:\n  q: 12\n  shimmer: 0.5\n"))
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if st.Params[param.Q] != 12 {
		t.Errorf("q = %v, want 12", st.Params[param.Q])
	}
}

func TestCaptureApply(t *testing.T) {
	src := param.NewSet()
	src.SetTarget(param.Gain, 31)
	src.SetTarget(param.BandCount, 5)

	st := Capture(src, DefaultEditor())
	dst := param.NewSet()
	st.Apply(dst)

	if got := dst.Targets(); got != src.Targets() {
		t.Errorf("Apply() targets = %v, want %v", got, src.Targets())
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")

	if st, err := Load(path); err == nil || st != Default() {
		t.Fatalf("Load(missing) = %v, %v; want defaults and an error", st, err)
	}

	st := Default()
	st.Params[param.Q] = 17
	if err := Save(path, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != st {
		t.Errorf("Load() = %+v, want %+v", got, st)
	}

	if err := os.WriteFile(path, []byte("{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = Load(path)
	if !errors.Is(err, ErrCorruptState) || got != Default() {
		t.Errorf("Load(corrupt) = %v, %v", got, err)
	}
}

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	changes := make(chan PluginState, 16)
	w, err := Watch(path, func(st PluginState) {
		select {
		case changes <- st:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	st := Default()
	st.Params[param.Gain] = 33
	if err := Save(path, st); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-changes:
			if got.Params[param.Gain] == 33 {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not report the change")
		}
	}
}

func TestWatcherCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	w, err := Watch(path, func(PluginState) {})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestDecodeValue(t *testing.T) {
	spec := &param.Schema[param.Gain]
	tests := []struct {
		raw  any
		want float64
		ok   bool
	}{
		{5, 5, true},
		{2.5, 2.5, true},
		{true, 1, true},
		{"12 dB", 12, true},
		{math.NaN(), spec.Default, true},
		{"loud", 0, false},
		{[]any{1}, 0, false},
	}
	for _, tt := range tests {
		got, ok := decodeValue(spec, tt.raw)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("decodeValue(%v) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}
