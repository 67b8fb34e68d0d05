// Package voicefile loads voice definitions from a YAML file and keeps them
// in sync with the file while it is edited.
//
// A voice file looks like:
//
//	voices:
//	  drums:
//	    pattern: "bd*2 [~ sd]"
//	    output: dirt
//	    controls:
//	      gain: "1 0.8"
//	  bass:
//	    pattern: "<c3 e3> g2"
//	    output: midi
//	    channel: 2
//	    nudge: 5ms
//
// Patterns and controls are mini-notation.
package voicefile

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"go-cycle/bridge"
	"go-cycle/mini"
	"go-cycle/pattern"
)

// File is the document layout.
type File struct {
	Voices map[string]VoiceDef `yaml:"voices"`
}

// VoiceDef is one voice as written in the file.
type VoiceDef struct {
	Pattern  string            `yaml:"pattern"`
	Output   string            `yaml:"output"`
	Channel  int               `yaml:"channel"`
	Nudge    string            `yaml:"nudge"`
	Mute     bool              `yaml:"mute"`
	Controls map[string]string `yaml:"controls"`
}

// Parse decodes a voice file and compiles every voice. Unknown fields are
// rejected. Voices are returned ordered by name.
func Parse(data []byte) ([]bridge.Voice, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("voicefile: %w", err)
	}

	names := make([]string, 0, len(f.Voices))
	for name := range f.Voices {
		names = append(names, name)
	}
	sort.Strings(names)

	voices := make([]bridge.Voice, 0, len(names))
	for _, name := range names {
		v, err := Compile(name, f.Voices[name])
		if err != nil {
			return nil, err
		}
		voices = append(voices, v)
	}
	return voices, nil
}

// Compile turns a definition into a voice. Values of the main pattern that
// are not maps become the "s" control for dirt and "note" for midi; each
// control pattern is merged on top keeping the main pattern's structure.
func Compile(name string, def VoiceDef) (bridge.Voice, error) {
	if def.Pattern == "" {
		return bridge.Voice{}, fmt.Errorf("voicefile: voice %q: missing pattern", name)
	}
	output := def.Output
	if output == "" {
		output = "dirt"
	}
	p, err := mini.Parse(def.Pattern)
	if err != nil {
		return bridge.Voice{}, fmt.Errorf("voicefile: voice %q: %w", name, err)
	}

	key := "s"
	if output == "midi" {
		key = "note"
	}
	if len(def.Controls) > 0 {
		p = p.Fmap(func(v any) any {
			if m, ok := v.(pattern.ValueMap); ok {
				return m
			}
			return pattern.ValueMap{key: v}
		})
		keys := make([]string, 0, len(def.Controls))
		for k := range def.Controls {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cp, err := mini.Parse(def.Controls[k])
			if err != nil {
				return bridge.Voice{}, fmt.Errorf("voicefile: voice %q control %q: %w", name, k, err)
			}
			ctl := k
			p = p.CombineLeft(cp.Fmap(func(v any) any { return pattern.ValueMap{ctl: v} }))
		}
	}

	var nudge time.Duration
	if def.Nudge != "" {
		nudge, err = time.ParseDuration(def.Nudge)
		if err != nil {
			return bridge.Voice{}, fmt.Errorf("voicefile: voice %q: nudge: %w", name, err)
		}
	}

	return bridge.Voice{
		Name:    name,
		Pattern: p,
		Output:  output,
		Channel: def.Channel,
		Nudge:   nudge,
		Mute:    def.Mute,
	}, nil
}
