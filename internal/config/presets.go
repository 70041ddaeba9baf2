package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mescon/Tickarr/internal/timer"
)

// Preset is a named timer the API can start without spelling out a duration.
type Preset struct {
	Name     string              `json:"name"`
	Duration timer.Duration      `json:"duration"`
	Warnings timer.WarningConfig `json:"warnings"`
}

// presetFile is the on-disk YAML layout:
//
//	presets:
//	  - name: pomodoro
//	    duration: "25:00"
//	    warning_at_2min: true
type presetFile struct {
	Presets []presetEntry `yaml:"presets"`
}

type presetEntry struct {
	Name                string `yaml:"name"`
	Duration            string `yaml:"duration"`
	timer.WarningConfig `yaml:",inline"`
}

// DefaultPresets are offered when no presets file is configured.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "pomodoro", Duration: 25 * 60, Warnings: timer.WarningConfig{WarningAt2Min: true, WarningAt5Min: true}},
		{Name: "short-break", Duration: 5 * 60, Warnings: timer.WarningConfig{WarningAt2Min: true}},
		{Name: "long-break", Duration: 15 * 60, Warnings: timer.WarningConfig{WarningAt2Min: true, WarningAt5Min: true}},
	}
}

// LoadPresets reads and validates a presets file. Files ending in .csv are
// read with ParsePresetsCSV, anything else as YAML.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ParsePresetsCSV(data)
	}
	return ParsePresets(data)
}

// ParsePresets decodes YAML preset definitions. Durations use the MM:SS form
// and names must be unique.
func ParsePresets(data []byte) ([]Preset, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	return buildPresets(file.Presets)
}

func buildPresets(entries []presetEntry) ([]Preset, error) {
	seen := make(map[string]bool)
	presets := make([]Preset, 0, len(entries))
	for i, p := range entries {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d has no name", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		seen[p.Name] = true

		d, err := timer.ParseTimeString(p.Duration)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
		presets = append(presets, Preset{Name: p.Name, Duration: d, Warnings: p.WarningConfig})
	}
	return presets, nil
}

// FindPreset looks up a preset by name.
func (c *Config) FindPreset(name string) (Preset, bool) {
	for _, p := range c.Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
