package config

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Columns of a CSV presets file. name and duration are required, the warning
// columns are optional and default to false.
const (
	csvColName     = "name"
	csvColDuration = "duration"
	csvColWarn2    = "warning_at_2min"
	csvColWarn5    = "warning_at_5min"
)

// ParsePresetsCSV decodes presets from a spreadsheet export:
//
//	name,duration,warning_at_2min,warning_at_5min
//	pomodoro,25:00,true,true
//
// The first row is the header; column order is free. UTF-8, UTF-16 with a
// byte order mark and Windows-1252 input are accepted.
func ParsePresetsCSV(data []byte) ([]Preset, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode presets: %w", err)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("presets CSV is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{csvColName, csvColDuration} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("presets CSV has no %q column", required)
		}
	}

	var entries []presetEntry
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse presets: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}
		line, _ := r.FieldPos(0)
		field := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		e := presetEntry{Name: field(csvColName), Duration: field(csvColDuration)}
		if e.WarningAt2Min, err = csvBool(field(csvColWarn2)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, csvColWarn2, err)
		}
		if e.WarningAt5Min, err = csvBool(field(csvColWarn5)); err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, csvColWarn5, err)
		}
		entries = append(entries, e)
	}
	return buildPresets(entries)
}

// decodeText turns file bytes into UTF-8. A UTF-16 byte order mark selects
// UTF-16; valid UTF-8 is kept as is; anything else is read as Windows-1252.
func decodeText(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	case utf8.Valid(data):
		return string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})), nil
	default:
		out, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func csvBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "", "0", "no", "n":
		return false, nil
	case "yes", "y":
		return true, nil
	}
	return strconv.ParseBool(v)
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
