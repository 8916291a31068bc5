// Package dataset reads and writes the paired OCR/ground-truth files the
// pipeline consumes.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/ocr-eval/harness/pkg/logger"
)

// Entry is one chapter: the raw OCR text and its ground-truth transcription.
type Entry struct {
	OCR   string `json:"ocr"`
	Clean string `json:"clean"`
}

type Keyed struct {
	Key string
	Entry
}

// Merge joins OCR and clean texts on their keys. Keys present on only one
// side are dropped and reported in the returned warnings.
func Merge(ocr, clean map[string]string) (map[string]Entry, []string) {
	merged := make(map[string]Entry, len(ocr))
	var warnings []string

	for _, key := range SortKeys(keysOf(ocr)) {
		cleanText, ok := clean[key]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("key %q found in OCR data but not in clean data", key))
			continue
		}
		merged[key] = Entry{OCR: ocr[key], Clean: cleanText}
	}
	for _, key := range SortKeys(keysOf(clean)) {
		if _, ok := ocr[key]; !ok {
			warnings = append(warnings, fmt.Sprintf("key %q found in clean data but not in OCR data", key))
		}
	}

	return merged, warnings
}

// Subset keeps the first size entries in numeric key order. Every key must
// be an integer. A size larger than the data keeps everything.
func Subset(entries map[string]Entry, size int) ([]Keyed, error) {
	nums := make([]int, 0, len(entries))
	for key := range entries {
		n, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("dataset key %q is not an integer: %w", key, err)
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)

	if size > len(nums) {
		logger.Warn("Requested subset is larger than the dataset, using every entry",
			zap.Int("requested", size),
			zap.Int("available", len(nums)),
		)
		size = len(nums)
	}
	if size < 0 {
		size = 0
	}

	out := make([]Keyed, 0, size)
	for _, n := range nums[:size] {
		key := strconv.Itoa(n)
		out = append(out, Keyed{Key: key, Entry: entries[key]})
	}
	return out, nil
}

// Slice selects entries start..end, 1-based and inclusive. An end of 0
// means the last entry.
func Slice(entries []Keyed, start, end int) ([]Keyed, error) {
	if start < 1 {
		return nil, fmt.Errorf("start index must be >= 1, got %d", start)
	}
	if end != 0 && start > end {
		return nil, fmt.Errorf("start index (%d) cannot be greater than end index (%d)", start, end)
	}
	if end == 0 || end > len(entries) {
		end = len(entries)
	}
	if start > end {
		return []Keyed{}, nil
	}
	return entries[start-1 : end], nil
}

// SortKeys orders keys numerically when they parse as integers; the rest
// follow in lexical order.
func SortKeys(keys []string) []string {
	sort.SliceStable(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// LoadTexts reads a JSON object of key to text, such as an OCR dump.
func LoadTexts(path string) (map[string]string, error) {
	var texts map[string]string
	if err := readJSON(path, &texts); err != nil {
		return nil, err
	}
	return texts, nil
}

func SaveTexts(path string, texts map[string]string) error {
	keys := SortKeys(keysOf(texts))
	return writeOrdered(path, keys, func(key string) any { return texts[key] })
}

// LoadEntries reads a dataset file and returns its entries in key order.
func LoadEntries(path string) ([]Keyed, error) {
	var raw map[string]Entry
	if err := readJSON(path, &raw); err != nil {
		return nil, err
	}

	out := make([]Keyed, 0, len(raw))
	for _, key := range SortKeys(keysOf(raw)) {
		out = append(out, Keyed{Key: key, Entry: raw[key]})
	}
	return out, nil
}

// SaveEntries writes entries as a JSON object, preserving their order.
func SaveEntries(path string, entries []Keyed) error {
	byKey := make(map[string]Entry, len(entries))
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, dup := byKey[e.Key]; !dup {
			keys = append(keys, e.Key)
		}
		byKey[e.Key] = e.Entry
	}
	return writeOrdered(path, keys, func(key string) any { return byKey[key] })
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

// writeOrdered emits a JSON object whose members follow keys, which
// encoding/json cannot do for maps.
func writeOrdered(path string, keys []string, value func(string) any) error {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, key := range keys {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")

		k, err := marshalNoEscape(key, "")
		if err != nil {
			return err
		}
		v, err := marshalNoEscape(value(key), "  ")
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(v)
	}
	if len(keys) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return writeFile(path, buf.Bytes())
}

func marshalNoEscape(v any, prefix string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(prefix, "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
