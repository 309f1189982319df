package calibration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the on-disk encoding of a calibration file.
type Format int

const (
	// FormatJSON is a flat JSON object of key to ohms
	FormatJSON Format = iota

	// FormatYAML is a flat YAML mapping of key to ohms
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("unsupported calibration file extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// Parse reads a calibration file from path. The format is chosen by
// extension.
//
// Example:
//
//	params, err := calibration.Parse("post_cal_cfg.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("R_FET = %g ohm\n", params[calibration.RFET])
func Parse(path string) (Params, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f, format)
}

// ParseReader reads calibration parameters from r in the given format.
// Unknown keys and non-finite values are rejected.
func ParseReader(r io.Reader, format Format) (Params, error) {
	raw := map[string]float64{}

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported calibration format %s", format)
	}

	params := make(Params, len(raw))
	for name, value := range raw {
		k, err := ParseKey(name)
		if err != nil {
			return nil, err
		}
		if _, dup := params[k]; dup {
			return nil, fmt.Errorf("duplicate calibration key %s", k)
		}
		params[k] = value
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// Write stores params at path, choosing the format by extension.
func Write(path string, params Params) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, params, format); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Encode writes params to w in wire index order.
func Encode(w io.Writer, params Params, format Format) error {
	if err := params.Validate(); err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		return encodeJSON(w, params)
	case FormatYAML:
		return encodeYAML(w, params)
	default:
		return fmt.Errorf("unsupported calibration format %s", format)
	}
}

// encodeJSON writes a flat object with keys in wire order, which a map
// passed to encoding/json would sort alphabetically.
func encodeJSON(w io.Writer, params Params) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range params.Ordered() {
		if i > 0 {
			buf.WriteString(", ")
		}
		name, err := json.Marshal(string(k))
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteString(": ")
		buf.WriteString(strconv.FormatFloat(params[k], 'g', -1, 64))
	}
	buf.WriteString("}\n")

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write json: %w", err)
	}
	return nil
}

func encodeYAML(w io.Writer, params Params) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range params.Ordered() {
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(k)},
			&yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(params[k], 'g', -1, 64)},
		)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write yaml: %w", err)
	}
	return enc.Close()
}
