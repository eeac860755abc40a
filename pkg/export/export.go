// Package export renders an analysis as structured, tabular or graph
// interchange output. Every format is produced from the same Document.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Export renders b in the given format.
func Export(b Bundle, format Format) ([]byte, error) {
	kind, ok := formatKinds[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	doc, err := BuildDocument(b)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindStructured:
		return renderStructured(doc, format)
	case KindTabular:
		return renderTabular(doc, format)
	default:
		return renderInterchange(doc, format)
	}
}

func renderStructured(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	}
}

func renderTabular(doc *Document, format Format) ([]byte, error) {
	rows := tableRows(doc)
	if format == FormatXLSX {
		return writeXLSX(doc, rows)
	}
	return writeCSV(rows)
}

func renderInterchange(doc *Document, format Format) ([]byte, error) {
	if format == FormatGraphML {
		return writeGraphML(doc)
	}
	return writeNodeLink(doc)
}
