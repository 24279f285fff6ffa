// Package textextract converts uploaded knowledge-base files into plain
// text. Extractors are keyed by file extension; unknown extensions yield
// ErrUnsupported so callers can skip them.
package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupported marks a file type with no registered extractor.
var ErrUnsupported = errors.New("unsupported file type")

type extractFunc func(data []byte) (string, error)

var extractors = map[string]extractFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".txt":  extractTXT,
	".csv":  extractCSV,
	".json": extractJSON,
	".xlsx": extractXLSX,
}

// Supported reports whether ext (with leading dot, any case) has an
// extractor registered.
func Supported(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// Extract returns the plain text of a document given its raw bytes and
// file extension.
func Extract(data []byte, ext string) (string, error) {
	fn, ok := extractors[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	return fn(data)
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}

	for _, f := range reader.File {
		if filepath.Base(f.Name) != "document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		return stripXMLTags(string(content)), nil
	}
	return "", fmt.Errorf("document.xml not found in DOCX archive")
}

func extractTXT(data []byte) (string, error) {
	return string(bytes.TrimSpace(data)), nil
}

// extractCSV renders each record as a comma-joined line so row contents
// stay adjacent for chunking.
func extractCSV(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	var buf strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read CSV: %w", err)
		}
		buf.WriteString(strings.Join(record, ", "))
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

// extractJSON flattens the document into "path: value" lines for scalar
// leaves, in sorted key order for stable output.
func extractJSON(data []byte) (string, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse JSON: %w", err)
	}

	var lines []string
	flattenJSON("", doc, &lines)
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

func flattenJSON(prefix string, v interface{}, out *[]string) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			flattenJSON(p, child, out)
		}
	case []interface{}:
		for i, child := range val {
			flattenJSON(fmt.Sprintf("%s[%d]", prefix, i), child, out)
		}
	case nil:
	default:
		if prefix == "" {
			*out = append(*out, fmt.Sprintf("%v", val))
			return
		}
		*out = append(*out, fmt.Sprintf("%s: %v", prefix, val))
	}
}

func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open XLSX: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		buf.WriteString(sheet)
		buf.WriteString("\n")
		for _, row := range rows {
			buf.WriteString(strings.Join(row, ", "))
			buf.WriteString("\n")
		}
	}
	return buf.String(), nil
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}
