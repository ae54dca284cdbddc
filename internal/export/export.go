// Package export renders a finished transcript for download as plain text
// or as an Excel workbook.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"media-transcript-go/internal/types"
)

// Format is a supported download format.
type Format string

const (
	FormatText Format = "txt"
	FormatXLSX Format = "xlsx"
)

const (
	sheetTranscript  = "Transcript"
	sheetTranslation = "Translation"
	sheetInfo        = "Info"
)

// Document is everything a download may contain.
type Document struct {
	Identity       string
	Transcript     string
	Pieces         []types.TranscriptPiece
	Strategy       types.Strategy
	Translation    string
	TargetLanguage string
	CreatedAt      time.Time
}

// ParseFormat accepts "txt", "text" and "xlsx"; empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/plain; charset=utf-8"
}

// FileName derives a download name from the input identity.
func FileName(identity string, f Format) string {
	base := "transcript"
	if identity != "" && !strings.Contains(identity, "://") {
		stem := strings.TrimSuffix(filepath.Base(identity), filepath.Ext(identity))
		if stem != "" && stem != "." {
			base = stem + "_transcript"
		}
	}
	return base + "." + string(f)
}

// Write renders doc in format f.
func Write(w io.Writer, doc Document, f Format) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, doc)
	default:
		return WriteText(w, doc)
	}
}

// WriteText writes the transcript, followed by the translation when present.
func WriteText(w io.Writer, doc Document) error {
	if doc.Transcript == "" {
		return fmt.Errorf("export: no transcript")
	}
	var b strings.Builder
	b.WriteString(doc.Transcript)
	if !strings.HasSuffix(doc.Transcript, "\n") {
		b.WriteString("\n")
	}
	if doc.Translation != "" {
		fmt.Fprintf(&b, "\n--- translation (%s) ---\n", doc.TargetLanguage)
		b.WriteString(doc.Translation)
		if !strings.HasSuffix(doc.Translation, "\n") {
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteXLSX writes a workbook with one row per transcript piece, the
// translation (if any), and an info sheet.
func WriteXLSX(w io.Writer, doc Document) error {
	if doc.Transcript == "" {
		return fmt.Errorf("export: no transcript")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetTranscript); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	rows := [][]any{{"Part", "Text"}}
	pieces := doc.Pieces
	if len(pieces) == 0 {
		pieces = []types.TranscriptPiece{{Ordinal: types.WholeFile, Text: doc.Transcript}}
	}
	for _, p := range pieces {
		rows = append(rows, []any{partLabel(p.Ordinal), p.Text})
	}
	if err := writeRows(f, sheetTranscript, rows); err != nil {
		return err
	}

	if doc.Translation != "" {
		if _, err := f.NewSheet(sheetTranslation); err != nil {
			return fmt.Errorf("add sheet: %w", err)
		}
		if err := writeRows(f, sheetTranslation, [][]any{{"Language", "Text"}, {doc.TargetLanguage, doc.Translation}}); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(sheetInfo); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	info := [][]any{
		{"Input", doc.Identity},
		{"Strategy", string(doc.Strategy)},
		{"Parts", len(pieces)},
		{"Created", created.Format(time.RFC3339)},
	}
	if err := writeRows(f, sheetInfo, info); err != nil {
		return err
	}

	if err := f.SetColWidth(sheetTranscript, "B", "B", 100); err != nil {
		return fmt.Errorf("set width: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func partLabel(ordinal int) string {
	if ordinal == types.WholeFile {
		return "whole"
	}
	return fmt.Sprintf("%d", ordinal+1)
}
