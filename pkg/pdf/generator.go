package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Document is the content of one rendered act.
type Document struct {
	HeaderLines []string
	Title       string
	Subtitle    string
	Body        string
	// Signature lines are printed centered after the body.
	Signature []string
	Footer    string
}

// Generator renders a Document to PDF bytes.
type Generator interface {
	Generate(ctx context.Context, doc Document) ([]byte, error)
}

// Options configures the page layout.
type Options struct {
	PageSize      string
	FontFamily    string
	FontSize      float64
	TitleFontSize float64
	LineHeight    float64
	Margins       Margins
}

// Margins represents page margins in millimetres
type Margins struct {
	Left   float64
	Right  float64
	Top    float64
	Bottom float64
}

// DefaultOptions returns an A4 layout in Arial.
func DefaultOptions() Options {
	return Options{
		PageSize:      "A4",
		FontFamily:    "Arial",
		FontSize:      11,
		TitleFontSize: 13,
		LineHeight:    6,
		Margins: Margins{
			Left:   30,
			Right:  20,
			Top:    25,
			Bottom: 20,
		},
	}
}

type gofpdfGenerator struct {
	options Options
}

func NewGenerator(options Options) Generator {
	return &gofpdfGenerator{options: options}
}

func (g *gofpdfGenerator) Generate(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Body) == "" {
		return nil, fmt.Errorf("document body is empty")
	}

	o := g.options
	pdf := gofpdf.New("P", "mm", o.PageSize, "")
	pdf.SetMargins(o.Margins.Left, o.Margins.Top, o.Margins.Right)
	pdf.SetAutoPageBreak(true, o.Margins.Bottom)
	pdf.SetTitle(doc.Title, true)
	// Core fonts are cp1252; this maps accented UTF-8 text onto them.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if doc.Footer != "" {
		pdf.SetFooterFunc(func() {
			pdf.SetY(-15)
			pdf.SetFont(o.FontFamily, "I", o.FontSize-3)
			pdf.SetTextColor(128, 128, 128)
			pdf.CellFormat(0, 5, tr(doc.Footer), "", 0, "C", false, 0, "")
		})
	}

	pdf.AddPage()

	pdf.SetFont(o.FontFamily, "B", o.FontSize)
	for _, line := range doc.HeaderLines {
		pdf.CellFormat(0, o.LineHeight, tr(line), "", 1, "C", false, 0, "")
	}
	if len(doc.HeaderLines) > 0 {
		pdf.Ln(o.LineHeight)
	}

	pdf.SetFont(o.FontFamily, "B", o.TitleFontSize)
	pdf.MultiCell(0, o.LineHeight+1, tr(doc.Title), "", "C", false)
	if doc.Subtitle != "" {
		pdf.SetFont(o.FontFamily, "I", o.FontSize)
		pdf.MultiCell(0, o.LineHeight, tr(doc.Subtitle), "", "C", false)
	}
	pdf.Ln(o.LineHeight)

	pdf.SetFont(o.FontFamily, "", o.FontSize)
	for _, paragraph := range strings.Split(doc.Body, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			pdf.Ln(o.LineHeight / 2)
			continue
		}
		pdf.MultiCell(0, o.LineHeight, tr(paragraph), "", "J", false)
	}

	if len(doc.Signature) > 0 {
		pdf.Ln(o.LineHeight * 3)
		for _, line := range doc.Signature {
			pdf.CellFormat(0, o.LineHeight, tr(line), "", 1, "C", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
