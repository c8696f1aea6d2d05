// Package pdf liest Seitenzahl und eine Textvorschau aus hochgeladenen PDF-Materialien.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PreviewLength begrenzt die Vorschau (in Zeichen)
const PreviewLength = 500

// Info enthält die Metadaten einer PDF-Datei
type Info struct {
	PageCount int
	Preview   string
}

// IsPDF prüft Content-Type oder Dateiendung
func IsPDF(contentType, filename string) bool {
	return contentType == "application/pdf" || strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

// Inspect parst PDF-Bytes (für Uploads)
func Inspect(data []byte) (info *Info, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			info, err = nil, fmt.Errorf("fehler beim Lesen der PDF: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("fehler beim Lesen der PDF: %w", err)
	}

	return &Info{PageCount: r.NumPage(), Preview: preview(r, PreviewLength)}, nil
}

// preview sammelt Text bis limit Zeichen. Seiten, die nicht lesbar sind, werden übersprungen.
func preview(r *pdf.Reader, limit int) string {
	var content strings.Builder
	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		text := pageText(r, pageNum)
		if text == "" {
			continue
		}
		if content.Len() > 0 {
			content.WriteString(" ")
		}
		content.WriteString(text)
		if content.Len() >= limit*4 {
			break
		}
	}

	collapsed := strings.Join(strings.Fields(content.String()), " ")
	runes := []rune(collapsed)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return collapsed
}

func pageText(r *pdf.Reader, pageNum int) (text string) {
	// die Bibliothek panict bei kaputten Content-Streams
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	page := r.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	t, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return t
}
