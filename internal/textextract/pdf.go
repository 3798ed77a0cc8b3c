package textextract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"

	"github.com/yoockh/yoocv/internal/models"
)

// EinoPDF extracts PDF text in-process.
type EinoPDF struct {
	parser  *pdf.PDFParser
	timeout time.Duration
}

func NewEinoPDF(ctx context.Context) (*EinoPDF, error) {
	// whole document as one text, not per page
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("create pdf parser: %w", err)
	}
	return &EinoPDF{parser: p, timeout: 30 * time.Second}, nil
}

func (e *EinoPDF) Extract(ctx context.Context, fileType models.FileType, fileName string, data []byte) (string, error) {
	if fileType != models.FileTypePDF {
		return "", fmt.Errorf("eino pdf parser cannot read %s", fileType)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data), einoParser.WithURI(fileName))
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", fileName, err)
	}

	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(d.Content)
	}
	return b.String(), nil
}
