// Package textextract turns uploaded document bytes into plain text for the
// structured-data extractor.
package textextract

import (
	"context"
	"fmt"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/utils"
)

type Extractor interface {
	Extract(ctx context.Context, fileType models.FileType, fileName string, data []byte) (string, error)
}

// Chain routes PDFs to the local parser and Word formats to Tika. A PDF falls
// back to Tika when the local parser fails or yields no text.
type Chain struct {
	PDF  Extractor
	Tika Extractor
}

func (c *Chain) Extract(ctx context.Context, fileType models.FileType, fileName string, data []byte) (string, error) {
	const op = "textextract.Extract"

	switch fileType {
	case models.FileTypePDF:
		if c.PDF != nil {
			text, err := c.PDF.Extract(ctx, fileType, fileName, data)
			if err == nil && hasText(text) {
				return text, nil
			}
			if c.Tika == nil {
				if err == nil {
					return text, nil
				}
				return "", utils.E(utils.CodeUnavailable, op, "failed to extract text", err)
			}
		}
	case models.FileTypeDOCX, models.FileTypeDOC:
	default:
		return "", utils.E(utils.CodeUnsupported, op, fmt.Sprintf("unsupported file type %q", fileType), nil)
	}

	if c.Tika == nil {
		return "", utils.E(utils.CodeUnavailable, op, "no text extractor configured for "+string(fileType), nil)
	}
	text, err := c.Tika.Extract(ctx, fileType, fileName, data)
	if err != nil {
		if utils.CodeOf(err) != utils.CodeInternal {
			return "", err
		}
		return "", utils.E(utils.CodeUnavailable, op, "failed to extract text", err)
	}
	return text, nil
}

func hasText(s string) bool {
	for _, r := range s {
		if r > ' ' {
			return true
		}
	}
	return false
}
