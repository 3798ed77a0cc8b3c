package textextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/utils"
)

var tikaContentTypes = map[models.FileType]string{
	models.FileTypePDF:  "application/pdf",
	models.FileTypeDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	models.FileTypeDOC:  "application/msword",
}

var errUnreadable = errors.New("document rejected by extractor")

// Tika is a minimal Apache Tika server client: PUT /tika with Accept: text/plain.
type Tika struct {
	baseURL    string
	httpClient *http.Client
	maxElapsed time.Duration
}

func NewTika(baseURL string, timeout time.Duration) *Tika {
	if baseURL == "" {
		baseURL = "http://localhost:9998"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Tika{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxElapsed: 20 * time.Second,
	}
}

func (t *Tika) Extract(ctx context.Context, fileType models.FileType, fileName string, data []byte) (string, error) {
	const op = "Tika.Extract"

	var out string
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.baseURL+"/tika", bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "text/plain")
		if ct := tikaContentTypes[fileType]; ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		if fileName != "" {
			req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if resp.StatusCode < 500 {
				return backoff.Permanent(fmt.Errorf("%w: tika status %d", errUnreadable, resp.StatusCode))
			}
			return fmt.Errorf("tika status %d", resp.StatusCode)
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		out = string(b)
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 250 * time.Millisecond
	expo.MaxElapsedTime = t.maxElapsed
	if err := backoff.Retry(call, backoff.WithContext(expo, ctx)); err != nil {
		if errors.Is(err, errUnreadable) {
			return "", utils.E(utils.CodeInvalidArgument, op, "document could not be read", err)
		}
		return "", utils.E(utils.CodeUnavailable, op, "text extraction service unavailable", err)
	}
	return out, nil
}
