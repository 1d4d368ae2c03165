package api

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"
)

// ListOTSLetters returns the names of the settlement letters (PDF) the
// backend generated.
func (c *Client) ListOTSLetters(ctx context.Context, token string) ([]string, error) {
	var res struct {
		PDFs []string `json:"pdfs"`
	}
	if err := c.getJSON(ctx, "list_ots_letters", "/api/ots-pdfs", token, &res); err != nil {
		return nil, err
	}
	return res.PDFs, nil
}

// DownloadOTSLetter copies the settlement letter name into w.
func (c *Client) DownloadOTSLetter(ctx context.Context, token, name string, w io.Writer) error {
	return c.download(ctx, "download_ots_letter", "/api/ots-pdfs/"+url.PathEscape(name), token, w)
}

// DownloadProjection copies the spreadsheet projection of month into w.
func (c *Client) DownloadProjection(ctx context.Context, token, month string, w io.Writer) error {
	return c.download(ctx, "download_projection", "/api/projections/"+url.PathEscape(month), token, w)
}

func (c *Client) download(ctx context.Context, op, path, token string, w io.Writer) error {
	start := time.Now()
	resp, err := c.do(ctx, request{operation: op, method: fasthttp.MethodGet, path: path, token: token})
	if err != nil {
		return err
	}
	if err := c.classify(op, resp, start); err != nil {
		return err
	}
	if _, err := w.Write(resp.body); err != nil {
		return fmt.Errorf("%s: cannot write file: %w", op, err)
	}
	c.observe(op, outcomeOK, start)
	return nil
}
