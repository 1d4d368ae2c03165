package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/etnz/loandash"
)

// UploadResult is the backend's answer to an accepted CSV.
type UploadResult struct {
	Status         string   `json:"status"`
	Month          string   `json:"month"`
	LoansParsed    int      `json:"loans_parsed"`
	FilesGenerated []string `json:"files_generated"`
}

// UploadCSV sends one statement export for month.
//
// A 401 is loandash.ErrUnauthorized. Any other non-2xx is a
// *loandash.ValidationError whose message is the backend's "detail", else its
// "error", else loandash.FallbackUploadMessage.
func (c *Client) UploadCSV(ctx context.Context, token, filename string, content io.Reader, month string) (UploadResult, error) {
	const op = "upload_csv"
	start := time.Now()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%s: cannot build form: %w", op, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResult{}, fmt.Errorf("%s: cannot read %q: %w", op, filename, err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("%s: cannot build form: %w", op, err)
	}

	path := "/api/upload-csv"
	if month != "" {
		path += "?" + url.Values{"month_name": {month}}.Encode()
	}
	resp, err := c.do(ctx, request{
		operation:   op,
		method:      fasthttp.MethodPost,
		path:        path,
		token:       token,
		contentType: mw.FormDataContentType(),
		body:        buf.Bytes(),
	})
	if err != nil {
		return UploadResult{}, err
	}
	if resp.status == fasthttp.StatusUnauthorized {
		c.observe(op, outcomeUnauthorized, start)
		return UploadResult{}, fmt.Errorf("%s: %w", op, loandash.ErrUnauthorized)
	}
	if !resp.ok() {
		c.observe(op, outcomeRejected, start)
		msg := errorMessage(resp.body)
		if msg == "" {
			msg = loandash.FallbackUploadMessage
		}
		return UploadResult{}, &loandash.ValidationError{Status: resp.status, Message: msg}
	}
	var res UploadResult
	if err := json.Unmarshal(resp.body, &res); err != nil {
		c.observe(op, outcomeDecode, start)
		return UploadResult{}, &loandash.ServerError{Operation: op, Status: resp.status, Err: err}
	}
	c.observe(op, outcomeOK, start)
	return res, nil
}
