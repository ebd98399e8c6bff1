// Package api talks to the results server that collects agreement reports.
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/collision-benchmark/pkg/core"
)

const (
	healthPath = "/healthcheck"
	uploadPath = "/api/v1/reports/add"
)

// Client uploads agreement reports to a results server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck returns an error unless the server answers 200.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + healthPath)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// reportFields are the form fields sent with a report, in order.
func reportFields(meta core.UploadMetadata) [][2]string {
	return [][2]string{
		{"runId", meta.RunID.String()},
		{"model1", meta.Model1},
		{"model2", meta.Model2},
		{"engines", strings.Join(meta.Engines, ",")},
		{"cells", strconv.Itoa(meta.Cells)},
		{"failures", strconv.Itoa(meta.Failures)},
		{"duration", strconv.FormatFloat(meta.Duration, 'f', 3, 64)},
	}
}

// Upload posts the report at path with its run metadata as a multipart form.
// The body is streamed from the file.
func (c *Client) Upload(path string, meta core.UploadMetadata) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	name := filepath.Base(path)

	written := make(chan error, 1)
	go func() {
		err := writeForm(form, c.apiKey, name, meta, file)
		if cerr := form.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
		written <- err
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		pr.Close()
		<-written
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		<-written
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	// unblocks the writer when the server answered before reading the body
	pr.Close()
	werr := <-written
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload of %s returned status %d", name, resp.StatusCode)
	}
	return werr
}

func writeForm(form *multipart.Writer, secret, name string, meta core.UploadMetadata, report io.Reader) error {
	fields := append([][2]string{{"secret", secret}, {"filename", name}}, reportFields(meta)...)
	for _, f := range fields {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, report); err != nil {
		return fmt.Errorf("failed to copy report: %w", err)
	}
	return nil
}
