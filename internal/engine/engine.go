// Package engine talks to the local whisper.cpp server and fetches model
// artifacts over HTTP. It implements model.Engine.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/murmurhq/murmur/internal/audio"
	"github.com/murmurhq/murmur/internal/model"
)

// DefaultBaseURL is where the bundled whisper.cpp server listens.
const DefaultBaseURL = "http://127.0.0.1:8771"

const downloadBufferSize = 32 * 1024

// Config wires a Client.
type Config struct {
	BaseURL    string
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client is the HTTP rendering of the inference engine.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New builds a Client around cfg.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{baseURL: baseURL, http: httpClient, logger: logger}
}

// Download fetches url to dest through a temp file, so dest either holds a
// complete artifact or does not exist.
func (c *Client) Download(ctx context.Context, url, dest string, onProgress func(done, total int64)) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}
	total := resp.ContentLength

	tmp := dest + ".partial"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", tmp, err)
	}

	cleanup := func() {
		_ = out.Close()
		_ = os.Remove(tmp)
	}

	var done int64
	buf := make([]byte, downloadBufferSize)
	for {
		if ctx.Err() != nil {
			cleanup()
			return "", ctx.Err()
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				cleanup()
				return "", fmt.Errorf("write %s: %w", tmp, err)
			}
			done += int64(n)
			if onProgress != nil {
				onProgress(done, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			cleanup()
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("read %s: %w", url, readErr)
		}
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("flush %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize %s: %w", dest, err)
	}

	c.logger.Info("artifact downloaded", "dest", filepath.Base(dest), "bytes", done)
	return dest, nil
}

// Load points the server at a model file. The server swaps models in place;
// the previous one is released on its side.
func (c *Client) Load(ctx context.Context, path string) (model.Handle, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("model", path); err != nil {
		return nil, fmt.Errorf("encode load request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("encode load request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/load", &body)
	if err != nil {
		return nil, fmt.Errorf("build load request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine load: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("engine load: status %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	c.logger.Info("engine loaded model", "path", filepath.Base(path))
	return &loadedModel{client: c}, nil
}

// Healthy probes the server without side effects.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engine unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine health: status %s", resp.Status)
	}
	return nil
}

// loadedModel is a Handle bound to whatever the server currently has
// loaded.
type loadedModel struct {
	client *Client
}

type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
	Error string `json:"error"`
}

func (l *loadedModel) Transcribe(ctx context.Context, samples []float32, language string, detect bool) ([]model.Segment, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("encode inference request: %w", err)
	}
	if _, err := part.Write(encodeWAV(samples, audio.TargetRate)); err != nil {
		return nil, fmt.Errorf("encode inference request: %w", err)
	}
	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.0",
	}
	if detect {
		fields["detect_language"] = "true"
	} else if language != "" {
		fields["language"] = language
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("encode inference request: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("encode inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.client.baseURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := l.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine inference: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine inference: status %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("parse inference response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("engine inference: %s", parsed.Error)
	}

	if len(parsed.Segments) == 0 {
		if strings.TrimSpace(parsed.Text) == "" {
			return nil, nil
		}
		return []model.Segment{{Text: parsed.Text, Language: parsed.Language}}, nil
	}

	segments := make([]model.Segment, 0, len(parsed.Segments))
	for _, segment := range parsed.Segments {
		segments = append(segments, model.Segment{Text: segment.Text, Language: parsed.Language})
	}
	return segments, nil
}

// Close is a no-op: the server owns the loaded model and releases it when
// the next load replaces it.
func (l *loadedModel) Close() error {
	return nil
}
