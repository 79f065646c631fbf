// Package whisper provides a transcriber backed by a local whisper
// inference server speaking the OpenAI-compatible transcriptions API.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"speech-transcription-service/internal/service/stt"
)

const transcriptionsPath = "/v1/audio/transcriptions"

// Client implements stt.Transcriber against a whisper inference server.
type Client struct {
	baseURL string
	model   string
	httpc   *http.Client
}

// New creates a client for the server at baseURL using the given model id.
func New(baseURL, model string) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		httpc:   &http.Client{Timeout: 10 * time.Minute},
	}
}

// serverResponse is the verbose_json body of the transcriptions endpoint.
type serverResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Error string `json:"error"`
}

// Transcribe posts the audio file as multipart form data and parses the
// verbose JSON response. A processing fault reported by the server surfaces
// as *stt.TranscriptionError; transport failures stay plain errors.
func (c *Client) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", c.model); err != nil {
		return nil, err
	}
	if err := mw.WriteField("language", req.Language); err != nil {
		return nil, err
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, err
	}
	if err := mw.WriteField("timestamp_granularities[]", "segment"); err != nil {
		return nil, err
	}
	if err := mw.WriteField("timestamps", strconv.FormatBool(req.WantTimestamps)); err != nil {
		return nil, err
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("copy audio into request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcriptionsPath, &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisper server request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read whisper server response: %w", err)
	}

	// 4xx means the server looked at the audio and refused it: a model-level
	// fault. 5xx means the server itself is broken.
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("whisper server http %d: %s", resp.StatusCode, raw)
	}
	if resp.StatusCode >= 400 {
		return nil, &stt.TranscriptionError{Reason: serverErrorReason(resp.StatusCode, raw)}
	}

	var parsed serverResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse whisper server response: %w", err)
	}
	if parsed.Error != "" {
		return nil, &stt.TranscriptionError{Reason: parsed.Error}
	}

	result := &stt.Result{Text: parsed.Text}
	if req.WantTimestamps {
		for _, s := range parsed.Segments {
			result.Chunks = append(result.Chunks, stt.Chunk{
				Start: s.Start,
				End:   s.End,
				Text:  s.Text,
			})
		}
	}
	return result, nil
}

// Close releases nothing; the HTTP client holds no resources worth closing.
func (c *Client) Close() error {
	return nil
}

func serverErrorReason(status int, raw []byte) string {
	var parsed serverResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return fmt.Sprintf("whisper server rejected audio (http %d)", status)
}
