// Package functions implements the serverless proxy functions that forward
// generation requests to Replicate and Suno. They keep no state between calls
// beyond the provider's job id handed back to the caller.
package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/config"
	"github.com/aslbekqoziboyev/aiverselabs/internal/middleware"
	"github.com/aslbekqoziboyev/aiverselabs/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Function names as mounted under /functions/v1/.
const (
	GenerateImage    = "generate-image"
	GenerateVideo    = "generate-video"
	CheckVideoStatus = "check-video-status"
	GenerateMusic    = "generate-music"
	CheckMusicStatus = "check-music-status"
)

// ErrUnknownFunction is returned by Invoke for names that are not registered.
var ErrUnknownFunction = errors.New("unknown function")

// Config holds provider credentials and endpoints.
type Config struct {
	ReplicateAPIKey  string
	ReplicateBaseURL string
	VideoModel       string
	ImageModel       string
	SunoAPIKey       string
	SunoGenerateURL  string
	SunoStatusURL    string
	Timeout          time.Duration
}

// ConfigFrom maps application config onto provider config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ReplicateAPIKey:  cfg.ReplicateAPIKey,
		ReplicateBaseURL: cfg.ReplicateBaseURL,
		VideoModel:       cfg.ReplicateVideoModel,
		ImageModel:       cfg.ReplicateImageModel,
		SunoAPIKey:       cfg.SunoAPIKey,
		SunoGenerateURL:  cfg.SunoGenerateURL,
		SunoStatusURL:    cfg.SunoStatusURL,
		Timeout:          time.Duration(cfg.ProviderTimeoutSeconds) * time.Second,
	}
}

// PromptRequest is the body of generate-image, generate-video and generate-music.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// ImageResponse is returned by generate-image.
type ImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// VideoStartResponse is returned by generate-video.
type VideoStartResponse struct {
	PredictionID string `json:"predictionId"`
}

// VideoStatusRequest is the body of check-video-status.
type VideoStatusRequest struct {
	PredictionID string `json:"predictionId"`
}

// VideoStatusResponse mirrors the provider's prediction. Output and Error are
// passed through untouched; use OutputURL and ErrorMessage to read them.
type VideoStatusResponse struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// OutputURL returns the first URL in Output, which may be a string or a list.
func (r VideoStatusResponse) OutputURL() string {
	return firstURL(r.Output)
}

// ErrorMessage returns the provider error as text, empty when absent.
func (r VideoStatusResponse) ErrorMessage() string {
	if len(r.Error) == 0 || string(r.Error) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Error, &s); err == nil {
		return s
	}
	return string(r.Error)
}

// MusicStartResponse is returned by generate-music.
type MusicStartResponse struct {
	ClipIDs []string `json:"clipIds"`
	Status  string   `json:"status"`
}

// MusicStatusRequest is the body of check-music-status.
type MusicStatusRequest struct {
	ClipIDs []string `json:"clipIds"`
}

// MusicStatusResponse is returned by check-music-status. The media fields are
// only set once the clip is complete.
type MusicStatusResponse struct {
	Status   string `json:"status"`
	AudioURL string `json:"audioUrl,omitempty"`
	Title    string `json:"title,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Registry dispatches function calls by name.
type Registry struct {
	cfg      Config
	client   *http.Client
	handlers map[string]func(ctx context.Context, body []byte) (any, error)
}

// NewRegistry builds the five functions. A nil client gets one bounded by cfg.Timeout.
func NewRegistry(cfg Config, client *http.Client) *Registry {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	r := &Registry{cfg: cfg, client: client}
	r.handlers = map[string]func(context.Context, []byte) (any, error){
		GenerateImage: func(ctx context.Context, body []byte) (any, error) {
			var req PromptRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return r.GenerateImage(ctx, req)
		},
		GenerateVideo: func(ctx context.Context, body []byte) (any, error) {
			var req PromptRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return r.GenerateVideo(ctx, req)
		},
		CheckVideoStatus: func(ctx context.Context, body []byte) (any, error) {
			var req VideoStatusRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return r.CheckVideoStatus(ctx, req)
		},
		GenerateMusic: func(ctx context.Context, body []byte) (any, error) {
			var req PromptRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return r.GenerateMusic(ctx, req)
		},
		CheckMusicStatus: func(ctx context.Context, body []byte) (any, error) {
			var req MusicStatusRequest
			if err := decode(body, &req); err != nil {
				return nil, err
			}
			return r.CheckMusicStatus(ctx, req)
		},
	}
	return r
}

// Names lists the registered functions.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a registered function.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Invoke runs the named function with a raw JSON body.
func (r *Registry) Invoke(ctx context.Context, name string, body []byte) (any, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}

	span, ctx := observability.NewSpan(ctx, "function."+name)
	defer span.End()
	start := time.Now()

	result, err := handler(ctx, body)

	observability.ProviderCallLatency.WithLabelValues(name, observability.Outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetError(err)
		middleware.Logger.ErrorContext(ctx, "function failed",
			slog.String("function", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	span.AddAttributes(attribute.String("function.name", name))
	return result, nil
}

func decode(body []byte, dest any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("request body is required")
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func requirePrompt(req PromptRequest) (string, error) {
	p := strings.TrimSpace(req.Prompt)
	if p == "" {
		return "", errors.New("prompt is required")
	}
	return p, nil
}

// doJSON sends a request and decodes a 2xx JSON response into dest.
// Non-2xx responses become an error carrying the provider label, status and body.
func (r *Registry) doJSON(ctx context.Context, provider, method, url string, headers map[string]string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	span, ctx := observability.StartProviderSpan(ctx, provider, method+" "+req.URL.Path)
	defer span.End()
	req = req.WithContext(ctx)

	resp, err := r.client.Do(req)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("%s API request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s API read failed: %w", provider, err)
	}
	span.AddAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("%s API error: %d - %s", provider, resp.StatusCode, strings.TrimSpace(string(raw)))
		span.SetError(err)
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%s API returned invalid JSON: %w", provider, err)
	}
	return nil
}

func firstURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, u := range list {
			if u != "" {
				return u
			}
		}
	}
	return ""
}
