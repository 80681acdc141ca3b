package functions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const replicateProvider = "Replicate"

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

func (r *Registry) replicateHeaders() (map[string]string, error) {
	if r.cfg.ReplicateAPIKey == "" {
		return nil, errors.New("REPLICATE_API_KEY is not configured")
	}
	return map[string]string{"Authorization": "Token " + r.cfg.ReplicateAPIKey}, nil
}

func (r *Registry) replicateURL(parts ...string) string {
	base := strings.TrimRight(r.cfg.ReplicateBaseURL, "/")
	if base == "" {
		base = "https://api.replicate.com/v1"
	}
	return base + "/" + strings.Join(parts, "/")
}

func (r *Registry) createPrediction(ctx context.Context, model, prompt string, wait bool) (replicatePrediction, error) {
	headers, err := r.replicateHeaders()
	if err != nil {
		return replicatePrediction{}, err
	}
	if model == "" {
		return replicatePrediction{}, errors.New("replicate model is not configured")
	}
	if wait {
		headers["Prefer"] = "wait"
	}

	var pred replicatePrediction
	payload := map[string]any{"input": map[string]string{"prompt": prompt}}
	if err := r.doJSON(ctx, replicateProvider, http.MethodPost, r.replicateURL("models", model, "predictions"), headers, payload, &pred); err != nil {
		return replicatePrediction{}, err
	}
	return pred, nil
}

// GenerateImage creates a prediction with the image model and waits for its output URL.
func (r *Registry) GenerateImage(ctx context.Context, req PromptRequest) (ImageResponse, error) {
	prompt, err := requirePrompt(req)
	if err != nil {
		return ImageResponse{}, err
	}
	pred, err := r.createPrediction(ctx, r.cfg.ImageModel, prompt, true)
	if err != nil {
		return ImageResponse{}, err
	}
	if pred.Status == "failed" || pred.Status == "canceled" {
		msg := VideoStatusResponse{Error: pred.Error}.ErrorMessage()
		if msg == "" {
			msg = pred.Status
		}
		return ImageResponse{}, fmt.Errorf("image generation failed: %s", msg)
	}
	imageURL := firstURL(pred.Output)
	if imageURL == "" {
		return ImageResponse{}, errors.New("image generation did not return an image")
	}
	return ImageResponse{ImageURL: imageURL}, nil
}

// GenerateVideo submits a prediction with the video model and returns its id for polling.
func (r *Registry) GenerateVideo(ctx context.Context, req PromptRequest) (VideoStartResponse, error) {
	prompt, err := requirePrompt(req)
	if err != nil {
		return VideoStartResponse{}, err
	}
	pred, err := r.createPrediction(ctx, r.cfg.VideoModel, prompt, false)
	if err != nil {
		return VideoStartResponse{}, err
	}
	if pred.ID == "" {
		return VideoStartResponse{}, errors.New("Replicate API returned no prediction id")
	}
	return VideoStartResponse{PredictionID: pred.ID}, nil
}

// CheckVideoStatus fetches a prediction and relays status, output and error.
func (r *Registry) CheckVideoStatus(ctx context.Context, req VideoStatusRequest) (VideoStatusResponse, error) {
	id := strings.TrimSpace(req.PredictionID)
	if id == "" {
		return VideoStatusResponse{}, errors.New("predictionId is required")
	}
	headers, err := r.replicateHeaders()
	if err != nil {
		return VideoStatusResponse{}, err
	}

	var pred replicatePrediction
	if err := r.doJSON(ctx, replicateProvider, http.MethodGet, r.replicateURL("predictions", url.PathEscape(id)), headers, nil, &pred); err != nil {
		return VideoStatusResponse{}, err
	}
	return VideoStatusResponse{Status: pred.Status, Output: pred.Output, Error: pred.Error}, nil
}
