package generation

import (
	"context"
	"strings"

	"github.com/aslbekqoziboyev/aiverselabs/internal/functions"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/validation"
)

// Hooks observe a running generation. Both are optional.
type Hooks struct {
	OnSubmit func(providerJobID string)
	OnTick   func(Progress)
}

func (h Hooks) submitted(id string) {
	if h.OnSubmit != nil {
		h.OnSubmit(id)
	}
}

// Result is the outcome of a successful generation.
type Result struct {
	ProviderJobID string `json:"provider_job_id,omitempty"`
	URL           string `json:"url"`
	Title         string `json:"title,omitempty"`
	CoverURL      string `json:"cover_url,omitempty"`
}

// Generator produces one piece of media from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, hooks Hooks) (Result, error)
}

func normalizePrompt(prompt string) (string, error) {
	p, err := validation.NormalizePrompt(prompt)
	if err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return p, nil
}

// VideoGenerator submits to generate-video and polls check-video-status.
type VideoGenerator struct {
	Invoker Invoker
	Polling PollConfig
}

// NewVideoGenerator uses the standard video polling constants.
func NewVideoGenerator(inv Invoker) *VideoGenerator {
	return &VideoGenerator{Invoker: inv, Polling: VideoPolling}
}

func (g *VideoGenerator) Generate(ctx context.Context, prompt string, hooks Hooks) (Result, error) {
	p, err := normalizePrompt(prompt)
	if err != nil {
		return Result{}, err
	}

	var started functions.VideoStartResponse
	if err := g.Invoker.Invoke(ctx, functions.GenerateVideo, functions.PromptRequest{Prompt: p}, &started); err != nil {
		return Result{}, models.NewRemoteCallError(functions.GenerateVideo, err)
	}
	if started.PredictionID == "" {
		return Result{}, models.NewGenerationFailedError("provider returned no prediction id")
	}
	hooks.submitted(started.PredictionID)

	check := func(ctx context.Context) (string, bool, error) {
		var status functions.VideoStatusResponse
		req := functions.VideoStatusRequest{PredictionID: started.PredictionID}
		if err := g.Invoker.Invoke(ctx, functions.CheckVideoStatus, req, &status); err != nil {
			return "", false, models.NewRemoteCallError(functions.CheckVideoStatus, err)
		}
		switch status.Status {
		case "succeeded":
			url := status.OutputURL()
			if url == "" {
				return "", false, models.NewGenerationFailedError("provider returned no video")
			}
			return url, true, nil
		case "failed", "canceled":
			return "", false, models.NewGenerationFailedError(status.ErrorMessage())
		default:
			return "", false, nil
		}
	}

	url, err := Poll(ctx, g.Polling, check, hooks.OnTick)
	if err != nil {
		return Result{}, err
	}
	return Result{ProviderJobID: started.PredictionID, URL: url}, nil
}

// MusicGenerator submits to generate-music and polls check-music-status for the first clip.
type MusicGenerator struct {
	Invoker Invoker
	Polling PollConfig
}

// NewMusicGenerator uses the standard music polling constants.
func NewMusicGenerator(inv Invoker) *MusicGenerator {
	return &MusicGenerator{Invoker: inv, Polling: MusicPolling}
}

func (g *MusicGenerator) Generate(ctx context.Context, prompt string, hooks Hooks) (Result, error) {
	p, err := normalizePrompt(prompt)
	if err != nil {
		return Result{}, err
	}

	var started functions.MusicStartResponse
	if err := g.Invoker.Invoke(ctx, functions.GenerateMusic, functions.PromptRequest{Prompt: p}, &started); err != nil {
		return Result{}, models.NewRemoteCallError(functions.GenerateMusic, err)
	}
	if len(started.ClipIDs) == 0 {
		return Result{}, models.NewGenerationFailedError("provider returned no clips")
	}
	clipID := started.ClipIDs[0]
	hooks.submitted(clipID)

	check := func(ctx context.Context) (Result, bool, error) {
		var status functions.MusicStatusResponse
		req := functions.MusicStatusRequest{ClipIDs: []string{clipID}}
		if err := g.Invoker.Invoke(ctx, functions.CheckMusicStatus, req, &status); err != nil {
			return Result{}, false, models.NewRemoteCallError(functions.CheckMusicStatus, err)
		}
		switch strings.ToLower(status.Status) {
		case "complete":
			if status.AudioURL == "" {
				return Result{}, false, models.NewGenerationFailedError("provider returned no audio")
			}
			return Result{ProviderJobID: clipID, URL: status.AudioURL, Title: status.Title, CoverURL: status.ImageURL}, true, nil
		case "failed", "error":
			return Result{}, false, models.NewGenerationFailedError("music generation " + status.Status)
		default:
			return Result{}, false, nil
		}
	}

	return Poll(ctx, g.Polling, check, hooks.OnTick)
}

// ImageGenerator makes a single generate-image call; there is nothing to poll.
type ImageGenerator struct {
	Invoker Invoker
}

func NewImageGenerator(inv Invoker) *ImageGenerator {
	return &ImageGenerator{Invoker: inv}
}

func (g *ImageGenerator) Generate(ctx context.Context, prompt string, _ Hooks) (Result, error) {
	p, err := normalizePrompt(prompt)
	if err != nil {
		return Result{}, err
	}
	var out functions.ImageResponse
	if err := g.Invoker.Invoke(ctx, functions.GenerateImage, functions.PromptRequest{Prompt: p}, &out); err != nil {
		return Result{}, models.NewRemoteCallError(functions.GenerateImage, err)
	}
	if out.ImageURL == "" {
		return Result{}, models.NewGenerationFailedError("provider returned no image")
	}
	return Result{URL: out.ImageURL}, nil
}
