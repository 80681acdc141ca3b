package functions

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

const sunoProvider = "Suno"

type sunoClip struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	AudioURL string `json:"audio_url"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
}

func (r *Registry) sunoKey() (string, error) {
	if r.cfg.SunoAPIKey == "" {
		return "", errors.New("SUNO_API_KEY is not configured")
	}
	return r.cfg.SunoAPIKey, nil
}

// GenerateMusic starts a Suno generation and returns the clip ids to poll.
func (r *Registry) GenerateMusic(ctx context.Context, req PromptRequest) (MusicStartResponse, error) {
	prompt, err := requirePrompt(req)
	if err != nil {
		return MusicStartResponse{}, err
	}
	key, err := r.sunoKey()
	if err != nil {
		return MusicStartResponse{}, err
	}

	payload := map[string]any{
		"prompt":            prompt,
		"make_instrumental": false,
		"wait_audio":        false,
	}
	var clips []sunoClip
	headers := map[string]string{"Authorization": "Bearer " + key}
	if err := r.doJSON(ctx, sunoProvider, http.MethodPost, r.cfg.SunoGenerateURL, headers, payload, &clips); err != nil {
		return MusicStartResponse{}, err
	}

	ids := make([]string, 0, len(clips))
	for _, c := range clips {
		if c.ID != "" {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return MusicStartResponse{}, errors.New("Suno API returned no clips")
	}
	return MusicStartResponse{ClipIDs: ids, Status: "generating"}, nil
}

// CheckMusicStatus reports the status of the first clip; media fields are set once it is complete.
func (r *Registry) CheckMusicStatus(ctx context.Context, req MusicStatusRequest) (MusicStatusResponse, error) {
	if len(req.ClipIDs) == 0 || strings.TrimSpace(req.ClipIDs[0]) == "" {
		return MusicStatusResponse{}, errors.New("clipIds is required")
	}
	key, err := r.sunoKey()
	if err != nil {
		return MusicStatusResponse{}, err
	}

	endpoint, err := url.Parse(r.cfg.SunoStatusURL)
	if err != nil {
		return MusicStatusResponse{}, err
	}
	q := endpoint.Query()
	q.Set("ids", strings.TrimSpace(req.ClipIDs[0]))
	endpoint.RawQuery = q.Encode()

	var clips []sunoClip
	if err := r.doJSON(ctx, sunoProvider, http.MethodGet, endpoint.String(), map[string]string{"api-key": key}, nil, &clips); err != nil {
		return MusicStatusResponse{}, err
	}
	if len(clips) == 0 {
		return MusicStatusResponse{}, errors.New("Suno API returned no clip status")
	}

	clip := clips[0]
	if clip.Status == "complete" {
		return MusicStatusResponse{
			Status:   "complete",
			AudioURL: clip.AudioURL,
			Title:    clip.Title,
			ImageURL: clip.ImageURL,
		}, nil
	}
	status := clip.Status
	if status == "" {
		status = "generating"
	}
	return MusicStatusResponse{Status: status}, nil
}
