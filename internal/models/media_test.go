package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaJSON_EmbedsPublicOwner(t *testing.T) {
	owner := &Profile{ID: 4, Email: "nodira@aiverse.local", Username: "nodira", FullName: "Nodira", IsAdmin: true}
	desc := "Lanterns"

	tests := []struct {
		name string
		v    any
		key  string
	}{
		{"image", &Image{ID: 1, UserID: 4, Owner: owner, Title: "Night market", Description: &desc}, "owner"},
		{"image value", Image{ID: 1, UserID: 4, Owner: owner}, "owner"},
		{"video", &Video{ID: 2, UserID: 4, Owner: owner}, "owner"},
		{"music", &Music{ID: 3, UserID: 4, Owner: owner, CoverURL: "https://cdn.example/c.jpg"}, "owner"},
		{"comment", &ImageComment{ID: 5, ImageID: 1, UserID: 4, Author: owner, Content: "wow"}, "author"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.v)
			require.NoError(t, err)

			var out map[string]any
			require.NoError(t, json.Unmarshal(raw, &out))
			assert.Equal(t, float64(4), out["user_id"])
			p, ok := out[tt.key].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, map[string]any{
				"id": float64(4), "username": "nodira", "full_name": "Nodira", "avatar_url": "",
			}, p)
			assert.NotContains(t, string(raw), "nodira@aiverse.local")
		})
	}
}

func TestMediaJSON_OmitsMissingOwner(t *testing.T) {
	raw, err := json.Marshal(&Music{ID: 3, Title: "Drift", CoverURL: "https://cdn.example/c.jpg"})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.NotContains(t, out, "owner")
	assert.Equal(t, "https://cdn.example/c.jpg", out["image_url"])
	assert.Equal(t, "Drift", out["title"])
}
