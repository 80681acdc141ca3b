package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/catalog.yaml
var catalogYAML []byte

// Catalog is the hand-written demo content.
type Catalog struct {
	Profiles []ProfileFixture `yaml:"profiles"`
	Images   []MediaFixture   `yaml:"images"`
	Videos   []MediaFixture   `yaml:"videos"`
	Music    []MediaFixture   `yaml:"music"`
}

// ProfileFixture is one demo account.
type ProfileFixture struct {
	Username string `yaml:"username"`
	FullName string `yaml:"full_name"`
	Email    string `yaml:"email"`
	Admin    bool   `yaml:"admin"`
}

// MediaFixture is one gallery item owned by a fixture profile.
type MediaFixture struct {
	Owner       string   `yaml:"owner"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Prompt      string   `yaml:"prompt"`
	URL         string   `yaml:"url"`
	CoverURL    string   `yaml:"cover_url"`
	Tags        []string `yaml:"tags"`
}

// LoadCatalog parses the embedded catalogue and checks every owner exists.
func LoadCatalog() (*Catalog, error) {
	return parseCatalog(catalogYAML)
}

func parseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}

	owners := make(map[string]struct{}, len(c.Profiles))
	for _, p := range c.Profiles {
		owners[p.Username] = struct{}{}
	}
	for section, items := range map[string][]MediaFixture{"images": c.Images, "videos": c.Videos, "music": c.Music} {
		for _, it := range items {
			if _, ok := owners[it.Owner]; !ok {
				return nil, fmt.Errorf("seed catalog: %s item %q has unknown owner %q", section, it.Title, it.Owner)
			}
			if it.URL == "" {
				return nil, fmt.Errorf("seed catalog: %s item %q has no url", section, it.Title)
			}
		}
	}
	return &c, nil
}
