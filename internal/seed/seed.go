// Package seed fills a database with demo profiles and gallery media for
// local development. Seeding is additive: re-running it skips profiles and
// items that already exist.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/middleware"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/repository"
	"github.com/aslbekqoziboyev/aiverselabs/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is given to every seeded account unless Options.Password is set.
const DefaultPassword = "Demo$pass123"

var usernameJunk = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Options control how much content is generated on top of the catalogue.
type Options struct {
	Password      string
	ExtraProfiles int
	ExtraImages   int
	MaxLikes      int
	Clean         bool
	RandSeed      int64
}

// Summary counts what a run created.
type Summary struct {
	Profiles int
	Images   int
	Videos   int
	Music    int
	Likes    int
}

// Seeder writes demo content.
type Seeder struct {
	db    *gorm.DB
	media repository.MediaRepository
	opts  Options
	faker *gofakeit.Faker
}

// NewSeeder binds a seeder to db. A zero RandSeed picks one from the clock.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		db:    db,
		media: repository.NewMediaRepository(db, nil),
		opts:  opts,
		faker: gofakeit.New(seed),
	}
}

// Run seeds the catalogue, then the generated extras, then random likes.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	if s.opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(s.opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	sum := &Summary{}
	owners := make(map[string]*models.Profile, len(catalog.Profiles))
	for _, fx := range catalog.Profiles {
		p, created, err := s.ensureProfile(ctx, fx, string(hashed))
		if err != nil {
			return nil, err
		}
		owners[fx.Username] = p
		if created {
			sum.Profiles++
		}
	}

	everyone := make([]*models.Profile, 0, len(owners)+s.opts.ExtraProfiles)
	for _, fx := range catalog.Profiles {
		everyone = append(everyone, owners[fx.Username])
	}
	for i := 0; i < s.opts.ExtraProfiles; i++ {
		p, created, err := s.ensureProfile(ctx, s.fakeProfile(i), string(hashed))
		if err != nil {
			return nil, err
		}
		everyone = append(everyone, p)
		if created {
			sum.Profiles++
		}
	}

	var items []models.MediaItem
	add := func(item models.MediaItem, counter *int) error {
		created, err := s.ensureItem(ctx, item)
		if err != nil {
			return err
		}
		if created {
			*counter++
			items = append(items, item)
		}
		return nil
	}
	for _, fx := range catalog.Images {
		if err := add(imageFrom(fx, owners[fx.Owner].ID), &sum.Images); err != nil {
			return nil, err
		}
	}
	for _, fx := range catalog.Videos {
		if err := add(videoFrom(fx, owners[fx.Owner].ID), &sum.Videos); err != nil {
			return nil, err
		}
	}
	for _, fx := range catalog.Music {
		if err := add(musicFrom(fx, owners[fx.Owner].ID), &sum.Music); err != nil {
			return nil, err
		}
	}
	for i := 0; i < s.opts.ExtraImages && len(everyone) > 0; i++ {
		owner := everyone[s.faker.Number(0, len(everyone)-1)]
		if err := add(s.fakeImage(owner.ID), &sum.Images); err != nil {
			return nil, err
		}
	}

	for _, item := range items {
		n, err := s.likeRandomly(ctx, item, everyone)
		if err != nil {
			return nil, err
		}
		sum.Likes += n
	}

	middleware.Logger.InfoContext(ctx, "seed completed",
		slog.Int("profiles", sum.Profiles),
		slog.Int("images", sum.Images),
		slog.Int("videos", sum.Videos),
		slog.Int("music", sum.Music),
		slog.Int("likes", sum.Likes),
	)
	return sum, nil
}

// ClearAll removes every seeded table's rows, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []any{
		&models.ImageLike{}, &models.VideoLike{}, &models.MusicLike{},
		&models.ImageComment{}, &models.GenerationJob{},
		&models.Image{}, &models.Video{}, &models.Music{},
		&models.Profile{},
	} {
		if err := tx.Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	middleware.Logger.InfoContext(ctx, "seed tables cleared")
	return nil
}

func (s *Seeder) ensureProfile(ctx context.Context, fx ProfileFixture, hashedPassword string) (*models.Profile, bool, error) {
	email := strings.ToLower(strings.TrimSpace(fx.Email))
	var existing models.Profile
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	switch {
	case err == nil:
		return &existing, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, fmt.Errorf("look up %s: %w", email, err)
	}

	p := &models.Profile{
		Email:    email,
		Password: hashedPassword,
		Username: fx.Username,
		FullName: fx.FullName,
		IsAdmin:  fx.Admin,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, false, fmt.Errorf("create profile %s: %w", fx.Username, err)
	}
	return p, true, nil
}

func (s *Seeder) fakeProfile(i int) ProfileFixture {
	first, last := s.faker.FirstName(), s.faker.LastName()
	username := usernameJunk.ReplaceAllString(strings.ToLower(first+"_"+last), "")
	suffix := fmt.Sprintf("%d", i)
	if len(username)+len(suffix) > 20 {
		username = username[:20-len(suffix)]
	}
	username += suffix
	if _, err := validation.NormalizeUsername(username); err != nil {
		username = "user_" + suffix
	}
	return ProfileFixture{
		Username: username,
		FullName: first + " " + last,
		Email:    username + "@demo.aiverse.local",
	}
}

func (s *Seeder) fakeImage(ownerID uint) *models.Image {
	subject := s.faker.Adjective() + " " + s.faker.Noun()
	prompt := fmt.Sprintf("%s, %s palette, digital art", subject, strings.ToLower(s.faker.Color()))
	return &models.Image{
		UserID:   ownerID,
		Title:    titleCase(subject),
		Prompt:   &prompt,
		ImageURL: fmt.Sprintf("https://picsum.photos/seed/%s/1024/768", s.faker.UUID()),
		Tags:     []string{"ai", strings.ToLower(s.faker.Noun())},
	}
}

// ensureItem creates item unless its owner already has one with the same title.
func (s *Seeder) ensureItem(ctx context.Context, item models.MediaItem) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Table(item.Kind().Table()).
		Where("user_id = ? AND title = ?", item.OwnerID(), titleOf(item)).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := s.media.Create(ctx, item); err != nil {
		return false, fmt.Errorf("create %s %q: %w", item.Kind(), titleOf(item), err)
	}
	return true, nil
}

// likeRandomly has up to MaxLikes distinct profiles like item.
func (s *Seeder) likeRandomly(ctx context.Context, item models.MediaItem, profiles []*models.Profile) (int, error) {
	limit := s.opts.MaxLikes
	if limit > len(profiles) {
		limit = len(profiles)
	}
	if limit <= 0 {
		return 0, nil
	}
	n := s.faker.Number(0, limit)

	order := make([]int, len(profiles))
	for i := range order {
		order[i] = i
	}
	for i := 0; i < n; i++ {
		j := s.faker.Number(i, len(order)-1)
		order[i], order[j] = order[j], order[i]
		if _, err := s.media.SetLike(ctx, item.Kind(), item.MediaID(), profiles[order[i]].ID, true); err != nil {
			return i, err
		}
	}
	return n, nil
}

func imageFrom(fx MediaFixture, ownerID uint) *models.Image {
	return &models.Image{
		UserID:      ownerID,
		Title:       fx.Title,
		Description: optional(fx.Description),
		Prompt:      optional(fx.Prompt),
		ImageURL:    fx.URL,
		Tags:        fx.Tags,
	}
}

func videoFrom(fx MediaFixture, ownerID uint) *models.Video {
	return &models.Video{
		UserID:      ownerID,
		Title:       fx.Title,
		Description: optional(fx.Description),
		Prompt:      optional(fx.Prompt),
		VideoURL:    fx.URL,
	}
}

func musicFrom(fx MediaFixture, ownerID uint) *models.Music {
	return &models.Music{
		UserID:      ownerID,
		Title:       fx.Title,
		Description: optional(fx.Description),
		Prompt:      optional(fx.Prompt),
		AudioURL:    fx.URL,
		CoverURL:    fx.CoverURL,
	}
}

func titleOf(item models.MediaItem) string {
	switch v := item.(type) {
	case *models.Image:
		return v.Title
	case *models.Video:
		return v.Title
	case *models.Music:
		return v.Title
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
