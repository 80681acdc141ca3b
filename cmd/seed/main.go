// Command seed fills the database with demo profiles and gallery media.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/aslbekqoziboyev/aiverselabs/internal/config"
	"github.com/aslbekqoziboyev/aiverselabs/internal/database"
	"github.com/aslbekqoziboyev/aiverselabs/internal/seed"

	"gorm.io/gorm"
)

func main() {
	profiles := flag.Int("profiles", 20, "Number of generated profiles on top of the catalogue")
	images := flag.Int("images", 40, "Number of generated images on top of the catalogue")
	likes := flag.Int("max-likes", 8, "Maximum random likes per seeded item")
	clean := flag.Bool("clean", false, "Delete existing gallery data before seeding")
	password := flag.String("password", seed.DefaultPassword, "Password for every seeded account")
	sqlitePath := flag.String("sqlite", "", "Seed a SQLite file instead of the configured PostgreSQL database")
	randSeed := flag.Int64("rand-seed", 0, "Random seed for reproducible output (0 = clock)")
	flag.Parse()

	db, err := open(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		Password:      *password,
		ExtraProfiles: *profiles,
		ExtraImages:   *images,
		MaxLikes:      *likes,
		Clean:         *clean,
		RandSeed:      *randSeed,
	})
	sum, err := s.Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d profiles, %d images, %d videos, %d tracks and %d likes",
		sum.Profiles, sum.Images, sum.Videos, sum.Music, sum.Likes)
	log.Printf("Every seeded account uses the password %q", *password)
}

func open(sqlitePath string) (*gorm.DB, error) {
	if sqlitePath != "" {
		return database.OpenSQLite(sqlitePath)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return database.Connect(cfg)
}
