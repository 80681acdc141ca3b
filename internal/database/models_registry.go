package database

import "github.com/aslbekqoziboyev/aiverselabs/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.Image{},
		&models.Video{},
		&models.Music{},
		&models.ImageLike{},
		&models.VideoLike{},
		&models.MusicLike{},
		&models.ImageComment{},
		&models.GenerationJob{},
	}
}
