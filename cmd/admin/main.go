// Package main provides admin management utilities for AIverse Labs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/aslbekqoziboyev/aiverselabs/internal/config"
	"github.com/aslbekqoziboyev/aiverselabs/internal/database"
	"github.com/aslbekqoziboyev/aiverselabs/internal/models"
	"github.com/aslbekqoziboyev/aiverselabs/internal/repository"
)

const usage = `Usage:
  admin promote <profile_id>     - Grant admin rights
  admin demote <profile_id>      - Revoke admin rights
  admin list-admins              - List all admins`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	profiles := repository.NewProfileRepository(db)
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Println(usage)
			os.Exit(1)
		}
		id, err := strconv.ParseUint(os.Args[2], 10, 32)
		if err != nil || id == 0 {
			log.Fatalf("Invalid profile ID %q", os.Args[2])
		}
		setAdmin(ctx, profiles, uint(id), command == "promote")

	case "list-admins":
		listAdmins(ctx, profiles)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func setAdmin(ctx context.Context, profiles repository.ProfileRepository, id uint, admin bool) {
	profile, err := profiles.GetByID(ctx, id)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			fmt.Printf("Profile with ID %d not found\n", id)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	if profile.IsAdmin == admin {
		fmt.Printf("%s (ID: %d) already has is_admin=%t\n", profile.Username, profile.ID, admin)
		return
	}
	if err := profiles.SetAdmin(ctx, id, admin); err != nil {
		log.Fatalf("Failed to update profile: %v", err)
	}

	action := "promoted to"
	if !admin {
		action = "demoted from"
	}
	fmt.Printf("%s (ID: %d) %s admin\n", profile.Username, profile.ID, action)
}

func listAdmins(ctx context.Context, profiles repository.ProfileRepository) {
	const page = 100
	found := 0
	for offset := 0; ; offset += page {
		batch, err := profiles.List(ctx, page, offset)
		if err != nil {
			log.Fatalf("Failed to fetch profiles: %v", err)
		}
		for _, p := range batch {
			if !p.IsAdmin {
				continue
			}
			if found == 0 {
				fmt.Println("Current admins:")
			}
			found++
			fmt.Printf("ID: %d | Username: %s | Email: %s\n", p.ID, p.Username, p.Email)
		}
		if len(batch) < page {
			break
		}
	}
	if found == 0 {
		fmt.Println("No admins found")
	}
}
