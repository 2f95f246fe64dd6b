package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"muadati/internal/auth"
	"muadati/internal/database"
	"muadati/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type seedUser struct {
	Name     string      `yaml:"name"`
	Email    string      `yaml:"email"`
	Phone    string      `yaml:"phone"`
	Password string      `yaml:"password"`
	Role     models.Role `yaml:"role"`
	City     string      `yaml:"city"`
}

type seedEquipment struct {
	OwnerEmail   string          `yaml:"owner_email"`
	Title        string          `yaml:"title"`
	Category     models.Category `yaml:"category"`
	Description  string          `yaml:"description"`
	PricePerDay  float64         `yaml:"price_per_day"`
	PricePerHour *float64        `yaml:"price_per_hour"`
	City         string          `yaml:"city"`
	PhoneNumber  string          `yaml:"phone_number"`
	Images       []string        `yaml:"images"`
}

type fixtures struct {
	Users     []seedUser      `yaml:"users"`
	Equipment []seedEquipment `yaml:"equipment"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("seed", "configs/seed.yaml", "path to seed.yaml")
		dbPath   = flag.String("db", "./data/muadati.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	fx, err := parseFixtures(data)
	if err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users, err := seedUsers(ctx, db, fx.Users)
	if err != nil {
		return err
	}
	listings, err := seedListings(ctx, db, fx.Equipment)
	if err != nil {
		return err
	}

	logger.Info().Int("users", users).Int("equipment", listings).Msg("seed done")
	return nil
}

func parseFixtures(data []byte) (*fixtures, error) {
	var fx fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for i, u := range fx.Users {
		if !u.Role.Valid() {
			return nil, fmt.Errorf("user %d (%s): invalid role %q", i, u.Email, u.Role)
		}
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("user %d: email and password are required", i)
		}
	}
	for i, eq := range fx.Equipment {
		if !eq.Category.Valid() {
			return nil, fmt.Errorf("equipment %d (%s): invalid category %q", i, eq.Title, eq.Category)
		}
		if eq.OwnerEmail == "" {
			return nil, fmt.Errorf("equipment %d (%s): owner_email is required", i, eq.Title)
		}
	}
	return &fx, nil
}

// seedUsers inserts users that are not registered yet.
func seedUsers(ctx context.Context, db *database.DB, list []seedUser) (int, error) {
	created := 0
	for _, u := range list {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", u.Email, err)
		}
		user := &models.User{
			Name:         u.Name,
			Email:        strings.ToLower(strings.TrimSpace(u.Email)),
			Phone:        u.Phone,
			PasswordHash: hash,
			Role:         u.Role,
			City:         u.City,
		}
		err = db.CreateUser(ctx, user)
		if errors.Is(err, database.ErrDuplicateEmail) || errors.Is(err, database.ErrDuplicatePhone) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create user %s: %w", u.Email, err)
		}
		created++
	}
	return created, nil
}

func seedListings(ctx context.Context, db *database.DB, list []seedEquipment) (int, error) {
	created := 0
	for _, eq := range list {
		owner, err := db.GetUserByEmail(ctx, strings.ToLower(eq.OwnerEmail))
		if err != nil {
			return created, fmt.Errorf("owner %s for %s: %w", eq.OwnerEmail, eq.Title, err)
		}
		if owner.Role != models.RoleOwner {
			return created, fmt.Errorf("%s is not an owner", eq.OwnerEmail)
		}
		item := &models.Equipment{
			OwnerID:      owner.ID,
			Title:        eq.Title,
			Category:     eq.Category,
			Description:  eq.Description,
			PricePerDay:  eq.PricePerDay,
			PricePerHour: eq.PricePerHour,
			City:         eq.City,
			PhoneNumber:  eq.PhoneNumber,
			Images:       models.StringList(eq.Images),
		}
		if err := db.CreateEquipment(ctx, item); err != nil {
			return created, fmt.Errorf("create %s: %w", eq.Title, err)
		}
		created++
	}
	return created, nil
}
