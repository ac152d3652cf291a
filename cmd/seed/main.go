package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-account-service/config"
	"github.com/oksasatya/go-account-service/internal/domain/entity"
	"github.com/oksasatya/go-account-service/internal/domain/repository"
	pginfra "github.com/oksasatya/go-account-service/internal/infrastructure/postgres"
)

const demoPassword = "password123"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, pginfra.PoolConfig{
		DSN:             cfg.PostgresDSN(),
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLife,
	})
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer pool.Close()
	repo := pginfra.NewUserRepository(pool)

	ensure := func(username, fullname string) *entity.User {
		u := &entity.User{
			Username:  username,
			Email:     username + "@example.com",
			Fullname:  fullname,
			AvatarURL: "https://storage.googleapis.com/demo/avatars/" + username + ".png",
		}
		err := repo.Create(ctx, u, demoPassword)
		if errors.Is(err, repository.ErrDuplicate) {
			existing, ferr := repo.FindByUsernameOrEmail(ctx, username, "")
			if ferr != nil {
				log.Fatalf("failed to load %s: %v", username, ferr)
			}
			return existing
		}
		if err != nil {
			log.Fatalf("failed to seed %s: %v", username, err)
		}
		return u
	}

	channel := ensure("demochannel", "Demo Channel")
	viewer := ensure("demoviewer", "Demo Viewer")
	fmt.Printf("seeded users: %s (%s), %s (%s) password=%s\n", channel.Username, channel.ID, viewer.Username, viewer.ID, demoPassword)

	if _, err := pool.Exec(ctx, `
		INSERT INTO subscriptions (subscriber_id, channel_id)
		VALUES ($1, $2)
		ON CONFLICT (subscriber_id, channel_id) DO NOTHING
	`, viewer.ID, channel.ID); err != nil {
		log.Fatalf("failed to seed subscription: %v", err)
	}

	titles := []string{"Intro to the channel", "Second upload", "Behind the scenes"}
	for i, title := range titles {
		var videoID string
		err := pool.QueryRow(ctx, `
			INSERT INTO videos (owner_id, video_file, thumbnail, title, description, duration, views)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, channel.ID,
			fmt.Sprintf("https://storage.googleapis.com/demo/video/%d.mp4", i+1),
			fmt.Sprintf("https://storage.googleapis.com/demo/image/%d.jpg", i+1),
			title, "seeded video", float64(60*(i+1)), int64(10*(i+1)),
		).Scan(&videoID)
		if err != nil {
			log.Fatalf("failed to seed video %q: %v", title, err)
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO watch_history (user_id, position, video_id)
			VALUES ($1, COALESCE((SELECT max(position) + 1 FROM watch_history WHERE user_id = $1), 0), $2)
		`, viewer.ID, videoID); err != nil {
			log.Fatalf("failed to seed watch history: %v", err)
		}
	}
	fmt.Printf("seeded %d videos and %s's watch history\n", len(titles), viewer.Username)
}
