package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"chessmatch/internal/config"
	"chessmatch/internal/game"
	"chessmatch/internal/handlers"
	"chessmatch/internal/logging"
	"chessmatch/internal/matchmaking"
	"chessmatch/internal/session"
	"chessmatch/internal/storage"
	"chessmatch/internal/ticket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, reading environment directly")
	}
	cfg := config.Load()
	logging.Debug = cfg.Debug

	var tickets ticket.Store
	if cfg.RedisURL != "" {
		rs, err := ticket.NewRedisStore(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatal("ticket store: ", err)
		}
		defer rs.Close()
		tickets = rs
	} else {
		log.Println("REDIS_URL not set, using in-memory ticket store")
		tickets = ticket.NewMemoryStore()
	}

	var dir game.Directory
	if cfg.DatabaseURL != "" {
		db, err := storage.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database: ", err)
		}
		dir = storage.NewStore(db)
	} else {
		log.Println("DATABASE_URL not set, using in-memory game directory")
		dir = storage.NewMemoryDirectory()
	}

	mmCfg := matchmaking.DefaultConfig()
	mmCfg.PairClasses = cfg.PairClasses
	queue := matchmaking.NewQueue(tickets, dir, mmCfg)
	sessions := session.NewManager(tickets, dir)

	app := fiber.New()
	h := handlers.NewHandler(queue, sessions, tickets)
	h.Register(app)

	log.Printf("chessmatch %s listening on %s", commit, cfg.ListenAddr)
	log.Fatal(app.Listen(cfg.ListenAddr))
}
