package main

import (
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/ticketops/reconcile-api/migrations"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "", "migrations directory; embedded migrations are used when empty")
	command := flag.String("command", "up", "goose command: up, down, status, version")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("goose dialect: %v", err)
	}
	source := *dir
	if source == "" {
		goose.SetBaseFS(migrations.FS)
		source = "."
	}

	if err := goose.Run(*command, db, source); err != nil {
		log.Fatalf("goose %s: %v", *command, err)
	}
}
