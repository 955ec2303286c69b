package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ticketops/reconcile-api/internal/auth"
	"github.com/ticketops/reconcile-api/internal/db"
)

type seedImport struct {
	status   string
	src      string
	srcEmail string
	parsed   string
	meta     string
	files    string
}

var demoImports = []seedImport{
	{
		status:   "needs_review",
		src:      "email",
		srcEmail: "dispatch@northfuel.example",
		parsed: `{"rows":[
			{"Date":"01/15/2024","Ticket #":"88121","Truck":"T-12","Driver":"R. Ortiz","Customer":"Hillside Farms","Gallons":"512.4","Rate":"$3.19","Amount":"$1,634.56"},
			{"Date":"01/15/2024","Ticket #":"88122","Truck":"T-12","Driver":"R. Ortiz","Customer":"Maple Dairy","Gallons":"300","Rate":"$3.19"},
			{"Truck":"T-14","Gallons":""}
		],"headers":["Date","Ticket #","Truck","Driver","Customer","Gallons","Rate","Amount"]}`,
		meta:  `{}`,
		files: `[{"path":"scans/northfuel-0115.pdf","name":"northfuel-0115.pdf","contentType":"application/pdf"}]`,
	},
	{
		status: "pending",
		src:    "upload",
		parsed: `{"rows":[
			{"WO":"J-2041","Customer":"Elm St Bakery","Work Performed":"Boiler inspection","Tech":"K. Lee","Total":"240.00","Status":"Completed"},
			{"WO":"J-2042","Customer":"Pine Motel","Work Performed":"Thermostat replacement","Tech":"K. Lee"},
			{"WO":"J-2041","Customer":"Elm St Bakery","Work Performed":"Boiler inspection and flue clean","Tech":"K. Lee","Total":"310.00","Status":"Completed"}
		]}`,
		meta:  `{"importType":"service"}`,
		files: `[]`,
	},
}

func main() {
	_ = godotenv.Load()

	newKey := flag.Bool("new-key", false, "generate an API key and print it with its API_KEY_HASHES entry, then exit")
	hashKey := flag.String("hash-key", "", "print the API_KEY_HASHES entry for an existing key, then exit")
	flag.Parse()

	switch {
	case *newKey:
		key, err := auth.GenerateKey()
		if err != nil {
			log.Fatal(err)
		}
		printKey(key)
		return
	case *hashKey != "":
		printKey(*hashKey)
		return
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int64, 0, len(demoImports))
	for _, imp := range demoImports {
		var id int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO imports (status, src, src_email, parsed, meta, attached_files)
			VALUES ($1, $2, NULLIF($3, ''), $4::jsonb, $5::jsonb, $6::jsonb)
			RETURNING id
		`, imp.status, imp.src, imp.srcEmail, imp.parsed, imp.meta, imp.files).Scan(&id); err != nil {
			log.Fatalf("insert import: %v", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("commit tx: %v", err)
	}

	fmt.Printf("Seed completed. Imports=%v\n", ids)
}

func printKey(key string) {
	hash, err := auth.HashKey(key)
	if err != nil {
		log.Fatalf("hash key: %v", err)
	}
	fmt.Printf("API key: %s\nAPI_KEY_HASHES entry: %s\n", key, hash)
}
