package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"xs2a.org/internal/migrate"
	"xs2a.org/migrations"
)

func main() {
	log.SetFlags(0)
	dsn := flag.String("dsn", os.Getenv("XS2A_PG_DSN"), "PostgreSQL DSN")
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or XS2A_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	src, err := fs.Sub(migrations.FS, "sql")
	if err != nil {
		log.Fatalf("migrations: %v", err)
	}
	runner := migrate.NewRunner(db, src)

	switch flag.Arg(0) {
	case "up":
		var n int
		if n, err = runner.Up(ctx); err == nil {
			log.Printf("applied %d migration(s)", n)
		}
	case "down":
		var name string
		if name, err = runner.Down(ctx); err == nil {
			log.Printf("rolled back %s", name)
		}
	case "seed":
		var n int
		if n, err = runner.Seed(ctx); err == nil {
			log.Printf("applied %d seed(s)", n)
		}
	case "status":
		var history []migrate.Applied
		if history, err = runner.Status(ctx); err == nil {
			for _, item := range history {
				fmt.Printf("%s\t%s\n", item.AppliedAt.Format(time.RFC3339), item.Name)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}
