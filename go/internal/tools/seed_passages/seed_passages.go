package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/mcdev12/typerace/go/internal/dbconfig"
	"github.com/mcdev12/typerace/go/internal/passages"
)

// Usage: seed_passages [file]
//
// Without a file the built-in passages are seeded. A file holds one passage
// per line; blank lines and lines starting with # are skipped.
func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	// 1) Collect passages
	texts := passages.Builtin
	if len(os.Args) > 1 {
		loaded, err := readPassages(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "read passages: %v\n", err)
			os.Exit(1)
		}
		texts = loaded
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Insert and count
	store := passages.NewStore(pool, nil)
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	inserted, err := store.Insert(ctx, texts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v (inserted %d before the failure)\n", err, inserted)
		os.Exit(1)
	}

	fmt.Printf("Seed complete: %d total, %d inserted, %d already present\n",
		len(texts), inserted, len(texts)-inserted)
}

func readPassages(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}
