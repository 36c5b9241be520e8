// migrate applies the users table migrations to DATABASE_URL: go run ./cmd/migrate -direction up|down|version.
package main

import (
	"flag"
	"fmt"
	"os"

	"identity-gateway/internal/config"
	"identity-gateway/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", migrate.Up, "Migration direction: up, down or version")
	flag.Parse()

	cfg, err := config.LoadAuxiliary()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	out, err := migrate.Run(cfg.DatabaseURL, *direction)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Println("migrate:", out)
}
