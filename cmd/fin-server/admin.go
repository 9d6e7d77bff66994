package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/marcus/fin/internal/api"
	"github.com/marcus/fin/internal/serverdb"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create-user":
		runAdminCreateUser(args[1:])
	case "seed":
		runAdminSeed(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: fin-server admin <command> [flags]

Commands:
  create-user  Register a user id on the server
  seed         Create a user with the default category set`)
}

func openDB(dbPath string) *serverdb.ServerDB {
	if dbPath == "" {
		cfg := api.LoadConfig()
		dbPath = cfg.DBPath
	}
	store, err := serverdb.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runAdminCreateUser(args []string) {
	fs := flag.NewFlagSet("admin create-user", flag.ExitOnError)
	user := fs.String("user", "", "user id")
	email := fs.String("email", "", "contact email (optional)")
	name := fs.String("name", "", "display name (optional)")
	dbPath := fs.String("db", "", "path to fin.db (default: from FIN_DB_PATH or ./data/fin.db)")
	fs.Parse(args)

	if *user == "" {
		fmt.Fprintln(os.Stderr, "error: --user is required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	if err := store.EnsureUser(*user, *email, *name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("created user %s\n", *user)
}

func runAdminSeed(args []string) {
	fs := flag.NewFlagSet("admin seed", flag.ExitOnError)
	user := fs.String("user", "demo-user", "user id to seed")
	dbPath := fs.String("db", "", "path to fin.db (default: from FIN_DB_PATH or ./data/fin.db)")
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	n, err := store.SeedDemoData(*user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded %d categories for %s\n", n, *user)
}
