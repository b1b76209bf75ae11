// Command tablex-gen reads table definitions from a live database and writes
// one tablex record type per table.
//
//	tablex-gen -driver sqlite3 -dsn app.db -out ./models -pkg models
//	tablex-gen -config tablex-gen.yaml -table users,orders
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/xstater/tablex/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "tablex-gen:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	log := logger.New(&logger.Config{
		Level:  cfg.LogLevel,
		Format: logger.LogFormatText,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	gen, err := NewGenerator(cfg, db, log)
	if err != nil {
		return err
	}
	if err := gen.Run(ctx); err != nil {
		return err
	}
	log.Info("done")
	return nil
}
