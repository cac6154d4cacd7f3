package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"chatsync/internal/constants"
	"chatsync/internal/migrations"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

func main() {
	dbPath := flag.String("db", constants.DefaultDatabasePath, "Path to the chat cache database")
	action := flag.String("action", "up", "Migration action: up, down or version")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if err := run(*dbPath, *action, logger); err != nil {
		logger.WithError(err).Fatal("Migration failed")
	}
}

func run(dbPath, action string, logger *logrus.Logger) error {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) && action != "up" {
		return fmt.Errorf("database file not found: %s", dbPath)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	switch action {
	case "up":
		if err := migrations.Up(db); err != nil {
			return err
		}
	case "down":
		if err := migrations.Down(db); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	version, dirty, err := migrations.Version(db)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"action":  action,
		"version": version,
		"dirty":   dirty,
	}).Info("Schema migration complete")
	return nil
}
