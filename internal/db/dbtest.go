package db

import (
	"errors"
	"os"
)

var TestStore Store

// connects to TEST_DATABASE_URL and migrates it; integration tests skip when unset.
func InitTestDB(migrationsPath string) error {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		return errors.New("TEST_DATABASE_URL environment variable is not set")
	}

	if err := Init(dbURL); err != nil {
		return err
	}

	if err := RunMigrations(dbURL, migrationsPath); err != nil {
		return err
	}

	TestStore = NewStore(DB)
	return nil
}

// empties every table between integration tests.
func ResetTestDB() error {
	_, err := DB.Exec(`
		TRUNCATE device_playlists, playlist_videos, playlists, videos, devices,
		         stores, sessions, users
		RESTART IDENTITY CASCADE;`)
	return err
}
