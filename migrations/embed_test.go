package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedFS_ContainsMigrationFiles(t *testing.T) {
	// Given: The embedded filesystem
	// When: We read the directory
	entries, err := FS.ReadDir(".")
	if err != nil {
		t.Fatalf("failed to read embedded FS: %v", err)
	}

	// Then: It contains the initial schema migration
	found := false
	for _, entry := range entries {
		if entry.Name() == "001_initial_schema.sql" {
			found = true
			break
		}
	}
	if !found {
		t.Error("001_initial_schema.sql not found in embedded FS")
	}
}

func TestEmbeddedFS_InitialSchema(t *testing.T) {
	// Given: The embedded initial schema
	content, err := FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		t.Fatalf("failed to read migration file: %v", err)
	}
	schema := string(content)

	// Then: It has goose directives and every table the store reads
	for _, want := range []string{
		"-- +goose Up",
		"-- +goose Down",
		"CREATE TABLE users",
		"CREATE TABLE assessments",
		"CREATE TABLE baseline_scores",
		"CREATE TABLE calibrations",
		"CREATE TABLE narrative_summaries",
		"UNIQUE (user_id, date)",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("migration missing %q", want)
		}
	}
}
