package database

import "testing"

func TestMigrationFilesOrder(t *testing.T) {
	up, err := MigrationFiles("up")
	if err != nil {
		t.Fatalf("MigrationFiles(up): %v", err)
	}
	if len(up) == 0 || up[0] != "000001_init.up.sql" {
		t.Fatalf("Expected 000001_init.up.sql first, got %v", up)
	}

	down, err := MigrationFiles("down")
	if err != nil {
		t.Fatalf("MigrationFiles(down): %v", err)
	}
	if len(down) != len(up) {
		t.Errorf("Expected %d down migrations, got %d", len(up), len(down))
	}
}

func TestMigrationFilesRejectsUnknownDirection(t *testing.T) {
	if _, err := MigrationFiles("sideways"); err == nil {
		t.Fatal("expected error for unknown direction")
	}
}
