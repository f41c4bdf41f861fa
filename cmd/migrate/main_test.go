package main

import (
	"crypto/sha256"
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_receipts.sql", true, 1, "create_receipts"},
		{"0012_add_updated_ts.sql", true, 12, "add_updated_ts"},
		{"001_invalid.sql", false, 0, ""},        // wrong number format
		{"0001_test", false, 0, ""},              // missing .sql
		{"0001.sql", false, 0, ""},               // missing name
		{"invalid_0001_test.sql", false, 0, ""},  // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("ok = %v, want %v", ok, tt.valid)
			}
			if !tt.valid {
				return
			}
			if version != tt.version || name != tt.name {
				t.Errorf("parsed (%d, %q), want (%d, %q)", version, name, tt.version, tt.name)
			}
		})
	}
}

func TestMigrationChecksumConsistency(t *testing.T) {
	content1 := []byte("CREATE TABLE test (id INT64);")
	content2 := []byte("CREATE TABLE test (id INT64);")
	content3 := []byte("CREATE TABLE different (id INT64);")

	if sha256.Sum256(content1) != sha256.Sum256(content2) {
		t.Error("same content must produce the same checksum")
	}

	if sha256.Sum256(content1) == sha256.Sum256(content3) {
		t.Error("different content must produce different checksums")
	}
}
