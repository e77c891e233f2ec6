// Test program for the Palm Database container reader
//
// Usage:
//
//	go run ./cmd/test/pdb_reader/main.go <mobi-or-pdb-file>
//
// This program:
// 1. Opens the specified file as a Palm Database
// 2. Prints the database name, type tag and record count
// 3. Lists every record with its size and leading magic bytes
//
// Verification points:
// - Header fields are read correctly
// - Record sizes add up to the file size
// - HUFF, CDIC, FLIS, FCIS and image records are recognizable
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/yuanying/mobireader/internal/pdb"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/pdb_reader/main.go <mobi-or-pdb-file>")
		os.Exit(1)
	}

	path := os.Args[1]
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open file: %v", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		log.Fatalf("Failed to stat file: %v", err)
	}

	r := pdb.NewReader(f, fi.Size())
	if !r.Valid() {
		log.Fatalf("Invalid PDB: %v", r.Err())
	}

	fmt.Printf("=== Palm Database ===\n")
	fmt.Printf("File:        %s (%d bytes)\n", path, fi.Size())
	fmt.Printf("Name:        %s\n", r.Name())
	fmt.Printf("Type:        %s (mobipocket: %v)\n", r.FileType(), r.IsMobipocket())
	fmt.Printf("Records:     %d\n\n", r.RecordCount())

	total := 0
	for i := range r.RecordCount() {
		rec, err := r.Record(i)
		if err != nil {
			fmt.Printf("[%4d] error: %v\n", i, err)
			continue
		}
		total += len(rec)
		fmt.Printf("[%4d] %8d bytes  %s\n", i, len(rec), magic(rec))
	}

	fmt.Printf("\nRecord bytes: %d\n", total)
}

// magic returns the first four bytes of rec when they are printable.
func magic(rec []byte) string {
	if len(rec) < 4 {
		return ""
	}
	for _, b := range rec[:4] {
		if b < 0x20 || b > 0x7E {
			return fmt.Sprintf("% x", rec[:4])
		}
	}
	return strconv.Quote(string(rec[:4]))
}
