package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"picboard/internal/storage"
)

// Creates an administrator account against the configured database.
// Useful when the bootstrap defaults were disabled or the credential
// needs rotating.
func main() {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./picboard.db"
	}

	db, err := storage.NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("Failed to read username: %v", err)
	}
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		log.Fatal("Username must be at least 3 characters")
	}

	fmt.Print("Password: ")
	password, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("Failed to read password: %v", err)
	}
	password = strings.TrimSpace(password)
	if len(password) < 6 {
		log.Fatal("Password must be at least 6 characters")
	}

	user, err := db.CreateAdminUser(username, password)
	if err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}

	fmt.Printf("Administrator %q created (id %d)\n", user.Username, user.ID)
}
