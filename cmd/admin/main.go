// Package main provides admin management utilities for Whisperwall.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"whisperwall/config"
	"whisperwall/database"
	"whisperwall/models"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin create <username> <email> <password>  - Create an admin account")
		fmt.Println("  go run ./cmd/admin promote <user_id>                     - Promote user to admin")
		fmt.Println("  go run ./cmd/admin demote <user_id>                      - Demote user from admin")
		fmt.Println("  go run ./cmd/admin verify <user_id>                      - Verify a user account")
		fmt.Println("  go run ./cmd/admin list-admins                           - List all admins")
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch os.Args[1] {
	case "create":
		if len(os.Args) < 5 {
			fmt.Println("Usage: go run ./cmd/admin create <username> <email> <password>")
			os.Exit(1)
		}
		createAdmin(db, os.Args[2], os.Args[3], os.Args[4])

	case "promote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin promote <user_id>")
			os.Exit(1)
		}
		promoteToAdmin(db, os.Args[2])

	case "demote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin demote <user_id>")
			os.Exit(1)
		}
		demoteFromAdmin(db, os.Args[2])

	case "verify":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin verify <user_id>")
			os.Exit(1)
		}
		verifyUser(db, os.Args[2])

	case "list-admins":
		listAdmins(db)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func createAdmin(db *gorm.DB, username, email, password string) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	now := time.Now()
	user := models.User{
		Username:   username,
		Email:      email,
		Password:   string(hashed),
		IsAdmin:    true,
		IsVerified: true,
		VerifiedAt: &now,
	}

	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("Created admin %s (ID: %d)\n", user.Username, user.ID)
}

func promoteToAdmin(db *gorm.DB, userID string) {
	user := mustFindUser(db, userID)

	if user.IsAdmin {
		fmt.Printf("User %s (ID: %d) is already an admin\n", user.Username, user.ID)
		return
	}

	user.IsAdmin = true
	if err := db.Save(user).Error; err != nil {
		log.Fatalf("Failed to promote user: %v", err)
	}

	fmt.Printf("Promoted %s (ID: %d) to admin\n", user.Username, user.ID)
}

func demoteFromAdmin(db *gorm.DB, userID string) {
	user := mustFindUser(db, userID)

	if !user.IsAdmin {
		fmt.Printf("User %s (ID: %d) is not an admin\n", user.Username, user.ID)
		return
	}

	user.IsAdmin = false
	if err := db.Save(user).Error; err != nil {
		log.Fatalf("Failed to demote user: %v", err)
	}

	fmt.Printf("Demoted %s (ID: %d) from admin\n", user.Username, user.ID)
}

func verifyUser(db *gorm.DB, userID string) {
	user := mustFindUser(db, userID)

	if user.IsVerified {
		fmt.Printf("User %s (ID: %d) is already verified\n", user.Username, user.ID)
		return
	}

	now := time.Now()
	user.IsVerified = true
	user.VerifiedAt = &now
	if err := db.Save(user).Error; err != nil {
		log.Fatalf("Failed to verify user: %v", err)
	}

	fmt.Printf("Verified %s (ID: %d)\n", user.Username, user.ID)
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found")
		return
	}

	fmt.Printf("Admins (%d):\n", len(admins))
	for _, admin := range admins {
		fmt.Printf("  %d  %s  %s\n", admin.ID, admin.Username, admin.Email)
	}
}

func mustFindUser(db *gorm.DB, userID string) *models.User {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User with ID %s not found\n", userID)
		} else {
			log.Fatalf("Database error: %v", err)
		}
		os.Exit(1)
	}
	return &user
}
