package main

import (
	"fmt"
	"log"

	"github.com/warekiosk/kioskgo/internal/config"
	"github.com/warekiosk/kioskgo/internal/database"
	"github.com/warekiosk/kioskgo/internal/models"
	"github.com/warekiosk/kioskgo/internal/utils"
)

func main() {
	fmt.Println("🌱 WareKiosk Demo Data Seeder")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Run migrations first
	fmt.Println("🔨 Running database migrations...")
	err = db.AutoMigrate(
		&models.User{},
		&models.Item{},
		&models.Scanner{},
		&models.Transaction{},
		&models.ScanEvent{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	// Check if data already exists
	var userCount int64
	db.Model(&models.User{}).Count(&userCount)
	if userCount > 0 {
		fmt.Printf("⚠️  Database already has %d users. Clear it first? (y/N): ", userCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE scan_events CASCADE")
		db.Exec("TRUNCATE TABLE transactions CASCADE")
		db.Exec("TRUNCATE TABLE items CASCADE")
		db.Exec("TRUNCATE TABLE scanners CASCADE")
		db.Exec("TRUNCATE TABLE users CASCADE")
		fmt.Println("✅ Data cleared")
	}

	fmt.Println()
	fmt.Println("📦 Creating demo data...")
	fmt.Println()

	// 1. Create Users
	fmt.Println("👤 Creating users...")
	adminHash := mustHash("admin123")
	userHash := mustHash("user123")
	pinHash := mustHash("4711")

	users := []models.User{
		{
			Email:        "admin@warekiosk.local",
			PasswordHash: adminHash,
			Name:         "Alice",
			Lastname:     "Admin",
			IsAdmin:      true,
			RfidTagUid:   strPtr("04A1B2C3"),
		},
		{
			Email:        "bob@warekiosk.local",
			PasswordHash: userHash,
			Name:         "Bob",
			Lastname:     "Builder",
			RfidTagUid:   strPtr("04D4E5F6"),
		},
		{
			// Carol requires a PIN after the card tap
			Email:        "carol@warekiosk.local",
			PasswordHash: userHash,
			Name:         "Carol",
			Lastname:     "Careful",
			RfidTagUid:   strPtr("04AABBCC"),
			PinHash:      &pinHash,
		},
	}
	for i := range users {
		if err := db.Create(&users[i]).Error; err != nil {
			log.Printf("⚠️  Failed to create user %s: %v", users[i].Email, err)
		} else {
			fmt.Printf("   ✓ Created user: %s\n", users[i].Email)
		}
	}
	fmt.Printf("✅ Created %d users\n\n", len(users))

	// 2. Create Scanners
	fmt.Println("📡 Creating scanners...")
	scanners := []models.Scanner{
		{DeviceID: "rpi-scanner-01", Name: "Front Desk", Status: "active"},
		{DeviceID: "rpi-scanner-02", Name: "Tool Crib", Status: "active"},
		{DeviceID: "rpi-scanner-03", Name: "Loading Dock", Status: "inactive"},
	}
	for i := range scanners {
		if err := db.Create(&scanners[i]).Error; err != nil {
			log.Printf("⚠️  Failed to create scanner %s: %v", scanners[i].Name, err)
		} else {
			fmt.Printf("   ✓ Created scanner: %s (%s)\n", scanners[i].Name, scanners[i].DeviceID)
		}
	}
	fmt.Printf("✅ Created %d scanners\n\n", len(scanners))

	// 3. Create Items
	fmt.Println("🔧 Creating items...")
	items := []models.Item{
		{RfidUid: "E2000017221101441890", ItemName: "Torque Wrench 40Nm", Status: models.ItemStatusAvailable},
		{RfidUid: "E2000017221101441891", ItemName: "Laser Level", Status: models.ItemStatusAvailable},
		{RfidUid: "E2000017221101441892", ItemName: "Cordless Drill", Status: models.ItemStatusAvailable},
		{RfidUid: "E2000017221101441893", ItemName: "Thermal Camera", Status: models.ItemStatusAvailable},
		{RfidUid: "E2000017221101441894", ItemName: "Multimeter", Status: models.ItemStatusAvailable},
		{RfidUid: "E2000017221101441895", ItemName: "Angle Grinder", Status: models.ItemStatusAvailable},
	}
	for i := range items {
		if err := db.Create(&items[i]).Error; err != nil {
			log.Printf("⚠️  Failed to create item %s: %v", items[i].ItemName, err)
		} else {
			fmt.Printf("   ✓ Created item: %s\n", items[i].ItemName)
		}
	}
	fmt.Printf("✅ Created %d items\n\n", len(items))

	fmt.Println("🎉 Seeding complete!")
	fmt.Println()
	fmt.Println("Demo credentials:")
	fmt.Println("   admin@warekiosk.local / admin123 (admin)")
	fmt.Println("   bob@warekiosk.local   / user123")
	fmt.Println("   carol@warekiosk.local / user123 (PIN: 4711)")
}

func mustHash(password string) string {
	hash, err := utils.HashPassword(password)
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}
	return hash
}

func strPtr(s string) *string { return &s }
