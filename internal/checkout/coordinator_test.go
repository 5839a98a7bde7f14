package checkout

import (
	"context"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/warekiosk/kioskgo/internal/database"
	"github.com/warekiosk/kioskgo/internal/models"
	"github.com/warekiosk/kioskgo/internal/realtime"
	"github.com/warekiosk/kioskgo/internal/session"
	"github.com/warekiosk/kioskgo/internal/store"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testEmbeddedPort = 5434

type broadcastRecord struct {
	Group   string
	Event   string
	Payload interface{}
}

type recordingNotifier struct {
	sent []broadcastRecord
}

func (n *recordingNotifier) BroadcastToGroup(group, event string, payload interface{}) {
	n.sent = append(n.sent, broadcastRecord{Group: group, Event: event, Payload: payload})
}

func (n *recordingNotifier) emptyCartPushFor(group string) bool {
	for _, b := range n.sent {
		if b.Group != group || b.Event != realtime.EventCartUpdated {
			continue
		}
		if cart, ok := b.Payload.(session.Cart); ok && len(cart.Entries) == 0 {
			return true
		}
	}
	return false
}

// newCommitTestDB boots a throwaway embedded PostgreSQL so the commit
// transaction, its row locks and its rollback path run against the real
// storage engine.
func newCommitTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("starts an embedded PostgreSQL instance")
	}

	embedded := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		DataPath(t.TempDir()).
		Port(testEmbeddedPort))
	if err := embedded.Start(); err != nil {
		t.Skipf("Could not start embedded PostgreSQL: %v", err)
	}
	t.Cleanup(func() { _ = embedded.Stop() })

	dsn := "host=localhost port=5434 user=postgres password=postgres dbname=postgres sslmode=disable"
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("Failed to connect to embedded PostgreSQL: %v", err)
	}

	db := &database.DB{DB: gdb}
	err = db.AutoMigrate(&models.User{}, &models.Item{}, &models.Scanner{}, &models.Transaction{})
	if err != nil {
		t.Fatalf("Migration failed: %v", err)
	}
	return db
}

func TestCoordinator_CommitFlows(t *testing.T) {
	db := newCommitTestDB(t)

	alice := models.User{Email: "alice@example.com", PasswordHash: "x", Name: "Alice", Lastname: "A"}
	bob := models.User{Email: "bob@example.com", PasswordHash: "x", Name: "Bob", Lastname: "B"}
	for _, u := range []*models.User{&alice, &bob} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("Failed to seed user: %v", err)
		}
	}
	if err := db.Create(&models.Scanner{DeviceID: "dev-1", Name: "Front Desk"}).Error; err != nil {
		t.Fatalf("Failed to seed scanner: %v", err)
	}
	repo := store.New(db)
	ctx := context.Background()

	t.Run("borrow commit flips status and clears the cart", func(t *testing.T) {
		wrench := models.Item{RfidUid: "TAG-W", ItemName: "Torque Wrench", Status: models.ItemStatusAvailable}
		if err := db.Create(&wrench).Error; err != nil {
			t.Fatalf("Failed to seed item: %v", err)
		}

		carts := session.NewCartStore()
		carts.AddEntry(alice.ID, session.CartEntry{
			ItemID: wrench.ID, RfidUid: wrench.RfidUid, ItemName: wrench.ItemName,
			Action: session.ActionBorrow, ScannedAt: time.Now().UTC(),
		})
		notifier := &recordingNotifier{}
		coordinator := NewCoordinator(db, carts, repo, notifier)

		receipt, err := coordinator.Commit(ctx, alice.ID, "dev-1", "site visit")
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if receipt.Borrowed != 1 || receipt.Returned != 0 {
			t.Errorf("Unexpected receipt %+v", receipt)
		}

		var got models.Item
		if err := db.First(&got, wrench.ID).Error; err != nil {
			t.Fatalf("Reload item: %v", err)
		}
		if got.Status != models.ItemStatusBorrowed || got.CurrentHolderID == nil || *got.CurrentHolderID != alice.ID {
			t.Errorf("Item should be Borrowed by user %d, got %+v", alice.ID, got)
		}

		var record models.Transaction
		if err := db.Where("item_id = ?", wrench.ID).First(&record).Error; err != nil {
			t.Fatalf("Expected one transaction row: %v", err)
		}
		if record.Action != models.ActionCheckout || record.UserID != alice.ID || record.DeviceID != "dev-1" {
			t.Errorf("Unexpected transaction row %+v", record)
		}

		if carts.GetCart(alice.ID) != nil {
			t.Error("Cart should be cleared after a successful commit")
		}
		if !notifier.emptyCartPushFor(realtime.ScannerGroup("dev-1")) {
			t.Error("Scanner group should receive an empty-cart push")
		}
	})

	t.Run("one conflicting entry rolls back the whole commit", func(t *testing.T) {
		drill := models.Item{RfidUid: "TAG-D", ItemName: "Cordless Drill", Status: models.ItemStatusAvailable}
		level := models.Item{RfidUid: "TAG-L", ItemName: "Laser Level", Status: models.ItemStatusBorrowed, CurrentHolderID: &bob.ID}
		for _, item := range []*models.Item{&drill, &level} {
			if err := db.Create(item).Error; err != nil {
				t.Fatalf("Failed to seed item: %v", err)
			}
		}

		carts := session.NewCartStore()
		carts.AddEntry(alice.ID, session.CartEntry{ItemID: drill.ID, ItemName: drill.ItemName, Action: session.ActionBorrow})
		// Level belongs to Bob; Alice's pending return must sink the commit
		carts.AddEntry(alice.ID, session.CartEntry{ItemID: level.ID, ItemName: level.ItemName, Action: session.ActionReturn})
		notifier := &recordingNotifier{}
		coordinator := NewCoordinator(db, carts, repo, notifier)

		_, err := coordinator.Commit(ctx, alice.ID, "dev-1", "")
		conflict, ok := AsConflict(err)
		if !ok {
			t.Fatalf("Expected a conflict, got %v", err)
		}
		if conflict.Reason != NotYourItem || conflict.ItemID != level.ID {
			t.Errorf("Expected NotYourItem for the level, got %+v", conflict)
		}

		var gotDrill models.Item
		db.First(&gotDrill, drill.ID)
		if gotDrill.Status != models.ItemStatusAvailable || gotDrill.CurrentHolderID != nil {
			t.Errorf("Valid Borrow entry must roll back too, got %+v", gotDrill)
		}
		var gotLevel models.Item
		db.First(&gotLevel, level.ID)
		if gotLevel.Status != models.ItemStatusBorrowed || gotLevel.CurrentHolderID == nil || *gotLevel.CurrentHolderID != bob.ID {
			t.Errorf("Conflicting item must be untouched, got %+v", gotLevel)
		}

		var count int64
		db.Model(&models.Transaction{}).Where("item_id IN ?", []uint{drill.ID, level.ID}).Count(&count)
		if count != 0 {
			t.Errorf("Rolled-back commit must write no transaction rows, got %d", count)
		}

		if cart := carts.GetCart(alice.ID); cart == nil || len(cart.Entries) != 2 {
			t.Errorf("Failed commit must keep the cart intact, got %+v", cart)
		}
		if len(notifier.sent) != 0 {
			t.Errorf("Failed commit must not notify anyone, got %v", notifier.sent)
		}
	})

	t.Run("return clears holder and reminder flags", func(t *testing.T) {
		sentAt := time.Now().UTC().AddDate(0, 0, -10)
		camera := models.Item{
			RfidUid: "TAG-C", ItemName: "Thermal Camera",
			Status: models.ItemStatusBorrowed, CurrentHolderID: &alice.ID,
			ReminderEmailSent: true, ReminderEmailSentAt: &sentAt,
		}
		if err := db.Create(&camera).Error; err != nil {
			t.Fatalf("Failed to seed item: %v", err)
		}

		carts := session.NewCartStore()
		carts.AddEntry(alice.ID, session.CartEntry{ItemID: camera.ID, ItemName: camera.ItemName, Action: session.ActionReturn})
		coordinator := NewCoordinator(db, carts, repo, &recordingNotifier{})

		receipt, err := coordinator.Commit(ctx, alice.ID, "dev-1", "")
		if err != nil {
			t.Fatalf("Commit: %v", err)
		}
		if receipt.Returned != 1 {
			t.Errorf("Expected one return, got %+v", receipt)
		}

		var got models.Item
		if err := db.First(&got, camera.ID).Error; err != nil {
			t.Fatalf("Reload item: %v", err)
		}
		if got.Status != models.ItemStatusAvailable || got.CurrentHolderID != nil {
			t.Errorf("Returned item should be Available with no holder, got %+v", got)
		}
		if got.ReminderEmailSent || got.ReminderEmailSentAt != nil {
			t.Errorf("Return must reset reminder flags for the next holder cycle, got %+v", got)
		}

		var record models.Transaction
		if err := db.Where("item_id = ?", camera.ID).First(&record).Error; err != nil {
			t.Fatalf("Expected one transaction row: %v", err)
		}
		if record.Action != models.ActionCheckin {
			t.Errorf("Expected Checkin action, got %s", record.Action)
		}
	})
}
