package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/warekiosk/kioskgo/internal/config"
	"github.com/warekiosk/kioskgo/internal/database"
	"github.com/warekiosk/kioskgo/internal/models"
)

const (
	startupDelay  = time.Minute
	checkInterval = 6 * time.Hour
)

// Mailer delivers one reminder message
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// RelayMailer posts messages to an HTTP mail relay
type RelayMailer struct {
	cfg    config.MailConfig
	client *http.Client
}

// NewRelayMailer creates a mailer against the configured relay
func NewRelayMailer(cfg config.MailConfig) *RelayMailer {
	return &RelayMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Send posts one message to the relay
func (m *RelayMailer) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(map[string]string{
		"from":    m.cfg.From,
		"to":      to,
		"subject": subject,
		"text":    body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.RelayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.RelayKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.RelayKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay returned status %d", resp.StatusCode)
	}
	return nil
}

// OverdueNotifier periodically reminds holders of long-borrowed items.
// Each item is reminded once; the flag resets when the item comes back.
type OverdueNotifier struct {
	db          *database.DB
	mailer      Mailer
	overdueDays int
}

// NewOverdueNotifier wires the reminder loop
func NewOverdueNotifier(db *database.DB, mailer Mailer, overdueDays int) *OverdueNotifier {
	return &OverdueNotifier{db: db, mailer: mailer, overdueDays: overdueDays}
}

// Run blocks until ctx is cancelled, checking for overdue items on a
// fixed interval. Start it in its own goroutine.
func (n *OverdueNotifier) Run(ctx context.Context) {
	log.Printf("📧 Overdue reminder loop started (threshold: %d days)", n.overdueDays)

	select {
	case <-ctx.Done():
		return
	case <-time.After(startupDelay):
	}

	for {
		n.checkOnce(ctx)

		select {
		case <-ctx.Done():
			log.Println("🛑 Overdue reminder loop stopped")
			return
		case <-time.After(checkInterval):
		}
	}
}

func (n *OverdueNotifier) checkOnce(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -n.overdueDays)

	var items []models.Item
	err := n.db.WithContext(ctx).
		Preload("CurrentHolder").
		Where("status = ? AND reminder_email_sent = ? AND last_updated < ?",
			models.ItemStatusBorrowed, false, cutoff).
		Find(&items).Error
	if err != nil {
		log.Printf("⚠️  Overdue check query failed: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}
	log.Printf("📧 Found %d overdue item(s) needing a reminder", len(items))

	for _, item := range items {
		if item.CurrentHolder == nil {
			log.Printf("⚠️  Overdue item %d has no holder record, skipping", item.ID)
			continue
		}
		if err := n.remind(ctx, &item); err != nil {
			log.Printf("⚠️  Failed to send reminder for item %d: %v", item.ID, err)
			continue
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"reminder_email_sent":    true,
			"reminder_email_sent_at": now,
		}
		if err := n.db.WithContext(ctx).Model(&models.Item{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			log.Printf("⚠️  Failed to mark reminder sent for item %d: %v", item.ID, err)
		}
	}
}

func (n *OverdueNotifier) remind(ctx context.Context, item *models.Item) error {
	holder := item.CurrentHolder
	subject := fmt.Sprintf("Reminder: %s is still checked out to you", item.ItemName)
	body := fmt.Sprintf(
		"Hi %s,\n\nYou checked out %q more than %d days ago and it has not been returned.\n"+
			"Please bring it back to the kiosk when you get a chance.\n\nThanks!",
		holder.Name, item.ItemName, n.overdueDays,
	)

	if err := n.mailer.Send(ctx, holder.Email, subject, body); err != nil {
		return err
	}
	log.Printf("📧 Reminder sent to %s for item %s", holder.Email, item.ItemName)
	return nil
}
