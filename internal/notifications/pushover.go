package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"karsync/internal/config"
	"karsync/internal/models"
)

// maxListedDeletions caps how many paths a deletion warning spells out
const maxListedDeletions = 10

type PushoverNotifier struct {
	config     *config.Config
	httpClient *http.Client
	apiURL     string
}

type pushoverRequest struct {
	Token     string `json:"token"`
	User      string `json:"user"`
	Message   string `json:"message"`
	Title     string `json:"title,omitempty"`
	Priority  int    `json:"priority,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Sound     string `json:"sound,omitempty"`
	Retry     int    `json:"retry,omitempty"`
	Expire    int    `json:"expire,omitempty"`
}

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors,omitempty"`
	Receipt string   `json:"receipt,omitempty"`
}

const pushoverAPIURL = "https://api.pushover.net/1/messages.json"

func NewPushoverNotifier(cfg *config.Config) *PushoverNotifier {
	return &PushoverNotifier{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiURL: pushoverAPIURL,
	}
}

// IsEnabled follows the live configuration so a reload can toggle it
func (p *PushoverNotifier) IsEnabled() bool {
	return p.config.GetNotifications().Pushover.Enabled
}

func (p *PushoverNotifier) NotifyTransferFailed(record *models.TransferRecord) error {
	if !p.IsEnabled() {
		return nil
	}

	cfg := p.config.GetNotifications().Pushover

	req := pushoverRequest{
		Token:     cfg.Token,
		User:      cfg.User,
		Message:   buildFailedMessage(record),
		Title:     fmt.Sprintf("karsync %s failed", record.Kind),
		Priority:  cfg.Priority,
		Timestamp: time.Now().Unix(),
		Sound:     "falling",
	}

	if req.Priority == 2 {
		req.Retry = int(cfg.RetryInterval.Seconds())
		req.Expire = int(cfg.ExpireTime.Seconds())
	}

	return p.sendNotification(req)
}

func (p *PushoverNotifier) NotifyTransferCompleted(record *models.TransferRecord) error {
	if !p.IsEnabled() {
		return nil
	}

	cfg := p.config.GetNotifications().Pushover

	title := fmt.Sprintf("karsync %s completed", record.Kind)
	if record.Status == models.TransferStatusCancelled {
		title = fmt.Sprintf("karsync %s cancelled", record.Kind)
	}

	req := pushoverRequest{
		Token:     cfg.Token,
		User:      cfg.User,
		Message:   buildCompletedMessage(record),
		Title:     title,
		Priority:  -1,
		Timestamp: time.Now().Unix(),
		Sound:     "none",
	}

	return p.sendNotification(req)
}

// NotifyPendingDeletions warns that a sync is waiting on confirmation to
// delete local files
func (p *PushoverNotifier) NotifyPendingDeletions(record *models.TransferRecord, deleted []string) error {
	if !p.IsEnabled() || len(deleted) == 0 {
		return nil
	}

	cfg := p.config.GetNotifications().Pushover

	req := pushoverRequest{
		Token:     cfg.Token,
		User:      cfg.User,
		Message:   buildDeletionsMessage(record, deleted),
		Title:     fmt.Sprintf("karsync sync would delete %d files", len(deleted)),
		Priority:  0,
		Timestamp: time.Now().Unix(),
		Sound:     "pushover",
	}

	return p.sendNotification(req)
}

func (p *PushoverNotifier) sendNotification(req pushoverRequest) error {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal pushover request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "karsync/1.0")

	slog.Debug("sending pushover notification",
		"title", req.Title,
		"priority", req.Priority)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send pushover notification: %w", err)
	}
	defer resp.Body.Close()

	var pushoverResp pushoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushoverResp); err != nil {
		return fmt.Errorf("failed to decode pushover response: %w", err)
	}

	if pushoverResp.Status != 1 {
		return fmt.Errorf("pushover API error: %s", strings.Join(pushoverResp.Errors, ", "))
	}

	slog.Info("pushover notification sent successfully",
		"request_id", pushoverResp.Request,
		"receipt", pushoverResp.Receipt)

	return nil
}

func writeTransferHeader(msg *strings.Builder, record *models.TransferRecord) {
	msg.WriteString(fmt.Sprintf("Destination: %s\n", record.Destination))
	msg.WriteString(fmt.Sprintf("Remote: %s\n", record.Remote))
	msg.WriteString(fmt.Sprintf("Mode: %s\n", record.Mode))
}

func buildFailedMessage(record *models.TransferRecord) string {
	var msg strings.Builder

	writeTransferHeader(&msg, record)
	if record.ErrorMessage != "" {
		msg.WriteString(fmt.Sprintf("Error: %s\n", record.ErrorMessage))
	}
	if record.CompletedAt != nil {
		duration := record.CompletedAt.Sub(record.CreatedAt)
		msg.WriteString(fmt.Sprintf("Duration: %s\n", duration.Round(time.Second)))
	}
	msg.WriteString(fmt.Sprintf("Transfer ID: %d", record.ID))

	return msg.String()
}

func buildCompletedMessage(record *models.TransferRecord) string {
	var msg strings.Builder

	writeTransferHeader(&msg, record)
	if record.Message != "" {
		msg.WriteString(record.Message + "\n")
	}
	msg.WriteString(fmt.Sprintf("Checks: %d, Transfers: %d, Deletes: %d, Errors: %d\n",
		record.Stats.Checks, record.Stats.Transfers, record.Stats.Deletes, record.Stats.Errors))
	if record.BackupPath != "" {
		msg.WriteString(fmt.Sprintf("Backup: %s\n", record.BackupPath))
	}
	if record.CompletedAt != nil {
		duration := record.CompletedAt.Sub(record.CreatedAt)
		msg.WriteString(fmt.Sprintf("Duration: %s\n", duration.Round(time.Second)))
	}
	msg.WriteString(fmt.Sprintf("Transfer ID: %d", record.ID))

	return msg.String()
}

func buildDeletionsMessage(record *models.TransferRecord, deleted []string) string {
	var msg strings.Builder

	writeTransferHeader(&msg, record)
	msg.WriteString("Would delete:\n")
	for i, path := range deleted {
		if i == maxListedDeletions {
			msg.WriteString(fmt.Sprintf("... and %d more\n", len(deleted)-maxListedDeletions))
			break
		}
		msg.WriteString("- " + path + "\n")
	}
	msg.WriteString(fmt.Sprintf("Transfer ID: %d", record.ID))

	return msg.String()
}
