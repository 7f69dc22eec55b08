package notify

import (
	"context"
	"fmt"
	"time"
)

// SendBackupNotice announces an uploaded snapshot backup on the webhook:
// download URL, fenced decryption key and the expiry class. This is the only
// channel the key travels over; it is never sent to the file host. A failure
// is returned rather than retried.
func (d *Dispatcher) SendBackupNotice(ctx context.Context, downloadURL, key, expiry string) error {
	payload := webhookMessage{
		Embeds: []Embed{{
			Title:       "Database Backup Uploaded",
			Color:       colorBackup,
			Description: "Encrypted database backup has been uploaded to Catbox Litterbox.",
			Fields: []EmbedField{
				{Name: "Download URL", Value: downloadURL},
				{Name: "Decryption Key", Value: fmt.Sprintf("```%s```", key)},
				{Name: "Expiry", Value: expiry, Inline: true},
			},
			Timestamp: time.Now().UTC().Format(embedTimeLayout),
		}},
		Username:  "Database Backup",
		AvatarURL: defaultAvatarURL,
	}

	res, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(d.webhookURL)
	if err != nil {
		return fmt.Errorf("send backup notice: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("send backup notice: unexpected status %d", res.StatusCode())
	}
	return nil
}
