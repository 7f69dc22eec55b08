package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geckyzz/nyaa-comments/internal/backup"
	"github.com/geckyzz/nyaa-comments/internal/clock"
	"github.com/geckyzz/nyaa-comments/internal/config"
	"github.com/geckyzz/nyaa-comments/internal/fetch"
	"github.com/geckyzz/nyaa-comments/internal/notify"
	"github.com/geckyzz/nyaa-comments/internal/scrape"
	"github.com/geckyzz/nyaa-comments/internal/store"
	"github.com/geckyzz/nyaa-comments/internal/watcher"
)

// animeToshoDefaultPages bounds the feed walk when --max-pages is not given;
// 0 means unlimited there.
const animeToshoDefaultPages = 5

type watchOptions struct {
	dump             bool
	webhookURL       string
	secretWebhookURL string
	cookiesPath      string
	keywords         []string
	maxPages         int
	uploadDB         bool
	dbExpiry         string
}

// newWatchCmd creates the 'watch' subcommand: one scrape-diff-notify run
// against a listing URL or a single torrent view URL.
func newWatchCmd() *cobra.Command {
	opts := &watchOptions{maxPages: -1}

	cmd := &cobra.Command{
		Use:   "watch <url>",
		Short: "Scrapes a site once and notifies about new comments",
		Long: `Runs one pass against a Nyaa.si, Sukebei or AnimeTosho URL: scrapes the
current comment state, diffs it against the local snapshot, sends one webhook
notification per new comment, and saves the snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dump, "dump-comments", false,
		"initialize the snapshot without sending notifications")
	cmd.Flags().StringVar(&opts.webhookURL, "webhook", "",
		"Discord webhook URL (overrides config and environment)")
	cmd.Flags().StringVar(&opts.secretWebhookURL, "secret-webhook", "",
		"separate webhook URL for backup artifacts (download URL and key)")
	cmd.Flags().StringVar(&opts.cookiesPath, "cookies", "",
		"path to a Netscape-format cookie file (Nyaa/Sukebei)")
	cmd.Flags().StringArrayVarP(&opts.keywords, "keyword", "k", nil,
		"filter torrents by title keyword (AnimeTosho, repeatable)")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", -1,
		"maximum listing pages to scrape (0 = unlimited on AnimeTosho)")
	cmd.Flags().BoolVar(&opts.uploadDB, "upload-db", false,
		"upload an encrypted snapshot backup and announce it on the webhook")
	cmd.Flags().StringVar(&opts.dbExpiry, "db-expiry", "",
		"backup expiry class: 1h, 12h, 24h or 72h (default from config)")

	return cmd
}

func runWatch(ctx context.Context, baseURL string, opts *watchOptions) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Flags win over config file and environment.
	if opts.webhookURL != "" {
		cfg.Discord.WebhookURL = opts.webhookURL
	}
	if opts.secretWebhookURL != "" {
		cfg.Discord.SecretWebhookURL = opts.secretWebhookURL
	}
	if opts.cookiesPath != "" {
		cfg.HTTP.CookiesPath = opts.cookiesPath
	}
	if opts.dbExpiry != "" {
		cfg.Backup.Expiry = opts.dbExpiry
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	inCI := os.Getenv("GITHUB_ACTIONS") == "true"
	if !opts.dump && cfg.Discord.WebhookURL == "" {
		return errors.New("no webhook URL configured: set --webhook, discord.webhook_url or NYAA_DISCORD_WEBHOOK_URL")
	}
	if opts.uploadDB && inCI && cfg.Discord.SecretWebhookURL == "" {
		return errors.New("backup upload in CI requires a secret webhook URL so the key never reaches public logs")
	}

	site := scrape.DetectSite(baseURL)
	logger.Info("Starting watch run",
		zap.String("site", site.String()), zap.String("url", baseURL))

	clk := clock.New()
	fetcher, err := fetch.New(cfg.HTTP, clk, logger)
	if err != nil {
		return err
	}

	scraper, err := buildScraper(site, baseURL, opts, fetcher, clk, logger)
	if err != nil {
		return err
	}

	var notifier watcher.Notifier
	if cfg.Discord.WebhookURL != "" {
		notifier = notify.NewDispatcher(cfg.Discord.WebhookURL, cfg.HTTP.Timeout(), clk, logger)
	}

	snap := store.Open(site.SnapshotFile(), logger)
	if err := watcher.New(scraper, snap, notifier, opts.dump, logger).Run(ctx); err != nil {
		return err
	}

	if opts.uploadDB {
		return runBackup(ctx, cfg, snap.Path(), clk, inCI, logger)
	}
	return nil
}

func buildScraper(site scrape.Site, baseURL string, opts *watchOptions, fetcher *fetch.Fetcher, clk *clock.System, logger *zap.Logger) (scrape.Scraper, error) {
	if site == scrape.SiteAnimeTosho {
		maxPages := opts.maxPages
		if maxPages < 0 {
			maxPages = animeToshoDefaultPages
		}
		return scrape.NewAnimeTosho(baseURL, opts.keywords, maxPages, fetcher, clk, logger), nil
	}
	maxPages := opts.maxPages
	if maxPages < 0 {
		maxPages = 0
	}
	return scrape.NewNyaa(baseURL, maxPages, fetcher, logger)
}

// runBackup packages the saved snapshot and announces the artifact. The key
// goes to the secret webhook when one is configured; it is printed only
// outside CI.
func runBackup(ctx context.Context, cfg config.Config, snapshotPath string, clk *clock.System, inCI bool, logger *zap.Logger) error {
	uploader := backup.NewUploader(cfg.Backup.UploadURL, logger)
	artifact, err := backup.NewPackager(uploader, logger).Package(ctx, snapshotPath, cfg.Backup.Expiry)
	if err != nil {
		return fmt.Errorf("backup upload: %w", err)
	}

	if inCI {
		logger.Info("Backup uploaded; artifact details sent to webhook only")
	} else {
		fmt.Printf("Download URL: %s\nDecryption Key: %s\nExpiry: %s\n",
			artifact.URL, artifact.Key, artifact.Expiry)
	}

	noticeURL := cfg.Discord.SecretWebhookURL
	if noticeURL == "" {
		noticeURL = cfg.Discord.WebhookURL
	}
	if noticeURL == "" {
		return nil
	}
	dispatcher := notify.NewDispatcher(noticeURL, cfg.HTTP.Timeout(), clk, logger)
	if err := dispatcher.SendBackupNotice(ctx, artifact.URL, artifact.Key, artifact.Expiry); err != nil {
		return err
	}
	logger.Info("Backup notification sent")
	return nil
}
