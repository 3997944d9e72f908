package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apemarkets/curator/internal/approval"
	s3blob "github.com/apemarkets/curator/internal/blob/s3"
	"github.com/apemarkets/curator/internal/cache/redis"
	"github.com/apemarkets/curator/internal/canonical"
	"github.com/apemarkets/curator/internal/categorize"
	"github.com/apemarkets/curator/internal/config"
	"github.com/apemarkets/curator/internal/deploy"
	"github.com/apemarkets/curator/internal/domain"
	"github.com/apemarkets/curator/internal/imagegen"
	"github.com/apemarkets/curator/internal/notify"
	"github.com/apemarkets/curator/internal/pipeline"
	"github.com/apemarkets/curator/internal/platform/polymarket"
	"github.com/apemarkets/curator/internal/store/postgres"
	"github.com/apemarkets/curator/internal/surface/slack"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore      domain.MarketStore
	LedgerStore      domain.LedgerStore
	ApprovalLogStore domain.ApprovalLogStore

	// Caches
	SeenCache   domain.SeenCache
	LockManager domain.LockManager

	// Collaborators
	Notifier  *notify.Notifier
	Approvals *approval.Service

	// Pipeline passes
	Ingestor  *pipeline.Ingestor
	Decisions *pipeline.Decisions
	Sweeper   *pipeline.Sweeper
	Intervals pipeline.Intervals
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.LedgerStore = postgres.NewLedgerStore(pool)
	deps.ApprovalLogStore = postgres.NewApprovalLogStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.SeenCache = redis.NewSeenCache(redisClient, cfg.Redis.SeenTTL.Duration)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- S3 raw payload archive (optional) ---
	var archiver pipeline.RawArchiver
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Upstream source and curation ---
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	canon := canonical.New(cfg.Pipeline.AllowedImageHosts, logger)

	categorizer, err := categorize.New(categorize.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Timeout:     cfg.OpenAI.Timeout.Duration,
		MaxAttempts: cfg.OpenAI.MaxAttempts,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: categorizer: %w", err)
	}

	// --- Review surface ---
	surf := slack.New(slack.Config{
		Token:         cfg.Slack.Token,
		ReviewChannel: cfg.Slack.ReviewChannel,
		ImageChannel:  cfg.Slack.ImageChannel,
		BotUserID:     cfg.Slack.BotUserID,
	}, logger)

	// --- Optional collaborators ---
	var images pipeline.ImageGenerator
	if cfg.ImageGen.Enabled {
		images = imagegen.New(imagegen.Config{
			BaseURL: cfg.ImageGen.BaseURL,
			APIKey:  cfg.ImageGen.APIKey,
			Timeout: cfg.ImageGen.Timeout.Duration,
		}, logger)
	}

	var deployer pipeline.Deployer
	if cfg.Apechain.Enabled {
		target, err := deploy.New(ctx, deploy.Config{
			RPCURL:          cfg.Apechain.RPCURL,
			ChainID:         cfg.Apechain.ChainID,
			ContractAddress: cfg.Apechain.ContractAddress,
			GasLimit:        cfg.Apechain.GasLimit,
			Key: deploy.KeyConfig{
				RawPrivateKey:    cfg.Apechain.PrivateKey,
				EncryptedKeyPath: cfg.Apechain.EncryptedKeyPath,
				KeyPassword:      cfg.Apechain.KeyPassword,
			},
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: apechain: %w", err)
		}
		closers = append(closers, target.Close)
		deployer = target
	}

	// --- Pipeline passes ---
	deps.Approvals = approval.NewService(deps.MarketStore, deps.ApprovalLogStore, logger)

	deps.Ingestor = pipeline.NewIngestor(
		gamma, canon, deps.MarketStore, deps.LedgerStore, deps.SeenCache,
		surf, archiver, deps.LockManager, cfg.Polymarket.FetchLimit, logger,
	)
	deps.Decisions = pipeline.NewDecisions(
		deps.MarketStore, deps.Approvals, surf, gamma, canon,
		categorizer, images, deployer, deps.Notifier, deps.LockManager, logger,
	)
	deps.Sweeper = pipeline.NewSweeper(
		deps.Approvals, deps.Notifier, deps.LockManager,
		cfg.Approval.TimeoutHorizon.Duration, logger,
	)
	deps.Intervals = pipeline.Intervals{
		Fetch:     cfg.Pipeline.FetchInterval.Duration,
		Decisions: cfg.Approval.PollInterval.Duration,
		Sweep:     cfg.Approval.SweepInterval.Duration,
	}

	return deps, cleanup, nil
}
