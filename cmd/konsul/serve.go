package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/konsul-app/konsul-backend/internal/cache"
	"github.com/konsul-app/konsul-backend/internal/channels"
	"github.com/konsul-app/konsul-backend/internal/config"
	"github.com/konsul-app/konsul-backend/internal/domain"
	httpapi "github.com/konsul-app/konsul-backend/internal/http"
	"github.com/konsul-app/konsul-backend/internal/media"
	"github.com/konsul-app/konsul-backend/internal/observability"
	"github.com/konsul-app/konsul-backend/internal/reply"
	"github.com/konsul-app/konsul-backend/internal/repo"
	"github.com/konsul-app/konsul-backend/internal/services"
	"github.com/konsul-app/konsul-backend/internal/sysutil"
)

const receiptPurgeInterval = time.Hour

func serveCmd(a *app) *cobra.Command {
	autoMigrate := sysutil.IsTruthy(sysutil.FirstNonEmpty(os.Getenv("AUTO_MIGRATE"), "true"))
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhooks and webchat endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), autoMigrate)
		},
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", autoMigrate, "migrate the schema before serving (env AUTO_MIGRATE)")
	return cmd
}

func (a *app) serve(parent context.Context, autoMigrate bool) error {
	cfg := a.cfg
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := a.openDB(ctx, autoMigrate)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close(db) }()

	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	var keys *cache.ChannelKeyCache
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		keys = cache.NewChannelKeyCache(rdb, cfg.ChannelCacheTTL)
		log.Info().Dur("ttl", cfg.ChannelCacheTTL).Msg("channel key cache enabled")
	}

	ingest, err := newIngest(cfg, db, keys)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Keys: keys, Matcher: ingest.Matcher, Ingest: ingest}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeReceipts(ctx, ingest)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// newIngest assembles the inbound pipeline: provider registry, intent
// matching and execution, reply generation and attachment storage.
func newIngest(cfg config.Config, db *gorm.DB, keys *cache.ChannelKeyCache) (*services.IngestService, error) {
	store, err := media.NewDiskStore(cfg.Media.Dir, cfg.Media.BaseURL)
	if err != nil {
		return nil, err
	}

	graph := channels.NewGraphClient(cfg.Meta.GraphBaseURL, cfg.ProviderHTTPTimeout)
	if cfg.Media.MaxFileBytes > 0 {
		graph.MaxBytes = cfg.Media.MaxFileBytes
	}

	var gens []reply.Generator
	if g := reply.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model, channels.SharedHTTPClient(cfg.ProviderHTTPTimeout)); g != nil {
		gens = append(gens, g)
	} else {
		log.Info().Msg("OPENAI_API_KEY not set; replies come from agent knowledge only")
	}
	gens = append(gens, reply.NewKnowledge())

	return &services.IngestService{
		DB:        db,
		Channels:  services.NewChannelService(db, keys),
		Providers: channels.NewRegistry(graph),
		Matcher:   services.NewMatcher(),
		Executor:  services.NewIntentExecutor(db, nil, cfg.IntentWebhookTimeout),
		Replies:   reply.NewChain(gens...),
		Media: &media.Pipeline{
			Transcoder: media.Transcoder{
				MaxWidth:  cfg.Media.MaxWidth,
				Quality:   cfg.Media.Quality,
				MaxPixels: cfg.Media.MaxPixels,
			},
			Store:      store,
			MaxBytes:   cfg.Media.MaxFileBytes,
		},
		FallbackTokens: map[domain.ChannelType]string{
			domain.ChannelWhatsApp:  cfg.Meta.WhatsAppAccessToken,
			domain.ChannelMessenger: cfg.Meta.PageAccessToken,
			domain.ChannelInstagram: cfg.Meta.PageAccessToken,
		},
		ReceiptTTL:     cfg.ReceiptTTL,
		IdempotencyTTL: cfg.IdempotencyTTL,
		HistoryLimit:   cfg.ReplyHistoryLimit,
	}, nil
}

func purgeReceipts(ctx context.Context, ingest *services.IngestService) {
	t := time.NewTicker(receiptPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := ingest.PurgeReceipts(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purge receipts")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("expired receipts purged")
			}
		}
	}
}
