package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dashboard-api/internal/api"
	"github.com/sells-group/dashboard-api/internal/chat"
	"github.com/sells-group/dashboard-api/internal/config"
	"github.com/sells-group/dashboard-api/internal/enhance"
	"github.com/sells-group/dashboard-api/internal/events"
	"github.com/sells-group/dashboard-api/internal/llm"
	"github.com/sells-group/dashboard-api/internal/scrape"
	"github.com/sells-group/dashboard-api/internal/sse"
	"github.com/sells-group/dashboard-api/internal/store"
	"github.com/sells-group/dashboard-api/internal/tools"
	"github.com/sells-group/dashboard-api/internal/webcontent"
	"github.com/sells-group/dashboard-api/pkg/firecrawl"
	"github.com/sells-group/dashboard-api/pkg/jina"
	"github.com/sells-group/dashboard-api/pkg/notion"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close() //nolint:errcheck

		if serveMigrate {
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate")
			}
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(cfg, st, events.NewHub()),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply the schema before serving")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter assembles every HTTP dependency from configuration.
func buildRouter(c *config.Config, st store.Store, hub *events.Hub) http.Handler {
	pc := llm.ProviderConfigFrom(c)

	return api.NewServer(st, hub, api.Options{
		AllowedOrigins: c.Server.AllowedOrigins,
		SSE: sse.Options{
			KeepAlive: time.Duration(c.Events.KeepAliveSecs) * time.Second,
			QueueSize: c.Events.QueueSize,
		},
		Chat:     newChatHandler(c, st, pc),
		Provider: func() (bool, string) { return llm.Validate(pc) },
	}).Router()
}

func newChatHandler(c *config.Config, st store.Store, pc llm.ProviderConfig) *chat.Handler {
	var fc firecrawl.Client
	var scrapers []scrape.Scraper
	if c.Firecrawl.Key != "" {
		fc = firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
		scrapers = append(scrapers, scrape.NewFirecrawlAdapter(fc))
	}
	if c.Jina.Key != "" {
		scrapers = append(scrapers, scrape.NewJinaAdapter(jina.NewClient(c.Jina.Key, jina.WithBaseURL(c.Jina.BaseURL))))
	}

	// Without a scraping credential the fetcher stays disabled.
	var scraper scrape.Scraper
	if len(scrapers) > 0 {
		scraper = scrape.NewChain(scrapers...)
	}
	fetcher := webcontent.NewFetcher(
		scraper,
		webcontent.NewCache(time.Duration(c.Enhance.CacheTTLMins)*time.Minute),
	)
	enhancer := enhance.New(fetcher,
		enhance.WithMaxURLs(c.Enhance.MaxURLs),
		enhance.WithMaxContentChars(c.Enhance.MaxContentChars),
	)

	var nc notion.Client
	if c.Notion.Token != "" {
		nc = notion.NewClient(c.Notion.Token, notion.WithRateLimit(c.Notion.RateLimit))
	}
	registry := tools.Default(tools.Deps{
		Store:            st,
		Notion:           nc,
		NotionDatabaseID: c.Notion.DatabaseID,
		Firecrawl:        fc,
	})

	// The provider settings are fixed for the process, so the model is built
	// once. A configuration error is reported on every chat request.
	m, err := llm.Select(pc)
	if err != nil {
		zap.L().Warn("chat provider unavailable", zap.Error(err))
	} else {
		zap.L().Info("chat provider ready", zap.String("model", m.Name()))
	}
	resolve := func() (llm.Model, error) { return m, err }

	return chat.NewHandler(enhancer, resolve, registry,
		chat.WithLimits(c.Chat.MaxSteps, int64(c.Chat.MaxTokens)))
}
