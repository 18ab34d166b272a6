package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/deusflow/newsletter/internal/app"
	"github.com/deusflow/newsletter/internal/cache"
	"github.com/deusflow/newsletter/internal/config"
	"github.com/deusflow/newsletter/internal/delivery"
	"github.com/deusflow/newsletter/internal/email"
	"github.com/deusflow/newsletter/internal/feeds"
	"github.com/deusflow/newsletter/internal/llm"
	"github.com/deusflow/newsletter/internal/logger"
	"github.com/deusflow/newsletter/internal/news"
	"github.com/deusflow/newsletter/internal/newsletter"
	"github.com/deusflow/newsletter/internal/ratelimit"
	"github.com/deusflow/newsletter/internal/render"
	"github.com/deusflow/newsletter/internal/scraper"
	"github.com/deusflow/newsletter/internal/server"
	"github.com/deusflow/newsletter/internal/storage"
	"github.com/deusflow/newsletter/internal/summarize"
	"github.com/deusflow/newsletter/internal/whatsapp"
)

const usage = `Usage: newsletter <command> [flags]

Commands:
  generate        build today's newsletter from saved preferences and send it to all active recipients
  generate-for    build and send a newsletter for one recipient (-id)
  send            re-send a stored newsletter (-newsletter -recipient [-email] [-whatsapp])
  preview         show the top articles for topics (-topics)
  list            show the most recent newsletters ([-limit])
  subscribe       add or reactivate a recipient
  unsubscribe     deactivate a recipient (-id)
  preferences     save the shared topics, prompt and style
  serve           run the HTTP server (health, metrics, artifacts, POST /generate)
`

func main() {
	// .env is optional
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log, os.Args[1], os.Args[2:])
	stop()

	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.WithError(err).Debug("Command failed")
			fmt.Fprintln(os.Stderr, app.UserMessage(err))
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, cmd string, args []string) error {
	deps, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close()

	svc := deps.service

	switch cmd {
	case "generate":
		rep, err := svc.Generate(ctx)
		if err != nil {
			return err
		}
		return printJSON(rep)

	case "generate-for":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		id := fs.String("id", "", "recipient ID")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *id == "" {
			return errors.New("-id is required")
		}
		rep, err := svc.GenerateForRecipient(ctx, *id)
		if err != nil {
			return err
		}
		return printJSON(rep)

	case "send":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		nid := fs.String("newsletter", "", "newsletter ID")
		rid := fs.String("recipient", "", "recipient ID")
		viaEmail := fs.Bool("email", false, "send by email")
		viaWhatsApp := fs.Bool("whatsapp", false, "send by WhatsApp")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *nid == "" || *rid == "" {
			return errors.New("-newsletter and -recipient are required")
		}
		res, err := svc.Send(ctx, *nid, *rid, delivery.Channels{Email: *viaEmail, WhatsApp: *viaWhatsApp})
		if err != nil {
			return err
		}
		return printJSON(res)

	case "preview":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		topics := fs.String("topics", "", "comma-separated topics")
		if err := fs.Parse(args); err != nil {
			return err
		}
		list := news.ParseTopics(*topics)
		if len(list) == 0 {
			return newsletter.ErrInvalidTopics
		}
		articles, err := svc.Preview(ctx, list)
		if err != nil {
			return err
		}
		for i, a := range articles {
			fmt.Printf("%d. [%d] %s (%s)\n   %s\n   %s\n\n", i+1, a.RelevanceScore, a.Title, a.Source, a.Summary, a.Link)
		}
		return nil

	case "list":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		limit := fs.Int("limit", 10, "how many newsletters to show")
		if err := fs.Parse(args); err != nil {
			return err
		}
		list, err := svc.RecentNewsletters(ctx, *limit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No newsletters generated yet.")
		}
		for _, n := range list {
			fmt.Printf("%s  %s  %s\n   topics: %s\n   pdf: %s\n   audio: %s\n\n",
				n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Title, n.Topics, n.PDFPath, n.AudioPath)
		}
		return nil

	case "subscribe":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		var in newsletter.SubscribeInput
		fs.StringVar(&in.Name, "name", "", "full name")
		fs.StringVar(&in.Email, "email", "", "email address")
		fs.StringVar(&in.WhatsApp, "whatsapp", "", "WhatsApp number with country code")
		fs.StringVar(&in.Topics, "topics", "", "comma-separated topics")
		styleFlags(fs, &in.Style)
		if err := fs.Parse(args); err != nil {
			return err
		}
		r, created, err := svc.Subscribe(ctx, in)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("Successfully subscribed %s (id %s). You'll receive personalized newsletters via email and WhatsApp.\n", r.Email, r.ID)
		} else {
			fmt.Printf("Subscription for %s updated (id %s).\n", r.Email, r.ID)
		}
		return nil

	case "unsubscribe":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		id := fs.String("id", "", "recipient ID")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := svc.Unsubscribe(ctx, *id); err != nil {
			return err
		}
		fmt.Println("You have been unsubscribed.")
		return nil

	case "preferences":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		var p newsletter.Preferences
		fs.StringVar(&p.Topics, "topics", "", "comma-separated topics")
		fs.StringVar(&p.Prompt, "prompt", "", "extra instructions for the summaries")
		styleFlags(fs, &p.Style)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := svc.SavePreferences(ctx, p); err != nil {
			return err
		}
		fmt.Println("Preferences saved successfully!")
		return nil

	case "serve":
		srv := server.New(cfg.ArtifactsDir, log,
			server.WithSidecar(deps.sidecar),
			server.WithGenerator(svc),
			server.WithBudget(deps.budget),
		)
		return srv.Run(ctx, cfg.HTTPAddr)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func styleFlags(fs *flag.FlagSet, s *newsletter.Style) {
	fs.StringVar(&s.PrimaryColor, "primary", newsletter.DefaultPrimaryColor, "primary colour (#rrggbb)")
	fs.StringVar(&s.SecondaryColor, "secondary", newsletter.DefaultSecondaryColor, "secondary colour (#rrggbb)")
	fs.StringVar(&s.FontStyle, "font", newsletter.DefaultFontStyle, "font style: modern, classic or elegant")
}

type wiring struct {
	service *app.Service
	sidecar *whatsapp.Client
	budget  *ratelimit.Budget
	closers []io.Closer
	log     logrus.FieldLogger
}

func (w *wiring) close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i].Close(); err != nil {
			w.log.Warnf("Close failed: %v", err)
		}
	}
}

func wire(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*wiring, error) {
	w := &wiring{log: log}

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	w.closers = append(w.closers, store)

	completer, err := llm.New(ctx, cfg)
	if err != nil {
		w.close()
		return nil, fmt.Errorf("init LLM: %w", err)
	}
	if c, ok := completer.(io.Closer); ok {
		w.closers = append(w.closers, c)
	}

	summaryCache := cache.New[string](cfg.SummaryCacheTTL, 10*time.Minute)
	w.closers = append(w.closers, closerFunc(summaryCache.Close))

	w.budget = ratelimit.NewBudget(cfg.MaxLLMRequests, log)
	summarizer := summarize.New(completer,
		summarize.WithBudget(w.budget),
		summarize.WithCache(summaryCache),
		summarize.WithLogger(log),
	)

	catalog, err := feeds.LoadCatalog(cfg.FeedsConfigPath)
	if err != nil {
		w.close()
		return nil, fmt.Errorf("load feed catalog: %w", err)
	}
	fetcher := feeds.NewFetcher(catalog,
		feeds.WithHTTPClient(&http.Client{Timeout: cfg.FeedTimeout}),
		feeds.WithConcurrency(cfg.FeedConcurrency),
		feeds.WithLogger(log),
	)

	w.sidecar = whatsapp.NewClient(cfg.WhatsAppServiceURL, cfg.WhatsAppTextTimeout, cfg.WhatsAppMediaTimeout)

	var mail delivery.EmailSender
	if cfg.SMTPConfigured() {
		mail = email.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPEmail, cfg.SMTPPassword)
	} else {
		log.Warn("SMTP credentials not set, email delivery disabled")
	}

	deps := app.Deps{
		Store:      store,
		Fetcher:    fetcher,
		Summarizer: summarizer,
		PDF:        render.NewPDFRenderer(log),
		Audio:      render.NewAudioRenderer(render.NewGoogleTTS(cfg.TTSLanguage)),
		Delivery:   delivery.NewDispatcher(mail, w.sidecar, cfg.PublicBaseURL, log),
		Log:        log,
	}
	opts := app.Options{NewsLimit: cfg.NewsLimit, ArtifactsDir: cfg.ArtifactsDir}
	if cfg.ScrapeFullText {
		deps.Enricher = scraper.New(log)
		opts.ScrapeArticles = cfg.ScrapeMaxArticles
	}

	w.service = app.New(deps, opts)
	return w, nil
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
