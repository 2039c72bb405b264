package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sitedex/sitedex/internal/app"
	"github.com/sitedex/sitedex/internal/config"
	"github.com/sitedex/sitedex/internal/converter"
	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/extractor"
	"github.com/sitedex/sitedex/internal/fetcher"
	"github.com/sitedex/sitedex/internal/index"
	"github.com/sitedex/sitedex/internal/notify"
	"github.com/sitedex/sitedex/internal/sitemap"
	"github.com/sitedex/sitedex/internal/utils"
	"github.com/sitedex/sitedex/pkg/version"
)

// doctorTimeout bounds each reachability probe of the doctor subcommand.
const doctorTimeout = 5 * time.Second

var (
	verbose bool
	log     *utils.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sitedex <config> [url]",
	Short: "Crawl sitemap-listed sites into a search index",
	Long: `Sitedex crawls the sites listed in a configuration file, guided by their
sitemaps, and indexes every listed document into Solr. Text and metadata are
extracted from the downloaded documents through an Apache Tika server.

Passing a URL as the second argument restricts the run to that single URL.`,
	Version: version.Short(),
	Args:    cobra.RangeArgs(1, 2),
	RunE:    run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("tika", "", "Tika base URL, overrides the configuration file")
	flags.String("solr", "", "Solr core URL, overrides the configuration file")
	flags.String("notify-webhook", "", "Webhook URL for failure notifications")
	flags.BoolP("force", "f", false, "Ignore freshness checks and re-fetch everything")
	flags.Duration("timeout", config.DefaultTimeout, "HTTP request timeout")
	flags.String("user-agent", "", "Custom User-Agent")
	flags.String("log-format", config.DefaultLogFormat, "Log format (pretty or json)")
	flags.Bool("no-progress", false, "Disable the progress bar")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Bind flags to viper
	_ = viper.BindPFlag("tika_url", flags.Lookup("tika"))
	_ = viper.BindPFlag("solr_url", flags.Lookup("solr"))
	_ = viper.BindPFlag("notify_webhook", flags.Lookup("notify-webhook"))
	_ = viper.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("user_agent", flags.Lookup("user-agent"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))
	_ = viper.BindPFlag("no_progress", flags.Lookup("no-progress"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fieldsCmd)
	rootCmd.AddCommand(doctorCmd)
}

func run(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	logLevel := settings.LogLevel
	if verbose {
		logLevel = "debug"
	}
	log = utils.NewLogger(utils.LoggerOptions{
		Level:   logLevel,
		Format:  settings.LogFormat,
		Verbose: verbose,
	})

	// Load configuration
	cfg, err := config.NewLoader().Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyOverrides(settings.TikaURL, settings.SolrURL, settings.NotifyWebhook); err != nil {
		return err
	}

	// An explicit URL must belong to one of the configured sites.
	var filterURL string
	if len(args) > 1 {
		filterURL = args[1]
		if _, err := cfg.GetSite(filterURL); err != nil {
			return err
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info().Msg("shutting down gracefully")
		cancel()
	}()

	force, _ := cmd.Flags().GetBool("force")

	// The site-facing client is shared by the sitemap layer and the fetcher;
	// the plain HTTP client talks to the local services.
	client, err := fetcher.NewClient(fetcher.ClientOptions{
		Timeout:   settings.Timeout,
		UserAgent: settings.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	defer client.Close()

	gatherer, err := sitemap.NewGatherer(client, log)
	if err != nil {
		return fmt.Errorf("failed to create sitemap gatherer: %w", err)
	}
	defer gatherer.Close()

	set, err := extractor.NewSet(cfg, log)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: settings.Timeout}
	orchestrator, err := app.NewOrchestrator(cfg, app.Dependencies{
		Sitemaps: sitemap.NewIndexFetcher(gatherer, log),
		NewFetcher: func(tempDir string) domain.Fetcher {
			return fetcher.New(client, tempDir, force, log)
		},
		Index:    index.NewClient(cfg.Solr, httpClient, log),
		Engine:   extractor.NewEngine(converter.NewClient(cfg.Tika, httpClient, log), set, log),
		Notifier: notify.New(cfg.NotifyWebhook, httpClient, log),
		Log:      log,
	}, app.Options{
		FilterURL:  filterURL,
		NoProgress: settings.NoProgress || verbose,
	})
	if err != nil {
		return err
	}

	return orchestrator.Run(ctx)
}

var fieldsCmd = &cobra.Command{
	Use:   "fields <config>",
	Short: "Show the fields a configuration defines",
	Long:  "Loads a configuration file and renders its field set as a table.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewLoader().Load(args[0])
		if err != nil {
			return err
		}
		renderFields(os.Stdout, cfg)
		return nil
	},
}

func renderFields(w io.Writer, cfg *config.Config) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Type", "Extractor", "Required", "Multivalued"})
	for _, field := range cfg.Fields {
		t.AppendRow(table.Row{
			field.Name,
			string(field.Type),
			field.Extractor.String(),
			field.Required,
			field.Multivalued,
		})
	}
	t.Render()
}

var doctorCmd = &cobra.Command{
	Use:   "doctor [config]",
	Short: "Check that the crawl's external services are reachable",
	Long: `Verifies the crawl prerequisites: the configuration file loads, the Tika
and Solr services answer, and a scratch directory can be created. Service
URLs come from the flags, the environment, or the configuration file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: doctor,
}

func doctor(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	tika, solr := settings.TikaURL, settings.SolrURL

	fmt.Println("Checking crawl prerequisites...")
	failed := 0

	if len(args) > 0 {
		fmt.Print("  Configuration file: ")
		cfg, err := config.NewLoader().Load(args[0])
		if err != nil {
			fmt.Printf("FAILED (%v)\n", err)
			failed++
		} else {
			fmt.Println("OK")
			if tika == "" {
				tika = cfg.Tika
			}
			if solr == "" {
				solr = cfg.Solr
			}
		}
	}

	client := &http.Client{Timeout: doctorTimeout}

	fmt.Print("  Converter service: ")
	switch {
	case tika == "":
		fmt.Println("SKIPPED (no tika URL known)")
	case checkEndpoint(client, strings.TrimSuffix(tika, "/")+"/tika"):
		fmt.Printf("OK (%s)\n", tika)
	default:
		fmt.Printf("FAILED (%s)\n", tika)
		failed++
	}

	fmt.Print("  Search index: ")
	switch {
	case solr == "":
		fmt.Println("SKIPPED (no solr URL known)")
	case checkEndpoint(client, strings.TrimSuffix(solr, "/")+"/select?q=*:*&rows=0&wt=json"):
		fmt.Printf("OK (%s)\n", solr)
	default:
		fmt.Printf("FAILED (%s)\n", solr)
		failed++
	}

	fmt.Print("  Scratch directory: ")
	if checkScratchDir() {
		fmt.Println("OK")
	} else {
		fmt.Println("FAILED")
		failed++
	}

	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Println("All checks passed!")
	return nil
}

// checkEndpoint reports whether a GET on the URL answers below 400.
func checkEndpoint(client *http.Client, url string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 400
}

// checkScratchDir reports whether a scratch directory can be created where
// the crawl will want one.
func checkScratchDir() bool {
	dir, err := os.MkdirTemp("", "sitedex-")
	if err != nil {
		return false
	}
	os.RemoveAll(dir)
	return true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Full())
	},
}
