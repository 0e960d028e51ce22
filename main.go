package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ngxthien/riskrecon/internal/api"
	"github.com/ngxthien/riskrecon/internal/auth"
	"github.com/ngxthien/riskrecon/internal/config"
	"github.com/ngxthien/riskrecon/internal/crawl"
	"github.com/ngxthien/riskrecon/internal/export"
	"github.com/ngxthien/riskrecon/internal/mcp"
	"github.com/ngxthien/riskrecon/internal/recon"
	"github.com/ngxthien/riskrecon/internal/store"
	"github.com/ngxthien/riskrecon/internal/task"
	"github.com/ngxthien/riskrecon/pkg/audit"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "label":
		cmdLabel(os.Args[2:])
	case "match":
		cmdMatch(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "version":
		fmt.Printf("riskrecon %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`riskrecon — post ingestion and risk reconciliation engine

Usage:
  riskrecon serve [--config config.toml] [--addr :8080]
  riskrecon label [--config config.toml]
  riskrecon match [--config config.toml] [usernames...]
  riskrecon mcp   [--config config.toml]
  riskrecon version
  riskrecon help

Commands:
  serve     Start the HTTP server
  label     Join the label table onto the post table
  match     Match usernames against the history store
  mcp       Serve the reconciliation tools over MCP stdio
  version   Print version
  help      Show this help`)
}

func loadConfig(fs *flag.FlagSet, args []string) *config.Config {
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	return cfg
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	tasks, err := task.Open(cfg.Task.Path)
	if err != nil {
		log.Fatalf("opening task store: %v", err)
	}
	defer tasks.Close()

	auditLog := audit.NewSQLiteLogger(tasks.DB())
	if err := auditLog.Init(); err != nil {
		log.Fatalf("initializing audit log: %v", err)
	}
	defer auditLog.Close()

	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.OperatorHandle, cfg.Auth.OperatorPasswordHash, cfg.Auth.TokenExpiryMin)

	// The scraper collaborator is external; without one, crawl requests
	// answer with a structured error.
	runner := crawl.NewRunner(nil, tasks, cfg.Data.HistoryPath(), cfg.Data.UserHistoryPath())

	apiHandler := api.New(cfg, a, tasks, runner, auditLog)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	slog.Info("riskrecon listening", "version", version, "addr", cfg.Server.Addr)
	slog.Info("data dir", "path", cfg.Data.Dir)
	if a.Enabled() {
		slog.Info("operator auth: enabled")
	} else {
		slog.Info("operator auth: disabled (development mode)")
	}

	if err := http.ListenAndServe(cfg.Server.Addr, api.SecurityHeaders(mux)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// cmdLabel joins label.csv onto main_posts.csv by positional offset and
// writes the labeled table to its own file, leaving the canonical post
// table untouched.
func cmdLabel(args []string) {
	fs := flag.NewFlagSet("label", flag.ExitOnError)
	cfg := loadConfig(fs, args)

	labels, err := store.LoadLabels(cfg.Data.LabelsPath())
	if err != nil {
		log.Fatalf("loading labels: %v", err)
	}
	table, err := store.LoadPosts(cfg.Data.MainPostsPath())
	if err != nil {
		log.Fatalf("loading posts: %v", err)
	}

	result := recon.ApplyLabels(labels, table.Posts)
	table.Posts = result.Posts
	table.EnsureColumn("label")
	if err := store.WritePosts(cfg.Data.LabeledPostsPath(), table); err != nil {
		log.Fatalf("writing labeled posts: %v", err)
	}

	slog.Info("labels joined", "labeled", result.Labeled, "unlabeled", result.Unlabeled,
		"label_rows", result.LabelRows, "output", cfg.Data.LabeledPostsPath())
	if result.MaxOffset >= len(result.Posts) {
		slog.Warn("label table refers past the end of the post table; files may be out of sync",
			"max_offset", result.MaxOffset, "posts", len(result.Posts))
	}
}

// cmdMatch resolves usernames against the history store and rewrites
// the normalized user history export. Without explicit usernames it
// takes the reference table's first users.
func cmdMatch(args []string) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	usernames := fs.Args()
	if len(usernames) == 0 {
		table, err := store.LoadPosts(cfg.Data.FilteredPostsPath())
		if errors.Is(err, store.ErrNotFound) {
			table, err = store.LoadPosts(cfg.Data.MainPostsPath())
		}
		if err != nil {
			log.Fatalf("loading posts: %v", err)
		}
		usernames = table.Usernames()
		if max := cfg.Crawl.MaxUsers; max > 0 && len(usernames) > max {
			usernames = usernames[:max]
		}
	}

	history, err := store.LoadHistory(cfg.Data.HistoryPath())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Fatalf("loading history: %v", err)
	}

	result, outcome := recon.MatchHistories(usernames, history)
	if outcome.Status != recon.StatusSuccess {
		fmt.Printf("%s: %s\n", outcome.Status, outcome.Message)
		return
	}
	if err := export.WriteUserHistory(cfg.Data.UserHistoryPath(), result.Flattened); err != nil {
		log.Fatalf("writing user history export: %v", err)
	}

	fmt.Printf("matched %d users (%d posts) -> %s\n",
		len(result.FoundIDs), len(result.Flattened), cfg.Data.UserHistoryPath())
	if len(result.NotFound) > 0 {
		fmt.Printf("not found: %s\n", strings.Join(result.NotFound, ", "))
	}
}

// cmdMCP serves the reconciliation tools over stdio for MCP clients.
func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	cfg := loadConfig(fs, args)

	tasks, err := task.Open(cfg.Task.Path)
	if err != nil {
		log.Fatalf("opening task store: %v", err)
	}
	defer tasks.Close()

	auditLog := audit.NewSQLiteLogger(tasks.DB())
	if err := auditLog.Init(); err != nil {
		log.Fatalf("initializing audit log: %v", err)
	}
	defer auditLog.Close()

	srv := mcp.NewServer(cfg, auditLog)
	if err := server.ServeStdio(srv); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
