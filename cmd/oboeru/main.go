// Package main is the oboeru CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/oboeru/internal/brain"
	"github.com/hyperjump/oboeru/internal/config"
	"github.com/hyperjump/oboeru/internal/models"
	"github.com/hyperjump/oboeru/internal/watcher"
	"github.com/hyperjump/oboeru/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/oboeru/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory wins (for development).
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				return config.Load(fallback)
			}
		}
	}
	return config.Load(path)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "remove":
		runRemove()
	case "graph":
		runGraph()
	case "status":
		runStatus()
	case "forget":
		runForget()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("oboeru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger, and assembles the brain.
func setup(configPath string, debug bool) (*brain.Brain, *config.Config, *zap.Logger) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	b, err := brain.Build(cfg, logger)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return b, cfg, logger
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	experience := fs.String("experience", "", "path to a JSON experience file to ingest")
	_ = fs.Parse(os.Args[2:])

	if *experience == "" && fs.NArg() == 0 {
		fmt.Println("Usage: oboeru ingest [flags] <file|dir>...")
		os.Exit(1)
	}

	b, _, logger := setup(*configPath, *debug)
	defer b.Close()
	defer logger.Sync()
	ctx := context.Background()

	total := 0
	if *experience != "" {
		data, err := os.ReadFile(*experience)
		if err != nil {
			fmt.Printf("Failed to read experience file: %v\n", err)
			os.Exit(1)
		}
		var exp models.Experience
		if err := json.Unmarshal(data, &exp); err != nil {
			fmt.Printf("Failed to parse experience file: %v\n", err)
			os.Exit(1)
		}
		added, err := b.IngestExperiences(ctx, []models.Experience{exp})
		if err != nil {
			fmt.Printf("Ingest failed: %v\n", err)
			os.Exit(1)
		}
		total += added
	}

	var files []string
	for _, arg := range fs.Args() {
		info, err := os.Stat(arg)
		if err != nil {
			fmt.Printf("Cannot read %s: %v\n", arg, err)
			os.Exit(1)
		}
		if info.IsDir() {
			entries, err := collectFiles(arg)
			if err != nil {
				fmt.Printf("Cannot walk %s: %v\n", arg, err)
				os.Exit(1)
			}
			files = append(files, entries...)
		} else {
			files = append(files, arg)
		}
	}
	if len(files) > 0 {
		added, err := b.IngestFiles(ctx, files)
		if err != nil {
			fmt.Printf("Ingest failed: %v\n", err)
			os.Exit(1)
		}
		total += added
	}
	fmt.Printf("Ingested %d chunks\n", total)
}

func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".csv", ".md", ".log":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	stream := fs.Bool("stream", false, "stream the answer as it is generated")
	conversation := fs.String("conversation", "", "conversation id for memory (random if empty)")
	showRefs := fs.Bool("refs", false, "print the passages the answer was grounded on")
	_ = fs.Parse(os.Args[2:])

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: oboeru ask [flags] <question>")
		os.Exit(1)
	}
	if *conversation == "" {
		*conversation = uuid.NewString()
	}

	b, _, logger := setup(*configPath, *debug)
	defer b.Close()
	defer logger.Sync()
	ctx := context.Background()

	var answer *models.Answer
	var err error
	if *stream {
		answer, err = b.AskStream(ctx, *conversation, question, func(delta string) {
			fmt.Print(delta)
		})
		fmt.Println()
	} else {
		answer, err = b.Ask(ctx, *conversation, question)
		if err == nil {
			fmt.Println(answer.Text)
		}
	}
	if err != nil {
		fmt.Printf("Ask failed: %v\n", err)
		os.Exit(1)
	}

	if *showRefs && len(answer.References) > 0 {
		fmt.Println("\nReferences:")
		for _, ref := range answer.References {
			fmt.Printf("  [%.3f] %s #%d\n", ref.Score, ref.Source, ref.ChunkIndex)
		}
	}
	if len(answer.Paths) > 0 {
		fmt.Println("\nSolution paths:")
		for _, path := range answer.Paths {
			steps := make([]string, len(path.Steps))
			for i, step := range path.Steps {
				steps[i] = step.Node.Label
			}
			fmt.Printf("  [%.2f] %s\n", path.Score, strings.Join(steps, " -> "))
		}
	}
}

func runRemove() {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() == 0 {
		fmt.Println("Usage: oboeru remove <source|prefix*>...")
		os.Exit(1)
	}

	b, _, logger := setup(*configPath, *debug)
	defer b.Close()
	defer logger.Sync()

	removed, err := b.RemoveSources(context.Background(), fs.Args())
	if err != nil {
		fmt.Printf("Remove failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d chunks\n", removed)
}

func runGraph() {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	export := fs.Bool("export", false, "dump the whole graph as JSON")
	depth := fs.Int("depth", 0, "maximum path depth in hops (0 = configured default)")
	_ = fs.Parse(os.Args[2:])

	b, cfg, logger := setup(*configPath, *debug)
	defer b.Close()
	defer logger.Sync()
	g := b.Graph()

	if *export {
		data, err := g.ExportJSON()
		if err != nil {
			fmt.Printf("Export failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		stats := g.Stats()
		fmt.Printf("Nodes: %d  Edges: %d\n", stats.TotalNodes, stats.TotalEdges)
		for nodeType, count := range stats.NodesByType {
			fmt.Printf("  %s: %d\n", nodeType, count)
		}
		return
	}

	nodes := g.FindNodes(query, "")
	fmt.Printf("Nodes matching %q:\n", query)
	for _, node := range nodes {
		fmt.Printf("  [%s] %s\n", node.Type, node.Label)
	}
	maxDepth := *depth
	if maxDepth <= 0 {
		maxDepth = cfg.Retrieval.MaxPathDepth
	}
	paths := g.FindSolutionPath(query, maxDepth)
	if len(paths) > 0 {
		fmt.Println("Solution paths:")
		for _, path := range paths {
			steps := make([]string, len(path.Steps))
			for i, step := range path.Steps {
				steps[i] = step.Node.Label
			}
			fmt.Printf("  [%.2f] %s\n", path.Score, strings.Join(steps, " -> "))
		}
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	asJSON := fs.Bool("json", false, "output as JSON")
	_ = fs.Parse(os.Args[2:])

	b, _, logger := setup(*configPath, *debug)
	defer b.Close()
	defer logger.Sync()

	status, err := b.Status(context.Background())
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	if *asJSON {
		data, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(data))
		return
	}
	fmt.Printf("Chunks: %d (index: %d)\n", status.Chunks, status.IndexSize)
	fmt.Printf("Sources: %d\n", len(status.Sources))
	for source, count := range status.Sources {
		fmt.Printf("  %s: %d chunks\n", source, count)
	}
	fmt.Printf("Graph: %d nodes, %d edges\n", status.Graph.TotalNodes, status.Graph.TotalEdges)
	if status.Memory != nil {
		fmt.Printf("Memory: %d records (%d summarized)\n",
			status.Memory.TotalRecords, status.Memory.SummarizedRecords)
	}
}

func runForget() {
	fs := flag.NewFlagSet("forget", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	b, cfg, logger := setup(*configPath, *debug)
	defer b.Close()
	defer logger.Sync()

	if err := b.Memory().Purge(context.Background(), cfg.UserID); err != nil {
		fmt.Printf("Forget failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Purged all memories for %s\n", cfg.UserID)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	b, cfg, logger := setup(*configPath, *debug)
	defer b.Close()
	defer logger.Sync()

	if len(cfg.Watch.Directories) == 0 {
		fmt.Println("No watch directories configured (watch.directories)")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := watcher.New(cfg.Watch.Directories, cfg.Watch.Extensions,
		func(path string) {
			if _, err := b.IngestFiles(ctx, []string{path}); err != nil {
				logger.Warn("auto-ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if _, err := b.RemoveSources(ctx, []string{filepath.Base(path)}); err != nil {
				logger.Warn("auto-remove failed", zap.String("path", path), zap.Error(err))
			}
		},
		watcher.WithLogger(logger))
	if err := w.Start(ctx); err != nil {
		fmt.Printf("Watch failed: %v\n", err)
		os.Exit(1)
	}
	defer w.Stop()

	fmt.Printf("Watching %s (ctrl-c to stop)\n", strings.Join(cfg.Watch.Directories, ", "))
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("\nStopping")
}

func printUsage() {
	fmt.Println(`oboeru - local retrieval-augmented knowledge core

Usage:
  oboeru ingest [flags] <file|dir>...   ingest documents into the corpus
  oboeru ingest -experience <file>      ingest a structured experience (JSON)
  oboeru ask [flags] <question>         answer a question from the corpus
  oboeru remove <source|prefix*>...     remove sources and rebuild the index
  oboeru graph [-export] [query]        inspect the knowledge graph
  oboeru status [-json]                 show corpus, graph, and memory counters
  oboeru forget                         purge conversational memory
  oboeru watch                          auto-ingest configured directories
  oboeru version                        print version

Common flags:
  -config <path>   config file (default ` + defaultConfigPath + `)
  -debug           enable debug logging`)
}
