// Command dbinspect checks the label index against the thumbnail references
// and, with -repair, fixes the entries that disagree.
//
//	dbinspect [-repair] [-json] [-- server flags]
//
// The remaining arguments are parsed like the server's, so the same
// environment and .env file select the database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sharedalbum/album-server/internal/config"
	"github.com/sharedalbum/album-server/internal/logger"
	"github.com/sharedalbum/album-server/internal/service"
	"github.com/sharedalbum/album-server/internal/storage"
	"github.com/sharedalbum/album-server/internal/store"
	"github.com/sharedalbum/album-server/internal/store/sqlite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dbinspect: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("dbinspect", flag.ContinueOnError)
	repair := fs.Bool("repair", false, "Fix label index entries that disagree with the references")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(fs.Args())
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
		Writer:      os.Stderr,
	})

	repo, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()

	// Thumbnail objects are only checked where they are on local disk.
	var thumbnails storage.Bucket
	if cfg.Storage.Backend == config.StorageLocal {
		local, err := storage.NewLocalBucket(cfg.Storage.LocalPath, cfg.Storage.ThumbnailBucket)
		if err != nil {
			return err
		}
		thumbnails = local
	}

	ctx := context.Background()
	checker := service.NewConsistencyChecker(repo, thumbnails, log.Logger)

	report, err := checker.Check(ctx)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(report)
	}

	if report.OK() || !*repair {
		return nil
	}

	if err := checker.Repair(ctx, report); err != nil {
		return fmt.Errorf("repair: %w", err)
	}
	fmt.Printf("Repaired %d dangling and %d missing label entries\n",
		len(report.DanglingEntries), len(report.MissingEntries))
	return nil
}

func openStore(cfg *config.Config, log *logger.Logger) (store.Repository, error) {
	if cfg.Data.Backend == config.StoreSQLite {
		return sqlite.Open(filepath.Join(cfg.Data.BasePath, "album.db"), log.Logger)
	}
	return store.New(filepath.Join(cfg.Data.BasePath, "db"), log.Logger)
}

func printReport(r *service.ConsistencyReport) {
	fmt.Println("=== Label Index Inspection ===")
	fmt.Println()
	fmt.Printf("Thumbnails: %d\n", r.Thumbnails)
	fmt.Printf("Labels:     %d\n", r.Labels)
	fmt.Println()

	for _, name := range r.MissingObjects {
		fmt.Printf("missing thumbnail object: %s\n", name)
	}
	for _, e := range r.DanglingEntries {
		fmt.Printf("dangling label entry:     %s -> %s\n", e.Label, e.Key)
	}
	for _, e := range r.MissingEntries {
		fmt.Printf("missing label entry:      %s -> %s\n", e.Label, e.Key)
	}

	if r.OK() {
		fmt.Println("Label index is consistent")
	}
}
