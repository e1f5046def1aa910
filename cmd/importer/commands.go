package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	appproducts "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/products"
	appscans "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/scans"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/config"
	domproducts "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/db"
	minioStore "github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/storage"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "importer",
		Short:        "Product master maintenance for the barcode scanner backend",
		SilenceUsage: true,
	}
	defaultPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultPath, "path to config.yaml")

	root.AddCommand(newProductsCmd(&configPath), newStatsCmd(&configPath))
	return root
}

type productsFlags struct {
	chunkSize int
	delay     time.Duration
	dryRun    bool
	archive   bool
}

func newProductsCmd(configPath *string) *cobra.Command {
	var f productsFlags
	cmd := &cobra.Command{
		Use:   "products <file.csv>",
		Short: "Upsert products from a partNum,partDescription CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProducts(cmd, *configPath, args[0], f)
		},
	}
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", 0, "rows per transaction (default from config)")
	cmd.Flags().DurationVar(&f.delay, "delay", 0, "pause between chunks (default from config)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "parse and report without writing")
	cmd.Flags().BoolVar(&f.archive, "archive", false, "store the raw file in MinIO when configured")
	return cmd
}

func runProducts(cmd *cobra.Command, configPath, file string, f productsFlags) error {
	out := cmd.OutOrStdout()

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	parsed, err := appproducts.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if len(parsed.Rows) == 0 {
		return fmt.Errorf("%s: no data rows", file)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	chunkSize := cfg.Import.ChunkSize
	if f.chunkSize > 0 {
		chunkSize = f.chunkSize
	}
	delay := cfg.Import.ChunkDelay
	if f.delay > 0 {
		delay = f.delay
	}

	if f.dryRun {
		valid := len(parsed.Rows) - parsed.Malformed
		chunks := (valid + chunkSize - 1) / chunkSize
		fmt.Fprintf(out, "dry run: rows=%d valid=%d malformed=%d chunks=%d chunk_size=%d\n",
			len(parsed.Rows), valid, parsed.Malformed, chunks, chunkSize)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := db.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	var archive domproducts.Archive
	if f.archive && cfg.MinioEnabled() {
		store, err := minioStore.New(ctx, cfg.Minio.Endpoint, cfg.Minio.Region, cfg.Minio.BucketName,
			cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		archive = store
	}

	svc := appproducts.NewService(stores.Products, stores.ImportErrors, archive)
	opts := appproducts.ImportOptions{
		ChunkSize:  chunkSize,
		ChunkDelay: delay,
		Progress: func(p appproducts.ImportProgress) {
			status := "ok"
			if p.Failed {
				status = "failed"
			}
			fmt.Fprintf(out, "chunk %d/%d %s processed=%d inserted=%d updated=%d skipped=%d\n",
				p.Chunk, p.Chunks, status, p.Processed, p.Stats.Inserted, p.Stats.Updated, p.Stats.Skipped)
		},
	}

	if archive != nil {
		opts.RunID = uuid.New().String()
		url, err := svc.ArchiveRaw(ctx, opts.RunID, data)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "archive failed: %v\n", err)
		} else {
			fmt.Fprintf(out, "archived %s\n", url)
		}
	}

	st, err := svc.Import(ctx, parsed.Rows, opts)
	fmt.Fprintf(out, "run=%s total=%d inserted=%d updated=%d skipped=%d failed_chunks=%d duration=%s\n",
		st.RunID, st.Total, st.Inserted, st.Updated, st.Skipped, st.FailedChunks, st.Duration.Round(time.Millisecond))
	if err != nil {
		return err
	}
	if st.FailedChunks > 0 {
		return fmt.Errorf("%d chunk(s) failed, see import errors for run %s", st.FailedChunks, st.RunID)
	}
	return nil
}

func newStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print product master and scan counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			stores, err := db.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			products, err := appproducts.NewService(stores.Products, stores.ImportErrors, nil).Count(ctx)
			if err != nil {
				return err
			}
			scans, err := (&appscans.Service{Repo: stores.Scans}).Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "products=%d scans=%d scans_today=%d\n", products, scans.Total, scans.Today)
			return nil
		},
	}
}
