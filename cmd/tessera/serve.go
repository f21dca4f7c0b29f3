package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/tessera-dev/tessera/pkg/feed"
	"github.com/tessera-dev/tessera/pkg/media"
	"github.com/tessera-dev/tessera/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		addr      string
		pageSize  int
		gridWidth int
		demoItems int
		mediaBase string
		s3Bucket  string
		s3Region  string
		logJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engagement server",
		Long: `Start the engagement server. It serves the JSON API under /v1,
the websocket protocol at /v1/live, and Prometheus metrics at /metrics.

Media keys on feed items resolve through --media-base (a plain URL
prefix) or --s3-bucket (presigned S3 GET URLs).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(logJSON)
			slog.SetDefault(logger)

			resolver, err := buildResolver(mediaBase, s3Bucket, s3Region)
			if err != nil {
				return err
			}

			store := server.NewStore()
			if demoItems > 0 {
				store.SeedItems(demoFeed(demoItems))
				logger.Info("seeded demo feed", "items", demoItems)
			}

			srv := server.New(store, server.Config{
				Address:          addr,
				PageSize:         pageSize,
				DefaultGridWidth: gridWidth,
				Resolver:         resolver,
				Logger:           logger,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().IntVar(&pageSize, "page-size", 24, "Feed items per page")
	cmd.Flags().IntVar(&gridWidth, "grid-width", 3, "Default feed grid width")
	cmd.Flags().IntVar(&demoItems, "demo-items", 0, "Seed the feed with N demo items")
	cmd.Flags().StringVar(&mediaBase, "media-base", "", "Base URL for media keys")
	cmd.Flags().StringVar(&s3Bucket, "s3-bucket", "", "S3 bucket for presigned media URLs")
	cmd.Flags().StringVar(&s3Region, "s3-region", "us-east-1", "S3 region")

	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Log in JSON format")

	return cmd
}

func newLogger(json bool) *slog.Logger {
	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func buildResolver(mediaBase, s3Bucket, s3Region string) (media.Resolver, error) {
	switch {
	case mediaBase != "" && s3Bucket != "":
		return nil, fmt.Errorf("--media-base and --s3-bucket are mutually exclusive")
	case s3Bucket != "":
		client := s3.New(s3.Options{Region: s3Region})
		return media.NewS3Resolver(client, s3Bucket), nil
	case mediaBase != "":
		return &media.PathResolver{Base: mediaBase}, nil
	default:
		return nil, nil
	}
}

// demoFeed generates a deterministic feed for local development.
func demoFeed(n int) []feed.Item {
	authors := []struct{ id, name string }{
		{"ada", "Ada"},
		{"grace", "Grace"},
		{"edsger", "Edsger"},
		{"barbara", "Barbara"},
	}

	items := make([]feed.Item, n)
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := range items {
		a := authors[i%len(authors)]
		items[i] = feed.Item{
			ID:         fmt.Sprintf("item-%03d", i+1),
			AuthorID:   a.id,
			AuthorName: a.name,
			Title:      fmt.Sprintf("Post %d by %s", i+1, a.name),
			MediaKey:   fmt.Sprintf("demo/%03d.jpg", i+1),
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
	}
	return items
}
