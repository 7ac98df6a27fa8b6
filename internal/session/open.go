package session

import (
	"fmt"
	"os"
	"time"

	"revview/client"
	"revview/internal/config"
	"revview/internal/content"
	"revview/internal/registry"
	"revview/internal/workspace"

	"go.uber.org/zap"
)

// Open wires a session to the review service and checkout described by cfg.
// The returned func releases the session's resources.
func Open(cfg *config.Config, logger *zap.Logger) (*Session, func(), error) {
	if cfg.Review.URL == "" {
		return nil, nil, fmt.Errorf("review service URL is not configured")
	}

	opts := []client.Option{
		client.WithLogger(logger.Named("client")),
		client.WithTimeout(time.Duration(cfg.Review.Timeout) * time.Second),
	}
	if cfg.Review.Username != "" {
		opts = append(opts, client.WithBasicAuth(cfg.Review.Username, cfg.Review.Password))
	}
	api := client.New(cfg.Review.URL, opts...)

	cache, err := content.NewCache(
		content.NewStore(api, content.WithLogger(logger.Named("content"))),
		content.CacheOptions{
			Size: cfg.Cache.Size,
			Compression: content.CompressionOptions{
				MinSize:        cfg.Cache.CompressMinSize,
				Level:          cfg.Cache.CompressLevel,
				SkipExtensions: content.DefaultCompressionOptions().SkipExtensions,
			},
			Logger: logger.Named("cache"),
		},
	)
	if err != nil {
		return nil, nil, err
	}

	reg, err := registry.Open(logger.Named("registry"))
	if err != nil {
		return nil, nil, err
	}

	s := New(Options{
		API:      api,
		Content:  cache,
		Registry: reg,
		Local:    workspace.NewLocal(logger.Named("workspace"), localRoots(cfg, logger)...),
		Logger:   logger,
	})
	return s, func() { reg.Close() }, nil
}

func localRoots(cfg *config.Config, logger *zap.Logger) []string {
	if cfg.Workspace != "" {
		return []string{cfg.Workspace}
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil
	}
	root, err := workspace.FindRoot(wd)
	if err != nil {
		logger.Debug("no local checkout", zap.String("dir", wd))
		return nil
	}
	return []string{root}
}
