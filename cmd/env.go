package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reso-directory/internal/config"
	"github.com/sells-group/reso-directory/internal/fetcher"
	"github.com/sells-group/reso-directory/internal/query"
	"github.com/sells-group/reso-directory/internal/snapshot"
	"github.com/sells-group/reso-directory/internal/store"
)

// directoryEnv holds the wired components shared by the serve, search,
// stats and export commands.
type directoryEnv struct {
	Source    *fetcher.DirectoryFetcher
	Snapshots *snapshot.Store
	Engine    *query.Engine
	History   store.Store // nil when history is disabled
}

// Close releases resources held by the environment.
func (de *directoryEnv) Close() {
	if de.History != nil {
		_ = de.History.Close()
	}
}

// initDirectory validates c and builds fetcher, snapshot store, engine and,
// when withHistory is set and a driver is configured, the history store.
// Callers should defer env.Close().
func initDirectory(ctx context.Context, c *config.Config, withHistory bool) (*directoryEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   c.Source.UserAgent,
		Timeout:     c.Source.Timeout(),
		MaxAttempts: c.Source.MaxAttempts,
		RatePerSec:  c.Source.RatePerSec,
	})
	src := fetcher.NewDirectoryFetcher(httpFetcher, c.Source.URL, fetcher.WithAttempts(c.Source.MaxAttempts))

	env := &directoryEnv{Source: src}

	var opts []snapshot.Option
	if withHistory {
		hist, err := initHistory(ctx, c)
		if err != nil {
			return nil, err
		}
		if hist != nil {
			env.History = hist
			opts = append(opts, snapshot.WithRecorder(hist))
		}
	}

	env.Snapshots = snapshot.New(src, opts...)
	env.Engine = query.New(env.Snapshots)

	zap.L().Debug("directory initialized",
		zap.String("source", src.URL()),
		zap.Bool("history", env.History != nil),
	)
	return env, nil
}

// initHistory opens and migrates the configured history store. It returns
// (nil, nil) when history is disabled.
func initHistory(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.History.Driver, c.History.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open history store")
	}
	if st == nil {
		return nil, nil
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate history store")
	}
	return st, nil
}
