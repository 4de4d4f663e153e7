package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/wowhead-parser/internal/config"
	collyfetcher "github.com/JakeFAU/wowhead-parser/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/wowhead-parser/internal/fetcher/headless"
	restyfetcher "github.com/JakeFAU/wowhead-parser/internal/fetcher/resty"
	"github.com/JakeFAU/wowhead-parser/internal/parser/wowhead"
	"github.com/JakeFAU/wowhead-parser/internal/policy/ratelimit"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.EntryList.Dir = t.TempDir()
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func TestBuildAndServeLocal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 0

	a, err := Build(context.Background(), cfg, zap.NewNop(), Options{})
	require.NoError(t, err)
	require.Contains(t, a.Service().Parsers(), wowhead.NPCName)

	lists, err := a.Service().EntryLists()
	require.NoError(t, err)
	require.Empty(t, lists)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Serve(ctx))
}

func TestSetupFetcherKinds(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a := &App{cfg: cfg, logger: zap.NewNop()}
	f, err := a.setupFetcher()
	require.NoError(t, err)
	require.IsType(t, &collyfetcher.Fetcher{}, f)

	cfg.Fetcher.Kind = config.FetcherResty
	a = &App{cfg: cfg, logger: zap.NewNop()}
	f, err = a.setupFetcher()
	require.NoError(t, err)
	require.IsType(t, &restyfetcher.Fetcher{}, f)

	cfg.Fetcher.RequestsPerSecond = 2
	a = &App{cfg: cfg, logger: zap.NewNop()}
	f, err = a.setupFetcher()
	require.NoError(t, err)
	require.IsType(t, &ratelimit.Fetcher{}, f)
}

func TestSetupFetcherPromotion(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Headless.Promote = true
	a := &App{cfg: cfg, logger: zap.NewNop()}
	f, err := a.setupFetcher()
	require.NoError(t, err)
	require.IsType(t, &headlessfetcher.Promoting{}, f)
	require.Len(t, a.closers, 1, "browser is released on close")
	a.closeInfrastructure()
	require.Empty(t, a.closers)
}
