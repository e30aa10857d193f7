package commands

import (
	"fmt"

	"github.com/jwlim/sectorpulse/internal/cache"
	"github.com/jwlim/sectorpulse/internal/calendar"
	"github.com/jwlim/sectorpulse/internal/collector"
	"github.com/jwlim/sectorpulse/internal/external/eastmoney"
	"github.com/jwlim/sectorpulse/internal/ranking"
	"github.com/jwlim/sectorpulse/internal/store"
	"github.com/jwlim/sectorpulse/pkg/config"
	"github.com/jwlim/sectorpulse/pkg/httputil"
	"github.com/jwlim/sectorpulse/pkg/logger"
	"github.com/jwlim/sectorpulse/pkg/sqlite"
)

// defaultExchange is the trading calendar the resolver consults
const defaultExchange = "SSE"

// deps wires the full dependency graph shared by every command:
// store -> cache -> provider gateway, plus the ranking stack on top.
type deps struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *sqlite.DB
	store    *store.Store
	cache    *cache.Cache
	col      *collector.Collector
	resolver *calendar.Resolver
	engine   *ranking.Engine
	composer *ranking.Composer
}

// initDeps loads configuration and builds the dependency graph
func initDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	db, err := sqlite.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	st, err := store.New(db, log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}

	httpClient := httputil.New(cfg, log)
	providerClient := eastmoney.NewClient(cfg, httpClient, log)
	gateway := eastmoney.NewGateway(providerClient)

	c := cache.New(st, gateway, log)
	col := collector.NewCollector(c, log)
	resolver := calendar.New(c, defaultExchange, cfg.Ranking.BenchmarkID, log)
	engine := ranking.New(c, cfg.Ranking.HistoryDays, cfg.Ranking.FetchWorkers, log)
	composer := ranking.NewComposer(engine, resolver, cfg.Ranking.FetchDelay, log)

	return &deps{
		cfg:      cfg,
		log:      log,
		db:       db,
		store:    st,
		cache:    c,
		col:      col,
		resolver: resolver,
		engine:   engine,
		composer: composer,
	}, nil
}

// Close releases held resources
func (d *deps) Close() {
	if d.db != nil {
		d.db.Close()
	}
}
