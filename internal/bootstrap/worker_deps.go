package bootstrap

import (
	"context"
	"time"

	"mailparser_server/adapter/out/crm"
	"mailparser_server/adapter/out/graph"
	"mailparser_server/adapter/out/messaging"
	"mailparser_server/adapter/out/mongodb"
	"mailparser_server/adapter/out/nlp"
	"mailparser_server/adapter/out/persistence"
	"mailparser_server/adapter/out/web"
	"mailparser_server/config"
	"mailparser_server/core/agent/llm"
	"mailparser_server/core/port/out"
	"mailparser_server/core/service/classification"
	"mailparser_server/core/service/enrichment"
	"mailparser_server/core/service/extraction"
	"mailparser_server/core/service/pipeline"
	"mailparser_server/infra/database"
	"mailparser_server/internal/stream"
	"mailparser_server/pkg/cache"
	"mailparser_server/pkg/logger"
	"mailparser_server/pkg/metrics"
	"mailparser_server/pkg/resilience"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// seenTTL bounds how long queued mailbox IDs are remembered.
const seenTTL = 30 * 24 * time.Hour

// Dependencies holds every connection and adapter the run modes share.
// Stores whose URL is unset stay nil and the matching pipeline step is
// skipped.
type Dependencies struct {
	Config *config.Config
	Log    *logger.Logger

	Postgres *database.Postgres
	Redis    *redis.Client
	Mongo    *mongo.Client
	Neo4j    neo4j.DriverWithContext

	Rules    *extraction.Rules
	Archive  *mongodb.EmailArchive
	Producer *messaging.RedisProducer
	Seen     *stream.SeenSet
	Pools    *metrics.PoolMonitor

	Service *pipeline.Service
}

// NewDependencies connects the configured stores and wires the pipeline.
// The returned cleanup closes everything that was opened.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	log := logger.Default()
	d := &Dependencies{
		Config: cfg,
		Log:    log,
		Pools:  metrics.NewPoolMonitor(prometheus.DefaultRegisterer),
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	rules, err := extraction.LoadRules(cfg.RulesFile)
	if err != nil {
		return fail(err)
	}
	d.Rules = rules

	// =============================================================================
	// Stores
	// =============================================================================

	if cfg.DatabaseURL != "" {
		pg, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pg.Close)
		d.Postgres = pg
		if err := d.Pools.Register("postgres", pg.DB.DB); err != nil {
			log.WithError(err).Warn("Failed to register postgres pool metrics")
		}
		log.Info("PostgreSQL connected")
	}

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { rdb.Close() })
		d.Redis = rdb
		d.Producer = messaging.NewRedisProducer(rdb)
		d.Seen = stream.NewSeenSet(rdb, stream.SetMailSeen, seenTTL)
		log.Info("Redis connected")
	}

	if cfg.MongoDBURL != "" {
		mc, err := mongodb.NewClient(ctx, mongodb.DefaultClientConfig(cfg.MongoDBURL, cfg.WorkerCount))
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = mc.Disconnect(context.Background()) })
		d.Mongo = mc
		d.Archive = mongodb.NewEmailArchive(mc.Database(cfg.MongoDBName))
		if err := d.Archive.EnsureIndexes(ctx); err != nil {
			log.WithError(err).Warn("Failed to create email archive indexes")
		}
		log.Info("MongoDB connected: %s", cfg.MongoDBName)
	}

	if cfg.Neo4jURL != "" {
		driver, err := graph.NewDriver(ctx, graph.DefaultDriverConfig(cfg.Neo4jURL, cfg.Neo4jUsername, cfg.Neo4jPassword, cfg.WorkerCount))
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = driver.Close(context.Background()) })
		d.Neo4j = driver
		log.Info("Neo4j connected")
	}

	svc, err := d.buildService(ctx)
	if err != nil {
		return fail(err)
	}
	d.Service = svc

	return d, cleanup, nil
}

// buildService wires the pipeline from whatever stores are connected.
func (d *Dependencies) buildService(ctx context.Context) (*pipeline.Service, error) {
	cfg := d.Config
	prom := metrics.Get()
	zlog := d.Log.Component("bootstrap")

	breaker := func(name string) *resilience.CircuitBreakerConfig {
		return resilience.DefaultCircuitBreakerConfig(name)
	}

	ner := nlp.NewProseRecognizer(d.Log.Component("ner"))
	ner.Warmup()

	deps := pipeline.Deps{
		Extractor: extraction.NewExtractor(d.Rules, ner),
		Log:       d.Log,
	}

	var intentLLM out.IntentLLM
	if cfg.LLMEnabled() {
		client := llm.NewClientWithConfig(llm.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Breaker:     resilience.NewCircuitBreaker(breaker("openai"), zlog, prom.BreakerListener),
		})
		intentLLM = client
		deps.Signature = enrichment.NewSignatureReader(client)
	}
	deps.Intent = classification.NewScorePipeline(intentLLM, nil)

	if cfg.WebEnrich {
		fetcher := web.NewSiteFetcher(cfg.WebTimeout, resilience.NewCircuitBreaker(breaker("web"), zlog, prom.BreakerListener))
		deps.Web = enrichment.NewWebSummarizer(fetcher, d.Rules.IsGenericDomain)
	}

	if cfg.CRMEnabled() {
		opts := []crm.Option{crm.WithBreaker(resilience.NewCircuitBreaker(breaker("crm"), zlog, prom.BreakerListener))}
		if d.Redis != nil {
			opts = append(opts, crm.WithCache(cache.NewRedisCache(d.Redis, "crm:")))
		}
		deps.CRM = crm.NewClient(cfg.CSCRMServer, cfg.CSCRMAPIKey, d.Log.Component("crm"), opts...)
	}

	if d.Archive != nil {
		deps.Archive = d.Archive
	}

	if d.Postgres != nil {
		contacts := persistence.NewContactAdapter(d.Postgres.DB)
		if err := contacts.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		var repo out.ContactRepository = contacts
		if d.Redis != nil {
			repo = persistence.NewCachedContactAdapter(contacts, cache.NewRedisCache(d.Redis, "mailparser:"))
		}
		deps.Contacts = repo
	}

	if d.Neo4j != nil {
		g := graph.NewContactGraph(d.Neo4j, cfg.Neo4jDatabase)
		if err := g.EnsureConstraints(ctx); err != nil {
			d.Log.WithError(err).Warn("Failed to create graph constraints")
		}
		deps.Graph = g
	}

	return pipeline.NewService(deps), nil
}
