package reportrag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/reportrag/core/assemble"
	"github.com/siherrmann/reportrag/core/budget"
	"github.com/siherrmann/reportrag/core/classify"
	"github.com/siherrmann/reportrag/core/pipeline"
	"github.com/siherrmann/reportrag/core/retrieval"
	"github.com/siherrmann/reportrag/database"
	"github.com/siherrmann/reportrag/helper"
	"github.com/siherrmann/reportrag/memory"
	"github.com/siherrmann/reportrag/model"
	loadSql "github.com/siherrmann/reportrag/sql"
)

// DefaultChunkChars is the chunk size of the default ingestion pipeline
const DefaultChunkChars = 1000

// Ports are the storage dependencies of the service.
// Documents is only needed for ingestion.
type Ports struct {
	Searcher  retrieval.SimilaritySearcher
	Store     retrieval.ChunkStore
	Documents DocumentStore
}

// Service answers region-aware questions over the government reports.
// It is constructed once and safe for concurrent queries.
type Service struct {
	Config    model.Config
	DB        *helper.Database             // Only set by NewWithPostgres
	Documents *database.DocumentsDBHandler // Only set by NewWithPostgres
	Chunks    *database.ChunksDBHandler    // Only set by NewWithPostgres
	Memory    *memory.Store                // Only set by NewWithMemory
	Pipeline  *pipeline.Pipeline

	classifier *classify.Classifier
	selector   *retrieval.Selector
	engine     *retrieval.Engine
	aggregator *retrieval.Aggregator
	truncator  *budget.Truncator
	cache      *retrieval.CachedSearcher
	documents  DocumentStore
	// Logging
	log *slog.Logger
}

// New creates a service on top of the given ports. The configuration is
// validated here, a query never fails because of it.
func New(config model.Config, ports Ports, logger *slog.Logger) (*Service, error) {
	if ports.Searcher == nil || ports.Store == nil {
		return nil, helper.NewError("new service", fmt.Errorf("searcher and chunk store are required"))
	}
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}

	err := config.Validate()
	if err != nil {
		return nil, helper.NewError("new service", err)
	}

	selector, err := retrieval.NewSelector(config.Strategies, config.TypicalChunkChars)
	if err != nil {
		return nil, helper.NewError("new service", err)
	}

	searcher := ports.Searcher
	var cache *retrieval.CachedSearcher
	if config.CacheSize > 0 {
		cache, err = retrieval.NewCachedSearcher(searcher, config.CacheSize)
		if err != nil {
			return nil, helper.NewError("new service", err)
		}
		searcher = cache
	}

	return &Service{
		Config:     config,
		classifier: classify.NewClassifier(config.CacheSize),
		selector:   selector,
		engine:     retrieval.NewEngine(searcher, ports.Store, config.FanOutLimit, logger),
		aggregator: retrieval.NewAggregator(ports.Store, config.NeighborScoreFactor, config.NeighborFanOutLimit, logger),
		truncator:  budget.NewTruncator(config.Density, logger),
		cache:      cache,
		documents:  ports.Documents,
		log:        logger,
	}, nil
}

// NewWithPostgres creates a service backed by pgvector. Tables and SQL
// functions are created if they do not exist.
func NewWithPostgres(dbConfig *helper.DatabaseConfiguration, embeddingDim int, config model.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}

	db := helper.NewDatabase("reportrag", dbConfig, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Documents first, chunks reference them
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}
	chunks, err := database.NewChunksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	s, err := New(config, Ports{
		Searcher:  chunks,
		Store:     chunks,
		Documents: &postgresDocuments{documents: documents, chunks: chunks},
	}, logger)
	if err != nil {
		return nil, err
	}
	s.DB = db
	s.Documents = documents
	s.Chunks = chunks

	return s, nil
}

// NewWithMemory creates a service backed by an in-memory HNSW index.
// Region searches go through a post filter over the global index.
func NewWithMemory(embeddingDim int, config model.Config, logger *slog.Logger) (*Service, error) {
	store, err := memory.NewStore(embeddingDim, memory.Options{})
	if err != nil {
		return nil, err
	}

	s, err := New(config, Ports{
		Searcher:  retrieval.NewPostFilterSearcher(store, store, config.PostFilterOverfetch),
		Store:     store,
		Documents: &memoryDocuments{store: store},
	}, logger)
	if err != nil {
		return nil, err
	}
	s.Memory = store

	return s, nil
}

// Close closes the database connection
func (s *Service) Close() error {
	return s.DB.Close()
}

// SetPipeline sets the chunking and embedding pipeline
func (s *Service) SetPipeline(p *pipeline.Pipeline) {
	s.Pipeline = p
}

// UseDefaultPipeline chunks reports into pieces of about DefaultChunkChars
// characters and embeds them with the default multilingual model.
func (s *Service) UseDefaultPipeline() error {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	s.Pipeline = pipeline.NewPipeline(pipeline.SizeChunker(DefaultChunkChars, 0), embedder)
	return nil
}

// Query runs classification, retrieval, adjacency expansion, budget
// truncation and assembly for one question. Degraded retrieval is reported
// through warnings. The only retrieval error is model.ErrRetrievalUnavailable.
func (s *Service) Query(ctx context.Context, req model.QueryRequest) (*model.QueryResponse, error) {
	start := time.Now()
	queryID := uuid.New()
	log := s.log.With(slog.String("query_id", queryID.String()))

	if s.Pipeline == nil || s.Pipeline.Embedder == nil {
		return nil, helper.NewError("query", fmt.Errorf("pipeline with embedder not set, use SetPipeline() first"))
	}
	if req.ForceBudget != nil && *req.ForceBudget <= 0 {
		return nil, helper.NewError("query", fmt.Errorf("forced budget must be positive, got %d", *req.ForceBudget))
	}

	ctx, cancel := context.WithTimeout(ctx, s.Config.QueryTimeout)
	defer cancel()

	classification := s.classify(req)
	intent := classification.Intent

	plan := s.selector.PlanFor(intent)
	if req.ForceBudget != nil {
		plan = s.selector.PlanWithBudget(intent, *req.ForceBudget)
	}
	log.Debug("Classified query", slog.String("intent", intent.String()), slog.Int("max_total_chars", plan.MaxTotalChars))

	vector, err := s.Pipeline.Embedder(req.Query)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}

	candidates, report, err := s.engine.Retrieve(ctx, vector, intent, plan)
	if err != nil {
		log.Error("Retrieval failed", slog.String("intent", intent.String()), slog.String("error", err.Error()))
		return nil, helper.NewError("retrieve", err)
	}

	expanded, expandWarnings := s.aggregator.Expand(ctx, candidates, plan.AdjacencyWindow)
	result := s.truncator.Select(expanded, plan, intent.Regions)

	warnings := slices.Concat(classification.Warnings, report.Warnings, expandWarnings, result.Warnings)
	result.Warnings = warnings

	response := &model.QueryResponse{
		Context: assemble.Assemble(result),
		Result:  result,
		Diagnostics: model.Diagnostics{
			QueryID:           queryID,
			Intent:            intent,
			Plan:              plan,
			PerRegionReturned: report.PerRegionReturned,
			Elapsed:           time.Since(start),
			Warnings:          warnings,
		},
	}

	log.Info(
		"Answered query",
		slog.String("intent", intent.String()),
		slog.Int("candidates", result.CandidateCount),
		slog.Int("selected", result.SelectedCount),
		slog.Int("total_chars", result.TotalChars),
		slog.Int("warnings", len(warnings)),
		slog.Duration("elapsed", response.Diagnostics.Elapsed),
	)

	return response, nil
}

func (s *Service) classify(req model.QueryRequest) classify.Classification {
	if len(req.RegionHint) == 0 {
		return s.classifier.Classify(req.Query)
	}

	hinted, ok := classify.FromHint(req.RegionHint)
	if ok {
		return hinted
	}

	// No usable hint, fall back to the query text
	classification := s.classifier.Classify(req.Query)
	classification.Warnings = append(slices.Clone(hinted.Warnings), classification.Warnings...)
	return classification
}

// IngestDocument splits a report into chunks, embeds and stores them.
// A missing region is detected from the title and the beginning of the content.
// The document's Content field is used for processing but not stored.
// Returns the number of chunks stored.
func (s *Service) IngestDocument(ctx context.Context, doc *model.Document) (int, error) {
	if s.Pipeline == nil {
		return 0, helper.NewError("ingest document", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}
	if s.documents == nil {
		return 0, helper.NewError("ingest document", fmt.Errorf("service has no document store"))
	}
	if doc.Content == "" {
		return 0, helper.NewError("ingest document", fmt.Errorf("document content is empty"))
	}

	if doc.Region == "" {
		if region, ok := model.DetectRegion(doc.Title, doc.Content); ok {
			doc.Region = region
		}
	}
	region, ok := model.ParseRegion(string(doc.Region))
	if !ok {
		return 0, helper.NewError("ingest document", fmt.Errorf("cannot determine the region of %q", doc.Title))
	}
	doc.Region = region

	// Store content temporarily and clear it before the insert
	content := doc.Content
	doc.Content = ""
	err := s.documents.InsertDocument(ctx, doc)
	doc.Content = content
	if err != nil {
		return 0, helper.NewError("insert document", err)
	}
	s.log.Info("Inserted document", slog.String("document_id", doc.RID.String()), slog.String("title", doc.Title), slog.String("region", string(doc.Region)))

	chunks, err := s.Pipeline.Process(doc)
	if err != nil {
		s.discardDocument(ctx, doc.RID)
		return 0, helper.NewError("process chunks", err)
	}

	for i, chunk := range chunks {
		if err := s.documents.InsertChunk(ctx, chunk); err != nil {
			s.discardDocument(ctx, doc.RID)
			return 0, helper.NewError(fmt.Sprintf("insert chunk %d", i), err)
		}
	}

	// Cached searches do not know the new chunks
	if s.cache != nil {
		s.cache.Purge()
	}

	s.log.Info("Ingested document", slog.String("document_id", doc.RID.String()), slog.Int("num_chunks", len(chunks)))
	return len(chunks), nil
}

// discardDocument removes a partly ingested document so that a retry does
// not leave a duplicate behind. It runs even when ctx is already cancelled.
func (s *Service) discardDocument(ctx context.Context, rid uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.documents.DeleteDocument(ctx, rid); err != nil {
		s.log.Error("Failed to discard partly ingested document", slog.String("document_id", rid.String()), slog.String("error", err.Error()))
	}
	if s.cache != nil {
		s.cache.Purge()
	}
}

// DeleteDocument removes a report and all of its chunks
func (s *Service) DeleteDocument(ctx context.Context, rid uuid.UUID) error {
	if s.documents == nil {
		return helper.NewError("delete document", fmt.Errorf("service has no document store"))
	}

	err := s.documents.DeleteDocument(ctx, rid)
	if err != nil {
		return helper.NewError("delete document", err)
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	return nil
}

// RegionChunkCounts returns the number of stored chunks per region
func (s *Service) RegionChunkCounts(ctx context.Context) (map[model.Region]int, error) {
	if s.documents == nil {
		return nil, helper.NewError("region chunk counts", fmt.Errorf("service has no document store"))
	}
	return s.documents.RegionChunkCounts(ctx)
}

// ContentTypeCounts returns the number of stored chunks per content type
func (s *Service) ContentTypeCounts(ctx context.Context) (map[model.ContentType]int, error) {
	if s.documents == nil {
		return nil, helper.NewError("content type counts", fmt.Errorf("service has no document store"))
	}
	return s.documents.ContentTypeCounts(ctx)
}

// CacheStats returns the hits and misses of the search cache
func (s *Service) CacheStats() (hits uint64, misses uint64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.Stats()
}
