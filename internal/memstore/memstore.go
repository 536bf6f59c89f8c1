// Package memstore is an in-process transaction store backed by a chromem-go
// collection. It implements the same operations as the SQLite store and is
// used for local development and tests.
package memstore

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/philippgille/chromem-go"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/lox/transaction-risk-analyzer/internal/db"
	"github.com/lox/transaction-risk-analyzer/internal/types"
)

const collectionName = "transactions"

// Store keeps unembedded rows in a map and embedded rows as chromem documents
type Store struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	pending    map[int64]types.Transaction
	nextID     int64
	dimension  int
	logger     *log.Logger
}

// New creates an empty in-memory store
func New(logger *log.Logger) (*Store, error) {
	cdb := chromem.NewDB()
	// every document carries a precomputed embedding, so no embedding func is needed
	collection, err := cdb.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Store{
		db:         cdb,
		collection: collection,
		pending:    make(map[int64]types.Transaction),
		logger:     logger,
	}, nil
}

// Insert adds a transaction without an embedding and returns its id
func (s *Store) Insert(_ context.Context, t types.Transaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t.ID = s.nextID
	t.Embedding = nil
	s.pending[t.ID] = t
	s.logger.Debug("Inserted transaction", "id", t.ID, "account", t.AccountNumber, "amount", t.Amount)
	return t.ID, nil
}

// SelectUnembedded returns up to limit rows without an embedding, lowest id first
func (s *Store) SelectUnembedded(_ context.Context, limit int) ([]types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	if limit >= 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]types.Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.pending[id])
	}
	return out, nil
}

// WriteEmbeddings moves pending rows into the collection. Ids that are unknown or
// already embedded are skipped. On failure the whole batch stays pending.
func (s *Store) WriteEmbeddings(ctx context.Context, embeddings map[int64][]float32) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []chromem.Document
	var ids []string
	for id, vec := range embeddings {
		t, ok := s.pending[id]
		if !ok {
			continue
		}
		if len(vec) == 0 {
			return 0, fmt.Errorf("empty embedding for id %d", id)
		}
		dim := s.dimension
		if dim == 0 && len(docs) > 0 {
			dim = len(docs[0].Embedding)
		}
		if dim != 0 && len(vec) != dim {
			return 0, fmt.Errorf("%w: id %d has %d components, store holds %d", db.ErrMalformedVector, id, len(vec), dim)
		}
		docID := strconv.FormatInt(id, 10)
		docs = append(docs, chromem.Document{
			ID:        docID,
			Metadata:  toMetadata(t),
			Embedding: slices.Clone(vec),
			Content:   t.Description,
		})
		ids = append(ids, docID)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		if delErr := s.collection.Delete(ctx, nil, nil, ids...); delErr != nil {
			s.logger.Warn("Failed to roll back partial batch", "error", delErr)
		}
		return 0, fmt.Errorf("failed to add documents: %w", err)
	}

	for _, doc := range docs {
		id, _ := strconv.ParseInt(doc.ID, 10, 64)
		delete(s.pending, id)
	}
	if s.dimension == 0 {
		s.dimension = len(docs[0].Embedding)
	}
	return len(docs), nil
}

// QueryByDistance returns the k nearest embedded rows by cosine distance
func (s *Store) QueryByDistance(ctx context.Context, query []float32, k int) ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.collection.Count()
	if k <= 0 || count == 0 {
		return []types.Candidate{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: store holds %d-dimensional vectors, query has %d", db.ErrMalformedVector, s.dimension, len(query))
	}

	// ask for every document and rank locally so ties are broken by id
	results, err := s.collection.QueryEmbedding(ctx, slices.Clone(query), count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}

	candidates := make([]types.Candidate, 0, len(results))
	for _, r := range results {
		t, err := fromResult(r)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, types.Candidate{
			Transaction: t,
			Distance:    similarityToDistance(r.Similarity),
		})
	}

	types.SortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// Count returns the total number of rows
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) + s.collection.Count(), nil
}

// CountUnembedded returns the number of rows waiting for an embedding
func (s *Store) CountUnembedded(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending), nil
}

// Close releases the collection
func (s *Store) Close() error {
	return nil
}

func similarityToDistance(sim float32) float64 {
	// zero vectors normalise to NaN inside chromem; treat them as orthogonal
	if math.IsNaN(float64(sim)) {
		return 1
	}
	return math.Max(0, math.Min(2, 1-float64(sim)))
}

func toMetadata(t types.Transaction) map[string]string {
	return map[string]string{
		"account_number":   t.AccountNumber,
		"transaction_date": t.Date,
		"category":         t.Category,
		"amount":           t.Amount.String(),
	}
}

func fromResult(r chromem.Result) (types.Transaction, error) {
	id, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("invalid document id %q: %w", r.ID, err)
	}
	amount, err := decimal.NewFromString(r.Metadata["amount"])
	if err != nil {
		return types.Transaction{}, fmt.Errorf("invalid amount for id %d: %w", id, err)
	}
	return types.Transaction{
		ID:            id,
		AccountNumber: r.Metadata["account_number"],
		Date:          r.Metadata["transaction_date"],
		Description:   r.Content,
		Category:      r.Metadata["category"],
		Amount:        amount,
		Embedding:     r.Embedding,
	}, nil
}
