package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ddt-tool/ddt/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "ddt:case:"

// farFuture scores index entries of exports that never expire (2100-01-01).
const farFuture = 4102444800

// ExportStore implements ports.ExportStore using Redis.
// Each export is a JSON string key; a sorted set indexes case ids by expiry.
type ExportStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures the ExportStore.
type Option func(*ExportStore)

// WithTTL sets the expiration of exports. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *ExportStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *ExportStore) {
		s.prefix = prefix
	}
}

// WithClock overrides the clock used to score the expiry index.
func WithClock(now func() time.Time) Option {
	return func(s *ExportStore) {
		s.now = now
	}
}

// New connects to address and creates a store.
func New(address, password string, db int, opts ...Option) *ExportStore {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *ExportStore {
	s := &ExportStore{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *ExportStore) Client() *backend.Client {
	return s.client
}

func (s *ExportStore) key(caseID string) string {
	return s.prefix + caseID
}

func (s *ExportStore) indexKey() string {
	return s.prefix + "index"
}

// Save writes the export and refreshes its index entry in one pipeline.
func (s *ExportStore) Save(ctx context.Context, export *domain.CaseExport) error {
	data, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}

	score := float64(s.now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = farFuture
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(export.CaseID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: export.CaseID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load reads an export. Returns domain.ErrCaseNotFound when absent or expired.
func (s *ExportStore) Load(ctx context.Context, caseID string) (*domain.CaseExport, error) {
	val, err := s.client.Get(ctx, s.key(caseID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var export domain.CaseExport
	if err := json.Unmarshal(val, &export); err != nil {
		return nil, fmt.Errorf("failed to unmarshal export: %w", err)
	}
	return &export, nil
}

// Delete removes the export and its index entry.
func (s *ExportStore) Delete(ctx context.Context, caseID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(caseID))
	pipe.ZRem(ctx, s.indexKey(), caseID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns live case ids. Expired index entries are pruned lazily.
func (s *ExportStore) List(ctx context.Context) ([]string, error) {
	now := strconv.FormatInt(s.now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired cases: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *ExportStore) Close() error {
	return s.client.Close()
}
