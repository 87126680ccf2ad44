package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/skalibog/bnlive/internal/config"
	"github.com/skalibog/bnlive/pkg/logger"
	"github.com/skalibog/bnlive/pkg/models"
)

// ErrCacheMiss означает отсутствие свежей записи
var ErrCacheMiss = errors.New("нет записи в кэше")

// Cache хранит ответы источника ограниченное время
type Cache interface {
	Get(ctx context.Context, key string, maxAge time.Duration) ([]models.RawBar, error)
	Set(ctx context.Context, key string, bars []models.RawBar, ttl time.Duration) error
}

// CachedSource ограничивает частоту обращений к источнику.
// Одновременные запросы с одним ключом объединяются в один вызов.
type CachedSource struct {
	source Source
	cache  Cache
	ttl    time.Duration
	group  singleflight.Group
}

// NewCachedSource оборачивает источник кэшем; при backend "none" возвращает источник как есть
func NewCachedSource(source Source, cfg config.CacheConfig) (Source, error) {
	var cache Cache
	switch cfg.Backend {
	case "none":
		return source, nil
	case "memory", "":
		cache = NewMemoryCache()
	case "redis":
		cache = NewRedisCache(redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}))
	default:
		return nil, fmt.Errorf("неизвестный backend кэша %q", cfg.Backend)
	}
	return WithCache(source, cache, cfg.TTL), nil
}

// WithCache оборачивает источник заданным кэшем
func WithCache(source Source, cache Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{source: source, cache: cache, ttl: ttl}
}

// Fetch возвращает закэшированный ответ не старше MaxAge (или ttl), иначе обращается к источнику
func (c *CachedSource) Fetch(ctx context.Context, req FetchRequest) ([]models.RawBar, error) {
	maxAge := req.MaxAge
	if maxAge <= 0 {
		maxAge = c.ttl
	}
	key := req.Key()

	bars, err := c.cache.Get(ctx, key, maxAge)
	if err == nil {
		logger.Debug("CACHE: попадание", zap.String("key", key), zap.Int("bars", len(bars)))
		return bars, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logger.Warn("Ошибка чтения кэша", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		fetched, err := c.source.Fetch(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, fetched, c.ttl); err != nil {
			logger.Warn("Ошибка записи в кэш", zap.String("key", key), zap.Error(err))
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.RawBar), nil
}

// MemoryCache кэш в памяти процесса
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	bars     []models.RawBar
	storedAt time.Time
	ttl      time.Duration
}

// NewMemoryCache создает кэш в памяти
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get возвращает запись, если она моложе maxAge и не истек ее ttl
func (m *MemoryCache) Get(_ context.Context, key string, maxAge time.Duration) ([]models.RawBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	age := m.now().Sub(e.storedAt)
	if (e.ttl > 0 && age >= e.ttl) || (maxAge > 0 && age >= maxAge) {
		if e.ttl > 0 && age >= e.ttl {
			delete(m.entries, key)
		}
		return nil, ErrCacheMiss
	}
	return e.bars, nil
}

// Set сохраняет копию ответа
func (m *MemoryCache) Set(_ context.Context, key string, bars []models.RawBar, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{
		bars:     append([]models.RawBar(nil), bars...),
		storedAt: m.now(),
		ttl:      ttl,
	}
	return nil
}

// RedisCache общий кэш в Redis для нескольких процессов
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

type redisEntry struct {
	StoredAt time.Time       `json:"stored_at"`
	Bars     []models.RawBar `json:"bars"`
}

// NewRedisCache создает кэш поверх клиента Redis
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client, prefix: "bnlive:bars:", now: time.Now}
}

// Get читает запись и проверяет ее возраст
func (r *RedisCache) Get(ctx context.Context, key string, maxAge time.Duration) ([]models.RawBar, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из Redis: %w", err)
	}
	var e redisEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("ошибка разбора записи кэша: %w", err)
	}
	if maxAge > 0 && r.now().Sub(e.StoredAt) >= maxAge {
		return nil, ErrCacheMiss
	}
	return e.Bars, nil
}

// Set сохраняет запись с ttl
func (r *RedisCache) Set(ctx context.Context, key string, bars []models.RawBar, ttl time.Duration) error {
	data, err := json.Marshal(redisEntry{StoredAt: r.now(), Bars: bars})
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи кэша: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи в Redis: %w", err)
	}
	return nil
}
