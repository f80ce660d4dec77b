package geo

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
)

// Resolver maps a viewer IP address to an ISO 3166-1 country code.
// Implementations return the empty string when the country is unknown.
type Resolver interface {
	Country(ip string) string
	Close() error
}

// NopResolver never resolves a country. Used when geo lookups are disabled.
type NopResolver struct{}

func (NopResolver) Country(string) string { return "" }
func (NopResolver) Close() error          { return nil }

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

type cacheEntry struct {
	code    string
	expires time.Time
}

// MaxMindResolver resolves countries from a MaxMind GeoLite2 database with
// a bounded in-process cache in front of it.
type MaxMindResolver struct {
	reader   *maxminddb.Reader
	cacheTTL time.Duration
	maxSize  int

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewMaxMindResolver opens the database at dbPath.
func NewMaxMindResolver(dbPath string, cacheSize int, cacheTTL time.Duration) (*MaxMindResolver, error) {
	reader, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}

	if cacheSize <= 0 {
		cacheSize = 10000
	}

	return &MaxMindResolver{
		reader:   reader,
		cacheTTL: cacheTTL,
		maxSize:  cacheSize,
		cache:    make(map[string]cacheEntry),
	}, nil
}

// Country returns the ISO country code for ip, or "" when the address is
// invalid, private, or not in the database.
func (r *MaxMindResolver) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	r.mu.RLock()
	entry, ok := r.cache[ip]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.code
	}

	var record countryRecord
	if err := r.reader.Lookup(parsed, &record); err != nil {
		return ""
	}
	code := record.Country.ISOCode

	r.mu.Lock()
	// Crude eviction: drop everything once the cache is full. Lookups are
	// cheap enough that a cold cache is fine.
	if len(r.cache) >= r.maxSize {
		r.cache = make(map[string]cacheEntry)
	}
	r.cache[ip] = cacheEntry{code: code, expires: time.Now().Add(r.cacheTTL)}
	r.mu.Unlock()

	return code
}

// Close closes the GeoIP database.
func (r *MaxMindResolver) Close() error {
	if r.reader != nil {
		return r.reader.Close()
	}
	return nil
}
