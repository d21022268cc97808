package facts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoadFile reads and validates a business-data JSON document.
func LoadFile(path string) (*BusinessData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read business data %s: %w", path, err)
	}
	return ParseBusinessData(raw)
}

// Querier is satisfied by database.SQLClient.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

const (
	queryFacts     = `SELECT key, value FROM business_facts`
	queryMenuItems = `SELECT section, name, price_cents, description, synonyms FROM menu_items ORDER BY section, position`
)

// LoadPostgres assembles a BusinessData document from the business_facts
// key/value table and the menu_items table.
func LoadPostgres(ctx context.Context, db Querier) (*BusinessData, error) {
	data := &BusinessData{
		Hours:        make(map[string]string),
		Services:     make(map[string]bool),
		Dietary:      make(map[string]string),
		LocationInfo: make(map[string]string),
		Policies:     make(map[string]string),
		Facts:        make(map[string]string),
	}

	rows, err := db.Query(ctx, queryFacts)
	if err != nil {
		return nil, fmt.Errorf("query business_facts: %w", err)
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan business_facts: %w", err)
		}
		applyFact(data, key, value)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = db.Query(ctx, queryMenuItems)
	if err != nil {
		return nil, fmt.Errorf("query menu_items: %w", err)
	}
	defer rows.Close()

	sections := make(map[string]int)
	for rows.Next() {
		var (
			section, name string
			priceCents    int64
			description   sql.NullString
			synonyms      sql.NullString
		)
		if err := rows.Scan(&section, &name, &priceCents, &description, &synonyms); err != nil {
			return nil, fmt.Errorf("scan menu_items: %w", err)
		}
		idx, ok := sections[section]
		if !ok {
			idx = len(data.MenuSections)
			sections[section] = idx
			data.MenuSections = append(data.MenuSections, MenuSection{Name: section})
		}
		item := MenuItem{
			Name:        name,
			Price:       float64(priceCents) / 100,
			Description: description.String,
		}
		if synonyms.Valid && synonyms.String != "" {
			for _, syn := range strings.Split(synonyms.String, ",") {
				if syn = strings.TrimSpace(syn); syn != "" {
					item.Synonyms = append(item.Synonyms, syn)
				}
			}
		}
		data.MenuSections[idx].Items = append(data.MenuSections[idx].Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if data.BusinessName == "" {
		return nil, errors.New("business_facts has no business_name")
	}
	return data, nil
}

func applyFact(data *BusinessData, key, value string) {
	prefix, rest, hasPrefix := strings.Cut(key, ".")
	if !hasPrefix {
		switch key {
		case "business_name":
			data.BusinessName = value
		case "description":
			data.Description = value
		case "hours_summary":
			data.HoursSummary = value
		case "popular_items":
			for _, it := range strings.Split(value, ",") {
				if it = strings.TrimSpace(it); it != "" {
					data.PopularItems = append(data.PopularItems, it)
				}
			}
		default:
			data.Facts[key] = value
		}
		return
	}

	switch prefix {
	case "hours":
		data.Hours[rest] = value
	case "address":
		switch rest {
		case "street":
			data.Address.Street = value
		case "city":
			data.Address.City = value
		case "state":
			data.Address.State = value
		case "zip":
			data.Address.Zip = value
		case "phone":
			data.Address.Phone = value
		case "website":
			data.Address.Website = value
		}
	case "location":
		data.LocationInfo[rest] = value
	case "policy":
		data.Policies[rest] = value
	case "service":
		b, _ := strconv.ParseBool(value)
		data.Services[rest] = b
	case "dietary":
		data.Dietary[rest] = value
	case "faq":
		data.FAQ = append(data.FAQ, FAQ{Question: rest, Answer: value, Tags: []string{rest}})
	case "reservation":
		n, _ := strconv.Atoi(value)
		switch rest {
		case "min_party_size":
			data.ReservationRules.MinPartySize = n
		case "max_party_size":
			data.ReservationRules.MaxPartySize = n
		case "large_party_threshold":
			data.ReservationRules.LargePartyThreshold = n
		case "advance_booking_days":
			data.ReservationRules.AdvanceBookingDays = n
		}
	default:
		data.Facts[key] = value
	}
}

// SnapshotCacheKey is where RedisCache stores the serialized document.
const SnapshotCacheKey = "receptionist:facts:snapshot"

// RedisCache fronts a slow loader (typically LoadPostgres) so several
// receptionist processes share one load per TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Load returns the cached document, or calls load and caches its result.
// Cache errors degrade to calling load directly.
func (c *RedisCache) Load(ctx context.Context, load func(context.Context) (*BusinessData, error)) (*BusinessData, bool, error) {
	raw, err := c.client.Get(ctx, SnapshotCacheKey).Bytes()
	if err == nil {
		var data BusinessData
		if jsonErr := json.Unmarshal(raw, &data); jsonErr == nil {
			return &data, true, nil
		}
	}

	data, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	if encoded, err := json.Marshal(data); err == nil {
		_ = c.client.Set(ctx, SnapshotCacheKey, encoded, c.ttl).Err()
	}
	return data, false, nil
}

// Invalidate drops the cached document.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, SnapshotCacheKey).Err()
}
