package retrieval

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "restaurant-receptionist/internal/common/errors"
	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/facts/factstest"
)

func TestChunk(t *testing.T) {
	passages := Chunk(factstest.Snapshot())

	ids := make([]string, 0, len(passages))
	byID := make(map[string]Passage)
	for _, p := range passages {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}
	assert.Equal(t, []string{
		"basic", "hours_location", "menu.wraps", "menu.desserts", "menu.drinks",
		"faq.0", "faq.1", "faq.2", "policies", "reservations",
	}, ids)

	assert.Contains(t, byID["basic"].Text, "Services: catering, halal meat.")
	assert.Contains(t, byID["hours_location"].Text, factstest.HoursText)
	assert.Contains(t, byID["hours_location"].Text, "Free parking")
	assert.Contains(t, byID["menu.wraps"].Text, "Chicken Shawarma Wrap ($15.50)")
	assert.Contains(t, byID["reservations"].Text, "parties of 1 to 12")
}

func TestMemoryIndex_Retrieve(t *testing.T) {
	idx := NewMemoryIndex(Chunk(factstest.Snapshot()))

	got, err := idx.Retrieve(context.Background(), "do you cater events", 3)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "faq.2", got[0].ID)
	assert.LessOrEqual(t, len(got), 3)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}

	none, err := idx.Retrieve(context.Background(), "zzzz", 3)
	require.NoError(t, err)
	assert.Empty(t, none)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = idx.Retrieve(ctx, "parking", 3)
	assert.Error(t, err)
}

// fakeES answers index and search calls the way an Elasticsearch node does.
type fakeES struct {
	mu      sync.Mutex
	indexed map[string]Passage
	status  int
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.Contains(r.URL.Path, "/_doc/"):
		var p Passage
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &p)
		f.indexed[p.ID] = p
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case strings.HasSuffix(r.URL.Path, "/_search"):
		var q struct {
			Size int `json:"size"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &q)

		hits := []map[string]interface{}{}
		for _, id := range []string{"hours_location", "basic"} {
			if p, ok := f.indexed[id]; ok && len(hits) < q.Size {
				hits = append(hits, map[string]interface{}{"_id": id, "_score": 2.5 - float64(len(hits)), "_source": p})
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"hits": map[string]interface{}{"hits": hits}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newElasticIndex(t *testing.T, f *fakeES) *ElasticIndex {
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return NewElasticIndex(client, "business-passages", logger.NewTestLogger(t))
}

func TestElasticIndex_SeedAndRetrieve(t *testing.T) {
	f := &fakeES{indexed: make(map[string]Passage)}
	idx := newElasticIndex(t, f)

	passages := Chunk(factstest.Snapshot())
	require.NoError(t, idx.Seed(context.Background(), passages))
	assert.Len(t, f.indexed, len(passages))

	got, err := idx.Retrieve(context.Background(), "where do I park", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hours_location", got[0].ID)
	assert.Equal(t, 2.5, got[0].Score)
	assert.Contains(t, got[0].Text, "Free parking")
}

func TestElasticIndex_MissingIndex(t *testing.T) {
	idx := newElasticIndex(t, &fakeES{status: http.StatusNotFound})

	_, err := idx.Retrieve(context.Background(), "parking", 3)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIndexNotFound, apperrors.Normalize(err).Code)
}
