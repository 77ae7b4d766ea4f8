package elastic

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetsubou/tagstore/pkg/search"
)

type fakeCluster struct {
	t *testing.T

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []string
}

func newFakeCluster(t *testing.T) (*fakeCluster, *Index) {
	t.Helper()
	f := &fakeCluster{t: t, routes: make(map[string]http.HandlerFunc)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	idx, err := New("tags", Config{Addresses: []string{srv.URL}, MaxRetries: 1}, WithMaxResultWindow(100))
	require.NoError(t, err)
	return f, idx
}

func (f *fakeCluster) handle(route string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[route] = h
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.requests = append(f.requests, route)
	h, ok := f.routes[route]
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"no_route","reason":"`+route+`"},"status":404}`)
		return
	}
	h(w, r)
}

func (f *fakeCluster) seen(route string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == route {
			return true
		}
	}
	return false
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestGet(t *testing.T) {
	f, idx := newFakeCluster(t)
	f.handle("GET /tags/_doc/1", reply(200, `{"_index":"tags","_id":"1","_seq_no":7,"_primary_term":2,"found":true,"_source":{"id":1,"name":"blue"}}`))
	f.handle("GET /tags/_doc/2", reply(404, `{"_index":"tags","_id":"2","found":false}`))

	doc, err := idx.Get(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, "1", doc.ID)
	require.Equal(t, search.Version{SeqNo: 7, PrimaryTerm: 2}, doc.Version)
	require.JSONEq(t, `{"id":1,"name":"blue"}`, string(doc.Source))

	_, err = idx.Get(context.Background(), "2")
	var notFound *search.DocumentNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "2", notFound.ID)
}

func TestIndexPreconditions(t *testing.T) {
	f, idx := newFakeCluster(t)
	ctx := context.Background()

	f.handle("PUT /tags/_doc/1", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("op_type") == "create":
			reply(409, `{"error":{"root_cause":[{"type":"version_conflict_engine_exception","reason":"document already exists"}]},"status":409}`)(w, r)
		case q.Get("if_seq_no") == "3" && q.Get("if_primary_term") == "1":
			reply(200, `{"_id":"1","_seq_no":4,"_primary_term":1,"result":"updated"}`)(w, r)
		case q.Get("if_seq_no") != "":
			reply(409, `{"error":{"root_cause":[{"type":"version_conflict_engine_exception","reason":"required seqNo"}]},"status":409}`)(w, r)
		default:
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"name":"blue"}`, string(body))
			reply(201, `{"_id":"1","_seq_no":0,"_primary_term":1,"result":"created"}`)(w, r)
		}
	})

	v, err := idx.Index(ctx, "1", json.RawMessage(`{"name":"blue"}`))
	require.NoError(t, err)
	require.Equal(t, search.Version{SeqNo: 0, PrimaryTerm: 1}, v)

	_, err = idx.Index(ctx, "1", json.RawMessage(`{"name":"blue"}`), search.WithCreateOnly())
	require.ErrorIs(t, err, search.ErrVersionConflict)

	v, err = idx.Index(ctx, "1", json.RawMessage(`{"name":"blue"}`), search.WithIfVersion(search.Version{SeqNo: 3, PrimaryTerm: 1}))
	require.NoError(t, err)
	require.Equal(t, int64(4), v.SeqNo)

	_, err = idx.Index(ctx, "1", json.RawMessage(`{"name":"blue"}`), search.WithIfVersion(search.Version{SeqNo: 2, PrimaryTerm: 1}))
	require.ErrorIs(t, err, search.ErrVersionConflict)
}

func TestSearch(t *testing.T) {
	f, idx := newFakeCluster(t)
	ctx := context.Background()

	var lastBody map[string]any
	var lastQuery map[string][]string
	f.handle("POST /tags/_search", func(w http.ResponseWriter, r *http.Request) {
		lastQuery = r.URL.Query()
		lastBody = nil
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&lastBody))
		reply(200, `{"hits":{"total":{"value":12,"relation":"eq"},"hits":[
			{"_id":"3","_score":1.5,"_source":{"id":3},"sort":[1.5,1700000000]},
			{"_id":"4","_score":null,"_source":{"id":4},"sort":[1.0,"4"]}
		]}}`)(w, r)
	})

	res, err := idx.Search(ctx, &search.SearchRequest{
		Query: search.MatchAllQuery(),
		Size:  2,
		From:  10,
		Sort:  []any{"_score", "id"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 12, res.Total)
	require.Len(t, res.Hits, 2)
	require.Equal(t, "3", res.Hits[0].ID)
	require.InDelta(t, 1.5, *res.Hits[0].Score, 1e-9)
	require.Nil(t, res.Hits[1].Score)
	require.Equal(t, []any{1.0, "4"}, res.Hits[1].Sort)
	require.Equal(t, "10", lastQuery["from"][0])
	require.Equal(t, "2", lastQuery["size"][0])
	require.Equal(t, map[string]any{"match_all": map[string]any{}}, lastBody["query"])

	_, err = idx.Search(ctx, &search.SearchRequest{Size: 2, SearchAfter: []any{1.0, "4"}})
	require.NoError(t, err)
	require.NotContains(t, lastQuery, "from")
	require.Equal(t, []any{1.0, "4"}, lastBody["search_after"])

	_, err = idx.Search(ctx, &search.SearchRequest{From: 99, Size: 2})
	require.ErrorIs(t, err, search.ErrResultWindowExceeded)

	f.handle("POST /tags/_search", reply(400, `{"error":{"root_cause":[{"type":"illegal_argument_exception","reason":"Result window is too large, from + size must be less than or equal to: [10000]"}]},"status":400}`))
	_, err = idx.Search(ctx, &search.SearchRequest{Size: 2})
	require.ErrorIs(t, err, search.ErrResultWindowExceeded)

	f.handle("POST /tags/_search", reply(400, `{"error":{"root_cause":[{"type":"parsing_exception","reason":"unknown query [fuzzy_thing]"}]},"status":400}`))
	_, err = idx.Search(ctx, &search.SearchRequest{Size: 2})
	require.ErrorIs(t, err, search.ErrMalformedQuery)
}

func TestCount(t *testing.T) {
	f, idx := newFakeCluster(t)
	f.handle("POST /tags/_count", reply(200, `{"count":42}`))

	n, err := idx.Count(context.Background(), search.MatchAllQuery())
	require.NoError(t, err)
	require.EqualValues(t, 42, n)
}

func TestBulk(t *testing.T) {
	f, idx := newFakeCluster(t)
	ctx := context.Background()

	var lines []string
	f.handle("POST /tags/_bulk", func(w http.ResponseWriter, r *http.Request) {
		lines = lines[:0]
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		reply(200, `{"errors":true,"items":[
			{"index":{"_id":"1","status":200}},
			{"delete":{"_id":"2","status":404,"result":"not_found"}},
			{"index":{"_id":"3","status":409,"error":{"type":"version_conflict_engine_exception","reason":"conflict"}}}
		]}`)(w, r)
	})

	err := idx.Bulk(ctx, []search.BulkAction{
		{Op: search.BulkIndex, ID: "1", Source: json.RawMessage("{\n \"id\": 1\n}")},
		{Op: search.BulkDelete, ID: "2"},
		{Op: search.BulkIndex, ID: "3", Source: json.RawMessage(`{"id":3}`)},
	})
	require.Equal(t, []string{
		`{"index":{"_id":"1"}}`,
		`{"id":1}`,
		`{"delete":{"_id":"2"}}`,
		`{"index":{"_id":"3"}}`,
		`{"id":3}`,
	}, lines)

	var bulkErr *search.BulkError
	require.ErrorAs(t, err, &bulkErr)
	require.Len(t, bulkErr.Failures, 1)
	require.Equal(t, "3", bulkErr.Failures[0].ID)
	require.ErrorIs(t, err, search.ErrVersionConflict)

	require.NoError(t, idx.Bulk(ctx, nil))
}

func TestScan(t *testing.T) {
	f, idx := newFakeCluster(t)

	f.handle("POST /tags/_search", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("scroll"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"sort":["_doc"]`)
		reply(200, `{"_scroll_id":"s1","hits":{"total":{"value":3},"hits":[{"_id":"1","_source":{}},{"_id":"2","_source":{}}]}}`)(w, r)
	})
	scrolls := 0
	f.handle("POST /_search/scroll", func(w http.ResponseWriter, r *http.Request) {
		scrolls++
		if scrolls == 1 {
			reply(200, `{"_scroll_id":"s2","hits":{"hits":[{"_id":"3","_source":{}}]}}`)(w, r)
			return
		}
		reply(200, `{"_scroll_id":"s2","hits":{"hits":[]}}`)(w, r)
	})
	f.handle("DELETE /_search/scroll/s2", reply(200, `{"succeeded":true,"num_freed":1}`))

	var ids []string
	for hit, err := range idx.Scan(context.Background(), search.MatchAllQuery(), 2) {
		require.NoError(t, err)
		ids = append(ids, hit.ID)
	}
	require.Equal(t, []string{"1", "2", "3"}, ids)
	// The latest scroll id is the one released.
	require.True(t, f.seen("DELETE /_search/scroll/s2"))
	require.False(t, f.seen("DELETE /_search/scroll/s1"))
}

func TestFieldNames(t *testing.T) {
	f, idx := newFakeCluster(t)
	f.handle("GET /tags/_mapping", reply(200, `{"tags-v2":{"mappings":{"properties":{
		"id":{"type":"long"},
		"name":{"type":"text","fields":{"keyword":{"type":"keyword"},"ngram":{"type":"text"}}},
		"attributes":{"properties":{"1":{"type":"text"},"2":{"type":"text"}}},
		"owner":{"properties":{"profile":{"properties":{"name":{"type":"text"}}}}}
	}}}}`))

	names, err := idx.FieldNames(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"attributes.1", "attributes.2", "id", "name", "owner.profile.name"}, names)
}

func TestResponseErrorMapping(t *testing.T) {
	idx := NewWithClient("tags", nil)

	err := idx.responseError(404, []byte(`{"error":{"root_cause":[{"type":"index_not_found_exception","reason":"no such index [tags]"}]}}`), "")
	require.ErrorIs(t, err, search.ErrDocumentNotFound)
	require.True(t, strings.Contains(err.Error(), "index tags"))

	err = idx.responseError(503, []byte(`{"error":{"type":"cluster_block_exception","reason":"blocked"}}`), "")
	require.EqualError(t, err, "elasticsearch returned 503 cluster_block_exception: blocked")
}
