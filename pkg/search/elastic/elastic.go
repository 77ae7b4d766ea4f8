// Package elastic implements search.Index on an Elasticsearch 8 cluster.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zetsubou/tagstore/pkg/logger"
	"github.com/zetsubou/tagstore/pkg/search"
)

var tracer = otel.Tracer("tagstore/pkg/search/elastic")

const (
	defaultScrollKeepAlive = time.Minute
	defaultMaxRetries      = 3
)

// Config holds the connection settings of a cluster.
type Config struct {
	Addresses []string
	Username  string
	Password  string

	// MaxRetries bounds the retries of one request on connection errors and 5xx
	// responses.
	MaxRetries int
}

// Option configures an [Index].
type Option func(*Index)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(i *Index) {
		i.logger = l
	}
}

// WithMaxResultWindow matches the index.max_result_window setting of the index.
func WithMaxResultWindow(w int) Option {
	return func(i *Index) {
		i.window = w
	}
}

// WithRefresh sets the refresh policy of writes: "true", "wait_for" or "false".
func WithRefresh(policy string) Option {
	return func(i *Index) {
		i.refresh = policy
	}
}

// WithScrollKeepAlive sets how long a Scan cursor stays open between batches.
func WithScrollKeepAlive(d time.Duration) Option {
	return func(i *Index) {
		i.keepAlive = d
	}
}

// Index is a search.Index backed by one Elasticsearch index or alias.
type Index struct {
	client    *elasticsearch.Client
	name      string
	window    int
	refresh   string
	keepAlive time.Duration
	logger    logger.Logger
}

var _ search.Index = (*Index)(nil)

// NewClient returns a cluster client whose transport retries with backoff and
// records an otel span per request.
func NewClient(cfg Config) (*elasticsearch.Client, error) {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = defaultMaxRetries
	if cfg.MaxRetries > 0 {
		rc.RetryMax = cfg.MaxRetries
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    otelhttp.NewTransport(&retryablehttp.RoundTripper{Client: rc}),
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize elasticsearch client: %w", err)
	}
	return client, nil
}

// New returns an Index over the named index of a new client for cfg.
func New(name string, cfg Config, opts ...Option) (*Index, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithClient(name, client, opts...), nil
}

// NewWithClient returns an Index over the named index of client.
func NewWithClient(name string, client *elasticsearch.Client, opts ...Option) *Index {
	i := &Index{
		client:    client,
		name:      name,
		window:    search.DefaultMaxResultWindow,
		keepAlive: defaultScrollKeepAlive,
		logger:    logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Index) Name() string {
	return i.name
}

func (i *Index) MaxResultWindow() int {
	return i.window
}

// Ping reports whether the cluster answers.
func (i *Index) Ping(ctx context.Context) error {
	res, err := i.client.Ping(i.client.Ping.WithContext(ctx))
	if _, err := i.read(res, err, ""); err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	return nil
}

func (i *Index) Get(ctx context.Context, id string) (*search.Document, error) {
	res, err := i.client.Get(i.name, id, i.client.Get.WithContext(ctx))
	body, err := i.read(res, err, id)
	if err != nil {
		return nil, err
	}
	r := gjson.ParseBytes(body)
	return &search.Document{
		ID:     r.Get("_id").String(),
		Source: json.RawMessage(r.Get("_source").Raw),
		Version: search.Version{
			SeqNo:       r.Get("_seq_no").Int(),
			PrimaryTerm: r.Get("_primary_term").Int(),
		},
	}, nil
}

type searchBody struct {
	Query       search.Query `json:"query,omitempty"`
	Sort        []any        `json:"sort,omitempty"`
	SearchAfter []any        `json:"search_after,omitempty"`
}

func (i *Index) Search(ctx context.Context, req *search.SearchRequest) (*search.SearchResponse, error) {
	ctx, span := tracer.Start(ctx, "elastic.Search", trace.WithAttributes(
		attribute.String("index", i.name),
		attribute.Int("from", req.From),
		attribute.Int("size", req.Size),
	))
	defer span.End()

	if req.From+req.Size > i.window {
		return nil, fmt.Errorf("%w: from %d + size %d > %d", search.ErrResultWindowExceeded, req.From, req.Size, i.window)
	}
	body, err := encode(searchBody{Query: req.Query, Sort: req.Sort, SearchAfter: req.SearchAfter})
	if err != nil {
		return nil, err
	}

	opts := []func(*esapi.SearchRequest){
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.name),
		i.client.Search.WithBody(body),
		i.client.Search.WithSize(req.Size),
		i.client.Search.WithTrackTotalHits(req.TrackTotalHits),
	}
	if len(req.SearchAfter) == 0 {
		opts = append(opts, i.client.Search.WithFrom(req.From))
	}
	res, err := i.client.Search(opts...)
	raw, err := i.read(res, err, "")
	if err != nil {
		return nil, err
	}
	return parseSearch(raw)
}

func parseSearch(raw []byte) (*search.SearchResponse, error) {
	r := gjson.ParseBytes(raw)
	out := &search.SearchResponse{
		Total: r.Get("hits.total.value").Int(),
		Hits:  []*search.Hit{},
	}
	for _, h := range r.Get("hits.hits").Array() {
		hit, err := parseHit(h)
		if err != nil {
			return nil, err
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

func parseHit(h gjson.Result) (*search.Hit, error) {
	hit := &search.Hit{
		ID:     h.Get("_id").String(),
		Source: json.RawMessage(h.Get("_source").Raw),
	}
	if s := h.Get("_score"); s.Type == gjson.Number {
		score := s.Float()
		hit.Score = &score
	}
	if s := h.Get("sort"); s.Exists() {
		if err := json.Unmarshal([]byte(s.Raw), &hit.Sort); err != nil {
			return nil, fmt.Errorf("decode sort values of %s: %w", hit.ID, err)
		}
	}
	return hit, nil
}

func (i *Index) Count(ctx context.Context, query search.Query) (int64, error) {
	body, err := encode(searchBody{Query: query})
	if err != nil {
		return 0, err
	}
	res, err := i.client.Count(
		i.client.Count.WithContext(ctx),
		i.client.Count.WithIndex(i.name),
		i.client.Count.WithBody(body),
	)
	raw, err := i.read(res, err, "")
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(raw, "count").Int(), nil
}

func (i *Index) Index(ctx context.Context, id string, source json.RawMessage, opts ...search.WriteOption) (search.Version, error) {
	o := search.NewWriteOptions(opts...)

	reqOpts := []func(*esapi.IndexRequest){
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(id),
	}
	if i.refresh != "" {
		reqOpts = append(reqOpts, i.client.Index.WithRefresh(i.refresh))
	}
	if o.CreateOnly {
		reqOpts = append(reqOpts, i.client.Index.WithOpType("create"))
	}
	if o.IfVersion != nil {
		reqOpts = append(reqOpts,
			i.client.Index.WithIfSeqNo(int(o.IfVersion.SeqNo)),
			i.client.Index.WithIfPrimaryTerm(int(o.IfVersion.PrimaryTerm)),
		)
	}

	res, err := i.client.Index(i.name, bytes.NewReader(source), reqOpts...)
	raw, err := i.read(res, err, id)
	if err != nil {
		// A conditional write on a missing document is a conflict, not a lookup failure.
		if o.IfVersion != nil && errors.Is(err, search.ErrDocumentNotFound) {
			return search.Version{}, fmt.Errorf("%w: document %s does not exist", search.ErrVersionConflict, id)
		}
		return search.Version{}, err
	}
	r := gjson.ParseBytes(raw)
	return search.Version{SeqNo: r.Get("_seq_no").Int(), PrimaryTerm: r.Get("_primary_term").Int()}, nil
}

func (i *Index) Delete(ctx context.Context, id string) error {
	reqOpts := []func(*esapi.DeleteRequest){i.client.Delete.WithContext(ctx)}
	if i.refresh != "" {
		reqOpts = append(reqOpts, i.client.Delete.WithRefresh(i.refresh))
	}
	res, err := i.client.Delete(i.name, id, reqOpts...)
	_, err = i.read(res, err, id)
	return err
}

func (i *Index) Bulk(ctx context.Context, actions []search.BulkAction) error {
	if len(actions) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, a := range actions {
		meta := map[string]map[string]string{a.Op.String(): {"_id": a.ID}}
		line, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
		if a.Op == search.BulkIndex {
			var compact bytes.Buffer
			if err := json.Compact(&compact, a.Source); err != nil {
				return search.MalformedQueryError("document %s: %v", a.ID, err)
			}
			buf.Write(compact.Bytes())
			buf.WriteByte('\n')
		}
	}

	reqOpts := []func(*esapi.BulkRequest){
		i.client.Bulk.WithContext(ctx),
		i.client.Bulk.WithIndex(i.name),
	}
	if i.refresh != "" {
		reqOpts = append(reqOpts, i.client.Bulk.WithRefresh(i.refresh))
	}
	res, err := i.client.Bulk(&buf, reqOpts...)
	raw, err := i.read(res, err, "")
	if err != nil {
		return err
	}
	return bulkFailures(raw)
}

func bulkFailures(raw []byte) error {
	r := gjson.ParseBytes(raw)
	if !r.Get("errors").Bool() {
		return nil
	}
	var failures []search.BulkFailure
	for _, item := range r.Get("items").Array() {
		item.ForEach(func(op, result gjson.Result) bool {
			status := int(result.Get("status").Int())
			if status < 300 {
				return true
			}
			f := search.BulkFailure{
				Op:     search.BulkIndex,
				ID:     result.Get("_id").String(),
				Status: status,
				Reason: result.Get("error.reason").String(),
			}
			if op.String() == "delete" {
				if status == http.StatusNotFound {
					return true
				}
				f.Op = search.BulkDelete
			}
			failures = append(failures, f)
			return true
		})
	}
	if len(failures) == 0 {
		return nil
	}
	return &search.BulkError{Failures: failures}
}

func (i *Index) Scan(ctx context.Context, query search.Query, batchSize int) iter.Seq2[*search.Hit, error] {
	return func(yield func(*search.Hit, error) bool) {
		ctx, span := tracer.Start(ctx, "elastic.Scan", trace.WithAttributes(attribute.String("index", i.name)))
		defer span.End()

		body, err := encode(searchBody{Query: query, Sort: []any{"_doc"}})
		if err != nil {
			yield(nil, err)
			return
		}
		res, err := i.client.Search(
			i.client.Search.WithContext(ctx),
			i.client.Search.WithIndex(i.name),
			i.client.Search.WithBody(body),
			i.client.Search.WithSize(batchSize),
			i.client.Search.WithScroll(i.keepAlive),
		)
		raw, err := i.read(res, err, "")
		if err != nil {
			yield(nil, err)
			return
		}

		scrollID := gjson.GetBytes(raw, "_scroll_id").String()
		defer func() { i.clearScroll(context.WithoutCancel(ctx), scrollID) }()

		for {
			page, err := parseSearch(raw)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page.Hits) == 0 {
				return
			}
			for _, hit := range page.Hits {
				if !yield(hit, nil) {
					return
				}
			}

			res, err := i.client.Scroll(
				i.client.Scroll.WithContext(ctx),
				i.client.Scroll.WithScrollID(scrollID),
				i.client.Scroll.WithScroll(i.keepAlive),
			)
			if raw, err = i.read(res, err, ""); err != nil {
				yield(nil, err)
				return
			}
			if next := gjson.GetBytes(raw, "_scroll_id").String(); next != "" {
				scrollID = next
			}
		}
	}
}

func (i *Index) clearScroll(ctx context.Context, scrollID string) {
	if scrollID == "" {
		return
	}
	res, err := i.client.ClearScroll(
		i.client.ClearScroll.WithContext(ctx),
		i.client.ClearScroll.WithScrollID(scrollID),
	)
	if _, err := i.read(res, err, ""); err != nil {
		i.logger.WarnWithContext(ctx, "failed to clear scroll", zap.String("index", i.name), zap.Error(err))
	}
}

func (i *Index) FieldNames(ctx context.Context) ([]string, error) {
	res, err := i.client.Indices.GetMapping(
		i.client.Indices.GetMapping.WithContext(ctx),
		i.client.Indices.GetMapping.WithIndex(i.name),
	)
	raw, err := i.read(res, err, "")
	if err != nil {
		return nil, err
	}
	return mappingFieldNames(raw), nil
}

// mappingFieldNames walks the properties of a mapping breadth first and returns the
// dotted path of every field without sub-properties.
func mappingFieldNames(raw []byte) []string {
	type node struct {
		prefix string
		props  gjson.Result
	}
	var queue []node
	gjson.ParseBytes(raw).ForEach(func(_, index gjson.Result) bool {
		queue = append(queue, node{props: index.Get("mappings.properties")})
		return true
	})

	var names []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		n.props.ForEach(func(key, value gjson.Result) bool {
			path := key.String()
			if n.prefix != "" {
				path = n.prefix + "." + path
			}
			if sub := value.Get("properties"); sub.Exists() {
				queue = append(queue, node{prefix: path, props: sub})
			} else {
				names = append(names, path)
			}
			return true
		})
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// read drains res and maps error responses onto the search error sentinels.
func (i *Index) read(res *esapi.Response, err error, id string) ([]byte, error) {
	if err != nil {
		return nil, fmt.Errorf("elasticsearch request on %s: %w", i.name, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read elasticsearch response: %w", err)
	}
	if !res.IsError() {
		return body, nil
	}
	return nil, i.responseError(res.StatusCode, body, id)
}

func (i *Index) responseError(status int, body []byte, id string) error {
	r := gjson.ParseBytes(body)
	kind := r.Get("error.root_cause.0.type").String()
	if kind == "" {
		kind = r.Get("error.type").String()
	}
	reason := r.Get("error.root_cause.0.reason").String()
	if reason == "" {
		reason = r.Get("error.reason").String()
	}

	switch {
	case status == http.StatusNotFound && kind == "index_not_found_exception":
		return fmt.Errorf("index %s: %w", i.name, search.ErrDocumentNotFound)
	case status == http.StatusNotFound:
		return &search.DocumentNotFoundError{Index: i.name, ID: id}
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", search.ErrVersionConflict, reason)
	case status == http.StatusBadRequest && strings.Contains(reason, "Result window is too large"):
		return fmt.Errorf("%w: %s", search.ErrResultWindowExceeded, reason)
	case status == http.StatusBadRequest:
		return search.MalformedQueryError("%s: %s", kind, reason)
	default:
		return fmt.Errorf("elasticsearch returned %d %s: %s", status, kind, reason)
	}
}

func encode(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, search.MalformedQueryError("%v", err)
	}
	return bytes.NewReader(b), nil
}
