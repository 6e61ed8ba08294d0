package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/semforge/semforge/internal/query"
)

// ClientConfig configures the SPARQL HTTP client.
type ClientConfig struct {
	// QueryEndpoint receives SPARQL queries (SELECT/ASK).
	QueryEndpoint string

	// UpdateEndpoint receives SPARQL updates.
	UpdateEndpoint string

	// Timeout applies per network call, not per logical operation.
	Timeout time.Duration

	// Retry bounds read retries. Zero values take defaults.
	Retry RetryConfig

	// Logger receives retry diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Client talks the SPARQL protocol over HTTP: queries as
// application/sparql-query with JSON results, updates as
// application/sparql-update. One unit commits as one update request, so
// atomicity matches the endpoint's per-request guarantee.
type Client struct {
	queryURL  string
	updateURL string
	http      *http.Client
	retry     RetryConfig
	log       *slog.Logger
	sleep     sleepFunc

	mu   sync.Mutex
	open map[string]*Unit
}

// NewClient creates a SPARQL client. Both endpoints are required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.QueryEndpoint == "" || cfg.UpdateEndpoint == "" {
		return nil, fmt.Errorf("sparql client: query and update endpoints are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Client{
		queryURL:  cfg.QueryEndpoint,
		updateURL: cfg.UpdateEndpoint,
		http:      &http.Client{Timeout: timeout},
		retry:     cfg.Retry.normalized(),
		log:       log,
		sleep:     sleepContext,
		open:      make(map[string]*Unit),
	}, nil
}

// Select implements GraphStore. The pattern query is retried on transport
// faults with bounded exponential backoff.
func (c *Client) Select(ctx context.Context, p Pattern) ([]Triple, error) {
	q, err := patternQuery(p)
	if err != nil {
		return nil, err
	}
	res, err := c.runQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	triples := make([]Triple, 0, len(res.Results.Bindings))
	for _, b := range res.Results.Bindings {
		t, err := bindingTriple(p, b)
		if err != nil {
			return nil, err
		}
		triples = append(triples, t)
	}
	return triples, nil
}

// Ask implements GraphStore.
func (c *Client) Ask(ctx context.Context, p Pattern) (bool, error) {
	q, err := patternAsk(p)
	if err != nil {
		return false, err
	}
	res, err := c.runQuery(ctx, q)
	if err != nil {
		return false, err
	}
	if res.Boolean == nil {
		return false, fmt.Errorf("ask %s: response carries no boolean", c.queryURL)
	}
	return *res.Boolean, nil
}

// Instances implements GraphStore.
func (c *Client) Instances(ctx context.Context, graph string, f *query.Fragment) ([]string, error) {
	q, err := query.CompileSPARQL(f, graph)
	if err != nil {
		return nil, err
	}
	res, err := c.runQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	iris := make([]string, 0, len(res.Results.Bindings))
	for _, b := range res.Results.Bindings {
		if term, ok := b["instance"]; ok {
			iris = append(iris, term.Value)
		}
	}
	return iris, nil
}

// BeginUnit implements GraphStore.
func (c *Client) BeginUnit(graph string) (*Unit, error) {
	if graph == "" {
		return nil, &TransactionError{Err: fmt.Errorf("unit needs a named graph")}
	}
	u := newUnit(graph)
	c.mu.Lock()
	c.open[u.Handle] = u
	c.mu.Unlock()
	return u, nil
}

// Commit implements GraphStore. The unit becomes a single update request;
// a failure leaves nothing applied and is never retried internally.
func (c *Client) Commit(ctx context.Context, u *Unit) error {
	if err := c.takeOpen(u); err != nil {
		return err
	}

	body := updateText(u)
	if body == "" {
		u.state = unitCommitted
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.updateURL, strings.NewReader(body))
	if err != nil {
		return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: err}
	}
	req.Header.Set("Content-Type", "application/sparql-update")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &TransactionError{
			Handle: u.Handle,
			Graph:  u.Graph,
			Err:    fmt.Errorf("update rejected: %s: %s", resp.Status, strings.TrimSpace(string(msg))),
		}
	}

	u.state = unitCommitted
	return nil
}

// Rollback implements GraphStore. Units are buffered client-side, so
// rollback only discards the buffer and releases the handle.
func (c *Client) Rollback(u *Unit) error {
	if u == nil || u.state != unitOpen {
		return nil
	}
	c.mu.Lock()
	delete(c.open, u.Handle)
	c.mu.Unlock()
	u.state = unitRolledBack
	u.inserts, u.deletes = nil, nil
	return nil
}

// Ping implements GraphStore.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.runQuery(ctx, "ASK { }")
	return err
}

// Close implements GraphStore.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) takeOpen(u *Unit) error {
	if u == nil {
		return &TransactionError{Err: fmt.Errorf("nil unit")}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if u.state != unitOpen {
		return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: fmt.Errorf("unit is not open")}
	}
	if _, ok := c.open[u.Handle]; !ok {
		return &TransactionError{Handle: u.Handle, Graph: u.Graph, Err: fmt.Errorf("unknown unit handle")}
	}
	delete(c.open, u.Handle)
	return nil
}

// runQuery posts a query, retrying transport faults and server errors up
// to the configured bound. Client errors (4xx) are not retried.
func (c *Client) runQuery(ctx context.Context, q string) (*sparqlResults, error) {
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retry.Delay(attempt - 1)
			c.log.Warn("retrying store query",
				"endpoint", c.queryURL,
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr,
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &ConnectionError{Endpoint: c.queryURL, Attempts: attempt, Err: lastErr}
			}
		}

		res, transport, retryable, err := c.queryOnce(ctx, q)
		if err == nil {
			return res, nil
		}
		if !retryable {
			if transport {
				return nil, &ConnectionError{Endpoint: c.queryURL, Attempts: attempt + 1, Err: err}
			}
			return nil, err
		}
		lastErr = err
	}
	return nil, &ConnectionError{Endpoint: c.queryURL, Attempts: c.retry.MaxAttempts, Err: lastErr}
}

func (c *Client) queryOnce(ctx context.Context, q string) (_ *sparqlResults, transport, retryable bool, _ error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL, strings.NewReader(q))
	if err != nil {
		return nil, true, false, err
	}
	req.Header.Set("Content-Type", "application/sparql-query")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, true, true, fmt.Errorf("query failed: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, false, fmt.Errorf("query rejected: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var res sparqlResults
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, false, false, fmt.Errorf("decode query results: %w", err)
	}
	return &res, false, false, nil
}

// sparqlResults is the SPARQL 1.1 JSON results format.
type sparqlResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Boolean *bool `json:"boolean,omitempty"`
	Results struct {
		Bindings []map[string]jsonTerm `json:"bindings"`
	} `json:"results"`
}

type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
}

func (t jsonTerm) term() Term {
	switch t.Type {
	case "uri":
		return IRI(t.Value)
	case "bnode":
		return Blank(t.Value)
	default: // literal, typed-literal
		return Term{Kind: TermLiteral, Value: t.Value, Datatype: t.Datatype}
	}
}

// patternQuery renders a pattern as SELECT ?s ?p ?o with fixed positions
// substituted.
func patternQuery(p Pattern) (string, error) {
	s, pr, o, err := patternTerms(p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"SELECT ?s ?p ?o WHERE {\n  GRAPH <%s> {\n    %s %s %s .\n  }\n}\nORDER BY ?s ?p ?o",
		p.Graph, s, pr, o,
	), nil
}

func patternAsk(p Pattern) (string, error) {
	s, pr, o, err := patternTerms(p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ASK {\n  GRAPH <%s> {\n    %s %s %s .\n  }\n}", p.Graph, s, pr, o), nil
}

func patternTerms(p Pattern) (s, pr, o string, err error) {
	if p.Graph == "" {
		return "", "", "", fmt.Errorf("pattern needs a graph")
	}
	s, pr, o = "?s", "?p", "?o"
	if p.Subject != nil {
		s = renderTerm(*p.Subject)
	}
	if p.Predicate != nil {
		pr = renderTerm(*p.Predicate)
	}
	if p.Object != nil {
		o = renderTerm(*p.Object)
	}
	return s, pr, o, nil
}

// bindingTriple reassembles one result row into a triple, filling fixed
// positions from the pattern.
func bindingTriple(p Pattern, b map[string]jsonTerm) (Triple, error) {
	pos := func(fixed *Term, v string) (Term, error) {
		if fixed != nil {
			return *fixed, nil
		}
		t, ok := b[v]
		if !ok {
			return Term{}, fmt.Errorf("result row is missing ?%s", v)
		}
		return t.term(), nil
	}

	var t Triple
	var err error
	if t.Subject, err = pos(p.Subject, "s"); err != nil {
		return t, err
	}
	if t.Predicate, err = pos(p.Predicate, "p"); err != nil {
		return t, err
	}
	if t.Object, err = pos(p.Object, "o"); err != nil {
		return t, err
	}
	return t, nil
}

// updateText renders a unit as one SPARQL update request. Empty units
// produce an empty string.
func updateText(u *Unit) string {
	var parts []string
	if u.replace {
		parts = append(parts, fmt.Sprintf("DROP SILENT GRAPH <%s>", u.Graph))
	}
	if len(u.deletes) > 0 {
		parts = append(parts, fmt.Sprintf("DELETE DATA {\n  GRAPH <%s> {\n%s  }\n}", u.Graph, tripleBlock(u.deletes)))
	}
	if len(u.inserts) > 0 {
		parts = append(parts, fmt.Sprintf("INSERT DATA {\n  GRAPH <%s> {\n%s  }\n}", u.Graph, tripleBlock(u.inserts)))
	}
	return strings.Join(parts, " ;\n")
}

func tripleBlock(ts []Triple) string {
	var b strings.Builder
	for _, t := range ts {
		fmt.Fprintf(&b, "    %s %s %s .\n",
			renderTerm(t.Subject), renderTerm(t.Predicate), renderTerm(t.Object))
	}
	return b.String()
}

// renderTerm renders a term in SPARQL syntax.
func renderTerm(t Term) string {
	switch t.Kind {
	case TermIRI:
		return "<" + t.Value + ">"
	case TermBlank:
		return "_:" + t.Value
	default:
		lit := quoteLiteral(t.Value)
		if t.Datatype != "" {
			return lit + "^^<" + t.Datatype + ">"
		}
		return lit
	}
}

func quoteLiteral(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return `"` + r.Replace(s) + `"`
}
