// Package verification checks clearance and tax reference numbers against the permit office's
// records. Every failure is reported as an unsuccessful domain.VerificationResult; callers never
// receive an error from VerifyID.
package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"permitflow/internal/config"
	"permitflow/internal/domain"
	"permitflow/internal/logger"
	"permitflow/internal/metrics"
)

const (
	msgEmptyID     = "Please enter an ID."
	msgUnreachable = "Unable to reach the verification service. Please check your connection and try again."
	maxBodyBytes   = 4 << 20
)

// checker describes one remote status check.
type checker struct {
	kind     domain.VerifyKind
	label    string
	endpoint string
	// queryParam scopes the request server-side. When empty the whole record set is fetched and
	// filtered by applicant_id/permit_id here.
	queryParam string
	status     string
	foldStatus bool
	crossRef   string
}

func (c *checker) serverScoped() bool { return c.queryParam != "" }

func (c *checker) statusMatches(s string) bool {
	if c.foldStatus {
		return strings.EqualFold(strings.TrimSpace(s), c.status)
	}
	return strings.TrimSpace(s) == c.status
}

// Client performs verification requests. It is safe for concurrent use and shared by all sessions;
// per-session state lives in a Cache.
type Client struct {
	checkers     map[domain.VerifyKind]*checker
	applicantURL string
	http         *http.Client
	group        singleflight.Group
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewClient creates a Client for the configured endpoints.
func NewClient(endpoints config.EndpointsConfig, cfg config.VerificationConfig, m *metrics.Metrics, log *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		checkers: map[domain.VerifyKind]*checker{
			domain.VerifyKindClearance: {
				kind:     domain.VerifyKindClearance,
				label:    "Barangay clearance",
				endpoint: endpoints.ClearanceVerify,
				status:   "approved",
				crossRef: "applicant_id",
			},
			domain.VerifyKindTax: {
				kind:       domain.VerifyKindTax,
				label:      "Business tax",
				endpoint:   endpoints.TaxVerify,
				queryParam: "business_id",
				status:     "paid",
				foldStatus: true,
				crossRef:   "business_id",
			},
		},
		applicantURL: endpoints.ApplicantLookup,
		http:         &http.Client{Timeout: timeout},
		metrics:      m,
		logger:       logger.OrNop(log),
	}
}

// ForSession binds the client to a session cache.
func (c *Client) ForSession(cache *Cache) *SessionVerifier {
	return &SessionVerifier{client: c, cache: cache}
}

// SessionVerifier verifies ids on behalf of one wizard session. It implements port.IDVerifier.
type SessionVerifier struct {
	client *Client
	cache  *Cache
}

// VerifyID checks id against the records for kind.
func (s *SessionVerifier) VerifyID(ctx context.Context, kind domain.VerifyKind, id string) domain.VerificationResult {
	return s.client.Verify(ctx, s.cache, kind, id)
}

// Verify checks id against the records for kind, consulting and filling cache.
// A cached id resolves without a network call.
func (c *Client) Verify(ctx context.Context, cache *Cache, kind domain.VerifyKind, id string) domain.VerificationResult {
	id = strings.TrimSpace(id)
	if id == "" {
		c.metrics.IncVerification(string(kind), "empty")
		return domain.VerificationResult{Message: msgEmptyID}
	}

	chk, ok := c.checkers[kind]
	if !ok {
		return domain.VerificationResult{Message: fmt.Sprintf("Unknown verification type %q.", kind)}
	}

	if cache != nil {
		if rec, hit := cache.Get(kind, id); hit {
			c.metrics.IncVerification(string(kind), "cached")
			return domain.VerificationResult{
				Success:    true,
				Message:    successMessage(chk, id),
				Record:     rec,
				CrossRefID: stringField(rec, chk.crossRef),
				Cached:     true,
			}
		}
	}

	records, serverMsg, err := c.fetchShared(ctx, chk, id)
	if err != nil {
		c.logger.Warn("verification.Client.Verify: request failed",
			zap.Error(&domain.VerificationError{Kind: kind, ID: id, Err: err}))
		c.metrics.IncVerification(string(kind), "error")
		return domain.VerificationResult{Message: msgUnreachable}
	}

	rec, found := match(chk, records, id)
	switch {
	case rec != nil:
		if cache != nil {
			cache.Put(kind, id, rec)
		}
		c.metrics.IncVerification(string(kind), "verified")
		c.logger.Debug("verification.Client.Verify: verified", zap.String("kind", string(kind)), zap.String("id", id))
		return domain.VerificationResult{
			Success:    true,
			Message:    successMessage(chk, id),
			Record:     rec,
			CrossRefID: stringField(rec, chk.crossRef),
		}
	case found != nil:
		c.metrics.IncVerification(string(kind), "wrong_status")
		return domain.VerificationResult{
			Message: wrongStatusMessage(chk, id, stringField(found, "status")),
			Record:  found,
		}
	default:
		c.metrics.IncVerification(string(kind), "not_found")
		return domain.VerificationResult{Message: notFoundMessage(chk, id, serverMsg)}
	}
}

type fetchResult struct {
	records   []map[string]any
	serverMsg string
}

// fetchShared collapses concurrent requests for the same check into one network call. The shared
// call outlives any single caller's context and is bounded by the client timeout; each caller
// stops waiting when its own context ends.
func (c *Client) fetchShared(ctx context.Context, chk *checker, id string) ([]map[string]any, string, error) {
	key := string(chk.kind)
	if chk.serverScoped() {
		key += ":" + id
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		records, msg, err := c.fetch(shared, chk, id)
		if err != nil {
			return nil, err
		}
		return &fetchResult{records: records, serverMsg: msg}, nil
	})
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, "", r.Err
		}
		res := r.Val.(*fetchResult)
		return res.records, res.serverMsg, nil
	}
}

func (c *Client) fetch(ctx context.Context, chk *checker, id string) ([]map[string]any, string, error) {
	if chk.endpoint == "" {
		return nil, "", fmt.Errorf("no endpoint configured for %s", chk.kind)
	}
	endpoint := chk.endpoint
	if chk.serverScoped() {
		var err error
		endpoint, err = withQuery(endpoint, chk.queryParam, id)
		if err != nil {
			return nil, "", err
		}
	}

	start := time.Now()
	body, err := c.get(ctx, endpoint)
	c.metrics.ObserveVerificationCall(string(chk.kind), time.Since(start))
	if err != nil {
		return nil, "", err
	}
	return normalizeRecords(body)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("verification endpoint error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// match returns the first record for id with the approval status. When no record is approved,
// found is the first record for id so the caller can name its actual status.
func match(chk *checker, records []map[string]any, id string) (approved, found map[string]any) {
	for _, rec := range records {
		if !chk.serverScoped() && stringField(rec, "applicant_id") != id && stringField(rec, "permit_id") != id {
			continue
		}
		if chk.statusMatches(stringField(rec, "status")) {
			return rec, nil
		}
		if found == nil {
			found = rec
		}
	}
	return nil, found
}

func successMessage(chk *checker, id string) string {
	if chk.kind == domain.VerifyKindTax {
		return fmt.Sprintf("Business tax payment for %s is verified as paid.", id)
	}
	return fmt.Sprintf("%s %s is verified and approved.", chk.label, id)
}

func notFoundMessage(chk *checker, id, serverMsg string) string {
	msg := fmt.Sprintf("No %s record was found for %s.", strings.ToLower(chk.label), id)
	if serverMsg != "" {
		msg += " " + serverMsg
	}
	return msg
}

func wrongStatusMessage(chk *checker, id, status string) string {
	if status == "" {
		status = "unknown"
	}
	return fmt.Sprintf("%s record %s was found but its status is %q, not %q.", chk.label, id, status, chk.status)
}

func withQuery(endpoint, key, value string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ErrApplicantNotFound is returned by LookupApplicant when the office has no such applicant.
var ErrApplicantNotFound = errors.New("applicant not found")

// LookupApplicant fetches an applicant's stored details for form prefill. Values are stringified;
// nested objects are skipped.
func (c *Client) LookupApplicant(ctx context.Context, applicantID string) (map[string]string, error) {
	applicantID = strings.TrimSpace(applicantID)
	if applicantID == "" {
		return nil, ErrApplicantNotFound
	}
	if c.applicantURL == "" {
		return nil, fmt.Errorf("no applicant lookup endpoint configured")
	}
	endpoint, err := withQuery(c.applicantURL, "applicant_id", applicantID)
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := decode(body, &env); err != nil {
		return nil, err
	}
	if env.Success != nil && !*env.Success {
		return nil, ErrApplicantNotFound
	}
	if len(env.Data) == 0 || isNull(env.Data) {
		return nil, ErrApplicantNotFound
	}
	var rec map[string]any
	if err := decode(env.Data, &rec); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(rec))
	for k := range rec {
		switch rec[k].(type) {
		case map[string]any, []any:
			continue
		}
		if v := stringField(rec, k); v != "" {
			out[k] = v
		}
	}
	c.logger.Debug("verification.Client.LookupApplicant: found", zap.String("applicant_id", applicantID), zap.Int("fields", len(out)))
	return out, nil
}
