package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rentfolio/propsync/pkg/logging"
)

// Header aliases Buildium has used across integration generations. The
// first non-empty value wins. Exported so edge proxies forward the same
// set the verifier accepts.
var (
	SignatureHeaders = []string{
		"x-buildium-signature",
		"buildium-webhook-signature",
		"x-buildium-webhook-signature",
	}
	TimestampHeaders = []string{
		"buildium-webhook-timestamp",
		"x-buildium-timestamp",
		"x-buildium-webhook-timestamp",
	}
)

// RejectReason identifies why a request failed verification.
type RejectReason string

const (
	ReasonMissingSecret        RejectReason = "missing-secret"
	ReasonMissingSignature     RejectReason = "missing-signature"
	ReasonMissingTimestamp     RejectReason = "missing-timestamp"
	ReasonInvalidTimestamp     RejectReason = "invalid-timestamp"
	ReasonTimestampOutOfWindow RejectReason = "timestamp-out-of-window"
	ReasonInvalidSignature     RejectReason = "invalid-signature"
	ReasonReplayedSignature    RejectReason = "replayed-signature"
	ReasonHMACError            RejectReason = "hmac-error"
)

// VerifyResult is the outcome of signature verification.
type VerifyResult struct {
	OK bool
	// Reason is set when OK is false.
	Reason RejectReason
	// Skipped is true when no secret is configured and the request was
	// accepted without verification.
	Skipped bool
	// Signature is the normalized signature, recorded with the event.
	Signature string
}

// ReplayCache remembers recently accepted signatures. MarkSeen records the
// (timestamp, signature) pair and reports whether it was already present.
type ReplayCache interface {
	MarkSeen(ctx context.Context, timestamp, signature string, ttl time.Duration) (bool, error)
}

// MemoryReplayCache is a per-process ReplayCache. Stale entries are pruned
// opportunistically on each insert.
type MemoryReplayCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryReplayCache() *MemoryReplayCache {
	return &MemoryReplayCache{seen: make(map[string]time.Time), now: time.Now}
}

func (c *MemoryReplayCache) MarkSeen(_ context.Context, timestamp, signature string, ttl time.Duration) (bool, error) {
	key := timestamp + "." + signature
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, at := range c.seen {
		if now.Sub(at) > ttl {
			delete(c.seen, k)
		}
	}
	if _, ok := c.seen[key]; ok {
		return true, nil
	}
	c.seen[key] = now
	return false, nil
}

// SignatureVerifier authenticates inbound webhook requests with
// HMAC-SHA256 over "{timestamp}.{rawBody}".
type SignatureVerifier struct {
	secret          string
	requireSecret   bool
	timestampWindow time.Duration
	replay          ReplayCache
	now             func() time.Time
	logger          *logging.Logger
}

// NewSignatureVerifier builds a verifier. An empty secret disables
// verification unless requireSecret is set. A nil replay cache falls back
// to an in-process one.
func NewSignatureVerifier(secret string, requireSecret bool, window time.Duration, replay ReplayCache, logger *logging.Logger) *SignatureVerifier {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if replay == nil {
		replay = NewMemoryReplayCache()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SignatureVerifier{
		secret:          secret,
		requireSecret:   requireSecret,
		timestampWindow: window,
		replay:          replay,
		now:             time.Now,
		logger:          logger,
	}
}

func firstHeader(h http.Header, names []string) string {
	for _, name := range names {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// Verify checks the request signature against the raw body.
func (v *SignatureVerifier) Verify(ctx context.Context, header http.Header, body []byte) VerifyResult {
	signature := firstHeader(header, SignatureHeaders)

	if v.secret == "" {
		if v.requireSecret {
			return VerifyResult{Reason: ReasonMissingSecret}
		}
		v.logger.Warn("webhook signature verification disabled: no secret configured")
		return VerifyResult{OK: true, Skipped: true, Signature: normalizeSignature(signature)}
	}

	if signature == "" {
		return VerifyResult{Reason: ReasonMissingSignature}
	}

	timestamp := firstHeader(header, TimestampHeaders)
	if timestamp == "" {
		return VerifyResult{Reason: ReasonMissingTimestamp}
	}
	ts, err := parseSignatureTimestamp(timestamp)
	if err != nil {
		return VerifyResult{Reason: ReasonInvalidTimestamp}
	}

	now := v.now()
	if drift := now.Sub(ts); drift > v.timestampWindow || drift < -v.timestampWindow {
		return VerifyResult{Reason: ReasonTimestampOutOfWindow}
	}

	normalized := normalizeSignature(signature)
	if !decodable(normalized) {
		return VerifyResult{Reason: ReasonHMACError}
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, body)
	if !v.matchesSecret(signedPayload, normalized, v.secret) && !v.matchesDecodedSecret(signedPayload, normalized) {
		return VerifyResult{Reason: ReasonInvalidSignature}
	}

	replayed, err := v.replay.MarkSeen(ctx, timestamp, normalized, 2*v.timestampWindow)
	if err != nil {
		// Replay protection is best effort: a cache outage must not take
		// down ingestion.
		v.logger.Warn("replay cache unavailable, accepting signature", "error", err)
		return VerifyResult{OK: true, Signature: normalized}
	}
	if replayed {
		return VerifyResult{Reason: ReasonReplayedSignature}
	}

	return VerifyResult{OK: true, Signature: normalized}
}

func (v *SignatureVerifier) matchesSecret(signedPayload, provided, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	digest := mac.Sum(nil)

	expectedHex := hex.EncodeToString(digest)
	expectedB64 := base64.StdEncoding.EncodeToString(digest)

	return hmac.Equal([]byte(provided), []byte(expectedHex)) ||
		hmac.Equal([]byte(provided), []byte(expectedB64))
}

// Some tenants store the shared secret base64 encoded; retry with the
// decoded bytes before rejecting.
func (v *SignatureVerifier) matchesDecodedSecret(signedPayload, provided string) bool {
	decoded, err := base64.StdEncoding.DecodeString(v.secret)
	if err != nil {
		return false
	}
	return v.matchesSecret(signedPayload, provided, string(decoded))
}

// normalizeSignature strips scheme prefixes and lowercases hex digests so
// equivalent spellings compare and replay-key alike.
func normalizeSignature(signature string) string {
	s := strings.TrimSpace(signature)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"sha256=", "sha1="} {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	if isHex(s) {
		return strings.ToLower(s)
	}
	return s
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	_, err := hex.DecodeString(strings.ToLower(s))
	return err == nil
}

func decodable(s string) bool {
	if s == "" {
		return false
	}
	if isHex(s) {
		return true
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

func parseSignatureTimestamp(value string) (time.Time, error) {
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs >= epochMillisThreshold {
			return time.UnixMilli(secs).UTC(), nil
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("webhook: unparseable timestamp %q", value)
}
