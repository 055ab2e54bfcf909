package webhook

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Event is a single decoded webhook event. Buildium payloads are not
// consistent across event families, so fields are extracted by priority
// chains rather than a fixed struct.
type Event map[string]any

// NormalizedEvent is the stable identity extracted from a raw event. The
// triple (WebhookID, EventName, CreatedAt) is the dedup key.
type NormalizedEvent struct {
	WebhookID string
	EventName string
	CreatedAt time.Time
	EntityID  string
}

// NormalizeResult reports either a normalized identity or the list of
// extraction failures.
type NormalizeResult struct {
	OK         bool
	Errors     []string
	Normalized NormalizedEvent
}

// ExplodePayload unwraps the envelope shapes Buildium delivers: an Events
// array, a single Event object, or a bare event at the top level. Returns
// false when the body matches none of them.
func ExplodePayload(body any) ([]Event, bool) {
	raw, ok := body.(map[string]any)
	if !ok || raw == nil {
		return nil, false
	}

	if list, ok := raw["Events"].([]any); ok {
		events := make([]Event, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				events = append(events, Event(m))
			}
		}
		return events, true
	}

	if single, ok := raw["Event"].(map[string]any); ok {
		return []Event{Event(single)}, true
	}

	_, hasEventType := raw["EventType"].(string)
	_, hasEventName := raw["EventName"].(string)
	looksLikeSingleEvent := hasEventType || hasEventName ||
		raw["Id"] != nil || raw["EventId"] != nil || raw["TransactionId"] != nil ||
		raw["LeaseId"] != nil || raw["EntityId"] != nil
	if looksLikeSingleEvent {
		return []Event{Event(raw)}, true
	}

	return nil, false
}

// Normalize extracts the event identity. All four fields must resolve;
// otherwise every individual failure is reported so the dead-letter row
// carries the full diagnosis.
func Normalize(event Event) NormalizeResult {
	var errs []string

	eventName := extractEventName(event)
	if eventName == "" {
		errs = append(errs, "missing EventType/EventName")
	}

	createdAt, tsOK := extractTimestamp(event)
	if !tsOK {
		errs = append(errs, "missing or invalid EventDate/EventDateTime")
	}

	primaryID := extractPrimaryID(event)
	if primaryID == "" {
		errs = append(errs, "missing Id/EventId/TransactionId")
	}

	entityID := extractEntityID(event, primaryID)
	if entityID == "" {
		errs = append(errs, "missing entity identifier")
	}

	if len(errs) > 0 {
		return NormalizeResult{OK: false, Errors: errs}
	}

	return NormalizeResult{
		OK: true,
		Normalized: NormalizedEvent{
			WebhookID: primaryID,
			EventName: eventName,
			CreatedAt: createdAt,
			EntityID:  entityID,
		},
	}
}

// RawEventName is the label used for dead-letter rows when normalization
// itself failed: the best-effort name straight from the payload.
func RawEventName(event Event) string {
	for _, key := range []string{"EventType", "EventName", "eventType", "type"} {
		if s, ok := event[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return "invalid"
}

func extractEventName(event Event) string {
	candidates := []any{
		event["EventType"], event["EventName"], event["eventType"], event["type"],
		dataField(event, "EventType"), dataField(event, "EventName"),
	}
	for _, c := range candidates {
		if s, ok := c.(string); ok && strings.TrimSpace(s) != "" {
			return CanonicalEventName(s)
		}
	}
	return ""
}

var primaryIDKeys = []string{
	"Id", "EventId", "eventId", "TransactionId", "LeaseId", "BillId", "PaymentId",
}

var primaryIDFallbackKeys = []string{
	"PropertyId", "UnitId", "GLAccountId", "TaskId", "TaskCategoryId", "VendorId",
	"VendorCategoryId", "WorkOrderId", "RentalOwnerId", "BankAccountId", "AccountId",
	"EntityId",
}

var primaryIDDataKeys = []string{
	"TransactionId", "BillId", "", "PropertyId", "UnitId", "GLAccountId", "TaskId",
	"TaskCategoryId", "VendorId", "VendorCategoryId", "WorkOrderId", "RentalOwnerId",
	"BankAccountId", "AccountId", "Id",
}

func extractPrimaryID(event Event) string {
	for _, key := range primaryIDKeys {
		if id := idString(event[key]); id != "" {
			return id
		}
	}
	if id := firstBillID(event["BillIds"]); id != "" {
		return id
	}
	for _, key := range primaryIDFallbackKeys {
		if id := idString(event[key]); id != "" {
			return id
		}
	}
	for _, key := range primaryIDDataKeys {
		if key == "" {
			if id := firstBillID(dataField(event, "BillIds")); id != "" {
				return id
			}
			continue
		}
		if id := idString(dataField(event, key)); id != "" {
			return id
		}
	}
	return ""
}

var entityIDKeys = []string{
	"EntityId", "LeaseId", "TransactionId", "PropertyId", "UnitId", "BillId",
	"WorkOrderId", "TaskId", "VendorId",
}

func extractEntityID(event Event, primaryID string) string {
	for _, key := range entityIDKeys {
		if id := idString(event[key]); id != "" {
			return id
		}
	}
	for _, key := range []string{"TransactionId", "EntityId"} {
		if id := idString(dataField(event, key)); id != "" {
			return id
		}
	}
	return primaryID
}

var timestampKeys = []string{
	"EventDate", "EventDateTime", "eventDateTime", "EventTimestamp", "Timestamp",
}

func extractTimestamp(event Event) (time.Time, bool) {
	for _, key := range timestampKeys {
		if ts, ok := parseTimestamp(event[key]); ok {
			return ts, true
		}
	}
	for _, key := range []string{"EventDate", "EventDateTime"} {
		if ts, ok := parseTimestamp(dataField(event, key)); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// epochMillisThreshold splits epoch seconds from epoch milliseconds:
// numeric values below it are treated as seconds.
const epochMillisThreshold = 1_000_000_000_000

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(value any) (time.Time, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, false
		}
		ms := v
		if v < epochMillisThreshold {
			ms = v * 1000
		}
		return time.UnixMilli(int64(ms)).UTC(), true
	case int64:
		return parseTimestamp(float64(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func dataField(event Event, key string) any {
	data, ok := event["Data"].(map[string]any)
	if !ok {
		return nil
	}
	return data[key]
}

// idString renders string and numeric ids uniformly. JSON numbers decode
// as float64; integral values must not pick up an exponent or fraction.
func idString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func firstBillID(value any) string {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	return idString(list[0])
}
