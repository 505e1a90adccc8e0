package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/triage-ai/netwarden/internal/alert"
	"go.uber.org/zap"
)

func TestParseResponseText_EmbeddedJSON(t *testing.T) {
	text := `Sure! Here you go: {"recommendation":"ALLOW","confidence":0.9,"summary":"ok","details":"d","risks":[]}`

	got := ParseResponseText("id-1", text)
	if got.Recommendation != alert.RecommendationAllow {
		t.Errorf("recommendation = %v, want allow", got.Recommendation)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got.Confidence)
	}
	if got.Summary != "ok" || got.Details != "d" {
		t.Errorf("summary/details = %q/%q", got.Summary, got.Details)
	}
	if len(got.Risks) != 0 {
		t.Errorf("risks = %v, want empty", got.Risks)
	}
}

func TestParseResponseText_NoJSONFallsBack(t *testing.T) {
	text := "I cannot analyze this connection right now."

	got := ParseResponseText("id-1", text)
	if got.Summary != FallbackSummary {
		t.Errorf("summary = %q, want fallback placeholder", got.Summary)
	}
	if got.Details != text {
		t.Errorf("details = %q, want full raw text", got.Details)
	}
	if got.Recommendation != alert.RecommendationUnknown {
		t.Errorf("recommendation = %v, want unknown", got.Recommendation)
	}
}

func TestParseResponseText_MalformedSpanFallsBack(t *testing.T) {
	text := `Answer: {"recommendation": "ALLOW", truncated...}`

	got := ParseResponseText("id-1", text)
	if got.Summary != FallbackSummary || got.Details != text {
		t.Errorf("got %+v, want raw-text fallback", got)
	}
}

func TestParseResponseText_FieldDefaults(t *testing.T) {
	got := ParseResponseText("id-1", `{"summary":"minimal"}`)
	if got.Recommendation != alert.RecommendationUnknown {
		t.Errorf("recommendation = %v, want unknown default", got.Recommendation)
	}
	if got.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5 default on partial parse", got.Confidence)
	}
	if got.Summary != "minimal" {
		t.Errorf("summary = %q", got.Summary)
	}
}

func TestParseResponseText_ConfidenceClamped(t *testing.T) {
	got := ParseResponseText("id-1", `{"recommendation":"BLOCK","confidence":3.5}`)
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1", got.Confidence)
	}
	if got.Recommendation != alert.RecommendationBlock {
		t.Errorf("recommendation = %v, want block", got.Recommendation)
	}
}

func TestParseResponseText_CaseInsensitiveRecommendation(t *testing.T) {
	got := ParseResponseText("id-1", `{"recommendation":"caution","confidence":0.4}`)
	if got.Recommendation != alert.RecommendationCaution {
		t.Errorf("recommendation = %v, want caution", got.Recommendation)
	}
}

func newTestAlert() alert.ConnectionAlert {
	a := alert.New()
	a.ProcessName = "curl"
	a.IPAddress = "93.184.216.34"
	a.Port = "443"
	a.Protocol = "TCP"
	return a
}

const validAnswer = `{"content":[{"text":"{\"recommendation\":\"ALLOW\",\"confidence\":0.8,\"summary\":\"cdn\",\"details\":\"ok\",\"risks\":[]}"}]}`

func TestClassify_FailoverTriesSlotsInOrder(t *testing.T) {
	var tried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-api-key")
		tried = append(tried, key)
		if key != "sk-ant-REDACTED" {
			http.Error(w, `{"error":"overloaded"}`, http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(validAnswer))
	}))
	defer srv.Close()

	store := &fakeSecretStore{secrets: []StoredSecret{
		{Index: 1, Secret: "sk-ant-REDACTED"},
		{Index: 2, Secret: "sk-ant-REDACTED"},
	}}
	pool := NewPool("sk-ant-REDACTED", store, zap.NewNop())
	client := New(Config{Endpoint: srv.URL}, pool, zap.NewNop())

	got := client.Classify(context.Background(), newTestAlert())

	want := []string{
		"sk-ant-REDACTED",
		"sk-ant-REDACTED",
		"sk-ant-REDACTED",
	}
	if len(tried) != len(want) {
		t.Fatalf("tried %d slots, want %d", len(tried), len(want))
	}
	for i := range want {
		if tried[i] != want[i] {
			t.Errorf("attempt %d used %q, want %q", i, tried[i], want[i])
		}
	}
	if got.Recommendation != alert.RecommendationAllow {
		t.Errorf("recommendation = %v, want allow from the last slot", got.Recommendation)
	}
}

func TestClassify_PoolExhaustedProducesTerminalResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	pool := NewPool("sk-ant-REDACTED", nil, zap.NewNop())
	client := New(Config{Endpoint: srv.URL}, pool, zap.NewNop())

	got := client.Classify(context.Background(), newTestAlert())
	if got.Recommendation != alert.RecommendationUnknown {
		t.Errorf("recommendation = %v, want unknown", got.Recommendation)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
	if got.Summary != ExhaustedSummary {
		t.Errorf("summary = %q", got.Summary)
	}
	if got.Details == "" {
		t.Error("details must carry the last error's text")
	}
}

func TestClassify_NoCredentialSynthesizesResult(t *testing.T) {
	pool := NewPool("", nil, zap.NewNop())
	client := New(Config{Endpoint: "http://unused.invalid"}, pool, zap.NewNop())

	got := client.Classify(context.Background(), newTestAlert())
	if got.Summary != NoCredentialSummary {
		t.Errorf("summary = %q", got.Summary)
	}
	if got.Recommendation != alert.RecommendationUnknown {
		t.Errorf("recommendation = %v, want unknown", got.Recommendation)
	}
}

func TestClassify_MalformedEnvelopeAdvancesSlot(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte("not json at all"))
			return
		}
		w.Write([]byte(validAnswer))
	}))
	defer srv.Close()

	store := &fakeSecretStore{secrets: []StoredSecret{
		{Index: 1, Secret: "sk-ant-REDACTED"},
	}}
	pool := NewPool("sk-ant-REDACTED", store, zap.NewNop())
	client := New(Config{Endpoint: srv.URL}, pool, zap.NewNop())

	got := client.Classify(context.Background(), newTestAlert())
	if calls != 2 {
		t.Errorf("calls = %d, want the second slot tried", calls)
	}
	if got.Recommendation != alert.RecommendationAllow {
		t.Errorf("recommendation = %v, want allow", got.Recommendation)
	}
}

func TestClassify_RequestShape(t *testing.T) {
	var gotVersion, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(validAnswer))
	}))
	defer srv.Close()

	pool := NewPool("sk-ant-REDACTED", nil, zap.NewNop())
	client := New(Config{Endpoint: srv.URL}, pool, zap.NewNop())
	client.Classify(context.Background(), newTestAlert())

	if gotVersion == "" {
		t.Error("anthropic-version header missing")
	}
	if gotContentType != "application/json" {
		t.Errorf("content-type = %q", gotContentType)
	}
}
