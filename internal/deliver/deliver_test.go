package deliver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/models"
)

var identity = config.IdentityConfig{ClientID: "acme", AgentID: "agent-1"}

func TestBuildRecordsIDMode(t *testing.T) {
	src := &config.Source{
		Name: "events",
		Incremental: config.IncrementalSpec{
			Mode:     config.ModeID,
			IDColumn: "id",
		},
	}
	rows := []models.Row{{"id": int64(42), "name": "alpha"}}

	records := BuildRecords(identity, src, rows)
	require.Len(t, records, 1)
	assert.Equal(t, "acme:agent-1:events:42", records[0].SourceID)
	assert.Equal(t, "acme", records[0].ClientID)
	assert.Equal(t, "agent-1", records[0].AgentID)
	assert.Equal(t, "events", records[0].Source)
	assert.Equal(t, "alpha", records[0].Payload["name"])
}

func TestBuildRecordsTSModeNormalizesTimestamps(t *testing.T) {
	src := &config.Source{
		Name: "audit",
		Incremental: config.IncrementalSpec{
			Mode:       config.ModeTS,
			TSColumn:   "updated_at",
			TieBreaker: "id",
		},
	}
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []models.Row{{"id": int64(7), "updated_at": ts}}

	records := BuildRecords(identity, src, rows)
	require.Len(t, records, 1)
	assert.Equal(t, "acme:agent-1:audit:2024-03-01T12:00:00Z:7", records[0].SourceID)
	assert.Equal(t, "2024-03-01T12:00:00Z", records[0].Payload["updated_at"])
}

func TestHTTPSenderSuccess(t *testing.T) {
	var gotAuth string
	var gotBody []models.Record
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPSender(config.SinkConfig{
		APIURL:    server.URL,
		Token:     "secret",
		VerifySSL: true,
		Timeout:   5,
	}, zap.NewNop())

	records := []models.Record{{SourceID: "a:b:c:1", Source: "events", Payload: models.Row{"id": float64(1)}}}
	res := sender.Send(context.Background(), records)

	assert.True(t, res.OK)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Bearer secret", gotAuth)
	require.Len(t, gotBody, 1)
	assert.Equal(t, "a:b:c:1", gotBody[0].SourceID)
}

func TestHTTPSenderEmptyBatch(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	sender := NewHTTPSender(config.SinkConfig{APIURL: server.URL, Timeout: 5}, zap.NewNop())
	res := sender.Send(context.Background(), nil)

	assert.True(t, res.OK)
	assert.False(t, called)
}

func TestHTTPSenderFailureKeepsPreview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer server.Close()

	sender := NewHTTPSender(config.SinkConfig{APIURL: server.URL, Timeout: 5}, zap.NewNop())
	res := sender.Send(context.Background(), []models.Record{{SourceID: "a"}})

	assert.False(t, res.OK)
	assert.Equal(t, http.StatusBadGateway, res.Status)
	assert.Len(t, res.BodyPreview, 500)
	require.Error(t, res.Err)
}

func TestHTTPSenderConnectionRefused(t *testing.T) {
	sender := NewHTTPSender(config.SinkConfig{APIURL: "http://127.0.0.1:1", Timeout: 1}, zap.NewNop())
	res := sender.Send(context.Background(), []models.Record{{SourceID: "a"}})

	assert.False(t, res.OK)
	assert.Zero(t, res.Status)
	require.Error(t, res.Err)
}

func TestHTTPSenderSkipsVerifyWhenDisabled(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewHTTPSender(config.SinkConfig{APIURL: server.URL, VerifySSL: false, Timeout: 5}, zap.NewNop())
	res := sender.Send(context.Background(), []models.Record{{SourceID: "a"}})
	assert.True(t, res.OK)

	strict := NewHTTPSender(config.SinkConfig{APIURL: server.URL, VerifySSL: true, Timeout: 5}, zap.NewNop())
	res = strict.Send(context.Background(), []models.Record{{SourceID: "a"}})
	assert.False(t, res.OK)
}
