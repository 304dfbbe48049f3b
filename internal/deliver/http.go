package deliver

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/skimmer/pkg/config"
	"github.com/ajitpratap0/skimmer/pkg/models"
	"github.com/ajitpratap0/skimmer/pkg/skimerrors"
)

// bodyPreviewLimit caps how much of a sink response body is kept for
// diagnostics.
const bodyPreviewLimit = 500

// HTTPSender posts record batches to the sink endpoint as JSON.
type HTTPSender struct {
	cfg    config.SinkConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPSender builds a sender with a tuned transport. verify_ssl=false
// disables certificate verification, matching self-signed sink setups.
func NewHTTPSender(cfg config.SinkConfig, logger *zap.Logger) *HTTPSender {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout(),
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifySSL,
			MinVersion:         tls.VersionTLS12,
		},
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warn("failed to configure HTTP/2", zap.Error(err))
	}

	return &HTTPSender{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout(),
		},
		logger: logger.With(zap.String("component", "sender")),
	}
}

// Send posts records to the sink. An empty batch succeeds without a
// request. Any outcome other than HTTP 2xx is a failure; the caller
// decides whether to queue the batch.
func (s *HTTPSender) Send(ctx context.Context, records []models.Record) Result {
	if len(records) == 0 {
		return Result{OK: true}
	}

	body, err := json.Marshal(records)
	if err != nil {
		return Result{Err: skimerrors.Wrap(err, skimerrors.ErrorTypeData, "failed to encode batch")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return Result{Err: skimerrors.Wrap(err, skimerrors.ErrorTypeDelivery, "failed to build sink request")}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{Err: skimerrors.Wrap(err, skimerrors.ErrorTypeDelivery, "sink request failed")}
	}
	defer resp.Body.Close()

	preview := readPreview(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("sink rejected batch",
			zap.Int("status", resp.StatusCode),
			zap.Int("records", len(records)),
			zap.String("body", preview))
		return Result{
			Status:      resp.StatusCode,
			BodyPreview: preview,
			Err: skimerrors.Newf(skimerrors.ErrorTypeDelivery, "sink returned status %d", resp.StatusCode).
				WithDetail("body", preview),
		}
	}

	return Result{OK: true, Status: resp.StatusCode, BodyPreview: preview}
}

func readPreview(r io.Reader) string {
	buf, err := io.ReadAll(io.LimitReader(r, bodyPreviewLimit))
	if err != nil {
		return ""
	}
	return string(buf)
}
