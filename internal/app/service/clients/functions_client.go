package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethgrid/pester"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/instafly/instafly/internal/app/config"
	"github.com/instafly/instafly/internal/app/logger"
	"github.com/instafly/instafly/internal/app/metrics"
)

// Names of the hosted functions this service invokes.
const (
	FnProcessOrder        = "process-order"
	FnCreatePayment       = "create-payment"
	FnSyncOrderStatus     = "sync-order-status"
	FnSendWhatsApp        = "send-whatsapp"
	FnGetInstagramProfile = "get-instagram-profile"
	FnInvokeLLM           = "invoke-llm"
	FnSendEmail           = "send-email"
	FnSendPush            = "send-push-notification"
)

type (
	FunctionsClient interface {
		Invoke(ctx context.Context, name string, body any) (*InvokeResult, error)
	}

	// InvokeResult is the normalized outcome of one function call.
	InvokeResult struct {
		StatusCode int
		Data       json.RawMessage
	}

	FunctionsClientImpl struct {
		baseURL      string
		anonKey      string
		pesterClient *pester.Client
		rateLimiter  ratelimit.Limiter
		invocations  *prometheus.CounterVec
	}

	LoggingRoundTripper struct {
		Proxied http.RoundTripper
	}

	functionError struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
)

func NewFunctionsClient(c config.AppConfig, orderMetrics *metrics.OrderMetrics) *FunctionsClientImpl {
	ratePerSecond := c.FunctionsMaxRequestsPerMinute / 60
	if ratePerSecond < 1 {
		ratePerSecond = 1
	}

	rateLimiter := ratelimit.New(ratePerSecond)
	pesterClient := pester.New()

	pesterClient.Concurrency = 1 // Since we are rate-limiting, concurrency should be 1
	pesterClient.MaxRetries = 2
	pesterClient.Backoff = pester.ExponentialBackoff
	pesterClient.KeepLog = true
	pesterClient.Timeout = time.Duration(c.FunctionsRequestTimeoutSec) * time.Second
	pesterClient.RetryOnHTTP429 = true
	pesterClient.Transport = &LoggingRoundTripper{Proxied: http.DefaultTransport}

	return &FunctionsClientImpl{
		baseURL:      c.FunctionsBaseURL,
		anonKey:      c.FunctionsAnonKey,
		pesterClient: pesterClient,
		rateLimiter:  rateLimiter,
		invocations:  orderMetrics.FunctionInvocationsTotal,
	}
}

func (fc *FunctionsClientImpl) Invoke(ctx context.Context, name string, body any) (*InvokeResult, error) {
	res, err := fc.invoke(ctx, name, body)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	fc.invocations.WithLabelValues(name, outcome).Inc()
	return res, err
}

func (fc *FunctionsClientImpl) invoke(ctx context.Context, name string, body any) (*InvokeResult, error) {
	// Wait for the next available opportunity to send a request
	fc.rateLimiter.Take()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fc.baseURL+"/functions/v1/"+name, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+fc.anonKey)

	resp, err := fc.pesterClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", name, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fnErr := functionError{}
		if err := json.Unmarshal(respBody, &fnErr); err == nil && fnErr.Error != "" {
			return nil, fmt.Errorf("function %s failed (%d): %s", name, resp.StatusCode, fnErr.Error)
		}
		return nil, fmt.Errorf("function %s failed with status %d", name, resp.StatusCode)
	}

	return &InvokeResult{StatusCode: resp.StatusCode, Data: respBody}, nil
}

func (fc *LoggingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	logRequest(r)
	response, err := fc.Proxied.RoundTrip(r)
	if err != nil {
		logger.Log.Error("function request error", zap.Error(err))
		return nil, err
	}
	logResponse(response)
	return response, nil
}

func logResponse(response *http.Response) {
	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		logger.Log.Error("function response error", zap.Error(err))
		return
	}
	response.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	body := string(bodyBytes)
	if len(body) == 0 {
		body = "empty body"
	}

	logger.Log.Info("FUNCTION RESPONSE:",
		zap.Int("Status", response.StatusCode),
		zap.Int64("Content-Length", response.ContentLength),
		zap.String("Body", body),
	)
}

func logRequest(r *http.Request) {
	bodyMsg, err := getRequestBodyForLogging(r)
	if err != nil {
		logger.Log.Error("function log request error", zap.Error(err))
		return
	}
	logger.Log.Info("FUNCTION REQUEST:",
		zap.String("Method", r.Method),
		zap.String("Path", r.URL.String()),
		zap.String("Body", bodyMsg),
	)
}

func getRequestBodyForLogging(r *http.Request) (string, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return "empty body", nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("error reading request body: %w", err)
	}
	defer r.Body.Close()
	r.Body = io.NopCloser(bytes.NewBuffer(body))
	return string(body), nil
}
