package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-events-gateway/internal/models"
	"github.com/noah-isme/school-events-gateway/pkg/config"
	appErrors "github.com/noah-isme/school-events-gateway/pkg/errors"
	"github.com/noah-isme/school-events-gateway/pkg/middleware/requestid"
)

const (
	eventsPath   = "/api/events"
	studentsPath = "/api/students"
	registerPath = "/register_event/%d"

	// maxErrorBody bounds how much of a failed registration response is read for its message.
	maxErrorBody = 64 << 10
)

// Operation names used for logs and metrics.
const (
	OpFetchEvents   = "fetch_events"
	OpFetchStudents = "fetch_students"
	OpRegister      = "register_event"
)

type upstreamObserver interface {
	ObserveUpstream(operation string, err error, duration time.Duration)
}

// Params groups constructor dependencies.
type Params struct {
	Config     config.UpstreamConfig
	HTTPClient *http.Client
	Validator  *validator.Validate
	Logger     *zap.Logger
	Metrics    upstreamObserver
}

// APIClient talks to the school events backend. It is both the data fetcher for the
// list view-models and the registration client for the event list.
type APIClient struct {
	baseURL   string
	http      *http.Client
	validator *validator.Validate
	logger    *zap.Logger
	metrics   upstreamObserver
}

// New constructs an APIClient. Redirects are never followed: the backend answers
// unauthenticated calls with a redirect to its login page.
func New(p Params) *APIClient {
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: p.Config.Timeout}
	}
	copied := *httpClient
	copied.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if p.Validator == nil {
		p.Validator = validator.New()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &APIClient{
		baseURL:   strings.TrimRight(p.Config.BaseURL, "/"),
		http:      &copied,
		validator: p.Validator,
		logger:    p.Logger,
		metrics:   p.Metrics,
	}
}

// FetchEvents loads the current and previous events visible to the session on ctx.
func (c *APIClient) FetchEvents(ctx context.Context) (models.EventCollections, error) {
	var payload models.EventCollections
	if err := c.getJSON(ctx, OpFetchEvents, eventsPath, &payload); err != nil {
		return models.EventCollections{}, err
	}
	if err := c.validator.Struct(payload); err != nil {
		return models.EventCollections{}, c.fetchFailure(OpFetchEvents, fmt.Errorf("validate events: %w", err))
	}
	if payload.Current == nil {
		payload.Current = []models.Event{}
	}
	if payload.Previous == nil {
		payload.Previous = []models.Event{}
	}
	return payload, nil
}

// FetchStudents loads the student roster.
func (c *APIClient) FetchStudents(ctx context.Context) ([]models.Student, error) {
	var payload []models.Student
	if err := c.getJSON(ctx, OpFetchStudents, studentsPath, &payload); err != nil {
		return nil, err
	}
	for i := range payload {
		if err := c.validator.Struct(payload[i]); err != nil {
			return nil, c.fetchFailure(OpFetchStudents, fmt.Errorf("validate student %d: %w", i, err))
		}
	}
	if payload == nil {
		payload = []models.Student{}
	}
	return payload, nil
}

// Register posts a registration for eventID. Failures carry the server supplied
// message when there is one.
func (c *APIClient) Register(ctx context.Context, eventID int64) error {
	start := time.Now()
	err := c.register(ctx, eventID)
	c.observe(OpRegister, err, time.Since(start))
	if err != nil {
		c.logger.Warn("event registration failed",
			zap.Int64("event_id", eventID),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Error(err))
	}
	return err
}

func (c *APIClient) register(ctx context.Context, eventID int64) error {
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf(registerPath, eventID))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrRegistrationFailure.Code, appErrors.ErrRegistrationFailure.Status, appErrors.ErrRegistrationFailure.Message)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrRegistrationFailure.Code, appErrors.ErrRegistrationFailure.Status, appErrors.ErrRegistrationFailure.Message)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	status := appErrors.ErrRegistrationFailure.Status
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		status = resp.StatusCode
	}
	message := appErrors.ErrRegistrationFailure.Message
	if serverMessage := readMessage(resp.Body); serverMessage != "" {
		message = serverMessage
	}
	return appErrors.Wrap(fmt.Errorf("upstream status %d", resp.StatusCode), appErrors.ErrRegistrationFailure.Code, status, message)
}

func (c *APIClient) getJSON(ctx context.Context, op, path string, dest interface{}) error {
	start := time.Now()
	err := c.doGet(ctx, path, dest)
	c.observe(op, err, time.Since(start))
	if err != nil {
		return c.fetchFailure(op, err)
	}
	return nil
}

func (c *APIClient) doGet(ctx context.Context, path string, dest interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *APIClient) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if cookie := SessionFromContext(ctx); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.Header(), reqID)
	}
	return req, nil
}

func (c *APIClient) fetchFailure(op string, err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrFetchFailure.Code, appErrors.ErrFetchFailure.Status, fmt.Sprintf("%s: %s", appErrors.ErrFetchFailure.Message, op))
}

func (c *APIClient) observe(op string, err error, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveUpstream(op, err, d)
	}
}

func readMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Message)
}
