package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"prioritizer/internal/cache"
	"prioritizer/internal/orchestrator"
	"prioritizer/internal/platform/metrics"
	"prioritizer/internal/task"
)

type fakeService struct {
	processErr error
	health     orchestrator.HealthReport
}

func (f *fakeService) Process(_ context.Context, ev task.Event) (task.PriorityResult, error) {
	if f.processErr != nil {
		return task.PriorityResult{}, f.processErr
	}
	return task.PriorityResult{
		RequestID:    ev.ID,
		UrgencyLevel: task.UrgencyHigh,
		ProcessedAt:  time.Now().UTC(),
	}, nil
}

func (f *fakeService) ProcessBatch(ctx context.Context, tasks []task.Event) ([]task.PriorityResult, error) {
	results := make([]task.PriorityResult, len(tasks))
	for i, ev := range tasks {
		res, err := f.Process(ctx, ev)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func (f *fakeService) Health(_ context.Context) orchestrator.HealthReport {
	return f.health
}

type HandlerSuite struct {
	suite.Suite
	svc       *fakeService
	store     *cache.Memory
	router    http.Handler
	published []string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.svc = &fakeService{health: orchestrator.HealthReport{Status: orchestrator.StatusOK}}
	s.store = cache.NewMemory()
	s.published = nil

	publish := func(_ context.Context, subject string, _ []byte) error {
		s.published = append(s.published, subject)
		return nil
	}
	s.router = New(s.svc, s.store, publish, slog.New(slog.DiscardHandler),
		metrics.NewWith(prometheus.NewRegistry()), Config{
		RateLimit:  10,
		RateWindow: time.Minute,
	})
}

func (s *HandlerSuite) request(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func validTask() map[string]any {
	return map[string]any{
		"id":             "t-1",
		"title":          "VPN connection drops",
		"description":    "The VPN disconnects every few minutes",
		"category":       "SUPPORT",
		"requester_role": "EMPLOYEE",
	}
}

func (s *HandlerSuite) TestPrioritizeOK() {
	rec := s.request(http.MethodPost, "/v1/tasks/prioritize", validTask())
	s.Equal(http.StatusOK, rec.Code)

	var res task.PriorityResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.Equal("t-1", res.RequestID)
	s.Equal(task.UrgencyHigh, res.UrgencyLevel)
}

func (s *HandlerSuite) TestPrioritizeValidation() {
	s.Run("missing title", func() {
		body := validTask()
		delete(body, "title")
		rec := s.request(http.MethodPost, "/v1/tasks/prioritize", body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown category", func() {
		body := validTask()
		body["category"] = "GARDENING"
		rec := s.request(http.MethodPost, "/v1/tasks/prioritize", body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown role", func() {
		body := validTask()
		body["requester_role"] = "WIZARD"
		rec := s.request(http.MethodPost, "/v1/tasks/prioritize", body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed body", func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/tasks/prioritize", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestSubmitAsync() {
	rec := s.request(http.MethodPost, "/v1/tasks/", validTask())
	s.Equal(http.StatusAccepted, rec.Code)

	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("accepted", body["status"])
	s.Equal("t-1", body["task_id"])
	s.Equal([]string{"task.analyze"}, s.published)
}

func (s *HandlerSuite) TestSubmitGeneratesID() {
	body := validTask()
	delete(body, "id")
	rec := s.request(http.MethodPost, "/v1/tasks/", body)
	s.Equal(http.StatusAccepted, rec.Code)

	var resp map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.NotEmpty(resp["task_id"])
}

func (s *HandlerSuite) TestGetPriority() {
	s.Run("unknown task is 404", func() {
		rec := s.request(http.MethodGet, "/v1/tasks/missing/priority", nil)
		s.Equal(http.StatusNotFound, rec.Code)
		s.Contains(rec.Body.String(), "not_found")
	})

	s.Run("submitted but unprocessed is 202", func() {
		s.request(http.MethodPost, "/v1/tasks/", validTask())

		rec := s.request(http.MethodGet, "/v1/tasks/t-1/priority", nil)
		s.Equal(http.StatusAccepted, rec.Code)
		s.Contains(rec.Body.String(), "processing")
	})

	s.Run("cached result is 200", func() {
		res := task.PriorityResult{RequestID: "t-9", UrgencyLevel: task.UrgencyLow}
		s.Require().NoError(s.store.SetPriorityResult(context.Background(), "t-9", res, time.Hour))

		rec := s.request(http.MethodGet, "/v1/tasks/t-9/priority", nil)
		s.Equal(http.StatusOK, rec.Code)

		var got task.PriorityResult
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.Equal("t-9", got.RequestID)
	})
}

func (s *HandlerSuite) TestBatch() {
	s.Run("returns results in order", func() {
		t1 := validTask()
		t2 := validTask()
		t2["id"] = "t-2"
		rec := s.request(http.MethodPost, "/v1/tasks/batch", map[string]any{
			"tasks": []any{t1, t2},
		})
		s.Equal(http.StatusOK, rec.Code)

		var resp struct {
			Results []task.PriorityResult `json:"results"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Require().Len(resp.Results, 2)
		s.Equal("t-1", resp.Results[0].RequestID)
		s.Equal("t-2", resp.Results[1].RequestID)
	})

	s.Run("empty batch rejected", func() {
		rec := s.request(http.MethodPost, "/v1/tasks/batch", map[string]any{"tasks": []any{}})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("invalid member rejected", func() {
		bad := validTask()
		bad["category"] = "NOPE"
		rec := s.request(http.MethodPost, "/v1/tasks/batch", map[string]any{"tasks": []any{bad}})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestRateLimit() {
	for i := 0; i < 10; i++ {
		rec := s.request(http.MethodPost, "/v1/tasks/prioritize", validTask())
		s.Require().Equal(http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := s.request(http.MethodPost, "/v1/tasks/prioritize", validTask())
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))
}

func (s *HandlerSuite) TestHealth() {
	s.Run("ok", func() {
		rec := s.request(http.MethodGet, "/healthz", nil)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("critical maps to 503", func() {
		s.svc.health = orchestrator.HealthReport{Status: orchestrator.StatusCritical}
		rec := s.request(http.MethodGet, "/healthz", nil)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})
}

func (s *HandlerSuite) TestInternalError() {
	s.svc.processErr = fmt.Errorf("pipeline exploded")
	rec := s.request(http.MethodPost, "/v1/tasks/prioritize", validTask())
	s.Equal(http.StatusInternalServerError, rec.Code)
}
