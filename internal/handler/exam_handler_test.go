package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/service"
	"github.com/adonhq/assessment-backend/internal/upload"
	"github.com/adonhq/assessment-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type stubSession struct {
	mu sync.Mutex

	err error

	gotPhase   model.Phase
	gotID      string
	gotAnswers map[string]any
	gotFile    *upload.File
	gotBody    []byte

	// timers are handed out by StartPhase then PhaseTimer, in order.
	timers []*service.PhaseTimer
}

func (s *stubSession) ValidateIdentifier(ctx context.Context, id string) (*model.ExaminationRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.ExaminationRecord{ExaminationID: id, Status: model.DefaultExaminationStatus}, nil
}

func (s *stubSession) Progress(ctx context.Context, id string) (*model.ExaminationProgress, error) {
	if s.err != nil {
		return nil, s.err
	}
	next := model.PhaseOne
	return &model.ExaminationProgress{ExaminationID: id, NextPhase: &next}, nil
}

func (s *stubSession) nextTimer() (*service.PhaseTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t := s.timers[0]
	if len(s.timers) > 1 {
		s.timers = s.timers[1:]
	}
	return t, nil
}

func (s *stubSession) StartPhase(ctx context.Context, phase model.Phase, id string) (*service.PhaseTimer, error) {
	return s.nextTimer()
}

func (s *stubSession) PhaseTimer(ctx context.Context, phase model.Phase, id string) (*service.PhaseTimer, error) {
	return s.nextTimer()
}

func (s *stubSession) SubmitAnswers(ctx context.Context, phase model.Phase, id string, raw map[string]any) (*service.ScoredSubmission, error) {
	s.gotPhase, s.gotID, s.gotAnswers = phase, id, raw
	if s.err != nil {
		return nil, s.err
	}
	return &service.ScoredSubmission{ID: uuid.New(), ExaminationID: id, Phase: phase}, nil
}

func (s *stubSession) SubmitUpload(ctx context.Context, phase model.Phase, id string, file *upload.File, body service.Artifact) (*service.StoredArtifact, error) {
	s.gotPhase, s.gotID, s.gotFile = phase, id, file
	if body != nil {
		s.gotBody, _ = io.ReadAll(body)
	}
	if s.err != nil {
		return nil, s.err
	}
	if file == nil {
		return nil, upload.ErrMissingFile
	}
	return &service.StoredArtifact{ID: uuid.New(), ExaminationID: id, Phase: phase, FileURL: "uploads/phase3/x"}, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newExamRouter(s *stubSession, maxUpload int64) *gin.Engine {
	h := NewExamHandler(s, maxUpload, zerolog.Nop())
	r := gin.New()
	r.POST("/exams/validate", h.ValidateExamination)
	r.GET("/exams/:examination_id/progress", h.GetProgress)
	r.POST("/exams/:examination_id/phases/:phase/start", h.StartPhase)
	r.POST("/exams/:examination_id/phases/:phase/answers", h.SubmitAnswers)
	r.POST("/exams/:examination_id/phases/:phase/upload", h.SubmitUpload)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return w, env
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	} else {
		mw.WriteField("note", "no file")
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestValidateExamination(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"ok", `{"examination_id":"EX-100"}`, nil, http.StatusOK, ""},
		{"malformed", `{"examination_id":"EX 100!"}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing", `{}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown", `{"examination_id":"EX-200"}`, service.ErrInvalidExamID, http.StatusNotFound, "INVALID_EXAM_ID"},
		{"store down", `{"examination_id":"EX-100"}`, fmt.Errorf("%w: dial tcp", service.ErrStoreUnavailable), http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newExamRouter(&stubSession{err: tt.err}, 0)
			w, env := doJSON(t, r, http.MethodPost, "/exams/validate", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.code != "" && (env.Error == nil || env.Error.Code != tt.code) {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestSubmitAnswersHandler(t *testing.T) {
	s := &stubSession{}
	r := newExamRouter(s, 0)

	w, _ := doJSON(t, r, http.MethodPost, "/exams/EX-100/phases/1/answers", `{"answers":{"heliosSecurity":"tRR","n":3}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	if s.gotPhase != model.PhaseOne || s.gotID != "EX-100" || s.gotAnswers["heliosSecurity"] != "tRR" {
		t.Errorf("controller got phase=%d id=%q answers=%v", s.gotPhase, s.gotID, s.gotAnswers)
	}

	w, env := doJSON(t, r, http.MethodPost, "/exams/EX-100/phases/9/answers", `{"answers":{}}`)
	if w.Code != http.StatusBadRequest || env.Error.Code != "INVALID_PHASE" {
		t.Errorf("bad phase: %d %+v", w.Code, env.Error)
	}

	s.err = service.ErrAlreadySubmitted
	w, env = doJSON(t, r, http.MethodPost, "/exams/EX-100/phases/2/answers", `{"answers":{}}`)
	if w.Code != http.StatusConflict || env.Error.Code != "ALREADY_SUBMITTED" {
		t.Errorf("duplicate: %d %+v", w.Code, env.Error)
	}
}

func TestFailureNeverLeaksCause(t *testing.T) {
	s := &stubSession{err: fmt.Errorf("%w: %w", service.ErrPersistFailed, errors.New("password=hunter2 host=db"))}
	r := newExamRouter(s, 0)

	w, env := doJSON(t, r, http.MethodPost, "/exams/EX-100/phases/1/answers", `{"answers":{}}`)
	if w.Code != http.StatusInternalServerError || env.Error.Code != "PERSIST_FAILED" {
		t.Fatalf("got %d %+v", w.Code, env.Error)
	}
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Error("response leaks the underlying cause")
	}
}

func TestSubmitUploadHandler(t *testing.T) {
	s := &stubSession{}
	r := newExamRouter(s, 0)
	payload := []byte("\x89PNG\r\n\x1a\nrest")

	body, ct := multipartBody(t, "scan.png", "image/png", payload)
	req := httptest.NewRequest(http.MethodPost, "/exams/EX-100/phases/3/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	if s.gotFile == nil || s.gotFile.Name != "scan.png" || s.gotFile.ContentType != "image/png" || s.gotFile.Size != int64(len(payload)) {
		t.Errorf("file = %+v", s.gotFile)
	}
	if !bytes.Equal(s.gotBody, payload) {
		t.Error("body not forwarded")
	}
}

func TestSubmitUploadHandlerMissingFile(t *testing.T) {
	s := &stubSession{}
	r := newExamRouter(s, 0)

	body, ct := multipartBody(t, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/exams/EX-100/phases/3/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "FILE_REQUIRED") {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if s.gotID != "EX-100" {
		t.Error("controller should still be called to check the identifier first")
	}
}

func TestSubmitUploadHandlerInvalidTypeMessage(t *testing.T) {
	tests := []struct {
		phase string
		want  string
	}{
		{"3", "Invalid file type. Only PNG, JPEG, or JPG allowed."},
		{"4", "Invalid file type. Only XLSX or XLS allowed."},
	}
	for _, tt := range tests {
		t.Run("phase"+tt.phase, func(t *testing.T) {
			s := &stubSession{err: fmt.Errorf("%w: %q", upload.ErrInvalidType, "application/pdf")}
			r := newExamRouter(s, 0)

			body, ct := multipartBody(t, "a.pdf", "application/pdf", []byte("%PDF-1.7"))
			req := httptest.NewRequest(http.MethodPost, "/exams/EX-100/phases/"+tt.phase+"/upload", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			var env envelope
			json.Unmarshal(w.Body.Bytes(), &env)
			if w.Code != http.StatusUnsupportedMediaType || env.Error == nil || env.Error.Code != "UNSUPPORTED_FILE_TYPE" {
				t.Fatalf("got %d %s", w.Code, w.Body.String())
			}
			if env.Error.Message != tt.want {
				t.Errorf("message = %q, want %q", env.Error.Message, tt.want)
			}
		})
	}
}

func TestSubmitUploadHandlerOversizedBody(t *testing.T) {
	s := &stubSession{}
	r := newExamRouter(s, 16)

	body, ct := multipartBody(t, "big.png", "image/png", make([]byte, 2*multipartOverhead))
	req := httptest.NewRequest(http.MethodPost, "/exams/EX-100/phases/3/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge || !strings.Contains(w.Body.String(), "FILE_TOO_LARGE") {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestSubmitUploadHandlerOversizedBodyChecksIdentifierFirst(t *testing.T) {
	s := &stubSession{err: service.ErrInvalidExamID}
	r := newExamRouter(s, 16)

	body, ct := multipartBody(t, "big.png", "image/png", make([]byte, 2*multipartOverhead))
	req := httptest.NewRequest(http.MethodPost, "/exams/EX-404/phases/3/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "INVALID_EXAM_ID") {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}
