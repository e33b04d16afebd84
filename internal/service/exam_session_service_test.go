package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adonhq/assessment-backend/internal/blob"
	"github.com/adonhq/assessment-backend/internal/deadline"
	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/repository"
	"github.com/adonhq/assessment-backend/internal/upload"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ─── Fakes ─────────────────────────────────────────────────────────────────

type fakeExams struct {
	records map[string]*model.ExaminationRecord
	err     error
	panics  bool
	calls   int
}

func (f *fakeExams) GetByExaminationID(ctx context.Context, id string) (*model.ExaminationRecord, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return rec, nil
}

type fakeResults struct {
	known     map[string]bool
	submitted map[string]bool
	answers   []*model.AnswerResult
	uploads   []*model.UploadResult
	createErr error
	hasErr    error
}

func resultKey(id string, p model.Phase) string { return fmt.Sprintf("%s/%d", id, p) }

func (f *fakeResults) create(id string, p model.Phase) error {
	if f.createErr != nil {
		return f.createErr
	}
	if !f.known[id] {
		return repository.ErrUnknownExamination
	}
	if f.submitted[resultKey(id, p)] {
		return repository.ErrDuplicateResult
	}
	f.submitted[resultKey(id, p)] = true
	return nil
}

func (f *fakeResults) CreateAnswerResult(ctx context.Context, a *model.AnswerResult) error {
	if err := f.create(a.ExaminationID, a.Phase); err != nil {
		return err
	}
	a.ID = uuid.New()
	f.answers = append(f.answers, a)
	return nil
}

func (f *fakeResults) CreateUploadResult(ctx context.Context, u *model.UploadResult) error {
	if err := f.create(u.ExaminationID, u.Phase); err != nil {
		return err
	}
	u.ID = uuid.New()
	f.uploads = append(f.uploads, u)
	return nil
}

func (f *fakeResults) HasResult(ctx context.Context, id string, p model.Phase) (bool, error) {
	if f.hasErr != nil {
		return false, f.hasErr
	}
	return f.submitted[resultKey(id, p)], nil
}

func (f *fakeResults) SubmittedPhases(ctx context.Context, id string) ([]model.Phase, error) {
	var out []model.Phase
	for _, p := range model.Phases {
		if f.submitted[resultKey(id, p)] {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeBlobs struct {
	puts    map[string][]byte
	deletes []string
	putErr  error
}

func (f *fakeBlobs) Put(ctx context.Context, namespace, name string, body io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.puts[namespace+"/"+name] = data
	return nil
}

func (f *fakeBlobs) Delete(ctx context.Context, namespace, name string) error {
	f.deletes = append(f.deletes, namespace+"/"+name)
	return nil
}

func (f *fakeBlobs) Address(namespace, name string) string { return namespace + "/" + name }

type fakeCleanup struct{ jobs []string }

func (f *fakeCleanup) EnqueueBlobCleanup(ctx context.Context, namespace, name string) error {
	f.jobs = append(f.jobs, namespace+"/"+name)
	return nil
}

type memAnchors struct {
	mu sync.Mutex
	m  map[string]time.Time
}

func (s *memAnchors) SetIfAbsent(ctx context.Context, id string, p model.Phase, at time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.m[resultKey(id, p)]; ok {
		return existing, nil
	}
	s.m[resultKey(id, p)] = at
	return at, nil
}

func (s *memAnchors) Get(ctx context.Context, id string, p model.Phase) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.m[resultKey(id, p)]
	return at, ok, nil
}

func (s *memAnchors) Delete(ctx context.Context, id string, p model.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, resultKey(id, p))
	return nil
}

type harness struct {
	svc     *ExamSessionService
	exams   *fakeExams
	results *fakeResults
	blobs   *fakeBlobs
	cleanup *fakeCleanup
	anchors *memAnchors
	now     time.Time
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func newHarness(t *testing.T, opts ExamSessionOptions, ids ...string) *harness {
	t.Helper()
	h := &harness{
		exams:   &fakeExams{records: map[string]*model.ExaminationRecord{}},
		results: &fakeResults{known: map[string]bool{}, submitted: map[string]bool{}},
		blobs:   &fakeBlobs{puts: map[string][]byte{}},
		cleanup: &fakeCleanup{},
		anchors: &memAnchors{m: map[string]time.Time{}},
		now:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, id := range ids {
		h.exams.records[id] = &model.ExaminationRecord{ID: uuid.New(), ExaminationID: id, Status: model.DefaultExaminationStatus}
		h.results.known[id] = true
	}
	clock := deadline.NewTracker(h.anchors, deadline.DefaultDuration, func() time.Time { return h.now })
	h.svc = NewExamSessionService(h.exams, h.results, h.blobs, clock, h.cleanup, opts, zerolog.Nop())
	return h
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func pngPayload(size int) []byte {
	b := make([]byte, size)
	copy(b, pngHeader)
	return b
}

func phaseOneAnswers() map[string]any {
	return map[string]any{
		"acquisitionAccount":  "11456789",
		"acquisitionSecurity": "Nv8",
		"landecStatus":        "Inactive",
		"heliosName":          "Helios Incorporated",
		"heliosSecurity":      "tRR",
	}
}

// ─── Identifier ────────────────────────────────────────────────────────────

func TestValidateIdentifier(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	ctx := context.Background()

	rec, err := h.svc.ValidateIdentifier(ctx, "EX-100")
	if err != nil || rec.ExaminationID != "EX-100" {
		t.Fatalf("ValidateIdentifier(EX-100) = %v, %v", rec, err)
	}

	if _, err := h.svc.ValidateIdentifier(ctx, "ex-100"); !errors.Is(err, ErrInvalidExamID) {
		t.Errorf("lookup must be case-sensitive, got %v", err)
	}

	calls := h.exams.calls
	for _, bad := range []string{"", "EX\n100", strings.Repeat("A", model.MaxExaminationIDLength+1)} {
		if _, err := h.svc.ValidateIdentifier(ctx, bad); !errors.Is(err, ErrInvalidExamID) {
			t.Errorf("ValidateIdentifier(%q): got %v", bad, err)
		}
	}
	if h.exams.calls != calls {
		t.Error("unstorable ids should not reach the store")
	}

	h.exams.err = errors.New("connection refused")
	_, err = h.svc.ValidateIdentifier(ctx, "EX-100")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("store down: got %v", err)
	}
	if errors.Is(err, ErrInvalidExamID) {
		t.Error("store failure must not look like an unknown identifier")
	}
}

func TestIdentifiersWithPunctuation(t *testing.T) {
	ids := []string{"EX.100", "2024/EX/01", "EX 100"}
	h := newHarness(t, ExamSessionOptions{}, ids...)
	ctx := context.Background()

	for _, id := range ids {
		if _, err := h.svc.ValidateIdentifier(ctx, id); err != nil {
			t.Errorf("ValidateIdentifier(%q): %v", id, err)
		}
		if _, err := h.svc.SubmitAnswers(ctx, model.PhaseTwo, id, map[string]any{"q1": "on"}); err != nil {
			t.Errorf("SubmitAnswers(phase 2, %q): %v", id, err)
		}
	}

	payload := pngPayload(512)
	file := &upload.File{Name: "shot.png", ContentType: "image/png", Size: int64(len(payload))}
	art, err := h.svc.SubmitUpload(ctx, model.PhaseThree, "2024/EX/01", file, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}
	if art.FileName != "2024_EX_01_shot.png" {
		t.Errorf("FileName = %q", art.FileName)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	h.exams.panics = true

	_, err := h.svc.ValidateIdentifier(context.Background(), "EX-100")
	if !errors.Is(err, ErrUnexpected) {
		t.Fatalf("got %v, want ErrUnexpected", err)
	}
}

// ─── Answers ───────────────────────────────────────────────────────────────

func TestSubmitAnswersPhaseOneFullMarks(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")

	sub, err := h.svc.SubmitAnswers(context.Background(), model.PhaseOne, "EX-100", phaseOneAnswers())
	if err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	if sub.Summary == nil {
		t.Fatal("phase 1 should return a summary")
	}
	if sub.Summary.Score != 5 || sub.Summary.Percentage != 100 || !sub.Summary.Passed {
		t.Errorf("summary = %+v", sub.Summary.Result)
	}
	if sub.Summary.AnswerKey["heliosName"] != "Helios Incorporated" {
		t.Errorf("answer key missing from summary: %v", sub.Summary.AnswerKey)
	}
	if len(h.results.answers) != 1 || h.results.answers[0].ID != sub.ID {
		t.Fatalf("persisted = %+v", h.results.answers)
	}
}

func TestSubmitAnswersPhaseTwoUnknownIdentifier(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")

	_, err := h.svc.SubmitAnswers(context.Background(), model.PhaseTwo, "EX-200", map[string]any{"q1": "on"})
	if !errors.Is(err, ErrInvalidExamID) {
		t.Fatalf("got %v, want ErrInvalidExamID", err)
	}
	if len(h.results.answers) != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestSubmitAnswersPhaseOneUnknownIdentifierRejectedByStore(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")

	_, err := h.svc.SubmitAnswers(context.Background(), model.PhaseOne, "EX-200", phaseOneAnswers())
	if !errors.Is(err, ErrInvalidExamID) {
		t.Fatalf("got %v, want ErrInvalidExamID", err)
	}
	if h.exams.calls != 0 {
		t.Error("phase 1 should not look the identifier up")
	}
	if len(h.results.answers) != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestSubmitAnswersPhaseTwoReturnsOnlyToken(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")

	sub, err := h.svc.SubmitAnswers(context.Background(), model.PhaseTwo, "EX-100", map[string]any{"q1": "on", "q9": "weren’t", "q10": 7})
	if err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	if sub.Summary != nil {
		t.Errorf("phase 2 must not reveal a summary: %+v", sub.Summary)
	}
	if sub.ID == uuid.Nil {
		t.Error("missing record id")
	}
	got := h.results.answers[0]
	if got.Score != 2 || got.TotalQuestions != 10 || got.Percentage != 20 || got.IsPassed {
		t.Errorf("persisted = %+v", got)
	}
	if v, ok := got.UserAnswers["q10"]; !ok || v != 7 {
		t.Errorf("user_answers[q10] = %v, want the raw value 7", v)
	}
}

func TestSubmitAnswersRejectsSecondSubmission(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	ctx := context.Background()

	if _, err := h.svc.SubmitAnswers(ctx, model.PhaseOne, "EX-100", phaseOneAnswers()); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := h.svc.SubmitAnswers(ctx, model.PhaseOne, "EX-100", map[string]any{})
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("second: got %v, want ErrAlreadySubmitted", err)
	}
	if len(h.results.answers) != 1 {
		t.Errorf("persisted %d results, want 1", len(h.results.answers))
	}
}

func TestSubmitAnswersPersistFailure(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	cause := errors.New("disk full")
	h.results.createErr = cause

	_, err := h.svc.SubmitAnswers(context.Background(), model.PhaseOne, "EX-100", phaseOneAnswers())
	if !errors.Is(err, ErrPersistFailed) || !errors.Is(err, cause) {
		t.Fatalf("got %v, want ErrPersistFailed wrapping cause", err)
	}
}

func TestSubmitAnswersWrongPhase(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")

	_, err := h.svc.SubmitAnswers(context.Background(), model.PhaseThree, "EX-100", map[string]any{})
	if !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("got %v, want ErrInvalidPhase", err)
	}
}

func TestSubmitAnswersClearsAnchor(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	ctx := context.Background()

	if _, err := h.svc.StartPhase(ctx, model.PhaseOne, "EX-100"); err != nil {
		t.Fatalf("StartPhase: %v", err)
	}
	if _, err := h.svc.SubmitAnswers(ctx, model.PhaseOne, "EX-100", phaseOneAnswers()); err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	if len(h.anchors.m) != 0 {
		t.Errorf("anchor should be cleared, have %v", h.anchors.m)
	}
}

// ─── Uploads ───────────────────────────────────────────────────────────────

func TestSubmitUploadPhaseThreePNG(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	payload := pngPayload(1 << 20)
	file := &upload.File{Name: "my scan.png", ContentType: "image/png", Size: int64(len(payload))}

	art, err := h.svc.SubmitUpload(context.Background(), model.PhaseThree, "EX-100", file, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}
	if !strings.HasPrefix(art.FileURL, "uploads/phase3/") {
		t.Errorf("FileURL = %q, want phase 3 namespace prefix", art.FileURL)
	}
	if art.FileName != "EX-100_my_scan.png" {
		t.Errorf("FileName = %q", art.FileName)
	}
	if got := h.blobs.puts["uploads/phase3/EX-100_my_scan.png"]; len(got) != len(payload) {
		t.Errorf("stored %d bytes, want %d", len(got), len(payload))
	}
	if len(h.results.uploads) != 1 || h.results.uploads[0].ContentType != "image/png" {
		t.Errorf("persisted = %+v", h.results.uploads)
	}
}

func TestSubmitUploadLongFileNameOnDisk(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	store := blob.NewLocalStore(t.TempDir(), "http://localhost:8080")
	h.svc.blobs = store

	payload := pngPayload(512)
	name := "screenshot" + strings.Repeat("a", 290) + ".png"
	file := &upload.File{Name: name, ContentType: "image/png", Size: int64(len(payload))}

	art, err := h.svc.SubmitUpload(context.Background(), model.PhaseThree, "EX-100", file, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}
	if len(art.FileName) > upload.MaxArtifactNameLength || !strings.HasSuffix(art.FileName, ".png") {
		t.Errorf("FileName = %q (%d bytes)", art.FileName, len(art.FileName))
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "uploads", "phase3", art.FileName)); err != nil {
		t.Errorf("artifact not on disk: %v", err)
	}
	if len(h.cleanup.jobs) != 0 {
		t.Errorf("unexpected cleanup jobs: %v", h.cleanup.jobs)
	}
}

func TestSubmitUploadRejectsPDFWithoutSideEffects(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	payload := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")
	file := &upload.File{Name: "answers.pdf", ContentType: "application/pdf", Size: int64(len(payload))}

	_, err := h.svc.SubmitUpload(context.Background(), model.PhaseFour, "EX-100", file, bytes.NewReader(payload))
	if !errors.Is(err, upload.ErrInvalidType) {
		t.Fatalf("got %v, want ErrInvalidType", err)
	}
	if len(h.blobs.puts) != 0 || len(h.results.uploads) != 0 {
		t.Errorf("side effects: puts=%d uploads=%d", len(h.blobs.puts), len(h.results.uploads))
	}
}

func TestSubmitUploadRejectsSpoofedContent(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	payload := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	file := &upload.File{Name: "scan.png", ContentType: "image/png", Size: int64(len(payload))}

	_, err := h.svc.SubmitUpload(context.Background(), model.PhaseThree, "EX-100", file, bytes.NewReader(payload))
	if !errors.Is(err, upload.ErrInvalidType) {
		t.Fatalf("got %v, want ErrInvalidType", err)
	}
	if len(h.blobs.puts) != 0 {
		t.Error("spoofed payload must not be stored")
	}
}

func TestSubmitUploadMissingFile(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")

	_, err := h.svc.SubmitUpload(context.Background(), model.PhaseThree, "EX-100", nil, nil)
	if !errors.Is(err, upload.ErrMissingFile) {
		t.Fatalf("got %v, want ErrMissingFile", err)
	}
}

func TestSubmitUploadTooLarge(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{MaxUploadBytes: 1024}, "EX-100")
	payload := pngPayload(1025)
	file := &upload.File{Name: "a.png", ContentType: "image/png", Size: int64(len(payload))}

	_, err := h.svc.SubmitUpload(context.Background(), model.PhaseThree, "EX-100", file, bytes.NewReader(payload))
	if !errors.Is(err, upload.ErrTooLarge) {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}

func TestSubmitUploadBlobFailure(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	h.blobs.putErr = errors.New("bucket unreachable")
	payload := pngPayload(512)
	file := &upload.File{Name: "a.png", ContentType: "image/png", Size: int64(len(payload))}

	_, err := h.svc.SubmitUpload(context.Background(), model.PhaseThree, "EX-100", file, bytes.NewReader(payload))
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("got %v, want ErrUploadFailed", err)
	}
	if len(h.results.uploads) != 0 {
		t.Error("nothing should be persisted after a blob failure")
	}
}

func TestSubmitUploadPersistFailureQueuesCleanup(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	h.results.createErr = errors.New("timeout")
	payload := pngPayload(512)
	file := &upload.File{Name: "a.png", ContentType: "image/png", Size: int64(len(payload))}

	_, err := h.svc.SubmitUpload(context.Background(), model.PhaseThree, "EX-100", file, bytes.NewReader(payload))
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("got %v, want ErrPersistFailed", err)
	}
	if len(h.cleanup.jobs) != 1 || h.cleanup.jobs[0] != "uploads/phase3/EX-100_a.png" {
		t.Errorf("cleanup jobs = %v", h.cleanup.jobs)
	}
}

func TestSubmitUploadSecondSubmission(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	ctx := context.Background()
	payload := pngPayload(512)
	file := &upload.File{Name: "a.png", ContentType: "image/png", Size: int64(len(payload))}

	if _, err := h.svc.SubmitUpload(ctx, model.PhaseThree, "EX-100", file, bytes.NewReader(payload)); err != nil {
		t.Fatalf("first: %v", err)
	}
	delete(h.blobs.puts, "uploads/phase3/EX-100_a.png")

	_, err := h.svc.SubmitUpload(ctx, model.PhaseThree, "EX-100", file, bytes.NewReader(payload))
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("second: got %v, want ErrAlreadySubmitted", err)
	}
	if len(h.blobs.puts) != 0 {
		t.Error("second upload must be rejected before the blob write")
	}
}

func TestSubmitUploadLostRaceKeepsArtifact(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	h.results.createErr = repository.ErrDuplicateResult
	payload := pngPayload(512)
	file := &upload.File{Name: "a.png", ContentType: "image/png", Size: int64(len(payload))}

	_, err := h.svc.SubmitUpload(context.Background(), model.PhaseThree, "EX-100", file, bytes.NewReader(payload))
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("got %v, want ErrAlreadySubmitted", err)
	}
	if len(h.cleanup.jobs) != 0 {
		t.Errorf("accepted artifact must not be queued for deletion: %v", h.cleanup.jobs)
	}
}

// ─── Countdown ─────────────────────────────────────────────────────────────

func TestStartPhaseIsWriteOnce(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	ctx := context.Background()

	first, err := h.svc.StartPhase(ctx, model.PhaseTwo, "EX-100")
	if err != nil {
		t.Fatalf("StartPhase: %v", err)
	}
	if first.RemainingSeconds != 300 || !first.Started {
		t.Errorf("first = %+v", first)
	}

	h.advance(10 * time.Second)
	again, err := h.svc.StartPhase(ctx, model.PhaseTwo, "EX-100")
	if err != nil {
		t.Fatalf("StartPhase again: %v", err)
	}
	if again.RemainingSeconds != 290 {
		t.Errorf("reload should not reset the clock, remaining = %d", again.RemainingSeconds)
	}
}

func TestPhaseTimerDoesNotStartClock(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")

	timer, err := h.svc.PhaseTimer(context.Background(), model.PhaseThree, "EX-100")
	if err != nil {
		t.Fatalf("PhaseTimer: %v", err)
	}
	if timer.Started || timer.RemainingSeconds != 300 {
		t.Errorf("timer = %+v", timer)
	}
	if len(h.anchors.m) != 0 {
		t.Error("PhaseTimer must not create an anchor")
	}
}

func TestPhaseTimerTellsSubmittedFromLostClock(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	ctx := context.Background()

	if _, err := h.svc.StartPhase(ctx, model.PhaseOne, "EX-100"); err != nil {
		t.Fatalf("StartPhase: %v", err)
	}
	if _, err := h.svc.SubmitAnswers(ctx, model.PhaseOne, "EX-100", phaseOneAnswers()); err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	timer, err := h.svc.PhaseTimer(ctx, model.PhaseOne, "EX-100")
	if err != nil || timer.Started || !timer.Submitted {
		t.Errorf("submitted phase: timer = %+v, err = %v", timer, err)
	}

	if _, err := h.svc.StartPhase(ctx, model.PhaseTwo, "EX-100"); err != nil {
		t.Fatalf("StartPhase: %v", err)
	}
	h.anchors.Delete(ctx, "EX-100", model.PhaseTwo)
	timer, err = h.svc.PhaseTimer(ctx, model.PhaseTwo, "EX-100")
	if err != nil || timer.Started || timer.Submitted {
		t.Errorf("lost clock: timer = %+v, err = %v", timer, err)
	}
}

func TestDeadlineEnforcement(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{EnforceDeadline: true}, "EX-100")
	ctx := context.Background()

	if _, err := h.svc.StartPhase(ctx, model.PhaseOne, "EX-100"); err != nil {
		t.Fatalf("StartPhase: %v", err)
	}
	h.advance(301 * time.Second)

	_, err := h.svc.SubmitAnswers(ctx, model.PhaseOne, "EX-100", phaseOneAnswers())
	if !errors.Is(err, ErrDeadlineExpired) {
		t.Fatalf("got %v, want ErrDeadlineExpired", err)
	}

	// A phase whose clock never started is still accepted.
	if _, err := h.svc.SubmitAnswers(ctx, model.PhaseTwo, "EX-100", map[string]any{}); err != nil {
		t.Fatalf("unstarted phase: %v", err)
	}
}

func TestExpiredDeadlineAcceptedByDefault(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	ctx := context.Background()

	if _, err := h.svc.StartPhase(ctx, model.PhaseOne, "EX-100"); err != nil {
		t.Fatalf("StartPhase: %v", err)
	}
	h.advance(time.Hour)

	if _, err := h.svc.SubmitAnswers(ctx, model.PhaseOne, "EX-100", phaseOneAnswers()); err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
}

func TestProgress(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	ctx := context.Background()

	if _, err := h.svc.SubmitAnswers(ctx, model.PhaseOne, "EX-100", phaseOneAnswers()); err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	if _, err := h.svc.StartPhase(ctx, model.PhaseTwo, "EX-100"); err != nil {
		t.Fatalf("StartPhase: %v", err)
	}
	h.advance(45 * time.Second)

	p, err := h.svc.Progress(ctx, "EX-100")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	want := []model.PhaseState{
		model.PhaseStateSubmitted,
		model.PhaseStateInProgress,
		model.PhaseStateNotStarted,
		model.PhaseStateNotStarted,
	}
	for i, ph := range p.Phases {
		if ph.State != want[i] {
			t.Errorf("phase %d state = %s, want %s", ph.Phase, ph.State, want[i])
		}
	}
	if p.Phases[1].RemainingSeconds == nil || *p.Phases[1].RemainingSeconds != 255 {
		t.Errorf("phase 2 remaining = %v", p.Phases[1].RemainingSeconds)
	}
	if p.NextPhase == nil || *p.NextPhase != model.PhaseTwo {
		t.Errorf("NextPhase = %v, want 2", p.NextPhase)
	}
}

func TestStartPhaseAfterSubmission(t *testing.T) {
	h := newHarness(t, ExamSessionOptions{}, "EX-100")
	ctx := context.Background()

	if _, err := h.svc.SubmitAnswers(ctx, model.PhaseOne, "EX-100", phaseOneAnswers()); err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	if _, err := h.svc.StartPhase(ctx, model.PhaseOne, "EX-100"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("got %v, want ErrAlreadySubmitted", err)
	}
}
