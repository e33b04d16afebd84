package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/adonhq/assessment-backend/internal/blob"
	"github.com/adonhq/assessment-backend/internal/deadline"
	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/repository"
	"github.com/adonhq/assessment-backend/internal/scoring"
	"github.com/adonhq/assessment-backend/internal/upload"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Exam session errors. Each maps to one caller-facing error code.
var (
	ErrInvalidExamID    = errors.New("examination identifier not found")
	ErrStoreUnavailable = errors.New("examination store unavailable")
	ErrInvalidPhase     = errors.New("phase does not accept this kind of submission")
	ErrUploadFailed     = errors.New("artifact upload failed")
	ErrPersistFailed    = errors.New("result could not be persisted")
	ErrAlreadySubmitted = errors.New("phase already submitted")
	ErrDeadlineExpired  = errors.New("phase deadline expired")
	ErrUnexpected       = errors.New("unexpected error")
)

// ExaminationFinder looks up examination records by identifier.
type ExaminationFinder interface {
	GetByExaminationID(ctx context.Context, examinationID string) (*model.ExaminationRecord, error)
}

// ResultStore persists phase outcomes.
type ResultStore interface {
	CreateAnswerResult(ctx context.Context, a *model.AnswerResult) error
	CreateUploadResult(ctx context.Context, u *model.UploadResult) error
	HasResult(ctx context.Context, examinationID string, phase model.Phase) (bool, error)
	SubmittedPhases(ctx context.Context, examinationID string) ([]model.Phase, error)
}

// PhaseClock reads and writes per-phase countdown anchors.
type PhaseClock interface {
	Duration() time.Duration
	Observe(ctx context.Context, examinationID string, phase model.Phase) (*deadline.Status, error)
	Peek(ctx context.Context, examinationID string, phase model.Phase) (*deadline.Status, bool, error)
	Clear(ctx context.Context, examinationID string, phase model.Phase) error
}

// CleanupEnqueuer schedules removal of an artifact whose result was never
// recorded.
type CleanupEnqueuer interface {
	EnqueueBlobCleanup(ctx context.Context, namespace, name string) error
}

// Artifact is an uploaded payload. multipart.File satisfies it.
type Artifact interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// ExamSessionOptions tunes the controller.
type ExamSessionOptions struct {
	StoreTimeout    time.Duration
	BlobTimeout     time.Duration
	EnforceDeadline bool
	// MaxUploadBytes overrides the validator ceiling when positive.
	MaxUploadBytes int64
}

// AnswerSummary is the full scoring breakdown shown after phase 1.
type AnswerSummary struct {
	scoring.Result
	AnswerKey   map[string]string `json:"answer_key"`
	UserAnswers map[string]any    `json:"user_answers"`
}

// ScoredSubmission confirms an answer submission. Summary is only set for
// phases that reveal their result to the candidate.
type ScoredSubmission struct {
	ID            uuid.UUID      `json:"id"`
	ExaminationID string         `json:"examination_id"`
	Phase         model.Phase    `json:"phase"`
	Summary       *AnswerSummary `json:"summary,omitempty"`
}

// StoredArtifact confirms an upload submission.
type StoredArtifact struct {
	ID            uuid.UUID   `json:"id"`
	ExaminationID string      `json:"examination_id"`
	Phase         model.Phase `json:"phase"`
	FileName      string      `json:"file_name"`
	FileURL       string      `json:"file_url"`
	ContentType   string      `json:"content_type"`
	SizeBytes     int64       `json:"size_bytes"`
}

// PhaseTimer is the countdown view of one phase.
type PhaseTimer struct {
	ExaminationID    string      `json:"examination_id"`
	Phase            model.Phase `json:"phase"`
	Started          bool        `json:"started"`
	StartedAt        *time.Time  `json:"started_at,omitempty"`
	DurationSeconds  int         `json:"duration_seconds"`
	RemainingSeconds int         `json:"remaining_seconds"`
	Expired          bool        `json:"expired"`
	// Submitted is only reported by PhaseTimer for a phase without a clock.
	Submitted bool `json:"submitted"`
}

// ExamSessionService walks a candidate through the four phases.
type ExamSessionService struct {
	exams   ExaminationFinder
	results ResultStore
	blobs   blob.Store
	clock   PhaseClock
	cleanup CleanupEnqueuer
	opts    ExamSessionOptions
	log     zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	exams ExaminationFinder,
	results ResultStore,
	blobs blob.Store,
	clock PhaseClock,
	cleanup CleanupEnqueuer,
	opts ExamSessionOptions,
	log zerolog.Logger,
) *ExamSessionService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.BlobTimeout <= 0 {
		opts.BlobTimeout = 30 * time.Second
	}
	return &ExamSessionService{
		exams:   exams,
		results: results,
		blobs:   blobs,
		clock:   clock,
		cleanup: cleanup,
		opts:    opts,
		log:     log.With().Str("component", "exam_session").Logger(),
	}
}

// ValidateIdentifier looks the identifier up with an exact, case-sensitive
// match.
func (s *ExamSessionService) ValidateIdentifier(ctx context.Context, examinationID string) (rec *model.ExaminationRecord, err error) {
	defer s.recoverPanic("validate_identifier", &err)
	return s.lookup(ctx, examinationID)
}

func (s *ExamSessionService) lookup(ctx context.Context, examinationID string) (*model.ExaminationRecord, error) {
	if !model.IsValidExaminationID(examinationID) {
		return nil, ErrInvalidExamID
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	rec, err := s.exams.GetByExaminationID(sctx, examinationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidExamID
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// SubmitAnswers scores and records an answer-based phase. Phase 2 checks the
// identifier first; phase 1 relies on the foreign key to reject unknown
// identifiers.
func (s *ExamSessionService) SubmitAnswers(ctx context.Context, phase model.Phase, examinationID string, raw map[string]any) (sub *ScoredSubmission, err error) {
	defer s.recoverPanic("submit_answers", &err)

	key, ok := scoring.KeyFor(phase)
	if !ok {
		return nil, ErrInvalidPhase
	}
	if !model.IsValidExaminationID(examinationID) {
		return nil, ErrInvalidExamID
	}
	if phase == model.PhaseTwo {
		if _, err := s.lookup(ctx, examinationID); err != nil {
			return nil, err
		}
	}
	if err := s.checkDeadline(ctx, examinationID, phase); err != nil {
		return nil, err
	}

	if raw == nil {
		raw = map[string]any{}
	}
	// Only string values can match; the mapping is stored as received.
	result := scoring.Score(key, scoring.NormalizeAnswers(raw))

	rec := &model.AnswerResult{
		ExaminationID:  examinationID,
		Phase:          phase,
		UserAnswers:    raw,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		Percentage:     result.Percentage,
		IsPassed:       result.Passed,
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	err = s.results.CreateAnswerResult(sctx, rec)
	cancel()
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateResult):
			return nil, ErrAlreadySubmitted
		case errors.Is(err, repository.ErrUnknownExamination):
			return nil, ErrInvalidExamID
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	s.clearAnchor(ctx, examinationID, phase)
	s.log.Info().
		Str("examination_id", examinationID).
		Int("phase", int(phase)).
		Int("score", result.Score).
		Bool("is_passed", result.Passed).
		Msg("Answers recorded")

	sub = &ScoredSubmission{ID: rec.ID, ExaminationID: examinationID, Phase: phase}
	if phase == model.PhaseOne {
		sub.Summary = &AnswerSummary{
			Result:      result,
			AnswerKey:   key.Map(),
			UserAnswers: raw,
		}
	}
	return sub, nil
}

// SubmitUpload validates an artifact, stores it and records where it lives.
// body may be nil when the request carried no file.
func (s *ExamSessionService) SubmitUpload(ctx context.Context, phase model.Phase, examinationID string, file *upload.File, body Artifact) (art *StoredArtifact, err error) {
	defer s.recoverPanic("submit_upload", &err)

	policy, ok := upload.PolicyFor(phase)
	if !ok {
		return nil, ErrInvalidPhase
	}
	if s.opts.MaxUploadBytes > 0 {
		policy.MaxBytes = s.opts.MaxUploadBytes
	}

	if _, err := s.lookup(ctx, examinationID); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, upload.ErrMissingFile
	}
	if err := upload.Validate(file, policy); err != nil {
		return nil, err
	}
	if err := upload.Inspect(body, file, policy); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	exists, err := s.results.HasResult(sctx, examinationID, phase)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if exists {
		return nil, ErrAlreadySubmitted
	}
	if err := s.checkDeadline(ctx, examinationID, phase); err != nil {
		return nil, err
	}

	namespace := phase.Namespace()
	name := upload.ArtifactName(examinationID, file.Name)
	contentType := upload.NormalizeType(file.ContentType)
	log := s.log.With().
		Str("examination_id", examinationID).
		Int("phase", int(phase)).
		Str("blob_key", namespace+"/"+name).
		Logger()

	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: rewind payload: %w", ErrUploadFailed, err)
	}
	bctx, cancel := context.WithTimeout(ctx, s.opts.BlobTimeout)
	err = s.blobs.Put(bctx, namespace, name, body, file.Size, contentType)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	rec := &model.UploadResult{
		ExaminationID: examinationID,
		Phase:         phase,
		FileName:      name,
		FileURL:       s.blobs.Address(namespace, name),
		ContentType:   contentType,
		SizeBytes:     file.Size,
	}

	sctx, cancel = context.WithTimeout(ctx, s.opts.StoreTimeout)
	err = s.results.CreateUploadResult(sctx, rec)
	cancel()
	if err != nil {
		// The artifact name is deterministic, so on a duplicate the object
		// may belong to the accepted submission and must stay.
		if errors.Is(err, repository.ErrDuplicateResult) {
			return nil, ErrAlreadySubmitted
		}
		s.compensate(ctx, log, namespace, name)
		if errors.Is(err, repository.ErrUnknownExamination) {
			return nil, ErrInvalidExamID
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}

	s.clearAnchor(ctx, examinationID, phase)
	log.Info().Int64("size_bytes", file.Size).Msg("Artifact recorded")

	return &StoredArtifact{
		ID:            rec.ID,
		ExaminationID: examinationID,
		Phase:         phase,
		FileName:      rec.FileName,
		FileURL:       rec.FileURL,
		ContentType:   rec.ContentType,
		SizeBytes:     rec.SizeBytes,
	}, nil
}

// StartPhase anchors the countdown of a phase on first call and returns it.
func (s *ExamSessionService) StartPhase(ctx context.Context, phase model.Phase, examinationID string) (t *PhaseTimer, err error) {
	defer s.recoverPanic("start_phase", &err)

	if !phase.Valid() {
		return nil, ErrInvalidPhase
	}
	if _, err := s.lookup(ctx, examinationID); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	exists, err := s.results.HasResult(sctx, examinationID, phase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if exists {
		return nil, ErrAlreadySubmitted
	}

	st, err := s.clock.Observe(sctx, examinationID, phase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return s.timerView(examinationID, phase, st), nil
}

// PhaseTimer reports the countdown of a phase without starting it. The
// result store is only consulted when the phase has no clock, to tell a
// submitted phase from one whose clock is gone.
func (s *ExamSessionService) PhaseTimer(ctx context.Context, phase model.Phase, examinationID string) (t *PhaseTimer, err error) {
	defer s.recoverPanic("phase_timer", &err)

	if !phase.Valid() {
		return nil, ErrInvalidPhase
	}
	if !model.IsValidExaminationID(examinationID) {
		return nil, ErrInvalidExamID
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	st, ok, err := s.clock.Peek(sctx, examinationID, phase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if ok {
		return s.timerView(examinationID, phase, st), nil
	}

	submitted, err := s.results.HasResult(sctx, examinationID, phase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	t = s.timerView(examinationID, phase, nil)
	t.Submitted = submitted
	return t, nil
}

// Progress reports the state of every phase and the first one still open.
func (s *ExamSessionService) Progress(ctx context.Context, examinationID string) (p *model.ExaminationProgress, err error) {
	defer s.recoverPanic("progress", &err)

	if _, err := s.lookup(ctx, examinationID); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	submitted, err := s.results.SubmittedPhases(sctx, examinationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	done := make(map[model.Phase]bool, len(submitted))
	for _, ph := range submitted {
		done[ph] = true
	}

	p = &model.ExaminationProgress{
		ExaminationID: examinationID,
		Phases:        make([]model.PhaseProgress, 0, len(model.Phases)),
	}
	for _, ph := range model.Phases {
		pp := model.PhaseProgress{Phase: ph, Kind: ph.Kind(), State: model.PhaseStateNotStarted}
		switch {
		case done[ph]:
			pp.State = model.PhaseStateSubmitted
		default:
			st, ok, err := s.clock.Peek(sctx, examinationID, ph)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
			}
			if ok {
				pp.State = model.PhaseStateInProgress
				remaining := st.RemainingSeconds
				pp.RemainingSeconds = &remaining
			}
			if p.NextPhase == nil {
				next := ph
				p.NextPhase = &next
			}
		}
		p.Phases = append(p.Phases, pp)
	}
	return p, nil
}

// checkDeadline rejects a submission whose countdown ran out, when
// enforcement is on. A phase that was never started is not rejected.
func (s *ExamSessionService) checkDeadline(ctx context.Context, examinationID string, phase model.Phase) error {
	if !s.opts.EnforceDeadline {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	st, ok, err := s.clock.Peek(sctx, examinationID, phase)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if ok && st.Expired {
		return ErrDeadlineExpired
	}
	return nil
}

func (s *ExamSessionService) clearAnchor(ctx context.Context, examinationID string, phase model.Phase) {
	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	if err := s.clock.Clear(sctx, examinationID, phase); err != nil {
		s.log.Warn().Err(err).
			Str("examination_id", examinationID).
			Int("phase", int(phase)).
			Msg("Failed to clear phase anchor")
	}
}

func (s *ExamSessionService) compensate(ctx context.Context, log zerolog.Logger, namespace, name string) {
	if s.cleanup == nil {
		log.Warn().Msg("Orphaned artifact, no cleanup queue configured")
		return
	}
	// The request context may already be done; the job must still land.
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.StoreTimeout)
	defer cancel()
	if err := s.cleanup.EnqueueBlobCleanup(qctx, namespace, name); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue orphaned artifact cleanup")
		return
	}
	log.Warn().Msg("Orphaned artifact queued for cleanup")
}

func (s *ExamSessionService) timerView(examinationID string, phase model.Phase, st *deadline.Status) *PhaseTimer {
	t := &PhaseTimer{
		ExaminationID:    examinationID,
		Phase:            phase,
		DurationSeconds:  int(s.clock.Duration() / time.Second),
		RemainingSeconds: int(s.clock.Duration() / time.Second),
	}
	if st != nil {
		startedAt := st.StartedAt
		t.Started = true
		t.StartedAt = &startedAt
		t.RemainingSeconds = st.RemainingSeconds
		t.Expired = st.Expired
	}
	return t
}

func (s *ExamSessionService) recoverPanic(op string, err *error) {
	if r := recover(); r != nil {
		s.log.Error().
			Str("op", op).
			Interface("panic", r).
			Bytes("stack", debug.Stack()).
			Msg("Recovered from panic")
		*err = fmt.Errorf("%w: %v", ErrUnexpected, r)
	}
}
