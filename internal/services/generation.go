package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/soapify/soapify-backend/internal/logger"
	"github.com/soapify/soapify-backend/internal/normalization"
	"github.com/soapify/soapify-backend/internal/repos"
	"github.com/soapify/soapify-backend/internal/types"
)

// ErrAgeRequired rejects submissions without a patient age; age is part
// of the heuristic patient identity and cannot be defaulted.
var ErrAgeRequired = errors.New("patient age is required")

// PendingNoteContent is the placeholder content a note carries between
// submission and worker completion.
const PendingNoteContent = "AI is generating your note. Please wait..."

// GenerationFailureContent replaces the note content when generation
// fails for a provider or internal reason rather than invalid output.
const GenerationFailureContent = "Generation failed due to an internal error."

const defaultPatientName = "Unknown Patient"

// sequenceInsertAttempts bounds retries of the submission transaction
// when two submissions from the same doctor race to the same number and
// the composite unique index rejects the loser.
const sequenceInsertAttempts = 3

// generationAttempts is the total number of LLM calls a job may make
// before the note is marked FAILED.
const generationAttempts = 2

// enqueueTimeout bounds how long Submit waits for queue space. A queue
// that stays full past this fails the note instead of holding the
// request open.
const enqueueTimeout = 10 * time.Second

// GenerationJob carries everything a worker needs so that workers never
// re-read the transcript row.
type GenerationJob struct {
	DoctorID       uuid.UUID
	PatientID      uuid.UUID
	NoteID         uuid.UUID
	TranscriptText string
}

type SubmitInput struct {
	PatientName   string
	PatientAge    *int
	PatientGender string
	Transcript    string
}

// SOAPGenerationService owns the submission transaction and the async
// pipeline that turns a PENDING note into COMPLETE or FAILED.
type SOAPGenerationService interface {
	Submit(ctx context.Context, doctorID uuid.UUID, input SubmitInput) (*types.SOAPNote, error)
	// StartWorker launches count worker goroutines draining the job queue.
	// Workers exit when ctx is cancelled.
	StartWorker(ctx context.Context, count int)
}

type soapGenerationService struct {
	db             *gorm.DB
	log            *logger.Logger
	patientRepo    repos.PatientRepo
	transcriptRepo repos.TranscriptRepo
	noteRepo       repos.SOAPNoteRepo
	llm            LLMClient
	history        HistoryStore
	// jobs is the back-pressure boundary between submission and the worker
	// pool. Submit blocks on it for at most enqueueWait before failing the
	// note.
	jobs        chan GenerationJob
	enqueueWait time.Duration
}

func NewSOAPGenerationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	patientRepo repos.PatientRepo,
	transcriptRepo repos.TranscriptRepo,
	noteRepo repos.SOAPNoteRepo,
	llm LLMClient,
	history HistoryStore,
) SOAPGenerationService {
	return &soapGenerationService{
		db:             db,
		log:            baseLog.With("service", "SOAPGenerationService"),
		patientRepo:    patientRepo,
		transcriptRepo: transcriptRepo,
		noteRepo:       noteRepo,
		llm:            llm,
		history:        history,
		jobs:           make(chan GenerationJob, 256),
		enqueueWait:    enqueueTimeout,
	}
}

// Submit sanitizes the transcript, resolves or creates the patient,
// persists the transcript and a PENDING note with the next per-doctor
// sequence number, then enqueues the generation job. The note row is
// visible and pollable before any LLM work begins.
func (sgs *soapGenerationService) Submit(ctx context.Context, doctorID uuid.UUID, input SubmitInput) (*types.SOAPNote, error) {
	if input.PatientAge == nil {
		return nil, ErrAgeRequired
	}

	patientName := strings.TrimSpace(input.PatientName)
	if patientName == "" {
		patientName = defaultPatientName
	}

	sanitized := normalization.SanitizeTranscript(input.Transcript)

	var note *types.SOAPNote
	var job GenerationJob

	var lastErr error
	for attempt := 1; attempt <= sequenceInsertAttempts; attempt++ {
		note = nil
		err := sgs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			patient, err := sgs.patientRepo.GetByIdentity(ctx, tx, doctorID, patientName, *input.PatientAge)
			if err != nil {
				return err
			}
			if patient == nil {
				created, err := sgs.patientRepo.Create(ctx, tx, []*types.Patient{{
					DoctorID: doctorID,
					Name:     patientName,
					Age:      *input.PatientAge,
					Gender:   input.PatientGender,
				}})
				if err != nil {
					return err
				}
				patient = created[0]
			}

			transcripts, err := sgs.transcriptRepo.Create(ctx, tx, []*types.Transcript{{
				DoctorID:  doctorID,
				PatientID: patient.ID,
				Text:      sanitized,
			}})
			if err != nil {
				return err
			}
			transcript := transcripts[0]

			maxSeq, err := sgs.noteRepo.MaxSequenceForDoctor(ctx, tx, doctorID)
			if err != nil {
				return err
			}

			metadata, err := json.Marshal(map[string]any{
				"llm_provider": sgs.llm.Provider(),
				"patient_id":   patient.ID,
			})
			if err != nil {
				return err
			}

			notes, err := sgs.noteRepo.Create(ctx, tx, []*types.SOAPNote{{
				TranscriptID:     transcript.ID,
				DoctorID:         doctorID,
				DoctorSOAPNumber: maxSeq + 1,
				Status:           types.NoteStatusPending,
				Content:          PendingNoteContent,
				Metadata:         datatypes.JSON(metadata),
			}})
			if err != nil {
				return err
			}
			note = notes[0]
			// Hand the resolved patient back to the caller on the in-memory
			// note so the response can echo the subject without a re-read.
			transcript.Patient = patient
			note.Transcript = transcript
			job = GenerationJob{
				DoctorID:       doctorID,
				PatientID:      patient.ID,
				NoteID:         note.ID,
				TranscriptText: sanitized,
			}
			return nil
		})
		if err == nil {
			break
		}
		lastErr = err
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			sgs.log.Warn("Sequence number collision; retrying submission", "doctor_id", doctorID, "attempt", attempt)
			continue
		}
		return nil, err
	}
	if note == nil {
		return nil, lastErr
	}

	// Enqueue only after the transaction committed so a worker can never
	// observe a note row that does not exist yet. A queue that stays full
	// would otherwise leave the note PENDING with no worker ever taking it.
	select {
	case sgs.jobs <- job:
	case <-time.After(sgs.enqueueWait):
		sgs.log.Error("Job queue full, failing note", "note_id", note.ID, "doctor_id", doctorID)
		sgs.markFailed(ctx, sgs.log, note.ID, GenerationFailureContent, 0, "queue full")
		note.Status = types.NoteStatusFailed
		note.Content = GenerationFailureContent
		return note, nil
	}

	sgs.log.Info("SOAP note submitted", "note_id", note.ID, "doctor_id", doctorID, "soap_number", note.DoctorSOAPNumber)
	return note, nil
}

func (sgs *soapGenerationService) StartWorker(ctx context.Context, count int) {
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		workerLog := sgs.log.With("worker", i)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-sgs.jobs:
					sgs.runJob(ctx, workerLog, job)
				}
			}
		}()
	}
	sgs.log.Info("Generation workers started", "count", count)
}

// runJob isolates panics so a single malformed job cannot kill a worker.
func (sgs *soapGenerationService) runJob(ctx context.Context, workerLog *logger.Logger, job GenerationJob) {
	defer func() {
		if r := recover(); r != nil {
			workerLog.Error("Generation job panicked", "note_id", job.NoteID, "panic", r)
			sgs.markFailed(ctx, workerLog, job.NoteID, GenerationFailureContent, 0, "panic")
		}
	}()
	sgs.processJob(ctx, workerLog, job)
}

func (sgs *soapGenerationService) processJob(ctx context.Context, workerLog *logger.Logger, job GenerationJob) {
	start := time.Now()
	workerLog.Info("Generation started", "note_id", job.NoteID)

	// The enqueue happens after commit, so the row must exist; a miss here
	// is an internal fault and there is no record left to mark FAILED.
	if _, err := sgs.noteRepo.GetByID(ctx, nil, job.NoteID); err != nil {
		workerLog.Error("Note missing at generation time", "note_id", job.NoteID, "error", err)
		return
	}

	history := sgs.history.Retrieve(ctx, job.DoctorID, job.PatientID)
	prompt := BuildSOAPPrompt(history, job.TranscriptText)

	var lastReason string
	var lastErr error
	for attempt := 1; attempt <= generationAttempts; attempt++ {
		raw, err := sgs.llm.Complete(ctx, prompt)
		if err != nil {
			workerLog.Warn("LLM call failed", "note_id", job.NoteID, "attempt", attempt, "error", err)
			lastErr = err
			continue
		}

		cleaned := stripPreamble(raw)
		valid, reason := ValidateSOAPOutput(cleaned)
		if !valid {
			workerLog.Warn("Invalid SOAP output", "note_id", job.NoteID, "attempt", attempt, "reason", reason)
			lastReason = reason
			lastErr = nil
			continue
		}

		if err := sgs.noteRepo.UpdateFields(ctx, nil, job.NoteID, map[string]any{
			"status":   types.NoteStatusComplete,
			"content":  cleaned,
			"metadata": sgs.noteMetadata(attempt, ""),
		}); err != nil {
			// The note must still leave PENDING, so a failed completion write
			// falls through to the best-effort FAILED write.
			workerLog.Error("Failed to persist completed note", "note_id", job.NoteID, "error", err)
			sgs.markFailed(ctx, workerLog, job.NoteID, GenerationFailureContent, attempt, "persist error")
			return
		}

		sgs.history.Store(ctx, job.DoctorID, job.PatientID, job.NoteID, cleaned)

		workerLog.Info("Generation complete", "note_id", job.NoteID, "attempts", attempt, "duration", time.Since(start))
		return
	}

	if lastErr == nil && lastReason != "" {
		sgs.markFailed(ctx, workerLog, job.NoteID, "INVALID SOAP OUTPUT: "+lastReason, generationAttempts, lastReason)
		return
	}
	sgs.markFailed(ctx, workerLog, job.NoteID, GenerationFailureContent, generationAttempts, "provider error")
}

func (sgs *soapGenerationService) markFailed(ctx context.Context, workerLog *logger.Logger, noteID uuid.UUID, content string, attempts int, reason string) {
	if err := sgs.noteRepo.UpdateFields(ctx, nil, noteID, map[string]any{
		"status":   types.NoteStatusFailed,
		"content":  content,
		"metadata": sgs.noteMetadata(attempts, reason),
	}); err != nil {
		workerLog.Error("Failed to persist failed note", "note_id", noteID, "error", err)
		return
	}
	workerLog.Info("Generation failed", "note_id", noteID, "content", content)
}

func (sgs *soapGenerationService) noteMetadata(attempts int, reason string) datatypes.JSON {
	m := map[string]any{
		"llm_provider": sgs.llm.Provider(),
		"attempts":     attempts,
	}
	if reason != "" {
		m["failure_reason"] = reason
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// stripPreamble drops any model chatter before the first SUBJECTIVE:
// marker. When the marker is absent the text passes through untouched
// and validation rejects it.
func stripPreamble(text string) string {
	idx := strings.Index(text, RequiredSections[0])
	if idx > 0 {
		return strings.TrimSpace(text[idx:])
	}
	return strings.TrimSpace(text)
}
