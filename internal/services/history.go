package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soapify/soapify-backend/internal/logger"
	"github.com/soapify/soapify-backend/internal/qdrant"
)

// HistoryFallback is returned whenever no prior history can be produced:
// store disabled, query error, or simply no entries yet.
const HistoryFallback = "No previous medical history available."

// invalidOutputMarker is the prefix of diagnostic note content; such
// notes must never be indexed.
const invalidOutputMarker = "INVALID SOAP OUTPUT"

const historyRetrieveLimit = 2

const historyDocumentSeparator = "\n---\n"

type HistoryStoreMode string

const (
	HistoryStoreReady    HistoryStoreMode = "ready"
	HistoryStoreDisabled HistoryStoreMode = "disabled"
)

// HistoryStore is the best-effort retrieval index over prior completed
// notes, keyed by (doctor, patient). It is never part of a note's
// transactional boundary: Store and Retrieve log failures and degrade,
// they do not propagate them.
type HistoryStore interface {
	Store(ctx context.Context, doctorID, patientID, noteID uuid.UUID, soapNote string)
	Retrieve(ctx context.Context, doctorID, patientID uuid.UUID) string
	Mode() HistoryStoreMode
}

type historyStore struct {
	log      *logger.Logger
	vs       qdrant.VectorStore
	embedder Embedder
	mode     HistoryStoreMode
	now      func() time.Time
}

// NewHistoryStore returns a ready store. When the backing vector store
// could not be bootstrapped, pass nil for vs (or embedder): the store
// comes up disabled for the remainder of the process and silently no-ops,
// so a broken retrieval index can never abort note generation.
func NewHistoryStore(log *logger.Logger, vs qdrant.VectorStore, embedder Embedder) HistoryStore {
	serviceLog := log.With("service", "HistoryStore")
	mode := HistoryStoreReady
	if vs == nil || embedder == nil {
		serviceLog.Warn("History store running in disabled mode; retrieval index unavailable")
		mode = HistoryStoreDisabled
	}
	return &historyStore{
		log:      serviceLog,
		vs:       vs,
		embedder: embedder,
		mode:     mode,
		now:      time.Now,
	}
}

// BuildPatientKey builds the stable composite retrieval key.
// doctor + patient = unique forever.
func BuildPatientKey(doctorID, patientID uuid.UUID) string {
	return doctorID.String() + "_" + patientID.String()
}

func (hs *historyStore) Mode() HistoryStoreMode {
	return hs.mode
}

func (hs *historyStore) Store(ctx context.Context, doctorID, patientID, noteID uuid.UUID, soapNote string) {
	if hs.mode == HistoryStoreDisabled {
		hs.log.Warn("History store skipped; store disabled", "note_id", noteID)
		return
	}

	patientKey := BuildPatientKey(doctorID, patientID)

	if strings.Contains(soapNote, invalidOutputMarker) {
		hs.log.Info("History store skipped; invalid SOAP output", "patient_key", patientKey, "note_id", noteID)
		return
	}

	documentText := strings.TrimSpace(fmt.Sprintf(`
Visit Date: %s
Doctor ID: %s
Patient ID: %s

SOAP NOTE:
%s
`, hs.now().UTC().Format("2006-01-02"), doctorID, patientID, soapNote))

	vector, err := hs.embedder.Embed(ctx, documentText)
	if err != nil {
		hs.log.Error("History store failed; could not embed note", "patient_key", patientKey, "note_id", noteID, "error", err)
		return
	}

	err = hs.vs.UpsertDocument(ctx, qdrant.Document{
		NoteID:     noteID.String(),
		PatientKey: patientKey,
		DoctorID:   doctorID.String(),
		PatientID:  patientID.String(),
		Text:       documentText,
		Vector:     vector,
	})
	if err != nil {
		hs.log.Error("History store failed; could not upsert document", "patient_key", patientKey, "note_id", noteID, "error", err)
		return
	}

	hs.log.Info("History store success", "patient_key", patientKey, "note_id", noteID)
}

func (hs *historyStore) Retrieve(ctx context.Context, doctorID, patientID uuid.UUID) string {
	if hs.mode == HistoryStoreDisabled {
		hs.log.Warn("History retrieve skipped; store disabled")
		return HistoryFallback
	}

	patientKey := BuildPatientKey(doctorID, patientID)

	queryVector, err := hs.embedder.Embed(ctx, "Medical history for patient "+patientKey)
	if err != nil {
		hs.log.Error("History retrieve failed; could not embed query", "patient_key", patientKey, "error", err)
		return HistoryFallback
	}

	documents, err := hs.vs.QueryDocuments(ctx, patientKey, queryVector, historyRetrieveLimit)
	if err != nil {
		hs.log.Error("History retrieve failed", "patient_key", patientKey, "error", err)
		return HistoryFallback
	}
	if len(documents) == 0 {
		hs.log.Info("No history found", "patient_key", patientKey)
		return HistoryFallback
	}

	hs.log.Info("History found", "patient_key", patientKey, "notes", len(documents))
	return strings.Join(documents, historyDocumentSeparator)
}
