package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soapify/soapify-backend/internal/logger"
)

const (
	payloadPatientKey = "patient_key"
	payloadDoctorID   = "doctor_id"
	payloadPatientID  = "patient_id"
	payloadNoteID     = "note_id"
	payloadDocument   = "document"
	maxErrorBodyBytes = 1024
)

var pointIDNamespaceUUID = uuid.MustParse("5f8a3e1c-9d74-4b6f-8d02-c41a7e96b530")

// Document is one completed note projected into the retrieval index.
type Document struct {
	NoteID     string
	PatientKey string
	DoctorID   string
	PatientID  string
	Text       string
	Vector     []float32
}

type VectorStore interface {
	UpsertDocument(ctx context.Context, doc Document) error
	// QueryDocuments returns the stored document texts for the patient key,
	// most relevant first.
	QueryDocuments(ctx context.Context, patientKey string, query []float32, topK int) ([]string, error)
}

type vectorStore struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type searchResultItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func NewVectorStore(log *logger.Logger, cfg Config) (VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg, true); err != nil {
		return nil, err
	}

	s := &vectorStore{
		log:     log.With("service", "QdrantVectorStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, err
	}

	s.log.Info("Qdrant vector store ready",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", cfg.VectorDim,
	)
	return s, nil
}

// ensureCollection creates the collection when it does not exist yet, the
// way the retrieval index is expected to bootstrap itself on first use.
func (s *vectorStore) ensureCollection(ctx context.Context) error {
	const op = "ensure_collection"

	err := s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, nil)
	if err == nil {
		return nil
	}
	var opError *OperationError
	if !errors.As(err, &opError) || opError.StatusCode != http.StatusNotFound {
		return err
	}

	create := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), create, nil)
}

func (s *vectorStore) UpsertDocument(ctx context.Context, doc Document) error {
	const op = "upsert"
	if strings.TrimSpace(doc.NoteID) == "" {
		return opErr(op, OperationErrorValidation, "note id is required", nil)
	}
	if len(doc.Vector) == 0 {
		return opErr(op, OperationErrorValidation, fmt.Sprintf("document %q has empty vector", doc.NoteID), nil)
	}
	if s.cfg.VectorDim > 0 && len(doc.Vector) != s.cfg.VectorDim {
		return opErr(op, OperationErrorValidation,
			fmt.Sprintf("document %q dimension mismatch: expected=%d got=%d", doc.NoteID, s.cfg.VectorDim, len(doc.Vector)), nil)
	}

	point := map[string]any{
		"id":     s.pointID(doc.NoteID),
		"vector": doc.Vector,
		"payload": map[string]any{
			payloadPatientKey: doc.PatientKey,
			payloadDoctorID:   doc.DoctorID,
			payloadPatientID:  doc.PatientID,
			payloadNoteID:     doc.NoteID,
			payloadDocument:   doc.Text,
		},
	}

	req := map[string]any{"points": []any{point}}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil)
}

func (s *vectorStore) QueryDocuments(ctx context.Context, patientKey string, query []float32, topK int) ([]string, error) {
	const op = "query"
	if len(query) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if topK <= 0 {
		topK = 1
	}

	req := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
		"filter": map[string]any{
			"must": []any{
				map[string]any{
					"key":   payloadPatientKey,
					"match": map[string]any{"value": patientKey},
				},
			},
		},
	}

	var result []searchResultItem
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &result); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(result))
	for _, item := range result {
		if item.Payload == nil {
			continue
		}
		if text, ok := item.Payload[payloadDocument].(string); ok && strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

func (s *vectorStore) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, &buf)
	if err != nil {
		return opErr(op, OperationErrorEncodeFailed, "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return opErr(op, OperationErrorTimeout, "", err)
		}
		return opErr(op, OperationErrorTransportFailed, "", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return opErr(op, OperationErrorTransportFailed, "", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(raw)
		if len(msg) > maxErrorBodyBytes {
			msg = msg[:maxErrorBodyBytes]
		}
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "", err)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "", err)
	}
	return nil
}

func (s *vectorStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

// pointID derives a stable UUID from the note id so repeated stores of the
// same note overwrite instead of duplicating.
func (s *vectorStore) pointID(noteID string) string {
	return uuid.NewSHA1(pointIDNamespaceUUID, []byte(noteID)).String()
}
