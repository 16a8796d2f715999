package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soapify/soapify-backend/internal/repos"
	"github.com/soapify/soapify-backend/internal/requestdata"
	"github.com/soapify/soapify-backend/internal/services"
)

type NoteHandler struct {
	generationService services.SOAPGenerationService
	noteService       services.NoteService
}

func NewNoteHandler(generationService services.SOAPGenerationService, noteService services.NoteService) *NoteHandler {
	return &NoteHandler{generationService: generationService, noteService: noteService}
}

func doctorIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("no request data in context"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}

// Generate accepts the visit submission and returns the PENDING note
// immediately; clients poll Status for the outcome.
func (nh *NoteHandler) Generate(c *gin.Context) {
	doctorID, ok := doctorIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		PatientName   string `json:"patient_name"`
		PatientAge    *int   `json:"patient_age"`
		PatientGender string `json:"patient_gender"`
		Transcript    string `json:"transcript"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("invalid request body"))
		return
	}

	note, err := nh.generationService.Submit(c.Request.Context(), doctorID, services.SubmitInput{
		PatientName:   req.PatientName,
		PatientAge:    req.PatientAge,
		PatientGender: req.PatientGender,
		Transcript:    req.Transcript,
	})
	if err != nil {
		if errors.Is(err, services.ErrAgeRequired) {
			RespondError(c, http.StatusBadRequest, "age_required", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "submit_failed", err)
		return
	}

	resp := gin.H{
		"note_id":     note.ID,
		"soap_number": note.DoctorSOAPNumber,
		"status":      note.Status,
		"content":     note.Content,
	}
	if note.Transcript != nil && note.Transcript.Patient != nil {
		resp["patient_name"] = note.Transcript.Patient.Name
	}
	c.JSON(http.StatusAccepted, resp)
}

func (nh *NoteHandler) Status(c *gin.Context) {
	doctorID, ok := doctorIDFromContext(c)
	if !ok {
		return
	}
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_note_id", fmt.Errorf("invalid note id"))
		return
	}

	note, err := nh.noteService.GetStatus(c.Request.Context(), doctorID, noteID)
	if err != nil {
		if errors.Is(err, repos.ErrNoteNotFound) {
			RespondError(c, http.StatusNotFound, "note_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "status_failed", err)
		return
	}

	RespondOK(c, gin.H{
		"note_id":     note.ID,
		"soap_number": note.DoctorSOAPNumber,
		"status":      note.Status,
		"content":     note.Content,
	})
}

func (nh *NoteHandler) Update(c *gin.Context) {
	doctorID, ok := doctorIDFromContext(c)
	if !ok {
		return
	}
	noteID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_note_id", fmt.Errorf("invalid note id"))
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("invalid request body"))
		return
	}

	note, err := nh.noteService.UpdateContent(c.Request.Context(), doctorID, noteID, req.Content)
	if err != nil {
		if errors.Is(err, repos.ErrNoteNotFound) {
			RespondError(c, http.StatusNotFound, "note_not_found", err)
			return
		}
		RespondError(c, http.StatusBadRequest, "update_failed", err)
		return
	}

	RespondOK(c, gin.H{
		"note_id":     note.ID,
		"soap_number": note.DoctorSOAPNumber,
		"status":      note.Status,
		"content":     note.Content,
	})
}

func (nh *NoteHandler) Dashboard(c *gin.Context) {
	doctorID, ok := doctorIDFromContext(c)
	if !ok {
		return
	}
	rows, err := nh.noteService.Dashboard(c.Request.Context(), doctorID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "dashboard_failed", err)
		return
	}
	RespondOK(c, gin.H{"notes": rows})
}

func (nh *NoteHandler) PatientHistory(c *gin.Context) {
	doctorID, ok := doctorIDFromContext(c)
	if !ok {
		return
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_patient_id", fmt.Errorf("invalid patient id"))
		return
	}

	rows, err := nh.noteService.PatientHistory(c.Request.Context(), doctorID, patientID)
	if err != nil {
		if errors.Is(err, repos.ErrPatientNotFound) {
			RespondError(c, http.StatusNotFound, "patient_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "history_failed", err)
		return
	}
	RespondOK(c, gin.H{"notes": rows})
}
