package capture

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/imontero/voznote/internal/inference"
)

const maxRecordingBytes = 32 << 20

// Handler exposes the capture flow as a small JSON API. The browser UI
// is the only expected client.
func (f *Flow) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/recordings", f.handleRecording)
	mux.HandleFunc("GET /api/entries", f.handleList)
	mux.HandleFunc("POST /api/entries", f.handleConfirm)
	mux.HandleFunc("PATCH /api/entries/{id}", f.handleEdit)
	mux.HandleFunc("DELETE /api/entries/{id}", f.handleDelete)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// handleRecording accepts a finished recording as multipart form data
// and answers with the inference draft for the user to confirm.
func (f *Flow) handleRecording(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxRecordingBytes); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse upload")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio part")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxRecordingBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read audio")
		return
	}

	mediaType := r.FormValue("mimeType")
	if mediaType == "" {
		mediaType = header.Header.Get("Content-Type")
	}

	draft, err := f.ProcessRecording(r.Context(), audio, mediaType)
	if err != nil {
		status, msg := inferenceStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (f *Flow) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, f.Entries())
}

func (f *Flow) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Transcript string  `json:"transcript"`
		Duration   int     `json:"duration"`
		ReminderAt *string `json:"reminderAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req := ConfirmRequest{Transcript: body.Transcript, Duration: body.Duration}
	if body.ReminderAt != nil {
		ts, err := time.Parse(time.RFC3339, *body.ReminderAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "reminderAt must be RFC 3339")
			return
		}
		req.ReminderAt = &ts
	}

	entry, err := f.Confirm(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (f *Flow) handleEdit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Transcript *string         `json:"transcript"`
		ReminderAt json.RawMessage `json:"reminderAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req := EditRequest{Transcript: body.Transcript}
	if len(body.ReminderAt) > 0 {
		req.SetReminder = true
		if string(body.ReminderAt) != "null" {
			var value string
			if err := json.Unmarshal(body.ReminderAt, &value); err != nil {
				writeError(w, http.StatusBadRequest, "reminderAt must be a string or null")
				return
			}
			ts, err := time.Parse(time.RFC3339, value)
			if err != nil {
				writeError(w, http.StatusBadRequest, "reminderAt must be RFC 3339")
				return
			}
			req.ReminderAt = &ts
		}
	}

	entry, err := f.Edit(r.PathValue("id"), req)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (f *Flow) handleDelete(w http.ResponseWriter, r *http.Request) {
	f.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func inferenceStatus(err error) (int, string) {
	var infErr *inference.Error
	if errors.As(err, &infErr) {
		switch infErr.Kind {
		case inference.KindUnauthenticated:
			return http.StatusUnauthorized, "inference credentials missing or rejected"
		case inference.KindInvalidResponse:
			return http.StatusUnprocessableEntity, "inference service returned an unusable response"
		case inference.KindNetwork:
			return http.StatusBadGateway, "inference service unreachable"
		}
	}
	return http.StatusBadRequest, err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
