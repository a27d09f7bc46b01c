package httpx

import (
	"encoding/json"
	"maps"
	"net/http"
)

// Envelope is the top-level object of every JSON response.
type Envelope map[string]any

func WriteJSON(w http.ResponseWriter, status int, data Envelope, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}

	maps.Copy(w.Header(), headers)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(js, '\n'))
	return err
}

// Success writes data with "success": true added.
func Success(w http.ResponseWriter, r *http.Request, status int, data Envelope) {
	if data == nil {
		data = make(Envelope, 1)
	}
	data["success"] = true

	if err := WriteJSON(w, status, data, nil); err != nil {
		logger.ErrorContext(r.Context(), "failed to write success response", "status", status, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
