package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ctfrelay/ctfrelay/internal/application"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// noticeResponse is the body for command failures: the transient notice text
// and how long the platform should display it before deleting.
type noticeResponse struct {
	Error              string `json:"error"`
	DeleteAfterSeconds int    `json:"delete_after_seconds"`
}

// FieldResponse is the JSON representation of one response field.
type FieldResponse struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// AttachmentResponse carries an optional binary attachment; Data is base64.
type AttachmentResponse struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// CommandResponse is the JSON representation of one dispatcher response.
type CommandResponse struct {
	Title              string              `json:"title,omitempty"`
	Description        string              `json:"description,omitempty"`
	Fields             []FieldResponse     `json:"fields,omitempty"`
	Attachment         *AttachmentResponse `json:"attachment,omitempty"`
	Ephemeral          bool                `json:"ephemeral,omitempty"`
	DeleteAfterSeconds int                 `json:"delete_after_seconds,omitempty"`
}

// toResponse converts one dispatcher response to its JSON form.
func toResponse(resp application.Response) CommandResponse {
	out := CommandResponse{
		Title:              resp.Title,
		Description:        resp.Description,
		Ephemeral:          resp.Ephemeral,
		DeleteAfterSeconds: int(resp.DeleteAfter.Seconds()),
	}

	for _, f := range resp.Fields {
		out.Fields = append(out.Fields, FieldResponse{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}

	if resp.Attachment != nil {
		out.Attachment = &AttachmentResponse{
			Filename: resp.Attachment.Filename,
			Data:     resp.Attachment.Data,
		}
	}

	return out
}

// toResponseList converts a dispatcher response slice, normalizing nil to an
// empty list so the JSON is always an array.
func toResponseList(responses []application.Response) []CommandResponse {
	out := make([]CommandResponse, 0, len(responses))
	for _, resp := range responses {
		out = append(out, toResponse(resp))
	}
	return out
}
