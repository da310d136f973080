package api

import (
	"encoding/json"
	"net/http"

	"github.com/GoCodeAlone/pipelineapi/representer"
)

// ContentTypeV1 is the media type of every admin API response.
const ContentTypeV1 = "application/vnd.go.cd.v1+json; charset=utf-8"

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", ContentTypeV1)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteMessage writes a {"message": ...} body.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, representer.NewDocument().Set("message", message))
}

// WriteMessageWithData writes a failure message along with the document
// that caused it.
func WriteMessageWithData(w http.ResponseWriter, status int, message string, data *representer.Document) {
	WriteJSON(w, status, representer.NewDocument().Set("message", message).Set("data", data))
}

// WriteHAL writes a HAL document, setting the ETag header when etag is
// non-empty.
func WriteHAL(w http.ResponseWriter, status int, etag string, doc *representer.Document) {
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	WriteJSON(w, status, doc)
}
