package api

import (
	"fmt"
	"net/http"

	"github.com/cpg-predict/cpgd/internal/apierr"
	"github.com/cpg-predict/cpgd/internal/codec"
)

// writeSuccess negotiates the response format from the Accept header and
// writes the encoded payload.
func (s *Server) writeSuccess(w http.ResponseWriter, r *http.Request, payload interface{}) {
	body, status, mime, err := codec.EncodeResponse(payload, http.StatusOK, false,
		r.Header.Get("Accept"), s.cfg.Formats.Response, s.cfg.Predictor.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeBody(w, status, mime, body)
}

// writeError translates any error into the taxonomy and writes the
// standardized error envelope. Errors are always encoded as JSON regardless
// of what the client accepts.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	apiErr := apierr.From(err)
	body, status, mime, encErr := codec.EncodeResponse(errorBody(apiErr), apiErr.StatusCode, true,
		"", s.cfg.Formats.Response, s.cfg.Predictor.Name)
	if encErr != nil {
		// Last-resort fallback so the caller still gets a taxonomy-shaped body.
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":[{"server_error":"failed to encode error response"}]}`)
		return
	}
	writeBody(w, status, mime, body)
}

// errorBody builds the standardized error payload: one object per accumulated
// message, all under the taxonomy key of the failed stage.
func errorBody(apiErr *apierr.Error) map[string]interface{} {
	items := make([]map[string]string, 0, len(apiErr.Messages))
	for _, message := range apiErr.Messages {
		items = append(items, map[string]string{apiErr.Key: message})
	}
	return map[string]interface{}{"error": items}
}

func writeBody(w http.ResponseWriter, status int, mime string, body []byte) {
	contentType := mime
	if mime == codec.MIMEJSON {
		contentType = mime + "; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
