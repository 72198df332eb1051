// Package codec implements wire-format negotiation for the predictor.
//
// Requests decode according to their Content-Type header, responses encode
// according to the Accept header intersected with the server's configured
// support set. Error responses are always JSON regardless of Accept, so a
// caller can always read a failure without guessing the encoding.
package codec

import (
	"encoding/json"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cpg-predict/cpgd/internal/apierr"
)

// Supported media types. JSON is the primary, self-describing format.
const (
	MIMEJSON    = "application/json"
	MIMEMsgpack = "application/msgpack"
)

// PredictorNameField is injected into every outgoing map payload that lacks it.
const PredictorNameField = "predictor_name"

// DecodeRequest decodes a request body according to its declared Content-Type.
// A missing header defaults to JSON; an unsupported type or a body that does
// not parse under the resolved format is a bad_prediction_request error.
func DecodeRequest(body []byte, contentType string, supported []string) (map[string]interface{}, error) {
	format := normalizeMediaType(contentType)
	if format == "" {
		format = MIMEJSON
	}
	if !supports(supported, format) {
		return nil, apierr.BadRequestf("Unsupported Content-Type: %s. Must be one of %s",
			format, strings.Join(supported, ", "))
	}

	var decoded map[string]interface{}
	switch format {
	case MIMEJSON:
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, apierr.BadRequestf("Could not parse JSON payload: %v", err)
		}
	case MIMEMsgpack:
		if err := msgpack.Unmarshal(body, &decoded); err != nil {
			return nil, apierr.BadRequestf("Could not decode MsgPack payload: %v", err)
		}
	default:
		return nil, apierr.BadRequestf("Unsupported Content-Type: %s. Must be one of %s",
			format, strings.Join(supported, ", "))
	}
	return decoded, nil
}

// EncodeResponse encodes an outgoing payload and returns the body, status and
// media type to write.
//
// The predictor name is injected into map payloads that lack it. Errors are
// unconditionally JSON; successes use MessagePack only when the client accepts
// it and the server supports it. A serialization failure is the one way encode
// itself can fail after a successful compute, and surfaces as a server_error.
func EncodeResponse(payload interface{}, statusCode int, isError bool, acceptHeader string, supported []string, predictorName string) ([]byte, int, string, error) {
	payload = injectPredictorName(payload, predictorName)

	format := MIMEJSON
	if !isError && acceptsMsgpack(acceptHeader) && supports(supported, MIMEMsgpack) {
		format = MIMEMsgpack
	}

	if format == MIMEMsgpack {
		body, err := msgpack.Marshal(payload)
		if err != nil {
			return nil, 0, "", apierr.Internalf("Failed to serialize response as MsgPack: %v", err)
		}
		return body, statusCode, MIMEMsgpack, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, "", apierr.Internalf("Failed to serialize response as JSON: %v", err)
	}
	return body, statusCode, MIMEJSON, nil
}

// injectPredictorName adds the identifying field to map payloads missing it.
// Struct payloads carry the field themselves and pass through unchanged.
func injectPredictorName(payload interface{}, predictorName string) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	if _, present := m[PredictorNameField]; present {
		return payload
	}
	out := make(map[string]interface{}, len(m)+1)
	out[PredictorNameField] = predictorName
	for k, v := range m {
		out[k] = v
	}
	return out
}

// normalizeMediaType lowercases a media type and strips parameters such as
// "; charset=utf-8".
func normalizeMediaType(contentType string) string {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return mediaType
}

func acceptsMsgpack(acceptHeader string) bool {
	return strings.Contains(strings.ToLower(acceptHeader), MIMEMsgpack)
}

func supports(supported []string, format string) bool {
	for _, s := range supported {
		if strings.EqualFold(s, format) {
			return true
		}
	}
	return false
}
