package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cpg-predict/cpgd/internal/config"
)

type stubHelp struct {
	doc map[string]interface{}
	err error
}

func (s stubHelp) Load() (map[string]interface{}, error) {
	return s.doc, s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Default config failed validation: %v", err)
	}
	return cfg
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	server := NewServer(testConfig(t), stubHelp{doc: map[string]interface{}{"usage": "POST /predict"}}, nil)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func validPredictBody() map[string]interface{} {
	return map[string]interface{}{
		"readout": "point",
		"prediction_tasks": []interface{}{
			map[string]interface{}{
				"name":      "t1",
				"type":      "accessibility",
				"cell_type": "HepG2",
				"species":   "human",
			},
		},
		"sequences": map[string]interface{}{"s1": "ACGCGT"},
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}
	return data
}

func decodeJSONBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var decoded map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", w.Body.String(), err)
	}
	return decoded
}

func TestPredictPointSuccess(t *testing.T) {
	mux := newTestMux(t)

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", mustJSON(t, validPredictBody()), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	resp := decodeJSONBody(t, w)
	if resp["predictor_name"] != "CpG Predictor" {
		t.Errorf("Expected predictor_name injected, got %v", resp["predictor_name"])
	}
	if _, present := resp["bin_size"]; present {
		t.Error("Point readout must not carry bin_size")
	}

	tasks, ok := resp["prediction_tasks"].([]interface{})
	if !ok || len(tasks) != 1 {
		t.Fatalf("Expected 1 prediction task, got %v", resp["prediction_tasks"])
	}
	task := tasks[0].(map[string]interface{})

	if task["name"] != "t1" || task["type_requested"] != "accessibility" {
		t.Errorf("Task echo fields wrong: %v", task)
	}
	if task["cell_type_actual"] != "NA" || task["species_actual"] != "NA" {
		t.Errorf("Actual fields must be NA: %v", task)
	}
	if task["scale_prediction_requested"] != nil {
		t.Errorf("Absent requested scale must encode as null, got %v", task["scale_prediction_requested"])
	}
	if task["scale_prediction_actual"] != "linear" {
		t.Errorf("Expected resolved scale linear, got %v", task["scale_prediction_actual"])
	}

	predictions := task["predictions"].(map[string]interface{})
	values := predictions["s1"].([]interface{})
	if len(values) != 1 {
		t.Fatalf("Point readout must yield one value per sequence, got %v", values)
	}
	if got := values[0].(float64); math.Abs(got-(2+1e-9)/6.0) > 1e-9 {
		t.Errorf("Expected CpG mean ~0.3333, got %v", got)
	}
}

func TestPredictTrackSuccess(t *testing.T) {
	mux := newTestMux(t)
	body := validPredictBody()
	body["readout"] = "track"

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", mustJSON(t, body), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	resp := decodeJSONBody(t, w)

	if resp["bin_size"] != float64(1) {
		t.Errorf("Track readout must carry bin_size 1, got %v", resp["bin_size"])
	}
	task := resp["prediction_tasks"].([]interface{})[0].(map[string]interface{})
	values := task["predictions"].(map[string]interface{})["s1"].([]interface{})
	if len(values) != 6 {
		t.Errorf("Track readout must yield one value per base, got %d values", len(values))
	}
}

func TestPredictLogScale(t *testing.T) {
	mux := newTestMux(t)
	body := validPredictBody()
	body["prediction_tasks"].([]interface{})[0].(map[string]interface{})["scale"] = "log"

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", mustJSON(t, body), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	task := decodeJSONBody(t, w)["prediction_tasks"].([]interface{})[0].(map[string]interface{})
	if task["scale_prediction_requested"] != "log" || task["scale_prediction_actual"] != "log" {
		t.Errorf("Scale fields wrong: %v", task)
	}
	got := task["predictions"].(map[string]interface{})["s1"].([]interface{})[0].(float64)
	if math.Abs(got-math.Log2((2+1e-9)/6.0)) > 1e-9 {
		t.Errorf("Expected log2 CpG mean ~-1.585, got %v", got)
	}
}

func TestPredictFlankingAndRange(t *testing.T) {
	mux := newTestMux(t)
	body := validPredictBody()
	body["sequences"] = map[string]interface{}{"s1": "AT"}
	body["upstream_seq"] = "CG"
	body["prediction_ranges"] = map[string]interface{}{"s1": []interface{}{0, 1}}

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", mustJSON(t, body), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	task := decodeJSONBody(t, w)["prediction_tasks"].([]interface{})[0].(map[string]interface{})
	got := task["predictions"].(map[string]interface{})["s1"].([]interface{})[0].(float64)
	// Flanked "CGAT" trimmed to "CG": one CpG in two bases.
	if math.Abs(got-(1+1e-9)/2.0) > 1e-9 {
		t.Errorf("Expected density 0.5 on trimmed flank, got %v", got)
	}
}

func TestPredictValidationErrorShape(t *testing.T) {
	mux := newTestMux(t)

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", []byte(`{}`), nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d. Body: %s", w.Code, w.Body.String())
	}
	resp := decodeJSONBody(t, w)
	if resp["predictor_name"] != "CpG Predictor" {
		t.Error("Error responses must carry the predictor name")
	}

	errList, ok := resp["error"].([]interface{})
	if !ok || len(errList) != 1 {
		t.Fatalf("Expected one error item, got %v", resp["error"])
	}
	item := errList[0].(map[string]interface{})
	msg, ok := item["bad_prediction_request"].(string)
	if !ok {
		t.Fatalf("Expected bad_prediction_request key, got %v", item)
	}
	if !strings.Contains(msg, "prediction_tasks, readout, sequences") {
		t.Errorf("Expected sorted missing key list, got %q", msg)
	}
}

func TestPredictReportsAllViolations(t *testing.T) {
	mux := newTestMux(t)
	body := validPredictBody()
	body["readout"] = "bogus"
	body["prediction_tasks"].([]interface{})[0].(map[string]interface{})["scale"] = "cubic"

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", mustJSON(t, body), nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	errList := decodeJSONBody(t, w)["error"].([]interface{})
	if len(errList) < 2 {
		t.Errorf("Expected the union of violations, got %v", errList)
	}
}

func TestPredictRangeOutOfBounds(t *testing.T) {
	mux := newTestMux(t)
	body := validPredictBody()
	body["sequences"] = map[string]interface{}{"s1": "AAAA"}
	body["prediction_ranges"] = map[string]interface{}{"s1": []interface{}{0, 5}}

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", mustJSON(t, body), nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d. Body: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "maximum valid index for a sequence of length 4 is 3") {
		t.Errorf("Expected out-of-bounds message, got %s", w.Body.String())
	}
}

func TestPredictInvalidCharactersFailWith422(t *testing.T) {
	mux := newTestMux(t)
	body := validPredictBody()
	body["sequences"] = map[string]interface{}{"s1": "ACGZ"}

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", mustJSON(t, body), nil)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d. Body: %s", w.Code, w.Body.String())
	}
	item := decodeJSONBody(t, w)["error"].([]interface{})[0].(map[string]interface{})
	if _, ok := item["prediction_request_failed"]; !ok {
		t.Errorf("Expected prediction_request_failed key, got %v", item)
	}
}

func TestPredictUnsupportedReadoutAtModelLayer(t *testing.T) {
	// interaction_matrix passes enum validation but this model cannot serve it.
	mux := newTestMux(t)
	body := validPredictBody()
	body["readout"] = "interaction_matrix"

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", mustJSON(t, body), nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d. Body: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "interaction_matrix") {
		t.Errorf("Expected readout named in message, got %s", w.Body.String())
	}
}

func TestPredictMsgpackRequestAndResponse(t *testing.T) {
	mux := newTestMux(t)
	body, err := msgpack.Marshal(validPredictBody())
	if err != nil {
		t.Fatalf("Failed to marshal msgpack body: %v", err)
	}

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", body, map[string]string{
		"Content-Type": "application/msgpack",
		"Accept":       "application/msgpack",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/msgpack" {
		t.Fatalf("Expected msgpack response, got %q", ct)
	}

	var resp map[string]interface{}
	if err := msgpack.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode msgpack response: %v", err)
	}
	if resp["predictor_name"] != "CpG Predictor" {
		t.Errorf("Expected predictor name in msgpack response, got %v", resp["predictor_name"])
	}
}

func TestPredictErrorAlwaysJSONEvenWhenMsgpackAccepted(t *testing.T) {
	mux := newTestMux(t)

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", []byte(`{}`), map[string]string{
		"Accept": "application/msgpack",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Error responses must be JSON, got %q", ct)
	}
	// Must parse as JSON.
	decodeJSONBody(t, w)
}

func TestPredictMsgpackDeclaredWithJSONBody(t *testing.T) {
	mux := newTestMux(t)

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", mustJSON(t, validPredictBody()), map[string]string{
		"Content-Type": "application/msgpack",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for undecodable msgpack, got %d. Body: %s", w.Code, w.Body.String())
	}
}

func TestPredictUnsupportedContentType(t *testing.T) {
	mux := newTestMux(t)

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", []byte(`x`), map[string]string{
		"Content-Type": "text/plain",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Unsupported Content-Type") {
		t.Errorf("Expected unsupported content type message, got %s", w.Body.String())
	}
}

func TestPredictMethodNotAllowed(t *testing.T) {
	mux := newTestMux(t)

	w := doRequest(t, mux, http.MethodGet, "/api/v1/predict", nil, nil)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", w.Code)
	}
}

func TestFormatsEndpoint(t *testing.T) {
	mux := newTestMux(t)

	w := doRequest(t, mux, http.MethodGet, "/api/v1/formats", nil, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := decodeJSONBody(t, w)
	if resp["predictor_name"] != "CpG Predictor" {
		t.Error("Formats response must carry the predictor name")
	}
	reqFormats, ok := resp["predictor_supported_request_formats"].([]interface{})
	if !ok || len(reqFormats) != 2 {
		t.Errorf("Expected 2 supported request formats, got %v", resp["predictor_supported_request_formats"])
	}
}

func TestHelpEndpoint(t *testing.T) {
	mux := newTestMux(t)

	w := doRequest(t, mux, http.MethodGet, "/api/v1/help", nil, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := decodeJSONBody(t, w)
	if resp["usage"] != "POST /predict" {
		t.Errorf("Expected help document contents, got %v", resp)
	}
	if resp["predictor_name"] != "CpG Predictor" {
		t.Error("Help response must carry the predictor name")
	}
}

func TestHelpEndpointLoadFailure(t *testing.T) {
	server := NewServer(testConfig(t), stubHelp{err: errors.New("no such file")}, nil)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	w := doRequest(t, mux, http.MethodGet, "/api/v1/help", nil, nil)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	item := decodeJSONBody(t, w)["error"].([]interface{})[0].(map[string]interface{})
	if _, ok := item["server_error"]; !ok {
		t.Errorf("Expected server_error key, got %v", item)
	}
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestMux(t)

	w := doRequest(t, mux, http.MethodGet, "/api/v1/health", nil, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := decodeJSONBody(t, w)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", resp["status"])
	}
}

func TestPredictEmptyTaskListYieldsEmptyResults(t *testing.T) {
	mux := newTestMux(t)
	body := validPredictBody()
	body["prediction_tasks"] = []interface{}{}

	w := doRequest(t, mux, http.MethodPost, "/api/v1/predict", mustJSON(t, body), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	tasks, ok := decodeJSONBody(t, w)["prediction_tasks"].([]interface{})
	if !ok {
		t.Fatal("prediction_tasks must encode as an empty list, not null")
	}
	if len(tasks) != 0 {
		t.Errorf("Expected no task results, got %v", tasks)
	}
}
