package ingestion

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/healix-ai/backend/pkg/normalizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadRequest(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func newUploadRouter(f *fixture) *mux.Router {
	router := mux.NewRouter()
	NewHTTPHandler(f.service, 1<<20).Register(router)
	return router
}

func TestHTTPUploadPatients(t *testing.T) {
	f := newFixture(PolicyAbort, normalizer.Options{})
	router := newUploadRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload/patients", "patients.csv", "Id,GENDER,BIRTHDATE\np-1,F,1990-01-01\n"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Patients data uploaded successfully.", resp["status"])
	assert.Equal(t, float64(1), resp["committed"])

	runID, _ := resp["run_id"].(string)
	require.NotEmpty(t, runID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload/runs/"+runID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"succeeded"`)
}

func TestHTTPUploadWithoutFile(t *testing.T) {
	f := newFixture(PolicyAbort, normalizer.Options{})
	router := newUploadRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload/conditions", "", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded."}`, rec.Body.String())
}

func TestHTTPUploadTooLarge(t *testing.T) {
	f := newFixture(PolicyAbort, normalizer.Options{})
	router := mux.NewRouter()
	NewHTTPHandler(f.service, 128).Register(router)

	content := "Id,GENDER,BIRTHDATE\n" + strings.Repeat("p-1,F,1990-01-01\n", 20)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload/patients", "patients.csv", content))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"Upload exceeds the 128 byte limit."}`, rec.Body.String())
}

func TestHTTPUploadTooLargeWithoutLength(t *testing.T) {
	f := newFixture(PolicyAbort, normalizer.Options{})
	router := mux.NewRouter()
	NewHTTPHandler(f.service, 128).Register(router)

	content := "Id,GENDER,BIRTHDATE\n" + strings.Repeat("p-1,F,1990-01-01\n", 20)
	req := uploadRequest(t, "/upload/patients", "patients.csv", content)
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHTTPUploadMissingPatient(t *testing.T) {
	f := newFixture(PolicyAbort, normalizer.Options{})
	router := newUploadRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload/conditions", "conditions.csv", "PATIENT,START,DESCRIPTION\nx-9,2020-01-01,Asthma\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Patient with ID x-9 not found for condition."}`, rec.Body.String())
}

func TestHTTPUploadSkipPolicyQuery(t *testing.T) {
	f := newFixture(PolicyAbort, normalizer.Options{})
	f.seedPatients(t, "p-1")
	router := newUploadRouter(f)

	csv := "PATIENT,START,DESCRIPTION\nx-9,2020-01-01,Asthma\np-1,2020-01-01,Asthma\n"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload/conditions?policy=skip", "conditions.csv", csv))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Committed)
	assert.Equal(t, 1, resp.Skipped)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 2, resp.Errors[0].Row)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload/conditions?policy=maybe", "conditions.csv", csv))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPUploadValidationErrors(t *testing.T) {
	f := newFixture(PolicyAbort, normalizer.Options{})
	router := newUploadRouter(f)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload/patients", "patients.csv", "Id,GENDER\np-1,F\n"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var fields map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	assert.Equal(t, []string{"Missing required column BIRTHDATE."}, fields["BIRTHDATE"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/upload/allergies", "a.csv", "a\n1\n"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload/runs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
