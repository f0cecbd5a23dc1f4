// Package httpadapter exposes the pipeline over a thin JSON HTTP surface.
package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vgrishin/docextract/internal/core/ports"
	"github.com/vgrishin/docextract/internal/observability/metrics"
)

const userIDHeader = "X-User-Id"

// maxUploadBytes bounds multipart memory use; larger files spill to disk.
const maxUploadBytes = 32 << 20

type Router struct {
	service   string
	submitter ports.DocumentSubmitter
	retrier   ports.DocumentRetrier
	activator ports.TemplateActivator
	docs      ports.DocumentRepository
	requests  ports.RequestRepository
	jobs      ports.JobRepository
	exporter  ports.ReportExporter
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	service string,
	submitter ports.DocumentSubmitter,
	retrier ports.DocumentRetrier,
	activator ports.TemplateActivator,
	docs ports.DocumentRepository,
	requests ports.RequestRepository,
	jobs ports.JobRepository,
	exporter ports.ReportExporter,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		service:   service,
		submitter: submitter,
		retrier:   retrier,
		activator: activator,
		docs:      docs,
		requests:  requests,
		jobs:      jobs,
		exporter:  exporter,
		metrics:   httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/requests", rt.createRequest)
	mux.HandleFunc("GET /v1/requests/{request_id}", rt.getRequest)
	mux.HandleFunc("POST /v1/requests/{request_id}/documents", rt.uploadToRequest)
	mux.HandleFunc("GET /v1/requests/{request_id}/export", rt.exportRequest)
	mux.HandleFunc("POST /v1/documents", rt.uploadStandalone)
	mux.HandleFunc("GET /v1/documents/{document_id}", rt.getDocument)
	mux.HandleFunc("POST /v1/documents/{document_id}/retry", rt.retryDocument)
	mux.HandleFunc("GET /v1/jobs/{job_id}", rt.getJob)
	mux.HandleFunc("POST /v1/templates/{template_id}/activate", rt.activateTemplate)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	handler := requestIDMiddleware(accessLogMiddleware(mux))
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	req, err := rt.submitter.CreateRequest(r.Context(), callerID(r), body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (rt *Router) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := rt.requests.GetByID(r.Context(), r.PathValue("request_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (rt *Router) uploadToRequest(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	rt.upload(w, r, &requestID)
}

func (rt *Router) uploadStandalone(w http.ResponseWriter, r *http.Request) {
	rt.upload(w, r, nil)
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request, requestID *string) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	var vendorID *string
	if v := strings.TrimSpace(r.FormValue("vendor_id")); v != "" {
		vendorID = &v
	}

	doc, err := rt.submitter.Upload(r.Context(), ports.UploadInput{
		RequestID: requestID,
		UserID:    callerID(r),
		VendorID:  vendorID,
		Filename:  fileHeader.Filename,
		MimeType:  fileHeader.Header.Get("Content-Type"),
		Body:      file,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordUpload(rt.service, doc.MimeType, fileHeader.Size)
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.docs.GetByID(r.Context(), r.PathValue("document_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) retryDocument(w http.ResponseWriter, r *http.Request) {
	job, err := rt.retrier.Retry(r.Context(), callerID(r), r.PathValue("document_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRetry(rt.service)
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := rt.jobs.GetByID(r.Context(), r.PathValue("job_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) activateTemplate(w http.ResponseWriter, r *http.Request) {
	if err := rt.activator.ActivateTemplate(r.Context(), r.PathValue("template_id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}

func (rt *Router) exportRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := r.PathValue("request_id")

	req, err := rt.requests.GetByID(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := rt.docs.ListByRequest(r.Context(), requestID)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := rt.exporter.ExportRequest(req, docs)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordExport(rt.service, time.Since(start))
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "request-"+requestID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
