// Report HTTP handlers.
//
//   - POST /reports/upload   (multipart field "report")
//   - GET  /reports/my       (weak ETag, 304 on match)
//   - GET  /reports/{id}
//   - POST /analysis/report/{id}
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telehealth-backend/internal/domain"
	"github.com/tbourn/go-telehealth-backend/internal/services"
)

// UploadResponse is a stored report plus the storage backend that took it.
type UploadResponse struct {
	Report       *domain.Report `json:"report"`
	UploadMethod string         `json:"uploadMethod" example:"s3" enums:"s3,local"`
}

// AnalysisResponse carries the stored analysis text.
type AnalysisResponse struct {
	Success  bool   `json:"success"  example:"true"`
	Analysis string `json:"analysis" example:"Hemoglobin slightly below range..."`
}

// UploadReport godoc
// @ID          uploadReport
// @Summary     Upload a medical report
// @Description Accepts a PDF, JPG, JPEG or PNG up to UPLOAD_MAX_BYTES (10 MB by default). Stored in S3 when configured, locally otherwise.
// @Tags        Reports
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       report  formData  file  true  "Report file"
// @Success     201  {object}  handlers.UploadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "No file, bad type or too large"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure"
// @Router      /reports/upload [post]
func (h *Handlers) UploadReport(c *gin.Context) {
	in := services.UploadInput{}

	fh, err := c.FormFile("report")
	switch {
	case err == nil:
		in = uploadInput(fh)
	case isTooLarge(err):
		fail(c, http.StatusBadRequest, ErrCodeValidation,
			fmt.Sprintf("File too large (max %d MB)", h.uploadLimit()>>20))
		return
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// the service reports the missing file
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid multipart body")
		return
	}

	res, err := h.reports.Upload(c.Request.Context(), userID(c), in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, UploadResponse{Report: res.Report, UploadMethod: res.Method})
}

func uploadInput(fh *multipart.FileHeader) services.UploadInput {
	return services.UploadInput{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func (h *Handlers) uploadLimit() int64 {
	if h.maxUpload > 0 {
		return h.maxUpload
	}
	return services.DefaultMaxUploadBytes
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || errors.Is(err, multipart.ErrMessageTooLarge)
}

// MyReports godoc
// @ID          myReports
// @Summary     List my reports
// @Description Newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Reports
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {array}   domain.Report
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Router      /reports/my [get]
func (h *Handlers) MyReports(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.reports.Stats(ctx, uid); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		if notModified(c, fmt.Sprintf(`W/"reports:%s:%d:%d"`, uid, count, ts)) {
			return
		}
	}

	items, err := h.reports.ListMine(ctx, uid)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// GetReport godoc
// @ID          getReport
// @Summary     Get a report
// @Tags        Reports
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Report ID"  format(uuid)
// @Success     200  {object}  domain.Report
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Report not found"
// @Router      /reports/{id} [get]
func (h *Handlers) GetReport(c *gin.Context) {
	r, err := h.reports.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// AnalyzeReport godoc
// @ID          analyzeReport
// @Summary     Analyze a report with AI
// @Description Fetches the report, rasterizes PDFs, asks the vision model for a summary, and stores it on the report.
// @Tags        Analysis
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Report ID"  format(uuid)
// @Success     200  {object}  handlers.AnalysisResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Report not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Fetch, conversion, encoding or model failure"
// @Failure     503  {object}  handlers.ErrorResponse  "Model overloaded"
// @Router      /analysis/report/{id} [post]
func (h *Handlers) AnalyzeReport(c *gin.Context) {
	text, err := h.analysis.Analyze(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, AnalysisResponse{Success: true, Analysis: text})
}
