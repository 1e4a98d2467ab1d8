// Package handlers provides HTTP handlers for the REST API
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sommekat/sommelier/internal/domain/pairing"
	"github.com/sommekat/sommelier/internal/infrastructure/http/middleware"
	"github.com/sommekat/sommelier/internal/ports/inbound"
	"github.com/sommekat/sommelier/pkg/errors"
)

const (
	maxJSONBody      = 1 << 20
	maxFilesPerField = 10
	multipartMemory  = 32 << 20
)

// PairingHandlers handles the wine pairing API.
type PairingHandlers struct {
	service        inbound.PairingService
	validate       *validator.Validate
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewPairingHandlers creates the handlers. maxUploadBytes bounds each uploaded file.
func NewPairingHandlers(service inbound.PairingService, maxUploadBytes int64, logger *zap.Logger) *PairingHandlers {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &PairingHandlers{
		service:        service,
		validate:       v,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("pairing-api"),
	}
}

type menuRequest struct {
	URL            string   `json:"url" validate:"omitempty,max=2048"`
	WineURL        string   `json:"wineUrl" validate:"omitempty,max=2048"`
	Currency       string   `json:"currency" validate:"omitempty,len=3,alpha"`
	Courses        []string `json:"courses" validate:"dive,oneof=starter starters appetizer appetizers main mains dessert desserts"`
	MinPrice       *float64 `json:"minPrice" validate:"omitempty,gte=0"`
	MaxPrice       *float64 `json:"maxPrice" validate:"omitempty,gte=0"`
	EstimatePrices bool     `json:"estimatePrices"`

	files     []pairing.File
	wineFiles []pairing.File
}

type recipeRequest struct {
	URL     string `json:"url" validate:"omitempty,max=2048"`
	Country string `json:"country" validate:"omitempty,max=64"`

	files []pairing.File
}

// PairMenu handles POST /api/v1/pair
func (h *PairingHandlers) PairMenu(w http.ResponseWriter, r *http.Request) {
	var req menuRequest
	if appErr := h.decodeMenu(w, r, &req); appErr != nil {
		middleware.WriteError(w, r, appErr)
		return
	}

	for i := range req.Courses {
		req.Courses[i] = strings.ToLower(strings.TrimSpace(req.Courses[i]))
	}
	if err := h.validate.Struct(req); err != nil {
		middleware.WriteError(w, r, validationError(err))
		return
	}

	courses, err := pairing.ParseCourses(req.Courses)
	if err != nil {
		middleware.WriteError(w, r, errors.NewInputError(err.Error()))
		return
	}

	cmd := inbound.MenuPairingCommand{
		Food: source(req.URL, req.files),
		Wine: source(req.WineURL, req.wineFiles),
		Options: pairing.PairingOptions{
			Currency:       strings.ToUpper(req.Currency),
			Courses:        courses,
			MinPrice:       req.MinPrice,
			MaxPrice:       req.MaxPrice,
			EstimatePrices: req.EstimatePrices,
		},
	}

	result, err := h.service.PairMenu(r.Context(), cmd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// PairRecipe handles POST /api/v1/pair-recipe
func (h *PairingHandlers) PairRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if appErr := h.decodeRecipe(w, r, &req); appErr != nil {
		middleware.WriteError(w, r, appErr)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		middleware.WriteError(w, r, validationError(err))
		return
	}

	result, err := h.service.PairRecipe(r.Context(), inbound.RecipePairingCommand{
		Source:        source(req.URL, req.files),
		TargetCountry: strings.TrimSpace(req.Country),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HealthCheck handles GET /health
func (h *PairingHandlers) HealthCheck(service, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"service":   service,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}

func (h *PairingHandlers) decodeMenu(w http.ResponseWriter, r *http.Request, req *menuRequest) *errors.AppError {
	if !isMultipart(r) {
		return decodeJSON(w, r, req)
	}

	form, appErr := h.parseMultipart(w, r)
	if appErr != nil {
		return appErr
	}

	req.URL = formValue(form, "url")
	req.WineURL = formValue(form, "wineUrl")
	req.Currency = formValue(form, "currency")
	req.EstimatePrices = formBool(formValue(form, "estimatePrices"))
	for _, v := range form.Value["courses"] {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				req.Courses = append(req.Courses, c)
			}
		}
	}

	var err error
	if req.MinPrice, err = formPrice(form, "minPrice"); err != nil {
		return errors.NewInputError(err.Error())
	}
	if req.MaxPrice, err = formPrice(form, "maxPrice"); err != nil {
		return errors.NewInputError(err.Error())
	}

	if req.files, appErr = h.readFiles(form, "file", "files"); appErr != nil {
		return appErr
	}
	if req.wineFiles, appErr = h.readFiles(form, "wineFile", "wineFiles"); appErr != nil {
		return appErr
	}
	return nil
}

func (h *PairingHandlers) decodeRecipe(w http.ResponseWriter, r *http.Request, req *recipeRequest) *errors.AppError {
	if !isMultipart(r) {
		return decodeJSON(w, r, req)
	}

	form, appErr := h.parseMultipart(w, r)
	if appErr != nil {
		return appErr
	}

	req.URL = formValue(form, "url")
	req.Country = formValue(form, "country")
	req.files, appErr = h.readFiles(form, "file", "files")
	return appErr
}

func (h *PairingHandlers) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, *errors.AppError) {
	// Room for every file at its size limit plus form overhead.
	limit := h.maxUploadBytes*2*maxFilesPerField + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.NewInputError(fmt.Sprintf("request body exceeds %d bytes", limit))
		}
		return nil, errors.NewInputError("malformed multipart form: " + err.Error())
	}
	return r.MultipartForm, nil
}

func (h *PairingHandlers) readFiles(form *multipart.Form, fields ...string) ([]pairing.File, *errors.AppError) {
	var files []pairing.File
	for _, field := range fields {
		for _, fh := range form.File[field] {
			if len(files) == maxFilesPerField {
				return nil, errors.NewInputError(fmt.Sprintf("at most %d files per source", maxFilesPerField))
			}

			f, err := fh.Open()
			if err != nil {
				return nil, errors.NewInputError(fmt.Sprintf("could not read %s: %v", fh.Filename, err))
			}
			// One byte over the limit is enough for validation to reject it.
			data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
			f.Close()
			if err != nil {
				return nil, errors.NewInputError(fmt.Sprintf("could not read %s: %v", fh.Filename, err))
			}

			mimeType := pairing.NormalizeMime(fh.Header.Get("Content-Type"))
			if mimeType == "" || mimeType == "application/octet-stream" {
				mimeType = pairing.NormalizeMime(http.DetectContentType(data))
			}

			files = append(files, pairing.File{Name: fh.Filename, MimeType: mimeType, Data: data})
		}
	}
	return files, nil
}

func (h *PairingHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := errors.Wrap(err, "Pairing failed")
	if appErr.StatusCode() >= http.StatusInternalServerError {
		h.logger.Error("Pairing failed",
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.String("code", string(appErr.Code)),
			zap.Error(err),
		)
	}
	middleware.WriteError(w, r, appErr)
}

// writeJSON writes a JSON response
func (h *PairingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) *errors.AppError {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if err == io.EOF {
			return errors.NewInputError("request body is empty")
		}
		return errors.NewInputError("malformed JSON body: " + err.Error())
	}
	return nil
}

func validationError(err error) *errors.AppError {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.NewInputError(err.Error())
	}

	out := make([]errors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
		switch fe.Tag() {
		case "len", "alpha":
			msg = fmt.Sprintf("%s must be a three-letter currency code", fe.Field())
		case "oneof":
			msg = fmt.Sprintf("%s must be starter, main or dessert", fe.Field())
		case "gte":
			msg = fmt.Sprintf("%s cannot be negative", fe.Field())
		case "max":
			msg = fmt.Sprintf("%s is too long", fe.Field())
		}
		out = append(out, errors.ValidationError{
			Field:   fe.Field(),
			Value:   fe.Value(),
			Tag:     fe.Tag(),
			Message: msg,
		})
	}
	return errors.NewValidationErrors(out)
}

func source(url string, files []pairing.File) pairing.Source {
	if len(files) > 0 {
		return pairing.Source{Files: files, URL: strings.TrimSpace(url)}
	}
	return pairing.URLSource(url)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func formBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func formPrice(form *multipart.Form, key string) (*float64, error) {
	v := formValue(form, key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &f, nil
}
