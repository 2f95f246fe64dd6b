package api

import (
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"muadati/internal/domain"
	"muadati/internal/models"
	"muadati/internal/service"

	"github.com/go-chi/chi/v5"
)

const (
	imagesField      = "images"
	multipartMemory  = 8 << 20
	multipartOverrun = 1 << 20
)

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (s *HTTPServer) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.EquipmentFilter{
		City:     strings.TrimSpace(q.Get("city")),
		Category: models.Category(strings.TrimSpace(q.Get("category"))),
		Status:   models.EquipmentStatus(strings.TrimSpace(q.Get("status"))),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	list, err := s.equipment.List(r.Context(), filter)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeList(w, list)
}

func (s *HTTPServer) handleListOwnerEquipment(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := pathID(r, "ownerId")
	if !ok {
		writeList(w, []*models.Equipment{})
		return
	}
	list, err := s.equipment.ListByOwner(r.Context(), ownerID)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeList(w, list)
}

func (s *HTTPServer) handleGetEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		s.errs.write(w, r, domain.NotFound("equipment not found"))
		return
	}
	eq, err := s.equipment.Get(r.Context(), id)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", eq)
}

func (s *HTTPServer) handleCreateEquipment(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	form, files, err := s.readEquipmentForm(w, r)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	defer release(r, files)

	in := service.CreateEquipmentInput{
		Title:       form.get("title"),
		Category:    models.Category(form.get("category")),
		Description: form.get("description"),
		City:        form.get("city"),
		PhoneNumber: form.get("phoneNumber"),
		Status:      models.EquipmentStatus(form.get("status")),
	}
	if in.PricePerDay, err = form.float("pricePerDay"); err != nil {
		s.errs.write(w, r, err)
		return
	}
	if in.PricePerHour, err = form.float("pricePerHour"); err != nil {
		s.errs.write(w, r, err)
		return
	}

	eq, err := s.equipment.Create(r.Context(), user.ID, in, uploadsOf(files))
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "equipment added successfully", eq)
}

func (s *HTTPServer) handleUpdateEquipment(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		s.errs.write(w, r, domain.NotFound("equipment not found"))
		return
	}
	form, files, err := s.readEquipmentForm(w, r)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	defer release(r, files)

	in := service.UpdateEquipmentInput{
		Title:       form.optional("title"),
		Description: form.optional("description"),
		City:        form.optional("city"),
		PhoneNumber: form.optional("phoneNumber"),
	}
	if c := form.optional("category"); c != nil {
		cat := models.Category(*c)
		in.Category = &cat
	}
	if in.PricePerDay, err = form.float("pricePerDay"); err != nil {
		s.errs.write(w, r, err)
		return
	}
	if in.PricePerHour, err = form.float("pricePerHour"); err != nil {
		s.errs.write(w, r, err)
		return
	}

	eq, err := s.equipment.Update(r.Context(), user.ID, id, in, uploadsOf(files))
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "equipment updated successfully", eq)
}

func (s *HTTPServer) handleDeleteEquipment(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		s.errs.write(w, r, domain.NotFound("equipment not found"))
		return
	}
	if err := s.equipment.Delete(r.Context(), user.ID, id); err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "equipment deleted successfully", nil)
}

// formValues unifies multipart fields and JSON bodies.
type formValues map[string]string

func (f formValues) get(key string) string {
	return strings.TrimSpace(f[key])
}

func (f formValues) optional(key string) *string {
	v, ok := f[key]
	if !ok {
		return nil
	}
	return &v
}

func (f formValues) float(key string) (*float64, error) {
	raw := f.get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return nil, domain.Validation(key + " must be a number")
	}
	return &v, nil
}

type openedFile struct {
	header *multipart.FileHeader
	file   multipart.File
}

// readEquipmentForm accepts multipart/form-data with "images" files, or a
// plain JSON object of string or number fields.
func (s *HTTPServer) readEquipmentForm(w http.ResponseWriter, r *http.Request) (formValues, []openedFile, error) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "multipart/form-data") {
		var raw map[string]any
		if _, msg, ok := decodeJSON(w, r, &raw); !ok {
			return nil, nil, domain.Validation(msg)
		}
		form := make(formValues, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				form[k] = val
			case float64:
				form[k] = strconv.FormatFloat(val, 'f', -1, 64)
			}
		}
		return form, nil, nil
	}

	limit := int64(s.cfg.Uploads.MaxFiles)*s.cfg.Uploads.MaxFileSize + multipartOverrun
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, domain.Validation("upload is too large")
		}
		return nil, nil, domain.Validation("invalid multipart form")
	}

	form := make(formValues, len(r.MultipartForm.Value))
	for k, vals := range r.MultipartForm.Value {
		if len(vals) > 0 {
			form[k] = vals[0]
		}
	}

	headers := r.MultipartForm.File[imagesField]
	files := make([]openedFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			closeAll(files)
			return nil, nil, domain.Internal("failed to read upload", err)
		}
		files = append(files, openedFile{header: h, file: f})
	}
	return form, files, nil
}

func uploadsOf(files []openedFile) []service.ImageUpload {
	out := make([]service.ImageUpload, 0, len(files))
	for _, f := range files {
		out = append(out, service.ImageUpload{
			Filename:    f.header.Filename,
			ContentType: f.header.Header.Get("Content-Type"),
			Size:        f.header.Size,
			Body:        f.file,
		})
	}
	return out
}

func closeAll(files []openedFile) {
	for _, f := range files {
		_ = f.file.Close()
	}
}

// release closes opened uploads and removes multipart temp files.
func release(r *http.Request, files []openedFile) {
	closeAll(files)
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
