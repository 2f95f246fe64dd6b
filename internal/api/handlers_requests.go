package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"muadati/internal/domain"
	"muadati/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	var in service.CreateRequestInput
	if code, msg, ok := decodeJSON(w, r, &in); !ok {
		s.errs.message(w, code, msg)
		return
	}
	req, err := s.requests.Create(r.Context(), user.ID, in)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "request sent successfully", req)
}

func (s *HTTPServer) handleCustomerRequests(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	list, err := s.requests.ListForCustomer(r.Context(), user.ID)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeList(w, list)
}

func (s *HTTPServer) handleOwnerRequests(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	list, err := s.requests.ListForOwner(r.Context(), user.ID)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeList(w, list)
}

func (s *HTTPServer) handleExportOwnerRequests(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	var buf bytes.Buffer
	if err := s.requests.ExportForOwner(r.Context(), user.ID, &buf); err != nil {
		s.errs.write(w, r, err)
		return
	}
	name := fmt.Sprintf("requests-%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleUpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		s.errs.write(w, r, domain.NotFound("request not found"))
		return
	}
	var in service.UpdateStatusInput
	if code, msg, ok := decodeJSON(w, r, &in); !ok {
		s.errs.message(w, code, msg)
		return
	}
	req, err := s.requests.SetStatus(r.Context(), id, user.ID, in.Status)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "request status updated successfully", req)
}
