package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/scango-office/gatepass/server/internal/gatepass/service"
	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	reg, err := s.registrar.Register(r.Context(), req, s.clock())
	if err != nil {
		s.writeServiceError(w, r, "register", err)
		return
	}

	s.logger.InfoContext(r.Context(), "credential registered",
		"credential_id", reg.Credential.ID,
		"visit_start", reg.Credential.Window.Start.Format(dateLayout),
		"visit_end", reg.Credential.Window.End.Format(dateLayout))
	writeJSON(w, http.StatusCreated, registerResponse(reg))
}

// handleReport lists credentials whose visit window overlaps ?from=&to=.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f store.CredentialFilter
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := service.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", err.Error())
			return
		}
		f.From = d
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := service.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", err.Error())
			return
		}
		f.To = d
	}
	f.Lifecycle = types.Lifecycle(strings.TrimSpace(q.Get("lifecycle")))
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	recs, err := s.registrar.Report(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, r, "report", err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse(recs, s.loc))
}
