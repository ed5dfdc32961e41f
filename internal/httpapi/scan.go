package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scango-office/gatepass/server/internal/gatepass/service"
	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// handleScan serves explicit-action scans in JSON or protobuf.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	wantProto := isProtobuf(r)

	var req types.ScanRequest
	if wantProto {
		body, err := readBody(r)
		if err == nil {
			req, err = decodeScanRequest(body)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
	} else if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	action, err := types.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_action", service.ErrInvalidAction.Error())
		return
	}

	now := s.clock()
	out, err := s.engine.ProcessScan(r.Context(), service.ScanCommand{
		CredentialID: req.CredentialID,
		GateID:       req.GateID,
		Action:       action,
		Actor:        req.Actor,
	}, now)
	if err != nil {
		s.writeServiceError(w, r, "scan", err)
		return
	}

	resp := scanResponse(out, strings.TrimSpace(req.CredentialID), strings.TrimSpace(req.GateID), now)
	status := outcomeStatus(out)
	if wantProto {
		writeProto(w, status, encodeScanResponse(resp))
		return
	}
	writeJSON(w, status, resp)
}

type gateScanFunc func(ctx context.Context, cmd service.GateScanCommand, now time.Time) (service.ScanOutcome, error)

// handleGateScan serves gate machines that send only the credential. The
// gate's configured action decides what happens.
func (s *Server) handleGateScan(w http.ResponseWriter, r *http.Request) {
	s.serveGateScan(w, r, s.engine.ScanAtGate)
}

// handlePair serves direction-inferred scans.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	s.serveGateScan(w, r, s.engine.Pair)
}

func (s *Server) serveGateScan(w http.ResponseWriter, r *http.Request, scan gateScanFunc) {
	gateID := chi.URLParam(r, "gateID")

	var req types.GateScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	now := s.clock()
	out, err := scan(r.Context(), service.GateScanCommand{
		CredentialID: req.CredentialID,
		GateID:       gateID,
		Actor:        req.Actor,
	}, now)
	if err != nil {
		s.writeServiceError(w, r, "gate_scan", err)
		return
	}

	writeJSON(w, outcomeStatus(out), scanResponse(out, strings.TrimSpace(req.CredentialID), strings.TrimSpace(gateID), now))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	credentialID := chi.URLParam(r, "credentialID")
	now := s.clock()

	res, cred, err := s.engine.Evaluate(r.Context(), credentialID, now)
	if err != nil {
		s.writeServiceError(w, r, "status", err)
		return
	}

	status := http.StatusOK
	if res.Status == types.ValidityNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, statusResponse(credentialID, cred, res, now))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	credentialID := chi.URLParam(r, "credentialID")

	entries, err := s.engine.History(r.Context(), credentialID)
	if err != nil {
		s.writeServiceError(w, r, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse(credentialID, entries, s.loc))
}

// outcomeStatus maps a scan outcome to an HTTP status. Rejections caused by
// the credential's own state are ordinary answers and return 200.
func outcomeStatus(out service.ScanOutcome) int {
	if out.Kind != service.OutcomeRejected {
		return http.StatusOK
	}
	switch out.Reason {
	case service.ReasonNotFound:
		return http.StatusNotFound
	case service.ReasonUnknownGate:
		return http.StatusForbidden
	}
	return http.StatusOK
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentialID):
		writeError(w, http.StatusBadRequest, "invalid_credential_id", err.Error())
	case errors.Is(err, service.ErrInvalidGateID):
		writeError(w, http.StatusBadRequest, "invalid_gate_id", err.Error())
	case errors.Is(err, service.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
	case errors.Is(err, service.ErrMalformedInput):
		writeError(w, http.StatusBadRequest, "malformed_input", err.Error())
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", validationMessage(err))
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "credential not found")
	case errors.Is(err, service.ErrLedgerWrite), errors.Is(err, service.ErrStore):
		s.logger.ErrorContext(r.Context(), op+" failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "storage temporarily unavailable, retry")
	default:
		s.logger.ErrorContext(r.Context(), op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
	}
}

// validationMessage strips the sentinel prefix so the visitor sees only the
// field message.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, service.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(service.ErrValidation.Error())+2:]
	}
	return msg
}
