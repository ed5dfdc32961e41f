package httpapi

import (
	"net/http"

	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	wantProto := isProtobuf(r)

	var req types.HeartbeatRequest
	if wantProto {
		body, err := readBody(r)
		if err == nil {
			req, err = decodeHeartbeatRequest(body)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_protobuf", "invalid protobuf body")
			return
		}
	} else if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	resp, err := s.heartbeatService.Record(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, "heartbeat", err)
		return
	}

	if wantProto {
		writeProto(w, http.StatusOK, encodeHeartbeatResponse(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
