package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/scango-office/gatepass/server/internal/gatepass/types"
)

// maxRequestBody caps request bodies for both protobuf and JSON payloads. The
// largest message is the registration form, well under this.
const maxRequestBody = 8192

const protobufContentType = "application/x-protobuf"

// isProtobuf reports whether the request carries a protobuf payload. Gate
// firmware sends "application/x-protobuf".
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == protobufContentType ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
}

func writeProto(w http.ResponseWriter, status int, b []byte) {
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// Field numbers of the gate wire messages. They are part of the firmware
// contract and must not be renumbered.
const (
	scanReqCredentialID protowire.Number = 1
	scanReqGateID       protowire.Number = 2
	scanReqAction       protowire.Number = 3
	scanReqActor        protowire.Number = 4
	scanReqRequestedAt  protowire.Number = 5

	scanRespOK           protowire.Number = 1
	scanRespOutcome      protowire.Number = 2
	scanRespGranted      protowire.Number = 3
	scanRespAction       protowire.Number = 4
	scanRespStatus       protowire.Number = 5
	scanRespReason       protowire.Number = 6
	scanRespCredentialID protowire.Number = 7
	scanRespGateID       protowire.Number = 8
	scanRespEntryID      protowire.Number = 9
	scanRespServerTime   protowire.Number = 10
	scanRespVisitorName  protowire.Number = 11

	hbReqGateID          protowire.Number = 1
	hbReqFirmwareVersion protowire.Number = 2
	hbReqUptimeS         protowire.Number = 3
	hbReqIP              protowire.Number = 4

	hbRespOK         protowire.Number = 1
	hbRespKnown      protowire.Number = 2
	hbRespGateID     protowire.Number = 3
	hbRespServerTime protowire.Number = 4
)

// walkFields calls fn for every field in b. fn returns the number of bytes it
// consumed, or 0 to have the field skipped.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		used, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if used == 0 {
			used = protowire.ConsumeFieldValue(num, typ, b)
		}
		if used < 0 {
			return protowire.ParseError(used)
		}
		b = b[used:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, fmt.Errorf("want length-delimited field, got wire type %d", typ)
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func decodeScanRequest(b []byte) (types.ScanRequest, error) {
	var req types.ScanRequest
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case scanReqCredentialID:
			return consumeString(typ, b, &req.CredentialID)
		case scanReqGateID:
			return consumeString(typ, b, &req.GateID)
		case scanReqAction:
			return consumeString(typ, b, &req.Action)
		case scanReqActor:
			return consumeString(typ, b, &req.Actor)
		case scanReqRequestedAt:
			return consumeString(typ, b, &req.RequestedAt)
		}
		return 0, nil
	})
	return req, err
}

func encodeScanRequest(req types.ScanRequest) []byte {
	var b []byte
	b = appendString(b, scanReqCredentialID, req.CredentialID)
	b = appendString(b, scanReqGateID, req.GateID)
	b = appendString(b, scanReqAction, req.Action)
	b = appendString(b, scanReqActor, req.Actor)
	b = appendString(b, scanReqRequestedAt, req.RequestedAt)
	return b
}

func encodeScanResponse(r types.ScanResponse) []byte {
	var b []byte
	b = appendBool(b, scanRespOK, r.OK)
	b = appendString(b, scanRespOutcome, r.Outcome)
	b = appendBool(b, scanRespGranted, r.Granted)
	b = appendString(b, scanRespAction, r.Action)
	b = appendString(b, scanRespStatus, r.Status)
	b = appendString(b, scanRespReason, r.Reason)
	b = appendString(b, scanRespCredentialID, r.CredentialID)
	b = appendString(b, scanRespGateID, r.GateID)
	b = appendString(b, scanRespEntryID, r.EntryID)
	b = appendString(b, scanRespServerTime, r.ServerTime)
	if r.Visitor != nil {
		b = appendString(b, scanRespVisitorName, r.Visitor.Name)
	}
	return b
}

func decodeScanResponse(b []byte) (types.ScanResponse, error) {
	var r types.ScanResponse
	var visitorName string
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case scanRespOK:
			return consumeBool(typ, b, &r.OK)
		case scanRespOutcome:
			return consumeString(typ, b, &r.Outcome)
		case scanRespGranted:
			return consumeBool(typ, b, &r.Granted)
		case scanRespAction:
			return consumeString(typ, b, &r.Action)
		case scanRespStatus:
			return consumeString(typ, b, &r.Status)
		case scanRespReason:
			return consumeString(typ, b, &r.Reason)
		case scanRespCredentialID:
			return consumeString(typ, b, &r.CredentialID)
		case scanRespGateID:
			return consumeString(typ, b, &r.GateID)
		case scanRespEntryID:
			return consumeString(typ, b, &r.EntryID)
		case scanRespServerTime:
			return consumeString(typ, b, &r.ServerTime)
		case scanRespVisitorName:
			return consumeString(typ, b, &visitorName)
		}
		return 0, nil
	})
	if visitorName != "" {
		r.Visitor = &types.VisitorSnapshot{Name: visitorName}
	}
	return r, err
}

func decodeHeartbeatRequest(b []byte) (types.HeartbeatRequest, error) {
	var req types.HeartbeatRequest
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case hbReqGateID:
			return consumeString(typ, b, &req.GateID)
		case hbReqFirmwareVersion:
			return consumeString(typ, b, &req.FirmwareVersion)
		case hbReqUptimeS:
			if typ != protowire.VarintType {
				return 0, fmt.Errorf("uptime_s: want varint, got wire type %d", typ)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			req.UptimeSeconds = v
			return n, nil
		case hbReqIP:
			return consumeString(typ, b, &req.IP)
		}
		return 0, nil
	})
	return req, err
}

func encodeHeartbeatRequest(req types.HeartbeatRequest) []byte {
	var b []byte
	b = appendString(b, hbReqGateID, req.GateID)
	b = appendString(b, hbReqFirmwareVersion, req.FirmwareVersion)
	if req.UptimeSeconds != 0 {
		b = protowire.AppendTag(b, hbReqUptimeS, protowire.VarintType)
		b = protowire.AppendVarint(b, req.UptimeSeconds)
	}
	b = appendString(b, hbReqIP, req.IP)
	return b
}

func encodeHeartbeatResponse(r types.HeartbeatResponse) []byte {
	var b []byte
	b = appendBool(b, hbRespOK, r.OK)
	b = appendBool(b, hbRespKnown, r.Known)
	b = appendString(b, hbRespGateID, r.GateID)
	b = appendString(b, hbRespServerTime, r.ServerTime)
	return b
}

func decodeHeartbeatResponse(b []byte) (types.HeartbeatResponse, error) {
	var r types.HeartbeatResponse
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case hbRespOK:
			return consumeBool(typ, b, &r.OK)
		case hbRespKnown:
			return consumeBool(typ, b, &r.Known)
		case hbRespGateID:
			return consumeString(typ, b, &r.GateID)
		case hbRespServerTime:
			return consumeString(typ, b, &r.ServerTime)
		}
		return 0, nil
	})
	return r, err
}

// Proto3 semantics: zero values are not written.

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func consumeBool(typ protowire.Type, b []byte, dst *bool) (int, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("want varint field, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = protowire.DecodeBool(v)
	return n, nil
}
