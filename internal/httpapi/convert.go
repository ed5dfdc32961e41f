package httpapi

import (
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/service"
	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/types"
	"github.com/scango-office/gatepass/server/internal/gatepass/validity"
)

const dateLayout = "2006-01-02"

func scanResponse(out service.ScanOutcome, credentialID, gateID string, now time.Time) types.ScanResponse {
	resp := types.ScanResponse{
		OK:           true,
		Outcome:      string(out.Kind),
		Granted:      out.Granted(),
		Action:       string(out.Action),
		Status:       string(out.Validity.Status),
		CredentialID: credentialID,
		GateID:       gateID,
		ServerTime:   now.Format(time.RFC3339Nano),
	}
	if out.Kind != service.OutcomeAccepted {
		resp.Reason = out.Reason
	}
	if out.Entry != nil {
		resp.EntryID = out.Entry.ID
	}
	if out.Credential != nil {
		resp.Visitor = visitorSnapshot(*out.Credential, out.Validity)
	}
	return resp
}

func visitorSnapshot(cred store.CredentialRecord, res validity.Result) *types.VisitorSnapshot {
	return &types.VisitorSnapshot{
		Name:        cred.Visitor.DisplayName(),
		Phone:       cred.Visitor.Phone,
		Purpose:     cred.Visitor.Purpose,
		VisitStart:  cred.Window.Start.Format(dateLayout),
		VisitEnd:    cred.Window.End.Format(dateLayout),
		Lifecycle:   string(cred.Lifecycle),
		TotalDays:   res.TotalDays,
		DaysLeft:    res.DaysRemaining,
		DaysToStart: res.DaysUntilStart,
		DaysExpired: res.DaysSinceEnd,
	}
}

func statusResponse(credentialID string, cred store.CredentialRecord, res validity.Result, now time.Time) types.StatusResponse {
	resp := types.StatusResponse{
		CredentialID: credentialID,
		Status:       string(res.Status),
		ServerTime:   now.Format(time.RFC3339Nano),
	}
	if res.Status != types.ValidityNotFound {
		resp.Visitor = visitorSnapshot(cred, res)
	}
	return resp
}

func historyResponse(credentialID string, entries []store.LedgerEntry, loc *time.Location) types.HistoryResponse {
	out := types.HistoryResponse{
		CredentialID: credentialID,
		Entries:      make([]types.HistoryEntry, 0, len(entries)),
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, types.HistoryEntry{
			ID:           e.ID,
			GateID:       e.GateID,
			BuildingGate: e.BuildingGate,
			Action:       string(e.Action),
			ScannedAt:    e.ScannedAt.In(loc).Format(time.RFC3339),
			Actor:        e.Actor,
		})
	}
	return out
}

func registerResponse(reg service.Registration) types.RegisterResponse {
	w := reg.Credential.Window
	return types.RegisterResponse{
		CredentialID: reg.Credential.ID,
		VisitStart:   w.Start.Format(dateLayout),
		VisitEnd:     w.End.Format(dateLayout),
		TotalDays:    int(w.End.Sub(w.Start).Hours()/24) + 1,
		QRPayload:    reg.QRPayload,
	}
}

func reportResponse(recs []store.CredentialRecord, loc *time.Location) types.ReportResponse {
	out := types.ReportResponse{
		Total:       len(recs),
		Credentials: make([]types.CredentialSummary, 0, len(recs)),
	}
	for _, rec := range recs {
		s := types.CredentialSummary{
			CredentialID: rec.ID,
			Name:         rec.Visitor.DisplayName(),
			Phone:        rec.Visitor.Phone,
			Purpose:      rec.Visitor.Purpose,
			VisitStart:   rec.Window.Start.Format(dateLayout),
			VisitEnd:     rec.Window.End.Format(dateLayout),
			Lifecycle:    string(rec.Lifecycle),
		}
		if rec.CheckedOutAt != nil {
			s.CheckedOutAt = rec.CheckedOutAt.In(loc).Format(time.RFC3339)
		}
		out.Credentials = append(out.Credentials, s)
	}
	return out
}
