package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/platinummonkey/auditable/pkg/contextkeys"
	"github.com/platinummonkey/auditable/pkg/httputil"
	"github.com/sirupsen/logrus"
)

// formatEntries renders records through the Presenter instead of exporting them raw
const formatEntries = "entries"

// EntityType describes one configured entity type
type EntityType struct {
	Type   string       `json:"type"`
	Policy audit.Policy `json:"policy"`
}

// EntityTypesResponse is the body of GET /v1/entity-types
type EntityTypesResponse struct {
	EntityTypes []EntityType `json:"entity_types"`
}

// HistoryResponse is the body of a JSON history reply
type HistoryResponse struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Order      string         `json:"order"`
	Count      int            `json:"count"`
	Records    []audit.Record `json:"records,omitempty"`
	Entries    []audit.Entry  `json:"entries,omitempty"`
}

// listEntityTypes handles GET /v1/entity-types
func (s *Server) listEntityTypes(w http.ResponseWriter, r *http.Request) {
	resp := EntityTypesResponse{EntityTypes: []EntityType{}}
	for _, name := range s.registry.EntityTypes() {
		p, _ := s.registry.Policy(name)
		resp.EntityTypes = append(resp.EntityTypes, EntityType{Type: name, Policy: p})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// typeHistory handles GET /v1/history/{type}
func (s *Server) typeHistory(w http.ResponseWriter, r *http.Request) {
	s.history(w, r, httputil.PathVar(r, "type"), "")
}

// entityHistory handles GET /v1/history/{type}/{id}
func (s *Server) entityHistory(w http.ResponseWriter, r *http.Request) {
	s.history(w, r, httputil.PathVar(r, "type"), httputil.PathVar(r, "id"))
}

func (s *Server) history(w http.ResponseWriter, r *http.Request, entityType, entityID string) {
	limit, err := httputil.ParseQueryInt(r, "limit", audit.DefaultHistoryLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if limit < 0 {
		httputil.WriteBadRequest(w, "invalid limit: must not be negative")
		return
	}

	rawOrder := httputil.ParseQueryString(r, "order", string(audit.OrderDesc))
	if rawOrder != string(audit.OrderAsc) && rawOrder != string(audit.OrderDesc) {
		httputil.WriteBadRequest(w, fmt.Sprintf("invalid order %q: must be asc or desc", rawOrder))
		return
	}
	order := audit.ParseSortOrder(rawOrder)
	format := httputil.ParseQueryString(r, "format", string(audit.ExportFormatJSON))

	var records []audit.Record
	if entityID != "" {
		records, err = s.registry.EntityHistory(r.Context(), entityType, entityID, limit, order)
	} else {
		records, err = s.registry.QueryHistory(r.Context(), entityType, limit, order)
	}
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"entity_type": entityType,
			"entity_id":   entityID,
			"request_id":  contextkeys.GetRequestID(r.Context()),
		}).Error("history query failed")
		httputil.WriteInternalError(w)
		return
	}

	resp := HistoryResponse{
		EntityType: entityType,
		EntityID:   entityID,
		Order:      string(order),
		Count:      len(records),
	}
	switch format {
	case string(audit.ExportFormatJSON):
		resp.Records = records
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	case formatEntries:
		resp.Entries = s.presenter.PresentAll(records)
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}

	data, err := audit.Export(records, audit.ExportFormat(format))
	if errors.Is(err, audit.ErrUnsupportedFormat) {
		httputil.WriteBadRequest(w, fmt.Sprintf("unsupported format %q", format))
		return
	}
	if err != nil {
		s.log.WithError(err).Error("history export failed")
		httputil.WriteInternalError(w)
		return
	}

	switch audit.ExportFormat(format) {
	case audit.ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	case audit.ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
