// Package api serves audit history over HTTP.
//
// Routes, all GET:
//
//	/v1/entity-types          configured entity types and their policies
//	/v1/history/{type}        latest records of every entity of a type
//	/v1/history/{type}/{id}   latest records of one entity
//
// History routes accept limit (default 100), order (asc or desc, default
// desc) and format. The json format wraps the records in a HistoryResponse;
// entries renders them through an audit.Presenter; csv and ndjson return the
// audit.Export output unchanged.
//
// With WithTokens every route needs "Authorization: Bearer audit_..." for a
// token holding the audit:read scope.
//
//	srv := api.NewServer(registry, api.WithLogger(log), api.WithTokens(tokens))
//	http.ListenAndServe(":9090", srv)
package api
