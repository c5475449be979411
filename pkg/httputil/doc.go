// Package httputil holds the JSON reply helpers, query parsing and
// middleware shared by the auditd HTTP handlers.
//
//	router.Use(httputil.RequestIDMiddleware, httputil.RecoveryMiddleware(log))
//	httputil.WriteJSON(w, http.StatusOK, records)
package httputil
