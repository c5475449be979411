// Package cli implements the audit-cli commands.
//
// history: print the latest records of an entity type
//
//	audit-cli history -type user -limit 20
//	audit-cli history -type user -id 42 -order asc -format csv
//
// prune: trim every history over its limit, for types with cleanup_on_limit
//
//	audit-cli prune
//	audit-cli prune -type user,order
//
// policies: validate a policy file and show what it configures
//
//	audit-cli policies -file ./policies.yaml
//
// Storage and the default policy file come from the AUDIT_* environment
// read by pkg/config.
package cli
