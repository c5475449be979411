package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/platinummonkey/auditable/pkg/audit"
	"gopkg.in/yaml.v3"
)

// PolicyFile is the on-disk shape of the policy file:
//
//	entities:
//	  user:
//	    exclude: [password, remember_token]
//	    audit_creations: true
//	    history_limit: 50
//	    cleanup_on_limit: true
//	  invoice:
//	    include_only: [status, total]
//	    audit_enabled: false
type PolicyFile struct {
	Entities map[string]policyEntry `yaml:"entities"`
}

type policyEntry struct {
	IncludeOnly    []string `yaml:"include_only"`
	Exclude        []string `yaml:"exclude"`
	AuditCreations bool     `yaml:"audit_creations"`
	AuditEnabled   *bool    `yaml:"audit_enabled"`
	HistoryLimit   *int     `yaml:"history_limit"`
	CleanupOnLimit bool     `yaml:"cleanup_on_limit"`
}

// LoadPolicies reads and parses the policy file at path
func LoadPolicies(path string) (map[string]audit.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicies(data)
}

// ParsePolicies decodes policy YAML. Unknown keys are rejected, audit_enabled
// defaults to true and a negative history_limit is invalid.
func ParsePolicies(data []byte) (map[string]audit.Policy, error) {
	var file PolicyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", audit.ErrInvalidPolicy, err)
	}

	policies := make(map[string]audit.Policy, len(file.Entities))
	for entityType, entry := range file.Entities {
		if entityType == "" {
			return nil, fmt.Errorf("%w: empty entity type", audit.ErrInvalidPolicy)
		}
		if entry.HistoryLimit != nil && *entry.HistoryLimit < 0 {
			return nil, fmt.Errorf("%w: %s: history_limit must not be negative", audit.ErrInvalidPolicy, entityType)
		}

		p := audit.Policy{
			IncludeOnly:    entry.IncludeOnly,
			Exclude:        entry.Exclude,
			AuditCreations: entry.AuditCreations,
			AuditEnabled:   true,
			HistoryLimit:   entry.HistoryLimit,
			CleanupOnLimit: entry.CleanupOnLimit,
		}
		if entry.AuditEnabled != nil {
			p.AuditEnabled = *entry.AuditEnabled
		}
		policies[entityType] = p
	}
	return policies, nil
}
