package config

import (
	"fmt"
	"strings"

	"dataapi/internal/metadata"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"json": true, "text": true}
var validTLSModes = map[string]bool{"": true, "false": true, "true": true, "skip-verify": true, "preferred": true}
var validCardinalities = map[string]bool{"one": true, "many": true}

// Validate checks the configuration for errors and returns validation
// results. Errors are fatal; warnings are reported but do not prevent
// startup.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.validateDatabase(result)
	c.validateRuntime(result)
	c.validateLogging(result)
	c.validateEntities(result)

	return result
}

func (c *Config) validateDatabase(result *ValidationResult) {
	if c.Database.Host == "" {
		result.addError("database.host", "must not be empty", "")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		result.addError("database.port", fmt.Sprintf("invalid port %d", c.Database.Port), "must be between 1 and 65535")
	}
	if c.Database.User == "" {
		result.addError("database.user", "must not be empty", "")
	}
	if c.Database.Database == "" {
		result.addError("database.database", "must not be empty", "set the database name to connect to")
	}
	if !validTLSModes[c.Database.TLSMode] {
		result.addError("database.tls_mode", fmt.Sprintf("unknown TLS mode %q", c.Database.TLSMode), "use false, true, skip-verify, or preferred")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns && c.Database.MaxOpenConns > 0 {
		result.addWarning("database.max_idle_conns", "exceeds max_open_conns", "idle connections above the open limit are never kept")
	}
}

func (c *Config) validateRuntime(result *ValidationResult) {
	if c.Runtime.DefaultPageSize == 0 {
		result.addError("runtime.default_page_size", "must be greater than zero", "")
	}
	if c.Runtime.MaxPageSize < c.Runtime.DefaultPageSize {
		result.addError("runtime.max_page_size", "must be at least default_page_size", "")
	}
}

func (c *Config) validateLogging(result *ValidationResult) {
	if !validLogLevels[c.Logging.Level] {
		result.addError("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level), "use debug, info, warn, or error")
	}
	if !validLogFormats[c.Logging.Format] {
		result.addError("logging.format", fmt.Sprintf("unknown format %q", c.Logging.Format), "use json or text")
	}
	if c.Logging.ExportsEnabled && c.Logging.ExportEndpoint == "" {
		result.addError("logging.export_endpoint", "must not be empty when exports are enabled", "set the OTLP collector endpoint, e.g. localhost:4318")
	}
}

func (c *Config) validateEntities(result *ValidationResult) {
	names := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		field := fmt.Sprintf("entities[%d]", i)

		if e.Name == "" {
			result.addError(field+".name", "must not be empty", "")
			continue
		}
		if names[e.Name] {
			result.addError(field+".name", fmt.Sprintf("duplicate entity %q", e.Name), "")
		}
		names[e.Name] = true

		if e.Object == "" {
			result.addError(field+".object", fmt.Sprintf("entity %q has no backing object", e.Name), "")
		}
		if !e.Procedure && !hasPrimaryKey(e) {
			result.addWarning(field+".columns", fmt.Sprintf("entity %q declares no primary key", e.Name), "pagination and mutations by key will be unavailable")
		}
	}

	for i, e := range c.Entities {
		for j, rel := range e.Relationships {
			field := fmt.Sprintf("entities[%d].relationships[%d]", i, j)

			if !validCardinalities[rel.Cardinality] {
				result.addError(field+".cardinality", fmt.Sprintf("unknown cardinality %q", rel.Cardinality), "use one or many")
			}
			if !names[rel.TargetEntity] {
				result.addError(field+".target_entity", fmt.Sprintf("unknown entity %q", rel.TargetEntity), "")
			}
			if rel.LinkingObject != "" {
				if len(rel.LinkingSourceCols) == 0 || len(rel.LinkingTargetCols) == 0 {
					result.addError(field+".linking_object", "linking relationships need both linking source and target columns", "")
				}
			} else if len(rel.SourceColumns) != len(rel.TargetColumns) {
				result.addError(field+".source_columns", "source and target column lists must pair up", "")
			}
		}
	}
}

func hasPrimaryKey(e metadata.EntityConfig) bool {
	for _, col := range e.Columns {
		if col.IsPrimaryKey {
			return true
		}
	}
	return false
}
