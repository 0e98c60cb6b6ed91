// Package validation checks incoming extraction requests against a JSON
// schema before any browser resources are committed.
package validation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"localbiz-extractor/internal/common/errors"
	"localbiz-extractor/internal/models"
)

// extractRequestSchema mirrors the request body of POST /api/extract.
var extractRequestSchema = map[string]interface{}{
	"type":                 "object",
	"required":             []interface{}{"url"},
	"additionalProperties": false,
	"properties": map[string]interface{}{
		"url": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"force_refresh": map[string]interface{}{
			"type": "boolean",
		},
		"description": map[string]interface{}{
			"type":      "string",
			"maxLength": models.MaxDescriptionLength,
		},
	},
}

// allowedHosts are the hosts an extraction target may resolve to. Short links
// are accepted because the browser follows them to a canonical listing.
var allowedHosts = []string{
	"maps.app.goo.gl",
	"goo.gl",
	"maps.google.com",
	"www.google.com",
	"google.com",
}

// ValidateExtractRequest validates the decoded request body. The raw document
// is checked against the JSON schema first so field-level problems surface
// with schema error messages, then the URL is checked against the host
// allowlist.
func ValidateExtractRequest(doc map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(extractRequestSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, "request validation error", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return errors.New(errors.ErrCodeInvalidRequest, fmt.Sprintf("request validation failed: %v", errs))
	}

	rawURL, _ := doc["url"].(string)
	if err := ValidateTargetURL(rawURL); err != nil {
		return err
	}

	return nil
}

// ValidateTargetURL checks that the URL is well formed and points at a
// supported business-listing host.
func ValidateTargetURL(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "url must be an absolute http(s) URL")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New(errors.ErrCodeInvalidRequest, "url scheme must be http or https")
	}

	host := strings.ToLower(parsed.Hostname())
	for _, allowed := range allowedHosts {
		if host == allowed {
			if (host == "www.google.com" || host == "google.com") && !strings.HasPrefix(parsed.Path, "/maps") {
				return errors.New(errors.ErrCodeInvalidRequest, "google.com urls must point at /maps")
			}
			return nil
		}
	}

	return errors.New(errors.ErrCodeInvalidRequest, "url host is not a supported maps listing")
}
