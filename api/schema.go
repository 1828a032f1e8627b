package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"

	"github.com/VYBRANDMEDIA/nannygo/pkg/domainerr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const defaultMaxBody = 1 << 20

// Compiled request schemas keyed by file name without extension. Every
// schema sets additionalProperties to false so unknown fields are rejected
// rather than dropped.
var (
	schemaOnce sync.Once
	schemaSet  map[string]*jsonschema.Schema
	schemaErr  error
)

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaSet, schemaErr = compileSchemas()
	})
	return schemaSet, schemaErr
}

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	set := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		raw, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, err
		}
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal(raw, rs); err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		set[strings.TrimSuffix(e.Name(), path.Ext(e.Name()))] = rs
	}
	return set, nil
}

// validateBytes checks body against the named schema.
func validateBytes(ctx context.Context, name string, body []byte) error {
	set, err := loadSchemas()
	if err != nil {
		return err
	}
	rs, ok := set[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	keyErrs, err := rs.ValidateBytes(ctx, body)
	if err != nil {
		return domainerr.Wrap(err, domainerr.CodeInvalidInput, "invalid JSON body")
	}
	if len(keyErrs) > 0 {
		ke := keyErrs[0]
		where := ke.PropertyPath
		if where == "" || where == "/" {
			where = "body"
		}
		return domainerr.Newf(domainerr.CodeInvalidInput, "%s: %s", where, ke.Message)
	}
	return nil
}

// decodeBody reads at most limit bytes, validates them against the named
// schema and decodes them into v.
func decodeBody(r *http.Request, w http.ResponseWriter, name string, limit int64, v any) error {
	if limit <= 0 {
		limit = defaultMaxBody
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domainerr.Newf(domainerr.CodeInvalidInput, "request body exceeds %d bytes", limit)
		}
		return domainerr.Wrap(err, domainerr.CodeInvalidInput, "unreadable request body")
	}
	if len(body) == 0 {
		return domainerr.New(domainerr.CodeInvalidInput, "request body is required")
	}
	if err := validateBytes(r.Context(), name, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return domainerr.Wrap(err, domainerr.CodeInvalidInput, "invalid JSON body")
	}
	return nil
}
