package fieldselection

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/magiconair/properties"
	"go.uber.org/zap"

	"github.com/JakeFAU/webgraph/internal/webgraph"
)

// Load reads a schema file. Each line is either a bare field name, which
// enables the field under its own name, or "field = alias". Unknown fields are
// dropped with a warning and schema fields the file does not mention are
// reported. A missing or empty file yields select-all mode.
func Load(path string, logger *zap.Logger, opts ...Option) (*Policy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return SelectAll(opts...), nil
	}
	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("schema file not found, selecting all fields", zap.String("path", path))
			return SelectAll(opts...), nil
		}
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}

	entries := make([]Entry, 0, props.Len())
	for _, key := range props.Keys() {
		name := strings.TrimSpace(key)
		if !webgraph.IsKnownField(name) {
			logger.Warn("dropping unknown schema field", zap.String("path", path), zap.String("field", name))
			continue
		}
		alias, _ := props.Get(key)
		entries = append(entries, Entry{Field: webgraph.Field(name), Alias: strings.TrimSpace(alias)})
	}
	if len(entries) == 0 {
		logger.Info("schema file has no fields, selecting all fields", zap.String("path", path))
		return SelectAll(opts...), nil
	}

	p, err := New(entries, opts...)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", path, err)
	}
	var missing []string
	for _, f := range webgraph.AllFields {
		if !p.IsEnabled(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		logger.Warn("schema fields not declared, they will not be indexed",
			zap.String("path", path),
			zap.Strings("fields", missing),
		)
	}
	return p, nil
}

// Save writes the materialized fields to path in the format Load reads.
// Failures are logged and not returned.
func (p *Policy) Save(path string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	props := properties.NewProperties()
	props.DisableExpansion = true
	for _, e := range p.Entries() {
		if _, _, err := props.Set(string(e.Field), e.Alias); err != nil {
			logger.Warn("skipping schema entry", zap.String("field", string(e.Field)), zap.Error(err))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		logger.Warn("save schema failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("close schema file failed", zap.String("path", path), zap.Error(cerr))
		}
	}()
	if _, err := props.Write(f, properties.UTF8); err != nil {
		logger.Warn("save schema failed", zap.String("path", path), zap.Error(err))
	}
}
