// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/pdiddy/p2kb/internal/kbfile"
	"github.com/pdiddy/p2kb/pkg/types"
)

const exportLimit = 100000

// ExportYAML writes the filtered index to <index_dir>/export.yaml and
// returns the path written.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.indexDir, "export.yaml")
	if err := kbfile.WriteYAML(path, entries, nil, ""); err != nil {
		return "", err
	}
	return path, nil
}

// ExportJSON writes the filtered index to <index_dir>/export.json and
// returns the path written.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) (string, error) {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	path := filepath.Join(s.indexDir, "export.json")
	if err := kbfile.WriteFile(path, append(data, '\n'), 0o644, nil, ""); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]types.Entry, error) {
	opts.MaxResults = exportLimit
	results, err := s.Retrieve(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	entries := make([]types.Entry, len(results))
	for i, r := range results {
		entries[i] = r.Entry
	}
	return entries, nil
}
