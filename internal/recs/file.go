package recs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"spot-trader/internal/logger"
	"spot-trader/internal/types"
)

// FileSource feeds the cache from a JSON snapshot file maintained by the
// analysis process. The file is an array of entries in the cache's shape;
// Poll reloads it only when the modification time changes.
type FileSource struct {
	path   string
	cache  *Cache
	loaded time.Time
}

func NewFileSource(path string, cache *Cache) *FileSource {
	return &FileSource{path: path, cache: cache}
}

// Poll pushes a fresh snapshot into the cache when the file changed since
// the last load. A missing file is not an error; the analyzer may simply
// not have produced a snapshot yet.
func (s *FileSource) Poll(ctx context.Context) error {
	st, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat recommendations file: %w", err)
	}
	if !st.ModTime().After(s.loaded) {
		return nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read recommendations file: %w", err)
	}
	var entries []types.Rec
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse recommendations file %s: %w", s.path, err)
	}
	for i := range entries {
		entries[i].Recommendation = types.ParseRecommendation(string(entries[i].Recommendation))
	}

	s.cache.Push(entries)
	s.loaded = st.ModTime()
	logger.Debug(ctx, "Recommendation snapshot loaded", "path", s.path, "entries", len(entries))

	for _, e := range entries {
		prev, ok := s.cache.Previous(e.Symbol)
		if ok && prev.Recommendation != e.Recommendation {
			logger.Info(ctx, "Recommendation changed",
				"symbol", e.Symbol,
				"from", string(prev.Recommendation),
				"to", string(e.Recommendation),
			)
		}
	}
	return nil
}
