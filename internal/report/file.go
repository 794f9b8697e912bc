package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// FileSink writes reports as indented JSON files into a directory.
type FileSink struct {
	Dir string
}

func (s FileSink) Write(ctx context.Context, rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	path := filepath.Join(s.Dir, rep.Filename())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	log.Info().Str("path", path).Int("batches", len(rep.Batches)).Msg("Run report written")
	return nil
}
