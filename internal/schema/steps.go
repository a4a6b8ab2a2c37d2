package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/sitecache/internal/store"
)

// ErrNoLegacyTable is returned when none of the legacy candidates exist.
var ErrNoLegacyTable = errors.New("no legacy table found")

// FindLegacyTable probes candidates in order (newest generation first) and
// returns the first one that exists. A failed probe counts as "does not
// exist" and moves on to the next candidate.
func FindLegacyTable(ctx context.Context, rs store.RecordStore, candidates []string) (string, error) {
	for _, name := range candidates {
		ok, err := rs.TableExists(ctx, name)
		if err == nil && ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNoLegacyTable, strings.Join(candidates, ", "))
}

// RenameLegacyTable returns a step that carries every row of the newest
// existing legacy table over to dest. The legacy table is dropped once its
// rows are copied.
func RenameLegacyTable(candidates []string, dest string) StepFunc {
	return func(ctx context.Context, rs store.RecordStore, _ int, _ string) error {
		src, err := FindLegacyTable(ctx, rs, candidates)
		if err != nil {
			return err
		}
		if err := rs.CopyAllRows(ctx, src, dest); err != nil {
			return fmt.Errorf("migrating %s to %s: %w", src, dest, err)
		}
		return nil
	}
}
