// Package source provides the external collaborators an engine.Session
// reads from: the observation HTTP API, a SQLite database, or a fixed
// in-memory record set.
package source

import (
	"errors"
	"fmt"

	"github.com/spektr-org/obsviz/engine"
	"github.com/spektr-org/obsviz/schema"
)

// ErrNoPalette is returned by sources with no palette resource configured.
var ErrNoPalette = errors.New("no palette configured")

func checkCategory(category schema.Field) error {
	meta, ok := schema.Lookup(category)
	if !ok {
		return fmt.Errorf("%w %q", engine.ErrUnknownField, category)
	}
	if meta.Kind != schema.KindCategorical {
		return fmt.Errorf("%w: %s is not categorical", engine.ErrFieldKind, category)
	}
	return nil
}

func checkAggregate(x, y, group schema.Field) error {
	if err := schema.ValidateSelection(schema.PlotBarStacked, schema.AxisX, x); err != nil {
		return err
	}
	if err := schema.ValidateSelection(schema.PlotBarStacked, schema.AxisY, y); err != nil {
		return err
	}
	return schema.ValidateSelection(schema.PlotBarStacked, schema.AxisGroup, group)
}
