package systems

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/ludo/engine/core"
)

// wrapLinkage makes sure a compile or link failure reported by a backend can
// be matched with core.ErrLinkage.
func wrapLinkage(err error) error {
	if errors.Is(err, core.ErrLinkage) {
		return err
	}
	return fmt.Errorf("%v: %w", err, core.ErrLinkage)
}
