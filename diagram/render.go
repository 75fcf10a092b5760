package diagram

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// RenderPNG rasterizes a DOT file to PNG using the Graphviz dot binary.
// Both a missing binary and a nonzero exit are returned as errors the
// caller can treat as non-fatal: the report does not depend on the
// rendered image.
func RenderPNG(ctx context.Context, dotPath, pngPath string) error {
	cmd := exec.CommandContext(ctx, "dot", "-Tpng", "-Gdpi=300", dotPath, "-o", pngPath)

	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("diagram: graphviz 'dot' not found (install with: apt install graphviz): %w", err)
		}

		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("diagram: dot failed: %w: %s", err, msg)
		}

		return fmt.Errorf("diagram: dot failed: %w", err)
	}

	return nil
}
