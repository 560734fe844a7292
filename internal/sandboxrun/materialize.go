package sandboxrun

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/netsuite-assist/coordinator/internal/changeset"
	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// ErrChangesetNotApproved means a run named a changeset_id that is not in
// the approved state (spec §4.9 step 2).
var ErrChangesetNotApproved = errors.New("sandboxrun: changeset is not approved")

// ErrUnsafePath means a virtual file's path, once joined with the scratch
// root and cleaned, escaped the scratch root.
var ErrUnsafePath = errors.New("sandboxrun: path escapes scratch root")

func sha256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// materializeWorkspace loads every workspace file and, if changesetID is
// non-empty, overlays its patches in apply_order after requiring the
// changeset be approved. It returns the resulting virtual file set keyed
// by path, skipping directory marker rows.
func materializeWorkspace(ctx context.Context, repo repository.Repository, tenantID, workspaceID, changesetID string) (map[string]string, error) {
	files, err := repo.ListWorkspaceFiles(ctx, tenantID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace files: %w", err)
	}

	out := make(map[string]string, len(files))
	for _, f := range files {
		if f.IsDirectory {
			continue
		}
		out[f.Path] = f.Content
	}

	if changesetID == "" {
		return out, nil
	}

	cs, err := repo.GetChangeset(ctx, tenantID, changesetID)
	if err != nil {
		return nil, fmt.Errorf("load changeset: %w", err)
	}
	if cs.State != models.ChangesetApproved {
		return nil, ErrChangesetNotApproved
	}

	patches := sortByApplyOrder(cs.Patches)
	for _, p := range patches {
		switch p.Op {
		case models.PatchCreate:
			out[p.FilePath] = p.NewContent
		case models.PatchDelete:
			delete(out, p.FilePath)
		case models.PatchModify:
			current, found := out[p.FilePath]
			if !found || sha256Hex(current) != p.BaselineSHA256 {
				return nil, changeset.ErrConflict
			}
			content := p.NewContent
			if p.UnifiedDiff != "" {
				content, err = changeset.ApplyUnifiedDiff(current, p.UnifiedDiff)
				if err != nil {
					return nil, err
				}
			}
			out[p.FilePath] = content
		}
	}
	return out, nil
}

func sortByApplyOrder(patches []models.Patch) []models.Patch {
	out := make([]models.Patch, len(patches))
	copy(out, patches)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ApplyOrder > out[j].ApplyOrder; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// resolveScratchPath canonicalizes a virtual file path against scratchRoot
// and asserts the result stays under it, rejecting any traversal the
// workspace's own path validation did not already catch (spec §4.9 step 3).
func resolveScratchPath(scratchRoot, virtualPath string) (string, error) {
	joined := filepath.Join(scratchRoot, virtualPath)
	cleanRoot := filepath.Clean(scratchRoot)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return joined, nil
}

// writeScratchFiles writes every virtual file into scratchRoot, creating
// parent directories as needed.
func writeScratchFiles(scratchRoot string, files map[string]string) error {
	for path, content := range files {
		target, err := resolveScratchPath(scratchRoot, path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("create parent dir for %s: %w", path, err)
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
