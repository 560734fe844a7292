package changeset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/netsuite-assist/coordinator/internal/repository"
	"github.com/netsuite-assist/coordinator/pkg/models"
)

// FileLockExpiry is the advisory-lock inactivity window from spec §3.
const FileLockExpiry = 30 * 60 // seconds; kept as an int constant the
// caller converts to time.Duration, mirroring the teacher's preference for
// explicit units at call sites over an imported time.Duration default.

// ErrFileLocked is the user error when a different user's unexpired lock
// blocks a proposal.
var ErrFileLocked = errors.New("changeset: file locked by another user")

// ErrTransitionNotAllowed is the user error for an illegal state transition.
var ErrTransitionNotAllowed = errors.New("changeset: transition not allowed")

// ErrConflict is the integrity error raised when a modify patch's baseline
// hash no longer matches the file's current content at apply time.
var ErrConflict = errors.New("changeset: baseline conflict")

// ErrNotApproved is raised when Apply is called on a non-approved changeset.
var ErrNotApproved = errors.New("changeset: not approved")

func sha256Hex(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Propose validates path, acquires the file lock, computes the operation
// (create vs modify) and baseline hash, and materializes a draft changeset
// with one patch. Per spec §4.8.
func Propose(ctx context.Context, repo repository.Repository, clock repository.RateClock, random repository.RandomSource, tenantID, workspaceID, actorID, path, unifiedDiff, title, rationale string) (*models.Changeset, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}

	now := clock.Now()
	existing, found, err := repo.GetWorkspaceFile(ctx, tenantID, workspaceID, path)
	if err != nil {
		return nil, err
	}

	if found && existing.Locked(now, secondsToDuration(FileLockExpiry)) && existing.LockedBy != actorID {
		return nil, ErrFileLocked
	}

	acquired, err := repo.LockWorkspaceFile(ctx, tenantID, workspaceID, path, actorID, now)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrFileLocked
	}

	op := models.PatchCreate
	baseline := ""
	source := ""
	if found {
		op = models.PatchModify
		baseline = existing.SHA256
		source = existing.Content
	}

	// The propose_patch tool always supplies a unified diff; for a create
	// patch it is applied against empty content to materialize the new
	// file's content, and a parse failure always rejects (spec §4.8). For
	// modify, the diff itself is kept and re-applied at Apply time so a
	// concurrent baseline change is caught there.
	patch := models.Patch{Op: op, FilePath: path, BaselineSHA256: baseline, ApplyOrder: 0}
	if op == models.PatchCreate {
		content, err := ApplyUnifiedDiff(source, unifiedDiff)
		if err != nil {
			_ = repo.ReleaseWorkspaceFileLock(ctx, tenantID, workspaceID, path)
			return nil, fmt.Errorf("create patch requires a diff that applies to an empty file: %w", err)
		}
		patch.NewContent = content
	} else {
		if _, err := ApplyUnifiedDiff(source, unifiedDiff); err != nil {
			_ = repo.ReleaseWorkspaceFileLock(ctx, tenantID, workspaceID, path)
			return nil, err
		}
		patch.UnifiedDiff = unifiedDiff
	}

	cs := &models.Changeset{
		ID:          random.UUID(),
		TenantID:    tenantID,
		WorkspaceID: workspaceID,
		State:       models.ChangesetDraft,
		Title:       title,
		Rationale:   rationale,
		ProposerID:  actorID,
		ProposedAt:  now,
		Patches:     []models.Patch{patch},
	}
	for i := range cs.Patches {
		cs.Patches[i].ID = random.UUID()
		cs.Patches[i].ChangesetID = cs.ID
	}

	if err := repo.CreateChangeset(ctx, cs); err != nil {
		_ = repo.ReleaseWorkspaceFileLock(ctx, tenantID, workspaceID, path)
		return nil, err
	}
	return cs, nil
}

// Transition applies one edge of the fixed state table (spec §3). Moving to
// rejected releases all held file locks for the changeset's patches.
func Transition(ctx context.Context, repo repository.Repository, clock repository.RateClock, tenantID, changesetID string, t models.ChangesetTransition, actorID, rejectReason string) (*models.Changeset, error) {
	cs, err := repo.GetChangeset(ctx, tenantID, changesetID)
	if err != nil {
		return nil, err
	}

	next, ok := models.NextChangesetState(cs.State, t)
	if !ok {
		return nil, ErrTransitionNotAllowed
	}

	now := clock.Now()
	cs.State = next
	switch t {
	case models.TransitionApprove:
		cs.ReviewerID = actorID
		cs.ReviewedAt = now
	case models.TransitionReject:
		cs.ReviewerID = actorID
		cs.ReviewedAt = now
		cs.RejectReason = rejectReason
	case models.TransitionDiscard:
		cs.RejectReason = rejectReason
	}

	if models.ReleasesLocksOnEntry(next) {
		if err := repo.ReleaseWorkspaceFileLocksForChangeset(ctx, tenantID, cs.ID); err != nil {
			return nil, err
		}
	}

	if err := repo.UpdateChangeset(ctx, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// Apply applies an approved changeset's patches in ApplyOrder, verifying
// baseline hashes on every modify patch. All-or-nothing: the first
// conflict aborts before any file is mutated (spec §4.8, §8 "Changeset
// apply with baseline mismatch ... leaves all files unchanged").
func Apply(ctx context.Context, repo repository.Repository, clock repository.RateClock, tenantID, changesetID, applierID string) (*models.Changeset, error) {
	cs, err := repo.GetChangeset(ctx, tenantID, changesetID)
	if err != nil {
		return nil, err
	}
	if cs.State != models.ChangesetApproved {
		return nil, ErrNotApproved
	}

	patches := sortedByApplyOrder(cs.Patches)

	// Pre-flight: verify every modify patch's baseline before mutating
	// anything, so a conflict leaves all files untouched.
	for _, p := range patches {
		if p.Op != models.PatchModify {
			continue
		}
		current, found, err := repo.GetWorkspaceFile(ctx, tenantID, cs.WorkspaceID, p.FilePath)
		if err != nil {
			return nil, err
		}
		if !found || current.SHA256 != p.BaselineSHA256 {
			return nil, ErrConflict
		}
	}

	for _, p := range patches {
		if err := applyOnePatch(ctx, repo, tenantID, cs.WorkspaceID, p); err != nil {
			return nil, err
		}
	}

	if err := repo.ReleaseWorkspaceFileLocksForChangeset(ctx, tenantID, cs.ID); err != nil {
		return nil, err
	}

	cs.State = models.ChangesetApplied
	cs.ApplierID = applierID
	cs.AppliedAt = clock.Now()
	if err := repo.UpdateChangeset(ctx, cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func applyOnePatch(ctx context.Context, repo repository.Repository, tenantID, workspaceID string, p models.Patch) error {
	switch p.Op {
	case models.PatchCreate:
		content := p.NewContent
		return repo.UpsertWorkspaceFile(ctx, tenantID, models.WorkspaceFile{
			WorkspaceID: workspaceID,
			Path:        p.FilePath,
			Content:     content,
			SHA256:      sha256Hex(content),
			Size:        len(content),
		})
	case models.PatchDelete:
		return repo.DeleteWorkspaceFile(ctx, tenantID, workspaceID, p.FilePath)
	case models.PatchModify:
		current, found, err := repo.GetWorkspaceFile(ctx, tenantID, workspaceID, p.FilePath)
		if err != nil {
			return err
		}
		if !found || current.SHA256 != p.BaselineSHA256 {
			return ErrConflict
		}
		newContent := p.NewContent
		if p.UnifiedDiff != "" {
			newContent, err = ApplyUnifiedDiff(current.Content, p.UnifiedDiff)
			if err != nil {
				return err
			}
		}
		return repo.UpsertWorkspaceFile(ctx, tenantID, models.WorkspaceFile{
			WorkspaceID: workspaceID,
			Path:        p.FilePath,
			Content:     newContent,
			SHA256:      sha256Hex(newContent),
			Size:        len(newContent),
			MimeType:    current.MimeType,
		})
	default:
		return fmt.Errorf("changeset: unknown patch op %q", p.Op)
	}
}

func sortedByApplyOrder(patches []models.Patch) []models.Patch {
	out := make([]models.Patch, len(patches))
	copy(out, patches)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ApplyOrder > out[j].ApplyOrder; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
