package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/netsuite-assist/coordinator/pkg/models"
)

// ErrNotFound is returned when a lookup by ID misses.
var ErrNotFound = errors.New("repository: not found")

// ErrCrossTenant is returned when a caller's tenant context does not match
// the owning tenant of the requested resource — the tenant-isolation
// invariant tested throughout spec §8.
var ErrCrossTenant = errors.New("repository: cross-tenant access denied")

// InMemory is a single-process Repository implementation used by tests and
// local development. All state is guarded by one mutex; this is adequate
// for the core's "single logical task per interaction" concurrency model
// (spec §5) and deliberately not optimized for throughput.
type InMemory struct {
	mu sync.Mutex

	workspaces     map[string]models.Workspace
	files          map[string]map[string]models.WorkspaceFile // workspaceID -> path -> file
	changesets     map[string]models.Changeset
	policies       map[string]models.PolicyProfile // tenantID -> active policy
	entityMappings map[string][]models.EntityMapping
	audit          []models.AuditEvent
	runs           map[string]models.Run
	artifacts      map[string][]models.Artifact // runID -> artifacts
}

// NewInMemory constructs an empty in-memory repository.
func NewInMemory() *InMemory {
	return &InMemory{
		workspaces:     make(map[string]models.Workspace),
		files:          make(map[string]map[string]models.WorkspaceFile),
		changesets:     make(map[string]models.Changeset),
		policies:       make(map[string]models.PolicyProfile),
		entityMappings: make(map[string][]models.EntityMapping),
		runs:           make(map[string]models.Run),
		artifacts:      make(map[string][]models.Artifact),
	}
}

// SeedWorkspace registers a workspace and its initial files for tests.
func (m *InMemory) SeedWorkspace(ws models.Workspace, files []models.WorkspaceFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workspaces[ws.ID] = ws
	bucket := make(map[string]models.WorkspaceFile, len(files))
	for _, f := range files {
		bucket[f.Path] = f
	}
	m.files[ws.ID] = bucket
}

func (m *InMemory) GetWorkspace(_ context.Context, tenantID, workspaceID string) (*models.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[workspaceID]
	if !ok {
		return nil, ErrNotFound
	}
	if ws.TenantID != tenantID {
		return nil, ErrCrossTenant
	}
	cp := ws
	return &cp, nil
}

// MostRecentActiveWorkspace returns the tenant's most recently created
// workspace id. The in-memory store has no creation-order index, so it
// returns the lexicographically greatest id for determinism in tests; a
// real Repository backs this with a created_at-ordered query.
func (m *InMemory) MostRecentActiveWorkspace(_ context.Context, tenantID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := ""
	found := false
	for id, ws := range m.workspaces {
		if ws.TenantID != tenantID {
			continue
		}
		if !found || id > best {
			best = id
			found = true
		}
	}
	return best, found, nil
}

func (m *InMemory) ListWorkspaceFiles(_ context.Context, tenantID, workspaceID string) ([]models.WorkspaceFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[workspaceID]
	if !ok {
		return nil, ErrNotFound
	}
	if ws.TenantID != tenantID {
		return nil, ErrCrossTenant
	}
	bucket := m.files[workspaceID]
	out := make([]models.WorkspaceFile, 0, len(bucket))
	for _, f := range bucket {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *InMemory) GetWorkspaceFile(_ context.Context, tenantID, workspaceID, path string) (*models.WorkspaceFile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[workspaceID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if ws.TenantID != tenantID {
		return nil, false, ErrCrossTenant
	}
	f, ok := m.files[workspaceID][path]
	if !ok {
		return nil, false, nil
	}
	cp := f
	return &cp, true, nil
}

func (m *InMemory) UpsertWorkspaceFile(_ context.Context, tenantID string, file models.WorkspaceFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[file.WorkspaceID]
	if !ok {
		return ErrNotFound
	}
	if ws.TenantID != tenantID {
		return ErrCrossTenant
	}
	bucket := m.files[file.WorkspaceID]
	if bucket == nil {
		bucket = make(map[string]models.WorkspaceFile)
		m.files[file.WorkspaceID] = bucket
	}
	bucket[file.Path] = file
	return nil
}

func (m *InMemory) DeleteWorkspaceFile(_ context.Context, tenantID, workspaceID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[workspaceID]
	if !ok {
		return ErrNotFound
	}
	if ws.TenantID != tenantID {
		return ErrCrossTenant
	}
	delete(m.files[workspaceID], path)
	return nil
}

func (m *InMemory) LockWorkspaceFile(_ context.Context, tenantID, workspaceID, path, actorID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[workspaceID]
	if ok && ws.TenantID != tenantID {
		return false, ErrCrossTenant
	}
	bucket := m.files[workspaceID]
	if bucket == nil {
		bucket = make(map[string]models.WorkspaceFile)
		m.files[workspaceID] = bucket
	}
	f, exists := bucket[path]
	if exists && f.LockedBy != "" && f.LockedBy != actorID && now.Sub(f.LockedAt) < 30*time.Minute {
		return false, nil
	}
	f.WorkspaceID = workspaceID
	f.Path = path
	f.LockedBy = actorID
	f.LockedAt = now
	bucket[path] = f
	return true, nil
}

func (m *InMemory) ReleaseWorkspaceFileLock(_ context.Context, _, workspaceID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket := m.files[workspaceID]
	if bucket == nil {
		return nil
	}
	f, ok := bucket[path]
	if !ok {
		return nil
	}
	f.LockedBy = ""
	f.LockedAt = time.Time{}
	bucket[path] = f
	return nil
}

func (m *InMemory) ReleaseWorkspaceFileLocksForChangeset(_ context.Context, tenantID, changesetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.changesets[changesetID]
	if !ok || cs.TenantID != tenantID {
		return nil
	}
	bucket := m.files[cs.WorkspaceID]
	for _, p := range cs.Patches {
		if f, ok := bucket[p.FilePath]; ok {
			f.LockedBy = ""
			f.LockedAt = time.Time{}
			bucket[p.FilePath] = f
		}
	}
	return nil
}

func (m *InMemory) CreateChangeset(_ context.Context, cs *models.Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changesets[cs.ID] = *cs
	return nil
}

func (m *InMemory) GetChangeset(_ context.Context, tenantID, changesetID string) (*models.Changeset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.changesets[changesetID]
	if !ok {
		return nil, ErrNotFound
	}
	if cs.TenantID != tenantID {
		return nil, ErrCrossTenant
	}
	cp := cs
	return &cp, nil
}

func (m *InMemory) UpdateChangeset(_ context.Context, cs *models.Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.changesets[cs.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.TenantID != cs.TenantID {
		return ErrCrossTenant
	}
	m.changesets[cs.ID] = *cs
	return nil
}

func (m *InMemory) GetActivePolicy(_ context.Context, tenantID string) (*models.PolicyProfile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[tenantID]
	if !ok {
		return nil, false, nil
	}
	cp := p
	return &cp, true, nil
}

func (m *InMemory) UpsertPolicy(_ context.Context, p *models.PolicyProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.policies[p.TenantID]; ok && existing.Locked && !p.Locked {
		return errors.New("repository: policy is locked")
	}
	m.policies[p.TenantID] = *p
	return nil
}

func (m *InMemory) UpsertEntityMapping(_ context.Context, e models.EntityMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entityMappings[e.TenantID]
	for i, existing := range list {
		if existing.EntityType == e.EntityType && existing.ScriptID == e.ScriptID {
			list[i] = e
			m.entityMappings[e.TenantID] = list
			return nil
		}
	}
	m.entityMappings[e.TenantID] = append(list, e)
	return nil
}

// QueryEntityMappings performs a simple trigram-style similarity scan; this
// is the non-Postgres fallback described in DESIGN.md (sqlite/in-memory
// have no pg_trgm, so a pure-Go scorer substitutes for it).
func (m *InMemory) QueryEntityMappings(_ context.Context, tenantID, entityType, candidate string, limit int) ([]models.EntityCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EntityCandidate
	for _, e := range m.entityMappings[tenantID] {
		if entityType != "" && e.EntityType != entityType {
			continue
		}
		score := trigramSimilarity(strings.ToLower(candidate), strings.ToLower(e.NaturalName))
		if score <= 0 {
			continue
		}
		out = append(out, models.EntityCandidate{Mapping: e, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *InMemory) InsertAuditEvent(_ context.Context, e *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *e)
	return nil
}

// AuditEvents returns a snapshot of every recorded audit event, for tests
// asserting on ordering and completeness (spec §8).
func (m *InMemory) AuditEvents() []models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AuditEvent, len(m.audit))
	copy(out, m.audit)
	return out
}

func (m *InMemory) CreateRun(_ context.Context, r *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = *r
	return nil
}

func (m *InMemory) UpdateRun(_ context.Context, r *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID]; !ok {
		return ErrNotFound
	}
	m.runs[r.ID] = *r
	return nil
}

func (m *InMemory) GetRun(_ context.Context, tenantID, runID string) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.TenantID != tenantID {
		return nil, ErrCrossTenant
	}
	cp := r
	return &cp, nil
}

func (m *InMemory) ListRunsByChangeset(_ context.Context, tenantID, changesetID string, runType models.RunType) ([]models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Run
	for _, r := range m.runs {
		if r.TenantID != tenantID || r.ChangesetID != changesetID {
			continue
		}
		if runType != "" && r.Type != runType {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(out[j].FinishedAt) })
	return out, nil
}

func (m *InMemory) CreateArtifact(_ context.Context, a *models.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[a.RunID] = append(m.artifacts[a.RunID], *a)
	return nil
}

func (m *InMemory) ListArtifacts(_ context.Context, tenantID, runID string) ([]models.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	if r.TenantID != tenantID {
		return nil, ErrCrossTenant
	}
	out := make([]models.Artifact, len(m.artifacts[runID]))
	copy(out, m.artifacts[runID])
	return out, nil
}

// trigramSimilarity computes a Jaccard index over character trigrams,
// mirroring Postgres pg_trgm's similarity() shape closely enough for
// ranking purposes in tests and the in-memory Repository.
func trigramSimilarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	padded := "  " + s + " "
	out := make(map[string]struct{})
	for i := 0; i+3 <= len(padded); i++ {
		out[padded[i:i+3]] = struct{}{}
	}
	return out
}
