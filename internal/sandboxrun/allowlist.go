// Package sandboxrun implements the C9 Sandbox Runner: materializing a
// workspace snapshot (optionally overlaid with an approved changeset) into
// a scratch directory, executing one allowlisted command under a hard
// timeout, and capturing redacted, size-capped artifacts (spec §4.9).
package sandboxrun

import (
	"errors"
	"time"

	"github.com/netsuite-assist/coordinator/pkg/models"
)

// ErrCommandNotAllowed is raised before any I/O when RunType is not in the
// fixed command enumeration.
var ErrCommandNotAllowed = errors.New("sandboxrun: command not allowed")

// commandSpec names the allowlisted binary and its family timeout. Query
// assertions never reach here: they run in-process (see internal/assertgate).
type commandSpec struct {
	argv    []string // the full command and fixed flags that are run; nothing is appended
	timeout time.Duration
}

// allowlist is the fixed enumeration from spec §4.9. Any RunType outside
// this map is rejected with ErrCommandNotAllowed before a scratch directory
// is even created.
var allowlist = map[models.RunType]commandSpec{
	models.RunSDFValidate: {
		argv:    []string{"sdf-validator", "validate"},
		timeout: 60 * time.Second,
	},
	models.RunJestUnitTest: {
		argv:    []string{"jest", "--json", "--coverage"},
		timeout: 120 * time.Second,
	},
	models.RunDeploySandbox: {
		argv:    []string{"sdf-deploy", "--target", "sandbox"},
		timeout: 600 * time.Second,
	},
}

// lookupCommand returns the fixed argv and timeout for runType, or
// ErrCommandNotAllowed. suiteql_assertions is deliberately absent: it has
// no subprocess form (spec §4.10) and must be rejected here too, since a
// caller that routes it through the sandbox runner by mistake should fail
// the same way an unknown run_type would.
func lookupCommand(runType models.RunType) (commandSpec, error) {
	spec, ok := allowlist[runType]
	if !ok {
		return commandSpec{}, ErrCommandNotAllowed
	}
	return spec, nil
}
