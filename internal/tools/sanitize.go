package tools

import "strings"

// maxSanitizedNameBytes is the longest sanitized name an LLM tool schema may
// present; providers reject longer tool names outright.
const maxSanitizedNameBytes = 64

// externalPrefix marks a sanitized name as routing to a remote MCP
// connector rather than a local descriptor.
const externalPrefix = "ext__"

// Sanitize maps a dotted canonical tool name ("netsuite.suiteql") to the
// alphanumeric-plus-underscore form an LLM tool schema accepts
// ("netsuite_suiteql"). Underscores already in the canonical name are
// doubled ("workspace.apply_patch" -> "workspace_apply__patch"), so
// Desanitize undoes the mapping exactly for any name in which a "." and a
// "_" are never adjacent.
func Sanitize(canonical string) string {
	return strings.ReplaceAll(strings.ReplaceAll(canonical, "_", "__"), ".", "_")
}

// Desanitize recovers the dotted canonical name from a sanitized local tool
// name. Only valid for names produced by Sanitize, not external names.
func Desanitize(sanitized string) string {
	var b strings.Builder
	for i := 0; i < len(sanitized); i++ {
		switch {
		case sanitized[i] != '_':
			b.WriteByte(sanitized[i])
		case i+1 < len(sanitized) && sanitized[i+1] == '_':
			b.WriteByte('_')
			i++
		default:
			b.WriteByte('.')
		}
	}
	return b.String()
}

// ExternalToolName builds the sanitized name an LLM sees for a tool exposed
// by a remote connector, truncating so the result never exceeds
// maxSanitizedNameBytes bytes. connectorIDHex is the connector id already
// rendered as hex (see repository.RandomSource.Hex).
func ExternalToolName(connectorIDHex, toolName string) string {
	sanitizedTool := Sanitize(toolName)
	full := externalPrefix + connectorIDHex + "__" + sanitizedTool
	if len(full) <= maxSanitizedNameBytes {
		return full
	}
	prefix := externalPrefix + connectorIDHex + "__"
	budget := maxSanitizedNameBytes - len(prefix)
	if budget < 0 {
		budget = 0
	}
	if budget > len(sanitizedTool) {
		budget = len(sanitizedTool)
	}
	return prefix + sanitizedTool[:budget]
}

// ExternalRef is the parsed form of an external tool name.
type ExternalRef struct {
	ConnectorIDHex string
	ToolName       string
}

// ParseExternal reports whether name is an external tool reference and, if
// so, its connector id and (possibly truncated) tool name.
func ParseExternal(name string) (ExternalRef, bool) {
	if !strings.HasPrefix(name, externalPrefix) {
		return ExternalRef{}, false
	}
	rest := strings.TrimPrefix(name, externalPrefix)
	parts := strings.SplitN(rest, "__", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ExternalRef{}, false
	}
	return ExternalRef{ConnectorIDHex: parts[0], ToolName: parts[1]}, true
}
