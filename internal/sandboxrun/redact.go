package sandboxrun

import "regexp"

// maxArtifactBytes caps every captured artifact after redaction (spec §4.9
// "Artifact handling").
const maxArtifactBytes = 256 * 1024

const redactedPlaceholder = "***REDACTED***"

const truncatedSuffix = "\n...[TRUNCATED]"

// secretPatterns mirror the three shapes spec §4.9 names explicitly. They
// run in order over the raw byte stream before capping, so a value that
// spans a cap boundary is still caught.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Authorization:\s*Bearer\s+\S+`),
	regexp.MustCompile(`(?i)\bBearer\s+\S+`),
	regexp.MustCompile(`(?i)\b(api_key|token|secret|password)\s*=\s*\S+`),
}

// redactArtifact applies every secret pattern and then caps the result at
// maxArtifactBytes, appending a truncation marker when it had to cut.
func redactArtifact(raw []byte) []byte {
	text := string(raw)
	for _, pattern := range secretPatterns {
		text = pattern.ReplaceAllString(text, redactedPlaceholder)
	}
	if len(text) <= maxArtifactBytes {
		return []byte(text)
	}
	cut := text[:maxArtifactBytes]
	return []byte(cut + truncatedSuffix)
}
