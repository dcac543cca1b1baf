package changes

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxHeaderLength is the conventional limit for a commit header.
const DefaultMaxHeaderLength = 72

// BreakingFooterToken introduces the breaking change footer.
const BreakingFooterToken = "BREAKING CHANGE"

// CommitMessage is a conventional commit message value.
// It is immutable once built; Render always yields the same text.
type CommitMessage struct {
	commitType     CommitType
	scope          string
	description    string
	body           string
	breaking       bool
	breakingReason string
	truncated      bool
}

// CommitMessageOption is a functional option for building messages.
type CommitMessageOption func(*CommitMessage)

// WithScope sets the message scope.
func WithScope(scope string) CommitMessageOption {
	return func(m *CommitMessage) {
		m.scope = scope
	}
}

// WithBody sets the message body.
func WithBody(body string) CommitMessageOption {
	return func(m *CommitMessage) {
		m.body = strings.TrimSpace(body)
	}
}

// WithBreaking marks the message as a breaking change.
func WithBreaking(reason string) CommitMessageOption {
	return func(m *CommitMessage) {
		m.breaking = true
		m.breakingReason = strings.TrimSpace(reason)
	}
}

// WithTruncated records that the description was shortened to fit the header.
func WithTruncated() CommitMessageOption {
	return func(m *CommitMessage) {
		m.truncated = true
	}
}

// NewCommitMessage creates a CommitMessage.
func NewCommitMessage(commitType CommitType, description string, opts ...CommitMessageOption) CommitMessage {
	m := CommitMessage{
		commitType:  commitType,
		description: description,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Type returns the commit type.
func (m CommitMessage) Type() CommitType { return m.commitType }

// Scope returns the scope, possibly empty.
func (m CommitMessage) Scope() string { return m.scope }

// Description returns the header description.
func (m CommitMessage) Description() string { return m.description }

// Body returns the optional body.
func (m CommitMessage) Body() string { return m.body }

// IsBreaking returns true if this is a breaking change.
func (m CommitMessage) IsBreaking() bool { return m.breaking }

// BreakingReason returns the text of the breaking change footer.
func (m CommitMessage) BreakingReason() string { return m.breakingReason }

// Truncated reports whether the description was shortened.
func (m CommitMessage) Truncated() bool { return m.truncated }

// ReleaseType returns the release type this message implies.
func (m CommitMessage) ReleaseType() ReleaseType {
	return ReleaseTypeFromCommitType(m.commitType, m.breaking)
}

// Prefix returns the header up to and including ": ".
func (m CommitMessage) Prefix() string {
	return HeaderPrefix(m.commitType, m.scope, m.breaking)
}

// Header returns the first line of the message.
func (m CommitMessage) Header() string {
	return m.Prefix() + m.description
}

// Footer returns the breaking change footer, or "" for non-breaking messages.
func (m CommitMessage) Footer() string {
	if !m.breaking {
		return ""
	}
	reason := m.breakingReason
	if reason == "" {
		reason = m.description
	}
	return BreakingFooterToken + ": " + reason
}

// Render returns the full message text: header, then body and footer
// separated by blank lines.
func (m CommitMessage) Render() string {
	var sb strings.Builder
	sb.Grow(len(m.description) + len(m.body) + len(m.breakingReason) + 64)
	sb.WriteString(m.Header())
	if m.body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(m.body)
	}
	if footer := m.Footer(); footer != "" {
		sb.WriteString("\n\n")
		sb.WriteString(footer)
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (m CommitMessage) String() string {
	return m.Render()
}

// HeaderPrefix builds "type(scope)!: ".
func HeaderPrefix(t CommitType, scope string, breaking bool) string {
	var sb strings.Builder
	sb.WriteString(string(t))
	if scope != "" {
		sb.WriteByte('(')
		sb.WriteString(scope)
		sb.WriteByte(')')
	}
	if breaking {
		sb.WriteByte('!')
	}
	sb.WriteString(": ")
	return sb.String()
}

var (
	// Matches: type(scope)!: subject or type!: subject or type(scope): subject or type: subject
	headerRegex = regexp.MustCompile(`^(\w+)(?:\(([^)]+)\))?(!)?\s*:\s*(.*)$`)

	// Matches BREAKING CHANGE: or BREAKING-CHANGE: in a footer line.
	breakingFooterRegex = regexp.MustCompile(`^BREAKING[ -]CHANGE:\s*(.+)$`)
)

// SplitHeader returns the type, scope, breaking marker and description of a
// conventional header line. ok is false when line has no "type:" prefix.
func SplitHeader(line string) (typ, scope string, breaking bool, description string, ok bool) {
	matches := headerRegex.FindStringSubmatch(strings.TrimSpace(line))
	if matches == nil {
		return "", "", false, "", false
	}
	return matches[1], matches[2], matches[3] == "!", strings.TrimSpace(matches[4]), true
}

// ParseCommitMessage parses text into a CommitMessage. Git comment lines
// starting with '#' are ignored. It fails when the header does not follow the
// conventional grammar, uses an unknown type, or has no description.
func ParseCommitMessage(text string) (CommitMessage, error) {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return CommitMessage{}, fmt.Errorf("%w: message is empty", ErrInvalidCommitMessage)
	}

	typ, scope, breaking, description, ok := SplitHeader(lines[0])
	if !ok {
		return CommitMessage{}, fmt.Errorf("%w: header %q does not match type(scope): description", ErrInvalidCommitMessage, lines[0])
	}
	commitType := CommitType(typ)
	if !commitType.IsValid() {
		return CommitMessage{}, fmt.Errorf("%w: %q", ErrInvalidCommitType, typ)
	}
	if description == "" {
		return CommitMessage{}, ErrEmptyDescription
	}

	opts := []CommitMessageOption{WithScope(scope)}
	var bodyLines []string
	reason := ""
	for _, line := range lines[1:] {
		if match := breakingFooterRegex.FindStringSubmatch(line); match != nil {
			breaking = true
			reason = strings.TrimSpace(match[1])
			continue
		}
		bodyLines = append(bodyLines, line)
	}
	if body := strings.TrimSpace(strings.Join(bodyLines, "\n")); body != "" {
		opts = append(opts, WithBody(body))
	}
	if breaking {
		opts = append(opts, WithBreaking(reason))
	}
	return NewCommitMessage(commitType, description, opts...), nil
}
