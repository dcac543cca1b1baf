package formatter

import (
	"fmt"
	"unicode/utf8"

	"github.com/relicta-tech/commitgen/internal/domain/changes"
)

// Validate checks that text is a conventional commit message whose header
// fits the formatter's limit.
func (f *Formatter) Validate(text string) (changes.CommitMessage, error) {
	msg, err := changes.ParseCommitMessage(text)
	if err != nil {
		return changes.CommitMessage{}, err
	}
	if n := utf8.RuneCountInString(msg.Header()); n > f.maxHeader {
		return msg, fmt.Errorf("%w: %d > %d characters", changes.ErrHeaderTooLong, n, f.maxHeader)
	}
	return msg, nil
}
