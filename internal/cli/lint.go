package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/relicta-tech/commitgen/internal/formatter"
)

func newLintCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [file|-]",
		Short: "Check a commit message against the conventional commit format",
		Long: `Check a commit message against the conventional commit format and the
configured header length. Reads stdin when no file is given or the file is
"-". Exits non-zero on a violation, so it can run as a commit-msg hook:

  # .git/hooks/commit-msg
  exec commitgen lint "$1"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runLint(args)
		},
	}
}

func (o *Options) runLint(args []string) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(o.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read commit message: %w", err)
	}

	f := formatter.New(formatter.Options{MaxHeaderLength: o.Config.Commit.MaxHeaderLength})
	msg, err := f.Validate(string(data))
	if err != nil {
		o.printError(err.Error())
		return err
	}

	o.printSuccess(fmt.Sprintf("%s (%s release)", msg.Header(), msg.ReleaseType()))
	return nil
}
