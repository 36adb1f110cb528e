package cli

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"devexpense/internal/config"
	"devexpense/internal/core"
	"devexpense/internal/services"
)

// ErrCalculationRejected is returned by the calc command when the inputs
// do not produce a result.
var ErrCalculationRejected = errors.New("calculation rejected")

// NewRootCommand builds the devexpense-cli command tree.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var symbol string

	root := &cobra.Command{
		Use:           "devexpense-cli",
		Short:         "Developer expense calculator for the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&symbol, "currency", defaultSymbol(), "currency symbol")

	root.AddCommand(newCalcCommand(&symbol), newReplCommand(&symbol))
	return root
}

func defaultSymbol() string {
	if v := os.Getenv("CURRENCY_SYMBOL"); v != "" {
		return v
	}
	return config.DefaultCurrencySymbol
}

func newCalcCommand(symbol *string) *cobra.Command {
	var income, software, courses, internet, savings string

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Calculate expenses once and print the result",
		Example: `  devexpense-cli calc --income 1000 --software 100 --courses 50 --internet 20
  devexpense-cli calc --income 1000 --software 100 --courses 50 --internet 20 --savings 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh := NewShell(*symbol, "", cmd.OutOrStdout(), cmd.ErrOrStderr())
			ctx := cmd.Context()

			in := core.RawInputs{Income: income, Software: software, Courses: courses, Internet: internet}

			sess, err := sh.svc.CalculateExpenses(ctx, sh.id, in)
			if err != nil {
				if !services.IsRejection(err) {
					return err
				}
				for _, msg := range RejectionMessages(sess.Errors) {
					sh.fail(msg)
				}
				return ErrCalculationRejected
			}
			if savings != "" {
				sess, err = sh.svc.CalculateSavings(ctx, sh.id, savings)
				if err != nil {
					if !services.IsRejection(err) {
						return err
					}
					sh.fail("Invalid savings percentage!")
					return ErrCalculationRejected
				}
			}
			printResult(cmd.OutOrStdout(), *symbol, sess.Result)
			return nil
		},
	}
	cmd.Flags().StringVar(&income, "income", "", "monthly income")
	cmd.Flags().StringVar(&software, "software", "", "software cost")
	cmd.Flags().StringVar(&courses, "courses", "", "course cost")
	cmd.Flags().StringVar(&internet, "internet", "", "internet cost")
	cmd.Flags().StringVar(&savings, "savings", "", "savings percentage of the balance")
	return cmd
}

func newReplCommand(symbol *string) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive calculator session",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := ""
			if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				prompt = "devexpense> "
			}
			sh := NewShell(*symbol, prompt, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return sh.Run(cmd.Context(), cmd.InOrStdin())
		},
	}
}
