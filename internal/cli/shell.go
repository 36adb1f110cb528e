package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"devexpense/internal/core"
	"devexpense/internal/services"
	"devexpense/internal/session/memory"
)

var errQuit = errors.New("quit")

// Shell is a line-oriented calculator over a single in-process session.
type Shell struct {
	svc    *services.CalculatorService
	id     string
	symbol string
	inputs core.RawInputs

	out    io.Writer
	errOut io.Writer
	prompt string

	errColor *color.Color
	okColor  *color.Color
}

// NewShell creates a shell that prints amounts with symbol. An empty prompt
// disables prompting, which suits piped input.
func NewShell(symbol, prompt string, out, errOut io.Writer) *Shell {
	return &Shell{
		svc:      services.NewCalculatorService(memory.New(1, 24*time.Hour), nil),
		id:       services.NewSessionID(),
		symbol:   symbol,
		out:      out,
		errOut:   errOut,
		prompt:   prompt,
		errColor: color.New(color.FgRed),
		okColor:  color.New(color.FgGreen),
	}
}

// Run reads commands from in until EOF or quit.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if s.prompt != "" {
			fmt.Fprint(s.out, s.prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := s.Exec(ctx, scanner.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return err
		}
	}
}

// Exec runs one command line. Calculation rejections are reported to the
// user and do not end the shell; only quit and store failures return.
func (s *Shell) Exec(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	switch strings.ToLower(args[0]) {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		s.help()
	case "set":
		if len(args) != 3 {
			s.fail("usage: set <income|software|courses|internet> <amount>")
			return nil
		}
		if !s.setField(core.Field(strings.ToLower(args[1])), args[2]) {
			s.fail(fmt.Sprintf("unknown field %q", args[1]))
		}
	case "calc":
		switch len(args) {
		case 1:
		case 5:
			s.inputs = core.RawInputs{Income: args[1], Software: args[2], Courses: args[3], Internet: args[4]}
		default:
			s.fail("usage: calc [income software courses internet]")
			return nil
		}
		return s.calculate(ctx)
	case "savings":
		if len(args) != 2 {
			s.fail("usage: savings <percentage>")
			return nil
		}
		return s.savings(ctx, args[1])
	case "show":
		return s.show(ctx)
	case "history":
		return s.history(ctx)
	default:
		s.fail(fmt.Sprintf("unknown command %q, type help", args[0]))
	}
	return nil
}

func (s *Shell) setField(f core.Field, v string) bool {
	switch f {
	case core.FieldIncome:
		s.inputs.Income = v
	case core.FieldSoftware:
		s.inputs.Software = v
	case core.FieldCourses:
		s.inputs.Courses = v
	case core.FieldInternet:
		s.inputs.Internet = v
	default:
		return false
	}
	return true
}

func (s *Shell) calculate(ctx context.Context) error {
	sess, err := s.svc.CalculateExpenses(ctx, s.id, s.inputs)
	if err != nil {
		if !services.IsRejection(err) {
			return err
		}
		for _, msg := range RejectionMessages(sess.Errors) {
			s.fail(msg)
		}
		return nil
	}
	printResult(s.out, s.symbol, sess.Result)
	return nil
}

func (s *Shell) savings(ctx context.Context, pct string) error {
	sess, err := s.svc.CalculateSavings(ctx, s.id, pct)
	if err != nil {
		if !services.IsRejection(err) {
			return err
		}
		s.fail("Invalid savings percentage!")
		return nil
	}
	printResult(s.out, s.symbol, sess.Result)
	return nil
}

func (s *Shell) show(ctx context.Context) error {
	sess, err := s.svc.Session(ctx, s.id)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "income=%q software=%q courses=%q internet=%q\n",
		s.inputs.Income, s.inputs.Software, s.inputs.Courses, s.inputs.Internet)
	if sess.Result.Shown() {
		printResult(s.out, s.symbol, sess.Result)
	}
	return nil
}

func (s *Shell) history(ctx context.Context) error {
	sess, err := s.svc.Session(ctx, s.id)
	if err != nil {
		return err
	}
	printHistory(s.out, s.symbol, sess.History)
	return nil
}

func (s *Shell) fail(msg string) {
	s.errColor.Fprintln(s.errOut, msg)
}

func (s *Shell) help() {
	fmt.Fprint(s.out, `Commands:
  set <field> <amount>     set income, software, courses or internet
  calc [i s c n]           calculate expenses, optionally setting all four inputs
  savings <percentage>     split the current balance
  show                     print inputs and the current result
  history                  list past calculations, newest first
  help                     show this help
  quit                     leave
`)
}

// RejectionMessages turns validation flags into user-facing messages in
// form order.
func RejectionMessages(v core.ValidationState) []string {
	var msgs []string
	for _, f := range v.InvalidFields() {
		if f == core.FieldIncome {
			msgs = append(msgs, "Invalid income amount!")
			continue
		}
		msgs = append(msgs, fmt.Sprintf("Invalid amount! (%s)", f))
	}
	if v.Logic {
		msgs = append(msgs, "Total expenses cannot exceed your income!")
	}
	return msgs
}

func printResult(w io.Writer, symbol string, r core.Result) {
	fmt.Fprintf(w, "Total expenses:    %s\n", core.FormatMoney(symbol, r.TotalExpenses))
	fmt.Fprintf(w, "Balance:           %s\n", core.FormatMoney(symbol, r.Balance))
	fmt.Fprintf(w, "Savings:           %s\n", core.FormatMoney(symbol, r.SavingsAmount))
	fmt.Fprintf(w, "Remaining balance: %s\n", core.FormatMoney(symbol, r.RemainingBalance))
}

func printHistory(w io.Writer, symbol string, h core.History) {
	if len(h) == 0 {
		fmt.Fprintln(w, "No history available")
		return
	}
	for _, e := range h {
		fmt.Fprintf(w, "%s  income %s  expenses %s  balance %s\n",
			e.Date.String(),
			core.FormatMoney(symbol, e.Income),
			core.FormatMoney(symbol, e.TotalExpenses),
			core.FormatMoney(symbol, e.Balance))
	}
}
