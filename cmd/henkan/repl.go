package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"henkan/internal/composer"
	"henkan/internal/config"
	"henkan/internal/conversion"
	"henkan/internal/ime"
	"henkan/internal/logging"
	"henkan/internal/metrics"
	"henkan/internal/schemavalidation"
	"henkan/internal/usagestats"
)

type replOptions struct {
	runtimeOptions
	validate      bool
	noColor       bool
	noWatch       bool
	flushInterval time.Duration
}

const replHelp = `Each line is typed into the session one character at a time.
Special keys go in angle brackets, session commands start with a colon.

  neko<Space><Enter>     type, convert and commit
  <Ctrl+Backspace>       undo the last commit
  :select_candidate 2    focus candidate id 2
  :submit                commit the current text
  :switch_input_mode full_katakana
  :new                   start a fresh session
  :quit                  leave`

func addRepl(root *cobra.Command, g *globalOptions) {
	o := &replOptions{}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Drive a conversion session interactively.",
		Long:  replHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd.Context(), g, o, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&o.traceFile, "trace-file", "", "append spans as JSON lines to this file")
	cmd.Flags().BoolVar(&o.validate, "validate", false, "check every reply against the output schema")
	cmd.Flags().BoolVar(&o.noColor, "no-color", false, "disable colored output")
	cmd.Flags().BoolVar(&o.noWatch, "no-watch", false, "do not reload the config file on change")
	cmd.Flags().DurationVar(&o.flushInterval, "flush-interval", 30*time.Second, "how often usage counters are written to the store")
	root.AddCommand(cmd)
}

func runRepl(ctx context.Context, g *globalOptions, o *replOptions, in io.Reader, out io.Writer) error {
	loader, cfg, err := g.load()
	if err != nil {
		return err
	}
	log, err := g.logger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	if o.noColor {
		color.NoColor = true
	}

	rt, err := newRuntime(cfg, o.runtimeOptions, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(context.Background()); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	r := newREPL(rt, out)
	if o.validate {
		if r.validator, err = schemavalidation.Output(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	grp, gctx := errgroup.WithContext(ctx)

	if !o.noWatch {
		if _, err := os.Stat(filepath.Dir(g.path())); err == nil {
			loader.OnChange(func(c *config.Config) {
				rt.engine.SetConfig(c.Clone())
				rt.snapshot(gctx, c, "reload")
			})
			grp.Go(func() error { return loader.Watch(gctx) })
		}
	}

	if rt.meter != nil {
		addr := o.metricsAddr
		if addr == "" {
			addr = cfg.Metrics.Addr
		}
		log.Info("serving metrics", "addr", addr)
		grp.Go(func() error { return metrics.Serve(gctx, addr, rt.handler()) })
	}

	if rt.store != nil {
		grp.Go(func() error {
			return usagestats.FlushEvery(gctx, o.flushInterval, rt.mem, rt.store, func(err error) {
				log.Warn("usage flush failed", "error", err)
			})
		})
	}

	grp.Go(func() error {
		defer stop()
		return r.run(gctx, in)
	})

	return grp.Wait()
}

// repl reads lines and feeds them to one engine session.
type repl struct {
	rt        *runtime
	id        string
	view      *view
	validator *schemavalidation.Validator
	log       *logging.Logger
}

func newREPL(rt *runtime, out io.Writer) *repl {
	r := &repl{
		rt:   rt,
		view: newView(out),
		log:  rt.log.WithComponent("repl"),
	}
	r.openSession()
	rt.health.SetReady(true)
	return r
}

// openSession starts a session that may delete committed text, since the
// view prints deletion ranges.
func (r *repl) openSession() {
	r.id = r.rt.engine.CreateSession()
	if err := r.rt.engine.SetCapability(r.id, conversion.DeletePrecedingText); err != nil {
		r.log.Warn("set capability failed", "session_id", r.id, "error", err)
	}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	r.view.showPrompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			quit, err := r.line(ctx, strings.TrimRight(line, "\r"))
			if err != nil {
				r.view.showError(err)
			}
			if quit {
				return nil
			}
			r.view.showPrompt()
		}
	}
}

// line handles one input line and reports whether the user asked to quit.
func (r *repl) line(ctx context.Context, line string) (bool, error) {
	if strings.HasPrefix(line, ":") {
		return r.command(ctx, strings.Fields(line[1:]))
	}
	events, err := parseInput(line)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}

	var last *ime.Output
	for _, ev := range events {
		out, err := r.rt.engine.SendKey(ctx, r.id, ev)
		if err != nil {
			return false, err
		}
		if last, err = r.handle(ctx, out); err != nil {
			return false, err
		}
	}
	r.view.show(last)
	return false, nil
}

func (r *repl) command(ctx context.Context, fields []string) (bool, error) {
	if len(fields) == 0 {
		return false, errors.New("empty command")
	}
	switch fields[0] {
	case "quit", "q", "exit":
		return true, nil
	case "help":
		_, _ = fmt.Fprintln(r.view.w, replHelp)
		return false, nil
	case "new":
		if err := r.rt.engine.DeleteSession(r.id); err != nil {
			return false, err
		}
		r.openSession()
		return false, nil
	}

	cmd, err := parseSessionCommand(fields)
	if err != nil {
		return false, err
	}
	out, err := r.rt.engine.SendCommand(ctx, r.id, cmd)
	if err != nil {
		return false, err
	}
	if out, err = r.handle(ctx, out); err != nil {
		return false, err
	}
	r.view.show(out)
	return false, nil
}

// handle reports what one reply produced and follows an undo callback.
func (r *repl) handle(ctx context.Context, out *ime.Output) (*ime.Output, error) {
	if r.validator != nil {
		if err := r.validator.Validate(out); err != nil {
			r.log.Warn("reply failed schema validation", "error", err)
			r.view.showWarning("%v", err)
		}
	}
	if out.Output != nil {
		if out.DeletionRange != nil {
			r.view.showDeletion(out.DeletionRange)
		}
		if out.Result != nil {
			r.view.showCommit(out.Result)
		}
		if out.Config != nil {
			r.rt.snapshot(ctx, out.Config, "command")
		}
	}
	if !out.Consumed && out.Key != "" {
		r.view.showEcho(out.Key)
	}
	if out.Callback == ime.CallbackUndo {
		next, err := r.rt.engine.SendCommand(ctx, r.id, ime.SessionCommand{Type: ime.CommandTypeUndo})
		if err != nil {
			return nil, err
		}
		return r.handle(ctx, next)
	}
	return out, nil
}

// parseInput splits a line into key events. Text in angle brackets is a key
// name such as <Space> or <Ctrl+Backspace>; a lone '<' is typed as is.
func parseInput(line string) ([]ime.KeyEvent, error) {
	var events []ime.KeyEvent
	for len(line) > 0 {
		if line[0] == '<' {
			if end := strings.IndexByte(line, '>'); end > 1 {
				ev, err := ime.ParseKeyEvent(line[1:end])
				if err != nil {
					return nil, err
				}
				events = append(events, ev)
				line = line[end+1:]
				continue
			}
		}
		r, size := utf8.DecodeRuneInString(line)
		events = append(events, ime.NewKey(r))
		line = line[size:]
	}
	return events, nil
}

var fieldTypes = map[string]composer.InputFieldType{
	"normal":   composer.FieldNormal,
	"password": composer.FieldPassword,
	"tel":      composer.FieldTel,
	"number":   composer.FieldNumber,
}

// parseSessionCommand turns ":name [arg]" fields into a session command.
func parseSessionCommand(fields []string) (ime.SessionCommand, error) {
	name := strings.ReplaceAll(fields[0], "-", "_")
	t, ok := ime.ParseCommandType(name)
	if !ok {
		return ime.SessionCommand{}, fmt.Errorf("unknown command %q", fields[0])
	}
	cmd := ime.SessionCommand{Type: t}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch t {
	case ime.CommandTypeSelectCandidate, ime.CommandTypeSubmitCandidate, ime.CommandTypeHighlightCandidate:
		if arg == "" {
			return cmd, fmt.Errorf("%s needs a candidate id", name)
		}
		id, err := strconv.Atoi(arg)
		if err != nil {
			return cmd, fmt.Errorf("candidate id %q: %w", arg, err)
		}
		cmd.ID = id
	case ime.CommandTypeSwitchInputMode, ime.CommandTypeTurnOnIME, ime.CommandTypeTurnOffIME:
		if arg == "" {
			if t == ime.CommandTypeSwitchInputMode {
				return cmd, fmt.Errorf("%s needs an input mode", name)
			}
			break
		}
		mode, ok := composer.ParseInputMode(arg)
		if !ok {
			return cmd, fmt.Errorf("unknown input mode %q", arg)
		}
		cmd.Mode = mode
		cmd.HasMode = true
	case ime.CommandTypeSwitchInputFieldType:
		ft, ok := fieldTypes[arg]
		if !ok {
			return cmd, fmt.Errorf("unknown field type %q", arg)
		}
		cmd.FieldType = ft
	}
	return cmd, nil
}
