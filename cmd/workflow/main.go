// Command workflow evaluates a rule set file.
//
// In rate mode every record in the file is classified and the fields of
// the accepted records are summed. In count mode the number of accepted
// combinations across the whole domain is computed. With -serve the rule
// set is loaded into a vault and served over HTTP until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ezachrisen/workflow"
	"github.com/ezachrisen/workflow/cel"
	"github.com/ezachrisen/workflow/ruleset"
	"github.com/ezachrisen/workflow/server"
	"github.com/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

type config struct {
	rules    string
	mode     string
	entry    string
	parallel int
	trace    bool
	tree     bool
	strict   bool
	useCEL   bool
	verbose  bool
	serve    string
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	flags := flag.NewFlagSet(args[0], flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintln(stderr, args[0]+` usage:
	workflow -rules=file.yaml [-mode=rate|count|all] [-parallel=n] [-trace] [-tree] [-strict] [-cel] [-v] [-serve=addr]`)
		flags.PrintDefaults()
	}

	var c config
	flags.StringVar(&c.rules, "rules", "", "rule set file (YAML)")
	flags.StringVar(&c.mode, "mode", "all", "rate, count or all")
	flags.StringVar(&c.entry, "entry", "", "entry workflow (overrides the rule set)")
	flags.IntVar(&c.parallel, "parallel", 0, "number of workers")
	flags.BoolVar(&c.trace, "trace", false, "print a diagnostic report for every record")
	flags.BoolVar(&c.tree, "tree", false, "print the workflow graph")
	flags.BoolVar(&c.strict, "strict", false, "reject duplicate workflows and cycles")
	flags.BoolVar(&c.useCEL, "cel", false, "evaluate rule conditions with CEL")
	flags.BoolVar(&c.verbose, "v", false, "produce verbose output")
	flags.StringVar(&c.serve, "serve", "", "serve the rule set over HTTP on this address")
	if err := flags.Parse(args[1:]); err != nil {
		return err
	}
	if c.rules == "" {
		return errors.New("missing -rules")
	}
	if c.mode != "rate" && c.mode != "count" && c.mode != "all" {
		return errors.Errorf("unknown mode %q", c.mode)
	}

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rs, err := ruleset.LoadFile(c.rules)
	if err != nil {
		return err
	}
	log.Debug("rule set loaded", "file", c.rules, "workflows", len(rs.Workflows), "records", len(rs.Parts))

	graphOpts := []workflow.GraphOption{
		workflow.RejectDuplicates(c.strict),
		workflow.CheckCycles(c.strict),
	}
	if c.useCEL {
		ev, err := cel.NewEvaluator()
		if err != nil {
			return err
		}
		graphOpts = append(graphOpts, workflow.WithEvaluator(ev))
	}
	v, err := rs.Vault(graphOpts...)
	if err != nil {
		return errors.Wrap(err, "building workflow graph")
	}
	g := v.Graph()
	log.Debug("graph built", "workflows", g.Len(), "cel", c.useCEL, "strict", c.strict, "revision", v.Revision())

	entry := rs.EntryPoint()
	if c.entry != "" {
		entry = c.entry
	}

	if c.serve != "" {
		srv := server.New(v,
			server.Entry(entry),
			server.Domain(rs.Bounds()),
			server.Parallel(c.parallel),
			server.Logger(log))
		return serve(ctx, log, c.serve, srv)
	}
	opts := []workflow.EvalOption{
		workflow.Entry(entry),
		workflow.Parallel(c.parallel),
	}

	if c.tree {
		fmt.Fprintln(stdout, g)
		fmt.Fprintln(stdout, g.Tree(entry))
	}

	if c.mode == "rate" || c.mode == "all" {
		if err := rate(ctx, stdout, log, g, rs.Records(), opts, c.trace); err != nil {
			return err
		}
	}
	if c.mode == "count" || c.mode == "all" {
		if err := count(ctx, stdout, log, g, rs.Bounds(), opts); err != nil {
			return err
		}
	}
	return nil
}

func rate(ctx context.Context, stdout io.Writer, log *slog.Logger, g *workflow.Graph, recs []workflow.Record, opts []workflow.EvalOption, trace bool) error {
	if trace {
		for i, rec := range recs {
			d, err := g.Diagnose(ctx, rec, opts...)
			if err != nil {
				return errors.Wrapf(err, "record %d", i)
			}
			fmt.Fprintln(stdout, d.AsString())
		}
	}

	r, err := g.Rate(ctx, recs, opts...)
	if err != nil {
		return errors.Wrap(err, "rating records")
	}
	log.Debug("records rated", "accepted", r.Accepted, "rejected", r.Rejected)
	fmt.Fprintf(stdout, "Sum of accepted parts is %s (%d of %d accepted)\n",
		humanize.Comma(r.Sum), r.Accepted, len(recs))
	return nil
}

func count(ctx context.Context, stdout io.Writer, log *slog.Logger, g *workflow.Graph, dom workflow.Domain, opts []workflow.EvalOption) error {
	t, err := g.Count(ctx, dom, opts...)
	if err != nil {
		return errors.Wrap(err, "counting combinations")
	}
	log.Debug("domain counted", "domain", dom.String(), "accepted_boxes", t.AcceptedBoxes,
		"rejected_boxes", t.RejectedBoxes, "splits", t.Splits)
	fmt.Fprintf(stdout, "Distinct accepted combinations is %s of %s (%s)\n",
		humanize.Comma(t.Accepted), humanize.Comma(t.Total()),
		humanize.FormatFloat("#,###.##", 100*float64(t.Accepted)/float64(t.Total()))+"%")
	return nil
}

func serve(ctx context.Context, log *slog.Logger, addr string, h http.Handler) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "serving")
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	return nil
}
