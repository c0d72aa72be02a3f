package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-qbank/internal/apperr"
	auth "github.com/mind-engage/mindengage-qbank/internal/auth/middleware"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/client"
	"github.com/mind-engage/mindengage-qbank/internal/llm"
	"github.com/mind-engage/mindengage-qbank/internal/workflow"
)

const usage = `usage: qbankctl [global flags] <command> [flags]

commands:
  login            log in and store the access token
  passages         list your passages
  add-passage      create a passage from a file or stdin
  delete-passage   delete a passage
  generate         generate questions for a passage, optionally fix and save them
  bank             list saved question sets
  show             print a saved question set as JSON
  remove-question  remove one question from a saved set
  delete-set       delete a saved question set
  hash-password    print a bcrypt hash for ADMIN_PASS_HASH
`

// regenConcurrency caps parallel regenerate calls during -fix.
const regenConcurrency = 4

type app struct {
	c         *client.Client
	out       io.Writer
	tokenFile string
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("qbankctl: %v", describe(err))
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("qbankctl", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fmt.Fprintln(out, "\nglobal flags:")
		fs.PrintDefaults()
	}
	var (
		server    = fs.String("server", envOr("QBANK_URL", "http://localhost:8080"), "API base URL (or QBANK_URL)")
		tokenFile = fs.String("token-file", defaultTokenFile(), "where the access token is kept")
		timeout   = fs.Duration("timeout", client.DefaultTimeout, "per-request timeout")
		verbose   = fs.Bool("verbose", false, "enable verbose debugging output")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	llm.SetVerbose(*verbose)
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	a := &app{c: client.New(*server), out: out, tokenFile: *tokenFile}
	a.c.HTTP.Timeout = *timeout
	if tok := os.Getenv("QBANK_TOKEN"); tok != "" {
		a.c.SetToken(tok)
	} else if b, err := os.ReadFile(a.tokenFile); err == nil {
		a.c.SetToken(strings.TrimSpace(string(b)))
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "passages":
		return a.passages(ctx)
	case "add-passage":
		return a.addPassage(ctx, rest)
	case "delete-passage":
		return a.withID(rest, "passage id", func(id string) error { return a.c.DeletePassage(ctx, id) })
	case "generate":
		return a.generate(ctx, rest)
	case "bank":
		return a.bank(ctx, rest)
	case "show":
		return a.withID(rest, "question set id", func(id string) error {
			set, err := a.c.GetQuestionSet(ctx, id)
			if err != nil {
				return err
			}
			return a.printJSON(set)
		})
	case "remove-question":
		return a.removeQuestion(ctx, rest)
	case "delete-set":
		return a.withID(rest, "question set id", func(id string) error { return a.c.DeleteQuestionSet(ctx, id) })
	case "hash-password":
		return a.withID(rest, "password", func(pw string) error {
			h, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, h)
			return nil
		})
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// ===== commands =====

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	user := fs.String("u", "", "username (required)")
	pass := fs.String("p", os.Getenv("QBANK_PASSWORD"), "password (or QBANK_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *pass == "" {
		return errors.New("login needs -u and -p")
	}
	if err := a.c.Login(ctx, *user, *pass); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.tokenFile), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(a.tokenFile, []byte(a.c.Token()+"\n"), 0o600); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s\n", *user)
	return nil
}

func (a *app) passages(ctx context.Context) error {
	ps, err := a.c.ListPassages(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGRADE\tCREATED\tTITLE")
	for _, p := range ps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.GradeLevel, p.CreatedAt.Format(time.DateOnly), p.Title)
	}
	return tw.Flush()
}

func (a *app) addPassage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-passage", flag.ContinueOnError)
	fs.SetOutput(a.out)
	file := fs.String("file", "-", "passage text file, - for stdin")
	grade := fs.String("grade", string(bank.GradeM1), "grade level (M1, M2, M3)")
	title := fs.String("title", "", "title; generated when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	g, err := bank.ParseGradeLevel(*grade)
	if err != nil {
		return err
	}
	var text []byte
	if *file == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(*file)
	}
	if err != nil {
		return err
	}
	p, err := a.c.CreatePassage(ctx, bank.CreatePassageInput{Content: string(text), GradeLevel: g, Title: *title})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created passage %s %q\n", p.ID, p.Title)
	return nil
}

func (a *app) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(a.out)
	var (
		passageID  = fs.String("passage", "", "passage id (required)")
		grade      = fs.String("grade", "", "grade level; defaults to the passage's")
		difficulty = fs.String("difficulty", string(bank.DifficultyMedium), "Easy, Medium or Hard")
		count      = fs.Int("count", 5, "number of questions (1-20)")
		types      = fs.String("types", strings.Join(typeNames(bank.AllQuestionTypes()), ","), "comma-separated question types")
		fix        = fs.Bool("fix", false, "regenerate every NEEDS_FIX question")
		save       = fs.Bool("save", false, "save the result to the question bank")
		output     = fs.String("o", "", "also write the questions as JSON to this file")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *passageID == "" {
		return errors.New("generate needs -passage")
	}
	d, err := bank.ParseDifficulty(*difficulty)
	if err != nil {
		return err
	}
	qt, err := bank.ParseQuestionTypes(splitCSV(*types))
	if err != nil {
		return err
	}
	g := bank.GradeLevel(*grade)
	if *grade == "" {
		p, err := a.c.GetPassage(ctx, *passageID)
		if err != nil {
			return err
		}
		g = p.GradeLevel
	} else if g, err = bank.ParseGradeLevel(*grade); err != nil {
		return err
	}

	sess := workflow.NewSession()
	w := workflow.New(sess, a.c, a.c, *passageID)
	fmt.Fprintf(a.out, "generating %d %s questions for %s...\n", *count, d, g)
	err = w.Generate(ctx, workflow.Settings{GradeLevel: g, Difficulty: d, Count: *count, QuestionTypes: qt})
	a.flush(sess)
	if err != nil {
		return err
	}

	if *fix {
		if err := a.fixAll(ctx, w); err != nil {
			log.Printf("some questions could not be regenerated: %v", describe(err))
		}
		a.flush(sess)
	}

	qs := w.Questions()
	a.printQuestions(qs)
	if *output != "" {
		b, err := json.MarshalIndent(qs, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(*output, b, 0o644); err != nil {
			return err
		}
	}
	if !*save {
		return nil
	}
	set, err := w.Save(ctx)
	a.flush(sess)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved question set %s\n", set.ID)
	return nil
}

// fixAll regenerates every NEEDS_FIX question concurrently. A failure leaves
// that question as it was and does not stop the others.
func (a *app) fixAll(ctx context.Context, w *workflow.Workflow) error {
	var g errgroup.Group
	g.SetLimit(regenConcurrency)
	for _, q := range w.Questions() {
		if q.ValidationStatus != bank.StatusNeedsFix {
			continue
		}
		id := q.ID
		g.Go(func() error {
			_, err := w.Regenerate(ctx, id)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *app) bank(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bank", flag.ContinueOnError)
	fs.SetOutput(a.out)
	var (
		passageID  = fs.String("passage", "", "only sets for this passage")
		difficulty = fs.String("difficulty", "", "comma-separated difficulties")
		grade      = fs.String("grade", "", "comma-separated grade levels")
		types      = fs.String("types", "", "comma-separated question types")
		search     = fs.String("search", "", "passage title contains")
		sort       = fs.String("sort", string(bank.SortDateDesc), "date-desc, date-asc, title-asc or title-desc")
		limit      = fs.Int("limit", 50, "page size (max 100)")
		offset     = fs.Int("offset", 0, "page offset")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	opts := bank.ListOpts{
		PassageID: *passageID,
		Search:    *search,
		Sort:      bank.ParseSort(*sort),
		Limit:     *limit,
		Offset:    *offset,
	}
	for _, s := range splitCSV(*difficulty) {
		d, err := bank.ParseDifficulty(s)
		if err != nil {
			return err
		}
		opts.Difficulties = append(opts.Difficulties, d)
	}
	for _, s := range splitCSV(*grade) {
		g, err := bank.ParseGradeLevel(s)
		if err != nil {
			return err
		}
		opts.GradeLevels = append(opts.GradeLevels, g)
	}
	qt, err := bank.ParseQuestionTypes(splitCSV(*types))
	if err != nil {
		return err
	}
	opts.QuestionTypes = qt

	sets, err := a.c.ListQuestionSets(ctx, opts)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tGRADE\tDIFFICULTY\tQUESTIONS\tPASSAGE")
	for _, s := range sets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.CreatedAt.Format(time.DateOnly), s.Passage.GradeLevel, s.Difficulty, s.QuestionCount, s.Passage.Title)
	}
	return tw.Flush()
}

func (a *app) removeQuestion(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("remove-question needs <set id> <question id>")
	}
	set, deleted, err := a.c.RemoveQuestion(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if deleted {
		fmt.Fprintf(a.out, "question set %s was emptied and deleted\n", args[0])
		return nil
	}
	fmt.Fprintf(a.out, "question set %s now has %d questions\n", set.ID, set.QuestionCount)
	return nil
}

// ===== output =====

func (a *app) printQuestions(qs bank.Questions) {
	sum := qs.Summary()
	fmt.Fprintf(a.out, "\n%d questions: %d passed, %d need attention\n", sum.Total, sum.Passed, sum.NeedsFix)
	for i, q := range qs {
		fmt.Fprintf(a.out, "\n%d. [%s, %s] %s\n", i+1, q.Type, q.ValidationStatus, q.QuestionText)
		for j, opt := range q.Options {
			mark := " "
			if j == q.CorrectAnswer {
				mark = "*"
			}
			fmt.Fprintf(a.out, "  %s %c) %s\n", mark, 'A'+j, opt)
		}
		fmt.Fprintf(a.out, "  evidence: %s\n", q.Evidence)
		if q.ValidationNote != nil {
			fmt.Fprintf(a.out, "  note: %s\n", *q.ValidationNote)
		}
	}
	fmt.Fprintln(a.out)
}

func (a *app) flush(sess *workflow.Session) {
	for _, t := range sess.Drain() {
		fmt.Fprintf(a.out, "[%s] %s: %s\n", t.Variant, t.Title, t.Description)
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) withID(args []string, what string, fn func(string) error) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("expected exactly one %s", what)
	}
	return fn(args[0])
}

// describe prefers the server's user-facing message over the raw error text.
func describe(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind != apperr.KindInternal {
		if ae.Details != nil {
			b, _ := json.Marshal(ae.Details)
			return fmt.Sprintf("%s (%s) %s", ae.Kind.Message(), ae.Msg, b)
		}
		return fmt.Sprintf("%s (%s)", ae.Kind.Message(), ae.Msg)
	}
	return err.Error()
}

func typeNames(ts []bank.QuestionType) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".qbankctl-token"
	}
	return filepath.Join(dir, "qbankctl", "token")
}
