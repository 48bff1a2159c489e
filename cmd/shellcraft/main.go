// Command shellcraft is a terminal coding assistant. It plans changes to
// the current repository with an LLM, applies reviewed edits, runs
// verification commands, and keeps a session report.
//
// One-shot:    shellcraft "add a --verbose flag to the CLI"
// Interactive: shellcraft
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"shellcraft/pkg/agent"
	"shellcraft/pkg/agent/llm"
	"shellcraft/pkg/agent/toolloop"
	"shellcraft/pkg/agents"
	"shellcraft/pkg/capabilities"
	"shellcraft/pkg/config"
	"shellcraft/pkg/contextmgr"
	"shellcraft/pkg/diff"
	"shellcraft/pkg/editor"
	"shellcraft/pkg/eventlog"
	"shellcraft/pkg/exec"
	"shellcraft/pkg/logx"
	"shellcraft/pkg/memory"
	"shellcraft/pkg/persistence"
	"shellcraft/pkg/report"
	"shellcraft/pkg/runner"
	"shellcraft/pkg/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shellcraft: %v\n", err)
		os.Exit(1)
	}
}

type session struct {
	client  llm.LLMClient
	orch    *agents.Orchestrator
	tracker *report.Tracker
	mem     *memory.Memory
	history *persistence.Store
	caps    *capabilities.Manifest
	logger  *logx.Logger
	workDir string
	model   string
}

func run() error {
	var (
		dryRun  = flag.Bool("dry-run", false, "show diffs and commands without applying or running them")
		unsafe  = flag.Bool("unsafe", false, "skip command confirmation prompts")
		yes     = flag.Bool("yes", false, "auto-approve edit diffs")
		model   = flag.String("model", "", "model ID to use (overrides config and registry)")
		watch   = flag.Bool("watch", false, "watch the workspace and rerun verification on changes")
		showCap = flag.Bool("caps", false, "print the capability manifest and exit")
	)
	flag.Parse()

	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := config.LoadEnvFile(workDir); err != nil {
		return err
	}
	if err := config.Load(workDir); err != nil {
		return err
	}
	if err := config.LoadRegistry(registryPath(workDir)); err != nil {
		return err
	}
	config.UpdateDryRun(*dryRun)
	config.UpdateUnsafe(*unsafe)
	config.UpdateAutoApprove(*yes)

	caps := capabilities.Build(workDir)
	if *showCap {
		fmt.Print(caps.SystemPreamble())
		return nil
	}

	modelID := *model
	if modelID == "" {
		modelID, err = config.SelectModel(config.SpecialtyCode)
		if err != nil {
			return err
		}
	}
	config.UpdateDefaultModel(modelID)

	client, err := agent.NewClient(modelID)
	if err != nil {
		return err
	}

	if *watch {
		return runWatch(workDir)
	}

	mem, err := memory.Load()
	if err != nil {
		return err
	}
	history, err := persistence.Open()
	if err != nil {
		return err
	}
	defer history.Close()

	tracker := report.NewTracker()
	agent.SetUsageSink(func(model, provider string, promptTokens, completionTokens int) error {
		history.AppendUsage(persistence.UsageRecord{
			Timestamp:        time.Now(),
			Model:            model,
			Provider:         provider,
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
		})
		return tracker.Charge(model, provider, promptTokens, completionTokens)
	})

	orch, err := agents.NewOrchestrator(client, workDir, tracker)
	if err != nil {
		return err
	}
	defer orch.Shutdown()

	s := &session{
		client:  client,
		orch:    orch,
		tracker: tracker,
		mem:     mem,
		history: history,
		caps:    caps,
		logger:  logx.NewLogger("cli"),
		workDir: workDir,
		model:   modelID,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if goal := strings.Join(flag.Args(), " "); strings.TrimSpace(goal) != "" {
		err := s.handleInput(ctx, goal)
		s.finish()
		return err
	}
	return s.chatLoop(ctx)
}

// registryPath prefers a models.json at the workspace root, then under
// .agent/. A missing registry is fine; LoadRegistry treats it as empty.
func registryPath(workDir string) string {
	root := filepath.Join(workDir, "models.json")
	if _, err := os.Stat(root); err == nil {
		return root
	}
	return filepath.Join(workDir, ".agent", "models.json")
}

func runWatch(workDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cr := runner.NewCommandRunner(exec.Preferred())
	runner.NewAutonomousRunner(cr, workDir, 2*time.Second).Run(ctx)
	return nil
}

func (s *session) chatLoop(ctx context.Context) error {
	fmt.Printf("shellcraft (%s). Type a goal, a question, or /help.\n", s.model)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			done, err := s.slashCommand(ctx, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			if done {
				break
			}
			continue
		}
		if err := s.handleInput(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	s.finish()
	return scanner.Err()
}

// handleInput routes free text to the pipeline or to a direct answer based
// on detected intent. A goal that names exactly one existing file skips
// planning and goes straight to the worker.
func (s *session) handleInput(ctx context.Context, input string) error {
	if looksLikeGoal(input) {
		if path, ok := s.singleFileTarget(input); ok {
			return s.runEdit(ctx, path, input)
		}
		return s.runGoal(ctx, input)
	}
	return s.answer(ctx, input)
}

// singleFileTarget reports the workspace file a goal names, when it names
// exactly one. Tokens must look like paths and resolve to regular files.
func (s *session) singleFileTarget(input string) (string, bool) {
	var found string
	for _, tok := range strings.Fields(input) {
		tok = strings.Trim(tok, ".,;:!?\"'`")
		if !strings.ContainsAny(tok, "./") || strings.HasPrefix(tok, "/") || strings.Contains(tok, "..") {
			continue
		}
		info, err := os.Stat(filepath.Join(s.workDir, tok))
		if err != nil || info.IsDir() {
			continue
		}
		if found != "" && found != tok {
			return "", false
		}
		found = tok
	}
	return found, found != ""
}

// goalVerbs mark a request for changes rather than information.
var goalVerbs = []string{
	"add", "fix", "implement", "create", "refactor", "update", "remove",
	"rename", "delete", "write", "change", "make", "convert", "migrate",
	"optimize", "extract", "replace", "upgrade",
}

func looksLikeGoal(input string) bool {
	lowered := strings.ToLower(input)
	if strings.HasSuffix(strings.TrimSpace(lowered), "?") {
		return false
	}
	for _, q := range []string{"what ", "why ", "how ", "where ", "which ", "who ", "explain"} {
		if strings.HasPrefix(lowered, q) {
			return false
		}
	}
	for _, v := range goalVerbs {
		if strings.HasPrefix(lowered, v+" ") {
			return true
		}
	}
	return false
}

func (s *session) runGoal(ctx context.Context, goal string) error {
	start := time.Now()
	outcome, err := s.orch.RunGoal(ctx, goal)
	if err != nil {
		s.history.AppendEvent("goal_failed", goal)
		return err
	}
	s.history.AppendEvent("goal", goal)

	if outcome.EditedFiles == "" {
		fmt.Println("No edits applied.")
	} else {
		fmt.Printf("Edited:\n%s\n", outcome.EditedFiles)
	}
	if outcome.ActionOutput != "" {
		fmt.Println(outcome.ActionOutput)
	}
	if outcome.ExitCode != 0 {
		fmt.Printf("Verification exited with code %d.\n", outcome.ExitCode)
	}
	if outcome.EditedFiles != "" {
		s.assess(ctx, goal, outcome)
	}

	summary := fmt.Sprintf("edited [%s] in %s", strings.ReplaceAll(outcome.EditedFiles, "\n", ", "), time.Since(start).Round(time.Second))
	return s.mem.AddExchange(goal, summary)
}

// assess streams the model's short verdict on the finished goal. Failures
// only cost the assessment, never the goal.
func (s *session) assess(ctx context.Context, goal string, outcome *agents.Outcome) {
	prompt := fmt.Sprintf(
		"Goal: %s\nEdited files:\n%s\nVerification exit code: %d\n\nIn two sentences, state whether the goal appears achieved and what to check manually.",
		goal, outcome.EditedFiles, outcome.ExitCode)
	req := llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			{Role: llm.RoleSystem, Content: "You review the result of an automated code change."},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: llm.TemperatureDefault,
		MaxTokens:   300,
	}
	ch, err := s.client.Stream(ctx, req)
	if err != nil {
		s.logger.Warn("assessment unavailable: %v", err)
		return
	}
	fmt.Print("Assessment: ")
	if _, err := io.Copy(os.Stdout, llm.StreamToReader(ch)); err != nil {
		s.logger.Warn("assessment stream failed: %v", err)
	}
	fmt.Println()
}

func (s *session) runEdit(ctx context.Context, path, intent string) error {
	outcome, err := s.orch.RunEdit(ctx, path, intent)
	if err != nil {
		s.history.AppendEvent("edit_failed", path)
		return err
	}
	if outcome.Diff == "" {
		fmt.Println("No edits applied.")
		return nil
	}
	fmt.Println(diff.Colorize(outcome.Diff))
	s.history.AppendEvent("edit", path)
	return s.mem.AddExchange(intent, "edited "+path)
}

// answer handles questions with a read-only tool loop so the model can
// inspect files before replying.
func (s *session) answer(ctx context.Context, question string) error {
	provider, err := tools.DefaultProvider(tools.AgentContext{
		Executor: exec.NewLocalExec(),
		WorkDir:  s.workDir,
		ReadOnly: true,
	}, tools.ToolReadFile, tools.ToolListFiles, tools.ToolGetDiff, tools.ToolDone)
	if err != nil {
		return err
	}

	system := s.caps.SystemPreamble()
	if mc := s.mem.PromptContext(); mc != "" {
		system += "\n" + mc
	}
	cm := contextmgr.New(s.model)
	cm.AddMessage("system", system)

	sig, err := toolloop.Run(ctx, toolloop.Config{
		Client:        s.client,
		Context:       cm,
		Provider:      provider,
		Logger:        s.logger,
		InitialPrompt: question,
		CheckTerminal: func(toolName string, _ map[string]any) bool {
			return toolName == tools.ToolDone
		},
	})
	if err != nil {
		// Models without tool support still get to answer.
		s.logger.Warn("tool loop unavailable, answering directly: %v", err)
		reply, cerr := llm.ChatText(ctx, s.client, system, question)
		if cerr != nil {
			return err
		}
		fmt.Println(reply)
		return s.mem.AddExchange(question, reply)
	}

	reply := sig.FinalText
	if reply == "" && sig.Result != nil {
		if summary, ok := sig.Result["summary"].(string); ok {
			reply = summary
		}
	}
	fmt.Println(reply)
	return s.mem.AddExchange(question, reply)
}

func (s *session) slashCommand(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "/help":
		fmt.Print(`Commands:
  /plan <goal>       show the plan for a goal without applying it
  /run <command>     run a shell command through the guardrails
  /diff <file>       show uncommitted changes for a file
  /edit <file>       open a file in $EDITOR
  /set <key> <val>   set dry-run, unsafe, yes, or model
  /env <key> <val>   persist an environment variable to .agent.env
  /remember <fact>   store a durable fact
  /memory            show remembered facts and recent exchanges
  /history           show recent command runs and model usage
  /events            show today's event log
  /report            print the session report
  /exit              save the report and quit
`)
	case "/exit", "/quit":
		// The chat loop saves the report once on exit.
		return true, nil
	case "/report":
		fmt.Print(s.tracker.Markdown())
	case "/remember":
		if err := s.mem.Remember(rest); err != nil {
			return false, err
		}
		fmt.Println("Remembered.")
	case "/run":
		if rest == "" {
			return false, fmt.Errorf("usage: /run <command>")
		}
		cr := runner.NewCommandRunner(exec.Preferred())
		result, err := cr.Run(ctx, "manual", rest)
		if err != nil {
			return false, err
		}
		fmt.Print(result.Output)
		s.history.AppendRun(persistence.RunRecord{
			Timestamp: time.Now(),
			Name:      "manual",
			Command:   rest,
			ExitCode:  result.ExitCode,
			Duration:  result.Duration,
			Attempts:  result.Attempts,
		})
	case "/env":
		parts := strings.Fields(rest)
		if len(parts) != 2 {
			return false, fmt.Errorf("usage: /env <key> <value>")
		}
		if err := config.UpsertEnv(s.workDir, parts[0], parts[1]); err != nil {
			return false, err
		}
		fmt.Printf("Saved %s to .agent.env\n", parts[0])
	case "/memory":
		for _, f := range s.mem.Facts() {
			fmt.Printf("fact: %s\n", f.Text)
		}
		for _, e := range s.mem.Recent(5) {
			fmt.Printf("> %s\n  %s\n", e.User, e.Assistant)
		}
	case "/history":
		return false, s.showHistory(ctx)
	case "/events":
		return false, s.showEvents()
	case "/diff":
		if rest == "" {
			return false, fmt.Errorf("usage: /diff <file>")
		}
		if !s.caps.CanRun("git") {
			return false, fmt.Errorf("git is not available on PATH")
		}
		out, err := gitDiffFile(ctx, s.workDir, rest)
		if err != nil {
			return false, err
		}
		if out == "" {
			fmt.Println("No changes.")
		} else {
			fmt.Println(diff.Colorize(out))
		}
	case "/edit":
		if rest == "" {
			return false, fmt.Errorf("usage: /edit <file>")
		}
		return false, editor.OpenInEditor(filepath.Join(s.workDir, rest))
	case "/set":
		return false, s.setOption(rest)
	case "/plan":
		if rest == "" {
			return false, fmt.Errorf("usage: /plan <goal>")
		}
		return false, s.showPlan(ctx, rest)
	default:
		return false, fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return false, nil
}

func (s *session) setOption(rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return fmt.Errorf("usage: /set <dry-run|unsafe|yes|model> <value>")
	}
	key, val := parts[0], parts[1]
	boolVal := val == "true" || val == "on" || val == "1"
	switch key {
	case "dry-run":
		config.UpdateDryRun(boolVal)
	case "unsafe":
		config.UpdateUnsafe(boolVal)
	case "yes":
		config.UpdateAutoApprove(boolVal)
	case "model":
		config.UpdateDefaultModel(val)
		client, err := agent.NewClient(val)
		if err != nil {
			return err
		}
		s.client = client
		s.model = val
		fmt.Printf("Switched to %s. New goals still use the session's agents.\n", val)
	default:
		return fmt.Errorf("unknown option %q", key)
	}
	fmt.Printf("%s = %s\n", key, val)
	return nil
}

func (s *session) showPlan(ctx context.Context, goal string) error {
	// Plan without applying by flipping dry-run for the duration.
	was := config.GetConfig().DryRun
	config.UpdateDryRun(true)
	defer config.UpdateDryRun(was)

	outcome, err := s.orch.RunGoal(ctx, goal)
	if err != nil {
		return err
	}
	if outcome.Diff == "" {
		fmt.Println("Plan produced no changes.")
		return nil
	}
	fmt.Println(diff.Colorize(outcome.Diff))
	return nil
}

func (s *session) showHistory(ctx context.Context) error {
	runs, err := s.history.RecentRuns(ctx, 10)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
	}
	for _, r := range runs {
		fmt.Printf("%s  %-12s exit=%d attempts=%d  %s\n",
			r.Timestamp.Local().Format("15:04:05"), r.Name, r.ExitCode, r.Attempts, r.Command)
	}

	totals, err := s.history.UsageTotals(ctx)
	if err != nil {
		return err
	}
	for model, u := range totals {
		fmt.Printf("%s (%s): %d prompt / %d completion tokens\n",
			model, u.Provider, u.PromptTokens, u.CompletionTokens)
	}

	timeline, err := s.history.Timeline(ctx, 10)
	if err != nil {
		return err
	}
	for _, ev := range timeline {
		fmt.Printf("%s  %-10s %s\n", ev.Timestamp.Local().Format("15:04:05"), ev.Kind, ev.Detail)
	}
	return nil
}

func (s *session) showEvents() error {
	events, err := eventlog.NewWriter().ReadDay(time.Now())
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No events today.")
		return nil
	}
	for _, ev := range events {
		fmt.Printf("%s  %-10s %s\n", ev.Timestamp.Local().Format("15:04:05"), ev.Kind, ev.Detail)
	}
	return nil
}

func gitDiffFile(ctx context.Context, workDir, file string) (string, error) {
	result, err := exec.NewLocalExec().Run(ctx, []string{"git", "diff", "--", file}, exec.ExecOpts{
		WorkDir: workDir,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("git diff failed: %s", strings.TrimSpace(result.Stderr))
	}
	return result.Stdout, nil
}

func (s *session) finish() {
	path, err := s.tracker.Save()
	if err != nil {
		s.logger.Warn("failed to save report: %v", err)
		return
	}
	fmt.Printf("Session report saved to %s\n", path)
}
