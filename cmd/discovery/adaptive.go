package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"discovery/pkg/config"
	"discovery/pkg/export"
	"discovery/pkg/logx"
	"discovery/pkg/workflow"
)

const pollInterval = 100 * time.Millisecond

func runAdaptive(ctx context.Context, args []string) error {
	var (
		common      commonFlags
		in          workflow.Input
		variant     string
		guiding     string
		resumeID    string
		metricsPath string
	)
	fs := newFlagSet("adaptive", &common)
	fs.StringVar(&in.Domain, "domain", "", "Domain the interview is about")
	fs.StringVar(&in.Objective, "objective", "", "What the interviewee wants to achieve")
	fs.StringVar(&in.Constraints, "constraints", "", "Known constraints (optional)")
	fs.StringVar(&guiding, "questions", "", "Guiding questions to ask first, separated by '|'")
	fs.StringVar(&variant, "variant", "", "four_phase or five_phase (default from config)")
	fs.StringVar(&resumeID, "resume", "", "Resume a persisted run by id")
	fs.StringVar(&metricsPath, "metrics-out", "", "Write the run's metrics in Prometheus text format to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(ctx, &common)
	if err != nil {
		return err
	}
	defer a.close()

	id := resumeID
	if resumeID != "" {
		if err := a.workflows.Resume(ctx, resumeID); err != nil {
			return err
		}
	} else {
		if variant == "" {
			variant = a.cfg.Workflow.Variant
		}
		if variant != config.VariantFourPhase && variant != config.VariantFivePhase {
			return fmt.Errorf("invalid variant '%s', must be '%s' or '%s'", variant, config.VariantFourPhase, config.VariantFivePhase)
		}
		in.Variant = workflow.Variant(variant)
		in.GuidingQuestions = splitQuestions(guiding)
		if id, err = a.workflows.Start(ctx, in); err != nil {
			return err
		}
	}
	fmt.Printf("🧭 Adaptive interview %s\n\n", id)

	final, runErr := a.driveWorkflow(ctx, id, newPrompter())
	if metricsPath != "" {
		a.writeMetrics(metricsPath)
	}
	if runErr != nil {
		printRunErrors(id)
		return runErr
	}

	printRecommendations(final)
	if err := a.exporter.Export(ctx, export.Key(export.KindAdaptive, id), final); err != nil {
		a.logger.Warn("export adaptive run %s failed: %v", id, err)
	}
	return nil
}

// driveWorkflow answers every wait of a run from p until the run finishes.
func (a *app) driveWorkflow(ctx context.Context, id string, p *prompter) (*workflow.State, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastPrompt := ""
	for {
		st, err := a.workflows.Query(ctx, id)
		if err != nil {
			return nil, err
		}
		if workflow.IsTerminal(st.Phase) || st.Error != "" {
			break
		}
		if key := promptKey(st); st.AwaitingResponse && key != lastPrompt {
			lastPrompt = key
			if err := a.answer(ctx, st, p); err != nil {
				return nil, a.detach(id, err)
			}
		}

		select {
		case <-ctx.Done():
			return nil, a.detach(id, ctx.Err())
		case <-ticker.C:
		}
	}
	return a.workflows.Wait(ctx, id)
}

func promptKey(st *workflow.State) string {
	return fmt.Sprintf("%s/%d/%s", st.Phase, len(st.Exchanges), st.CurrentQuestion)
}

func (a *app) answer(ctx context.Context, st *workflow.State, p *prompter) error {
	if st.Phase == workflow.PhaseSynthesize {
		return a.reviewContext(ctx, st, p)
	}

	fmt.Printf("❓ %s\n", st.CurrentQuestion)
	var line string
	for line == "" {
		var err error
		if line, err = p.ask("> "); err != nil {
			return err
		}
	}
	fmt.Println()
	_, err := a.workflows.Respond(ctx, st.ID, line)
	return err
}

// reviewContext shows the synthesized document and releases the review gate, either
// as-is or with a replacement read from a JSON file.
func (a *app) reviewContext(ctx context.Context, st *workflow.State, p *prompter) error {
	fmt.Println("📋 Context document")
	fmt.Println(formatContext(st.ContextDocument))

	for {
		line, err := p.ask("Press Enter to accept, or give the path of an edited JSON document: ")
		if err != nil {
			return err
		}
		if line == "" {
			_, err = a.workflows.Respond(ctx, st.ID, "")
			return err
		}
		doc, err := readContextDocument(line)
		if err != nil {
			fmt.Printf("⚠️  %v\n", err)
			continue
		}
		_, err = a.workflows.EditContext(ctx, st.ID, doc)
		return err
	}
}

// detach leaves a run that can no longer be driven from this terminal. With persistent
// storage it can be resumed later; otherwise it is cancelled.
func (a *app) detach(id string, cause error) error {
	if a.store != nil {
		return fmt.Errorf("%w: run %s saved, continue with --resume %s", cause, id, id)
	}
	if err := a.workflows.Cancel(id); err != nil && !workflow.IsNotFound(err) {
		a.logger.Warn("failed to cancel workflow %s: %v", id, err)
	}
	return fmt.Errorf("%w: run %s cancelled", cause, id)
}

func (a *app) writeMetrics(path string) {
	if a.recorder == nil {
		a.logger.Warn("metrics are disabled, nothing written to %s", path)
		return
	}
	f, err := os.Create(path)
	if err != nil {
		a.logger.Warn("failed to create metrics file: %v", err)
		return
	}
	defer func() { _ = f.Close() }()
	if err := a.recorder.WriteText(f); err != nil {
		a.logger.Warn("failed to write metrics: %v", err)
	}
}

// printRunErrors repeats the errors the run logged, which are easy to miss among the
// prompts.
func printRunErrors(id string) {
	component := "workflow/" + id
	if len(id) > 8 {
		component = "workflow/" + id[:8]
	}
	for _, e := range logx.RecentEntries(component) {
		if e.Level == string(logx.LevelError) {
			fmt.Fprintf(os.Stderr, "  %s %s\n", e.Timestamp, e.Message)
		}
	}
}

func splitQuestions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, q := range strings.Split(raw, "|") {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

func readContextDocument(path string) (*workflow.ContextDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read context document: %w", err)
	}
	var doc workflow.ContextDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse context document: %w", err)
	}
	if strings.TrimSpace(doc.Summary) == "" {
		return nil, errors.New("context document needs a summary")
	}
	return &doc, nil
}

func formatContext(doc *workflow.ContextDocument) string {
	if doc == nil {
		return "(none)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary: %s\n", doc.Summary)
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "%s:\n", title)
		for _, item := range items {
			fmt.Fprintf(&sb, "  - %s\n", item)
		}
	}
	section("Facts", doc.Facts)
	section("Constraints", doc.Constraints)
	section("Priorities", doc.Priorities)
	section("Assumptions", doc.Assumptions)
	section("Uncertainties", doc.Uncertainties)
	if doc.StrategicAnalysis != "" {
		fmt.Fprintf(&sb, "Strategic analysis: %s\n", doc.StrategicAnalysis)
	}
	return sb.String()
}

func printRecommendations(st *workflow.State) {
	if st == nil || st.Recommendations == nil {
		fmt.Println("No recommendations were produced.")
		return
	}
	fmt.Printf("✅ %d recommendations\n\n", len(st.Recommendations.Items))
	for i, r := range st.Recommendations.Items {
		fmt.Printf("%d. %s [%s, confidence %s]\n", i+1, r.Title, r.Priority, r.Confidence)
		fmt.Printf("   %s\n", r.Rationale)
		for _, step := range r.NextSteps {
			fmt.Printf("   → %s\n", step)
		}
	}
	if st.Recommendations.ComparisonMarkdown != "" {
		fmt.Printf("\n%s\n", st.Recommendations.ComparisonMarkdown)
	}
}
