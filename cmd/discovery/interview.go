package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"discovery/pkg/interview"
	"discovery/pkg/session"
	"discovery/pkg/version"
)

func runTypes(_ context.Context, args []string) error {
	var common commonFlags
	fs := newFlagSet("types", &common)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(&common)
	if err != nil {
		return err
	}
	bank, err := loadBank(cfg.Archetypes)
	if err != nil {
		return err
	}
	for _, id := range bank.All() {
		def, err := bank.Get(id)
		if err != nil {
			return err
		}
		fmt.Printf("%-26s %2d questions  %s\n", def.Type, len(def.Questions), def.Description)
	}
	return nil
}

func runVersion(context.Context, []string) error {
	fmt.Printf("discovery %s\n", version.String())
	return nil
}

func runInterview(ctx context.Context, args []string) error {
	var (
		common        commonFlags
		interviewType string
		userID        string
		sessionID     string
	)
	fs := newFlagSet("interview", &common)
	fs.StringVar(&interviewType, "type", interview.TypeGeneralDiscovery, "Interview archetype (see 'types')")
	fs.StringVar(&userID, "user", "", "User id the session belongs to (required for new sessions)")
	fs.StringVar(&sessionID, "session", "", "Continue a stored session instead of creating one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(ctx, &common)
	if err != nil {
		return err
	}
	defer a.close()

	s, err := a.openSession(ctx, sessionID, userID, interviewType)
	if err != nil {
		return err
	}
	fmt.Printf("📝 Session %s (%s)\n\n", s.ID, s.InterviewType)

	q, err := a.sessions.Engine().NextQuestion(s)
	if err != nil {
		return err
	}
	p := newPrompter()
	for q != nil && s.Status != interview.StatusCompleted {
		fmt.Println(formatQuestion(q))
		line, err := p.ask("> ")
		if err != nil {
			return a.suspendSession(ctx, s.ID, err)
		}

		res, err := a.sessions.Respond(ctx, s.ID, answerValue(q, line))
		if err != nil {
			return err
		}
		if !res.Success {
			fmt.Printf("⚠️  %s\n\n", res.Error)
			continue
		}
		s = res.Session
		fmt.Printf("   (%d%% complete)\n\n", res.Progress.CompletionPercentage)
		if res.Completed {
			break
		}
		q = res.NextQuestion
	}

	result, err := a.sessions.Analyze(ctx, s.ID)
	if err != nil {
		return err
	}
	fmt.Println("✅ Interview complete")
	return printJSON(result)
}

func (a *app) openSession(ctx context.Context, id, userID, interviewType string) (*interview.Session, error) {
	if id == "" {
		if strings.TrimSpace(userID) == "" {
			return nil, fmt.Errorf("--user is required to start a session")
		}
		return a.sessions.CreateSession(ctx, session.CreateParams{UserID: userID, InterviewType: interviewType})
	}
	s, err := a.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if s.Status == interview.StatusPaused {
		return a.sessions.ResumeSession(ctx, id)
	}
	return s, nil
}

// suspendSession pauses a session whose input ended so it can be continued later.
func (a *app) suspendSession(ctx context.Context, id string, cause error) error {
	if !errors.Is(cause, errInputClosed) {
		return cause
	}
	if _, err := a.sessions.PauseSession(ctx, id); err != nil {
		return fmt.Errorf("%w, and pausing session %s failed: %w", cause, id, err)
	}
	return fmt.Errorf("%w: session %s paused, continue with --session %s", cause, id, id)
}

func formatQuestion(q *interview.Question) string {
	var sb strings.Builder
	sb.WriteString(q.Text)
	if !q.Required {
		sb.WriteString(" (optional)")
	}
	switch q.Type {
	case interview.QuestionMultipleChoice:
		fmt.Fprintf(&sb, "\n   options: %s", strings.Join(q.Options, " | "))
	case interview.QuestionMultipleSelect:
		fmt.Fprintf(&sb, "\n   options (comma separated): %s", strings.Join(q.Options, " | "))
	case interview.QuestionYesNo:
		sb.WriteString(" [yes/no]")
	case interview.QuestionScale:
		if len(q.Options) > 0 {
			fmt.Fprintf(&sb, " [%s-%s]", q.Options[0], q.Options[len(q.Options)-1])
		}
	case interview.QuestionDate:
		sb.WriteString(" [YYYY-MM-DD]")
	}
	return sb.String()
}

// answerValue converts a typed line into the value shape the engine validates.
func answerValue(q *interview.Question, line string) any {
	if q.Type != interview.QuestionMultipleSelect || line == "" {
		return line
	}
	parts := strings.Split(line, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
