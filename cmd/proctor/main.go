// Command proctor is a line-oriented harness that drives a full
// assessment session against a backend: intake, attempt, answering,
// violations, submission. It stands in for the web presentation layer;
// all session logic lives in internal/session.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/assessly/proctor/internal/api"
	"github.com/assessly/proctor/internal/config"
	"github.com/assessly/proctor/internal/intake"
	"github.com/assessly/proctor/internal/logger"
	"github.com/assessly/proctor/internal/model"
	"github.com/assessly/proctor/internal/session"
)

// replSignals feeds simulated environment signals (the `away`, `copy`,
// `devtools` commands) into the guard set, standing in for the browser
// listeners a web host would register.
type replSignals struct {
	ch chan session.Signal
}

func (r *replSignals) Signals() <-chan session.Signal { return r.ch }

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	client := api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, log)
	reader := bufio.NewReader(os.Stdin)
	ctx := context.Background()

	// ─── Intake ────────────────────────────────────────────────────────
	fmt.Println("=== Candidate Intake ===")
	form := &intake.Form{
		Email:              prompt(reader, "Email: "),
		LinkedinProfileURL: prompt(reader, "LinkedIn profile URL: "),
		GithubProfileURL:   prompt(reader, "GitHub profile URL: "),
	}

	candidateID, err := intake.Register(ctx, client, form)
	if err != nil {
		if ve, ok := err.(*intake.ValidationError); ok {
			fmt.Println("Form is invalid:")
			for field, msg := range ve.Fields {
				fmt.Printf("  %s: %s\n", field, msg)
			}
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Candidate registration failed")
	}
	fmt.Printf("Registered candidate %s\n\n", candidateID)

	// ─── Session ───────────────────────────────────────────────────────
	signals := &replSignals{ch: make(chan session.Signal, 8)}
	guards := session.NewGuardSet(signals, nil, log)
	ctrl := session.NewController(client, candidateID, cfg, guards, log)

	done := make(chan model.AttemptStatus, 1)
	ctrl.OnTransition = func(status model.AttemptStatus) {
		fmt.Printf("\n>> %s\n", status.Label())
		if status.Terminal() {
			done <- status
		}
	}
	ctrl.OnWarning = func(typ model.ViolationType, count int) {
		fmt.Printf("\n!! WARNING: %s\n!! Violations recorded: %d\n", typ.WarningMessage(), count)
	}

	if err := ctrl.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Unable to start attempt — please retry")
	}
	if ctrl.Status() != model.StatusRunning {
		os.Exit(0)
	}

	fmt.Println("Commands: show | answer <text> | next | prev | finish | away | copy | devtools | exit")

	// ─── Command loop ──────────────────────────────────────────────────
	for {
		select {
		case status := <-done:
			fmt.Printf("Session ended: %s\n", status)
			return
		default:
		}

		line := prompt(reader, "> ")
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "show":
			printState(ctrl)
		case "answer":
			ctrl.SetAnswer(rest)
			printState(ctrl)
		case "next":
			ctrl.Next()
			printState(ctrl)
		case "prev":
			ctrl.Previous()
			printState(ctrl)
		case "finish":
			if confirm(reader, "Submit your exam? Once submitted you cannot make changes. (y/N): ") {
				if err := ctrl.Finish(ctx); err != nil {
					fmt.Printf("Unable to submit attempt: %v. Please try again.\n", err)
				}
			}
		case "away":
			signals.ch <- session.Signal{Type: model.ViolationWindowBlur, At: time.Now()}
		case "copy":
			signals.ch <- session.Signal{Type: model.ViolationCopyAttempt, At: time.Now()}
		case "devtools":
			signals.ch <- session.Signal{Type: model.ViolationDevtoolsOpen, At: time.Now()}
		case "exit":
			if confirm(reader, "Do you want to exit the exam? This action will terminate your attempt. (y/N): ") {
				ctrl.Exit()
			}
		case "":
		default:
			fmt.Println("Unknown command")
		}

		// Give in-flight violation reports a moment to resolve so the
		// verdict prints before the next prompt.
		if cmd == "away" || cmd == "copy" || cmd == "devtools" {
			time.Sleep(500 * time.Millisecond)
		}

		if ctrl.Status().Terminal() {
			<-done
			fmt.Printf("Session ended: %s\n", ctrl.Status())
			return
		}
	}
}

func printState(ctrl *session.Controller) {
	q, index, answer, ok := ctrl.CurrentQuestion()
	fmt.Printf("[%s remaining] %s — violations: %d\n",
		ctrl.RemainingLabel(), ctrl.Status().Label(), ctrl.ViolationCount())
	if !ok {
		fmt.Println("Loading question...")
		return
	}
	fmt.Printf("Question %d of %d: %s\n", index+1, ctrl.QuestionCount(), q.Question)
	if answer == "" {
		fmt.Println("Answer: (empty)")
	} else {
		fmt.Printf("Answer: %s\n", answer)
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func confirm(reader *bufio.Reader, label string) bool {
	answer := strings.ToLower(prompt(reader, label))
	return answer == "y" || answer == "yes"
}
