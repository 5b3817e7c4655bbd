package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"kubeintent/internal/capability"
	"kubeintent/internal/cluster"
	"kubeintent/internal/discovery"
	"kubeintent/internal/oracle"
	"kubeintent/internal/question"
	"kubeintent/internal/session"
)

// kubeintent runs the pipeline once: discover the cluster, recommend for the
// intent, collect answers interactively, enhance, and print the manifests.
func main() {
	intent := flag.String("intent", "", "what you want to deploy, in plain words")
	explain := flag.String("explain", "", "print the field tree of one kind and exit")
	kubeconfig := flag.String("kubeconfig", os.Getenv("KUBECONFIG"), "kubeconfig path; empty means in-cluster")
	model := flag.String("model", "gemini-2.0-flash", "oracle model name")
	requirements := flag.String("requirements", "", "free-form requirements applied during enhancement")
	out := flag.String("o", "", "write manifests to this file instead of stdout")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	_ = godotenv.Load()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *intent == "" && *explain == "" {
		fmt.Fprintln(os.Stderr, "usage: kubeintent -intent \"run a web app\" | kubeintent -explain Deployment")
		os.Exit(2)
	}

	if err := run(context.Background(), *intent, *explain, *kubeconfig, *model, *requirements, *out, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, intent, explain, kubeconfig, model, requirements, out string, logger *slog.Logger) error {
	conn, err := cluster.NewKubernetesConnection(kubeconfig, logger)
	if err != nil {
		return err
	}
	oc, err := oracle.NewGeminiClient(ctx, model)
	if err != nil {
		return err
	}
	defer oc.Close()
	client := oracle.Chain(oc,
		oracle.Retry(3, 300*time.Millisecond),
		oracle.ValidateEnvelope(),
	)

	orch, err := session.NewOrchestrator(session.Config{
		Connection: conn,
		Oracle:     client,
		Logger:     logger,
		Discovery: discovery.Options{
			Cache:  capability.NewSchemaCache(1024, time.Hour),
			Logger: logger,
		},
	})
	if err != nil {
		return err
	}

	if explain != "" {
		text, err := orch.Explain(ctx, explain)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	}

	idx, err := orch.Discover(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "indexed %d kinds", idx.Len())
	if n := len(idx.Failures()); n > 0 {
		fmt.Fprintf(os.Stderr, " (%d failed)", n)
	}
	fmt.Fprintln(os.Stderr)

	sess, err := orch.Recommend(ctx, intent)
	if err != nil {
		return err
	}
	sol, _ := sess.Latest()
	fmt.Fprintf(os.Stderr, "recommendation: %s (score %.2f)\n", sol.ID, sol.Score)
	for _, res := range sol.Resources {
		fmt.Fprintf(os.Stderr, "  - %s\n", res.Ref.String())
	}
	if sol.Rationale != "" {
		fmt.Fprintf(os.Stderr, "  %s\n", sol.Rationale)
	}

	if err := collectAnswers(ctx, orch, sess); err != nil {
		return err
	}

	if sess, err = orch.Enhance(ctx, sess.ID, requirements); err != nil {
		return err
	}
	for _, warn := range sess.Warnings {
		fmt.Fprintf(os.Stderr, "warning: resource %d %s: %s\n", warn.Resource, warn.Path, warn.Reason)
	}

	sess, data, err := orch.Finalize(ctx, sess.ID)
	if err != nil {
		return err
	}
	logger.Debug("session finalized", "session", sess.ID, "ref", sess.ManifestRef)

	if out != "" {
		return os.WriteFile(out, data, 0o644)
	}
	_, err = os.Stdout.Write(data)
	return err
}

// collectAnswers prompts for each eligible question until the set completes.
// Dependent questions surface only after their prerequisites are answered.
func collectAnswers(ctx context.Context, orch *session.Orchestrator, sess *session.Session) error {
	if sess.Questions == nil {
		return nil
	}
	reader := bufio.NewReader(os.Stdin)
	for !sess.Questions.Complete() {
		eligible := sess.Questions.Eligible()
		if len(eligible) == 0 {
			break
		}
		for _, q := range eligible {
			fmt.Fprintf(os.Stderr, "%s", q.Prompt)
			if len(q.Options) > 0 {
				fmt.Fprintf(os.Stderr, " %v", q.Options)
			}
			fmt.Fprint(os.Stderr, ": ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read answer: %w", err)
			}
			value := parseAnswer(q, strings.TrimSpace(line))
			updated, err := orch.Answer(ctx, sess.ID, q.ID, value)
			if err != nil {
				return err
			}
			sess = updated
		}
	}
	return nil
}

// parseAnswer coerces the raw line to the question's answer type, falling
// back to the string form when it does not parse.
func parseAnswer(q *question.Question, raw string) any {
	switch q.AnswerType {
	case question.AnswerBool:
		return raw == "y" || raw == "yes" || raw == "true"
	case question.AnswerNumber:
		var n float64
		if err := json.Unmarshal([]byte(raw), &n); err == nil {
			return n
		}
	}
	return raw
}
