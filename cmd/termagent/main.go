package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"termagent/internal/agent"
	"termagent/internal/client"
	"termagent/internal/config"
	"termagent/internal/logging"
	"termagent/internal/tools"
)

var (
	version = "0.1.0"

	flagModel      string
	flagBackend    string
	flagWorkDir    string
	flagScript     string
	flagPreset     string
	flagPrompt     string
	flagTranscript string
	flagMaxIters   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "termagent [prompt]",
		Short: "Terminal coding agent",
		Long: `Termagent runs a coding agent against a workspace directory.
The agent talks to a Gemini or Ollama backend and uses tools to read,
write and edit files, search the workspace, and run shell commands.

With a prompt argument it runs one turn and exits. Without one it reads
prompts from stdin, one per line, until EOF.`,
		Args: cobra.ArbitraryArgs,
		RunE: runAgent,
	}

	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model to use (default is gemini-3-flash-preview)")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "backend: gemini, ollama or scripted")
	rootCmd.PersistentFlags().StringVarP(&flagWorkDir, "workdir", "C", "", "workspace directory (default is the current directory)")
	rootCmd.PersistentFlags().StringVar(&flagScript, "script", "", "response script for the scripted backend")
	rootCmd.PersistentFlags().StringVar(&flagPreset, "preset", "", "model preset: "+strings.Join(config.ListPresets(), ", "))
	rootCmd.PersistentFlags().StringVarP(&flagPrompt, "prompt", "p", "", "run one turn with this prompt and exit")
	rootCmd.PersistentFlags().StringVar(&flagTranscript, "transcript", "", "write the session transcript to this markdown file on exit")
	rootCmd.PersistentFlags().IntVar(&flagMaxIters, "max-iterations", 0, "cap on model round-trips per turn")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("termagent version %s\n", version)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "models",
		Short: "List known models",
		RunE:  runModels,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	workDir, err := resolveWorkDir()
	if err != nil {
		return err
	}

	logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	factory := client.NewFactory()
	defer factory.InvalidateAll()

	c, err := factory.GetClient(ctx, workDir, cfg)
	if err != nil {
		return err
	}

	registry, err := tools.BuildRegistry(workDir, cfg)
	if err != nil {
		return fmt.Errorf("failed to build tool registry: %w", err)
	}

	sess := agent.NewSession(c, registry, workDir, cfg)

	if flagTranscript != "" {
		defer writeTranscript(sess, flagTranscript)
	}

	prompt := flagPrompt
	if prompt == "" && len(args) > 0 {
		prompt = strings.Join(args, " ")
	}
	if prompt != "" {
		return runTurn(ctx, sess, prompt)
	}
	return runStdinLoop(ctx, sess)
}

// runModels prints the known models and, when the Ollama backend is
// active, the models installed on the server.
func runModels(cmd *cobra.Command, args []string) error {
	for _, m := range client.AvailableModels {
		fmt.Printf("%-28s %-8s %s\n", m.ID, m.Backend, m.Description)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil
	}
	if flagModel != "" {
		cfg.Model.Name = flagModel
	}
	if flagBackend != "" {
		cfg.API.ActiveBackend = flagBackend
	}
	if cfg.API.GetActiveBackend() != string(client.BackendOllama) {
		return nil
	}

	c, err := client.NewClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	oc, ok := c.(*client.OllamaClient)
	if !ok {
		return nil
	}
	if err := oc.Healthcheck(cmd.Context()); err != nil {
		fmt.Fprintln(os.Stderr, "\nOllama server unreachable:", err)
		return nil
	}

	installed, err := oc.ListModels(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println("\nInstalled on the Ollama server:")
	for _, name := range installed {
		fmt.Printf("  %s\n", name)
	}

	available, err := oc.IsModelAvailable(cmd.Context(), cfg.Model.Name)
	if err == nil && !available {
		fmt.Printf("\nConfigured model %q is not installed; run 'ollama pull %s'.\n",
			cfg.Model.Name, cfg.Model.Name)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Version = version

	if flagPreset != "" {
		if !cfg.ApplyPreset(flagPreset) {
			return nil, fmt.Errorf("unknown preset %q, available: %s", flagPreset, strings.Join(config.ListPresets(), ", "))
		}
	}
	if flagModel != "" {
		cfg.Model.Name = flagModel
	}
	if flagBackend != "" {
		cfg.API.ActiveBackend = flagBackend
	}
	if flagScript != "" {
		cfg.API.ActiveBackend = string(client.BackendScripted)
		cfg.API.ScriptPath = flagScript
	}
	if flagMaxIters > 0 {
		cfg.Agent.MaxIterations = flagMaxIters
	}

	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingAuth) {
			return nil, fmt.Errorf("%w (config file: %s)", err, config.GetConfigPath())
		}
		return nil, err
	}
	return cfg, nil
}

func resolveWorkDir() (string, error) {
	dir := flagWorkDir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("workspace directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace path %s is not a directory", abs)
	}
	return abs, nil
}

func runTurn(ctx context.Context, sess *agent.Session, prompt string) error {
	result, err := sess.Run(ctx, prompt)
	if err != nil {
		return err
	}
	fmt.Println(result.Text)
	return nil
}

func runStdinLoop(ctx context.Context, sess *agent.Session) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Print("> ")
	for scanner.Scan() {
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			fmt.Print("> ")
			continue
		}
		if prompt == "/quit" || prompt == "/exit" {
			return nil
		}
		if prompt == "/reset" {
			sess.Reset()
			fmt.Println("(history cleared)")
			fmt.Print("> ")
			continue
		}
		if prompt == "/tokens" {
			tokens, err := sess.CountHistoryTokens(ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
			} else {
				fmt.Printf("(%d tokens in history)\n", tokens)
			}
			fmt.Print("> ")
			continue
		}

		if err := runTurn(ctx, sess, prompt); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func writeTranscript(sess *agent.Session, path string) {
	if err := os.WriteFile(path, []byte(sess.ExportMarkdown()), 0644); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write transcript:", err)
	}
}
