package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tesis/backend/internal/infrastructure/llm"
)

var (
	modelsProvider string
	probeModel     string
	probePrompt    string
	probeShow      bool
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the configured LLM providers",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the models every configured provider offers",
	Long: `Query the providers for their current model lists. Providers are
registered when their API key is set (TESIS_LLM_GEMINI_API_KEY,
TESIS_LLM_GROQ_API_KEY). The cache used by the server is bypassed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := registryFromFlags(cmd.Context())
		if err != nil {
			return err
		}
		return listModels(cmd.Context(), registry, modelsProvider, cmd.OutOrStdout())
	},
}

var modelsProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Stream a short completion and report latency",
	Long: `Send one prompt to a provider and report the time to the first
chunk, the total time and the number of bytes received.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := registryFromFlags(cmd.Context())
		if err != nil {
			return err
		}
		return probeModelLatency(cmd.Context(), registry, modelsProvider, probeModel, probePrompt, probeShow, cmd.OutOrStdout())
	},
}

func init() {
	modelsCmd.PersistentFlags().StringVarP(&modelsProvider, "provider", "p", "", "provider name (default: all for list, the default provider for probe)")

	modelsProbeCmd.Flags().StringVarP(&probeModel, "model", "m", "", "model id (default: the provider's default model)")
	modelsProbeCmd.Flags().StringVar(&probePrompt, "prompt", "Responde con una sola palabra: hola.", "prompt to send")
	modelsProbeCmd.Flags().BoolVar(&probeShow, "show", false, "print the generated text")

	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsProbeCmd)
}

func registryFromFlags(ctx context.Context) (*llm.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger()
	if err != nil {
		return nil, err
	}
	return llm.RegistryFromConfig(ctx, cfg.LLM, log)
}

func listModels(ctx context.Context, registry *llm.Registry, provider string, out io.Writer) error {
	var byProvider map[string][]llm.Model
	if provider == "" {
		if len(registry.Names()) == 0 {
			return fmt.Errorf("no LLM provider configured")
		}
		all, err := registry.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("list models: %w", err)
		}
		byProvider = all
	} else {
		p, err := registry.Get(provider)
		if err != nil {
			return err
		}
		models, err := p.ListModels(ctx)
		if err != nil {
			return fmt.Errorf("list %s models: %w", provider, err)
		}
		byProvider = map[string][]llm.Model{p.Name(): models}
	}

	names := make([]string, 0, len(byProvider))
	for name := range byProvider {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\tNAME")
	for _, name := range names {
		for _, m := range byProvider[name] {
			window := "-"
			if m.ContextWindow > 0 {
				window = strconv.Itoa(m.ContextWindow)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, m.ID, window, m.DisplayName)
		}
	}
	return w.Flush()
}

// probeResult is what one probe measured
type probeResult struct {
	Provider   string
	Model      string
	FirstChunk time.Duration
	Total      time.Duration
	Chunks     int
	Bytes      int
	Text       string
}

func runProbe(ctx context.Context, p llm.Provider, model, prompt string) (*probeResult, error) {
	if model == "" {
		model = p.DefaultModel()
	}
	res := &probeResult{Provider: p.Name(), Model: model}

	start := time.Now()
	var text []byte
	err := p.Stream(ctx, llm.Request{Model: model, Prompt: prompt}, func(chunk string) error {
		if res.Chunks == 0 {
			res.FirstChunk = time.Since(start)
		}
		res.Chunks++
		res.Bytes += len(chunk)
		text = append(text, chunk...)
		return nil
	})
	res.Total = time.Since(start)
	res.Text = string(text)
	if err != nil {
		return res, fmt.Errorf("probe %s/%s: %w", res.Provider, model, err)
	}
	return res, nil
}

func probeModelLatency(ctx context.Context, registry *llm.Registry, provider, model, prompt string, show bool, out io.Writer) error {
	p, err := registry.Get(provider)
	if err != nil {
		return err
	}
	res, err := runProbe(ctx, p, model, prompt)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Provider:\t%s\n", res.Provider)
	fmt.Fprintf(w, "Model:\t%s\n", res.Model)
	fmt.Fprintf(w, "First chunk:\t%s\n", res.FirstChunk.Round(time.Millisecond))
	fmt.Fprintf(w, "Total:\t%s\n", res.Total.Round(time.Millisecond))
	fmt.Fprintf(w, "Chunks:\t%d\n", res.Chunks)
	fmt.Fprintf(w, "Bytes:\t%d\n", res.Bytes)
	if err := w.Flush(); err != nil {
		return err
	}
	if show {
		fmt.Fprintln(out)
		fmt.Fprintln(out, res.Text)
	}
	return nil
}
