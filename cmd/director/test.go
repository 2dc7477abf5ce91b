package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"director/internal/config"
	"director/internal/llm"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity to the configured vendor(s)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Path(workspace))
		if err != nil {
			return err
		}

		probes := buildProbes(cfg)
		if len(probes) == 0 {
			return fmt.Errorf("nothing to test: configure a model plus an endpoint or API key")
		}

		client := llm.NewClient()
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		// Probe every configured path concurrently; report each outcome.
		g, ctx := errgroup.WithContext(ctx)
		results := make([]string, len(probes))
		for i, probe := range probes {
			g.Go(func() error {
				summary, err := client.TestConnection(ctx, probe)
				if err != nil {
					results[i] = errorStyle.Render(fmt.Sprintf("✗ %s/%s: %s", probe.Transport, probe.Vendor, llm.Summary(err)))
					return err
				}
				results[i] = statusStyle.Render("✓ " + summary)
				return nil
			})
		}
		err = g.Wait()
		for _, line := range results {
			fmt.Println(line)
		}
		return err
	},
}

// buildProbes returns one GenerateConfig per usable transport path.
func buildProbes(cfg *config.Config) []llm.GenerateConfig {
	base := guidanceConfig(cfg)
	var probes []llm.GenerateConfig
	if cfg.LLM.Endpoint != "" && cfg.LLM.Transport == string(llm.TransportProxy) {
		proxy := base
		proxy.Transport = llm.TransportProxy
		probes = append(probes, proxy)
	}
	if cfg.LLM.APIKey != "" {
		direct := base
		direct.Transport = llm.TransportDirect
		if cfg.LLM.Transport == string(llm.TransportProxy) {
			direct.Endpoint = "" // fall back to the vendor default endpoint
		}
		probes = append(probes, direct)
	}
	return probes
}
