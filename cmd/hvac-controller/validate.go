package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thatsimonsguy/hvac-controller/internal/config"
)

func newValidateCmd() *cobra.Command {
	var showEffective bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the config file without connecting to the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigFileFromEnv(configPath)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: %d HVAC entities, system mode %s, evaluation cache %dms\n",
				len(cfg.HVAC.HVACEntities), cfg.HVAC.SystemMode, cfg.HVAC.EvaluationCacheMs)

			if showEffective {
				out, err := yaml.Marshal(cfg)
				if err != nil {
					return err
				}
				fmt.Println("---\neffective configuration:")
				fmt.Print(string(out))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showEffective, "show-effective", false, "print the fully-resolved config, including env var overrides and defaults, as YAML")
	return cmd
}
