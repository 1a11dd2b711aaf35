package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"windsentry/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigNewCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigNewCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "new",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if _, err := os.Stat(target); err == nil {
				if !overwrite {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				}
				if err := os.Remove(target); err != nil {
					return fmt.Errorf("remove existing config: %w", err)
				}
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("check config path: %w", err)
			}

			if err := config.WriteSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set storage and cloud credentials before running windsentry.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n\n", ctx.configPath)
			fmt.Fprintf(out, "[paths]\n")
			fmt.Fprintf(out, "  incoming_dir = %s\n", cfg.Paths.IncomingDir)
			fmt.Fprintf(out, "  staging_dir  = %s\n", cfg.Paths.StagingDir)
			fmt.Fprintf(out, "  data_dir     = %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "  log_dir      = %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "[preprocess]\n")
			fmt.Fprintf(out, "  window_stride   = %d\n", cfg.Preprocess.WindowStride)
			fmt.Fprintf(out, "  wavelet_levels  = %d\n", cfg.Preprocess.WaveletLevels)
			fmt.Fprintf(out, "  max_shard_bytes = %d\n", cfg.Preprocess.MaxShardBytes)
			fmt.Fprintf(out, "[storage]\n")
			fmt.Fprintf(out, "  endpoint = %s\n", cfg.Storage.Endpoint)
			fmt.Fprintf(out, "  bucket   = %s\n", cfg.Storage.Bucket)
			fmt.Fprintf(out, "  prefix   = %s\n", cfg.Storage.Prefix)
			fmt.Fprintf(out, "  use_ssl  = %s\n", yesNo(cfg.Storage.UseSSL))
			fmt.Fprintf(out, "  access_key set = %s\n", yesNo(cfg.Storage.AccessKey != ""))
			fmt.Fprintf(out, "[cloud]\n")
			fmt.Fprintf(out, "  region   = %s\n", cfg.Cloud.Region)
			fmt.Fprintf(out, "  role_arn = %s\n", cfg.Cloud.RoleArn)
			fmt.Fprintf(out, "[training]\n")
			fmt.Fprintf(out, "  image         = %s\n", cfg.Training.Image)
			fmt.Fprintf(out, "  instance_type = %s\n", cfg.Training.InstanceType)
			fmt.Fprintf(out, "[evaluation]\n")
			fmt.Fprintf(out, "  instance_type  = %s\n", cfg.Evaluation.InstanceType)
			fmt.Fprintf(out, "  std_multiplier = %.2f\n", cfg.Evaluation.StdMultiplier)
			fmt.Fprintf(out, "[deployment]\n")
			fmt.Fprintf(out, "  fleet_target_arn = %s\n", cfg.Deployment.FleetTargetArn)
			fmt.Fprintf(out, "[notifications]\n")
			fmt.Fprintf(out, "  broker configured = %s\n", yesNo(strings.TrimSpace(cfg.Notifications.Broker) != ""))
			return nil
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
