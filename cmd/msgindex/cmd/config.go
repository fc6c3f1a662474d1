package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/msgindex/configs"
	"github.com/Aman-CERP/msgindex/internal/config"
	"github.com/Aman-CERP/msgindex/internal/output"
)

func newConfigCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write configuration",
		Long: `Configuration is merged from built-in defaults, the user file
($XDG_CONFIG_HOME/msgindex/config.yaml), .msgindex.yaml in the working
directory and MSGINDEX_* environment variables, in that order.`,
	}
	cmd.AddCommand(newConfigInitCmd(g), newConfigShowCmd(g), newConfigPathCmd(g))
	return cmd
}

func newConfigInitCmd(g *globals) *cobra.Command {
	var project, force, template bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to a file",
		Long: `Write the effective configuration as YAML to the user config file,
or with --project to .msgindex.yaml in the working directory. With
--template the annotated default configuration is written instead. An
existing file is only replaced with --force, after a timestamped backup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			path := config.GetUserConfigPath()
			if project {
				dir, err := g.workDir()
				if err != nil {
					return err
				}
				path = filepath.Join(dir, config.ProjectFileName)
			}

			_, err := os.Stat(path)
			if err == nil {
				if !force {
					return fmt.Errorf("%s already exists (use --force to replace it)", path)
				}
				backup, err := config.BackupFile(path)
				if err != nil {
					return err
				}
				out.Status("", "Backed up to "+backup)
			}

			if template {
				err = writeTemplate(path)
			} else {
				err = g.cfg.WriteYAML(path)
			}
			if err != nil {
				return err
			}
			out.Successf("Wrote %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&project, "project", false, "Write .msgindex.yaml in the working directory")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing file")
	cmd.Flags().BoolVar(&template, "template", false, "Write the commented default template")
	return cmd
}

func writeTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func newConfigShowCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				return output.New(cmd.OutOrStdout()).JSON(g.cfg)
			}
			data, err := g.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newConfigPathCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := g.workDir()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "user:    %s\n", config.GetUserConfigPath())
			fmt.Fprintf(w, "project: %s\n", filepath.Join(dir, config.ProjectFileName))
			fmt.Fprintf(w, "home:    %s\n", config.HomeDir())
			return nil
		},
	}
}
