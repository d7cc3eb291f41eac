package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmfenton/plotdesk/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage plotdesk configuration",
	Long:  `Read and write plotdesk configuration stored in config.json.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		tmpl := config.Template()
		if err := config.WriteFile(path, tmpl); err != nil {
			return err
		}
		fmt.Printf("✓ Created %s\n", path)
		fmt.Println("  Edit it to set your user id and catalog_url.")
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Flags{
			User:   globalFlags.User,
			DBPath: globalFlags.DBPath,
			Listen: globalFlags.Listen,
		})
		if err != nil {
			return err
		}

		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}
		user := cfg.User
		if user == "" {
			user = "(anonymous)"
		}

		format := cfg.Format
		if globalFlags.Format != "" {
			format = globalFlags.Format
		}

		if format == "json" {
			type configOut struct {
				User       string  `json:"user"`
				Format     string  `json:"default_format"`
				Timeout    string  `json:"timeout"`
				Rate       float64 `json:"rate"`
				CatalogURL string  `json:"catalog_url"`
				BaseURL    string  `json:"base_url"`
				Listen     string  `json:"listen"`
				DBPath     string  `json:"db_path"`
				PlotType   string  `json:"plot_type"`
				ConfigFile string  `json:"config_file"`
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(configOut{
				User:       cfg.User,
				Format:     cfg.Format,
				Timeout:    cfg.Timeout.String(),
				Rate:       cfg.Rate,
				CatalogURL: cfg.CatalogURL,
				BaseURL:    cfg.BaseURL,
				Listen:     cfg.Listen,
				DBPath:     cfg.DBPath,
				PlotType:   cfg.PlotType,
				ConfigFile: cfg.ConfigPath,
			})
		}

		fmt.Printf("user         %s\n", user)
		fmt.Printf("format       %s\n", cfg.Format)
		fmt.Printf("timeout      %s\n", cfg.Timeout)
		fmt.Printf("rate         %g\n", cfg.Rate)
		fmt.Printf("catalog_url  %s\n", orNotSet(cfg.CatalogURL))
		fmt.Printf("base_url     %s\n", cfg.BaseURL)
		fmt.Printf("listen       %s\n", cfg.Listen)
		fmt.Printf("db_path      %s\n", cfg.DBPath)
		fmt.Printf("plot_type    %s\n", cfg.PlotType)
		fmt.Printf("config file  %s\n", src)
		return nil
	},
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
