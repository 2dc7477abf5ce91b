package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"director/internal/preset"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage director presets",
}

func openPresets() (*preset.Store, error) {
	return preset.Open(filepath.Join(stateDir(), "presets.yaml"))
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPresets()
		if err != nil {
			return err
		}
		current := store.CurrentName()
		for _, name := range store.Names() {
			marker := "  "
			if name == current {
				marker = statusStyle.Render("* ")
			}
			fmt.Println(marker + name)
		}
		if current == "" {
			fmt.Println(noticeStyle.Render("(no preset selected; directing is disabled)"))
		}
		return nil
	},
}

var presetShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a preset as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPresets()
		if err != nil {
			return err
		}
		p, err := store.Get(args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(p)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

var presetSelectCmd = &cobra.Command{
	Use:   "select NAME",
	Short: "Make a preset current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPresets()
		if err != nil {
			return err
		}
		if err := store.Select(args[0]); err != nil {
			return err
		}
		fmt.Println(statusStyle.Render("selected " + args[0]))
		return nil
	},
}

var presetDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPresets()
		if err != nil {
			return err
		}
		wasCurrent := store.CurrentName() == args[0]
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Println(statusStyle.Render("deleted " + args[0]))
		if wasCurrent {
			fmt.Println(noticeStyle.Render("selection cleared; directing is disabled until a preset is selected"))
		}
		return nil
	},
}

var presetExportCmd = &cobra.Command{
	Use:   "export NAME FILE",
	Short: "Export a preset to a YAML file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPresets()
		if err != nil {
			return err
		}
		if err := store.Export(args[0], args[1]); err != nil {
			return err
		}
		fmt.Println(statusStyle.Render("exported " + args[0] + " to " + args[1]))
		return nil
	},
}

var presetImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a preset from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPresets()
		if err != nil {
			return err
		}
		name, err := store.Import(args[0])
		if err != nil {
			return err
		}
		fmt.Println(statusStyle.Render("imported " + name))
		return nil
	},
}

func init() {
	presetCmd.AddCommand(presetListCmd)
	presetCmd.AddCommand(presetShowCmd)
	presetCmd.AddCommand(presetSelectCmd)
	presetCmd.AddCommand(presetDeleteCmd)
	presetCmd.AddCommand(presetExportCmd)
	presetCmd.AddCommand(presetImportCmd)
}
