package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Version is set at build time
var Version = "0.1.0"

var (
	labelFmt = color.New(color.FgCyan).SprintFunc()
	okFmt    = color.New(color.FgGreen).SprintFunc()
	warnFmt  = color.New(color.FgYellow, color.Bold).SprintFunc()
)

func newRootCmd() *cobra.Command {
	var outputFormat string

	root := &cobra.Command{
		Use:   "aesdir",
		Short: "Inspect encrypted index directories",
		Long: `aesdir reads the public parts of an encrypted directory's key file.

It never asks for the passphrase and never decrypts file contents.`,
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")

	root.AddCommand(newInspectCmd(&outputFormat))
	root.AddCommand(newVersionCmd())
	return root
}

// formatOutput writes data as json or yaml. It reports false for the table
// format, which each command prints itself.
func formatOutput(w io.Writer, format string, data any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(data)
	case "yaml":
		out, err := yaml.Marshal(data)
		if err != nil {
			return true, err
		}
		_, err = w.Write(out)
		return true, err
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format: %s", format)
	}
}
