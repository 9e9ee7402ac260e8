package commands

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/corpusforge/corpus-engine/cmd/corpus-engine/ui"
	"github.com/corpusforge/corpus-engine/internal/decode"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported input formats",
	Run: func(cmd *cobra.Command, args []string) {
		ui.Init(noColor, verbose)
		ui.Section("Supported Formats")

		registry := decode.NewRegistry()
		byEngine := make(map[string][]string)
		for _, d := range registry.Decoders() {
			byEngine[d.Name()] = append(byEngine[d.Name()], d.Formats()...)
		}

		engines := make([]string, 0, len(byEngine))
		for name := range byEngine {
			engines = append(engines, name)
		}
		sort.Strings(engines)
		for _, name := range engines {
			exts := byEngine[name]
			sort.Strings(exts)
			rows := ""
			for i, ext := range exts {
				if i > 0 {
					rows += ", "
				}
				rows += "." + ext
			}
			ui.KeyValue(name, rows)
		}
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
