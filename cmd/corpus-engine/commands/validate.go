package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corpusforge/corpus-engine/cmd/corpus-engine/ui"
	"github.com/corpusforge/corpus-engine/internal/config"
	"github.com/corpusforge/corpus-engine/internal/extract"
	"github.com/corpusforge/corpus-engine/internal/observability"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the corpus word lists and pattern catalog",
	Long: `Validate checks that every configured word list loads, reports entry
counts, and compiles the pattern catalog. Run it after editing corpus files
or a custom catalog to catch problems before a batch run.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ui.Init(noColor, verbose)

	ui.Section("Corpus Validation")
	ui.KeyValue("corpus dir", cfg.Extract.CorpusDir)
	ui.Newline()

	problems := 0

	sp := ui.NewSpinner("loading corpus")
	sp.Start()
	corpus, err := extract.LoadCorpus(cfg.Extract.CorpusDir, observability.Nop())
	sp.Stop()
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	for _, list := range extract.AllLists() {
		size := corpus.Automaton(list).Size()
		path := filepath.Join(cfg.Extract.CorpusDir, string(list)+".txt")
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			ui.Warning("%-15s missing (%s)", list, path)
			problems++
			continue
		}
		if size == 0 {
			ui.Warning("%-15s empty", list)
			problems++
			continue
		}
		ui.Message("%-15s %d entries", list, size)
	}
	ui.Newline()

	catalog := extract.DefaultCatalog()
	source := "built-in"
	if cfg.Extract.PatternCatalogPath != "" {
		source = cfg.Extract.PatternCatalogPath
		catalog, err = extract.LoadCatalog(cfg.Extract.PatternCatalogPath)
		if err != nil {
			return fmt.Errorf("load pattern catalog: %w", err)
		}
	}
	if _, err := extract.NewPatternRecognizer(catalog); err != nil {
		return fmt.Errorf("compile pattern catalog (%s): %w", source, err)
	}
	ui.Message("pattern catalog (%s): %d patterns compile", source, len(catalog.Patterns))
	ui.Newline()

	if problems > 0 {
		ui.Warning("%d word list problems found", problems)
		return nil
	}
	ui.Success("corpus and catalog are valid")
	return nil
}
