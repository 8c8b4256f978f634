// Package indexcmder provides the index command for embedding notes into the
// vector store.
package indexcmder

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/cliui"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/config"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/pipeline"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/start"
)

type indexCommander struct {
	path string

	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	vaultPath         string

	debug  bool
	v      *viper.Viper
	logger *slog.Logger
}

var indexFlags = config.FlagSet{
	config.FlagEmbeddingProv:  {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider type (ollama, openai)"},
	config.FlagEmbeddingTgt:   {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	config.FlagEmbeddingModel: {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	config.FlagVault:          {Name: "vault", ViperKey: "storage.vault_path", Description: "Path to the note vault directory"},
}

const indexLongDesc string = `Index notes into the vector store.

Reads the given markdown file, or every .md file under the given directory,
normalizes each note, embeds it, and stores the embedding. Every index
operation is checkpointed and audited, so it can be undone later:
  obsagent rollback <operation-id>

The note ID is the file path relative to the vault (or the file name when the
file lives outside the vault), so re-indexing the same file updates in place.

Examples:
  obsagent index notes/golang.md
  obsagent index ~/vault
  obsagent index notes/golang.md --embedding-provider openai --embedding-model text-embedding-3-small`

const indexShortDesc string = "Index notes into the vector store"

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			var err error
			cmder.v, err = config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(cmder.v, cmd, indexFlags, []string{
				config.FlagEmbeddingProv,
				config.FlagEmbeddingTgt,
				config.FlagEmbeddingModel,
				config.FlagVault,
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.path = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	config.AddStringFlag(cmd, indexFlags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, indexFlags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, indexFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddStringFlag(cmd, indexFlags, config.FlagVault, &cmder.vaultPath)

	return cmd
}

func (c *indexCommander) run(configDir string) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithFormat(logger.FormatPretty))

	manager, err := start.NewManager(configDir, c.v, c.logger)
	if err != nil {
		return err
	}

	ctx := context.Background()

	sys, err := manager.Build(ctx)
	if err != nil {
		return err
	}
	defer sys.Close()

	paths, err := collectNotes(c.path)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No markdown files found.")
		return nil
	}

	failed := 0

	for _, p := range paths {
		noteID := noteID(sys.VaultDir, p)

		var result pipeline.IndexResult
		stepErr := cliui.Step(os.Stdout, fmt.Sprintf("indexing %s", noteID), func() error {
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}

			result = sys.Service.IndexNote(ctx, pipeline.NoteInput{
				ID:      noteID,
				Content: string(data),
				Metadata: map[string]any{
					"path": p,
				},
			}, "")
			if !result.Success {
				return fmt.Errorf("%s", result.Error)
			}
			return nil
		})

		if stepErr != nil {
			failed++
			fmt.Printf("    %s\n", cliui.DimStyle.Render(stepErr.Error()))
			continue
		}

		fmt.Printf("    %s %s\n",
			cliui.KeyStyle.Render("operation:"),
			cliui.HashStyle.Render(result.OperationID),
		)
	}

	fmt.Printf("\n  %d indexed, %d failed\n", len(paths)-failed, failed)

	if failed > 0 {
		return fmt.Errorf("%d of %d notes failed to index", failed, len(paths))
	}
	return nil
}

// collectNotes resolves a file or directory argument into markdown file paths.
func collectNotes(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip hidden directories like .obsidian and .obsagent.
			if strings.HasPrefix(d.Name(), ".") && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), ".md") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", path, err)
	}

	return paths, nil
}

// noteID derives a stable note identifier from the file path: relative to the
// vault when possible, the bare file name otherwise.
func noteID(vaultDir, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}

	rel, err := filepath.Rel(vaultDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}

	return filepath.ToSlash(rel)
}
