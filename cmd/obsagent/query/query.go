// Package querycmder provides the query command for asking the agent
// questions over indexed notes.
package querycmder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/B0LK13/obsidian-agent-sub005/pkg/cliui"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/config"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/logger"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/pipeline"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/start"
	"github.com/B0LK13/obsidian-agent-sub005/pkg/utils"
)

type queryCommander struct {
	query string
	topK  int

	completionProvider string
	completionTarget   string
	completionModel    string

	debug  bool
	v      *viper.Viper
	logger *slog.Logger
}

var queryFlags = config.FlagSet{
	config.FlagCompletionProv:  {Name: "completion-provider", ViperKey: "completion.provider", Description: "Completion provider type (ollama, openai)"},
	config.FlagCompletionTgt:   {Name: "completion-target", ViperKey: "completion.target", Description: "Completion provider URL"},
	config.FlagCompletionModel: {Name: "completion-model", ViperKey: "completion.model", Description: "Completion model name"},
}

const queryLongDesc string = `Ask the agent a question over indexed notes.

Embeds the query, retrieves the most similar notes from the vector store, and
asks the completion model to answer using only that context. The answer is
printed together with its confidence, the evidence notes it was built from,
and a recommended next action when the model suggests one.

Examples:
  obsagent query "how does photosynthesis work"
  obsagent query "error handling patterns" --top 10
  obsagent query "project deadlines" --completion-provider openai --completion-model gpt-4o-mini`

const queryShortDesc string = "Ask the agent a question over indexed notes"

func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			var err error
			cmder.v, err = config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(cmder.v, cmd, queryFlags, []string{
				config.FlagCompletionProv,
				config.FlagCompletionTgt,
				config.FlagCompletionModel,
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 0, "Number of notes to retrieve (default from config)")
	config.AddStringFlag(cmd, queryFlags, config.FlagCompletionProv, &cmder.completionProvider)
	config.AddStringFlag(cmd, queryFlags, config.FlagCompletionTgt, &cmder.completionTarget)
	config.AddStringFlag(cmd, queryFlags, config.FlagCompletionModel, &cmder.completionModel)

	return cmd
}

func (c *queryCommander) run(configDir string) error {
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithFormat(logger.FormatPretty))

	manager, err := start.NewManager(configDir, c.v, c.logger)
	if err != nil {
		return err
	}

	sys, err := manager.Build(context.Background())
	if err != nil {
		return err
	}
	defer sys.Close()

	result := sys.Service.QueryAgent(context.Background(), c.query, pipeline.QueryOptions{
		TopK: c.topK,
	})
	if !result.Success {
		return fmt.Errorf("query failed: %s", result.Error)
	}

	c.printResult(result)
	return nil
}

func (c *queryCommander) printResult(result pipeline.QueryResult) {
	fmt.Printf("\n%s %s\n\n",
		cliui.HeaderStyle.Render("Answer for:"),
		cliui.HashStyle.Render(fmt.Sprintf("%q", c.query)),
	)

	fmt.Printf("%s\n\n", result.Answer)

	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("Confidence:"),
		cliui.ValueStyle.Render(fmt.Sprintf("%.2f", result.Confidence)),
	)

	if result.RecommendedAction != "" {
		fmt.Printf("  %s %s\n",
			cliui.KeyStyle.Render("Next step: "),
			cliui.ValueStyle.Render(result.RecommendedAction),
		)
	}

	if len(result.Evidence.Sources) > 0 {
		fmt.Printf("\n  %s\n", cliui.HeaderStyle.Render("Evidence"))
		for i, src := range result.Evidence.Sources {
			fmt.Printf("  %s  %s  %s\n",
				cliui.RankStyle.Render(fmt.Sprintf("#%d", i+1)),
				cliui.ScoreStyle.Render(fmt.Sprintf("score: %.4f", src.Score)),
				cliui.NameStyle.Render(src.NoteID),
			)
			if src.Snippet != "" {
				fmt.Printf("      %s\n", cliui.DimStyle.Render(utils.Truncate(src.Snippet, 100)))
			}
		}
	}

	fmt.Printf("\n  %s\n\n",
		cliui.DimStyle.Render(fmt.Sprintf("operation %s, %d tokens", result.OperationID, result.TokensUsed)),
	)
}
