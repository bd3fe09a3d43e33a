package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

// NewSeedCmd loads a YAML question bank into the configured store.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML question bank into the question store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, "")
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured; use start --seed-file for in-memory runs")
			}
			be, err := openBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer be.close()
			return seedQuestions(cmd.Context(), app.NewQuestionService(be.questions, be.cache), file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "questions.yaml", "path to the YAML question bank")
	return cmd
}

type questionBank struct {
	Questions []domain.Question `yaml:"questions"`
}

func loadQuestionBank(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bank questionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return bank.Questions, nil
}

func seedQuestions(ctx context.Context, svc *app.QuestionService, path string) error {
	questions, err := loadQuestionBank(path)
	if err != nil {
		return err
	}
	n, err := svc.Import(ctx, questions)
	if err != nil {
		return fmt.Errorf("seed after %d questions: %w", n, err)
	}
	log.Info().Int("questions", n).Str("file", path).Msg("question bank loaded")
	return nil
}
