package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/file"
	"timed-quiz-service/internal/infra/postgres"
)

// NewSeedCmd imports a questions.json file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var path, setID string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import a question set file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, path, setID)
		},
	}
	cmd.Flags().StringVar(&path, "file", "config/questions.json", "question set file")
	cmd.Flags().StringVar(&setID, "set", "", "question set id (defaults to quiz.setId)")
	return cmd
}

func runSeed(ctx context.Context, configPath, path, setID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if setID == "" {
		setID = cfg.Quiz.SetID
	}

	set, err := file.ReadQuestionSet(path)
	if err != nil {
		return err
	}

	db := postgres.OpenDB(cfg.Postgres.URL)
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	if err := postgres.SeedQuestionSet(ctx, db, setID, set); err != nil {
		return err
	}
	log.Printf("seeded question set id=%s questions=%d", setID, len(set.Quiz))
	return nil
}
