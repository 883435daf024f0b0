package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vocab-quiz-service/internal/config"
	"vocab-quiz-service/internal/infra/excel"
	"vocab-quiz-service/internal/infra/postgres"
)

// NewImportCmd loads a vocabulary workbook into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	var file, sheet string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import vocabulary from an .xlsx or .csv file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, file, sheet)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "vocabulary file (defaults to vocabulary.file)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name (defaults to the first sheet)")
	return cmd
}

func runImport(ctx context.Context, configPath, file, sheet string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	if file == "" {
		file = cfg.Vocabulary.File
	}
	if sheet == "" {
		sheet = cfg.Vocabulary.Sheet
	}
	if file == "" {
		return fmt.Errorf("no vocabulary file given")
	}
	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}

	importCfg := excel.DefaultImportConfig()
	importCfg.FilePath = file
	importCfg.SheetName = sheet
	result, err := excel.Import(importCfg)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		logger.WithField("file", file).Warn(msg)
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := postgres.NewVocabularyLoader(pool)
	for _, key := range result.Keys() {
		if err := loader.UpsertVocabulary(ctx, key, result.Topics[key]); err != nil {
			return err
		}
	}
	logger.WithFields(logrus.Fields{
		"topics":  len(result.Topics),
		"rows":    result.Rows,
		"skipped": result.Skipped,
	}).Info("vocabulary imported")
	return nil
}
