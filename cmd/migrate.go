package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"etsy_backoffice/internal/model"
	"etsy_backoffice/pkg/database"
	"etsy_backoffice/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据表",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close(db)

		models := model.All()
		if err := database.Migrate(cmd.Context(), db, models...); err != nil {
			return err
		}
		logger.L().Info("migrate done", zap.Int("tables", len(models)), zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
