package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"etsy_backoffice/pkg/logger"
)

var (
	syncShopID int64
	syncAll    bool
)

// syncCmd 手动同步，不经过 HTTP 冷却限制
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "立即同步一个店铺，或用 --all 跑一轮自动同步",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncShopID <= 0 && !syncAll {
			return errors.New("either --shop-id or --all is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		app, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Sync.RunTimeout)
		defer cancel()

		var out interface{}
		if syncAll {
			out, err = app.Tasks.TriggerSyncRound(ctx)
		} else {
			out, err = app.Tasks.TriggerShopSync(ctx, syncShopID)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var refreshShopID int64

// refreshCmd 强制刷新 Token，或用 --all 跑一轮保活
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "立即刷新一个店铺的 Etsy Token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		app, err := newApp(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer app.Close()

		if refreshShopID <= 0 {
			res, err := app.Tasks.TriggerTokenRound(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		}

		shop, err := app.Services.Token.Refresh(cmd.Context(), refreshShopID)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]interface{}{
			"shop_id":          shop.ID,
			"token_status":     shop.TokenStatus,
			"token_expires_at": shop.TokenExpiresAt,
		})
	},
}

func init() {
	syncCmd.Flags().Int64Var(&syncShopID, "shop-id", 0, "本地店铺 ID")
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "同步所有到期店铺")
	refreshCmd.Flags().Int64Var(&refreshShopID, "shop-id", 0, "本地店铺 ID，为空时刷新所有即将过期的店铺")
	rootCmd.AddCommand(syncCmd, refreshCmd)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
