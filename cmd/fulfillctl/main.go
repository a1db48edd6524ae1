package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/mealdash-next/internal/config"
	"github.com/mealdash-next/internal/logger"
	"github.com/mealdash-next/internal/models"
	"github.com/mealdash-next/internal/provider"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "fulfillctl",
		Short:         "Operations CLI for kitchen capacity, dispatch, receipts and reports",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(capacityCmd())
	rootCmd.AddCommand(hoursCmd())
	rootCmd.AddCommand(courierCmd())
	rootCmd.AddCommand(printJobsCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(adminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openContainer 连接数据库并构建与 API 进程相同的依赖容器
func openContainer() (*provider.Container, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := models.EnsureOperatingState(); err != nil {
		return nil, fmt.Errorf("init operating state: %w", err)
	}
	return provider.NewContainer(cfg), nil
}
