package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	// Embed the zone database for images without /usr/share/zoneinfo.
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/chatrelay/internal/profile"
	"github.com/hrygo/chatrelay/server"
	"github.com/hrygo/chatrelay/store"
	"github.com/hrygo/chatrelay/store/db"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: `Relays chat prompts to an OpenAI assistant and publishes the conversation as events.`,
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid profile", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if instanceProfile.IsDev() {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		} else {
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", slog.String("error", err.Error()))
			return
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", slog.String("error", err.Error()))
			_ = storeInstance.Close()
			return
		}

		s, err := server.NewServer(instanceProfile, storeInstance)
		if err != nil {
			slog.Error("failed to create server", slog.String("error", err.Error()))
			_ = storeInstance.Close()
			return
		}

		printGreetings(instanceProfile)

		if err := s.Start(ctx); err != nil {
			slog.Error("server stopped with error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver, sqlite or postgres")
	rootCmd.PersistentFlags().String("dsn", "", "database source name")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("chatrelay")
	viper.AutomaticEnv()
}

func printGreetings(p *profile.Profile) {
	if p.IsDev() {
		fmt.Printf("Development mode is enabled\n")
		if p.DSN != "" {
			fmt.Printf("Database: %s\n", p.DSN)
		}
	}
	fmt.Printf("chatrelay %s started\n", p.Version)
	fmt.Printf("Assistant provider: %s, event bus: %s\n", p.AssistantProvider, p.EventBus)
	if p.Addr == "" {
		fmt.Printf("Listening on port %d\n", p.Port)
	} else {
		fmt.Printf("Listening on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
