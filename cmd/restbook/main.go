// Restbook — декларативный исполнитель playbook'ов HTTP-запросов.
//
// Использование:
//
//	restbook [--sessions PATH] [--json] <command> [flags]
//
// Команды:
//
//	run         Выполнить playbook
//	session     Управление именованными сессиями
//	checkpoint  Управление контрольными точками
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shalev007/restbook/internal/cli"
	"github.com/shalev007/restbook/internal/session"
	"github.com/shalev007/restbook/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var storePath string
	var jsonOutput bool

	logger := telemetry.SetupLogger()

	rootCmd := &cobra.Command{
		Use:           "restbook",
		Short:         "Restbook — declarative REST API playbook executor",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&storePath, "sessions", session.DefaultStorePath, "Named session store file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	deps := cli.Deps{
		Logger:    logger,
		StorePath: func() string { return storePath },
		Output:    func() *cli.Printer { return cli.NewPrinter(jsonOutput) },
	}

	rootCmd.AddCommand(
		cli.NewRunCmd(deps),
		cli.NewSessionCmd(deps),
		cli.NewCheckpointCmd(deps),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
