package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := newServeCommand()

	root := &cobra.Command{
		Use:          "seatkeeper",
		Short:        "License key validation and seat management server",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	root.AddCommand(serve)
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newHashPasswordCommand())
	return root
}
