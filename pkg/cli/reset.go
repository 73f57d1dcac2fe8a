package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"
)

const yesFlagName = "yes"

func resetCmd() *cli.Command {
	return &cli.Command{
		Name:            "reset",
		Usage:           "Delete all cached transactions",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    yesFlagName,
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
		Action:          cmdReset,
	}
}

func cmdReset(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	out := writer(cmd)

	if !cmd.Bool(yesFlagName) {
		fmt.Fprintf(out, "This will permanently delete all cached transactions in %s\n", cfg.DBPath)
		fmt.Fprint(out, "Are you sure? [y/N]: ")

		answer, err := readLine(reader(cmd))
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.ToLower(answer) != "y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	store, err := cfg.Store(ctx)
	if err != nil {
		return err
	}

	n, err := store.ClearCache(ctx)
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	slog.Info("cache cleared", "path", cfg.DBPath, "wallets", n)
	fmt.Fprintln(out, "Reset complete.")
	return nil
}

func stateCmd() *cli.Command {
	return &cli.Command{
		Name:            "state",
		Usage:           "Show what the cache holds",
		HideHelpCommand: true,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := getConfig(cmd).Store(ctx)
			if err != nil {
				return err
			}
			state, err := store.GetDataState(ctx)
			if err != nil {
				return fmt.Errorf("reading cache state: %w", err)
			}
			return encode(cmd, state)
		},
	}
}
