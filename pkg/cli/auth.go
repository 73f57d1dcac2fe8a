package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/auth"
	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/covalent"
)

const (
	apiKeyFlagName    = "key"
	removeKeyFlagName = "remove"
)

func newAPIKeyFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    apiKeyFlagName,
		Usage:   "Covalent API key",
		Sources: cli.EnvVars(apiKeyEnvVar),
	}
}

func authCmd() *cli.Command {
	return &cli.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Save the Covalent API key to the OS keychain",
		UsageText: `walletrisk auth                  # prompts for the key
   walletrisk auth --key ckey_...   # saves the given key
   walletrisk auth --remove         # deletes the saved key`,
		Flags: []cli.Flag{
			newAPIKeyFlag(),
			&cli.BoolFlag{
				Name:  removeKeyFlagName,
				Usage: "Remove the saved API key",
			},
		},
		Action: cmdAuth,
	}
}

func cmdAuth(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	store := auth.NewStore(cfg.Dir)
	out := writer(cmd)

	if cmd.Bool(removeKeyFlagName) {
		if err := store.Delete(); err != nil {
			return fmt.Errorf("removing key: %w", err)
		}
		fmt.Fprintln(out, "API key removed")
		return nil
	}

	key := cmd.String(apiKeyFlagName)
	if key == "" {
		fmt.Fprint(out, "Covalent API key: ")
		line, err := readLine(reader(cmd))
		if err != nil {
			return fmt.Errorf("reading key: %w", err)
		}
		key = line
	}

	if err := store.Save(key); err != nil {
		return fmt.Errorf("saving key: %w", err)
	}

	fmt.Fprintln(out, "API key saved")
	return nil
}

// resolveAPIKey returns the key from the flag or environment, then from
// the saved store.
func resolveAPIKey(cmd *cli.Command) (string, error) {
	if key := strings.TrimSpace(cmd.String(apiKeyFlagName)); key != "" {
		return key, nil
	}

	key, err := auth.NewStore(getConfig(cmd).Dir).Get()
	if errors.Is(err, auth.ErrNotFound) {
		return "", fmt.Errorf("%w: run `%s auth` or set %s", covalent.ErrMissingAPIKey, appName, apiKeyEnvVar)
	}
	if err != nil {
		return "", fmt.Errorf("reading saved key: %w", err)
	}
	return key, nil
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func reader(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
