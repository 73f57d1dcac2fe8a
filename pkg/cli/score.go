package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/analysis"
	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/covalent"
	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/export"
	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/net"
	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/wallets"
)

const (
	walletFileFlagName  = "file"
	walletFlagName      = "wallet"
	chainFlagName       = "chain"
	protocolFlagName    = "protocol"
	concurrencyFlagName = "concurrency"
	refreshFlagName     = "refresh"
	offlineFlagName     = "offline"
	strictFlagName      = "strict"
	outputFlagName      = "output"
	layoutFlagName      = "layout"
)

// fetchFlags returns new flag instances on every call. urfave/cli keeps the
// parsed value on the flag itself.
func fetchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    walletFileFlagName,
			Aliases: []string{"f"},
			Usage:   "Wallet list (.xlsx with a wallet_id column, .csv or one address per line)",
		},
		&cli.StringSliceFlag{
			Name:    walletFlagName,
			Aliases: []string{"w"},
			Usage:   "Wallet address (can be specified multiple times)",
		},
		&cli.IntFlag{
			Name:  chainFlagName,
			Usage: "Chain ID (default: from config)",
		},
		&cli.StringFlag{
			Name:  protocolFlagName,
			Usage: "Keep only transactions mentioning this keyword, empty keeps all (default: from config)",
		},
		&cli.IntFlag{
			Name:  concurrencyFlagName,
			Usage: "Number of wallets fetched in parallel (default: from config)",
		},
		&cli.BoolFlag{
			Name:  refreshFlagName,
			Usage: "Ignore cached transactions and fetch again",
		},
		&cli.BoolFlag{
			Name:  offlineFlagName,
			Usage: "Use cached transactions only, no API key needed",
		},
		&cli.BoolFlag{
			Name:  strictFlagName,
			Usage: "Fail when any wallet can not be fetched",
		},
		newAPIKeyFlag(),
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    outputFlagName,
			Aliases: []string{"o"},
			Usage:   "Also write the scores to this CSV file",
		},
		&cli.StringFlag{
			Name:  layoutFlagName,
			Usage: fmt.Sprintf("CSV columns [%s, %s]", export.LayoutScores, export.LayoutFull),
			Value: string(export.LayoutScores),
		},
	}
}

func scoreCmd() *cli.Command {
	return &cli.Command{
		Name:    "score",
		Aliases: []string{"s"},
		Usage:   "Fetch, classify and score a batch of wallets",
		UsageText: `walletrisk score --file wallets.xlsx --output scores.csv
   walletrisk score --wallet 0xabc... --wallet 0xdef... --format yaml
   walletrisk score --file wallets.csv --offline --layout full -o scores.csv`,
		HideHelpCommand: true,
		Flags:           append(fetchFlags(), outputFlags()...),
		Action:          cmdScore,
	}
}

func classifyCmd() *cli.Command {
	return &cli.Command{
		Name:            "classify",
		Aliases:         []string{"c"},
		Usage:           "Count supply, borrow, repay and liquidation transactions per wallet",
		HideHelpCommand: true,
		Flags:           fetchFlags(),
		Action:          cmdClassify,
	}
}

func cmdScore(ctx context.Context, cmd *cli.Command) error {
	output := cmd.String(outputFlagName)
	layout, err := export.ParseLayout(cmd.String(layoutFlagName))
	if err != nil {
		return err
	}

	list, err := walletList(cmd)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return cli.ShowSubcommandHelp(cmd)
	}

	a, err := newAnalyzer(ctx, cmd)
	if err != nil {
		return err
	}

	res, err := a.Run(ctx, list)
	if err != nil {
		return fmt.Errorf("scoring wallets: %w", err)
	}

	if output != "" {
		if err := export.SaveCSV(output, layout, res.Records); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		slog.Info("scores saved", "path", output, "wallets", len(res.Records))
	}

	return encode(cmd, res)
}

func cmdClassify(ctx context.Context, cmd *cli.Command) error {
	list, err := walletList(cmd)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return cli.ShowSubcommandHelp(cmd)
	}

	a, err := newAnalyzer(ctx, cmd)
	if err != nil {
		return err
	}

	res, err := a.Classify(ctx, list)
	if err != nil {
		return fmt.Errorf("classifying wallets: %w", err)
	}
	return encode(cmd, res)
}

func walletList(cmd *cli.Command) ([]string, error) {
	var fromFile []string
	if path := cmd.String(walletFileFlagName); path != "" {
		list, err := wallets.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading wallets: %w", err)
		}
		fromFile = list
	}
	return wallets.Merge(fromFile, cmd.StringSlice(walletFlagName)), nil
}

func newAnalyzer(ctx context.Context, cmd *cli.Command) (*analysis.Analyzer, error) {
	cfg := getConfig(cmd)
	c := cfg.Config

	chainID := c.ChainID
	if cmd.IsSet(chainFlagName) {
		chainID = cmd.Int(chainFlagName)
	}
	protocol := c.Protocol
	if cmd.IsSet(protocolFlagName) {
		protocol = cmd.String(protocolFlagName)
	}
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	concurrency := c.Concurrency
	if cmd.IsSet(concurrencyFlagName) {
		concurrency = cmd.Int(concurrencyFlagName)
	}

	offline := cmd.Bool(offlineFlagName)
	if offline && cmd.Bool(refreshFlagName) {
		return nil, errors.New("--offline and --refresh can not be combined")
	}

	store, err := cfg.Store(ctx)
	if err != nil {
		return nil, err
	}

	opts := analysis.Options{
		ChainID:     chainID,
		Protocol:    protocol,
		Concurrency: concurrency,
		CacheTTL:    c.CacheTTL,
		Refresh:     cmd.Bool(refreshFlagName),
		Strict:      cmd.Bool(strictFlagName),
	}

	if offline {
		return analysis.New(nil, store, opts), nil
	}

	key, err := resolveAPIKey(cmd)
	if err != nil {
		return nil, err
	}

	client, err := covalent.NewClient(key,
		covalent.WithBaseURL(c.APIURL),
		covalent.WithChainID(chainID),
		covalent.WithProtocol(protocol),
		covalent.WithPageSize(c.PageSize),
		covalent.WithMaxPages(c.MaxPages),
		covalent.WithHTTPClient(net.GetHTTPClient(c.Timeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating covalent client: %w", err)
	}

	slog.Debug("analyzer ready", "chain", chainID, "protocol", protocol, "concurrency", concurrency)
	return analysis.New(client, store, opts), nil
}
