package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/parser"
	"swap-engine/pkg/types"
)

var (
	quoteFromChain string
	quoteToChain   string
	quoteSlippage  string
	quoteSender    string
	quoteRecipient string
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Compare quotes from every provider without swapping",
	Long: `Query every provider that serves the route in parallel and show the offers,
best first. Nothing is signed or broadcast.

Without a sender address the quotes are indicative; some providers only return
transaction data for a known sender.

Examples:
  swap-engine quote 1.5 ETH to USDC --from-chain base --to-chain base
  swap-engine quote 0.01 BTC to ETH --recipient 0x123...
  swap-engine quote 10 SOL to USDC --slippage 1`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteFromChain, "from-chain", "", "Source blockchain (optional)")
	quoteCmd.Flags().StringVar(&quoteToChain, "to-chain", "", "Destination blockchain (optional)")
	quoteCmd.Flags().StringVar(&quoteSlippage, "slippage", types.DefaultSlippage.String(), "Slippage tolerance in percent")
	quoteCmd.Flags().StringVar(&quoteSender, "sender", "", "Sender address (defaults to the configured signer)")
	quoteCmd.Flags().StringVar(&quoteRecipient, "recipient", "", "Recipient address (defaults to the sender)")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	parsed, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	eng, err := newEngine(ctx, cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	slippage, err := parseSlippage(quoteSlippage)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	req, err := parsed.ToRequest(eng.registry, quoteFromChain, quoteToChain, slippage)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	req.SenderAddress = quoteSender
	if req.SenderAddress == "" {
		req.SenderAddress, _ = eng.wallet.Address(req.FromAsset.Chain)
	}
	req.DestinationAddress = quoteRecipient

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quotes..."
		s.Start()
	}

	result, err := eng.aggregator.FetchBestQuote(ctx, req)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayComparison(result)
}

func parseSlippage(s string) (decimal.Decimal, error) {
	pct, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return decimal.Zero, types.NewInvalidParameters(fmt.Sprintf("invalid slippage: %s", s))
	}
	if pct.IsNegative() || pct.GreaterThan(types.MaxSlippage) {
		return decimal.Zero, types.NewInvalidParameters(fmt.Sprintf("slippage must be between 0 and %s%%", types.MaxSlippage))
	}
	return pct, nil
}

// formatAmount renders a raw amount in human units with the asset symbol
func formatAmount(raw string, asset types.Asset) string {
	v, err := amount.ParseRaw(raw)
	if err != nil {
		return raw + " " + asset.Symbol
	}
	return amount.FromBaseUnits(v, asset.Decimals) + " " + color.YellowString(asset.Symbol)
}

func displayComparison(result *types.QuoteComparisonResult) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          SWAP QUOTES")
	fmt.Println(strings.Repeat("=", 70))

	for i, q := range result.AllQuotes {
		marker := "  "
		if result.BestQuote != nil && q.ID == result.BestQuote.ID {
			marker = color.GreenString("* ")
		}
		fmt.Printf("\n%s%d. %s\n", marker, i+1, color.CyanString(q.Provider))
		fmt.Printf("     Output:        ~%s\n", formatAmount(q.OutputAmount, q.ToAsset))
		fmt.Printf("     Minimum:       %s\n", formatAmount(q.MinimumOutputAmount, q.ToAsset))
		fmt.Printf("     Rate:          1 %s = %s %s\n", q.FromAsset.Symbol, q.ExchangeRate.String(), q.ToAsset.Symbol)
	}

	for _, f := range result.FailedProviders {
		fmt.Printf("\n  %s %s\n", color.RedString("x %s:", f.Provider), color.HiBlackString("%v", f.Err))
	}

	if result.BestQuote != nil {
		displayQuote(result.BestQuote)
	}
}

func displayQuote(q *types.SwapQuote) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          BEST QUOTE")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Provider:          %s (%s)\n", color.CyanString(q.Provider), q.RouteType)
	fmt.Printf("  From:              %s on %s\n", formatAmount(q.InputAmount, q.FromAsset), q.FromAsset.Chain)
	fmt.Printf("  To:                ~%s on %s\n", formatAmount(q.OutputAmount, q.ToAsset), q.ToAsset.Chain)
	fmt.Printf("  Minimum Received:  %s\n", formatAmount(q.MinimumOutputAmount, q.ToAsset))
	fmt.Printf("  Slippage:          %s%%\n", q.SlippageTolerance.String())
	if q.PriceImpact != nil {
		fmt.Printf("  Price Impact:      %s\n", coloredImpact(q))
	}
	if q.NetworkFee != "" && q.NetworkFee != "0" {
		fmt.Printf("  Network Fee:       %s\n", q.NetworkFee)
	}
	if len(q.RoutePath) > 0 {
		fmt.Printf("  Route:             %s\n", strings.Join(q.RoutePath, " -> "))
	}
	fmt.Printf("  Expires In:        %.0f seconds\n", q.TimeRemaining(time.Now()).Seconds())

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredImpact(q *types.SwapQuote) string {
	text := q.PriceImpact.StringFixed(2) + "%"
	switch q.PriceImpactLevel() {
	case types.PriceImpactVeryHighLevel:
		return color.RedString(text + " (very high)")
	case types.PriceImpactHighLevel:
		return color.YellowString(text + " (high)")
	default:
		return color.GreenString(text)
	}
}
