package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"swap-engine/pkg/lifecycle"
	"swap-engine/pkg/parser"
	"swap-engine/pkg/provider"
	"swap-engine/pkg/types"
)

var (
	fromChain     string
	toChain       string
	recipientAddr string
	swapSlippage  string
	noConfirm     bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Quote, simulate and execute a swap",
	Long: `Fetch the best quote across all providers, simulate the transaction and, once
the simulation passes, sign and broadcast it with the configured key.

Quotes refresh automatically while you review them and expire after 60 seconds.
Token swaps on EVM chains may need an approval first; it is sent and confirmed
before the swap itself.

IMPORTANT:
  - Signing keys come from signer.evm_private_key / signer.solana_private_key
  - For cross-chain swaps the recipient defaults to your signer on the destination chain

Examples:
  # Same-chain swap
  swap-engine swap 0.5 ETH to USDC --from-chain base --to-chain base

  # Cross-chain swap with an explicit recipient
  swap-engine swap 100 USDC to SOL --from-chain arbitrum --to-chain solana --recipient <sol-addr>

  # Skip all confirmations
  swap-engine swap 1 ETH to WETH --from-chain ethereum --to-chain ethereum --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&fromChain, "from-chain", "", "Source blockchain (optional)")
	swapCmd.Flags().StringVar(&toChain, "to-chain", "", "Destination blockchain (optional)")
	swapCmd.Flags().StringVar(&recipientAddr, "recipient", "", "Recipient address (optional - defaults to your signer)")
	swapCmd.Flags().StringVar(&swapSlippage, "slippage", types.DefaultSlippage.String(), "Slippage tolerance in percent")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runSwap(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	parsed, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err == nil {
		err = parser.ValidateCommand(parsed)
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer eng.rpc.Close()

	from, err := parser.ResolveAsset(eng.registry, parsed.SourceToken, fromChain)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	to, err := parser.ResolveAsset(eng.registry, parsed.DestToken, toChain)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	slippage, err := parseSlippage(swapSlippage)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctrl := lifecycle.NewController(eng.aggregator, eng.preparer, eng.simulator, eng.wallet)
	defer ctrl.Reset()

	if verbose {
		unsubscribe := ctrl.Subscribe(func(s lifecycle.State) {
			logrus.WithField("state", s.Name()).Debug("Swap state changed")
		})
		defer unsubscribe()
	}

	// Ctrl+C abandons whatever step is in flight
	go func() {
		<-ctx.Done()
		ctrl.Cancel()
	}()

	ctrl.SetFromAsset(from)
	ctrl.SetToAsset(to)
	ctrl.SetAmount(parsed.Amount)
	ctrl.SetDestination(recipientAddr)
	if err := ctrl.SetSlippage(slippage); err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quotes..."
		s.Start()
	}
	err = ctrl.FetchQuotes(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	comparison := ctrl.Comparison()
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(comparison, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayComparison(comparison)
	}

	if !noConfirm && !jsonOutput {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	quote, err := reviewedQuote(ctrl)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if comparison != nil && comparison.BestQuote != nil && quote.ID != comparison.BestQuote.ID && !jsonOutput {
		color.Yellow("\nThe quote was refreshed while you were reviewing it:")
		displayQuote(quote)
	}

	if !jsonOutput {
		s.Suffix = " Simulating transaction..."
		s.Start()
	}
	err = ctrl.SimulateSwap(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printSwapError(err, verbose)
		os.Exit(1)
	}

	if !jsonOutput {
		color.Green("\n✓ Simulation passed")
		if ctrl.RequiresApproval() {
			color.Yellow("  An approval for %s will be sent before the swap.", quote.FromAsset.Symbol)
		}
		s.Suffix = " Broadcasting..."
		s.Start()
	}
	txHash, err := ctrl.ExecuteSwap(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printSwapError(err, verbose)
		os.Exit(1)
	}

	if quote.Provider == provider.KindOneClick.String() && eng.oneClick != nil && quote.TransactionData != nil {
		if err := eng.oneClick.SubmitDepositTx(ctx, quote.TransactionData.VaultAddress, txHash); err != nil {
			logrus.WithError(err).Warn("Failed to notify 1Click about the deposit")
		}
	}

	if jsonOutput {
		output := map[string]interface{}{
			"tx_hash":       txHash,
			"quote_id":      quote.ID,
			"provider":      quote.Provider,
			"source_amount": quote.InputAmount,
			"source_asset":  quote.FromAsset.ID(),
			"dest_amount":   quote.OutputAmount,
			"dest_asset":    quote.ToAsset.ID(),
			"status":        "broadcast",
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	printSuccess(color.GreenString("✓ Swap broadcast successfully!"))
	fmt.Printf("  Transaction: %s\n", color.CyanString(txHash))
	if quote.RouteType == types.RouteCrossChain && quote.TransactionData != nil && quote.Provider == provider.KindOneClick.String() {
		fmt.Println("\nYou can monitor the swap status using:")
		color.Cyan("  swap-engine status %s\n", quote.TransactionData.VaultAddress)
	}
}

// reviewedQuote returns the quote the controller is currently showing
func reviewedQuote(ctrl *lifecycle.Controller) (*types.SwapQuote, error) {
	switch s := ctrl.State().(type) {
	case lifecycle.Reviewing:
		return s.Quote, nil
	case lifecycle.Failed:
		return nil, s.Err
	default:
		return nil, fmt.Errorf("unexpected swap state: %s", s.Name())
	}
}

func printSwapError(err error, verbose bool) {
	printError(err)
	switch {
	case errors.Is(err, types.ErrQuoteExpired):
		color.Yellow("The quote expired before the swap was sent. Run the command again for a fresh quote.\n")
	case errors.Is(err, types.ErrSimulationFailed):
		color.Yellow("Nothing was broadcast. Check your balance, allowance and slippage.\n")
	case errors.Is(err, types.ErrUserCancelled):
		fmt.Println("Swap cancelled.")
	}
	if verbose {
		fmt.Printf("Debug: error kind %s\n", types.KindOf(err))
	}
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
