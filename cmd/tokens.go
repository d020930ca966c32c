package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swap-engine/config"
	"swap-engine/pkg/assets"
)

var (
	filterChain  string
	filterSymbol string
	showBridge   bool
)

// tokenRow is one line of the token listing, whichever source it came from
type tokenRow struct {
	Chain           string `json:"chain"`
	Symbol          string `json:"symbol"`
	Decimals        int32  `json:"decimals"`
	ContractAddress string `json:"contract_address,omitempty"`
	Type            string `json:"type,omitempty"`
}

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List all supported tokens",
	Long: `List the tokens the engine can quote, or with --bridge the tokens supported by
the NEAR Intents 1Click API.

You can filter tokens by blockchain or symbol.

Examples:
  swap-engine list-tokens
  swap-engine list-tokens --chain solana
  swap-engine list-tokens --symbol USDC
  swap-engine list-tokens --bridge`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	tokensCmd.Flags().BoolVar(&showBridge, "bridge", false, "List tokens from the 1Click bridge instead of the built-in registry")
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig(cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var tokens []tokenRow
	if showBridge {
		tokens, err = fetchBridgeTokens(cmd, cfg, jsonOutput)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
	} else {
		tokens = registryTokens(assets.NewRegistry())
	}

	filtered := filterTokens(tokens, filterChain, filterSymbol)

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(filtered)
	}
}

func fetchBridgeTokens(cmd *cobra.Command, cfg *config.Config, jsonOutput bool) ([]tokenRow, error) {
	apiClient, err := newOneClick(cfg)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching supported tokens..."
		s.Start()
	}
	resp, err := apiClient.SupportedTokens(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		return nil, err
	}

	rows := make([]tokenRow, 0, len(resp))
	for _, token := range resp {
		rows = append(rows, tokenRow{
			Chain:           token.GetBlockchain(),
			Symbol:          token.GetSymbol(),
			Decimals:        int32(token.GetDecimals()),
			ContractAddress: token.GetContractAddress(),
		})
	}
	return rows, nil
}

func registryTokens(registry *assets.Registry) []tokenRow {
	all := registry.All()
	rows := make([]tokenRow, 0, len(all))
	for _, a := range all {
		rows = append(rows, tokenRow{
			Chain:           string(a.Chain),
			Symbol:          a.Symbol,
			Decimals:        a.Decimals,
			ContractAddress: a.ContractAddress,
			Type:            string(a.Type),
		})
	}
	return rows
}

func filterTokens(tokens []tokenRow, chain, symbol string) []tokenRow {
	filtered := tokens
	if chain != "" {
		var temp []tokenRow
		for _, token := range filtered {
			if strings.EqualFold(token.Chain, chain) {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}

	if symbol != "" {
		var temp []tokenRow
		for _, token := range filtered {
			if strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(symbol)) {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}
	return filtered
}

func displayTokens(tokens []tokenRow) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by blockchain
	tokensByChain := make(map[string][]tokenRow)
	for _, token := range tokens {
		tokensByChain[token.Chain] = append(tokensByChain[token.Chain], token)
	}

	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[chain] {
			address := token.ContractAddress
			if address == "" {
				address = "native"
			}
			// Truncate address if too long
			if len(address) > 40 {
				address = address[:37] + "..."
			}

			fmt.Printf("  %-10s  %2d decimals  %s\n",
				color.YellowString(token.Symbol),
				token.Decimals,
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}
