package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/execution"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/quote"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/staleness"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/trigger"
	"github.com/spf13/cobra"
)

type swapFlags struct {
	in, out     string
	amount      float64
	slippageBps uint16
}

func (f *swapFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.in, "in", "SOL", "input token symbol or mint")
	cmd.Flags().StringVar(&f.out, "out", "USDC", "output token symbol or mint")
	cmd.Flags().Float64Var(&f.amount, "amt", 0, "amount in human units (e.g. 0.1)")
	cmd.Flags().Uint16Var(&f.slippageBps, "slippage-bps", 0, "slippage in bps (0 = configured default)")
	_ = cmd.MarkFlagRequired("amt")
}

func (f *swapFlags) request(d *deps) quote.Request {
	req := quote.Request{
		WalletAddress: d.address,
		InputMint:     d.tokens.MintFor(f.in),
		OutputMint:    d.tokens.MintFor(f.out),
		AmountUI:      f.amount,
	}
	if f.slippageBps > 0 {
		s := f.slippageBps
		req.SlippageBps = &s
	}
	return req
}

func quoteCmd() *cobra.Command {
	var f swapFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}
			res, err := d.quotes.RequestQuote(cmd.Context(), f.request(d))
			if err != nil {
				return err
			}
			printQuote(d, res, staleness.New(d.cfg.QuoteTTL).SecondsRemaining(res.RequestedAtMs, time.Now().UnixMilli()))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func swapCmd() *cobra.Command {
	var (
		f       swapFlags
		yes     bool
		instant bool
	)
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Quote, confirm and submit a swap",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}
			if d.address == "" {
				return fmt.Errorf("a wallet is required: pass --wallet or set WALLET_PRIVATE_KEY")
			}

			m, err := execution.NewMachine(execution.Config{
				ID:       "cli",
				Quoter:   d.quotes,
				Executor: d.venue,
				Guard:    d.limits,
				Policy:   staleness.New(d.cfg.QuoteTTL),
				Logger:   d.logger,
			})
			if err != nil {
				return err
			}
			ctx, stop := context.WithCancel(cmd.Context())
			defer stop()
			go m.Watch(ctx, d.cfg.QuoteTickInterval)

			if instant {
				out, err := m.ExecuteInstant(ctx, f.request(d))
				printOutcome(out)
				return err
			}

			if _, err := m.RequestQuote(ctx, f.request(d)); err != nil {
				return err
			}
			snap := m.Snapshot()
			printQuote(d, *snap.Quote, *snap.SecondsRemaining)

			approve := func() bool { return yes || ask("Submit this swap? [y/N] ") }
			out, submitted, err := confirmAndSubmit(ctx, m, approve)
			if !submitted && err == nil {
				fmt.Println("cancelled")
				return nil
			}
			printOutcome(out)
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "submit without asking")
	cmd.Flags().BoolVar(&instant, "instant", false, "quote and submit in one step")
	return cmd
}

// confirmAndSubmit asks first and only then moves the machine into
// confirming, so a quote that expired at the prompt is reported as stale.
func confirmAndSubmit(ctx context.Context, m *execution.Machine, approve func() bool) (execution.Outcome, bool, error) {
	if !approve() {
		return execution.Outcome{}, false, nil
	}
	if err := m.Confirm(); err != nil {
		return execution.Outcome{}, false, err
	}
	out, err := m.Submit(ctx)
	return out, true, err
}

func triggerCmd() *cobra.Command {
	var (
		in    trigger.Intent
		side  string
		place bool
	)
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Preview or place a market-cap conditional order",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}
			s, err := trigger.ParseSide(side)
			if err != nil {
				return err
			}
			in.Side = s
			in.Mint = d.tokens.MintFor(in.Mint)
			in.WalletAddress = d.address

			engine := trigger.NewEngine(trigger.EngineConfig{
				Tokens:              d.tokens,
				Supply:              d.rpc,
				Placer:              d.venue,
				DefaultSlippageBps:  uint16(d.cfg.DefaultSlippageBps),
				PriorityFeeLamports: d.cfg.PriorityFeeLamports,
				JitoTipLamports:     d.cfg.JitoTipLamports,
				Logger:              d.logger,
			})

			if !place {
				p, err := engine.Prepare(cmd.Context(), in)
				if err != nil {
					return err
				}
				printOrder(d, p)
				return nil
			}
			p, ack, err := engine.Place(cmd.Context(), in)
			if err != nil {
				return err
			}
			printOrder(d, p)
			fmt.Printf("order_id=%s status=%s\n", ack.OrderID, ack.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Mint, "mint", "", "token symbol or mint")
	cmd.Flags().StringVar(&side, "side", "buy", "buy | sell")
	cmd.Flags().Float64Var(&in.AmountUI, "amt", 0, "SOL to spend on a buy, tokens to sell on a sell")
	cmd.Flags().Float64Var(&in.TargetMarketCapUSD, "target-mcap", 0, "target market cap in USD")
	cmd.Flags().Float64Var(&in.CurrentMarketCapUSD, "current-mcap", 0, "current market cap in USD")
	cmd.Flags().StringVar(&in.Expiry, "expiry", "", "one of "+strings.Join(trigger.ExpiryPresets(), ", ")+" (default 24h)")
	cmd.Flags().BoolVar(&place, "place", false, "send the order to the venue")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("amt")
	_ = cmd.MarkFlagRequired("target-mcap")
	_ = cmd.MarkFlagRequired("current-mcap")
	return cmd
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Print the wallet's SOL balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}
			if d.address == "" {
				return fmt.Errorf("a wallet is required: pass --wallet or set WALLET_PRIVATE_KEY")
			}
			lamports, err := d.rpc.GetBalance(cmd.Context(), d.address)
			if err != nil {
				return err
			}
			fmt.Printf("address=%s balance=%.9f SOL\n", d.address, float64(lamports)/1e9)
			return nil
		},
	}
}

func tokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens",
		Short: "List tokens with known decimals",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps()
			if err != nil {
				return err
			}
			for _, t := range d.tokens.List() {
				fmt.Printf("%-6s %d %s\n", t.Symbol, t.Decimals, t.Mint)
			}
			return nil
		},
	}
}

func ask(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func printQuote(d *deps, q quote.Result, secondsLeft int64) {
	s := q.Summary
	fmt.Printf("%s %g -> %s\n", d.tokens.Symbol(q.InputMint), q.AmountUI, d.tokens.Symbol(q.OutputMint))
	if s.AmountOutUI != nil {
		fmt.Printf("  out:          %g\n", *s.AmountOutUI)
	}
	if s.MinOutAmountUI != nil {
		fmt.Printf("  min out:      %g\n", *s.MinOutAmountUI)
	}
	if s.PriceImpactPercent != nil {
		fmt.Printf("  price impact: %.4f%%\n", *s.PriceImpactPercent)
	}
	if s.RouteHopCount != nil {
		fmt.Printf("  hops:         %d\n", *s.RouteHopCount)
	}
	fmt.Printf("  slippage:     %d bps\n", q.SlippageBps)
	fmt.Printf("  valid for:    %ds\n", secondsLeft)
}

func printOutcome(o execution.Outcome) {
	if o.Signature != "" {
		fmt.Printf("signature=%s status=%s time=%s\n", o.Signature, o.Status, o.ExecutionTime)
		return
	}
	if o.Status != "" || o.ErrorPreview != "" {
		fmt.Printf("failed status=%s error=%s\n", o.Status, o.ErrorPreview)
	}
}

func printOrder(d *deps, p trigger.Params) {
	fmt.Printf("%s %s trigger=$%.10g input=%d expires_in=%ds slippage=%dbps\n",
		p.OrderType, d.tokens.Symbol(p.Mint), p.TriggerPriceUSD, p.InputAmount, p.ExpiresIn, p.SlippageBps)
}
