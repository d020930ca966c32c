// Package lifecycle drives one swap from quote to broadcast. All network results pass an
// epoch check before they may change state, so anything superseded by a newer action,
// a cancel or a reset is dropped.
package lifecycle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"swap-engine/pkg/amount"
	"swap-engine/pkg/metrics"
	"swap-engine/pkg/schedule"
	"swap-engine/pkg/simulation"
	"swap-engine/pkg/types"
)

const (
	// ExpiryCheckInterval is how often a reviewed quote is checked for expiry
	ExpiryCheckInterval = time.Second

	// DefaultEVMSettleDelay approximates one confirmation before the swap follows its approval
	DefaultEVMSettleDelay = 15 * time.Second
)

// QuoteSource prices a request across providers
type QuoteSource interface {
	FetchBestQuote(ctx context.Context, req types.SwapRequest) (*types.QuoteComparisonResult, error)
}

// TransactionBuilder prepares, approves and broadcasts transactions
type TransactionBuilder interface {
	PrepareSwapTransaction(ctx context.Context, quote *types.SwapQuote, sender string) (*types.PreparedSwapTransaction, error)
	CheckApproval(ctx context.Context, token, owner, spender string, need *big.Int, chain types.Chain) bool
	BuildApprovalTransaction(token, spender, owner string, chain types.Chain) (*types.PreparedSwapTransaction, error)
	ExecuteSwap(ctx context.Context, tx *types.PreparedSwapTransaction, receipt *simulation.Receipt, signed []byte) (string, error)
}

// Signer provides the sending account for a chain and signs prepared transactions
type Signer interface {
	Address(chain types.Chain) (string, error)
	Sign(ctx context.Context, tx *types.PreparedSwapTransaction) ([]byte, error)
}

// balanceCacher is implemented by simulators that cache account balances
type balanceCacher interface {
	Balances() *simulation.BalanceCache
}

// Controller is the swap state machine. Actions block until the step settles; timers
// re-fetch quotes in the background while a quote is being reviewed.
type Controller struct {
	quotes    QuoteSource
	builder   TransactionBuilder
	simulator simulation.Simulator
	signer    Signer
	sched     schedule.Scheduler
	settle    map[types.ChainFamily]time.Duration
	log       *logrus.Entry

	// notifyMu keeps subscriber callbacks in transition order
	notifyMu sync.Mutex

	mu          sync.Mutex
	state       State
	epoch       uint64
	cancelOp    context.CancelFunc
	timers      []schedule.Timer
	subscribers map[int]func(State)
	nextSub     int

	fromAsset   *types.Asset
	toAsset     *types.Asset
	humanAmount string
	slippage    decimal.Decimal
	destination string

	comparison *types.QuoteComparisonResult
	prepared   *types.PreparedSwapTransaction
	approval   *types.PreparedSwapTransaction
}

// Option configures a Controller
type Option func(*Controller)

// WithScheduler overrides the timer source
func WithScheduler(s schedule.Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithSettleDelay sets the pause between an approval broadcast and the swap for a chain family
func WithSettleDelay(family types.ChainFamily, d time.Duration) Option {
	return func(c *Controller) { c.settle[family] = d }
}

// NewController creates a controller in the idle state
func NewController(quotes QuoteSource, builder TransactionBuilder, simulator simulation.Simulator, signer Signer, opts ...Option) *Controller {
	c := &Controller{
		quotes:      quotes,
		builder:     builder,
		simulator:   simulator,
		signer:      signer,
		sched:       schedule.NewReal(),
		settle:      map[types.ChainFamily]time.Duration{types.FamilyEVM: DefaultEVMSettleDelay},
		log:         logrus.WithField("component", "lifecycle"),
		state:       Idle{},
		subscribers: make(map[int]func(State)),
		slippage:    types.DefaultSlippage,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every transition and returns a function that removes it.
// fn runs on the goroutine that made the transition and must not call controller actions
// synchronously.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// Comparison returns the result of the last successful fetch
func (c *Controller) Comparison() *types.QuoteComparisonResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comparison
}

// RequiresApproval reports whether the prepared swap still waits on an approval
func (c *Controller) RequiresApproval() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.approval != nil
}

func (c *Controller) SetFromAsset(a types.Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fromAsset = &a
}

func (c *Controller) SetToAsset(a types.Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toAsset = &a
}

// SetAmount sets the input amount in human units of the source asset
func (c *Controller) SetAmount(human string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.humanAmount = strings.TrimSpace(human)
}

// SetSlippage sets the tolerance in percent
func (c *Controller) SetSlippage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(types.MaxSlippage) {
		return types.NewInvalidParameters(fmt.Sprintf("slippage must be between 0 and %s%%", types.MaxSlippage))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slippage = pct
	return nil
}

// SetDestination sets the receiving address for cross-chain swaps
func (c *Controller) SetDestination(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destination = strings.TrimSpace(addr)
}

// FetchQuotes prices the current inputs and enters reviewing with the best quote
func (c *Controller) FetchQuotes(ctx context.Context) error {
	req, err := c.buildRequest()
	if err != nil {
		return err
	}

	ctx, epoch := c.begin(ctx)
	return c.fetch(ctx, epoch, req)
}

func (c *Controller) fetch(ctx context.Context, epoch uint64, req types.SwapRequest) error {
	if !c.commit(epoch, FetchingQuotes{}, nil) {
		return types.NewUserCancelled()
	}

	res, err := c.quotes.FetchBestQuote(ctx, req)
	if err != nil {
		return c.fail(epoch, err)
	}

	if !c.commit(epoch, Reviewing{Quote: res.BestQuote}, func() {
		c.comparison = res
		c.startTimers(epoch, res.BestQuote)
	}) {
		return types.NewUserCancelled()
	}
	c.log.WithFields(logrus.Fields{
		"provider": res.BestQuote.Provider,
		"output":   res.BestQuote.OutputAmount,
		"quotes":   len(res.AllQuotes),
	}).Info("Reviewing quote")
	return nil
}

// SelectQuote switches the reviewed quote to another one from the last comparison
func (c *Controller) SelectQuote(id string) error {
	c.mu.Lock()
	_, reviewing := c.state.(Reviewing)
	var chosen *types.SwapQuote
	if c.comparison != nil {
		for _, q := range c.comparison.AllQuotes {
			if q.ID == id {
				chosen = q
				break
			}
		}
	}
	epoch := c.epoch
	c.mu.Unlock()

	if !reviewing {
		return types.NewInvalidParameters("no quotes to choose from")
	}
	if chosen == nil {
		return types.NewInvalidParameters(fmt.Sprintf("unknown quote %q", id))
	}
	if chosen.IsExpired(c.sched.Now()) {
		return types.NewQuoteExpired()
	}

	if !c.commit(epoch, Reviewing{Quote: chosen}, func() {
		c.stopTimers()
		c.startTimers(epoch, chosen)
	}) {
		return types.NewUserCancelled()
	}
	return nil
}

// SwapAssets flips source and destination and re-fetches when the inputs allow it
func (c *Controller) SwapAssets(ctx context.Context) error {
	c.mu.Lock()
	c.fromAsset, c.toAsset = c.toAsset, c.fromAsset
	c.mu.Unlock()

	if _, err := c.buildRequest(); err != nil {
		c.Cancel()
		return nil
	}
	return c.FetchQuotes(ctx)
}

// SimulateSwap prepares the reviewed quote and dry-runs it. When an approval is outstanding
// the approval is what gets simulated; the swap itself is simulated after the approval lands.
func (c *Controller) SimulateSwap(ctx context.Context) error {
	c.mu.Lock()
	reviewing, ok := c.state.(Reviewing)
	c.mu.Unlock()
	if !ok {
		return types.NewInvalidParameters("no quote to simulate")
	}
	quote := reviewing.Quote

	ctx, epoch := c.begin(ctx)
	if quote.IsExpired(c.sched.Now()) {
		return c.fail(epoch, types.NewQuoteExpired())
	}
	if !c.commit(epoch, Simulating{Quote: quote}, nil) {
		return types.NewUserCancelled()
	}

	sender, err := c.signer.Address(quote.FromAsset.Chain)
	if err != nil {
		return c.fail(epoch, types.NewInvalidParameters(err.Error()))
	}
	tx, err := c.builder.PrepareSwapTransaction(ctx, quote, sender)
	if err != nil {
		return c.fail(epoch, err)
	}

	var approval *types.PreparedSwapTransaction
	if tx.RequiresApproval {
		need, _ := amount.ParseRaw(quote.InputAmount)
		if c.builder.CheckApproval(ctx, tx.ApprovalToken, sender, tx.ApprovalSpender, need, tx.Chain) {
			approval, err = c.builder.BuildApprovalTransaction(tx.ApprovalToken, tx.ApprovalSpender, sender, tx.Chain)
			if err != nil {
				return c.fail(epoch, err)
			}
		}
	}

	target := tx
	if approval != nil {
		target = approval
	}
	receipt, err := c.simulator.Simulate(ctx, simulation.RequestFromTransaction(target))
	if err != nil {
		return c.fail(epoch, asSimulationError(err))
	}

	if !c.commit(epoch, ReadyToSwap{Quote: quote, Receipt: receipt}, func() {
		c.prepared = tx
		c.approval = approval
	}) {
		return types.NewUserCancelled()
	}
	c.log.WithFields(logrus.Fields{
		"quote_id":          quote.ID,
		"receipt_id":        receipt.ID,
		"requires_approval": approval != nil,
	}).Info("Simulation passed")
	return nil
}

// ExecuteSwap signs and broadcasts the simulated transaction. Both the quote and the receipt
// are re-checked first; an outstanding approval is broadcast before the swap.
func (c *Controller) ExecuteSwap(ctx context.Context) (string, error) {
	c.mu.Lock()
	ready, ok := c.state.(ReadyToSwap)
	tx, approval := c.prepared, c.approval
	c.mu.Unlock()
	if !ok || tx == nil {
		return "", types.NewSimulationRequired()
	}

	ctx, epoch := c.begin(ctx)
	now := c.sched.Now()
	if ready.Quote.IsExpired(now) || ready.Receipt == nil || ready.Receipt.IsExpired(now) {
		return "", c.fail(epoch, types.NewQuoteExpired())
	}
	if !c.commit(epoch, Swapping{Quote: ready.Quote}, nil) {
		return "", types.NewUserCancelled()
	}

	receipt := ready.Receipt
	if approval != nil {
		hash, err := c.broadcast(ctx, approval, receipt)
		if err != nil {
			return "", c.fail(epoch, err)
		}
		c.log.WithField("tx_hash", hash).Info("Approval broadcast, waiting before swap")

		if err := c.wait(ctx, c.settle[tx.Chain.Family()]); err != nil {
			return "", c.fail(epoch, types.NewUserCancelled())
		}
		c.mu.Lock()
		c.approval = nil
		c.mu.Unlock()

		receipt, err = c.simulator.Simulate(ctx, simulation.RequestFromTransaction(tx))
		if err != nil {
			return "", c.fail(epoch, asSimulationError(err))
		}
	}

	hash, err := c.broadcast(ctx, tx, receipt)
	if err != nil {
		return "", c.fail(epoch, err)
	}
	// the transaction is out, so the hash is reported even if the flow was reset meanwhile
	c.commit(epoch, Success{Quote: ready.Quote, TxHash: hash}, func() {
		c.prepared = nil
	})
	return hash, nil
}

func (c *Controller) broadcast(ctx context.Context, tx *types.PreparedSwapTransaction, receipt *simulation.Receipt) (string, error) {
	signed, err := c.signer.Sign(ctx, tx)
	if err != nil {
		if ctx.Err() != nil {
			return "", types.NewUserCancelled()
		}
		return "", types.NewTransactionFailed(fmt.Sprintf("failed to sign transaction: %v", err))
	}
	hash, err := c.builder.ExecuteSwap(ctx, tx, receipt, signed)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.Broadcasts.WithLabelValues(tx.Chain.String(), outcome).Inc()
	if err == nil {
		// the sender paid gas, so the next simulation must read a fresh balance
		if bc, ok := c.simulator.(balanceCacher); ok && bc.Balances() != nil {
			bc.Balances().Invalidate(tx.Chain, tx.From)
		}
	}
	return hash, err
}

// Cancel abandons the current flow and returns to idle. Inputs are kept.
func (c *Controller) Cancel() {
	c.abort(false)
}

// Reset returns to idle and clears the inputs
func (c *Controller) Reset() {
	c.abort(true)
}

func (c *Controller) abort(clearInputs bool) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.epoch++
	if c.cancelOp != nil {
		c.cancelOp()
		c.cancelOp = nil
	}
	c.stopTimers()
	c.comparison = nil
	c.prepared = nil
	c.approval = nil
	if clearInputs {
		c.fromAsset, c.toAsset = nil, nil
		c.humanAmount, c.destination = "", ""
		c.slippage = types.DefaultSlippage
	}
	c.state = Idle{}
	subs := c.subscriberList()
	c.mu.Unlock()

	c.dispatch(Idle{}, subs)
}

// begin supersedes any in-flight operation and returns the context and epoch for a new one
func (c *Controller) begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	defer c.mu.Unlock()
	return ctx, c.supersede(cancel)
}

// beginRefresh is begin for timer callbacks. It starts nothing unless the controller is
// still reviewing in the epoch that armed the timer.
func (c *Controller) beginRefresh(armed uint64) (context.Context, uint64, bool) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.reviewingIn(armed) {
		cancel()
		return nil, 0, false
	}
	return ctx, c.supersede(cancel), true
}

// supersede cancels the running operation and stops timers. Callers hold mu.
func (c *Controller) supersede(cancel context.CancelFunc) uint64 {
	c.epoch++
	if c.cancelOp != nil {
		c.cancelOp()
	}
	c.cancelOp = cancel
	c.stopTimers()
	return c.epoch
}

// reviewingIn reports whether a quote from epoch is still on review. Callers hold mu.
func (c *Controller) reviewingIn(epoch uint64) bool {
	_, reviewing := c.state.(Reviewing)
	return reviewing && epoch == c.epoch
}

// commit applies s if epoch is still current. apply runs under the state lock.
func (c *Controller) commit(epoch uint64, s State, apply func()) bool {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return false
	}
	c.state = s
	if apply != nil {
		apply()
	}
	subs := c.subscriberList()
	c.mu.Unlock()

	c.dispatch(s, subs)
	return true
}

// fail moves to Failed when epoch is current and returns the error to report
func (c *Controller) fail(epoch uint64, err error) error {
	if !c.commit(epoch, Failed{Err: err}, func() {
		c.stopTimers()
		c.prepared = nil
		c.approval = nil
	}) {
		return types.NewUserCancelled()
	}
	c.log.WithError(err).Warn("Swap flow failed")
	return err
}

func (c *Controller) dispatch(s State, subs []func(State)) {
	metrics.LifecycleTransitions.WithLabelValues(s.Name()).Inc()
	for _, fn := range subs {
		fn(s)
	}
}

// subscriberList snapshots subscribers in registration order. Callers hold mu.
func (c *Controller) subscriberList() []func(State) {
	subs := make([]func(State), 0, len(c.subscribers))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subscribers[id]; ok {
			subs = append(subs, fn)
		}
	}
	return subs
}

// startTimers arms the expiry check and the auto-refresh for quote. Callers hold mu.
func (c *Controller) startTimers(epoch uint64, quote *types.SwapQuote) {
	c.timers = append(c.timers,
		c.sched.Every(ExpiryCheckInterval, func() { c.onExpiryTick(epoch, quote) }),
		c.sched.Every(types.AutoRefreshInterval, func() { c.refresh(epoch, "auto-refresh") }),
	)
}

// stopTimers cancels all timers. Callers hold mu.
func (c *Controller) stopTimers() {
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
}

func (c *Controller) onExpiryTick(epoch uint64, quote *types.SwapQuote) {
	if quote.IsExpired(c.sched.Now()) {
		c.refresh(epoch, "quote expired")
	}
}

// refresh re-fetches when the controller is still reviewing in the epoch that armed the timer.
// The check is repeated when the new epoch is taken, since building the request calls the
// signer and a user action may land in between.
func (c *Controller) refresh(armed uint64, reason string) {
	c.mu.Lock()
	current := c.reviewingIn(armed)
	c.mu.Unlock()
	if !current {
		return
	}

	req, err := c.buildRequest()
	if err != nil {
		c.log.WithError(err).Debug("Quote refresh skipped")
		return
	}
	ctx, epoch, ok := c.beginRefresh(armed)
	if !ok {
		c.log.WithField("reason", reason).Debug("Quote refresh superseded")
		return
	}

	c.log.WithField("reason", reason).Debug("Refreshing quotes")
	if err := c.fetch(ctx, epoch, req); err != nil {
		c.log.WithError(err).Debug("Quote refresh failed")
	}
}

func (c *Controller) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	done := make(chan struct{})
	t := c.sched.AfterFunc(d, func() { close(done) })
	defer t.Stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) buildRequest() (types.SwapRequest, error) {
	c.mu.Lock()
	from, to := c.fromAsset, c.toAsset
	human, slippage, destination := c.humanAmount, c.slippage, c.destination
	c.mu.Unlock()

	if from == nil || to == nil {
		return types.SwapRequest{}, types.NewInvalidParameters("both assets must be selected")
	}
	if human == "" {
		return types.SwapRequest{}, types.NewInvalidParameters("amount is required")
	}
	raw, err := amount.ToBaseUnits(human, from.Decimals)
	if err != nil {
		return types.SwapRequest{}, types.NewInvalidParameters(fmt.Sprintf("invalid amount: %v", err))
	}
	if raw.Sign() <= 0 {
		return types.SwapRequest{}, types.NewInvalidParameters("amount must be greater than 0")
	}

	// a missing signer only means the quote is indicative
	sender, _ := c.signer.Address(from.Chain)

	req := types.SwapRequest{
		FromAsset:          *from,
		ToAsset:            *to,
		Amount:             raw.String(),
		SlippageTolerance:  slippage,
		SenderAddress:      sender,
		DestinationAddress: destination,
	}
	if req.DestinationAddress == "" {
		req.DestinationAddress, _ = c.signer.Address(to.Chain)
	}
	return req, req.Validate()
}

// asSimulationError keeps typed simulator errors and wraps anything else
func asSimulationError(err error) error {
	if types.KindOf(err) != 0 {
		return err
	}
	return types.NewSimulationFailed(err.Error())
}
