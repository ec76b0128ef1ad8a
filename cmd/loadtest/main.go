package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	headerUserID         = "X-User-ID"
	headerIdempotencyKey = "Idempotency-Key"

	cartQty = int32(1)
	// Запас остатков для duration-режима, когда итог заранее неизвестен.
	openEndedSeedQty = int32(100000)
)

type scenarioKind string

const (
	kindCheckout          scenarioKind = "checkout"
	kindCheckoutPay       scenarioKind = "checkout-pay"
	kindCheckoutPayCancel scenarioKind = "checkout-pay-cancel"
)

type options struct {
	baseURL       string
	total         int
	totalSet      bool
	duration      time.Duration
	workers       int
	timeout       time.Duration
	kind          scenarioKind
	cancelPercent int
	productID     string
	paymentMethod string
	userTag       string
	seedStock     bool
	reportPath    string
}

func parseOptions(args []string) (options, error) {
	var opts options
	var kindValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the shop HTTP API")
	fs.IntVar(&opts.total, "total", 400, "scenarios to execute; with -duration acts as an upper cap when set explicitly")
	fs.DurationVar(&opts.duration, "duration", 0, "optional time-based run length (e.g. 10m)")
	fs.IntVar(&opts.workers, "concurrency", 40, "number of concurrent workers")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&kindValue, "mode", string(kindCheckout), "scenario: checkout | checkout-pay | checkout-pay-cancel")
	fs.IntVar(&opts.cancelPercent, "cancel-rate", 0, "cancel probability in percent for checkout-pay mode (0..100)")
	fs.StringVar(&opts.productID, "product", "product-1", "catalog product id to order")
	fs.StringVar(&opts.paymentMethod, "payment-method", "test", "payment method for checkout")
	fs.StringVar(&opts.userTag, "user-tag", "load", "user id prefix")
	fs.BoolVar(&opts.seedStock, "seed-stock", true, "seed stock via admin API before the run")
	fs.StringVar(&opts.reportPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			opts.totalSet = true
		}
	})

	kind, err := parseKind(kindValue)
	if err != nil {
		return options{}, err
	}
	opts.kind = kind

	switch {
	case strings.TrimSpace(opts.baseURL) == "":
		return options{}, errors.New("url is required")
	case opts.duration < 0:
		return options{}, errors.New("duration must be >= 0")
	case opts.duration == 0 && opts.total <= 0:
		return options{}, errors.New("total must be > 0 when duration is not set")
	case opts.duration > 0 && opts.totalSet && opts.total <= 0:
		return options{}, errors.New("total must be > 0 when explicitly set with duration")
	case opts.workers <= 0:
		return options{}, errors.New("concurrency must be > 0")
	case opts.timeout <= 0:
		return options{}, errors.New("timeout must be > 0")
	case opts.cancelPercent < 0 || opts.cancelPercent > 100:
		return options{}, errors.New("cancel-rate must be between 0 and 100")
	case strings.TrimSpace(opts.productID) == "":
		return options{}, errors.New("product is required")
	case strings.TrimSpace(opts.paymentMethod) == "":
		return options{}, errors.New("payment-method is required")
	case strings.TrimSpace(opts.userTag) == "":
		return options{}, errors.New("user-tag is required")
	}

	opts.baseURL = strings.TrimRight(opts.baseURL, "/")
	return opts, nil
}

func parseKind(value string) (scenarioKind, error) {
	kind := scenarioKind(strings.TrimSpace(value))
	switch kind {
	case kindCheckout, kindCheckoutPay, kindCheckoutPayCancel:
		return kind, nil
	}
	return "", fmt.Errorf("unsupported mode: %s", value)
}

// quantiles — сводка латентности операции в миллисекундах.
type quantiles struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

func summarize(durations []float64) quantiles {
	if len(durations) == 0 {
		return quantiles{}
	}

	sorted := append([]float64(nil), durations...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return quantiles{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: rank(sorted, 50),
		P95: rank(sorted, 95),
		P99: rank(sorted, 99),
	}
}

// rank возвращает квантиль по методу nearest-rank.
func rank(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(q/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type opReport struct {
	Total     int64            `json:"total"`
	Passed    int64            `json:"passed"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	ByStatus  map[string]int64 `json:"by_status"`
	LatencyMs quantiles        `json:"latency_ms"`
}

type runSummary struct {
	StartedAt         time.Time           `json:"started_at"`
	DurationSeconds   float64             `json:"duration_seconds"`
	TotalScenarios    int64               `json:"total_scenarios"`
	PassedScenarios   int64               `json:"passed_scenarios"`
	FailedScenarios   int64               `json:"failed_scenarios"`
	ErrorRate         float64             `json:"error_rate"`
	RPS               float64             `json:"rps"`
	ScenarioLatencyMs quantiles           `json:"scenario_latency_ms"`
	Operations        map[string]opReport `json:"operations"`
}

type seriesAccum struct {
	total       int64
	passed      int64
	byStatus    map[string]int64
	durationsMs []float64
}

func (a *seriesAccum) report() opReport {
	byStatus := make(map[string]int64, len(a.byStatus))
	for status, n := range a.byStatus {
		byStatus[status] = n
	}
	failed := a.total - a.passed
	return opReport{
		Total:     a.total,
		Passed:    a.passed,
		Failed:    failed,
		ErrorRate: share(failed, a.total),
		ByStatus:  byStatus,
		LatencyMs: summarize(a.durationsMs),
	}
}

// metrics накапливает исходы вызовов по имени операции. Псевдо-операция
// "scenario" агрегирует сценарий целиком.
type metrics struct {
	mu  sync.Mutex
	ops map[string]*seriesAccum
}

func newMetrics() *metrics {
	return &metrics{ops: make(map[string]*seriesAccum)}
}

// observe фиксирует вызов; ok задаётся вызывающим, так как часть
// не-2xx статусов является валидным бизнес-исходом (402 при оплате).
func (m *metrics) observe(op string, latency time.Duration, status int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	accum := m.ops[op]
	if accum == nil {
		accum = &seriesAccum{byStatus: make(map[string]int64)}
		m.ops[op] = accum
	}
	accum.total++
	if ok {
		accum.passed++
	}
	accum.byStatus[statusLabel(status)]++
	accum.durationsMs = append(accum.durationsMs, float64(latency.Microseconds())/1000.0)
}

func statusLabel(status int) string {
	if status <= 0 {
		return "transport_error"
	}
	return strconv.Itoa(status)
}

func (m *metrics) series(op string) (opReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	accum, ok := m.ops[op]
	if !ok {
		return opReport{}, false
	}
	return accum.report(), true
}

func (m *metrics) summary(startedAt time.Time, elapsed time.Duration) runSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := runSummary{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: elapsed.Seconds(),
		Operations:      make(map[string]opReport, len(m.ops)),
	}
	for op, accum := range m.ops {
		result.Operations[op] = accum.report()
	}
	if scenario, ok := result.Operations["scenario"]; ok {
		result.TotalScenarios = scenario.Total
		result.PassedScenarios = scenario.Passed
		result.FailedScenarios = scenario.Failed
		result.ErrorRate = scenario.ErrorRate
		result.ScenarioLatencyMs = scenario.LatencyMs
	}
	if elapsed > 0 {
		result.RPS = float64(result.TotalScenarios) / elapsed.Seconds()
	}
	return result
}

func share(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// ticketSource выдаёт воркерам номера сценариев. Лимит и дедлайн
// могут действовать одновременно, срабатывает более строгий.
type ticketSource struct {
	next     atomic.Int64
	limit    int64
	deadline time.Time
}

func newTicketSource(opts options, now time.Time) *ticketSource {
	src := &ticketSource{limit: -1}
	if opts.duration > 0 {
		src.deadline = now.Add(opts.duration)
		if opts.totalSet {
			src.limit = int64(opts.total)
		}
	} else {
		src.limit = int64(opts.total)
	}
	return src
}

func (s *ticketSource) take() (int, bool) {
	if !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
		return 0, false
	}
	ticket := s.next.Add(1) - 1
	if s.limit >= 0 && ticket >= s.limit {
		return 0, false
	}
	return int(ticket), true
}

// shopClient — минимальный клиент REST API магазина для нагрузочных сценариев.
type shopClient struct {
	base string
	hc   *http.Client
}

func newShopClient(base string, timeout time.Duration) *shopClient {
	return &shopClient{base: base, hc: &http.Client{Timeout: timeout}}
}

func (c *shopClient) post(ctx context.Context, path, userID, idempotencyKey string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, idempotencyKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, raw, nil
}

// runner гоняет сценарии против одного инстанса магазина.
type runner struct {
	client *shopClient
	opts   options
	met    *metrics
	runID  string
}

type checkoutResult struct {
	Order struct {
		ID string `json:"id"`
	} `json:"order"`
	Payment struct {
		ID string `json:"id"`
	} `json:"payment"`
}

// call выполняет запрос и записывает метрику; tolerated расширяет
// множество статусов, трактуемых как успех, сверх 2xx.
func (r *runner) call(op, path, userID, idempotencyKey string, payload any, tolerated ...int) (int, []byte, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.timeout)
	defer cancel()

	status, body, err := r.client.post(ctx, path, userID, idempotencyKey, payload)
	ok := err == nil && status < 300
	for _, s := range tolerated {
		if status == s {
			ok = err == nil
		}
	}
	r.met.observe(op, time.Since(start), status, ok)

	if err != nil {
		return status, body, err
	}
	if !ok {
		return status, body, fmt.Errorf("%s returned status %d: %s", op, status, string(body))
	}
	return status, body, nil
}

func (r *runner) scenario(index int) error {
	start := time.Now()
	outcomeStatus := http.StatusOK
	outcomeOK := true
	defer func() {
		r.met.observe("scenario", time.Since(start), outcomeStatus, outcomeOK)
	}()

	failWith := func(status int, err error) error {
		outcomeStatus = status
		outcomeOK = false
		return err
	}

	userID := fmt.Sprintf("%s-%s-%d", r.opts.userTag, r.runID, index)

	status, _, err := r.call("AddCartItem", "/cart/items", userID, "",
		map[string]any{"product_id": r.opts.productID, "qty": cartQty})
	if err != nil {
		return failWith(status, err)
	}

	checkoutKey := fmt.Sprintf("lt-checkout-%s-%d", r.runID, index)
	status, body, err := r.call("Checkout", "/checkout", userID, checkoutKey,
		map[string]any{"payment_method": r.opts.paymentMethod})
	if err != nil {
		return failWith(status, err)
	}
	var checkout checkoutResult
	if err := json.Unmarshal(body, &checkout); err != nil {
		return failWith(http.StatusInternalServerError, fmt.Errorf("decode checkout response: %w", err))
	}
	if checkout.Order.ID == "" || checkout.Payment.ID == "" {
		return failWith(http.StatusInternalServerError, errors.New("checkout response returned empty ids"))
	}

	if r.opts.kind == kindCheckout {
		return nil
	}

	// 402 при оплате считается валидным исходом сценария: провайдер отклонил платёж.
	status, _, err = r.call("ProcessPayment",
		"/payments/"+checkout.Payment.ID+"/process", userID, "", nil,
		http.StatusPaymentRequired)
	if err != nil {
		return failWith(status, err)
	}
	if status == http.StatusPaymentRequired {
		return nil
	}

	if r.cancelWanted(index) {
		// Заказ мог уйти в processing/shipped до отмены, конфликт допустим.
		status, _, err = r.call("CancelOrder",
			"/orders/"+checkout.Order.ID+"/cancel", userID, "",
			map[string]any{"reason": "load-cancel"},
			http.StatusConflict)
		if err != nil {
			return failWith(status, err)
		}
	}

	return nil
}

func (r *runner) cancelWanted(index int) bool {
	switch r.opts.kind {
	case kindCheckoutPayCancel:
		return true
	case kindCheckoutPay:
		return r.opts.cancelPercent > 0 && index%100 < r.opts.cancelPercent
	}
	return false
}

// seedStock пополняет остаток тестового товара перед прогоном.
func (r *runner) seedStock() error {
	qty := openEndedSeedQty
	if r.opts.duration <= 0 {
		qty = int32(r.opts.total) * cartQty
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.timeout)
	defer cancel()

	path := fmt.Sprintf("/admin/stock/%s/adjust", r.opts.productID)
	payload := map[string]any{"op": "add", "qty": qty, "reason": "loadtest seed"}
	status, body, err := r.client.post(ctx, path, "", "", payload)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		payload["op"] = "create"
		status, body, err = r.client.post(ctx, path, "", "", payload)
		if err != nil {
			return err
		}
	}
	if status >= 300 {
		return fmt.Errorf("unexpected status %d: %s", status, string(body))
	}
	return nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	startedAt := time.Now()
	r := &runner{
		client: newShopClient(opts.baseURL, opts.timeout),
		opts:   opts,
		met:    newMetrics(),
		runID:  fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid()),
	}

	if opts.seedStock {
		if err := r.seedStock(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to seed stock: %v\n", err)
			os.Exit(1)
		}
	}

	tickets := newTicketSource(opts, startedAt)
	var wg sync.WaitGroup
	for w := 0; w < opts.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				ticket, ok := tickets.take()
				if !ok {
					return
				}
				_ = r.scenario(ticket)
			}
		}()
	}
	wg.Wait()

	result := r.met.summary(startedAt, time.Since(startedAt))
	printSummary(os.Stdout, result, opts)
	if opts.reportPath != "" {
		if err := writeReport(opts.reportPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func printSummary(w io.Writer, result runSummary, opts options) {
	fmt.Fprintln(w, "Load test summary")
	fmt.Fprintf(w, "mode=%s target=%s total=%d passed=%d failed=%d error_rate=%.4f\n",
		opts.kind, runTarget(opts),
		result.TotalScenarios, result.PassedScenarios, result.FailedScenarios, result.ErrorRate)
	fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Fprintf(w, "scenario latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.ScenarioLatencyMs.Min, result.ScenarioLatencyMs.Avg,
		result.ScenarioLatencyMs.P50, result.ScenarioLatencyMs.P95,
		result.ScenarioLatencyMs.P99, result.ScenarioLatencyMs.Max)

	names := make([]string, 0, len(result.Operations))
	for name := range result.Operations {
		if name != "scenario" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		op := result.Operations[name]
		fmt.Fprintf(w, "%s: total=%d passed=%d failed=%d error_rate=%.4f p95=%.2fms\n",
			name, op.Total, op.Passed, op.Failed, op.ErrorRate, op.LatencyMs.P95)
	}
}

func runTarget(opts options) string {
	if opts.duration <= 0 {
		return fmt.Sprintf("count:%d", opts.total)
	}
	if opts.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", opts.duration, opts.total)
	}
	return fmt.Sprintf("duration:%s", opts.duration)
}

func writeReport(path string, result runSummary) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
