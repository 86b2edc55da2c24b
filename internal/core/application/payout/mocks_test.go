package payout

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/payout-network/payoutd/internal/core/domain"
	"github.com/payout-network/payoutd/internal/core/ports"
)

func addressFor(i int) string {
	return fmt.Sprintf("addr-%d", i)
}

type mockRepo struct {
	mtx      sync.Mutex
	orderIds []string
	orders   map[string]*domain.PayoutOrder
}

func newMockRepo(orders ...*domain.PayoutOrder) *mockRepo {
	repo := &mockRepo{orders: make(map[string]*domain.PayoutOrder)}
	for _, order := range orders {
		_ = repo.AddOrder(context.Background(), order)
	}
	return repo
}

func (r *mockRepo) AddOrder(_ context.Context, order *domain.PayoutOrder) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	clone := *order
	r.orderIds = append(r.orderIds, order.Id)
	r.orders[order.Id] = &clone
	return nil
}

func (r *mockRepo) GetOrder(_ context.Context, id string) (*domain.PayoutOrder, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

func (r *mockRepo) GetOrderByCorrelation(
	_ context.Context, payoutContext domain.PayoutContext, correlationId string,
) (*domain.PayoutOrder, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, id := range r.orderIds {
		order := r.orders[id]
		if order.Context == payoutContext && order.CorrelationId == correlationId {
			clone := *order
			return &clone, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *mockRepo) GetOrdersForStatus(
	_ context.Context, statusCodes ...int,
) ([]*domain.PayoutOrder, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	orders := make([]*domain.PayoutOrder, 0)
	for _, id := range r.orderIds {
		order := r.orders[id]
		for _, code := range statusCodes {
			if order.Status.Code == code {
				clone := *order
				orders = append(orders, &clone)
				break
			}
		}
	}
	return orders, nil
}

func (r *mockRepo) GetLatestOrder(_ context.Context) (*domain.PayoutOrder, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	var latest *domain.PayoutOrder
	for _, id := range r.orderIds {
		order := r.orders[id]
		if latest == nil || order.CreationTime >= latest.CreationTime {
			latest = order
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (r *mockRepo) UpdateOrder(
	_ context.Context, id string,
	updateFn func(o *domain.PayoutOrder) (*domain.PayoutOrder, error),
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	clone := *order
	updated, err := updateFn(&clone)
	if err != nil {
		return err
	}
	r.orders[id] = updated
	return nil
}

type mockRepoManager struct {
	repo *mockRepo
}

func (m *mockRepoManager) PayoutOrderRepository() domain.PayoutOrderRepository {
	return m.repo
}

func (m *mockRepoManager) Close() {}

type sentBatch struct {
	context domain.PayoutContext
	outputs []ports.TxOutput
	feeRate decimal.Decimal
}

type mockUtxoBackend struct {
	mtx sync.Mutex

	healthy    bool
	healthyErr error
	feeRate    decimal.Decimal
	sendErr    error
	txs        map[string]*ports.TxStatus

	sent []sentBatch
}

func newMockUtxoBackend() *mockUtxoBackend {
	return &mockUtxoBackend{
		healthy: true,
		txs:     make(map[string]*ports.TxStatus),
	}
}

func (b *mockUtxoBackend) IsHealthy(
	_ context.Context, _ domain.PayoutContext,
) (bool, error) {
	return b.healthy, b.healthyErr
}

func (b *mockUtxoBackend) SendToMany(
	_ context.Context, payoutContext domain.PayoutContext,
	outputs []ports.TxOutput, feeRate decimal.Decimal,
) (string, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.sendErr != nil {
		return "", b.sendErr
	}
	b.sent = append(b.sent, sentBatch{payoutContext, outputs, feeRate})
	return fmt.Sprintf("txid-%d", len(b.sent)), nil
}

func (b *mockUtxoBackend) GetTransaction(
	_ context.Context, _ domain.PayoutContext, txid string,
) (*ports.TxStatus, error) {
	tx, ok := b.txs[txid]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", txid)
	}
	return tx, nil
}

func (b *mockUtxoBackend) EstimateFeeRate(_ context.Context) (decimal.Decimal, error) {
	return b.feeRate, nil
}

type sentTransfer struct {
	tokenContract string
	address       string
	amount        decimal.Decimal
	nonce         *uint64
}

type mockAccountBackend struct {
	mtx sync.Mutex

	healthy       bool
	sendErr       error
	gasPrice      decimal.Decimal
	gasLimit      decimal.Decimal
	gasPriceCalls int
	nonces        map[string]uint64
	txs           map[string]*ports.TxStatus
	walletAddress string

	sent []sentTransfer
}

func newMockAccountBackend() *mockAccountBackend {
	return &mockAccountBackend{
		healthy:       true,
		gasPrice:      decimal.New(2, -8),
		gasLimit:      decimal.NewFromInt(21000),
		nonces:        make(map[string]uint64),
		txs:           make(map[string]*ports.TxStatus),
		walletAddress: "0xhotwallet",
	}
}

func (b *mockAccountBackend) IsHealthy(_ context.Context) (bool, error) {
	return b.healthy, nil
}

func (b *mockAccountBackend) SendCoin(
	_ context.Context, address string, amount decimal.Decimal, nonce *uint64,
) (string, error) {
	return b.send("", address, amount, nonce)
}

func (b *mockAccountBackend) SendToken(
	_ context.Context, tokenContract, address string,
	amount decimal.Decimal, nonce *uint64,
) (string, error) {
	return b.send(tokenContract, address, amount, nonce)
}

func (b *mockAccountBackend) send(
	tokenContract, address string, amount decimal.Decimal, nonce *uint64,
) (string, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.sendErr != nil {
		return "", b.sendErr
	}
	b.sent = append(b.sent, sentTransfer{tokenContract, address, amount, nonce})
	return fmt.Sprintf("txid-%d", len(b.sent)), nil
}

func (b *mockAccountBackend) GetTransaction(
	_ context.Context, txid string,
) (*ports.TxStatus, error) {
	tx, ok := b.txs[txid]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", txid)
	}
	return tx, nil
}

func (b *mockAccountBackend) GetTxNonce(_ context.Context, txid string) (uint64, error) {
	nonce, ok := b.nonces[txid]
	if !ok {
		return 0, fmt.Errorf("transaction %s not found", txid)
	}
	return nonce, nil
}

func (b *mockAccountBackend) GetGasPrice(_ context.Context) (decimal.Decimal, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.gasPriceCalls++
	return b.gasPrice, nil
}

func (b *mockAccountBackend) GetGasLimit(
	_ context.Context, _ string,
) (decimal.Decimal, error) {
	return b.gasLimit, nil
}

func (b *mockAccountBackend) GetWalletAddress(_ context.Context) (string, error) {
	return b.walletAddress, nil
}

type mockTreasury struct {
	mtx sync.Mutex

	notRequired bool
	transferErr error
	completed   map[string]bool

	transfers []sentTransfer
}

func newMockTreasury() *mockTreasury {
	return &mockTreasury{completed: make(map[string]bool)}
}

func (t *mockTreasury) TransferLiquidity(
	_ context.Context, asset string, amount decimal.Decimal, destination string,
) (string, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if t.transferErr != nil {
		return "", t.transferErr
	}
	if t.notRequired {
		return "", ports.ErrTransferNotRequired
	}
	t.transfers = append(t.transfers, sentTransfer{asset, destination, amount, nil})
	return fmt.Sprintf("transfer-%d", len(t.transfers)), nil
}

func (t *mockTreasury) CheckTransferCompletion(
	_ context.Context, transferTxId string,
) (bool, error) {
	return t.completed[transferTxId], nil
}

type mockPricer struct {
	price decimal.Decimal
	err   error
}

func (p *mockPricer) GetPrice(
	_ context.Context, _, _ string,
) (decimal.Decimal, error) {
	return p.price, p.err
}

type sentAlert struct {
	subject       string
	errs          []string
	correlationId string
}

type mockNotifier struct {
	mtx    sync.Mutex
	alerts []sentAlert
}

func (n *mockNotifier) SendAlert(subject string, errs []string, correlationId string) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	n.alerts = append(n.alerts, sentAlert{subject, errs, correlationId})
	return nil
}

type strategyCall struct {
	operation string
	orderIds  []string
}

// mockStrategy records which orders went through which operation.
type mockStrategy struct {
	mtx   sync.Mutex
	calls []strategyCall
}

func (s *mockStrategy) record(operation string, orders []*domain.PayoutOrder) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.calls = append(s.calls, strategyCall{operation, orderIds(orders)})
}

func (s *mockStrategy) callsFor(operation string) []strategyCall {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	calls := make([]strategyCall, 0)
	for _, call := range s.calls {
		if call.operation == operation {
			calls = append(calls, call)
		}
	}
	return calls
}

func (s *mockStrategy) EstimateFee(_ context.Context, _ string) (*domain.FeeResult, error) {
	return &domain.FeeResult{Asset: "BTC", Amount: decimal.New(1, -4)}, nil
}

func (s *mockStrategy) Prepare(_ context.Context, orders []*domain.PayoutOrder) error {
	s.record("prepare", orders)
	return nil
}

func (s *mockStrategy) CheckPreparation(_ context.Context, orders []*domain.PayoutOrder) error {
	s.record("checkPreparation", orders)
	return nil
}

func (s *mockStrategy) Dispatch(_ context.Context, orders []*domain.PayoutOrder) error {
	s.record("dispatch", orders)
	return nil
}

func (s *mockStrategy) CheckCompletion(_ context.Context, orders []*domain.PayoutOrder) error {
	s.record("checkCompletion", orders)
	return nil
}
