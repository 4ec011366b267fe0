package checkout

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorpay-backend/internal/cart"
	"github.com/angelmondragon/vendorpay-backend/internal/orders"
	"github.com/angelmondragon/vendorpay-backend/internal/settlement"
	"github.com/angelmondragon/vendorpay-backend/pkg/db"
	"github.com/angelmondragon/vendorpay-backend/pkg/ledger"
	"github.com/angelmondragon/vendorpay-backend/pkg/migrate"
	"github.com/angelmondragon/vendorpay-backend/pkg/outbox"
)

type fixedDirectory map[string]string

func (d fixedDirectory) ResolveVendorAddresses(_ context.Context, emails []string) (map[string]string, error) {
	out := map[string]string{}
	for _, email := range emails {
		if addr, ok := d[email]; ok {
			out[email] = addr
		}
	}
	return out, nil
}

// cancelAfterFirst cancels the checkout request once the first transfer lands.
type cancelAfterFirst struct {
	*ledger.Memory
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancelAfterFirst) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (ledger.Receipt, error) {
	receipt, err := c.Memory.Transfer(ctx, from, to, amount)
	c.once.Do(c.cancel)
	return receipt, err
}

func newSettledCheckout(t *testing.T, dir fixedDirectory, l ledger.Ledger) (Service, orders.Service) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:checkout_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.ApplySQLiteSchema(context.Background(), conn))

	orderSvc, err := orders.NewService(orders.NewRepository(conn), db.Wrap(conn), outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)

	engine, err := settlement.NewEngine(settlement.EngineParams{
		Directory:       dir,
		Ledger:          l,
		Rates:           settlement.StaticRate(decimal.RequireFromString("0.0005")),
		TransferTimeout: time.Second,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Carts:    stubCarts{},
		Settler:  engine,
		Payers:   stubPayers{},
		Orders:   orderSvc,
		Currency: "ETH",
	})
	require.NoError(t, err)
	return svc, orderSvc
}

func TestCheckoutSurvivesDisconnectAfterFirstTransfer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := &cancelAfterFirst{Memory: ledger.NewMemory(), cancel: cancel}
	svc, orderSvc := newSettledCheckout(t, fixedDirectory{
		"a@v.com": "0x" + strings.Repeat("a", 40),
		"b@v.com": "0x" + strings.Repeat("b", 40),
	}, l)

	res, err := svc.Execute(ctx, buyer, Request{Items: []cart.QuoteItem{{ProductID: lampID, Quantity: 2}}})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Len(t, l.Transfers(), 2)
	assert.Equal(t, settlement.StateAllSucceeded, res.State)
	require.True(t, res.OrderRecorded, res.RecordError)

	stored, err := orderSvc.FindByOrderID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Len(t, stored.Payments, 2)
}

func TestCheckoutSharedAddressListsOrderForEachVendor(t *testing.T) {
	shared := "0x" + strings.Repeat("a", 40)
	mem := ledger.NewMemory()
	svc, orderSvc := newSettledCheckout(t, fixedDirectory{"a@v.com": shared, "b@v.com": shared}, mem)

	res, err := svc.Execute(context.Background(), buyer, Request{Items: []cart.QuoteItem{{ProductID: lampID, Quantity: 2}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@v.com", "b@v.com"}, res.PaidVendors)
	require.Len(t, mem.Transfers(), 1)

	for vendor, product := range map[string]uuid.UUID{"a@v.com": lampID, "b@v.com": mugID} {
		list, err := orderSvc.ListForVendor(context.Background(), vendor)
		require.NoError(t, err)
		require.Len(t, list, 1, vendor)
		require.Len(t, list[0].Items, 1, vendor)
		assert.Equal(t, product.String(), list[0].Items[0].ProductID)
		assert.Len(t, list[0].Payments, 1)
	}
}
