package gateway

import (
	"context"
	"fmt"

	"github.com/farellandr/hadir/internal/services"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

const maxItemNameLength = 50

// Midtrans opens Snap checkouts.
type Midtrans struct {
	client    snap.Client
	clientKey string
}

func NewMidtrans(serverKey, clientKey string, production bool) *Midtrans {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	m := &Midtrans{clientKey: clientKey}
	m.client.New(serverKey, env)
	return m
}

func (m *Midtrans) ClientKey() string {
	return m.clientKey
}

func (m *Midtrans) CreateTransaction(ctx context.Context, order services.GatewayOrder) (*services.GatewayTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, midtransErr := m.client.CreateTransaction(snapRequest(order))
	if midtransErr != nil {
		return nil, fmt.Errorf("snap create transaction: %s (status %d)", midtransErr.Message, midtransErr.StatusCode)
	}
	return &services.GatewayTransaction{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
	}, nil
}

func snapRequest(order services.GatewayOrder) *snap.Request {
	name := order.ItemName
	if runes := []rune(name); len(runes) > maxItemNameLength {
		name = string(runes[:maxItemNameLength])
	}

	return &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  order.OrderID,
			GrossAmt: order.Amount,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    order.ItemID,
				Name:  name,
				Price: order.Amount,
				Qty:   1,
			},
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: order.CustomerName,
			Email: order.CustomerEmail,
		},
	}
}
