package application

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	account "github.com/dmehra2102/checkout-service/internal/account/domain"
	order "github.com/dmehra2102/checkout-service/internal/order/domain"
	"github.com/dmehra2102/checkout-service/internal/payment/domain"
	"github.com/dmehra2102/checkout-service/pkg/config"
)

var (
	ErrUnresolvedItem = errors.New("order item product is not materialized")
	ErrAmountMismatch = errors.New("order total differs from the sum of item totals")
)

// provider limit on item name and description length
const maxTextLen = 127

type MapperConfig struct {
	Currency     string
	BrandName    string
	BaseURI      string
	CancelURL    string
	Mode         string
	SandboxEmail string
}

// ConfigFrom gathers the mapper settings from the service configuration.
func ConfigFrom(baseURI string, p config.PayPal) MapperConfig {
	return MapperConfig{
		Currency:     p.Currency,
		BrandName:    p.BrandName,
		BaseURI:      baseURI,
		CancelURL:    p.CancelURL,
		Mode:         p.Mode,
		SandboxEmail: p.SandboxEmail,
	}
}

// Mapper turns local orders into provider payloads. It does no I/O.
type Mapper struct {
	cfg MapperConfig
}

func NewMapper(cfg MapperConfig) *Mapper {
	if cfg.Currency == "" {
		cfg.Currency = domain.DefaultCurrency
	}
	if cfg.BrandName == "" {
		cfg.BrandName = domain.DefaultBrandName
	}
	cfg.BaseURI = strings.TrimRight(cfg.BaseURI, "/")
	return &Mapper{cfg: cfg}
}

// ReturnURL is the capture endpoint the provider redirects the payer to.
func (m *Mapper) ReturnURL() string {
	return m.cfg.BaseURI + "/orders/capture"
}

// ToRemoteOrderRequest builds the create-order payload. Unit prices come from
// the frozen subtotals and the amount is the sum of unit price × quantity, so
// amount and item_total always agree.
func (m *Mapper) ToRemoteOrderRequest(o order.Order) (domain.CreateOrderRequest, error) {
	items := make([]domain.Item, 0, len(o.Items))
	itemTotal := decimal.Zero
	for i, it := range o.Items {
		if !it.Product.Resolved() {
			return domain.CreateOrderRequest{}, fmt.Errorf("%w: line %d", ErrUnresolvedItem, i)
		}
		p := it.Product.Value
		unit := it.UnitPrice().Round(2)
		itemTotal = itemTotal.Add(unit.Mul(decimal.NewFromInt(it.Quantity)))
		items = append(items, domain.Item{
			Name:        truncate(p.Name),
			Quantity:    strconv.FormatInt(it.Quantity, 10),
			UnitAmount:  m.money(unit),
			Description: truncate(p.Description),
			SKU:         p.ID,
			Category:    domain.CategoryPhysical,
		})
	}
	if !itemTotal.Equal(o.TotalPrice.Round(2)) {
		return domain.CreateOrderRequest{}, fmt.Errorf("%w: total %s, items %s", ErrAmountMismatch,
			o.TotalPrice.StringFixed(2), itemTotal.StringFixed(2))
	}

	total := m.money(itemTotal)
	return domain.CreateOrderRequest{
		Intent: domain.IntentCapture,
		PurchaseUnits: []domain.PurchaseUnit{{
			ReferenceID: o.ID,
			Amount: domain.Amount{
				CurrencyCode: total.CurrencyCode,
				Value:        total.Value,
				Breakdown:    domain.AmountBreakdown{ItemTotal: total},
			},
			Items: items,
		}},
		ApplicationContext: domain.ApplicationContext{
			BrandName:          m.cfg.BrandName,
			UserAction:         domain.UserActionPayNow,
			ReturnURL:          m.ReturnURL(),
			CancelURL:          m.cfg.CancelURL,
			ShippingPreference: domain.NoShipping,
		},
	}, nil
}

// ToConfirmPaymentSourceRequest names the payer after the user. In sandbox
// mode the configured sandbox account pays instead of the user's address.
func (m *Mapper) ToConfirmPaymentSourceRequest(_ order.Order, user account.Profile) domain.ConfirmPaymentSourceRequest {
	email := user.Email
	if m.cfg.Mode == domain.ModeSandbox && m.cfg.SandboxEmail != "" {
		email = m.cfg.SandboxEmail
	}
	return domain.ConfirmPaymentSourceRequest{
		PaymentSource: domain.PaymentSource{
			PayPal: &domain.PayPalSource{
				Name:         SplitName(user.FullName),
				EmailAddress: email,
				ExperienceContext: domain.ExperienceContext{
					PaymentMethodPreference: domain.ImmediatePayment,
					BrandName:               m.cfg.BrandName,
					Locale:                  domain.DefaultLocale,
					LandingPage:             domain.LandingPageLogin,
					ShippingPreference:      domain.ProvidedAddress,
					UserAction:              domain.UserActionPayNow,
					ReturnURL:               m.ReturnURL(),
					CancelURL:               m.cfg.CancelURL,
				},
			},
		},
	}
}

// SplitName uses the first whitespace-separated token as given name and the
// last as surname when there is more than one.
func SplitName(full string) domain.PayerName {
	parts := strings.Fields(full)
	var n domain.PayerName
	if len(parts) > 0 {
		n.GivenName = parts[0]
	}
	if len(parts) > 1 {
		n.Surname = parts[len(parts)-1]
	}
	return n
}

func (m *Mapper) money(d decimal.Decimal) domain.Money {
	return domain.Money{CurrencyCode: m.cfg.Currency, Value: d.StringFixed(2)}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxTextLen {
		return s
	}
	return string(r[:maxTextLen])
}
