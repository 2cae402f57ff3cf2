package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestMerge_LastWriteWinsPerField(t *testing.T) {
	base := TransferRecord{
		Category: CategoryCrossBorder,
		Amount:   decimal.RequireFromString("10.00"),
		Routing:  &Routing{DestinationCountry: "MX", DeliveryMethod: DeliveryBankDeposit},
		Recipient: Recipient{
			Name:   "Ana",
			Phone:  "+5215550000000",
			Region: "CDMX",
		},
	}

	merged := base.Merge(TransferPatch{
		Amount:    ptr(decimal.RequireFromString("25.50")),
		Routing:   &RoutingPatch{DeliveryMethod: ptr(DeliveryCashPickup)},
		Recipient: &RecipientPatch{SubRegion: ptr("Coyoacan")},
	})

	assert.True(t, merged.Amount.Equal(decimal.RequireFromString("25.50")))
	assert.Equal(t, "MX", merged.Routing.DestinationCountry, "untouched routing field survives")
	assert.Equal(t, DeliveryCashPickup, merged.Routing.DeliveryMethod)
	assert.Equal(t, "Ana", merged.Recipient.Name)
	assert.Equal(t, "Coyoacan", merged.Recipient.SubRegion)

	// the receiver is not mutated
	assert.Equal(t, DeliveryBankDeposit, base.Routing.DeliveryMethod)
	assert.Empty(t, base.Recipient.SubRegion)
}

func TestMerge_NoCrossFieldSideEffects(t *testing.T) {
	base := TransferRecord{
		Category:      CategoryCrossBorder,
		Routing:       &Routing{DestinationCountry: "PH", DeliveryMethod: DeliveryMobileMoney},
		PaymentMethod: MethodCard,
	}

	merged := base.Merge(TransferPatch{Category: ptr(CategoryDomestic)})

	assert.Equal(t, CategoryDomestic, merged.Category)
	assert.NotNil(t, merged.Routing)
	assert.Equal(t, MethodCard, merged.PaymentMethod)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	rec := TransferRecord{Routing: &Routing{DestinationCountry: "IN"}}
	snap := rec.Snapshot()
	snap.Routing.DestinationCountry = "NP"

	assert.Equal(t, "IN", rec.Routing.DestinationCountry)
}

func TestPaymentMethodAllowedFor(t *testing.T) {
	assert.True(t, MethodCard.AllowedFor(CategoryCrossBorder))
	assert.True(t, MethodWalletCard.AllowedFor(CategoryCrossBorder))
	assert.False(t, MethodMobileWallet.AllowedFor(CategoryCrossBorder))
	assert.True(t, MethodMobileWallet.AllowedFor(CategoryDomestic))
	assert.True(t, MethodBankRedirect.AllowedFor(CategoryDomestic))
	assert.False(t, MethodCard.AllowedFor(CategoryDomestic))
	assert.False(t, MethodCard.AllowedFor(Category("")))
}

func TestNotificationAddress(t *testing.T) {
	rec := TransferRecord{Recipient: Recipient{Email: "rcpt@example.com"}}
	assert.Equal(t, "rcpt@example.com", rec.NotificationAddress())

	rec.ReceiptEmail = "sender@example.com"
	assert.Equal(t, "sender@example.com", rec.NotificationAddress())
}
