package escrow

import (
	"math/big"
	"strconv"

	"escrowd/core/types"
	"escrowd/crypto"
	"escrowd/native/fees"
)

const (
	EventTypeEscrowCreated   = "escrow.created"
	EventTypeSellerConfirmed = "escrow.seller_confirmed"
	EventTypeBuyerApproved   = "escrow.buyer_approved"
	EventTypeEscrowReleased  = "escrow.released"
	EventTypeEscrowDisputed  = "escrow.disputed"
	EventTypeEscrowResolved  = "escrow.resolved"
	EventTypeEscrowRefunded  = "escrow.refunded"
	EventTypeFeesWithdrawn   = "escrow.fees_withdrawn"
	EventTypeArbiterAdded    = "escrow.arbiter_added"
	EventTypeArbiterRemoved  = "escrow.arbiter_removed"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCreated, e) }

// NewSellerConfirmedEvent returns the payload emitted when the seller confirms
// delivery without triggering settlement.
func NewSellerConfirmedEvent(e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeSellerConfirmed, e)
}

// NewBuyerApprovedEvent returns the payload emitted when the buyer approves
// payment without triggering settlement.
func NewBuyerApprovedEvent(e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeBuyerApproved, e)
}

// NewReleasedEvent returns the payload for a settlement in favour of the
// seller, including the fee split applied.
func NewReleasedEvent(e *Escrow, fee, payout *big.Int) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowReleased, e)
	evt.Attributes["platformFee"] = formatAmount(fee)
	evt.Attributes["payout"] = formatAmount(payout)
	return evt
}

// NewDisputedEvent returns the payload emitted when an escrow is marked as
// disputed.
func NewDisputedEvent(e *Escrow) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowDisputed, e)
	if e != nil {
		evt.Attributes["reason"] = e.DisputeReason
		evt.Attributes["raisedAt"] = strconv.FormatInt(e.DisputeRaisedAt, 10)
	}
	return evt
}

// NewResolvedEvent returns the payload emitted when an arbiter rules on a
// dispute.
func NewResolvedEvent(e *Escrow, buyerWins bool, resolution fees.Resolution) *types.Event {
	evt := newEscrowEvent(EventTypeEscrowResolved, e)
	outcome := "seller"
	if buyerWins {
		outcome = "buyer"
	}
	evt.Attributes["outcome"] = outcome
	evt.Attributes["arbiterFee"] = formatAmount(resolution.ArbiterFee)
	evt.Attributes["platformFee"] = formatAmount(resolution.PlatformFee)
	evt.Attributes["remainder"] = formatAmount(resolution.Remainder)
	return evt
}

// NewRefundedEvent returns the payload for an emergency refund to the buyer.
func NewRefundedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowRefunded, e) }

// NewFeesWithdrawnEvent returns the payload emitted when a recipient claims
// their accumulated fees.
func NewFeesWithdrawnEvent(recipient [20]byte, arbiterShare, platformShare *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFeesWithdrawn,
		Attributes: map[string]string{
			"recipient":     crypto.NewAddressFromRaw(recipient).String(),
			"arbiterShare":  formatAmount(arbiterShare),
			"platformShare": formatAmount(platformShare),
		},
	}
}

// NewArbiterAddedEvent returns the payload for a registry admission.
func NewArbiterAddedEvent(addr [20]byte) *types.Event {
	return &types.Event{
		Type:       EventTypeArbiterAdded,
		Attributes: map[string]string{"arbiter": crypto.NewAddressFromRaw(addr).String()},
	}
}

// NewArbiterRemovedEvent returns the payload for a registry removal.
func NewArbiterRemovedEvent(addr [20]byte) *types.Event {
	return &types.Event{
		Type:       EventTypeArbiterRemoved,
		Attributes: map[string]string{"arbiter": crypto.NewAddressFromRaw(addr).String()},
	}
}

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(e.ID, 10)
	attrs["buyer"] = crypto.NewAddressFromRaw(e.Buyer).String()
	attrs["seller"] = crypto.NewAddressFromRaw(e.Seller).String()
	attrs["arbiter"] = crypto.NewAddressFromRaw(e.Arbiter).String()
	attrs["amount"] = formatAmount(e.Amount)
	attrs["status"] = e.Status.String()
	attrs["createdAt"] = strconv.FormatInt(e.CreatedAt, 10)
	attrs["deliveryDeadline"] = strconv.FormatInt(e.DeliveryDeadline, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
