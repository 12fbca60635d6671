package whse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession_OnHold(t *testing.T) {
	for _, status := range []string{"Order On Hold", "ORDER ON HOLD - call office", "order on hold"} {
		s := &Session{OrderNumber: "00123", Status: status}
		assert.True(t, s.IsOrderOnHold(), status)
		assert.Equal(t, "Order 00123 is on hold", s.StatusMessage(), status)
	}
}

func TestSession_MessagePriority(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   string
	}{
		{"on hold beats verified", "Order on hold; order is verified", "Order 00123 is on hold"},
		{"verified beats invoiced", "order is invoiced, order is verified", "Order 00123 has been verified"},
		{"invoiced beats invalid", "bad order nbr / order is invoiced", "Order 00123 has been invoiced"},
		{"invalid alone", "Bad Order Nbr", "00123 is Invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{OrderNumber: "00123", Status: tt.status}
			assert.Equal(t, tt.want, s.StatusMessage())
		})
	}
}

func TestSession_OverlappingConditions(t *testing.T) {
	s := &Session{Status: "Order on hold; Order is verified"}

	assert.True(t, s.IsOrderOnHold())
	assert.True(t, s.IsOrderVerified())
	assert.False(t, s.IsOrderInvoiced())
}

func TestSession_UnknownStatus(t *testing.T) {
	s := &Session{OrderNumber: "00123", Status: "Scanning item 4711"}

	assert.Equal(t, Conditions(0), s.Conditions())
	for name, set := range s.Conditions().Map() {
		assert.False(t, set, name)
	}
	assert.Empty(t, s.StatusMessage())
}

func TestSession_InvoicedWithOrderNumber(t *testing.T) {
	s := &Session{OrderNumber: "00123", Status: "SUCCESS - Order 00123 is Invoiced"}

	assert.True(t, s.HasSucceeded())
	assert.True(t, s.IsOrderInvoiced())
	assert.Equal(t, "Order 00123 has been invoiced", s.StatusMessage())
}

func TestSession_OrderNumberStrippedForEveryPhrase(t *testing.T) {
	onHold := &Session{OrderNumber: "00123", Status: "Order 00123 on hold"}
	assert.True(t, onHold.IsOrderOnHold())
	assert.Equal(t, "Order 00123 is on hold", onHold.StatusMessage())

	exited := &Session{OrderNumber: "00123", Status: "Order 00123 exited"}
	assert.True(t, exited.IsOrderExited())
	assert.False(t, exited.IsOrderOnHold())

	// A different order number in the text is not stripped
	other := &Session{OrderNumber: "00999", Status: "Order 00123 exited"}
	assert.False(t, other.IsOrderExited())
}

func TestSession_Predicates(t *testing.T) {
	tests := []struct {
		status string
		check  func(*Session) bool
	}{
		{"End of Order", (*Session).IsOrderFinished},
		{"Order Exited", (*Session).IsOrderExited},
		{"Order is Verified", (*Session).IsOrderVerified},
		{"Order is Invoiced", (*Session).IsOrderInvoiced},
		{"BAD ORDER NBR", (*Session).IsOrderInvalid},
		{"Wrong Function for this order", (*Session).IsUsingWrongFunction},
		{"Success", (*Session).HasSucceeded},
	}

	for _, tt := range tests {
		s := &Session{Status: tt.status}
		assert.True(t, tt.check(s), tt.status)
	}
}

func TestPhraseClassifier_CustomVocabulary(t *testing.T) {
	c := NewPhraseClassifier(map[Condition]string{
		OrderOnHold: "  Held By Credit ",
		Succeeded:   "",
	})

	cs := c.Classify("Order held by credit dept", "")
	assert.True(t, cs.Has(OrderOnHold))
	assert.False(t, cs.Has(Succeeded))

	s := (&Session{OrderNumber: "9", Status: "HELD BY CREDIT"}).WithClassifier(c)
	assert.Equal(t, "Order 9 is on hold", s.StatusMessage())
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, "order is invoiced", normalizeStatus("Order 00123 is Invoiced", "00123"))
	assert.Equal(t, "order is invoiced", normalizeStatus("Order is Invoiced", "00123"))
	assert.Equal(t, "order 00123 is invoiced", normalizeStatus("Order 00123 is Invoiced", ""))
}

func TestConditions(t *testing.T) {
	cs := Conditions(0).With(OrderOnHold).With(Succeeded)

	assert.True(t, cs.Has(OrderOnHold))
	assert.True(t, cs.Has(Succeeded))
	assert.False(t, cs.Has(OrderExited))
	assert.Equal(t, "order_on_hold", OrderOnHold.String())
	assert.Equal(t, "unknown", Condition(0).String())
	assert.Len(t, cs.Map(), len(AllConditions))
}

func TestParseCondition(t *testing.T) {
	for _, c := range AllConditions {
		got, ok := ParseCondition(c.String())
		assert.True(t, ok)
		assert.Equal(t, c, got)
	}

	_, ok := ParseCondition("order_lost")
	assert.False(t, ok)
}
