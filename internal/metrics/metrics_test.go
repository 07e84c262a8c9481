package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPaymentProcessed(t *testing.T) {
	before := testutil.ToFloat64(PaymentsProcessedTotal.WithLabelValues("paid"))
	RecordPaymentProcessed("paid")
	assert.Equal(t, before+1, testutil.ToFloat64(PaymentsProcessedTotal.WithLabelValues("paid")))
}

func TestRecordOrderCreated(t *testing.T) {
	before := testutil.ToFloat64(OrdersCreatedTotal)
	RecordOrderCreated()
	assert.Equal(t, before+1, testutil.ToFloat64(OrdersCreatedTotal))
}
