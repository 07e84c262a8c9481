package payment

import (
	"testing"

	"storefront/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		status string
		fraud  string
		want   model.PaymentStatus
		ok     bool
	}{
		{"settlement", "", model.PaymentStatusPaid, true},
		{"capture", "accept", model.PaymentStatusPaid, true},
		{"capture", "challenge", model.PaymentStatusPending, true},
		{"capture", "deny", model.PaymentStatusFailed, true},
		{"pending", "", model.PaymentStatusPending, true},
		{"deny", "", model.PaymentStatusFailed, true},
		{"cancel", "", model.PaymentStatusFailed, true},
		{"failure", "", model.PaymentStatusFailed, true},
		{"expire", "", model.PaymentStatusExpired, true},
		{"refund", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.status+"/"+tc.fraud, func(t *testing.T) {
			got, ok := MapStatus(tc.status, tc.fraud)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestVerifySignature(t *testing.T) {
	n := Notification{OrderID: "ORD-20260101-ABCDEF12", StatusCode: "200", GrossAmount: "25000.00"}
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, "server-key")

	assert.True(t, VerifySignature(n, "server-key"))
	assert.False(t, VerifySignature(n, "other-key"))

	tampered := n
	tampered.GrossAmount = "1.00"
	assert.False(t, VerifySignature(tampered, "server-key"))

	n.SignatureKey = ""
	assert.False(t, VerifySignature(n, "server-key"))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("25000.00")
	require.NoError(t, err)
	assert.Equal(t, int64(25000), v)

	v, err = ParseAmount("25000")
	require.NoError(t, err)
	assert.Equal(t, int64(25000), v)

	_, err = ParseAmount("25000.50")
	assert.Error(t, err)
	_, err = ParseAmount("abc")
	assert.Error(t, err)
	_, err = ParseAmount("")
	assert.Error(t, err)

	assert.Equal(t, "25000.00", FormatAmount(25000))
}
