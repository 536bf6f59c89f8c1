package qif

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `!Type:Bank
D14/03/2025
T-25,000.00
PWire Transfer International
LTransfer
^
D15/03/2025
T4.50
MCoffee
^
D16/03/2025
T1200
PRent Payment
`

func TestParseReader(t *testing.T) {
	records, err := ParseReader(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Record{Date: "14/03/2025", Amount: "-25,000.00", Payee: "Wire Transfer International", Category: "Transfer"}, records[0])
	assert.Equal(t, "Coffee", records[1].Memo)
	assert.Equal(t, "Rent Payment", records[2].Payee)
}

func TestToTransactions(t *testing.T) {
	records, err := ParseReader(strings.NewReader(sample))
	require.NoError(t, err)

	txs, err := ToTransactions(records, "ACC777", "")
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, "ACC777", txs[0].AccountNumber)
	assert.Equal(t, "2025-03-14", txs[0].Date)
	assert.True(t, decimal.RequireFromString("-25000").Equal(txs[0].Amount))
	assert.Equal(t, "Transfer", txs[0].Category)

	assert.Equal(t, "Coffee", txs[1].Description)
	assert.Equal(t, "Uncategorized", txs[1].Category)
}

func TestToTransactionsErrors(t *testing.T) {
	_, err := ToTransactions([]Record{{Date: "2025-03-14", Amount: "1"}}, "ACC1", DefaultDateLayout)
	assert.ErrorContains(t, err, "invalid date")

	_, err = ToTransactions([]Record{{Date: "14/03/2025", Amount: "ten"}}, "ACC1", DefaultDateLayout)
	assert.ErrorContains(t, err, "invalid amount")

	txs, err := ToTransactions([]Record{{Date: "03/14/2025", Amount: "1"}}, "ACC1", "01/02/2006")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", txs[0].Date)
}
