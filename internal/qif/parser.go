// Package qif reads Quicken Interchange Format exports into transactions.
package qif

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/transaction-risk-analyzer/internal/types"
)

// DefaultDateLayout is the day-first layout used by most Australian bank exports
const DefaultDateLayout = "02/01/2006"

const uncategorized = "Uncategorized"

// Record represents a single QIF entry
type Record struct {
	Date     string
	Amount   string
	Payee    string
	Category string
	Number   string
	Memo     string
}

// ParseFile reads a QIF file and returns its records
func ParseFile(filename string) ([]Record, error) {
	infile, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer infile.Close()
	return ParseReader(infile)
}

// ParseReader reads QIF records until EOF. Header lines such as !Type:Bank are skipped.
func ParseReader(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)

	var records []Record
	current := Record{}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}

		value := line[1:]
		switch line[0] {
		case '^':
			if current.Date != "" {
				records = append(records, current)
			}
			current = Record{}
		case 'D':
			current.Date = value
		case 'T', 'U':
			current.Amount = value
		case 'P':
			current.Payee = value
		case 'L':
			current.Category = value
		case 'N':
			current.Number = value
		case 'M':
			current.Memo = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read QIF: %w", err)
	}

	if current.Date != "" {
		records = append(records, current)
	}

	return records, nil
}

// ToTransactions converts records into transactions for account. Dates are
// parsed with dateLayout and stored as YYYY-MM-DD.
func ToTransactions(records []Record, account, dateLayout string) ([]types.Transaction, error) {
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}

	transactions := make([]types.Transaction, 0, len(records))
	for i, r := range records {
		date, err := time.Parse(dateLayout, strings.TrimSpace(r.Date))
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid date %q: %w", i+1, r.Date, err)
		}
		amount, err := decimal.NewFromString(strings.ReplaceAll(r.Amount, ",", ""))
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid amount %q: %w", i+1, r.Amount, err)
		}

		description := strings.TrimSpace(r.Payee)
		if description == "" {
			description = strings.TrimSpace(r.Memo)
		}
		category := strings.TrimSpace(r.Category)
		if category == "" {
			category = uncategorized
		}

		transactions = append(transactions, types.Transaction{
			AccountNumber: account,
			Date:          date.Format(types.DateLayout),
			Description:   description,
			Category:      category,
			Amount:        amount,
		})
	}
	return transactions, nil
}
