package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spence/internal/common"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>STARBUCKS STORE #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2024012001
<NAME>Whole Foods Market
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20240125120000[0:GMT]
<TRNAMT>-500.00
<FITID>2024012501
<CHECKNUM>1234
<NAME>CHECK #1234
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240126120000[0:GMT]
<TRNAMT>2500.00
<FITID>2024012601
<NAME>PAYROLL DEPOSIT
</STMTTRN>
<STMTTRN>
<TRNTYPE>ATM
<DTPOSTED>20240128120000[0:GMT]
<TRNAMT>-60.00
<FITID>2024012801
<NAME>ATM WITHDRAWAL
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2024011001
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-15.00
<FITID>CC2024011501
<NAME>NETFLIX.COM
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`


const creditOnlyOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>555
<ACCTTYPE>SAVINGS
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>INT
<DTPOSTED>20240131120000[0:GMT]
<TRNAMT>1.25
<FITID>INT202401
<NAME>INTEREST PAID
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	tests := []struct {
		wantIs        error
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{
			name:          "bank statement skips credits",
			ofxData:       sampleBankOFX,
			expectedCount: 4,
		},
		{
			name:          "credit card statement",
			ofxData:       sampleCreditCardOFX,
			expectedCount: 2,
		},
		{
			name:          "statement without expenses",
			ofxData:       creditOnlyOFX,
			expectedError: true,
			wantIs:        common.ErrNoTransactions,
		},
		{
			name:          "invalid OFX data",
			ofxData:       "not valid OFX",
			expectedError: true,
		},
		{
			name:          "empty OFX",
			ofxData:       "",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser("alice", nil)
			transactions, err := parser.ParseFile(context.Background(), strings.NewReader(tt.ofxData))

			if tt.expectedError {
				assert.Error(t, err)
				if tt.wantIs != nil {
					assert.ErrorIs(t, err, tt.wantIs)
				}
				return
			}
			require.NoError(t, err)
			assert.Len(t, transactions, tt.expectedCount)
		})
	}
}

func TestParseFile_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser("alice", nil).ParseFile(ctx, strings.NewReader(sampleBankOFX))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseBankTransactions(t *testing.T) {
	parser := NewParser("alice", nil)
	transactions, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, transactions, 4)

	tx1 := transactions[0]
	assert.Equal(t, "2024011501", tx1.ID)
	assert.Equal(t, "alice", tx1.UserID)
	assert.Equal(t, "STARBUCKS STORE #1234", tx1.Title)
	assert.Equal(t, "STARBUCKS STORE #1234", tx1.MerchantName)
	assert.Equal(t, 25.50, tx1.Amount)
	assert.Equal(t, "1234567890", tx1.AccountID)
	assert.Equal(t, "DEBIT", tx1.Type)
	assert.Empty(t, tx1.Category)
	assert.NotEmpty(t, tx1.Hash)
	assert.Equal(t, 2024, tx1.Date.Year())
	assert.Equal(t, time.January, tx1.Date.Month())
	assert.Equal(t, 15, tx1.Date.Day())

	tx2 := transactions[1]
	assert.Equal(t, "Whole Foods Market", tx2.Title)
	assert.Equal(t, 125.00, tx2.Amount)

	check := transactions[2]
	assert.Equal(t, "CHECK #1234", check.Title)
	assert.Equal(t, 500.00, check.Amount)
	assert.Equal(t, "Checks", check.Category)

	atm := transactions[3]
	assert.Equal(t, "2024012801", atm.ID)
	assert.Equal(t, 60.00, atm.Amount)
	assert.Equal(t, "Cash & ATM", atm.Category)

	for _, tx := range transactions {
		assert.NotEqual(t, "2024012601", tx.ID, "credits are not expenses")
	}
}

func TestParseCreditCardTransactions(t *testing.T) {
	parser := NewParser("bob", nil)
	transactions, err := parser.ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	tx1 := transactions[0]
	assert.Equal(t, "CC2024011001", tx1.ID)
	assert.Equal(t, "AMAZON.COM*RT4Y7HG2", tx1.Title)
	assert.Equal(t, 45.99, tx1.Amount)
	assert.Equal(t, "4111111111111111", tx1.AccountID)
	assert.Equal(t, "bob", tx1.UserID)

	tx2 := transactions[1]
	assert.Equal(t, "CC2024011501", tx2.ID)
	assert.Equal(t, "NETFLIX.COM", tx2.Title)
	assert.Equal(t, 15.00, tx2.Amount)
}

func TestExtractMerchantName(t *testing.T) {
	parser := NewParser("alice", nil)

	tests := []struct {
		name     string
		input    string
		memo     string
		payee    string
		expected string
	}{
		{
			name:     "remove POS prefix",
			input:    "POS PURCHASE STARBUCKS",
			expected: "STARBUCKS",
		},
		{
			name:     "remove DEBIT CARD prefix",
			input:    "DEBIT CARD PURCHASE WHOLE FOODS",
			expected: "WHOLE FOODS",
		},
		{
			name:     "keep clean name",
			input:    "NETFLIX.COM",
			expected: "NETFLIX.COM",
		},
		{
			name:     "trim whitespace",
			input:    "  AMAZON.COM  ",
			expected: "AMAZON.COM",
		},
		{
			name:     "strip posting date",
			input:    "01/15 CORNER BAKERY",
			expected: "CORNER BAKERY",
		},
		{
			name:     "generic name falls back to memo",
			input:    "PURCHASE",
			memo:     "Keells Super",
			expected: "Keells Super",
		},
		{
			name:     "payee wins",
			input:    "POS PURCHASE 1234",
			payee:    "Cargills Food City",
			expected: "Cargills Food City",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := ofxgo.Transaction{
				Name: ofxgo.String(tt.input),
				Memo: ofxgo.String(tt.memo),
			}
			if tt.payee != "" {
				tx.Payee = &ofxgo.Payee{Name: ofxgo.String(tt.payee)}
			}
			assert.Equal(t, tt.expected, parser.extractMerchantName(tx))
		})
	}
}

func TestTransactionDeduplication(t *testing.T) {
	parser := NewParser("alice", nil)
	first, err := parser.ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	second, err := parser.ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)

	// Re-importing the same statement yields the same hashes.
	for i := range first {
		assert.Equal(t, first[i].Hash, second[i].Hash)
	}
	assert.NotEqual(t, first[0].Hash, first[1].Hash)

	// The same statement imported for another user is distinct.
	other, err := NewParser("bob", nil).ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	assert.NotEqual(t, first[0].Hash, other[0].Hash)
}

func TestGetAccounts(t *testing.T) {
	parser := NewParser("alice", nil)

	accounts, err := parser.GetAccounts(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	assert.Equal(t, []string{"1234567890"}, accounts)

	accounts, err = parser.GetAccounts(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	assert.Equal(t, []string{"4111111111111111"}, accounts)

	_, err = parser.GetAccounts(context.Background(), strings.NewReader("garbage"))
	assert.Error(t, err)
}
