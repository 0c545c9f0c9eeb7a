// Package ofx imports expense transactions from OFX/QFX bank statements.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/Veraticus/spence/internal/common"
	"github.com/Veraticus/spence/internal/model"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Category hints for transaction types that identify the spend on their own.
var typeCategories = map[string]string{
	"FEE":    "Bank Fees",
	"SRVCHG": "Bank Fees",
	"ATM":    "Cash & ATM",
	"CHECK":  "Checks",
}

// Parser converts OFX statements into expense transactions for one user.
type Parser struct {
	logger *slog.Logger
	userID string
}

// NewParser creates a parser that attributes every transaction to userID.
func NewParser(userID string, logger *slog.Logger) *Parser {
	return &Parser{
		userID: userID,
		logger: common.Component(logger, "ofx"),
	}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be upper case
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML exports sometimes drop the closing bracket of a bare tag line
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX file and returns its expense transactions.
// Credits and zero-amount entries are skipped. A statement without any
// expense yields common.ErrNoTransactions.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts, skipped int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList == nil {
				continue
			}
			txns, credits := p.convertTransactions(stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))
			transactions = append(transactions, txns...)
			skipped += credits
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList == nil {
				continue
			}
			txns, credits := p.convertTransactions(stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))
			transactions = append(transactions, txns...)
			skipped += credits
		}
	}

	p.logger.Info("Parsed OFX file",
		"expenses", len(transactions),
		"skipped_credits", skipped,
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	if len(transactions) == 0 {
		return nil, common.ErrNoTransactions
	}
	return transactions, nil
}

func (p *Parser) convertTransactions(ofxTxns []ofxgo.Transaction, accountID string) ([]model.Transaction, int) {
	transactions := make([]model.Transaction, 0, len(ofxTxns))
	skipped := 0
	for _, ofxTx := range ofxTxns {
		tx, ok := p.convertTransaction(ofxTx, accountID)
		if !ok {
			skipped++
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, skipped
}

// convertTransaction converts an OFX debit to an expense. OFX amounts are
// negative for money leaving the account.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID string) (model.Transaction, bool) {
	amount, _ := ofxTx.TrnAmt.Float64()
	if amount >= 0 {
		return model.Transaction{}, false
	}

	txType := fmt.Sprint(ofxTx.TrnType) // e.g., DEBIT, CHECK, POS, ATM
	tx := model.Transaction{
		ID:           string(ofxTx.FiTID),
		UserID:       p.userID,
		Date:         ofxTx.DtPosted.Time,
		Title:        strings.TrimSpace(string(ofxTx.Name)),
		MerchantName: p.extractMerchantName(ofxTx),
		Amount:       -amount,
		AccountID:    accountID,
		Type:         txType,
		Category:     typeCategories[txType],
	}
	if tx.Title == "" {
		tx.Title = tx.MerchantName
	}

	tx.Hash = tx.GenerateHash()
	return tx, true
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	// PAYEE is cleaner than NAME when present
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " posting dates
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}

// GetAccounts extracts unique account IDs from the OFX file.
func (p *Parser) GetAccounts(_ context.Context, reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var accounts []string
	add := func(id ofxgo.String) {
		if id != "" && !seen[string(id)] {
			seen[string(id)] = true
			accounts = append(accounts, string(id))
		}
	}

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(stmt.BankAcctFrom.AcctID)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(stmt.CCAcctFrom.AcctID)
		}
	}

	return accounts, nil
}
