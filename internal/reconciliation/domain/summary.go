package domain

import (
	"github.com/shopspring/decimal"
	costdomain "github.com/smallbiznis/customsledger/internal/cost/domain"
	paymentdomain "github.com/smallbiznis/customsledger/internal/payment/domain"
)

// FinancialSummary reconciles what a procedure owes against what was paid
// toward it. RemainingBalance is signed: a negative value is an overpayment.
type FinancialSummary struct {
	ProcedureReference string          `json:"procedure_reference"`
	TotalExpenses      decimal.Decimal `json:"total_expenses"`
	ImportExpenses     decimal.Decimal `json:"import_expenses"`
	ServiceInvoices    decimal.Decimal `json:"service_invoices"`
	Taxes              decimal.Decimal `json:"taxes"`
	AdvancePayments    decimal.Decimal `json:"advance_payments"`
	BalancePayments    decimal.Decimal `json:"balance_payments"`
	TotalPayments      decimal.Decimal `json:"total_payments"`
	RemainingBalance   decimal.Decimal `json:"remaining_balance"`
}

// ZeroSummary is the summary reported when a procedure cannot be summarized.
func ZeroSummary(reference string) FinancialSummary {
	return FinancialSummary{
		ProcedureReference: reference,
		TotalExpenses:      decimal.Zero,
		ImportExpenses:     decimal.Zero,
		ServiceInvoices:    decimal.Zero,
		Taxes:              decimal.Zero,
		AdvancePayments:    decimal.Zero,
		BalancePayments:    decimal.Zero,
		TotalPayments:      decimal.Zero,
		RemainingBalance:   decimal.Zero,
	}
}

// Inputs are the rows of one procedure that feed its summary.
type Inputs struct {
	ImportExpenses  []*costdomain.ImportExpense
	ServiceInvoices []*costdomain.ServiceInvoice
	Tax             *costdomain.Tax
	DirectPayments  []*paymentdomain.Payment
	Distributions   []*paymentdomain.PaymentDistribution
}

// Summarize computes the summary of one procedure. The single and batch
// paths both go through it.
func Summarize(reference string, in Inputs) FinancialSummary {
	importExpenses := costdomain.SumExpenses(in.ImportExpenses)
	serviceInvoices := costdomain.SumServiceInvoices(in.ServiceInvoices)
	taxes := costdomain.TaxTotal(in.Tax)
	totalExpenses := importExpenses.Add(serviceInvoices).Add(taxes)

	payments := paymentdomain.SumSources(paymentdomain.Sources(in.DirectPayments, in.Distributions))
	totalPayments := payments.Total()

	return FinancialSummary{
		ProcedureReference: reference,
		TotalExpenses:      totalExpenses,
		ImportExpenses:     importExpenses,
		ServiceInvoices:    serviceInvoices,
		Taxes:              taxes,
		AdvancePayments:    payments.Advance,
		BalancePayments:    payments.Balance,
		TotalPayments:      totalPayments,
		RemainingBalance:   totalExpenses.Sub(totalPayments),
	}
}
